package constants

import "strings"

// SymbolToCode maps common currency symbols to their ISO 4217 code.
var SymbolToCode = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
	"₹": "INR",
	"₽": "RUB",
	"₩": "KRW",
	"₿": "BTC",
	"฿": "THB",
}

// KnownCurrencyCodes is the set of ISO-4217-like codes the parser recognizes
// when scanning model output.
var KnownCurrencyCodes = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "JPY": {}, "INR": {},
	"RUB": {}, "KRW": {}, "AUD": {}, "CAD": {}, "CHF": {},
	"CNY": {}, "HKD": {}, "NZD": {}, "SEK": {}, "SGD": {},
	"THB": {}, "ZAR": {}, "BTC": {},
}

// codeToSymbol is the reverse display mapping used when formatting amounts.
var codeToSymbol = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
	"RUB": "₽",
	"KRW": "₩",
	"BTC": "₿",
	"CAD": "C$",
	"AUD": "A$",
	"NZD": "NZ$",
	"HKD": "HK$",
	"SGD": "S$",
	"CNY": "¥",
	"CHF": "CHF",
	"SEK": "kr",
	"ZAR": "R",
	"THB": "฿",
}

// DefaultCurrency is the fallback when no currency token can be detected
// but an amount exists.
const DefaultCurrency = "USD"

// CurrencySymbol returns the display symbol for a currency code,
// defaulting to "$" for unknown codes.
func CurrencySymbol(code string) string {
	if s, ok := codeToSymbol[strings.ToUpper(code)]; ok {
		return s
	}
	return "$"
}

// IsCurrencyCode reports whether s is a recognized 3-letter currency code.
func IsCurrencyCode(s string) bool {
	_, ok := KnownCurrencyCodes[strings.ToUpper(s)]
	return ok
}
