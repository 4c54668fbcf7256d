package parser

import (
	"regexp"
	"strings"

	"github.com/bilbot/bilbot/constants"
)

// symbolScanOrder fixes the lookup order so text containing several symbols
// resolves deterministically.
var symbolScanOrder = []string{"€", "£", "¥", "₹", "₽", "₩", "₿", "฿", "$"}

var currencyPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)currency[:\s]+([A-Za-z]{3})\b`),
	regexp.MustCompile(`(?i)paid\s+in\s+([A-Za-z]{3})\b`),
}

// currencyDetector accumulates currency evidence across a parse: the
// explicit currency field, symbols embedded in price strings, and phrases in
// freeform text. The first credible vote wins; the default applies only when
// the receipt carries an amount at all.
type currencyDetector struct {
	code string
}

// noteCode records an explicit currency value: a known code, a known
// symbol, or a string containing one.
func (d *currencyDetector) noteCode(s string) {
	if d.code != "" {
		return
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if constants.IsCurrencyCode(s) {
		d.code = strings.ToUpper(s)
		return
	}
	if code, ok := constants.SymbolToCode[s]; ok {
		d.code = code
		return
	}
	d.noteText(s)
}

// noteText scans free text for currency symbols, codes, and phrases.
func (d *currencyDetector) noteText(s string) {
	if d.code != "" || s == "" {
		return
	}
	for _, re := range currencyPhrases {
		if m := re.FindStringSubmatch(s); m != nil && constants.IsCurrencyCode(m[1]) {
			d.code = strings.ToUpper(m[1])
			return
		}
	}
	for _, sym := range symbolScanOrder {
		if strings.Contains(s, sym) {
			d.code = constants.SymbolToCode[sym]
			return
		}
	}
}

// resolve returns the detected code, or the default when an amount exists
// but nothing was detected. A receipt with no amounts gets no currency.
func (d *currencyDetector) resolve(hasAmount bool) string {
	if d.code != "" {
		return d.code
	}
	if hasAmount {
		return constants.DefaultCurrency
	}
	return ""
}
