package parser

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePrice normalizes a printed price into a decimal. It tolerates
// currency symbols, whitespace, and both decimal conventions: commas become
// dots, and when several dots remain all but the last are treated as
// thousands separators ("1.234.56" -> 1234.56).
func ParsePrice(raw string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(b.String(), ",", ".")
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, false
	}

	if n := strings.Count(cleaned, "."); n > 1 {
		last := strings.LastIndexByte(cleaned, '.')
		cleaned = strings.ReplaceAll(cleaned[:last], ".", "") + cleaned[last:]
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// priceFromJSON handles the two shapes models emit for amounts: a JSON
// number or a formatted string.
func priceFromJSON(raw json.RawMessage) (decimal.Decimal, bool) {
	if len(raw) == 0 {
		return decimal.Zero, false
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return decimal.NewFromFloat(num), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParsePrice(s)
	}
	return decimal.Zero, false
}

func priceFromAny(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), true
	case string:
		return ParsePrice(t)
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}
