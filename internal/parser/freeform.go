package parser

import (
	"regexp"
	"strings"

	"github.com/bilbot/bilbot/internal/entity"
)

// itemLineRe matches "name ... price" column layouts: a name containing at
// least one letter, dot leaders or wide spacing, then a trailing amount with
// optional currency symbol.
var itemLineRe = regexp.MustCompile(`^(.*[A-Za-z].*?)[\s.]{2,}?\s*[$€£¥₹₽₩฿]?\s*(-?\d[\d.,]*)\s*$`)

// itemLineLooseRe accepts a single space between name and price, for
// receipts without dot leaders or columns.
var itemLineLooseRe = regexp.MustCompile(`^(.*[A-Za-z])\s+[$€£¥₹₽₩฿]?\s*(-?\d[\d.,]*)\s*$`)

var (
	dateKeywords    = []string{"date", "datum"}
	timeKeywords    = []string{"time", "uhrzeit", "zeit"}
	storeKeywords   = []string{"store", "shop", "merchant", "market"}
	paymentLabels   = []string{"payment", "paid", "bezahlt"}
	totalKeywords   = []string{"total", "amount due", "sum", "summe", "gesamt", "balance"}
	paymentKeywords = []string{"cash", "card", "credit", "debit", "visa", "mastercard", "paypal"}
)

// parseFreeform extracts what it can from non-JSON model output, line by
// line. Item lines win over label lines except when a total keyword is
// present, so "Pizza Margherita 12.50" is an item but "Total 16.00" is not.
func parseFreeform(content string, det *currencyDetector) *entity.ReceiptRecord {
	rec := &entity.ReceiptRecord{}
	det.noteText(content)

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		hasTotalKeyword := containsAny(lower, totalKeywords)

		if name, priceStr, ok := matchItemLine(line); ok && !hasTotalKeyword {
			if price, ok := ParsePrice(priceStr); ok {
				name = strings.TrimRight(strings.TrimSpace(name), ":.-")
				rec.Items = append(rec.Items, entity.ReceiptItem{Name: strings.TrimSpace(name), Price: price})
				continue
			}
		}

		if hasTotalKeyword {
			if total, ok := ParsePrice(line); ok {
				rec.TotalAmount = &total
			}
			continue
		}

		if label, value, ok := splitLabelValue(line); ok {
			if handleLabeledLine(rec, det, strings.ToLower(label), value) {
				continue
			}
		}

		if rec.PurchaseDate == nil {
			if d, ok := ParseDate(line); ok {
				rec.PurchaseDate = &d
				if t, ok := ParseTime(line); ok {
					rec.PurchaseTime = &t
				}
				continue
			}
		}
		if rec.PurchaseTime == nil && strings.Contains(line, ":") {
			if t, ok := ParseTime(line); ok {
				rec.PurchaseTime = &t
				continue
			}
		}

		if rec.PaymentMethod == "" {
			if method := matchPaymentMethod(lower); method != "" {
				rec.PaymentMethod = method
				continue
			}
		}

		// First unclaimed line with letters and no amount is the store name.
		if rec.Store == "" && strings.ContainsFunc(line, isLetter) {
			rec.Store = line
		}
	}
	return rec
}

// handleLabeledLine assigns a "label: value" line by keyword set, in
// date, time, store, payment, currency order.
func handleLabeledLine(rec *entity.ReceiptRecord, det *currencyDetector, label, value string) bool {
	switch {
	case containsAny(label, dateKeywords):
		if d, ok := ParseDate(value); ok {
			rec.PurchaseDate = &d
			if t, ok := ParseTime(value); ok {
				rec.PurchaseTime = &t
			}
			return true
		}
	case containsAny(label, timeKeywords):
		if t, ok := ParseTime(value); ok {
			rec.PurchaseTime = &t
			return true
		}
	case containsAny(label, storeKeywords):
		if value != "" {
			rec.Store = value
			return true
		}
	case containsAny(label, paymentLabels):
		if method := matchPaymentMethod(strings.ToLower(value)); method != "" {
			rec.PaymentMethod = method
		} else {
			rec.PaymentMethod = value
		}
		return true
	case strings.Contains(label, "currency"):
		det.noteCode(value)
		return true
	}
	return false
}

// matchItemLine recognizes an item-shaped line: "name: price" /
// "name - price" label splits first, then the column layouts. A label from
// one of the field keyword sets is never an item name, and a value with a
// colon is a time, not a price.
func matchItemLine(line string) (name, price string, ok bool) {
	if label, value, found := splitLabelValue(line); found {
		if strings.ContainsFunc(label, isLetter) &&
			!labelIsKeyword(strings.ToLower(label)) &&
			!strings.Contains(value, ":") {
			if _, valid := ParsePrice(value); valid {
				return label, value, true
			}
		}
	}
	if m := itemLineRe.FindStringSubmatch(line); m != nil {
		return m[1], m[2], true
	}
	if m := itemLineLooseRe.FindStringSubmatch(line); m != nil {
		return m[1], m[2], true
	}
	return "", "", false
}

// splitLabelValue splits a line on the first ": " or " - " separator.
func splitLabelValue(line string) (label, value string, ok bool) {
	colon := strings.Index(line, ": ")
	dash := strings.Index(line, " - ")
	switch {
	case colon >= 0 && (dash < 0 || colon < dash):
		return strings.TrimSpace(line[:colon]), strings.TrimSpace(line[colon+2:]), true
	case dash >= 0:
		return strings.TrimSpace(line[:dash]), strings.TrimSpace(line[dash+3:]), true
	}
	return "", "", false
}

func labelIsKeyword(lower string) bool {
	for _, set := range [][]string{dateKeywords, timeKeywords, storeKeywords, paymentLabels, totalKeywords} {
		if containsAny(lower, set) {
			return true
		}
	}
	return strings.Contains(lower, "currency")
}

func matchPaymentMethod(lower string) string {
	for _, kw := range paymentKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
