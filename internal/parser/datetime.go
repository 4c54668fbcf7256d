package parser

import (
	"strings"
	"time"
)

// Date layout order matters: day-first formats are tried before month-first,
// so an unambiguous value like 18/05/2025 parses day-first and 05/18/2025
// falls through to the month-first layout.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02.01.2006",
}

var timeLayouts = []string{
	"15:04:05",
	"15:04",
}

// ParseDate parses a printed date, tolerating a trailing time component and
// non-numeric suffixes.
func ParseDate(raw string) (time.Time, bool) {
	s := keepDigitTokens(splitISOSeparator(raw))
	if s == "" {
		return time.Time{}, false
	}
	// The first whitespace-separated token carries the date; the rest is a
	// time component or noise.
	datePart, _, _ := strings.Cut(s, " ")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, datePart); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseTime parses a printed time-of-day. Suffixes like "Uhr" are dropped by
// keeping only tokens that contain digits.
func ParseTime(raw string) (time.Time, bool) {
	s := keepDigitTokens(splitISOSeparator(raw))
	if s == "" {
		return time.Time{}, false
	}
	// A combined "date time" value: the time is the last token.
	if i := strings.LastIndexByte(s, ' '); i >= 0 {
		s = s[i+1:]
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SplitDateTime splits a combined "purchase_date_time" value into its date
// and time parts on the first whitespace.
func SplitDateTime(raw string) (datePart, timePart string) {
	s := strings.TrimSpace(splitISOSeparator(raw))
	if s == "" {
		return "", ""
	}
	d, t, found := strings.Cut(s, " ")
	if !found {
		return d, ""
	}
	return d, strings.TrimSpace(t)
}

// splitISOSeparator turns the ISO 8601 "T" between date and time into a
// space so combined values tokenize like "2025-05-18 22:30:00".
func splitISOSeparator(s string) string {
	b := []byte(s)
	for i := 1; i+1 < len(b); i++ {
		if b[i] == 'T' && isASCIIDigit(b[i-1]) && isASCIIDigit(b[i+1]) {
			b[i] = ' '
		}
	}
	return string(b)
}

func isASCIIDigit(c byte) bool { return c >= '0' && c <= '9' }

// keepDigitTokens drops whitespace-separated tokens without digits, which
// removes localized suffixes ("22:30 Uhr" -> "22:30") without a dictionary.
func keepDigitTokens(raw string) string {
	var kept []string
	for _, tok := range strings.Fields(raw) {
		if strings.ContainsAny(tok, "0123456789") {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}
