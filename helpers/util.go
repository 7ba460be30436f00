package helpers

import (
	"strconv"
	"strings"
	"unicode"
)

// CleanNumber extracts the integer hiding in a price or mileage string.
// "$3,995" -> 3995, "45,210 mi." -> 45210. Returns nil when the string
// carries no digits at all.
func CleanNumber(s string) *int {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return nil
	}
	return &n
}

// YearFromTitle guesses the model year from a listing title. Titles on
// every supported site lead with the year ("2016 Toyota Camry"), so only
// the digits among the first four characters count, and all four must be
// digits for the guess to stand.
func YearFromTitle(title string) *int {
	title = strings.TrimSpace(title)
	runes := []rune(title)
	if len(runes) > 4 {
		runes = runes[:4]
	}
	var b strings.Builder
	for _, r := range runes {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() != 4 {
		return nil
	}
	year, err := strconv.Atoi(b.String())
	if err != nil {
		return nil
	}
	return &year
}

// Clean collapses runs of whitespace into single spaces and trims the ends.
func Clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TrimParens strips surrounding parentheses and whitespace, as in the
// "(Center City)" neighborhood tags on craigslist rows.
func TrimParens(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "()"))
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
