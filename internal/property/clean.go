package property

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

var nonPriceChars = regexp.MustCompile(`[^\d.]`)

// CleanPrice strips every character that is not a digit or a decimal point
// and parses the remainder. "€250,000" becomes 250000.
func CleanPrice(s string) (float64, error) {
	cleaned := nonPriceChars.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, &PriceParseError{Value: s, Err: eris.New("no digits")}
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, &PriceParseError{Value: s, Err: err}
	}
	return f, nil
}

// saleDateLayouts are tried in order. Numeric dates are always read day first.
var saleDateLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2006-01-02",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2/1/06",
}

// SaleDateLayout is the canonical rendering of a sale date.
const SaleDateLayout = "02/01/2006"

// ParseSaleDate parses a day-first date such as "15/03/2020".
func ParseSaleDate(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	var firstErr error
	for _, layout := range saleDateLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, &DateParseError{Value: s, Err: firstErr}
}

// FormatSaleDate renders t as dd/mm/yyyy.
func FormatSaleDate(t time.Time) string {
	return t.Format(SaleDateLayout)
}

// Median returns the middle value of xs, or the mean of the two middle values
// when len(xs) is even. xs is not modified. The bool is false for empty input.
func Median(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}
