// Package core holds the typed page records, raw-value coercion and money helpers.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a user-entered money amount from a form.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted and the
// result is rounded half-up to two decimals. Unlike ParseNumber, which silently
// defaults raw table values, this is strict: empty, negative, zero or malformed
// input returns ErrInvalidAmount.
//
//	ParseAmount("12.345") -> 12.35, nil
//	ParseAmount("1.234,5") -> 1234.5, nil
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}
	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	f, _ := d.Float64()
	return f, nil
}

// SumAmounts adds values in decimal to avoid float drift across many rows.
func SumAmounts(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	f, _ := total.Float64()
	return f
}

// FormatAmount renders v with two decimals and comma thousands grouping.
func FormatAmount(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
