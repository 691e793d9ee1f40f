package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DateLayout is the canonical on-the-wire date format.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"2006/01/02",
	"02.01.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// Row is a raw record as decoded from the table API.
type Row map[string]any

// Lookup returns the first value present under any of keys. Keys are matched
// exactly first, then ignoring case, spaces, underscores and hyphens, so that
// "Contract Value" and "contract_value" address the same column.
func (r Row) Lookup(keys ...string) any {
	for _, k := range keys {
		if v, ok := r[k]; ok {
			return v
		}
	}
	for _, k := range keys {
		want := foldKey(k)
		for rk, v := range r {
			if foldKey(rk) == want {
				return v
			}
		}
	}
	return nil
}

// Set stores v under the existing column that key folds to, or under key itself.
func (r Row) Set(key string, v any) {
	if _, ok := r[key]; !ok {
		want := foldKey(key)
		for rk := range r {
			if foldKey(rk) == want {
				key = rk
				break
			}
		}
	}
	r[key] = v
}

func foldKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '_', '-':
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// ParseNumber coerces a raw value to float64. Anything that does not parse,
// including NaN and infinities, yields 0.
func ParseNumber(v any) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case json.Number:
		f = parseNumberString(x.String())
	case string:
		f = parseNumberString(x)
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseNumberString(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, " ", "")
	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		// 1.234,56
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		// 1,234.56
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-comma-1 != 3 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return parseLeadingFloat(s)
}

// parseLeadingFloat parses the longest numeric prefix of s, e.g. "100 USD".
func parseLeadingFloat(s string) float64 {
	end := 0
	seenDigit, seenDot := false, false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
			end = i + 1
		case r == '.' && !seenDot:
			seenDot = true
		case (r == '-' || r == '+') && i == 0:
		default:
			if !seenDigit {
				return 0
			}
			f, err := strconv.ParseFloat(s[:end], 64)
			if err != nil {
				return 0
			}
			return f
		}
	}
	if !seenDigit {
		return 0
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseDate coerces a raw value to a date. Falsy or unparseable input yields nil.
// Numbers are read as Unix milliseconds.
func ParseDate(v any) *time.Time {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return &x
	case *time.Time:
		if x == nil || x.IsZero() {
			return nil
		}
		t := *x
		return &t
	case string:
		return parseDateString(x)
	case float64, float32, int, int64, int32, json.Number:
		ms := ParseNumber(x)
		if ms == 0 {
			return nil
		}
		t := time.UnixMilli(int64(ms)).UTC()
		return &t
	default:
		return nil
	}
}

func parseDateString(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// ParseString renders a raw value as trimmed text.
func ParseString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// ParseBool accepts booleans, non-zero numbers and the usual truthy words.
func ParseBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "yes", "y", "on", "active":
			return true
		}
		return false
	case nil:
		return false
	default:
		return ParseNumber(x) != 0
	}
}
