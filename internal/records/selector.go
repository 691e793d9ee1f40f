package records

import (
	"fmt"
	"regexp"
	"strings"

	"bizdash/internal/core"
)

// Selector is the single-equality subset of the table API's selector
// expressions that the local backends understand.
type Selector struct {
	Field string
	Value string
}

// A quoted value doubles embedded quotes, as SelectorFor writes them.
var selectorRe = regexp.MustCompile(`^(?:Filter\(\s*[^,]+,\s*)?\[?([^\]=]+?)\]?\s*=\s*(?:"((?:[^"]|"")*)"|([^"]*?))\s*\)?$`)

// ParseSelector accepts `Filter(Users, [username] = "anna")`, `[username] = "anna"`
// and `username = anna`. The empty string selects everything.
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Selector{}, nil
	}
	m := selectorRe.FindStringSubmatch(s)
	if m == nil {
		return Selector{}, fmt.Errorf("unsupported selector %q", s)
	}
	value := m[3]
	if m[2] != "" {
		value = strings.ReplaceAll(m[2], `""`, `"`)
	}
	return Selector{Field: strings.TrimSpace(m[1]), Value: value}, nil
}

// SelectorFor builds the selector for field = value in the table API syntax.
func SelectorFor(table, field, value string) string {
	return fmt.Sprintf(`Filter(%s, [%s] = "%s")`, table, field, strings.ReplaceAll(value, `"`, `""`))
}

// IsZero reports whether the selector matches everything.
func (s Selector) IsZero() bool { return s.Field == "" }

// Match compares the row value case-insensitively.
func (s Selector) Match(r core.Row) bool {
	if s.IsZero() {
		return true
	}
	return strings.EqualFold(core.ParseString(r.Lookup(s.Field)), s.Value)
}
