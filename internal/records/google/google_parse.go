package google

import (
	"strings"

	"bizdash/internal/core"
)

func headerOf(values [][]any) []string {
	if len(values) == 0 {
		return nil
	}
	header := make([]string, len(values[0]))
	for i, v := range values[0] {
		header[i] = strings.TrimSpace(core.ParseString(v))
	}
	return header
}

// rowsFromValues turns a header row plus data rows into Rows, along with the
// 1-based sheet line of each. Blank rows are skipped; short rows leave trailing
// fields unset.
func rowsFromValues(values [][]any) ([]string, []core.Row, []int) {
	header := headerOf(values)
	if len(header) == 0 {
		return nil, nil, nil
	}
	out := make([]core.Row, 0, len(values)-1)
	lines := make([]int, 0, len(values)-1)
	for n, line := range values[1:] {
		row := core.Row{}
		empty := true
		for i, v := range line {
			if i >= len(header) {
				break
			}
			if header[i] == "" {
				continue
			}
			if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
				continue
			}
			row[header[i]] = v
			empty = false
		}
		if !empty {
			out = append(out, row)
			lines = append(lines, n+2)
		}
	}
	return header, out, lines
}

// rowToValues lays out row in header order. Unknown fields are dropped.
func rowToValues(header []string, row core.Row) []any {
	out := make([]any, len(header))
	for i, h := range header {
		v := row.Lookup(h)
		if v == nil {
			out[i] = ""
			continue
		}
		out[i] = v
	}
	return out
}

func indexByID(rows []core.Row, id string) int {
	for i, r := range rows {
		if core.ParseString(r.Lookup(core.FieldID)) == id {
			return i
		}
	}
	return -1
}
