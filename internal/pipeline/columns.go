package pipeline

import (
	"strconv"

	"bizdash/internal/core"
)

// Format controls how a column value is displayed.
type Format int

const (
	FormatText Format = iota
	FormatDate
	FormatMoney
	FormatNumber
	FormatBool
	FormatShort
)

// Column is one displayed field of a page.
type Column struct {
	Key      string
	Label    string
	Format   Format
	Sortable bool
}

// Cell renders the column value of r. Nulls render as "".
func (c Column) Cell(r core.Fielder) string {
	v := r.Field(c.Key)
	if v.IsNull() {
		return ""
	}
	switch c.Format {
	case FormatMoney:
		return core.FormatAmount(v.Num())
	case FormatShort:
		return FormatCompact(v.Num())
	case FormatNumber:
		return strconv.FormatFloat(v.Num(), 'f', -1, 64)
	case FormatBool:
		if v.Truth() {
			return "Yes"
		}
		return "No"
	default:
		return v.String()
	}
}

// Cells renders every column of r.
func Cells(cols []Column, r core.Fielder) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Cell(r)
	}
	return out
}
