// Package export serializes a computed page view into named sheets. It only
// consumes pipeline output; it never filters or sorts on its own.
package export

import (
	"context"
	"strconv"
	"strings"

	"bizdash/internal/core"
	"bizdash/internal/pipeline"
)

// Sheet is a named grid with a header row.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Workbook is an ordered set of sheets.
type Workbook struct {
	Name   string
	Sheets []Sheet
}

// Writer persists a workbook somewhere.
type Writer interface {
	Write(ctx context.Context, wb Workbook) error
}

const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer("[", "(", "]", ")", ":", "-", "*", "", "?", "", "/", "-", `\`, "-")

// SheetName makes s usable as a tab name: no reserved characters and at most
// 31 runes.
func SheetName(s string) string {
	s = strings.TrimSpace(sheetNameReplacer.Replace(s))
	if s == "" {
		return "Sheet"
	}
	r := []rune(s)
	if len(r) > maxSheetName {
		r = r[:maxSheetName]
	}
	return string(r)
}

// Build returns a workbook with every filtered and sorted row of v and, when
// the view was grouped, a summary sheet of the groups.
func Build[R core.Fielder](title string, cols []pipeline.Column, v *pipeline.View[R]) Workbook {
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Label
	}
	data := Sheet{Name: SheetName(title), Header: header}
	if v != nil {
		data.Rows = make([][]string, 0, len(v.Rows))
		for _, r := range v.Rows {
			data.Rows = append(data.Rows, pipeline.Cells(cols, r))
		}
	}

	wb := Workbook{Name: title, Sheets: []Sheet{data}}
	if v != nil && len(v.Groups) > 0 {
		wb.Sheets = append(wb.Sheets, SummarySheet(SheetName(title+" summary"), v.Groups))
	}
	return wb
}

// SummarySheet lists group label, count and total amount.
func SummarySheet(name string, groups pipeline.GroupStats) Sheet {
	s := Sheet{Name: name, Header: []string{"Group", "Count", "Total"}}
	for _, g := range groups {
		s.Rows = append(s.Rows, []string{g.Label, strconv.Itoa(g.Count), strconv.FormatFloat(g.TotalAmount, 'f', 2, 64)})
	}
	return s
}
