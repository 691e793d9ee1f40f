package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"bizdash/internal/core"
	"bizdash/internal/pipeline"
)

func day(y, m, d int) *time.Time {
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return &t
}

var columns = []pipeline.Column{
	{Key: core.FieldDate, Label: "Date", Format: pipeline.FormatDate},
	{Key: core.FieldDescription, Label: "Description"},
	{Key: core.FieldAmount, Label: "Amount", Format: pipeline.FormatMoney},
}

func sampleView(t *testing.T) *pipeline.View[core.Expense] {
	t.Helper()
	recs := []core.Expense{
		{ID: "1", Date: day(2024, 1, 5), Description: "Fuel", Category: "Travel", Amount: 1200},
		{ID: "2", Date: day(2024, 1, 9), Description: "Paper", Category: "Office", Amount: 30.5},
		{ID: "3", Date: day(2024, 2, 1), Description: "Hotel", Category: "Travel", Amount: 300},
	}
	st := pipeline.State{
		Criteria:   pipeline.Criteria{pipeline.NewSelection(core.FieldCategory, "Travel")},
		Sort:       pipeline.SortSpec{Field: core.FieldAmount, Direction: pipeline.Desc},
		Pagination: pipeline.Pagination{Page: 1, PageSize: 1},
		Grouping:   pipeline.Grouping{Mode: pipeline.GroupByCategory, Field: core.FieldCategory, AmountField: core.FieldAmount},
	}
	v, err := pipeline.Compute(recs, st, language.English)
	require.NoError(t, err)
	return v
}

func TestBuildUsesAllFilteredRows(t *testing.T) {
	wb := Build("Expenses", columns, sampleView(t))

	require.Len(t, wb.Sheets, 2)
	data := wb.Sheets[0]
	assert.Equal(t, "Expenses", data.Name)
	assert.Equal(t, []string{"Date", "Description", "Amount"}, data.Header)
	// Every filtered row is exported, not just the current page.
	require.Len(t, data.Rows, 2)
	assert.Equal(t, []string{"2024-01-05", "Fuel", "1,200.00"}, data.Rows[0])
	assert.Equal(t, []string{"2024-02-01", "Hotel", "300.00"}, data.Rows[1])

	sum := wb.Sheets[1]
	assert.Equal(t, "Expenses summary", sum.Name)
	assert.Equal(t, [][]string{{"Travel", "2", "1500.00"}}, sum.Rows)
}

func TestBuildWithoutGroups(t *testing.T) {
	wb := Build("Users", columns, &pipeline.View[core.Expense]{})
	assert.Len(t, wb.Sheets, 1)

	wb = Build[core.Expense]("Nil", columns, nil)
	assert.Len(t, wb.Sheets, 1)
	assert.Empty(t, wb.Sheets[0].Rows)
}

func TestSheetName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "Sheet"},
		{"Q1/Q2 [draft]", "Q1-Q2 (draft)"},
		{"a*b?c", "abc"},
		{strings.Repeat("x", 40), strings.Repeat("x", 31)},
		{"Income: 2024", "Income- 2024"},
	}
	for _, tt := range tests {
		if got := SheetName(tt.in); got != tt.want {
			t.Errorf("SheetName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestZipWriter(t *testing.T) {
	var buf bytes.Buffer
	wb := Build("Expenses", columns, sampleView(t))
	wb.Sheets = append(wb.Sheets, Sheet{Name: "Expenses", Header: []string{"dup"}})
	require.NoError(t, NewZipWriter(&buf).Write(context.Background(), wb))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)
	assert.Equal(t, "Expenses.csv", zr.File[0].Name)
	assert.Equal(t, "Expenses summary.csv", zr.File[1].Name)
	assert.Equal(t, "Expenses (2).csv", zr.File[2].Name)

	f, err := zr.File[0].Open()
	require.NoError(t, err)
	defer f.Close()
	raw, err := io.ReadAll(f)
	require.NoError(t, err)
	recs, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Description", "Amount"}, recs[0])
	assert.Len(t, recs, 3)
}

func TestZipWriterHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewZipWriter(io.Discard).Write(ctx, Workbook{Sheets: []Sheet{{Name: "a"}}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSheetValues(t *testing.T) {
	got := sheetValues(Sheet{Header: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}})
	assert.Equal(t, [][]any{{"a", "b"}, {"1", "2"}}, got)
}

func TestNewSheetsWriterValidates(t *testing.T) {
	_, err := NewSheetsWriter(nil, "id", nil)
	assert.Error(t, err)
}
