package google

import (
	"testing"

	"bizdash/internal/core"
)

func TestRowsFromValues(t *testing.T) {
	values := [][]any{
		{"id", "Description", "Amount", ""},
		{"1", "Fuel", "12.50", "ignored"},
		{"", "", ""},
		{"3", "Hotel"},
	}
	header, rows, lines := rowsFromValues(values)
	if len(header) != 4 {
		t.Fatalf("header = %v", header)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %v", len(rows), rows)
	}
	if lines[0] != 2 || lines[1] != 4 {
		t.Errorf("sheet lines = %v, want [2 4]", lines)
	}
	e := core.NormalizeExpense(rows[0])
	if e.ID != "1" || e.Description != "Fuel" || e.Amount != 12.5 {
		t.Errorf("unexpected expense %+v", e)
	}
	if _, ok := rows[1]["Amount"]; ok {
		t.Errorf("short row should leave Amount unset")
	}
}

func TestRowsFromValuesEmpty(t *testing.T) {
	header, rows, _ := rowsFromValues(nil)
	if header != nil || rows != nil {
		t.Errorf("expected nils, got %v %v", header, rows)
	}
}

func TestRowToValuesFollowsHeader(t *testing.T) {
	header := []string{"id", "Amount", "Category", "Note"}
	row := core.Row{"amount": 5.0, "category": "Travel", "id": "x", "extra": "dropped"}
	got := rowToValues(header, row)
	want := []any{"x", 5.0, "Travel", ""}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("col %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestIndexByID(t *testing.T) {
	rows := []core.Row{{"id": "a"}, {"ID": "b"}}
	if indexByID(rows, "b") != 1 {
		t.Errorf("expected index 1")
	}
	if indexByID(rows, "z") != -1 {
		t.Errorf("expected -1")
	}
}

func TestA1QuotesSheetNames(t *testing.T) {
	if got := A1("Expenses", "A:ZZ"); got != "'Expenses'!A:ZZ" {
		t.Errorf("A1 = %q", got)
	}
	if got := A1("Bob's", "1:1"); got != "'Bob''s'!1:1" {
		t.Errorf("A1 = %q", got)
	}
}
