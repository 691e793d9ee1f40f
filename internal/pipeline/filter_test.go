package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bizdash/internal/core"
)

func TestTextCriterion(t *testing.T) {
	records := sampleExpenses()
	fields := []string{core.FieldDescription, core.FieldProject, core.FieldPaidBy}

	got := Filter(records, Criteria{Text{Query: "BRIDGE", Fields: fields}})
	assert.Equal(t, []string{"2", "3", "5"}, ids(got))

	got = Filter(records, Criteria{Text{Query: "anna", Fields: fields}})
	assert.Equal(t, []string{"1", "4", "6"}, ids(got))

	got = Filter(records, Criteria{Text{Query: "   ", Fields: fields}})
	assert.Len(t, got, len(records), "blank query passes everything")

	got = Filter(records, Criteria{Text{Query: "zzz", Fields: fields}})
	assert.Empty(t, got)
}

func TestSelectionToggle(t *testing.T) {
	s := NewSelection(core.FieldRegion)
	assert.Equal(t, []string{All}, s.Values)

	s = s.Toggle("North")
	assert.Equal(t, []string{"North"}, s.Values)

	s = s.Toggle("South")
	assert.Equal(t, []string{"North", "South"}, s.Values)

	s = s.Toggle("North")
	assert.Equal(t, []string{"South"}, s.Values)

	s = s.Toggle("South")
	assert.Equal(t, []string{All}, s.Values)

	s = s.Toggle("East").Toggle(All)
	assert.Equal(t, []string{All}, s.Values)
}

func TestNewSelection(t *testing.T) {
	assert.Equal(t, []string{All}, NewSelection("f", "", " ").Values)
	assert.Equal(t, []string{All}, NewSelection("f", "a", All).Values)
	assert.Equal(t, []string{"a", "b"}, NewSelection("f", "a", "b", "a").Values)
}

func TestSelectionCriterion(t *testing.T) {
	records := sampleExpenses()

	all := Filter(records, Criteria{Selection{Field: core.FieldCategory, Values: []string{All}}})
	none := Filter(records, Criteria{Selection{Field: core.FieldCategory}})
	assert.Equal(t, ids(records), ids(all))
	assert.Equal(t, ids(all), ids(none), "zero selections behaves like ALL")

	got := Filter(records, Criteria{Selection{Field: core.FieldCategory, Values: []string{"Travel", "Meals"}}})
	assert.Equal(t, []string{"1", "4", "6"}, ids(got))
}

func TestYearsCriterion(t *testing.T) {
	records := sampleExpenses()
	got := Filter(records, Criteria{Years{Field: core.FieldDate, Years: []int{2023}}})
	assert.Equal(t, []string{"4"}, ids(got))

	got = Filter(records, Criteria{Years{Field: core.FieldYear, Years: []int{2024}}})
	assert.Equal(t, []string{"1", "2", "5", "6"}, ids(got))

	got = Filter(records, Criteria{Years{Field: core.FieldDate}})
	assert.Len(t, got, len(records))
}

func TestDateRangeCriterion(t *testing.T) {
	records := sampleExpenses()

	t.Run("inclusive bounds", func(t *testing.T) {
		got := Filter(records, Criteria{DateRange{Field: core.FieldDate, Start: day0(2024, 1, 10), End: day0(2024, 1, 31)}})
		assert.Equal(t, []string{"1", "5"}, ids(got))
	})

	t.Run("single bound is inactive", func(t *testing.T) {
		got := Filter(records, Criteria{DateRange{Field: core.FieldDate, Start: day0(2024, 1, 10)}})
		assert.Len(t, got, len(records))
		got = Filter(records, Criteria{DateRange{Field: core.FieldDate, End: day0(2024, 1, 10)}})
		assert.Len(t, got, len(records))
	})

	t.Run("null dates fail an active range", func(t *testing.T) {
		got := Filter(records, Criteria{DateRange{Field: core.FieldDate, Start: day0(2000, 1, 1), End: day0(2100, 1, 1)}})
		assert.NotContains(t, ids(got), "3")
		assert.Len(t, got, len(records)-1)
	})
}

func TestRangeLabelCriterion(t *testing.T) {
	projects := []core.Project{
		{ID: "a", Budget: 99_999_999},
		{ID: "b", Budget: 100_000_000},
		{ID: "c", Budget: 499_999_999},
		{ID: "d", Budget: 500_000_000},
		{ID: "e", Budget: 2_000_000_000},
	}
	pick := func(label string) []string {
		var out []string
		for _, p := range Filter(projects, Criteria{RangeLabel{Field: core.FieldBudget, Label: label, Ranges: BudgetRanges}}) {
			out = append(out, p.ID)
		}
		return out
	}
	assert.Equal(t, []string{"a"}, pick("<100M"))
	assert.Equal(t, []string{"b", "c"}, pick("100M-500M"))
	assert.Equal(t, []string{"d"}, pick("500M-1B"))
	assert.Equal(t, []string{"e"}, pick(">1B"))
	assert.Len(t, pick(All), len(projects))
	assert.Len(t, pick("bogus"), len(projects))
	assert.Equal(t, "100M-500M", RangeLabelFor(BudgetRanges, 100e6))
}

func TestEqualsCriterion(t *testing.T) {
	users := []core.User{{ID: "1", Active: true}, {ID: "2"}, {ID: "3", Active: true}}
	got := Filter(users, Criteria{Equals{Field: core.FieldActive, Value: "true"}})
	assert.Len(t, got, 2)
	assert.Len(t, Filter(users, Criteria{Equals{Field: core.FieldActive, Value: All}}), 3)
}

func TestFilterIsIdempotentAndANDed(t *testing.T) {
	records := sampleExpenses()
	criteria := Criteria{
		Text{Query: "a", Fields: []string{core.FieldDescription}},
		Selection{Field: core.FieldCategory, Values: []string{"Materials", "Travel"}},
		Years{Field: core.FieldDate, Years: []int{2024}},
	}
	once := Filter(records, criteria)
	twice := Filter(once, criteria)
	assert.Equal(t, ids(once), ids(twice))
	assert.Equal(t, []string{"1", "5"}, ids(once))
}

func TestCriteriaKeyChangesWithValues(t *testing.T) {
	a := Criteria{Selection{Field: "f", Values: []string{"x"}}}
	b := Criteria{Selection{Field: "f", Values: []string{"y"}}}
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), Criteria{Selection{Field: "f", Values: []string{"x"}}}.Key())
}
