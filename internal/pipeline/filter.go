package pipeline

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"bizdash/internal/core"
)

// All is the multi-select sentinel meaning "no restriction".
const All = "ALL"

// Criterion is one filter rule. Inactive criteria pass every record.
type Criterion interface {
	Match(r core.Fielder) bool
	Active() bool
	// Key identifies the criterion and its current value.
	Key() string
}

// Criteria is AND-combined.
type Criteria []Criterion

// Match reports whether r satisfies every active criterion.
func (c Criteria) Match(r core.Fielder) bool {
	for _, cr := range c {
		if cr.Active() && !cr.Match(r) {
			return false
		}
	}
	return true
}

// Key concatenates the keys of all criteria in order.
func (c Criteria) Key() string {
	keys := make([]string, len(c))
	for i, cr := range c {
		keys[i] = cr.Key()
	}
	return strings.Join(keys, "&")
}

// Filter returns the records matching criteria, preserving input order.
func Filter[R core.Fielder](records []R, criteria Criteria) []R {
	out := make([]R, 0, len(records))
	for _, r := range records {
		if criteria.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// Text is a case-insensitive substring search OR-ed across Fields.
type Text struct {
	Query  string
	Fields []string
}

func (t Text) Active() bool { return strings.TrimSpace(t.Query) != "" }

func (t Text) Match(r core.Fielder) bool {
	q := fold(strings.TrimSpace(t.Query))
	for _, f := range t.Fields {
		v := r.Field(f)
		if v.IsNull() {
			continue
		}
		if strings.Contains(fold(v.String()), q) {
			return true
		}
	}
	return false
}

func (t Text) Key() string {
	return "q[" + strings.Join(t.Fields, ",") + "]=" + t.Query
}

// Selection is a multi-select over the string form of Field.
// An empty selection and a selection containing All both pass everything.
type Selection struct {
	Field  string
	Values []string
}

// NewSelection builds a selection, collapsing to All when nothing specific is chosen.
func NewSelection(field string, values ...string) Selection {
	s := Selection{Field: field}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(s.Values, v) {
			continue
		}
		if v == All {
			return Selection{Field: field, Values: []string{All}}
		}
		s.Values = append(s.Values, v)
	}
	if len(s.Values) == 0 {
		s.Values = []string{All}
	}
	return s
}

// Toggle flips v in the selection. Choosing a value drops All, removing the
// last value reverts to All, and choosing All clears everything else.
func (s Selection) Toggle(v string) Selection {
	if v == All {
		return Selection{Field: s.Field, Values: []string{All}}
	}
	next := make([]string, 0, len(s.Values)+1)
	found := false
	for _, cur := range s.Values {
		switch {
		case cur == All:
		case cur == v:
			found = true
		default:
			next = append(next, cur)
		}
	}
	if !found {
		next = append(next, v)
	}
	if len(next) == 0 {
		next = append(next, All)
	}
	return Selection{Field: s.Field, Values: next}
}

// Selected reports whether v is currently chosen.
func (s Selection) Selected(v string) bool {
	return slices.Contains(s.Values, v)
}

func (s Selection) Active() bool {
	return len(s.Values) > 0 && !slices.Contains(s.Values, All)
}

func (s Selection) Match(r core.Fielder) bool {
	v := r.Field(s.Field)
	if v.IsNull() {
		return false
	}
	return slices.Contains(s.Values, v.String())
}

func (s Selection) Key() string {
	return "in[" + s.Field + "]=" + strings.Join(s.Values, "|")
}

// Years restricts a date or numeric year field to a set of years.
type Years struct {
	Field string
	Years []int
}

func (y Years) Active() bool { return len(y.Years) > 0 }

func (y Years) Match(r core.Fielder) bool {
	v := r.Field(y.Field)
	switch v.Kind() {
	case core.KindDate:
		return slices.Contains(y.Years, v.Time().Year())
	case core.KindNumber:
		return slices.Contains(y.Years, int(v.Num()))
	}
	return false
}

func (y Years) Key() string {
	parts := make([]string, len(y.Years))
	for i, yr := range y.Years {
		parts[i] = strconv.Itoa(yr)
	}
	return "year[" + y.Field + "]=" + strings.Join(parts, "|")
}

// DateRange is an inclusive calendar-day range. It only applies when both
// bounds are set; records with a null date then fail.
type DateRange struct {
	Field string
	Start *time.Time
	End   *time.Time
}

func (d DateRange) Active() bool { return d.Start != nil && d.End != nil }

func day(t time.Time) time.Time {
	y, m, dd := t.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func (d DateRange) Match(r core.Fielder) bool {
	v := r.Field(d.Field)
	if v.Kind() != core.KindDate {
		return false
	}
	t := day(v.Time())
	return !t.Before(day(*d.Start)) && !t.After(day(*d.End))
}

func (d DateRange) Key() string {
	f := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format(core.DateLayout)
	}
	return "range[" + d.Field + "]=" + f(d.Start) + ".." + f(d.End)
}

// Range is a labelled half-open numeric interval [Min, Max).
type Range struct {
	Label string
	Min   float64
	Max   float64
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v < r.Max
}

// BudgetRanges are the project budget buckets.
var BudgetRanges = []Range{
	{Label: "<100M", Min: math.Inf(-1), Max: 100e6},
	{Label: "100M-500M", Min: 100e6, Max: 500e6},
	{Label: "500M-1B", Min: 500e6, Max: 1e9},
	{Label: ">1B", Min: 1e9, Max: math.Inf(1)},
}

// RangeLabelFor returns the label of the range containing v, or "".
func RangeLabelFor(ranges []Range, v float64) string {
	for _, r := range ranges {
		if r.Contains(v) {
			return r.Label
		}
	}
	return ""
}

// RangeLabel filters a numeric field by a labelled range. All, the empty label
// and labels not present in Ranges pass everything.
type RangeLabel struct {
	Field  string
	Label  string
	Ranges []Range
}

func (rl RangeLabel) lookup() (Range, bool) {
	for _, r := range rl.Ranges {
		if r.Label == rl.Label {
			return r, true
		}
	}
	return Range{}, false
}

func (rl RangeLabel) Active() bool {
	if rl.Label == "" || rl.Label == All {
		return false
	}
	_, ok := rl.lookup()
	return ok
}

func (rl RangeLabel) Match(r core.Fielder) bool {
	rng, ok := rl.lookup()
	if !ok {
		return true
	}
	v := r.Field(rl.Field)
	if v.Kind() != core.KindNumber {
		return false
	}
	return rng.Contains(v.Num())
}

func (rl RangeLabel) Key() string {
	return "bucket[" + rl.Field + "]=" + rl.Label
}

// Equals matches a single scalar value such as status or active flag.
type Equals struct {
	Field string
	Value string
}

func (e Equals) Active() bool { return e.Value != "" && e.Value != All }

func (e Equals) Match(r core.Fielder) bool {
	return r.Field(e.Field).String() == e.Value
}

func (e Equals) Key() string { return "eq[" + e.Field + "]=" + e.Value }
