package pipeline

import (
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"bizdash/internal/core"
)

// Group is the statistic for one bucket.
type Group struct {
	Label       string  `json:"label"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"totalAmount"`
}

// GroupStats is an insertion-ordered list of groups.
type GroupStats []Group

// Get returns the group with the given label.
func (g GroupStats) Get(label string) (Group, bool) {
	for _, gr := range g {
		if gr.Label == label {
			return gr, true
		}
	}
	return Group{}, false
}

// TotalCount sums Count over all groups.
func (g GroupStats) TotalCount() int {
	n := 0
	for _, gr := range g {
		n += gr.Count
	}
	return n
}

// accumulator keeps insertion order and sums amounts in decimal.
type accumulator struct {
	labels []string
	index  map[string]int
	counts []int
	totals []decimal.Decimal
}

func newAccumulator(capacity int) *accumulator {
	return &accumulator{
		labels: make([]string, 0, capacity),
		index:  make(map[string]int, capacity),
		counts: make([]int, 0, capacity),
		totals: make([]decimal.Decimal, 0, capacity),
	}
}

func (a *accumulator) ensure(label string) int {
	if i, ok := a.index[label]; ok {
		return i
	}
	a.index[label] = len(a.labels)
	a.labels = append(a.labels, label)
	a.counts = append(a.counts, 0)
	a.totals = append(a.totals, decimal.Zero)
	return len(a.labels) - 1
}

func (a *accumulator) add(i int, amount float64) {
	a.counts[i]++
	if amount != 0 {
		a.totals[i] = a.totals[i].Add(decimal.NewFromFloat(amount))
	}
}

func (a *accumulator) stats() GroupStats {
	out := make(GroupStats, len(a.labels))
	for i, l := range a.labels {
		total, _ := a.totals[i].Float64()
		out[i] = Group{Label: l, Count: a.counts[i], TotalAmount: total}
	}
	return out
}

func amountOf(r core.Fielder, field string) float64 {
	if field == "" {
		return 0
	}
	v := r.Field(field)
	if v.Kind() != core.KindNumber {
		return 0
	}
	return v.Num()
}

// SumField adds a numeric field across records.
func SumField[R core.Fielder](records []R, field string) float64 {
	total := decimal.Zero
	for _, r := range records {
		if a := amountOf(r, field); a != 0 {
			total = total.Add(decimal.NewFromFloat(a))
		}
	}
	f, _ := total.Float64()
	return f
}

// AggregateBy groups records by the label returned from labelOf, in first-observed
// order. Records labelled "" or All are dropped.
func AggregateBy[R core.Fielder](records []R, labelOf func(R) string, amountField string) GroupStats {
	acc := newAccumulator(8)
	for _, r := range records {
		label := labelOf(r)
		if label == "" || label == All {
			continue
		}
		acc.add(acc.ensure(label), amountOf(r, amountField))
	}
	return acc.stats()
}

// AggregateByCategory groups by the observed values of field.
func AggregateByCategory[R core.Fielder](records []R, field, amountField string) GroupStats {
	return AggregateBy(records, func(r R) string { return r.Field(field).String() }, amountField)
}

// AggregateByRange groups a numeric field into labelled ranges, in observed order.
func AggregateByRange[R core.Fielder](records []R, field string, ranges []Range, amountField string) GroupStats {
	return AggregateBy(records, func(r R) string {
		v := r.Field(field)
		if v.Kind() != core.KindNumber {
			return ""
		}
		return RangeLabelFor(ranges, v.Num())
	}, amountField)
}

// MonthLabel is the short English month name.
func MonthLabel(m time.Month) string {
	return m.String()[:3]
}

// MonthYearLabel is the composite label used when several years are selected.
func MonthYearLabel(m time.Month, year int) string {
	return MonthLabel(m) + "/" + strconv.Itoa(year)
}

// AggregateByMonth buckets records by the month of dateField. All twelve
// months are always present. With more than one year selected the skeleton is
// twelve buckets per year, labelled "Jan/2024", in calendar order. With years
// set, records from other years are skipped; records with a null date always are.
func AggregateByMonth[R core.Fielder](records []R, dateField, amountField string, years []int) GroupStats {
	years = slices.Clone(years)
	slices.Sort(years)
	years = slices.Compact(years)
	composite := len(years) > 1

	acc := newAccumulator(12 * max(1, len(years)))
	if composite {
		for _, y := range years {
			for m := time.January; m <= time.December; m++ {
				acc.ensure(MonthYearLabel(m, y))
			}
		}
	} else {
		for m := time.January; m <= time.December; m++ {
			acc.ensure(MonthLabel(m))
		}
	}

	for _, r := range records {
		v := r.Field(dateField)
		if v.Kind() != core.KindDate {
			continue
		}
		t := v.Time()
		if len(years) > 0 && !slices.Contains(years, t.Year()) {
			continue
		}
		label := MonthLabel(t.Month())
		if composite {
			label = MonthYearLabel(t.Month(), t.Year())
		}
		acc.add(acc.index[label], amountOf(r, amountField))
	}
	return acc.stats()
}
