package pipeline

import (
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"bizdash/internal/core"
)

// GroupMode selects how the filtered set is bucketed for summaries.
type GroupMode string

const (
	GroupNone       GroupMode = ""
	GroupByMonth    GroupMode = "month"
	GroupByCategory GroupMode = "category"
	GroupByRange    GroupMode = "range"
)

// Grouping configures the aggregation step.
type Grouping struct {
	Mode        GroupMode
	Field       string
	AmountField string
	Years       []int
	Ranges      []Range
}

func (g Grouping) Key() string {
	var b strings.Builder
	b.WriteString("group=")
	b.WriteString(string(g.Mode))
	b.WriteByte(':')
	b.WriteString(g.Field)
	b.WriteByte(':')
	b.WriteString(g.AmountField)
	for _, y := range g.Years {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(y))
	}
	for _, r := range g.Ranges {
		b.WriteByte(';')
		b.WriteString(r.Label)
	}
	return b.String()
}

// Aggregate applies g to records.
func Aggregate[R core.Fielder](records []R, g Grouping) GroupStats {
	switch g.Mode {
	case GroupByMonth:
		return AggregateByMonth(records, g.Field, g.AmountField, g.Years)
	case GroupByCategory:
		return AggregateByCategory(records, g.Field, g.AmountField)
	case GroupByRange:
		return AggregateByRange(records, g.Field, g.Ranges, g.AmountField)
	default:
		return GroupStats{}
	}
}

// State is everything a view depends on besides the record set.
type State struct {
	Criteria   Criteria
	Sort       SortSpec
	Pagination Pagination
	Grouping   Grouping
}

func (s State) Key() string {
	return s.Criteria.Key() + "|" + s.Sort.Key() + "|" + s.Pagination.Key() + "|" + s.Grouping.Key()
}

// View is the output of one pipeline run. It must be treated as read-only.
type View[R any] struct {
	Rows    []R
	Window  PageWindow[R]
	Groups  GroupStats
	Chart   ChartSeries
	Total   float64
	Version uint64
}

// Compute runs filter, sort, paginate and aggregate over records.
func Compute[R core.Fielder](records []R, st State, lang language.Tag) (*View[R], error) {
	rows := Sort(Filter(records, st.Criteria), st.Sort, lang)
	window, err := Paginate(rows, st.Pagination.Page, st.Pagination.PageSize)
	if err != nil {
		return nil, err
	}
	groups := Aggregate(rows, st.Grouping)
	return &View[R]{
		Rows:   rows,
		Window: window,
		Groups: groups,
		Chart:  ToChartSeries(groups),
		Total:  SumField(rows, st.Grouping.AmountField),
	}, nil
}

type memoResult[R any] struct {
	view *View[R]
	err  error
}

// Controller owns the record set and view state of one page. Each slot is
// replaced wholesale and Result recomputes on demand, memoized on the inputs.
// It is safe for concurrent use.
type Controller[R core.Fielder] struct {
	mu         sync.Mutex
	records    []R
	version    uint64
	generation uint64
	state      State
	lang       language.Tag
	memo       *Memo[memoResult[R]]
}

// NewController starts with no records and the given initial state.
func NewController[R core.Fielder](initial State, lang language.Tag) *Controller[R] {
	if initial.Pagination.PageSize <= 0 {
		initial.Pagination.PageSize = DefaultPageSize
	}
	if initial.Pagination.Page < 1 {
		initial.Pagination.Page = 1
	}
	return &Controller[R]{
		state: initial,
		lang:  lang,
		memo:  NewMemo[memoResult[R]](16, 0),
	}
}

// ReplaceRecords swaps in a new record set.
func (c *Controller[R]) ReplaceRecords(records []R, version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = records
	c.version = version
	c.generation++
	c.memo.Reset()
}

// Version is the version passed to the last ReplaceRecords.
func (c *Controller[R]) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Loaded reports whether a record set has been supplied.
func (c *Controller[R]) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation > 0
}

// SetCriteria replaces the filter criteria. A change resets the page to 1 and
// is reported to the caller.
func (c *Controller[R]) SetCriteria(criteria Criteria) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := criteria.Key() != c.state.Criteria.Key()
	c.state.Criteria = criteria
	if changed {
		c.state.Pagination.Page = 1
	}
	return changed
}

func (c *Controller[R]) SetSort(spec SortSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Sort = spec
}

// ToggleSort applies SortSpec.Toggle and returns the new spec.
func (c *Controller[R]) ToggleSort(field string) SortSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Sort = c.state.Sort.Toggle(field)
	return c.state.Sort
}

// SetPage moves to page p without clamping.
func (c *Controller[R]) SetPage(p int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Pagination.Page = p
}

// SetPageSize changes the page size and resets to page 1.
func (c *Controller[R]) SetPageSize(size int) error {
	if size <= 0 {
		return ErrInvalidPageSize
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if size != c.state.Pagination.PageSize {
		c.state.Pagination = Pagination{Page: 1, PageSize: size}
	}
	return nil
}

func (c *Controller[R]) SetGrouping(g Grouping) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Grouping = g
}

// State returns a copy of the current view state.
func (c *Controller[R]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Apply replaces every state slot at once and returns the view for st. The
// swap and the snapshot happen under one lock, so each caller gets the view of
// the state it passed even when others apply their own concurrently.
func (c *Controller[R]) Apply(st State) (*View[R], bool, error) {
	if st.Pagination.PageSize <= 0 {
		return nil, false, ErrInvalidPageSize
	}
	c.mu.Lock()
	c.state = st
	snap := c.snapshot()
	c.mu.Unlock()
	return c.compute(snap)
}

// Result returns the view for the current inputs. The second value reports
// whether it came from the memo.
func (c *Controller[R]) Result() (*View[R], bool, error) {
	c.mu.Lock()
	snap := c.snapshot()
	c.mu.Unlock()
	return c.compute(snap)
}

type snapshot[R any] struct {
	records    []R
	version    uint64
	generation uint64
	state      State
}

// snapshot copies the inputs of a run. Caller holds mu.
func (c *Controller[R]) snapshot() snapshot[R] {
	return snapshot[R]{records: c.records, version: c.version, generation: c.generation, state: c.state}
}

func (c *Controller[R]) compute(s snapshot[R]) (*View[R], bool, error) {
	res, hit := c.memo.Do(func() memoResult[R] {
		v, err := Compute(s.records, s.state, c.lang)
		if v != nil {
			v.Version = s.version
		}
		return memoResult[R]{view: v, err: err}
	}, strconv.FormatUint(s.generation, 10), c.lang.String(), s.state.Key())
	return res.view, hit, res.err
}
