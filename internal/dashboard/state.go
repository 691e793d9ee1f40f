package dashboard

import (
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"bizdash/internal/core"
	"bizdash/internal/pipeline"
)

// Query parameter names.
const (
	ParamSearch     = "q"
	ParamSelect     = "sel."
	ParamToggle     = "toggle"
	ParamYear       = "year"
	ParamFrom       = "from"
	ParamTo         = "to"
	ParamBucket     = "bucket"
	ParamEquals     = "eq."
	ParamSort       = "sort"
	ParamDir        = "dir"
	ParamToggleSort = "togglesort"
	ParamPage       = "page"
	ParamSize       = "size"
	ParamGroup      = "group"
)

// ViewState is the filter, sort, pagination and grouping choice of one
// request, decoded from its query string.
type ViewState struct {
	Search     string
	Selections []pipeline.Selection
	Years      []int
	From, To   *time.Time
	Bucket     string
	Equals     map[string]string
	Sort       pipeline.SortSpec
	Page       int
	PageSize   int
	Group      string
}

// ParseViewState decodes q against m. Unknown fields and malformed values are
// ignored; a "toggle" parameter of the form field:value is applied to the
// current selection of that field and "togglesort" to the sort spec.
func ParseViewState(m Meta, q url.Values) ViewState {
	st := ViewState{
		Search:   strings.TrimSpace(q.Get(ParamSearch)),
		Bucket:   strings.TrimSpace(q.Get(ParamBucket)),
		Equals:   make(map[string]string),
		Page:     1,
		PageSize: pipeline.DefaultPageSize,
		Sort:     m.DefaultSort,
	}

	toggleField, toggleValue, hasToggle := strings.Cut(q.Get(ParamToggle), ":")
	for _, s := range m.Selects {
		sel := pipeline.NewSelection(s.Field, q[ParamSelect+s.Field]...)
		if hasToggle && toggleField == s.Field {
			sel = sel.Toggle(toggleValue)
		}
		st.Selections = append(st.Selections, sel)
	}

	for _, raw := range q[ParamYear] {
		if y, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && y > 0 && !slices.Contains(st.Years, y) {
			st.Years = append(st.Years, y)
		}
	}
	slices.Sort(st.Years)

	if m.DateField != "" {
		st.From = core.ParseDate(q.Get(ParamFrom))
		st.To = core.ParseDate(q.Get(ParamTo))
	}

	for _, t := range m.Toggles {
		if v := strings.TrimSpace(q.Get(ParamEquals + t.Field)); v != "" && v != pipeline.All {
			st.Equals[t.Field] = v
		}
	}

	if f := q.Get(ParamSort); m.sortable(f) {
		st.Sort = pipeline.SortSpec{Field: f, Direction: pipeline.ParseDirection(q.Get(ParamDir))}
	}
	toggledSort := false
	if f := q.Get(ParamToggleSort); m.sortable(f) {
		st.Sort = st.Sort.Toggle(f)
		toggledSort = true
	}

	if p, err := strconv.Atoi(q.Get(ParamPage)); err == nil {
		st.Page = p
	}
	// One-shot toggles change the result set, so they restart at page 1.
	if hasToggle || toggledSort {
		st.Page = 1
	}
	if n, err := strconv.Atoi(q.Get(ParamSize)); err == nil && pipeline.ValidPageSize(n) {
		st.PageSize = n
	}

	if g, ok := m.grouping(q.Get(ParamGroup)); ok {
		st.Group = g.Key()
	} else if len(m.Groupings) > 0 {
		st.Group = m.Groupings[0].Key()
	}
	return st
}

// Selection returns the current selection of field.
func (s ViewState) Selection(field string) pipeline.Selection {
	for _, sel := range s.Selections {
		if sel.Field == field {
			return sel
		}
	}
	return pipeline.NewSelection(field)
}

// HasYear reports whether y is selected.
func (s ViewState) HasYear(y int) bool { return slices.Contains(s.Years, y) }

// Criteria builds the filter criteria in a fixed order so equal states have
// equal keys.
func (s ViewState) Criteria(m Meta) pipeline.Criteria {
	c := pipeline.Criteria{pipeline.Text{Query: s.Search, Fields: m.SearchFields}}
	for _, sel := range s.Selections {
		c = append(c, sel)
	}
	if m.DateField != "" {
		c = append(c,
			pipeline.Years{Field: m.DateField, Years: s.Years},
			pipeline.DateRange{Field: m.DateField, Start: s.From, End: s.To})
	}
	if m.RangeField != "" {
		c = append(c, pipeline.RangeLabel{Field: m.RangeField, Label: s.Bucket, Ranges: m.Ranges})
	}
	for _, t := range m.Toggles {
		c = append(c, pipeline.Equals{Field: t.Field, Value: s.Equals[t.Field]})
	}
	return c
}

// Grouping resolves the selected group mode against the page options.
func (s ViewState) Grouping(m Meta) pipeline.Grouping {
	g, ok := m.grouping(s.Group)
	if !ok {
		return pipeline.Grouping{AmountField: m.AmountField}
	}
	out := pipeline.Grouping{Mode: g.Mode, Field: g.Field, AmountField: m.AmountField}
	switch g.Mode {
	case pipeline.GroupByMonth:
		out.Years = s.Years
	case pipeline.GroupByRange:
		out.Ranges = m.Ranges
	}
	return out
}

// State is the full pipeline state for this request.
func (s ViewState) State(m Meta) pipeline.State {
	return pipeline.State{
		Criteria:   s.Criteria(m),
		Sort:       s.Sort,
		Pagination: pipeline.Pagination{Page: s.Page, PageSize: s.PageSize},
		Grouping:   s.Grouping(m),
	}
}

// Values encodes the state canonically, without one-shot toggle parameters.
func (s ViewState) Values() url.Values {
	v := url.Values{}
	if s.Search != "" {
		v.Set(ParamSearch, s.Search)
	}
	for _, sel := range s.Selections {
		if sel.Active() {
			v[ParamSelect+sel.Field] = slices.Clone(sel.Values)
		}
	}
	for _, y := range s.Years {
		v.Add(ParamYear, strconv.Itoa(y))
	}
	if s.From != nil {
		v.Set(ParamFrom, s.From.Format(core.DateLayout))
	}
	if s.To != nil {
		v.Set(ParamTo, s.To.Format(core.DateLayout))
	}
	if s.Bucket != "" && s.Bucket != pipeline.All {
		v.Set(ParamBucket, s.Bucket)
	}
	fields := make([]string, 0, len(s.Equals))
	for f := range s.Equals {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		v.Set(ParamEquals+f, s.Equals[f])
	}
	if s.Sort.Field != "" {
		v.Set(ParamSort, s.Sort.Field)
		v.Set(ParamDir, string(s.Sort.Direction))
	}
	if s.Page != 1 {
		v.Set(ParamPage, strconv.Itoa(s.Page))
	}
	if s.PageSize != pipeline.DefaultPageSize {
		v.Set(ParamSize, strconv.Itoa(s.PageSize))
	}
	if s.Group != "" {
		v.Set(ParamGroup, s.Group)
	}
	return v
}

// Encode is Values().Encode().
func (s ViewState) Encode() string { return s.Values().Encode() }

// WithPage returns the encoded state moved to page p.
func (s ViewState) WithPage(p int) string {
	s.Page = p
	return s.Encode()
}

// WithSortToggled returns the encoded state with the sort toggled on field
// and the page reset.
func (s ViewState) WithSortToggled(field string) string {
	s.Sort = s.Sort.Toggle(field)
	s.Page = 1
	return s.Encode()
}

// WithToggle returns the encoded state with value toggled in the selection of
// field and the page reset.
func (s ViewState) WithToggle(field, value string) string {
	sels := make([]pipeline.Selection, len(s.Selections))
	for i, sel := range s.Selections {
		if sel.Field == field {
			sel = sel.Toggle(value)
		}
		sels[i] = sel
	}
	s.Selections = sels
	s.Page = 1
	return s.Encode()
}
