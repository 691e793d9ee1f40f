// Package dashboard binds each statistics page to its table, columns, filter
// controls and groupings, and turns request query strings into pipeline state.
package dashboard

import (
	"errors"

	"bizdash/internal/pipeline"
)

// ErrUnknownPage is returned for a slug no page is registered under.
var ErrUnknownPage = errors.New("unknown page")

// Select is a multi-select filter control over a categorical field.
type Select struct {
	Field string
	Label string
}

// Toggle is a single-value filter such as status or an active flag.
type Toggle struct {
	Field   string
	Label   string
	Options []string
}

// GroupOption is one grouping offered on a page.
type GroupOption struct {
	Mode  pipeline.GroupMode
	Field string
	Label string
}

// Meta describes a page. It is static configuration.
type Meta struct {
	Slug  string
	Title string
	Table string

	Columns      []pipeline.Column
	SearchFields []string
	Selects      []Select
	Toggles      []Toggle

	// DateField drives the year filter, the date range and month grouping.
	DateField string
	// AmountField is summed per group and in the page total.
	AmountField string

	// RangeField and Ranges enable the numeric bucket filter.
	RangeField string
	Ranges     []pipeline.Range

	Groupings   []GroupOption
	DefaultSort pipeline.SortSpec

	// Form names the create form template, empty when records are read-only here.
	Form string
}

// Column returns the column with key.
func (m Meta) Column(key string) (pipeline.Column, bool) {
	for _, c := range m.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return pipeline.Column{}, false
}

func (m Meta) sortable(key string) bool {
	c, ok := m.Column(key)
	return ok && c.Sortable
}

// Key identifies the option in query strings: the field for category
// groupings, the mode otherwise.
func (g GroupOption) Key() string {
	if g.Mode == pipeline.GroupByCategory {
		return g.Field
	}
	return string(g.Mode)
}

func (m Meta) grouping(key string) (GroupOption, bool) {
	for _, g := range m.Groupings {
		if g.Key() == key {
			return g, true
		}
	}
	return GroupOption{}, false
}
