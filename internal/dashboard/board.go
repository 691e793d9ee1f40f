package dashboard

import (
	"context"
	"net/url"
	"slices"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"bizdash/internal/cache"
	"bizdash/internal/core"
	"bizdash/internal/export"
	"bizdash/internal/log"
	"bizdash/internal/pipeline"
	"bizdash/internal/services"
)

const (
	pagerSpan      = 7
	maxControllers = 512
	controllerIdle = 30 * time.Minute
)

// Page is a dashboard screen with its records type erased for the HTTP layer.
type Page interface {
	Meta() Meta
	// Render computes the view for the viewer identified by key.
	Render(ctx context.Context, key string, q url.Values) (*Model, error)
	// Workbook computes the full view for q without touching viewer state.
	Workbook(ctx context.Context, q url.Values) (export.Workbook, error)
	Refresh(ctx context.Context) error
	Invalidate()
	// Cleaner exposes the per-viewer controller cache.
	Cleaner() cache.Cleaner
}

// Row is one rendered table row.
type Row struct {
	ID    string
	Cells []string
}

// Model is everything the page templates need.
type Model struct {
	Meta  Meta
	State ViewState

	Rows       []Row
	Page       int
	PageSize   int
	TotalPages int
	TotalItems int
	First      int
	Last       int
	HasPrev    bool
	HasNext    bool
	Pages      []int

	Groups pipeline.GroupStats
	Chart  pipeline.ChartSeries
	Total  float64

	Options map[string][]string
	Years   []int

	Version  uint64
	LoadedAt time.Time
	Cached   bool
	// Stale is set when the last refresh failed and older data is shown.
	Stale bool
}

// TotalLabel formats Total for display.
func (m *Model) TotalLabel() string { return pipeline.FormatCompact(m.Total) }

// Board is the Page implementation for records of type R.
type Board[R core.Fielder] struct {
	meta   Meta
	data   *services.DatasetService[R]
	lang   language.Tag
	logger *log.Logger

	mu          sync.Mutex
	controllers *cache.LRUCache[*pipeline.Controller[R]]
}

var _ Page = (*Board[core.Expense])(nil)

func NewBoard[R core.Fielder](meta Meta, data *services.DatasetService[R], lang language.Tag, logger *log.Logger) *Board[R] {
	if logger == nil {
		logger = log.Discard()
	}
	return &Board[R]{
		meta:        meta,
		data:        data,
		lang:        lang,
		logger:      logger.WithComponent(log.ComponentPipeline).With(log.FieldPage, meta.Slug),
		controllers: cache.NewLRUCache[*pipeline.Controller[R]](maxControllers, controllerIdle),
	}
}

// setViewTTL replaces how long an idle viewer's state is kept. Only valid
// before the first Render.
func (b *Board[R]) setViewTTL(ttl time.Duration) {
	if ttl > 0 {
		b.controllers = cache.NewLRUCache[*pipeline.Controller[R]](maxControllers, ttl)
	}
}

func (b *Board[R]) Meta() Meta { return b.meta }

func (b *Board[R]) Cleaner() cache.Cleaner { return b.controllers }

func (b *Board[R]) Invalidate() { b.data.Invalidate() }

func (b *Board[R]) Refresh(ctx context.Context) error {
	_, err := b.data.Refresh(ctx)
	return err
}

func (b *Board[R]) controller(key string) *pipeline.Controller[R] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.controllers.Get(key); ok {
		return c
	}
	c := pipeline.NewController[R](pipeline.State{Sort: b.meta.DefaultSort}, b.lang)
	b.controllers.Set(key, c)
	return c
}

// dataset returns the current records. A failed fetch with older data on hand
// is reported as stale rather than as an error.
func (b *Board[R]) dataset(ctx context.Context) (services.Dataset[R], bool, error) {
	return b.data.GetOrCurrent(ctx)
}

func (b *Board[R]) Render(ctx context.Context, key string, q url.Values) (*Model, error) {
	ds, stale, err := b.dataset(ctx)
	if err != nil {
		return nil, err
	}

	c := b.controller(key)
	if !c.Loaded() || ds.Version > c.Version() {
		c.ReplaceRecords(ds.Records, ds.Version)
	}

	// The request carries the whole view, page included. Apply swaps it in
	// atomically so concurrent requests of one viewer never mix states.
	st := ParseViewState(b.meta, q)
	full := st.State(b.meta)
	view, hit, err := c.Apply(full)
	if err != nil {
		return nil, err
	}
	// A shrunken result set can leave the requested page past the end.
	if w := view.Window; w.TotalPages > 0 && (w.Page > w.TotalPages || w.Page < 1) {
		full.Pagination.Page = min(max(w.Page, 1), w.TotalPages)
		if view, hit, err = c.Apply(full); err != nil {
			return nil, err
		}
	}
	st.Page = view.Window.Page

	m := b.model(view, st)
	m.Cached = hit
	m.Stale = stale
	m.LoadedAt = ds.LoadedAt
	m.Options, m.Years = b.options(ds.Records)
	b.logger.DebugContext(ctx, "View rendered",
		log.FieldRecords, m.TotalItems,
		log.FieldVersion, m.Version,
		"cache_hit", hit)
	return m, nil
}

func (b *Board[R]) model(v *pipeline.View[R], st ViewState) *Model {
	w := v.Window
	m := &Model{
		Meta:       b.meta,
		State:      st,
		Page:       w.Page,
		PageSize:   w.PageSize,
		TotalPages: w.TotalPages,
		TotalItems: w.TotalItems,
		First:      w.FirstIndex(),
		Last:       w.LastIndex(),
		HasPrev:    w.HasPrev(),
		HasNext:    w.HasNext(),
		Pages:      w.Pages(pagerSpan),
		Groups:     v.Groups,
		Chart:      v.Chart,
		Total:      v.Total,
		Version:    v.Version,
	}
	m.Rows = make([]Row, len(w.Items))
	for i, r := range w.Items {
		m.Rows[i] = Row{ID: r.Field(core.FieldID).String(), Cells: pipeline.Cells(b.meta.Columns, r)}
	}
	return m
}

// options lists the observed values of every select field and the observed
// years of the date field, over the whole record set.
func (b *Board[R]) options(records []R) (map[string][]string, []int) {
	opts := make(map[string][]string, len(b.meta.Selects))
	coll := collate.New(b.lang)
	for _, s := range b.meta.Selects {
		groups := pipeline.AggregateByCategory(records, s.Field, "")
		vals := make([]string, len(groups))
		for i, g := range groups {
			vals[i] = g.Label
		}
		coll.SortStrings(vals)
		opts[s.Field] = vals
	}

	var years []int
	if b.meta.DateField != "" {
		for _, r := range records {
			if v := r.Field(b.meta.DateField); v.Kind() == core.KindDate {
				years = append(years, v.Time().Year())
			}
		}
		slices.Sort(years)
		years = slices.Compact(years)
		slices.Reverse(years)
	}
	return opts, years
}

func (b *Board[R]) Workbook(ctx context.Context, q url.Values) (export.Workbook, error) {
	ds, _, err := b.dataset(ctx)
	if err != nil {
		return export.Workbook{}, err
	}
	st := ParseViewState(b.meta, q)
	view, err := pipeline.Compute(ds.Records, st.State(b.meta), b.lang)
	if err != nil {
		return export.Workbook{}, err
	}
	view.Version = ds.Version
	return export.Build(b.meta.Title, b.meta.Columns, view), nil
}
