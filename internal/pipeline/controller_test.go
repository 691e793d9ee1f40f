package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"bizdash/internal/core"
)

func newExpenseController() *Controller[core.Expense] {
	c := NewController[core.Expense](State{
		Sort:     SortSpec{Field: core.FieldDate, Direction: Asc},
		Grouping: Grouping{Mode: GroupByCategory, Field: core.FieldCategory, AmountField: core.FieldAmount},
	}, language.Und)
	c.ReplaceRecords(sampleExpenses(), 1)
	return c
}

func TestControllerDefaults(t *testing.T) {
	c := NewController[core.Expense](State{}, language.Und)
	st := c.State()
	assert.Equal(t, 1, st.Pagination.Page)
	assert.Equal(t, DefaultPageSize, st.Pagination.PageSize)
	assert.False(t, c.Loaded())

	v, _, err := c.Result()
	require.NoError(t, err)
	assert.Empty(t, v.Rows)
	assert.Equal(t, 0, v.Window.TotalPages)
}

func TestControllerResult(t *testing.T) {
	c := newExpenseController()
	v, hit, err := c.Result()
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, uint64(1), v.Version)
	assert.Equal(t, []string{"4", "1", "5", "2", "6", "3"}, ids(v.Rows))
	assert.Len(t, v.Groups, 3)
	assert.Equal(t, []string{"Travel", "Materials", "Meals"}, v.Chart.Labels)
	assert.Equal(t, 13515.0, v.Total)

	_, hit, err = c.Result()
	require.NoError(t, err)
	assert.True(t, hit, "unchanged inputs are served from the memo")
}

func TestControllerCriteriaChangeResetsPage(t *testing.T) {
	c := newExpenseController()
	require.NoError(t, c.SetPageSize(2))
	c.SetPage(3)
	assert.Equal(t, 3, c.State().Pagination.Page)

	criteria := Criteria{Selection{Field: core.FieldCategory, Values: []string{"Travel"}}}
	assert.True(t, c.SetCriteria(criteria))
	assert.Equal(t, 1, c.State().Pagination.Page)

	c.SetPage(2)
	assert.False(t, c.SetCriteria(Criteria{Selection{Field: core.FieldCategory, Values: []string{"Travel"}}}))
	assert.Equal(t, 2, c.State().Pagination.Page, "same criteria keeps the page")

	v, _, err := c.Result()
	require.NoError(t, err)
	assert.Empty(t, v.Window.Items, "page 2 of a single page is not clamped")
	assert.Equal(t, 1, v.Window.TotalPages)
}

func TestControllerPageSize(t *testing.T) {
	c := newExpenseController()
	c.SetPage(2)
	assert.ErrorIs(t, c.SetPageSize(0), ErrInvalidPageSize)
	require.NoError(t, c.SetPageSize(20))
	assert.Equal(t, Pagination{Page: 1, PageSize: 20}, c.State().Pagination)
}

func TestControllerReplaceRecordsInvalidates(t *testing.T) {
	c := newExpenseController()
	_, _, err := c.Result()
	require.NoError(t, err)

	c.ReplaceRecords(sampleExpenses()[:2], 2)
	v, hit, err := c.Result()
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, v.Rows, 2)
	assert.Equal(t, uint64(2), c.Version())
}

func TestControllerToggleSort(t *testing.T) {
	c := newExpenseController()
	assert.Equal(t, SortSpec{Field: core.FieldDate, Direction: Desc}, c.ToggleSort(core.FieldDate))
	assert.Equal(t, SortSpec{Field: core.FieldAmount, Direction: Asc}, c.ToggleSort(core.FieldAmount))

	v, _, err := c.Result()
	require.NoError(t, err)
	assert.Equal(t, "3", v.Rows[0].ID)
}

func TestControllerConcurrentUse(t *testing.T) {
	c := newExpenseController()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				c.ToggleSort(core.FieldAmount)
			} else {
				c.SetGrouping(Grouping{Mode: GroupByMonth, Field: core.FieldDate, AmountField: core.FieldAmount})
			}
			_, _, err := c.Result()
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

func TestControllerApply(t *testing.T) {
	c := newExpenseController()
	st := c.State()
	st.Pagination = Pagination{Page: 2, PageSize: 2}
	st.Criteria = Criteria{Selection{Field: core.FieldCategory, Values: []string{"Materials", "Travel"}}}

	v, hit, err := c.Apply(st)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, v.Window.Page, "the page is applied together with new criteria")
	assert.Equal(t, 4, v.Window.TotalItems)
	assert.Equal(t, st, c.State())

	_, hit, err = c.Apply(st)
	require.NoError(t, err)
	assert.True(t, hit)

	st.Pagination.PageSize = 0
	_, _, err = c.Apply(st)
	assert.ErrorIs(t, err, ErrInvalidPageSize)
	assert.Equal(t, 2, c.State().Pagination.PageSize, "a rejected state is not kept")
}

func TestControllerConcurrentApply(t *testing.T) {
	c := newExpenseController()
	base := c.State()
	categories := []string{"Travel", "Materials", "Meals"}

	var wg sync.WaitGroup
	for i := 0; i < 48; i++ {
		wg.Add(1)
		go func(cat string) {
			defer wg.Done()
			st := base
			st.Criteria = Criteria{Selection{Field: core.FieldCategory, Values: []string{cat}}}
			v, _, err := c.Apply(st)
			if !assert.NoError(t, err) {
				return
			}
			assert.NotEmpty(t, v.Rows)
			for _, r := range v.Rows {
				assert.Equal(t, cat, r.Category)
			}
		}(categories[i%len(categories)])
	}
	wg.Wait()
}

func TestHashKeySeparatesParts(t *testing.T) {
	assert.NotEqual(t, HashKey("ab", "c"), HashKey("a", "bc"))
	assert.Equal(t, HashKey("x", "y"), HashKey("x", "y"))
	assert.Len(t, HashKey(), 32)
}

func TestMemo(t *testing.T) {
	m := NewMemo[int](4, 0)
	calls := 0
	compute := func() int { calls++; return 42 }

	v, hit := m.Do(compute, "a")
	assert.Equal(t, 42, v)
	assert.False(t, hit)
	_, hit = m.Do(compute, "a")
	assert.True(t, hit)
	assert.Equal(t, 1, calls)

	m.Reset()
	_, hit = m.Do(compute, "a")
	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}
