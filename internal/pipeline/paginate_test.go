package pipeline

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbered(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i + 1)
	}
	return out
}

func TestPaginateTwentyFiveByTen(t *testing.T) {
	records := numbered(25)

	p1, err := Paginate(records, 1, 10)
	require.NoError(t, err)
	assert.Len(t, p1.Items, 10)
	assert.Equal(t, 3, p1.TotalPages)
	assert.Equal(t, 25, p1.TotalItems)
	assert.False(t, p1.HasPrev())
	assert.True(t, p1.HasNext())

	p3, err := Paginate(records, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"21", "22", "23", "24", "25"}, p3.Items)
	assert.Equal(t, 21, p3.FirstIndex())
	assert.Equal(t, 25, p3.LastIndex())
	assert.False(t, p3.HasNext())
}

func TestPaginateConcatenationReproducesInput(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 99, 100, 101} {
		for _, size := range PageSizes {
			records := numbered(n)
			first, err := Paginate(records, 1, size)
			require.NoError(t, err)
			assert.Equal(t, TotalPages(n, size), first.TotalPages)

			var all []string
			for p := 1; p <= first.TotalPages; p++ {
				w, _ := Paginate(records, p, size)
				all = append(all, w.Items...)
			}
			if n == 0 {
				assert.Empty(t, all)
				assert.Equal(t, 0, first.TotalPages)
				continue
			}
			assert.Equal(t, records, all, "n=%d size=%d", n, size)
		}
	}
}

func TestPaginateOutOfRangeNotClamped(t *testing.T) {
	records := numbered(5)

	w, err := Paginate(records, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, w.Items)
	assert.Equal(t, 4, w.Page)
	assert.Equal(t, 3, w.TotalPages)

	w, err = Paginate(records, 0, 2)
	require.NoError(t, err)
	assert.Empty(t, w.Items)
	assert.Equal(t, 0, w.FirstIndex())

	_, err = Paginate(records, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidPageSize)
}

func TestPagesWindow(t *testing.T) {
	w, _ := Paginate(numbered(100), 5, 10)
	assert.Equal(t, []int{3, 4, 5, 6, 7}, w.Pages(5))

	w, _ = Paginate(numbered(100), 1, 10)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, w.Pages(5))

	w, _ = Paginate(numbered(100), 10, 10)
	assert.Equal(t, []int{6, 7, 8, 9, 10}, w.Pages(5))

	w, _ = Paginate(numbered(15), 1, 10)
	assert.Equal(t, []int{1, 2}, w.Pages(5))

	w, _ = Paginate(numbered(0), 1, 10)
	assert.Nil(t, w.Pages(5))
}

func TestValidPageSize(t *testing.T) {
	assert.True(t, ValidPageSize(20))
	assert.False(t, ValidPageSize(7))
}
