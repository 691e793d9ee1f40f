package pipeline

import (
	"errors"
	"slices"
	"strconv"
)

// DefaultPageSize is used when no page size was chosen.
const DefaultPageSize = 10

// PageSizes are the page sizes offered by the table views.
var PageSizes = []int{10, 20, 50, 100}

var ErrInvalidPageSize = errors.New("page size must be positive")

// ValidPageSize reports whether size is one of PageSizes.
func ValidPageSize(size int) bool {
	return slices.Contains(PageSizes, size)
}

// Pagination is the current page (1-based) and page size.
type Pagination struct {
	Page     int
	PageSize int
}

func (p Pagination) Key() string {
	return "page=" + strconv.Itoa(p.Page) + "/" + strconv.Itoa(p.PageSize)
}

// TotalPages is ceil(n/size), 0 for an empty set.
func TotalPages(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// PageWindow is one page of a record set.
type PageWindow[R any] struct {
	Items      []R
	Page       int
	PageSize   int
	TotalPages int
	TotalItems int
}

func (w PageWindow[R]) HasPrev() bool { return w.Page > 1 }
func (w PageWindow[R]) HasNext() bool { return w.Page >= 1 && w.Page < w.TotalPages }
func (w PageWindow[R]) Prev() int     { return w.Page - 1 }
func (w PageWindow[R]) Next() int     { return w.Page + 1 }

// FirstIndex is the 1-based position of the first item, 0 when the window is empty.
func (w PageWindow[R]) FirstIndex() int {
	if len(w.Items) == 0 {
		return 0
	}
	return (w.Page-1)*w.PageSize + 1
}

// LastIndex is the 1-based position of the last item on the page.
func (w PageWindow[R]) LastIndex() int {
	if len(w.Items) == 0 {
		return 0
	}
	return w.FirstIndex() + len(w.Items) - 1
}

// Pages lists page numbers around the current page for a pager, at most span wide.
func (w PageWindow[R]) Pages(span int) []int {
	if w.TotalPages == 0 || span <= 0 {
		return nil
	}
	start := max(1, w.Page-span/2)
	end := min(w.TotalPages, start+span-1)
	start = max(1, end-span+1)
	out := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		out = append(out, p)
	}
	return out
}

// Paginate returns records[(page-1)*size : page*size]. Pages outside
// [1, totalPages] are not clamped and yield an empty window.
func Paginate[R any](records []R, page, size int) (PageWindow[R], error) {
	if size <= 0 {
		return PageWindow[R]{}, ErrInvalidPageSize
	}
	w := PageWindow[R]{
		Items:      []R{},
		Page:       page,
		PageSize:   size,
		TotalPages: TotalPages(len(records), size),
		TotalItems: len(records),
	}
	if page < 1 {
		return w, nil
	}
	start := (page - 1) * size
	if start >= len(records) {
		return w, nil
	}
	end := min(start+size, len(records))
	w.Items = records[start:end]
	return w, nil
}
