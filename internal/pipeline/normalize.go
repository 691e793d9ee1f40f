// Package pipeline implements the tabular view pipeline shared by every
// dashboard page: normalize, filter, sort, paginate, aggregate and chart.
//
// Every stage is a pure function over a record slice. Controller holds the
// mutable inputs of one page and memoizes the composed result.
package pipeline

import "bizdash/internal/core"

// Normalize maps raw rows to typed records. It never fails: unparseable
// fields fall back to their zero value inside fn.
func Normalize[R any](rows []core.Row, fn func(core.Row) R) []R {
	out := make([]R, len(rows))
	for i, r := range rows {
		out[i] = fn(r)
	}
	return out
}
