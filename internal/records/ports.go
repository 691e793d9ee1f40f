// Package records defines the remote table API the dashboard reads from and
// writes to, plus the helpers shared by its backends.
package records

import (
	"context"
	"errors"
	"fmt"

	"bizdash/internal/core"
)

// Table names of the data app.
const (
	TableProjects = "Projects"
	TableExpenses = "Expenses"
	TableIncome   = "Income"
	TablePayroll  = "Payroll"
	TableUsers    = "Users"
)

// Tables lists every table the dashboard knows about.
var Tables = []string{TableProjects, TableExpenses, TableIncome, TablePayroll, TableUsers}

// Action is the verb sent to the table API.
type Action string

const (
	ActionFind Action = "Find"
	ActionAdd  Action = "Add"
	ActionEdit Action = "Edit"
)

var (
	// ErrRemoteFailure is wrapped by every error reported by the remote API.
	ErrRemoteFailure = errors.New("remote table api failure")
	ErrUnknownTable  = errors.New("unknown table")
	ErrNotFound      = errors.New("record not found")
)

// Ports for outbound adapters.
type (
	Finder interface {
		// Find returns the rows matching selector; an empty selector returns all rows.
		Find(ctx context.Context, table, selector string) ([]core.Row, error)
	}

	Adder interface {
		Add(ctx context.Context, table string, rows ...core.Row) ([]core.Row, error)
	}

	Editor interface {
		// Edit updates rows identified by their id field.
		Edit(ctx context.Context, table string, rows ...core.Row) ([]core.Row, error)
	}

	TableClient interface {
		Finder
		Adder
		Editor
	}
)

// RemoteError is a failure reported by the table API itself.
type RemoteError struct {
	Table   string
	Action  Action
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Action, e.Table, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Action, e.Table, e.Message)
}

func (e *RemoteError) Unwrap() error { return ErrRemoteFailure }

// Load finds rows and normalizes them into typed records.
func Load[R any](ctx context.Context, f Finder, table, selector string, normalize func(core.Row) R) ([]R, error) {
	rows, err := f.Find(ctx, table, selector)
	if err != nil {
		return nil, err
	}
	out := make([]R, len(rows))
	for i, r := range rows {
		out[i] = normalize(r)
	}
	return out, nil
}
