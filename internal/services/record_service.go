package services

import (
	"context"
	"fmt"

	"bizdash/internal/core"
	"bizdash/internal/log"
	"bizdash/internal/records"
)

// Invalidator is told which table changed after a successful write.
type Invalidator interface {
	Invalidate(table string)
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func(table string)

func (f InvalidatorFunc) Invalidate(table string) { f(table) }

// RecordService validates records and writes them to the table API. Input
// that fails validation never reaches the remote side.
type RecordService struct {
	client      records.TableClient
	invalidator Invalidator
	logger      *log.Logger
}

func NewRecordService(client records.TableClient, inv Invalidator, logger *log.Logger) *RecordService {
	if logger == nil {
		logger = log.Discard()
	}
	if inv == nil {
		inv = InvalidatorFunc(func(string) {})
	}
	return &RecordService{client: client, invalidator: inv, logger: logger.WithComponent(log.ComponentRecords)}
}

type writable interface {
	Validate() error
	ToRow() core.Row
}

func write[T writable](ctx context.Context, s *RecordService, action records.Action, table string, rec T, normalize func(core.Row) T) (T, error) {
	var zero T
	if err := rec.Validate(); err != nil {
		return zero, err
	}

	var (
		rows []core.Row
		err  error
	)
	switch action {
	case records.ActionEdit:
		rows, err = s.client.Edit(ctx, table, rec.ToRow())
	default:
		rows, err = s.client.Add(ctx, table, rec.ToRow())
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Write failed", log.FieldTable, table, log.FieldOperation, string(action), log.FieldError, err)
		return zero, fmt.Errorf("%s %s: %w", action, table, err)
	}
	s.invalidator.Invalidate(table)
	s.logger.InfoContext(ctx, "Record written", log.FieldTable, table, log.FieldOperation, string(action))

	if len(rows) == 0 {
		return rec, nil
	}
	return normalize(rows[0]), nil
}

func (s *RecordService) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	return write(ctx, s, records.ActionAdd, records.TableExpenses, e, core.NormalizeExpense)
}

func (s *RecordService) AddIncome(ctx context.Context, in core.Income) (core.Income, error) {
	return write(ctx, s, records.ActionAdd, records.TableIncome, in, core.NormalizeIncome)
}

func (s *RecordService) AddProject(ctx context.Context, p core.Project) (core.Project, error) {
	return write(ctx, s, records.ActionAdd, records.TableProjects, p, core.NormalizeProject)
}

func (s *RecordService) AddPayroll(ctx context.Context, p core.Payroll) (core.Payroll, error) {
	return write(ctx, s, records.ActionAdd, records.TablePayroll, p, core.NormalizePayroll)
}

// EditProject updates an existing project identified by its ID.
func (s *RecordService) EditProject(ctx context.Context, p core.Project) (core.Project, error) {
	if p.ID == "" {
		return core.Project{}, core.ErrMissingID
	}
	return write(ctx, s, records.ActionEdit, records.TableProjects, p, core.NormalizeProject)
}
