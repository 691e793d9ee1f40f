package worker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"bizdash/internal/amqp"
	"bizdash/internal/dashboard"
	"bizdash/internal/export"
	"bizdash/internal/log"
	"bizdash/internal/services"
	"bizdash/internal/storage"
)

// recentJobs bounds how many jobs the startup check looks at.
const recentJobs = 100

// ErrEmptyExport is recorded for a view with no sheets to write.
var ErrEmptyExport = errors.New("nothing to export")

// PageSource resolves the page an export request names.
type PageSource interface {
	Get(slug string) (dashboard.Page, error)
}

// ExportWorker turns queued export requests into spreadsheet tabs.
type ExportWorker struct {
	pages  PageSource
	writer export.Writer
	jobs   services.ExportLog
	logger *log.Logger
	now    func() time.Time
}

func NewExportWorker(pages PageSource, writer export.Writer, jobs services.ExportLog, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		pages:  pages,
		writer: writer,
		jobs:   jobs,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
	}
}

// HandleExport recomputes the requested view from fresh data and writes it.
// The job is marked done or failed either way.
func (w *ExportWorker) HandleExport(ctx context.Context, req *amqp.ExportRequest) error {
	w.logger.InfoContext(ctx, "Processing export request",
		log.FieldJobID, req.JobID,
		log.FieldPage, req.Page,
		log.FieldUser, req.RequestedBy)

	rows, err := w.export(ctx, req)
	if err != nil {
		w.complete(ctx, req.JobID, storage.ExportFailed, 0, err.Error())
		return err
	}
	w.complete(ctx, req.JobID, storage.ExportDone, rows, "")

	w.logger.InfoContext(ctx, "Export written",
		log.FieldJobID, req.JobID,
		log.FieldPage, req.Page,
		log.FieldRecords, rows)
	return nil
}

func (w *ExportWorker) export(ctx context.Context, req *amqp.ExportRequest) (int, error) {
	page, err := w.pages.Get(req.Page)
	if err != nil {
		return 0, err
	}
	q, err := url.ParseQuery(req.Query)
	if err != nil {
		return 0, fmt.Errorf("parse view query: %w", err)
	}

	if err := page.Refresh(ctx); err != nil {
		// The previous dataset is still usable.
		w.logger.WarnContext(ctx, "Refresh before export failed", log.FieldPage, req.Page, log.FieldError, err)
	}
	wb, err := page.Workbook(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("build workbook: %w", err)
	}
	if len(wb.Sheets) == 0 {
		return 0, ErrEmptyExport
	}
	if err := w.writer.Write(ctx, wb); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return len(wb.Sheets[0].Rows), nil
}

func (w *ExportWorker) complete(ctx context.Context, id, status string, rows int, msg string) {
	if w.jobs == nil {
		return
	}
	if err := w.jobs.CompleteExport(ctx, id, status, rows, msg, w.now()); err != nil {
		// Jobs queued by another instance may not be in this log.
		w.logger.WarnContext(ctx, "Failed to update export job", log.FieldJobID, id, log.FieldError, err)
	}
}

// StartupCheck marks jobs still queued after maxAge as failed. Their messages
// were lost or dropped while no worker was running.
func (w *ExportWorker) StartupCheck(ctx context.Context, maxAge time.Duration) (int, error) {
	if w.jobs == nil {
		return 0, nil
	}
	jobs, err := w.jobs.ListExports(ctx, recentJobs)
	if err != nil {
		return 0, fmt.Errorf("list exports for startup check: %w", err)
	}

	cutoff := w.now().Add(-maxAge)
	abandoned := 0
	for _, j := range jobs {
		if j.Status != storage.ExportQueued || j.CreatedAt.After(cutoff) {
			continue
		}
		if err := w.jobs.CompleteExport(ctx, j.ID, storage.ExportFailed, 0, "abandoned", w.now()); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mark abandoned export", log.FieldJobID, j.ID, log.FieldError, err)
			continue
		}
		abandoned++
	}

	if abandoned > 0 {
		w.logger.InfoContext(ctx, "Startup export check completed", "checked", len(jobs), "abandoned", abandoned)
	} else {
		w.logger.InfoContext(ctx, "No abandoned exports found on startup")
	}
	return abandoned, nil
}
