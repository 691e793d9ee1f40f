package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"bizdash/internal/amqp"
	"bizdash/internal/log"
	"bizdash/internal/storage"
)

// ErrExportsDisabled is returned when no message broker is configured.
var ErrExportsDisabled = errors.New("spreadsheet export is not configured")

// ExportLog persists export jobs.
type ExportLog interface {
	RecordExport(ctx context.Context, job storage.ExportJob) error
	CompleteExport(ctx context.Context, id, status string, rows int, errMsg string, at time.Time) error
	ListExports(ctx context.Context, limit int) ([]storage.ExportJob, error)
}

// ExportPublisher hands export requests to the worker.
type ExportPublisher interface {
	PublishExport(ctx context.Context, req *amqp.ExportRequest) error
}

// ExportService records export jobs locally and queues them for the worker.
type ExportService struct {
	jobs      ExportLog
	publisher ExportPublisher
	target    string
	logger    *log.Logger
	now       func() time.Time
}

// NewExportService creates the service. A nil publisher disables queueing;
// target names where the worker writes, e.g. the spreadsheet id.
func NewExportService(jobs ExportLog, publisher ExportPublisher, target string, logger *log.Logger) *ExportService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportService{
		jobs:      jobs,
		publisher: publisher,
		target:    target,
		logger:    logger.WithComponent(log.ComponentExport),
		now:       time.Now,
	}
}

// Enabled reports whether Queue can succeed.
func (s *ExportService) Enabled() bool { return s.publisher != nil && s.jobs != nil }

// Queue records a job for page with the encoded view query and publishes it.
// A job whose message cannot be published is marked failed.
func (s *ExportService) Queue(ctx context.Context, page, query, user string) (storage.ExportJob, error) {
	if !s.Enabled() {
		return storage.ExportJob{}, ErrExportsDisabled
	}

	job := storage.ExportJob{
		ID:          uuid.NewString(),
		Page:        page,
		RequestedBy: user,
		Target:      s.target,
		Status:      storage.ExportQueued,
		CreatedAt:   s.now(),
	}
	if err := s.jobs.RecordExport(ctx, job); err != nil {
		return storage.ExportJob{}, fmt.Errorf("record export: %w", err)
	}

	req := amqp.NewExportRequest(job.ID, page, query, user)
	if err := s.publisher.PublishExport(ctx, req); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish export request",
			log.FieldJobID, job.ID,
			log.FieldPage, page,
			log.FieldError, err)
		if cerr := s.jobs.CompleteExport(ctx, job.ID, storage.ExportFailed, 0, err.Error(), s.now()); cerr != nil {
			s.logger.ErrorContext(ctx, "Failed to mark export failed", log.FieldJobID, job.ID, log.FieldError, cerr)
		}
		return storage.ExportJob{}, fmt.Errorf("publish export: %w", err)
	}

	s.logger.InfoContext(ctx, "Export queued", log.FieldJobID, job.ID, log.FieldPage, page, log.FieldUser, user)
	return job, nil
}

// Recent lists the latest export jobs.
func (s *ExportService) Recent(ctx context.Context, limit int) ([]storage.ExportJob, error) {
	if s.jobs == nil {
		return nil, nil
	}
	return s.jobs.ListExports(ctx, limit)
}

// Close closes the job log and publisher when they hold resources.
func (s *ExportService) Close() error {
	var errs []error
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if c, ok := s.jobs.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
