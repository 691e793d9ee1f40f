package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"bizdash/internal/core"
	"bizdash/internal/log"
	"bizdash/internal/pipeline"
	"bizdash/internal/records"
)

// ErrSuperseded is returned by a refresh that was cancelled by a newer one.
var ErrSuperseded = errors.New("refresh superseded by a newer request")

// loadTimeout bounds a load shared by several Get callers, which no single
// caller's context may cancel.
const loadTimeout = time.Minute

// Dataset is the committed record set of one table.
type Dataset[R any] struct {
	Records  []R
	Version  uint64
	LoadedAt time.Time
}

// DatasetService owns the record set of one table. A refresh replaces it
// wholesale with a single Find call; a failed refresh leaves it untouched.
//
// Every refresh takes a sequence number. Starting a refresh cancels the one in
// flight, and a response older than the last committed one is discarded.
// Get never starts a competing refresh: callers arriving while one is in
// flight wait for it.
type DatasetService[R any] struct {
	finder    records.Finder
	table     string
	normalize func(core.Row) R
	logger    *log.Logger
	now       func() time.Time

	mu        sync.Mutex
	current   Dataset[R]
	loaded    bool
	stale     bool
	issued    uint64
	committed uint64
	cancel    context.CancelFunc
	// pending is closed when the latest issued refresh finishes.
	pending chan struct{}

	loads singleflight.Group
}

func NewDatasetService[R any](finder records.Finder, table string, normalize func(core.Row) R, logger *log.Logger) *DatasetService[R] {
	if logger == nil {
		logger = log.Discard()
	}
	return &DatasetService[R]{
		finder:    finder,
		table:     table,
		normalize: normalize,
		logger:    logger.WithComponent(log.ComponentDataset).With(log.FieldTable, table),
		now:       time.Now,
	}
}

func (s *DatasetService[R]) Table() string { return s.table }

// Current returns the last committed dataset and whether one exists.
func (s *DatasetService[R]) Current() (Dataset[R], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.loaded
}

// Get returns the committed dataset, loading it first when there is none or
// it was invalidated. Concurrent callers share one load.
func (s *DatasetService[R]) Get(ctx context.Context) (Dataset[R], error) {
	for {
		s.mu.Lock()
		cur, ok, stale, pending := s.current, s.loaded, s.stale, s.pending
		s.mu.Unlock()
		if ok && !stale {
			return cur, nil
		}
		if pending != nil {
			select {
			case <-pending:
				continue
			case <-ctx.Done():
				return cur, ctx.Err()
			}
		}

		ds, err := s.load(ctx)
		if errors.Is(err, ErrSuperseded) {
			// An explicit refresh took over; wait for it instead.
			continue
		}
		return ds, err
	}
}

func (s *DatasetService[R]) load(ctx context.Context) (Dataset[R], error) {
	ch := s.loads.DoChan(s.table, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return s.Refresh(lctx)
	})
	select {
	case res := <-ch:
		return res.Val.(Dataset[R]), res.Err
	case <-ctx.Done():
		cur, _ := s.Current()
		return cur, ctx.Err()
	}
}

// GetOrCurrent is Get that falls back to the last committed dataset when the
// load fails. The bool reports that the fallback was used.
func (s *DatasetService[R]) GetOrCurrent(ctx context.Context) (Dataset[R], bool, error) {
	ds, err := s.Get(ctx)
	if err == nil {
		return ds, false, nil
	}
	if cur, ok := s.Current(); ok {
		s.logger.WarnContext(ctx, "Serving stale dataset", log.FieldError, err, log.FieldVersion, cur.Version)
		return cur, true, nil
	}
	return ds, false, err
}

// Invalidate marks the dataset so the next Get refetches it.
func (s *DatasetService[R]) Invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// Refresh fetches the table and commits the result. On failure the previous
// dataset is returned together with the error.
func (s *DatasetService[R]) Refresh(ctx context.Context) (Dataset[R], error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.issued++
	seq := s.issued
	rctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	s.pending = done
	s.mu.Unlock()
	defer cancel()

	start := s.now()
	rows, err := s.finder.Find(rctx, s.table, "")

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(done)
	if s.issued == seq {
		s.cancel = nil
		s.pending = nil
	}
	if err != nil {
		if errors.Is(err, context.Canceled) && s.issued > seq && ctx.Err() == nil {
			s.logger.DebugContext(ctx, "Refresh superseded", log.FieldSequence, seq)
			return s.current, ErrSuperseded
		}
		s.logger.ErrorContext(ctx, "Refresh failed", log.FieldSequence, seq, log.FieldError, err)
		return s.current, fmt.Errorf("refresh %s: %w", s.table, err)
	}
	if seq < s.committed {
		s.logger.WarnContext(ctx, "Discarding stale response", log.FieldSequence, seq, "committed", s.committed)
		return s.current, nil
	}

	recs := pipeline.Normalize(rows, s.normalize)
	s.current = Dataset[R]{
		Records:  recs,
		Version:  s.current.Version + 1,
		LoadedAt: s.now(),
	}
	s.loaded = true
	s.stale = false
	s.committed = seq
	s.logger.InfoContext(ctx, "Dataset refreshed",
		log.FieldRecords, len(recs),
		log.FieldVersion, s.current.Version,
		log.FieldSequence, seq,
		log.FieldDuration, s.now().Sub(start).Milliseconds())
	return s.current, nil
}
