// Package memory is an in-process table store used for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"bizdash/internal/core"
	"bizdash/internal/records"
)

// Store keeps every table as an ordered slice of rows.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]core.Row
	nextID map[string]int
}

var _ records.TableClient = (*Store)(nil)

// New creates a store seeded with the given tables. Known tables always exist.
func New(seed map[string][]core.Row) *Store {
	s := &Store{
		tables: make(map[string][]core.Row, len(records.Tables)),
		nextID: make(map[string]int, len(records.Tables)),
	}
	for _, t := range records.Tables {
		s.tables[t] = nil
	}
	for table, rows := range seed {
		for _, r := range rows {
			s.insert(table, r)
		}
	}
	return s
}

// NewFromFiles seeds each known table from <dir>/<table>.json when present.
// A missing file leaves the table empty; a malformed one is an error.
func NewFromFiles(dir string) (*Store, error) {
	seed := make(map[string][]core.Row)
	for _, table := range records.Tables {
		path := filepath.Join(dir, table+".json")
		rows, err := readRows(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		seed[table] = rows
	}
	return New(seed), nil
}

func readRows(path string) ([]core.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var rows []core.Row
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}

// insert stores a copy of r, assigning an id when it has none. Caller holds mu
// or is the constructor.
func (s *Store) insert(table string, r core.Row) core.Row {
	row := maps.Clone(r)
	if row == nil {
		row = core.Row{}
	}
	id := core.ParseString(row.Lookup(core.FieldID))
	if id == "" {
		s.nextID[table]++
		id = strconv.Itoa(s.nextID[table])
		row[core.FieldID] = id
	} else if n, err := strconv.Atoi(id); err == nil && n > s.nextID[table] {
		s.nextID[table] = n
	}
	s.tables[table] = append(s.tables[table], row)
	return row
}

func (s *Store) checkTable(table string) error {
	if _, ok := s.tables[table]; !ok {
		return fmt.Errorf("%w: %s", records.ErrUnknownTable, table)
	}
	return nil
}

func (s *Store) Find(_ context.Context, table, selector string) ([]core.Row, error) {
	sel, err := records.ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	out := make([]core.Row, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		if sel.Match(r) {
			out = append(out, maps.Clone(r))
		}
	}
	return out, nil
}

func (s *Store) Add(_ context.Context, table string, rows ...core.Row) ([]core.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	out := make([]core.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, maps.Clone(s.insert(table, r)))
	}
	return out, nil
}

// Edit merges the given fields into the stored row with the same id.
func (s *Store) Edit(_ context.Context, table string, rows ...core.Row) ([]core.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkTable(table); err != nil {
		return nil, err
	}

	out := make([]core.Row, 0, len(rows))
	for _, r := range rows {
		id := core.ParseString(r.Lookup(core.FieldID))
		if id == "" {
			return nil, core.ErrMissingID
		}
		idx := s.indexOf(table, id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s %s", records.ErrNotFound, table, id)
		}
		stored := s.tables[table][idx]
		for k, v := range r {
			stored.Set(k, v)
		}
		out = append(out, maps.Clone(stored))
	}
	return out, nil
}

func (s *Store) indexOf(table, id string) int {
	for i, r := range s.tables[table] {
		if strings.EqualFold(core.ParseString(r.Lookup(core.FieldID)), id) {
			return i
		}
	}
	return -1
}

// Len returns the number of rows in table.
func (s *Store) Len(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}
