package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driven"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore is an in-memory implementation of driven.RecordStore.
type RecordStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]domain.Record
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		tables: make(map[string]map[string]domain.Record),
	}
}

// GetAll returns every record of a table, most recently updated first.
func (s *RecordStore) GetAll(_ context.Context, table string) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Record, 0, len(s.tables[table]))
	for _, rec := range s.tables[table] {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetByID returns one record.
func (s *RecordStore) GetByID(_ context.Context, table, id string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tables[table][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNotFound, table, id)
	}
	c := rec.Clone()
	return &c, nil
}

// Create inserts a record, assigning a UUID when rec.ID is empty.
func (s *RecordStore) Create(_ context.Context, table string, rec domain.Record) (string, error) {
	if table == "" {
		return "", fmt.Errorf("%w: table is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rows, ok := s.tables[table]
	if !ok {
		rows = make(map[string]domain.Record)
		s.tables[table] = rows
	}
	if _, exists := rows[rec.ID]; exists {
		return "", fmt.Errorf("%w: %s/%s already exists", domain.ErrInvalidInput, table, rec.ID)
	}
	rows[rec.ID] = rec.Clone()
	return rec.ID, nil
}

// Update overwrites a record by ID.
func (s *RecordStore) Update(_ context.Context, table string, rec domain.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table][rec.ID]; !ok {
		return false, nil
	}
	s.tables[table][rec.ID] = rec.Clone()
	return true, nil
}

// Delete removes a record by ID.
func (s *RecordStore) Delete(_ context.Context, table, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table][id]; !ok {
		return false, nil
	}
	delete(s.tables[table], id)
	return true, nil
}
