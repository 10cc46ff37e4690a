package driven

import (
	"context"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
)

// RecordStore is the local data-access contract the engine depends on.
// Records are addressed by table name and local surrogate ID.
type RecordStore interface {
	// GetAll returns every record of a table.
	GetAll(ctx context.Context, table string) ([]domain.Record, error)

	// GetByID returns one record, or domain.ErrNotFound.
	GetByID(ctx context.Context, table, id string) (*domain.Record, error)

	// Create inserts a record and returns its local ID.
	// An empty rec.ID is assigned by the store.
	Create(ctx context.Context, table string, rec domain.Record) (string, error)

	// Update overwrites a record by ID. Returns false if no row matched.
	Update(ctx context.Context, table string, rec domain.Record) (bool, error)

	// Delete removes a record by ID. Returns false if no row matched.
	Delete(ctx context.Context, table, id string) (bool, error)
}
