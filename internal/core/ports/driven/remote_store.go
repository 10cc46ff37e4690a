package driven

import (
	"context"
	"encoding/json"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
)

// Filter is one query condition against the remote store.
type Filter struct {
	// Column is the remote column name.
	Column string

	// Op is the comparison operator, e.g. "eq".
	Op string

	// Value is the operand.
	Value string

	// Any holds alternatives joined with OR. When set, Column/Op/Value are ignored.
	Any []Filter
}

// Eq returns an equality filter.
func Eq(column, value string) Filter {
	return Filter{Column: column, Op: "eq", Value: value}
}

// Or returns a compound filter matching any of the given conditions.
func Or(filters ...Filter) Filter {
	return Filter{Any: filters}
}

// RemoteStore is the remote REST-over-relational store.
// Failures are returned as *domain.RemoteError.
type RemoteStore interface {
	// Create upserts a record keyed by the table's identity column.
	// Safe to repeat.
	Create(ctx context.Context, spec domain.TableSpec, rec domain.Record) error

	// Update patches the remote row matching the record's identity key.
	Update(ctx context.Context, spec domain.TableSpec, rec domain.Record) error

	// Delete removes the remote row matching identityKey.
	Delete(ctx context.Context, spec domain.TableSpec, identityKey string) error

	// FetchAll returns every row of the table, most recently updated first.
	FetchAll(ctx context.Context, spec domain.TableSpec) ([]json.RawMessage, error)

	// FetchOne returns the row matching identityKey, or nil if there is none.
	FetchOne(ctx context.Context, spec domain.TableSpec, identityKey string) (json.RawMessage, error)

	// FetchWhere returns rows matching every filter.
	FetchWhere(ctx context.Context, spec domain.TableSpec, filters ...Filter) ([]json.RawMessage, error)
}

// RemoteStoreFactory builds a RemoteStore from the current remote settings.
type RemoteStoreFactory func(settings domain.SyncSettings) (RemoteStore, error)
