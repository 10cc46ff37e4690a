package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driven"
)

// recordStore implements driven.RecordStore over a single generic table.
// Field values are stored as a JSON object keyed by domain field name.
type recordStore struct {
	store *Store
}

var _ driven.RecordStore = (*recordStore)(nil)

// GetAll returns every record of a table, most recently updated first.
func (s *recordStore) GetAll(ctx context.Context, table string) ([]domain.Record, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, identity_key, updated_at, fields
		FROM records
		WHERE table_name = ?
		ORDER BY updated_at DESC, id
	`, table)
	if err != nil {
		return nil, fmt.Errorf("querying %s records: %w", table, err)
	}
	defer rows.Close()

	var recs []domain.Record //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s records: %w", table, err)
	}
	return recs, nil
}

// GetByID returns one record.
func (s *recordStore) GetByID(ctx context.Context, table, id string) (*domain.Record, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, identity_key, updated_at, fields
		FROM records
		WHERE table_name = ? AND id = ?
	`, table, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNotFound, table, id)
	}
	return rec, err
}

// Create inserts a record, assigning a UUID when rec.ID is empty.
func (s *recordStore) Create(ctx context.Context, table string, rec domain.Record) (string, error) {
	if table == "" {
		return "", fmt.Errorf("%w: table is required", domain.ErrInvalidInput)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	body, err := marshalFields(rec.Fields)
	if err != nil {
		return "", err
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO records (table_name, id, identity_key, updated_at, fields)
		VALUES (?, ?, ?, ?, ?)
	`, table, rec.ID, nullString(rec.IdentityKey), formatNullableTime(rec.UpdatedAt), body)
	if err != nil {
		return "", fmt.Errorf("inserting %s/%s: %w", table, rec.ID, err)
	}
	return rec.ID, nil
}

// Update overwrites a record by ID.
func (s *recordStore) Update(ctx context.Context, table string, rec domain.Record) (bool, error) {
	body, err := marshalFields(rec.Fields)
	if err != nil {
		return false, err
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE records
		SET identity_key = ?, updated_at = ?, fields = ?
		WHERE table_name = ? AND id = ?
	`, nullString(rec.IdentityKey), formatNullableTime(rec.UpdatedAt), body, table, rec.ID)
	if err != nil {
		return false, fmt.Errorf("updating %s/%s: %w", table, rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking update of %s/%s: %w", table, rec.ID, err)
	}
	return n > 0, nil
}

// Delete removes a record by ID.
func (s *recordStore) Delete(ctx context.Context, table, id string) (bool, error) {
	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM records WHERE table_name = ? AND id = ?", table, id)
	if err != nil {
		return false, fmt.Errorf("deleting %s/%s: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking delete of %s/%s: %w", table, id, err)
	}
	return n > 0, nil
}

func marshalFields(f domain.Fields) (string, error) {
	if f == nil {
		f = domain.Fields{}
	}
	body, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("marshalling fields: %w", err)
	}
	return string(body), nil
}

func scanRecord(r rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var identity, updatedAt sql.NullString
	var fields string

	if err := r.Scan(&rec.ID, &identity, &updatedAt, &fields); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}
	if identity.Valid {
		rec.IdentityKey = identity.String
	}
	rec.UpdatedAt = parseNullableTime(updatedAt)
	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return nil, fmt.Errorf("unmarshalling fields of record %s: %w", rec.ID, err)
	}
	return &rec, nil
}
