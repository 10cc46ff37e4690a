package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fields holds record values keyed by domain field name.
type Fields map[string]any

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the value for key rendered as a string, or "" when absent or null.
func (f Fields) String(key string) string {
	v, ok := f[key]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

// Record is any synced entity reduced to what reconciliation needs: a local
// surrogate key, the identity key shared with the remote store, the
// last-modified timestamp and the mutable fields.
type Record struct {
	// ID is the local surrogate primary key. Empty for rows read from the remote store.
	ID string

	// IdentityKey matches a local record to its remote counterpart.
	IdentityKey string

	// UpdatedAt is the last-modified time. Zero means the timestamp is absent.
	UpdatedAt time.Time

	// Fields holds the mutable values keyed by domain field name.
	Fields Fields
}

// HasTimestamp reports whether the record carries an updated_at value.
func (r *Record) HasTimestamp() bool {
	return !r.UpdatedAt.IsZero()
}

// Clone returns a copy of r whose Fields can be mutated independently.
func (r Record) Clone() Record {
	r.Fields = r.Fields.Clone()
	return r
}

// ApplyRemote returns the local record overwritten with the remote record's
// mutable fields and timestamp. The local surrogate key is kept.
func (r Record) ApplyRemote(remote Record) Record {
	out := r.Clone()
	if out.Fields == nil {
		out.Fields = make(Fields, len(remote.Fields))
	}
	for k, v := range remote.Fields {
		out.Fields[k] = v
	}
	out.IdentityKey = remote.IdentityKey
	out.UpdatedAt = remote.UpdatedAt
	return out
}

// FieldMapping maps one domain field name onto its remote column.
type FieldMapping struct {
	// Domain is the field name used by local records and queue payloads.
	Domain string

	// Remote is the column name in the remote store.
	Remote string

	// Optional fields may be missing or null in remote rows.
	Optional bool
}

// DefaultUpdatedAtColumn is the remote column holding the last-modified timestamp.
const DefaultUpdatedAtColumn = "updated_at"

// TableSpec describes how one local table maps onto its remote counterpart.
type TableSpec struct {
	// Name is the table name, shared locally and remotely.
	Name string

	// IdentityField is the domain field holding the identity key.
	// It must appear in Fields.
	IdentityField string

	// UpdatedAtColumn is the remote timestamp column. Defaults to "updated_at".
	UpdatedAtColumn string

	// SurrogateKey is the remote column generated by the remote store.
	// It is stripped from every write.
	SurrogateKey string

	// TenantField is the remote column isolating rows per owning principal.
	// Empty disables tenant filtering.
	TenantField string

	// Fields lists every synced field.
	Fields []FieldMapping
}

// Validate checks that the spec is usable.
func (s TableSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: table name is required", ErrInvalidInput)
	}
	if s.IdentityField == "" {
		return fmt.Errorf("%w: table %s has no identity field", ErrInvalidInput, s.Name)
	}
	if _, ok := s.mapping(s.IdentityField); !ok {
		return fmt.Errorf("%w: identity field %s of table %s is not mapped", ErrInvalidInput, s.IdentityField, s.Name)
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Domain == "" || f.Remote == "" {
			return fmt.Errorf("%w: table %s has an incomplete field mapping", ErrInvalidInput, s.Name)
		}
		if seen[f.Remote] {
			return fmt.Errorf("%w: table %s maps remote column %s twice", ErrInvalidInput, s.Name, f.Remote)
		}
		seen[f.Remote] = true
	}
	return nil
}

// TimestampColumn returns the remote updated_at column.
func (s TableSpec) TimestampColumn() string {
	if s.UpdatedAtColumn == "" {
		return DefaultUpdatedAtColumn
	}
	return s.UpdatedAtColumn
}

// IdentityColumn returns the remote column of the identity key.
func (s TableSpec) IdentityColumn() string {
	m, ok := s.mapping(s.IdentityField)
	if !ok {
		return s.IdentityField
	}
	return m.Remote
}

func (s TableSpec) mapping(domainName string) (FieldMapping, bool) {
	for _, f := range s.Fields {
		if f.Domain == domainName {
			return f, true
		}
	}
	return FieldMapping{}, false
}

// IdentityOf extracts the identity key from a field map.
func (s TableSpec) IdentityOf(fields Fields) (string, error) {
	key := fields.String(s.IdentityField)
	if key == "" {
		return "", fmt.Errorf("%w: table %s field %s", ErrMissingIdentity, s.Name, s.IdentityField)
	}
	return key, nil
}

// ToRemote translates a record into a remote row. Only mapped fields are
// emitted; the surrogate key is never sent.
func (s TableSpec) ToRemote(rec Record) map[string]any {
	row := make(map[string]any, len(s.Fields)+1)
	for _, f := range s.Fields {
		if f.Remote == s.SurrogateKey {
			continue
		}
		if v, ok := rec.Fields[f.Domain]; ok {
			row[f.Remote] = v
		}
	}
	if rec.IdentityKey != "" {
		row[s.IdentityColumn()] = rec.IdentityKey
	}
	if rec.HasTimestamp() {
		row[s.TimestampColumn()] = FormatTimestamp(rec.UpdatedAt)
	}
	if s.SurrogateKey != "" {
		delete(row, s.SurrogateKey)
	}
	return row
}

// FromRemote parses one remote row. Missing or null optional fields are
// tolerated; a missing required field, a missing identity key or an
// unparseable timestamp yields ErrMalformedRow.
func (s TableSpec) FromRemote(raw json.RawMessage) (Record, error) {
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	if row == nil {
		return Record{}, fmt.Errorf("%w: row is null", ErrMalformedRow)
	}

	rec := Record{Fields: make(Fields, len(s.Fields))}
	for _, f := range s.Fields {
		v, ok := row[f.Remote]
		if !ok || v == nil {
			if !f.Optional {
				return Record{}, fmt.Errorf("%w: required column %s is missing", ErrMalformedRow, f.Remote)
			}
			continue
		}
		rec.Fields[f.Domain] = v
	}

	rec.IdentityKey = rec.Fields.String(s.IdentityField)
	if rec.IdentityKey == "" {
		return Record{}, fmt.Errorf("%w: identity column %s is empty", ErrMalformedRow, s.IdentityColumn())
	}

	if v, ok := row[s.TimestampColumn()]; ok && v != nil {
		str, isString := v.(string)
		if !isString {
			return Record{}, fmt.Errorf("%w: %s is not a string", ErrMalformedRow, s.TimestampColumn())
		}
		ts, err := ParseTimestamp(str)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
		}
		rec.UpdatedAt = ts
	}

	return rec, nil
}

// IdentityOfRow extracts the identity value from a raw remote row without
// validating the rest of it. It returns "" when the row has none.
func (s TableSpec) IdentityOfRow(raw json.RawMessage) string {
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return ""
	}
	v, ok := row[s.IdentityColumn()]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

// timestampLayouts covers RFC 3339 and the space-separated forms relational stores emit.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// TimestampPrecision is the resolution at which record timestamps are kept,
// matching what a Postgres timestamptz column stores.
const TimestampPrecision = time.Microsecond

// NormaliseTimestamp converts t to UTC at TimestampPrecision.
func NormaliseTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(TimestampPrecision)
}

// ParseTimestamp parses a stored or remote timestamp. Values without a zone are UTC.
// Sub-microsecond digits are dropped.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NormaliseTimestamp(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// FormatTimestamp renders t for storage and transmission.
func FormatTimestamp(t time.Time) string {
	return NormaliseTimestamp(t).Format(time.RFC3339Nano)
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// TableCatalog is the ordered set of synced tables.
type TableCatalog struct {
	order []string
	specs map[string]TableSpec
}

// NewTableCatalog validates and registers specs in order.
func NewTableCatalog(specs ...TableSpec) (*TableCatalog, error) {
	c := &TableCatalog{specs: make(map[string]TableSpec, len(specs))}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.specs[s.Name]; dup {
			return nil, fmt.Errorf("%w: table %s registered twice", ErrInvalidInput, s.Name)
		}
		c.order = append(c.order, s.Name)
		c.specs[s.Name] = s
	}
	return c, nil
}

// Lookup returns the spec for a table.
func (c *TableCatalog) Lookup(name string) (TableSpec, error) {
	s, ok := c.specs[name]
	if !ok {
		return TableSpec{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return s, nil
}

// Specs returns the registered specs in registration order.
func (c *TableCatalog) Specs() []TableSpec {
	out := make([]TableSpec, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.specs[name])
	}
	return out
}

// Names returns the registered table names in order.
func (c *TableCatalog) Names() []string {
	return append([]string(nil), c.order...)
}

// PayloadUpdatedAt is the queue payload key carrying the record timestamp.
const PayloadUpdatedAt = "updatedAt"

// RecordPayload flattens a record into a queue payload.
func RecordPayload(rec Record) Fields {
	p := rec.Fields.Clone()
	if p == nil {
		p = Fields{}
	}
	if rec.HasTimestamp() {
		p[PayloadUpdatedAt] = FormatTimestamp(rec.UpdatedAt)
	}
	return p
}

// RecordFromPayload rebuilds the record a queue payload was taken from.
// The identity key is required; a bad timestamp is ErrInvalidInput.
func (s TableSpec) RecordFromPayload(recordID string, payload Fields) (Record, error) {
	key, err := s.IdentityOf(payload)
	if err != nil {
		return Record{}, err
	}
	rec := Record{ID: recordID, IdentityKey: key, Fields: payload.Clone()}
	if ts := payload.String(PayloadUpdatedAt); ts != "" {
		t, err := ParseTimestamp(ts)
		if err != nil {
			return Record{}, fmt.Errorf("%w: payload %s: %v", ErrInvalidInput, PayloadUpdatedAt, err)
		}
		rec.UpdatedAt = t
	}
	delete(rec.Fields, PayloadUpdatedAt)
	return rec, nil
}
