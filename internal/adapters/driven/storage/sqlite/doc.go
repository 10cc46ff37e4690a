// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - OperationQueue: The durable outbound mutation queue
//   - RecordStore: Local synced records, one generic table keyed by (table, id)
//   - SchedulerStore: Scheduler task state and run history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// A partial unique index on PENDING rows enforces one pending entry per record.
//
// # Data Location
//
// By default, the database is stored at ~/.mahal-sync/data/mahal-sync.db
//
// # Thread Safety
//
// All operations are thread-safe. Queue transitions are single guarded statements,
// and SQLite in WAL mode with a busy timeout serialises concurrent writers.
package sqlite
