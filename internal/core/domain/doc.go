// Package domain defines the core entities of the sync engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SyncOperation: A queued local mutation awaiting propagation
//   - Record: A local or remote row reduced to identity, timestamp and fields
//   - TableSpec: The explicit mapping between domain and remote field names
//   - Decision: The last-writer-wins outcome for one identity key
//   - RemoteError: A classified failure from the remote store
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
