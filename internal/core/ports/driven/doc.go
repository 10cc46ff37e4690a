// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - OperationQueue: Durable outbound mutation queue
//   - RecordStore: Local table access (get/create/update/delete)
//   - SettingsProvider: Live sync settings
//   - SchedulerStore: Scheduler state persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - RemoteStore: Remote REST store. Nil or unconfigured disables sync.
//   - EventNotifier: Table-changed and pass-completed notifications.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
