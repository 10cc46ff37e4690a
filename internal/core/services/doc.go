// Package services implements the driving port interfaces: the sync manager
// that drains the operation queue, the reconciler, the change tracker that
// records local writes, the scheduler and the status view.
//
// Services depend only on domain and the driven ports.
package services
