// Package cli implements the mahalsync command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driven"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driving"
	"github.com/rajeeshbabu/mahal-sync/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Options carries the global flags to the bootstrapper.
type Options struct {
	DataDir   string
	ConfigDir string
	Verbose   bool
}

// Services holds the core services the commands drive.
type Services struct {
	SyncManager   driving.SyncManager
	Reconciler    driving.Reconciler
	Status        driving.StatusService
	ChangeTracker driving.ChangeTracker
	ConfigStore   driven.ConfigStore
	Daemon        *DaemonConfig
}

// Bootstrapper builds the services once flags are parsed.
// The returned cleanup runs after the command completes.
type Bootstrapper func(opts Options) (*Services, func() error, error)

var (
	syncManager   driving.SyncManager
	reconciler    driving.Reconciler
	statusService driving.StatusService
	changeTracker driving.ChangeTracker
	configStore   driven.ConfigStore
	daemonConfig  *DaemonConfig

	bootstrap Bootstrapper
	cleanup   func() error
	opts      Options
)

var rootCmd = &cobra.Command{
	Use:   "mahalsync",
	Short: "Offline-first sync between the local store and the remote database",
	Long: `mahalsync keeps local tables in step with a remote REST database.

Local writes are queued and replayed against the remote store; a periodic
reconciliation pass converges both sides with last-writer-wins.`,
	SilenceUsage:      true,
	PersistentPreRunE: preRun,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "directory holding the local database (default ~/.mahal-sync/data)")
	rootCmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", "", "directory holding config.toml (default ~/.mahal-sync)")
}

// SetServices wires the core services into the commands.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	syncManager = s.SyncManager
	reconciler = s.Reconciler
	statusService = s.Status
	changeTracker = s.ChangeTracker
	configStore = s.ConfigStore
	daemonConfig = s.Daemon
}

// SetBootstrap registers the function that builds services from the global flags.
func SetBootstrap(fn Bootstrapper) {
	bootstrap = fn
}

// SetVersion sets the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if cleanup != nil {
		if cerr := cleanup(); cerr != nil {
			logger.Warn("shutdown: %v", cerr)
		}
		cleanup = nil
	}
	return err
}

func preRun(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(opts.Verbose)
	if bootstrap == nil || cmd == versionCmd {
		return nil
	}
	s, done, err := bootstrap(opts)
	if err != nil {
		return err
	}
	SetServices(s)
	cleanup = done
	// Built once per process.
	bootstrap = nil
	return nil
}
