package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driving"
	"github.com/rajeeshbabu/mahal-sync/internal/logger"
)

// DaemonConfig holds what the daemon command runs.
type DaemonConfig struct {
	// Scheduler runs the periodic drain, reconcile and purge passes.
	Scheduler driving.Scheduler

	// Listen is the event hub address.
	Listen string

	// Events serves the WebSocket endpoint at /ws. Nil disables the listener.
	Events http.Handler

	// Fanout pumps sync events to connected clients until ctx ends.
	Fanout func(ctx context.Context)

	// Watch reloads configuration on change until ctx ends.
	Watch func(ctx context.Context) error
}

const shutdownTimeout = 5 * time.Second

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync engine",
	Long: `Runs the scheduled drain, reconcile and purge passes, serves sync events
over WebSocket for desktop views, and reloads config.toml when it changes.
Stops on SIGINT or SIGTERM.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if daemonConfig == nil || daemonConfig.Scheduler == nil {
		return errors.New("daemon not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serveDaemon(ctx, cmd, daemonConfig)
}

func serveDaemon(parent context.Context, cmd *cobra.Command, cfg *DaemonConfig) error {
	parent, cancel := context.WithCancel(parent)
	defer cancel()
	g, ctx := errgroup.WithContext(parent)

	g.Go(func() error {
		err := cfg.Scheduler.Start(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.Fanout != nil {
		g.Go(func() error {
			cfg.Fanout(ctx)
			return nil
		})
	}

	if cfg.Watch != nil {
		g.Go(func() error {
			if err := cfg.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				// Without hot reload the daemon still runs on the settings it has.
				logger.Warn("config watch stopped: %v", err)
			}
			return nil
		})
	}

	if cfg.Events != nil {
		ln, err := net.Listen("tcp", cfg.Listen)
		if err != nil {
			cancel()
			_ = g.Wait()
			_ = cfg.Scheduler.Stop()
			return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/ws", cfg.Events)
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		cmd.Printf("Serving sync events on ws://%s/ws\n", ln.Addr())
	}

	cmd.Println("Sync daemon running. Press Ctrl+C to stop.")
	err := g.Wait()
	if stopErr := cfg.Scheduler.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	cmd.Println("Sync daemon stopped.")
	return err
}
