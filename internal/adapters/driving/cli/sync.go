package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a sync pass now",
	Long: `Drains the operation queue and then reconciles every table with the
remote store. Use the drain or reconcile subcommands to run one pass only.`,
	RunE: runSync,
}

var syncDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Replay queued local changes against the remote store",
	RunE:  runSyncDrain,
}

var syncReconcileCmd = &cobra.Command{
	Use:   "reconcile [table]",
	Short: "Converge local tables with the remote store",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSyncReconcile,
}

func init() {
	syncCmd.AddCommand(syncDrainCmd)
	syncCmd.AddCommand(syncReconcileCmd)
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if err := runSyncDrain(cmd, nil); err != nil {
		return err
	}
	return runSyncReconcile(cmd, nil)
}

func runSyncDrain(cmd *cobra.Command, _ []string) error {
	if syncManager == nil {
		return errors.New("sync service not configured")
	}

	res, err := syncManager.Drain(cmd.Context())
	if err != nil {
		return fmt.Errorf("drain failed: %w", err)
	}
	if res.NotConfigured {
		cmd.Println("Sync is not configured: set remote.url and remote.api_key.")
		return nil
	}

	cmd.Printf("Drained queue: %d attempted, %d done, %d retried, %d failed, %d deferred\n",
		res.Attempted, res.Done, res.Retried, res.Failed, res.Deferred)
	if res.Superseded > 0 {
		cmd.Printf("%d entries changed while in flight and stay queued.\n", res.Superseded)
	}
	return nil
}

func runSyncReconcile(cmd *cobra.Command, args []string) error {
	if reconciler == nil {
		return errors.New("sync service not configured")
	}

	if len(args) == 1 {
		tr, err := reconciler.ReconcileTable(cmd.Context(), args[0])
		if tr.NotConfigured {
			cmd.Println("Sync is not configured: set remote.url and remote.api_key.")
			return nil
		}
		printTableResult(cmd, tr)
		if err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}
		return nil
	}

	res, err := reconciler.Reconcile(cmd.Context())
	if res.NotConfigured {
		cmd.Println("Sync is not configured: set remote.url and remote.api_key.")
		return nil
	}
	for _, tr := range res.Tables {
		printTableResult(cmd, tr)
	}
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	return nil
}

func printTableResult(cmd *cobra.Command, tr domain.TableResult) {
	if tr.Aborted != "" {
		cmd.Printf("%s: aborted: %s\n", tr.Table, tr.Aborted)
		return
	}
	cmd.Printf("%s: fetched %d, inserted %d, pulled %d, pushed %d, created %d, unchanged %d\n",
		tr.Table, tr.Fetched, tr.Inserted, tr.Pulled, tr.Pushed, tr.Created, tr.Unchanged)
	if skipped := tr.Malformed + tr.Duplicates + tr.MissingIdentity; skipped > 0 {
		cmd.Printf("%s: skipped %d rows (%d malformed, %d duplicate, %d without identity)\n",
			tr.Table, skipped, tr.Malformed, tr.Duplicates, tr.MissingIdentity)
	}
	if tr.Errors > 0 {
		cmd.Printf("%s: %d records could not be written\n", tr.Table, tr.Errors)
	}
}
