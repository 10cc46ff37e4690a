package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the operation queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending queue entries",
	RunE:  runQueueList,
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Move failed entries back to pending",
	RunE:  runQueueRetry,
}

var queuePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete completed entries",
	RunE:  runQueuePurge,
}

var (
	queueListFailed bool
	queuePurgeAge   time.Duration
)

func init() {
	queueListCmd.Flags().BoolVar(&queueListFailed, "failed", false, "list failed entries instead")
	queuePurgeCmd.Flags().DurationVar(&queuePurgeAge, "older-than", 7*24*time.Hour, "minimum age of purged entries")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueRetryCmd)
	queueCmd.AddCommand(queuePurgeCmd)
	rootCmd.AddCommand(queueCmd)
}

func runQueueList(cmd *cobra.Command, _ []string) error {
	if statusService == nil {
		return errors.New("status service not configured")
	}

	ops, err := statusService.Queue(cmd.Context(), queueListFailed)
	if err != nil {
		return fmt.Errorf("failed to list queue: %w", err)
	}

	state := "pending"
	if queueListFailed {
		state = "failed"
	}
	if len(ops) == 0 {
		cmd.Printf("No %s entries.\n", state)
		return nil
	}

	p := newPrinter(cmd)
	p.title(fmt.Sprintf("%d %s entries", len(ops), state))
	for _, op := range ops {
		line := fmt.Sprintf("  #%d %-6s %s  attempts=%d  queued %s",
			op.ID, op.Kind, op.Key(), op.Attempts, ago(op.CreatedAt))
		if op.LastError != "" {
			line += "  " + p.bad(op.LastError)
		}
		cmd.Println(line)
	}
	return nil
}

func runQueueRetry(cmd *cobra.Command, _ []string) error {
	if syncManager == nil {
		return errors.New("sync service not configured")
	}

	n, err := syncManager.RetryFailed(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("%d failed entries moved back to pending.\n", n)
	return nil
}

func runQueuePurge(cmd *cobra.Command, _ []string) error {
	if syncManager == nil {
		return errors.New("sync service not configured")
	}

	n, err := syncManager.Purge(cmd.Context(), queuePurgeAge)
	if err != nil {
		return err
	}
	cmd.Printf("Purged %d completed entries older than %s.\n", n, queuePurgeAge)
	return nil
}
