package cli

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if statusService == nil {
		return errors.New("status service not configured")
	}

	status, err := statusService.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	p := newPrinter(cmd)

	p.title("Remote")
	if status.Configured {
		p.field("State:", p.ok("configured")+" (from "+status.Source.String()+")")
	} else {
		p.field("State:", p.warn("not configured"))
	}
	cmd.Println()

	p.title("Queue")
	pending := humanize.Comma(int64(status.Queue.Pending))
	if status.Queue.Pending > 0 {
		pending = p.warn(pending)
	}
	failed := humanize.Comma(int64(status.Queue.Failed))
	if status.Queue.Failed > 0 {
		failed = p.bad(failed)
	}
	p.field("Pending:", pending)
	p.field("Failed:", failed)
	p.field("Done:", humanize.Comma(int64(status.Queue.Done)))
	cmd.Println()

	p.title("Last passes")
	if d := status.LastDrain; d != nil {
		p.field("Drain:", fmt.Sprintf("%s, %d done, %d failed of %d",
			ago(d.EndedAt), d.Done, d.Failed, d.Attempted))
	} else {
		p.field("Drain:", "never")
	}
	if r := status.LastReconcile; r != nil {
		t := r.Totals()
		p.field("Reconcile:", fmt.Sprintf("%s, %d local and %d remote changes",
			ago(r.EndedAt), t.LocalChanges(), t.RemoteChanges()))
		for _, tr := range r.Tables {
			if tr.Aborted != "" {
				p.field("", p.bad(tr.Table+" aborted: "+tr.Aborted))
			}
		}
	} else {
		p.field("Reconcile:", "never")
	}

	if len(status.Tasks) > 0 {
		cmd.Println()
		p.title("Scheduled tasks")
		for _, task := range status.Tasks {
			printTask(p, task)
		}
	}
	return nil
}

func printTask(p *printer, task *domain.ScheduledTask) {
	state := p.ok("ok")
	switch {
	case !task.Enabled:
		state = p.warn("disabled")
	case task.LastError != "":
		state = p.bad(task.LastError)
	case task.LastRun.IsZero():
		state = "not run yet"
	}
	p.field(task.Name+":", fmt.Sprintf("every %s, last run %s, %s", task.Interval, ago(task.LastRun), state))
}
