package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Write local records and queue them for sync",
	Long: `Create, update or delete local records. Every write is queued and
replayed against the remote store by the next drain.

Fields are given as name=value pairs using the local field names,
for example: mahalsync record create subscriptions userId=u1 plan=gold status=active`,
}

var recordCreateCmd = &cobra.Command{
	Use:   "create [table] [field=value...]",
	Short: "Create a record",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRecordCreate,
}

var recordUpdateCmd = &cobra.Command{
	Use:   "update [table] [id] [field=value...]",
	Short: "Update fields of a record",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runRecordUpdate,
}

var recordDeleteCmd = &cobra.Command{
	Use:   "delete [table] [id]",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(2),
	RunE:  runRecordDelete,
}

func init() {
	recordCmd.AddCommand(recordCreateCmd)
	recordCmd.AddCommand(recordUpdateCmd)
	recordCmd.AddCommand(recordDeleteCmd)
	rootCmd.AddCommand(recordCmd)
}

func runRecordCreate(cmd *cobra.Command, args []string) error {
	if changeTracker == nil {
		return errors.New("record service not configured")
	}

	fields, err := parseFields(args[1:])
	if err != nil {
		return err
	}
	rec, err := changeTracker.Create(cmd.Context(), args[0], fields)
	if err != nil {
		return fmt.Errorf("create failed: %w", err)
	}
	cmd.Printf("Created %s/%s (%s), queued for sync.\n", args[0], rec.ID, rec.IdentityKey)
	return nil
}

func runRecordUpdate(cmd *cobra.Command, args []string) error {
	if changeTracker == nil {
		return errors.New("record service not configured")
	}

	fields, err := parseFields(args[2:])
	if err != nil {
		return err
	}
	rec, err := changeTracker.Update(cmd.Context(), args[0], args[1], fields)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	cmd.Printf("Updated %s/%s, queued for sync.\n", args[0], rec.ID)
	return nil
}

func runRecordDelete(cmd *cobra.Command, args []string) error {
	if changeTracker == nil {
		return errors.New("record service not configured")
	}

	if err := changeTracker.Delete(cmd.Context(), args[0], args[1]); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	cmd.Printf("Deleted %s/%s, queued for sync.\n", args[0], args[1])
	return nil
}

// parseFields turns name=value pairs into fields. Numbers and booleans are
// typed; "null" clears a field.
func parseFields(pairs []string) (domain.Fields, error) {
	fields := make(domain.Fields, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: expected field=value, got %q", domain.ErrInvalidInput, pair)
		}
		fields[name] = parseValue(raw)
	}
	return fields, nil
}

func parseValue(raw string) any {
	switch raw {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
