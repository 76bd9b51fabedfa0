package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// CleanupResult is the output of the cleanup command.
type CleanupResult struct {
	Skipped          string           `json:"skipped,omitempty"`
	Deleted          int              `json:"deleted"`
	TimestampCleared bool             `json:"timestamp_cleared"`
	Failures         []FailureSummary `json:"failures"`
}

func (r CleanupResult) renderText(w io.Writer, _ bool) {
	if r.Skipped != "" {
		fmt.Fprintf(w, "Cleanup skipped: %s\n", r.Skipped)
		return
	}
	fmt.Fprintf(w, "Deleted %d local backup(s).\n", r.Deleted)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  KEPT %s: %s\n", f.ProjectID, f.Error)
	}
	if r.TimestampCleared {
		fmt.Fprintln(w, "All backups removed.")
	}
}

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrationOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove local backups of migrated projects",
		Long: `Remove local copies of migrated projects once the cleanup delay
(CONTEXTSYNC_CLEANUP_DELAY, 48h by default) has passed since migration.

Each project is downloaded again and compared with the local copy; only
projects that still verify are deleted. Built-in example projects are
never touched. Nothing is deleted while the relay is unreachable.

Examples:
  contextsync cleanup --db ./contextsync.db
  contextsync cleanup --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.HealthTimeout, "health-timeout", 5*time.Second, "relay health check timeout")

	return cmd
}

func runCleanup(opts *MigrationOptions, cmd *cobra.Command) error {
	coord, done, err := newCoordinator(opts, cmd)
	if err != nil {
		return err
	}
	defer done()

	report, err := coord.CleanupMigrationBackup(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "cleanup failed", err)
	}

	result := CleanupResult{
		Skipped:          string(report.Skipped),
		Deleted:          report.Deleted,
		TimestampCleared: report.TimestampCleared,
		Failures:         summarize(report.Failures),
	}
	if err := opts.formatter(cmd).Success(result); err != nil {
		return err
	}
	if len(result.Failures) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d backup(s) kept after failed re-verification", len(result.Failures)))
	}
	return nil
}
