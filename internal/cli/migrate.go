package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/contextsync/internal/migration"
	"github.com/roach88/contextsync/internal/remote"
)

// MigrationOptions holds flags shared by the migrate and cleanup commands.
type MigrationOptions struct {
	*RootOptions
	HealthTimeout time.Duration
}

// FailureSummary describes one project a pass could not finish.
type FailureSummary struct {
	ProjectID string `json:"project_id"`
	Error     string `json:"error"`
	Integrity bool   `json:"integrity"`
}

// MigrateResult is the output of the migrate command.
type MigrateResult struct {
	AlreadyComplete bool             `json:"already_complete"`
	Attempted       int              `json:"attempted"`
	Migrated        int              `json:"migrated"`
	Complete        bool             `json:"complete"`
	Failures        []FailureSummary `json:"failures"`
}

func (r MigrateResult) renderText(w io.Writer, _ bool) {
	if r.AlreadyComplete {
		fmt.Fprintln(w, "Migration already complete.")
		return
	}
	fmt.Fprintf(w, "Migrated %d/%d projects.\n", r.Migrated, r.Attempted)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  FAIL %s: %s\n", f.ProjectID, f.Error)
	}
	if r.Complete {
		fmt.Fprintln(w, "Migration complete.")
	} else {
		fmt.Fprintln(w, "Migration incomplete; it will be retried on the next run.")
	}
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrationOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Upload local-only projects to the shared store",
		Long: `Upload every local user project to the shared store and verify each
round trip. The migration is marked complete only when every project
verifies; otherwise the whole batch is retried on the next run.

Local copies are kept. Use 'contextsync cleanup' after the cleanup delay
to remove them.

Examples:
  contextsync migrate --db ./contextsync.db --store https://store.example.com
  contextsync migrate --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.HealthTimeout, "health-timeout", 5*time.Second, "relay health check timeout")

	return cmd
}

func runMigrate(opts *MigrationOptions, cmd *cobra.Command) error {
	coord, done, err := newCoordinator(opts, cmd)
	if err != nil {
		return err
	}
	defer done()

	report, err := coord.RunMigration(cmd.Context())
	if errors.Is(err, migration.ErrOffline) {
		return opts.formatter(cmd).Fail(CodeOffline, "relay unreachable, migration deferred", nil, err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "migration failed", err)
	}

	result := MigrateResult{
		AlreadyComplete: report.AlreadyComplete,
		Attempted:       report.Attempted,
		Migrated:        report.Migrated,
		Complete:        report.Complete,
		Failures:        summarize(report.Failures),
	}
	if err := opts.formatter(cmd).Success(result); err != nil {
		return err
	}
	if len(result.Failures) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d project(s) failed verification", len(result.Failures)))
	}
	return nil
}

// newCoordinator wires the local database, the shared store client and a
// relay health check into a migration coordinator.
func newCoordinator(opts *MigrationOptions, cmd *cobra.Command) (*migration.Coordinator, func(), error) {
	st, err := opts.openStore()
	if err != nil {
		return nil, nil, err
	}

	client, err := remote.New(opts.Config.SharedStoreURL, remote.WithLogger(opts.Logger))
	if err != nil {
		closeStore(st, opts.Logger)
		return nil, nil, WrapExitError(ExitCommandError, "invalid shared store URL", err)
	}

	_, healthErr := checkRelay(cmd.Context(), opts.RootOptions, opts.HealthTimeout)
	if healthErr != nil {
		opts.Logger.Info("relay health check failed, treating client as offline", "error", healthErr)
	}
	online := healthErr == nil

	coord := migration.New(st, st, client, migration.OnlineFunc(func() bool { return online }),
		migration.WithLogger(opts.Logger),
		migration.WithCleanupDelay(opts.Config.CleanupDelay),
	)
	return coord, func() { closeStore(st, opts.Logger) }, nil
}

func summarize(failures []migration.Failure) []FailureSummary {
	out := make([]FailureSummary, 0, len(failures))
	for _, f := range failures {
		out = append(out, FailureSummary{
			ProjectID: f.ProjectID,
			Error:     f.Err.Error(),
			Integrity: migration.IsIntegrityError(f.Err),
		})
	}
	return out
}
