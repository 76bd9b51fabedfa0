package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/contextsync/internal/domain"
	"github.com/roach88/contextsync/internal/localstore"
)

// DefaultCleanupDelay is how long local backups are kept after migration.
const DefaultCleanupDelay = 48 * time.Hour

// LocalProjects is the local-only project store.
type LocalProjects interface {
	ListProjects(ctx context.Context) ([]domain.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// Flags persists the migration record.
type Flags interface {
	MigrationState(ctx context.Context) (localstore.MigrationState, error)
	MarkMigrationComplete(ctx context.Context, at *time.Time) error
	ClearMigrationTimestamp(ctx context.Context) error
}

// SharedStore is the upload/download API of the shared store.
type SharedStore interface {
	UploadProject(ctx context.Context, p domain.Project) error
	DownloadProject(ctx context.Context, id string) (domain.Project, error)
}

// Connectivity reports whether the client is online.
type Connectivity interface {
	IsOnline() bool
}

// OnlineFunc adapts a function to Connectivity.
type OnlineFunc func() bool

func (f OnlineFunc) IsOnline() bool { return f() }

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithCleanupDelay sets how long backups are kept.
func WithCleanupDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		c.cleanupDelay = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// Coordinator runs migration and cleanup passes.
type Coordinator struct {
	local        LocalProjects
	flags        Flags
	shared       SharedStore
	conn         Connectivity
	now          func() time.Time
	cleanupDelay time.Duration
	logger       *slog.Logger
}

// New returns a Coordinator.
func New(local LocalProjects, flags Flags, shared SharedStore, conn Connectivity, opts ...Option) *Coordinator {
	c := &Coordinator{
		local:        local,
		flags:        flags,
		shared:       shared,
		conn:         conn,
		now:          time.Now,
		cleanupDelay: DefaultCleanupDelay,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Report summarizes a RunMigration call.
type Report struct {
	// AlreadyComplete is set when the complete flag was found set and
	// nothing was done.
	AlreadyComplete bool
	// Attempted counts the user projects considered.
	Attempted int
	// Migrated counts projects uploaded and verified.
	Migrated int
	Failures []Failure
	// Complete is set when this run set the complete flag.
	Complete bool
}

// RunMigration migrates every local user project to the shared store.
func (c *Coordinator) RunMigration(ctx context.Context) (Report, error) {
	state, err := c.flags.MigrationState(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("run migration: %w", err)
	}
	if state.Complete {
		return Report{AlreadyComplete: true}, nil
	}
	if !c.conn.IsOnline() {
		c.logger.Info("migration deferred, client offline")
		return Report{}, ErrOffline
	}

	projects, err := c.userProjects(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("run migration: %w", err)
	}

	report := Report{Attempted: len(projects)}
	if len(projects) == 0 {
		if err := c.flags.MarkMigrationComplete(ctx, nil); err != nil {
			return report, fmt.Errorf("run migration: %w", err)
		}
		report.Complete = true
		c.logger.Info("migration complete, no local projects")
		return report, nil
	}

	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := c.migrate(ctx, p); err != nil {
			c.logger.Warn("project migration failed", "project_id", p.ID, "error", err)
			report.Failures = append(report.Failures, Failure{ProjectID: p.ID, Err: err})
			continue
		}
		report.Migrated++
		c.logger.Info("project migrated", "project_id", p.ID)
	}

	if len(report.Failures) > 0 {
		c.logger.Warn("migration incomplete, will retry on next run",
			"migrated", report.Migrated,
			"failed", len(report.Failures),
		)
		return report, nil
	}

	at := c.now().UTC()
	if err := c.flags.MarkMigrationComplete(ctx, &at); err != nil {
		return report, fmt.Errorf("run migration: %w", err)
	}
	report.Complete = true
	c.logger.Info("migration complete", "migrated", report.Migrated)
	return report, nil
}

func (c *Coordinator) migrate(ctx context.Context, p domain.Project) error {
	if err := c.shared.UploadProject(ctx, p); err != nil {
		return err
	}
	return c.verify(ctx, p)
}

// verify downloads p and compares it with the local copy.
func (c *Coordinator) verify(ctx context.Context, p domain.Project) error {
	remote, err := c.shared.DownloadProject(ctx, p.ID)
	if err != nil {
		return err
	}
	if !domain.ProjectsAreEqual(p, remote) {
		return &IntegrityError{ProjectID: p.ID, Reason: describeMismatch(p, remote)}
	}
	return nil
}

// SkipReason says why a cleanup pass did nothing.
type SkipReason string

const (
	SkipNoBackup SkipReason = "no-backup"
	SkipTooEarly SkipReason = "too-early"
	SkipOffline  SkipReason = "offline"
)

// CleanupReport summarizes a CleanupMigrationBackup call.
type CleanupReport struct {
	Skipped          SkipReason
	Deleted          int
	Failures         []Failure
	TimestampCleared bool
}

// CleanupMigrationBackup deletes local copies that still verify against
// the shared store, once the cleanup delay has passed.
func (c *Coordinator) CleanupMigrationBackup(ctx context.Context) (CleanupReport, error) {
	state, err := c.flags.MigrationState(ctx)
	if err != nil {
		return CleanupReport{}, fmt.Errorf("cleanup migration backup: %w", err)
	}
	if state.Timestamp == nil {
		return CleanupReport{Skipped: SkipNoBackup}, nil
	}
	if elapsed := c.now().Sub(*state.Timestamp); elapsed <= c.cleanupDelay {
		c.logger.Debug("migration backup kept", "elapsed", elapsed.String(), "delay", c.cleanupDelay.String())
		return CleanupReport{Skipped: SkipTooEarly}, nil
	}
	if !c.conn.IsOnline() {
		c.logger.Info("migration cleanup deferred, client offline")
		return CleanupReport{Skipped: SkipOffline}, nil
	}

	projects, err := c.userProjects(ctx)
	if err != nil {
		return CleanupReport{}, fmt.Errorf("cleanup migration backup: %w", err)
	}

	var report CleanupReport
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := c.verify(ctx, p); err != nil {
			c.logger.Warn("backup kept, re-verification failed", "project_id", p.ID, "error", err)
			report.Failures = append(report.Failures, Failure{ProjectID: p.ID, Err: err})
			continue
		}
		if err := c.local.DeleteProject(ctx, p.ID); err != nil {
			report.Failures = append(report.Failures, Failure{ProjectID: p.ID, Err: err})
			continue
		}
		report.Deleted++
		c.logger.Info("local backup deleted", "project_id", p.ID)
	}

	if len(report.Failures) == 0 {
		if err := c.flags.ClearMigrationTimestamp(ctx); err != nil {
			return report, fmt.Errorf("cleanup migration backup: %w", err)
		}
		report.TimestampCleared = true
	}
	return report, nil
}

func (c *Coordinator) userProjects(ctx context.Context) ([]domain.Project, error) {
	all, err := c.local.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Project, 0, len(all))
	for _, p := range all {
		if !domain.IsBuiltIn(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func describeMismatch(local, remote domain.Project) string {
	switch {
	case local.ID != remote.ID:
		return fmt.Sprintf("id %q != %q", local.ID, remote.ID)
	case local.Name != remote.Name:
		return fmt.Sprintf("name %q != %q", local.Name, remote.Name)
	case len(local.Contexts) != len(remote.Contexts):
		return fmt.Sprintf("contexts %d != %d", len(local.Contexts), len(remote.Contexts))
	case len(local.Relationships) != len(remote.Relationships):
		return fmt.Sprintf("relationships %d != %d", len(local.Relationships), len(remote.Relationships))
	case len(local.Groups) != len(remote.Groups):
		return fmt.Sprintf("groups %d != %d", len(local.Groups), len(remote.Groups))
	case len(local.Users) != len(remote.Users):
		return fmt.Sprintf("users %d != %d", len(local.Users), len(remote.Users))
	case len(local.UserNeeds) != len(remote.UserNeeds):
		return fmt.Sprintf("user needs %d != %d", len(local.UserNeeds), len(remote.UserNeeds))
	default:
		return "entity ids differ"
	}
}
