package migration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contextsync/internal/domain"
	"github.com/roach88/contextsync/internal/localstore"
	"github.com/roach88/contextsync/internal/testutil"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	local  *memLocal
	flags  *memFlags
	shared *memShared
	online bool
	clock  *testutil.ManualClock
	coord  *Coordinator
}

func newFixture(t *testing.T, ps ...domain.Project) *fixture {
	t.Helper()
	f := &fixture{
		local:  newMemLocal(ps...),
		flags:  &memFlags{},
		shared: newMemShared(),
		online: true,
		clock:  testutil.NewManualClock(epoch),
	}
	f.coord = New(f.local, f.flags, f.shared, OnlineFunc(func() bool { return f.online }),
		WithClock(f.clock.Now),
	)
	return f
}

func builtIn(id string) domain.Project {
	return testutil.Project(id, "Example "+id, 2, 1)
}

func TestRunMigration_SingleProject(t *testing.T) {
	f := newFixture(t, testutil.Project("proj-1", "Shop", 3, 2))

	report, err := f.coord.RunMigration(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Migrated)
	assert.Empty(t, report.Failures)
	assert.True(t, report.Complete)

	stored, ok := f.shared.projects["proj-1"]
	require.True(t, ok)
	assert.Len(t, stored.Contexts, 3)
	assert.Len(t, stored.Relationships, 2)

	assert.True(t, f.flags.state.Complete)
	require.NotNil(t, f.flags.state.Timestamp)
	assert.Equal(t, epoch, *f.flags.state.Timestamp)

	assert.True(t, f.local.has("proj-1"), "migration never deletes local copies")
}

func TestRunMigration_AlreadyCompleteDoesNothing(t *testing.T) {
	f := newFixture(t, testutil.Project("proj-1", "Shop", 1, 0))
	f.flags.state.Complete = true

	report, err := f.coord.RunMigration(context.Background())
	require.NoError(t, err)

	assert.True(t, report.AlreadyComplete)
	assert.Zero(t, f.shared.calls())
	assert.Zero(t, f.flags.marks)
}

func TestRunMigration_OfflineDefers(t *testing.T) {
	f := newFixture(t, testutil.Project("proj-1", "Shop", 1, 0))
	f.online = false

	_, err := f.coord.RunMigration(context.Background())
	require.ErrorIs(t, err, ErrOffline)

	assert.Zero(t, f.shared.calls())
	assert.False(t, f.flags.state.Complete)
}

func TestRunMigration_SkipsBuiltIns(t *testing.T) {
	f := newFixture(t,
		builtIn("acme-ecommerce"),
		builtIn("cbioportal"),
		builtIn("elan-warranty"),
		builtIn("empty-project"),
		testutil.Project("mine", "Mine", 1, 0),
	)

	report, err := f.coord.RunMigration(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, f.shared.uploads)
	_, ok := f.shared.projects["acme-ecommerce"]
	assert.False(t, ok)
}

func TestRunMigration_NoUserProjectsMarksCompleteWithoutTimestamp(t *testing.T) {
	f := newFixture(t, builtIn("acme-ecommerce"))

	report, err := f.coord.RunMigration(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Complete)
	assert.Zero(t, report.Attempted)
	assert.Zero(t, f.shared.calls())
	assert.True(t, f.flags.state.Complete)
	assert.Nil(t, f.flags.state.Timestamp)
}

func TestRunMigration_IntegrityFailureLeavesFlagUnset(t *testing.T) {
	f := newFixture(t,
		testutil.Project("a", "A", 2, 1),
		testutil.Project("b", "B", 3, 2),
	)
	f.shared.corrupt = func(p domain.Project) domain.Project {
		if p.ID == "b" {
			p.Contexts = p.Contexts[:1]
		}
		return p
	}

	report, err := f.coord.RunMigration(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Migrated)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "b", report.Failures[0].ProjectID)
	assert.True(t, IsIntegrityError(report.Failures[0].Err))
	assert.Contains(t, report.Failures[0].Err.Error(), "contexts 3 != 1")

	assert.False(t, report.Complete)
	assert.False(t, f.flags.state.Complete)
	assert.Zero(t, f.flags.marks)
}

func TestRunMigration_NetworkFailureContinuesWithOthers(t *testing.T) {
	f := newFixture(t,
		testutil.Project("a", "A", 1, 0),
		testutil.Project("b", "B", 1, 0),
		testutil.Project("c", "C", 1, 0),
	)
	f.shared.failUpload["a"] = true

	report, err := f.coord.RunMigration(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Migrated)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, errNetwork)
	assert.False(t, f.flags.state.Complete)

	// The next run retries the whole batch and completes.
	delete(f.shared.failUpload, "a")
	report, err = f.coord.RunMigration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Migrated)
	assert.True(t, report.Complete)
}

func TestRunMigration_DownloadFailureCountsAsFailure(t *testing.T) {
	f := newFixture(t, testutil.Project("a", "A", 1, 0))
	f.shared.failDownload["a"] = true

	report, err := f.coord.RunMigration(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.False(t, report.Complete)
}

func TestRunMigration_CancelledContext(t *testing.T) {
	f := newFixture(t, testutil.Project("a", "A", 1, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.coord.RunMigration(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, f.flags.state.Complete)
}

func TestRunMigration_ListError(t *testing.T) {
	f := newFixture(t)
	f.local.listErr = errors.New("disk gone")

	_, err := f.coord.RunMigration(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func migrated(t *testing.T, ps ...domain.Project) *fixture {
	t.Helper()
	f := newFixture(t, ps...)
	report, err := f.coord.RunMigration(context.Background())
	require.NoError(t, err)
	require.True(t, report.Complete)
	return f
}

func TestCleanup_NoTimestampSkips(t *testing.T) {
	f := newFixture(t, testutil.Project("a", "A", 1, 0))

	report, err := f.coord.CleanupMigrationBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SkipNoBackup, report.Skipped)
	assert.True(t, f.local.has("a"))
}

func TestCleanup_WindowBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		deleted bool
	}{
		{"one hour", time.Hour, false},
		{"47h59m", 47*time.Hour + 59*time.Minute, false},
		{"exactly 48h", 48 * time.Hour, false},
		{"48h plus 1s", 48*time.Hour + time.Second, true},
		{"49h", 49 * time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := migrated(t, testutil.Project("a", "A", 2, 1))
			f.clock.Advance(tt.elapsed)

			report, err := f.coord.CleanupMigrationBackup(context.Background())
			require.NoError(t, err)

			assert.Equal(t, !tt.deleted, f.local.has("a"))
			if tt.deleted {
				assert.Empty(t, report.Skipped)
				assert.Equal(t, 1, report.Deleted)
				assert.True(t, report.TimestampCleared)
				assert.Nil(t, f.flags.state.Timestamp)
				assert.True(t, f.flags.state.Complete, "complete flag survives cleanup")
			} else {
				assert.Equal(t, SkipTooEarly, report.Skipped)
				assert.NotNil(t, f.flags.state.Timestamp)
			}
		})
	}
}

func TestCleanup_CustomDelay(t *testing.T) {
	f := migrated(t, testutil.Project("a", "A", 1, 0))
	f.coord = New(f.local, f.flags, f.shared, OnlineFunc(func() bool { return true }),
		WithClock(f.clock.Now),
		WithCleanupDelay(time.Minute),
	)
	f.clock.Advance(2 * time.Minute)

	report, err := f.coord.CleanupMigrationBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
}

func TestCleanup_ReverificationFailureKeepsBackup(t *testing.T) {
	f := migrated(t,
		testutil.Project("a", "A", 2, 1),
		testutil.Project("b", "B", 2, 1),
	)
	f.shared.corrupt = func(p domain.Project) domain.Project {
		if p.ID == "a" {
			p.Name = "Tampered"
		}
		return p
	}
	f.clock.Advance(49 * time.Hour)

	report, err := f.coord.CleanupMigrationBackup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Deleted)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "a", report.Failures[0].ProjectID)
	assert.True(t, f.local.has("a"))
	assert.False(t, f.local.has("b"))

	assert.False(t, report.TimestampCleared)
	assert.NotNil(t, f.flags.state.Timestamp, "timestamp kept so cleanup retries")

	// Once the shared copy is healthy the next pass finishes.
	f.shared.corrupt = nil
	report, err = f.coord.CleanupMigrationBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	assert.True(t, report.TimestampCleared)
}

func TestCleanup_OfflineSkips(t *testing.T) {
	f := migrated(t, testutil.Project("a", "A", 1, 0))
	f.clock.Advance(72 * time.Hour)
	f.online = false
	before := f.shared.calls()

	report, err := f.coord.CleanupMigrationBackup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SkipOffline, report.Skipped)
	assert.True(t, f.local.has("a"))
	assert.Equal(t, before, f.shared.calls())
}

func TestCleanup_NeverDeletesBuiltIns(t *testing.T) {
	f := migrated(t, builtIn("cbioportal"), testutil.Project("a", "A", 1, 0))
	f.clock.Advance(72 * time.Hour)

	report, err := f.coord.CleanupMigrationBackup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Deleted)
	assert.True(t, f.local.has("cbioportal"))
	assert.Equal(t, []string{"a"}, f.local.deleted)
}

func TestCleanup_UsesStoredTimestampNotMigrationRun(t *testing.T) {
	f := newFixture(t, testutil.Project("a", "A", 1, 0))
	f.shared.projects["a"] = f.local.projects["a"]
	ts := epoch.Add(-50 * time.Hour)
	f.flags.state = localstore.MigrationState{Complete: true, Timestamp: &ts}

	report, err := f.coord.CleanupMigrationBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
}
