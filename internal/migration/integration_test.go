package migration

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contextsync/internal/localstore"
	"github.com/roach88/contextsync/internal/remote"
	"github.com/roach88/contextsync/internal/testutil"
)

func TestMigration_EndToEnd(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewManualClock(epoch)

	store, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"), localstore.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.SaveProject(ctx, testutil.Project("proj-1", "Shop", 3, 2))
	require.NoError(t, err)
	_, err = store.SaveProject(ctx, testutil.Project("empty-project", "Empty", 0, 0))
	require.NoError(t, err)

	shared := remote.NewStoreServer(nil)
	srv := httptest.NewServer(shared)
	t.Cleanup(srv.Close)
	client, err := remote.New(srv.URL, remote.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	coord := New(store, store, client, OnlineFunc(func() bool { return true }), WithClock(clock.Now))

	report, err := coord.RunMigration(ctx)
	require.NoError(t, err)
	assert.True(t, report.Complete)
	assert.Equal(t, []string{"proj-1"}, shared.IDs())

	state, err := store.MigrationState(ctx)
	require.NoError(t, err)
	assert.True(t, state.Complete)
	require.NotNil(t, state.Timestamp)

	clock.Advance(48*time.Hour + time.Minute)
	cleanup, err := coord.CleanupMigrationBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleanup.Deleted)
	assert.True(t, cleanup.TimestampCleared)

	_, err = store.LoadProject(ctx, "proj-1")
	require.ErrorIs(t, err, localstore.ErrNotFound)
	_, err = store.LoadProject(ctx, "empty-project")
	require.NoError(t, err)

	state, err = store.MigrationState(ctx)
	require.NoError(t, err)
	assert.True(t, state.Complete)
	assert.Nil(t, state.Timestamp)
}
