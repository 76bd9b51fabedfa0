package localstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contextsync/internal/domain"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testProject(id, name string) domain.Project {
	p := domain.Project{
		ID:   id,
		Name: name,
		Contexts: []domain.BoundedContext{
			{ID: "ctx-1", Name: "Orders", Positions: domain.Positions{Flow: domain.Position{X: 12.5}}},
		},
		Groups: []domain.Group{{ID: "grp-1", Label: "Core", ContextIDs: []string{"ctx-1"}}},
	}
	p.Normalize()
	return p
}

func TestOpen_AppliesSchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.SaveProject(ctx, testProject("p1", "One"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	p, err := s.LoadProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "One", p.Name)
}

func TestSaveLoadProject(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := testProject("p1", "Checkout")

	saved, err := s.SaveProject(ctx, want)
	require.NoError(t, err)
	assert.True(t, saved)

	got, err := s.LoadProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveProject_SkipsUnchanged(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := testProject("p1", "Checkout")

	saved, err := s.SaveProject(ctx, p)
	require.NoError(t, err)
	require.True(t, saved)

	saved, err = s.SaveProject(ctx, p)
	require.NoError(t, err)
	assert.False(t, saved)

	p.Name = "Renamed"
	saved, err = s.SaveProject(ctx, p)
	require.NoError(t, err)
	assert.True(t, saved)

	got, err := s.LoadProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
}

func TestSaveProject_RequiresID(t *testing.T) {
	s := createTestStore(t)
	_, err := s.SaveProject(context.Background(), domain.Project{Name: "anonymous"})
	assert.Error(t, err)
}

func TestLoadProject_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.LoadProject(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListProjects_OrderedByID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"p3", "p1", "p2"} {
		_, err := s.SaveProject(ctx, testProject(id, "name-"+id))
		require.NoError(t, err)
	}

	got, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "p2", got[1].ID)
	assert.Equal(t, "p3", got[2].ID)
}

func TestListProjects_Empty(t *testing.T) {
	got, err := createTestStore(t).ListProjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteProject(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.SaveProject(ctx, testProject("p1", "One"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, "p1"))
	require.NoError(t, s.DeleteProject(ctx, "p1"))

	_, err = s.LoadProject(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMigrationState_Defaults(t *testing.T) {
	st, err := createTestStore(t).MigrationState(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Complete)
	assert.Nil(t, st.Timestamp)
}

func TestMarkMigrationComplete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.MarkMigrationComplete(ctx, &at))

	st, err := s.MigrationState(ctx)
	require.NoError(t, err)
	assert.True(t, st.Complete)
	require.NotNil(t, st.Timestamp)
	assert.True(t, at.Equal(*st.Timestamp))

	require.NoError(t, s.ClearMigrationTimestamp(ctx))
	st, err = s.MigrationState(ctx)
	require.NoError(t, err)
	assert.True(t, st.Complete)
	assert.Nil(t, st.Timestamp)
}

func TestMarkMigrationComplete_WithoutTimestamp(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.MarkMigrationComplete(ctx, nil))

	st, err := s.MigrationState(ctx)
	require.NoError(t, err)
	assert.True(t, st.Complete)
	assert.Nil(t, st.Timestamp)
}

func TestSynced_SeparateFromLocalProjects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	synced := s.Synced()

	saved, err := synced.SaveProject(ctx, testProject("p1", "Edited"))
	require.NoError(t, err)
	assert.True(t, saved)

	local, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, local, "synced copies are not local-only projects")

	_, err = s.LoadProject(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := synced.LoadProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Edited", got.Name)

	saved, err = synced.SaveProject(ctx, testProject("p1", "Edited"))
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestSynced_LeavesLocalCopyUntouched(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.SaveProject(ctx, testProject("p1", "Original"))
	require.NoError(t, err)

	_, err = s.Synced().SaveProject(ctx, testProject("p1", "Edited"))
	require.NoError(t, err)

	local, err := s.LoadProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Original", local.Name)

	synced, err := s.Synced().LoadProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Edited", synced.Name)
}

func TestSynced_LoadFallsBackToLocalCopy(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.SaveProject(ctx, testProject("p1", "Not yet opened"))
	require.NoError(t, err)

	got, err := s.Synced().LoadProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Not yet opened", got.Name)

	_, err = s.Synced().LoadProject(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_MigratesV1Database(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v1.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("DROP TABLE synced_projects")
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, 2, version)

	_, err = s.Synced().SaveProject(context.Background(), testProject("p1", "One"))
	assert.NoError(t, err)
}
