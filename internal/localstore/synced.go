package localstore

import (
	"context"
	"errors"

	"github.com/roach88/contextsync/internal/domain"
)

// SyncedCopies is the durable copy of projects edited through the
// replicated document, stored in synced_projects. Saving through it never
// touches the local-only projects the migration works on.
type SyncedCopies struct {
	s *Store
}

// Synced returns the store's synced-copy view.
func (s *Store) Synced() *SyncedCopies {
	return &SyncedCopies{s: s}
}

// SaveProject writes the latest observed state of p. Like
// Store.SaveProject it skips unchanged projects and reports whether a row
// was written.
func (c *SyncedCopies) SaveProject(ctx context.Context, p domain.Project) (bool, error) {
	return c.s.saveRow(ctx, tableSyncedProjects, p)
}

// LoadProject returns the synced copy of id. A project that has never been
// opened collaboratively falls back to its local-only copy, which is how a
// not yet migrated project seeds an empty shared document.
func (c *SyncedCopies) LoadProject(ctx context.Context, id string) (domain.Project, error) {
	p, err := c.s.loadRow(ctx, tableSyncedProjects, id)
	if errors.Is(err, ErrNotFound) {
		return c.s.loadRow(ctx, tableProjects, id)
	}
	return p, err
}
