package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/contextsync/internal/canon"
	"github.com/roach88/contextsync/internal/domain"
)

// Tables holding project rows. Both share the same columns.
const (
	tableProjects       = "projects"
	tableSyncedProjects = "synced_projects"
)

// SaveProject writes p to the local-only projects. It reports false,
// without touching the row, when the stored copy already has the same
// fingerprint.
func (s *Store) SaveProject(ctx context.Context, p domain.Project) (bool, error) {
	return s.saveRow(ctx, tableProjects, p)
}

// LoadProject reads one local-only project.
func (s *Store) LoadProject(ctx context.Context, id string) (domain.Project, error) {
	return s.loadRow(ctx, tableProjects, id)
}

func (s *Store) saveRow(ctx context.Context, table string, p domain.Project) (bool, error) {
	if p.ID == "" {
		return false, errors.New("localstore: project has no id")
	}
	p.Normalize()

	doc, err := canon.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("save project %s: %w", p.ID, err)
	}
	fp, err := canon.Fingerprint(canon.DomainProject, p)
	if err != nil {
		return false, fmt.Errorf("save project %s: %w", p.ID, err)
	}

	// The WHERE clause turns an unchanged save into a zero-row update, which
	// is how callers learn nothing was written.
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %[1]s (id, name, document, fingerprint, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			document = excluded.document,
			fingerprint = excluded.fingerprint,
			saved_at = excluded.saved_at
		WHERE %[1]s.fingerprint != excluded.fingerprint
	`, table), p.ID, p.Name, string(doc), fp, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("save project %s: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save project %s: %w", p.ID, err)
	}
	if n == 0 {
		s.logger.Debug("project unchanged, skipped save", "project_id", p.ID, "table", table)
		return false, nil
	}
	return true, nil
}

func (s *Store) loadRow(ctx context.Context, table, id string) (domain.Project, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT document FROM %s WHERE id = ?`, table), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Project{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return domain.Project{}, fmt.Errorf("load project %s: %w", id, err)
	}
	return decodeProject(id, doc)
}

// ListProjects returns every local-only project ordered by id.
func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, document FROM projects ORDER BY id ASC COLLATE BINARY`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []domain.Project
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		p, err := decodeProject(id, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return out, nil
}

// DeleteProject removes a local-only project. Deleting a missing project is not an
// error.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}

func decodeProject(id, doc string) (domain.Project, error) {
	var p domain.Project
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return domain.Project{}, fmt.Errorf("decode project %s: %w", id, err)
	}
	p.Normalize()
	return p, nil
}
