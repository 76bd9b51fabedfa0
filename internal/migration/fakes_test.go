package migration

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/roach88/contextsync/internal/domain"
	"github.com/roach88/contextsync/internal/localstore"
)

type memLocal struct {
	mu       sync.Mutex
	projects map[string]domain.Project
	deleted  []string
	listErr  error
}

func newMemLocal(ps ...domain.Project) *memLocal {
	m := &memLocal{projects: make(map[string]domain.Project)}
	for _, p := range ps {
		m.projects[p.ID] = p
	}
	return m
}

func (m *memLocal) ListProjects(context.Context) ([]domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memLocal) DeleteProject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projects, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memLocal) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.projects[id]
	return ok
}

type memFlags struct {
	state  localstore.MigrationState
	marks  int
	clears int
}

func (f *memFlags) MigrationState(context.Context) (localstore.MigrationState, error) {
	return f.state, nil
}

func (f *memFlags) MarkMigrationComplete(_ context.Context, at *time.Time) error {
	f.marks++
	f.state.Complete = true
	f.state.Timestamp = at
	return nil
}

func (f *memFlags) ClearMigrationTimestamp(context.Context) error {
	f.clears++
	f.state.Timestamp = nil
	return nil
}

var errNetwork = errors.New("network unreachable")

type memShared struct {
	mu        sync.Mutex
	projects  map[string]domain.Project
	uploads   int
	downloads int

	failUpload   map[string]bool
	failDownload map[string]bool
	corrupt      func(domain.Project) domain.Project
}

func newMemShared() *memShared {
	return &memShared{
		projects:     make(map[string]domain.Project),
		failUpload:   make(map[string]bool),
		failDownload: make(map[string]bool),
	}
}

func (s *memShared) UploadProject(_ context.Context, p domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.failUpload[p.ID] {
		return errNetwork
	}
	s.projects[p.ID] = p
	return nil
}

func (s *memShared) DownloadProject(_ context.Context, id string) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads++
	if s.failDownload[id] {
		return domain.Project{}, errNetwork
	}
	p, ok := s.projects[id]
	if !ok {
		return domain.Project{}, errors.New("not found")
	}
	if s.corrupt != nil {
		p = s.corrupt(p)
	}
	return p, nil
}

func (s *memShared) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads + s.downloads
}
