package remote

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/contextsync/internal/domain"
)

// StoreServer is an in-memory shared store speaking the same HTTP API as
// the real one. Used by tests and local development.
type StoreServer struct {
	router chi.Router
	logger *slog.Logger

	mu       sync.Mutex
	projects map[string]domain.Project

	// OnDownload, when set, rewrites a project before it is served. Tests
	// use it to simulate a store that corrupts data.
	OnDownload func(domain.Project) domain.Project
}

// NewStoreServer returns an empty store.
func NewStoreServer(logger *slog.Logger) *StoreServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &StoreServer{logger: logger, projects: make(map[string]domain.Project)}

	r := chi.NewRouter()
	r.Get("/projects/{id}", s.handleGet)
	r.Put("/projects/{id}", s.handlePut)
	s.router = r
	return s
}

func (s *StoreServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Project returns a stored project.
func (s *StoreServer) Project(id string) (domain.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	return p, ok
}

// IDs returns the stored project ids, sorted.
func (s *StoreServer) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.projects))
	for id := range s.projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove deletes a stored project.
func (s *StoreServer) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, id)
}

func (s *StoreServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := s.Project(id)
	if !ok {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	if s.OnDownload != nil {
		p = s.OnDownload(p)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(p); err != nil {
		s.logger.Error("encode project", "project_id", id, "error", err)
	}
}

func (s *StoreServer) handlePut(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var p domain.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid project body", http.StatusBadRequest)
		return
	}
	if p.ID != id {
		http.Error(w, "project id does not match path", http.StatusBadRequest)
		return
	}
	p.Normalize()

	s.mu.Lock()
	s.projects[id] = p
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
