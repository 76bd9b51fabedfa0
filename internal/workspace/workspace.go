// Package workspace is the caller-facing surface of the sync client. It
// wires the connection manager, the document bridge, the undo history and
// the local store around one open project at a time.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/contextsync/internal/bridge"
	"github.com/roach88/contextsync/internal/domain"
	"github.com/roach88/contextsync/internal/history"
	"github.com/roach88/contextsync/internal/localstore"
	"github.com/roach88/contextsync/internal/replica"
	"github.com/roach88/contextsync/internal/session"
)

// ErrNoProject is returned when no project is open.
var ErrNoProject = errors.New("workspace: no project open")

// LocalStore keeps a durable copy of every observed project.
type LocalStore interface {
	SaveProject(ctx context.Context, p domain.Project) (bool, error)
	LoadProject(ctx context.Context, id string) (domain.Project, error)
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLocalStore saves every observed project to s and uses it as the seed
// of last resort when opening an empty document.
func WithLocalStore(s LocalStore) Option {
	return func(w *Workspace) {
		w.local = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) {
		w.logger = l
	}
}

// Workspace holds the open project.
type Workspace struct {
	mgr     *session.Manager
	history *history.History
	local   LocalStore
	logger  *slog.Logger

	unsubscribe func()

	mu        sync.Mutex
	projectID string
	editor    *bridge.Editor
	unobserve func()
	subs      map[int]func(domain.Project)
	nextSub   int
}

// New returns a Workspace driving mgr.
func New(mgr *session.Manager, opts ...Option) *Workspace {
	w := &Workspace{
		mgr:    mgr,
		logger: slog.Default(),
		subs:   make(map[int]func(domain.Project)),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.history = history.New(history.WithLogger(w.logger))
	w.unsubscribe = mgr.Subscribe(w.onSignal)
	return w
}

// Manager returns the connection manager.
func (w *Workspace) Manager() *session.Manager {
	return w.mgr
}

// Open connects to projectID and makes it the open project.
//
// When the shared document is empty after the first sync it is populated
// from seed, or from the local copy when seed is nil. A document that
// already has content is never overwritten. When the connect times out the
// project is opened without seeding, since the shared state is unknown.
func (w *Workspace) Open(ctx context.Context, projectID string, seed *domain.Project) error {
	if seed != nil && seed.ID != projectID {
		return fmt.Errorf("open %s: seed is project %s", projectID, seed.ID)
	}
	if err := w.mgr.ConnectToDocument(ctx, projectID); err != nil {
		return fmt.Errorf("open %s: %w", projectID, err)
	}

	doc := w.mgr.Doc()
	if doc == nil || w.mgr.ActiveDocumentID() != projectID {
		return fmt.Errorf("open %s: %w", projectID, session.ErrSessionReplaced)
	}

	if !bridge.HasContent(doc) {
		if w.mgr.IsOnline() {
			if err := w.seed(ctx, doc, projectID, seed); err != nil {
				return fmt.Errorf("open %s: %w", projectID, err)
			}
		} else {
			w.logger.Warn("opened without seeding, shared state unknown",
				"project_id", projectID,
				"state", string(w.mgr.State()),
			)
		}
	}

	editor := bridge.NewEditor(doc, bridge.WithRecorder(w.history), bridge.WithEditorLogger(w.logger))
	w.history.Bind(editor)
	unobserve := bridge.Observe(doc, w.publish, w.logger)

	w.mu.Lock()
	prev := w.unobserve
	w.projectID = projectID
	w.editor = editor
	w.unobserve = unobserve
	w.mu.Unlock()
	if prev != nil {
		prev()
	}

	if p, err := bridge.Extract(doc); err == nil {
		w.publish(p)
	}
	w.logger.Info("project opened", "project_id", projectID)
	return nil
}

func (w *Workspace) seed(ctx context.Context, doc *replica.Doc, projectID string, seed *domain.Project) error {
	src := seed
	if src == nil && w.local != nil {
		p, err := w.local.LoadProject(ctx, projectID)
		switch {
		case err == nil:
			src = &p
		case errors.Is(err, localstore.ErrNotFound):
		default:
			return err
		}
	}
	if src == nil {
		return nil
	}
	w.logger.Debug("populating empty document", "project_id", projectID)
	return bridge.Populate(doc, *src)
}

// ProjectID returns the open project's id, or "".
func (w *Workspace) ProjectID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.projectID
}

// Editor returns the mutation surface of the open project.
func (w *Workspace) Editor() (*bridge.Editor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.editor == nil {
		return nil, ErrNoProject
	}
	return w.editor, nil
}

// Project extracts the open project.
func (w *Workspace) Project() (domain.Project, error) {
	e, err := w.Editor()
	if err != nil {
		return domain.Project{}, err
	}
	return bridge.Extract(e.Doc())
}

// Undo reverts the latest local mutation.
func (w *Workspace) Undo() (bool, error) {
	return w.history.Undo()
}

// Redo reapplies the latest undone mutation.
func (w *Workspace) Redo() (bool, error) {
	return w.history.Redo()
}

// CanUndo reports whether Undo would do anything.
func (w *Workspace) CanUndo() bool {
	return w.history.CanUndo()
}

// CanRedo reports whether Redo would do anything.
func (w *Workspace) CanRedo() bool {
	return w.history.CanRedo()
}

// Subscribe registers fn for every change to the open project, local or
// remote. fn runs on the goroutine that applied the change, including the
// one running Undo or Redo, and may call CanUndo and CanRedo.
func (w *Workspace) Subscribe(fn func(domain.Project)) (cancel func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextSub++
	id := w.nextSub
	w.subs[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
}

// Close disconnects and detaches from the manager.
func (w *Workspace) Close() {
	w.mgr.Disconnect()
	w.unsubscribe()
}

func (w *Workspace) publish(p domain.Project) {
	if p.ID == "" {
		return
	}
	if w.local != nil {
		if _, err := w.local.SaveProject(context.Background(), p); err != nil {
			w.logger.Error("local save failed", "project_id", p.ID, "error", err)
		}
	}

	w.mu.Lock()
	subs := make([]func(domain.Project), 0, len(w.subs))
	for id := 1; id <= w.nextSub; id++ {
		if fn, ok := w.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	w.mu.Unlock()

	for _, fn := range subs {
		fn(p)
	}
}

func (w *Workspace) onSignal(sig session.Signal) {
	switch sig.Kind {
	case session.SignalSessionStarted, session.SignalDisconnected:
		w.history.Clear()
		w.detach()
	}
}

func (w *Workspace) detach() {
	w.mu.Lock()
	unobserve := w.unobserve
	w.projectID = ""
	w.editor = nil
	w.unobserve = nil
	w.mu.Unlock()
	if unobserve != nil {
		unobserve()
	}
}
