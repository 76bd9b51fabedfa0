package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/contextsync/internal/replica"
)

// DefaultConnectTimeout bounds the wait for the initial sync.
const DefaultConnectTimeout = 10 * time.Second

// Provider is the network side of a session.
type Provider interface {
	// Connect starts connecting in the background.
	Connect()
	// Destroy stops the provider. It must not call handlers synchronously.
	Destroy()
}

// Handlers receive provider outcomes.
type Handlers struct {
	OnSync  func()
	OnClose func(err error)
}

// ProviderFactory builds the provider for a new session. An error is a
// construction failure and is returned to the caller of ConnectToDocument.
type ProviderFactory func(docID string, doc *replica.Doc, h Handlers) (Provider, error)

// Session is the live pairing of a document and its provider.
type Session struct {
	DocumentID string
	Doc        *replica.Doc
	Provider   Provider

	synced     chan struct{}
	syncedOnce sync.Once
	ended      chan struct{}
}

func (s *Session) markSynced() {
	s.syncedOnce.Do(func() { close(s.synced) })
}

func (s *Session) teardown() {
	close(s.ended)
	if s.Provider != nil {
		s.Provider.Destroy()
	}
	s.Doc.Destroy()
}

// SignalKind identifies a manager notification.
type SignalKind string

const (
	// SignalSessionStarted fires when ConnectToDocument installs a new
	// session, before any state change.
	SignalSessionStarted SignalKind = "session-started"
	// SignalStateChanged fires whenever the Status changes.
	SignalStateChanged SignalKind = "state-changed"
	// SignalDisconnected fires on every explicit Disconnect, distinct from a
	// connection that went offline.
	SignalDisconnected SignalKind = "disconnected"
)

// Signal is delivered to subscribers after the manager's lock is released.
type Signal struct {
	Kind       SignalKind
	DocumentID string
	Previous   Status
	Status     Status
}

// Option configures a Manager.
type Option func(*Manager)

// WithConnectTimeout sets how long ConnectToDocument waits for the first sync.
func WithConnectTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithMaxReconnectAttempts sets the reconnect budget.
func WithMaxReconnectAttempts(n int) Option {
	return func(m *Manager) {
		m.policy.MaxReconnectAttempts = n
	}
}

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithDocOptions passes options to every replica.New the manager calls.
func WithDocOptions(opts ...replica.Option) Option {
	return func(m *Manager) {
		m.docOpts = append(m.docOpts, opts...)
	}
}

// Manager owns at most one Session at a time.
type Manager struct {
	factory ProviderFactory
	policy  Policy
	timeout time.Duration
	logger  *slog.Logger
	docOpts []replica.Option

	mu          sync.Mutex
	status      Status
	current     *Session
	failure     *ConnectionError
	subscribers map[int]func(Signal)
	nextSub     int
}

// NewManager returns a disconnected manager.
func NewManager(factory ProviderFactory, opts ...Option) *Manager {
	m := &Manager{
		factory:     factory,
		policy:      DefaultPolicy(),
		timeout:     DefaultConnectTimeout,
		logger:      slog.Default(),
		status:      Disconnected,
		subscribers: make(map[int]func(Signal)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConnectToDocument replaces any current session with a new one for docID
// and waits for its first sync.
//
// The state is connecting when this returns control to other goroutines for
// the first time. The call returns nil once the session is connected, and
// also when the connect timeout expires (the state is then error). A
// provider construction failure is returned as a *ConnectionError. A
// cancelled ctx returns ctx.Err() and leaves the session running.
func (m *Manager) ConnectToDocument(ctx context.Context, docID string) error {
	if docID == "" {
		return errors.New("session: empty document id")
	}

	sess := &Session{
		DocumentID: docID,
		Doc:        replica.New(m.docOpts...),
		synced:     make(chan struct{}),
		ended:      make(chan struct{}),
	}

	m.mu.Lock()
	old := m.current
	m.current = sess
	m.failure = nil
	signals := []Signal{{Kind: SignalSessionStarted, DocumentID: docID, Previous: m.status, Status: m.status}}
	signals = append(signals, m.applyLocked(Event{Kind: EventConnectRequested})...)
	m.mu.Unlock()

	if old != nil {
		m.logger.Debug("replacing session", "document_id", old.DocumentID, "next_document_id", docID)
		old.teardown()
	}
	m.emit(signals)

	provider, err := m.factory(docID, sess.Doc, Handlers{
		OnSync:  func() { m.handleSync(sess) },
		OnClose: func(err error) { m.handleClose(sess, err) },
	})
	if err != nil {
		cerr := newConstructionError(docID, err)
		m.fail(sess, Event{Kind: EventConstructionFailed, Message: cerr.Message}, cerr)
		return cerr
	}

	m.mu.Lock()
	if m.current != sess {
		m.mu.Unlock()
		provider.Destroy()
		return ErrSessionReplaced
	}
	sess.Provider = provider
	m.mu.Unlock()

	provider.Connect()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case <-sess.synced:
		return nil
	case <-sess.ended:
		return ErrSessionReplaced
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		cerr := newTimeoutError(docID, m.timeout)
		m.fail(sess, Event{Kind: EventTimeout, Message: cerr.Message}, cerr)
		return nil
	}
}

// Disconnect tears down the current session, if any, and always emits
// SignalDisconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	prev := m.status
	signals := m.applyLocked(Event{Kind: EventDisconnectRequested})
	status := m.status
	sess := m.current
	m.current = nil
	m.failure = nil
	m.mu.Unlock()

	docID := ""
	if sess != nil {
		docID = sess.DocumentID
		sess.teardown()
	}
	m.logger.Info("disconnected", "document_id", docID)
	m.emit(append(signals, Signal{Kind: SignalDisconnected, DocumentID: docID, Previous: prev, Status: status}))
}

// SetError forces the error state and records msg.
func (m *Manager) SetError(msg string) {
	m.mu.Lock()
	signals := m.applyLocked(Event{Kind: EventErrorReported, Message: msg})
	m.mu.Unlock()
	m.emit(signals)
}

// SetConnectionState requests a state directly. Requesting the current
// state does nothing.
func (m *Manager) SetConnectionState(s State) {
	m.mu.Lock()
	signals := m.applyLocked(Event{Kind: EventStateRequested, State: s})
	m.mu.Unlock()
	m.emit(signals)
}

// Subscribe registers fn for every Signal. Signals are delivered
// synchronously on the goroutine that caused them.
func (m *Manager) Subscribe(fn func(Signal)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	id := m.nextSub
	m.subscribers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) State() State {
	return m.Status().State
}

func (m *Manager) IsOnline() bool {
	return m.Status().Online()
}

func (m *Manager) ReconnectAttempts() int {
	return m.Status().ReconnectAttempts
}

func (m *Manager) LastError() string {
	return m.Status().LastError
}

// LastFailure returns the typed error behind the current error or offline
// state, or nil.
func (m *Manager) LastFailure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure == nil {
		return nil
	}
	return m.failure
}

// ActiveDocumentID returns the current session's document id, or "".
func (m *Manager) ActiveDocumentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.DocumentID
}

// Doc returns the current session's document, or nil.
func (m *Manager) Doc() *replica.Doc {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return m.current.Doc
}

func (m *Manager) handleSync(sess *Session) {
	m.mu.Lock()
	if m.current != sess {
		m.mu.Unlock()
		return
	}
	m.failure = nil
	signals := m.applyLocked(Event{Kind: EventSynced})
	m.mu.Unlock()

	m.emit(signals)
	sess.markSynced()
}

func (m *Manager) handleClose(sess *Session, cause error) {
	m.mu.Lock()
	if m.current != sess {
		m.mu.Unlock()
		return
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	prev := m.status
	signals := m.applyLocked(Event{Kind: EventConnectionClosed, Message: msg})
	if m.status.State == StateOffline && prev.State != StateOffline {
		m.failure = newConnectionLostError(sess.DocumentID, m.status.ReconnectAttempts, m.policy.MaxReconnectAttempts, cause)
		m.logger.Warn("giving up reconnecting", "document_id", sess.DocumentID, "error", m.failure)
	}
	m.mu.Unlock()
	m.emit(signals)
}

// fail applies a failure event if sess is still current.
func (m *Manager) fail(sess *Session, ev Event, cerr *ConnectionError) {
	m.mu.Lock()
	if m.current != sess {
		m.mu.Unlock()
		return
	}
	prev := m.status
	signals := m.applyLocked(ev)
	if m.status != prev {
		m.failure = cerr
	}
	m.mu.Unlock()

	m.logger.Warn("connection failed", "document_id", sess.DocumentID, "code", string(cerr.Code), "error", cerr.Message)
	m.emit(signals)
}

// applyLocked runs the state machine and returns the signal to emit, if
// the status changed.
func (m *Manager) applyLocked(ev Event) []Signal {
	prev := m.status
	next := Transition(prev, ev, m.policy)
	if next == prev {
		return nil
	}
	m.status = next

	docID := ""
	if m.current != nil {
		docID = m.current.DocumentID
	}
	if next.State != prev.State {
		m.logger.Info("connection state changed",
			"document_id", docID,
			"from", string(prev.State),
			"to", string(next.State),
			"attempts", next.ReconnectAttempts,
			"event", ev.String(),
		)
	} else {
		m.logger.Debug("connection status updated",
			"document_id", docID,
			"state", string(next.State),
			"attempts", next.ReconnectAttempts,
		)
	}
	return []Signal{{Kind: SignalStateChanged, DocumentID: docID, Previous: prev, Status: next}}
}

func (m *Manager) emit(signals []Signal) {
	if len(signals) == 0 {
		return
	}
	m.mu.Lock()
	subs := make([]func(Signal), 0, len(m.subscribers))
	for id := 1; id <= m.nextSub; id++ {
		if fn, ok := m.subscribers[id]; ok {
			subs = append(subs, fn)
		}
	}
	m.mu.Unlock()

	for _, sig := range signals {
		for _, fn := range subs {
			fn(sig)
		}
	}
}
