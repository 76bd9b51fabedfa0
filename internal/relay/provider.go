package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/contextsync/internal/replica"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 20
)

// Handlers receive the provider's connection outcomes. Both are called from
// the provider's goroutine. No handler starts after Destroy; one already
// running when Destroy is called still finishes.
type Handlers struct {
	// OnSync fires once per connection, when the room's sync-step-2 has
	// been applied.
	OnSync func()
	// OnClose fires whenever a connection attempt fails or an established
	// connection drops. The provider redials afterwards.
	OnClose func(err error)
}

// Option configures a Provider.
type Option func(*Provider)

// WithHost sets the relay host (host[:port]).
func WithHost(host string) Option {
	return func(p *Provider) {
		p.host = host
	}
}

// WithRoomKind sets the party name of the room path.
func WithRoomKind(kind string) Option {
	return func(p *Provider) {
		p.kind = kind
	}
}

// WithSecure selects wss instead of ws.
func WithSecure(secure bool) Option {
	return func(p *Provider) {
		p.secure = secure
	}
}

// WithBackoff sets the redial policy.
func WithBackoff(b Backoff) Option {
	return func(p *Provider) {
		p.backoff = b
	}
}

// WithDialer replaces the default WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(p *Provider) {
		p.dialer = d
	}
}

// WithLogger sets the provider's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// DefaultRoomKind is the party name used when no WithRoomKind option is given.
const DefaultRoomKind = "main"

// Provider keeps one replica.Doc in sync with its relay room.
type Provider struct {
	docID    string
	doc      *replica.Doc
	handlers Handlers

	host    string
	kind    string
	secure  bool
	url     string
	backoff Backoff
	dialer  *websocket.Dialer
	logger  *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	outbound *updateQueue
	done     chan struct{}

	mu        sync.Mutex
	started   bool
	destroyed bool
	unobserve func()
}

// New builds a provider for docID. It validates the configuration but does
// not touch the network; call Connect to start.
func New(docID string, doc *replica.Doc, h Handlers, opts ...Option) (*Provider, error) {
	p := &Provider{
		docID:    docID,
		doc:      doc,
		handlers: h,
		kind:     DefaultRoomKind,
		backoff:  DefaultBackoff,
		dialer:   websocket.DefaultDialer,
		logger:   slog.Default(),
		outbound: newUpdateQueue(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	if docID == "" {
		return nil, errors.New("relay: empty document id")
	}
	if doc == nil {
		return nil, errors.New("relay: nil document")
	}
	if err := ValidateHost(p.host); err != nil {
		return nil, err
	}
	if p.kind == "" {
		return nil, errors.New("relay: empty room kind")
	}

	p.url = RoomURL(p.host, p.kind, docID, p.secure)
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.logger = p.logger.With("document_id", docID)
	return p, nil
}

// URL returns the room URL the provider dials.
func (p *Provider) URL() string {
	return p.url
}

// Connect starts the connection loop in the background. Calling it more than
// once, or after Destroy, does nothing.
func (p *Provider) Connect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.destroyed {
		return
	}
	p.started = true
	p.unobserve = p.doc.Observe(p.onDocUpdate)
	go p.run()
}

// Destroy stops the provider. It closes any live connection, stops
// redialling and suppresses further handler calls. It does not wait for the
// background goroutine; use Done for that.
func (p *Provider) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	started := p.started
	unobserve := p.unobserve
	p.mu.Unlock()

	if unobserve != nil {
		unobserve()
	}
	p.cancel()
	p.outbound.Close()
	if !started {
		close(p.done)
	}
}

// Done is closed once the provider's goroutine has exited after Destroy.
func (p *Provider) Done() <-chan struct{} {
	return p.done
}

func (p *Provider) onDocUpdate(ev replica.UpdateEvent) {
	if ev.Origin == any(p) {
		return
	}
	p.outbound.Enqueue(ev.Update)
}

func (p *Provider) isDestroyed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed
}

func (p *Provider) emitSync() {
	if p.isDestroyed() || p.handlers.OnSync == nil {
		return
	}
	p.handlers.OnSync()
}

func (p *Provider) emitClose(err error) {
	if p.isDestroyed() || p.handlers.OnClose == nil {
		return
	}
	p.handlers.OnClose(err)
}

// run is the connection loop: connect, serve until the connection drops,
// back off, repeat.
func (p *Provider) run() {
	defer close(p.done)

	failures := 0
	for {
		synced, err := p.serve()
		if p.ctx.Err() != nil {
			return
		}
		if synced {
			failures = 0
		}
		p.logger.Info("relay connection closed", "error", err, "failures", failures)
		p.emitClose(err)

		delay := p.backoff.Delay(failures)
		failures++
		timer := time.NewTimer(delay)
		select {
		case <-p.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// serve runs one connection. It reports whether the room's state was
// received before the connection ended.
func (p *Provider) serve() (synced bool, err error) {
	conn, _, err := p.dialer.DialContext(p.ctx, p.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", p.url, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(p.ctx, func() { conn.Close() })
	defer stop()

	if n := p.outbound.Drain(); n > 0 {
		p.logger.Debug("dropped queued updates covered by full sync", "count", n)
	}
	if err := writeFrame(conn, Frame{Type: FrameSyncStep1, Update: p.doc.EncodeState()}); err != nil {
		return false, err
	}

	writeCtx, cancelWrite := context.WithCancel(p.ctx)
	writeDone := make(chan error, 1)
	go func() {
		writeDone <- p.writeLoop(writeCtx, conn)
	}()
	defer func() {
		cancelWrite()
		<-writeDone
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return synced, fmt.Errorf("read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		frame, err := decodeFrame(data)
		if err != nil {
			p.logger.Warn("ignoring malformed frame", "error", err)
			continue
		}
		switch frame.Type {
		case FrameSyncStep2, FrameUpdate:
			if err := p.doc.ApplyUpdate(frame.Update, p); err != nil {
				if errors.Is(err, replica.ErrDestroyed) {
					return synced, err
				}
				p.logger.Warn("ignoring update that failed to apply", "error", err)
				continue
			}
			if frame.Type == FrameSyncStep2 && !synced {
				synced = true
				p.logger.Debug("relay synced", "ops", len(frame.Update.Ops))
				p.emitSync()
			}
		default:
			p.logger.Debug("ignoring frame", "type", string(frame.Type))
		}
	}
}

func (p *Provider) writeLoop(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		for {
			u, ok := p.outbound.TryDequeue()
			if !ok {
				break
			}
			if err := writeFrame(conn, Frame{Type: FrameUpdate, Update: u}); err != nil {
				conn.Close()
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-p.outbound.Wait():
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, f Frame) error {
	data, err := encodeFrame(f)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", f.Type, err)
	}
	return nil
}
