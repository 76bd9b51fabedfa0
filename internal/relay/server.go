package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/roach88/contextsync/internal/replica"
)

const sendBufferSize = 256

// RoomServer is an in-memory relay. Each room holds a replica.Doc that
// merges every client's updates and fans them out to the other clients.
type RoomServer struct {
	router   chi.Router
	upgrader websocket.Upgrader
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	rooms map[string]*room
}

// ServerOption configures a RoomServer.
type ServerOption func(*RoomServer)

// WithServerLogger sets the server's logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *RoomServer) {
		s.logger = l
	}
}

// WithServerClock sets the time source reported by /health.
func WithServerClock(now func() time.Time) ServerOption {
	return func(s *RoomServer) {
		s.now = now
	}
}

// NewRoomServer returns a relay serving /parties/{kind}/{id} and /health.
func NewRoomServer(opts ...ServerOption) *RoomServer {
	s := &RoomServer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: slog.Default(),
		now:    time.Now,
		rooms:  make(map[string]*room),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/parties/{kind}/{id}", s.handleRoom)
	s.router = r
	return s
}

func (s *RoomServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Room returns the document of a room, creating the room if needed.
func (s *RoomServer) Room(kind, id string) *replica.Doc {
	return s.room(kind + "/" + id).doc
}

// Disconnect closes every client connection of a room. Clients see an
// unsolicited close.
func (s *RoomServer) Disconnect(kind, id string) int {
	rm := s.room(kind + "/" + id)
	rm.mu.Lock()
	defer rm.mu.Unlock()
	n := 0
	for c := range rm.clients {
		c.conn.Close()
		n++
	}
	return n
}

// Clients returns the number of live connections in a room.
func (s *RoomServer) Clients(kind, id string) int {
	rm := s.room(kind + "/" + id)
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.clients)
}

func (s *RoomServer) room(key string) *room {
	s.mu.Lock()
	defer s.mu.Unlock()
	rm, ok := s.rooms[key]
	if !ok {
		rm = &room{
			doc:     replica.New(replica.WithClientID("relay/" + key)),
			clients: make(map[*roomClient]struct{}),
		}
		s.rooms[key] = rm
	}
	return rm
}

func (s *RoomServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Health{Status: "ok", Timestamp: s.now().UnixMilli()})
}

func (s *RoomServer) handleRoom(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "kind") + "/" + chi.URLParam(r, "id")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("room upgrade failed", "room", key, "error", err)
		return
	}

	rm := s.room(key)
	c := &roomClient{conn: conn, send: make(chan []byte, sendBufferSize)}
	rm.join(c)
	s.logger.Debug("client joined room", "room", key, "remote_addr", r.RemoteAddr)

	go c.writePump()
	s.readPump(rm, c, key)
}

func (s *RoomServer) readPump(rm *room, c *roomClient, key string) {
	defer func() {
		rm.leave(c)
		c.conn.Close()
		s.logger.Debug("client left room", "room", key)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := decodeFrame(data)
		if err != nil {
			s.logger.Warn("dropping malformed frame", "room", key, "error", err)
			continue
		}
		if err := rm.doc.ApplyUpdate(frame.Update, c); err != nil {
			s.logger.Warn("dropping update", "room", key, "error", err)
			continue
		}

		switch frame.Type {
		case FrameSyncStep1:
			reply, err := encodeFrame(Frame{Type: FrameSyncStep2, Update: rm.doc.EncodeState()})
			if err != nil {
				s.logger.Error("encode room state", "room", key, "error", err)
				return
			}
			c.enqueue(reply)
			rm.broadcast(c, Frame{Type: FrameUpdate, Update: frame.Update}, s.logger)
		case FrameUpdate:
			rm.broadcast(c, frame, s.logger)
		}
	}
}

type room struct {
	doc *replica.Doc

	mu      sync.Mutex
	clients map[*roomClient]struct{}
}

func (rm *room) join(c *roomClient) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.clients[c] = struct{}{}
}

func (rm *room) leave(c *roomClient) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, ok := rm.clients[c]; ok {
		delete(rm.clients, c)
		close(c.send)
	}
}

func (rm *room) broadcast(from *roomClient, f Frame, logger *slog.Logger) {
	if f.Update.Empty() {
		return
	}
	data, err := encodeFrame(f)
	if err != nil {
		logger.Error("encode broadcast", "error", err)
		return
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for c := range rm.clients {
		if c != from {
			c.enqueue(data)
		}
	}
}

type roomClient struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// enqueue hands data to the write pump. A client too slow to keep up is
// disconnected.
func (c *roomClient) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.closed = true
		c.conn.Close()
	}
}

func (c *roomClient) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
