// Package gateway is the real-time websocket surface: it authenticates
// sockets, routes their events to the room and accounting services and
// fans results out through the event bus.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/julianstephens/studyroom/internal/accounting"
	"github.com/julianstephens/studyroom/internal/auth"
	"github.com/julianstephens/studyroom/internal/constants"
	"github.com/julianstephens/studyroom/internal/events"
	"github.com/julianstephens/studyroom/internal/logger"
	"github.com/julianstephens/studyroom/internal/rooms"
	"github.com/julianstephens/studyroom/internal/storage"
)

type Options struct {
	// OriginPatterns lists extra hosts allowed to open sockets
	// cross-origin. Empty means same origin only.
	OriginPatterns []string
	// ChatTimeFormat is the layout of chat timestamps.
	ChatTimeFormat string
}

type Hub struct {
	store      storage.Provider
	accounting *accounting.Service
	rooms      *rooms.Service
	bus        events.Bus
	auth       *auth.Authenticator
	opts       Options
	now        func() time.Time

	mu      sync.RWMutex
	conns   map[string]*conn
	byRoom  map[string]map[string]*conn
	closing bool

	wg          sync.WaitGroup
	unsubscribe func()
}

func NewHub(store storage.Provider, acct *accounting.Service, roomSvc *rooms.Service, bus events.Bus, authn *auth.Authenticator, opts Options) *Hub {
	if opts.ChatTimeFormat == "" {
		opts.ChatTimeFormat = constants.ChatTimeFormat
	}
	h := &Hub{
		store:      store,
		accounting: acct,
		rooms:      roomSvc,
		bus:        bus,
		auth:       authn,
		opts:       opts,
		now:        time.Now,
		conns:      make(map[string]*conn),
		byRoom:     make(map[string]map[string]*conn),
	}
	h.unsubscribe = bus.Subscribe(h.deliver)
	return h
}

// ServeHTTP upgrades an authenticated request and serves the socket
// until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Verify(auth.TokenFromRequest(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	user, err := h.store.GetUser(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		logger.Error("Failed to load socket user", "user", claims.Subject, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if !h.admit() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.wg.Done()

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.opts.OriginPatterns})
	if err != nil {
		logger.Warn("Websocket upgrade failed", "user", user.ID, "error", err)
		return
	}
	ws.SetReadLimit(constants.SocketReadLimit)

	c := newConn(uuid.NewString(), user, ws)
	if !h.register(c) {
		ws.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	log := logger.With("conn", c.id, "user", user.ID)
	if log != nil {
		log.Info("Socket connected")
	}

	ctx, cancel := context.WithCancel(r.Context())
	go c.writeLoop(ctx)
	err = h.readLoop(ctx, c)
	cancel()
	c.markClosed()

	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	h.disconnect(cleanupCtx, c)
	cleanupCancel()
	h.unregister(c)

	status := websocket.CloseStatus(err)
	if log != nil {
		log.Info("Socket disconnected", "status", status)
	}
	if status == -1 {
		ws.CloseNow()
	}
}

func (h *Hub) readLoop(ctx context.Context, c *conn) error {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			h.sendError(c, "", errBadRequest)
			continue
		}
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			h.sendError(c, "", errBadRequest)
			continue
		}
		h.handle(ctx, c, frame)
	}
}

// admit counts a new socket unless Close has begun.
func (h *Hub) admit() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.wg.Add(1)
	return true
}

// register tracks c. It fails once Close has taken its snapshot.
func (h *Hub) register(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.conns[c.id] = c
	return true
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	if members, ok := h.byRoom[c.room]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.byRoom, c.room)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) enterRoom(c *conn, roomID string) {
	h.mu.Lock()
	members, ok := h.byRoom[roomID]
	if !ok {
		members = make(map[string]*conn)
		h.byRoom[roomID] = members
	}
	members[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) exitRoom(c *conn, roomID string) {
	h.mu.Lock()
	if members, ok := h.byRoom[roomID]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.byRoom, roomID)
		}
	}
	h.mu.Unlock()
}

// deliver hands a bus envelope to the matching local sockets.
func (h *Hub) deliver(env events.Envelope) {
	msg, err := json.Marshal(Frame{Event: env.Event, Data: env.Data})
	if err != nil {
		logger.Error("Failed to encode frame", "event", env.Event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if env.TargetConn != "" {
		if c, ok := h.conns[env.TargetConn]; ok {
			c.enqueue(msg)
		}
		return
	}
	for id, c := range h.byRoom[env.Room] {
		if id == env.ExcludeConn {
			continue
		}
		c.enqueue(msg)
	}
}

// Connections returns the number of open sockets.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close asks every socket to go away and waits for their cleanup.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if !h.closing {
		h.closing = true
		h.unsubscribe()
	}
	open := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		open = append(open, c)
	}
	h.mu.Unlock()

	for _, c := range open {
		go c.ws.Close(websocket.StatusGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
