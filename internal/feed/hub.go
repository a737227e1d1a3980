package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"ghostreplay/internal/metrics"
	"ghostreplay/internal/session"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 20 * time.Second
	sendBuffer   = 64
)

// Message types pushed to subscribers
const (
	TypeSnapshot  = "snapshot"
	TypeEvent     = "event"
	TypeRecording = "recording"
	TypePresence  = "presence"
)

// Message is the envelope of every frame on the feed
type Message struct {
	Type      string             `json:"type"`
	SessionID string             `json:"sessionId,omitempty"`
	Event     *session.GameEvent `json:"event,omitempty"`
	Data      any                `json:"data,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// enqueue never blocks; a full buffer marks the client as too slow
func (c *client) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Hub fans live updates out to websocket subscribers. Each new subscriber
// first receives a snapshot built by the snapshot func.
type Hub struct {
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	snapshot func() any
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*client]struct{}
}

// NewHub creates a hub. snapshot may be nil.
func NewHub(snapshot func() any, log logrus.FieldLogger, m *metrics.Metrics) *Hub {
	return &Hub{
		log:      log.WithField("component", "feed"),
		metrics:  m,
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs: make(map[*client]struct{}),
	}
}

// Subscribers returns the number of connected clients
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast sends msg to every subscriber, dropping the ones that lag
func (h *Hub) Broadcast(msg Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Warn("[Feed] Failed to encode message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs {
		if !c.enqueue(b) {
			h.removeLocked(c)
		}
	}
}

// PublishEvent broadcasts a freshly ingested event
func (h *Hub) PublishEvent(sessionID string, ev session.GameEvent) {
	h.Broadcast(Message{Type: TypeEvent, SessionID: sessionID, Event: &ev})
}

// ServeHTTP upgrades the request and streams messages until the peer leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("[Feed] Upgrade failed")
		return
	}

	c := newClient(conn)
	if h.snapshot != nil {
		if b, err := json.Marshal(Message{Type: TypeSnapshot, Data: h.snapshot()}); err == nil {
			c.enqueue(b)
		}
	}
	h.add(c)
	h.log.WithField("remote", r.RemoteAddr).Debug("[Feed] Subscriber connected")

	go h.writePump(c)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(c)
	h.log.WithField("remote", r.RemoteAddr).Debug("[Feed] Subscriber disconnected")
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs {
		h.removeLocked(c)
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.subs[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.FeedClientConnected(1)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.subs[c]; !ok {
		c.close()
		return
	}
	delete(h.subs, c)
	c.close()
	h.metrics.FeedClientConnected(-1)
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer h.remove(c)

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
