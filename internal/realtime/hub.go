// Package realtime relays project-update notifications between WebSocket
// connections joined to the same project channel.
package realtime

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	EventJoin           = "join-project"
	EventProjectUpdate  = "project-update"
	EventProjectUpdated = "project-updated"
)

var (
	connGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Open realtime connections",
	})
	msgTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "realtime_messages_total", Help: "Realtime frames by event"},
		[]string{"event"},
	)
)

func init() { prometheus.MustRegister(connGauge, msgTotal) }

var (
	ErrHubClosed     = errors.New("realtime: hub closed")
	ErrDuplicateConn = errors.New("realtime: connection id already registered")
)

// Frame is the JSON envelope for every message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one connection's outbound side. The hub closes Send when the
// connection is removed.
type Client struct {
	ID   string
	Send chan []byte
}

func NewClient(id string, buffer int) *Client {
	return &Client{ID: id, Send: make(chan []byte, buffer)}
}

// Hub is the membership registry. All membership changes and all enqueues
// happen under mu, so a publish never sees a half-applied join or leave.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]*Client
	channels map[string]map[string]*Client  // project id -> conn id -> client
	joined   map[string]map[string]struct{} // conn id -> project ids
	closed   bool

	log *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[string]*Client),
		joined:   make(map[string]map[string]struct{}),
		log:      log,
	}
}

// Connect registers c with no channel memberships.
func (h *Hub) Connect(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	if _, ok := h.clients[c.ID]; ok {
		return ErrDuplicateConn
	}
	h.clients[c.ID] = c
	h.joined[c.ID] = make(map[string]struct{})
	connGauge.Inc()
	h.log.Debug("realtime connect", zap.String("conn_id", c.ID), zap.Int("total", len(h.clients)))
	return nil
}

// Join adds the connection to projectID's channel. Joining twice is a no-op.
// It reports false for an unknown connection.
func (h *Hub) Join(connID, projectID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return false
	}
	members := h.channels[projectID]
	if members == nil {
		members = make(map[string]*Client)
		h.channels[projectID] = members
	}
	members[connID] = c
	h.joined[connID][projectID] = struct{}{}
	return true
}

// Publish queues a project-updated frame for every member of projectID's
// channel except the sender, and returns how many were queued. A member
// whose queue is full is disconnected rather than blocking the others.
func (h *Hub) Publish(senderID, projectID string, payload json.RawMessage) int {
	frame, err := json.Marshal(Frame{Event: EventProjectUpdated, Data: payload})
	if err != nil {
		h.log.Debug("realtime publish: bad payload", zap.Error(err))
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	for id, c := range h.channels[projectID] {
		if id == senderID {
			continue
		}
		select {
		case c.Send <- frame:
			sent++
		default:
			h.log.Warn("realtime queue full, dropping connection", zap.String("conn_id", id))
			h.removeLocked(id)
		}
	}
	if sent > 0 {
		msgTotal.WithLabelValues(EventProjectUpdated).Add(float64(sent))
	}
	return sent
}

// Disconnect removes the connection from every channel and closes its queue.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(connID)
}

func (h *Hub) removeLocked(connID string) {
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	for pid := range h.joined[connID] {
		members := h.channels[pid]
		delete(members, connID)
		if len(members) == 0 {
			delete(h.channels, pid)
		}
	}
	delete(h.joined, connID)
	delete(h.clients, connID)
	close(c.Send)
	connGauge.Dec()
	h.log.Debug("realtime disconnect", zap.String("conn_id", connID), zap.Int("total", len(h.clients)))
}

// Channels lists the project ids connID has joined.
func (h *Hub) Channels(connID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.joined[connID]))
	for pid := range h.joined[connID] {
		out = append(out, pid)
	}
	return out
}

// Members counts the connections joined to projectID.
func (h *Hub) Members(projectID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[projectID])
}

// Close disconnects everyone and refuses new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id := range h.clients {
		h.removeLocked(id)
	}
	h.log.Info("realtime hub stopped")
}
