package realtime

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 256
)

// NewUpgrader accepts requests without an Origin header, and otherwise only
// the listed origins. "*" accepts any origin.
func NewUpgrader(origins []string) *websocket.Upgrader {
	allowAll := slices.Contains(origins, "*")
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || allowAll || slices.Contains(origins, o)
		},
	}
}

// Serve registers ws with the hub and pumps frames until the peer goes away
// or the hub drops it. It blocks for the life of the connection.
func (h *Hub) Serve(ws *websocket.Conn) {
	c := NewClient(uuid.NewString(), sendBuffer)
	if err := h.Connect(c); err != nil {
		_ = ws.Close()
		return
	}
	go writePump(c, ws)
	h.readPump(c, ws)
	h.log.Debug("realtime leaving", zap.String("conn_id", c.ID), zap.Strings("channels", h.Channels(c.ID)))
	h.Disconnect(c.ID)
}

func (h *Hub) readPump(c *Client, ws *websocket.Conn) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("realtime read", zap.String("conn_id", c.ID), zap.Error(err))
			}
			return
		}
		h.handleFrame(c.ID, msg)
	}
}

func (h *Hub) handleFrame(connID string, msg []byte) {
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		h.log.Debug("realtime: malformed frame", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	switch f.Event {
	case EventJoin:
		var pid string
		if err := json.Unmarshal(f.Data, &pid); err != nil || pid == "" {
			h.log.Debug("realtime: bad join", zap.String("conn_id", connID))
			return
		}
		msgTotal.WithLabelValues(EventJoin).Inc()
		if h.Join(connID, pid) {
			h.log.Debug("realtime join", zap.String("conn_id", connID),
				zap.String("project_id", pid), zap.Int("members", h.Members(pid)))
		}
	case EventProjectUpdate:
		var ref struct {
			ProjectID string `json:"projectId"`
		}
		if err := json.Unmarshal(f.Data, &ref); err != nil || ref.ProjectID == "" {
			h.log.Debug("realtime: update without projectId", zap.String("conn_id", connID))
			return
		}
		msgTotal.WithLabelValues(EventProjectUpdate).Inc()
		h.Publish(connID, ref.ProjectID, f.Data)
	default:
		h.log.Debug("realtime: unknown event", zap.String("conn_id", connID), zap.String("event", f.Event))
	}
}

// writePump is the only writer for ws.
func writePump(c *Client, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
