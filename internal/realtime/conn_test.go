package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T, h *Hub, origins []string) string {
	t.Helper()
	up := NewUpgrader(origins)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(ws)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func join(t *testing.T, ws *websocket.Conn, pid string) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(Frame{Event: EventJoin, Data: []byte(`"` + pid + `"`)}))
}

func TestServe_RelaysWithinChannel(t *testing.T) {
	h := NewHub(nil)
	url := newWSServer(t, h, nil)

	alice := dial(t, url)
	bob := dial(t, url)
	carol := dial(t, url)
	join(t, alice, "p1")
	join(t, bob, "p1")
	join(t, carol, "p2")
	require.Eventually(t, func() bool { return h.Members("p1") == 2 && h.Members("p2") == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"project-update","data":{"projectId":"p1","name":"Demo"}}`)))

	_ = bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Frame
	require.NoError(t, bob.ReadJSON(&got))
	assert.Equal(t, EventProjectUpdated, got.Event)
	assert.JSONEq(t, `{"projectId":"p1","name":"Demo"}`, string(got.Data))

	for _, ws := range []*websocket.Conn{alice, carol} {
		_ = ws.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		_, _, err := ws.ReadMessage()
		assert.Error(t, err, "sender and other channels receive nothing")
	}
}

func TestServe_DisconnectLeavesChannels(t *testing.T) {
	h := NewHub(nil)
	url := newWSServer(t, h, nil)

	ws := dial(t, url)
	join(t, ws, "p1")
	require.Eventually(t, func() bool { return h.Members("p1") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool { return h.Members("p1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServe_HubCloseEndsConnections(t *testing.T) {
	h := NewHub(nil)
	url := newWSServer(t, h, nil)
	ws := dial(t, url)
	join(t, ws, "p1")
	require.Eventually(t, func() bool { return h.Members("p1") == 1 }, 2*time.Second, 10*time.Millisecond)

	h.Close()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived), "got %v", err)
}

func TestUpgrader_CheckOrigin(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}
	up := NewUpgrader([]string{"http://localhost:3000"})
	assert.True(t, up.CheckOrigin(req("")))
	assert.True(t, up.CheckOrigin(req("http://localhost:3000")))
	assert.False(t, up.CheckOrigin(req("http://evil.example")))

	wildcard := NewUpgrader([]string{"*"})
	assert.True(t, wildcard.CheckOrigin(req("http://evil.example")))
}
