package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func startHub(t *testing.T, opts ...HubOption) *Hub {
	t.Helper()
	hub := NewHub(nil, opts...)
	go func() { _ = hub.Run(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})
	return hub
}

func newTestServer(t *testing.T, hub *Hub, origins ...string) *httptest.Server {
	t.Helper()
	upgrader := NewUpgrader(DefaultConfig(origins...), hub, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = upgrader.Serve(w, r, 0, r.URL.Query().Get("room"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, room string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?room=" + room
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_RunStopsOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub(nil)
	errCh := make(chan error, 1)
	go func() { errCh <- hub.Run(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hub.Shutdown(ctx))
	require.NoError(t, <-errCh)

	// a second shutdown is a no-op
	require.NoError(t, hub.Shutdown(ctx))
	assert.ErrorIs(t, hub.BroadcastToRoom("app:1", &Message{Type: "x"}), ErrHubClosed)
}

func TestHub_RunStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- hub.Run(ctx) }()

	cancel()
	require.NoError(t, <-errCh)
	assert.ErrorIs(t, hub.registerClient(newClient("late", nil, hub, 0, nil)), ErrHubClosed)
}

func TestHub_BroadcastToRoom(t *testing.T) {
	var connections atomic.Int64
	hub := startHub(t, WithConnectionObserver(func(n int) { connections.Store(int64(n)) }))
	srv := newTestServer(t, hub)

	listener := dial(t, srv, AppRoom(1), nil)
	other := dial(t, srv, AppRoom(2), nil)

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.RoomSize("app:1"))
	assert.Equal(t, 2, hub.RoomCount())
	assert.Equal(t, int64(2), connections.Load())

	msg, err := NewMessage(EventFeedbackCreated, map[string]interface{}{"id": 7, "overall_score": 5})
	require.NoError(t, err)
	require.NoError(t, hub.BroadcastToRoom(AppRoom(1), msg))

	require.NoError(t, listener.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := listener.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type string                 `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "feedback.created", got.Type)
	assert.Equal(t, float64(7), got.Data["id"])

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "listeners of other apps receive nothing")
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub := startHub(t)
	srv := newTestServer(t, hub)

	conn := dial(t, srv, AppRoom(3), nil)
	require.Eventually(t, func() bool { return hub.RoomSize("app:3") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.RoomCount())
}

func TestHub_ShutdownClosesConnections(t *testing.T) {
	hub := NewHub(nil)
	go func() { _ = hub.Run(context.Background()) }()
	srv := newTestServer(t, hub)

	conn := dial(t, srv, AppRoom(4), nil)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hub.Shutdown(ctx))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestUpgrader_RejectsForeignOrigin(t *testing.T) {
	hub := startHub(t)
	srv := newTestServer(t, hub, "http://localhost:5173")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?room=app:1"

	header := http.Header{"Origin": []string{"http://evil.test"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	dial(t, srv, "app:1", http.Header{"Origin": []string{"http://localhost:5173"}})
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestMessage(t *testing.T) {
	msg, err := NewMessage(EventFeedbackUpdated, map[string]int{"id": 1})
	require.NoError(t, err)

	data, err := msg.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"feedback.updated","data":{"id":1}}`, string(data))

	data, err = (&Message{Type: "ping"}).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ping","data":null}`, string(data))

	_, err = NewMessage("bad", make(chan int))
	assert.Error(t, err)

	assert.Equal(t, "app:42", AppRoom(42))
}
