package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"weylus/internal/core/domain"
	"weylus/internal/core/ports"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type received struct {
	kind ports.MessageKind
	data string
}

type recordingHandler struct {
	mu       sync.Mutex
	messages []received
	closed   chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{closed: make(chan error, 1)}
}

func (h *recordingHandler) OnMessage(kind ports.MessageKind, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, received{kind: kind, data: string(data)})
}

func (h *recordingHandler) OnClose(err error) {
	h.closed <- err
}

func (h *recordingHandler) snapshot() []received {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]received(nil), h.messages...)
}

// hostServer accepts one session, greets it, echoes text messages and hands
// the server side connection to the test.
func hostServer(t *testing.T, accessCode string) (*httptest.Server, <-chan *websocket.Conn) {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if accessCode != "" && r.Header.Get("X-Access-Code") != accessCode {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x80, 0x60})
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
		conns <- conn
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.TextMessage {
				conn.WriteMessage(websocket.TextMessage, append([]byte("echo:"), data...))
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestDialer(t *testing.T) *WebSocketDialer {
	d := NewWebSocketDialer(zaptest.NewLogger(t).Sugar())
	d.SetPingInterval(20 * time.Millisecond)
	return d
}

func TestWebSocketDialer_ExchangesMessages(t *testing.T) {
	srv, _ := hostServer(t, "")
	handler := newRecordingHandler()

	tr, err := newTestDialer(t).Dial(context.Background(), wsURL(srv), nil, handler)
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Send(context.Background(), ports.TextMessage, []byte("hello")))

	assert.Eventually(t, func() bool { return len(handler.snapshot()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []received{
		{kind: ports.BinaryMessage, data: "\x80\x60"},
		{kind: ports.TextMessage, data: `{"type":"pong"}`},
		{kind: ports.TextMessage, data: "echo:hello"},
	}, handler.snapshot())
}

func TestWebSocketDialer_SendsHeaders(t *testing.T) {
	srv, _ := hostServer(t, "1234")

	header := http.Header{}
	header.Set("X-Access-Code", "1234")
	tr, err := newTestDialer(t).Dial(context.Background(), wsURL(srv), header, newRecordingHandler())
	require.NoError(t, err)
	tr.Close()

	_, err = newTestDialer(t).Dial(context.Background(), wsURL(srv), http.Header{}, newRecordingHandler())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Contains(t, err.Error(), "403")
}

func TestWebSocketDialer_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	_, err := newTestDialer(t).Dial(context.Background(), url, nil, newRecordingHandler())
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestWebSocketDialer_ContextCancelled(t *testing.T) {
	srv, _ := hostServer(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestDialer(t).Dial(ctx, wsURL(srv), nil, newRecordingHandler())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWebSocketTransport_RemoteCloseNotifiesHandler(t *testing.T) {
	srv, conns := hostServer(t, "")
	handler := newRecordingHandler()

	tr, err := newTestDialer(t).Dial(context.Background(), wsURL(srv), nil, handler)
	require.NoError(t, err)
	defer tr.Close()

	server := <-conns
	server.Close()

	select {
	case err := <-handler.closed:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose not called after remote close")
	}

	assert.ErrorIs(t, tr.Send(context.Background(), ports.TextMessage, []byte("late")), domain.ErrTransport)
}

func TestWebSocketTransport_LocalCloseIsSilent(t *testing.T) {
	srv, _ := hostServer(t, "")
	handler := newRecordingHandler()

	tr, err := newTestDialer(t).Dial(context.Background(), wsURL(srv), nil, handler)
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	assert.NoError(t, tr.Close(), "second close is a no-op")

	select {
	case err := <-handler.closed:
		t.Fatalf("unexpected OnClose: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Error(t, tr.Send(context.Background(), ports.TextMessage, []byte("after close")))
}
