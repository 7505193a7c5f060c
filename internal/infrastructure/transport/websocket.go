package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"weylus/internal/core/domain"
	"weylus/internal/core/ports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketDialer opens sessions to the host over gorilla/websocket.
type WebSocketDialer struct {
	dialer *websocket.Dialer

	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	logger *zap.SugaredLogger
}

var _ ports.Dialer = (*WebSocketDialer)(nil)

func NewWebSocketDialer(logger *zap.SugaredLogger) *WebSocketDialer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &WebSocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: domain.WebSocketTimeout,
			ReadBufferSize:   64 * 1024,
			WriteBufferSize:  4 * 1024,
		},
		pingInterval: 15 * time.Second,
		readTimeout:  30 * time.Second,
		writeTimeout: 5 * time.Second,
		logger:       logger,
	}
}

// SetPingInterval sets how often the client pings the host.
func (d *WebSocketDialer) SetPingInterval(interval time.Duration) {
	d.pingInterval = interval
}

// SetReadTimeout sets how long the connection may stay silent, pongs included.
func (d *WebSocketDialer) SetReadTimeout(timeout time.Duration) {
	d.readTimeout = timeout
}

func (d *WebSocketDialer) SetWriteTimeout(timeout time.Duration) {
	d.writeTimeout = timeout
}

// Dial performs the websocket handshake. ctx bounds the handshake only; the
// returned transport lives until Close or a read failure.
func (d *WebSocketDialer) Dial(ctx context.Context, url string, header http.Header, handler ports.TransportHandler) (ports.Transport, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, header)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if resp != nil {
			return nil, fmt.Errorf("%w: handshake rejected with status %d", domain.ErrTransport, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	t := &WebSocketTransport{
		conn:         conn,
		handler:      handler,
		writeTimeout: d.writeTimeout,
		readTimeout:  d.readTimeout,
		done:         make(chan struct{}),
		logger:       d.logger.With("server_url", url),
	}
	conn.SetReadDeadline(time.Now().Add(d.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(d.readTimeout))
		return nil
	})

	go t.readPump()
	go t.pingLoop(d.pingInterval)
	return t, nil
}

// WebSocketTransport is one established session. Writes are serialized;
// reads run on a dedicated goroutine that feeds the handler.
type WebSocketTransport struct {
	conn    *websocket.Conn
	handler ports.TransportHandler

	writeMu      sync.Mutex
	writeTimeout time.Duration
	readTimeout  time.Duration

	closing   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once

	logger *zap.SugaredLogger
}

func (t *WebSocketTransport) Send(ctx context.Context, kind ports.MessageKind, data []byte) error {
	if t.closing.Load() {
		return fmt.Errorf("%w: connection closed", domain.ErrTransport)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(t.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(deadline)
	if err := t.conn.WriteMessage(messageType(kind), data); err != nil {
		return fmt.Errorf("%w: write failed: %v", domain.ErrTransport, err)
	}
	return nil
}

// Close sends a close frame and tears the connection down. The handler's
// OnClose is not invoked for a local close.
func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closing.Store(true)
		close(t.done)

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
		if werr := t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); werr != nil {
			t.logger.Debugw("failed to send close frame", "error", werr)
		}
		err = t.conn.Close()
	})
	return err
}

func (t *WebSocketTransport) readPump() {
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			if t.closing.Load() {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Infow("error reading from host", "error", err)
			}
			t.closeOnce.Do(func() {
				t.closing.Store(true)
				close(t.done)
				t.conn.Close()
			})
			t.handler.OnClose(err)
			return
		}
		t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))

		switch msgType {
		case websocket.TextMessage:
			t.handler.OnMessage(ports.TextMessage, data)
		case websocket.BinaryMessage:
			t.handler.OnMessage(ports.BinaryMessage, data)
		}
	}
}

func (t *WebSocketTransport) pingLoop(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeTimeout))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				t.logger.Debugw("error sending ping", "error", err)
			}
		}
	}
}

func messageType(kind ports.MessageKind) int {
	if kind == ports.BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
