package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/config"
	"github.com/Faultbox/meshview/internal/protocol"
	"github.com/Faultbox/meshview/internal/viewer"
)

// ErrNotConnected is returned by Send while no connection is up.
var ErrNotConnected = errors.New("not connected")

// WebSocket is a client that keeps a connection to the command server,
// reconnecting after failures.
type WebSocket struct {
	cfg    config.ServerConfig
	sink   Sink
	log    *zap.Logger
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocket returns a client for cfg.URL delivering messages to sink.
func NewWebSocket(cfg config.ServerConfig, sink Sink, log *zap.Logger) *WebSocket {
	return &WebSocket{
		cfg:  cfg,
		sink: sink,
		log:  log,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.ConnectTimeout,
		},
	}
}

// IsConnected reports whether a connection is up.
func (w *WebSocket) IsConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil
}

// Run connects and reads until ctx ends or the viewer stops accepting
// messages, reconnecting after each other failure.
func (w *WebSocket) Run(ctx context.Context) error {
	for {
		err := w.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, viewer.ErrClosed) {
			w.log.Info("viewer closed; leaving command server", zap.String("url", w.cfg.URL))
			return err
		}
		w.log.Warn("websocket disconnected",
			zap.String("url", w.cfg.URL),
			zap.Duration("retry_in", w.cfg.ReconnectDelay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.ReconnectDelay):
		}
	}
}

// session runs one connection until it fails or ctx ends.
func (w *WebSocket) session(ctx context.Context) error {
	dialCtx := ctx
	if w.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, w.cfg.ConnectTimeout)
		defer cancel()
	}
	conn, _, err := w.dialer.DialContext(dialCtx, w.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", w.cfg.URL, err)
	}
	w.setConn(conn)
	defer w.setConn(nil)
	w.log.Info("websocket connected", zap.String("url", w.cfg.URL))

	stop := context.AfterFunc(ctx, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if typ != websocket.BinaryMessage {
			w.log.Debug("ignoring non-binary message", zap.Int("type", typ))
			continue
		}
		if err := w.sink.Submit(data); err != nil {
			return err
		}
	}
}

func (w *WebSocket) setConn(c *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil && c == nil {
		w.conn.Close()
	}
	w.conn = c
}

// Send writes ev as a binary msgpack message.
func (w *WebSocket) Send(ev protocol.Event) error {
	data, err := protocol.EncodeEvent(ev)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return ErrNotConnected
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}
