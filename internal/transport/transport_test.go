package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/config"
	"github.com/Faultbox/meshview/internal/protocol"
	"github.com/Faultbox/meshview/internal/viewer"
)

type recorder struct {
	messages chan []byte
}

func newRecorder() *recorder { return &recorder{messages: make(chan []byte, 8)} }

func (r *recorder) Submit(data []byte) error {
	r.messages <- data
	return nil
}

func serverConfig(url string) config.ServerConfig {
	return config.ServerConfig{
		URL:            "ws" + strings.TrimPrefix(url, "http"),
		ConnectTimeout: time.Second,
		ReconnectDelay: 10 * time.Millisecond,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocketDeliversAndSends(t *testing.T) {
	events := make(chan protocol.Event, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("ignored"))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x81, 0xa4, 't', 'y', 'p', 'e'})
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		ev, err := protocol.DecodeEvent(data)
		if err == nil {
			events <- ev
		}
		// Hold the connection until the client leaves.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	sink := newRecorder()
	ws := NewWebSocket(serverConfig(srv.URL), sink, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ws.Run(ctx) }()

	select {
	case msg := <-sink.messages:
		assert.Equal(t, []byte{0x81, 0xa4, 't', 'y', 'p', 'e'}, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}

	waitFor(t, ws.IsConnected)
	require.NoError(t, ws.Send(protocol.ControlEvent("speed", 2.5)))
	select {
	case ev := <-events:
		assert.Equal(t, "control", ev.Type)
		assert.Equal(t, "speed", ev.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, ws.IsConnected())
	assert.ErrorIs(t, ws.Send(protocol.ImageEvent("data:")), ErrNotConnected)
}

func TestWebSocketReconnects(t *testing.T) {
	var connections atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connections.Add(1)
		conn.Close()
	}))
	defer srv.Close()

	ws := NewWebSocket(serverConfig(srv.URL), newRecorder(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ws.Run(ctx) }()

	waitFor(t, func() bool { return connections.Load() >= 3 })
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWebSocketStopsWhenViewerCloses(t *testing.T) {
	var connections atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		connections.Add(1)
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x80})
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	closed := SinkFunc(func([]byte) error { return viewer.ErrClosed })
	ws := NewWebSocket(serverConfig(srv.URL), closed, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.ErrorIs(t, ws.Run(ctx), viewer.ErrClosed)
	assert.NoError(t, ctx.Err())
	assert.Equal(t, int32(1), connections.Load())
	assert.False(t, ws.IsConnected())
}

func TestWebSocketDialFailureRetries(t *testing.T) {
	cfg := serverConfig("http://127.0.0.1:1")
	ws := NewWebSocket(cfg, newRecorder(), zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ws.Run(ctx), context.DeadlineExceeded)
}

type failingOut struct{ calls int }

func (f *failingOut) Send(protocol.Event) error {
	f.calls++
	return errors.New("closed")
}

type collectingOut struct{ got []protocol.Event }

func (c *collectingOut) Send(ev protocol.Event) error {
	c.got = append(c.got, ev)
	return nil
}

func TestForward(t *testing.T) {
	events := make(chan protocol.Event, 2)
	events <- protocol.ControlEvent("a", 1.0)
	events <- protocol.ImageEvent("data:x")
	close(events)

	bad, good := &failingOut{}, &collectingOut{}
	Forward(context.Background(), events, zap.NewNop(), bad, good)
	assert.Equal(t, 2, bad.calls)
	require.Len(t, good.got, 2)
	assert.Equal(t, "img", good.got[1].Type)
}

func TestNATSHandle(t *testing.T) {
	sink := newRecorder()
	n := NewNATS(config.NATSConfig{Subject: "meshview.commands"}, sink, zap.NewNop())
	assert.Equal(t, "meshview.commands.events", n.EventSubject())

	n.handle(&nats.Msg{Subject: "meshview.commands", Data: []byte{1, 2}})
	assert.Equal(t, []byte{1, 2}, <-sink.messages)
	assert.ErrorIs(t, n.Send(protocol.ControlEvent("a", nil)), ErrNotConnected)
}

func TestSinkFunc(t *testing.T) {
	var got []byte
	s := SinkFunc(func(d []byte) error { got = d; return nil })
	require.NoError(t, s.Submit([]byte("x")))
	assert.Equal(t, []byte("x"), got)
}
