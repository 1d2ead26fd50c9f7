package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/config"
	"github.com/Faultbox/meshview/internal/protocol"
)

// NATS subscribes to a command subject. Events are published on the same
// subject with an ".events" suffix.
type NATS struct {
	cfg  config.NATSConfig
	sink Sink
	log  *zap.Logger

	mu sync.Mutex
	nc *nats.Conn
}

// NewNATS returns a subscriber for cfg.Subject delivering to sink.
func NewNATS(cfg config.NATSConfig, sink Sink, log *zap.Logger) *NATS {
	return &NATS{cfg: cfg, sink: sink, log: log}
}

// EventSubject is where events are published.
func (n *NATS) EventSubject() string { return n.cfg.Subject + ".events" }

// Run connects, subscribes and blocks until ctx ends.
func (n *NATS) Run(ctx context.Context) error {
	nc, err := nats.Connect(n.cfg.URL,
		nats.Name("meshview"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			n.log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			n.log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	n.mu.Lock()
	n.nc = nc
	n.mu.Unlock()

	sub, err := nc.Subscribe(n.cfg.Subject, n.handle)
	if err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", n.cfg.Subject, err)
	}
	n.log.Info("nats subscribed", zap.String("url", n.cfg.URL), zap.String("subject", n.cfg.Subject))

	<-ctx.Done()
	_ = sub.Unsubscribe()
	n.mu.Lock()
	n.nc = nil
	n.mu.Unlock()
	if err := nc.Drain(); err != nil {
		nc.Close()
	}
	return ctx.Err()
}

func (n *NATS) handle(m *nats.Msg) {
	if err := n.sink.Submit(m.Data); err != nil {
		n.log.Warn("dropping nats message", zap.String("subject", m.Subject), zap.Error(err))
	}
}

// Send publishes ev to the event subject.
func (n *NATS) Send(ev protocol.Event) error {
	data, err := protocol.EncodeEvent(ev)
	if err != nil {
		return err
	}
	n.mu.Lock()
	nc := n.nc
	n.mu.Unlock()
	if nc == nil {
		return ErrNotConnected
	}
	return nc.Publish(n.EventSubject(), data)
}
