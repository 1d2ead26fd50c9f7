// Package transport carries command messages into a viewer and events back
// to the sender, over a websocket connection or a NATS subject.
package transport

import (
	"context"

	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/protocol"
)

// Sink accepts whole inbound messages. Viewer.Submit satisfies it.
type Sink interface {
	Submit(data []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(data []byte) error

// Submit calls f.
func (f SinkFunc) Submit(data []byte) error { return f(data) }

// Outbound delivers events to the command sender.
type Outbound interface {
	Send(ev protocol.Event) error
}

// Forward copies events to every outbound until ctx ends or events closes.
// A failed send is logged and does not stop forwarding.
func Forward(ctx context.Context, events <-chan protocol.Event, log *zap.Logger, outs ...Outbound) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			for _, out := range outs {
				if err := out.Send(ev); err != nil {
					log.Debug("event not delivered", zap.String("type", ev.Type), zap.Error(err))
				}
			}
		}
	}
}
