package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/nats-io/nats.go"

	"loan-desk-backend/internal/logfields"
)

// Publisher is the part of *nats.Conn the forwarder uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// envelope is the message body sent to NATS.
type envelope struct {
	Origin string          `json:"origin"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// NATSForwarder relays broker events to NATS subjects named
// "<prefix>.<event name>" so that tools outside the workstation can follow
// the desk activity.
type NATSForwarder struct {
	pub    Publisher
	prefix string
	origin string
	close  func()
}

// DialNATS connects to url and returns a forwarder owning the connection.
func DialNATS(url, prefix string) (*NATSForwarder, error) {
	conn, err := nats.Connect(url, nats.Name("loandeskd"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	f := NewNATSForwarder(conn, prefix)
	f.close = conn.Close
	slog.Info("NATS forwarder connected", slog.String("url", url), slog.String("prefix", prefix))
	return f, nil
}

func NewNATSForwarder(pub Publisher, prefix string) *NATSForwarder {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &NATSForwarder{pub: pub, prefix: prefix, origin: host, close: func() {}}
}

// Run forwards events from the broker until ctx is done or the
// subscription closes.
func (f *NATSForwarder) Run(ctx context.Context, b *Broker) {
	ch, unsubscribe := b.Subscribe(64)
	defer unsubscribe()
	defer f.close()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := f.forward(evt); err != nil {
				slog.Warn("Failed to forward event to NATS", slog.String("event", evt.EventName()), logfields.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (f *NATSForwarder) forward(evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	body, err := json.Marshal(envelope{Origin: f.origin, Event: evt.EventName(), Data: data})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return f.pub.Publish(f.prefix+"."+evt.EventName(), body)
}
