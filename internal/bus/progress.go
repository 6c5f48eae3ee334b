package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/juggie/internal/protocol"
)

// Publisher sends session progress events to the bus.
type Publisher struct {
	client *Client
	log    *slog.Logger
}

func NewPublisher(client *Client, log *slog.Logger) *Publisher {
	return &Publisher{client: client, log: log.With(slog.String("component", "progress-publisher"))}
}

// Publish sends one event on the session's subject.
func (p *Publisher) Publish(evt protocol.ProgressEvent) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	data, err := protocol.Encode(evt)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	subject := protocol.ProgressSubject(evt.SessionID)
	if p.client.streaming {
		_, err = p.client.js.Publish(subject, data)
	} else {
		err = p.client.conn.Publish(subject, data)
	}
	if err != nil {
		return fmt.Errorf("publish progress: %w", err)
	}
	return nil
}

// Notify publishes and logs failures; progress delivery never fails a session.
func (p *Publisher) Notify(_ context.Context, evt protocol.ProgressEvent) {
	if err := p.Publish(evt); err != nil {
		p.log.Warn("failed to publish progress", slog.String("session_id", evt.SessionID), slogError(err))
	}
}

// SubscribeProgress delivers events for one session in order. With a progress
// stream, events published before the subscription are replayed first.
func (c *Client) SubscribeProgress(sessionID string, handler func(protocol.ProgressEvent)) (func(), error) {
	subject := protocol.ProgressSubject(sessionID)
	cb := func(msg *nats.Msg) {
		var evt protocol.ProgressEvent
		if err := protocol.Decode(msg.Data, &evt); err != nil {
			c.log.Warn("failed to decode progress event", slogError(err))
			return
		}
		handler(evt)
	}
	var (
		sub *nats.Subscription
		err error
	)
	if c.streaming {
		sub, err = c.js.Subscribe(subject, cb, nats.OrderedConsumer(), nats.DeliverAll())
	} else {
		sub, err = c.conn.Subscribe(subject, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("subscribe progress: %w", err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
