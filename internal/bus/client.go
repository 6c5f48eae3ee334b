package bus

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/juggie/internal/config"
	"github.com/loqalabs/juggie/internal/protocol"
)

// Client wraps a NATS connection and, when the server supports it, a JetStream
// context used to retain progress events for late subscribers.
type Client struct {
	conn      *nats.Conn
	js        nats.JetStreamContext
	streaming bool
	log       *slog.Logger
}

func Connect(ctx context.Context, cfg config.BusConfig, log *slog.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name("juggie-runtime"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}

	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}
	if cfg.TLSInsecure {
		options = append(options, nats.Secure(&tls.Config{InsecureSkipVerify: true}))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))

	return &Client{
		conn: conn,
		js:   js,
		log:  log,
	}, nil
}

// EnsureProgressStream creates the stream that retains progress events. When
// the server has no JetStream the client falls back to core publish/subscribe.
func (c *Client) EnsureProgressStream(maxAge time.Duration) error {
	_, err := c.js.StreamInfo(protocol.StreamProgress)
	switch {
	case err == nil:
	case errors.Is(err, nats.ErrStreamNotFound):
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     protocol.StreamProgress,
			Subjects: []string{protocol.SubjectProgressPrefix + ".>"},
			Storage:  nats.FileStorage,
			MaxAge:   maxAge,
		})
		if err != nil {
			return fmt.Errorf("create progress stream: %w", err)
		}
	case errors.Is(err, nats.ErrJetStreamNotEnabled):
		c.log.Warn("jetstream unavailable, progress events will not be retained")
		return nil
	default:
		return fmt.Errorf("inspect progress stream: %w", err)
	}
	c.streaming = true
	return nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.log.Info("closing NATS connection")
	_ = c.conn.Drain()
	c.conn.Close()
}

func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

func (c *Client) Conn() *nats.Conn {
	return c.conn
}
