package bus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loqalabs/juggie/internal/config"
	"github.com/loqalabs/juggie/internal/natsserver"
	"github.com/loqalabs/juggie/internal/protocol"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startBus(t *testing.T) *Client {
	t.Helper()
	cfg := config.BusConfig{Enabled: true, Embedded: true, Port: -1, StoreDir: t.TempDir(), ConnectTimeout: 2000}
	srv, err := natsserver.Start(cfg, newLogger())
	if err != nil {
		t.Fatalf("start embedded server: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	cfg.Servers = []string{srv.ClientURL()}
	client, err := Connect(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestProgressReplayForLateSubscriber(t *testing.T) {
	client := startBus(t)
	if err := client.EnsureProgressStream(time.Hour); err != nil {
		t.Fatalf("ensure stream: %v", err)
	}
	pub := NewPublisher(client, newLogger())
	for i := 1; i <= 3; i++ {
		pub.Notify(context.Background(), protocol.ProgressEvent{SessionID: "s1", Stage: "synthesizing", Part: i, Total: 3})
	}
	pub.Notify(context.Background(), protocol.ProgressEvent{SessionID: "other", Stage: "generating"})

	got := make(chan protocol.ProgressEvent, 8)
	stop, err := client.SubscribeProgress("s1", func(evt protocol.ProgressEvent) { got <- evt })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stop()

	for want := 1; want <= 3; want++ {
		select {
		case evt := <-got:
			if evt.SessionID != "s1" || evt.Part != want {
				t.Fatalf("expected part %d for s1, got %+v", want, evt)
			}
			if evt.Timestamp.IsZero() {
				t.Fatal("expected publish timestamp")
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for part %d", want)
		}
	}
}

func TestProgressCoreFallback(t *testing.T) {
	client := startBus(t)
	got := make(chan protocol.ProgressEvent, 1)
	stop, err := client.SubscribeProgress("s2", func(evt protocol.ProgressEvent) { got <- evt })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stop()
	if err := client.Conn().Flush(); err != nil {
		t.Fatal(err)
	}

	if err := NewPublisher(client, newLogger()).Publish(protocol.ProgressEvent{SessionID: "s2", Message: "hello"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case evt := <-got:
		if evt.Message != "hello" {
			t.Fatalf("unexpected event %+v", evt)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	if !client.Healthy() {
		t.Fatal("expected healthy client")
	}
}
