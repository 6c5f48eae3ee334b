package eventstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/juggie/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openStore(t *testing.T, cfg config.EventStoreConfig) *Store {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "events.db")
	}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })
	return es
}

func TestOpenEphemeral(t *testing.T) {
	es := openStore(t, config.EventStoreConfig{RetentionMode: "ephemeral"})
	if err := es.Ensure(); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if err := es.AppendEvent(context.Background(), Event{SessionID: "s", Type: "noop"}); err != nil {
		t.Fatalf("ephemeral append should be a no-op: %v", err)
	}
	if sess, err := es.GetSession(context.Background(), "s"); err != nil || sess != nil {
		t.Fatalf("expected nothing stored, got %v %v", sess, err)
	}
}

func TestAppendAndQuery(t *testing.T) {
	es := openStore(t, config.EventStoreConfig{RetentionMode: "session"})
	ctx := context.Background()

	sessionID := "session-123"
	if err := es.AppendSession(ctx, Session{ID: sessionID, Question: "What is gravity?", Subject: "Science", Marks: 1, Language: "English"}); err != nil {
		t.Fatalf("append session: %v", err)
	}
	for _, typ := range []string{"submitted", "generated", "audio_assembled"} {
		if err := es.AppendEvent(ctx, Event{SessionID: sessionID, Type: typ, Message: typ, Payload: []byte("{}")}); err != nil {
			t.Fatalf("append event: %v", err)
		}
	}
	if err := es.SetOutcome(ctx, sessionID, "completed"); err != nil {
		t.Fatalf("set outcome: %v", err)
	}

	events, err := es.ListSessionEvents(ctx, sessionID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 || events[0].Type != "submitted" || events[2].Type != "audio_assembled" {
		t.Fatalf("unexpected events %+v", events)
	}
	if events[0].CreatedAt.IsZero() {
		t.Fatal("expected timestamps to round trip")
	}

	sess, err := es.GetSession(ctx, sessionID)
	if err != nil || sess == nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Outcome != "completed" || sess.Marks != 1 || sess.Question != "What is gravity?" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if missing, err := es.GetSession(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("expected missing session to be nil, got %v %v", missing, err)
	}
}

func TestRecentSessions(t *testing.T) {
	es := openStore(t, config.EventStoreConfig{RetentionMode: "persistent"})
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		es.clock = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		if err := es.AppendSession(ctx, Session{ID: id, Question: "q", Marks: 2, Language: "Hindi"}); err != nil {
			t.Fatal(err)
		}
	}
	sessions, err := es.RecentSessions(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 || sessions[0].ID != "c" || sessions[1].ID != "b" {
		t.Fatalf("unexpected order %+v", sessions)
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	es := openStore(t, config.EventStoreConfig{RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1})
	ctx := context.Background()

	es.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendSession(ctx, Session{ID: "old-session", Question: "q", Marks: 1, Language: "English"}); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.AppendEvent(ctx, Event{SessionID: "old-session", Type: "note"}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	es.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendSession(ctx, Session{ID: "new-session", Question: "q", Marks: 1, Language: "English"}); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	events, err := es.ListSessionEvents(ctx, "old-session", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected old session pruned")
	}
	if sess, _ := es.GetSession(ctx, "new-session"); sess == nil {
		t.Fatal("expected new session kept")
	}
}
