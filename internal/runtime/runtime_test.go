package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/loqalabs/juggie/internal/catalog"
	"github.com/loqalabs/juggie/internal/config"
	"github.com/loqalabs/juggie/internal/protocol"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func offlineConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.LLM.Mode = "mock"
	cfg.Translate.Mode = "mock"
	cfg.TTS.Mode = "mock"
	cfg.Cache.Enabled = false
	cfg.Telemetry.PrometheusBind = ""
	cfg.EventStore.Path = filepath.Join(t.TempDir(), "events.db")
	cfg.Bus.StoreDir = t.TempDir()
	cfg.Bus.Port = -1
	return cfg
}

func TestBuildPipelineOffline(t *testing.T) {
	cfg := offlineConfig(t)
	p, err := BuildPipeline(context.Background(), cfg, nil, nil, discardLogger())
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	defer p.Close()

	req, err := catalog.NewRequest("What is gravity?", "Physics", "2", "English")
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Orchestrator.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Audio == nil || res.Audio.FileName != "Juggie_full_audio.mp3" {
		t.Fatalf("expected assembled mp3, got %+v", res.Audio)
	}
}

func TestBuildPipelineRejectsBadAudio(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Audio.Strategy = "wav"
	if _, err := BuildPipeline(context.Background(), cfg, nil, nil, discardLogger()); err == nil {
		t.Fatal("expected wav strategy to reject mp3 segments")
	}
}

func TestBuildPipelineSurvivesMissingCache(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Cache.Enabled = true
	cfg.Cache.Addr = "127.0.0.1:1"
	p, err := BuildPipeline(context.Background(), cfg, nil, nil, discardLogger())
	if err != nil {
		t.Fatalf("expected cache failure to be tolerated, got %v", err)
	}
	if p.cache != nil {
		t.Fatal("expected no cache")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRuntimeServesSessions(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.HTTP.Bind = "127.0.0.1"
	cfg.HTTP.Port = freePort(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.HTTP.Port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(cfg, discardLogger()).Start(ctx) }()
	defer func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("start returned %v", err)
			}
		case <-time.After(15 * time.Second):
			t.Error("runtime did not stop")
		}
	}()

	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(base + "/readyz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("runtime never became ready: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	id := "6b0d8f0e-3c4a-4f7e-8a2b-9d1e5c7f3a10"
	body := fmt.Sprintf(`{"session_id":%q,"question":"What is gravity?","marks":1,"language":"Tamil"}`, id)
	resp, err := http.Post(base+"/api/answer", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, data)
	}
	var answer protocol.AnswerResponse
	if err := sonic.Unmarshal(data, &answer); err != nil {
		t.Fatal(err)
	}
	if answer.SessionID != id || answer.Audio == nil {
		t.Fatalf("unexpected answer %+v", answer)
	}

	resp, err = http.Get(base + "/api/sessions/" + id + "/events")
	if err != nil {
		t.Fatal(err)
	}
	data, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	var history protocol.SessionHistory
	if err := sonic.Unmarshal(data, &history); err != nil {
		t.Fatalf("decode history %s: %v", data, err)
	}
	if history.Language != "Tamil" || len(history.Events) == 0 || history.Events[0].Type != "submitted" {
		t.Fatalf("unexpected history %+v", history)
	}
}
