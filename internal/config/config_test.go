package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.TTS.ChunkLimit != 2500 {
		t.Fatalf("expected default chunk limit 2500, got %d", cfg.TTS.ChunkLimit)
	}
	if cfg.TTS.MaxAttempts != 3 || cfg.TTS.BackoffMS != 1000 {
		t.Fatalf("expected 3 attempts with 1s backoff, got %d/%d", cfg.TTS.MaxAttempts, cfg.TTS.BackoffMS)
	}
	if cfg.Audio.Strategy != "raw" {
		t.Fatalf("expected raw assembly by default, got %q", cfg.Audio.Strategy)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "juggie.yaml")
	yaml := `runtime_name: study
llm:
  mode: mock
tts:
  mode: mock
  format: wav
  concurrency: 4
audio:
  strategy: wav
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RuntimeName != "study" || cfg.LLM.Mode != "mock" || cfg.TTS.Concurrency != 4 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.TTS.ChunkLimit != 2500 {
		t.Fatalf("expected defaults preserved for unset fields")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JUGGIE_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("JUGGIE_BUS_USERNAME", "alice")
	t.Setenv("JUGGIE_BUS_PASSWORD", "secret")
	t.Setenv("JUGGIE_BUS_TLS_INSECURE", "true")
	t.Setenv("JUGGIE_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("JUGGIE_EVENT_STORE_PATH", "./tmp.db")
	t.Setenv("JUGGIE_EVENT_STORE_RETENTION_MODE", "persistent")
	t.Setenv("JUGGIE_EVENT_STORE_RETENTION_DAYS", "7")
	t.Setenv("JUGGIE_EVENT_STORE_MAX_SESSIONS", "123")
	t.Setenv("JUGGIE_EVENT_STORE_VACUUM_ON_START", "true")
	t.Setenv("JUGGIE_TTS_CONCURRENCY", "3")
	t.Setenv("JUGGIE_TTS_RATE_PER_SECOND", "2.5")
	t.Setenv("JUGGIE_AUDIO_STRATEGY", "ffmpeg")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if !cfg.Bus.TLSInsecure {
		t.Fatal("expected tls insecure override true")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.EventStore.Path != "./tmp.db" {
		t.Fatalf("expected event store path override")
	}
	if cfg.EventStore.RetentionMode != "persistent" {
		t.Fatalf("expected event store retention mode override")
	}
	if cfg.EventStore.RetentionDays != 7 {
		t.Fatalf("expected event store retention days override")
	}
	if cfg.EventStore.MaxSessions != 123 {
		t.Fatalf("expected event store max sessions override")
	}
	if !cfg.EventStore.VacuumOnStart {
		t.Fatalf("expected event store vacuum flag override")
	}
	if cfg.TTS.Concurrency != 3 {
		t.Fatalf("expected tts concurrency override, got %d", cfg.TTS.Concurrency)
	}
	if cfg.TTS.RatePerSecond != 2.5 {
		t.Fatalf("expected tts rate override, got %v", cfg.TTS.RatePerSecond)
	}
	if cfg.Audio.Strategy != "ffmpeg" {
		t.Fatalf("expected audio strategy override")
	}
}

func TestSecretEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("MURF_API_KEY", "murf-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "gem-key" {
		t.Fatalf("expected gemini key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.TTS.APIKey != "murf-key" {
		t.Fatalf("expected murf key from env, got %q", cfg.TTS.APIKey)
	}

	t.Setenv("JUGGIE_TTS_API_KEY", "override")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TTS.APIKey != "override" {
		t.Fatalf("expected prefixed key to win, got %q", cfg.TTS.APIKey)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"bad port":           func(c *Config) { c.HTTP.Port = 0 },
		"bad llm mode":       func(c *Config) { c.LLM.Mode = "gpt" },
		"exec no command":    func(c *Config) { c.LLM.Mode = "exec"; c.LLM.Command = "" },
		"bad tts mode":       func(c *Config) { c.TTS.Mode = "polly" },
		"zero attempts":      func(c *Config) { c.TTS.MaxAttempts = 0 },
		"zero concurrency":   func(c *Config) { c.TTS.Concurrency = 0 },
		"bad strategy":       func(c *Config) { c.Audio.Strategy = "sox" },
		"wav strategy mp3":   func(c *Config) { c.Audio.Strategy = "wav" },
		"bad format":         func(c *Config) { c.TTS.Format = "ogg" },
		"bad log level":      func(c *Config) { c.Telemetry.LogLevel = "loud" },
		"cache without addr": func(c *Config) { c.Cache.Enabled = true; c.Cache.Addr = "" },
		"bad retention":      func(c *Config) { c.EventStore.RetentionMode = "forever" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := (TelemetryConfig{LogLevel: in}).SlogLevel(); got != want {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}
