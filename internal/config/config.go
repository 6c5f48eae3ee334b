package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	TraceStdout    bool   `yaml:"trace_stdout"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

// SlogLevel maps log_level to a slog level, defaulting to info.
func (t TelemetryConfig) SlogLevel() slog.Level {
	switch strings.ToLower(t.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	LLM         LLMConfig        `yaml:"llm"`
	Translate   TranslateConfig  `yaml:"translate"`
	TTS         TTSConfig        `yaml:"tts"`
	Audio       AudioConfig      `yaml:"audio"`
	Cache       CacheConfig      `yaml:"cache"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type LLMConfig struct {
	Mode        string  `yaml:"mode"` // gemini, openai, ollama, exec, mock
	Endpoint    string  `yaml:"endpoint"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Command     string  `yaml:"command"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutMS   int     `yaml:"timeout_ms"`
}

type TranslateConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Mode      string `yaml:"mode"` // google, mock
	Endpoint  string `yaml:"endpoint"`
	TimeoutMS int    `yaml:"timeout_ms"`
	MaxChars  int    `yaml:"max_chars"`
}

type TTSConfig struct {
	Mode             string  `yaml:"mode"` // murf, exec, mock
	Endpoint         string  `yaml:"endpoint"`
	APIKey           string  `yaml:"api_key"`
	Command          string  `yaml:"command"`
	Format           string  `yaml:"format"` // mp3, wav
	DefaultVoice     string  `yaml:"default_voice"`
	ChunkLimit       int     `yaml:"chunk_limit"`
	MaxAttempts      int     `yaml:"max_attempts"`
	BackoffMS        int     `yaml:"backoff_ms"`
	RequestTimeoutMS int     `yaml:"request_timeout_ms"`
	FetchTimeoutMS   int     `yaml:"fetch_timeout_ms"`
	Concurrency      int     `yaml:"concurrency"`
	RatePerSecond    float64 `yaml:"rate_per_second"`
}

type AudioConfig struct {
	Strategy      string `yaml:"strategy"` // raw, ffmpeg, wav
	FFmpegCommand string `yaml:"ffmpeg_command"`
	TempDir       string `yaml:"temp_dir"`
}

type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	Prefix     string `yaml:"prefix"`
}

func Default() Config {
	return Config{
		RuntimeName: "juggie",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        true,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/juggie-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		LLM: LLMConfig{
			Mode:        "gemini",
			MaxTokens:   4096,
			Temperature: 0.7,
			TimeoutMS:   60000,
		},
		Translate: TranslateConfig{
			Enabled:   true,
			Mode:      "google",
			Endpoint:  "https://translate.googleapis.com/translate_a/single",
			TimeoutMS: 15000,
			MaxChars:  4500,
		},
		TTS: TTSConfig{
			Mode:             "murf",
			Endpoint:         "https://api.murf.ai/v1",
			Format:           "mp3",
			DefaultVoice:     "en-IN-eashwar",
			ChunkLimit:       2500,
			MaxAttempts:      3,
			BackoffMS:        1000,
			RequestTimeoutMS: 45000,
			FetchTimeoutMS:   20000,
			Concurrency:      1,
		},
		Audio: AudioConfig{
			Strategy:      "raw",
			FFmpegCommand: "ffmpeg -hide_banner -loglevel error",
		},
		Cache: CacheConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			TTLSeconds: 86400,
			Prefix:     "juggie",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "JUGGIE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "JUGGIE_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "JUGGIE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "JUGGIE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "JUGGIE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "JUGGIE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "JUGGIE_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Telemetry.TraceStdout, "JUGGIE_TELEMETRY_TRACE_STDOUT")
	overrideString(&cfg.Telemetry.PrometheusBind, "JUGGIE_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "JUGGIE_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "JUGGIE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "JUGGIE_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "JUGGIE_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "JUGGIE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "JUGGIE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "JUGGIE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "JUGGIE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "JUGGIE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "JUGGIE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "JUGGIE_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "JUGGIE_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "JUGGIE_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "JUGGIE_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "JUGGIE_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.LLM.Mode, "JUGGIE_LLM_MODE")
	overrideString(&cfg.LLM.Endpoint, "JUGGIE_LLM_ENDPOINT")
	overrideString(&cfg.LLM.Model, "JUGGIE_LLM_MODEL")
	overrideString(&cfg.LLM.Command, "JUGGIE_LLM_COMMAND")
	overrideInt(&cfg.LLM.MaxTokens, "JUGGIE_LLM_MAX_TOKENS")
	overrideFloat(&cfg.LLM.Temperature, "JUGGIE_LLM_TEMPERATURE")
	overrideInt(&cfg.LLM.TimeoutMS, "JUGGIE_LLM_TIMEOUT_MS")
	overrideBool(&cfg.Translate.Enabled, "JUGGIE_TRANSLATE_ENABLED")
	overrideString(&cfg.Translate.Mode, "JUGGIE_TRANSLATE_MODE")
	overrideString(&cfg.Translate.Endpoint, "JUGGIE_TRANSLATE_ENDPOINT")
	overrideInt(&cfg.Translate.TimeoutMS, "JUGGIE_TRANSLATE_TIMEOUT_MS")
	overrideInt(&cfg.Translate.MaxChars, "JUGGIE_TRANSLATE_MAX_CHARS")
	overrideString(&cfg.TTS.Mode, "JUGGIE_TTS_MODE")
	overrideString(&cfg.TTS.Endpoint, "JUGGIE_TTS_ENDPOINT")
	overrideString(&cfg.TTS.Command, "JUGGIE_TTS_COMMAND")
	overrideString(&cfg.TTS.Format, "JUGGIE_TTS_FORMAT")
	overrideString(&cfg.TTS.DefaultVoice, "JUGGIE_TTS_DEFAULT_VOICE")
	overrideInt(&cfg.TTS.ChunkLimit, "JUGGIE_TTS_CHUNK_LIMIT")
	overrideInt(&cfg.TTS.MaxAttempts, "JUGGIE_TTS_MAX_ATTEMPTS")
	overrideInt(&cfg.TTS.BackoffMS, "JUGGIE_TTS_BACKOFF_MS")
	overrideInt(&cfg.TTS.RequestTimeoutMS, "JUGGIE_TTS_REQUEST_TIMEOUT_MS")
	overrideInt(&cfg.TTS.FetchTimeoutMS, "JUGGIE_TTS_FETCH_TIMEOUT_MS")
	overrideInt(&cfg.TTS.Concurrency, "JUGGIE_TTS_CONCURRENCY")
	overrideFloat(&cfg.TTS.RatePerSecond, "JUGGIE_TTS_RATE_PER_SECOND")
	overrideString(&cfg.Audio.Strategy, "JUGGIE_AUDIO_STRATEGY")
	overrideString(&cfg.Audio.FFmpegCommand, "JUGGIE_AUDIO_FFMPEG_COMMAND")
	overrideString(&cfg.Audio.TempDir, "JUGGIE_AUDIO_TEMP_DIR")
	overrideBool(&cfg.Cache.Enabled, "JUGGIE_CACHE_ENABLED")
	overrideString(&cfg.Cache.Addr, "JUGGIE_CACHE_ADDR")
	overrideString(&cfg.Cache.Password, "JUGGIE_CACHE_PASSWORD")
	overrideInt(&cfg.Cache.DB, "JUGGIE_CACHE_DB")
	overrideInt(&cfg.Cache.TTLSeconds, "JUGGIE_CACHE_TTL_SECONDS")
	overrideString(&cfg.Cache.Prefix, "JUGGIE_CACHE_PREFIX")

	// Provider secrets: the prefixed variable wins over the vendor-conventional one.
	overrideString(&cfg.LLM.APIKey, llmKeyEnv(cfg.LLM.Mode))
	overrideString(&cfg.LLM.APIKey, "JUGGIE_LLM_API_KEY")
	overrideString(&cfg.TTS.APIKey, "MURF_API_KEY")
	overrideString(&cfg.TTS.APIKey, "JUGGIE_TTS_API_KEY")
}

func llmKeyEnv(mode string) string {
	switch mode {
	case "openai":
		return "OPENAI_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

// Validate checks a configuration assembled outside Load.
func Validate(cfg Config) error {
	return validate(cfg)
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch strings.ToLower(cfg.Telemetry.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.New("telemetry.log_level must be one of debug|info|warn|error")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}

	switch cfg.LLM.Mode {
	case "gemini", "openai", "mock":
	case "ollama":
		if cfg.LLM.Endpoint == "" {
			return errors.New("llm.endpoint must be set when mode=ollama")
		}
	case "exec":
		if cfg.LLM.Command == "" {
			return errors.New("llm.command must be set when mode=exec")
		}
	default:
		return errors.New("llm.mode must be one of gemini|openai|ollama|exec|mock")
	}
	if cfg.LLM.MaxTokens < 0 {
		return errors.New("llm.max_tokens must be >= 0")
	}
	if cfg.LLM.TimeoutMS < 0 {
		return errors.New("llm.timeout_ms must be >= 0")
	}

	if cfg.Translate.Enabled {
		switch cfg.Translate.Mode {
		case "google", "mock":
		default:
			return errors.New("translate.mode must be one of google|mock")
		}
		if cfg.Translate.Mode == "google" && cfg.Translate.Endpoint == "" {
			return errors.New("translate.endpoint must be set when mode=google")
		}
		if cfg.Translate.MaxChars < 0 {
			return errors.New("translate.max_chars must be >= 0")
		}
	}

	switch cfg.TTS.Mode {
	case "murf":
		if cfg.TTS.Endpoint == "" {
			return errors.New("tts.endpoint must be set when mode=murf")
		}
	case "exec":
		if cfg.TTS.Command == "" {
			return errors.New("tts.command must be set when mode=exec")
		}
	case "mock":
	default:
		return errors.New("tts.mode must be one of murf|exec|mock")
	}
	switch cfg.TTS.Format {
	case "mp3", "wav":
	default:
		return errors.New("tts.format must be one of mp3|wav")
	}
	if cfg.TTS.ChunkLimit <= 0 {
		return errors.New("tts.chunk_limit must be positive")
	}
	if cfg.TTS.MaxAttempts <= 0 {
		return errors.New("tts.max_attempts must be >= 1")
	}
	if cfg.TTS.BackoffMS < 0 || cfg.TTS.RequestTimeoutMS < 0 || cfg.TTS.FetchTimeoutMS < 0 {
		return errors.New("tts timeouts and backoff must be >= 0")
	}
	if cfg.TTS.Concurrency <= 0 {
		return errors.New("tts.concurrency must be >= 1")
	}
	if cfg.TTS.RatePerSecond < 0 {
		return errors.New("tts.rate_per_second must be >= 0")
	}

	switch cfg.Audio.Strategy {
	case "raw":
	case "ffmpeg":
		if cfg.Audio.FFmpegCommand == "" {
			return errors.New("audio.ffmpeg_command must be set when strategy=ffmpeg")
		}
	case "wav":
		if cfg.TTS.Format != "wav" {
			return errors.New("audio.strategy=wav requires tts.format=wav")
		}
	default:
		return errors.New("audio.strategy must be one of raw|ffmpeg|wav")
	}

	if cfg.Cache.Enabled {
		if cfg.Cache.Addr == "" {
			return errors.New("cache.addr must be set when cache is enabled")
		}
		if cfg.Cache.TTLSeconds < 0 {
			return errors.New("cache.ttl_seconds must be >= 0")
		}
	}
	return nil
}
