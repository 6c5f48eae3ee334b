package tts

import (
	"fmt"
	"net/http"
	"time"

	"github.com/loqalabs/juggie/internal/config"
)

// New builds the synthesizer selected by cfg.Mode.
func New(cfg config.TTSConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "murf":
		client := &http.Client{Timeout: time.Duration(cfg.RequestTimeoutMS) * time.Millisecond}
		return NewMurfSynth(cfg.Endpoint, cfg.APIKey, time.Duration(cfg.FetchTimeoutMS)*time.Millisecond, client), nil
	case "exec":
		return NewExecSynth(cfg.Command)
	case "mock":
		return NewMockSynth(cfg.Format), nil
	default:
		return nil, fmt.Errorf("unsupported tts mode %q", cfg.Mode)
	}
}

// PolicyFromConfig converts retry settings.
func PolicyFromConfig(cfg config.TTSConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
}
