package llm

import (
	"fmt"
	"net/http"
	"time"

	"github.com/loqalabs/juggie/internal/config"
)

// New builds the generator selected by cfg.Mode.
func New(cfg config.LLMConfig) (Generator, error) {
	client := &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond}
	switch cfg.Mode {
	case "gemini":
		return NewGeminiGenerator(cfg.Endpoint, cfg.APIKey, cfg.Model, client), nil
	case "openai":
		return NewOpenAIGenerator(cfg.Endpoint, cfg.APIKey, cfg.Model, client), nil
	case "ollama":
		return NewOllamaGenerator(cfg.Endpoint, cfg.Model, client), nil
	case "exec":
		return NewExecGenerator(cfg.Command)
	case "mock":
		return NewMockGenerator(""), nil
	default:
		return nil, fmt.Errorf("unsupported llm mode %q", cfg.Mode)
	}
}

// RequestFromConfig fills generation defaults for a prompt.
func RequestFromConfig(cfg config.LLMConfig, sessionID, prompt string) Request {
	return Request{
		SessionID:   sessionID,
		Prompt:      prompt,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
}
