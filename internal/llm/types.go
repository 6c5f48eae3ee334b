package llm

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrorPrefix marks an answer that reports a backend failure instead of content.
const ErrorPrefix = "[ERROR]"

var ErrEmptyAnswer = errors.New("llm returned an empty answer")

// Request describes a language model prompt.
type Request struct {
	SessionID   string
	Prompt      string
	System      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Chunk represents streamed model output.
type Chunk struct {
	SessionID        string
	Content          string
	Partial          bool
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// Generator defines a pluggable LLM backend.
type Generator interface {
	Generate(ctx context.Context, req Request, consumer func(Chunk) error) error
}

// Collect runs a generation to completion and returns the concatenated answer.
func Collect(ctx context.Context, g Generator, req Request) (string, error) {
	var b strings.Builder
	err := g.Generate(ctx, req, func(chunk Chunk) error {
		b.WriteString(chunk.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(b.String())
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}

// IsErrorAnswer reports whether an answer carries the backend error marker.
func IsErrorAnswer(answer string) bool {
	return strings.HasPrefix(strings.TrimSpace(answer), ErrorPrefix)
}
