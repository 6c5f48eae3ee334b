package tts

import (
	"context"
	"errors"
	"fmt"
)

var ErrEmptyText = errors.New("tts: empty text")

// SynthRequest contains parameters to synthesize one chunk of speech.
type SynthRequest struct {
	SessionID string
	Text      string
	Voice     string
	Format    string
}

// Synthesizer is the contract for producing one encoded audio segment.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) ([]byte, error)
}

// SynthesisError reports a provider-side failure.
type SynthesisError struct {
	Provider string
	Status   int
	Err      error
}

func (e *SynthesisError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s synthesis failed with status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s synthesis failed: %v", e.Provider, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
