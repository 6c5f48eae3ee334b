package tts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loqalabs/juggie/internal/audio"
)

const mockSampleRate = 22050

type mockSynth struct {
	format string
	delay  time.Duration
}

// NewMockSynth returns a synthesizer that needs no provider. MP3 requests get a
// text marker payload; WAV requests get valid silence sized to the word count.
func NewMockSynth(format string) Synthesizer {
	return &mockSynth{format: format, delay: 10 * time.Millisecond}
}

func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(m.delay):
	}
	format := req.Format
	if format == "" {
		format = m.format
	}
	if format == "wav" {
		words := len(strings.Fields(req.Text))
		return audio.EncodeWAV(make([]int, words*mockSampleRate/10), mockSampleRate, 1)
	}
	return []byte(fmt.Sprintf("[%s] %s\n", req.Voice, req.Text)), nil
}
