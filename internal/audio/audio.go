// Package audio joins synthesized segments into one playable artifact.
package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/loqalabs/juggie/internal/config"
)

// ErrNoSegments is returned when there is nothing to assemble.
var ErrNoSegments = errors.New("audio: no segments to assemble")

// Assembler joins ordered segments into one artifact. Segment order is preserved.
type Assembler interface {
	Assemble(ctx context.Context, segments [][]byte) ([]byte, error)
}

// New returns the assembler for cfg.Strategy. format is the segment encoding (mp3 or wav).
func New(cfg config.AudioConfig, format string) (Assembler, error) {
	switch cfg.Strategy {
	case "", "raw":
		return NewRawAssembler(), nil
	case "ffmpeg":
		return NewFFmpegAssembler(cfg.FFmpegCommand, format, cfg.TempDir)
	case "wav":
		if format != "wav" {
			return nil, fmt.Errorf("wav assembly requires wav segments, got %q", format)
		}
		return NewWAVAssembler(cfg.TempDir), nil
	default:
		return nil, fmt.Errorf("unsupported audio strategy %q", cfg.Strategy)
	}
}

// MIMEType returns the media type for a segment format.
func MIMEType(format string) string {
	if format == "wav" {
		return "audio/wav"
	}
	return "audio/mpeg"
}

// FileName returns the download name offered for an assembled artifact.
func FileName(format string) string {
	if format == "wav" {
		return "Juggie_full_audio.wav"
	}
	return "Juggie_full_audio.mp3"
}

func nonEmpty(segments [][]byte) [][]byte {
	out := make([][]byte, 0, len(segments))
	for _, s := range segments {
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}
