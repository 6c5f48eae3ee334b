package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// wavAssembler decodes every segment to PCM, appends the samples and encodes once.
type wavAssembler struct {
	tempDir string
}

func NewWAVAssembler(tempDir string) Assembler {
	return &wavAssembler{tempDir: tempDir}
}

func (w *wavAssembler) Assemble(ctx context.Context, segments [][]byte) ([]byte, error) {
	segments = nonEmpty(segments)
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}
	var (
		samples    []int
		sampleRate int
		channels   int
		bitDepth   int
	)
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf, err := DecodeWAV(seg)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		if i == 0 {
			sampleRate, channels, bitDepth = buf.Format.SampleRate, buf.Format.NumChannels, buf.SourceBitDepth
		} else if buf.Format.SampleRate != sampleRate || buf.Format.NumChannels != channels || buf.SourceBitDepth != bitDepth {
			return nil, fmt.Errorf("segment %d: format %dHz/%dch/%dbit does not match %dHz/%dch/%dbit",
				i, buf.Format.SampleRate, buf.Format.NumChannels, buf.SourceBitDepth, sampleRate, channels, bitDepth)
		}
		samples = append(samples, buf.Data...)
	}
	return encodeWAV(w.tempDir, samples, sampleRate, channels, bitDepth)
}

// DecodeWAV reads a complete WAV payload into memory.
func DecodeWAV(data []byte) (*goaudio.IntBuffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav data")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	return buf, nil
}

// EncodeWAV encodes 16-bit PCM samples as a WAV payload.
func EncodeWAV(samples []int, sampleRate, channels int) ([]byte, error) {
	return encodeWAV("", samples, sampleRate, channels, wavBitDepth)
}

// Samples are written at bitDepth and must already be scaled to it.
func encodeWAV(tempDir string, samples []int, sampleRate, channels, bitDepth int) ([]byte, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid wav format %dHz/%dch", sampleRate, channels)
	}
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported wav bit depth %d", bitDepth)
	}
	file, err := os.CreateTemp(tempDir, "juggie_*.wav")
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	enc := wav.NewEncoder(file, sampleRate, bitDepth, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return os.ReadFile(file.Name())
}
