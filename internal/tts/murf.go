package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const defaultMurfEndpoint = "https://api.murf.ai/v1"

// murfSynth requests a rendered file from Murf and then downloads it.
type murfSynth struct {
	endpoint     string
	apiKey       string
	fetchTimeout time.Duration
	client       *http.Client
}

func NewMurfSynth(endpoint, apiKey string, fetchTimeout time.Duration, client *http.Client) Synthesizer {
	if endpoint == "" {
		endpoint = defaultMurfEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &murfSynth{
		endpoint:     strings.TrimRight(endpoint, "/"),
		apiKey:       apiKey,
		fetchTimeout: fetchTimeout,
		client:       client,
	}
}

type murfRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
	Format  string `json:"format"`
}

type murfResponse struct {
	AudioFile            string  `json:"audioFile"`
	AudioLengthInSeconds float64 `json:"audioLengthInSeconds"`
	ErrorMessage         string  `json:"errorMessage"`
}

func (m *murfSynth) Synthesize(ctx context.Context, req SynthRequest) ([]byte, error) {
	format := strings.ToUpper(req.Format)
	if format == "" {
		format = "MP3"
	}
	body, err := sonic.Marshal(murfRequest{Text: req.Text, VoiceID: req.Voice, Format: format})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/speech/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("api-key", m.apiKey)

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, &SynthesisError{Provider: "murf", Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SynthesisError{Provider: "murf", Status: resp.StatusCode, Err: err}
	}
	var decoded murfResponse
	decodeErr := sonic.Unmarshal(raw, &decoded)
	if resp.StatusCode >= 300 {
		msg := decoded.ErrorMessage
		if msg == "" {
			msg = resp.Status
		}
		return nil, &SynthesisError{Provider: "murf", Status: resp.StatusCode, Err: errors.New(msg)}
	}
	if decodeErr != nil {
		return nil, &SynthesisError{Provider: "murf", Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if decoded.AudioFile == "" {
		return nil, &SynthesisError{Provider: "murf", Status: resp.StatusCode, Err: errors.New("response missing audioFile")}
	}
	return m.fetch(ctx, decoded.AudioFile)
}

func (m *murfSynth) fetch(ctx context.Context, url string) ([]byte, error) {
	if m.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.fetchTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &SynthesisError{Provider: "murf", Err: fmt.Errorf("fetch audio: %w", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, &SynthesisError{Provider: "murf", Status: resp.StatusCode, Err: errors.New("fetch audio failed")}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SynthesisError{Provider: "murf", Err: fmt.Errorf("read audio: %w", err)}
	}
	if len(data) == 0 {
		return nil, &SynthesisError{Provider: "murf", Err: errors.New("audio file empty")}
	}
	return data, nil
}
