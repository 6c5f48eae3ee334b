package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/loqalabs/juggie/internal/config"
)

type scriptedSynth struct {
	calls atomic.Int32
	fn    func(call int, req SynthRequest) ([]byte, error)
}

func (s *scriptedSynth) Synthesize(ctx context.Context, req SynthRequest) ([]byte, error) {
	return s.fn(int(s.calls.Add(1)), req)
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var instant = RetryPolicy{MaxAttempts: 3, Backoff: 0}

func TestMurfSynthesize(t *testing.T) {
	var got murfRequest
	var key string
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/speech/generate", func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("api-key")
		body, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(body, &got)
		fmt.Fprintf(w, `{"audioFile":%q,"audioLengthInSeconds":1.5}`, srv.URL+"/files/out.mp3")
	})
	mux.HandleFunc("/files/out.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("MP3DATA"))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	synth := NewMurfSynth(srv.URL, "murf-key", time.Second, srv.Client())
	data, err := synth.Synthesize(context.Background(), SynthRequest{Text: "Hello there.", Voice: "en-IN-eashwar"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(data) != "MP3DATA" {
		t.Fatalf("unexpected audio %q", data)
	}
	if key != "murf-key" || got.VoiceID != "en-IN-eashwar" || got.Format != "MP3" || got.Text != "Hello there." {
		t.Fatalf("unexpected request key=%q body=%+v", key, got)
	}
}

func TestMurfStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"errorMessage":"invalid api key"}`)
	}))
	defer srv.Close()

	_, err := NewMurfSynth(srv.URL, "bad", time.Second, srv.Client()).Synthesize(context.Background(), SynthRequest{Text: "x"})
	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected SynthesisError, got %v", err)
	}
	if synthErr.Status != http.StatusUnauthorized || synthErr.Provider != "murf" {
		t.Fatalf("unexpected error %+v", synthErr)
	}
}

func TestClientRetriesThenSucceeds(t *testing.T) {
	synth := &scriptedSynth{fn: func(call int, req SynthRequest) ([]byte, error) {
		if call < 3 {
			return nil, errors.New("flaky")
		}
		return []byte(req.Text), nil
	}}
	data, ok := NewClient(synth, instant, "mp3", quiet()).Synthesize(context.Background(), "  hello \n world ", "v")
	if !ok {
		t.Fatal("expected success on third attempt")
	}
	if string(data) != "hello world" {
		t.Fatalf("expected normalized text to be sent, got %q", data)
	}
	if synth.calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", synth.calls.Load())
	}
}

func TestClientGivesUpAfterMaxAttempts(t *testing.T) {
	synth := &scriptedSynth{fn: func(int, SynthRequest) ([]byte, error) {
		return nil, errors.New("down")
	}}
	data, ok := NewClient(synth, instant, "mp3", quiet()).Synthesize(context.Background(), "hello", "v")
	if ok || data != nil {
		t.Fatal("expected failure after retries")
	}
	if synth.calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", synth.calls.Load())
	}
}

func TestClientDefaultVoice(t *testing.T) {
	synth := &scriptedSynth{fn: func(_ int, req SynthRequest) ([]byte, error) {
		return []byte(req.Voice), nil
	}}
	client := NewClient(synth, instant, "mp3", quiet(), WithDefaultVoice("en-IN-narrator"))
	if data, _ := client.Synthesize(context.Background(), "hello", ""); string(data) != "en-IN-narrator" {
		t.Fatalf("expected configured default voice, got %q", data)
	}
	if data, _ := client.Synthesize(context.Background(), "hello", "ta-IN-iniya"); string(data) != "ta-IN-iniya" {
		t.Fatalf("expected dedicated voice to win, got %q", data)
	}
}

func TestClientEmptyTextSkipsProvider(t *testing.T) {
	synth := &scriptedSynth{fn: func(int, SynthRequest) ([]byte, error) { return []byte("x"), nil }}
	if _, ok := NewClient(synth, instant, "mp3", quiet()).Synthesize(context.Background(), " \n ", "v"); ok {
		t.Fatal("expected failure for empty text")
	}
	if synth.calls.Load() != 0 {
		t.Fatalf("expected no provider calls, got %d", synth.calls.Load())
	}
}

func TestRetryPolicyStopsOnEmptyText(t *testing.T) {
	calls := 0
	_, err := instant.Do(context.Background(), func(context.Context) ([]byte, error) {
		calls++
		return nil, ErrEmptyText
	}, nil)
	if !errors.Is(err, ErrEmptyText) || calls != 1 {
		t.Fatalf("expected a single attempt with ErrEmptyText, got %d calls err=%v", calls, err)
	}
}

func TestRetryPolicyWaitsBetweenAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2, Backoff: 30 * time.Millisecond}
	start := time.Now()
	_, _ = policy.Do(context.Background(), func(context.Context) ([]byte, error) {
		return nil, errors.New("nope")
	}, nil)
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("expected backoff between attempts, took %s", elapsed)
	}
}

func TestClientCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour, "test")
	defer cache.Close()

	synth := &scriptedSynth{fn: func(_ int, req SynthRequest) ([]byte, error) { return []byte("audio:" + req.Text), nil }}
	client := NewClient(synth, instant, "mp3", quiet(), WithCache(cache), WithRateLimit(100))
	for i := 0; i < 3; i++ {
		data, ok := client.Synthesize(context.Background(), "cached text", "v")
		if !ok || string(data) != "audio:cached text" {
			t.Fatalf("unexpected result %q %v", data, ok)
		}
	}
	if synth.calls.Load() != 1 {
		t.Fatalf("expected a single provider call, got %d", synth.calls.Load())
	}
	if cache.Key("v", "mp3", "a") == cache.Key("w", "mp3", "a") {
		t.Fatal("expected voice to be part of the cache key")
	}
}

func TestExecSynth(t *testing.T) {
	frame := base64.StdEncoding.EncodeToString([]byte("PCM"))
	script := filepath.Join(t.TempDir(), "speak.sh")
	body := fmt.Sprintf("#!/bin/sh\ncat > /dev/null\necho '{\"audio_base64\":\"%s\"}'\necho '{\"audio_base64\":\"%s\"}'\n", frame, frame)
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	synth, err := NewExecSynth(script)
	if err != nil {
		t.Fatal(err)
	}
	data, err := synth.Synthesize(context.Background(), SynthRequest{Text: "hi", Voice: "v", Format: "wav"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(data) != "PCMPCM" {
		t.Fatalf("unexpected audio %q", data)
	}
}

func TestExecSynthStopsOnBadFrame(t *testing.T) {
	dir := t.TempDir()
	tests := []struct{ want, tail string }{
		{"decode frame", "echo 'not json'\nexec head -c 2000000 /dev/zero\n"},
		{"voice missing", "echo '{\"error\":\"voice missing\"}'\nhead -c 2000000 /dev/zero | tr '\\0' a\n"},
		{"decode audio", "echo '{\"audio_base64\":\"***\"}'\nsleep 30\n"},
	}
	for i, tc := range tests {
		want := tc.want
		script := filepath.Join(dir, fmt.Sprintf("speak%d.sh", i))
		if err := os.WriteFile(script, []byte("#!/bin/sh\ncat > /dev/null\n"+tc.tail), 0o755); err != nil {
			t.Fatal(err)
		}
		synth, err := NewExecSynth(script)
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		start := time.Now()
		_, err = synth.Synthesize(ctx, SynthRequest{Text: "hi", Voice: "v", Format: "wav"})
		cancel()
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q error, got %v", want, err)
		}
		if elapsed := time.Since(start); elapsed > 10*time.Second {
			t.Fatalf("%s: synthesize returned after %s", want, elapsed)
		}
	}
}

func TestMockSynthWAV(t *testing.T) {
	data, err := NewMockSynth("wav").Synthesize(context.Background(), SynthRequest{Text: "one two"})
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 44 || string(data[:4]) != "RIFF" {
		t.Fatal("expected a RIFF payload")
	}
}

func TestNew(t *testing.T) {
	if _, err := New(config.TTSConfig{Mode: "murf"}); err != nil {
		t.Fatal(err)
	}
	if _, err := New(config.TTSConfig{Mode: "exec"}); err == nil {
		t.Fatal("expected error for exec without command")
	}
	if _, err := New(config.TTSConfig{Mode: "polly"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	policy := PolicyFromConfig(config.TTSConfig{MaxAttempts: 3, BackoffMS: 1000})
	if policy != DefaultRetryPolicy() {
		t.Fatalf("unexpected policy %+v", policy)
	}
}
