// Package session runs one study question from validation to presented audio.
package session

import (
	"context"
	"encoding/base64"

	"github.com/loqalabs/juggie/internal/catalog"
	"github.com/loqalabs/juggie/internal/eventstore"
	"github.com/loqalabs/juggie/internal/protocol"
	"github.com/loqalabs/juggie/internal/text"
)

// State is a step of the session pipeline. Sessions move through the states in order.
type State int

const (
	Idle State = iota
	Validating
	Generating
	Translating
	LimitEnforcing
	Chunking
	Synthesizing
	Assembling
	Presenting
)

var stateNames = [...]string{
	Idle:           "idle",
	Validating:     "validating",
	Generating:     "generating",
	Translating:    "translating",
	LimitEnforcing: "limit_enforcing",
	Chunking:       "chunking",
	Synthesizing:   "synthesizing",
	Assembling:     "assembling",
	Presenting:     "presenting",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Notifier receives progress events. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, evt protocol.ProgressEvent)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, evt protocol.ProgressEvent)

func (f NotifierFunc) Notify(ctx context.Context, evt protocol.ProgressEvent) { f(ctx, evt) }

// Recorder persists the session timeline. *eventstore.Store satisfies it.
type Recorder interface {
	AppendSession(ctx context.Context, sess eventstore.Session) error
	AppendEvent(ctx context.Context, evt eventstore.Event) error
	SetOutcome(ctx context.Context, sessionID, outcome string) error
}

// Speaker renders one chunk of text. *tts.Client satisfies it.
type Speaker interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, bool)
	Format() string
}

// Notice is a non-fatal problem surfaced with the result.
type Notice struct {
	Part    int
	Message string
}

// Audio is the assembled artifact.
type Audio struct {
	Data     []byte
	Format   string
	MIMEType string
	FileName string
	Segments int
}

// Base64 returns the artifact encoded for inline transport.
func (a *Audio) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// DataURI returns the artifact as a data URI suitable for an audio element or download link.
func (a *Audio) DataURI() string {
	return "data:" + a.MIMEType + ";base64," + a.Base64()
}

// Result is the outcome of a session that got past generation.
type Result struct {
	SessionID  string
	Request    catalog.Request
	Answer     string
	Translated bool
	WordLimit  int
	Chunks     []string
	Audio      *Audio
	Notices    []Notice
}

// WordCount returns the number of words in the presented answer.
func (r *Result) WordCount() int {
	return text.WordCount(r.Answer)
}

// Response shapes the result for the JSON API and the bus.
func (r *Result) Response() protocol.AnswerResponse {
	out := protocol.AnswerResponse{
		SessionID:  r.SessionID,
		Language:   r.Request.Language.Name,
		Answer:     r.Answer,
		WordCount:  r.WordCount(),
		WordLimit:  r.WordLimit,
		Translated: r.Translated,
		Chunks:     len(r.Chunks),
		Notices:    NoticeMessages(r.Notices),
	}
	if a := r.Audio; a != nil {
		out.Audio = &protocol.AudioPayload{
			Format:   a.Format,
			MIMEType: a.MIMEType,
			FileName: a.FileName,
			Segments: a.Segments,
			Base64:   a.Base64(),
		}
	}
	return out
}

// NoticeMessages returns the user facing text of each notice.
func NoticeMessages(notices []Notice) []string {
	if len(notices) == 0 {
		return nil
	}
	out := make([]string, len(notices))
	for i, n := range notices {
		out[i] = n.Message
	}
	return out
}

// GenerationError halts a session. Message is shown to the user verbatim.
type GenerationError struct {
	Message string
	Err     error
}

func (e *GenerationError) Error() string { return e.Message }

func (e *GenerationError) Unwrap() error { return e.Err }
