package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/loqalabs/juggie/internal/audio"
	"github.com/loqalabs/juggie/internal/catalog"
	"github.com/loqalabs/juggie/internal/config"
	"github.com/loqalabs/juggie/internal/eventstore"
	"github.com/loqalabs/juggie/internal/llm"
	"github.com/loqalabs/juggie/internal/prompt"
	"github.com/loqalabs/juggie/internal/protocol"
	"github.com/loqalabs/juggie/internal/text"
	"github.com/loqalabs/juggie/internal/translate"
	"github.com/loqalabs/juggie/internal/tts"
)

const (
	OutcomeCompleted = "completed"
	OutcomePartial   = "partial_audio"
	OutcomeTextOnly  = "text_only"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "generation_failed"
)

// Dependencies are the collaborators a session calls out to.
// Translator, Notifier and Recorder may be nil.
type Dependencies struct {
	Generator  llm.Generator
	Translator translate.Translator
	Speaker    Speaker
	Assembler  audio.Assembler
	Notifier   Notifier
	Recorder   Recorder
}

// Options tune the pipeline.
type Options struct {
	LLM         config.LLMConfig
	ChunkLimit  int
	Concurrency int
	Meter       metric.Meter
	Tracer      trace.Tracer
}

// Orchestrator runs sessions. It holds no per-session state and is safe for concurrent use.
type Orchestrator struct {
	deps        Dependencies
	llmDefaults config.LLMConfig
	chunkLimit  int
	concurrency int
	logger      *slog.Logger
	tracer      trace.Tracer
	sessions    metric.Int64Counter
	stageTime   metric.Float64Histogram
}

func New(deps Dependencies, opts Options, logger *slog.Logger) (*Orchestrator, error) {
	if deps.Generator == nil || deps.Speaker == nil || deps.Assembler == nil {
		return nil, errors.New("session: generator, speaker and assembler are required")
	}
	if opts.ChunkLimit <= 0 {
		opts.ChunkLimit = text.DefaultChunkLimit
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter("github.com/loqalabs/juggie/internal/session")
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/loqalabs/juggie/internal/session")
	}
	sessions, err := opts.Meter.Int64Counter("juggie.sessions",
		metric.WithDescription("Sessions by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create sessions counter: %w", err)
	}
	stageTime, err := opts.Meter.Float64Histogram("juggie.stage.duration",
		metric.WithDescription("Time spent per pipeline stage"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("create stage histogram: %w", err)
	}
	return &Orchestrator{
		deps:        deps,
		llmDefaults: opts.LLM,
		chunkLimit:  opts.ChunkLimit,
		concurrency: opts.Concurrency,
		logger:      logger.With(slog.String("component", "session")),
		tracer:      opts.Tracer,
		sessions:    sessions,
		stageTime:   stageTime,
	}, nil
}

type runOptions struct {
	sessionID string
}

// RunOption customizes a single Run.
type RunOption func(*runOptions)

// WithSessionID runs the session under a caller chosen id, so progress
// subscribers can attach before the session starts.
func WithSessionID(id string) RunOption {
	return func(o *runOptions) { o.sessionID = id }
}

// WithClientSessionID is WithSessionID for ids supplied by remote clients:
// anything that is not a UUID is ignored and a fresh id is generated.
func WithClientSessionID(id string) RunOption {
	return func(o *runOptions) {
		if parsed, err := uuid.Parse(strings.TrimSpace(id)); err == nil {
			o.sessionID = parsed.String()
		}
	}
}

// run carries the per-session working data. It never outlives one Run call.
type run struct {
	o      *Orchestrator
	id     string
	logger *slog.Logger
}

// Run executes one session. A validation error or a *GenerationError halts the
// session and no Result is returned. Translation and synthesis problems degrade
// the Result instead.
func (o *Orchestrator) Run(ctx context.Context, req catalog.Request, opts ...RunOption) (*Result, error) {
	ro := runOptions{}
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.sessionID == "" {
		ro.sessionID = uuid.NewString()
	}
	r := &run{o: o, id: ro.sessionID, logger: o.logger.With(slog.String("session_id", ro.sessionID))}

	ctx, span := o.tracer.Start(ctx, "session.run", trace.WithAttributes(
		attribute.String("session.id", r.id),
		attribute.String("session.language", req.Language.Name),
		attribute.Int("session.marks", int(req.Marks)),
	))
	defer span.End()
	ctx = tts.WithSessionID(ctx, r.id)

	res, outcome, err := r.execute(ctx, req)
	o.sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	span.SetAttributes(attribute.String("session.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (r *run) execute(ctx context.Context, req catalog.Request) (*Result, string, error) {
	end := r.stage(ctx, Validating, "Checking your question")
	err := req.Validate()
	end()
	if err != nil {
		r.logger.Info("session rejected", slogError(err))
		r.notify(ctx, protocol.ProgressEvent{Stage: Validating.String(), Level: protocol.LevelWarning, Message: err.Error(), Final: true})
		return nil, OutcomeRejected, err
	}
	r.recordSession(ctx, req)
	r.record(ctx, "submitted", req.Question)

	answer, err := r.generate(ctx, req)
	if err != nil {
		r.logger.Warn("generation failed", slogError(err))
		r.notify(ctx, protocol.ProgressEvent{Stage: Generating.String(), Level: protocol.LevelError, Message: err.Error(), Final: true})
		r.record(ctx, "failed", err.Error())
		r.setOutcome(ctx, OutcomeFailed)
		return nil, OutcomeFailed, err
	}
	r.record(ctx, "generated", fmt.Sprintf("%d words", text.WordCount(answer)))

	end = r.stage(ctx, Translating, "Translating to "+req.Language.Name)
	translated, applied := translate.OrOriginal(ctx, r.o.deps.Translator, answer, req.Language, r.logger)
	end()
	if applied {
		r.record(ctx, "translated", req.Language.Name)
	}

	end = r.stage(ctx, LimitEnforcing, "")
	limit := req.WordLimit()
	final := text.EnforceWordLimit(translated, limit)
	end()

	end = r.stage(ctx, Chunking, "")
	chunks := text.Chunk(final, r.o.chunkLimit)
	end()

	res := &Result{
		SessionID:  r.id,
		Request:    req,
		Answer:     final,
		Translated: applied,
		WordLimit:  limit,
		Chunks:     chunks,
	}

	end = r.stage(ctx, Synthesizing, "Generating audio")
	segments, notices := r.synthesize(ctx, chunks, req.Language.Voice())
	end()
	res.Notices = append(res.Notices, notices...)

	outcome := OutcomeCompleted
	if len(notices) > 0 {
		outcome = OutcomePartial
	}

	end = r.stage(ctx, Assembling, "")
	res.Audio, err = r.assemble(ctx, segments)
	end()
	if err != nil {
		outcome = OutcomeTextOnly
		if !errors.Is(err, audio.ErrNoSegments) {
			res.Notices = append(res.Notices, Notice{Message: "Audio could not be assembled"})
		}
		r.record(ctx, "audio_unavailable", err.Error())
	} else {
		r.record(ctx, "audio_assembled", fmt.Sprintf("%d of %d parts", res.Audio.Segments, len(chunks)))
	}

	message := "Audio ready!"
	if res.Audio == nil {
		message = "Answer ready, audio unavailable"
	}
	r.notify(ctx, protocol.ProgressEvent{Stage: Presenting.String(), Level: protocol.LevelInfo, Message: message, Final: true})
	r.setOutcome(ctx, outcome)
	r.logger.Info("session complete",
		slog.String("outcome", outcome),
		slog.Int("words", text.WordCount(final)),
		slog.Int("chunks", len(chunks)),
		slog.Int("notices", len(res.Notices)))
	return res, outcome, nil
}

func (r *run) generate(ctx context.Context, req catalog.Request) (string, error) {
	end := r.stage(ctx, Generating, "Thinking…")
	defer end()

	instruction, err := prompt.Build(req)
	if err != nil {
		return "", &GenerationError{Message: llm.ErrorPrefix + " " + err.Error(), Err: err}
	}
	answer, err := llm.Collect(ctx, r.o.deps.Generator, llm.RequestFromConfig(r.o.llmDefaults, r.id, instruction))
	if err != nil {
		return "", &GenerationError{Message: llm.ErrorPrefix + " " + err.Error(), Err: err}
	}
	if llm.IsErrorAnswer(answer) {
		return "", &GenerationError{Message: answer}
	}
	return answer, nil
}

type segment struct {
	data []byte
	ok   bool
}

// synthesize renders every chunk and returns the successful segments in chunk order.
func (r *run) synthesize(ctx context.Context, chunks []string, voice string) ([][]byte, []Notice) {
	results := make([]segment, len(chunks))
	total := len(chunks)
	render := func(i int) {
		r.notify(ctx, protocol.ProgressEvent{
			Stage:   Synthesizing.String(),
			Level:   protocol.LevelInfo,
			Message: fmt.Sprintf("Generating voice part %d/%d", i+1, total),
			Part:    i + 1,
			Total:   total,
		})
		data, ok := r.o.deps.Speaker.Synthesize(ctx, chunks[i], voice)
		results[i] = segment{data: data, ok: ok}
	}

	if r.o.concurrency <= 1 || total <= 1 {
		for i := range chunks {
			render(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(r.o.concurrency)
		for i := range chunks {
			g.Go(func() error {
				render(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	var (
		segments [][]byte
		notices  []Notice
	)
	for i, res := range results {
		if res.ok {
			segments = append(segments, res.data)
			continue
		}
		n := Notice{Part: i + 1, Message: fmt.Sprintf("Failed to generate part %d", i+1)}
		notices = append(notices, n)
		r.logger.Warn("segment skipped", slog.Int("part", i+1), slog.Int("total", total))
		r.notify(ctx, protocol.ProgressEvent{Stage: Synthesizing.String(), Level: protocol.LevelWarning, Message: n.Message, Part: i + 1, Total: total})
		r.record(ctx, "segment_failed", n.Message)
	}
	return segments, notices
}

func (r *run) assemble(ctx context.Context, segments [][]byte) (*Audio, error) {
	if len(segments) == 0 {
		return nil, audio.ErrNoSegments
	}
	data, err := r.o.deps.Assembler.Assemble(ctx, segments)
	if err != nil {
		r.logger.Warn("audio assembly failed", slogError(err))
		return nil, err
	}
	format := r.o.deps.Speaker.Format()
	return &Audio{
		Data:     data,
		Format:   format,
		MIMEType: audio.MIMEType(format),
		FileName: audio.FileName(format),
		Segments: len(segments),
	}, nil
}

// stage announces a state transition and returns a func that closes its span and records its duration.
func (r *run) stage(ctx context.Context, state State, message string) func() {
	start := time.Now()
	_, span := r.o.tracer.Start(ctx, "session."+state.String())
	if message != "" {
		r.notify(ctx, protocol.ProgressEvent{Stage: state.String(), Level: protocol.LevelInfo, Message: message})
	}
	r.logger.Debug("stage", slog.String("stage", state.String()))
	return func() {
		span.End()
		r.o.stageTime.Record(ctx, float64(time.Since(start).Microseconds())/1000,
			metric.WithAttributes(attribute.String("stage", state.String())))
	}
}

func (r *run) notify(ctx context.Context, evt protocol.ProgressEvent) {
	if r.o.deps.Notifier == nil {
		return
	}
	evt.SessionID = r.id
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	r.o.deps.Notifier.Notify(ctx, evt)
}

func (r *run) recordSession(ctx context.Context, req catalog.Request) {
	if r.o.deps.Recorder == nil {
		return
	}
	err := r.o.deps.Recorder.AppendSession(ctx, eventstore.Session{
		ID:       r.id,
		Question: req.Question,
		Subject:  req.Subject,
		Marks:    int(req.Marks),
		Language: req.Language.Name,
	})
	if err != nil {
		r.logger.Warn("failed to record session", slogError(err))
	}
}

func (r *run) record(ctx context.Context, typ, message string) {
	if r.o.deps.Recorder == nil {
		return
	}
	err := r.o.deps.Recorder.AppendEvent(ctx, eventstore.Event{SessionID: r.id, Type: typ, Message: message})
	if err != nil {
		r.logger.Warn("failed to record event", slog.String("type", typ), slogError(err))
	}
}

func (r *run) setOutcome(ctx context.Context, outcome string) {
	if r.o.deps.Recorder == nil {
		return
	}
	if err := r.o.deps.Recorder.SetOutcome(ctx, r.id, outcome); err != nil {
		r.logger.Warn("failed to record outcome", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
