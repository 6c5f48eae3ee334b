package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/loqalabs/juggie/internal/audio"
	"github.com/loqalabs/juggie/internal/config"
	"github.com/loqalabs/juggie/internal/llm"
	"github.com/loqalabs/juggie/internal/session"
	"github.com/loqalabs/juggie/internal/translate"
	"github.com/loqalabs/juggie/internal/tts"
)

// Pipeline is a configured orchestrator plus the resources it owns.
type Pipeline struct {
	Orchestrator *session.Orchestrator
	cache        *tts.Cache
}

// Close releases the segment cache connection, if any.
func (p *Pipeline) Close() error {
	if p == nil || p.cache == nil {
		return nil
	}
	return p.cache.Close()
}

// BuildPipeline wires the configured collaborators into an orchestrator.
// notifier and recorder may be nil.
func BuildPipeline(ctx context.Context, cfg config.Config, notifier session.Notifier, recorder session.Recorder, logger *slog.Logger) (*Pipeline, error) {
	generator, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("configure llm: %w", err)
	}
	translator, err := translate.New(cfg.Translate)
	if err != nil {
		return nil, fmt.Errorf("configure translation: %w", err)
	}
	synth, err := tts.New(cfg.TTS)
	if err != nil {
		return nil, fmt.Errorf("configure tts: %w", err)
	}
	assembler, err := audio.New(cfg.Audio, cfg.TTS.Format)
	if err != nil {
		return nil, fmt.Errorf("configure audio: %w", err)
	}

	p := &Pipeline{}
	opts := []tts.Option{
		tts.WithLogger(logger),
		tts.WithMeter(otel.Meter("github.com/loqalabs/juggie/internal/tts")),
		tts.WithRateLimit(cfg.TTS.RatePerSecond),
		tts.WithDefaultVoice(cfg.TTS.DefaultVoice),
	}
	if cfg.Cache.Enabled {
		cacheCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		cache, err := tts.NewCache(cacheCtx, cfg.Cache)
		cancel()
		if err != nil {
			// A missing cache only costs repeated synthesis calls.
			logger.Warn("segment cache unavailable", slog.String("addr", cfg.Cache.Addr), slogError(err))
		} else {
			p.cache = cache
			opts = append(opts, tts.WithCache(cache))
		}
	}
	speaker := tts.NewClient(synth, tts.PolicyFromConfig(cfg.TTS), cfg.TTS.Format, opts...)

	deps := session.Dependencies{
		Generator:  generator,
		Translator: translator,
		Speaker:    speaker,
		Assembler:  assembler,
		Notifier:   notifier,
		Recorder:   recorder,
	}
	orch, err := session.New(deps, session.Options{
		LLM:         cfg.LLM,
		ChunkLimit:  cfg.TTS.ChunkLimit,
		Concurrency: cfg.TTS.Concurrency,
	}, logger)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	p.Orchestrator = orch
	logger.Info("pipeline configured",
		slog.String("llm", cfg.LLM.Mode),
		slog.Bool("translate", translator != nil),
		slog.String("tts", cfg.TTS.Mode),
		slog.String("audio", cfg.Audio.Strategy),
		slog.Bool("cache", p.cache != nil))
	return p, nil
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
