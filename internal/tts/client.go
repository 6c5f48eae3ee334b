package tts

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/time/rate"

	"github.com/loqalabs/juggie/internal/text"
)

// Client wraps a Synthesizer with normalization, retries, rate limiting and
// an optional segment cache. Failures never propagate: callers skip the segment.
type Client struct {
	synth    Synthesizer
	policy   RetryPolicy
	format   string
	voice    string
	limiter  *rate.Limiter
	cache    *Cache
	logger   *slog.Logger
	attempts metric.Int64Counter
	failures metric.Int64Counter
}

type Option func(*Client)

func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			burst := int(perSecond)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithDefaultVoice sets the voice used when a caller passes none.
func WithDefaultVoice(voice string) Option {
	return func(c *Client) { c.voice = voice }
}

func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMeter(meter metric.Meter) Option {
	return func(c *Client) {
		if meter == nil {
			return
		}
		if counter, err := meter.Int64Counter("juggie.synthesis.attempts",
			metric.WithDescription("Speech synthesis provider calls")); err == nil {
			c.attempts = counter
		}
		if counter, err := meter.Int64Counter("juggie.synthesis.failures",
			metric.WithDescription("Chunks that failed synthesis after all retries")); err == nil {
			c.failures = counter
		}
	}
}

func NewClient(synth Synthesizer, policy RetryPolicy, format string, opts ...Option) *Client {
	meter := noop.NewMeterProvider().Meter("tts")
	attempts, _ := meter.Int64Counter("juggie.synthesis.attempts")
	failures, _ := meter.Int64Counter("juggie.synthesis.failures")
	c := &Client{
		synth:    synth,
		policy:   policy,
		format:   format,
		logger:   slog.Default(),
		attempts: attempts,
		failures: failures,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Format is the audio encoding requested from the provider.
func (c *Client) Format() string { return c.format }

// Synthesize normalizes text and renders it with voice. The boolean is false when
// the segment could not be produced.
func (c *Client) Synthesize(ctx context.Context, input, voice string) ([]byte, bool) {
	if voice == "" {
		voice = c.voice
	}
	data, err := c.synthesize(ctx, input, voice)
	if err != nil {
		c.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("voice", voice)))
		c.logger.Warn("speech synthesis failed", slog.String("voice", voice), slogError(err))
		return nil, false
	}
	return data, true
}

func (c *Client) synthesize(ctx context.Context, input, voice string) ([]byte, error) {
	normalized := text.Normalize(input)
	if normalized == "" {
		return nil, ErrEmptyText
	}

	var key string
	if c.cache != nil {
		key = c.cache.Key(voice, c.format, normalized)
		if data, ok, err := c.cache.Get(ctx, key); err != nil {
			c.logger.Warn("segment cache read failed", slogError(err))
		} else if ok {
			return data, nil
		}
	}

	req := SynthRequest{SessionID: sessionID(ctx), Text: normalized, Voice: voice, Format: c.format}
	data, err := c.policy.Do(ctx, func(ctx context.Context) ([]byte, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		c.attempts.Add(ctx, 1)
		data, err := c.synth.Synthesize(ctx, req)
		if err == nil && len(data) == 0 {
			err = errors.New("synthesizer returned no audio")
		}
		return data, err
	}, func(attempt int, err error) {
		c.logger.Debug("synthesis attempt failed", slog.Int("attempt", attempt), slogError(err))
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, key, data); err != nil {
			c.logger.Warn("segment cache write failed", slogError(err))
		}
	}
	return data, nil
}

type sessionKey struct{}

// WithSessionID tags synthesis requests made with ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

func sessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
