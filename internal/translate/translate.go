// Package translate converts generated answers into the requested output
// language. Translation is best effort: callers fall back to the original text.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/loqalabs/juggie/internal/catalog"
	"github.com/loqalabs/juggie/internal/config"
)

// Translator converts text between languages. Source "auto" asks the backend to detect it.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// New builds the translator selected by cfg.Mode. A disabled config yields nil.
func New(cfg config.TranslateConfig) (Translator, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Mode {
	case "google":
		client := &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond}
		return NewGoogleTranslator(cfg.Endpoint, cfg.MaxChars, client), nil
	case "mock":
		return NewMockTranslator(nil), nil
	default:
		return nil, fmt.Errorf("unsupported translate mode %q", cfg.Mode)
	}
}

// OrOriginal translates text into lang and reports whether a translation was applied.
// Languages without a translation code, a nil translator and any backend failure
// all return the input unchanged.
func OrOriginal(ctx context.Context, tr Translator, text string, lang catalog.Language, logger *slog.Logger) (string, bool) {
	code, ok := lang.TranslationCode()
	if !ok || tr == nil {
		return text, false
	}
	translated, err := tr.Translate(ctx, text, "auto", code)
	if err != nil {
		if logger != nil {
			logger.Warn("translation failed, using original text",
				slog.String("target", code),
				slog.String("error", err.Error()),
			)
		}
		return text, false
	}
	if translated == "" {
		return text, false
	}
	return translated, true
}
