package translate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/loqalabs/juggie/internal/catalog"
	"github.com/loqalabs/juggie/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGoogleTranslate(t *testing.T) {
	var target, q string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target = r.URL.Query().Get("tl")
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		q = r.PostForm.Get("q")
		fmt.Fprint(w, `[[["Hola. ","Hello. ",null,null,10],["Adios.","Bye.",null,null,10]],null,"en"]`)
	}))
	defer srv.Close()

	tr := NewGoogleTranslator(srv.URL, 0, srv.Client())
	out, err := tr.Translate(context.Background(), "Hello. Bye.", "auto", "es")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if out != "Hola. Adios." {
		t.Fatalf("unexpected translation %q", out)
	}
	if target != "es" || q != "Hello. Bye." {
		t.Fatalf("unexpected request tl=%q q=%q", target, q)
	}
}

func TestGoogleTranslateSplitsLongText(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = r.ParseForm()
		fmt.Fprintf(w, `[[[%q,"x"]]]`, strings.ToUpper(r.PostForm.Get("q")))
	}))
	defer srv.Close()

	tr := NewGoogleTranslator(srv.URL, 12, srv.Client())
	out, err := tr.Translate(context.Background(), "one two. three four. five.", "auto", "fr")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 requests, got %d", calls.Load())
	}
	if out != "ONE TWO. THREE FOUR. FIVE." {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestParseGTXRejectsGarbage(t *testing.T) {
	for _, body := range []string{`{}`, `[]`, `[null]`, `[[]]`} {
		if _, err := parseGTX([]byte(body)); err == nil {
			t.Fatalf("expected error for %s", body)
		}
	}
}

func TestOrOriginal(t *testing.T) {
	tamil, _ := catalog.LookupLanguage("Tamil")
	english, _ := catalog.LookupLanguage("English")
	upper := NewMockTranslator(func(text, target string) (string, error) {
		return target + ":" + text, nil
	})
	failing := NewMockTranslator(func(string, string) (string, error) {
		return "", errors.New("network down")
	})

	if out, ok := OrOriginal(context.Background(), upper, "hi", tamil, discardLogger()); !ok || out != "ta:hi" {
		t.Fatalf("expected translation, got %q %v", out, ok)
	}
	if out, ok := OrOriginal(context.Background(), upper, "hi", english, discardLogger()); ok || out != "hi" {
		t.Fatalf("expected english passthrough, got %q %v", out, ok)
	}
	if out, ok := OrOriginal(context.Background(), failing, "hi", tamil, discardLogger()); ok || out != "hi" {
		t.Fatalf("expected fail-open passthrough, got %q %v", out, ok)
	}
	if out, ok := OrOriginal(context.Background(), nil, "hi", tamil, nil); ok || out != "hi" {
		t.Fatalf("expected nil translator passthrough, got %q %v", out, ok)
	}
}

func TestNew(t *testing.T) {
	tr, err := New(config.TranslateConfig{Enabled: false, Mode: "google"})
	if err != nil || tr != nil {
		t.Fatalf("expected nil translator when disabled, got %v %v", tr, err)
	}
	if _, err := New(config.TranslateConfig{Enabled: true, Mode: "deepl"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if tr, err := New(config.TranslateConfig{Enabled: true, Mode: "mock"}); err != nil || tr == nil {
		t.Fatalf("expected mock translator, got %v %v", tr, err)
	}
}
