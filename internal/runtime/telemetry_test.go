package runtime

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/loqalabs/juggie/internal/config"
)

func TestSpanExporterSelection(t *testing.T) {
	exp, name, err := spanExporter(context.Background(), config.TelemetryConfig{})
	if err != nil || exp != nil || name != "none" {
		t.Fatalf("expected no exporter, got %v %q %v", exp, name, err)
	}
	exp, name, err = spanExporter(context.Background(), config.TelemetryConfig{TraceStdout: true})
	if err != nil || exp == nil || name != "stdout" {
		t.Fatalf("expected stdout exporter, got %v %q %v", exp, name, err)
	}
	_ = exp.Shutdown(context.Background())
}

func TestSetupTelemetryServesMetrics(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.OTLPEndpoint = ""
	cfg.Telemetry.TraceStdout = false
	for i := 0; i < 2; i++ {
		shutdown, handler, err := setupTelemetry(context.Background(), cfg, discardLogger())
		if err != nil {
			t.Fatalf("setup %d: %v", i, err)
		}
		if handler == nil {
			t.Fatalf("setup %d: expected metrics handler", i)
		}
		counter, err := otel.Meter("telemetry-test").Int64Counter("juggie.sessions")
		if err != nil {
			t.Fatal(err)
		}
		counter.Add(context.Background(), 1)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		body, _ := io.ReadAll(rec.Body)
		if rec.Code != http.StatusOK || !strings.Contains(string(body), "juggie_sessions") {
			t.Fatalf("setup %d: expected juggie_sessions in metrics, got %d %s", i, rec.Code, body)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown %d: %v", i, err)
		}
	}
}
