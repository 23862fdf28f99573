package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitDisabledIsNoop(t *testing.T) {
	require.NoError(t, Init(DefaultConfig()))
	require.NoError(t, Shutdown(context.Background()))
}

func TestInitRejectsUnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter = "jaeger"
	assert.Error(t, Init(cfg))
}

func TestSpanRecording(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	require.NoError(t, InitWithProcessor(rec))
	defer Shutdown(context.Background())

	_, span := StartSpan(context.Background(), "convert", attribute.String("source", "tabular"))
	span.SetAttribute("artifacts", 2)
	span.AddEvent("decoded")
	span.Finish(errors.New("boom"))

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "convert", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.Int("artifacts", 2))
	assert.Contains(t, ended[0].Attributes(), attribute.String("source", "tabular"))
	require.Len(t, ended[0].Events(), 2, "custom event plus recorded error")
}

func TestTracingMiddleware(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	require.NoError(t, InitWithProcessor(rec))
	defer Shutdown(context.Background())

	h := TracingMiddleware("nebula-convert")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("traceparent"))
	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, "GET /healthz", rec.Ended()[0].Name())
}
