package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installInMemory(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	require.NoError(t, install(cfg, sdktrace.WithSyncer(exporter)))
	t.Cleanup(func() { _ = Shutdown(context.Background()) })
	return exporter
}

func TestStartSpanRecordsAttributes(t *testing.T) {
	exporter := installInMemory(t)

	_, span := StartSpan(context.Background(), "load_csv")
	span.SetAttribute("rows", 42)
	span.SetAttribute("table", "sales")
	span.Finish(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "load_csv", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "42", attrs["rows"])
	assert.Equal(t, "sales", attrs["table"])
}

func TestFinishWithError(t *testing.T) {
	exporter := installInMemory(t)

	_, span := StartSpan(context.Background(), "write_csv")
	span.Finish(errors.New("disk full"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "disk full", spans[0].Status.Description)
}

func TestInitTracing(t *testing.T) {
	var buf bytes.Buffer

	// Disabled tracing is a no-op.
	require.NoError(t, InitTracing(DefaultTracingConfig(), &buf))

	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.ExporterType = "zipkin"
	require.Error(t, InitTracing(cfg, &buf))

	cfg.ExporterType = "stdout"
	require.NoError(t, InitTracing(cfg, &buf))
	_, span := StartSpan(context.Background(), "export_arrow")
	span.End()
	require.NoError(t, Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "export_arrow")
}
