// Package observability provides tracing for table operations.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/tablecore/pkg/metrics"
)

const instrumentationName = "github.com/ajitpratap0/tablecore"

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	ServiceName    string        `yaml:"service_name" mapstructure:"service_name"`
	ServiceVersion string        `yaml:"service_version" mapstructure:"service_version"`
	Environment    string        `yaml:"environment" mapstructure:"environment"`
	SamplingRate   float64       `yaml:"sampling_rate" mapstructure:"sampling_rate"`
	ExporterType   string        `yaml:"exporter" mapstructure:"exporter"` // "stdout"
	BatchTimeout   time.Duration `yaml:"batch_timeout" mapstructure:"batch_timeout"`
}

// Span is a tracing span that also records the operation's latency.
type Span struct {
	span       trace.Span
	timer      *metrics.Timer
	attributes []attribute.KeyValue
}

// StartSpan starts a span named after operation. The operation name is also
// the label under which the span's duration is recorded in
// metrics.OperationLatency.
func StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, operation)

	return ctx, &Span{
		span:  span,
		timer: metrics.NewTimer(operation),
	}
}

// SetAttribute adds an attribute to the span (batched until End)
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Finish sets the span status from err and ends the span.
func (s *Span) Finish(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.End()
}

// End ends the span and records its duration
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.timer.ObserveDuration()
	s.span.End()
}
