// Package metrics exposes Prometheus metrics for the column store and the
// text codec.
//
// # Basic Usage
//
//	metrics.ValuesAppended.WithLabelValues("number").Inc()
//
//	timer := metrics.NewTimer("load_csv")
//	loadRows()
//	metrics.OperationLatency.WithLabelValues("load_csv").Observe(timer.Stop().Seconds())
//
// All collectors are registered with the default registry on package
// initialization and are safe for concurrent use.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ValuesAppended counts values appended to columns.
	// Labels: kind (number, text, boolean, temporal, tagged, record, array)
	ValuesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablecore_values_appended_total",
			Help: "Total number of values appended to columns",
		},
		[]string{"kind"},
	)

	// WidthPromotions counts numeric column promotions by target width.
	// Labels: to (short, int, long)
	WidthPromotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablecore_numeric_width_promotions_total",
			Help: "Numeric column promotions to a wider integer width",
		},
		[]string{"to"},
	)

	// BigNumberFallbacks counts numeric rows stored in a side table.
	// Labels: kind (bigint, decimal)
	BigNumberFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablecore_numeric_side_table_rows_total",
			Help: "Numeric rows stored as arbitrary-precision values",
		},
		[]string{"kind"},
	)

	// ParseErrors counts user-data errors raised by the codec and by raw reads.
	// Labels: shape (the type shape being read)
	ParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablecore_parse_errors_total",
			Help: "Values that could not be read as their expected type",
		},
		[]string{"shape"},
	)

	// InternLookups counts lookups in bounded interning pools.
	// Labels: pool (text, temporal), result (hit, miss, evict)
	InternLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablecore_intern_lookups_total",
			Help: "Lookups in value interning pools",
		},
		[]string{"pool", "result"},
	)

	// RowsLoaded counts CSV rows read into tables.
	// Labels: result (loaded, skipped)
	RowsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablecore_rows_loaded_total",
			Help: "CSV rows read into tables",
		},
		[]string{"result"},
	)

	// ExportBatches counts Arrow record batches and Avro blocks written.
	ExportBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tablecore_export_batches_total",
			Help: "Arrow record batches and Avro blocks written by exports",
		},
	)

	// OperationLatency tracks the duration of bulk operations in seconds.
	// Labels: operation (load_csv, write_csv, export_arrow)
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablecore_operation_duration_seconds",
			Help:    "Duration of bulk table operations",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		},
		[]string{"operation"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the name the timer was created with.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It may be called repeatedly.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time of t in OperationLatency under its name.
func (t *Timer) ObserveDuration() time.Duration {
	d := t.Stop()
	OperationLatency.WithLabelValues(t.name).Observe(d.Seconds())
	return d
}
