package config

import (
	"slices"

	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/tablecore/pkg/compression"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/logger"
	"github.com/ajitpratap0/tablecore/pkg/observability"
	"github.com/ajitpratap0/tablecore/pkg/pool"
)

// Config is the configuration of the tablecore CLI and of tables created
// from it. It is organized into sections that map onto the packages they
// configure.
type Config struct {
	// Logging configures the global zap logger
	Logging logger.Config `yaml:"logging" mapstructure:"logging"`

	// Storage configures column storage
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Load controls how CSV input is read into tables
	Load LoadConfig `yaml:"load" mapstructure:"load"`

	// Export controls Arrow IPC output
	Export ExportConfig `yaml:"export" mapstructure:"export"`

	// Metrics configures Prometheus metrics output
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`

	// Tracing configures OpenTelemetry tracing
	Tracing observability.TracingConfig `yaml:"tracing" mapstructure:"tracing"`
}

// StorageConfig contains column storage settings.
type StorageConfig struct {
	// InternPoolSize bounds the text interning pool shared by a table's
	// text columns
	InternPoolSize int `yaml:"intern_pool_size" mapstructure:"intern_pool_size"`
}

// LoadConfig contains CSV loading settings.
type LoadConfig struct {
	// SkipInvalid drops rows with malformed cells instead of failing
	SkipInvalid bool `yaml:"skip_invalid" mapstructure:"skip_invalid"`
	// MaxErrors bounds the cell errors kept in a load report
	MaxErrors int `yaml:"max_errors" mapstructure:"max_errors"`
}

// ExportConfig contains columnar export settings.
type ExportConfig struct {
	// Format is arrow, parquet or avro
	Format string `yaml:"format" mapstructure:"format"`
	// BatchSize is the number of rows per record batch, row group or Avro block
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
	// Compression of record batch bodies (none, lz4, zstd), of parquet
	// column chunks (also snappy, gzip) or of avro blocks (none, snappy, gzip)
	Compression string `yaml:"compression" mapstructure:"compression"`
}

// exportCodecs lists the compression algorithms each export format accepts.
var exportCodecs = map[string][]compression.Algorithm{
	"arrow":   {compression.None, compression.LZ4, compression.Zstd},
	"parquet": {compression.None, compression.Snappy, compression.Gzip, compression.LZ4, compression.Zstd},
	"avro":    {compression.None, compression.Snappy, compression.Gzip},
}

// MetricsConfig contains metrics settings.
type MetricsConfig struct {
	// Enabled writes the gathered metrics after each command
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Path receives the metrics in the Prometheus text format; empty means
	// standard error
	Path string `yaml:"path" mapstructure:"path"`
}

// Default returns a configuration with production defaults.
func Default() *Config {
	return &Config{
		Logging: logger.Config{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stderr"},
		},
		Storage: StorageConfig{
			InternPoolSize: pool.DefaultInternSize,
		},
		Load: LoadConfig{
			SkipInvalid: false,
			MaxErrors:   100,
		},
		Export: ExportConfig{
			Format:      "arrow",
			BatchSize:   10000,
			Compression: string(compression.None),
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		Tracing: observability.DefaultTracingConfig(),
	}
}

// Validate checks that every setting is within its accepted range.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "logging.level")
	}
	switch c.Logging.Encoding {
	case "json", "console":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "logging.encoding must be json or console, got %q", c.Logging.Encoding)
	}
	if c.Storage.InternPoolSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "storage.intern_pool_size must be positive")
	}
	if c.Load.MaxErrors < 0 {
		return errors.New(errors.ErrorTypeConfig, "load.max_errors cannot be negative")
	}
	if c.Export.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "export.batch_size must be positive")
	}
	codecs, ok := exportCodecs[c.Export.Format]
	if !ok {
		return errors.Newf(errors.ErrorTypeConfig, "export.format must be arrow, parquet or avro, got %q", c.Export.Format)
	}
	alg, err := compression.ParseAlgorithm(c.Export.Compression)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "export.compression")
	}
	if !slices.Contains(codecs, alg) {
		return errors.Newf(errors.ErrorTypeConfig, "%s exports cannot use %s compression", c.Export.Format, alg)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return errors.Newf(errors.ErrorTypeConfig, "tracing.sampling_rate must be within [0, 1], got %g", c.Tracing.SamplingRate)
	}
	if c.Tracing.Enabled && c.Tracing.ExporterType != "stdout" {
		return errors.Newf(errors.ErrorTypeConfig, "tracing.exporter %q is not supported", c.Tracing.ExporterType)
	}
	return nil
}
