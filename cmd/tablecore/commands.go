package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/tablecore/pkg/codec"
	"github.com/ajitpratap0/tablecore/pkg/columnar"
	"github.com/ajitpratap0/tablecore/pkg/compression"
	"github.com/ajitpratap0/tablecore/pkg/config"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/formats/arrowipc"
	"github.com/ajitpratap0/tablecore/pkg/formats/avro"
	"github.com/ajitpratap0/tablecore/pkg/formats/parquet"
	"github.com/ajitpratap0/tablecore/pkg/logger"
	"github.com/ajitpratap0/tablecore/pkg/pool"
	"github.com/ajitpratap0/tablecore/pkg/schema"
)

// tableFlags select how a CSV file becomes a table.
type tableFlags struct {
	schemaPath  string
	name        string
	infer       bool
	sample      int
	skipInvalid bool
	maxErrors   int
}

func (f *tableFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.schemaPath, "schema", "s", "", "Path to a YAML table spec")
	cmd.Flags().StringVar(&f.name, "name", "", "Table name (defaults to the spec name or the file name)")
	cmd.Flags().BoolVar(&f.infer, "infer", false, "Infer the schema from the CSV file instead of reading a spec")
	cmd.Flags().IntVar(&f.sample, "sample", 1000, "Rows sampled when inferring the schema")
	cmd.Flags().BoolVar(&f.skipInvalid, "skip-invalid", false, "Drop rows with malformed cells instead of failing")
	cmd.Flags().IntVar(&f.maxErrors, "max-errors", 0, "Cell errors kept in the report (defaults to load.max_errors)")
	cmd.MarkFlagsMutuallyExclusive("schema", "infer")
}

type fileReadCloser struct {
	io.ReadCloser
	file *os.File
}

func (r fileReadCloser) Close() error {
	err := r.ReadCloser.Close()
	if ferr := r.file.Close(); err == nil {
		err = ferr
	}
	return err
}

// openInput opens path, decompressing it when its extension names a codec.
func openInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is chosen by the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot open input").WithDetail("path", path)
	}
	r, err := compression.NewReader(f, compression.FromPath(path))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return fileReadCloser{ReadCloser: r, file: f}, nil
}

type fileWriteCloser struct {
	io.WriteCloser
	file *os.File
}

func (w fileWriteCloser) Close() error {
	err := w.WriteCloser.Close()
	if ferr := w.file.Close(); err == nil {
		err = ferr
	}
	return err
}

// createOutput creates path, compressing it when its extension names a codec.
func createOutput(path string) (io.WriteCloser, error) {
	f, err := os.Create(path) //nolint:gosec // G304: path is chosen by the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot create output").WithDetail("path", path)
	}
	w, err := compression.NewWriter(f, compression.FromPath(path), compression.Default)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return fileWriteCloser{WriteCloser: w, file: f}, nil
}

// tableName strips the directory and every extension from path.
func tableName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

func (a *app) newTable(name string, sc columnar.Schema) (*columnar.Table, error) {
	return columnar.NewTable(name, sc,
		columnar.WithInterner(pool.NewInterner[string]("text", a.cfg.Storage.InternPoolSize)),
		columnar.WithLogger(logger.Get()))
}

// resolveSchema reads the table spec or infers the schema of csvPath.
func (a *app) resolveSchema(ctx context.Context, csvPath string, f *tableFlags) (string, columnar.Schema, error) {
	name := f.name
	switch {
	case f.schemaPath != "":
		spec, err := schema.LoadTableSpec(f.schemaPath)
		if err != nil {
			return "", columnar.Schema{}, err
		}
		sc, err := spec.Schema(schema.NewRegistry(logger.Get()))
		if err != nil {
			return "", columnar.Schema{}, err
		}
		if name == "" {
			name = spec.Name
		}
		if name == "" {
			name = tableName(csvPath)
		}
		return name, sc, nil
	case f.infer:
		in, err := openInput(csvPath)
		if err != nil {
			return "", columnar.Schema{}, err
		}
		defer in.Close()
		sc, _, err := schema.NewInferenceEngine(logger.Get(), f.sample).InferCSV(ctx, in)
		if err != nil {
			return "", columnar.Schema{}, err
		}
		if name == "" {
			name = tableName(csvPath)
		}
		return name, sc, nil
	}
	return "", columnar.Schema{}, errors.New(errors.ErrorTypeValidation, "either --schema or --infer is required")
}

// loadTable builds the table selected by f and loads csvPath into it.
func (a *app) loadTable(ctx context.Context, csvPath string, f *tableFlags) (*columnar.Table, columnar.LoadReport, error) {
	name, sc, err := a.resolveSchema(ctx, csvPath, f)
	if err != nil {
		return nil, columnar.LoadReport{}, err
	}
	table, err := a.newTable(name, sc)
	if err != nil {
		return nil, columnar.LoadReport{}, err
	}

	in, err := openInput(csvPath)
	if err != nil {
		return nil, columnar.LoadReport{}, err
	}
	defer in.Close()

	opts := columnar.LoadOptions{
		SkipInvalid: f.skipInvalid || a.cfg.Load.SkipInvalid,
		MaxErrors:   a.cfg.Load.MaxErrors,
	}
	if f.maxErrors > 0 {
		opts.MaxErrors = f.maxErrors
	}
	report, err := table.LoadCSV(ctx, in, opts)
	return table, report, err
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "cannot encode output")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

type internSummary struct {
	Size      int64 `json:"size"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

type loadSummary struct {
	Table           string   `json:"table"`
	Columns         []string `json:"columns"`
	TotalRows       int      `json:"total_rows"`
	MemoryBytes     int64    `json:"memory_bytes"`
	MemoryPerRecord float64  `json:"memory_per_record"`
	columnar.LoadReport
	Intern internSummary `json:"intern"`
}

func summarize(table *columnar.Table, report columnar.LoadReport) loadSummary {
	var in internSummary
	in.Size, in.Hits, in.Misses, in.Evictions = table.InternStats()
	return loadSummary{
		Table:           table.Name(),
		Columns:         table.ColumnNames(),
		TotalRows:       table.RowCount(),
		MemoryBytes:     table.MemoryUsage(),
		MemoryPerRecord: table.MemoryPerRecord(),
		LoadReport:      report,
		Intern:          in,
	}
}

func newLoadCmd(a *app) *cobra.Command {
	var (
		f   tableFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "load <csv>",
		Short: "Load a CSV file into a table and report on it",
		Long: `Load a CSV file into a typed table and print a JSON report with the
loaded and skipped rows, cell errors and memory usage.

Example:
  tablecore load sales.csv --schema sales.yaml --skip-invalid
  tablecore load sales.csv.zst --infer --out clean.csv.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, report, err := a.loadTable(cmd.Context(), args[0], &f)
			if err != nil {
				return err
			}
			if out != "" {
				w, err := createOutput(out)
				if err != nil {
					return err
				}
				if err := table.WriteCSV(cmd.Context(), w); err != nil {
					_ = w.Close()
					return err
				}
				if err := w.Close(); err != nil {
					return errors.Wrap(err, errors.ErrorTypeFile, "cannot finish output").WithDetail("path", out)
				}
			}
			return writeJSON(cmd.OutOrStdout(), summarize(table, report))
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the loaded rows back as CSV to this path")
	return cmd
}

// exportSummary is the JSON report of the export command. Batches counts
// Arrow record batches, Parquet row groups or Avro blocks.
type exportSummary struct {
	Table   string `json:"table"`
	Path    string `json:"path"`
	Format  string `json:"format"`
	Rows    int    `json:"rows"`
	Batches int    `json:"batches"`
	Skipped int    `json:"skipped"`
}

// exportFormat picks the output format: the flag, then the .parquet or
// .avro extension, then the configured default.
func exportFormat(flag, path, configured string) (string, error) {
	lower := strings.ToLower(path)
	switch {
	case flag != "":
	case strings.HasSuffix(lower, ".parquet"):
		flag = "parquet"
	case strings.HasSuffix(lower, ".avro"):
		flag = "avro"
	default:
		flag = configured
	}
	switch flag {
	case "arrow", "parquet", "avro":
		return flag, nil
	}
	return "", errors.Newf(errors.ErrorTypeValidation, "unknown export format %q, want arrow, parquet or avro", flag)
}

func newExportCmd(a *app) *cobra.Command {
	var (
		f         tableFlags
		out       string
		format    string
		codecName string
		batchSize int
	)
	cmd := &cobra.Command{
		Use:   "export <csv>",
		Short: "Load a CSV file and write it as an Arrow IPC, Parquet or Avro file",
		Example: `  tablecore export sales.csv --schema sales.yaml --out sales.arrow
  tablecore export sales.csv --infer --out sales.arrow --compression zstd
  tablecore export sales.csv --infer --out sales.parquet --compression snappy
  tablecore export sales.csv --infer --out sales.avro --compression gzip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := exportFormat(format, out, a.cfg.Export.Format)
			if err != nil {
				return err
			}
			if batchSize <= 0 {
				batchSize = a.cfg.Export.BatchSize
			}
			if codecName == "" {
				codecName = a.cfg.Export.Compression
			}
			alg, err := compression.ParseAlgorithm(codecName)
			if err != nil {
				return err
			}

			table, report, err := a.loadTable(cmd.Context(), args[0], &f)
			if err != nil {
				return err
			}

			w, err := createOutput(out)
			if err != nil {
				return err
			}
			summary := exportSummary{Table: table.Name(), Path: out, Format: kind, Skipped: report.Skipped}
			switch kind {
			case "parquet":
				var stats parquet.Stats
				stats, err = parquet.Write(cmd.Context(), w, table,
					parquet.WriterConfig{RowGroupSize: batchSize, Compression: alg})
				summary.Rows, summary.Batches = stats.Rows, stats.RowGroups
			case "avro":
				var stats avro.Stats
				stats, err = avro.Write(cmd.Context(), w, table,
					avro.WriterConfig{BatchSize: batchSize, Compression: alg})
				summary.Rows, summary.Batches = stats.Rows, stats.Blocks
			default:
				var stats arrowipc.Stats
				stats, err = arrowipc.Write(cmd.Context(), w, table,
					arrowipc.WriterConfig{BatchSize: batchSize, Compression: alg})
				summary.Rows, summary.Batches = stats.Rows, stats.Batches
			}
			if err != nil {
				_ = w.Close()
				return err
			}
			if err := w.Close(); err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "cannot finish output").WithDetail("path", out)
			}

			logger.Info("table exported",
				zap.String("table", table.Name()),
				zap.String("path", out),
				zap.String("format", kind),
				zap.Int("rows", summary.Rows),
				zap.Int("skipped", report.Skipped))
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "File to write")
	cmd.Flags().StringVar(&format, "format", "", "arrow, parquet or avro (defaults to the .parquet or .avro extension, then export.format)")
	cmd.Flags().StringVar(&codecName, "compression", "", "Compression: none, lz4 or zstd; parquet also takes snappy and gzip; avro takes none, snappy and gzip (defaults to export.compression)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Rows per record batch, row group or Avro block (defaults to export.batch_size)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newParseCmd() *cobra.Command {
	var typeYAML, typesPath string
	cmd := &cobra.Command{
		Use:   "parse <literal>...",
		Short: "Parse literals of a type and print them in canonical form",
		Example: `  tablecore parse --type '{kind: number, min_decimal_places: 2}' 4.5
  tablecore parse --types registry.yaml --type '{ref: Status}' 'Shipped(2024-01-02)'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := schema.NewRegistry(logger.Get())
			if typesPath != "" {
				data, err := os.ReadFile(typesPath) //nolint:gosec // G304: path is chosen by the operator
				if err != nil {
					return errors.Wrap(err, errors.ErrorTypeFile, "cannot read types").WithDetail("path", typesPath)
				}
				if err := reg.Import(data); err != nil {
					return err
				}
			}

			var spec schema.TypeSpec
			if err := yaml.Unmarshal([]byte(typeYAML), &spec); err != nil {
				return errors.Wrap(err, errors.ErrorTypeValidation, "invalid --type")
			}
			t, err := spec.Build(reg)
			if err != nil {
				return err
			}

			for _, literal := range args {
				v, err := codec.Parse(literal, t)
				if err != nil {
					return err
				}
				text, err := codec.Print(v, t)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeYAML, "type", "t", "", "Type spec as inline YAML")
	cmd.Flags().StringVar(&typesPath, "types", "", "YAML list of named tagged types the type may reference")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newSchemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Infer and check table specs",
	}

	var name string
	var sample int
	infer := &cobra.Command{
		Use:   "infer <csv>",
		Short: "Infer a table spec from a CSV file and print it as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			sc, _, err := schema.NewInferenceEngine(logger.Get(), sample).InferCSV(cmd.Context(), in)
			if err != nil {
				return err
			}
			if name == "" {
				name = tableName(args[0])
			}
			spec, err := schema.SpecOfSchema(name, sc)
			if err != nil {
				return err
			}
			data, err := spec.Marshal()
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeInternal, "cannot encode table spec")
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	infer.Flags().StringVar(&name, "name", "", "Table name (defaults to the file name)")
	infer.Flags().IntVar(&sample, "sample", 1000, "Rows sampled per column")

	check := &cobra.Command{
		Use:   "check <spec.yaml>",
		Short: "Validate a table spec and print its column types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := schema.LoadTableSpec(args[0])
			if err != nil {
				return err
			}
			sc, err := spec.Schema(schema.NewRegistry(logger.Get()))
			if err != nil {
				return err
			}
			for _, f := range sc.Fields {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", f.Name, f.Type)
			}
			return nil
		},
	}

	cmd.AddCommand(infer, check)
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Newf(errors.ErrorTypeConfig, "%s already exists, use --force to overwrite", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeInternal, "cannot encode configuration")
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd, show)
	return cmd
}
