package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tablecore/pkg/config"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	"github.com/ajitpratap0/tablecore/pkg/logger"
	"github.com/ajitpratap0/tablecore/pkg/observability"
)

var version = "0.1.0"

// app holds what the root command sets up for its subcommands.
type app struct {
	configPath string
	envFile    string
	cfg        *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(report(os.Stderr, err))
	}
}

// report prints err for the user and returns the exit code. Internal
// failures are also logged with their details.
func report(w io.Writer, err error) int {
	code := exitCode(err)
	if code == 3 {
		logger.Error("command failed", zap.Error(err))
		_ = logger.Sync()
	}
	fmt.Fprintln(w, err)
	return code
}

// exitCode separates bad input (1) from configuration problems (2) and
// internal failures (3).
func exitCode(err error) int {
	switch {
	case errors.IsInternal(err):
		return 3
	case errors.IsType(err, errors.ErrorTypeConfig):
		return 2
	default:
		return 1
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tablecore",
		Short: "Typed columnar tables and their text literals",
		Long: `tablecore loads delimited text into typed columnar tables, parses and
prints typed literals, infers table schemas and exports tables to Arrow, Parquet and Avro.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Environment file loaded before the configuration, if present")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tablecore v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(
		newParseCmd(),
		newLoadCmd(a),
		newExportCmd(a),
		newSchemaCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, errors.ErrorTypeConfig, "cannot read env file").WithDetail("path", a.envFile)
		}
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.Init(cfg.Logging); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "cannot initialize logger")
	}
	if err := observability.InitTracing(cfg.Tracing, cmd.ErrOrStderr()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "cannot initialize tracing")
	}

	logger.Debug("configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("config", a.configPath))
	return nil
}

func (a *app) teardown(cmd *cobra.Command) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := observability.Shutdown(ctx); err != nil {
		logger.Warn("tracing shutdown failed", zap.Error(err))
	}
	_ = logger.Sync()

	if a.cfg == nil || !a.cfg.Metrics.Enabled {
		return nil
	}
	if a.cfg.Metrics.Path == "" {
		return writeMetrics(cmd.ErrOrStderr(), prometheus.DefaultGatherer)
	}
	f, err := os.Create(a.cfg.Metrics.Path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "cannot create metrics file").WithDetail("path", a.cfg.Metrics.Path)
	}
	defer f.Close()
	return writeMetrics(f, prometheus.DefaultGatherer)
}

// writeMetrics writes every gathered metric family in the Prometheus text
// format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "cannot gather metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "cannot write metrics")
		}
	}
	return nil
}
