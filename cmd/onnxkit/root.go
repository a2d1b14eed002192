package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/born-ml/onnxkit/internal/config"
	"github.com/born-ml/onnxkit/internal/engine"
	"github.com/born-ml/onnxkit/internal/logging"
	"github.com/born-ml/onnxkit/internal/metrics"
)

// app holds what every command needs. It is filled in by setup before a command runs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	engine   *engine.Engine
}

var state app

var rootCmd = &cobra.Command{
	Use:   "onnxkit",
	Short: "onnxkit composes ONNX models and migrates them between opset versions",
	Long: `onnxkit validates ONNX models, merges two models into one pipeline, converts models
between operator set versions and describes their input/output contract. It can also serve
these operations over HTTP.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().String("metrics-textfile", "", "Write metrics to this file on exit (overrides config)")
}

// setup loads the configuration, then applies flag overrides on top of it.
func setup(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if textfile, _ := cmd.Flags().GetString("metrics-textfile"); textfile != "" {
		cfg.Metrics.Textfile = textfile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logger := logging.New(level, cfg.Log.Format)
	registry := prometheus.NewRegistry()

	state = app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		engine: engine.New(
			engine.WithLogger(logger),
			engine.WithMetrics(metrics.New(registry)),
			engine.WithCustomDomains(cfg.Checker.AllowCustomDomains),
		),
	}
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if state.cfg == nil || state.cfg.Metrics.Textfile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(state.cfg.Metrics.Textfile, state.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// readModel reads the raw bytes of the model at path.
func readModel(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return data, nil
}

func writeModel(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}
