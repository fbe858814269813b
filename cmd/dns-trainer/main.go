// Command dns-trainer streams a line-delimited domain dataset through
// the entropy windows and the HMM in learn mode and writes the trained
// model artifact.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ArturB/dns-gini-classifier/pkg/config"
	"github.com/ArturB/dns-gini-classifier/pkg/metrics"
	"github.com/ArturB/dns-gini-classifier/pkg/reporting"
	"github.com/ArturB/dns-gini-classifier/pkg/trainer"
)

var errMissingArg = errors.New("missing required argument")

var (
	configPath string
	dataPath   string
	maxLines   int
	outputPath string
	graphsDir  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "dns-trainer",
	Short:         "Train a DNS tunneling/DGA classifier model from a domain dataset",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "config YAML path (required)")
	rootCmd.Flags().StringVarP(&dataPath, "file", "f", "", "dataset path (required; the config has no dataset setting)")
	rootCmd.Flags().IntVarP(&maxLines, "max-lines", "n", 0, "maximum lines to process (0 = unbounded)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "model.bin", "output model path")
	rootCmd.Flags().StringVarP(&graphsDir, "graphs", "g", "", "write per-window entropy distribution graphs with this prefix")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dns-trainer:", err)
		if errors.Is(err, errMissingArg) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if configPath == "" {
		return fmt.Errorf("%w: -c <yaml> is required", errMissingArg)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logLevel := reporting.LogLevelInfo
	if verbose {
		logLevel = reporting.LogLevelDebug
	}
	log := reporting.NewLogger(reporting.LoggerConfig{
		Level:     logLevel,
		Format:    reporting.LogFormatText,
		Output:    os.Stdout,
		Verbosity: reporting.Verbosity(cfg.Verbosity),
	})

	if cfg.Metrics.Enabled {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		metrics.Enable(ctx, cfg.Metrics.Addr)
	}

	datasetPath := dataPath
	if datasetPath == "" {
		return fmt.Errorf("%w: -f <data> is required", errMissingArg)
	}

	f, err := os.Open(datasetPath)
	if err != nil {
		return fmt.Errorf("dns-trainer: open dataset: %w", err)
	}
	defer f.Close()

	tr, err := trainer.New(cfg, log)
	if err != nil {
		return fmt.Errorf("dns-trainer: %w", err)
	}

	artifact, err := tr.Run(context.Background(), f, maxLines)
	if err != nil {
		return fmt.Errorf("dns-trainer: %w", err)
	}

	if err := artifact.Save(outputPath); err != nil {
		return fmt.Errorf("dns-trainer: save model: %w", err)
	}
	log.Info("model saved", "path", outputPath)

	if graphsDir != "" {
		if err := artifact.SaveGraphs(graphsDir, ".csv"); err != nil {
			return fmt.Errorf("dns-trainer: save graphs: %w", err)
		}
		log.Info("graphs written", "prefix", graphsDir)
	}

	return nil
}
