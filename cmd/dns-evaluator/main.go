// Command dns-evaluator streams domain names through the decision
// pipeline and writes a CSV score report, or classifies a dataset
// against an already-trained model.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ArturB/dns-gini-classifier/pkg/classifier"
	"github.com/ArturB/dns-gini-classifier/pkg/config"
	"github.com/ArturB/dns-gini-classifier/pkg/evaluator"
	"github.com/ArturB/dns-gini-classifier/pkg/metrics"
	"github.com/ArturB/dns-gini-classifier/pkg/model"
	"github.com/ArturB/dns-gini-classifier/pkg/reporting"
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
	Use:           "dns-evaluator",
	Short:         "Evaluate a DNS tunneling/DGA dataset against a trained classifier model",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "config YAML path (required)")
	rootCmd.Flags().StringVarP(&dataPath, "file", "f", "", "dataset path (required; the config has no dataset setting)")
	rootCmd.Flags().IntVarP(&maxLines, "max-lines", "n", 0, "maximum lines to process (0 = unbounded)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output CSV path (default: stdout)")
	rootCmd.Flags().StringVarP(&graphsDir, "graphs", "g", "", "write per-window entropy distribution graphs for the loaded model, with this prefix")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dns-evaluator:", err)
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
		Output:    os.Stderr,
		Verbosity: reporting.Verbosity(cfg.Verbosity),
	})

	if cfg.Metrics.Enabled {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		metrics.Enable(ctx, cfg.Metrics.Addr)
	}

	artifact, err := model.Load(cfg.Model.Filename)
	if err != nil {
		return fmt.Errorf("dns-evaluator: load model: %w", err)
	}

	if graphsDir != "" {
		if err := artifact.SaveGraphs(graphsDir, ".csv"); err != nil {
			return fmt.Errorf("dns-evaluator: save graphs: %w", err)
		}
		log.Info("graphs written", "prefix", graphsDir)
	}

	c, err := classifier.New(cfg, artifact)
	if err != nil {
		return fmt.Errorf("dns-evaluator: %w", err)
	}

	datasetPath := dataPath
	if datasetPath == "" {
		return fmt.Errorf("%w: -f <data> is required", errMissingArg)
	}
	in, err := os.Open(datasetPath)
	if err != nil {
		return fmt.Errorf("dns-evaluator: open dataset: %w", err)
	}
	defer in.Close()

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("dns-evaluator: create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	ev := evaluator.New(cfg, c, log)
	if err := ev.Run(in, out, maxLines); err != nil {
		return fmt.Errorf("dns-evaluator: %w", err)
	}
	return nil
}
