package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/bob-anderson-ok/kilonovagen/archive"
	"github.com/bob-anderson-ok/kilonovagen/config"
	"github.com/bob-anderson-ok/kilonovagen/harness"
	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
	"github.com/bob-anderson-ok/kilonovagen/manifest"
	"github.com/bob-anderson-ok/kilonovagen/params"
)

var (
	generateInput   string
	generateWorkers int
)

var generateCmd = &cobra.Command{
	Use:   "generate [parameter-file]",
	Short: "Generate partitioned light-curve archives from a binary parameter table",
	Long: `Loads the binary parameter table named by generation.input, splits it into one
partition per worker, and writes each partition to {output_base}_{index}.{format}.

The row count must be divisible by the worker count.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateInput, "input", "i", "", "Parameter table (overrides generation.input)")
	generateCmd.Flags().IntVarP(&generateWorkers, "workers", "w", 0, "Worker count (overrides generation.workers)")
}

func loadConfig(args []string) (config.Config, error) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	return config.Load(path)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	programStart := time.Now()

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if generateInput != "" {
		cfg.Generation.Input = generateInput
	}
	if generateWorkers != 0 {
		cfg.Generation.Workers = generateWorkers
	}
	if cfg.Generation.Input == "" {
		return kerrors.Configuration("no parameter table given: set generation.input, KNGEN_INPUT or --input")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	start := time.Now()
	cols, err := params.Load(cfg.Generation.Input, cfg.Generation.Dataset)
	if err != nil {
		return err
	}
	logger.Info("parameters loaded",
		zap.String("input", cfg.Generation.Input),
		zap.Int("rows", cols.Len()),
		zap.Duration("took", time.Since(start)))

	opts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithProgress(cmd.OutOrStdout()),
	}
	if cfg.Manifest != "" {
		m, err := manifest.Open(cfg.Manifest)
		if err != nil {
			return err
		}
		defer m.Close()
		opts = append(opts, harness.WithManifest(m))
	}
	if cfg.ObjectStore != nil {
		sink, err := archive.NewObjectStoreSink(ctx, *cfg.ObjectStore)
		if err != nil {
			return err
		}
		opts = append(opts, harness.WithSink(sink))
	}

	h, err := harness.New(cfg, opts...)
	if err != nil {
		return err
	}
	statuses, runErr := h.Generate(ctx, cols)
	if statuses == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	for _, st := range statuses {
		if st.OK() {
			fmt.Fprintf(out, "  %s: %d rows in %s\n", st.File, st.Rows, st.Elapsed.Round(time.Millisecond))
		} else {
			fmt.Fprintf(out, "  partition %d failed: %v\n", st.Index, st.Err)
		}
	}
	fmt.Fprintf(out, "Light curve generation complete (run %s) took %s\n", h.RunID(), time.Since(programStart))

	if runErr != nil {
		return kerrors.Wrapf(runErr, "%d of %d partitions failed", len(multierr.Errors(runErr)), len(statuses))
	}
	return nil
}

// commandContext returns the command's context, or Background when it has none.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
