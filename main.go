// Command kngen generates kilonova light-curve training data from neutron-star binary
// parameters and inspects conditioned samples drawn against the generated archive.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bob-anderson-ok/kilonovagen/config"
	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
)

const version = "1_0_0"

var (
	// Global flags
	verbose bool
	envFile string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:     "kngen",
	Short:   "Kilonova light-curve training data generator",
	Version: version,
	Long: `kngen turns neutron-star binary parameters (m1, m2, ln lambda1, ln lambda2) into
kilonova light curves and writes them as partitioned training archives.

Parameter files are json5 (or yaml). Values may be overridden with KNGEN_* environment
variables or a .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}

		zc := zap.NewProductionConfig()
		level := os.Getenv("KNGEN_LOG_LEVEL")
		if verbose {
			level = "debug"
		}
		if level != "" {
			lvl, err := zapcore.ParseLevel(level)
			if err != nil {
				return kerrors.Configuration("log level %q: %v", level, err)
			}
			zc.Level = zap.NewAtomicLevelAt(lvl)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading parameters")

	rootCmd.AddCommand(generateCmd, combineCmd, sampleCmd, curveCmd)
}

// exitCode maps error kinds to distinct process exit codes.
func exitCode(err error) int {
	switch kerrors.GetCode(err) {
	case kerrors.CodeDataFormat:
		return 2
	case kerrors.CodeConfiguration:
		return 3
	case kerrors.CodePhysicalModel:
		return 4
	case kerrors.CodeIO:
		return 5
	}
	return 1
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\n\t%v\n", err)
		os.Exit(exitCode(err))
	}
}
