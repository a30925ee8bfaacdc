package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bob-anderson-ok/kilonovagen/archive"
)

var combineCmd = &cobra.Command{
	Use:   "combine <output> <partition-file>...",
	Short: "Concatenate partition archives into one file",
	Long: `Reads the partition files in the order given and writes their records to a single
archive. A .zst output name selects zstd compression.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		h, err := archive.Combine(args[0], args[1:])
		if err != nil {
			return err
		}
		logger.Info("partitions combined",
			zap.String("output", args[0]),
			zap.Int("inputs", len(args)-1),
			zap.Int("rows", h.Rows))
		fmt.Fprintf(cmd.OutOrStdout(), "Combined %d rows into %s, took %s\n", h.Rows, args[0], time.Since(start))
		return nil
	},
}
