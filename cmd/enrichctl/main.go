package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// logger is built in PersistentPreRunE
	logger  *zap.Logger
	verbose bool
)

// newRootCmd assembles the command tree
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "enrichctl",
		Short: "Inspect and exercise the food enrichment pipeline",
		Long: `enrichctl runs the enrichment pipeline from the command line.

Available subcommands:
  lookup    - Resolve a food query through the provider router
  serving   - Parse a serving-size label into grams
  normalize - Normalize a nutriment document to one serving
  token     - Mint a bearer token for the API`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			if verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = config.Build()
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

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newLookupCmd(),
		newServingCmd(),
		newNormalizeCmd(),
		newTokenCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
