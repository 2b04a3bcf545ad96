// Package cmd implements the command line interface for the application.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/whit3rabbit/jsmixer/internal/config"
	"github.com/whit3rabbit/jsmixer/internal/obfuscator"
)

var (
	cfgFile string         // Variable to hold the config file path from the flag
	cfg     *config.Config // Global variable to hold the loaded configuration
	logger  *zap.Logger

	// Flag variables mapped to config fields for override
	silentMode    bool  // -> cfg.Silent
	debugMode     bool  // -> cfg.DebugMode
	abortOnError  bool  // -> cfg.AbortOnError
	variableCount int   // -> cfg.Obfuscation.StringVariableCounts
	minifyOutput  bool  // -> cfg.Obfuscation.Minify.Enabled
	preprocessIn  bool  // -> cfg.Obfuscation.Preprocess.Enabled
	seed          int64 // -> cfg.Obfuscation.Seed
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "go-js-obfuscator",
	Short: "A CLI tool to hide the string literals of JavaScript code.",
	Long: `go-js-obfuscator rewrites every string literal of a JavaScript program
into lookups into shuffled character headers, so that no literal text
survives in the output, and minifies the result.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			loadedCfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			cfg = loadedCfg

			// Apply command-line flag overrides *after* loading config file
			applyFlagOverrides(cfg, cmd)
		}
		if logger == nil {
			l, err := newLogger(cfg.DebugMode)
			if err != nil {
				return fmt.Errorf("error creating logger: %w", err)
			}
			logger = l
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// newLogger builds the production logger on stderr. Debug lowers the level so
// that per-stage pipeline logs are shown.
func newLogger(debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{"stderr"}
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

// newContext creates the obfuscation context for the loaded configuration.
func newContext() (*obfuscator.ObfuscationContext, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	octx, err := obfuscator.NewObfuscationContext(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize obfuscation context: %w", err)
	}
	return octx, nil
}

// applyFlagOverrides applies command-line flag values to the config struct.
// Only overrides if the flag was explicitly set by the user via cmd.Flags().Changed().
func applyFlagOverrides(cfg *config.Config, cmd *cobra.Command) {
	if cmd.Flags().Changed("silent") {
		cfg.Silent = silentMode
	}
	if cmd.Flags().Changed("debug") {
		cfg.DebugMode = debugMode
	}
	if cmd.Flags().Changed("abort-on-error") {
		cfg.AbortOnError = abortOnError
	}
	if cmd.Flags().Changed("string-variable-counts") {
		cfg.Obfuscation.StringVariableCounts = variableCount
	}
	if cmd.Flags().Changed("minify") {
		cfg.Obfuscation.Minify.Enabled = minifyOutput
	}
	if cmd.Flags().Changed("preprocess") {
		cfg.Obfuscation.Preprocess.Enabled = preprocessIn
	}
	if cmd.Flags().Changed("seed") {
		cfg.Obfuscation.Seed = seed
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Interrupts cancel the command context, which stops a running pipeline
// between stages and ends a watch.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	rootCmd.PersistentFlags().BoolVarP(&silentMode, "silent", "s", false, "Suppress informational output (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Log every pipeline stage at debug level (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&abortOnError, "abort-on-error", true, "Stop processing on the first error (overrides config)")
	rootCmd.PersistentFlags().IntVarP(&variableCount, "string-variable-counts", "k", 3, "Number of character headers to inject (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&minifyOutput, "minify", true, "Enable/disable minification of the output (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&preprocessIn, "preprocess", true, "Enable/disable syntax lowering before parsing (overrides config)")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "Random seed for reproducible output, 0 for a random run (overrides config)")

	rootCmd.AddCommand(obfuscateCmd)
	rootCmd.AddCommand(whatisCmd)
}
