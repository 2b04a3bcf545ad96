package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/whit3rabbit/jsmixer/internal/config"
	"github.com/whit3rabbit/jsmixer/internal/obfuscator"
)

var (
	outputDir  string // Flag variable for output directory
	cleanMode  bool   // Flag variable for cleaning target directory
	watchMode  bool
	numWorkers int
)

// dirCmd represents the obfuscate dir command
var dirCmd = &cobra.Command{
	Use:   "dir <source_directory>",
	Short: "Obfuscate JavaScript code in a directory recursively",
	Long: `Recursively scans the source directory for JavaScript files (based on
configured extensions), obfuscates them, and writes the results to the target
directory, preserving the original structure. Other files are copied, files
matching the skip patterns are left out and files matching the keep patterns
are copied unchanged.

With --watch the command keeps running after the first pass and re-processes
files as they change, until interrupted.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if outputDir == "" {
			return fmt.Errorf("output directory (-o, --output) is required for directory obfuscation")
		}
		sourceDir := args[0]
		info, err := os.Stat(sourceDir)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("source directory '%s' not found", sourceDir)
			}
			return fmt.Errorf("error checking source directory '%s': %w", sourceDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("source path '%s' is not a directory", sourceDir)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		sourceDir := args[0]
		cfg.SourceDirectory = sourceDir
		cfg.TargetDirectory = outputDir
		if cmd.Flags().Changed("workers") {
			cfg.Workers = numWorkers
		}

		octx, err := newContext()
		if err != nil {
			return err
		}

		if !cfg.Silent {
			config.PrintInfo("--- Directory Obfuscation ---\n")
			config.PrintInfo("Source Directory: %s\n", cfg.SourceDirectory)
			config.PrintInfo("Target Directory: %s\n", cfg.TargetDirectory)
			config.PrintInfo("Clean Mode: %t\n", cleanMode)
			config.PrintInfo("---------------------------\n")
		}

		if cleanMode {
			if !cfg.Silent {
				config.PrintInfo("Info: Cleaning target directory: %s\n", cfg.TargetDirectory)
			}
			if err := obfuscator.CleanTarget(cfg.TargetDirectory); err != nil {
				return err
			}
		}

		result, err := octx.ProcessDirectory(cmd.Context(), cfg.SourceDirectory, cfg.TargetDirectory)
		if result != nil && !cfg.Silent {
			config.PrintInfo("\n--- Directory Processing Summary ---\n")
			config.PrintInfo("Obfuscated: %d\n", result.Obfuscated)
			config.PrintInfo("Copied:     %d\n", result.Copied)
			config.PrintInfo("Kept:       %d\n", result.Kept)
			config.PrintInfo("Up to date: %d\n", result.Skipped)
			config.PrintInfo("Symlinks:   %d\n", result.Symlinks)
		}
		if err != nil {
			if errs := multierr.Errors(err); len(errs) > 1 {
				fmt.Fprintf(os.Stderr, "%d errors occurred during processing:\n", len(errs))
				for _, e := range errs {
					fmt.Fprintf(os.Stderr, "- %v\n", e)
				}
			}
			return err
		}

		if !watchMode {
			return nil
		}

		watcher, err := octx.NewWatcher(cfg.SourceDirectory, cfg.TargetDirectory)
		if err != nil {
			return err
		}
		if !cfg.Silent {
			config.PrintInfo("Watching %s for changes (Ctrl+C to stop)...\n", cfg.SourceDirectory)
		}
		return watcher.Run(cmd.Context())
	},
}

func init() {
	obfuscateCmd.AddCommand(dirCmd)
	dirCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory path (required)")
	dirCmd.Flags().BoolVar(&cleanMode, "clean", false, "Clean the output directory before processing")
	dirCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "Keep the output directory in sync with the source until interrupted")
	dirCmd.Flags().IntVar(&numWorkers, "workers", 0, "Number of files obfuscated in parallel (default: number of CPUs)")
}
