package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/jsmixer/internal/config"
	"github.com/whit3rabbit/jsmixer/internal/obfuscator"
)

var outputFile string // Flag variable for output file path

// fileCmd represents the obfuscate file command
var fileCmd = &cobra.Command{
	Use:   "file <js_file_path>",
	Short: "Obfuscate a single JavaScript file",
	Long: `Reads a single JavaScript file, encodes its string literals, and
outputs the result to stdout or a specified file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		filePath := args[0]

		octx, err := newContext()
		if err != nil {
			return err
		}

		if !cfg.Silent {
			config.PrintInfo("Processing file: %s\n", filePath)
		}
		outputContent, err := obfuscator.ProcessFile(cmd.Context(), filePath, octx)
		if err != nil {
			return err
		}

		if outputFile == "" {
			fmt.Fprint(cmd.OutOrStdout(), outputContent)
			return nil
		}

		if !cfg.Silent {
			config.PrintInfo("Info: Writing output to file: %s\n", outputFile)
		}
		if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
			return fmt.Errorf("failed to create output directory for %s: %w", outputFile, err)
		}
		if err := os.WriteFile(outputFile, []byte(outputContent), 0644); err != nil {
			return fmt.Errorf("error writing to output file %s: %w", outputFile, err)
		}
		return nil
	},
}

func init() {
	obfuscateCmd.AddCommand(fileCmd)
	fileCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (default: stdout)")
}
