package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/jsmixer/internal/config"
	"github.com/whit3rabbit/jsmixer/internal/transformer"
)

var whatisShowExpr bool

// whatisCmd represents the whatis command
var whatisCmd = &cobra.Command{
	Use:   "whatis <obfuscated_file>",
	Short: "Prints the string literals hidden in an obfuscated file",
	Long: `Parses a file produced by the obfuscator, evaluates every header lookup
back into the string it encodes, and prints the results in document order.

The file may have been minified after obfuscation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		path := args[0]

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("error reading file %s: %w", path, err)
		}
		decoder := transformer.NewDecoder()
		decoder.DebugMode = cfg.DebugMode && !cfg.Silent
		findings, err := decoder.DecodeSource(string(data))
		if err != nil {
			return fmt.Errorf("error decoding %s: %w", path, err)
		}

		if len(findings) == 0 {
			if !cfg.Silent {
				config.PrintInfo("No encoded literals found in %s\n", path)
			}
			return nil
		}
		out := cmd.OutOrStdout()
		for _, f := range findings {
			if whatisShowExpr {
				fmt.Fprintf(out, "%s => %q\n", f.Expression, f.Value)
			} else {
				fmt.Fprintf(out, "%q\n", f.Value)
			}
		}
		return nil
	},
}

func init() {
	whatisCmd.Flags().BoolVarP(&whatisShowExpr, "expressions", "e", false, "Print the encoded expression next to each literal")
}
