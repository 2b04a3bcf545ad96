package cmd

import (
	"github.com/spf13/cobra"
)

// obfuscateCmd represents the base command for obfuscation actions
var obfuscateCmd = &cobra.Command{
	Use:   "obfuscate",
	Short: "Hides the string literals of JavaScript code",
	Long: `Provides subcommands to obfuscate individual files or entire directories.

Example:
  go-js-obfuscator obfuscate file input.js -o output.js
  go-js-obfuscator obfuscate dir ./src -o ./dist --clean
  go-js-obfuscator obfuscate dir ./src -o ./dist --watch`,
}
