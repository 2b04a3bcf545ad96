// Package api provides the public API for using the JavaScript obfuscator as a library.
//
// This package allows users to obfuscate JavaScript code programmatically using
// the same pipeline as the command-line interface. The API provides methods for
// obfuscating code strings, files, and directories, and for decoding the string
// literals of obfuscated code back.
//
// Basic usage example:
//
//	obf, err := api.NewObfuscator(api.Options{ConfigPath: "config.yaml"})
//	if err != nil {
//	    log.Fatalf("Failed to create obfuscator: %v", err)
//	}
//
//	result, err := obf.ObfuscateCode(`console.log("Hello World");`)
//	if err != nil {
//	    log.Fatalf("Failed to obfuscate code: %v", err)
//	}
//
//	fmt.Println(result) // Prints obfuscated JavaScript code
package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/whit3rabbit/jsmixer/internal/config"
	"github.com/whit3rabbit/jsmixer/internal/obfuscator"
	"github.com/whit3rabbit/jsmixer/internal/transformer"
)

// Finding is one decoded string literal of obfuscated code.
type Finding = transformer.Finding

// PrintInfo prints formatted information to stdout, respecting the Testing flag.
// This function forwards to the internal config.PrintInfo function.
func PrintInfo(format string, args ...interface{}) {
	config.PrintInfo(format, args...)
}

// Obfuscator represents the main obfuscation engine.
// It encapsulates the configuration and context needed for obfuscation operations.
type Obfuscator struct {
	// Context holds the obfuscation context shared by all operations
	Context *obfuscator.ObfuscationContext
	// Config holds the configuration settings for obfuscation
	Config *config.Config
}

// Options represents configuration options for creating a new Obfuscator instance.
type Options struct {
	// ConfigPath is the path to a YAML configuration file
	// If empty, default configuration will be used
	ConfigPath string

	// Silent suppresses informational messages during obfuscation
	Silent bool

	// Logger receives structured debug logs of the pipeline. Nil discards them.
	Logger *zap.Logger

	// Configure, when set, may adjust the loaded configuration before it is validated.
	Configure func(cfg *config.Config)
}

// NewObfuscator creates a new Obfuscator instance using the provided options.
//
// Returns an error if the configuration cannot be loaded or is invalid.
func NewObfuscator(options Options) (*Obfuscator, error) {
	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if options.Silent {
		cfg.Silent = true
	}
	if options.Configure != nil {
		options.Configure(cfg)
	}

	ctx, err := obfuscator.NewObfuscationContext(cfg, options.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create obfuscation context: %w", err)
	}

	return &Obfuscator{
		Context: ctx,
		Config:  cfg,
	}, nil
}

// ObfuscateCode obfuscates a string of JavaScript code and returns the obfuscated code.
func (o *Obfuscator) ObfuscateCode(code string) (string, error) {
	return o.ObfuscateCodeContext(context.Background(), code)
}

// ObfuscateCodeContext is ObfuscateCode with cancellation. The context is
// checked between pipeline stages.
func (o *Obfuscator) ObfuscateCodeContext(ctx context.Context, code string) (string, error) {
	result, err := o.Context.Transform(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to obfuscate code: %w", err)
	}
	return result, nil
}

// ObfuscateFile obfuscates a JavaScript file and returns the obfuscated code.
func (o *Obfuscator) ObfuscateFile(filePath string) (string, error) {
	result, err := obfuscator.ProcessFile(context.Background(), filePath, o.Context)
	if err != nil {
		return "", fmt.Errorf("failed to obfuscate file %s: %w", filePath, err)
	}
	return result, nil
}

// ObfuscateFileToFile obfuscates a JavaScript file and writes the result to
// another file. Nothing is written when obfuscation fails.
func (o *Obfuscator) ObfuscateFileToFile(inputPath, outputPath string) error {
	result, err := obfuscator.ProcessFile(context.Background(), inputPath, o.Context)
	if err != nil {
		return fmt.Errorf("failed to obfuscate file %s: %w", inputPath, err)
	}

	outputDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	if err := os.WriteFile(outputPath, []byte(result), 0644); err != nil {
		return fmt.Errorf("failed to write to output file %s: %w", outputPath, err)
	}
	return nil
}

// ObfuscateDirectory obfuscates all JavaScript files in a directory and writes
// the results to another directory.
//
// The function will:
// 1. Create the output directory if it doesn't exist
// 2. Obfuscate every file with a configured extension, preserving directory structure
// 3. Copy other files, and files matching the keep patterns, unchanged
// 4. Skip files that match patterns in the configuration's skip list
//
// Returns an error if directory operations or obfuscation fail.
func (o *Obfuscator) ObfuscateDirectory(inputDir, outputDir string) error {
	if _, err := o.Context.ProcessDirectory(context.Background(), inputDir, outputDir); err != nil {
		return fmt.Errorf("failed to obfuscate directory %s: %w", inputDir, err)
	}
	return nil
}

// Decode returns the string literals encoded in obfuscated code, in document order.
func Decode(code string) ([]Finding, error) {
	return transformer.DecodeSource(code)
}
