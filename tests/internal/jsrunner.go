package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/robertkrimen/otto"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/jsmixer/internal/config"
	"github.com/whit3rabbit/jsmixer/internal/obfuscator"
)

// errHalt is the panic value used to interrupt a script that runs too long.
var errHalt = errors.New("script timed out")

// JsRunner provides utilities for running JavaScript in integration tests
type JsRunner struct {
	T       *testing.T
	Timeout time.Duration
	// ES2015 runs scripts in goja instead of otto.
	ES2015 bool
}

// NewJsRunner creates a new JavaScript runner for integration tests
func NewJsRunner(t *testing.T) *JsRunner {
	return &JsRunner{T: t, Timeout: 5 * time.Second}
}

// NewES2015Runner creates a runner for scripts using classes, arrows,
// generators and other syntax otto rejects.
func NewES2015Runner(t *testing.T) *JsRunner {
	r := NewJsRunner(t)
	r.ES2015 = true
	return r
}

// RunJS executes code in a fresh interpreter and returns what it printed
// through console.log or print, one call per line.
func (r *JsRunner) RunJS(code string) (string, error) {
	r.T.Helper()
	if r.ES2015 {
		return r.runGoja(code)
	}
	return r.runOtto(code)
}

func (r *JsRunner) runGoja(code string) (string, error) {
	var lines []string
	capture := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		lines = append(lines, strings.Join(parts, " "))
		return goja.Undefined()
	}

	vm := goja.New()
	if err := vm.Set("print", capture); err != nil {
		return "", err
	}
	console := vm.NewObject()
	if err := console.Set("log", capture); err != nil {
		return "", err
	}
	if err := vm.Set("console", console); err != nil {
		return "", err
	}

	timer := time.AfterFunc(r.Timeout, func() { vm.Interrupt(errHalt) })
	defer timer.Stop()

	if _, err := vm.RunString(code); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			err = errHalt
		}
		return strings.Join(lines, "\n"), err
	}
	return strings.Join(lines, "\n"), nil
}

func (r *JsRunner) runOtto(code string) (output string, err error) {
	var lines []string
	capture := func(call otto.FunctionCall) otto.Value {
		parts := make([]string, 0, len(call.ArgumentList))
		for _, arg := range call.ArgumentList {
			parts = append(parts, arg.String())
		}
		lines = append(lines, strings.Join(parts, " "))
		return otto.UndefinedValue()
	}

	vm := otto.New()
	vm.Interrupt = make(chan func(), 1)
	if err := vm.Set("print", capture); err != nil {
		return "", err
	}
	console, err := vm.Object(`console`)
	if err != nil {
		return "", err
	}
	if err := console.Set("log", capture); err != nil {
		return "", err
	}

	timer := time.AfterFunc(r.Timeout, func() {
		vm.Interrupt <- func() { panic(errHalt) }
	})
	defer timer.Stop()
	defer func() {
		if caught := recover(); caught != nil {
			if caught != errHalt {
				panic(caught)
			}
			err = errHalt
		}
	}()

	if _, err := vm.Run(code); err != nil {
		return strings.Join(lines, "\n"), err
	}
	return strings.Join(lines, "\n"), nil
}

// RunJSFile executes a JavaScript file, see RunJS.
func (r *JsRunner) RunJSFile(file string) (string, error) {
	r.T.Helper()
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	return r.RunJS(string(data))
}

// ObfuscateFile obfuscates a JavaScript file with the given configuration and writes the output to a temporary file
func (r *JsRunner) ObfuscateFile(inputFile string, cfg *config.Config) (string, string, error) {
	r.T.Helper()

	octx, err := obfuscator.NewObfuscationContext(cfg, nil)
	if err != nil {
		return "", "", err
	}

	r.T.Logf("Processing file: %s", inputFile)
	obfuscated, err := obfuscator.ProcessFile(context.Background(), inputFile, octx)
	if err != nil {
		return "", "", err
	}

	outputFile := filepath.Join(r.T.TempDir(), "obfuscated_"+filepath.Base(inputFile))
	if err := os.WriteFile(outputFile, []byte(obfuscated), 0644); err != nil {
		return "", "", err
	}
	r.T.Logf("Successfully wrote obfuscated file to: %s", outputFile)

	return outputFile, obfuscated, nil
}

// TestJsFile runs both the original and obfuscated file and returns their outputs
func (r *JsRunner) TestJsFile(originalFile, obfuscatedFile string) (string, string, error) {
	r.T.Helper()

	originalOutput, err := r.RunJSFile(originalFile)
	if err != nil {
		return "", "", fmt.Errorf("original: %w", err)
	}
	r.T.Logf("=== Original Output ===\n%s", originalOutput)

	obfuscatedOutput, err := r.RunJSFile(obfuscatedFile)
	if err != nil {
		return "", "", fmt.Errorf("obfuscated: %w", err)
	}
	r.T.Logf("=== Obfuscated Output ===\n%s", obfuscatedOutput)

	return originalOutput, obfuscatedOutput, nil
}

// IntegrationTest runs a complete integration test with the given config and input file
func (r *JsRunner) IntegrationTest(inputFile string, cfg *config.Config) (string, string, string, error) {
	r.T.Helper()

	absPath, err := filepath.Abs(inputFile)
	require.NoError(r.T, err, "Error getting absolute path")

	obfuscatedFile, obfuscatedCode, err := r.ObfuscateFile(absPath, cfg)
	if err != nil {
		return "", "", "", err
	}

	originalOutput, obfuscatedOutput, err := r.TestJsFile(absPath, obfuscatedFile)
	if err != nil {
		return "", "", "", err
	}

	return originalOutput, obfuscatedOutput, obfuscatedCode, nil
}
