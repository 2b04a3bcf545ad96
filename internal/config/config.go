// Package config loads and validates the obfuscator configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no path is given to LoadConfig.
const DefaultConfigPath = "config.yaml"

// EnvPrefix prefixes environment variable overrides, e.g.
// JSMIXER_OBFUSCATION_STRING_VARIABLE_COUNTS=5.
const EnvPrefix = "JSMIXER"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Targets accepted by the preprocess and minify steps.
var KnownTargets = []string{
	"es5", "es2015", "es2016", "es2017", "es2018", "es2019", "es2020",
	"es2021", "es2022", "es2023", "es2024", "esnext",
}

// --- Nested Configuration Structs ---

// NamingConfig defines how fresh identifiers for injected declarations are built.
type NamingConfig struct {
	Mode   string `yaml:"mode" mapstructure:"mode"`     // sequential or random
	Length int    `yaml:"length" mapstructure:"length"` // length of random names
}

// PreprocessConfig controls the syntax lowering step run before parsing.
type PreprocessConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Target  string `yaml:"target" mapstructure:"target"`
}

// ParserConfig is forwarded to the JavaScript parser.
type ParserConfig struct {
	WhileToFor bool `yaml:"while_to_for" mapstructure:"while_to_for"`
	Inline     bool `yaml:"inline" mapstructure:"inline"` // parse as a function body, allowing top-level return
}

// GeneratorConfig is forwarded to the serializer.
type GeneratorConfig struct {
	Comments bool `yaml:"comments" mapstructure:"comments"` // keep /*! license */ comments
}

// MinifyConfig controls the final minification step.
type MinifyConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Whitespace  bool   `yaml:"whitespace" mapstructure:"whitespace"`
	Identifiers bool   `yaml:"identifiers" mapstructure:"identifiers"`
	Syntax      bool   `yaml:"syntax" mapstructure:"syntax"`
	Target      string `yaml:"target" mapstructure:"target"`
	Charset     string `yaml:"charset" mapstructure:"charset"` // ascii or utf8
}

// ObfuscationConfig holds all settings of the transformation pipeline.
type ObfuscationConfig struct {
	StringVariableCounts int              `yaml:"string_variable_counts" mapstructure:"string_variable_counts"`
	Seed                 int64            `yaml:"seed" mapstructure:"seed"` // 0 picks a random seed per run
	Naming               NamingConfig     `yaml:"naming" mapstructure:"naming"`
	Preprocess           PreprocessConfig `yaml:"preprocess" mapstructure:"preprocess"`
	Parser               ParserConfig     `yaml:"parser" mapstructure:"parser"`
	Generator            GeneratorConfig  `yaml:"generator" mapstructure:"generator"`
	Minify               MinifyConfig     `yaml:"minify" mapstructure:"minify"`
}

// Config holds all configuration settings for the obfuscator.
type Config struct {
	// Input/Output settings
	SourceDirectory string `yaml:"source_directory" mapstructure:"source_directory"`
	TargetDirectory string `yaml:"target_directory" mapstructure:"target_directory"`

	// General behavior
	Silent         bool `yaml:"silent" mapstructure:"silent"`
	AbortOnError   bool `yaml:"abort_on_error" mapstructure:"abort_on_error"`
	DebugMode      bool `yaml:"debug_mode" mapstructure:"debug_mode"`
	FollowSymlinks bool `yaml:"follow_symlinks" mapstructure:"follow_symlinks"`
	Workers        int  `yaml:"workers" mapstructure:"workers"` // 0 means GOMAXPROCS

	// File Handling
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
	SkipPaths  []string `yaml:"skip" mapstructure:"skip"`
	KeepPaths  []string `yaml:"keep" mapstructure:"keep"`

	Obfuscation ObfuscationConfig `yaml:"obfuscation" mapstructure:"obfuscation"`
}

var (
	// Testing controls whether output is suppressed for testing purposes
	Testing bool
)

// PrintInfo prints an informational message unless running under tests.
func PrintInfo(format string, args ...interface{}) {
	if !Testing {
		fmt.Printf(format, args...)
	}
}

// DefaultConfig returns a configuration with default settings.
func DefaultConfig() *Config {
	return &Config{
		Silent:       false,
		AbortOnError: true,
		DebugMode:    false,
		Extensions:   []string{"js", "mjs", "cjs"},
		SkipPaths:    []string{"node_modules", "*.git*", "*.min.js"},
		KeepPaths:    []string{},

		Obfuscation: ObfuscationConfig{
			StringVariableCounts: 3,
			Naming: NamingConfig{
				Mode:   "sequential",
				Length: 6,
			},
			Preprocess: PreprocessConfig{
				Enabled: true,
				Target:  "es2015",
			},
			Generator: GeneratorConfig{
				Comments: true,
			},
			Minify: MinifyConfig{
				Enabled:     true,
				Whitespace:  true,
				Identifiers: true,
				Syntax:      true,
				Target:      "esnext",
				Charset:     "utf8",
			},
		},
	}
}

// LoadConfig reads configuration from the YAML file at configPath layered over
// the defaults, then applies JSMIXER_* environment overrides. A missing default
// config.yaml is not an error; a missing explicitly named file is.
func LoadConfig(configPath string) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	if configPath == "" {
		configPath = DefaultConfigPath
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}
		if !v.GetBool("silent") {
			PrintInfo("Info: Loaded configuration from %s\n", configPath)
		}
	} else if os.IsNotExist(err) {
		if configPath != DefaultConfigPath {
			return nil, fmt.Errorf("specified config file not found: %s", configPath)
		}
	} else {
		return nil, fmt.Errorf("error checking config file %s: %w", configPath, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TargetDirectory != "" {
		cfg.TargetDirectory = filepath.Clean(cfg.TargetDirectory)
	}
	return cfg, nil
}

// newViper returns a viper instance seeded with the defaults and bound to the
// environment.
func newViper() (*viper.Viper, error) {
	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("error marshalling default config: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v, nil
}

// SaveConfig writes cfg, or the default configuration when cfg is nil, to configPath.
func SaveConfig(configPath string, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshalling config: %w", err)
	}
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory for config file %s: %w", configPath, err)
	}
	if err := os.WriteFile(configPath, yamlData, 0644); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configPath, err)
	}
	PrintInfo("Info: Saved configuration to %s\n", configPath)
	return nil
}

// Validate checks the settings that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	o := c.Obfuscation
	if o.StringVariableCounts < 1 {
		return fmt.Errorf("%w: string_variable_counts must be at least 1, got %d", ErrInvalidConfig, o.StringVariableCounts)
	}
	switch strings.ToLower(o.Naming.Mode) {
	case "", "sequential", "random":
	default:
		return fmt.Errorf("%w: unknown naming mode %q", ErrInvalidConfig, o.Naming.Mode)
	}
	if o.Preprocess.Enabled && !isKnownTarget(o.Preprocess.Target) {
		return fmt.Errorf("%w: unknown preprocess target %q", ErrInvalidConfig, o.Preprocess.Target)
	}
	if o.Minify.Enabled {
		if !isKnownTarget(o.Minify.Target) {
			return fmt.Errorf("%w: unknown minify target %q", ErrInvalidConfig, o.Minify.Target)
		}
		switch strings.ToLower(o.Minify.Charset) {
		case "", "ascii", "utf8":
		default:
			return fmt.Errorf("%w: unknown minify charset %q", ErrInvalidConfig, o.Minify.Charset)
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidConfig)
	}
	return nil
}

func isKnownTarget(target string) bool {
	if target == "" {
		return true
	}
	target = strings.ToLower(target)
	for _, t := range KnownTargets {
		if t == target {
			return true
		}
	}
	return false
}
