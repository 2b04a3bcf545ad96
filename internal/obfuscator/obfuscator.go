// Package obfuscator orchestrates the transformation pipeline and holds the
// state shared across files.
package obfuscator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
	"go.uber.org/zap"

	"github.com/whit3rabbit/jsmixer/internal/config"
	"github.com/whit3rabbit/jsmixer/internal/scrambler"
	"github.com/whit3rabbit/jsmixer/internal/transformer"
)

// Options configures a single transformation.
type Options = config.ObfuscationConfig

// DefaultOptions returns the default transformation settings.
func DefaultOptions() Options {
	return config.DefaultConfig().Obfuscation
}

// ObfuscationContext holds what is shared across the files of one run: the
// configuration and the logger. Every file still gets its own charset,
// headers and random source.
type ObfuscationContext struct {
	Config *config.Config
	Logger *zap.Logger
	Silent bool // Inherited from config for convenience
}

// NewObfuscationContext validates cfg and creates a context. A nil logger
// discards all log output.
func NewObfuscationContext(cfg *config.Config, logger *zap.Logger) (*ObfuscationContext, error) {
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObfuscationContext{
		Config: cfg,
		Logger: logger,
		Silent: cfg.Silent,
	}, nil
}

// Transform obfuscates src with opts. It is safe to call concurrently.
func Transform(ctx context.Context, src string, opts Options) (string, error) {
	return transform(ctx, src, opts, zap.NewNop(), false)
}

// Transform obfuscates src with the context's settings.
func (octx *ObfuscationContext) Transform(ctx context.Context, src string) (string, error) {
	return transform(ctx, src, octx.Config.Obfuscation, octx.Logger, octx.DebugMode())
}

// DebugMode reports whether the transformers print their DEBUG lines. Silent
// wins over debug_mode.
func (octx *ObfuscationContext) DebugMode() bool {
	return octx.Config.DebugMode && !octx.Silent
}

// ProcessFile reads and obfuscates a single file and returns the result.
// Nothing is written to disk.
func ProcessFile(ctx context.Context, filePath string, octx *ObfuscationContext) (string, error) {
	return octx.processFile(ctx, filePath, octx.Config.Obfuscation)
}

func (octx *ObfuscationContext) processFile(ctx context.Context, filePath string, opts Options) (string, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("error reading file %s: %w", filePath, err)
	}
	out, err := transform(ctx, string(src), opts, octx.Logger.With(zap.String("file", filePath)), octx.DebugMode())
	if err != nil {
		return "", fmt.Errorf("error processing file %s: %w", filePath, err)
	}
	return out, nil
}

// run carries the per-invocation state of one transformation.
type run struct {
	ctx    context.Context
	opts   Options
	logger *zap.Logger
	rnd    *rand.Rand
	debug  bool
}

func transform(ctx context.Context, src string, opts Options, logger *zap.Logger, debug bool) (string, error) {
	r := &run{
		ctx:    ctx,
		opts:   opts,
		logger: logger.With(zap.String("run_id", uuid.NewString())),
		rnd:    scrambler.NewRand(opts.Seed),
		debug:  debug,
	}
	r.logger.Debug("starting transformation",
		zap.Int("bytes", len(src)),
		zap.Int("string_variable_counts", opts.StringVariableCounts),
		zap.Int64("seed", opts.Seed))

	if opts.Preprocess.Enabled {
		if err := r.stage(StagePreprocess, func() error {
			var err error
			src, err = Preprocess(src, opts.Preprocess, opts.Generator.Comments)
			return err
		}); err != nil {
			return "", err
		}
	}

	var ast *js.AST
	if err := r.stage(StageParse, func() error {
		var err error
		ast, err = js.Parse(parse.NewInputString(src), js.Options{
			WhileToFor: opts.Parser.WhileToFor,
			Inline:     opts.Parser.Inline,
		})
		return err
	}); err != nil {
		return "", err
	}

	if err := r.stage(StageNormalize, func() error {
		normalizer := transformer.NewAccessNormalizer()
		normalizer.DebugMode = r.debug
		members, keys := normalizer.Normalize(ast)
		r.logger.Debug("normalized property access", zap.Int("members", members), zap.Int("keys", keys))
		return nil
	}); err != nil {
		return "", err
	}

	var headers *transformer.Headers
	if err := r.stage(StageInject, func() error {
		var err error
		headers, err = r.inject(ast)
		return err
	}); err != nil {
		return "", err
	}

	if err := r.stage(StageEncode, func() error {
		encoder := transformer.NewStringEncoder(headers, r.rnd)
		encoder.DebugMode = r.debug
		encoded, err := encoder.Encode(ast)
		if err != nil {
			return err
		}
		fields := []zap.Field{zap.Int("encoded", encoded)}
		for reason, n := range encoder.Skipped {
			fields = append(fields, zap.Int("skipped_"+string(reason), n))
		}
		r.logger.Debug("encoded string literals", fields...)
		return nil
	}); err != nil {
		return "", err
	}

	out, err := emit(ctx, ast, opts, r.debug)
	if err != nil {
		return "", err
	}
	r.logger.Debug("transformation completed", zap.Int("bytes", len(out)))
	return out, nil
}

func (r *run) inject(ast *js.AST) (*transformer.Headers, error) {
	extractor := transformer.NewCharsetExtractor()
	extractor.DebugMode = r.debug
	charset, err := extractor.Extract(ast)
	if err != nil {
		return nil, err
	}
	names, err := scrambler.NewScrambler(r.opts.Naming, r.rnd)
	if err != nil {
		return nil, err
	}
	names.Reserve(transformer.CollectNames(ast)...)

	injector, err := transformer.NewHeaderInjector(r.opts.StringVariableCounts, r.rnd, names)
	if err != nil {
		return nil, err
	}
	injector.DebugMode = r.debug
	headers, err := injector.Inject(ast, charset)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("injected headers",
		zap.Int("charset", charset.Len()),
		zap.Int("headers", len(headers.Entries)),
		zap.Int("scopes", len(headers.DecentMaps)))
	return headers, nil
}

// stage checks for cancellation, then runs fn as the given pipeline stage.
func (r *run) stage(stage Stage, fn func() error) error {
	if err := r.ctx.Err(); err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	r.logger.Debug("applying stage", zap.String("stage", string(stage)))
	start := time.Now()
	if err := runStage(stage, fn); err != nil {
		r.logger.Debug("stage failed", zap.String("stage", string(stage)), zap.Error(err))
		return err
	}
	r.logger.Debug("stage completed", zap.String("stage", string(stage)), zap.Duration("elapsed", time.Since(start)))
	return nil
}
