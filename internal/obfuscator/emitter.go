package obfuscator

import (
	"context"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/parse/v2/js"
	"github.com/whit3rabbit/jsmixer/internal/config"
	"github.com/whit3rabbit/jsmixer/internal/transformer"
)

// Serialize prints ast back to JavaScript. Preserved license comments are
// dropped unless gen.Comments is set.
func Serialize(ast *js.AST, gen config.GeneratorConfig) string {
	return serialize(ast, gen, false)
}

func serialize(ast *js.AST, gen config.GeneratorConfig, debug bool) string {
	if !gen.Comments {
		stripper := transformer.NewCommentStripperVisitor()
		stripper.DebugMode = debug
		stripper.Strip(ast)
	}
	sb := strings.Builder{}
	ast.JS(&sb)
	out := sb.String()
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}

// Minify runs the serialized program through esbuild.
func Minify(src string, opts config.MinifyConfig, keepComments bool) (string, error) {
	target, err := esbuildTarget(opts.Target)
	if err != nil {
		return "", err
	}
	return runEsbuild(src, api.TransformOptions{
		Target:            target,
		MinifyWhitespace:  opts.Whitespace,
		MinifyIdentifiers: opts.Identifiers,
		MinifySyntax:      opts.Syntax,
		Charset:           esbuildCharset(opts.Charset),
		LegalComments:     legalComments(keepComments),
	})
}

// Emit serializes ast and minifies the result when minification is enabled.
func Emit(ctx context.Context, ast *js.AST, opts Options) (string, error) {
	return emit(ctx, ast, opts, false)
}

func emit(ctx context.Context, ast *js.AST, opts Options, debug bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &StageError{Stage: StageSerialize, Err: err}
	}
	var out string
	if err := runStage(StageSerialize, func() error {
		out = serialize(ast, opts.Generator, debug)
		return nil
	}); err != nil {
		return "", err
	}
	if !opts.Minify.Enabled {
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return "", &StageError{Stage: StageMinify, Err: err}
	}
	if err := runStage(StageMinify, func() error {
		var err error
		out, err = Minify(out, opts.Minify, opts.Generator.Comments)
		return err
	}); err != nil {
		return "", err
	}
	return out, nil
}
