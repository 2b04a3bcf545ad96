package obfuscator

import (
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
	"github.com/whit3rabbit/jsmixer/internal/config"
)

// Preprocess lowers the syntax of src to the configured target so the parser
// and the transformations only ever see a stable dialect.
func Preprocess(src string, opts config.PreprocessConfig, keepComments bool) (string, error) {
	target, err := esbuildTarget(opts.Target)
	if err != nil {
		return "", err
	}
	out, err := runEsbuild(src, api.TransformOptions{
		Target:        target,
		LegalComments: legalComments(keepComments),
		Charset:       api.CharsetUTF8,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" && hasStatements(src) {
		return "", ErrEmptyPreprocessResult
	}
	return out, nil
}

// hasStatements reports whether src holds anything besides whitespace and
// comments. Unparsable input counts as having statements.
func hasStatements(src string) bool {
	if strings.TrimSpace(src) == "" {
		return false
	}
	ast, err := js.Parse(parse.NewInputString(src), js.Options{})
	if err != nil {
		return true
	}
	for _, stmt := range ast.List {
		if _, ok := stmt.(*js.Comment); !ok {
			return true
		}
	}
	return false
}
