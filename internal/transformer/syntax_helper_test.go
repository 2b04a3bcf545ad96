package transformer

import (
	"strings"
	"testing"

	"github.com/robertkrimen/otto"
	"github.com/stretchr/testify/require"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
	"github.com/whit3rabbit/jsmixer/internal/config"
	"github.com/whit3rabbit/jsmixer/internal/scrambler"
)

// parseJS parses code or fails the test.
func parseJS(t *testing.T, code string) *js.AST {
	t.Helper()
	ast, err := js.Parse(parse.NewInputString(code), js.Options{})
	require.NoError(t, err, "failed to parse:\n%s", code)
	return ast
}

// validateJSSyntax checks that generated code parses again.
func validateJSSyntax(t *testing.T, code string) {
	t.Helper()
	_, err := js.Parse(parse.NewInputString(code), js.Options{})
	require.NoError(t, err, "generated code does not parse:\n%s", code)
}

// runJS executes ES5 code in otto and returns everything passed to print(),
// one call per line.
func runJS(t *testing.T, code string) string {
	t.Helper()
	var out []string
	vm := otto.New()
	require.NoError(t, vm.Set("print", func(call otto.FunctionCall) otto.Value {
		parts := make([]string, 0, len(call.ArgumentList))
		for _, arg := range call.ArgumentList {
			parts = append(parts, arg.String())
		}
		out = append(out, strings.Join(parts, " "))
		return otto.UndefinedValue()
	}))
	_, err := vm.Run(code)
	require.NoError(t, err, "failed to run:\n%s", code)
	return strings.Join(out, "\n")
}

// obfuscateAST runs normalization, charset extraction, header injection and
// encoding over code and returns the printed result with the headers.
func obfuscateAST(t *testing.T, code string, count int, seed int64) (string, *Headers) {
	t.Helper()
	ast := parseJS(t, code)
	rnd := scrambler.NewRand(seed)

	NewAccessNormalizer().Normalize(ast)

	charset, err := NewCharsetExtractor().Extract(ast)
	require.NoError(t, err)

	names, err := scrambler.NewScrambler(config.NamingConfig{}, rnd)
	require.NoError(t, err)
	names.Reserve(CollectNames(ast)...)

	injector, err := NewHeaderInjector(count, rnd, names)
	require.NoError(t, err)
	headers, err := injector.Inject(ast, charset)
	require.NoError(t, err)

	_, err = NewStringEncoder(headers, rnd).Encode(ast)
	require.NoError(t, err)

	out := ast.JSString()
	validateJSSyntax(t, out)
	return out, headers
}
