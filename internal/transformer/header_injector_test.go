package transformer

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdewolff/parse/v2/js"
	"github.com/whit3rabbit/jsmixer/internal/astutil"
	"github.com/whit3rabbit/jsmixer/internal/config"
	"github.com/whit3rabbit/jsmixer/internal/scrambler"
)

func injectHeaders(t *testing.T, ast *js.AST, count int) *Headers {
	t.Helper()
	rnd := scrambler.NewRand(42)
	charset, err := NewCharsetExtractor().Extract(ast)
	require.NoError(t, err)

	names, err := scrambler.NewScrambler(config.NamingConfig{}, rnd)
	require.NoError(t, err)
	names.Reserve(CollectNames(ast)...)

	injector, err := NewHeaderInjector(count, rnd, names)
	require.NoError(t, err)
	headers, err := injector.Inject(ast, charset)
	require.NoError(t, err)
	return headers
}

func sortedUnits(units []uint16) []uint16 {
	out := append([]uint16(nil), units...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// aliasDecls returns the `var alias = header` declarations at the start of list.
func aliasDecls(list []js.IStmt) map[string]string {
	out := make(map[string]string)
	for _, stmt := range list {
		decl, ok := stmt.(*js.VarDecl)
		if !ok || len(decl.List) != 1 {
			break
		}
		header := astutil.VarName(decl.List[0].Default)
		if header == "" {
			break
		}
		out[astutil.VarName(decl.List[0].Binding)] = header
	}
	return out
}

func TestHeaderInjector_RootHeaders(t *testing.T) {
	for _, count := range []int{1, 3, 5} {
		ast := parseJS(t, `var s = "abc"; var d = "cd";`)
		headers := injectHeaders(t, ast, count)

		require.Len(t, headers.Entries, count)
		require.Len(t, headers.Literals, count)

		want := sortedUnits(astutil.StringToUnits("abcd"))
		names := map[string]bool{}
		for i, entry := range headers.Entries {
			assert.Equal(t, want, sortedUnits(entry.Value), "header %d is not a permutation of the charset", i)
			assert.False(t, names[entry.Name], "duplicate header name %s", entry.Name)
			names[entry.Name] = true

			decl, ok := ast.List[i].(*js.VarDecl)
			require.True(t, ok, "statement %d should be a header declaration", i)
			assert.Equal(t, entry.Name, astutil.VarName(decl.List[0].Binding))
			lit, ok := astutil.StringLiteral(decl.List[0].Default)
			require.True(t, ok)
			assert.True(t, headers.IsHeaderLiteral(lit))
			value, err := astutil.DecodeString(lit.Data)
			require.NoError(t, err)
			assert.Equal(t, entry.Value, value)
		}

		root := headers.DecentMaps[ast]
		require.Len(t, root, count)
		for name, alias := range root {
			assert.Equal(t, name, alias)
		}
	}
}

func TestHeaderInjector_SequentialNames(t *testing.T) {
	ast := parseJS(t, `var s = "x";`)
	headers := injectHeaders(t, ast, 3)
	assert.Equal(t, "_a", headers.Entries[0].Name)
	assert.Equal(t, "_b", headers.Entries[1].Name)
	assert.Equal(t, "_c", headers.Entries[2].Name)
}

func TestHeaderInjector_AvoidsExistingNames(t *testing.T) {
	code := `var _a = "x"; function _b(_c) { var _a2 = _c; return _a2; }`
	ast := parseJS(t, code)
	existing := CollectNames(ast)
	headers := injectHeaders(t, ast, 3)

	generated := []string{}
	for _, entry := range headers.Entries {
		generated = append(generated, entry.Name)
	}
	for scope, decent := range headers.DecentMaps {
		if scope == js.INode(ast) {
			continue
		}
		for _, alias := range decent {
			generated = append(generated, alias)
		}
	}
	for _, name := range generated {
		assert.NotContains(t, existing, name)
	}
	assert.Len(t, generated, 6)
}

func TestHeaderInjector_FunctionScopes(t *testing.T) {
	code := `
function outer(a) {
	var inner = function () { return "i"; };
	return inner() + "o";
}
var arrow = (x) => x + "a";
var obj = { method() { return "m"; }, get prop() { return "p"; } };
class K { run() { return "k"; } }
`
	ast := parseJS(t, code)
	headers := injectHeaders(t, ast, 3)

	// program, outer, inner, arrow, method, getter, class method
	assert.Len(t, headers.DecentMaps, 7)

	headerNames := map[string]bool{}
	for _, entry := range headers.Entries {
		headerNames[entry.Name] = true
	}
	for scope, decent := range headers.DecentMaps {
		if scope == js.INode(ast) {
			continue
		}
		require.True(t, IsFunctionScope(scope), "unexpected scope %T", scope)
		require.Len(t, decent, 3)

		decls := aliasDecls(FunctionBody(scope).List)
		require.Len(t, decls, 3, "%T should start with its alias declarations", scope)
		for alias, header := range decls {
			assert.True(t, headerNames[header])
			assert.Equal(t, alias, decent[header])
		}
	}
	validateJSSyntax(t, ast.JSString())
}

func TestHeaderInjector_DirectivePrologue(t *testing.T) {
	ast := parseJS(t, `"use strict"; function f() { "use strict"; return "s"; }`)
	headers := injectHeaders(t, ast, 2)

	_, ok := ast.List[0].(*js.DirectivePrologueStmt)
	assert.True(t, ok, "directive must stay first in the program")
	_, ok = ast.List[1].(*js.VarDecl)
	assert.True(t, ok)

	for scope := range headers.DecentMaps {
		fn, ok := scope.(*js.FuncDecl)
		if !ok {
			continue
		}
		_, ok = fn.Body.List[0].(*js.DirectivePrologueStmt)
		assert.True(t, ok, "directive must stay first in the function body")
		assert.Len(t, aliasDecls(fn.Body.List[1:]), 2)
	}
}

func TestHeaderInjector_EmptyCharset(t *testing.T) {
	ast := parseJS(t, `var x = 1;`)
	headers := injectHeaders(t, ast, 2)
	require.Len(t, headers.Entries, 2)
	for _, entry := range headers.Entries {
		assert.Empty(t, entry.Value)
	}
	assert.Contains(t, ast.JSString(), `var _a = "";`)
}

func TestHeaderInjector_EscapesValues(t *testing.T) {
	ast := parseJS(t, `var s = "\"\\\n é";`)
	injectHeaders(t, ast, 1)

	decl := ast.List[0].(*js.VarDecl)
	lit, ok := astutil.StringLiteral(decl.List[0].Default)
	require.True(t, ok)
	assert.NotContains(t, string(lit.Data[1:len(lit.Data)-1]), "\n")
	assert.NotContains(t, string(lit.Data), "é")
	validateJSSyntax(t, ast.JSString())
}

func TestNewHeaderInjector_InvalidCount(t *testing.T) {
	names, err := scrambler.NewScrambler(config.NamingConfig{}, nil)
	require.NoError(t, err)
	_, err = NewHeaderInjector(0, nil, names)
	assert.ErrorIs(t, err, ErrInvalidVariableCount)
}
