package obfuscator_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/robertkrimen/otto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"

	"github.com/whit3rabbit/jsmixer/internal/config"
	"github.com/whit3rabbit/jsmixer/internal/obfuscator"
	"github.com/whit3rabbit/jsmixer/internal/transformer"
)

func init() {
	config.Testing = true
}

// testOptions returns default options with a fixed seed and a minify target
// that only lets the minifier emit syntax the ES5 test interpreter accepts.
func testOptions(seed int64) obfuscator.Options {
	opts := obfuscator.DefaultOptions()
	opts.Seed = seed
	opts.Minify.Target = "es2015"
	return opts
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

// runES2015 is runJS for code otto cannot parse.
func runES2015(t *testing.T, code string) string {
	t.Helper()
	var out []string
	vm := goja.New()
	require.NoError(t, vm.Set("print", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		out = append(out, strings.Join(parts, " "))
		return goja.Undefined()
	}))
	_, err := vm.RunString(code)
	require.NoError(t, err, "failed to run:\n%s", code)
	return strings.Join(out, "\n")
}

func decodedValues(t *testing.T, code string) []string {
	t.Helper()
	findings, err := transformer.DecodeSource(code)
	require.NoError(t, err)
	values := make([]string, 0, len(findings))
	for _, f := range findings {
		values = append(values, f.Value)
	}
	return values
}

func TestTransform_ObjectScenario(t *testing.T) {
	opts := testOptions(7)
	opts.Minify.Enabled = false

	out, err := obfuscator.Transform(context.Background(), `var obj = {foo: "bar"}; print(obj.foo);`, opts)
	require.NoError(t, err)

	assert.NotContains(t, out, `"bar"`)
	assert.NotContains(t, out, `.foo`)
	assert.Contains(t, out, `["foo"]`)
	assert.Equal(t, []string{"bar", "foo"}, decodedValues(t, out))
}

func TestTransform_Minified(t *testing.T) {
	out, err := obfuscator.Transform(context.Background(), `var obj = {foo: "bar"}; print(obj.foo);`, testOptions(7))
	require.NoError(t, err)

	assert.NotContains(t, out, `"bar"`)
	assert.Contains(t, decodedValues(t, out), "bar")
	assert.Equal(t, "bar", runJS(t, out))
}

func TestTransform_SemanticEquivalence(t *testing.T) {
	programs := map[string]string{
		"concat": `var greeting = "Hello, " + "world"; print(greeting, greeting.length);`,
		"functions": `
function greet(name) {
	var prefix = "Hi ";
	return prefix + name + "!";
}
print(greet("Ada"), greet("Linus"));`,
		"nested scopes": `
function outer() {
	var a = "out";
	function inner(x) {
		return function () { return a + ":" + x + ":" + "deep"; };
	}
	return inner("mid")();
}
print(outer());`,
		"members": `
var o = {};
o.alpha = "one";
o["beta"] = "two";
var k = "alpha";
print(o[k], o.beta, typeof o.gamma);`,
		"object keys": `
var cfg = {name: "jsmixer", version: "1.0", "dashed-key": true, 3: "three"};
var keys = [];
for (var key in cfg) { keys.push(key); }
print(keys.sort().join(","), cfg.name, cfg["dashed-key"], cfg[3]);`,
		"escapes": `print("tab\there", "quote\"s", "back\\slash", "unié", "line\nbreak".split("\n").length);`,
		"methods": `print("a-b-c".split("-").join("+"), "Case".toUpperCase(), [3, 1, 2].sort().join(""));`,
		"switch and throw": `
function kind(v) {
	switch (typeof v) {
	case "string": return "str";
	case "number": return "num";
	default: return "other";
	}
}
try { throw new Error("boom"); } catch (e) { print(e.message, kind("x"), kind(1), kind(null)); }`,
		"empty string": `var e = ""; print(e.length, e === "", "" + "x");`,
	}

	for name, code := range programs {
		t.Run(name, func(t *testing.T) {
			want := runJS(t, code)
			for _, minify := range []bool{true, false} {
				opts := testOptions(11)
				opts.Minify.Enabled = minify
				out, err := obfuscator.Transform(context.Background(), code, opts)
				require.NoError(t, err)
				if minify {
					assert.Equal(t, want, runJS(t, out), "minify=%t\n%s", minify, out)
				} else {
					// unminified output keeps computed keys
					assert.Equal(t, want, runES2015(t, out), "minify=%t\n%s", minify, out)
				}
			}
		})
	}
}

func TestTransform_ES2015SemanticEquivalence(t *testing.T) {
	programs := map[string]string{
		"arrows": `
var sep = "-";
var wrap = (s) => "<" + s + ">";
var pair = (a, b) => ({left: a, right: b});
var block = (...xs) => { var j = "+"; return xs.join(j) + sep; };
print(wrap("x"), pair("l", "r").right, block("a", "b"));`,
		"arrow this": `
var obj = {
	prefix: "item-",
	tag(list) { return list.map((v) => this.prefix + v).join(","); }
};
print(obj.tag(["a", "b"]));`,
		"methods and accessors": `
var acc = {
	n: 0,
	get next() { return "n" + (++this.n); },
	set value(v) { this.n = v.length; },
	show() { return this.next + "|" + this.next; }
};
print(acc.show());
acc.value = "four";
print(acc.next);`,
		"derived class": `
class Base {
	constructor(name) { this.name = name; }
	hello() { return "hello " + this.name; }
	get title() { return "Base:" + this.name; }
	static make() { return new Base("static"); }
}
class Child extends Base {
	constructor() {
		super("child");
		this.extra = "more";
	}
	hello() { return super.hello() + " and " + this.extra; }
}
var c = new Child();
print(c.hello(), c.title, Base.make().name, c instanceof Base);`,
		"parameter defaults": `
var outer = "outer";
function f(a = "first", b = a + "/second", c = outer) {
	var outer = "shadow";
	return a + "|" + b + "|" + c + "|" + outer;
}
var g = (x = "dflt") => x + "!";
print(f(), f("one"), g(), g("given"));`,
		"generators": `
function* gen(word = "ab") {
	var p = "ch:";
	for (var i = 0; i < word.length; i++) { yield p + word[i]; }
	return "end";
}
var got = [];
for (var v of gen()) { got.push(v); }
var it = gen("z");
print(got.join(","), it.next().value, it.next().value, it.next().done);`,
		"proto": `
var parent = {greet() { return "hi " + this.who; }, kind: "parent"};
var kid = {__proto__: parent, who: "kid"};
var own = {["__proto__"]: "own", name: "own"};
print(kid.greet(), kid.kind, Object.getPrototypeOf(kid) === parent, Object.keys(kid).join(","));
print(Object.keys(own).sort().join(","), own.__proto__, typeof kid.__proto__.greet);`,
		"computed keys": `
var k = "dyn";
var o = {[k + "amic"]: "computed", "quoted-key": "quoted", plain: "plain", 5: "five"};
var {plain, missing = "fallback"} = o;
print(o.dynamic, o["quoted-key"], plain, missing, o[5], Object.keys(o).sort().join(","));`,
	}

	for name, code := range programs {
		t.Run(name, func(t *testing.T) {
			want := runES2015(t, code)
			require.NotEmpty(t, want)
			for _, minify := range []bool{true, false} {
				opts := testOptions(17)
				opts.Minify.Enabled = minify
				out, err := obfuscator.Transform(context.Background(), code, opts)
				require.NoError(t, err)
				assert.Equal(t, want, runES2015(t, out), "minify=%t\n%s", minify, out)
			}
		})
	}
}

func TestTransform_SeededDeterminism(t *testing.T) {
	code := `function f(a) { return "alpha" + a + "omega"; } var x = {key: f("beta")};`
	first, err := obfuscator.Transform(context.Background(), code, testOptions(1234))
	require.NoError(t, err)
	second, err := obfuscator.Transform(context.Background(), code, testOptions(1234))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTransform_LeavesModuleRequestsAndEmptyStrings(t *testing.T) {
	opts := testOptions(5)
	opts.Minify.Enabled = false

	code := `import x from "./x.js";
var y = require("./y.js");
var z = "";
export { x, y, z };`
	out, err := obfuscator.Transform(context.Background(), code, opts)
	require.NoError(t, err)

	assert.Contains(t, out, `"./x.js"`)
	assert.Contains(t, out, `require("./y.js")`)
	assert.Contains(t, out, `z = ""`)
}

func TestTransform_ProtoKeyStaysPlain(t *testing.T) {
	opts := testOptions(5)
	opts.Minify.Enabled = false

	out, err := obfuscator.Transform(context.Background(), `var p = {}; var o = {__proto__: p, own: 1};`, opts)
	require.NoError(t, err)
	assert.Contains(t, out, "__proto__:")
	assert.Contains(t, out, `["own"]`)
}

func TestTransform_HeaderCount(t *testing.T) {
	for _, k := range []int{1, 3, 6} {
		opts := testOptions(3)
		opts.Minify.Enabled = false
		opts.Preprocess.Enabled = false
		opts.StringVariableCounts = k

		out, err := obfuscator.Transform(context.Background(), `var s = "abc";`, opts)
		require.NoError(t, err)

		ast, err := js.Parse(parse.NewInputString(out), js.Options{})
		require.NoError(t, err)
		decoder := transformer.NewDecoder()
		findings := decoder.Decode(ast)
		assert.Len(t, decoder.Headers(), k, "K=%d", k)
		require.Len(t, findings, 1)
		assert.Equal(t, "abc", findings[0].Value)
	}
}

func TestTransform_LicenseComments(t *testing.T) {
	code := "/*! keep me */\nvar a = \"x\";"
	for _, minify := range []bool{true, false} {
		opts := testOptions(9)
		opts.Minify.Enabled = minify

		opts.Generator.Comments = true
		out, err := obfuscator.Transform(context.Background(), code, opts)
		require.NoError(t, err)
		assert.Contains(t, out, "keep me", "minify=%t", minify)

		opts.Generator.Comments = false
		out, err = obfuscator.Transform(context.Background(), code, opts)
		require.NoError(t, err)
		assert.NotContains(t, out, "keep me", "minify=%t", minify)
	}
}

func TestTransform_BlankInput(t *testing.T) {
	opts := testOptions(1)
	opts.Minify.Enabled = false
	out, err := obfuscator.Transform(context.Background(), "  \n// only a comment\n", opts)
	require.NoError(t, err)
	assert.Contains(t, out, `var _a = "";`)
}

func TestTransform_StageErrors(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name   string
		ctx    context.Context
		code   string
		mutate func(o *obfuscator.Options)
		stage  obfuscator.Stage
		is     error
	}{
		{
			name:  "syntax error caught by preprocess",
			code:  "var = ;",
			stage: obfuscator.StagePreprocess,
		},
		{
			name:   "syntax error caught by parse",
			code:   "var = ;",
			mutate: func(o *obfuscator.Options) { o.Preprocess.Enabled = false },
			stage:  obfuscator.StageParse,
		},
		{
			name:   "unknown preprocess target",
			code:   "var a = 1;",
			mutate: func(o *obfuscator.Options) { o.Preprocess.Target = "es3" },
			stage:  obfuscator.StagePreprocess,
		},
		{
			name:   "zero header count",
			code:   `var a = "x";`,
			mutate: func(o *obfuscator.Options) { o.StringVariableCounts = 0 },
			stage:  obfuscator.StageInject,
			is:     obfuscator.ErrInvalidVariableCount,
		},
		{
			name:   "unknown naming mode",
			code:   `var a = "x";`,
			mutate: func(o *obfuscator.Options) { o.Naming.Mode = "hexa" },
			stage:  obfuscator.StageInject,
		},
		{
			name:   "unknown minify target",
			code:   `var a = "x";`,
			mutate: func(o *obfuscator.Options) { o.Minify.Target = "es3" },
			stage:  obfuscator.StageMinify,
		},
		{
			name:  "canceled context",
			ctx:   canceled,
			code:  `var a = "x";`,
			stage: obfuscator.StagePreprocess,
			is:    context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(1)
			if tt.mutate != nil {
				tt.mutate(&opts)
			}
			ctx := tt.ctx
			if ctx == nil {
				ctx = context.Background()
			}

			out, err := obfuscator.Transform(ctx, tt.code, opts)
			require.Error(t, err)
			assert.Empty(t, out)

			var se *obfuscator.StageError
			require.True(t, errors.As(err, &se), "error %v is not a StageError", err)
			assert.Equal(t, tt.stage, se.Stage)
			assert.True(t, strings.HasPrefix(err.Error(), string(tt.stage)+" stage failed: "), err.Error())
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestNewObfuscationContext(t *testing.T) {
	_, err := obfuscator.NewObfuscationContext(nil, nil)
	assert.Error(t, err)

	cfg := config.DefaultConfig()
	cfg.Obfuscation.StringVariableCounts = 0
	_, err = obfuscator.NewObfuscationContext(cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	octx, err := obfuscator.NewObfuscationContext(config.DefaultConfig(), nil)
	require.NoError(t, err)
	assert.NotNil(t, octx.Logger)
}

func TestProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.js")
	require.NoError(t, os.WriteFile(path, []byte(`print("from a file");`), 0644))

	cfg := config.DefaultConfig()
	cfg.Silent = true
	cfg.Obfuscation.Seed = 77
	cfg.Obfuscation.Minify.Target = "es2015"
	octx, err := obfuscator.NewObfuscationContext(cfg, nil)
	require.NoError(t, err)

	out, err := obfuscator.ProcessFile(context.Background(), path, octx)
	require.NoError(t, err)
	assert.NotContains(t, out, "from a file")
	assert.Equal(t, "from a file", runJS(t, out))

	_, err = obfuscator.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.js"), octx)
	assert.Error(t, err)
}

// captureStdout returns what fn prints to stdout.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	originalStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	done := make(chan string)
	go func() {
		var sb strings.Builder
		_, _ = io.Copy(&sb, r)
		done <- sb.String()
	}()

	defer func() { os.Stdout = originalStdout }()
	fn()
	w.Close()
	return <-done
}

func TestObfuscationContext_DebugMode(t *testing.T) {
	src := `/*! header */ var o = {a: "x"}; function f() { return o.a; }`

	cases := []struct {
		name      string
		debugMode bool
		silent    bool
		wantDebug bool
	}{
		{"debug", true, false, true},
		{"silent wins", true, true, false},
		{"off", false, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.DebugMode = tc.debugMode
			cfg.Silent = tc.silent
			cfg.Obfuscation = testOptions(3)
			cfg.Obfuscation.Generator.Comments = false
			cfg.Obfuscation.Preprocess.Enabled = false
			octx, err := obfuscator.NewObfuscationContext(cfg, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.wantDebug, octx.DebugMode())

			var out string
			stdout := captureStdout(t, func() {
				out, err = octx.Transform(context.Background(), src)
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"x", "a"}, decodedValues(t, out))

			if !tc.wantDebug {
				assert.Empty(t, stdout)
				return
			}
			for _, line := range []string{
				"DEBUG: Computing property key a",
				"DEBUG: Adding 1 code units from",
				"DEBUG: Declaring 3 aliases in *js.FuncDecl",
				`DEBUG: Encoding string literal "x"`,
				"DEBUG: Traversing node type:",
				"Removing comment:",
			} {
				assert.Contains(t, stdout, line)
			}
		})
	}
}
