package transformer

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSource_MinifiedShapes(t *testing.T) {
	code := `var _a = "abc", _b = "cab";
function f() { var x = _b, y = _a; return x[1] + y[2]; }
function g() { var x = _a; return x[0]; }
print(_a[1] + _b[0], foo[1] + 2, _a[9]);`

	decoder := NewDecoder()
	ast := parseJS(t, code)
	findings := decoder.Decode(ast)

	require.Len(t, findings, 3)
	assert.Equal(t, Finding{Expression: "x[1] + y[2]", Value: "ac"}, findings[0])
	assert.Equal(t, Finding{Expression: "x[0]", Value: "a"}, findings[1])
	assert.Equal(t, Finding{Expression: "_a[1] + _b[0]", Value: "bc"}, findings[2])
	assert.Equal(t, map[string]string{"_a": "abc", "_b": "cab"}, decoder.Headers())
}

func TestDecodeSource_AdjacentLiterals(t *testing.T) {
	code := `var _a = "xy";
var s = (_a[0] + _a[1]) + (_a[1]);`
	assert.Equal(t, []string{"xy", "y"}, findingValues(t, code))
}

func TestDecodeSource_ParseError(t *testing.T) {
	_, err := DecodeSource(`var = ;`)
	assert.Error(t, err)
}

func TestDecodeSource_PlainCode(t *testing.T) {
	findings, err := DecodeSource(`function f(a) { return a[0] + a[1]; } var n = 1;`)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestDecoder_DebugMode(t *testing.T) {
	originalStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	decoder := NewDecoder()
	decoder.DebugMode = true
	findings, err := decoder.DecodeSource(`var _a = "ab"; var s = _a[1] + _a[0];`)

	w.Close()
	os.Stdout = originalStdout
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)

	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "ba", findings[0].Value)
	assert.Contains(t, buf.String(), "DEBUG: Decoded _a[1] + _a[0]")
}
