package scrambler

// NamingMode selects how fresh identifiers are generated.
type NamingMode string

const (
	// ModeSequential produces babel-style names: _a, _b, _a2, _b2, ...
	ModeSequential NamingMode = "sequential"
	// ModeRandom produces random identifiers of a configurable length.
	ModeRandom NamingMode = "random"
)

// reservedWords holds ECMAScript reserved words, strict mode reserved words and
// the global names that must never be declared as a binding.
var reservedWords = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true,
	"delete": true, "do": true, "else": true, "enum": true, "export": true,
	"extends": true, "false": true, "finally": true, "for": true,
	"function": true, "if": true, "import": true, "in": true,
	"instanceof": true, "new": true, "null": true, "return": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true,
	"with": true, "yield": true,

	// strict mode
	"implements": true, "interface": true, "let": true, "package": true,
	"private": true, "protected": true, "public": true, "static": true,

	// contextual
	"as": true, "async": true, "from": true, "get": true, "of": true,
	"set": true, "target": true, "meta": true,

	// restricted bindings and well-known globals
	"arguments": true, "eval": true, "undefined": true, "NaN": true,
	"Infinity": true, "globalThis": true, "window": true, "self": true,
	"require": true, "module": true, "exports": true,
}

// IsReserved reports whether name cannot be used as a fresh binding.
func IsReserved(name string) bool {
	return reservedWords[name]
}
