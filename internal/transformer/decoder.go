package transformer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
	"github.com/whit3rabbit/jsmixer/internal/astutil"
)

// Finding is one encoded expression recovered from obfuscated code.
type Finding struct {
	Expression string
	Value      string
}

// Decoder evaluates header lookups back into strings. It understands both the
// plain output of the obfuscator and output that went through a minifier,
// which may merge declarations, rename aliases per scope and drop parentheses.
type Decoder struct {
	NullReplacer
	DebugMode bool

	headers  map[string][]uint16
	aliases  map[js.INode]map[string]string // scope -> alias -> header
	findings []Finding
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		headers: make(map[string][]uint16),
		aliases: make(map[js.INode]map[string]string),
	}
}

// DecodeSource parses obfuscated JavaScript and returns the decoded literals in
// document order.
func DecodeSource(src string) ([]Finding, error) {
	return NewDecoder().DecodeSource(src)
}

// DecodeSource parses src and decodes it with d.
func (d *Decoder) DecodeSource(src string) ([]Finding, error) {
	ast, err := js.Parse(parse.NewInputString(src), js.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse input: %w", err)
	}
	return d.Decode(ast), nil
}

// Decode walks ast and returns the decoded literals in document order.
func (d *Decoder) Decode(ast *js.AST) []Finding {
	d.collectHeaders(ast)
	d.findings = nil
	NewReplaceTraverser(d, d.DebugMode).Traverse(ast)
	return d.findings
}

// Headers returns the header values found at the top level, by name.
func (d *Decoder) Headers() map[string]string {
	out := make(map[string]string, len(d.headers))
	for name, units := range d.headers {
		out[name] = astutil.UnitsToString(units)
	}
	return out
}

// collectHeaders records top-level `var name = "..."` declarations.
func (d *Decoder) collectHeaders(ast *js.AST) {
	for _, stmt := range ast.List {
		decl, ok := stmt.(*js.VarDecl)
		if !ok {
			continue
		}
		for _, el := range decl.List {
			name := astutil.VarName(el.Binding)
			lit, ok := astutil.StringLiteral(el.Default)
			if name == "" || !ok {
				continue
			}
			if units, err := astutil.DecodeString(lit.Data); err == nil {
				d.headers[name] = units
			}
		}
	}
}

func (d *Decoder) EnterNode(n js.INode, path *Path) bool {
	switch node := n.(type) {
	case *js.VarDecl:
		for _, el := range node.List {
			alias, header := astutil.VarName(el.Binding), astutil.VarName(el.Default)
			if alias == "" || header == "" {
				continue
			}
			if resolved, ok := d.resolve(header, path); ok {
				scope := path.Scope()
				if d.aliases[scope] == nil {
					d.aliases[scope] = make(map[string]string)
				}
				d.aliases[scope][alias] = resolved
			}
		}
	case *js.BinaryExpr, *js.IndexExpr, *js.GroupExpr:
		expr := n.(js.IExpr)
		units, ok := d.evaluate(expr, path, true)
		if !ok {
			return true
		}
		sb := strings.Builder{}
		expr.JS(&sb)
		if d.DebugMode {
			fmt.Printf("DEBUG: Decoded %s\n", sb.String())
		}
		d.findings = append(d.findings, Finding{Expression: sb.String(), Value: astutil.UnitsToString(units)})
		return false
	}
	return true
}

// resolve maps a name visible in the current scope to a header name.
func (d *Decoder) resolve(name string, path *Path) (string, bool) {
	for i := len(path.scopes) - 1; i >= 0; i-- {
		if header, ok := d.aliases[path.scopes[i]][name]; ok {
			return header, true
		}
	}
	if _, ok := d.headers[name]; ok {
		return name, true
	}
	return "", false
}

// evaluate computes the value of a concatenation of header lookups. A group
// is only accepted at the top, so that adjacent encoded literals are reported
// one by one.
func (d *Decoder) evaluate(expr js.IExpr, path *Path, top bool) ([]uint16, bool) {
	switch e := expr.(type) {
	case *js.GroupExpr:
		if !top {
			return nil, false
		}
		return d.evaluate(e.X, path, false)
	case *js.BinaryExpr:
		if e.Op != js.AddToken {
			return nil, false
		}
		left, ok := d.evaluate(e.X, path, false)
		if !ok {
			return nil, false
		}
		right, ok := d.evaluate(e.Y, path, false)
		if !ok {
			return nil, false
		}
		return append(left, right...), true
	case *js.IndexExpr:
		header, ok := d.resolve(astutil.VarName(e.X), path)
		if !ok {
			return nil, false
		}
		lit, ok := e.Y.(*js.LiteralExpr)
		if !ok || (lit.TokenType != js.IntegerToken && lit.TokenType != js.DecimalToken) {
			return nil, false
		}
		i, err := strconv.Atoi(string(lit.Data))
		if err != nil {
			return nil, false
		}
		value := d.headers[header]
		if i < 0 || i >= len(value) {
			return nil, false
		}
		return []uint16{value[i]}, true
	}
	return nil, false
}
