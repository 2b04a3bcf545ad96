package transformer

import (
	"fmt"

	"github.com/tdewolff/parse/v2/js"
	"github.com/whit3rabbit/jsmixer/internal/astutil"
)

// Charset is the set of distinct UTF-16 code units found in the string
// literals of a program, in order of first occurrence.
type Charset struct {
	units []uint16
	seen  map[uint16]bool
}

// NewCharset returns an empty charset.
func NewCharset() *Charset {
	return &Charset{seen: make(map[uint16]bool)}
}

// Add unions the given code units into the set.
func (c *Charset) Add(units []uint16) {
	for _, u := range units {
		if !c.seen[u] {
			c.seen[u] = true
			c.units = append(c.units, u)
		}
	}
}

// Contains reports whether u is in the set.
func (c *Charset) Contains(u uint16) bool {
	return c.seen[u]
}

// Len returns the number of distinct code units.
func (c *Charset) Len() int {
	return len(c.units)
}

// Units returns a copy of the code units in order of first occurrence.
func (c *Charset) Units() []uint16 {
	out := make([]uint16, len(c.units))
	copy(out, c.units)
	return out
}

// CharsetExtractor collects the charset of every string literal in the tree,
// property-name literals included. It never mutates the tree.
type CharsetExtractor struct {
	NullReplacer
	DebugMode bool
	charset   *Charset
	err       error
}

// NewCharsetExtractor creates an extractor with an empty charset.
func NewCharsetExtractor() *CharsetExtractor {
	return &CharsetExtractor{charset: NewCharset()}
}

// Extract walks ast and returns the collected charset.
func (v *CharsetExtractor) Extract(ast *js.AST) (*Charset, error) {
	NewReplaceTraverser(v, v.DebugMode).Traverse(ast)
	if v.err != nil {
		return nil, v.err
	}
	return v.charset, nil
}

func (v *CharsetExtractor) EnterNode(n js.INode, _ *Path) bool {
	switch node := n.(type) {
	case *js.Property:
		if node.Name != nil {
			v.addLiteral(&node.Name.Literal)
		}
	case *js.BindingObjectItem:
		if node.Key != nil {
			v.addLiteral(&node.Key.Literal)
		}
	case *js.MethodDecl:
		v.addLiteral(&node.Name.Literal)
	case *js.Field:
		v.addLiteral(&node.Name.Literal)
	default:
		if lit, ok := astutil.StringLiteral(n); ok {
			v.addLiteral(lit)
		}
	}
	return true
}

func (v *CharsetExtractor) addLiteral(lit *js.LiteralExpr) {
	if lit.TokenType != js.StringToken || v.err != nil {
		return
	}
	units, err := astutil.DecodeString(lit.Data)
	if err != nil {
		v.err = fmt.Errorf("failed to decode string literal: %w", err)
		return
	}
	if v.DebugMode {
		fmt.Printf("DEBUG: Adding %d code units from %s\n", len(units), lit.Data)
	}
	v.charset.Add(units)
}
