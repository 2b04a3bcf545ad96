package transformer

import (
	"fmt"

	"github.com/tdewolff/parse/v2/js"
	"github.com/whit3rabbit/jsmixer/internal/astutil"
)

// protoKey keeps its special meaning only as a non-computed key.
const protoKey = "__proto__"

// AccessNormalizer rewrites implicit property access into computed access:
// `a.b` becomes `a["b"]` and `{b: 1}` becomes `{["b"]: 1}`, so that every
// property name ends up as a string literal the encoder can reach.
type AccessNormalizer struct {
	NullReplacer
	DebugMode bool

	MemberRewrites int
	KeyRewrites    int
}

// NewAccessNormalizer creates a new normalizer instance.
func NewAccessNormalizer() *AccessNormalizer {
	return &AccessNormalizer{}
}

// Normalize runs the normalizer over ast and returns the number of rewritten
// member accesses and property keys.
func (v *AccessNormalizer) Normalize(ast *js.AST) (members, keys int) {
	v.MemberRewrites, v.KeyRewrites = 0, 0
	NewReplaceTraverser(v, v.DebugMode).Traverse(ast)
	return v.MemberRewrites, v.KeyRewrites
}

func (v *AccessNormalizer) EnterNode(n js.INode, _ *Path) bool {
	switch node := n.(type) {
	case *js.Property:
		if node.Name == nil || node.Spread {
			return true
		}
		if _, isMethod := node.Value.(*js.MethodDecl); isMethod {
			return true
		}
		if v.computeKey(node.Name) {
			v.KeyRewrites++
		}
	case *js.BindingObjectItem:
		if v.computeKey(node.Key) {
			v.KeyRewrites++
		}
	}
	return true
}

// computeKey turns an identifier property name into a computed string key.
func (v *AccessNormalizer) computeKey(name *js.PropertyName) bool {
	if name == nil || name.IsComputed() || name.Literal.TokenType != js.IdentifierToken {
		return false
	}
	if string(name.Literal.Data) == protoKey {
		return false
	}
	if v.DebugMode {
		fmt.Printf("DEBUG: Computing property key %s\n", name.Literal.Data)
	}
	name.Computed = astutil.NewIdentifierNameLiteral(name.Literal.Data)
	return true
}

// GetReplacement swaps dot access for index access on the way back up, after
// the object expression has been normalized itself.
func (v *AccessNormalizer) GetReplacement(n js.INode, _ *Path) (js.IExpr, bool) {
	dot, ok := n.(*js.DotExpr)
	if !ok {
		return nil, false
	}
	var name []byte
	switch lit := dot.Y.(type) {
	case js.LiteralExpr:
		if lit.TokenType == js.IdentifierToken {
			name = lit.Data
		}
	case *js.LiteralExpr:
		if lit.TokenType == js.IdentifierToken {
			name = lit.Data
		}
	}
	if name == nil {
		// private names have no computed form
		return nil, false
	}
	v.MemberRewrites++
	return &js.IndexExpr{
		X:        dot.X,
		Y:        astutil.NewIdentifierNameLiteral(name),
		Prec:     dot.Prec,
		Optional: dot.Optional,
	}, true
}
