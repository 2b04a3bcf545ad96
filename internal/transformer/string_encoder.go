package transformer

import (
	"fmt"
	"math/rand"

	"github.com/tdewolff/parse/v2/js"
	"github.com/whit3rabbit/jsmixer/internal/astutil"
	"github.com/whit3rabbit/jsmixer/internal/scrambler"
)

// SkipReason tells why a string literal was left as is.
type SkipReason string

const (
	SkipPropertyKey   SkipReason = "property_key"
	SkipModuleRequest SkipReason = "module_request"
	SkipEmpty         SkipReason = "empty"
	SkipHeader        SkipReason = "header"
)

// StringEncoder replaces string literals with concatenations of single
// characters looked up in the header aliases of the enclosing scope:
// "ab" becomes (_a2[4]+_c2[0]).
type StringEncoder struct {
	NullReplacer
	DebugMode bool

	headers *Headers
	rnd     *rand.Rand
	err     error

	Encoded int
	Skipped map[SkipReason]int
}

// NewStringEncoder creates an encoder over the headers returned by the injector.
func NewStringEncoder(headers *Headers, rnd *rand.Rand) *StringEncoder {
	if rnd == nil {
		rnd = scrambler.NewRand(0)
	}
	return &StringEncoder{
		headers: headers,
		rnd:     rnd,
		Skipped: make(map[SkipReason]int),
	}
}

// Encode rewrites every eligible string literal of ast and returns the number
// of encoded literals.
func (v *StringEncoder) Encode(ast *js.AST) (int, error) {
	NewReplaceTraverser(v, v.DebugMode).Traverse(ast)
	if v.err != nil {
		return v.Encoded, v.err
	}
	return v.Encoded, nil
}

func (v *StringEncoder) GetReplacement(n js.INode, path *Path) (js.IExpr, bool) {
	if v.err != nil {
		return nil, false
	}
	lit, ok := n.(*js.LiteralExpr)
	if !ok || lit.TokenType != js.StringToken {
		return nil, false
	}
	if reason, skip := v.skipReason(lit, path); skip {
		v.Skipped[reason]++
		return nil, false
	}

	units, err := astutil.DecodeString(lit.Data)
	if err != nil {
		v.err = fmt.Errorf("failed to decode string literal: %w", err)
		return nil, false
	}
	if len(units) == 0 {
		v.Skipped[SkipEmpty]++
		return nil, false
	}

	decent, ok := v.headers.DecentMaps[path.Scope()]
	if !ok {
		v.err = fmt.Errorf("no header aliases declared for scope %T", path.Scope())
		return nil, false
	}

	expr, err := v.encodeUnits(units, decent)
	if err != nil {
		v.err = err
		return nil, false
	}
	if v.DebugMode {
		fmt.Printf("DEBUG: Encoding string literal %s\n", lit.Data)
	}
	v.Encoded++
	return expr, true
}

func (v *StringEncoder) skipReason(lit *js.LiteralExpr, path *Path) (SkipReason, bool) {
	if v.headers.IsHeaderLiteral(lit) {
		return SkipHeader, true
	}
	switch parent := path.Parent().(type) {
	case *js.Property, *js.BindingObjectItem:
		if path.Role() == RoleKey {
			return SkipPropertyKey, true
		}
	case *js.CallExpr:
		if path.Role() == RoleArgument && isModuleRequest(parent) {
			return SkipModuleRequest, true
		}
	}
	return "", false
}

// isModuleRequest reports whether call is require(...) or a dynamic import(...).
func isModuleRequest(call *js.CallExpr) bool {
	switch callee := call.X.(type) {
	case *js.Var:
		return string(callee.Name()) == "require"
	case *js.LiteralExpr:
		return callee.TokenType == js.ImportToken
	}
	return false
}

// encodeUnits builds (alias[i]+alias[j]+...) with one term per code unit, each
// term drawn from a random header.
func (v *StringEncoder) encodeUnits(units []uint16, decent DecentMap) (js.IExpr, error) {
	var expr js.IExpr
	for _, u := range units {
		h := v.rnd.Intn(len(v.headers.Entries))
		positions := v.headers.Positions(h, u)
		if len(positions) == 0 {
			return nil, fmt.Errorf("code unit %#04x is missing from the charset", u)
		}
		alias, ok := decent[v.headers.Entries[h].Name]
		if !ok {
			return nil, fmt.Errorf("header %s has no alias in scope", v.headers.Entries[h].Name)
		}
		term := &js.IndexExpr{
			X:    astutil.NewVar(alias),
			Y:    astutil.NewNumberLiteral(positions[v.rnd.Intn(len(positions))]),
			Prec: js.OpMember,
		}
		if expr == nil {
			expr = term
		} else {
			expr = &js.BinaryExpr{Op: js.AddToken, X: expr, Y: term}
		}
	}
	return &js.GroupExpr{X: expr}, nil
}
