package transformer

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/tdewolff/parse/v2/js"
	"github.com/whit3rabbit/jsmixer/internal/astutil"
	"github.com/whit3rabbit/jsmixer/internal/scrambler"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz"

// ErrInvalidVariableCount is returned for a header count below one.
var ErrInvalidVariableCount = errors.New("string variable count must be at least 1")

// HeaderEntry is one root-level lookup string. Value is a permutation of the
// full charset.
type HeaderEntry struct {
	Name  string
	Value []uint16
}

// DecentMap maps a header name to the alias visible in one scope.
type DecentMap map[string]string

// Headers is the result of header injection, consumed by the encoder.
type Headers struct {
	Entries []HeaderEntry
	// DecentMaps is keyed by the scope node: the *js.AST for the program, or a
	// *js.FuncDecl, *js.ArrowFunc or *js.MethodDecl.
	DecentMaps map[js.INode]DecentMap
	// Literals holds the header value literals the encoder must leave alone.
	Literals map[*js.LiteralExpr]bool
	// positions[i][u] lists the indices of code unit u in Entries[i].Value.
	positions []map[uint16][]int
}

// Positions returns every index of u in the value of header i.
func (h *Headers) Positions(i int, u uint16) []int {
	return h.positions[i][u]
}

// IsHeaderLiteral reports whether lit is one of the injected header values.
func (h *Headers) IsHeaderLiteral(lit *js.LiteralExpr) bool {
	return h.Literals[lit]
}

// HeaderInjector declares the K header strings at the top of the program and
// K scope-local aliases at the top of every function body.
type HeaderInjector struct {
	NullReplacer
	DebugMode bool

	count   int
	rnd     *rand.Rand
	names   *scrambler.Scrambler
	headers *Headers
	order   []int // header indices, reshuffled for every function
}

// NewHeaderInjector creates an injector for count headers. names must already
// know every identifier of the program, see CollectNames.
func NewHeaderInjector(count int, rnd *rand.Rand, names *scrambler.Scrambler) (*HeaderInjector, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidVariableCount, count)
	}
	if rnd == nil {
		rnd = scrambler.NewRand(0)
	}
	return &HeaderInjector{
		count: count,
		rnd:   rnd,
		names: names,
	}, nil
}

// Inject builds the headers from charset and rewrites ast in place.
func (v *HeaderInjector) Inject(ast *js.AST, charset *Charset) (*Headers, error) {
	if ast == nil {
		return nil, errors.New("nil program")
	}
	v.headers = &Headers{
		DecentMaps: make(map[js.INode]DecentMap),
		Literals:   make(map[*js.LiteralExpr]bool),
	}

	rootMap := make(DecentMap, v.count)
	decls := make([]js.IStmt, 0, v.count)
	for i := 0; i < v.count; i++ {
		value := charset.Units()
		v.rnd.Shuffle(len(value), func(a, b int) { value[a], value[b] = value[b], value[a] })

		name := v.names.Generate(alphabet[i%len(alphabet) : i%len(alphabet)+1])
		lit := &js.LiteralExpr{TokenType: js.StringToken, Data: astutil.EncodeString(value)}
		v.headers.Entries = append(v.headers.Entries, HeaderEntry{Name: name, Value: value})
		v.headers.Literals[lit] = true
		v.headers.positions = append(v.headers.positions, indexUnits(value))
		rootMap[name] = name
		decls = append(decls, astutil.NewVarDecl(name, lit))
		v.order = append(v.order, i)
	}
	v.headers.DecentMaps[ast] = rootMap
	ast.List = prependStmts(ast.List, decls)

	NewReplaceTraverser(v, v.DebugMode).Traverse(ast)
	return v.headers, nil
}

func indexUnits(value []uint16) map[uint16][]int {
	idx := make(map[uint16][]int)
	for i, u := range value {
		idx[u] = append(idx[u], i)
	}
	return idx
}

// EnterNode declares the aliases before the body is walked, so nested
// functions get their names after their parent.
func (v *HeaderInjector) EnterNode(n js.INode, _ *Path) bool {
	if !IsFunctionScope(n) {
		return true
	}
	body := FunctionBody(n)
	v.rnd.Shuffle(len(v.order), func(a, b int) { v.order[a], v.order[b] = v.order[b], v.order[a] })

	decent := make(DecentMap, v.count)
	decls := make([]js.IStmt, 0, v.count)
	for i, h := range v.order {
		header := v.headers.Entries[h].Name
		alias := v.names.Generate(alphabet[i%len(alphabet) : i%len(alphabet)+1])
		decent[header] = alias
		decls = append(decls, astutil.NewVarDecl(alias, astutil.NewVar(header)))
	}
	if v.DebugMode {
		fmt.Printf("DEBUG: Declaring %d aliases in %T\n", len(decls), n)
	}
	v.headers.DecentMaps[n] = decent
	body.List = prependStmts(body.List, decls)
	return true
}

// prependStmts inserts decls after any directive prologue or preserved
// license comment at the start of list.
func prependStmts(list []js.IStmt, decls []js.IStmt) []js.IStmt {
	at := 0
	for at < len(list) {
		switch list[at].(type) {
		case *js.DirectivePrologueStmt, *js.Comment:
			at++
			continue
		}
		break
	}
	out := make([]js.IStmt, 0, len(list)+len(decls))
	out = append(out, list[:at]...)
	out = append(out, decls...)
	return append(out, list[at:]...)
}

// NameCollector gathers every identifier name that occurs in a program so that
// injected names cannot collide with or shadow any of them.
type NameCollector struct {
	NullReplacer
	names map[string]bool
}

// CollectNames returns the set of identifier names used in ast.
func CollectNames(ast *js.AST) []string {
	c := &NameCollector{names: make(map[string]bool)}
	NewReplaceTraverser(c, false).Traverse(ast)
	out := make([]string, 0, len(c.names))
	for name := range c.names {
		out = append(out, name)
	}
	return out
}

func (c *NameCollector) EnterNode(n js.INode, _ *Path) bool {
	switch node := n.(type) {
	case *js.Var:
		c.names[string(node.Name())] = true
	case *js.ImportStmt:
		if node.Default != nil {
			c.names[string(node.Default)] = true
		}
		c.addAliases(node.List)
	case *js.ExportStmt:
		c.addAliases(node.List)
	}
	return true
}

func (c *NameCollector) addAliases(list []js.Alias) {
	for _, alias := range list {
		if alias.Name != nil {
			c.names[string(alias.Name)] = true
		}
		if alias.Binding != nil {
			c.names[string(alias.Binding)] = true
		}
	}
}
