package transformer

import (
	"fmt"

	"github.com/tdewolff/parse/v2/js"
)

// NodeReplacer is an interface for visitors that can replace nodes during traversal.
// Replacements are honoured for expression slots only.
type NodeReplacer interface {
	EnterNode(n js.INode, path *Path) bool
	GetReplacement(n js.INode, path *Path) (js.IExpr, bool)
	LeaveNode(n js.INode, path *Path)
}

// NullReplacer implements NodeReplacer with no-ops, for embedding.
type NullReplacer struct{}

func (NullReplacer) EnterNode(js.INode, *Path) bool                  { return true }
func (NullReplacer) GetReplacement(js.INode, *Path) (js.IExpr, bool) { return nil, false }
func (NullReplacer) LeaveNode(js.INode, *Path)                       {}

// ReplaceTraverser walks a JavaScript AST in source order, keeps track of the
// ancestor path and the enclosing function scope, and lets its visitor swap out
// expressions on the way back up.
type ReplaceTraverser struct {
	visitor NodeReplacer
	path    *Path
	debug   bool
}

// NewReplaceTraverser creates a new traverser with node replacement support
func NewReplaceTraverser(v NodeReplacer, debug bool) *ReplaceTraverser {
	return &ReplaceTraverser{
		visitor: v,
		debug:   debug,
	}
}

// Traverse walks the whole program. The program itself is the root scope.
func (t *ReplaceTraverser) Traverse(ast *js.AST) {
	if ast == nil {
		return
	}
	t.path = newPath(ast)
	if t.visitor.EnterNode(ast, t.path) {
		t.stmts(ast.BlockStmt.List)
	}
	t.visitor.LeaveNode(ast, t.path)
}

func (t *ReplaceTraverser) expr(e js.IExpr, role Role) js.IExpr {
	if e == nil {
		return nil
	}
	if r, ok := t.walk(e, role).(js.IExpr); ok && r != nil {
		return r
	}
	return e
}

func (t *ReplaceTraverser) stmt(s js.IStmt) {
	if s != nil {
		t.walk(s, RoleStatement)
	}
}

func (t *ReplaceTraverser) stmts(list []js.IStmt) {
	for _, s := range list {
		t.stmt(s)
	}
}

func (t *ReplaceTraverser) binding(b js.IBinding, role Role) {
	if b != nil {
		t.walk(b, role)
	}
}

func (t *ReplaceTraverser) bindingElement(el *js.BindingElement, role Role) {
	t.binding(el.Binding, role)
	el.Default = t.expr(el.Default, RoleDefault)
}

func (t *ReplaceTraverser) params(p *js.Params) {
	for i := range p.List {
		t.bindingElement(&p.List[i], RoleParam)
	}
	t.binding(p.Rest, RoleParam)
}

func (t *ReplaceTraverser) block(b *js.BlockStmt) {
	if b != nil {
		t.walk(b, RoleBody)
	}
}

// functionBody walks a function body with fn as the enclosing scope.
func (t *ReplaceTraverser) functionBody(fn js.INode, body *js.BlockStmt) {
	t.path.pushScope(fn)
	t.walk(body, RoleBody)
	t.path.popScope()
}

func (t *ReplaceTraverser) propertyName(name *js.PropertyName) {
	if name != nil && name.Computed != nil {
		name.Computed = t.expr(name.Computed, RoleKey)
	}
}

// walk visits n and its children. It returns the replacement for n, or n itself.
func (t *ReplaceTraverser) walk(node js.INode, role Role) js.INode {
	if t.debug {
		fmt.Printf("DEBUG: Traversing node type: %T\n", node)
	}

	t.path.push(node, role)
	defer t.path.pop()

	if t.visitor.EnterNode(node, t.path) {
		t.children(node)
	}
	t.visitor.LeaveNode(node, t.path)

	if replacement, ok := t.visitor.GetReplacement(node, t.path); ok {
		if t.debug {
			fmt.Printf("DEBUG: Replacing node %T with %T\n", node, replacement)
		}
		return replacement
	}
	return node
}

func (t *ReplaceTraverser) children(node js.INode) {
	switch n := node.(type) {
	// statements
	case *js.BlockStmt:
		t.stmts(n.List)
	case *js.ExprStmt:
		n.Value = t.expr(n.Value, RoleValue)
	case *js.VarDecl:
		for i := range n.List {
			t.bindingElement(&n.List[i], RoleBinding)
		}
	case *js.IfStmt:
		n.Cond = t.expr(n.Cond, RoleValue)
		t.stmt(n.Body)
		t.stmt(n.Else)
	case *js.DoWhileStmt:
		t.stmt(n.Body)
		n.Cond = t.expr(n.Cond, RoleValue)
	case *js.WhileStmt:
		n.Cond = t.expr(n.Cond, RoleValue)
		t.stmt(n.Body)
	case *js.ForStmt:
		n.Init = t.expr(n.Init, RoleValue)
		n.Cond = t.expr(n.Cond, RoleValue)
		n.Post = t.expr(n.Post, RoleValue)
		t.block(n.Body)
	case *js.ForInStmt:
		n.Init = t.expr(n.Init, RoleBinding)
		n.Value = t.expr(n.Value, RoleValue)
		t.block(n.Body)
	case *js.ForOfStmt:
		n.Init = t.expr(n.Init, RoleBinding)
		n.Value = t.expr(n.Value, RoleValue)
		t.block(n.Body)
	case *js.SwitchStmt:
		n.Init = t.expr(n.Init, RoleValue)
		for i := range n.List {
			t.walk(&n.List[i], RoleStatement)
		}
	case *js.CaseClause:
		n.Cond = t.expr(n.Cond, RoleValue)
		t.stmts(n.List)
	case *js.ReturnStmt:
		n.Value = t.expr(n.Value, RoleValue)
	case *js.ThrowStmt:
		n.Value = t.expr(n.Value, RoleValue)
	case *js.WithStmt:
		n.Cond = t.expr(n.Cond, RoleValue)
		t.stmt(n.Body)
	case *js.LabelledStmt:
		t.stmt(n.Value)
	case *js.TryStmt:
		t.block(n.Body)
		t.binding(n.Binding, RoleBinding)
		t.block(n.Catch)
		t.block(n.Finally)
	case *js.ImportStmt:
		// module specifiers and aliases are raw bytes, nothing to visit
	case *js.ExportStmt:
		n.Decl = t.expr(n.Decl, RoleValue)

	// functions and classes
	case *js.FuncDecl:
		if n.Name != nil {
			t.walk(n.Name, RoleBinding)
		}
		t.params(&n.Params)
		t.functionBody(n, &n.Body)
	case *js.ArrowFunc:
		t.params(&n.Params)
		t.functionBody(n, &n.Body)
	case *js.MethodDecl:
		t.propertyName(&n.Name.PropertyName)
		t.params(&n.Params)
		t.functionBody(n, &n.Body)
	case *js.ClassDecl:
		if n.Name != nil {
			t.walk(n.Name, RoleBinding)
		}
		n.Extends = t.expr(n.Extends, RoleValue)
		for i := range n.List {
			el := &n.List[i]
			switch {
			case el.StaticBlock != nil:
				t.block(el.StaticBlock)
			case el.Method != nil:
				t.walk(el.Method, RoleValue)
			default:
				t.walk(&el.Field, RoleValue)
			}
		}
	case *js.Field:
		t.propertyName(&n.Name.PropertyName)
		n.Init = t.expr(n.Init, RoleValue)

	// bindings
	case *js.BindingArray:
		for i := range n.List {
			t.bindingElement(&n.List[i], RoleBinding)
		}
		t.binding(n.Rest, RoleBinding)
	case *js.BindingObject:
		for i := range n.List {
			t.walk(&n.List[i], RoleBinding)
		}
		if n.Rest != nil {
			t.walk(n.Rest, RoleBinding)
		}
	case *js.BindingObjectItem:
		t.propertyName(n.Key)
		t.bindingElement(&n.Value, RoleBinding)

	// expressions
	case *js.GroupExpr:
		n.X = t.expr(n.X, RoleValue)
	case *js.ArrayExpr:
		for i := range n.List {
			n.List[i].Value = t.expr(n.List[i].Value, RoleValue)
		}
	case *js.ObjectExpr:
		for i := range n.List {
			t.walk(&n.List[i], RoleValue)
		}
	case *js.Property:
		t.propertyName(n.Name)
		n.Value = t.expr(n.Value, RoleValue)
		n.Init = t.expr(n.Init, RoleDefault)
	case *js.TemplateExpr:
		n.Tag = t.expr(n.Tag, RoleCallee)
		for i := range n.List {
			n.List[i].Expr = t.expr(n.List[i].Expr, RoleValue)
		}
	case *js.IndexExpr:
		n.X = t.expr(n.X, RoleObject)
		n.Y = t.expr(n.Y, RoleMember)
	case *js.DotExpr:
		// Y is a property name or a private name, never an expression slot
		n.X = t.expr(n.X, RoleObject)
	case *js.NewExpr:
		n.X = t.expr(n.X, RoleCallee)
		if n.Args != nil {
			t.args(n.Args)
		}
	case *js.CallExpr:
		n.X = t.expr(n.X, RoleCallee)
		t.args(&n.Args)
	case *js.UnaryExpr:
		n.X = t.expr(n.X, RoleValue)
	case *js.BinaryExpr:
		n.X = t.expr(n.X, RoleValue)
		n.Y = t.expr(n.Y, RoleValue)
	case *js.CondExpr:
		n.Cond = t.expr(n.Cond, RoleValue)
		n.X = t.expr(n.X, RoleValue)
		n.Y = t.expr(n.Y, RoleValue)
	case *js.YieldExpr:
		n.X = t.expr(n.X, RoleValue)
	case *js.CommaExpr:
		for i := range n.List {
			n.List[i] = t.expr(n.List[i], RoleValue)
		}

	case *js.Var, *js.LiteralExpr, js.LiteralExpr, *js.NewTargetExpr, *js.ImportMetaExpr,
		*js.BranchStmt, *js.DirectivePrologueStmt, *js.Comment, *js.EmptyStmt, *js.DebuggerStmt:
		// leaves
	default:
		if t.debug {
			fmt.Printf("DEBUG: Unhandled node type: %T\n", node)
		}
	}
}

func (t *ReplaceTraverser) args(a *js.Args) {
	for i := range a.List {
		a.List[i].Value = t.expr(a.List[i].Value, RoleArgument)
	}
}
