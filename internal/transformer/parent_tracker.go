package transformer

import (
	"github.com/tdewolff/parse/v2/js"
)

// Role describes which slot of its parent a node occupies.
type Role uint8

const (
	RoleRoot      Role = iota
	RoleStatement      // statement in a statement list
	RoleBody           // block body of a statement or function
	RoleValue          // generic expression slot
	RoleBinding        // declaration target or binding pattern
	RoleParam          // function parameter
	RoleDefault        // initializer of a binding or shorthand property
	RoleKey            // computed property or member name
	RoleObject         // object of a member access
	RoleMember         // index of a member access
	RoleCallee         // callee of a call, new or tagged template
	RoleArgument       // call or new argument
)

type frame struct {
	node js.INode
	role Role
}

// Path is the ancestor chain of the node being visited together with the stack
// of enclosing function scopes. The root scope is the *js.AST itself.
type Path struct {
	frames []frame
	scopes []js.INode
}

func newPath(root *js.AST) *Path {
	return &Path{
		frames: []frame{{node: root, role: RoleRoot}},
		scopes: []js.INode{root},
	}
}

func (p *Path) push(n js.INode, role Role) {
	p.frames = append(p.frames, frame{node: n, role: role})
}

func (p *Path) pop() {
	p.frames = p.frames[:len(p.frames)-1]
}

func (p *Path) pushScope(n js.INode) {
	p.scopes = append(p.scopes, n)
}

func (p *Path) popScope() {
	p.scopes = p.scopes[:len(p.scopes)-1]
}

// Node returns the node being visited.
func (p *Path) Node() js.INode {
	return p.frames[len(p.frames)-1].node
}

// Role returns the slot the current node occupies in its parent.
func (p *Path) Role() Role {
	return p.frames[len(p.frames)-1].role
}

// Parent returns the parent of the current node, or nil at the root.
func (p *Path) Parent() js.INode {
	if len(p.frames) < 2 {
		return nil
	}
	return p.frames[len(p.frames)-2].node
}

// Scope returns the innermost function whose body contains the current node, or
// the program. Parameters belong to the scope around their function.
func (p *Path) Scope() js.INode {
	return p.scopes[len(p.scopes)-1]
}

// Depth returns the number of ancestors of the current node.
func (p *Path) Depth() int {
	return len(p.frames) - 1
}

// FindAncestor walks up from the parent of the current node and returns the
// first ancestor matching pred.
func (p *Path) FindAncestor(pred func(js.INode) bool) js.INode {
	for i := len(p.frames) - 2; i >= 0; i-- {
		if pred(p.frames[i].node) {
			return p.frames[i].node
		}
	}
	return nil
}

// IsFunctionScope reports whether n introduces a function scope that receives
// its own header aliases.
func IsFunctionScope(n js.INode) bool {
	switch n.(type) {
	case *js.FuncDecl, *js.ArrowFunc, *js.MethodDecl:
		return true
	}
	return false
}

// FunctionBody returns the body of a function scope node.
func FunctionBody(n js.INode) *js.BlockStmt {
	switch f := n.(type) {
	case *js.FuncDecl:
		return &f.Body
	case *js.ArrowFunc:
		return &f.Body
	case *js.MethodDecl:
		return &f.Body
	case *js.AST:
		return &f.BlockStmt
	}
	return nil
}
