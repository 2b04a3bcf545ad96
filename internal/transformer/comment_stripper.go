// Package transformer holds implementations for specific obfuscation transformations.
package transformer

import (
	"bytes"
	"fmt"

	"github.com/tdewolff/parse/v2/js"
)

// CommentStripperVisitor removes the preserved comments (`/*! ... */` and
// `//! ...`) the parser keeps as statements. A leading shebang line is kept.
type CommentStripperVisitor struct {
	NullReplacer
	DebugMode     bool
	commentsFound int
}

// NewCommentStripperVisitor creates a new visitor instance.
func NewCommentStripperVisitor() *CommentStripperVisitor {
	return &CommentStripperVisitor{}
}

// Strip removes the comments from ast and returns how many were dropped.
func (v *CommentStripperVisitor) Strip(ast *js.AST) int {
	v.commentsFound = 0
	NewReplaceTraverser(v, v.DebugMode).Traverse(ast)
	return v.commentsFound
}

// EnterNode filters statement lists before their children are walked.
func (v *CommentStripperVisitor) EnterNode(n js.INode, _ *Path) bool {
	switch node := n.(type) {
	case *js.AST:
		node.List = v.filter(node.List, true)
	case *js.BlockStmt:
		node.List = v.filter(node.List, false)
	case *js.CaseClause:
		node.List = v.filter(node.List, false)
	}
	return true
}

func (v *CommentStripperVisitor) filter(list []js.IStmt, root bool) []js.IStmt {
	out := list[:0]
	for i, stmt := range list {
		c, ok := stmt.(*js.Comment)
		if !ok || (root && i == 0 && bytes.HasPrefix(c.Value, []byte("#!"))) {
			out = append(out, stmt)
			continue
		}
		v.commentsFound++
		if v.DebugMode {
			fmt.Printf("Removing comment: %s\n", c.Value)
		}
	}
	return out
}
