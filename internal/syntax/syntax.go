// Package syntax is the front-end neutral statement tree consumed by the call
// graph builder. Front ends lower their parse trees into it; only the
// constructs that can produce call edges are distinguished.
package syntax

import "github.com/zheng/callmap/internal/decl"

// NodeKind classifies a tree node
type NodeKind int

const (
	KindOther        NodeKind = iota
	KindCall                  // call expression
	KindSend                  // dynamically dispatched message send
	KindClosure               // closure literal
	KindParen                 // parenthesized expression
	KindImplicitConv          // implicit conversion inserted by the front end
)

func (k NodeKind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindSend:
		return "send"
	case KindClosure:
		return "closure"
	case KindParen:
		return "paren"
	case KindImplicitConv:
		return "implicit-conv"
	default:
		return "other"
	}
}

// Node is one statement or expression
type Node struct {
	Kind NodeKind

	// Callee is the statically resolved callee of a KindCall node, nil when
	// the call goes through an expression.
	Callee decl.Decl

	// Fn is the callee expression of a KindCall node.
	Fn *Node

	// Closure is the declaration of a KindClosure node.
	Closure decl.Decl

	// Send describes a KindSend node.
	Send *Send

	Children []*Node
}

// Send is a message send: a method call that is bound at run time
type Send struct {
	Selector string
	// Instance is false for class-level messages.
	Instance bool
	// Receiver is the statically known receiver interface or class, nil when
	// the receiver type is unknown.
	Receiver Receiver
	Span     decl.Span
}

// Receiver is the static type a message is sent to
type Receiver interface {
	Name() string
	InSystem() bool
	// Lookup finds the implementation of selector visible in the current
	// translation unit, nil when there is none.
	Lookup(selector string, instance bool) decl.Decl
}

// StripParenImpCasts returns n with any enclosing parentheses and implicit
// conversions removed.
func (n *Node) StripParenImpCasts() *Node {
	for n != nil && (n.Kind == KindParen || n.Kind == KindImplicitConv) && len(n.Children) == 1 {
		n = n.Children[0]
	}
	return n
}

// Walk visits n and its descendants depth-first in source order
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// TopDecl is a top-level declaration of a translation unit together with its
// body when this occurrence defines it.
type TopDecl struct {
	Decl decl.Decl
	Body *Node
}

// Unit is a parsed translation unit
type Unit struct {
	Path     string
	Language string
	Decls    []TopDecl
}
