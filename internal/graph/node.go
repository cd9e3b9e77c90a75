package graph

import "github.com/zheng/callmap/internal/decl"

// NodeID is the arena index of a node within its graph
type NodeID int

// Node is one callable in the call graph
type Node struct {
	id      NodeID
	decl    decl.Decl
	callees []NodeID
}

// ID returns the arena index of the node
func (n *Node) ID() NodeID { return n.id }

// Decl returns the declaration the node stands for
func (n *Node) Decl() decl.Decl { return n.decl }

// Name returns the display name of the node's declaration
func (n *Node) Name() string { return n.decl.Name() }

// Callees returns the outgoing edges in insertion order
func (n *Node) Callees() []NodeID { return n.callees }

// IsPlaceholder reports whether the node was synthesized for an unresolved
// message send.
func (n *Node) IsPlaceholder() bool { return decl.IsPlaceholder(n.decl) }
