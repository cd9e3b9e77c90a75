// Package graph holds the per translation unit call graph and the walk that
// populates it.
package graph

import (
	"fmt"

	"github.com/zheng/callmap/internal/decl"
)

// Graph is an arena of nodes keyed by declaration identity.
// Nodes are never removed; iteration follows insertion order.
type Graph struct {
	path  string
	nodes []*Node
	index map[decl.Decl]NodeID
	edges map[Edge]struct{}
}

// New creates an empty graph for the translation unit at path
func New(path string) *Graph {
	return &Graph{
		path:  path,
		index: make(map[decl.Decl]NodeID),
		edges: make(map[Edge]struct{}),
	}
}

// Path returns the source path of the translation unit
func (g *Graph) Path() string { return g.path }

// GetOrInsertNode returns the node for d's identity, creating it on first use
func (g *Graph) GetOrInsertNode(d decl.Decl) *Node {
	key := decl.Identity(d)
	if id, ok := g.index[key]; ok {
		return g.nodes[id]
	}
	n := &Node{id: NodeID(len(g.nodes)), decl: key}
	g.nodes = append(g.nodes, n)
	g.index[key] = n.id
	return n
}

// Node returns the node for d's identity without creating one
func (g *Graph) Node(d decl.Decl) (*Node, bool) {
	id, ok := g.index[decl.Identity(d)]
	if !ok {
		return nil, false
	}
	return g.nodes[id], true
}

// At returns the node with the given arena index
func (g *Graph) At(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// Len returns the number of nodes
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns the nodes in insertion order
func (g *Graph) Nodes() []*Node { return g.nodes }

// EdgeCount returns the number of distinct edges
func (g *Graph) EdgeCount() int { return len(g.edges) }

// AddEdge records caller → callee once. It reports whether the edge is new.
// Both nodes must belong to g.
func (g *Graph) AddEdge(caller, callee *Node) bool {
	if g.At(caller.id) != caller || g.At(callee.id) != callee {
		panic(fmt.Sprintf("graph: edge %s -> %s crosses graphs", caller.Name(), callee.Name()))
	}
	e := Edge{From: caller.id, To: callee.id}
	if _, ok := g.edges[e]; ok {
		return false
	}
	g.edges[e] = struct{}{}
	caller.callees = append(caller.callees, callee.id)
	return true
}

// Callees resolves n's outgoing edges to nodes
func (g *Graph) Callees(n *Node) []*Node {
	out := make([]*Node, 0, len(n.callees))
	for _, id := range n.callees {
		out = append(out, g.nodes[id])
	}
	return out
}

// Placeholders returns the number of placeholder nodes
func (g *Graph) Placeholders() int {
	count := 0
	for _, n := range g.nodes {
		if n.IsPlaceholder() {
			count++
		}
	}
	return count
}
