package graph

import (
	"github.com/zheng/callmap/internal/decl"
	"github.com/zheng/callmap/internal/syntax"
)

// Stats describes one build
type Stats struct {
	Roots            int `json:"roots"`
	Nodes            int `json:"nodes"`
	Edges            int `json:"edges"`
	Placeholders     int `json:"placeholders"`
	ClosureCallEdges int `json:"closure_call_edges"`
	DispatchEdges    int `json:"dispatch_edges"`
}

// Add accumulates o into s
func (s *Stats) Add(o Stats) {
	s.Roots += o.Roots
	s.Nodes += o.Nodes
	s.Edges += o.Edges
	s.Placeholders += o.Placeholders
	s.ClosureCallEdges += o.ClosureCallEdges
	s.DispatchEdges += o.DispatchEdges
}

type placeholderKey struct {
	receiver string
	selector string
	instance bool
}

// Builder walks the top-level declarations of a translation unit and records
// every call it finds into a graph.
type Builder struct {
	g            *Graph
	stats        Stats
	claimed      map[*syntax.Node]bool // closures walked as their own caller
	placeholders map[placeholderKey]*decl.Placeholder
}

// NewBuilder creates a builder for a fresh graph
func NewBuilder(path string) *Builder {
	return &Builder{
		g:            New(path),
		claimed:      make(map[*syntax.Node]bool),
		placeholders: make(map[placeholderKey]*decl.Placeholder),
	}
}

// Build constructs the call graph of u
func Build(u *syntax.Unit) (*Graph, Stats) {
	b := NewBuilder(u.Path)
	b.AddDecls(u.Decls)
	return b.Graph(), b.Stats()
}

// Graph returns the graph built so far
func (b *Builder) Graph() *Graph { return b.g }

// Stats returns the counters of the build so far
func (b *Builder) Stats() Stats {
	s := b.stats
	s.Nodes = b.g.Len()
	s.Edges = b.g.EdgeCount()
	s.Placeholders = len(b.placeholders)
	return s
}

// AddDecls treats every eligible defining declaration as a root and walks
// its body.
func (b *Builder) AddDecls(decls []syntax.TopDecl) {
	for _, td := range decls {
		d := td.Decl
		if d == nil || d.InSystem() {
			continue
		}
		// Only the defining occurrence is walked.
		if td.Body == nil {
			continue
		}
		if !decl.CanBeCallerInGraph(d) {
			continue
		}
		caller := b.g.GetOrInsertNode(d)
		b.stats.Roots++
		b.visit(caller, td.Body)
	}
}

func (b *Builder) visit(caller *Node, n *syntax.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case syntax.KindCall:
		b.visitCall(caller, n)
	case syntax.KindSend:
		b.visitSend(caller, n)
	case syntax.KindClosure:
		if b.claimed[n] {
			return
		}
	}
	for _, c := range n.Children {
		b.visit(caller, c)
	}
}

func (b *Builder) visitCall(caller *Node, n *syntax.Node) {
	if n.Callee != nil {
		b.addCall(caller, n.Callee)
		return
	}

	fn := n.Fn.StripParenImpCasts()
	if fn == nil || fn.Kind != syntax.KindClosure || fn.Closure == nil {
		return
	}
	callee, added := b.addCall(caller, fn.Closure)
	if callee == nil {
		return
	}
	if added {
		b.stats.ClosureCallEdges++
	}
	if b.claimed[fn] {
		return
	}
	b.claimed[fn] = true
	for _, c := range fn.Children {
		b.visit(callee, c)
	}
}

func (b *Builder) visitSend(caller *Node, n *syntax.Node) {
	s := n.Send
	if s == nil || s.Receiver == nil || s.Receiver.InSystem() {
		return
	}
	callee := s.Receiver.Lookup(s.Selector, s.Instance)
	if callee == nil {
		callee = b.placeholder(s)
	}
	if _, added := b.addCall(caller, callee); added {
		b.stats.DispatchEdges++
	}
}

// placeholder returns the stand-in for an unresolved send, one per receiver
// and selector.
func (b *Builder) placeholder(s *syntax.Send) *decl.Placeholder {
	key := placeholderKey{receiver: s.Receiver.Name(), selector: s.Selector, instance: s.Instance}
	if p, ok := b.placeholders[key]; ok {
		return p
	}
	p := decl.NewPlaceholder(s.Selector, s.Span)
	b.placeholders[key] = p
	return p
}

// addCall records caller → callee unless callee is filtered out.
// It returns the callee node and whether the edge is new.
func (b *Builder) addCall(caller *Node, callee decl.Decl) (*Node, bool) {
	if callee.InSystem() {
		return nil, false
	}
	if !decl.CanIncludeInGraph(callee) {
		return nil, false
	}
	n := b.g.GetOrInsertNode(callee)
	return n, b.g.AddEdge(caller, n)
}
