package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/callmap/internal/decl"
	"github.com/zheng/callmap/internal/decl/decltest"
)

func TestGetOrInsertNode(t *testing.T) {
	g := New("a.c")
	def := decltest.Fn("f")
	proto := decltest.Proto(def)

	n1 := g.GetOrInsertNode(def)
	n2 := g.GetOrInsertNode(proto)
	n3 := g.GetOrInsertNode(def)

	assert.Same(t, n1, n2)
	assert.Same(t, n1, n3)
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, decl.Decl(def), n1.Decl())
	assert.Equal(t, NodeID(0), n1.ID())
}

func TestNodeLookup(t *testing.T) {
	g := New("a.c")
	f := decltest.Fn("f")

	_, ok := g.Node(f)
	assert.False(t, ok)
	assert.Equal(t, 0, g.Len(), "lookup must not insert")

	want := g.GetOrInsertNode(f)
	got, ok := g.Node(decltest.Proto(f))
	require.True(t, ok)
	assert.Same(t, want, got)

	assert.Nil(t, g.At(5))
	assert.Nil(t, g.At(-1))
	assert.Same(t, want, g.At(0))
}

func TestAddEdgeIdempotent(t *testing.T) {
	g := New("a.c")
	f := g.GetOrInsertNode(decltest.Fn("f"))
	h := g.GetOrInsertNode(decltest.Fn("h"))
	k := g.GetOrInsertNode(decltest.Fn("k"))

	assert.True(t, g.AddEdge(f, h))
	assert.False(t, g.AddEdge(f, h))
	assert.True(t, g.AddEdge(f, k))
	assert.True(t, g.AddEdge(f, f))
	assert.False(t, g.AddEdge(f, f))

	assert.Equal(t, []NodeID{h.ID(), k.ID(), f.ID()}, f.Callees())
	assert.Equal(t, 3, g.EdgeCount())
	assert.Equal(t, []*Node{h, k, f}, g.Callees(f))
	assert.Equal(t, []Edge{{f.ID(), h.ID()}, {f.ID(), k.ID()}, {f.ID(), f.ID()}}, g.Edges())
}

func TestAddEdgeForeignNode(t *testing.T) {
	g1 := New("a.c")
	g2 := New("b.c")
	f := g1.GetOrInsertNode(decltest.Fn("f"))
	g2.GetOrInsertNode(decltest.Fn("x"))
	h := g2.GetOrInsertNode(decltest.Fn("h"))

	assert.Panics(t, func() { g1.AddEdge(f, h) })
}

func TestNodesInsertionOrder(t *testing.T) {
	g := New("a.c")
	names := []string{"c", "a", "b"}
	for _, name := range names {
		g.GetOrInsertNode(decltest.Fn(name))
	}
	var got []string
	for _, n := range g.Nodes() {
		got = append(got, n.Name())
	}
	assert.Equal(t, names, got)
}

func TestPlaceholderNodes(t *testing.T) {
	g := New("a.m")
	g.GetOrInsertNode(decltest.Fn("f"))
	p := g.GetOrInsertNode(decl.NewPlaceholder("draw", decl.Span{}))

	assert.True(t, p.IsPlaceholder())
	assert.Equal(t, 1, g.Placeholders())
}
