package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/callmap/internal/decl"
	"github.com/zheng/callmap/internal/decl/decltest"
	"github.com/zheng/callmap/internal/graph"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "callmap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// chain builds main -> run -> {step, draw?} and step -> run.
func chain(path string) *graph.Graph {
	g := graph.New(path)
	main := g.GetOrInsertNode(decltest.Fn("main"))
	run := g.GetOrInsertNode(decltest.Fn("run"))
	step := g.GetOrInsertNode(decltest.Fn("step"))
	draw := g.GetOrInsertNode(decl.NewPlaceholder("draw", decl.Span{File: path, Line: 9}))
	g.AddEdge(main, run)
	g.AddEdge(run, step)
	g.AddEdge(run, draw)
	g.AddEdge(step, run)
	return g
}

func names(funcs []*Func) []string {
	var out []string
	for _, f := range funcs {
		out = append(out, f.Name)
	}
	return out
}

func TestSaveGraphReplacesFile(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SaveGraph("a.c", "c", chain("a.c")))
	require.NoError(t, db.SaveGraph("a.c", "c", chain("a.c")))
	require.NoError(t, db.SaveGraph("b.c", "c", graph.New("b.c")))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, &Stats{Files: 2, Nodes: 4, Edges: 4}, stats)

	files, err := db.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.c", "b.c"}, files)

	require.NoError(t, db.DeleteFile("a.c"))
	stats, err = db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, &Stats{Files: 1}, stats)
}

func TestDirectQueries(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveGraph("a.c", "c", chain("a.c")))

	callers, err := db.GetDirectCallers("run")
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "step"}, names(callers))

	callees, err := db.GetDirectCallees("run")
	require.NoError(t, err)
	assert.Equal(t, []string{"draw", "step"}, names(callees))
	assert.True(t, callees[0].Placeholder)
	assert.Equal(t, "method", callees[0].Kind)
	assert.Equal(t, 9, callees[0].Line)
}

func TestCallTreeStopsOnCycles(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveGraph("a.c", "c", chain("a.c")))

	tree, err := db.GetDownstreamCallTree("main", 10)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	run := tree[0]
	assert.Equal(t, "run", run.Func.Name)
	require.Len(t, run.Children, 2)
	assert.Empty(t, run.Children[0].Children, "placeholders are leaves")
	step := run.Children[1]
	require.Len(t, step.Children, 1)
	assert.Equal(t, "run", step.Children[0].Func.Name)
	assert.Empty(t, step.Children[0].Children, "run is already on the path")

	up, err := db.GetUpstreamCallTree("step", 1)
	require.NoError(t, err)
	require.Len(t, up, 1)
	assert.Equal(t, "run", up[0].Func.Name)
	assert.Empty(t, up[0].Children)
}

func TestFindFuncsByPattern(t *testing.T) {
	db := openTestDB(t)
	g := graph.New("a.c")
	g.GetOrInsertNode(decltest.Fn("run_all"))
	g.GetOrInsertNode(decltest.Fn("run"))
	g.GetOrInsertNode(decltest.Fn("prerun"))
	require.NoError(t, db.SaveGraph("a.c", "c", g))
	require.NoError(t, db.SaveGraph("b.c", "c", g))

	funcs, err := db.FindFuncsByPattern("run")
	require.NoError(t, err)
	assert.Equal(t, []string{"run", "prerun", "run_all"}, names(funcs))
}
