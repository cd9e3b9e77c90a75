package display

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/callmap/internal/decl/decltest"
	"github.com/zheng/callmap/internal/graph"
	"github.com/zheng/callmap/internal/storage"
)

func TestDump(t *testing.T) {
	g := graph.New("a.c")
	f := g.GetOrInsertNode(decltest.Fn("f"))
	h := g.GetOrInsertNode(decltest.Fn("h"))
	anon := g.GetOrInsertNode(decltest.Closure())
	g.AddEdge(f, h)
	g.AddEdge(f, anon)
	g.AddEdge(h, f)

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, g))

	want := " --- Call graph Dump --- \n" +
		"  Function: f calls: h < > \n" +
		"  Function: h calls: f \n" +
		"  Function: < > calls: \n"
	assert.Equal(t, want, buf.String())
}

func TestShortFuncName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"(*github.com/foo/bar/pkg.Type).Method", "(*pkg.Type).Method"},
		{"(github.com/foo/pkg.Type).Method", "(pkg.Type).Method"},
		{"github.com/foo/bar/pkg.FuncName", "pkg.FuncName"},
		{"main", "main"},
		{"", "< >"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortFuncName(tt.in))
		})
	}
}

func TestFormatCallTree(t *testing.T) {
	tree := []*storage.CallTreeNode{
		{
			Func: &storage.Func{Name: "main", File: "main.c", Line: 3},
			Children: []*storage.CallTreeNode{
				{Func: &storage.Func{Name: "run", File: "main.c", Line: 10}},
			},
		},
		{Func: &storage.Func{Name: "draw", File: "shape.m", Line: 7, Placeholder: true}},
	}

	maxWidth, maxDepth := 0, 0
	CalcTreeMaxWidth(tree, &maxWidth, 0, &maxDepth)
	assert.Equal(t, 4, maxWidth)
	assert.Equal(t, 1, maxDepth)

	out := FormatCallTree(tree, "", maxWidth, maxDepth, 0)
	lines := bytes.Split(bytes.TrimRight([]byte(out), "\n"), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "├── main")
	assert.Contains(t, string(lines[0]), "main.c:3")
	assert.Contains(t, string(lines[1]), "│   └── run")
	assert.Contains(t, string(lines[2]), "└── draw ?")
	assert.Contains(t, string(lines[2]), "shape.m:7")
}
