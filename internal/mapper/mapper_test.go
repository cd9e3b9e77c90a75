package mapper

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/callmap/internal/decl/decltest"
	"github.com/zheng/callmap/internal/export"
	"github.com/zheng/callmap/internal/graph"
	"github.com/zheng/callmap/internal/syntax"
)

// fakeFrontend returns f <-> g for every file except those listed in fail
type fakeFrontend struct {
	exts []string
	fail map[string]error
}

func (f *fakeFrontend) Extensions() []string { return f.exts }

func (f *fakeFrontend) Parse(_ context.Context, path string) (*syntax.Unit, error) {
	if err := f.fail[path]; err != nil {
		return nil, err
	}
	fn, gn := decltest.Fn("f"), decltest.Fn("g")
	call := func(d *decltest.Func) *syntax.Node {
		return &syntax.Node{Kind: syntax.KindCall, Callee: d}
	}
	return &syntax.Unit{
		Path:     path,
		Language: "c",
		Decls: []syntax.TopDecl{
			{Decl: fn, Body: &syntax.Node{Children: []*syntax.Node{call(gn)}}},
			{Decl: gn, Body: &syntax.Node{Children: []*syntax.Node{call(fn)}}},
		},
	}, nil
}

type stubRenderer struct {
	err error
}

func (r *stubRenderer) Render(_ context.Context, _, imagePath string) error {
	if r.err != nil {
		return r.err
	}
	return os.WriteFile(imagePath, []byte("png"), 0o644)
}

type memSink struct {
	mu      sync.Mutex
	err     error
	stored  []string
	removed []string
}

func (s *memSink) Store(_ context.Context, language string, g *graph.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, language+":"+g.Path())
	return nil
}

func (s *memSink) Remove(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, path)
	return nil
}

func newExporter(t *testing.T, mode export.Mode, r export.Renderer) *export.Exporter {
	t.Helper()
	return &export.Exporter{
		BaseDir:  "/proj/src",
		OutRoot:  t.TempDir(),
		Mode:     mode,
		Renderer: r,
	}
}

func TestRun(t *testing.T) {
	fe := &fakeFrontend{
		exts: []string{".c"},
		fail: map[string]error{"/proj/src/bad.c": errors.New("boom")},
	}
	sink := &memSink{}
	metrics := NewMetrics()
	exp := newExporter(t, export.ModeDotOnly, &stubRenderer{})
	var out bytes.Buffer

	m := New(Options{
		Jobs:     2,
		Out:      &out,
		Exporter: exp,
		Sinks:    []Sink{sink},
		Metrics:  metrics,
		Logger:   log.New(io.Discard),
	}, fe)

	sum, err := m.Run(context.Background(), []string{
		"/proj/src/a.c",
		"/proj/src/bad.c",
		"/proj/src/notes.txt",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Files)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 2, sum.Stats.Roots)
	assert.Equal(t, 2, sum.Stats.Edges)
	assert.Equal(t, 0, sum.RenderFailures)

	text := out.String()
	assert.Contains(t, text, "Scan /proj/src/a.c\n")
	assert.Contains(t, text, "Scan /proj/src/bad.c\n")
	assert.Contains(t, text, " --- Call graph Dump --- \n  Function: f calls: g \n  Function: g calls: f \n")
	assert.Contains(t, text, "Write to "+filepath.Join(exp.OutRoot, "a.c.dot")+"\n")
	assert.FileExists(t, filepath.Join(exp.OutRoot, "a.c.dot"))

	assert.Equal(t, []string{"c:/proj/src/a.c"}, sink.stored)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.files.WithLabelValues("c", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.files.WithLabelValues("unknown", "failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.closureCallEdges))
}

func TestRunRenderFailure(t *testing.T) {
	fe := &fakeFrontend{exts: []string{".c"}}
	metrics := NewMetrics()
	var out bytes.Buffer

	m := New(Options{
		Quiet:    true,
		Out:      &out,
		Exporter: newExporter(t, export.ModeImageOnly, &stubRenderer{err: export.ErrRendererNotFound}),
		Metrics:  metrics,
		Logger:   log.New(io.Discard),
	}, fe)

	sum, err := m.Run(context.Background(), []string{"/proj/src/a.c", "/proj/src/b.c"})
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Failed, "a failed render is not a failed file")
	assert.Equal(t, 2, sum.RenderFailures)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.renderFailures))
	assert.Empty(t, out.String())
}

func TestMapFileSinkFailure(t *testing.T) {
	sink := &memSink{err: errors.New("disk full")}
	m := New(Options{Quiet: true, Sinks: []Sink{sink}, Logger: log.New(io.Discard)},
		&fakeFrontend{exts: []string{".c"}})

	res, err := m.MapFile(context.Background(), "/proj/src/a.c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Stats.Edges)

	require.NoError(t, m.Remove(context.Background(), "/proj/src/a.c"))
	assert.Equal(t, []string{"/proj/src/a.c"}, sink.removed)
}

func TestMapFileNoFrontend(t *testing.T) {
	m := New(Options{})
	_, err := m.MapFile(context.Background(), "a.rs")
	assert.True(t, errors.Is(err, ErrNoFrontend))
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := New(Options{Logger: log.New(io.Discard)}, &fakeFrontend{exts: []string{".c"}})
	_, err := m.Run(ctx, []string{"/proj/src/a.c"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFrontendDispatch(t *testing.T) {
	first := &fakeFrontend{exts: []string{".c", ".H"}}
	second := &fakeFrontend{exts: []string{".c", ".go"}}
	m := New(Options{}, first, second)

	exts := m.Extensions()
	sort.Strings(exts)
	assert.Equal(t, []string{".c", ".go", ".h"}, exts)
	assert.Same(t, first, m.frontends[".c"])
	assert.True(t, m.Handles("x/Y.h"))
	assert.False(t, m.Handles("x/y.rs"))
}

func TestMetricsWriteFile(t *testing.T) {
	metrics := NewMetrics()
	metrics.fileDone("go", nil)
	metrics.graphBuilt(graph.Stats{ClosureCallEdges: 2, DispatchEdges: 3})

	path := filepath.Join(t.TempDir(), "callmap.prom")
	require.NoError(t, metrics.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `callmap_files_total{language="go",status="ok"} 1`)
	assert.Contains(t, string(data), "callmap_closure_call_edges_total 2")
	assert.Contains(t, string(data), "callmap_dispatch_edges_total 3")

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.renderFailed() })
}
