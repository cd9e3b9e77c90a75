// Package mapper drives call graph extraction over a set of files: one fresh
// graph per translation unit, printed, exported and persisted.
package mapper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/zheng/callmap/internal/display"
	"github.com/zheng/callmap/internal/export"
	"github.com/zheng/callmap/internal/graph"
	"github.com/zheng/callmap/internal/syntax"
)

// ErrNoFrontend is returned for files no front end handles
var ErrNoFrontend = errors.New("no front end for file")

// Frontend parses one file into a translation unit
type Frontend interface {
	Parse(ctx context.Context, path string) (*syntax.Unit, error)
	Extensions() []string
}

// Sink persists graphs
type Sink interface {
	Store(ctx context.Context, language string, g *graph.Graph) error
	Remove(ctx context.Context, path string) error
}

// Options configures a Mapper
type Options struct {
	// Jobs bounds how many files are processed at once.
	Jobs int
	// Quiet suppresses the "Scan" lines and the dump.
	Quiet bool
	// Out receives the console output. Nil discards it.
	Out io.Writer
	// Exporter writes the DOT and image files. Nil skips exporting.
	Exporter *export.Exporter
	Sinks    []Sink
	Metrics  *Metrics
	Logger   *log.Logger
}

// FileResult describes one processed file
type FileResult struct {
	Path     string
	Language string
	Stats    graph.Stats
	Export   *export.Result
}

// Summary describes a run
type Summary struct {
	Files          int
	Failed         int
	RenderFailures int
	Stats          graph.Stats
}

// Mapper maps files to call graphs
type Mapper struct {
	frontends map[string]Frontend
	exporter  *export.Exporter
	sinks     []Sink
	metrics   *Metrics
	logger    *log.Logger
	out       io.Writer
	quiet     bool
	jobs      int
}

// New creates a mapper dispatching files to frontends by extension. When
// two front ends claim an extension the first wins.
func New(opts Options, frontends ...Frontend) *Mapper {
	m := &Mapper{
		frontends: make(map[string]Frontend),
		sinks:     opts.Sinks,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		quiet:     opts.Quiet,
		jobs:      opts.Jobs,
	}
	if m.logger == nil {
		m.logger = log.Default()
	}
	if m.jobs < 1 {
		m.jobs = runtime.NumCPU()
	}

	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	m.out = &syncWriter{w: out}

	if opts.Exporter != nil {
		exp := *opts.Exporter
		exp.Out = m.out
		if exp.Logger == nil {
			exp.Logger = m.logger
		}
		m.exporter = &exp
	}

	for _, fe := range frontends {
		for _, ext := range fe.Extensions() {
			ext = strings.ToLower(ext)
			if _, ok := m.frontends[ext]; !ok {
				m.frontends[ext] = fe
			}
		}
	}
	return m
}

// Extensions returns every file extension some front end handles
func (m *Mapper) Extensions() []string {
	exts := make([]string, 0, len(m.frontends))
	for ext := range m.frontends {
		exts = append(exts, ext)
	}
	return exts
}

// Handles reports whether path has a front end
func (m *Mapper) Handles(path string) bool {
	_, ok := m.frontends[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Run maps files with bounded parallelism. A failing file is logged and
// counted; it never stops the others. Only cancellation ends a run early.
func (m *Mapper) Run(ctx context.Context, files []string) (*Summary, error) {
	results := make([]*FileResult, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.jobs)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = m.MapFile(gctx, path)
			if errs[i] != nil {
				m.logger.Error("failed to map file", "file", path, "err", errs[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum := &Summary{Files: len(files)}
	for i, res := range results {
		if errs[i] != nil {
			sum.Failed++
		}
		if res == nil {
			continue
		}
		sum.Stats.Add(res.Stats)
		if res.Export != nil && res.Export.RenderErr != nil {
			sum.RenderFailures++
		}
	}
	return sum, nil
}

// MapFile builds, prints, exports and persists the graph of one file. The
// result is returned alongside sink errors since the graph itself is valid.
func (m *Mapper) MapFile(ctx context.Context, path string) (res *FileResult, err error) {
	fe, ok := m.frontends[strings.ToLower(filepath.Ext(path))]
	if !ok {
		m.metrics.fileDone("", ErrNoFrontend)
		return nil, fmt.Errorf("%s: %w", path, ErrNoFrontend)
	}

	language := ""
	defer func() { m.metrics.fileDone(language, err) }()

	if !m.quiet {
		fmt.Fprintf(m.out, "Scan %s\n", path)
	}

	u, err := fe.Parse(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	language = u.Language

	g, stats := graph.Build(u)
	m.metrics.graphBuilt(stats)
	res = &FileResult{Path: u.Path, Language: u.Language, Stats: stats}

	if !m.quiet {
		var buf bytes.Buffer
		if err := display.Dump(&buf, g); err != nil {
			return res, err
		}
		if _, err := m.out.Write(buf.Bytes()); err != nil {
			return res, err
		}
	}

	if m.exporter != nil {
		exp, err := m.exporter.Export(ctx, g)
		if err != nil {
			return res, err
		}
		res.Export = exp
		if exp.RenderErr != nil {
			m.metrics.renderFailed()
		}
	}

	var sinkErrs []error
	for _, s := range m.sinks {
		if err := s.Store(ctx, u.Language, g); err != nil {
			sinkErrs = append(sinkErrs, fmt.Errorf("failed to store %s: %w", u.Path, err))
		}
	}
	return res, errors.Join(sinkErrs...)
}

// Invalidate drops front-end state cached for path, so the next MapFile
// sees the file's current contents.
func (m *Mapper) Invalidate(path string) {
	fe, ok := m.frontends[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return
	}
	if inv, ok := fe.(interface{ Invalidate(string) }); ok {
		inv.Invalidate(path)
	}
}

// Remove drops the graph of a deleted file from every sink
func (m *Mapper) Remove(ctx context.Context, path string) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Remove(ctx, path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// syncWriter serializes writes from concurrent workers so lines from
// different files never interleave.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
