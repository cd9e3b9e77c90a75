package export

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/zheng/callmap/internal/graph"
)

// Mode selects which artifacts are kept
type Mode int

const (
	ModeImageOnly   Mode = iota // DOT is transient, removed after a successful render
	ModeDotOnly                 // no rendering
	ModeDotAndImage             // keep both
)

func (m Mode) String() string {
	switch m {
	case ModeDotOnly:
		return "dot-only"
	case ModeDotAndImage:
		return "dot-graph"
	default:
		return "graph-only"
	}
}

// ParseMode parses the names printed by Mode.String
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "graph-only":
		return ModeImageOnly, nil
	case "dot-only":
		return ModeDotOnly, nil
	case "dot-graph":
		return ModeDotAndImage, nil
	default:
		return 0, fmt.Errorf("unknown output mode %q", s)
	}
}

// Exporter writes the DOT file of a graph and drives the renderer
type Exporter struct {
	BaseDir  string
	OutRoot  string
	Mode     Mode
	Renderer Renderer
	Logger   *log.Logger
	// Out receives the "Write to" progress lines.
	Out io.Writer
}

// Result lists the artifacts of one export
type Result struct {
	DotPath   string
	ImagePath string
	DotKept   bool
	// RenderErr is set when rendering failed; the DOT file is kept then.
	RenderErr error
}

// Export writes g's artifacts. Path and write failures are returned; render
// failures are reported in the result.
func (e *Exporter) Export(ctx context.Context, g *graph.Graph) (*Result, error) {
	outRoot := e.OutRoot
	if outRoot == "" {
		outRoot = "."
	}
	dotPath, err := OutputPath(e.BaseDir, g.Path(), outRoot)
	if err != nil {
		return nil, err
	}
	if err := writeFile(dotPath, g); err != nil {
		return nil, err
	}

	res := &Result{DotPath: dotPath, DotKept: true}
	if e.Mode != ModeImageOnly {
		e.progress(dotPath)
	}
	if e.Mode == ModeDotOnly {
		return res, nil
	}

	renderer := e.Renderer
	if renderer == nil {
		renderer = NewExecRenderer(DefaultRenderTimeout)
	}
	imagePath := ImagePath(dotPath)
	if err := renderer.Render(ctx, dotPath, imagePath); err != nil {
		res.RenderErr = err
		e.logger().Error("Generate graph file fail", "dot", dotPath, "err", err)
		return res, nil
	}
	res.ImagePath = imagePath
	e.progress(imagePath)

	if e.Mode == ModeImageOnly {
		if err := os.Remove(dotPath); err != nil {
			e.logger().Warn("failed to remove transient DOT file", "dot", dotPath, "err", err)
		} else {
			res.DotKept = false
		}
	}
	return res, nil
}

func writeFile(path string, g *graph.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteDOT(f, g); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (e *Exporter) progress(path string) {
	if e.Out != nil {
		fmt.Fprintf(e.Out, "Write to %s\n", path)
	}
}

func (e *Exporter) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}
