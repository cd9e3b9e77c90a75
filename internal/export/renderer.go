package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/goccy/go-graphviz"
)

// ErrRendererNotFound is returned when no Graphviz executable is on PATH
var ErrRendererNotFound = errors.New("graphviz not found, please install Graphviz first")

// DefaultRenderTimeout bounds a single render
const DefaultRenderTimeout = 60 * time.Second

// Renderer turns a DOT file into a PNG image
type Renderer interface {
	Render(ctx context.Context, dotPath, imagePath string) error
}

// ExecRenderer runs the Graphviz command line tool
type ExecRenderer struct {
	// Programs are tried in order; the first found on PATH is used.
	Programs []string
	Timeout  time.Duration
}

// NewExecRenderer returns a renderer looking up "Graphviz", then "dot"
func NewExecRenderer(timeout time.Duration) *ExecRenderer {
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	return &ExecRenderer{Programs: []string{"Graphviz", "dot"}, Timeout: timeout}
}

// LookPath returns the first available program
func (r *ExecRenderer) LookPath() (string, error) {
	for _, name := range r.Programs {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", ErrRendererNotFound
}

// Render runs `<program> <dot> -T png -o <image>`
func (r *ExecRenderer) Render(ctx context.Context, dotPath, imagePath string) error {
	program, err := r.LookPath()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, program, dotPath, "-T", "png", "-o", imagePath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// Do not let a grandchild holding stderr open outlive the timeout.
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%s timed out after %s", program, r.Timeout)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s failed: %w: %s", program, err, msg)
		}
		return fmt.Errorf("%s failed: %w", program, err)
	}
	return nil
}

// GraphvizRenderer renders in-process with the WebAssembly build of Graphviz
type GraphvizRenderer struct{}

// Render parses the DOT file and writes a PNG
func (GraphvizRenderer) Render(ctx context.Context, dotPath, imagePath string) error {
	src, err := os.ReadFile(dotPath)
	if err != nil {
		return fmt.Errorf("read DOT: %w", err)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes(src)
	if err != nil {
		return fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.PNG, &buf); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := os.WriteFile(imagePath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", imagePath, err)
	}
	return nil
}

// NewRenderer returns the renderer registered under name
func NewRenderer(name string, timeout time.Duration) (Renderer, error) {
	switch name {
	case "", "exec":
		return NewExecRenderer(timeout), nil
	case "builtin":
		return GraphvizRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown renderer %q (supported: exec, builtin)", name)
	}
}
