package export

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProgram installs an executable shell script named name on a fresh PATH
func fakeProgram(t *testing.T, name, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return dir
}

func TestExecRendererNotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	r := NewExecRenderer(time.Second)
	err := r.Render(context.Background(), "a.dot", "a.png")
	assert.ErrorIs(t, err, ErrRendererNotFound)
}

func TestExecRendererArguments(t *testing.T) {
	// Writes its arguments to the -o target.
	dir := fakeProgram(t, "dot", `shift; echo "$@" > "$4"`)
	dotPath := filepath.Join(dir, "a.dot")
	pngPath := filepath.Join(dir, "a.png")

	r := NewExecRenderer(time.Second)
	require.NoError(t, r.Render(context.Background(), dotPath, pngPath))

	out, err := os.ReadFile(pngPath)
	require.NoError(t, err)
	assert.Equal(t, "-T png -o "+pngPath+"\n", string(out))
}

func TestExecRendererPrefersGraphviz(t *testing.T) {
	dir := fakeProgram(t, "dot", "exit 1\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Graphviz"), []byte("#!/bin/sh\nexit 0\n"), 0o755))

	r := NewExecRenderer(time.Second)
	p, err := r.LookPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Graphviz"), p)
	assert.NoError(t, r.Render(context.Background(), "a.dot", "a.png"))
}

func TestExecRendererFailure(t *testing.T) {
	fakeProgram(t, "dot", "echo 'syntax error in line 3' >&2\nexit 2\n")

	err := NewExecRenderer(time.Second).Render(context.Background(), "a.dot", "a.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error in line 3")
}

func TestExecRendererTimeout(t *testing.T) {
	fakeProgram(t, "dot", "exec sleep 10\n")

	start := time.Now()
	err := NewExecRenderer(100 * time.Millisecond).Render(context.Background(), "a.dot", "a.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewRenderer(t *testing.T) {
	r, err := NewRenderer("", 0)
	require.NoError(t, err)
	assert.IsType(t, &ExecRenderer{}, r)
	assert.Equal(t, DefaultRenderTimeout, r.(*ExecRenderer).Timeout)

	r, err = NewRenderer("builtin", 0)
	require.NoError(t, err)
	assert.IsType(t, GraphvizRenderer{}, r)

	_, err = NewRenderer("cairo", 0)
	assert.Error(t, err)
}
