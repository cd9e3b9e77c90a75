package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRenderer struct {
	err   error
	calls int
}

func (r *stubRenderer) Render(_ context.Context, dotPath, imagePath string) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	return os.WriteFile(imagePath, []byte("png"), 0o644)
}

func newTestExporter(t *testing.T, mode Mode, r Renderer) (*Exporter, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return &Exporter{
		BaseDir:  "/proj/src",
		OutRoot:  t.TempDir(),
		Mode:     mode,
		Renderer: r,
		Logger:   log.New(io.Discard),
		Out:      &out,
	}, &out
}

func TestExportDotOnly(t *testing.T) {
	r := &stubRenderer{}
	e, out := newTestExporter(t, ModeDotOnly, r)

	res, err := e.Export(context.Background(), mutual())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(e.OutRoot, "a.c.dot"), res.DotPath)
	assert.FileExists(t, res.DotPath)
	assert.Empty(t, res.ImagePath)
	assert.Equal(t, 0, r.calls)
	assert.Equal(t, "Write to "+res.DotPath+"\n", out.String())
}

func TestExportImageOnly(t *testing.T) {
	r := &stubRenderer{}
	e, out := newTestExporter(t, ModeImageOnly, r)

	res, err := e.Export(context.Background(), mutual())
	require.NoError(t, err)

	assert.NoFileExists(t, res.DotPath)
	assert.False(t, res.DotKept)
	assert.FileExists(t, res.ImagePath)
	assert.Equal(t, filepath.Join(e.OutRoot, "a.c.png"), res.ImagePath)
	assert.Equal(t, "Write to "+res.ImagePath+"\n", out.String())
}

func TestExportImageOnlyRenderFailureKeepsDot(t *testing.T) {
	r := &stubRenderer{err: ErrRendererNotFound}
	e, out := newTestExporter(t, ModeImageOnly, r)

	res, err := e.Export(context.Background(), mutual())
	require.NoError(t, err)

	assert.True(t, errors.Is(res.RenderErr, ErrRendererNotFound))
	assert.True(t, res.DotKept)
	assert.FileExists(t, res.DotPath)
	assert.Empty(t, out.String())
}

func TestExportDotAndImage(t *testing.T) {
	r := &stubRenderer{}
	e, out := newTestExporter(t, ModeDotAndImage, r)

	res, err := e.Export(context.Background(), mutual())
	require.NoError(t, err)

	assert.FileExists(t, res.DotPath)
	assert.FileExists(t, res.ImagePath)
	assert.Equal(t, "Write to "+res.DotPath+"\nWrite to "+res.ImagePath+"\n", out.String())

	dot, err := os.ReadFile(res.DotPath)
	require.NoError(t, err)
	assert.Equal(t, string(ToDOT(mutual())), string(dot))
}

func TestExportPathFailure(t *testing.T) {
	r := &stubRenderer{}
	e, _ := newTestExporter(t, ModeImageOnly, r)
	e.BaseDir = "/proj"
	// "/proj/src/a.c" needs the directory "src".
	require.NoError(t, os.WriteFile(filepath.Join(e.OutRoot, "src"), nil, 0o644))

	_, err := e.Export(context.Background(), mutual())
	assert.Error(t, err)
	assert.Equal(t, 0, r.calls)
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeImageOnly, ModeDotOnly, ModeDotAndImage} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("svg")
	assert.Error(t, err)
}
