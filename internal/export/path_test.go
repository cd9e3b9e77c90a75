package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name string
		base string
		full string
		want string
	}{
		{"nested", "/proj/src", "/proj/src/a/b/File.m", "a/b/File.m.dot"},
		{"in base", "/proj/src", "/proj/src/main.c", "main.c.dot"},
		{"trailing slash", "/proj/src/", "/proj/src/a/x.c", "a/x.c.dot"},
		{"sibling", "/proj/src", "/proj/lib/x.c", "lib/x.c.dot"},
		{"base is file dir", "/proj/src/a", "/proj/src/a", "a.dot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			got, err := OutputPath(tt.base, tt.full, root)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(root, tt.want), got)

			info, err := os.Stat(filepath.Dir(got))
			require.NoError(t, err)
			assert.True(t, info.IsDir())
		})
	}
}

func TestOutputPathRelativeRoot(t *testing.T) {
	t.Chdir(t.TempDir())

	got, err := OutputPath("/proj/src", "/proj/src/a/b/File.m", ".")
	require.NoError(t, err)
	assert.Equal(t, "a/b/File.m.dot", got)
	assert.DirExists(t, "a/b")
}

func TestOutputPathMkdirFailure(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "a")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := OutputPath("/proj", "/proj/a/b.c", root)
	assert.Error(t, err)
}

func TestImagePath(t *testing.T) {
	assert.Equal(t, "a/b/File.m.png", ImagePath("a/b/File.m.dot"))
}
