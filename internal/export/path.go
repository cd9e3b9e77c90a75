package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputPath derives where the DOT file of fullPath goes: the components
// fullPath shares with baseDir are dropped, the remaining directories are
// recreated under outRoot and ".dot" is appended to the file name.
//
//	OutputPath("/proj/src", "/proj/src/a/b/File.m", ".") == "a/b/File.m.dot"
func OutputPath(baseDir, fullPath, outRoot string) (string, error) {
	base := splitPath(baseDir)
	full := splitPath(fullPath)
	if len(full) == 0 {
		return "", fmt.Errorf("empty source path")
	}

	i := 0
	for i < len(base) && i < len(full)-1 && base[i] == full[i] {
		i++
	}

	dir := filepath.Join(append([]string{outRoot}, full[i:len(full)-1]...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return filepath.Join(dir, full[len(full)-1]+".dot"), nil
}

// ImagePath returns the PNG path next to a DOT file
func ImagePath(dotPath string) string {
	return strings.TrimSuffix(dotPath, ".dot") + ".png"
}

func splitPath(p string) []string {
	var parts []string
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part != "" && part != "." {
			parts = append(parts, part)
		}
	}
	return parts
}
