package discover

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitChanges represents the files git reports as changed under a directory
type GitChanges struct {
	Base  string
	Files []string // absolute paths
}

// GetGitChanges returns the files changed relative to base, plus untracked
// files. If base is empty, it compares with HEAD (uncommitted changes).
func GetGitChanges(ctx context.Context, dir string, base string) (*GitChanges, error) {
	if base == "" {
		base = "HEAD"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	changes := &GitChanges{Base: base}
	seen := make(map[string]bool)

	diff, err := git(ctx, abs, "diff", "--name-only", "--relative", base)
	if err != nil {
		// No commits yet: fall back to modified tracked files.
		diff, err = git(ctx, abs, "ls-files", "--modified")
		if err != nil {
			return nil, err
		}
	}
	untracked, err := git(ctx, abs, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}

	for _, out := range [][]byte{diff, untracked} {
		scanner := bufio.NewScanner(bytes.NewReader(out))
		for scanner.Scan() {
			file := strings.TrimSpace(scanner.Text())
			if file == "" {
				continue
			}
			path := filepath.Join(abs, filepath.FromSlash(file))
			if !seen[path] {
				seen[path] = true
				changes.Files = append(changes.Files, path)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}
	return changes, nil
}

// HasChanges returns true if any file changed
func (g *GitChanges) HasChanges() bool {
	return len(g.Files) > 0
}

// String returns a summary string of the changes
func (g *GitChanges) String() string {
	return fmt.Sprintf("%d files changed since %s", len(g.Files), g.Base)
}

func git(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
