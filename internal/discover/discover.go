// Package discover turns command line paths into the list of source files to
// map and the base directory output paths are derived from.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoFiles is returned when the arguments name no source file
var ErrNoFiles = errors.New("no source files found")

var headerExts = map[string]bool{
	".h":   true,
	".hh":  true,
	".hpp": true,
	".hxx": true,
}

// skipDirs are never descended into
var skipDirs = map[string]bool{
	"vendor":       true,
	"testdata":     true,
	"node_modules": true,
}

// Options controls which files are collected
type Options struct {
	// Extensions lists the handled file extensions, including the dot.
	Extensions []string
	// IgnoreHeader drops header files found while walking directories.
	IgnoreHeader bool
}

// Result is the outcome of Collect
type Result struct {
	Files   []string // absolute paths, in walk order
	BaseDir string   // absolute
	Missing []string // arguments that do not exist
}

// IsHeader reports whether path names a C-family header
func IsHeader(path string) bool {
	return headerExts[strings.ToLower(filepath.Ext(path))]
}

// Collect walks directory arguments recursively and takes file arguments as
// given. The last directory argument becomes the base directory; without
// one the base is the working directory.
func Collect(args []string, opts Options) (*Result, error) {
	if len(args) == 0 {
		args = []string{"."}
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = true
	}

	res := &Result{}
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			res.Files = append(res.Files, path)
		}
	}

	base := "."
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			res.Missing = append(res.Missing, arg)
			continue
		}
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", arg, err)
		}

		if !fi.IsDir() {
			add(abs)
			continue
		}

		base = arg
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != abs && (skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
					return filepath.SkipDir
				}
				return nil
			}
			if !exts[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			if opts.IgnoreHeader && IsHeader(path) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
	}

	baseDir, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", base, err)
	}
	res.BaseDir = baseDir

	if len(res.Files) == 0 {
		return res, ErrNoFiles
	}
	return res, nil
}

// Filter keeps the files present in keep, preserving order
func Filter(files []string, keep []string) []string {
	set := make(map[string]bool, len(keep))
	for _, k := range keep {
		set[k] = true
	}
	var out []string
	for _, f := range files {
		if set[f] {
			out = append(out, f)
		}
	}
	return out
}
