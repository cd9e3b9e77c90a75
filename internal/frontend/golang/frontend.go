package golang

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/tools/go/packages"

	"github.com/zheng/callmap/internal/syntax"
)

// Language is the unit language reported by this front end
const Language = "go"

// Frontend parses Go files. Packages are loaded once per directory and
// shared by every file in it.
type Frontend struct {
	logger *log.Logger

	mu    sync.Mutex
	cache map[string][]*packages.Package
	group singleflight.Group
}

// New creates a Go front end
func New(logger *log.Logger) *Frontend {
	if logger == nil {
		logger = log.Default()
	}
	return &Frontend{
		logger: logger,
		cache:  make(map[string][]*packages.Package),
	}
}

// Extensions returns the file extensions handled by this front end
func (f *Frontend) Extensions() []string { return []string{".go"} }

// Parse loads the package containing path and lowers the file
func (f *Frontend) Parse(ctx context.Context, path string) (*syntax.Unit, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	pkgs, err := f.packages(ctx, filepath.Dir(abs))
	if err != nil {
		return nil, err
	}

	pkg, i, ok := FindFile(pkgs, abs)
	if !ok {
		return nil, fmt.Errorf("%s is not part of any loaded package", path)
	}

	u := LowerFile(pkg.Fset, pkg.Syntax[i], pkg.Types, pkg.TypesInfo, userPackages(pkg))
	u.Path = abs
	return u, nil
}

// Invalidate drops the cached packages of path's directory
func (f *Frontend) Invalidate(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	f.mu.Lock()
	delete(f.cache, filepath.Dir(abs))
	f.mu.Unlock()
}

func (f *Frontend) packages(ctx context.Context, dir string) ([]*packages.Package, error) {
	f.mu.Lock()
	pkgs, ok := f.cache[dir]
	f.mu.Unlock()
	if ok {
		return pkgs, nil
	}

	v, err, _ := f.group.Do(dir, func() (any, error) {
		f.logger.Debug("loading packages", "dir", dir)
		pkgs, err := LoadPackages(ctx, dir, f.logger)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.cache[dir] = pkgs
		f.mu.Unlock()
		return pkgs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*packages.Package), nil
}
