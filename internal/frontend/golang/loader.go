// Package golang is the Go front end: it loads a file's package with
// go/packages and lowers each function body into the syntax tree the call
// graph builder walks.
package golang

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/tools/go/packages"
)

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo |
	packages.NeedModule

// LoadPackages loads the packages of dir, test variants included
func LoadPackages(ctx context.Context, dir string, logger *log.Logger) ([]*packages.Package, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     dir,
		Tests:   true,
	}

	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}

	// Log errors but continue - type information is usually still usable
	var errs []packages.Error
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		errs = append(errs, pkg.Errors...)
	})
	if len(errs) > 0 {
		logger.Warn("package errors encountered", "dir", dir, "count", len(errs))
		for _, e := range errs {
			logger.Debug("package error", "err", e)
		}
	}

	return pkgs, nil
}

// FindFile returns the package and syntax tree that contain path. Non-test
// packages are preferred over their test variants.
func FindFile(pkgs []*packages.Package, path string) (*packages.Package, int, bool) {
	var (
		found   *packages.Package
		foundAt int
	)
	for _, pkg := range pkgs {
		if pkg.TypesInfo == nil {
			continue
		}
		for i, f := range pkg.Syntax {
			name := pkg.Fset.File(f.Pos()).Name()
			if !samePath(name, path) {
				continue
			}
			if found == nil || isTestVariant(found) && !isTestVariant(pkg) {
				found, foundAt = pkg, i
			}
		}
	}
	return found, foundAt, found != nil
}

// isTestVariant reports whether pkg was compiled for "go test"
func isTestVariant(pkg *packages.Package) bool {
	return strings.Contains(pkg.ID, "[") || strings.HasSuffix(pkg.ID, ".test")
}

func samePath(a, b string) bool {
	if a == b {
		return true
	}
	ra, err1 := filepath.EvalSymlinks(a)
	rb, err2 := filepath.EvalSymlinks(b)
	return err1 == nil && err2 == nil && ra == rb
}

// userPackages returns the predicate deciding which import paths are user
// code: the main module of pkg, or pkg alone outside module mode.
func userPackages(pkg *packages.Package) func(path string) bool {
	if pkg.Module != nil && pkg.Module.Path != "" {
		mod := pkg.Module.Path
		return func(path string) bool {
			return path == mod || strings.HasPrefix(path, mod+"/")
		}
	}
	self := strings.TrimSuffix(pkg.PkgPath, "_test")
	return func(path string) bool {
		return strings.TrimSuffix(path, "_test") == self
	}
}
