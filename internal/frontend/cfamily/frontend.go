// Package cfamily parses C and C++ sources with tree-sitter and lowers them
// into translation units for the call graph builder.
package cfamily

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/zheng/callmap/internal/syntax"
)

const (
	LanguageC   = "c"
	LanguageCPP = "cpp"

	// DefaultMaxIncludeDepth bounds how deep quoted includes are followed
	DefaultMaxIncludeDepth = 8
)

// Frontend parses C and C++ files. It is safe for concurrent use; every
// Parse creates its own parser.
type Frontend struct {
	logger      *log.Logger
	includeDirs []string
	maxDepth    int
}

// Option configures a Frontend
type Option func(*Frontend)

// WithIncludeDirs adds directories searched for quoted includes after the
// including file's own directory.
func WithIncludeDirs(dirs ...string) Option {
	return func(f *Frontend) {
		f.includeDirs = append(f.includeDirs, dirs...)
	}
}

// WithMaxIncludeDepth limits how deep quoted includes are followed
func WithMaxIncludeDepth(depth int) Option {
	return func(f *Frontend) {
		f.maxDepth = depth
	}
}

// New creates a C-family front end
func New(logger *log.Logger, opts ...Option) *Frontend {
	if logger == nil {
		logger = log.Default()
	}
	f := &Frontend{logger: logger, maxDepth: DefaultMaxIncludeDepth}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Extensions returns the file extensions handled by this front end
func (f *Frontend) Extensions() []string {
	return []string{".c", ".cc", ".cpp", ".cxx", ".h", ".hh", ".hpp"}
}

// Parse builds the translation unit of path together with the user headers
// it includes. Syntax errors are tolerated.
func (f *Frontend) Parse(ctx context.Context, path string) (*syntax.Unit, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	language, lang := languageOf(abs)
	col := &collector{
		ctx:      ctx,
		logger:   f.logger,
		lang:     lang,
		incDirs:  f.includeDirs,
		maxDepth: f.maxDepth,
		t:        newTable(language == LanguageCPP),
		seen:     make(map[string]bool),
	}
	defer col.close()

	if err := col.file(abs, 0); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	col.t.index()

	u := &syntax.Unit{Path: abs, Language: language}
	for _, p := range col.decls {
		td := syntax.TopDecl{Decl: p.d}
		if p.body != nil {
			l := &lowerer{t: col.t, src: p.src, scopes: p.scopes}
			td.Body = l.lower(p.body)
		}
		u.Decls = append(u.Decls, td)
	}
	return u, nil
}

// languageOf picks the grammar for a file. Headers are parsed as C++, which
// accepts nearly all C.
func languageOf(path string) (string, *sitter.Language) {
	if strings.ToLower(filepath.Ext(path)) == ".c" {
		return LanguageC, c.GetLanguage()
	}
	return LanguageCPP, cpp.GetLanguage()
}
