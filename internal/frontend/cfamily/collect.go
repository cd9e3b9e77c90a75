package cfamily

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/zheng/callmap/internal/decl"
)

// source is one parsed file of a translation unit
type source struct {
	path string
	src  []byte
	tree *sitter.Tree
}

// pending is a declaration found during collection whose body, if any, is
// lowered once the whole unit has been declared.
type pending struct {
	d      *funcDecl
	body   *sitter.Node
	src    *source
	scopes []string
}

// collector gathers the declarations of a file and the user headers it
// includes, in the order the preprocessor would see them.
type collector struct {
	ctx      context.Context
	logger   *log.Logger
	lang     *sitter.Language
	incDirs  []string
	maxDepth int

	t       *table
	tparams []string // of the function template being walked
	seen    map[string]bool
	sources []*source
	decls   []pending
}

func (c *collector) close() {
	for _, s := range c.sources {
		s.tree.Close()
	}
}

// file parses path and collects its declarations
func (c *collector) file(path string, depth int) error {
	if c.seen[path] {
		return nil
	}
	c.seen[path] = true

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(c.lang)
	tree, err := parser.ParseCtx(c.ctx, nil, content)
	if err != nil {
		return fmt.Errorf("tree-sitter parse failed: %w", err)
	}

	s := &source{path: path, src: content, tree: tree}
	c.sources = append(c.sources, s)

	root := tree.RootNode()
	if root == nil {
		return nil
	}
	if root.HasError() {
		c.logger.Debug("source contains syntax errors", "file", path)
	}
	c.walk(s, root, nil, false, false, depth)
	return nil
}

// walk visits the declarations directly inside container n
func (c *collector) walk(s *source, n *sitter.Node, scopes []string, template, class bool, depth int) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c.item(s, n.NamedChild(i), scopes, template, class, depth)
	}
}

func (c *collector) item(s *source, n *sitter.Node, scopes []string, template, class bool, depth int) {
	switch n.Type() {
	case "preproc_include":
		c.include(s, n, depth)

	case "function_definition", "inline_method_definition":
		c.function(s, n, n.ChildByFieldName("body"), scopes, template, class)

	case "declaration", "field_declaration":
		if t := n.ChildByFieldName("type"); t != nil {
			c.item(s, t, scopes, template, class, depth)
		}
		c.function(s, n, nil, scopes, template, class)

	case "class_specifier", "struct_specifier", "union_specifier":
		body := n.ChildByFieldName("body")
		if body == nil {
			return
		}
		inner := scopes
		if name := n.ChildByFieldName("name"); name != nil {
			inner = appendScope(scopes, stripTemplateArgs(text(name, s.src)))
			c.t.classes[strings.Join(inner, "::")] = true
		}
		c.walk(s, body, inner, template, true, depth)

	case "namespace_definition":
		inner := scopes
		if name := n.ChildByFieldName("name"); name != nil {
			inner = appendScope(scopes, text(name, s.src))
			c.t.namespaces[strings.Join(inner, "::")] = true
		}
		if body := n.ChildByFieldName("body"); body != nil {
			c.walk(s, body, inner, template, false, depth)
		}

	case "linkage_specification":
		if body := n.ChildByFieldName("body"); body != nil {
			if body.Type() == "declaration_list" {
				c.walk(s, body, scopes, template, class, depth)
			} else {
				c.item(s, body, scopes, template, class, depth)
			}
		}

	case "template_declaration":
		// template<> introduces an explicit specialization, which is an
		// ordinary function.
		dependent := template
		params := n.ChildByFieldName("parameters")
		if params != nil && params.NamedChildCount() > 0 {
			dependent = true
		}
		saved := c.tparams
		c.tparams = nil
		if dependent && declaresFunction(n) {
			c.tparams = templateParams(params, s.src)
		}
		c.walk(s, n, scopes, dependent, class, depth)
		c.tparams = saved

	case "declaration_list", "field_declaration_list",
		"preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif", "preproc_elifdef":
		c.walk(s, n, scopes, template, class, depth)
	}
}

// include follows a quoted include. Angle includes name system headers and
// are not parsed.
func (c *collector) include(s *source, n *sitter.Node, depth int) {
	p := n.ChildByFieldName("path")
	if p == nil || p.Type() != "string_literal" {
		return
	}
	name := strings.Trim(text(p, s.src), `"`)
	if name == "" {
		return
	}
	if depth >= c.maxDepth {
		c.logger.Debug("include depth exceeded", "file", s.path, "include", name)
		return
	}

	path, ok := c.resolve(filepath.Dir(s.path), name)
	if !ok {
		c.logger.Debug("include not found", "file", s.path, "include", name)
		return
	}
	if err := c.file(path, depth+1); err != nil {
		c.logger.Warn("failed to parse include", "file", path, "err", err)
	}
}

func (c *collector) resolve(dir, name string) (string, bool) {
	candidates := []string{name}
	if !filepath.IsAbs(name) {
		candidates = candidates[:0]
		for _, d := range append([]string{dir}, c.incDirs...) {
			candidates = append(candidates, filepath.Join(d, name))
		}
	}
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs, true
			}
			return p, true
		}
	}
	return "", false
}

// function records n when it declares or defines a function
func (c *collector) function(s *source, n, body *sitter.Node, scopes []string, template, class bool) {
	fd := functionDeclarator(n.ChildByFieldName("declarator"))
	if fd == nil {
		return
	}
	qual, base, ok := declaredName(fd.ChildByFieldName("declarator"), s.src)
	if !ok {
		return
	}

	inner := append(append([]string(nil), scopes...), qual...)
	d := &funcDecl{
		name:      strings.Join(append(append([]string(nil), inner...), base), "::"),
		owner:     strings.Join(inner, "::"),
		params:    paramArity(fd.ChildByFieldName("parameters"), s.src),
		body:      body != nil,
		dependent: template,
		span:      span(s.path, n),
	}
	if template && c.tparams != nil {
		d.tparams = c.tparams
		d.ptypes = paramTypes(fd.ChildByFieldName("parameters"), s.src)
	}
	if class && len(qual) == 0 {
		c.t.classes[d.owner] = true
	}
	c.t.declare(d)
	c.decls = append(c.decls, pending{d: d, body: body, src: s, scopes: inner})
}

// functionDeclarator unwraps pointer and reference declarators down to a
// function declarator, nil when n does not declare a function.
func functionDeclarator(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "function_declarator":
			return n
		case "pointer_declarator", "reference_declarator", "attributed_declarator":
			if d := n.ChildByFieldName("declarator"); d != nil {
				n = d
				continue
			}
			if n.NamedChildCount() == 0 {
				return nil
			}
			n = n.NamedChild(int(n.NamedChildCount()) - 1)
		default:
			return nil
		}
	}
	return nil
}

// declaredName splits the name of a function declarator into its qualifier
// and base name. Declarators such as (*fp) do not name a function.
func declaredName(n *sitter.Node, src []byte) ([]string, string, bool) {
	if n == nil {
		return nil, "", false
	}
	switch n.Type() {
	case "identifier", "field_identifier", "destructor_name":
		return nil, text(n, src), true
	case "operator_name":
		return nil, operatorName(text(n, src)), true
	case "template_function":
		// An explicit specialization is its own function, named with its
		// template arguments.
		name := n.ChildByFieldName("name")
		if name == nil {
			return nil, "", false
		}
		targs := ""
		if a := n.ChildByFieldName("arguments"); a != nil {
			targs = compact(text(a, src))
		}
		return nil, text(name, src) + targs, true
	case "qualified_identifier":
		qual, _, last := splitQualified(n, src)
		inner, base, ok := declaredName(last, src)
		if !ok {
			return nil, "", false
		}
		return append(qual, inner...), base, true
	}
	return nil, "", false
}

// splitQualified walks the scope/name chain of a qualified_identifier. It
// returns the scope names, whether the name starts at the global scope, and
// the unqualified name node. Template arguments of the scopes are dropped.
func splitQualified(n *sitter.Node, src []byte) ([]string, bool, *sitter.Node) {
	var qual []string
	global := n.ChildByFieldName("scope") == nil
	for n != nil && n.Type() == "qualified_identifier" {
		if scope := n.ChildByFieldName("scope"); scope != nil {
			if scope.Type() == "template_type" {
				if name := scope.ChildByFieldName("name"); name != nil {
					scope = name
				}
			}
			qual = append(qual, compact(text(scope, src)))
		}
		n = n.ChildByFieldName("name")
	}
	return qual, global, n
}

// operatorName normalizes the spelling of an operator function name:
// "operator <<" becomes "operator<<" and "operator  new" becomes
// "operator new".
func operatorName(name string) string {
	rest := strings.TrimSpace(strings.TrimPrefix(name, "operator"))
	if rest == "" {
		return name
	}
	if r := rest[0]; r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
		return "operator " + compact(rest)
	}
	return "operator" + compact(rest)
}

// declaresFunction reports whether template_declaration n declares a
// function rather than a class or variable.
func declaresFunction(n *sitter.Node) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "function_definition":
			return true
		case "declaration", "field_declaration":
			return functionDeclarator(c.ChildByFieldName("declarator")) != nil
		}
	}
	return false
}

// templateParams names the parameters of a template_parameter_list. Only
// type parameters can be deduced from a call; the others are named "".
func templateParams(n *sitter.Node, src []byte) []string {
	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		p := n.NamedChild(i)
		name := ""
		switch p.Type() {
		case "type_parameter_declaration":
			for j := 0; j < int(p.NamedChildCount()); j++ {
				if id := p.NamedChild(j); id.Type() == "type_identifier" {
					name = text(id, src)
				}
			}
		case "optional_type_parameter_declaration":
			if id := p.ChildByFieldName("name"); id != nil {
				name = text(id, src)
			}
		case "comment":
			continue
		}
		out = append(out, name)
	}
	return out
}

// paramTypes returns, for each parameter of a parameter_list, the type it
// is declared with when that type is a plain name passed by value or by
// reference, and "" otherwise.
func paramTypes(n *sitter.Node, src []byte) []string {
	var out []string
	if n == nil {
		return out
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		p := n.NamedChild(i)
		if p.Type() != "parameter_declaration" && p.Type() != "optional_parameter_declaration" {
			continue
		}
		typ := ""
		t := p.ChildByFieldName("type")
		d := p.ChildByFieldName("declarator")
		if t != nil && t.Type() == "type_identifier" &&
			(d == nil || d.Type() == "identifier" || d.Type() == "reference_declarator") {
			typ = text(t, src)
		}
		out = append(out, typ)
	}
	return out
}

// paramArity counts the parameters of a parameter_list
func paramArity(n *sitter.Node, src []byte) arity {
	var a arity
	if n == nil {
		return a
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "parameter_declaration":
			if text(c, src) == "void" && n.NamedChildCount() == 1 {
				return arity{}
			}
			a.required++
		case "optional_parameter_declaration":
			a.optional++
		case "variadic_parameter_declaration", "variadic_parameter", "...":
			a.variadic = true
		}
	}
	return a
}

func appendScope(scopes []string, name string) []string {
	out := append([]string(nil), scopes...)
	for _, p := range strings.Split(name, "::") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stripTemplateArgs removes template argument lists and whitespace from a
// name, e.g. "Vec < T >::push" becomes "Vec::push".
func stripTemplateArgs(name string) string {
	var b strings.Builder
	depth := 0
	for _, r := range name {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth > 0, r == ' ', r == '\t', r == '\n', r == '\r':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func text(n *sitter.Node, src []byte) string {
	return n.Content(src)
}

func span(path string, n *sitter.Node) decl.Span {
	start, end := n.StartPoint(), n.EndPoint()
	return decl.Span{
		File:      path,
		Line:      int(start.Row + 1),
		Column:    int(start.Column + 1),
		EndLine:   int(end.Row + 1),
		EndColumn: int(end.Column + 1),
	}
}
