package cfamily

import (
	"strings"

	"github.com/zheng/callmap/internal/decl"
)

// funcDecl is one declaration of a C or C++ function. Every redeclaration
// points at the first one seen, which is the entity the graph keys on.
type funcDecl struct {
	name      string // qualified, e.g. ns::Widget::draw
	owner     string // qualifier of name, empty at global scope
	params    arity
	body      bool
	dependent bool
	span      decl.Span
	canon     *funcDecl

	// Template parameter names of a function template, and for each
	// function parameter the template parameter it is declared as, if any.
	tparams []string
	ptypes  []string
}

func (d *funcDecl) Kind() decl.Kind { return decl.KindFunction }
func (d *funcDecl) Name() string    { return d.name }
func (d *funcDecl) HasBody() bool   { return d.body }

// InSystem is always false: declarations from <...> headers are never parsed.
func (d *funcDecl) InSystem() bool  { return false }
func (d *funcDecl) Dependent() bool { return d.dependent }
func (d *funcDecl) Span() decl.Span { return d.span }

func (d *funcDecl) Canonical() decl.Decl {
	if d.canon != nil {
		return d.canon
	}
	return d
}

// lambdaDecl is a C++ lambda expression
type lambdaDecl struct {
	span decl.Span
}

func (d *lambdaDecl) Kind() decl.Kind      { return decl.KindClosure }
func (d *lambdaDecl) Name() string         { return "" }
func (d *lambdaDecl) HasBody() bool        { return true }
func (d *lambdaDecl) InSystem() bool       { return false }
func (d *lambdaDecl) Dependent() bool      { return false }
func (d *lambdaDecl) Canonical() decl.Decl { return d }
func (d *lambdaDecl) Span() decl.Span      { return d.span }

// arity is the number of arguments a function accepts
type arity struct {
	required int
	optional int
	variadic bool
}

func (a arity) accepts(n int) bool {
	if n < a.required {
		return false
	}
	return a.variadic || n <= a.required+a.optional
}

func (a arity) same(o arity) bool {
	return a.required+a.optional == o.required+o.optional && a.variadic == o.variadic
}

// table holds the canonical declarations visible in a translation unit
type table struct {
	overloads bool // C++ allows functions that differ only in parameters

	funcs      map[string][]*funcDecl
	order      []*funcDecl
	classes    map[string]bool
	namespaces map[string]bool
	methods    map[string][]*funcDecl
	insts      map[string]*funcDecl
}

func newTable(overloads bool) *table {
	return &table{
		overloads:  overloads,
		funcs:      make(map[string][]*funcDecl),
		classes:    make(map[string]bool),
		namespaces: make(map[string]bool),
		insts:      make(map[string]*funcDecl),
	}
}

// declare records d, linking it to an earlier declaration of the same
// function when there is one.
func (t *table) declare(d *funcDecl) {
	for _, c := range t.funcs[d.name] {
		if !t.overloads || c.params.same(d.params) {
			d.canon = c
			if d.dependent {
				c.dependent = true
			}
			return
		}
	}
	t.funcs[d.name] = append(t.funcs[d.name], d)
	t.order = append(t.order, d)
}

// index builds the method table once every declaration is known. A
// qualified function is a method when its qualifier names a class, or
// names nothing known to be a namespace.
func (t *table) index() {
	t.methods = make(map[string][]*funcDecl)
	for _, d := range t.order {
		if d.owner == "" || (t.namespaces[d.owner] && !t.classes[d.owner]) {
			continue
		}
		short := d.name[strings.LastIndex(d.name, "::")+2:]
		t.methods[short] = append(t.methods[short], d)
	}
}

// find returns the declaration named name that accepts n arguments
func (t *table) find(name string, n int) *funcDecl {
	cands := t.funcs[name]
	for _, c := range cands {
		if c.params.accepts(n) {
			return c
		}
	}
	if !t.overloads && len(cands) > 0 {
		return cands[0]
	}
	return nil
}

// lookup resolves an unqualified or partially qualified name from the
// given enclosing scopes, innermost first.
func (t *table) lookup(name string, scopes []string, n int) *funcDecl {
	if strings.HasPrefix(name, "::") {
		return t.find(name[2:], n)
	}
	for i := len(scopes); i >= 0; i-- {
		q := name
		if i > 0 {
			q = strings.Join(scopes[:i], "::") + "::" + name
		}
		if d := t.find(q, n); d != nil {
			return d
		}
	}
	return nil
}

// method resolves a member call by its selector
func (t *table) method(name string, n int) *funcDecl {
	cands := t.methods[name]
	for _, c := range cands {
		if c.params.accepts(n) {
			return c
		}
	}
	return nil
}

// instance returns the specialization of template tmpl named by targs.
// An empty targs means an implicit instantiation whose arguments could not
// be deduced: all of those share the one "name<>" declaration, which stands
// for some implicit instantiation of tmpl. Explicit specializations declared
// in the unit are returned as they are.
func (t *table) instance(tmpl *funcDecl, targs string) *funcDecl {
	if targs == "" {
		targs = "<>"
	}
	name := tmpl.name + targs
	if ds := t.funcs[name]; len(ds) > 0 {
		return ds[0]
	}
	if d, ok := t.insts[name]; ok {
		return d
	}
	d := &funcDecl{name: name, owner: tmpl.owner, params: tmpl.params, span: tmpl.span}
	t.insts[name] = d
	return d
}
