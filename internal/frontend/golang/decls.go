package golang

import (
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"github.com/zheng/callmap/internal/decl"
)

// funcDecl is a Go function or method, or an instantiation of a generic one
type funcDecl struct {
	name      string
	body      bool
	system    bool
	dependent bool
	span      decl.Span
}

func (d *funcDecl) Kind() decl.Kind      { return decl.KindFunction }
func (d *funcDecl) Name() string         { return d.name }
func (d *funcDecl) HasBody() bool        { return d.body }
func (d *funcDecl) InSystem() bool       { return d.system }
func (d *funcDecl) Dependent() bool      { return d.dependent }
func (d *funcDecl) Canonical() decl.Decl { return d }
func (d *funcDecl) Span() decl.Span      { return d.span }

// closureDecl is a function literal
type closureDecl struct {
	span decl.Span
}

func (d *closureDecl) Kind() decl.Kind      { return decl.KindClosure }
func (d *closureDecl) Name() string         { return "" }
func (d *closureDecl) HasBody() bool        { return true }
func (d *closureDecl) InSystem() bool       { return false }
func (d *closureDecl) Dependent() bool      { return false }
func (d *closureDecl) Canonical() decl.Decl { return d }
func (d *closureDecl) Span() decl.Span      { return d.span }

// decls interns declarations so that every reference to the same entity in
// a translation unit yields the same decl.Decl value.
type decls struct {
	fset    *token.FileSet
	pkg     *types.Package
	isUser  func(path string) bool
	funcs   map[*types.Func]*funcDecl
	insts   map[string]*funcDecl
	closure map[*ast.FuncLit]*closureDecl
}

func newDecls(fset *token.FileSet, pkg *types.Package, isUser func(string) bool) *decls {
	return &decls{
		fset:    fset,
		pkg:     pkg,
		isUser:  isUser,
		funcs:   make(map[*types.Func]*funcDecl),
		insts:   make(map[string]*funcDecl),
		closure: make(map[*ast.FuncLit]*closureDecl),
	}
}

func (ds *decls) span(pos, end token.Pos) decl.Span {
	if !pos.IsValid() {
		return decl.Span{}
	}
	p := ds.fset.Position(pos)
	s := decl.Span{File: p.Filename, Line: p.Line, Column: p.Column}
	if end.IsValid() {
		e := ds.fset.Position(end)
		s.EndLine, s.EndColumn = e.Line, e.Column
	}
	return s
}

func (ds *decls) system(obj types.Object) bool {
	return obj.Pkg() == nil || !ds.isUser(obj.Pkg().Path())
}

// define returns the declaration of a function declared in this file
func (ds *decls) define(fd *ast.FuncDecl, fn *types.Func) *funcDecl {
	d := ds.function(fn)
	d.body = fd.Body != nil
	d.span = ds.span(fd.Pos(), fd.End())
	return d
}

// function returns the declaration of a generic or plain function
func (ds *decls) function(fn *types.Func) *funcDecl {
	fn = fn.Origin()
	if d, ok := ds.funcs[fn]; ok {
		return d
	}
	d := &funcDecl{
		name:      ds.funcName(fn),
		system:    ds.system(fn),
		dependent: isGeneric(fn),
		span:      ds.span(fn.Pos(), token.NoPos),
	}
	ds.funcs[fn] = d
	return d
}

// instance returns the declaration of fn instantiated with targs.
// Instances whose arguments still mention type parameters are dependent.
func (ds *decls) instance(fn *types.Func, targs *types.TypeList) *funcDecl {
	if targs == nil || targs.Len() == 0 {
		return ds.function(fn)
	}
	origin := fn.Origin()
	args := make([]string, targs.Len())
	dependent := false
	for i := 0; i < targs.Len(); i++ {
		t := targs.At(i)
		args[i] = types.TypeString(t, ds.qualifier)
		dependent = dependent || mentionsTypeParam(t, make(map[types.Type]bool))
	}
	name := ds.funcName(origin) + "[" + strings.Join(args, ", ") + "]"
	key := name + "@" + ds.span(origin.Pos(), token.NoPos).String()
	if d, ok := ds.insts[key]; ok {
		return d
	}
	d := &funcDecl{
		name:      name,
		system:    ds.system(origin),
		dependent: dependent,
		span:      ds.span(origin.Pos(), token.NoPos),
	}
	ds.insts[key] = d
	return d
}

func (ds *decls) closureOf(lit *ast.FuncLit) *closureDecl {
	if d, ok := ds.closure[lit]; ok {
		return d
	}
	d := &closureDecl{span: ds.span(lit.Pos(), lit.End())}
	ds.closure[lit] = d
	return d
}

// qualifier prints package names for everything outside the current package
func (ds *decls) qualifier(p *types.Package) string {
	if p == ds.pkg {
		return ""
	}
	return p.Name()
}

// funcName formats fn as F, pkg.F, T.M or (*T).M
func (ds *decls) funcName(fn *types.Func) string {
	sig := fn.Type().(*types.Signature)
	recv := sig.Recv()
	if recv == nil {
		if fn.Pkg() == nil {
			return fn.Name()
		}
		if q := ds.qualifier(fn.Pkg()); q != "" {
			return q + "." + fn.Name()
		}
		return fn.Name()
	}

	t := recv.Type()
	ptr := false
	if p, ok := t.(*types.Pointer); ok {
		t, ptr = p.Elem(), true
	}
	typeName := types.TypeString(t, ds.qualifier)
	if named, ok := t.(*types.Named); ok {
		typeName = types.TypeString(named.Origin(), ds.qualifier)
		if i := strings.IndexByte(typeName, '['); i >= 0 {
			typeName = typeName[:i]
		}
	}
	if ptr {
		return "(*" + typeName + ")." + fn.Name()
	}
	return typeName + "." + fn.Name()
}

// isGeneric reports whether fn has its own type parameters or belongs to a
// generic receiver type.
func isGeneric(fn *types.Func) bool {
	sig := fn.Type().(*types.Signature)
	return sig.TypeParams().Len() > 0 || sig.RecvTypeParams().Len() > 0
}

// mentionsTypeParam reports whether t refers to a type parameter
func mentionsTypeParam(t types.Type, seen map[types.Type]bool) bool {
	if seen[t] {
		return false
	}
	seen[t] = true

	switch t := t.(type) {
	case *types.TypeParam:
		return true
	case *types.Pointer:
		return mentionsTypeParam(t.Elem(), seen)
	case *types.Slice:
		return mentionsTypeParam(t.Elem(), seen)
	case *types.Array:
		return mentionsTypeParam(t.Elem(), seen)
	case *types.Chan:
		return mentionsTypeParam(t.Elem(), seen)
	case *types.Map:
		return mentionsTypeParam(t.Key(), seen) || mentionsTypeParam(t.Elem(), seen)
	case *types.Named:
		args := t.TypeArgs()
		for i := 0; i < args.Len(); i++ {
			if mentionsTypeParam(args.At(i), seen) {
				return true
			}
		}
	case *types.Signature:
		return mentionsTypeParam(t.Params(), seen) || mentionsTypeParam(t.Results(), seen)
	case *types.Tuple:
		for i := 0; i < t.Len(); i++ {
			if mentionsTypeParam(t.At(i).Type(), seen) {
				return true
			}
		}
	case *types.Struct:
		for i := 0; i < t.NumFields(); i++ {
			if mentionsTypeParam(t.Field(i).Type(), seen) {
				return true
			}
		}
	}
	return false
}
