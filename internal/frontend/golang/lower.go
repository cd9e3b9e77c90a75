package golang

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/go/types/typeutil"

	"github.com/zheng/callmap/internal/syntax"
)

// lowerer converts one file's syntax into syntax.Nodes
type lowerer struct {
	info      *types.Info
	ds        *decls
	methods   []*ast.FuncDecl // in source order, for dispatch lookup
	receivers map[types.Type]*ifaceReceiver
}

// LowerFile builds the translation unit of file. isUser decides which
// import paths are user code; everything else is system code.
func LowerFile(fset *token.FileSet, file *ast.File, pkg *types.Package, info *types.Info, isUser func(string) bool) *syntax.Unit {
	l := &lowerer{
		info:      info,
		ds:        newDecls(fset, pkg, isUser),
		receivers: make(map[types.Type]*ifaceReceiver),
	}

	type def struct {
		fd *ast.FuncDecl
		d  *funcDecl
	}
	var defs []def
	for _, d := range file.Decls {
		fd, ok := d.(*ast.FuncDecl)
		if !ok {
			continue
		}
		fn, ok := info.Defs[fd.Name].(*types.Func)
		if !ok {
			continue
		}
		defs = append(defs, def{fd: fd, d: l.ds.define(fd, fn)})
		if fd.Recv != nil {
			l.methods = append(l.methods, fd)
		}
	}

	u := &syntax.Unit{
		Path:     fset.File(file.Pos()).Name(),
		Language: Language,
	}
	for _, df := range defs {
		td := syntax.TopDecl{Decl: df.d}
		if df.fd.Body != nil {
			td.Body = l.lower(df.fd.Body)
		}
		u.Decls = append(u.Decls, td)
	}
	return u
}

func (l *lowerer) lower(n ast.Node) *syntax.Node {
	switch n := n.(type) {
	case *ast.CallExpr:
		return l.call(n)
	case *ast.FuncLit:
		return &syntax.Node{
			Kind:     syntax.KindClosure,
			Closure:  l.ds.closureOf(n),
			Children: []*syntax.Node{l.lower(n.Body)},
		}
	case *ast.ParenExpr:
		return &syntax.Node{Kind: syntax.KindParen, Children: []*syntax.Node{l.lower(n.X)}}
	}
	return &syntax.Node{Kind: syntax.KindOther, Children: l.children(n)}
}

// children lowers the direct children of n
func (l *lowerer) children(n ast.Node) []*syntax.Node {
	var out []*syntax.Node
	ast.Inspect(n, func(c ast.Node) bool {
		if c == n {
			return true
		}
		if c != nil {
			out = append(out, l.lower(c))
		}
		return false
	})
	return out
}

func (l *lowerer) lowerAll(exprs []ast.Expr) []*syntax.Node {
	out := make([]*syntax.Node, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, l.lower(e))
	}
	return out
}

func (l *lowerer) call(c *ast.CallExpr) *syntax.Node {
	if tv, ok := l.info.Types[c.Fun]; ok && (tv.IsType() || tv.IsBuiltin()) {
		return &syntax.Node{Kind: syntax.KindOther, Children: l.children(c)}
	}

	args := l.lowerAll(c.Args)

	if fn := typeutil.StaticCallee(l.info, c); fn != nil {
		fnNode := l.lower(c.Fun)
		return &syntax.Node{
			Kind:     syntax.KindCall,
			Callee:   l.callee(fn, c.Fun),
			Fn:       fnNode,
			Children: append([]*syntax.Node{fnNode}, args...),
		}
	}

	if sel, ok := astutil.Unparen(c.Fun).(*ast.SelectorExpr); ok {
		if s, ok := l.info.Selections[sel]; ok && s.Kind() == types.MethodVal {
			if m, ok := s.Obj().(*types.Func); ok && isInterfaceMethod(m) {
				recv := m.Type().(*types.Signature).Recv().Type()
				return &syntax.Node{
					Kind: syntax.KindSend,
					Send: &syntax.Send{
						Selector: m.Name(),
						Instance: true,
						Receiver: l.receiver(recv, m),
						Span:     l.ds.span(sel.Sel.Pos(), c.End()),
					},
					Children: append([]*syntax.Node{l.lower(sel.X)}, args...),
				}
			}
		}
	}

	// Call through a function value.
	fnNode := l.lower(c.Fun)
	return &syntax.Node{
		Kind:     syntax.KindCall,
		Fn:       fnNode,
		Children: append([]*syntax.Node{fnNode}, args...),
	}
}

// callee resolves the declaration a static call targets, instantiating
// generic functions and methods of generic types.
func (l *lowerer) callee(fn *types.Func, fun ast.Expr) *funcDecl {
	if id := calleeIdent(fun); id != nil {
		if inst, ok := l.info.Instances[id]; ok && inst.TypeArgs.Len() > 0 {
			return l.ds.instance(fn, inst.TypeArgs)
		}
	}
	if sel, ok := astutil.Unparen(fun).(*ast.SelectorExpr); ok && isGeneric(fn.Origin()) {
		if s, ok := l.info.Selections[sel]; ok {
			if named, ok := deref(s.Recv()).(*types.Named); ok && named.TypeArgs().Len() > 0 {
				return l.ds.instance(fn, named.TypeArgs())
			}
		}
	}
	if recv := fn.Type().(*types.Signature).Recv(); recv != nil {
		if named, ok := deref(recv.Type()).(*types.Named); ok && named.TypeArgs().Len() > 0 {
			return l.ds.instance(fn, named.TypeArgs())
		}
	}
	return l.ds.function(fn)
}

// calleeIdent returns the identifier naming the function in a call's
// function expression.
func calleeIdent(fun ast.Expr) *ast.Ident {
	e := astutil.Unparen(fun)
	switch x := e.(type) {
	case *ast.IndexExpr:
		e = astutil.Unparen(x.X)
	case *ast.IndexListExpr:
		e = astutil.Unparen(x.X)
	}
	switch x := e.(type) {
	case *ast.Ident:
		return x
	case *ast.SelectorExpr:
		return x.Sel
	}
	return nil
}

func isInterfaceMethod(m *types.Func) bool {
	recv := m.Type().(*types.Signature).Recv()
	return recv != nil && types.IsInterface(recv.Type())
}

func deref(t types.Type) types.Type {
	if p, ok := t.(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}
