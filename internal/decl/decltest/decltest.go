// Package decltest provides in-memory declarations for tests.
package decltest

import "github.com/zheng/callmap/internal/decl"

// Func is a configurable decl.Decl
type Func struct {
	ID       string
	Of       decl.Kind
	Body     bool
	System   bool
	Template bool
	Canon    *Func
	Loc      decl.Span
}

// Fn returns a user function with a body
func Fn(name string) *Func {
	return &Func{ID: name, Of: decl.KindFunction, Body: true}
}

// Proto returns a body-less occurrence whose canonical form is def
func Proto(def *Func) *Func {
	return &Func{ID: def.ID, Of: def.Of, Canon: def}
}

// SystemFn returns a system function without a body
func SystemFn(name string) *Func {
	return &Func{ID: name, Of: decl.KindFunction, System: true}
}

// Method returns a user method with a body
func Method(name string) *Func {
	return &Func{ID: name, Of: decl.KindMethod, Body: true}
}

// Closure returns an anonymous closure with a body
func Closure() *Func {
	return &Func{Of: decl.KindClosure, Body: true}
}

func (f *Func) Kind() decl.Kind { return f.Of }
func (f *Func) Name() string    { return f.ID }
func (f *Func) HasBody() bool   { return f.Body }
func (f *Func) InSystem() bool  { return f.System }
func (f *Func) Dependent() bool { return f.Template }
func (f *Func) Span() decl.Span { return f.Loc }

func (f *Func) Canonical() decl.Decl {
	if f.Canon != nil {
		return f.Canon
	}
	return f
}
