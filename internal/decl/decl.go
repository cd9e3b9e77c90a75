// Package decl defines the declaration model shared by the front ends and the
// call graph builder: what a callable declaration exposes, how it is keyed in
// a graph and which declarations are allowed to appear in one.
package decl

import (
	"fmt"
	"strings"
)

// Kind classifies a callable declaration
type Kind int

const (
	KindFunction Kind = iota // free function, resolved statically
	KindMethod               // dynamically dispatched method
	KindClosure              // closure / block literal
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindMethod:
		return "method"
	case KindClosure:
		return "closure"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Span is a source location range
type Span struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"end_line"`
	EndColumn int    `json:"end_column"`
}

func (s Span) String() string {
	if s.File == "" {
		return "-"
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// Decl is a callable declaration owned by a front end.
// Implementations must be comparable: graphs key nodes by the interface value.
type Decl interface {
	Kind() Kind
	// Name is the display name; it may be empty for anonymous closures.
	Name() string
	// HasBody reports whether this occurrence is the defining one.
	HasBody() bool
	// InSystem reports whether the declaration originates in library or
	// system code rather than user code.
	InSystem() bool
	// Dependent reports whether the declaration lives in an unresolved
	// generic or template context.
	Dependent() bool
	// Canonical returns the representative shared by every occurrence of
	// the same entity (prototype and definition).
	Canonical() Decl
	Span() Span
}

// reservedPrefixes are name prefixes of compiler intrinsics and generated
// glue that never belong in a call graph.
var reservedPrefixes = []string{
	"__inline",
	"__builtin_",
	"_Cfunc_",
	"_cgo_",
}

// Identity returns the key under which d is stored in a graph.
// Dynamically dispatched methods keep their specific implementation as
// identity; everything else collapses to its canonical declaration.
func Identity(d Decl) Decl {
	if d == nil {
		return nil
	}
	if d.Kind() == KindMethod {
		return d
	}
	if c := d.Canonical(); c != nil {
		return c
	}
	return d
}

// CanIncludeInGraph reports whether d may appear as a node at all
func CanIncludeInGraph(d Decl) bool {
	if d == nil {
		return false
	}
	if d.Kind() != KindFunction {
		return true
	}
	if d.Dependent() {
		return false
	}
	return !HasReservedPrefix(d.Name())
}

// CanBeCallerInGraph reports whether d may be the origin of edges
func CanBeCallerInGraph(d Decl) bool {
	if d == nil || !d.HasBody() {
		return false
	}
	return CanIncludeInGraph(d)
}

// HasReservedPrefix reports whether name starts with a reserved prefix
func HasReservedPrefix(name string) bool {
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
