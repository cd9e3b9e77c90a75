package decl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zheng/callmap/internal/decl"
	"github.com/zheng/callmap/internal/decl/decltest"
)

func TestIdentity(t *testing.T) {
	def := decltest.Fn("f")
	proto := decltest.Proto(def)

	assert.Equal(t, decl.Decl(def), decl.Identity(proto))
	assert.Equal(t, decl.Identity(def), decl.Identity(proto))

	m := decltest.Method("m")
	m.Canon = decltest.Method("other")
	assert.Equal(t, decl.Decl(m), decl.Identity(m), "methods keep their own identity")

	assert.Nil(t, decl.Identity(nil))
}

func TestCanIncludeInGraph(t *testing.T) {
	tmpl := decltest.Fn("tmpl")
	tmpl.Template = true

	dependentMethod := decltest.Method("m")
	dependentMethod.Template = true

	tests := []struct {
		name string
		d    decl.Decl
		want bool
	}{
		{"plain function", decltest.Fn("f"), true},
		{"function without body", decltest.Proto(decltest.Fn("f")), true},
		{"template function", tmpl, false},
		{"inline prefix", decltest.Fn("__inline_memcpy"), false},
		{"builtin prefix", decltest.Fn("__builtin_expect"), false},
		{"cgo prefix", decltest.Fn("_Cfunc_puts"), false},
		{"dependent method", dependentMethod, true},
		{"closure", decltest.Closure(), true},
		{"placeholder", decl.NewPlaceholder("__inline", decl.Span{}), true},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decl.CanIncludeInGraph(tt.d))
		})
	}
}

func TestCanBeCallerInGraph(t *testing.T) {
	tmpl := decltest.Fn("tmpl")
	tmpl.Template = true

	assert.True(t, decl.CanBeCallerInGraph(decltest.Fn("f")))
	assert.True(t, decl.CanBeCallerInGraph(decltest.Method("m")))
	assert.False(t, decl.CanBeCallerInGraph(decltest.Proto(decltest.Fn("f"))))
	assert.False(t, decl.CanBeCallerInGraph(tmpl))
	assert.False(t, decl.CanBeCallerInGraph(decltest.Fn("__inline_x")))
	assert.False(t, decl.CanBeCallerInGraph(decl.NewPlaceholder("p", decl.Span{})))
}

func TestPlaceholder(t *testing.T) {
	span := decl.Span{File: "a.m", Line: 3, Column: 7}
	p := decl.NewPlaceholder("draw", span)

	assert.Equal(t, decl.KindMethod, p.Kind())
	assert.Equal(t, "draw", p.Name())
	assert.False(t, p.HasBody())
	assert.False(t, p.InSystem())
	assert.Equal(t, span, p.Span())
	assert.True(t, decl.IsPlaceholder(p))
	assert.False(t, decl.IsPlaceholder(decltest.Method("draw")))
	assert.Equal(t, "a.m:3:7", p.Span().String())
}
