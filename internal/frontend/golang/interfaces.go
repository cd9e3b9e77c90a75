package golang

import (
	"go/types"

	"github.com/zheng/callmap/internal/decl"
)

// ifaceReceiver is an interface type methods are dispatched through
type ifaceReceiver struct {
	l     *lowerer
	t     types.Type
	iface *types.Interface
	name  string
	sys   bool
}

// receiver returns the dispatch receiver for interface t; m is the method
// being called.
func (l *lowerer) receiver(t types.Type, m *types.Func) *ifaceReceiver {
	if r, ok := l.receivers[t]; ok {
		return r
	}
	r := &ifaceReceiver{
		l:    l,
		t:    t,
		name: types.TypeString(t, l.ds.qualifier),
	}
	r.iface, _ = t.Underlying().(*types.Interface)
	if named, ok := t.(*types.Named); ok {
		r.sys = l.ds.system(named.Obj())
	} else {
		r.sys = l.ds.system(m)
	}
	l.receivers[t] = r
	return r
}

func (r *ifaceReceiver) Name() string   { return r.name }
func (r *ifaceReceiver) InSystem() bool { return r.sys }

// Lookup returns the first method declared in this file, in source order,
// that is named selector and whose receiver type implements the interface.
// Go has no class-level messages.
func (r *ifaceReceiver) Lookup(selector string, instance bool) decl.Decl {
	if !instance || r.iface == nil {
		return nil
	}
	for _, fd := range r.l.methods {
		fn, ok := r.l.info.Defs[fd.Name].(*types.Func)
		if !ok || fn.Name() != selector || isGeneric(fn) {
			continue
		}
		recv := fn.Type().(*types.Signature).Recv()
		if recv == nil {
			continue
		}
		if implements(deref(recv.Type()), r.iface) {
			return r.l.ds.function(fn)
		}
	}
	return nil
}

// implements reports whether T or *T implements iface
func implements(t types.Type, iface *types.Interface) bool {
	if types.Implements(t, iface) {
		return true
	}
	return types.Implements(types.NewPointer(t), iface)
}
