package vm

import (
	"sable/bytecode"
	"sable/runtime"
)

// maxCallDepth bounds the call stack so runaway recursion surfaces as a
// clean stack-overflow error instead of a process crash.
const maxCallDepth = 16000

// binding is one live name in a frame's lookup table. prev holds the
// binding this one shadows (an inner block redeclaring an outer block's
// name within the same frame); DEREF_VAR restores it.
type binding struct {
	obj    *runtime.Object
	access bytecode.Access
	prev   *binding
}

// Frame is one call-stack entry: the program it executes, its program
// counter, its variable lookup table and the function it belongs to (nil
// for the top-level frame, whose program is owned by the loader).
type Frame struct {
	pc     int
	pg     *bytecode.ByteCodeList
	lookup map[string]*binding
	fn     *runtime.Function
}

// NewFrame creates a frame positioned at the start of a program.
func NewFrame(pg *bytecode.ByteCodeList, fn *runtime.Function) *Frame {
	return &Frame{
		pg:     pg,
		lookup: map[string]*binding{},
		fn:     fn,
	}
}

// Bind inserts a binding for name, shadowing any existing one.
func (f *Frame) Bind(name string, obj *runtime.Object, access bytecode.Access) {
	f.lookup[name] = &binding{obj: obj, access: access, prev: f.lookup[name]}
}

// Get returns the object bound to name in this frame.
func (f *Frame) Get(name string) (*runtime.Object, bool) {
	b, ok := f.lookup[name]
	if !ok {
		return nil, false
	}
	return b.obj, true
}

// Unbind removes the most recent binding of name, restoring the one it
// shadowed when there is one.
func (f *Frame) Unbind(name string) {
	b, ok := f.lookup[name]
	if !ok {
		return
	}
	if b.prev != nil {
		f.lookup[name] = b.prev
	} else {
		delete(f.lookup, name)
	}
}

// Bindings returns every live binding, shadowed ones included; the garbage
// collector marks from these.
func (f *Frame) Bindings() []*runtime.Object {
	var objects []*runtime.Object
	for _, b := range f.lookup {
		for ; b != nil; b = b.prev {
			objects = append(objects, b.obj)
		}
	}
	return objects
}

// PublicAttrs materialises the frame's lookup table into a class attribute
// map, keeping public bindings only. Used by CREATE_OBJECT_RETURN.
func (f *Frame) PublicAttrs() *runtime.Map {
	attrs := runtime.NewMapEmpty()
	for name, b := range f.lookup {
		if b.access != bytecode.Public {
			continue
		}
		attrs.Insert(runtime.NewString(name), b.obj)
	}
	return attrs
}
