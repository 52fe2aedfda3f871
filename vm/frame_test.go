package vm

import (
	"testing"

	"sable/bytecode"
	"sable/runtime"
)

func TestFrameBindingShadowChain(t *testing.T) {
	frame := NewFrame(bytecode.NewByteCodeList(), nil)

	frame.Bind("x", runtime.NewNumber(1), bytecode.Public)
	frame.Bind("x", runtime.NewNumber(2), bytecode.Public)

	obj, ok := frame.Get("x")
	if !ok || obj.Number != 2 {
		t.Fatalf("most recent binding wins: got %v, %v", obj, ok)
	}

	frame.Unbind("x")
	obj, ok = frame.Get("x")
	if !ok || obj.Number != 1 {
		t.Errorf("unbinding restores the shadowed binding: got %v, %v", obj, ok)
	}

	frame.Unbind("x")
	if _, ok := frame.Get("x"); ok {
		t.Error("unbinding the last binding removes the name")
	}

	// unbinding an absent name is a no-op
	frame.Unbind("missing")
}

func TestFramePublicAttrs(t *testing.T) {
	frame := NewFrame(bytecode.NewByteCodeList(), nil)
	frame.Bind("y", runtime.NewNumber(5), bytecode.Public)
	frame.Bind("z", runtime.NewNumber(99), bytecode.Private)

	attrs := frame.PublicAttrs()
	if attrs.Size() != 1 {
		t.Fatalf("attribute count: got %d, want 1", attrs.Size())
	}
	value, ok := attrs.Get(runtime.NewString("y"))
	if !ok || value.Number != 5 {
		t.Errorf("public attribute y: got %v, %v", value, ok)
	}
	if attrs.ContainsKey(runtime.NewString("z")) {
		t.Error("private bindings must not become attributes")
	}
}
