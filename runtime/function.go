package runtime

import (
	"fmt"

	"sable/bytecode"
)

// FunctionKind discriminates the three function shapes: user functions
// compiled from source, builtins, and attribute builtins bound to a target
// value.
type FunctionKind int

const (
	UserFunction FunctionKind = iota
	BuiltinFunction
	AttrBuiltinFunction
)

var functionCounter uint64

// Function is the runtime function value. Exactly one of the three shapes
// is populated, per Kind. The Record and its bytecode body are immutable
// and shared between every binding of the same CREATE_FUNCTION instruction;
// Closures is the slot vector freshly resolved at each binding site.
type Function struct {
	id   uint64
	Kind FunctionKind

	// user function
	Record   *bytecode.FunctionRecord
	Closures []*Object

	// builtin
	Builtin *Builtin

	// attribute builtin
	Attr   *AttrBuiltin
	Target *Object
}

func newFunction(kind FunctionKind) *Function {
	functionCounter++
	return &Function{id: functionCounter, Kind: kind}
}

// NewUserFunction binds a function record to its captured closure slots.
// The closures slice runs parallel to record.ClosureNames.
func NewUserFunction(record *bytecode.FunctionRecord, closures []*Object) *Function {
	fn := newFunction(UserFunction)
	fn.Record = record
	fn.Closures = closures
	return fn
}

// NewBuiltinFunction wraps a registry builtin as a function value.
func NewBuiltinFunction(builtin *Builtin) *Function {
	fn := newFunction(BuiltinFunction)
	fn.Builtin = builtin
	return fn
}

// NewAttrFunction wraps an attribute builtin bound to its target value.
func NewAttrFunction(attr *AttrBuiltin, target *Object) *Function {
	fn := newFunction(AttrBuiltinFunction)
	fn.Attr = attr
	fn.Target = target
	return fn
}

// ShallowCopy returns a new function value sharing the record, closures and
// builtin pointers. Used to bind a function's own name inside its frames so
// recursion resolves without touching the defining scope.
func (fn *Function) ShallowCopy() *Function {
	cpy := newFunction(fn.Kind)
	cpy.Record = fn.Record
	cpy.Closures = fn.Closures
	cpy.Builtin = fn.Builtin
	cpy.Attr = fn.Attr
	cpy.Target = fn.Target
	return cpy
}

// Same reports function equality: user functions compare by body record,
// builtins by registry entry, attribute builtins by handler and target.
func (fn *Function) Same(other *Function) bool {
	if fn.Kind != other.Kind {
		return false
	}
	switch fn.Kind {
	case UserFunction:
		return fn.Record == other.Record
	case BuiltinFunction:
		return fn.Builtin == other.Builtin
	default:
		return fn.Attr == other.Attr && fn.Target == other.Target
	}
}

// Name returns the function's name, or "<inline>" for nameless user
// functions.
func (fn *Function) Name() string {
	switch fn.Kind {
	case UserFunction:
		if fn.Record.Name == "" {
			return "<inline>"
		}
		return fn.Record.Name
	case BuiltinFunction:
		return fn.Builtin.Name
	default:
		return fn.Attr.Name
	}
}

// Arity returns the number of parameters the function expects, or -1 for
// variadic builtins.
func (fn *Function) Arity() int {
	switch fn.Kind {
	case UserFunction:
		return len(fn.Record.Args)
	case BuiltinFunction:
		return fn.Builtin.Arity
	default:
		return fn.Attr.Arity
	}
}

func (fn *Function) ToString() string {
	switch fn.Kind {
	case UserFunction:
		return fmt.Sprintf("<function %s>", fn.Name())
	case BuiltinFunction:
		return fmt.Sprintf("<builtin %s>", fn.Name())
	default:
		return fmt.Sprintf("<method %s of %s>", fn.Name(), fn.Target.Type)
	}
}
