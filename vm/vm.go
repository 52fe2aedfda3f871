// Package vm implements the stack-based virtual machine that executes
// sable bytecode: the operand stack, the call stack of frames with per-frame
// lookup tables, the exception-handler stack and the garbage collector.
//
// Execution is a fetch-decode-execute loop. The inner loop runs the current
// frame's instructions; it breaks when a call pushes a new frame or a
// return pops the current one, and the outer loop resumes against whichever
// frame is now on top. The machine returns the exit code consumed by
// EXIT_PROGRAM.
package vm

import (
	"fmt"
	"io"
	"math"
	"os"

	"sable/bytecode"
	"sable/runtime"
)

// handler is one entry of the exception-handler stack: the frame it was
// pushed in, the program counter of its catch chain, and the operand-stack
// depth to restore when unwinding reaches it.
type handler struct {
	frameIndex int
	catchPC    int
	stackDepth int
}

// VM is the virtual machine. A single instance executes one program; the
// REPL reuses an instance across inputs so global bindings persist.
type VM struct {
	stack    *Stack
	frames   []*Frame
	handlers []handler
	raised   *runtime.Object
	gc       *GC
	errOut   io.Writer
}

// New creates a virtual machine with an empty call stack.
func New() *VM {
	return &VM{
		stack:  &Stack{},
		gc:     NewGC(),
		errOut: os.Stderr,
	}
}

// SetErrorOutput redirects runtime diagnostics (type-mismatch messages).
func (vm *VM) SetErrorOutput(w io.Writer) {
	vm.errOut = w
}

// GC exposes the collector, primarily for inspection in tests.
func (vm *VM) GC() *GC {
	return vm.gc
}

// StackSize reports the operand stack depth; a completed top-level program
// leaves it at zero.
func (vm *VM) StackSize() int {
	return vm.stack.Size()
}

func (vm *VM) currentFrame() *Frame {
	return vm.frames[len(vm.frames)-1]
}

// popFrame removes the current frame and advances the caller past its
// FUNCTION_CALL instruction. Handlers pushed by the popped frame are
// dropped with it: a return inside a try never executes the handler pop the
// compiler placed after the protected body.
func (vm *VM) popFrame() {
	vm.frames = vm.frames[:len(vm.frames)-1]
	for len(vm.handlers) > 0 && vm.handlers[len(vm.handlers)-1].frameIndex >= len(vm.frames) {
		vm.handlers = vm.handlers[:len(vm.handlers)-1]
	}
	if len(vm.frames) > 0 {
		vm.currentFrame().pc++
	}
}

// roots gathers every object reachable from the machine state: frame
// lookup tables, the operand stack and the raised-exception slot.
func (vm *VM) roots() []*runtime.Object {
	var roots []*runtime.Object
	for _, frame := range vm.frames {
		roots = append(roots, frame.Bindings()...)
		if frame.fn != nil {
			roots = append(roots, frame.fn.Closures...)
		}
	}
	roots = append(roots, vm.stack.Objects()...)
	if vm.raised != nil {
		roots = append(roots, vm.raised)
	}
	return roots
}

// Run executes a complete program: the list becomes the initial call
// frame's program and execution continues until EXIT_PROGRAM. The returned
// int is the program's exit code.
func (vm *VM) Run(program *bytecode.ByteCodeList) (int, error) {
	vm.frames = []*Frame{NewFrame(program, nil)}
	code, _, err := vm.exec()
	vm.gc.Cleanup()
	return code, err
}

// Resume executes against a persistent top-level frame: the first call
// installs the program, later calls pick up where the previous input
// stopped (the REPL grows one ByteCodeList across inputs). The bool result
// reports whether the program exited via EXIT_PROGRAM.
func (vm *VM) Resume(program *bytecode.ByteCodeList) (int, bool, error) {
	if len(vm.frames) == 0 {
		vm.frames = []*Frame{NewFrame(program, nil)}
	} else {
		vm.frames[0].pg = program
	}
	return vm.exec()
}

// exec is the fetch-decode-execute loop.
func (vm *VM) exec() (int, bool, error) {
	for {
		frame := vm.currentFrame()

		// the top frame ran past its last instruction: the program is done
		// without an explicit exit (only reachable in REPL mode, where the
		// exit epilogue is not appended)
		if frame.pc >= frame.pg.Length() {
			if len(vm.frames) == 1 {
				return 0, false, nil
			}
			return 0, false, FatalError{Message: "function body ran past its last instruction"}
		}

	inner:
		for {
			// a jump may land one past the last instruction; the outer
			// loop handles that case
			if frame.pc >= frame.pg.Length() {
				break inner
			}
			ins := frame.pg.Code[frame.pc]

			switch ins.Op {
			case bytecode.LOAD_CONST:
				vm.stack.Push(constantObject(ins.Constant), true)

			case bytecode.LOAD_VAR:
				if exc, err := vm.execLoadVar(ins); err != nil {
					return 1, false, err
				} else if exc != nil {
					if err := vm.raise(exc, ins.Line); err != nil {
						return 1, false, err
					}
					break inner
				}

			case bytecode.MUTATE_VAR:
				src, _, _ := vm.stack.Pop()
				target, _, ok := vm.stack.Pop()
				if !ok {
					return 1, false, FatalError{Message: "operand stack underflow on MUTATE_VAR", Line: ins.Line}
				}
				target.Mutate(src)

			case bytecode.CREATE_VAR:
				obj, disposable, ok := vm.stack.Pop()
				if !ok {
					return 1, false, FatalError{Message: "operand stack underflow on CREATE_VAR", Line: ins.Line}
				}
				// an aliased primitive gets its own slot, so mutating the
				// new variable never reaches the value it was bound from;
				// reference types keep sharing their interior
				if !disposable {
					obj = obj.Snapshot()
				}
				frame.Bind(ins.Name, obj, ins.Access)
				vm.gc.Register(obj)

			case bytecode.DEREF_VAR:
				frame.Unbind(ins.Name)

			case bytecode.LOAD_ATTRIBUTE:
				if exc := vm.execLoadAttribute(ins); exc != nil {
					if err := vm.raise(exc, ins.Line); err != nil {
						return 1, false, err
					}
					break inner
				}

			case bytecode.LOAD_INDEX:
				if exc := vm.execLoadIndex(); exc != nil {
					if err := vm.raise(exc, ins.Line); err != nil {
						return 1, false, err
					}
					break inner
				}

			case bytecode.CREATE_LIST:
				elements := make([]*runtime.Object, ins.Count)
				for i := ins.Count - 1; i >= 0; i-- {
					obj, _, ok := vm.stack.Pop()
					if !ok {
						return 1, false, FatalError{Message: "operand stack underflow on CREATE_LIST", Line: ins.Line}
					}
					elements[i] = obj
					vm.gc.Register(obj)
				}
				list := runtime.NewList(runtime.NewListOf(elements...))
				vm.gc.Register(list)
				vm.stack.Push(list, false)

			case bytecode.CREATE_SET:
				if exc := vm.execCreateSet(ins); exc != nil {
					if err := vm.raise(exc, ins.Line); err != nil {
						return 1, false, err
					}
					break inner
				}

			case bytecode.CREATE_MAP:
				if exc := vm.execCreateMap(ins); exc != nil {
					if err := vm.raise(exc, ins.Line); err != nil {
						return 1, false, err
					}
					break inner
				}

			case bytecode.CREATE_FUNCTION:
				if err := vm.execCreateFunction(ins); err != nil {
					return 1, false, err
				}

			case bytecode.FUNCTION_CALL:
				pushed, exc, err := vm.execCall(ins)
				if err != nil {
					return 1, false, err
				}
				if exc != nil {
					if err := vm.raise(exc, ins.Line); err != nil {
						return 1, false, err
					}
					break inner
				}
				if pushed {
					break inner
				}

			case bytecode.FUNCTION_RETURN:
				vm.popFrame()
				break inner

			case bytecode.FUNCTION_RETURN_UNDEFINED:
				vm.stack.Push(runtime.Undefined(), true)
				vm.popFrame()
				break inner

			case bytecode.CREATE_OBJECT_RETURN:
				name := ""
				if frame.fn != nil {
					name = frame.fn.Record.Name
				}
				class := runtime.NewClass(&runtime.Class{Name: name, Attrs: frame.PublicAttrs()})
				vm.gc.Register(class)
				vm.stack.Push(class, false)
				vm.popFrame()
				break inner

			case bytecode.EXIT_PROGRAM:
				obj, _, ok := vm.stack.Pop()
				if !ok {
					return 1, false, FatalError{Message: "operand stack underflow on EXIT_PROGRAM", Line: ins.Line}
				}
				if obj.Type == runtime.NumberType {
					return int(int32(obj.Number)), true, nil
				}
				return 0, true, nil

			case bytecode.OFFSET_JUMP:
				frame.pc += ins.Offset
				continue

			case bytecode.ABSOLUTE_JUMP:
				frame.pc = ins.Offset
				continue

			case bytecode.OFFSET_JUMP_IF_TRUE_POP:
				vm.conditionalJump(frame, ins.Offset, true, true)
				continue

			case bytecode.OFFSET_JUMP_IF_FALSE_POP:
				vm.conditionalJump(frame, ins.Offset, false, true)
				continue

			case bytecode.OFFSET_JUMP_IF_TRUE_NOPOP:
				vm.conditionalJump(frame, ins.Offset, true, false)
				continue

			case bytecode.OFFSET_JUMP_IF_FALSE_NOPOP:
				vm.conditionalJump(frame, ins.Offset, false, false)
				continue

			case bytecode.POP_STACK:
				vm.stack.Pop()

			case bytecode.CREATE_EXCEPTION:
				exc := runtime.NewException(ins.Name, "")
				frame.Bind(ins.Name, exc, ins.Access)
				vm.gc.Register(exc)
				vm.stack.Push(exc, false)

			case bytecode.PUSH_EXCEPTION_HANDLER:
				vm.handlers = append(vm.handlers, handler{
					frameIndex: len(vm.frames) - 1,
					catchPC:    frame.pc + ins.Offset,
					stackDepth: vm.stack.Size(),
				})

			case bytecode.POP_EXCEPTION_HANDLER:
				if len(vm.handlers) > 0 {
					vm.handlers = vm.handlers[:len(vm.handlers)-1]
				}

			case bytecode.RAISE_EXCEPTION:
				obj, _, ok := vm.stack.Pop()
				if !ok {
					return 1, false, FatalError{Message: "operand stack underflow on RAISE_EXCEPTION", Line: ins.Line}
				}
				if obj.Type != runtime.ExceptionType {
					return 1, false, RuntimeError{Message: fmt.Sprintf("cannot raise a %s value", obj.Type), Line: ins.Line}
				}
				if err := vm.raise(obj.Exc, ins.Line); err != nil {
					return 1, false, err
				}
				break inner

			case bytecode.RAISE_EXCEPTION_IF_COMPARE_EXCEPTION_FALSE:
				selector, _, _ := vm.stack.Pop()
				if vm.raised == nil {
					return 1, false, FatalError{Message: "exception compare with no active exception", Line: ins.Line}
				}
				if vm.matchesRaised(selector) {
					break
				}
				if err := vm.raise(vm.raised.Exc, ins.Line); err != nil {
					return 1, false, err
				}
				break inner

			case bytecode.OFFSET_JUMP_IF_COMPARE_EXCEPTION_FALSE:
				selector, _, _ := vm.stack.Pop()
				if !vm.matchesRaised(selector) {
					frame.pc += ins.Offset
					continue
				}

			case bytecode.RESOLVE_RAISED_EXCEPTION:
				// a no-op when no exception is active
				vm.raised = nil

			case bytecode.LOGICAL_NOT_VARS_OP:
				top, ok := vm.stack.Peek()
				if !ok {
					return 1, false, FatalError{Message: "operand stack underflow on LOGICAL_NOT_VARS_OP", Line: ins.Line}
				}
				vm.stack.ReplaceTop(boolObject(!top.Truthy()))

			default:
				if isBinaryOp(ins.Op) {
					if exc := vm.execBinaryOp(ins); exc != nil {
						if err := vm.raise(exc, ins.Line); err != nil {
							return 1, false, err
						}
						break inner
					}
				} else {
					return 1, false, FatalError{Message: fmt.Sprintf("unknown opcode %s", ins.Op), Line: ins.Line}
				}
			}

			frame.pc++
			vm.gc.Tick(vm.roots)

			if frame.pc >= frame.pg.Length() {
				break inner
			}
		}
	}
}

// constantObject materialises an embedded literal as a fresh runtime
// object; constants are deep-copied on every load so runtime mutation can
// never reach the compiled program.
func constantObject(constant any) *runtime.Object {
	switch value := constant.(type) {
	case float64:
		return runtime.NewNumber(value)
	case string:
		return runtime.NewString(value)
	case nil:
		return runtime.Null()
	default:
		return runtime.Undefined()
	}
}

func boolObject(b bool) *runtime.Object {
	if b {
		return runtime.NewNumber(1)
	}
	return runtime.NewNumber(0)
}

// conditionalJump pops (or peeks) the top of the stack and moves the
// program counter by offset when its truthiness matches condition,
// advancing past the jump otherwise.
func (vm *VM) conditionalJump(frame *Frame, offset int, condition bool, pop bool) {
	var obj *runtime.Object
	if pop {
		obj, _, _ = vm.stack.Pop()
	} else {
		obj, _ = vm.stack.Peek()
	}
	if obj != nil && obj.Truthy() == condition {
		frame.pc += offset
	} else {
		frame.pc++
	}
}

// execLoadVar resolves a name: the current frame first, then the builtin
// function registry, then the builtin exception registry.
func (vm *VM) execLoadVar(ins *bytecode.Instruction) (*runtime.Exception, error) {
	if obj, ok := vm.currentFrame().Get(ins.Name); ok {
		vm.stack.Push(obj, false)
		return nil, nil
	}
	if builtin := runtime.GetBuiltin(ins.Name); builtin != nil {
		vm.stack.Push(runtime.NewFunction(runtime.NewBuiltinFunction(builtin)), true)
		return nil, nil
	}
	if exc := runtime.LookupBuiltinException(ins.Name); exc != nil {
		vm.stack.Push(exc, true)
		return nil, nil
	}
	return nil, RuntimeError{Message: fmt.Sprintf("undefined variable '%s'", ins.Name), Line: ins.Line}
}

// execLoadAttribute resolves an attribute: class instances consult their
// attribute map, builtin-typed values the (type, name) registry. A missing
// attribute raises AttributeError.
func (vm *VM) execLoadAttribute(ins *bytecode.Instruction) *runtime.Exception {
	obj, _, ok := vm.stack.Pop()
	if !ok {
		return &runtime.Exception{Name: runtime.ExcAttributeError, Message: "no value to load an attribute from"}
	}

	if obj.Type == runtime.ClassType {
		attr, found := obj.Class.Attrs.Get(runtime.NewString(ins.Name))
		if !found {
			return &runtime.Exception{
				Name:    runtime.ExcAttributeError,
				Message: fmt.Sprintf("'%s' object has no attribute '%s'", obj.Class.Name, ins.Name),
			}
		}
		vm.stack.Push(attr, false)
		return nil
	}

	attr := runtime.GetAttr(obj, ins.Name)
	if attr == nil {
		return &runtime.Exception{
			Name:    runtime.ExcAttributeError,
			Message: fmt.Sprintf("%s has no attribute '%s'", obj.Type, ins.Name),
		}
	}
	vm.stack.Push(attr, true)
	return nil
}

// execLoadIndex implements container indexing: list positions, map keys,
// set membership.
func (vm *VM) execLoadIndex() *runtime.Exception {
	index, _, _ := vm.stack.Pop()
	container, _, ok := vm.stack.Pop()
	if !ok {
		return &runtime.Exception{Name: runtime.ExcNonIndexibleObject, Message: "no container to index"}
	}

	switch container.Type {
	case runtime.ListType:
		if index.Type != runtime.NumberType {
			return &runtime.Exception{
				Name:    runtime.ExcInvalidIndexType,
				Message: fmt.Sprintf("list index must be a number, got %s", index.Type),
			}
		}
		element, inBounds := container.List.Get(int(index.Number))
		if !inBounds {
			return &runtime.Exception{
				Name:    runtime.ExcIndexOutOfBounds,
				Message: fmt.Sprintf("index %s out of bounds for list of length %d", runtime.FormatNumber(index.Number), container.List.Length()),
			}
		}
		vm.stack.Push(element, false)
		return nil

	case runtime.MapType:
		if _, hashable := index.Hash(); !hashable {
			return &runtime.Exception{Name: runtime.ExcUnhashableType, Message: fmt.Sprintf("%s is not hashable", index.Type)}
		}
		value, found := container.Map.Get(index)
		if !found {
			return &runtime.Exception{Name: runtime.ExcKeyError, Message: fmt.Sprintf("no entry for key %s", index.ToString())}
		}
		vm.stack.Push(value, false)
		return nil

	case runtime.SetType:
		if _, hashable := index.Hash(); !hashable {
			return &runtime.Exception{Name: runtime.ExcUnhashableType, Message: fmt.Sprintf("%s is not hashable", index.Type)}
		}
		element, found := container.Set.Get(index)
		if !found {
			return &runtime.Exception{Name: runtime.ExcKeyError, Message: fmt.Sprintf("no element %s", index.ToString())}
		}
		vm.stack.Push(element, false)
		return nil

	default:
		return &runtime.Exception{
			Name:    runtime.ExcNonIndexibleObject,
			Message: fmt.Sprintf("%s is not indexable", container.Type),
		}
	}
}

func (vm *VM) execCreateSet(ins *bytecode.Instruction) *runtime.Exception {
	elements := make([]*runtime.Object, ins.Count)
	for i := ins.Count - 1; i >= 0; i-- {
		obj, _, _ := vm.stack.Pop()
		elements[i] = obj
	}
	set := runtime.NewSetEmpty()
	for _, element := range elements {
		if element == nil {
			return &runtime.Exception{Name: runtime.ExcUnhashableType, Message: "operand stack underflow on CREATE_SET"}
		}
		if !set.Add(element) {
			return &runtime.Exception{Name: runtime.ExcUnhashableType, Message: fmt.Sprintf("%s is not hashable", element.Type)}
		}
		vm.gc.Register(element)
	}
	obj := runtime.NewSet(set)
	vm.gc.Register(obj)
	vm.stack.Push(obj, false)
	return nil
}

func (vm *VM) execCreateMap(ins *bytecode.Instruction) *runtime.Exception {
	pairCount := ins.Count / 2
	keys := make([]*runtime.Object, pairCount)
	values := make([]*runtime.Object, pairCount)
	// the value of each pair is pushed after its key
	for i := pairCount - 1; i >= 0; i-- {
		values[i], _, _ = vm.stack.Pop()
		keys[i], _, _ = vm.stack.Pop()
	}
	m := runtime.NewMapEmpty()
	// insert in source order so duplicate keys resolve to the later entry
	for i := 0; i < pairCount; i++ {
		if keys[i] == nil || values[i] == nil {
			return &runtime.Exception{Name: runtime.ExcUnhashableType, Message: "operand stack underflow on CREATE_MAP"}
		}
		if !m.Insert(keys[i], values[i]) {
			return &runtime.Exception{Name: runtime.ExcUnhashableType, Message: fmt.Sprintf("%s is not hashable", keys[i].Type)}
		}
		vm.gc.Register(keys[i])
		vm.gc.Register(values[i])
	}
	obj := runtime.NewMap(m)
	vm.gc.Register(obj)
	vm.stack.Push(obj, false)
	return nil
}

// execCreateFunction materialises the embedded function record into a
// function value, resolving each closure name against the current frame.
// Primitives are captured by value, reference types by shared object.
func (vm *VM) execCreateFunction(ins *bytecode.Instruction) error {
	frame := vm.currentFrame()
	closures := make([]*runtime.Object, len(ins.Function.ClosureNames))
	for i, name := range ins.Function.ClosureNames {
		obj, ok := frame.Get(name)
		if !ok {
			return RuntimeError{
				Message: fmt.Sprintf("cannot capture '%s': not bound in the enclosing frame", name),
				Line:    ins.Line,
			}
		}
		closures[i] = obj.Snapshot()
		vm.gc.Register(closures[i])
	}
	fn := runtime.NewFunction(runtime.NewUserFunction(ins.Function, closures))
	vm.gc.Register(fn)
	vm.stack.Push(fn, false)
	return nil
}

// execCall dispatches FUNCTION_CALL. Builtins and attribute builtins run in
// place and leave their result on the stack; user functions push a new
// frame binding parameters, closure slots and the function's own name.
func (vm *VM) execCall(ins *bytecode.Instruction) (bool, *runtime.Exception, error) {
	args := make([]*runtime.Object, ins.Count)
	for i := ins.Count - 1; i >= 0; i-- {
		obj, _, ok := vm.stack.Pop()
		if !ok {
			return false, nil, FatalError{Message: "operand stack underflow on FUNCTION_CALL", Line: ins.Line}
		}
		args[i] = obj
	}
	callee, _, ok := vm.stack.Pop()
	if !ok {
		return false, nil, FatalError{Message: "operand stack underflow on FUNCTION_CALL", Line: ins.Line}
	}
	if callee.Type != runtime.FunctionType {
		return false, nil, RuntimeError{Message: fmt.Sprintf("%s value is not callable", callee.Type), Line: ins.Line}
	}

	fn := callee.Func
	switch fn.Kind {
	case runtime.BuiltinFunction:
		if fn.Builtin.Arity != -1 && fn.Builtin.Arity != len(args) {
			return false, nil, RuntimeError{
				Message: fmt.Sprintf("%s expects %d arguments, got %d", fn.Name(), fn.Builtin.Arity, len(args)),
				Line:    ins.Line,
			}
		}
		result, exc := fn.Builtin.Call(args)
		if exc != nil {
			return false, exc, nil
		}
		vm.pushCallResult(result)
		return false, nil, nil

	case runtime.AttrBuiltinFunction:
		if fn.Attr.Arity != -1 && fn.Attr.Arity != len(args) {
			return false, nil, RuntimeError{
				Message: fmt.Sprintf("%s expects %d arguments, got %d", fn.Name(), fn.Attr.Arity, len(args)),
				Line:    ins.Line,
			}
		}
		result, exc := fn.Attr.Call(fn.Target, args)
		if exc != nil {
			return false, exc, nil
		}
		vm.pushCallResult(result)
		return false, nil, nil

	default:
		if len(vm.frames) >= maxCallDepth {
			return false, nil, FatalError{Message: "stack overflow", Line: ins.Line}
		}
		record := fn.Record
		if len(args) != len(record.Args) {
			return false, nil, RuntimeError{
				Message: fmt.Sprintf("%s expects %d arguments, got %d", fn.Name(), len(record.Args), len(args)),
				Line:    ins.Line,
			}
		}

		frame := NewFrame(record.Body, fn)
		for i, name := range record.Args {
			frame.Bind(name, args[i], bytecode.Public)
			vm.gc.Register(args[i])
		}
		for i, name := range record.ClosureNames {
			frame.Bind(name, fn.Closures[i], bytecode.Public)
		}
		if record.Name != "" {
			// the function's own name resolves inside its frames so
			// recursion works; private keeps it out of class attribute maps
			self := runtime.NewFunction(fn.ShallowCopy())
			frame.Bind(record.Name, self, bytecode.Private)
			vm.gc.Register(self)
		}
		vm.frames = append(vm.frames, frame)
		return true, nil, nil
	}
}

// pushCallResult publishes a builtin's return value. Reference-typed
// results are registered before any external reference to them exists.
func (vm *VM) pushCallResult(result *runtime.Object) {
	if result == nil {
		result = runtime.Undefined()
	}
	if !result.IsPrimitive() {
		vm.gc.Register(result)
	}
	vm.stack.Push(result, true)
}

// matchesRaised compares a catch selector to the active exception.
// Exceptions compare by name.
func (vm *VM) matchesRaised(selector *runtime.Object) bool {
	if vm.raised == nil || selector == nil {
		return false
	}
	return selector.Equals(vm.raised)
}

// raise sets the raised slot and unwinds: frames are popped until the top
// handler's frame is current, the operand stack is cut back to the depth
// recorded at handler push, and control transfers to the catch chain. With
// no handler left the exception is uncaught and execution aborts.
func (vm *VM) raise(exc *runtime.Exception, line int) error {
	vm.raised = runtime.NewException(exc.Name, exc.Message)

	if len(vm.handlers) == 0 {
		return RuntimeError{Message: fmt.Sprintf("uncaught exception: %s", vm.raised.ToString()), Line: line}
	}

	h := vm.handlers[len(vm.handlers)-1]
	vm.handlers = vm.handlers[:len(vm.handlers)-1]

	for len(vm.frames)-1 > h.frameIndex {
		vm.frames = vm.frames[:len(vm.frames)-1]
	}
	vm.stack.TruncateTo(h.stackDepth)
	vm.currentFrame().pc = h.catchPC
	return nil
}

func isBinaryOp(op bytecode.Opcode) bool {
	return op >= bytecode.ADD_VARS_OP && op <= bytecode.LOGICAL_OR_VARS_OP
}

// execBinaryOp pops the two operands, applies the operator per the value
// model, and pushes the result as disposable. Type mismatches log a
// diagnostic and push a best-effort result; only division and modulus by
// zero raise.
func (vm *VM) execBinaryOp(ins *bytecode.Instruction) *runtime.Exception {
	right, _, _ := vm.stack.Pop()
	left, _, ok := vm.stack.Pop()
	if !ok {
		left = runtime.Undefined()
	}
	if right == nil {
		right = runtime.Undefined()
	}

	result, exc := vm.applyBinary(ins, left, right)
	if exc != nil {
		return exc
	}
	vm.stack.Push(result, true)
	if !result.IsPrimitive() {
		vm.gc.Register(result)
	}
	return nil
}

func (vm *VM) applyBinary(ins *bytecode.Instruction, left, right *runtime.Object) (*runtime.Object, *runtime.Exception) {
	bothNumbers := left.Type == runtime.NumberType && right.Type == runtime.NumberType

	switch ins.Op {
	case bytecode.ADD_VARS_OP:
		if bothNumbers {
			return runtime.NewNumber(left.Number + right.Number), nil
		}
		if left.Type == runtime.StringType && right.Type == runtime.StringType {
			return runtime.NewString(left.Str + right.Str), nil
		}
		if left.Type == runtime.ListType && right.Type == runtime.ListType {
			joined := runtime.NewListOf()
			joined.Elements = append(joined.Elements, left.List.Elements...)
			joined.Elements = append(joined.Elements, right.List.Elements...)
			return runtime.NewList(joined), nil
		}
		return vm.typeMismatch(ins, "+", left, right), nil

	case bytecode.SUB_VARS_OP:
		if bothNumbers {
			return runtime.NewNumber(left.Number - right.Number), nil
		}
		return vm.typeMismatch(ins, "-", left, right), nil

	case bytecode.MULT_VARS_OP:
		if bothNumbers {
			return runtime.NewNumber(left.Number * right.Number), nil
		}
		// list repetition requires one side to be a number
		if left.Type == runtime.ListType && right.Type == runtime.NumberType {
			return repeatList(left.List, int(right.Number)), nil
		}
		if left.Type == runtime.NumberType && right.Type == runtime.ListType {
			return repeatList(right.List, int(left.Number)), nil
		}
		return vm.typeMismatch(ins, "*", left, right), nil

	case bytecode.DIV_VARS_OP:
		if bothNumbers {
			if right.Number == 0 {
				return nil, &runtime.Exception{Name: runtime.ExcDivisionByZero, Message: "division by zero"}
			}
			return runtime.NewNumber(left.Number / right.Number), nil
		}
		return vm.typeMismatch(ins, "/", left, right), nil

	case bytecode.MOD_VARS_OP:
		if bothNumbers {
			if int32(right.Number) == 0 {
				return nil, &runtime.Exception{Name: runtime.ExcDivisionByZero, Message: "modulus by zero"}
			}
			return runtime.NewNumber(float64(int32(left.Number) % int32(right.Number))), nil
		}
		return vm.typeMismatch(ins, "%", left, right), nil

	case bytecode.EXP_VARS_OP:
		if bothNumbers {
			return runtime.NewNumber(math.Pow(left.Number, right.Number)), nil
		}
		return vm.typeMismatch(ins, "**", left, right), nil

	case bytecode.BITWISE_VARS_AND_OP:
		if bothNumbers {
			return runtime.NewNumber(float64(int32(left.Number) & int32(right.Number))), nil
		}
		return vm.typeMismatch(ins, "&", left, right), nil

	case bytecode.BITWISE_VARS_OR_OP:
		if bothNumbers {
			return runtime.NewNumber(float64(int32(left.Number) | int32(right.Number))), nil
		}
		return vm.typeMismatch(ins, "|", left, right), nil

	case bytecode.BITWISE_XOR_VARS_OP:
		if bothNumbers {
			return runtime.NewNumber(float64(int32(left.Number) ^ int32(right.Number))), nil
		}
		return vm.typeMismatch(ins, "^", left, right), nil

	case bytecode.SHIFT_LEFT_VARS_OP:
		if bothNumbers {
			return runtime.NewNumber(float64(int32(left.Number) << uint32(int32(right.Number)))), nil
		}
		return vm.typeMismatch(ins, "<<", left, right), nil

	case bytecode.SHIFT_RIGHT_VARS_OP:
		if bothNumbers {
			return runtime.NewNumber(float64(int32(left.Number) >> uint32(int32(right.Number)))), nil
		}
		return vm.typeMismatch(ins, ">>", left, right), nil

	case bytecode.GREATER_THAN_VARS_OP:
		return boolObject(left.Compare(right) > 0), nil
	case bytecode.GREATER_EQUAL_VARS_OP:
		return boolObject(left.Compare(right) >= 0), nil
	case bytecode.LESSER_THAN_VARS_OP:
		return boolObject(left.Compare(right) < 0), nil
	case bytecode.LESSER_EQUAL_VARS_OP:
		return boolObject(left.Compare(right) <= 0), nil
	case bytecode.EQUAL_TO_VARS_OP:
		return boolObject(left.Equals(right)), nil
	case bytecode.LOGICAL_AND_VARS_OP:
		return boolObject(left.Truthy() && right.Truthy()), nil
	case bytecode.LOGICAL_OR_VARS_OP:
		return boolObject(left.Truthy() || right.Truthy()), nil
	}

	return runtime.Undefined(), nil
}

// typeMismatch logs a diagnostic and yields the best-effort result for a
// mismatched operand pair.
func (vm *VM) typeMismatch(ins *bytecode.Instruction, op string, left, right *runtime.Object) *runtime.Object {
	fmt.Fprintf(vm.errOut, "Type mismatch: line:%d - cannot apply '%s' to %s and %s\n", ins.Line, op, left.Type, right.Type)
	return runtime.Undefined()
}

func repeatList(list *runtime.List, times int) *runtime.Object {
	repeated := runtime.NewListOf()
	for i := 0; i < times; i++ {
		repeated.Elements = append(repeated.Elements, list.Elements...)
	}
	return runtime.NewList(repeated)
}
