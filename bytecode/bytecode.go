// Package bytecode defines the instruction set produced by the compiler and
// executed by the virtual machine: opcodes, the Instruction struct carrying
// an immediate and a source line, the append-only ByteCodeList, and the
// immutable FunctionRecord embedded by CREATE_FUNCTION.
package bytecode

import "fmt"

type Opcode int

const (
	// Pushes a deep copy of the embedded constant value onto the stack
	LOAD_CONST Opcode = iota

	// Pushes the value mapped to a name onto the stack, falling back to the
	// builtin registry when the current frame has no binding
	LOAD_VAR

	// Pops a new value and a target from the stack and overwrites the
	// target's interior so every alias observes the update
	MUTATE_VAR

	// Pops the top of the stack and binds it to a name in the current frame
	CREATE_VAR

	// Removes a name's binding from the current frame
	DEREF_VAR

	// Pops a value and pushes the attribute mapped to the embedded name
	LOAD_ATTRIBUTE

	// Pops an index, pops a container, pushes container[index]
	LOAD_INDEX

	// Pops the top n values (reversing them) into a new list
	CREATE_LIST

	// Pops the top n values (reversing them) into a new set
	CREATE_SET

	// Pops the top n values, n/2 key-value pairs with each key pushed before
	// its value, into a new map
	CREATE_MAP

	// Pushes a function value built from the embedded record, capturing the
	// closure slots from the current frame
	CREATE_FUNCTION

	// Pops the callee and n arguments; builtins run in place, user
	// functions push a new call frame
	FUNCTION_CALL

	// Pops the current frame; the return value is already on the stack
	FUNCTION_RETURN

	// Pushes Undefined, then pops the current frame
	FUNCTION_RETURN_UNDEFINED

	// Builds a class value from the current frame's lookup table, pushes
	// it, then pops the frame
	CREATE_OBJECT_RETURN

	// Pops the exit code and terminates the program
	EXIT_PROGRAM

	// Moves the program counter by a signed relative offset
	OFFSET_JUMP

	// Moves the program counter to a fixed index
	ABSOLUTE_JUMP

	// Pops; jumps by the offset when the popped value is truthy
	OFFSET_JUMP_IF_TRUE_POP

	// Pops; jumps by the offset when the popped value is falsy
	OFFSET_JUMP_IF_FALSE_POP

	// Peeks; jumps by the offset when the top of stack is truthy
	OFFSET_JUMP_IF_TRUE_NOPOP

	// Peeks; jumps by the offset when the top of stack is falsy
	OFFSET_JUMP_IF_FALSE_NOPOP

	// Pops the operand stack
	POP_STACK

	// Pushes a new exception value and binds it to the embedded name
	CREATE_EXCEPTION

	// Pushes an exception handler; the offset points at the catch chain
	PUSH_EXCEPTION_HANDLER

	// Pops the top exception handler
	POP_EXCEPTION_HANDLER

	// Pops an exception value and raises it, unwinding to the top handler
	RAISE_EXCEPTION

	// Pops a selector; re-raises the active exception when it does not
	// match, falls through when it does
	RAISE_EXCEPTION_IF_COMPARE_EXCEPTION_FALSE

	// Pops a selector; jumps by the offset when it does not match the
	// active exception
	OFFSET_JUMP_IF_COMPARE_EXCEPTION_FALSE

	// Clears the active exception slot
	RESOLVE_RAISED_EXCEPTION

	// Binary operators: pop two operands, push the result
	ADD_VARS_OP
	SUB_VARS_OP
	MULT_VARS_OP
	DIV_VARS_OP
	MOD_VARS_OP
	EXP_VARS_OP
	BITWISE_VARS_AND_OP
	BITWISE_VARS_OR_OP
	BITWISE_XOR_VARS_OP
	SHIFT_LEFT_VARS_OP
	SHIFT_RIGHT_VARS_OP
	GREATER_THAN_VARS_OP
	GREATER_EQUAL_VARS_OP
	LESSER_THAN_VARS_OP
	LESSER_EQUAL_VARS_OP
	EQUAL_TO_VARS_OP
	LOGICAL_AND_VARS_OP
	LOGICAL_OR_VARS_OP

	// Negates the truthiness of the top of stack in place
	LOGICAL_NOT_VARS_OP
)

var opcodeNames = map[Opcode]string{
	LOAD_CONST:                                 "LOAD_CONST",
	LOAD_VAR:                                   "LOAD_VAR",
	MUTATE_VAR:                                 "MUTATE_VAR",
	CREATE_VAR:                                 "CREATE_VAR",
	DEREF_VAR:                                  "DEREF_VAR",
	LOAD_ATTRIBUTE:                             "LOAD_ATTRIBUTE",
	LOAD_INDEX:                                 "LOAD_INDEX",
	CREATE_LIST:                                "CREATE_LIST",
	CREATE_SET:                                 "CREATE_SET",
	CREATE_MAP:                                 "CREATE_MAP",
	CREATE_FUNCTION:                            "CREATE_FUNCTION",
	FUNCTION_CALL:                              "FUNCTION_CALL",
	FUNCTION_RETURN:                            "FUNCTION_RETURN",
	FUNCTION_RETURN_UNDEFINED:                  "FUNCTION_RETURN_UNDEFINED",
	CREATE_OBJECT_RETURN:                       "CREATE_OBJECT_RETURN",
	EXIT_PROGRAM:                               "EXIT_PROGRAM",
	OFFSET_JUMP:                                "OFFSET_JUMP",
	ABSOLUTE_JUMP:                              "ABSOLUTE_JUMP",
	OFFSET_JUMP_IF_TRUE_POP:                    "OFFSET_JUMP_IF_TRUE_POP",
	OFFSET_JUMP_IF_FALSE_POP:                   "OFFSET_JUMP_IF_FALSE_POP",
	OFFSET_JUMP_IF_TRUE_NOPOP:                  "OFFSET_JUMP_IF_TRUE_NOPOP",
	OFFSET_JUMP_IF_FALSE_NOPOP:                 "OFFSET_JUMP_IF_FALSE_NOPOP",
	POP_STACK:                                  "POP_STACK",
	CREATE_EXCEPTION:                           "CREATE_EXCEPTION",
	PUSH_EXCEPTION_HANDLER:                     "PUSH_EXCEPTION_HANDLER",
	POP_EXCEPTION_HANDLER:                      "POP_EXCEPTION_HANDLER",
	RAISE_EXCEPTION:                            "RAISE_EXCEPTION",
	RAISE_EXCEPTION_IF_COMPARE_EXCEPTION_FALSE: "RAISE_EXCEPTION_IF_COMPARE_EXCEPTION_FALSE",
	OFFSET_JUMP_IF_COMPARE_EXCEPTION_FALSE:     "OFFSET_JUMP_IF_COMPARE_EXCEPTION_FALSE",
	RESOLVE_RAISED_EXCEPTION:                   "RESOLVE_RAISED_EXCEPTION",
	ADD_VARS_OP:                                "ADD_VARS_OP",
	SUB_VARS_OP:                                "SUB_VARS_OP",
	MULT_VARS_OP:                               "MULT_VARS_OP",
	DIV_VARS_OP:                                "DIV_VARS_OP",
	MOD_VARS_OP:                                "MOD_VARS_OP",
	EXP_VARS_OP:                                "EXP_VARS_OP",
	BITWISE_VARS_AND_OP:                        "BITWISE_VARS_AND_OP",
	BITWISE_VARS_OR_OP:                         "BITWISE_VARS_OR_OP",
	BITWISE_XOR_VARS_OP:                        "BITWISE_XOR_VARS_OP",
	SHIFT_LEFT_VARS_OP:                         "SHIFT_LEFT_VARS_OP",
	SHIFT_RIGHT_VARS_OP:                        "SHIFT_RIGHT_VARS_OP",
	GREATER_THAN_VARS_OP:                       "GREATER_THAN_VARS_OP",
	GREATER_EQUAL_VARS_OP:                      "GREATER_EQUAL_VARS_OP",
	LESSER_THAN_VARS_OP:                        "LESSER_THAN_VARS_OP",
	LESSER_EQUAL_VARS_OP:                       "LESSER_EQUAL_VARS_OP",
	EQUAL_TO_VARS_OP:                           "EQUAL_TO_VARS_OP",
	LOGICAL_AND_VARS_OP:                        "LOGICAL_AND_VARS_OP",
	LOGICAL_OR_VARS_OP:                         "LOGICAL_OR_VARS_OP",
	LOGICAL_NOT_VARS_OP:                        "LOGICAL_NOT_VARS_OP",
}

// String returns the human-readable opcode name.
func (op Opcode) String() string {
	name, ok := opcodeNames[op]
	if !ok {
		return fmt.Sprintf("UNKNOWN_OPCODE(%d)", int(op))
	}
	return name
}

// Access is the visibility of a binding created by CREATE_VAR,
// CREATE_EXCEPTION or CREATE_FUNCTION's trailing CREATE_VAR.
type Access int

const (
	Public Access = iota
	Private
	Global
)

func (a Access) String() string {
	switch a {
	case Private:
		return "private"
	case Global:
		return "global"
	default:
		return "public"
	}
}

// Instruction is a single bytecode instruction. Exactly which immediate
// fields are meaningful depends on the opcode: Offset for jumps, Count for
// collection constructors and calls, Name/Access for variable opcodes,
// Constant for LOAD_CONST (a float64, a string, or nil for the null
// literal), and Function for CREATE_FUNCTION. Instructions are immutable
// once compiled; the one exception is the loop fix-up pass, which rewrites
// break/continue sentinel offsets in place before the list is published.
type Instruction struct {
	Op       Opcode
	Offset   int
	Count    int
	Name     string
	Access   Access
	Constant any
	Function *FunctionRecord
	Line     int
}

// String renders the instruction with its meaningful immediate, primarily
// for the disassembler and debugging output.
func (ins *Instruction) String() string {
	switch ins.Op {
	case LOAD_CONST:
		if ins.Constant == nil {
			return fmt.Sprintf("%s null", ins.Op)
		}
		return fmt.Sprintf("%s %v", ins.Op, ins.Constant)
	case LOAD_VAR, CREATE_VAR, DEREF_VAR, LOAD_ATTRIBUTE, CREATE_EXCEPTION:
		return fmt.Sprintf("%s %s", ins.Op, ins.Name)
	case CREATE_LIST, CREATE_SET, CREATE_MAP, FUNCTION_CALL:
		return fmt.Sprintf("%s %d", ins.Op, ins.Count)
	case CREATE_FUNCTION:
		name := ins.Function.Name
		if name == "" {
			name = "<inline>"
		}
		return fmt.Sprintf("%s %s/%d", ins.Op, name, len(ins.Function.Args))
	case OFFSET_JUMP, ABSOLUTE_JUMP, OFFSET_JUMP_IF_TRUE_POP, OFFSET_JUMP_IF_FALSE_POP,
		OFFSET_JUMP_IF_TRUE_NOPOP, OFFSET_JUMP_IF_FALSE_NOPOP,
		PUSH_EXCEPTION_HANDLER, OFFSET_JUMP_IF_COMPARE_EXCEPTION_FALSE:
		return fmt.Sprintf("%s %d", ins.Op, ins.Offset)
	default:
		return ins.Op.String()
	}
}

// ByteCodeList is an append-only vector of instructions. The top-level list
// is owned by the loader; every other list is owned by the FunctionRecord
// whose body it is.
type ByteCodeList struct {
	Code []*Instruction
}

// NewByteCodeList returns an empty ByteCodeList.
func NewByteCodeList() *ByteCodeList {
	return &ByteCodeList{}
}

// Add appends an instruction and returns the list for chaining.
func (list *ByteCodeList) Add(ins *Instruction) *ByteCodeList {
	list.Code = append(list.Code, ins)
	return list
}

// Concat appends every instruction of other onto list. A nil other is
// treated as empty.
func (list *ByteCodeList) Concat(other *ByteCodeList) *ByteCodeList {
	if other == nil {
		return list
	}
	list.Code = append(list.Code, other.Code...)
	return list
}

// Length returns the number of instructions in the list.
func (list *ByteCodeList) Length() int {
	return len(list.Code)
}

// FunctionRecord is the immutable description of a user function embedded
// in a CREATE_FUNCTION instruction: its optional name (empty for inline
// functions), source file, parameter names, closure names (values are
// resolved at bind time, not compile time), body, and whether the body ends
// with CREATE_OBJECT_RETURN (class constructors).
type FunctionRecord struct {
	Name         string
	FilePath     string
	Args         []string
	ClosureNames []string
	Body         *ByteCodeList
	IsClass      bool
}
