package bytecode

import (
	"fmt"
	"strings"
)

// ListingRow is one disassembled instruction: its index in the list, the
// source line it was compiled from, the opcode name and the rendered
// immediate (empty when the opcode takes none).
type ListingRow struct {
	Index     int
	Line      int
	Op        string
	Immediate string
}

// Listing is the disassembly of a single ByteCodeList together with a label
// identifying whose body it is ("<main>" for the top-level program).
type Listing struct {
	Label string
	Rows  []ListingRow
}

func immediate(ins *Instruction) string {
	switch ins.Op {
	case LOAD_CONST:
		if ins.Constant == nil {
			return "null"
		}
		if s, ok := ins.Constant.(string); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("%v", ins.Constant)
	case LOAD_VAR, DEREF_VAR, LOAD_ATTRIBUTE:
		return ins.Name
	case CREATE_VAR, CREATE_EXCEPTION:
		if ins.Access != Public {
			return fmt.Sprintf("%s (%s)", ins.Name, ins.Access)
		}
		return ins.Name
	case CREATE_LIST, CREATE_SET, CREATE_MAP, FUNCTION_CALL:
		return fmt.Sprintf("%d", ins.Count)
	case CREATE_FUNCTION:
		name := ins.Function.Name
		if name == "" {
			name = "<inline>"
		}
		return fmt.Sprintf("%s/%d", name, len(ins.Function.Args))
	case OFFSET_JUMP, ABSOLUTE_JUMP, OFFSET_JUMP_IF_TRUE_POP, OFFSET_JUMP_IF_FALSE_POP,
		OFFSET_JUMP_IF_TRUE_NOPOP, OFFSET_JUMP_IF_FALSE_NOPOP,
		PUSH_EXCEPTION_HANDLER, OFFSET_JUMP_IF_COMPARE_EXCEPTION_FALSE:
		return fmt.Sprintf("%d", ins.Offset)
	default:
		return ""
	}
}

// Disassemble produces the listing of a single ByteCodeList. The listing
// contains exactly one row per instruction, so its opcode multiset matches
// the list's.
func Disassemble(label string, list *ByteCodeList) Listing {
	rows := make([]ListingRow, 0, list.Length())
	for i, ins := range list.Code {
		rows = append(rows, ListingRow{
			Index:     i,
			Line:      ins.Line,
			Op:        ins.Op.String(),
			Immediate: immediate(ins),
		})
	}
	return Listing{Label: label, Rows: rows}
}

// DisassembleAll disassembles a program and every function body embedded in
// it, recursively. Nested bodies are listed after their parent, labeled by
// function name (or "<inline>" plus arity for nameless functions).
func DisassembleAll(list *ByteCodeList) []Listing {
	listings := []Listing{Disassemble("<main>", list)}
	listings = append(listings, nested(list)...)
	return listings
}

func nested(list *ByteCodeList) []Listing {
	var listings []Listing
	for _, ins := range list.Code {
		if ins.Op != CREATE_FUNCTION {
			continue
		}
		label := ins.Function.Name
		if label == "" {
			label = fmt.Sprintf("<inline>/%d", len(ins.Function.Args))
		}
		listings = append(listings, Disassemble(label, ins.Function.Body))
		listings = append(listings, nested(ins.Function.Body)...)
	}
	return listings
}

// String renders the listing as plain text, one instruction per row.
func (l Listing) String() string {
	var builder strings.Builder
	builder.WriteString(l.Label + ":\n")
	for _, row := range l.Rows {
		builder.WriteString(fmt.Sprintf("%4d  [line %d]  %s %s\n", row.Index, row.Line, row.Op, row.Immediate))
	}
	return builder.String()
}
