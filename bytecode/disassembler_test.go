package bytecode

import (
	"strings"
	"testing"
)

func sampleProgram() *ByteCodeList {
	inner := NewByteCodeList()
	inner.Add(&Instruction{Op: LOAD_VAR, Name: "n", Line: 1})
	inner.Add(&Instruction{Op: FUNCTION_RETURN, Line: 1})

	list := NewByteCodeList()
	list.Add(&Instruction{Op: LOAD_CONST, Constant: float64(1), Line: 1})
	list.Add(&Instruction{Op: CREATE_VAR, Name: "x", Line: 1})
	list.Add(&Instruction{Op: CREATE_FUNCTION, Function: &FunctionRecord{Name: "f", Args: []string{"n"}, Body: inner}, Line: 2})
	list.Add(&Instruction{Op: CREATE_VAR, Name: "f", Line: 2})
	list.Add(&Instruction{Op: OFFSET_JUMP, Offset: 1, Line: 3})
	list.Add(&Instruction{Op: LOAD_CONST, Constant: float64(0), Line: 3})
	list.Add(&Instruction{Op: EXIT_PROGRAM, Line: 3})
	return list
}

// TestDisassembleOpcodeMultiset checks the round-trip law: the listing's
// opcode multiset matches the compiled list's exactly.
func TestDisassembleOpcodeMultiset(t *testing.T) {
	list := sampleProgram()
	listing := Disassemble("<main>", list)

	if len(listing.Rows) != list.Length() {
		t.Fatalf("row count: got %d, want %d", len(listing.Rows), list.Length())
	}

	wantCounts := map[string]int{}
	for _, ins := range list.Code {
		wantCounts[ins.Op.String()]++
	}
	gotCounts := map[string]int{}
	for _, row := range listing.Rows {
		gotCounts[row.Op]++
	}
	for op, want := range wantCounts {
		if gotCounts[op] != want {
			t.Errorf("opcode %s: got %d rows, want %d", op, gotCounts[op], want)
		}
	}
	if len(gotCounts) != len(wantCounts) {
		t.Errorf("listing contains opcodes the list does not: got %v, want %v", gotCounts, wantCounts)
	}
}

func TestDisassembleAllListsNestedBodies(t *testing.T) {
	listings := DisassembleAll(sampleProgram())
	if len(listings) != 2 {
		t.Fatalf("listing count: got %d, want 2 (main + one function)", len(listings))
	}
	if listings[0].Label != "<main>" {
		t.Errorf("first label: got %q, want %q", listings[0].Label, "<main>")
	}
	if listings[1].Label != "f" {
		t.Errorf("second label: got %q, want %q", listings[1].Label, "f")
	}
	if len(listings[1].Rows) != 2 {
		t.Errorf("function body rows: got %d, want 2", len(listings[1].Rows))
	}
}

func TestListingRendersImmediates(t *testing.T) {
	listing := Disassemble("<main>", sampleProgram())
	text := listing.String()
	for _, fragment := range []string{"LOAD_CONST 1", "CREATE_VAR x", "CREATE_FUNCTION f/1", "OFFSET_JUMP 1"} {
		if !strings.Contains(text, fragment) {
			t.Errorf("listing missing %q:\n%s", fragment, text)
		}
	}
}

func TestInstructionString(t *testing.T) {
	tests := []struct {
		ins      *Instruction
		expected string
	}{
		{ins: &Instruction{Op: LOAD_CONST, Constant: nil}, expected: "LOAD_CONST null"},
		{ins: &Instruction{Op: LOAD_VAR, Name: "x"}, expected: "LOAD_VAR x"},
		{ins: &Instruction{Op: FUNCTION_CALL, Count: 2}, expected: "FUNCTION_CALL 2"},
		{ins: &Instruction{Op: OFFSET_JUMP, Offset: -3}, expected: "OFFSET_JUMP -3"},
		{ins: &Instruction{Op: POP_STACK}, expected: "POP_STACK"},
		{ins: &Instruction{Op: CREATE_FUNCTION, Function: &FunctionRecord{Args: []string{"a"}}}, expected: "CREATE_FUNCTION <inline>/1"},
	}
	for _, tt := range tests {
		if got := tt.ins.String(); got != tt.expected {
			t.Errorf("String(): got %q, want %q", got, tt.expected)
		}
	}
}
