package compiler

import (
	"testing"

	"sable/ast"
	"sable/bytecode"
	"sable/lexer"
	"sable/parser"
)

func parseSource(t *testing.T, source string) []ast.Stmt {
	t.Helper()
	tokens, err := lexer.New(source).Scan()
	if err != nil {
		t.Fatalf("lexing error: %v", err)
	}
	statements, parseErrs := parser.Make("test.sbl", tokens).Parse()
	if len(parseErrs) > 0 {
		t.Fatalf("parse errors: %v", parseErrs)
	}
	return statements
}

func compileSource(t *testing.T, source string) *bytecode.ByteCodeList {
	t.Helper()
	list, err := New("test.sbl").Compile(parseSource(t, source))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return list
}

func opcodes(list *bytecode.ByteCodeList) []bytecode.Opcode {
	ops := make([]bytecode.Opcode, 0, list.Length())
	for _, ins := range list.Code {
		ops = append(ops, ins.Op)
	}
	return ops
}

func assertOpcodes(t *testing.T, got *bytecode.ByteCodeList, want []bytecode.Opcode) {
	t.Helper()
	gotOps := opcodes(got)
	if len(gotOps) != len(want) {
		t.Fatalf("instruction count: got %d (%v), want %d (%v)", len(gotOps), gotOps, len(want), want)
	}
	for i := range want {
		if gotOps[i] != want[i] {
			t.Errorf("opcode at %d: got %s, want %s", i, gotOps[i], want[i])
		}
	}
}

func TestCompileExpressionStatement(t *testing.T) {
	list := compileSource(t, `1 + 2 * 3;`)
	// the simplifier folds the whole expression into one constant
	assertOpcodes(t, list, []bytecode.Opcode{
		bytecode.LOAD_CONST,
		bytecode.POP_STACK,
		bytecode.LOAD_CONST,
		bytecode.EXIT_PROGRAM,
	})
	if list.Code[0].Constant != float64(7) {
		t.Errorf("folded constant: got %v, want 7", list.Code[0].Constant)
	}
}

func TestCompileUnfoldableExpression(t *testing.T) {
	list := compileSource(t, `let x = 1; x + 2;`)
	assertOpcodes(t, list, []bytecode.Opcode{
		bytecode.LOAD_CONST,
		bytecode.CREATE_VAR,
		bytecode.LOAD_VAR,
		bytecode.LOAD_CONST,
		bytecode.ADD_VARS_OP,
		bytecode.POP_STACK,
		bytecode.LOAD_CONST,
		bytecode.EXIT_PROGRAM,
	})
}

func TestExitEpilogue(t *testing.T) {
	list := compileSource(t, `let x = 1;`)
	length := list.Length()
	if list.Code[length-1].Op != bytecode.EXIT_PROGRAM {
		t.Fatalf("last opcode: got %s, want EXIT_PROGRAM", list.Code[length-1].Op)
	}
	if list.Code[length-2].Op != bytecode.LOAD_CONST || list.Code[length-2].Constant != float64(0) {
		t.Errorf("exit epilogue must load the constant 0")
	}
}

func TestTopLevelReturnBecomesExit(t *testing.T) {
	list := compileSource(t, `return 4;`)
	assertOpcodes(t, list, []bytecode.Opcode{
		bytecode.LOAD_CONST,
		bytecode.EXIT_PROGRAM,
	})
}

func TestAssignmentLowersToMutate(t *testing.T) {
	list := compileSource(t, `let x = 1; x = 2;`)
	assertOpcodes(t, list, []bytecode.Opcode{
		bytecode.LOAD_CONST,
		bytecode.CREATE_VAR,
		bytecode.LOAD_VAR,
		bytecode.LOAD_CONST,
		bytecode.MUTATE_VAR,
		bytecode.LOAD_CONST,
		bytecode.EXIT_PROGRAM,
	})
}

func TestBlockEmitsDerefInDeclarationOrder(t *testing.T) {
	list := compileSource(t, `{ let a = 1; let b = 2; }`)
	var derefs []string
	for _, ins := range list.Code {
		if ins.Op == bytecode.DEREF_VAR {
			derefs = append(derefs, ins.Name)
		}
	}
	if len(derefs) != 2 || derefs[0] != "a" || derefs[1] != "b" {
		t.Errorf("deref sequence: got %v, want [a b]", derefs)
	}
}

func TestTerminalStatementSkipsDerefAndDeadCode(t *testing.T) {
	list := compileSource(t, `func f() { let a = 1; return a; let b = 2; }`)
	record := list.Code[0].Function
	for _, ins := range record.Body.Code {
		if ins.Op == bytecode.DEREF_VAR {
			t.Errorf("no DEREF_VAR may follow a terminal return, got one for %q", ins.Name)
		}
	}
	// dead code after the return is not emitted
	for _, ins := range record.Body.Code {
		if ins.Op == bytecode.CREATE_VAR && ins.Name == "b" {
			t.Errorf("dead declaration after return must not be emitted")
		}
	}
}

func TestFunctionBodyEndsWithReturnUndefined(t *testing.T) {
	list := compileSource(t, `func f() { let a = 1; }`)
	record := list.Code[0].Function
	body := record.Body
	if body.Code[body.Length()-1].Op != bytecode.FUNCTION_RETURN_UNDEFINED {
		t.Errorf("a body without a trailing return must end with FUNCTION_RETURN_UNDEFINED")
	}
	if list.Code[1].Op != bytecode.CREATE_VAR || list.Code[1].Name != "f" {
		t.Errorf("a named declaration must bind the function after CREATE_FUNCTION")
	}
}

func TestClassBodyKeepsBindingsAndReturnsObject(t *testing.T) {
	list := compileSource(t, `class C(x) { let y = x; private let z = 9; }`)
	record := list.Code[0].Function
	if !record.IsClass {
		t.Fatal("class record must be marked IsClass")
	}
	body := record.Body
	if body.Code[body.Length()-1].Op != bytecode.CREATE_OBJECT_RETURN {
		t.Errorf("class body must end with CREATE_OBJECT_RETURN")
	}
	for _, ins := range body.Code {
		if ins.Op == bytecode.DEREF_VAR {
			t.Errorf("class body declarations feed the attribute map and must not be dereferenced")
		}
	}
}

func TestClosureNamesRecorded(t *testing.T) {
	list := compileSource(t, `let a = 1; let b = 2; let f = func (p) { return a + p + b; };`)
	var record *bytecode.FunctionRecord
	for _, ins := range list.Code {
		if ins.Op == bytecode.CREATE_FUNCTION {
			record = ins.Function
		}
	}
	if record == nil {
		t.Fatal("no CREATE_FUNCTION emitted")
	}
	if len(record.ClosureNames) != 2 || record.ClosureNames[0] != "a" || record.ClosureNames[1] != "b" {
		t.Errorf("closure names: got %v, want [a b]", record.ClosureNames)
	}
	if record.Name != "" {
		t.Errorf("an inline function has no name, got %q", record.Name)
	}
}

func TestIfElseChainOffsets(t *testing.T) {
	list := compileSource(t, `let x = 1; if (x) { x = 2; } else if (x == 2) { x = 3; } else { x = 4; }`)
	assertJumpTargetsInRange(t, list)
}

func TestWhileLoopShape(t *testing.T) {
	list := compileSource(t, `let i = 0; while (i < 3) { i = i + 1; }`)
	// find the conditional jump and the back jump
	var condJump, backJump *bytecode.Instruction
	var condIdx, backIdx int
	for i, ins := range list.Code {
		if ins.Op == bytecode.OFFSET_JUMP_IF_FALSE_POP {
			condJump, condIdx = ins, i
		}
		if ins.Op == bytecode.OFFSET_JUMP {
			backJump, backIdx = ins, i
		}
	}
	if condJump == nil || backJump == nil {
		t.Fatalf("loop must contain a conditional exit and a back jump")
	}
	if condIdx+condJump.Offset != backIdx+1 {
		t.Errorf("the conditional exit must land one past the back jump")
	}
	if backJump.Offset >= 0 {
		t.Errorf("the back jump must be negative, got %d", backJump.Offset)
	}
	assertJumpTargetsInRange(t, list)
}

func TestBreakContinueSentinelsResolved(t *testing.T) {
	list := compileSource(t, `let i = 0;
while (i < 10) {
    i = i + 1;
    if (i == 2) { continue; }
    if (i == 4) { break; }
}`)
	for i, ins := range list.Code {
		if ins.Op == bytecode.OFFSET_JUMP && (ins.Offset == breakSentinel || ins.Offset == continueSentinel) {
			t.Errorf("unresolved loop sentinel at index %d", i)
		}
	}
	assertJumpTargetsInRange(t, list)
}

func TestNestedLoopSentinelsStayLocal(t *testing.T) {
	list := compileSource(t, `let i = 0;
while (i < 3) {
    i = i + 1;
    let j = 0;
    while (j < 3) {
        j = j + 1;
        if (j == 2) { break; }
    }
    if (i == 2) { continue; }
}`)
	for i, ins := range list.Code {
		if ins.Op == bytecode.OFFSET_JUMP && (ins.Offset == breakSentinel || ins.Offset == continueSentinel) {
			t.Errorf("unresolved loop sentinel at index %d", i)
		}
	}
	assertJumpTargetsInRange(t, list)
}

func TestForLoopDerefsInitDeclarations(t *testing.T) {
	list := compileSource(t, `for (let i = 0; i < 3; i = i + 1) { }`)
	last := -1
	for i, ins := range list.Code {
		if ins.Op == bytecode.DEREF_VAR && ins.Name == "i" {
			last = i
		}
	}
	if last == -1 {
		t.Fatal("the for-loop induction variable must be dereferenced after the loop")
	}
	assertJumpTargetsInRange(t, list)
}

func TestTryCatchLayout(t *testing.T) {
	list := compileSource(t, `exception E1;
exception E2;
try { raise E1; } catch (E2) { } catch (E1) { }`)

	var push *bytecode.Instruction
	var pushIdx int
	for i, ins := range list.Code {
		if ins.Op == bytecode.PUSH_EXCEPTION_HANDLER {
			push, pushIdx = ins, i
		}
	}
	if push == nil {
		t.Fatal("try must push an exception handler")
	}

	catchStart := pushIdx + push.Offset
	if catchStart <= pushIdx || catchStart >= list.Length() {
		t.Fatalf("handler offset out of range: %d", catchStart)
	}

	// the non-terminal clause jumps on mismatch; the terminal clause
	// re-raises on mismatch
	sawCondJump, sawReraise := false, false
	for _, ins := range list.Code[catchStart:] {
		if ins.Op == bytecode.OFFSET_JUMP_IF_COMPARE_EXCEPTION_FALSE {
			sawCondJump = true
		}
		if ins.Op == bytecode.RAISE_EXCEPTION_IF_COMPARE_EXCEPTION_FALSE {
			sawReraise = true
		}
	}
	if !sawCondJump || !sawReraise {
		t.Errorf("catch chain shape wrong: condJump=%v reraise=%v", sawCondJump, sawReraise)
	}
	assertJumpTargetsInRange(t, list)
}

// assertJumpTargetsInRange checks the §8.1 invariant: every relative jump
// lands inside the list that contains it, recursively through embedded
// function bodies.
func assertJumpTargetsInRange(t *testing.T, list *bytecode.ByteCodeList) {
	t.Helper()
	for i, ins := range list.Code {
		switch ins.Op {
		case bytecode.OFFSET_JUMP, bytecode.OFFSET_JUMP_IF_TRUE_POP, bytecode.OFFSET_JUMP_IF_FALSE_POP,
			bytecode.OFFSET_JUMP_IF_TRUE_NOPOP, bytecode.OFFSET_JUMP_IF_FALSE_NOPOP,
			bytecode.OFFSET_JUMP_IF_COMPARE_EXCEPTION_FALSE, bytecode.PUSH_EXCEPTION_HANDLER:
			target := i + ins.Offset
			if target < 0 || target >= list.Length() {
				t.Errorf("jump at %d targets %d, outside [0, %d)", i, target, list.Length())
			}
		case bytecode.CREATE_FUNCTION:
			assertJumpTargetsInRange(t, ins.Function.Body)
		}
	}
}
