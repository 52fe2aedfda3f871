package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"sable/ast"
	"sable/bytecode"
	"sable/compiler"
	"sable/lexer"
	"sable/parser"
	"sable/runtime"
	"sable/sema"
	"sable/vm"
)

// buildProgram runs the front half of the pipeline over a source snippet.
func buildProgram(t *testing.T, source string) *bytecode.ByteCodeList {
	t.Helper()
	tokens, err := lexer.New(source).Scan()
	if err != nil {
		t.Fatalf("lexing error: %v", err)
	}
	statements, parseErrs := parser.Make("test.sbl", tokens).Parse()
	if len(parseErrs) > 0 {
		t.Fatalf("parse errors: %v", parseErrs)
	}
	if semaErrs := sema.NewAnalyzer("test.sbl").Check(statements); len(semaErrs) > 0 {
		t.Fatalf("semantic errors: %v", semaErrs)
	}
	program, err := compiler.New("test.sbl").Compile(statements)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return program
}

// runSource executes a snippet and returns its printed output, exit code
// and runtime error.
func runSource(t *testing.T, source string) (string, int, error) {
	t.Helper()
	program := buildProgram(t, source)

	var out bytes.Buffer
	prev := runtime.SetOutput(&out)
	defer runtime.SetOutput(prev)

	machine := vm.New()
	machine.SetErrorOutput(&out)
	code, err := machine.Run(program)
	return out.String(), code, err
}

func TestProgramScenarios(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected string
	}{
		{
			name: "recursive function",
			source: `func fib(n) { if (n < 2) { return n; } return fib(n-1) + fib(n-2); }
print(fib(10));`,
			expected: "55 ",
		},
		{
			name: "closure over loop variable",
			source: `let fns = [];
let i = 0;
while (i < 3) {
    let j = i;
    fns = fns -> append(func () { return j; });
    i = i + 1;
}
print(fns[0](), fns[1](), fns[2]());`,
			expected: "0 1 2 ",
		},
		{
			name: "try catch selection",
			source: `exception E1;
exception E2;
try { raise E1; } catch (E2) { print("no"); } catch (E1) { print("yes"); }`,
			expected: "yes ",
		},
		{
			name: "map identity vs equality",
			source: `let m = map { 1: "a" };
let n = m;
n[1] = "b";
print(m[1]);`,
			expected: "b ",
		},
		{
			name: "break continue fixup",
			source: `let s = 0;
let i = 0;
while (i < 10) {
    i = i + 1;
    if (i == 5) { continue; }
    if (i == 8) { break; }
    s = s + i;
}
print(s);`,
			expected: "23 ",
		},
		{
			name: "class attribute visibility",
			source: `class C(x) { let y = x + 1; private let z = 99; }
let c = C(4);
print(c->y);`,
			expected: "5 ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, code, err := runSource(t, tt.source)
			if err != nil {
				t.Fatalf("runtime error: %v", err)
			}
			if code != 0 {
				t.Errorf("exit code: got %d, want 0", code)
			}
			if output != tt.expected {
				t.Errorf("output: got %q, want %q", output, tt.expected)
			}
		})
	}
}

// TestStackBalance checks the machine invariant that a completed top-level
// program leaves the operand stack empty.
func TestStackBalance(t *testing.T) {
	sources := []string{
		`let x = 1; print(x); x = x + 1;`,
		`func f(a) { return a * 2; } f(3);`,
		`exception E; try { raise E; } catch (E) { }`,
		`let i = 0; while (i < 5) { i = i + 1; if (i == 2) { continue; } }`,
		`class C(x) { let y = x; } let c = C(1); c->y;`,
	}
	for _, source := range sources {
		program := buildProgram(t, source)

		var out bytes.Buffer
		prev := runtime.SetOutput(&out)

		machine := vm.New()
		machine.SetErrorOutput(&out)
		if _, err := machine.Run(program); err != nil {
			runtime.SetOutput(prev)
			t.Fatalf("runtime error for %q: %v", source, err)
		}
		runtime.SetOutput(prev)

		if machine.StackSize() != 0 {
			t.Errorf("operand stack not empty after %q: %d items left", source, machine.StackSize())
		}
	}
}

func TestPrivateAttributeRaises(t *testing.T) {
	source := `class C(x) { let y = x + 1; private let z = 99; }
let c = C(4);
print(c->z);`
	_, _, err := runSource(t, source)
	if err == nil {
		t.Fatal("expected an uncaught AttributeError, got none")
	}
	if !strings.Contains(err.Error(), runtime.ExcAttributeError) {
		t.Errorf("error should mention %s, got: %v", runtime.ExcAttributeError, err)
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name   string
		source string
		code   int
	}{
		{name: "implicit zero", source: `let x = 1;`, code: 0},
		{name: "explicit return", source: `return 7;`, code: 7},
		{name: "truncated return", source: `return 7.9;`, code: 7},
		{name: "return inside top-level if", source: `let x = 1; if (x) { return 3; }`, code: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, code, err := runSource(t, tt.source)
			if err != nil {
				t.Fatalf("runtime error: %v", err)
			}
			if code != tt.code {
				t.Errorf("exit code: got %d, want %d", code, tt.code)
			}
		})
	}
}

func TestArithmeticAndLogic(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected string
	}{
		{name: "precedence", source: `print(2 + 3 * 4);`, expected: "14 "},
		{name: "exponent", source: `print(2 ** 10);`, expected: "1024 "},
		{name: "modulus truncates", source: `print(7.9 % 3);`, expected: "1 "},
		{name: "bitwise", source: `print(6 & 3, 6 | 3, 6 ^ 3);`, expected: "2 7 5 "},
		{name: "shifts", source: `print(1 << 4, 32 >> 2);`, expected: "16 8 "},
		{name: "string concat", source: `print("foo" + "bar");`, expected: "foobar "},
		{name: "comparisons", source: `print(1 < 2, 2 <= 2, 3 > 4, 1 == 1);`, expected: "1 1 0 1 "},
		{name: "logical ops", source: `print(1 && 0, 1 || 0, !0);`, expected: "0 1 1 "},
		{name: "cross type order", source: `print(null < 1, "a" < [1]);`, expected: "1 1 "},
		{name: "unary minus", source: `let x = 5; print(-x);`, expected: "-5 "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, _, err := runSource(t, tt.source)
			if err != nil {
				t.Fatalf("runtime error: %v", err)
			}
			if output != tt.expected {
				t.Errorf("output: got %q, want %q", output, tt.expected)
			}
		})
	}
}

func TestTypeMismatchYieldsUndefined(t *testing.T) {
	output, _, err := runSource(t, `print("a" + 1);`)
	if err != nil {
		t.Fatalf("a type mismatch must not abort execution: %v", err)
	}
	if !strings.Contains(output, "Type mismatch") {
		t.Errorf("expected a type-mismatch diagnostic, got %q", output)
	}
	if !strings.Contains(output, "undefined") {
		t.Errorf("expected the best-effort undefined result, got %q", output)
	}
}

func TestCollections(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected string
	}{
		{name: "list literal and index", source: `let xs = [10, 20, 30]; print(xs[0], xs[2]);`, expected: "10 30 "},
		{name: "list append chain", source: `let xs = []; xs -> append(1) -> append(2); print(len(xs));`, expected: "2 "},
		{name: "list pop", source: `let xs = [1, 2, 3]; print(xs -> pop(), len(xs));`, expected: "3 2 "},
		{name: "list repetition", source: `let xs = [1, 2] * 2; print(len(xs));`, expected: "4 "},
		{name: "list concat", source: `print(len([1] + [2, 3]));`, expected: "3 "},
		{name: "map insert", source: `let m = map {}; m -> insert("k", 42); print(m["k"]);`, expected: "42 "},
		{name: "map literal overwrites duplicate key", source: `let m = map { 1: "a", 1: "b" }; print(m[1], len(m));`, expected: "b 1 "},
		{name: "set membership via index", source: `let s = set { 1, 2 }; print(s[2]);`, expected: "2 "},
		{name: "set dedups", source: `let s = set { 1, 1, 2 }; print(len(s));`, expected: "2 "},
		{name: "string methods", source: `print("ab" -> upper(), len("hello" -> split("l")));`, expected: "AB 3 "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, _, err := runSource(t, tt.source)
			if err != nil {
				t.Fatalf("runtime error: %v", err)
			}
			if output != tt.expected {
				t.Errorf("output: got %q, want %q", output, tt.expected)
			}
		})
	}
}

func TestRuntimeExceptionsAreCatchable(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected string
	}{
		{
			name:     "index out of bounds",
			source:   `try { let x = [1][5]; print("no"); } catch (IndexOutOfBounds) { print("caught"); }`,
			expected: "caught ",
		},
		{
			name:     "invalid index type",
			source:   `try { let x = [1]["a"]; } catch (InvalidIndexType) { print("caught"); }`,
			expected: "caught ",
		},
		{
			name:     "non indexible object",
			source:   `try { let x = 5[0]; } catch (NonIndexibleObject) { print("caught"); }`,
			expected: "caught ",
		},
		{
			name:     "key error",
			source:   `try { let x = map { 1: "a" }[2]; } catch (KeyError) { print("caught"); }`,
			expected: "caught ",
		},
		{
			name:     "division by zero",
			source:   `try { let x = 1 / 0; } catch (DivisionByZero) { print("caught"); }`,
			expected: "caught ",
		},
		{
			name:     "modulus by zero",
			source:   `try { let x = 1 % 0; } catch (DivisionByZero) { print("caught"); }`,
			expected: "caught ",
		},
		{
			name:     "unhashable key",
			source:   `try { let m = map {}; m -> insert([1], 2); } catch (UnhashableType) { print("caught"); }`,
			expected: "caught ",
		},
		{
			name:     "attribute error",
			source:   `try { let x = 5 -> nope; } catch (AttributeError) { print("caught"); }`,
			expected: "caught ",
		},
		{
			name:     "bare catch is a catch all",
			source:   `exception E; try { raise E; } catch { print("caught"); }`,
			expected: "caught ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, _, err := runSource(t, tt.source)
			if err != nil {
				t.Fatalf("runtime error: %v", err)
			}
			if output != tt.expected {
				t.Errorf("output: got %q, want %q", output, tt.expected)
			}
		})
	}
}

func TestExceptionUnwindsAcrossFrames(t *testing.T) {
	source := `exception Boom;
func inner() { raise Boom; }
func outer() { inner(); return 1; }
try { outer(); print("no"); } catch (Boom) { print("unwound"); }
print("after");`
	output, _, err := runSource(t, source)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if output != "unwound after " {
		t.Errorf("output: got %q, want %q", output, "unwound after ")
	}
}

func TestReturnInsideTryDropsItsHandler(t *testing.T) {
	source := `exception Boom;
func f() { try { return 1; } catch (Boom) { print("inner"); } }
f();
try { raise Boom; } catch (Boom) { print("outer"); }`
	output, _, err := runSource(t, source)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	// the handler pushed inside f must die with f's frame: the later raise
	// lands in the top-level handler, not in the dead one
	if output != "outer " {
		t.Errorf("output: got %q, want %q", output, "outer ")
	}
}

func TestUncaughtExceptionAborts(t *testing.T) {
	_, _, err := runSource(t, `exception Boom; raise Boom;`)
	if err == nil {
		t.Fatal("expected an uncaught exception error")
	}
	if !strings.Contains(err.Error(), "Boom") {
		t.Errorf("error should name the exception, got: %v", err)
	}
}

func TestRethrowOnUnmatchedSelector(t *testing.T) {
	source := `exception E1;
exception E2;
try {
    try { raise E1; } catch (E2) { print("no"); }
} catch (E1) { print("outer"); }`
	output, _, err := runSource(t, source)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if output != "outer " {
		t.Errorf("output: got %q, want %q", output, "outer ")
	}
}

func TestLetCopiesPrimitives(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected string
	}{
		{
			name: "mutating the new variable leaves the source alone",
			source: `let i = 1;
let j = i;
j = j + 1;
print(i, j);`,
			expected: "1 2 ",
		},
		{
			name: "mutating the source leaves the new variable alone",
			source: `let i = 1;
let j = i;
i = i + 1;
print(i, j);`,
			expected: "2 1 ",
		},
		{
			name: "reference types still share their interior",
			source: `let m = [1];
let n = m;
n -> append(2);
print(len(m));`,
			expected: "2 ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, _, err := runSource(t, tt.source)
			if err != nil {
				t.Fatalf("runtime error: %v", err)
			}
			if output != tt.expected {
				t.Errorf("output: got %q, want %q", output, tt.expected)
			}
		})
	}
}

func TestClosureCapturesPrimitiveByValue(t *testing.T) {
	source := `let x = 1;
let f = func () { return x; };
x = 2;
print(f(), x);`
	output, _, err := runSource(t, source)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	// the closure observes the value at capture time for primitives
	if output != "1 2 " {
		t.Errorf("output: got %q, want %q", output, "1 2 ")
	}
}

func TestClosureCapturesReferenceTypeByReference(t *testing.T) {
	source := `let xs = [1];
let f = func () { return len(xs); };
xs -> append(2);
print(f());`
	output, _, err := runSource(t, source)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if output != "2 " {
		t.Errorf("output: got %q, want %q", output, "2 ")
	}
}

func TestForLoopDerefsInductionVariable(t *testing.T) {
	source := `let s = 0;
for (let i = 0; i < 4; i = i + 1) { s = s + i; }
print(s);`
	output, _, err := runSource(t, source)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if output != "6 " {
		t.Errorf("output: got %q, want %q", output, "6 ")
	}
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected string
	}{
		{name: "typeof", source: `print(Typeof(1), Typeof("a"), Typeof([1]), Typeof(null));`, expected: "Number String List Null "},
		{name: "str concatenates", source: `print(Str(1, "x", null));`, expected: "1xnull "},
		{name: "number parses", source: `print(Number("42") + 1);`, expected: "43 "},
		{name: "number rejects garbage", source: `print(Number("nope"));`, expected: "null "},
		{name: "println adds newline", source: `println(1);`, expected: "1 \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, _, err := runSource(t, tt.source)
			if err != nil {
				t.Fatalf("runtime error: %v", err)
			}
			if output != tt.expected {
				t.Errorf("output: got %q, want %q", output, tt.expected)
			}
		})
	}
}

func TestStackOverflowIsFatal(t *testing.T) {
	_, _, err := runSource(t, `func loop() { return loop(); } loop();`)
	if err == nil {
		t.Fatal("expected a stack-overflow error")
	}
	if _, ok := err.(vm.FatalError); !ok {
		t.Errorf("expected FatalError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "stack overflow") {
		t.Errorf("error should mention the overflow, got: %v", err)
	}
}

func TestShadowingInNestedBlock(t *testing.T) {
	source := `let x = 1;
{
    let x = 2;
    print(x);
}
print(x);`
	output, _, err := runSource(t, source)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if output != "2 1 " {
		t.Errorf("output: got %q, want %q", output, "2 1 ")
	}
}

func TestReplResume(t *testing.T) {
	var out bytes.Buffer
	prev := runtime.SetOutput(&out)
	defer runtime.SetOutput(prev)

	machine := vm.New()
	astCompiler := compiler.New("<repl>")

	first := parseForTest(t, `let x = 40;`)
	program, err := astCompiler.CompileInteractive(first)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if _, exited, runErr := machine.Resume(program); runErr != nil || exited {
		t.Fatalf("first input: exited=%v err=%v", exited, runErr)
	}

	combined := append(first, parseForTest(t, `let x = 40; print(x + 2);`)[1:]...)
	program, err = astCompiler.CompileInteractive(combined)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if _, exited, runErr := machine.Resume(program); runErr != nil || exited {
		t.Fatalf("second input: exited=%v err=%v", exited, runErr)
	}

	if out.String() != "42 " {
		t.Errorf("output: got %q, want %q", out.String(), "42 ")
	}
}

func parseForTest(t *testing.T, source string) []ast.Stmt {
	t.Helper()
	tokens, err := lexer.New(source).Scan()
	if err != nil {
		t.Fatalf("lexing error: %v", err)
	}
	statements, parseErrs := parser.Make("<repl>", tokens).Parse()
	if len(parseErrs) > 0 {
		t.Fatalf("parse errors: %v", parseErrs)
	}
	return statements
}
