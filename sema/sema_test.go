package sema

import (
	"strings"
	"testing"

	"sable/lexer"
	"sable/parser"
)

func analyze(t *testing.T, source string) []error {
	t.Helper()
	tokens, err := lexer.New(source).Scan()
	if err != nil {
		t.Fatalf("lexing error: %v", err)
	}
	statements, parseErrs := parser.Make("test.sbl", tokens).Parse()
	if len(parseErrs) > 0 {
		t.Fatalf("parse errors: %v", parseErrs)
	}
	return NewAnalyzer("test.sbl").Check(statements)
}

func assertErrorContaining(t *testing.T, errs []error, fragment string) {
	t.Helper()
	for _, err := range errs {
		if strings.Contains(err.Error(), fragment) {
			return
		}
	}
	t.Errorf("no error mentions %q in %v", fragment, errs)
}

func TestAcceptsValidPrograms(t *testing.T) {
	sources := []string{
		`let x = 1; print(x);`,
		`func fib(n) { if (n < 2) { return n; } return fib(n-1) + fib(n-2); } print(fib(10));`,
		`class C(x) { let y = x + 1; private let z = 99; } let c = C(4);`,
		`exception E; try { raise E; } catch (E) { } catch { }`,
		`let i = 0; while (i < 3) { i = i + 1; if (i == 2) { break; } }`,
		`for (let i = 0; i < 3; i = i + 1) { continue; }`,
		`try { let x = [1][5]; } catch (IndexOutOfBounds) { }`,
		`let x = 1; { let x = 2; }`,
		`global let g = 1; print(g);`,
	}
	for _, source := range sources {
		if errs := analyze(t, source); len(errs) > 0 {
			t.Errorf("unexpected errors for %q: %v", source, errs)
		}
	}
}

func TestUndefinedName(t *testing.T) {
	assertErrorContaining(t, analyze(t, `print(missing);`), "'missing' is not defined")
}

func TestDuplicateDeclarationInSameScope(t *testing.T) {
	assertErrorContaining(t, analyze(t, `let x = 1; let x = 2;`), "redeclaration of 'x'")
}

func TestShadowingInInnerScopeIsAllowed(t *testing.T) {
	if errs := analyze(t, `let x = 1; { let x = 2; print(x); }`); len(errs) > 0 {
		t.Errorf("shadowing in a nested block must be legal: %v", errs)
	}
}

func TestPrivateOutsideClassBody(t *testing.T) {
	assertErrorContaining(t, analyze(t, `private let z = 1;`), "'private' is only allowed inside a class body")
	assertErrorContaining(t, analyze(t, `func f() { private let z = 1; }`), "'private' is only allowed inside a class body")
}

func TestGlobalBelowTopLevel(t *testing.T) {
	assertErrorContaining(t, analyze(t, `func f() { global let g = 1; }`), "'global' is only allowed at the top level")
}

func TestBreakContinueOutsideLoop(t *testing.T) {
	assertErrorContaining(t, analyze(t, `break;`), "'break' outside of a loop")
	assertErrorContaining(t, analyze(t, `continue;`), "'continue' outside of a loop")
	// a function body resets the loop context
	assertErrorContaining(t, analyze(t, `let i = 0; while (i < 3) { let f = func () { break; }; i = i + 1; }`), "'break' outside of a loop")
}

func TestBuiltinArity(t *testing.T) {
	assertErrorContaining(t, analyze(t, `Typeof(1, 2);`), "Typeof expects 1 arguments, got 2")
	if errs := analyze(t, `print(1, 2, 3);`); len(errs) > 0 {
		t.Errorf("variadic builtins accept any arity: %v", errs)
	}
}

func TestShadowedBuiltinSkipsArityCheck(t *testing.T) {
	source := `let Typeof = func (a, b) { return a; }; Typeof(1, 2);`
	if errs := analyze(t, source); len(errs) > 0 {
		t.Errorf("a shadowed builtin is a plain variable: %v", errs)
	}
}

func TestReturnInsideClassBody(t *testing.T) {
	assertErrorContaining(t, analyze(t, `class C() { return 1; }`), "'return' is not allowed inside a class body")
	if errs := analyze(t, `class C() { let f = func () { return 1; }; }`); len(errs) > 0 {
		t.Errorf("returns inside methods of a class are fine: %v", errs)
	}
}

func TestBareCatchMustBeLast(t *testing.T) {
	assertErrorContaining(t, analyze(t, `exception E; try { } catch { } catch (E) { }`),
		"a bare 'catch' must be the last clause")
}

func TestDuplicateParameter(t *testing.T) {
	assertErrorContaining(t, analyze(t, `func f(a, a) { return a; }`), "duplicate parameter 'a'")
}

func TestClosureSeesEnclosingNames(t *testing.T) {
	source := `let outer = 1; let f = func () { return outer; };`
	if errs := analyze(t, source); len(errs) > 0 {
		t.Errorf("closures may reference enclosing names: %v", errs)
	}
}

func TestSemanticErrorFormatting(t *testing.T) {
	errs := analyze(t, `print(missing);`)
	if len(errs) == 0 {
		t.Fatal("expected an error")
	}
	semanticErr, ok := errs[0].(SemanticError)
	if !ok {
		t.Fatalf("expected SemanticError, got %T", errs[0])
	}
	if semanticErr.File != "test.sbl" || semanticErr.Line != 1 {
		t.Errorf("position: got %s:%d", semanticErr.File, semanticErr.Line)
	}
}
