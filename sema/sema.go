// Package sema is the semantic pass between the parser and the compiler:
// name resolution, duplicate-declaration detection, access-modifier
// placement, break/continue placement and builtin arity checks. The
// compiler only ever consumes ASTs this pass has accepted.
package sema

import (
	"fmt"

	"sable/ast"
	"sable/runtime"
	"sable/token"
)

// SemanticError describes a semantic failure anchored to a source position.
type SemanticError struct {
	File    string
	Line    int
	Column  int
	Message string
	Hint    string
}

func (e SemanticError) Error() string {
	return fmt.Sprintf("💥 Semantic error:\n%s, line:%d, column:%d - %s", e.File, e.Line, e.Column, e.Message)
}

type scopeKind int

const (
	blockScope scopeKind = iota
	functionScope
	classScope
)

type scope struct {
	kind  scopeKind
	names map[string]bool
}

// Analyzer walks the AST collecting semantic errors. One instance checks
// one file.
type Analyzer struct {
	file      string
	scopes    []*scope
	callables []scopeKind
	loopDepth int
	errors    []error
}

// NewAnalyzer creates an Analyzer for a source file.
func NewAnalyzer(file string) *Analyzer {
	return &Analyzer{file: file}
}

// Check walks the program and returns every semantic error found.
func (a *Analyzer) Check(statements []ast.Stmt) []error {
	a.scopes = []*scope{{kind: blockScope, names: map[string]bool{}}}
	a.loopDepth = 0
	a.errors = nil
	for _, stmt := range statements {
		stmt.Accept(a)
	}
	return a.errors
}

func (a *Analyzer) report(at token.Token, message string, hint string) {
	a.errors = append(a.errors, SemanticError{
		File:    a.file,
		Line:    at.Line,
		Column:  at.Column,
		Message: message,
		Hint:    hint,
	})
}

func (a *Analyzer) push(kind scopeKind) {
	a.scopes = append(a.scopes, &scope{kind: kind, names: map[string]bool{}})
}

func (a *Analyzer) pop() {
	a.scopes = a.scopes[:len(a.scopes)-1]
}

func (a *Analyzer) current() *scope {
	return a.scopes[len(a.scopes)-1]
}

func (a *Analyzer) atTopLevel() bool {
	return len(a.scopes) == 1
}

func (a *Analyzer) inClassBody() bool {
	return a.current().kind == classScope
}

// declare registers a name in the current scope, reporting a duplicate
// declaration at the same nesting level.
func (a *Analyzer) declare(name token.Token) {
	if a.current().names[name.Lexeme] {
		a.report(name, fmt.Sprintf("redeclaration of '%s' in the same scope", name.Lexeme), "")
		return
	}
	a.current().names[name.Lexeme] = true
}

// resolve reports a reference to a name that is neither in scope nor a
// builtin identifier.
func (a *Analyzer) resolve(name token.Token) {
	for i := len(a.scopes) - 1; i >= 0; i-- {
		if a.scopes[i].names[name.Lexeme] {
			return
		}
	}
	if runtime.IsBuiltinIdentifier(name.Lexeme) {
		return
	}
	a.report(name, fmt.Sprintf("name '%s' is not defined", name.Lexeme), "")
}

func (a *Analyzer) checkAccess(name token.Token, access ast.AccessModifier) {
	if access == ast.PrivateAccess && !a.inClassBody() {
		a.report(name, "'private' is only allowed inside a class body", "class C() { private let z = 99; }")
	}
	if access == ast.GlobalAccess && !a.atTopLevel() {
		a.report(name, "'global' is only allowed at the top level", "global let config = 1;")
	}
}

// statement visitors

func (a *Analyzer) VisitExpressionStmt(stmt ast.ExpressionStmt) any {
	stmt.Expression.Accept(a)
	return nil
}

func (a *Analyzer) VisitVarStmt(stmt ast.VarStmt) any {
	if stmt.Initializer != nil {
		stmt.Initializer.Accept(a)
	}
	a.checkAccess(stmt.Name, stmt.Access)
	a.declare(stmt.Name)
	return nil
}

func (a *Analyzer) VisitBlockStmt(stmt ast.BlockStmt) any {
	a.push(blockScope)
	defer a.pop()
	for _, inner := range stmt.Statements {
		inner.Accept(a)
	}
	return nil
}

func (a *Analyzer) VisitIfStmt(stmt ast.IfStmt) any {
	stmt.Condition.Accept(a)
	a.VisitBlockStmt(stmt.Then)
	if stmt.Else != nil {
		stmt.Else.Accept(a)
	}
	return nil
}

func (a *Analyzer) VisitWhileStmt(stmt ast.WhileStmt) any {
	stmt.Condition.Accept(a)
	a.loopDepth++
	a.VisitBlockStmt(stmt.Body)
	a.loopDepth--
	return nil
}

func (a *Analyzer) VisitForStmt(stmt ast.ForStmt) any {
	// the init declaration shares a scope with the header and the body
	a.push(blockScope)
	defer a.pop()
	if stmt.Init != nil {
		stmt.Init.Accept(a)
	}
	if stmt.Condition != nil {
		stmt.Condition.Accept(a)
	}
	if stmt.Step != nil {
		stmt.Step.Accept(a)
	}
	a.loopDepth++
	for _, inner := range stmt.Body.Statements {
		inner.Accept(a)
	}
	a.loopDepth--
	return nil
}

func (a *Analyzer) checkCallable(name token.Token, params []token.Token, body ast.BlockStmt, kind scopeKind) {
	a.push(kind)
	a.callables = append(a.callables, kind)
	defer func() {
		a.callables = a.callables[:len(a.callables)-1]
		a.pop()
	}()
	seen := map[string]bool{}
	for _, param := range params {
		if seen[param.Lexeme] {
			a.report(param, fmt.Sprintf("duplicate parameter '%s'", param.Lexeme), "")
		}
		seen[param.Lexeme] = true
		a.current().names[param.Lexeme] = true
	}
	// the callable's own name is bound inside its body so recursion
	// resolves
	a.current().names[name.Lexeme] = true

	outerLoopDepth := a.loopDepth
	a.loopDepth = 0
	for _, inner := range body.Statements {
		inner.Accept(a)
	}
	a.loopDepth = outerLoopDepth
}

func (a *Analyzer) VisitFuncDecl(stmt ast.FuncDecl) any {
	a.checkAccess(stmt.Name, stmt.Access)
	a.declare(stmt.Name)
	a.checkCallable(stmt.Name, stmt.Params, stmt.Body, functionScope)
	return nil
}

func (a *Analyzer) VisitClassDecl(stmt ast.ClassDecl) any {
	a.checkAccess(stmt.Name, stmt.Access)
	a.declare(stmt.Name)
	a.checkCallable(stmt.Name, stmt.Params, stmt.Body, classScope)
	return nil
}

func (a *Analyzer) VisitReturnStmt(stmt ast.ReturnStmt) any {
	// a class body's result is the constructed object; an explicit return
	// has nothing to return to
	if len(a.callables) > 0 && a.callables[len(a.callables)-1] == classScope {
		a.errors = append(a.errors, SemanticError{
			File: a.file, Line: stmt.Line,
			Message: "'return' is not allowed inside a class body",
		})
	}
	if stmt.Value != nil {
		stmt.Value.Accept(a)
	}
	return nil
}

func (a *Analyzer) VisitBreakStmt(stmt ast.BreakStmt) any {
	if a.loopDepth == 0 {
		a.errors = append(a.errors, SemanticError{
			File: a.file, Line: stmt.Line,
			Message: "'break' outside of a loop",
		})
	}
	return nil
}

func (a *Analyzer) VisitContinueStmt(stmt ast.ContinueStmt) any {
	if a.loopDepth == 0 {
		a.errors = append(a.errors, SemanticError{
			File: a.file, Line: stmt.Line,
			Message: "'continue' outside of a loop",
		})
	}
	return nil
}

func (a *Analyzer) VisitTryStmt(stmt ast.TryStmt) any {
	a.VisitBlockStmt(stmt.Body)
	for i, clause := range stmt.Catches {
		if clause.Selector != nil {
			clause.Selector.Accept(a)
		} else if i != len(stmt.Catches)-1 {
			a.errors = append(a.errors, SemanticError{
				File: a.file, Line: clause.Line,
				Message: "a bare 'catch' must be the last clause of the chain",
				Hint:    "try { } catch (E) { } catch { }",
			})
		}
		a.VisitBlockStmt(clause.Body)
	}
	return nil
}

func (a *Analyzer) VisitRaiseStmt(stmt ast.RaiseStmt) any {
	stmt.Value.Accept(a)
	return nil
}

func (a *Analyzer) VisitExceptionDecl(stmt ast.ExceptionDecl) any {
	a.checkAccess(stmt.Name, stmt.Access)
	a.declare(stmt.Name)
	return nil
}

// expression visitors

func (a *Analyzer) VisitBinary(expr ast.Binary) any {
	expr.Left.Accept(a)
	expr.Right.Accept(a)
	return nil
}

func (a *Analyzer) VisitLogical(expr ast.Logical) any {
	expr.Left.Accept(a)
	expr.Right.Accept(a)
	return nil
}

func (a *Analyzer) VisitUnary(expr ast.Unary) any {
	expr.Right.Accept(a)
	return nil
}

func (a *Analyzer) VisitLiteral(expr ast.Literal) any { return nil }

func (a *Analyzer) VisitGrouping(expr ast.Grouping) any {
	expr.Expression.Accept(a)
	return nil
}

func (a *Analyzer) VisitVariableExpression(expr ast.Variable) any {
	a.resolve(expr.Name)
	return nil
}

func (a *Analyzer) VisitAssignExpression(expr ast.Assign) any {
	expr.Target.Accept(a)
	expr.Value.Accept(a)
	return nil
}

// VisitCallExpression checks the arity of direct calls to fixed-arity
// builtins; everything else is resolved at runtime.
func (a *Analyzer) VisitCallExpression(expr ast.Call) any {
	expr.Callee.Accept(a)
	for _, arg := range expr.Args {
		arg.Accept(a)
	}

	variable, ok := expr.Callee.(ast.Variable)
	if !ok {
		return nil
	}
	if a.isShadowed(variable.Name.Lexeme) {
		return nil
	}
	builtin := runtime.GetBuiltin(variable.Name.Lexeme)
	if builtin == nil || builtin.Arity == -1 {
		return nil
	}
	if len(expr.Args) != builtin.Arity {
		a.report(variable.Name,
			fmt.Sprintf("%s expects %d arguments, got %d", builtin.Name, builtin.Arity, len(expr.Args)), "")
	}
	return nil
}

func (a *Analyzer) isShadowed(name string) bool {
	for i := len(a.scopes) - 1; i >= 0; i-- {
		if a.scopes[i].names[name] {
			return true
		}
	}
	return false
}

func (a *Analyzer) VisitIndexExpression(expr ast.Index) any {
	expr.Target.Accept(a)
	expr.Index.Accept(a)
	return nil
}

func (a *Analyzer) VisitAttributeExpression(expr ast.Attribute) any {
	expr.Target.Accept(a)
	return nil
}

func (a *Analyzer) VisitFuncLiteral(expr ast.FuncLiteral) any {
	a.push(functionScope)
	a.callables = append(a.callables, functionScope)
	defer func() {
		a.callables = a.callables[:len(a.callables)-1]
		a.pop()
	}()
	seen := map[string]bool{}
	for _, param := range expr.Params {
		if seen[param.Lexeme] {
			a.report(param, fmt.Sprintf("duplicate parameter '%s'", param.Lexeme), "")
		}
		seen[param.Lexeme] = true
		a.current().names[param.Lexeme] = true
	}
	outerLoopDepth := a.loopDepth
	a.loopDepth = 0
	for _, inner := range expr.Body.Statements {
		inner.Accept(a)
	}
	a.loopDepth = outerLoopDepth
	return nil
}

func (a *Analyzer) VisitListLiteral(expr ast.ListLiteral) any {
	for _, element := range expr.Elements {
		element.Accept(a)
	}
	return nil
}

func (a *Analyzer) VisitMapLiteral(expr ast.MapLiteral) any {
	for i := range expr.Keys {
		expr.Keys[i].Accept(a)
		expr.Values[i].Accept(a)
	}
	return nil
}

func (a *Analyzer) VisitSetLiteral(expr ast.SetLiteral) any {
	for _, element := range expr.Elements {
		element.Accept(a)
	}
	return nil
}
