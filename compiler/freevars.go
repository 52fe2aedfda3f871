package compiler

import (
	mapset "github.com/deckarep/golang-set"

	"sable/ast"
	"sable/runtime"
)

// freeVarCollector walks a function or class subtree and gathers every
// identifier referenced inside it but not declared inside it. The result is
// the closure-name list recorded in the CREATE_FUNCTION instruction.
//
// Two structures are maintained: bound, mapping each locally declared name
// to the nesting level at which it became bound, and the free set plus an
// order slice preserving first-occurrence order (the closure slot vector is
// resolved positionally, so the order must be deterministic).
type freeVarCollector struct {
	bound map[string]int
	free  mapset.Set
	order []string
	level int
}

// CollectFreeVars returns the free variables of a function body given its
// parameter names, in first-occurrence order. Builtin identifiers are never
// free.
func CollectFreeVars(params []string, body ast.BlockStmt) []string {
	collector := &freeVarCollector{
		bound: map[string]int{},
		free:  mapset.NewThreadUnsafeSet(),
	}
	for _, param := range params {
		collector.bind(param)
	}
	for _, stmt := range body.Statements {
		stmt.Accept(collector)
	}
	return collector.order
}

func (c *freeVarCollector) bind(name string) {
	if _, ok := c.bound[name]; !ok {
		c.bound[name] = c.level
	}
}

func (c *freeVarCollector) reference(name string) {
	if _, ok := c.bound[name]; ok {
		return
	}
	if runtime.IsBuiltinIdentifier(name) {
		return
	}
	if c.free.Add(name) {
		c.order = append(c.order, name)
	}
}

// enter bumps the nesting level; the returned function restores it, pruning
// every binding introduced at or below the abandoned level.
func (c *freeVarCollector) enter() func() {
	c.level++
	entered := c.level
	return func() {
		for name, lvl := range c.bound {
			if lvl >= entered {
				delete(c.bound, name)
			}
		}
		c.level--
	}
}

// expression visitors

func (c *freeVarCollector) VisitBinary(binary ast.Binary) any {
	binary.Left.Accept(c)
	binary.Right.Accept(c)
	return nil
}

func (c *freeVarCollector) VisitLogical(logical ast.Logical) any {
	logical.Left.Accept(c)
	logical.Right.Accept(c)
	return nil
}

func (c *freeVarCollector) VisitUnary(unary ast.Unary) any {
	unary.Right.Accept(c)
	return nil
}

func (c *freeVarCollector) VisitLiteral(literal ast.Literal) any { return nil }

func (c *freeVarCollector) VisitGrouping(grouping ast.Grouping) any {
	grouping.Expression.Accept(c)
	return nil
}

func (c *freeVarCollector) VisitVariableExpression(variable ast.Variable) any {
	c.reference(variable.Name.Lexeme)
	return nil
}

func (c *freeVarCollector) VisitAssignExpression(assign ast.Assign) any {
	assign.Target.Accept(c)
	assign.Value.Accept(c)
	return nil
}

func (c *freeVarCollector) VisitCallExpression(call ast.Call) any {
	call.Callee.Accept(c)
	for _, arg := range call.Args {
		arg.Accept(c)
	}
	return nil
}

func (c *freeVarCollector) VisitIndexExpression(index ast.Index) any {
	index.Target.Accept(c)
	index.Index.Accept(c)
	return nil
}

func (c *freeVarCollector) VisitAttributeExpression(attribute ast.Attribute) any {
	// only the target is an expression; the attribute name is resolved
	// against the target's attribute table, never the lookup tables
	attribute.Target.Accept(c)
	return nil
}

func (c *freeVarCollector) VisitFuncLiteral(fn ast.FuncLiteral) any {
	leave := c.enter()
	defer leave()
	for _, param := range fn.Params {
		c.bind(param.Lexeme)
	}
	for _, stmt := range fn.Body.Statements {
		stmt.Accept(c)
	}
	return nil
}

func (c *freeVarCollector) VisitListLiteral(list ast.ListLiteral) any {
	for _, element := range list.Elements {
		element.Accept(c)
	}
	return nil
}

func (c *freeVarCollector) VisitMapLiteral(m ast.MapLiteral) any {
	for i := range m.Keys {
		m.Keys[i].Accept(c)
		m.Values[i].Accept(c)
	}
	return nil
}

func (c *freeVarCollector) VisitSetLiteral(s ast.SetLiteral) any {
	for _, element := range s.Elements {
		element.Accept(c)
	}
	return nil
}

// statement visitors

func (c *freeVarCollector) VisitExpressionStmt(exprStmt ast.ExpressionStmt) any {
	exprStmt.Expression.Accept(c)
	return nil
}

func (c *freeVarCollector) VisitVarStmt(varStmt ast.VarStmt) any {
	if varStmt.Initializer != nil {
		varStmt.Initializer.Accept(c)
	}
	c.bind(varStmt.Name.Lexeme)
	return nil
}

func (c *freeVarCollector) VisitBlockStmt(blockStmt ast.BlockStmt) any {
	leave := c.enter()
	defer leave()
	for _, stmt := range blockStmt.Statements {
		stmt.Accept(c)
	}
	return nil
}

func (c *freeVarCollector) VisitIfStmt(stmt ast.IfStmt) any {
	stmt.Condition.Accept(c)
	c.VisitBlockStmt(stmt.Then)
	if stmt.Else != nil {
		stmt.Else.Accept(c)
	}
	return nil
}

func (c *freeVarCollector) VisitWhileStmt(stmt ast.WhileStmt) any {
	stmt.Condition.Accept(c)
	c.VisitBlockStmt(stmt.Body)
	return nil
}

// VisitForStmt recurses into init/cond/step/body at the deeper nesting
// level without pruning between them, so the induction variable declared by
// init stays bound across the conditional, the step and the body.
func (c *freeVarCollector) VisitForStmt(stmt ast.ForStmt) any {
	leave := c.enter()
	defer leave()
	if stmt.Init != nil {
		stmt.Init.Accept(c)
	}
	if stmt.Condition != nil {
		stmt.Condition.Accept(c)
	}
	for _, inner := range stmt.Body.Statements {
		inner.Accept(c)
	}
	if stmt.Step != nil {
		stmt.Step.Accept(c)
	}
	return nil
}

func (c *freeVarCollector) VisitFuncDecl(stmt ast.FuncDecl) any {
	c.bind(stmt.Name.Lexeme)
	leave := c.enter()
	defer leave()
	for _, param := range stmt.Params {
		c.bind(param.Lexeme)
	}
	for _, inner := range stmt.Body.Statements {
		inner.Accept(c)
	}
	return nil
}

func (c *freeVarCollector) VisitClassDecl(stmt ast.ClassDecl) any {
	c.bind(stmt.Name.Lexeme)
	leave := c.enter()
	defer leave()
	for _, param := range stmt.Params {
		c.bind(param.Lexeme)
	}
	for _, inner := range stmt.Body.Statements {
		inner.Accept(c)
	}
	return nil
}

func (c *freeVarCollector) VisitReturnStmt(stmt ast.ReturnStmt) any {
	if stmt.Value != nil {
		stmt.Value.Accept(c)
	}
	return nil
}

func (c *freeVarCollector) VisitBreakStmt(stmt ast.BreakStmt) any       { return nil }
func (c *freeVarCollector) VisitContinueStmt(stmt ast.ContinueStmt) any { return nil }

// VisitTryStmt treats catch selectors as references and catch bodies as
// nested scopes.
func (c *freeVarCollector) VisitTryStmt(stmt ast.TryStmt) any {
	c.VisitBlockStmt(stmt.Body)
	for _, clause := range stmt.Catches {
		if clause.Selector != nil {
			clause.Selector.Accept(c)
		}
		c.VisitBlockStmt(clause.Body)
	}
	return nil
}

func (c *freeVarCollector) VisitRaiseStmt(stmt ast.RaiseStmt) any {
	stmt.Value.Accept(c)
	return nil
}

func (c *freeVarCollector) VisitExceptionDecl(stmt ast.ExceptionDecl) any {
	c.bind(stmt.Name.Lexeme)
	return nil
}
