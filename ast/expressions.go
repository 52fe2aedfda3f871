// expressions.go contains all the expression AST nodes. An expression node always evaluates to a value.

package ast

import (
	"sable/token"
)

// Binary represents a binary operation expression (e.g., "a + b").
// It consists of a left-hand side expression, an operator token (e.g., +, -,
// *, /, %, **, &, |, ^, <<, >>, ==, <, <=, >, >=), and a right-hand side
// expression.
type Binary struct {
	Left     Expression  // The left-hand expression (e.g., "a" in "a + b")
	Operator token.Token // The operator (e.g., "+")
	Right    Expression  // The right-hand expression (e.g., "b" in "a + b")
}

func (binary Binary) Accept(v ExpressionVisitor) any {
	return v.VisitBinary(binary)
}

// Logical represents a logical binary expression ("a && b", "a || b").
type Logical struct {
	Left     Expression
	Operator token.Token
	Right    Expression
}

func (logical Logical) Accept(v ExpressionVisitor) any {
	return v.VisitLogical(logical)
}

// Unary represents a unary operation expression (e.g., "!a" or "-b").
// It consists of an operator token and a single right-hand expression.
type Unary struct {
	Operator token.Token // The operator (e.g., "!" or "-")
	Right    Expression  // The expression the operator is applied to
}

func (unary Unary) Accept(v ExpressionVisitor) any {
	return v.VisitUnary(unary)
}

// Literal represents a literal value in the source code. Value holds a
// float64 for numbers, a string for string literals, and nil for `null`.
type Literal struct {
	Value any
	Line  int
}

func (literal Literal) Accept(v ExpressionVisitor) any {
	return v.VisitLiteral(literal)
}

// Grouping represents a parenthesized expression (e.g., "(a + b)").
// Useful for controlling evaluation precedence.
type Grouping struct {
	Expression Expression // The inner expression inside the parentheses
}

func (grouping Grouping) Accept(v ExpressionVisitor) any {
	return v.VisitGrouping(grouping)
}

// Variable represents the retrieval of a value previously bound to a
// variable name. Name is the IDENTIFIER token holding the lexeme.
type Variable struct {
	Name token.Token
}

func (variable Variable) Accept(v ExpressionVisitor) any {
	return v.VisitVariableExpression(variable)
}

// Assign represents an assignment expression. The target can be a variable
// ("x = 1"), an index expression ("x[0] = 1"), or an attribute expression
// ("x->y = 1"); mutation is observed by every alias of the target.
type Assign struct {
	Target Expression
	Value  Expression
	Line   int
}

func (assign Assign) Accept(v ExpressionVisitor) any {
	return v.VisitAssignExpression(assign)
}

// Call represents a function call expression (e.g., "f(a, b)").
type Call struct {
	Callee Expression
	Args   []Expression
	Line   int
}

func (call Call) Accept(v ExpressionVisitor) any {
	return v.VisitCallExpression(call)
}

// Index represents a container indexing expression (e.g., "xs[0]",
// "m[key]"). For sets the index acts as a membership lookup.
type Index struct {
	Target Expression
	Index  Expression
	Line   int
}

func (index Index) Accept(v ExpressionVisitor) any {
	return v.VisitIndexExpression(index)
}

// Attribute represents an attribute access expression (e.g., "obj->field",
// "list->append").
type Attribute struct {
	Target Expression
	Name   token.Token
}

func (attribute Attribute) Accept(v ExpressionVisitor) any {
	return v.VisitAttributeExpression(attribute)
}

// FuncLiteral represents an inline (nameless) function expression,
// e.g. "func (x) { return x; }".
type FuncLiteral struct {
	Params []token.Token
	Body   BlockStmt
	Line   int
}

func (fn FuncLiteral) Accept(v ExpressionVisitor) any {
	return v.VisitFuncLiteral(fn)
}

// ListLiteral represents a list literal expression (e.g., "[1, 2, 3]").
type ListLiteral struct {
	Elements []Expression
	Line     int
}

func (list ListLiteral) Accept(v ExpressionVisitor) any {
	return v.VisitListLiteral(list)
}

// MapLiteral represents a map literal expression
// (e.g., `map { 1: "a", 2: "b" }`). Keys and Values run in parallel.
type MapLiteral struct {
	Keys   []Expression
	Values []Expression
	Line   int
}

func (m MapLiteral) Accept(v ExpressionVisitor) any {
	return v.VisitMapLiteral(m)
}

// SetLiteral represents a set literal expression (e.g., `set { 1, 2 }`).
type SetLiteral struct {
	Elements []Expression
	Line     int
}

func (s SetLiteral) Accept(v ExpressionVisitor) any {
	return v.VisitSetLiteral(s)
}
