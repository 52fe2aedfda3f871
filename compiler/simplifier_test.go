package compiler

import (
	"testing"

	"sable/ast"
	"sable/token"
)

func literal(value any) ast.Literal {
	return ast.Literal{Value: value}
}

func binary(left ast.Expression, op token.TokenType, right ast.Expression) ast.Binary {
	return ast.Binary{Left: left, Operator: token.CreateToken(op, 1, 0), Right: right}
}

func TestSimplifyFoldsLiteralSubtrees(t *testing.T) {
	tests := []struct {
		name     string
		expr     ast.Expression
		expected any
	}{
		{name: "addition", expr: binary(literal(float64(2)), token.ADD, literal(float64(3))), expected: float64(5)},
		{name: "subtraction", expr: binary(literal(float64(2)), token.SUB, literal(float64(3))), expected: float64(-1)},
		{name: "multiplication", expr: binary(literal(float64(4)), token.MULT, literal(float64(2.5))), expected: float64(10)},
		{name: "division", expr: binary(literal(float64(9)), token.DIV, literal(float64(2))), expected: float64(4.5)},
		{name: "modulus truncates to int32", expr: binary(literal(float64(7.9)), token.MOD, literal(float64(3))), expected: float64(1)},
		{name: "exponent", expr: binary(literal(float64(2)), token.EXP, literal(float64(10))), expected: float64(1024)},
		{name: "bitwise and", expr: binary(literal(float64(6)), token.BIT_AND, literal(float64(3))), expected: float64(2)},
		{name: "shift left", expr: binary(literal(float64(1)), token.SHIFT_LEFT, literal(float64(4))), expected: float64(16)},
		{name: "string concat", expr: binary(literal("foo"), token.ADD, literal("bar")), expected: "foobar"},
		{name: "unary minus", expr: ast.Unary{Operator: token.CreateToken(token.SUB, 1, 0), Right: literal(float64(5))}, expected: float64(-5)},
		{
			name: "nested fold",
			expr: binary(
				binary(literal(float64(1)), token.ADD, literal(float64(2))),
				token.MULT,
				literal(float64(4)),
			),
			expected: float64(12),
		},
		{
			name:     "grouping unwraps to its literal",
			expr:     ast.Grouping{Expression: literal(float64(7))},
			expected: float64(7),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			simplified := Simplify(tt.expr)
			lit, ok := simplified.(ast.Literal)
			if !ok {
				t.Fatalf("expected a folded literal, got %T", simplified)
			}
			if lit.Value != tt.expected {
				t.Errorf("folded value: got %v, want %v", lit.Value, tt.expected)
			}
		})
	}
}

func TestSimplifyLeavesUnfoldableTreesAlone(t *testing.T) {
	variable := ast.Variable{Name: token.CreateLiteralToken(token.IDENTIFIER, nil, "x", 1, 0)}

	tests := []struct {
		name string
		expr ast.Expression
	}{
		{name: "variable operand", expr: binary(variable, token.ADD, literal(float64(1)))},
		{name: "division by literal zero", expr: binary(literal(float64(1)), token.DIV, literal(float64(0)))},
		{name: "modulus by literal zero", expr: binary(literal(float64(1)), token.MOD, literal(float64(0)))},
		{name: "string times number", expr: binary(literal("a"), token.MULT, literal(float64(2)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			simplified := Simplify(tt.expr)
			if _, ok := simplified.(ast.Literal); ok {
				t.Errorf("%T must not fold", tt.expr)
			}
		})
	}
}
