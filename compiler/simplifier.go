package compiler

import (
	"math"

	"sable/ast"
	"sable/token"
)

// Simplify constant-folds literal subtrees of an expression before
// emission. The rewrite is pure: it never touches nodes it cannot fold, and
// folded results are exactly the values the VM would have computed for the
// unfolded tree. Division and modulus by a literal zero are left unfolded
// so the runtime raises DivisionByZero at the right source line.
func Simplify(expr ast.Expression) ast.Expression {
	switch node := expr.(type) {
	case ast.Grouping:
		inner := Simplify(node.Expression)
		if lit, ok := inner.(ast.Literal); ok {
			return lit
		}
		return ast.Grouping{Expression: inner}
	case ast.Unary:
		right := Simplify(node.Right)
		if lit, ok := right.(ast.Literal); ok && node.Operator.TokenType == token.SUB {
			if n, isNumber := lit.Value.(float64); isNumber {
				return ast.Literal{Value: 0 - n, Line: lit.Line}
			}
		}
		return ast.Unary{Operator: node.Operator, Right: right}
	case ast.Binary:
		left := Simplify(node.Left)
		right := Simplify(node.Right)
		if folded, ok := foldBinary(left, node.Operator.TokenType, right); ok {
			return folded
		}
		return ast.Binary{Left: left, Operator: node.Operator, Right: right}
	default:
		return expr
	}
}

func foldBinary(left ast.Expression, op token.TokenType, right ast.Expression) (ast.Literal, bool) {
	leftLit, ok := left.(ast.Literal)
	if !ok {
		return ast.Literal{}, false
	}
	rightLit, ok := right.(ast.Literal)
	if !ok {
		return ast.Literal{}, false
	}

	if ls, okL := leftLit.Value.(string); okL {
		if rs, okR := rightLit.Value.(string); okR && op == token.ADD {
			return ast.Literal{Value: ls + rs, Line: leftLit.Line}, true
		}
		return ast.Literal{}, false
	}

	ln, okL := leftLit.Value.(float64)
	rn, okR := rightLit.Value.(float64)
	if !okL || !okR {
		return ast.Literal{}, false
	}

	var result float64
	switch op {
	case token.ADD:
		result = ln + rn
	case token.SUB:
		result = ln - rn
	case token.MULT:
		result = ln * rn
	case token.DIV:
		if rn == 0 {
			return ast.Literal{}, false
		}
		result = ln / rn
	case token.MOD:
		if int32(rn) == 0 {
			return ast.Literal{}, false
		}
		result = float64(int32(ln) % int32(rn))
	case token.EXP:
		result = math.Pow(ln, rn)
	case token.BIT_AND:
		result = float64(int32(ln) & int32(rn))
	case token.BIT_OR:
		result = float64(int32(ln) | int32(rn))
	case token.BIT_XOR:
		result = float64(int32(ln) ^ int32(rn))
	case token.SHIFT_LEFT:
		result = float64(int32(ln) << uint32(int32(rn)))
	case token.SHIFT_RIGHT:
		result = float64(int32(ln) >> uint32(int32(rn)))
	default:
		return ast.Literal{}, false
	}
	return ast.Literal{Value: result, Line: leftLit.Line}, true
}
