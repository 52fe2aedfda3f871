// Recursive descent parser
// https://en.wikipedia.org/wiki/Recursive_descent_parser
//
// A recursive descent parser is a top-down parser because it starts from the
// top grammar rule and works its way down into the nested sub-expressions
// before reaching the leaves of the syntax tree (terminal rules).
package parser

import (
	"fmt"

	"sable/ast"
	"sable/token"
)

var comparisonTokenTypes = []token.TokenType{
	token.LARGER,
	token.LARGER_EQUAL,
	token.LESS,
	token.LESS_EQUAL,
}

var shiftTokenTypes = []token.TokenType{
	token.SHIFT_LEFT,
	token.SHIFT_RIGHT,
}

var termTokenTypes = []token.TokenType{
	token.SUB,
	token.ADD,
}

var factorTokenTypes = []token.TokenType{
	token.MULT,
	token.DIV,
	token.MOD,
}

var unaryTokenTypes = []token.TokenType{
	token.BANG,
	token.SUB,
}

// parseAbort is the panic payload used for panic-mode error recovery: the
// parser records a SyntaxError, panics with this sentinel, and the
// statement loop synchronises to the next statement boundary.
type parseAbort struct{}

type Parser struct {
	tokens   []token.Token
	position int
	file     string
	errors   []error
}

// NOTE: The parser's position is always at the token currently being
// looked at; advance consumes it.

// Make initializes and returns a new Parser instance over the tokens
// produced by the lexer. The file name is carried into every SyntaxError.
func Make(file string, tokens []token.Token) *Parser {
	return &Parser{
		tokens:   tokens,
		position: 0,
		file:     file,
	}
}

// Parse parses the whole token stream into a statement list. All syntax
// errors encountered are collected and returned together; the returned AST
// covers the statements that parsed cleanly.
func (parser *Parser) Parse() ([]ast.Stmt, []error) {
	var statements []ast.Stmt
	for !parser.isFinished() {
		stmt := parser.parseDeclarationSafe()
		if stmt != nil {
			statements = append(statements, stmt)
		}
	}
	return statements, parser.errors
}

// parseDeclarationSafe parses one declaration, recovering from a syntax
// error by synchronising to the next statement boundary.
func (parser *Parser) parseDeclarationSafe() (stmt ast.Stmt) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(parseAbort); !ok {
				panic(r)
			}
			parser.synchronize()
			stmt = nil
		}
	}()
	return parser.parseDeclaration()
}

// fail records a syntax error at the given token and aborts the current
// statement.
func (parser *Parser) fail(at token.Token, message string, hint string) {
	parser.errors = append(parser.errors, CreateSyntaxError(parser.file, at.Line, at.Column, message, hint))
	panic(parseAbort{})
}

func (parser *Parser) peek() token.Token {
	return parser.tokens[parser.position]
}

func (parser *Parser) previous() token.Token {
	return parser.tokens[parser.position-1]
}

func (parser *Parser) advance() token.Token {
	if !parser.isFinished() {
		parser.position++
	}
	return parser.previous()
}

func (parser *Parser) isFinished() bool {
	return parser.peek().TokenType == token.EOF
}

func (parser *Parser) checkType(tokenType token.TokenType) bool {
	if parser.isFinished() {
		return false
	}
	return parser.peek().TokenType == tokenType
}

// isMatch consumes the current token if its type matches any of the
// provided types.
func (parser *Parser) isMatch(tokenTypes ...token.TokenType) bool {
	for _, tokenType := range tokenTypes {
		if parser.checkType(tokenType) {
			parser.advance()
			return true
		}
	}
	return false
}

// consume advances past a token of the expected type or fails with the
// provided message.
func (parser *Parser) consume(tokenType token.TokenType, message string, hint string) token.Token {
	if parser.checkType(tokenType) {
		return parser.advance()
	}
	parser.fail(parser.peek(), message, hint)
	return token.Token{}
}

// synchronize discards tokens until a likely statement boundary, so one
// syntax error does not cascade into dozens.
func (parser *Parser) synchronize() {
	for !parser.isFinished() {
		if parser.previousIsSemicolon() {
			return
		}
		switch parser.peek().TokenType {
		case token.LET, token.FUNC, token.CLASS, token.IF, token.WHILE, token.FOR,
			token.RETURN, token.TRY, token.RAISE, token.EXCEPTION, token.RCUR:
			return
		}
		parser.advance()
	}
}

func (parser *Parser) previousIsSemicolon() bool {
	return parser.position > 0 && parser.previous().TokenType == token.SEMICOLON
}

// declarations

func (parser *Parser) parseDeclaration() ast.Stmt {
	access := ast.PublicAccess
	if parser.isMatch(token.PRIVATE) {
		access = ast.PrivateAccess
	} else if parser.isMatch(token.GLOBAL) {
		access = ast.GlobalAccess
	}

	switch {
	case parser.isMatch(token.LET):
		return parser.parseVarDeclaration(access)
	case parser.checkType(token.FUNC) && parser.peekNextType() == token.IDENTIFIER:
		parser.advance()
		return parser.parseFuncDeclaration(access)
	case parser.isMatch(token.CLASS):
		return parser.parseClassDeclaration(access)
	case parser.isMatch(token.EXCEPTION):
		return parser.parseExceptionDeclaration(access)
	}

	if access != ast.PublicAccess {
		parser.fail(parser.peek(), "access modifiers can only prefix declarations", "private let z = 99;")
	}
	return parser.parseStatement()
}

func (parser *Parser) peekNextType() token.TokenType {
	if parser.position+1 >= len(parser.tokens) {
		return token.EOF
	}
	return parser.tokens[parser.position+1].TokenType
}

func (parser *Parser) parseVarDeclaration(access ast.AccessModifier) ast.Stmt {
	name := parser.consume(token.IDENTIFIER, "expected a variable name after 'let'", "let x = 1;")
	parser.consume(token.ASSIGN, "expected '=' after the variable name", "let x = 1;")
	initializer := parser.parseExpression()
	parser.consume(token.SEMICOLON, "expected ';' after the declaration", "let x = 1;")
	return ast.VarStmt{Name: name, Initializer: initializer, Access: access}
}

func (parser *Parser) parseFuncDeclaration(access ast.AccessModifier) ast.Stmt {
	name := parser.consume(token.IDENTIFIER, "expected a function name after 'func'", "func add(a, b) { return a + b; }")
	params := parser.parseParams()
	body := parser.parseBlock()
	return ast.FuncDecl{Name: name, Params: params, Body: body, Access: access}
}

func (parser *Parser) parseClassDeclaration(access ast.AccessModifier) ast.Stmt {
	name := parser.consume(token.IDENTIFIER, "expected a class name after 'class'", "class Point(x, y) { }")
	params := parser.parseParams()
	body := parser.parseBlock()
	return ast.ClassDecl{Name: name, Params: params, Body: body, Access: access}
}

func (parser *Parser) parseExceptionDeclaration(access ast.AccessModifier) ast.Stmt {
	name := parser.consume(token.IDENTIFIER, "expected an exception name after 'exception'", "exception NotFound;")
	parser.consume(token.SEMICOLON, "expected ';' after the exception name", "exception NotFound;")
	return ast.ExceptionDecl{Name: name, Access: access}
}

func (parser *Parser) parseParams() []token.Token {
	parser.consume(token.LPA, "expected '(' before the parameter list", "func add(a, b) { }")
	var params []token.Token
	if !parser.checkType(token.RPA) {
		for {
			params = append(params, parser.consume(token.IDENTIFIER, "expected a parameter name", "func add(a, b) { }"))
			if !parser.isMatch(token.COMMA) {
				break
			}
		}
	}
	parser.consume(token.RPA, "expected ')' after the parameter list", "func add(a, b) { }")
	return params
}

// statements

func (parser *Parser) parseStatement() ast.Stmt {
	switch {
	case parser.isMatch(token.IF):
		return parser.parseIf()
	case parser.isMatch(token.WHILE):
		return parser.parseWhile()
	case parser.isMatch(token.FOR):
		return parser.parseFor()
	case parser.isMatch(token.TRY):
		return parser.parseTry()
	case parser.isMatch(token.RAISE):
		return parser.parseRaise()
	case parser.isMatch(token.RETURN):
		return parser.parseReturn()
	case parser.isMatch(token.BREAK):
		line := parser.previous().Line
		parser.consume(token.SEMICOLON, "expected ';' after 'break'", "break;")
		return ast.BreakStmt{Line: line}
	case parser.isMatch(token.CONTINUE):
		line := parser.previous().Line
		parser.consume(token.SEMICOLON, "expected ';' after 'continue'", "continue;")
		return ast.ContinueStmt{Line: line}
	case parser.checkType(token.LCUR):
		return parser.parseBlock()
	default:
		return parser.parseExpressionStatement()
	}
}

func (parser *Parser) parseBlock() ast.BlockStmt {
	open := parser.consume(token.LCUR, "expected '{' to open a block", "{ ... }")
	var statements []ast.Stmt
	for !parser.checkType(token.RCUR) && !parser.isFinished() {
		stmt := parser.parseDeclarationSafe()
		if stmt != nil {
			statements = append(statements, stmt)
		}
	}
	parser.consume(token.RCUR, "expected '}' to close the block", "{ ... }")
	return ast.BlockStmt{Statements: statements, Line: open.Line}
}

func (parser *Parser) parseIf() ast.Stmt {
	line := parser.previous().Line
	parser.consume(token.LPA, "expected '(' after 'if'", "if (x > 0) { }")
	condition := parser.parseExpression()
	parser.consume(token.RPA, "expected ')' after the condition", "if (x > 0) { }")
	then := parser.parseBlock()

	var elseStmt ast.Stmt
	if parser.isMatch(token.ELSE) {
		if parser.isMatch(token.IF) {
			elseStmt = parser.parseIf()
		} else {
			elseStmt = parser.parseBlock()
		}
	}
	return ast.IfStmt{Condition: condition, Then: then, Else: elseStmt, Line: line}
}

func (parser *Parser) parseWhile() ast.Stmt {
	line := parser.previous().Line
	parser.consume(token.LPA, "expected '(' after 'while'", "while (x < 10) { }")
	condition := parser.parseExpression()
	parser.consume(token.RPA, "expected ')' after the condition", "while (x < 10) { }")
	body := parser.parseBlock()
	return ast.WhileStmt{Condition: condition, Body: body, Line: line}
}

func (parser *Parser) parseFor() ast.Stmt {
	line := parser.previous().Line
	parser.consume(token.LPA, "expected '(' after 'for'", "for (let i = 0; i < 10; i = i + 1) { }")

	var init ast.Stmt
	if parser.isMatch(token.SEMICOLON) {
		init = nil
	} else if parser.isMatch(token.LET) {
		init = parser.parseVarDeclaration(ast.PublicAccess)
	} else {
		init = parser.parseExpressionStatement()
	}

	var condition ast.Expression
	if !parser.checkType(token.SEMICOLON) {
		condition = parser.parseExpression()
	}
	parser.consume(token.SEMICOLON, "expected ';' after the loop condition", "for (let i = 0; i < 10; i = i + 1) { }")

	var step ast.Stmt
	if !parser.checkType(token.RPA) {
		step = ast.ExpressionStmt{Expression: parser.parseExpression()}
	}
	parser.consume(token.RPA, "expected ')' after the loop clauses", "for (let i = 0; i < 10; i = i + 1) { }")

	body := parser.parseBlock()
	return ast.ForStmt{Init: init, Condition: condition, Step: step, Body: body, Line: line}
}

func (parser *Parser) parseTry() ast.Stmt {
	line := parser.previous().Line
	body := parser.parseBlock()

	var catches []ast.CatchClause
	for parser.checkType(token.CATCH) {
		catchTok := parser.advance()
		var selector ast.Expression
		if parser.isMatch(token.LPA) {
			selector = parser.parseExpression()
			parser.consume(token.RPA, "expected ')' after the catch selector", "catch (NotFound) { }")
		}
		catchBody := parser.parseBlock()
		catches = append(catches, ast.CatchClause{Selector: selector, Body: catchBody, Line: catchTok.Line})
	}
	if len(catches) == 0 {
		parser.fail(parser.peek(), "expected at least one 'catch' after the try block", "try { } catch (E) { }")
	}
	return ast.TryStmt{Body: body, Catches: catches, Line: line}
}

func (parser *Parser) parseRaise() ast.Stmt {
	line := parser.previous().Line
	value := parser.parseExpression()
	parser.consume(token.SEMICOLON, "expected ';' after the raised expression", "raise NotFound;")
	return ast.RaiseStmt{Value: value, Line: line}
}

func (parser *Parser) parseReturn() ast.Stmt {
	line := parser.previous().Line
	var value ast.Expression
	if !parser.checkType(token.SEMICOLON) {
		value = parser.parseExpression()
	}
	parser.consume(token.SEMICOLON, "expected ';' after the return value", "return x;")
	return ast.ReturnStmt{Value: value, Line: line}
}

func (parser *Parser) parseExpressionStatement() ast.Stmt {
	expr := parser.parseExpression()
	parser.consume(token.SEMICOLON, "expected ';' after the expression", "x = 1;")
	return ast.ExpressionStmt{Expression: expr}
}

// expressions, from lowest to highest precedence

func (parser *Parser) parseExpression() ast.Expression {
	return parser.parseAssignment()
}

// parseAssignment parses `target = value`, validating that the left side
// is assignable (a variable, an index or an attribute).
func (parser *Parser) parseAssignment() ast.Expression {
	expr := parser.parseLogicalOr()

	if parser.isMatch(token.ASSIGN) {
		equals := parser.previous()
		value := parser.parseAssignment()
		switch expr.(type) {
		case ast.Variable, ast.Index, ast.Attribute:
			return ast.Assign{Target: expr, Value: value, Line: equals.Line}
		}
		parser.fail(equals, "invalid assignment target", "x = 1; or xs[0] = 1; or obj->field = 1;")
	}
	return expr
}

func (parser *Parser) parseLogicalOr() ast.Expression {
	expr := parser.parseLogicalAnd()
	for parser.isMatch(token.OR) {
		operator := parser.previous()
		right := parser.parseLogicalAnd()
		expr = ast.Logical{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

func (parser *Parser) parseLogicalAnd() ast.Expression {
	expr := parser.parseEquality()
	for parser.isMatch(token.AND) {
		operator := parser.previous()
		right := parser.parseEquality()
		expr = ast.Logical{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

func (parser *Parser) parseEquality() ast.Expression {
	expr := parser.parseComparison()
	for parser.isMatch(token.EQUAL_EQUAL) {
		operator := parser.previous()
		right := parser.parseComparison()
		expr = ast.Binary{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

func (parser *Parser) parseComparison() ast.Expression {
	expr := parser.parseBitwiseOr()
	for parser.isMatch(comparisonTokenTypes...) {
		operator := parser.previous()
		right := parser.parseBitwiseOr()
		expr = ast.Binary{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

func (parser *Parser) parseBitwiseOr() ast.Expression {
	expr := parser.parseBitwiseXor()
	for parser.isMatch(token.BIT_OR) {
		operator := parser.previous()
		right := parser.parseBitwiseXor()
		expr = ast.Binary{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

func (parser *Parser) parseBitwiseXor() ast.Expression {
	expr := parser.parseBitwiseAnd()
	for parser.isMatch(token.BIT_XOR) {
		operator := parser.previous()
		right := parser.parseBitwiseAnd()
		expr = ast.Binary{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

func (parser *Parser) parseBitwiseAnd() ast.Expression {
	expr := parser.parseShift()
	for parser.isMatch(token.BIT_AND) {
		operator := parser.previous()
		right := parser.parseShift()
		expr = ast.Binary{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

func (parser *Parser) parseShift() ast.Expression {
	expr := parser.parseTerm()
	for parser.isMatch(shiftTokenTypes...) {
		operator := parser.previous()
		right := parser.parseTerm()
		expr = ast.Binary{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

func (parser *Parser) parseTerm() ast.Expression {
	expr := parser.parseFactor()
	for parser.isMatch(termTokenTypes...) {
		operator := parser.previous()
		right := parser.parseFactor()
		expr = ast.Binary{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

func (parser *Parser) parseFactor() ast.Expression {
	expr := parser.parseExponent()
	for parser.isMatch(factorTokenTypes...) {
		operator := parser.previous()
		right := parser.parseExponent()
		expr = ast.Binary{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

// parseExponent parses the ** operator, which is right-associative:
// 2 ** 3 ** 2 is 2 ** (3 ** 2).
func (parser *Parser) parseExponent() ast.Expression {
	expr := parser.parseUnary()
	if parser.isMatch(token.EXP) {
		operator := parser.previous()
		right := parser.parseExponent()
		return ast.Binary{Left: expr, Operator: operator, Right: right}
	}
	return expr
}

func (parser *Parser) parseUnary() ast.Expression {
	if parser.isMatch(unaryTokenTypes...) {
		operator := parser.previous()
		right := parser.parseUnary()
		return ast.Unary{Operator: operator, Right: right}
	}
	return parser.parsePostfix()
}

// parsePostfix parses call, index and attribute suffixes, which all bind
// tighter than any operator and chain left to right.
func (parser *Parser) parsePostfix() ast.Expression {
	expr := parser.parsePrimary()
	for {
		switch {
		case parser.isMatch(token.LPA):
			line := parser.previous().Line
			var args []ast.Expression
			if !parser.checkType(token.RPA) {
				for {
					args = append(args, parser.parseExpression())
					if !parser.isMatch(token.COMMA) {
						break
					}
				}
			}
			parser.consume(token.RPA, "expected ')' after the call arguments", "f(a, b)")
			expr = ast.Call{Callee: expr, Args: args, Line: line}
		case parser.isMatch(token.LBRACKET):
			line := parser.previous().Line
			index := parser.parseExpression()
			parser.consume(token.RBRACKET, "expected ']' after the index", "xs[0]")
			expr = ast.Index{Target: expr, Index: index, Line: line}
		case parser.isMatch(token.ARROW):
			name := parser.consume(token.IDENTIFIER, "expected an attribute name after '->'", "obj->field")
			expr = ast.Attribute{Target: expr, Name: name}
		default:
			return expr
		}
	}
}

func (parser *Parser) parsePrimary() ast.Expression {
	switch {
	case parser.isMatch(token.NUMBER, token.STRING):
		tok := parser.previous()
		return ast.Literal{Value: tok.Literal, Line: tok.Line}
	case parser.isMatch(token.NULL):
		return ast.Literal{Value: nil, Line: parser.previous().Line}
	case parser.isMatch(token.IDENTIFIER):
		return ast.Variable{Name: parser.previous()}
	case parser.isMatch(token.LPA):
		expr := parser.parseExpression()
		parser.consume(token.RPA, "expected ')' after the expression", "(a + b)")
		return ast.Grouping{Expression: expr}
	case parser.isMatch(token.LBRACKET):
		return parser.parseListLiteral()
	case parser.isMatch(token.MAP):
		return parser.parseMapLiteral()
	case parser.isMatch(token.SET):
		return parser.parseSetLiteral()
	case parser.isMatch(token.FUNC):
		return parser.parseFuncLiteral()
	}
	parser.fail(parser.peek(), fmt.Sprintf("expected an expression, got %q", parser.peek().Lexeme), "")
	return nil
}

func (parser *Parser) parseListLiteral() ast.Expression {
	line := parser.previous().Line
	var elements []ast.Expression
	if !parser.checkType(token.RBRACKET) {
		for {
			elements = append(elements, parser.parseExpression())
			if !parser.isMatch(token.COMMA) {
				break
			}
		}
	}
	parser.consume(token.RBRACKET, "expected ']' after the list elements", "[1, 2, 3]")
	return ast.ListLiteral{Elements: elements, Line: line}
}

func (parser *Parser) parseMapLiteral() ast.Expression {
	line := parser.previous().Line
	parser.consume(token.LCUR, "expected '{' after 'map'", `map { 1: "a" }`)
	var keys, values []ast.Expression
	if !parser.checkType(token.RCUR) {
		for {
			keys = append(keys, parser.parseExpression())
			parser.consume(token.COLON, "expected ':' between the key and the value", `map { 1: "a" }`)
			values = append(values, parser.parseExpression())
			if !parser.isMatch(token.COMMA) {
				break
			}
		}
	}
	parser.consume(token.RCUR, "expected '}' after the map entries", `map { 1: "a" }`)
	return ast.MapLiteral{Keys: keys, Values: values, Line: line}
}

func (parser *Parser) parseSetLiteral() ast.Expression {
	line := parser.previous().Line
	parser.consume(token.LCUR, "expected '{' after 'set'", "set { 1, 2 }")
	var elements []ast.Expression
	if !parser.checkType(token.RCUR) {
		for {
			elements = append(elements, parser.parseExpression())
			if !parser.isMatch(token.COMMA) {
				break
			}
		}
	}
	parser.consume(token.RCUR, "expected '}' after the set elements", "set { 1, 2 }")
	return ast.SetLiteral{Elements: elements, Line: line}
}

func (parser *Parser) parseFuncLiteral() ast.Expression {
	line := parser.previous().Line
	params := parser.parseParams()
	body := parser.parseBlock()
	return ast.FuncLiteral{Params: params, Body: body, Line: line}
}
