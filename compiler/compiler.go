// Package compiler lowers a validated AST to the bytecode executed by the
// virtual machine. Lowering is post-order for expressions; control flow is
// wired with relative jumps measured over already-compiled sublists, and
// break/continue are emitted as sentinel offsets fixed up once the
// enclosing loop's length is known.
package compiler

import (
	"fmt"
	"math"

	"sable/ast"
	"sable/bytecode"
	"sable/token"
)

// Sentinel offsets emitted for break and continue inside loop bodies. A
// fix-up pass over the finished loop rewrites them to the real offsets.
const (
	breakSentinel    = math.MaxInt32
	continueSentinel = -math.MaxInt32
)

// Compiler lowers statements to a ByteCodeList. One instance compiles one
// source file; FilePath is recorded in every function record it emits.
type Compiler struct {
	filePath string
}

// New creates a Compiler for a source file.
func New(filePath string) *Compiler {
	return &Compiler{filePath: filePath}
}

// Compile lowers a whole program. If the top level does not end in a
// `return`, a `LOAD_CONST 0; EXIT_PROGRAM` epilogue is appended so the
// program always exits with a number.
func (c *Compiler) Compile(statements []ast.Stmt) (list *bytecode.ByteCodeList, err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case CompileError:
				err = v
			case DeveloperError:
				err = v
			default:
				panic(r)
			}
		}
	}()

	list = c.compileCodeBody(statements, scopeGlobal, false)
	if !endsWithTerminal(statements) {
		line := 0
		if len(statements) > 0 {
			line = lastLine(list)
		}
		list.Add(&bytecode.Instruction{Op: bytecode.LOAD_CONST, Constant: float64(0), Line: line})
		list.Add(&bytecode.Instruction{Op: bytecode.EXIT_PROGRAM, Line: line})
	}
	return list, nil
}

// CompileInteractive lowers a program without the exit epilogue, so a REPL
// can keep appending compiled inputs to one growing list and resume
// execution where the previous input stopped.
func (c *Compiler) CompileInteractive(statements []ast.Stmt) (list *bytecode.ByteCodeList, err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case CompileError:
				err = v
			case DeveloperError:
				err = v
			default:
				panic(r)
			}
		}
	}()
	return c.compileCodeBody(statements, scopeGlobal, false), nil
}

func lastLine(list *bytecode.ByteCodeList) int {
	if list.Length() == 0 {
		return 0
	}
	return list.Code[list.Length()-1].Line
}

func endsWithTerminal(statements []ast.Stmt) bool {
	if len(statements) == 0 {
		return false
	}
	_, ok := statements[len(statements)-1].(ast.ReturnStmt)
	return ok
}

// bodyScope tells compileCodeBody what kind of body it is lowering: it
// decides how `return` lowers (the global scope exits the program) and is
// carried through nested blocks so a return inside a top-level if still
// exits.
type bodyScope int

const (
	scopeGlobal bodyScope = iota
	scopeFunction
	scopeClass
)

// compileCodeBody lowers a statement sequence. Emission stops at the first
// terminal statement (return, break, continue); when deref is set and the
// block runs to its end normally, a DEREF_VAR is emitted for every name the
// block declared, in declaration order. Body tops skip the dereference
// epilogue: global bindings live until EXIT_PROGRAM, function bindings die
// with their frame, and class bindings are harvested by
// CREATE_OBJECT_RETURN.
func (c *Compiler) compileCodeBody(statements []ast.Stmt, scope bodyScope, deref bool) *bytecode.ByteCodeList {
	list := bytecode.NewByteCodeList()
	var declared []string

	for _, stmt := range statements {
		switch node := stmt.(type) {
		case ast.ReturnStmt:
			list.Concat(c.compileReturn(node, scope))
			return list
		case ast.BreakStmt:
			list.Add(&bytecode.Instruction{Op: bytecode.OFFSET_JUMP, Offset: breakSentinel, Line: node.Line})
			return list
		case ast.ContinueStmt:
			list.Add(&bytecode.Instruction{Op: bytecode.OFFSET_JUMP, Offset: continueSentinel, Line: node.Line})
			return list
		case ast.VarStmt:
			list.Concat(c.compileVarDeclaration(node))
			declared = append(declared, node.Name.Lexeme)
		case ast.FuncDecl:
			list.Concat(c.compileFuncDeclaration(node))
			declared = append(declared, node.Name.Lexeme)
		case ast.ClassDecl:
			list.Concat(c.compileClassDeclaration(node))
			declared = append(declared, node.Name.Lexeme)
		case ast.ExceptionDecl:
			list.Add(&bytecode.Instruction{
				Op:     bytecode.CREATE_EXCEPTION,
				Name:   node.Name.Lexeme,
				Access: accessOf(node.Access),
				Line:   node.Name.Line,
			})
			// CREATE_EXCEPTION leaves the new exception on the stack after
			// binding it
			list.Add(&bytecode.Instruction{Op: bytecode.POP_STACK, Line: node.Name.Line})
			declared = append(declared, node.Name.Lexeme)
		case ast.ExpressionStmt:
			list.Concat(c.compileExpressionStmt(node))
		case ast.BlockStmt:
			list.Concat(c.compileCodeBody(node.Statements, scope, true))
		case ast.IfStmt:
			list.Concat(c.compileIf(node, scope))
		case ast.WhileStmt:
			list.Concat(c.compileWhile(node, scope))
		case ast.ForStmt:
			list.Concat(c.compileFor(node, scope))
		case ast.TryStmt:
			list.Concat(c.compileTryCatch(node, scope))
		case ast.RaiseStmt:
			list.Concat(c.compileExpression(node.Value))
			list.Add(&bytecode.Instruction{Op: bytecode.RAISE_EXCEPTION, Line: node.Line})
		default:
			panic(DeveloperError{Message: fmt.Sprintf("unknown statement node %T", stmt)})
		}
	}

	if deref {
		for _, name := range declared {
			list.Add(&bytecode.Instruction{Op: bytecode.DEREF_VAR, Name: name, Line: lastLine(list)})
		}
	}
	return list
}

func (c *Compiler) compileReturn(node ast.ReturnStmt, scope bodyScope) *bytecode.ByteCodeList {
	list := bytecode.NewByteCodeList()
	if scope == scopeGlobal {
		// a top-level return becomes the program's exit code
		if node.Value != nil {
			list.Concat(c.compileExpression(node.Value))
		} else {
			list.Add(&bytecode.Instruction{Op: bytecode.LOAD_CONST, Constant: float64(0), Line: node.Line})
		}
		list.Add(&bytecode.Instruction{Op: bytecode.EXIT_PROGRAM, Line: node.Line})
		return list
	}
	if node.Value == nil {
		list.Add(&bytecode.Instruction{Op: bytecode.FUNCTION_RETURN_UNDEFINED, Line: node.Line})
		return list
	}
	list.Concat(c.compileExpression(node.Value))
	list.Add(&bytecode.Instruction{Op: bytecode.FUNCTION_RETURN, Line: node.Line})
	return list
}

func (c *Compiler) compileVarDeclaration(node ast.VarStmt) *bytecode.ByteCodeList {
	list := c.compileExpression(node.Initializer)
	list.Add(&bytecode.Instruction{
		Op:     bytecode.CREATE_VAR,
		Name:   node.Name.Lexeme,
		Access: accessOf(node.Access),
		Line:   node.Name.Line,
	})
	return list
}

// compileExpressionStmt lowers an expression used as a statement. An
// assignment consumes its own operands; any other expression leaves its
// value on the stack and must be popped to keep the stack balanced.
func (c *Compiler) compileExpressionStmt(node ast.ExpressionStmt) *bytecode.ByteCodeList {
	list := c.compileExpression(node.Expression)
	if _, isAssign := node.Expression.(ast.Assign); !isAssign {
		list.Add(&bytecode.Instruction{Op: bytecode.POP_STACK, Line: lastLine(list)})
	}
	return list
}

// compileExpression lowers an expression post-order: operands first, then
// the operator. Constant subtrees are folded before emission.
func (c *Compiler) compileExpression(expr ast.Expression) *bytecode.ByteCodeList {
	expr = Simplify(expr)
	list := bytecode.NewByteCodeList()

	switch node := expr.(type) {
	case ast.Literal:
		list.Add(&bytecode.Instruction{Op: bytecode.LOAD_CONST, Constant: node.Value, Line: node.Line})
	case ast.Variable:
		list.Add(&bytecode.Instruction{Op: bytecode.LOAD_VAR, Name: node.Name.Lexeme, Line: node.Name.Line})
	case ast.Grouping:
		list.Concat(c.compileExpression(node.Expression))
	case ast.Binary:
		list.Concat(c.compileExpression(node.Left))
		list.Concat(c.compileExpression(node.Right))
		list.Add(&bytecode.Instruction{Op: binaryOpcode(node.Operator.TokenType), Line: node.Operator.Line})
	case ast.Logical:
		// logical operators lower to primitive instructions, not to
		// short-circuit jumps
		list.Concat(c.compileExpression(node.Left))
		list.Concat(c.compileExpression(node.Right))
		op := bytecode.LOGICAL_AND_VARS_OP
		if node.Operator.TokenType == token.OR {
			op = bytecode.LOGICAL_OR_VARS_OP
		}
		list.Add(&bytecode.Instruction{Op: op, Line: node.Operator.Line})
	case ast.Unary:
		switch node.Operator.TokenType {
		case token.BANG:
			list.Concat(c.compileExpression(node.Right))
			list.Add(&bytecode.Instruction{Op: bytecode.LOGICAL_NOT_VARS_OP, Line: node.Operator.Line})
		case token.SUB:
			// -x lowers as 0 - x
			list.Add(&bytecode.Instruction{Op: bytecode.LOAD_CONST, Constant: float64(0), Line: node.Operator.Line})
			list.Concat(c.compileExpression(node.Right))
			list.Add(&bytecode.Instruction{Op: bytecode.SUB_VARS_OP, Line: node.Operator.Line})
		default:
			panic(DeveloperError{Message: fmt.Sprintf("unknown unary operator %s", node.Operator.Lexeme)})
		}
	case ast.Assign:
		list.Concat(c.compileExpression(node.Target))
		list.Concat(c.compileExpression(node.Value))
		list.Add(&bytecode.Instruction{Op: bytecode.MUTATE_VAR, Line: node.Line})
	case ast.Call:
		list.Concat(c.compileExpression(node.Callee))
		for _, arg := range node.Args {
			list.Concat(c.compileExpression(arg))
		}
		list.Add(&bytecode.Instruction{Op: bytecode.FUNCTION_CALL, Count: len(node.Args), Line: node.Line})
	case ast.Index:
		list.Concat(c.compileExpression(node.Target))
		list.Concat(c.compileExpression(node.Index))
		list.Add(&bytecode.Instruction{Op: bytecode.LOAD_INDEX, Line: node.Line})
	case ast.Attribute:
		list.Concat(c.compileExpression(node.Target))
		list.Add(&bytecode.Instruction{Op: bytecode.LOAD_ATTRIBUTE, Name: node.Name.Lexeme, Line: node.Name.Line})
	case ast.ListLiteral:
		for _, element := range node.Elements {
			list.Concat(c.compileExpression(element))
		}
		list.Add(&bytecode.Instruction{Op: bytecode.CREATE_LIST, Count: len(node.Elements), Line: node.Line})
	case ast.SetLiteral:
		for _, element := range node.Elements {
			list.Concat(c.compileExpression(element))
		}
		list.Add(&bytecode.Instruction{Op: bytecode.CREATE_SET, Count: len(node.Elements), Line: node.Line})
	case ast.MapLiteral:
		for i := range node.Keys {
			list.Concat(c.compileExpression(node.Keys[i]))
			list.Concat(c.compileExpression(node.Values[i]))
		}
		list.Add(&bytecode.Instruction{Op: bytecode.CREATE_MAP, Count: 2 * len(node.Keys), Line: node.Line})
	case ast.FuncLiteral:
		list.Concat(c.compileFunction("", paramNames(node.Params), node.Body, false, node.Line))
	default:
		panic(DeveloperError{Message: fmt.Sprintf("unknown expression node %T", expr)})
	}
	return list
}

func binaryOpcode(tokenType token.TokenType) bytecode.Opcode {
	switch tokenType {
	case token.ADD:
		return bytecode.ADD_VARS_OP
	case token.SUB:
		return bytecode.SUB_VARS_OP
	case token.MULT:
		return bytecode.MULT_VARS_OP
	case token.DIV:
		return bytecode.DIV_VARS_OP
	case token.MOD:
		return bytecode.MOD_VARS_OP
	case token.EXP:
		return bytecode.EXP_VARS_OP
	case token.BIT_AND:
		return bytecode.BITWISE_VARS_AND_OP
	case token.BIT_OR:
		return bytecode.BITWISE_VARS_OR_OP
	case token.BIT_XOR:
		return bytecode.BITWISE_XOR_VARS_OP
	case token.SHIFT_LEFT:
		return bytecode.SHIFT_LEFT_VARS_OP
	case token.SHIFT_RIGHT:
		return bytecode.SHIFT_RIGHT_VARS_OP
	case token.LARGER:
		return bytecode.GREATER_THAN_VARS_OP
	case token.LARGER_EQUAL:
		return bytecode.GREATER_EQUAL_VARS_OP
	case token.LESS:
		return bytecode.LESSER_THAN_VARS_OP
	case token.LESS_EQUAL:
		return bytecode.LESSER_EQUAL_VARS_OP
	case token.EQUAL_EQUAL:
		return bytecode.EQUAL_TO_VARS_OP
	default:
		panic(DeveloperError{Message: fmt.Sprintf("unknown binary operator %q", tokenType)})
	}
}

func paramNames(params []token.Token) []string {
	names := make([]string, len(params))
	for i, param := range params {
		names[i] = param.Lexeme
	}
	return names
}

func accessOf(access ast.AccessModifier) bytecode.Access {
	switch access {
	case ast.PrivateAccess:
		return bytecode.Private
	case ast.GlobalAccess:
		return bytecode.Global
	default:
		return bytecode.Public
	}
}

// compileFunction lowers a function (or class constructor) body into a
// fresh ByteCodeList and emits the CREATE_FUNCTION carrying its record. The
// body's free variables become the record's closure names; their values are
// resolved at bind time, not here.
func (c *Compiler) compileFunction(name string, params []string, body ast.BlockStmt, isClass bool, line int) *bytecode.ByteCodeList {
	closureNames := CollectFreeVars(params, body)

	scope := scopeFunction
	if isClass {
		scope = scopeClass
	}
	compiled := c.compileCodeBody(body.Statements, scope, false)
	if isClass {
		compiled.Add(&bytecode.Instruction{Op: bytecode.CREATE_OBJECT_RETURN, Line: line})
	} else if !endsWithTerminal(body.Statements) {
		compiled.Add(&bytecode.Instruction{Op: bytecode.FUNCTION_RETURN_UNDEFINED, Line: line})
	}

	record := &bytecode.FunctionRecord{
		Name:         name,
		FilePath:     c.filePath,
		Args:         params,
		ClosureNames: closureNames,
		Body:         compiled,
		IsClass:      isClass,
	}

	list := bytecode.NewByteCodeList()
	list.Add(&bytecode.Instruction{Op: bytecode.CREATE_FUNCTION, Function: record, Line: line})
	return list
}

func (c *Compiler) compileFuncDeclaration(node ast.FuncDecl) *bytecode.ByteCodeList {
	list := c.compileFunction(node.Name.Lexeme, paramNames(node.Params), node.Body, false, node.Name.Line)
	list.Add(&bytecode.Instruction{
		Op:     bytecode.CREATE_VAR,
		Name:   node.Name.Lexeme,
		Access: accessOf(node.Access),
		Line:   node.Name.Line,
	})
	return list
}

// compileClassDeclaration lowers a class body as a constructor function
// whose final instruction turns the frame's lookup table into the new
// object's attribute map.
func (c *Compiler) compileClassDeclaration(node ast.ClassDecl) *bytecode.ByteCodeList {
	list := c.compileFunction(node.Name.Lexeme, paramNames(node.Params), node.Body, true, node.Name.Line)
	list.Add(&bytecode.Instruction{
		Op:     bytecode.CREATE_VAR,
		Name:   node.Name.Lexeme,
		Access: accessOf(node.Access),
		Line:   node.Name.Line,
	})
	return list
}

// compileIf lowers an if / else-if / else chain. Each clause's conditional
// jump skips exactly its body plus the inter-clause jump when a later
// clause exists; each non-terminal body ends with a jump over all remaining
// clauses.
func (c *Compiler) compileIf(node ast.IfStmt, scope bodyScope) *bytecode.ByteCodeList {
	list := c.compileExpression(node.Condition)
	body := c.compileCodeBody(node.Then.Statements, scope, true)

	var elseList *bytecode.ByteCodeList
	switch tail := node.Else.(type) {
	case nil:
	case ast.IfStmt:
		elseList = c.compileIf(tail, scope)
	case ast.BlockStmt:
		elseList = c.compileCodeBody(tail.Statements, scope, true)
	default:
		panic(DeveloperError{Message: fmt.Sprintf("unknown else node %T", node.Else)})
	}

	if elseList == nil || elseList.Length() == 0 {
		list.Add(&bytecode.Instruction{Op: bytecode.OFFSET_JUMP_IF_FALSE_POP, Offset: body.Length() + 1, Line: node.Line})
		list.Concat(body)
		return list
	}

	list.Add(&bytecode.Instruction{Op: bytecode.OFFSET_JUMP_IF_FALSE_POP, Offset: body.Length() + 2, Line: node.Line})
	list.Concat(body)
	list.Add(&bytecode.Instruction{Op: bytecode.OFFSET_JUMP, Offset: elseList.Length() + 1, Line: node.Line})
	list.Concat(elseList)
	return list
}

// compileWhile lowers a while loop: condition, a conditional jump past the
// body, the body, and an unconditional jump back to the condition. Break
// and continue sentinels inside the body are resolved once the loop's
// length is known.
func (c *Compiler) compileWhile(node ast.WhileStmt, scope bodyScope) *bytecode.ByteCodeList {
	list := c.compileExpression(node.Condition)
	body := c.compileCodeBody(node.Body.Statements, scope, true)

	list.Add(&bytecode.Instruction{Op: bytecode.OFFSET_JUMP_IF_FALSE_POP, Offset: body.Length() + 2, Line: node.Line})
	list.Concat(body)
	resolveLoopJumps(list)
	list.Add(&bytecode.Instruction{Op: bytecode.OFFSET_JUMP, Offset: -list.Length(), Line: node.Line})
	return list
}

// compileFor lowers a for loop as init; while(cond){body; step}. The init's
// declarations are not scoped to the header: they persist across the loop
// and are dereferenced after it.
func (c *Compiler) compileFor(node ast.ForStmt, scope bodyScope) *bytecode.ByteCodeList {
	list := bytecode.NewByteCodeList()

	var initDeclared []string
	if node.Init != nil {
		switch init := node.Init.(type) {
		case ast.VarStmt:
			list.Concat(c.compileVarDeclaration(init))
			initDeclared = append(initDeclared, init.Name.Lexeme)
		case ast.ExpressionStmt:
			list.Concat(c.compileExpressionStmt(init))
		default:
			panic(DeveloperError{Message: fmt.Sprintf("unknown for-init node %T", node.Init)})
		}
	}

	loop := bytecode.NewByteCodeList()
	if node.Condition != nil {
		loop.Concat(c.compileExpression(node.Condition))
	} else {
		loop.Add(&bytecode.Instruction{Op: bytecode.LOAD_CONST, Constant: float64(1), Line: node.Line})
	}

	body := c.compileCodeBody(node.Body.Statements, scope, true)
	if node.Step != nil {
		switch step := node.Step.(type) {
		case ast.ExpressionStmt:
			body.Concat(c.compileExpressionStmt(step))
		default:
			panic(DeveloperError{Message: fmt.Sprintf("unknown for-step node %T", node.Step)})
		}
	}

	loop.Add(&bytecode.Instruction{Op: bytecode.OFFSET_JUMP_IF_FALSE_POP, Offset: body.Length() + 2, Line: node.Line})
	loop.Concat(body)
	resolveLoopJumps(loop)
	loop.Add(&bytecode.Instruction{Op: bytecode.OFFSET_JUMP, Offset: -loop.Length(), Line: node.Line})

	list.Concat(loop)
	for _, name := range initDeclared {
		list.Add(&bytecode.Instruction{Op: bytecode.DEREF_VAR, Name: name, Line: node.Line})
	}
	return list
}

// resolveLoopJumps rewrites break/continue sentinels over a compiled loop
// (condition + conditional jump + body, without the trailing back jump):
// break jumps one past the loop's back jump, continue jumps to the loop
// top. Sentinels of nested loops were already resolved when those loops
// were compiled, so any sentinel still present belongs to this loop.
func resolveLoopJumps(loop *bytecode.ByteCodeList) {
	length := loop.Length()
	for i, ins := range loop.Code {
		if ins.Op != bytecode.OFFSET_JUMP {
			continue
		}
		if ins.Offset == breakSentinel {
			ins.Offset = length - i + 1
		} else if ins.Offset == continueSentinel {
			ins.Offset = -i
		}
	}
}

// compileTryCatch lowers a try statement: the handler push points at the
// catch chain, the protected body is followed by the handler pop and a jump
// over the chain, and each selector clause either jumps to the next clause
// or (for the last clause) re-raises when the selector does not match the
// active exception.
func (c *Compiler) compileTryCatch(node ast.TryStmt, scope bodyScope) *bytecode.ByteCodeList {
	body := c.compileCodeBody(node.Body.Statements, scope, true)
	chain := c.compileCatchChain(node.Catches, scope)

	list := bytecode.NewByteCodeList()
	// the catch chain starts after the body, the handler pop and the jump
	// over the chain
	list.Add(&bytecode.Instruction{Op: bytecode.PUSH_EXCEPTION_HANDLER, Offset: body.Length() + 3, Line: node.Line})
	list.Concat(body)
	list.Add(&bytecode.Instruction{Op: bytecode.POP_EXCEPTION_HANDLER, Line: node.Line})
	list.Add(&bytecode.Instruction{Op: bytecode.OFFSET_JUMP, Offset: chain.Length() + 1, Line: node.Line})
	list.Concat(chain)
	return list
}

func (c *Compiler) compileCatchChain(catches []ast.CatchClause, scope bodyScope) *bytecode.ByteCodeList {
	if len(catches) == 0 {
		return bytecode.NewByteCodeList()
	}

	clause := catches[0]
	body := c.compileCodeBody(clause.Body.Statements, scope, true)

	// a bare catch is a catch-all; anything after it is unreachable
	if clause.Selector == nil {
		list := bytecode.NewByteCodeList()
		list.Add(&bytecode.Instruction{Op: bytecode.RESOLVE_RAISED_EXCEPTION, Line: clause.Line})
		list.Concat(body)
		return list
	}

	rest := c.compileCatchChain(catches[1:], scope)
	list := c.compileExpression(clause.Selector)

	if rest.Length() == 0 {
		// last clause in the chain: an unmatched selector re-raises and
		// resumes unwinding
		list.Add(&bytecode.Instruction{Op: bytecode.RAISE_EXCEPTION_IF_COMPARE_EXCEPTION_FALSE, Line: clause.Line})
		list.Add(&bytecode.Instruction{Op: bytecode.RESOLVE_RAISED_EXCEPTION, Line: clause.Line})
		list.Concat(body)
		return list
	}

	// a matched clause falls through the resolve into its body, then jumps
	// over the remaining clauses
	body.Add(&bytecode.Instruction{Op: bytecode.OFFSET_JUMP, Offset: rest.Length() + 1, Line: clause.Line})
	list.Add(&bytecode.Instruction{Op: bytecode.OFFSET_JUMP_IF_COMPARE_EXCEPTION_FALSE, Offset: body.Length() + 2, Line: clause.Line})
	list.Add(&bytecode.Instruction{Op: bytecode.RESOLVE_RAISED_EXCEPTION, Line: clause.Line})
	list.Concat(body)
	list.Concat(rest)
	return list
}
