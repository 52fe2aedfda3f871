package parser

import (
	"encoding/json"
	"fmt"
	"os"

	"sable/ast"
)

// astPrinter implements the visitor interfaces and builds a JSON-friendly
// representation of the AST using maps and slices. Each Visit method
// returns an object that can be marshaled to JSON.
type astPrinter struct{}

func (p astPrinter) VisitExpressionStmt(exprStmt ast.ExpressionStmt) any {
	return map[string]any{
		"type":       "ExpressionStmt",
		"expression": exprStmt.Expression.Accept(p),
	}
}

func (p astPrinter) VisitVarStmt(varStmt ast.VarStmt) any {
	return map[string]any{
		"type":        "VarStmt",
		"name":        varStmt.Name.Lexeme,
		"access":      varStmt.Access.String(),
		"initializer": nilOrAccept(varStmt.Initializer, p),
	}
}

func (p astPrinter) VisitBlockStmt(blockStmt ast.BlockStmt) any {
	stmts := make([]any, 0, len(blockStmt.Statements))
	for _, stmt := range blockStmt.Statements {
		stmts = append(stmts, stmt.Accept(p))
	}
	return map[string]any{
		"type":       "BlockStmt",
		"statements": stmts,
	}
}

func (p astPrinter) VisitIfStmt(stmt ast.IfStmt) any {
	var elseVal any
	if stmt.Else != nil {
		elseVal = stmt.Else.Accept(p)
	}
	return map[string]any{
		"type":      "IfStmt",
		"condition": stmt.Condition.Accept(p),
		"then":      stmt.Then.Accept(p),
		"else":      elseVal,
	}
}

func (p astPrinter) VisitWhileStmt(stmt ast.WhileStmt) any {
	return map[string]any{
		"type":      "WhileStmt",
		"condition": stmt.Condition.Accept(p),
		"body":      stmt.Body.Accept(p),
	}
}

func (p astPrinter) VisitForStmt(stmt ast.ForStmt) any {
	return map[string]any{
		"type":      "ForStmt",
		"init":      nilOrAcceptStmt(stmt.Init, p),
		"condition": nilOrAccept(stmt.Condition, p),
		"step":      nilOrAcceptStmt(stmt.Step, p),
		"body":      stmt.Body.Accept(p),
	}
}

func (p astPrinter) VisitFuncDecl(stmt ast.FuncDecl) any {
	return map[string]any{
		"type":   "FuncDecl",
		"name":   stmt.Name.Lexeme,
		"access": stmt.Access.String(),
		"params": paramLexemes(stmt),
		"body":   stmt.Body.Accept(p),
	}
}

func (p astPrinter) VisitClassDecl(stmt ast.ClassDecl) any {
	params := make([]string, 0, len(stmt.Params))
	for _, param := range stmt.Params {
		params = append(params, param.Lexeme)
	}
	return map[string]any{
		"type":   "ClassDecl",
		"name":   stmt.Name.Lexeme,
		"access": stmt.Access.String(),
		"params": params,
		"body":   stmt.Body.Accept(p),
	}
}

func (p astPrinter) VisitReturnStmt(stmt ast.ReturnStmt) any {
	return map[string]any{
		"type":  "ReturnStmt",
		"value": nilOrAccept(stmt.Value, p),
	}
}

func (p astPrinter) VisitBreakStmt(stmt ast.BreakStmt) any {
	return map[string]any{"type": "BreakStmt"}
}

func (p astPrinter) VisitContinueStmt(stmt ast.ContinueStmt) any {
	return map[string]any{"type": "ContinueStmt"}
}

func (p astPrinter) VisitTryStmt(stmt ast.TryStmt) any {
	catches := make([]any, 0, len(stmt.Catches))
	for _, clause := range stmt.Catches {
		catches = append(catches, map[string]any{
			"selector": nilOrAccept(clause.Selector, p),
			"body":     clause.Body.Accept(p),
		})
	}
	return map[string]any{
		"type":    "TryStmt",
		"body":    stmt.Body.Accept(p),
		"catches": catches,
	}
}

func (p astPrinter) VisitRaiseStmt(stmt ast.RaiseStmt) any {
	return map[string]any{
		"type":  "RaiseStmt",
		"value": stmt.Value.Accept(p),
	}
}

func (p astPrinter) VisitExceptionDecl(stmt ast.ExceptionDecl) any {
	return map[string]any{
		"type":   "ExceptionDecl",
		"name":   stmt.Name.Lexeme,
		"access": stmt.Access.String(),
	}
}

func (p astPrinter) VisitLogical(expr ast.Logical) any {
	return map[string]any{
		"type":     "Logical",
		"operator": expr.Operator.Lexeme,
		"left":     expr.Left.Accept(p),
		"right":    expr.Right.Accept(p),
	}
}

func (p astPrinter) VisitAssignExpression(assign ast.Assign) any {
	return map[string]any{
		"type":   "Assign",
		"target": assign.Target.Accept(p),
		"value":  assign.Value.Accept(p),
	}
}

func (p astPrinter) VisitVariableExpression(variable ast.Variable) any {
	return map[string]any{
		"type": "Variable",
		"name": variable.Name.Lexeme,
	}
}

func (p astPrinter) VisitBinary(b ast.Binary) any {
	return map[string]any{
		"type":     "Binary",
		"operator": b.Operator.Lexeme,
		"left":     b.Left.Accept(p),
		"right":    b.Right.Accept(p),
	}
}

func (p astPrinter) VisitUnary(u ast.Unary) any {
	return map[string]any{
		"type":     "Unary",
		"operator": u.Operator.Lexeme,
		"right":    u.Right.Accept(p),
	}
}

func (p astPrinter) VisitLiteral(l ast.Literal) any {
	// literals are terminal values and can be used directly in JSON
	return l.Value
}

func (p astPrinter) VisitGrouping(g ast.Grouping) any {
	return map[string]any{
		"type":       "Grouping",
		"expression": g.Expression.Accept(p),
	}
}

func (p astPrinter) VisitCallExpression(call ast.Call) any {
	args := make([]any, 0, len(call.Args))
	for _, arg := range call.Args {
		args = append(args, arg.Accept(p))
	}
	return map[string]any{
		"type":   "Call",
		"callee": call.Callee.Accept(p),
		"args":   args,
	}
}

func (p astPrinter) VisitIndexExpression(index ast.Index) any {
	return map[string]any{
		"type":   "Index",
		"target": index.Target.Accept(p),
		"index":  index.Index.Accept(p),
	}
}

func (p astPrinter) VisitAttributeExpression(attribute ast.Attribute) any {
	return map[string]any{
		"type":   "Attribute",
		"target": attribute.Target.Accept(p),
		"name":   attribute.Name.Lexeme,
	}
}

func (p astPrinter) VisitFuncLiteral(fn ast.FuncLiteral) any {
	params := make([]string, 0, len(fn.Params))
	for _, param := range fn.Params {
		params = append(params, param.Lexeme)
	}
	return map[string]any{
		"type":   "FuncLiteral",
		"params": params,
		"body":   fn.Body.Accept(p),
	}
}

func (p astPrinter) VisitListLiteral(list ast.ListLiteral) any {
	elements := make([]any, 0, len(list.Elements))
	for _, element := range list.Elements {
		elements = append(elements, element.Accept(p))
	}
	return map[string]any{
		"type":     "ListLiteral",
		"elements": elements,
	}
}

func (p astPrinter) VisitMapLiteral(m ast.MapLiteral) any {
	entries := make([]any, 0, len(m.Keys))
	for i := range m.Keys {
		entries = append(entries, map[string]any{
			"key":   m.Keys[i].Accept(p),
			"value": m.Values[i].Accept(p),
		})
	}
	return map[string]any{
		"type":    "MapLiteral",
		"entries": entries,
	}
}

func (p astPrinter) VisitSetLiteral(s ast.SetLiteral) any {
	elements := make([]any, 0, len(s.Elements))
	for _, element := range s.Elements {
		elements = append(elements, element.Accept(p))
	}
	return map[string]any{
		"type":     "SetLiteral",
		"elements": elements,
	}
}

func paramLexemes(stmt ast.FuncDecl) []string {
	params := make([]string, 0, len(stmt.Params))
	for _, param := range stmt.Params {
		params = append(params, param.Lexeme)
	}
	return params
}

// nilOrAccept returns nil if expr is nil, otherwise it continues
// processing the expression and returns the result.
func nilOrAccept(expr ast.Expression, p ast.ExpressionVisitor) any {
	if expr == nil {
		return nil
	}
	return expr.Accept(p)
}

func nilOrAcceptStmt(stmt ast.Stmt, p ast.StmtVisitor) any {
	if stmt == nil {
		return nil
	}
	return stmt.Accept(p)
}

// PrintASTJSON converts a slice of statements into a prettified JSON string.
func PrintASTJSON(statements []ast.Stmt) (string, error) {
	printer := astPrinter{}
	out := make([]any, 0, len(statements))
	for _, s := range statements {
		out = append(out, s.Accept(printer))
	}
	bytes, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// WriteASTJSONToFile writes the prettified AST JSON to the given file path.
func WriteASTJSONToFile(statements []ast.Stmt, path string) error {
	s, err := PrintASTJSON(statements)
	if err != nil {
		return err
	}
	fDescriptor, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating AST file: %s", err.Error())
	}
	defer fDescriptor.Close()

	_, err = fDescriptor.WriteString(s)
	if err != nil {
		return fmt.Errorf("error writing AST to file: %s", err.Error())
	}
	return nil
}
