package main

import (
	"fmt"
	"os"

	"sable/ast"
	"sable/bytecode"
	"sable/compiler"
	"sable/lexer"
	"sable/parser"
	"sable/sema"
)

// frontend runs lex, parse and semantic analysis over a source file,
// printing every error with its caret rendering. The returned bool reports
// whether the source passed all three stages.
func frontend(file string, source string) ([]ast.Stmt, bool) {
	lex := lexer.New(source)
	tokens, err := lex.Scan()
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Lexical error: %v\n", err)
		return nil, false
	}

	p := parser.Make(file, tokens)
	statements, parseErrs := p.Parse()
	if len(parseErrs) > 0 {
		for _, parseErr := range parseErrs {
			if syntaxErr, ok := parseErr.(parser.SyntaxError); ok {
				fmt.Fprint(os.Stderr, parser.Render(source, file, syntaxErr.Line, syntaxErr.Column, "Syntax error", syntaxErr.Message, syntaxErr.Hint))
				continue
			}
			fmt.Fprintln(os.Stderr, parseErr)
		}
		return nil, false
	}

	analyzer := sema.NewAnalyzer(file)
	semaErrs := analyzer.Check(statements)
	if len(semaErrs) > 0 {
		for _, semaErr := range semaErrs {
			if semanticErr, ok := semaErr.(sema.SemanticError); ok {
				fmt.Fprint(os.Stderr, parser.Render(source, file, semanticErr.Line, semanticErr.Column, "Semantic error", semanticErr.Message, semanticErr.Hint))
				continue
			}
			fmt.Fprintln(os.Stderr, semaErr)
		}
		return nil, false
	}

	return statements, true
}

// buildProgram runs the full front half of the pipeline and lowers the
// result to bytecode.
func buildProgram(file string, source string) (*bytecode.ByteCodeList, bool) {
	statements, ok := frontend(file, source)
	if !ok {
		return nil, false
	}
	program, err := compiler.New(file).Compile(statements)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, false
	}
	return program, true
}
