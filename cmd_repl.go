package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"

	"sable/ast"
	"sable/compiler"
	"sable/lexer"
	"sable/parser"
	"sable/sema"
	"sable/token"
	"sable/vm"
)

const replFile = "<repl>"

// replCmd starts an interactive session over the compiled pipeline. One VM
// and one growing bytecode list persist across inputs, so definitions from
// earlier lines stay bound.
type replCmd struct {
	dumpAST bool
}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start an interactive sable session" }
func (*replCmd) Usage() string {
	return `sable repl:
  Read-compile-execute loop. Type 'exit' to quit.
`
}

func (cmd *replCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.dumpAST, "dumpAST", false, "Print each input's AST as JSON before executing it")
	f.BoolVar(&cmd.dumpAST, "da", false, "Shorthand for dumpAST")
}

func (cmd *replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Println("\nWelcome to the sable programming language!")
	fmt.Println("Type 'exit' to leave the session.")
	fmt.Println("")

	rl, err := readline.New(">>> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 %s\n", err.Error())
		return subcommands.ExitFailure
	}
	defer rl.Close()

	machine := vm.New()
	astCompiler := compiler.New(replFile)
	var session []ast.Stmt
	var buffer strings.Builder

	for {
		if buffer.Len() == 0 {
			rl.SetPrompt(">>> ")
		} else {
			rl.SetPrompt("... ")
		}
		line, readErr := rl.Readline()
		if readErr != nil {
			return subcommands.ExitSuccess
		}
		if strings.TrimSpace(line) == "exit" && buffer.Len() == 0 {
			return subcommands.ExitSuccess
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
		source := buffer.String()

		lex := lexer.New(source)
		tokens, lexErr := lex.Scan()
		if lexErr != nil {
			fmt.Fprintf(os.Stderr, "💥 Lexical error: %v\n", lexErr)
			buffer.Reset()
			continue
		}

		if !isInputReady(tokens) {
			continue
		}

		p := parser.Make(replFile, tokens)
		statements, parseErrs := p.Parse()
		if len(parseErrs) > 0 {
			// errors at the EOF token mean the user has not finished
			// typing; wait for more input instead of reporting them
			if allParseErrorsAtEOF(parseErrs, tokens[len(tokens)-1]) {
				continue
			}
			for _, parseErr := range parseErrs {
				if syntaxErr, ok := parseErr.(parser.SyntaxError); ok {
					fmt.Fprint(os.Stderr, parser.Render(source, replFile, syntaxErr.Line, syntaxErr.Column, "Syntax error", syntaxErr.Message, syntaxErr.Hint))
					continue
				}
				fmt.Fprintln(os.Stderr, parseErr)
			}
			buffer.Reset()
			continue
		}

		if cmd.dumpAST {
			if jsonStr, printErr := parser.PrintASTJSON(statements); printErr == nil {
				fmt.Println(jsonStr)
			}
		}

		// the semantic pass and the compiler both see the whole session so
		// earlier definitions stay resolvable
		combined := append(append([]ast.Stmt{}, session...), statements...)
		analyzer := sema.NewAnalyzer(replFile)
		if semaErrs := analyzer.Check(combined); len(semaErrs) > 0 {
			for _, semaErr := range semaErrs {
				fmt.Fprintln(os.Stderr, semaErr)
			}
			buffer.Reset()
			continue
		}

		program, compileErr := astCompiler.CompileInteractive(combined)
		if compileErr != nil {
			fmt.Fprintln(os.Stderr, compileErr.Error())
			buffer.Reset()
			continue
		}

		code, exited, runErr := machine.Resume(program)
		if runErr != nil {
			fmt.Fprintln(os.Stderr, runErr.Error())
			fmt.Fprintln(os.Stderr, "session state reset")
			machine = vm.New()
			session = nil
			buffer.Reset()
			continue
		}
		if exited {
			os.Exit(code)
		}

		session = combined
		buffer.Reset()
	}
}

// isInputReady checks if the input is ready to be parsed and executed. It
// checks for balanced braces, and whether the last non-EOF token is an
// operator or keyword that expects more input.
//
// For example, if the user types `if (x > 5) {`, the REPL should wait for
// more input until the user finishes the block with a `}`.
func isInputReady(tokens []token.Token) bool {

	braceBalance := 0
	for _, tok := range tokens {
		switch tok.TokenType {
		case token.LCUR:
			braceBalance++
		case token.RCUR:
			braceBalance--
		}
	}

	if braceBalance > 0 {
		return false
	}

	last := lastNonEOF(tokens)
	if last == nil {
		return true
	}

	switch last.TokenType {
	case token.ASSIGN,
		token.ADD,
		token.SUB,
		token.MULT,
		token.DIV,
		token.MOD,
		token.EXP,
		token.BIT_AND,
		token.BIT_OR,
		token.BIT_XOR,
		token.SHIFT_LEFT,
		token.SHIFT_RIGHT,
		token.AND,
		token.OR,
		token.BANG,
		token.EQUAL_EQUAL,
		token.LESS,
		token.LESS_EQUAL,
		token.LARGER,
		token.LARGER_EQUAL,
		token.ARROW,
		token.COMMA,
		token.COLON,
		token.LPA,
		token.LCUR,
		token.IF,
		token.ELSE,
		token.WHILE,
		token.FOR,
		token.FUNC,
		token.CLASS,
		token.TRY,
		token.CATCH,
		token.RAISE,
		token.RETURN,
		token.LET:
		return false
	}

	return true
}

// lastNonEOF returns the last non-EOF token from the list of tokens. If all
// tokens are EOF, it returns nil.
func lastNonEOF(tokens []token.Token) *token.Token {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].TokenType != token.EOF {
			return &tokens[i]
		}
	}
	return nil
}

// allParseErrorsAtEOF checks if all parse errors are syntax errors that
// occur at the position of the EOF token.
func allParseErrorsAtEOF(parseErrs []error, eof token.Token) bool {
	for _, parseErr := range parseErrs {
		syntaxErr, ok := parseErr.(parser.SyntaxError)
		if !ok {
			return false
		}
		if syntaxErr.Line != eof.Line || syntaxErr.Column != eof.Column {
			return false
		}
	}
	return len(parseErrs) > 0
}
