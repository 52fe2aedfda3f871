package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"sable/parser"
)

// astCmd dumps a source file's parsed AST as prettified JSON.
type astCmd struct {
	out string
}

func (*astCmd) Name() string     { return "ast" }
func (*astCmd) Synopsis() string { return "Print a source file's AST as JSON" }
func (*astCmd) Usage() string {
	return `sable ast <file.sbl>:
  Tokenize, parse and check a source file, then dump its AST as JSON.
`
}

func (cmd *astCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.out, "o", "", "Write the JSON to a file instead of stdout")
}

func (cmd *astCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}
	filename := args[0]

	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}

	statements, ok := frontend(filename, string(data))
	if !ok {
		return subcommands.ExitFailure
	}

	if cmd.out != "" {
		if writeErr := parser.WriteASTJSONToFile(statements, cmd.out); writeErr != nil {
			fmt.Fprintf(os.Stderr, "💥 %s\n", writeErr.Error())
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	jsonStr, printErr := parser.PrintASTJSON(statements)
	if printErr != nil {
		fmt.Fprintf(os.Stderr, "💥 %s\n", printErr.Error())
		return subcommands.ExitFailure
	}
	fmt.Println(jsonStr)
	return subcommands.ExitSuccess
}
