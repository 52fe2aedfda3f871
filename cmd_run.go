package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"sable/vm"
)

// runCmd executes a sable source file.
type runCmd struct{}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "Execute sable code from a source file" }
func (*runCmd) Usage() string {
	return `sable run <file.sbl>:
  Tokenize, parse, check, compile and execute a sable program.
  The process exit code is the value the program exited with.
`
}
func (r *runCmd) SetFlags(f *flag.FlagSet) {}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	program, ok := buildProgram(filename, string(data))
	if !ok {
		return subcommands.ExitFailure
	}

	machine := vm.New()
	code, runErr := machine.Run(program)
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr.Error())
		if _, fatal := runErr.(vm.FatalError); fatal {
			os.Exit(2)
		}
		return subcommands.ExitFailure
	}
	os.Exit(code)
	return subcommands.ExitSuccess
}
