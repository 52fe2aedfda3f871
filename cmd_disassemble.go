package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/google/subcommands"
	"github.com/olekukonko/tablewriter"

	"sable/bytecode"
)

// disassembleCmd compiles a source file and prints the human-readable
// bytecode listing: the top-level program first, then every embedded
// function body.
type disassembleCmd struct {
	plain bool
}

func (*disassembleCmd) Name() string     { return "disassemble" }
func (*disassembleCmd) Synopsis() string { return "Compile a source file and print its bytecode" }
func (*disassembleCmd) Usage() string {
	return `sable disassemble <file.sbl>:
  Print the compiled bytecode listing without executing it.
`
}

func (cmd *disassembleCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.plain, "plain", false, "Print the listing without table borders")
}

func (cmd *disassembleCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	for _, listing := range bytecode.DisassembleAll(program) {
		if cmd.plain {
			fmt.Print(listing.String())
			fmt.Println()
			continue
		}
		fmt.Printf("%s\n", listing.Label)
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Index", "Line", "Opcode", "Immediate"})
		for _, row := range listing.Rows {
			table.Append([]string{
				strconv.Itoa(row.Index),
				strconv.Itoa(row.Line),
				row.Op,
				row.Immediate,
			})
		}
		table.Render()
		fmt.Println()
	}
	return subcommands.ExitSuccess
}
