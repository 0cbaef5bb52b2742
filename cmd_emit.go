package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"monke/compiler"
	"monke/lexer"
	"monke/parser"
)

// emitCmd compiles a source file and prints its bytecode disassembly,
// one instruction per line, instead of running it.
type emitCmd struct{}

func (*emitCmd) Name() string     { return "emit" }
func (*emitCmd) Synopsis() string { return "print the bytecode disassembly of a source file" }
func (*emitCmd) Usage() string {
	return `emit <file>:
  Lex, parse, and compile a Monke source file, then print its bytecode
  disassembly instead of running it.
`
}
func (*emitCmd) SetFlags(f *flag.FlagSet) {}

func (*emitCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "emit: expected exactly one file argument")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "emit: %v\n", err)
		return subcommands.ExitFailure
	}
	source := string(data)

	l := lexer.New(source)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		reportTokenError(os.Stderr, "Parsing", source, p.ErrorToken(), errs[0])
		return subcommands.ExitFailure
	}

	comp := compiler.New()
	if err := comp.Compile(program); err != nil {
		if cerr, ok := err.(*compiler.CompileError); ok {
			reportCompileError(os.Stderr, source, cerr)
		} else {
			fmt.Fprintf(os.Stderr, "Woops! Compilation failed!\n%s\n", err.Error())
		}
		return subcommands.ExitFailure
	}

	fmt.Print(comp.Bytecode().Instructions.String())
	return subcommands.ExitSuccess
}
