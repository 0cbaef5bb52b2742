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
	"monke/vm"
)

// runCmd executes a Monke source file to completion and exits with a
// status reflecting pipeline success or failure, per the batch-mode exit
// code contract (0 success, 1 pipeline failure, 2 CLI misuse).
type runCmd struct{}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "execute a Monke source file" }
func (*runCmd) Usage() string {
	return `run <file>:
  Lex, parse, compile, and execute a Monke source file.
`
}
func (*runCmd) SetFlags(f *flag.FlagSet) {}

func (*runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "run: expected exactly one file argument")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		return subcommands.ExitFailure
	}
	source := string(data)

	return runSource(os.Stdout, os.Stderr, source)
}

// runSource lexes, parses, compiles, and executes source on a fresh
// compiler and VM, reporting any pipeline-stage failure to stderr.
func runSource(stdout, stderr *os.File, source string) subcommands.ExitStatus {
	l := lexer.New(source)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		reportTokenError(stderr, "Parsing", source, p.ErrorToken(), errs[0])
		return subcommands.ExitFailure
	}

	comp := compiler.New()
	if err := comp.Compile(program); err != nil {
		if cerr, ok := err.(*compiler.CompileError); ok {
			reportCompileError(stderr, source, cerr)
		} else {
			fmt.Fprintf(stderr, "Woops! Compilation failed!\n%s\n", err.Error())
		}
		return subcommands.ExitFailure
	}

	machine := vm.New(comp.Bytecode())
	if err := machine.Run(); err != nil {
		if rerr, ok := err.(*vm.RuntimeError); ok {
			reportRuntimeError(stderr, source, rerr)
		} else {
			fmt.Fprintf(stderr, "Woops! Runtime failed!\n%s\n", err.Error())
		}
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
