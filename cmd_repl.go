package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"

	"monke/compiler"
	"monke/lexer"
	"monke/object"
	"monke/parser"
	"monke/vm"
)

const (
	replPrompt     = ">> "
	replContPrompt = ".. "
)

// replCmd runs an interactive session: a long-lived compiler symbol
// table and constant pool, and a long-lived VM globals store, so each
// submission builds on everything entered before it.
type replCmd struct{}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "start an interactive Monke session" }
func (*replCmd) Usage() string {
	return `repl:
  Start an interactive read-eval-print loop.
`
}
func (*replCmd) SetFlags(f *flag.FlagSet) {}

func (*replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rl, err := readline.New(replPrompt)
	if err != nil {
		fmt.Println("repl:", err)
		return subcommands.ExitFailure
	}
	defer rl.Close()

	symbolTable := compiler.NewSymbolTable()
	for i, b := range object.Builtins {
		symbolTable.DefineBuiltin(i, b.Name)
	}
	constants := []object.Object{}
	globals := make([]object.Object, 0, 64)

	// buffers retains every submitted source string for the lifetime of
	// the session, because tokens hold byte spans into it rather than
	// copies of their text.
	var buffers []string

	for {
		source, ok := readSubmission(rl)
		if !ok {
			return subcommands.ExitSuccess
		}
		if strings.TrimSpace(source) == "" {
			continue
		}
		buffers = append(buffers, source)

		l := lexer.New(source)
		p := parser.New(l)
		program := p.ParseProgram()
		if errs := p.Errors(); len(errs) > 0 {
			reportTokenError(os.Stdout, "Parsing", source, p.ErrorToken(), errs[0])
			continue
		}

		comp := compiler.NewWithState(symbolTable, constants)
		if err := comp.Compile(program); err != nil {
			if cerr, ok := err.(*compiler.CompileError); ok {
				reportCompileError(os.Stdout, source, cerr)
			} else {
				fmt.Printf("Woops! Compilation failed!\n%s\n", err.Error())
			}
			continue
		}
		code := comp.Bytecode()
		constants = code.Constants
		symbolTable = comp.SymbolTable()

		machine := vm.NewWithGlobalsStore(code, globals)
		if err := machine.Run(); err != nil {
			if rerr, ok := err.(*vm.RuntimeError); ok {
				reportRuntimeError(os.Stdout, source, rerr)
			} else {
				fmt.Printf("Woops! Runtime failed!\n%s\n", err.Error())
			}
			continue
		}
		globals = machine.GlobalsStore()

		if result := machine.LastPoppedStackElem(); result != nil {
			if _, isNull := result.(*object.Null); !isNull {
				fmt.Println(result.Inspect())
			}
		}
	}
}

// readSubmission reads one top-level submission: a single line, unless
// it ends with `{` or `(`, in which case it keeps reading and prompting
// `.. ` until a blank line is entered or input runs out. The second
// return value is false once the session's input is exhausted.
func readSubmission(rl *readline.Instance) (string, bool) {
	rl.SetPrompt(replPrompt)
	first, err := rl.Readline()
	if err == io.EOF {
		return "", false
	}
	if err == readline.ErrInterrupt {
		return "", true
	}

	trimmed := strings.TrimRight(first, " \t")
	if !strings.HasSuffix(trimmed, "{") && !strings.HasSuffix(trimmed, "(") {
		return first, true
	}

	var buf strings.Builder
	buf.WriteString(first)
	rl.SetPrompt(replContPrompt)
	for {
		line, err := rl.Readline()
		if err == io.EOF || strings.TrimSpace(line) == "" {
			break
		}
		if err == readline.ErrInterrupt {
			break
		}
		buf.WriteByte('\n')
		buf.WriteString(line)
	}
	return buf.String(), true
}
