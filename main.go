package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

// verbs names every subcommand main.go registers, used to tell an
// explicit verb invocation ("monke run foo.mk") apart from the plain
// invocation shapes the language's external interface promises: no
// arguments opens the REPL, exactly one argument runs it as a file.
var verbs = map[string]bool{
	"run": true, "repl": true, "emit": true,
	"help": true, "flags": true, "commands": true,
}

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&replCmd{}, "")
	subcommands.Register(&emitCmd{}, "")

	args := os.Args[1:]
	ctx := context.Background()

	switch {
	case len(args) == 0:
		os.Exit(int((&replCmd{}).Execute(ctx, flag.NewFlagSet("repl", flag.ExitOnError))))
	case len(args) == 1 && !verbs[args[0]]:
		fs := flag.NewFlagSet("run", flag.ExitOnError)
		fs.Parse(args)
		os.Exit(int((&runCmd{}).Execute(ctx, fs)))
	default:
		flag.Parse()
		os.Exit(int(subcommands.Execute(ctx)))
	}
}
