package cli

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rulekit/rulekit/internal/cli/commands"
	"github.com/rulekit/rulekit/internal/cliopt"
)

// Execute runs the CLI against the process's standard streams and returns
// an exit code.
func Execute(argv []string) int {
	return Run(argv, os.Stdin, os.Stdout, os.Stderr)
}

// Run is Execute with explicit streams.
func Run(argv []string, stdin io.Reader, stdout, stderr io.Writer) int {
	globalFS := flag.NewFlagSet("rulekit", flag.ContinueOnError)
	globalFS.SetOutput(stderr)
	g := cliopt.DefaultGlobalOptions()
	g.Stdin, g.Stdout, g.Stderr = stdin, stdout, stderr
	cliopt.BindGlobalFlags(globalFS, &g)

	if err := globalFS.Parse(argv); err != nil {
		// flag package already printed the error
		return 2
	}

	args := globalFS.Args()
	if len(args) == 0 {
		PrintRootHelp(stdout)
		return 0
	}

	verb := args[0]
	rest := args[1:]

	switch verb {
	case "--help", "-h", "help":
		PrintRootHelp(stdout)
		return 0
	case "init":
		return commands.RunInit(g, rest)
	case "create":
		return commands.RunCreate(g, rest)
	case "combine":
		return commands.RunCombine(g, rest)
	case "evaluate", "eval":
		return commands.RunEvaluate(g, rest)
	case "get":
		return commands.RunGet(g, rest)
	case "list":
		return commands.RunList(g, rest)
	case "delete":
		return commands.RunDelete(g, rest)
	case "import":
		return commands.RunImport(g, rest)
	case "serve":
		return commands.RunServe(g, rest)
	case "check":
		return commands.RunCheck(g, rest)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n\n", verb)
		PrintRootHelp(stderr)
		return 2
	}
}
