package commands

import (
	"context"
	"flag"
	"fmt"

	"github.com/rulekit/rulekit/internal/cliopt"
	"github.com/rulekit/rulekit/internal/cliutil"
)

// RunInit creates the rule tables. Running it on an existing store is a no-op.
func RunInit(g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(g.Stderr)
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	env, err := cliutil.NewEnv(g)
	if err != nil {
		return fail(g, err)
	}
	ctx := context.Background()
	s, err := env.CreateStore(ctx)
	if err != nil {
		return fail(g, err)
	}
	defer s.Close()

	fmt.Fprintf(g.Stdout, "initialized %s\n", s.Adapter().StoreID())
	return 0
}
