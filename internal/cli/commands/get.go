package commands

import (
	"context"
	"flag"

	"github.com/rulekit/rulekit/internal/cliopt"
	"github.com/rulekit/rulekit/internal/cliutil"
)

func RunGet(g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(g.Stderr)
	var id string
	fs.StringVar(&id, "id", "", "rule id")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	if id == "" {
		return usage(g, "missing --id")
	}

	env, err := cliutil.NewEnv(g)
	if err != nil {
		return fail(g, err)
	}
	ctx := context.Background()
	s, err := env.OpenStore(ctx)
	if err != nil {
		return fail(g, err)
	}
	defer s.Close()

	r, err := s.GetRule(ctx, id)
	if err != nil {
		return fail(g, err)
	}
	printRule(g, r)
	return 0
}
