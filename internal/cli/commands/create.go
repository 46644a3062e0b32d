package commands

import (
	"context"
	"flag"

	"github.com/rulekit/rulekit/internal/cliopt"
	"github.com/rulekit/rulekit/internal/cliutil"
)

func RunCreate(g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(g.Stderr)
	var ruleString, name string
	fs.StringVar(&ruleString, "rule", "", "rule string")
	fs.StringVar(&ruleString, "r", "", "rule string")
	fs.StringVar(&name, "name", "", "rule name")
	fs.StringVar(&name, "n", "", "rule name")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	if ruleString == "" {
		return usage(g, "missing --rule")
	}

	env, err := cliutil.NewEnv(g)
	if err != nil {
		return fail(g, err)
	}
	ctx := context.Background()
	s, err := env.OpenOrCreateStore(ctx)
	if err != nil {
		return fail(g, err)
	}
	defer s.Close()

	r, err := s.CreateRule(ctx, ruleString, name)
	if err != nil {
		return fail(g, err)
	}
	printRule(g, r)
	return 0
}
