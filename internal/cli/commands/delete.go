package commands

import (
	"context"
	"flag"
	"fmt"

	"github.com/rulekit/rulekit/internal/cliopt"
	"github.com/rulekit/rulekit/internal/cliutil"
)

func RunDelete(g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
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

	ok, err := s.DeleteRule(ctx, id)
	if err != nil {
		return fail(g, err)
	}
	if ok {
		fmt.Fprintln(g.Stdout, "deleted")
		return 0
	}
	fmt.Fprintln(g.Stdout, "not found")
	return 1
}
