package commands

import (
	"context"
	"flag"
	"fmt"

	"github.com/rulekit/rulekit/internal/cliopt"
	"github.com/rulekit/rulekit/internal/cliutil"
	"github.com/rulekit/rulekit/rulekit"
)

func RunList(g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(g.Stderr)
	var opts rulekit.ListOptions
	fs.StringVar(&opts.Name, "name", "", "only rules with this name")
	fs.IntVar(&opts.Limit, "limit", rulekit.DefaultListLimit, "page size")
	fs.StringVar(&opts.After, "after", "", "cursor from a previous page")
	if err := fs.Parse(argv); err != nil {
		return 2
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

	page, err := s.ListRules(ctx, opts)
	if err != nil {
		return fail(g, err)
	}

	if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
		cliutil.PrintJSON(g.Stdout, page)
		return 0
	}
	for _, r := range page.Rules {
		fmt.Fprintf(g.Stdout, "%s\t%s\t%s\n", r.ID, r.Name, r.RuleString)
	}
	if page.HasMore {
		fmt.Fprintf(g.Stdout, "\nnext: --after %s\n", page.NextCursor)
	}
	return 0
}
