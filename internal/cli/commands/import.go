package commands

import (
	"context"
	"flag"
	"fmt"

	"github.com/rulekit/rulekit/internal/cliopt"
	"github.com/rulekit/rulekit/internal/cliutil"
	"github.com/rulekit/rulekit/internal/ruleset"
)

func RunImport(g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(g.Stderr)
	var path string
	fs.StringVar(&path, "file", "", "ruleset YAML file")
	fs.StringVar(&path, "f", "", "ruleset YAML file")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	if path == "" {
		return usage(g, "missing --file")
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

	res, err := ruleset.LoadAndImport(ctx, s, path)
	if err != nil {
		return fail(g, err)
	}

	if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
		cliutil.PrintJSON(g.Stdout, map[string]any{"created": res.Created, "skipped": res.Skipped})
		return 0
	}
	for _, r := range res.Created {
		fmt.Fprintf(g.Stdout, "created %s\t%s\n", r.ID, r.Name)
	}
	fmt.Fprintf(g.Stdout, "imported %d, skipped %d\n", len(res.Created), res.Skipped)
	return 0
}
