package commands

import (
	"context"
	"flag"
	"fmt"

	"github.com/rulekit/rulekit/internal/cliopt"
	"github.com/rulekit/rulekit/internal/cliutil"
	"github.com/rulekit/rulekit/rulekit/rule"
)

// RunEvaluate evaluates a stored rule (--id) or an ad hoc rule (-r) against
// one JSON record. Exit code 0 means the rule matched, 3 means it did not.
func RunEvaluate(g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	fs.SetOutput(g.Stderr)
	var id, ruleString, data string
	fs.StringVar(&id, "id", "", "stored rule id")
	fs.StringVar(&ruleString, "rule", "", "rule string")
	fs.StringVar(&ruleString, "r", "", "rule string")
	fs.StringVar(&data, "data", "", "record: inline JSON, @file or - for stdin")
	fs.StringVar(&data, "d", "", "record: inline JSON, @file or - for stdin")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	if (id == "") == (ruleString == "") {
		return usage(g, "provide exactly one of --id or --rule")
	}
	if data == "" {
		return usage(g, "missing --data")
	}

	rec, err := cliutil.ReadRecord(data, g.Stdin)
	if err != nil {
		return fail(g, err)
	}

	var result bool
	if id != "" {
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
		result, err = s.EvaluateRule(ctx, id, rec)
		if err != nil {
			return fail(g, err)
		}
	} else {
		tree, err := rule.Parse(ruleString)
		if err != nil {
			return fail(g, err)
		}
		result, err = rule.Evaluate(tree, rec)
		if err != nil {
			return fail(g, err)
		}
	}

	if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
		cliutil.PrintJSON(g.Stdout, map[string]bool{"result": result})
	} else {
		fmt.Fprintln(g.Stdout, result)
	}
	if !result {
		return 3
	}
	return 0
}
