package commands

import (
	"context"
	"flag"
	"strings"

	"github.com/rulekit/rulekit/internal/cliopt"
	"github.com/rulekit/rulekit/internal/cliutil"
	"github.com/rulekit/rulekit/rulekit"
	"github.com/rulekit/rulekit/rulekit/rule"
)

// RunCombine combines rule strings (-r, repeatable) or stored rules (--id,
// repeatable) into a new stored rule.
func RunCombine(g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("combine", flag.ContinueOnError)
	fs.SetOutput(g.Stderr)
	var rules, ids cliutil.StringList
	var name, op string
	fs.Var(&rules, "rule", "rule string (repeatable)")
	fs.Var(&rules, "r", "rule string (repeatable)")
	fs.Var(&ids, "id", "stored rule id (repeatable)")
	fs.StringVar(&name, "name", "", "name of the combined rule")
	fs.StringVar(&name, "n", "", "name of the combined rule")
	fs.StringVar(&op, "op", "", "joining operator: and|or (default: majority of the inputs)")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	switch {
	case len(rules) == 0 && len(ids) == 0:
		return usage(g, "provide --rule or --id")
	case len(rules) > 0 && len(ids) > 0:
		return usage(g, "use either --rule or --id, not both")
	}

	var joinOp rule.LogicalOp
	switch strings.ToLower(op) {
	case "":
	case "and":
		joinOp = rule.OpAnd
	case "or":
		joinOp = rule.OpOr
	default:
		return usage(g, "--op must be and or or")
	}
	if joinOp != "" && len(ids) > 0 {
		return usage(g, "--op applies to --rule inputs only")
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

	var r rulekit.Rule
	if len(ids) > 0 {
		r, err = s.CombineStored(ctx, ids, name)
	} else {
		r, err = s.CombineRulesWith(ctx, rules, name, joinOp)
	}
	if err != nil {
		return fail(g, err)
	}
	printRule(g, r)
	return 0
}
