package commands

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/rulekit/rulekit/internal/cliopt"
	"github.com/rulekit/rulekit/internal/cliutil"
	"github.com/rulekit/rulekit/rulekit/rule"
)

// RunCheck parses a rule without touching storage and prints its tree and
// canonical text.
func RunCheck(g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(g.Stderr)
	var ruleString string
	fs.StringVar(&ruleString, "rule", "", "rule string")
	fs.StringVar(&ruleString, "r", "", "rule string")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	if ruleString == "" {
		return usage(g, "missing --rule")
	}

	tree, err := rule.Parse(ruleString)
	if err != nil {
		return fail(g, err)
	}

	if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
		cliutil.PrintJSON(g.Stdout, map[string]any{
			"ast":        rule.Tree{Node: tree},
			"canonical":  rule.Format(tree),
			"attributes": rule.Attributes(tree),
			"depth":      rule.Depth(tree),
		})
		return 0
	}
	data, err := rule.Encode(tree)
	if err != nil {
		return fail(g, err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return fail(g, err)
	}
	fmt.Fprintf(g.Stdout, "canonical: %s\n", rule.Format(tree))
	fmt.Fprintf(g.Stdout, "ast:\n%s\n", out.String())
	return 0
}
