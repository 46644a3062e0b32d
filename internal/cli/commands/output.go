package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rulekit/rulekit/internal/cliopt"
	"github.com/rulekit/rulekit/internal/cliutil"
	"github.com/rulekit/rulekit/rulekit"
)

func printRule(g cliopt.GlobalOptions, r rulekit.Rule) {
	if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
		cliutil.PrintJSON(g.Stdout, r)
		return
	}
	writeRule(g.Stdout, r)
}

func writeRule(w io.Writer, r rulekit.Rule) {
	fmt.Fprintf(w, "id:      %s\n", r.ID)
	if r.Name != "" {
		fmt.Fprintf(w, "name:    %s\n", r.Name)
	}
	fmt.Fprintf(w, "rule:    %s\n", r.RuleString)
	if len(r.Sources) > 0 {
		fmt.Fprintf(w, "sources: %s\n", strings.Join(r.Sources, ", "))
	}
	fmt.Fprintf(w, "created: %s\n", r.CreatedAt.Format(time.RFC3339))
}

// fail prints err and returns the runtime failure exit code.
func fail(g cliopt.GlobalOptions, err error) int {
	fmt.Fprintln(g.Stderr, err)
	return 1
}

// usage prints msg and returns the usage exit code.
func usage(g cliopt.GlobalOptions, msg string) int {
	fmt.Fprintln(g.Stderr, msg)
	return 2
}
