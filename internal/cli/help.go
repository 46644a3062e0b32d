package cli

import (
	"fmt"
	"io"
)

func PrintRootHelp(w io.Writer) {
	fmt.Fprintln(w, `rulekit - parse, combine, store and evaluate boolean rules

USAGE
  rulekit [global flags] <command> [args]

GLOBAL FLAGS
  --config <file.yaml>
  --backend sqlite|postgres
  --sqlite-path <file.db>
  --sqlite-driver sqlite|sqlite3
  --pg-dsn <dsn>
  --pg-schema <name>
  --log-level debug|info|warn|error
  --format pretty|json

COMMANDS
  init                                   create the rule tables
  create   -r <rule> [-n name]           parse and store a rule
  combine  -r <rule>... | --id <id>...   combine rules into a new stored rule
           [--op and|or] [-n name]
  evaluate --id <id> | -r <rule>         evaluate against a JSON record
           --data <json|@file|->         (exit 0 = true, 3 = false)
  get      --id <id>
  list     [--name n] [--limit n] [--after cursor]
  delete   --id <id>
  import   -f <rules.yaml>               create rules not already stored
  serve    [--listen addr] [--ruleset file] [--watch]
  check    -r <rule>                     parse only, print the tree

Environment variables RULEKIT_SECTION_FIELD (e.g. RULEKIT_STORAGE_SQLITE_PATH)
override the config file; global flags override both.`)
}
