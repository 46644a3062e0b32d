package sqlbuilder

import (
	"strconv"
	"strings"
)

type PlaceholderStyle int

const (
	PlaceholderQuestion PlaceholderStyle = iota
	PlaceholderDollar
)

// Builder allocates placeholders and collects their arguments while a
// statement is assembled.
type Builder struct {
	Style PlaceholderStyle
	args  []any
	conds []string
}

func New(style PlaceholderStyle) *Builder {
	return &Builder{Style: style, args: make([]any, 0)}
}

// Arg records v and returns its placeholder.
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	switch b.Style {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(len(b.args))
	default:
		return "?"
	}
}

func (b *Builder) Args() []any { return b.args }
func (b *Builder) Len() int    { return len(b.args) }

// Where adds a condition; conditions are joined with AND.
func (b *Builder) Where(cond string) {
	b.conds = append(b.conds, cond)
}

// WhereSQL returns " WHERE c1 AND c2 ..." or "" when nothing was added.
func (b *Builder) WhereSQL() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}
