package rule

import (
	"fmt"
	"strings"
)

// Validate checks that a tree is well formed: every operator has a known op
// and two children, every operand has an identifier attribute (not AND or
// OR), a known comparator and a number, string or bool literal.
func Validate(n Node) error {
	switch e := n.(type) {
	case *Operator:
		if e == nil {
			return &MalformedError{Reason: "nil operator"}
		}
		if !e.Op.valid() {
			return &MalformedError{Reason: fmt.Sprintf("unknown logical operator %q", e.Op)}
		}
		if e.Left == nil || e.Right == nil {
			return &MalformedError{Reason: fmt.Sprintf("%s operator is missing a child", e.Op)}
		}
		if err := Validate(e.Left); err != nil {
			return err
		}
		return Validate(e.Right)
	case *Operand:
		if e == nil {
			return &MalformedError{Reason: "nil operand"}
		}
		if e.Attribute == "" {
			return &MalformedError{Reason: "operand has an empty attribute name"}
		}
		if !validAttribute(e.Attribute) {
			return &MalformedError{Reason: fmt.Sprintf("attribute %q is not an identifier", e.Attribute)}
		}
		if !e.Comparator.valid() {
			return &MalformedError{Reason: fmt.Sprintf("unknown comparator %q on %q", e.Comparator, e.Attribute)}
		}
		if e.Literal.kind == KindInvalid {
			return &MalformedError{Reason: fmt.Sprintf("operand %q has no literal", e.Attribute)}
		}
		return nil
	case nil:
		return &MalformedError{Reason: "nil node"}
	default:
		return &MalformedError{Reason: fmt.Sprintf("unknown node type %T", n)}
	}
}

// validAttribute reports whether name lexes as a single identifier token.
func validAttribute(name string) bool {
	for i, ch := range name {
		if (i == 0 && !isIdentStart(ch)) || !isIdentChar(ch) {
			return false
		}
	}
	switch strings.ToUpper(name) {
	case string(OpAnd), string(OpOr):
		return false
	}
	return true
}

// Depth returns the height of the tree; a single operand has depth 1.
func Depth(n Node) int {
	switch e := n.(type) {
	case *Operator:
		if e == nil {
			return 0
		}
		l, r := Depth(e.Left), Depth(e.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	case *Operand:
		if e == nil {
			return 0
		}
		return 1
	default:
		return 0
	}
}
