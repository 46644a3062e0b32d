package rule

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks against the typed errors below.
var (
	// ErrSyntax matches any *LexError or *ParseError.
	ErrSyntax = errors.New("rule syntax error")

	// ErrEval matches any *MissingAttributeError or *TypeMismatchError.
	ErrEval = errors.New("rule evaluation error")

	// ErrCombineEmpty is returned by Combine when given no trees.
	ErrCombineEmpty = &CombineError{Reason: CombineEmpty}
)

// LexError reports an unrecognized character or an unterminated string.
type LexError struct {
	Pos          int
	Snippet      string
	Unterminated bool
}

func (e *LexError) Error() string {
	if e.Unterminated {
		return fmt.Sprintf("unterminated string at position %d near %q", e.Pos, e.Snippet)
	}
	return fmt.Sprintf("unexpected character at position %d near %q", e.Pos, e.Snippet)
}

func (e *LexError) Is(target error) bool { return target == ErrSyntax }

// ParseError reports a grammar violation.
type ParseError struct {
	Pos      int
	Expected string
	Found    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid rule syntax near position %d: expected %s, found %s", e.Pos, e.Expected, e.Found)
}

func (e *ParseError) Is(target error) bool { return target == ErrSyntax }

// CombineReason classifies a CombineError
type CombineReason string

const CombineEmpty CombineReason = "empty"

// CombineError reports a failed combination.
type CombineError struct {
	Reason CombineReason
}

func (e *CombineError) Error() string {
	if e.Reason == CombineEmpty {
		return "combine: no rules supplied"
	}
	return "combine: " + string(e.Reason)
}

func (e *CombineError) Is(target error) bool {
	t, ok := target.(*CombineError)
	return ok && t.Reason == e.Reason
}

// MissingAttributeError indicates an operand references an attribute the
// record does not have.
type MissingAttributeError struct {
	Name string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("attribute not found: %q", e.Name)
}

func (e *MissingAttributeError) Is(target error) bool { return target == ErrEval }

// TypeMismatchError indicates a record value that cannot be compared
// against the operand's literal.
type TypeMismatchError struct {
	Attribute string
	Expected  string
	Found     string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch for attribute %q: expected %s, found %s", e.Attribute, e.Expected, e.Found)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrEval }

// MalformedError indicates a tree that violates the well-formedness rules.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "malformed rule tree: " + e.Reason
}
