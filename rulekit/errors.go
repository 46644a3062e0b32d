package rulekit

import (
	"errors"
	"fmt"

	"github.com/rulekit/rulekit/rulekit/rule"
)

type ErrorKind string

const (
	ErrIO         ErrorKind = "io"
	ErrSQL        ErrorKind = "sql"
	ErrSyntax     ErrorKind = "syntax"
	ErrCombine    ErrorKind = "combine"
	ErrEval       ErrorKind = "eval"
	ErrInvalid    ErrorKind = "invalid"
	ErrCorruptAST ErrorKind = "corrupt_ast"
	ErrCursor     ErrorKind = "cursor"
	ErrNotFound   ErrorKind = "not_found"
)

type Error struct {
	Kind    ErrorKind
	Message string
	ID      string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	base := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.ID != "" {
		base = fmt.Sprintf("%s (id=%s)", base, e.ID)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Wrap(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func New(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func NotFoundError(id string) *Error {
	return &Error{Kind: ErrNotFound, Message: "rule not found", ID: id}
}

func CorruptASTError(id string, cause error) *Error {
	return &Error{Kind: ErrCorruptAST, Message: "stored rule tree cannot be decoded", ID: id, Cause: cause}
}

// wrapRuleError classifies an error from the rule package.
func wrapRuleError(msg string, err error) *Error {
	var combineErr *rule.CombineError
	switch {
	case errors.Is(err, rule.ErrSyntax):
		return Wrap(ErrSyntax, msg, err)
	case errors.Is(err, rule.ErrEval):
		return Wrap(ErrEval, msg, err)
	case errors.As(err, &combineErr):
		return Wrap(ErrCombine, msg, err)
	default:
		return Wrap(ErrInvalid, msg, err)
	}
}

func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
