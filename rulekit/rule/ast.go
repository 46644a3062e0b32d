package rule

import (
	"strconv"
)

// Node is a rule AST node: either *Operator or *Operand.
// Nodes are never modified after construction.
type Node interface {
	isNode()
}

// LogicalOp joins two subtrees
type LogicalOp string

const (
	OpAnd LogicalOp = "AND"
	OpOr  LogicalOp = "OR"
)

func (op LogicalOp) valid() bool {
	return op == OpAnd || op == OpOr
}

// Operator applies a logical op to two subtrees
type Operator struct {
	Op    LogicalOp
	Left  Node
	Right Node
}

func (*Operator) isNode() {}

// Comparator is a comparison operator used by an Operand
type Comparator string

const (
	CmpLt  Comparator = "<"
	CmpGt  Comparator = ">"
	CmpLte Comparator = "<="
	CmpGte Comparator = ">="
	CmpEq  Comparator = "=="
	CmpNeq Comparator = "!="
)

func (c Comparator) valid() bool {
	switch c {
	case CmpLt, CmpGt, CmpLte, CmpGte, CmpEq, CmpNeq:
		return true
	}
	return false
}

// ordering reports whether the comparator needs an ordered type
func (c Comparator) ordering() bool {
	switch c {
	case CmpLt, CmpGt, CmpLte, CmpGte:
		return true
	}
	return false
}

// Operand compares a record attribute against a literal
type Operand struct {
	Attribute  string
	Comparator Comparator
	Literal    Value
}

func (*Operand) isNode() {}

// ValueKind identifies the type held by a Value
type ValueKind int

const (
	KindInvalid ValueKind = iota
	KindNumber
	KindString
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a literal: a number, a string or a bool.
// The zero Value is invalid.
type Value struct {
	kind ValueKind
	num  float64
	str  string
	b    bool
}

func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }
func StringValue(s string) Value  { return Value{kind: KindString, str: s} }
func BoolValue(b bool) Value      { return Value{kind: KindBool, b: b} }

func (v Value) Kind() ValueKind { return v.kind }

// Number returns the numeric payload; ok is false for other kinds.
func (v Value) Number() (float64, bool) { return v.num, v.kind == KindNumber }

// Str returns the string payload; ok is false for other kinds.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Bool returns the bool payload; ok is false for other kinds.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Interface returns the payload as float64, string or bool (nil when invalid).
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// String renders the value in rule syntax
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return "'" + v.str + "'"
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "?"
	}
}

// NewOperator builds an operator node
func NewOperator(op LogicalOp, left, right Node) *Operator {
	return &Operator{Op: op, Left: left, Right: right}
}

// NewOperand builds an operand node
func NewOperand(attribute string, cmp Comparator, literal Value) *Operand {
	return &Operand{Attribute: attribute, Comparator: cmp, Literal: literal}
}

// Equal reports whether two trees are structurally identical
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case *Operator:
		y, ok := b.(*Operator)
		if !ok || x == nil || y == nil {
			return ok && x == y
		}
		return x.Op == y.Op && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *Operand:
		y, ok := b.(*Operand)
		if !ok || x == nil || y == nil {
			return ok && x == y
		}
		return *x == *y
	default:
		return a == nil && b == nil
	}
}

// Attributes returns the distinct attribute names referenced by the tree,
// in first-seen order.
func Attributes(n Node) []string {
	seen := make(map[string]bool)
	var result []string
	collectAttributes(n, seen, &result)
	return result
}

func collectAttributes(n Node, seen map[string]bool, result *[]string) {
	switch e := n.(type) {
	case *Operator:
		collectAttributes(e.Left, seen, result)
		collectAttributes(e.Right, seen, result)
	case *Operand:
		if !seen[e.Attribute] {
			seen[e.Attribute] = true
			*result = append(*result, e.Attribute)
		}
	}
}

// Size returns the number of nodes reachable from n, counting shared
// subtrees once per reference.
func Size(n Node) int {
	switch e := n.(type) {
	case *Operator:
		return 1 + Size(e.Left) + Size(e.Right)
	case *Operand:
		return 1
	default:
		return 0
	}
}
