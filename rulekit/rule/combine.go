package rule

import (
	"fmt"
	"math"
)

// Combine merges several rule trees into one.
//
// The joining operator is the majority of the trees' root operators;
// operand roots abstain and a tie picks AND. Structurally identical subtrees
// are shared in the result and duplicate roots are dropped before the trees
// are folded left to right. A single tree is returned as is.
//
// Inputs are never modified.
func Combine(trees []Node) (Node, error) {
	if len(trees) == 0 {
		return nil, ErrCombineEmpty
	}
	if len(trees) == 1 {
		return trees[0], nil
	}
	return CombineWith(trees, Majority(trees))
}

// CombineWith merges trees using an explicit joining operator.
func CombineWith(trees []Node, op LogicalOp) (Node, error) {
	if len(trees) == 0 {
		return nil, ErrCombineEmpty
	}
	if !op.valid() {
		return nil, &MalformedError{Reason: fmt.Sprintf("unknown logical operator %q", op)}
	}
	if len(trees) == 1 {
		return trees[0], nil
	}

	in := newInterner()
	roots := make([]Node, 0, len(trees))
	seen := make(map[int]bool, len(trees))
	for i, t := range trees {
		if err := Validate(t); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		canon, id := in.intern(t)
		if seen[id] {
			continue
		}
		seen[id] = true
		roots = append(roots, canon)
	}

	result := roots[0]
	for _, r := range roots[1:] {
		result = &Operator{Op: op, Left: result, Right: r}
	}
	return result, nil
}

// CombineStrings parses each rule string and combines the results.
func CombineStrings(rules []string) (Node, error) {
	if len(rules) == 0 {
		return nil, ErrCombineEmpty
	}
	trees := make([]Node, 0, len(rules))
	for _, s := range rules {
		t, err := Parse(s)
		if err != nil {
			return nil, err
		}
		trees = append(trees, t)
	}
	return Combine(trees)
}

// Majority returns the operator used by strictly more tree roots, or AND.
func Majority(trees []Node) LogicalOp {
	var and, or int
	for _, t := range trees {
		op, ok := t.(*Operator)
		if !ok || op == nil {
			continue
		}
		switch op.Op {
		case OpAnd:
			and++
		case OpOr:
			or++
		}
	}
	if or > and {
		return OpOr
	}
	return OpAnd
}

type operandKey struct {
	attribute  string
	comparator Comparator
	kind       ValueKind
	num        uint64
	str        string
	b          bool
}

type operatorKey struct {
	op          LogicalOp
	left, right int
}

type canonical struct {
	node Node
	id   int
}

// interner assigns every structurally distinct subtree an id and keeps one
// canonical node per id.
type interner struct {
	operands  map[operandKey]canonical
	operators map[operatorKey]canonical
	next      int
}

func newInterner() *interner {
	return &interner{
		operands:  make(map[operandKey]canonical),
		operators: make(map[operatorKey]canonical),
	}
}

func (in *interner) intern(n Node) (Node, int) {
	switch e := n.(type) {
	case *Operand:
		key := operandKey{
			attribute:  e.Attribute,
			comparator: e.Comparator,
			kind:       e.Literal.kind,
			str:        e.Literal.str,
			b:          e.Literal.b,
		}
		if e.Literal.kind == KindNumber {
			// +0 and -0 compare equal, so they share a key
			f := e.Literal.num
			if f == 0 {
				f = 0
			}
			key.num = math.Float64bits(f)
		}
		if c, ok := in.operands[key]; ok {
			return c.node, c.id
		}
		c := canonical{node: e, id: in.next}
		in.next++
		in.operands[key] = c
		return c.node, c.id

	case *Operator:
		left, lid := in.intern(e.Left)
		right, rid := in.intern(e.Right)
		key := operatorKey{op: e.Op, left: lid, right: rid}
		if c, ok := in.operators[key]; ok {
			return c.node, c.id
		}
		var node Node = e
		if left != e.Left || right != e.Right {
			node = &Operator{Op: e.Op, Left: left, Right: right}
		}
		c := canonical{node: node, id: in.next}
		in.next++
		in.operators[key] = c
		return c.node, c.id
	}
	// Validate rejects anything else before interning
	return n, -1
}
