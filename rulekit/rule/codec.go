package rule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	nodeTypeOperator = "operator"
	nodeTypeOperand  = "operand"
)

// wireNode is the JSON shape of a node:
//
//	{"type":"operator","op":"AND","left":{...},"right":{...}}
//	{"type":"operand","attribute":"age","comparator":">","literal":30}
type wireNode struct {
	Type       string          `json:"type"`
	Op         LogicalOp       `json:"op,omitempty"`
	Left       *wireNode       `json:"left,omitempty"`
	Right      *wireNode       `json:"right,omitempty"`
	Attribute  string          `json:"attribute,omitempty"`
	Comparator Comparator      `json:"comparator,omitempty"`
	Literal    json.RawMessage `json:"literal,omitempty"`
}

// Encode serializes a tree to JSON. Shared subtrees are written out in full
// at every reference.
func Encode(n Node) ([]byte, error) {
	if err := Validate(n); err != nil {
		return nil, err
	}
	w, err := toWire(n)
	if err != nil {
		return nil, err
	}
	// comparators contain '<' and '>', keep them readable
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses JSON produced by Encode and validates the resulting tree.
func Decode(data []byte) (Node, error) {
	var w wireNode
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode rule tree: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode rule tree: unexpected data after JSON value")
	}
	n, err := fromWire(&w)
	if err != nil {
		return nil, err
	}
	if err := Validate(n); err != nil {
		return nil, err
	}
	return n, nil
}

func toWire(n Node) (*wireNode, error) {
	switch e := n.(type) {
	case *Operator:
		left, err := toWire(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := toWire(e.Right)
		if err != nil {
			return nil, err
		}
		return &wireNode{Type: nodeTypeOperator, Op: e.Op, Left: left, Right: right}, nil
	case *Operand:
		lit, err := json.Marshal(e.Literal.Interface())
		if err != nil {
			return nil, fmt.Errorf("encode literal of %q: %w", e.Attribute, err)
		}
		return &wireNode{Type: nodeTypeOperand, Attribute: e.Attribute, Comparator: e.Comparator, Literal: lit}, nil
	default:
		return nil, &MalformedError{Reason: fmt.Sprintf("unknown node type %T", n)}
	}
}

func fromWire(w *wireNode) (Node, error) {
	if w == nil {
		return nil, &MalformedError{Reason: "missing child"}
	}
	switch w.Type {
	case nodeTypeOperator:
		left, err := fromWire(w.Left)
		if err != nil {
			return nil, err
		}
		right, err := fromWire(w.Right)
		if err != nil {
			return nil, err
		}
		return &Operator{Op: LogicalOp(strings.ToUpper(string(w.Op))), Left: left, Right: right}, nil
	case nodeTypeOperand:
		lit, err := decodeLiteral(w.Literal)
		if err != nil {
			return nil, fmt.Errorf("operand %q: %w", w.Attribute, err)
		}
		return &Operand{Attribute: w.Attribute, Comparator: w.Comparator, Literal: lit}, nil
	default:
		return nil, &MalformedError{Reason: fmt.Sprintf("unknown node type %q", w.Type)}
	}
}

func decodeLiteral(raw json.RawMessage) (Value, error) {
	if len(raw) == 0 {
		return Value{}, &MalformedError{Reason: "missing literal"}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Value{}, err
	}
	switch lit := v.(type) {
	case json.Number:
		f, err := lit.Float64()
		if err != nil {
			return Value{}, err
		}
		return NumberValue(f), nil
	case string:
		return StringValue(lit), nil
	case bool:
		return BoolValue(lit), nil
	default:
		return Value{}, &MalformedError{Reason: fmt.Sprintf("literal must be a number, string or bool, got %s", typeName(v))}
	}
}

// Tree wraps a Node so it can sit in JSON documents.
type Tree struct {
	Node Node
}

func (t Tree) MarshalJSON() ([]byte, error) {
	if t.Node == nil {
		return []byte("null"), nil
	}
	return Encode(t.Node)
}

func (t *Tree) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Node = nil
		return nil
	}
	n, err := Decode(data)
	if err != nil {
		return err
	}
	t.Node = n
	return nil
}

// Format renders a tree as rule text that parses back to an equal tree.
// Right-hand operator children are parenthesized because parsing is left
// associative. String literals containing a single quote cannot be
// expressed in rule text.
func Format(n Node) string {
	var sb strings.Builder
	format(&sb, n)
	return sb.String()
}

func format(sb *strings.Builder, n Node) {
	switch e := n.(type) {
	case *Operator:
		format(sb, e.Left)
		sb.WriteString(" ")
		sb.WriteString(string(e.Op))
		sb.WriteString(" ")
		if _, nested := e.Right.(*Operator); nested {
			sb.WriteString("(")
			format(sb, e.Right)
			sb.WriteString(")")
		} else {
			format(sb, e.Right)
		}
	case *Operand:
		sb.WriteString(e.Attribute)
		sb.WriteString(" ")
		sb.WriteString(string(e.Comparator))
		sb.WriteString(" ")
		sb.WriteString(e.Literal.String())
	}
}
