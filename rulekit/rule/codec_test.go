package rule

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEncodeShape(t *testing.T) {
	data, err := Encode(mustParse(t, "age > 30 AND active = true"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"type":"operator","op":"AND",` +
		`"left":{"type":"operand","attribute":"age","comparator":">","literal":30},` +
		`"right":{"type":"operand","attribute":"active","comparator":"==","literal":true}}`
	if string(data) != want {
		t.Errorf("expected\n%s\ngot\n%s", want, data)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rules := []string{
		"age > 30",
		"(age > 30 OR age < 18) AND department = 'Sales'",
		"a = 1 AND (b = 'two' OR c != false)",
		"score >= -0.25",
	}
	for _, s := range rules {
		tree := mustParse(t, s)
		data, err := Encode(tree)
		if err != nil {
			t.Fatalf("%q: encode: %v", s, err)
		}
		back, err := Decode(data)
		if err != nil {
			t.Fatalf("%q: decode: %v", s, err)
		}
		if !Equal(tree, back) {
			t.Errorf("%q: round trip gave %s", s, Format(back))
		}
	}
}

func TestEncodeSharedSubtrees(t *testing.T) {
	combined, err := CombineStrings([]string{
		"(x = 1 OR y = 2) AND a = 1",
		"(x = 1 OR y = 2) AND b = 2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := Encode(combined)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !Equal(combined, back) {
		t.Errorf("round trip gave %s", Format(back))
	}
	if got := strings.Count(string(data), `"attribute":"x"`); got != 2 {
		t.Errorf("expected the shared subtree written twice, found %d", got)
	}
}

func TestEncodeRejectsMalformed(t *testing.T) {
	_, err := Encode(&Operator{Op: OpOr, Left: NewOperand("a", CmpEq, NumberValue(1))})
	var merr *MalformedError
	if !errors.As(err, &merr) {
		t.Errorf("expected *MalformedError, got %v", err)
	}
}

func TestDecodeLowercaseOp(t *testing.T) {
	n, err := Decode([]byte(`{"type":"operator","op":"or",
		"left":{"type":"operand","attribute":"a","comparator":"<","literal":1},
		"right":{"type":"operand","attribute":"b","comparator":"==","literal":"x"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.(*Operator).Op != OpOr {
		t.Errorf("expected OR, got %s", n.(*Operator).Op)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		malformed bool
	}{
		{"not json", `{"type":`, false},
		{"unknown type", `{"type":"leaf"}`, true},
		{"missing child", `{"type":"operator","op":"AND","left":{"type":"operand","attribute":"a","comparator":"<","literal":1}}`, true},
		{"unknown op", `{"type":"operator","op":"XOR","left":{"type":"operand","attribute":"a","comparator":"<","literal":1},"right":{"type":"operand","attribute":"a","comparator":"<","literal":1}}`, true},
		{"bad comparator", `{"type":"operand","attribute":"a","comparator":"=~","literal":1}`, true},
		{"missing literal", `{"type":"operand","attribute":"a","comparator":"<"}`, true},
		{"null literal", `{"type":"operand","attribute":"a","comparator":"<","literal":null}`, true},
		{"array literal", `{"type":"operand","attribute":"a","comparator":"<","literal":[1]}`, true},
		{"empty attribute", `{"type":"operand","attribute":"","comparator":"<","literal":1}`, true},
		{"attribute with space", `{"type":"operand","attribute":"a b","comparator":"<","literal":1}`, true},
		{"attribute starts with digit", `{"type":"operand","attribute":"1a","comparator":"<","literal":1}`, true},
		{"keyword attribute", `{"type":"operand","attribute":"and","comparator":"<","literal":1}`, true},
		{"trailing garbage", `{"type":"operand","attribute":"a","comparator":"<","literal":1} trailing`, false},
		{"second value", `{"type":"operand","attribute":"a","comparator":"<","literal":1}{}`, false},
		{"stray brace", `{"type":"operand","attribute":"a","comparator":"<","literal":1}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			var merr *MalformedError
			if errors.As(err, &merr) != tt.malformed {
				t.Errorf("malformed=%v, got %v", tt.malformed, err)
			}
		})
	}
}

func TestDecodeAllowsTrailingWhitespace(t *testing.T) {
	n, err := Decode([]byte("{\"type\":\"operand\",\"attribute\":\"a_1\",\"comparator\":\"<\",\"literal\":1}\n\t "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !Equal(n, NewOperand("a_1", CmpLt, NumberValue(1))) {
		t.Errorf("unexpected tree %s", Format(n))
	}
}

func TestFormatRejectedAttributesDoNotEncode(t *testing.T) {
	for _, name := range []string{"a b", "or", "x-y"} {
		if _, err := Encode(NewOperand(name, CmpEq, NumberValue(1))); err == nil {
			t.Errorf("%q: expected encode error", name)
		}
	}
}

func TestTreeJSON(t *testing.T) {
	type envelope struct {
		ID   string `json:"id"`
		Tree Tree   `json:"tree"`
	}
	in := envelope{ID: "r1", Tree: Tree{Node: mustParse(t, "age > 30")}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out envelope
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != "r1" || !Equal(in.Tree.Node, out.Tree.Node) {
		t.Errorf("unexpected result %+v", out)
	}

	var empty envelope
	if err := json.Unmarshal([]byte(`{"id":"x","tree":null}`), &empty); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if empty.Tree.Node != nil {
		t.Errorf("expected nil node, got %#v", empty.Tree.Node)
	}
}

func TestFormatParsesBack(t *testing.T) {
	rules := []string{
		"age > 30 AND department = 'Sales'",
		"a = 1 OR b = 2 AND c = 3",
		"a = 1 AND (b = 2 OR (c = 3 AND d = 4))",
		"x != 1.5 OR flag == FALSE",
	}
	for _, s := range rules {
		tree := mustParse(t, s)
		text := Format(tree)
		back, err := Parse(text)
		if err != nil {
			t.Fatalf("%q: Format gave %q which does not parse: %v", s, text, err)
		}
		if !Equal(tree, back) {
			t.Errorf("%q: Format gave %q which parses differently", s, text)
		}
	}
}

func TestFormatOutput(t *testing.T) {
	got := Format(mustParse(t, "a=1 AND (b='x' OR c>=2)"))
	want := "a == 1 AND (b == 'x' OR c >= 2)"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
