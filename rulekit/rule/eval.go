package rule

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Record maps attribute names to the values a rule is evaluated against.
// Numbers may be any Go integer or float type or a json.Number.
type Record map[string]any

// Evaluate walks the tree against rec and returns the verdict.
//
// AND stops at the first false child and OR at the first true one, so an
// error the skipped subtree would raise is never reported. Evaluate does not
// modify the tree or the record and is safe for concurrent use.
func Evaluate(n Node, rec Record) (bool, error) {
	switch e := n.(type) {
	case *Operator:
		if e == nil || e.Left == nil || e.Right == nil {
			return false, &MalformedError{Reason: "operator is missing a child"}
		}
		left, err := Evaluate(e.Left, rec)
		if err != nil {
			return false, err
		}
		switch e.Op {
		case OpAnd:
			if !left {
				return false, nil
			}
		case OpOr:
			if left {
				return true, nil
			}
		default:
			return false, &MalformedError{Reason: fmt.Sprintf("unknown logical operator %q", e.Op)}
		}
		return Evaluate(e.Right, rec)
	case *Operand:
		if e == nil {
			return false, &MalformedError{Reason: "nil operand"}
		}
		return evaluateOperand(e, rec)
	default:
		return false, &MalformedError{Reason: fmt.Sprintf("unknown node type %T", n)}
	}
}

func evaluateOperand(o *Operand, rec Record) (bool, error) {
	actual, ok := rec[o.Attribute]
	if !ok {
		return false, &MissingAttributeError{Name: o.Attribute}
	}
	if !o.Comparator.valid() {
		return false, &MalformedError{Reason: fmt.Sprintf("unknown comparator %q on %q", o.Comparator, o.Attribute)}
	}

	switch o.Literal.kind {
	case KindNumber:
		f, ok := toFloat64(actual)
		if !ok {
			return false, mismatch(o, KindNumber.String(), actual)
		}
		return compareNumbers(o.Comparator, f, o.Literal.num), nil

	case KindString:
		s, ok := actual.(string)
		if !ok {
			return false, mismatch(o, KindString.String(), actual)
		}
		return compareStrings(o.Comparator, s, o.Literal.str), nil

	case KindBool:
		if o.Comparator.ordering() {
			return false, &TypeMismatchError{
				Attribute: o.Attribute,
				Expected:  "number or string for " + string(o.Comparator),
				Found:     KindBool.String(),
			}
		}
		b, ok := actual.(bool)
		if !ok {
			return false, mismatch(o, KindBool.String(), actual)
		}
		if o.Comparator == CmpEq {
			return b == o.Literal.b, nil
		}
		return b != o.Literal.b, nil

	default:
		return false, &MalformedError{Reason: fmt.Sprintf("operand %q has no literal", o.Attribute)}
	}
}

func mismatch(o *Operand, expected string, actual any) *TypeMismatchError {
	return &TypeMismatchError{Attribute: o.Attribute, Expected: expected, Found: typeName(actual)}
}

func compareNumbers(c Comparator, a, b float64) bool {
	switch c {
	case CmpLt:
		return a < b
	case CmpGt:
		return a > b
	case CmpLte:
		return a <= b
	case CmpGte:
		return a >= b
	case CmpEq:
		return a == b
	default:
		return a != b
	}
}

func compareStrings(c Comparator, a, b string) bool {
	cmp := strings.Compare(a, b)
	switch c {
	case CmpLt:
		return cmp < 0
	case CmpGt:
		return cmp > 0
	case CmpLte:
		return cmp <= 0
	case CmpGte:
		return cmp >= 0
	case CmpEq:
		return cmp == 0
	default:
		return cmp != 0
	}
}

// toFloat64 converts any numeric record value to float64.
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// typeName names the dynamic type of a record value in rule terms.
func typeName(v any) string {
	if v == nil {
		return "null"
	}
	if _, ok := toFloat64(v); ok {
		return KindNumber.String()
	}
	switch v.(type) {
	case string:
		return KindString.String()
	case bool:
		return KindBool.String()
	default:
		return fmt.Sprintf("%T", v)
	}
}
