package workflow

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

/* Condition is a parsed edge expression evaluated against the output of the completed node
 * Grammar: <operand> [op <operand>] where op is one of == != >= <= > <
 * Operands: JSONPath ($.a.b), bare keys (a.b), quoted strings, numbers, true, false, null
 * A single operand is a truthiness test
 */
type Condition struct {
	left  operand
	op    string
	right *operand
}

type operand struct {
	path    jp.Expr
	literal any
}

var comparisonOps = []string{"==", "!=", ">=", "<=", ">", "<"}

// ParseCondition parses an edge condition expression
func ParseCondition(expr string) (Condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Condition{}, fmt.Errorf("empty condition")
	}
	pos, op := findOperator(expr)
	if pos < 0 {
		left, err := parseOperand(expr)
		if err != nil {
			return Condition{}, err
		}
		return Condition{left: left}, nil
	}
	left, err := parseOperand(expr[:pos])
	if err != nil {
		return Condition{}, fmt.Errorf("left operand: %w", err)
	}
	right, err := parseOperand(expr[pos+len(op):])
	if err != nil {
		return Condition{}, fmt.Errorf("right operand: %w", err)
	}
	return Condition{left: left, op: op, right: &right}, nil
}

// EvaluateCondition parses and evaluates expr in a single call
func EvaluateCondition(expr string, output map[string]any) (bool, error) {
	c, err := ParseCondition(expr)
	if err != nil {
		return false, err
	}
	return c.Evaluate(output)
}

// Evaluate runs the condition against a node output
func (c Condition) Evaluate(output map[string]any) (bool, error) {
	l := c.left.resolve(output)
	if c.right == nil {
		return truthy(l), nil
	}
	r := c.right.resolve(output)
	switch c.op {
	case "==":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return false, fmt.Errorf("operator %s needs numeric operands, got %v and %v", c.op, l, r)
	}
	switch c.op {
	case ">":
		return lf > rf, nil
	case "<":
		return lf < rf, nil
	case ">=":
		return lf >= rf, nil
	default:
		return lf <= rf, nil
	}
}

// findOperator locates the first comparison operator outside quotes and brackets
func findOperator(expr string) (int, string) {
	var quote byte
	depth := 0
	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
			continue
		case ch == '\'' || ch == '"':
			quote = ch
			continue
		case ch == '[' || ch == '(':
			depth++
			continue
		case ch == ']' || ch == ')':
			depth--
			continue
		}
		if depth > 0 {
			continue
		}
		for _, op := range comparisonOps {
			if strings.HasPrefix(expr[i:], op) {
				return i, op
			}
		}
	}
	return -1, ""
}

func parseOperand(raw string) (operand, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return operand{}, fmt.Errorf("missing operand")
	}
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return operand{literal: s[1 : len(s)-1]}, nil
	}
	switch s {
	case "true":
		return operand{literal: true}, nil
	case "false":
		return operand{literal: false}, nil
	case "null", "nil":
		return operand{}, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return operand{literal: f}, nil
	}
	path := s
	if !strings.HasPrefix(path, "$") {
		path = "$." + path
	}
	x, err := jp.ParseString(path)
	if err != nil {
		return operand{}, fmt.Errorf("invalid path %q: %w", s, err)
	}
	return operand{path: x}, nil
}

func (o operand) resolve(output map[string]any) any {
	if o.path == nil {
		return o.literal
	}
	if output == nil {
		return nil
	}
	got := o.path.Get(output)
	if len(got) == 0 {
		return nil
	}
	return got[0]
}

func equal(l, r any) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	if lf, ok := toFloat(l); ok {
		if rf, ok := toFloat(r); ok {
			return lf == rf
		}
	}
	if lb, ok := l.(bool); ok {
		if rb, ok := r.(bool); ok {
			return lb == rb
		}
	}
	return fmt.Sprint(l) == fmt.Sprint(r)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && !strings.EqualFold(t, "false")
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
