// Package condition evaluates the single-comparison expressions carried by
// condition nodes. Nothing is ever executed: an expression is two operands
// around one operator.
package condition

import (
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/warriorguo/autoflow/resolve"
	"github.com/warriorguo/autoflow/types"
)

// operators are ordered so that longer tokens match first.
var operators = []string{"===", "!==", "==", "!=", "<=", ">=", "<", ">"}

type Result struct {
	Value bool
	// Expression is the condition with its placeholders resolved, for display.
	Expression string
	Warnings   []*types.TemplateResolutionWarning
}

// Evaluate reads config.condition of a condition node. Malformed expressions
// return false together with a *types.ConditionEvaluationError.
func Evaluate(node *types.Node, outputs types.OutputStore) (*Result, error) {
	expr, _ := node.Config.GetString(types.ConfigCondition)
	return EvaluateExpression(expr, outputs)
}

func EvaluateExpression(expr string, outputs types.OutputStore) (*Result, error) {
	res := &Result{}
	res.Expression, res.Warnings = resolve.String(expr, outputs)

	fail := func(reason string) (*Result, error) {
		res.Value = false
		return res, &types.ConditionEvaluationError{Expression: expr, Reason: reason}
	}

	if strings.TrimSpace(expr) == "" {
		return fail("empty expression")
	}
	left, op, right, err := split(expr)
	if err != "" {
		return fail(err)
	}

	if op == "" {
		v, ok := operand(left, outputs)
		if !ok {
			return fail("malformed operand " + strings.TrimSpace(left))
		}
		b, isBool := asBool(v)
		if !isBool {
			return fail("expression has no comparison operator")
		}
		res.Value = b
		return res, nil
	}

	lv, ok := operand(left, outputs)
	if !ok {
		return fail("malformed left operand " + strings.TrimSpace(left))
	}
	rv, ok := operand(right, outputs)
	if !ok {
		return fail("malformed right operand " + strings.TrimSpace(right))
	}
	res.Value = compare(lv, op, rv)
	return res, nil
}

// split finds the single operator outside quotes and placeholders.
func split(expr string) (left, op, right, errReason string) {
	var quote byte
	depth := 0
	pos := -1
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		case strings.HasPrefix(expr[i:], "{{"):
			depth++
			i++
			continue
		case strings.HasPrefix(expr[i:], "}}") && depth > 0:
			depth--
			i++
			continue
		case depth > 0:
			continue
		case c == '"' || c == '\'':
			quote = c
			continue
		}
		for _, candidate := range operators {
			if strings.HasPrefix(expr[i:], candidate) {
				if pos >= 0 {
					return "", "", "", "more than one comparison operator"
				}
				pos, op = i, candidate
				i += len(candidate) - 1
				break
			}
		}
	}
	if quote != 0 {
		return "", "", "", "unterminated string literal"
	}
	if depth != 0 {
		return "", "", "", "unterminated placeholder"
	}
	if pos < 0 {
		return expr, "", "", ""
	}
	return expr[:pos], op, expr[pos+len(op):], ""
}

// operand turns one side of the comparison into a value.
func operand(raw string, outputs types.OutputStore) (any, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}
	if ref, ok := resolve.SingleReference(s); ok {
		v, w := resolve.Lookup(ref, outputs)
		if w != nil {
			return "", true
		}
		return v, true
	}
	if resolve.HasPlaceholder(s) {
		if isQuoted(s) {
			s = s[1 : len(s)-1]
		}
		resolved, _ := resolve.String(s, outputs)
		return resolved, true
	}
	if isQuoted(s) {
		unquoted, err := strconv.Unquote(`"` + strings.ReplaceAll(s[1:len(s)-1], `"`, `\"`) + `"`)
		if err != nil {
			return s[1 : len(s)-1], true
		}
		return unquoted, true
	}
	switch s {
	case "true":
		return true, true
	case "false":
		return false, true
	case "null", "undefined":
		return nil, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	return nil, false
}

func isQuoted(s string) bool {
	return len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0]
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.TrimSpace(b) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// asNumber is strict about bools so that true never equals 1.
func asNumber(v any) (float64, bool) {
	switch v.(type) {
	case nil, bool:
		return 0, false
	case string:
		if strings.TrimSpace(v.(string)) == "" {
			return 0, false
		}
	}
	f, err := cast.ToFloat64E(v)
	return f, err == nil
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func strictEqual(l, r any) bool {
	switch {
	case l == nil || r == nil:
		return l == nil && r == nil
	case isNumeric(l) && isNumeric(r):
		return cast.ToFloat64(l) == cast.ToFloat64(r)
	}
	lb, lok := l.(bool)
	rb, rok := r.(bool)
	if lok || rok {
		return lok && rok && lb == rb
	}
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		return ls == rs
	}
	return false
}

func looseEqual(l, r any) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	if lf, ok := asNumber(l); ok {
		if rf, ok := asNumber(r); ok {
			return lf == rf
		}
	}
	return resolve.Stringify(l) == resolve.Stringify(r)
}

func compare(l any, op string, r any) bool {
	switch op {
	case "===":
		return strictEqual(l, r)
	case "!==":
		return !strictEqual(l, r)
	case "==":
		return looseEqual(l, r)
	case "!=":
		return !looseEqual(l, r)
	}

	var c int
	lf, lok := asNumber(l)
	rf, rok := asNumber(r)
	if lok && rok {
		switch {
		case lf < rf:
			c = -1
		case lf > rf:
			c = 1
		}
	} else {
		c = strings.Compare(resolve.Stringify(l), resolve.Stringify(r))
	}

	switch op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}
