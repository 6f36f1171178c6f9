package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dispatchworks/taskhub/backend/internal/types"
)

// Evaluate applies a single condition to a flat field map. It returns whether
// the condition matched and a human-readable reason for diagnostics. The
// reason is never used for control flow. Evaluate has no side effects.
func Evaluate(cond types.RoutingCondition, fields map[string]string) (bool, string) {
	raw, present := fields[cond.Field]
	present = present && raw != ""

	// exists/not_exists test presence only and ignore negate
	switch cond.Operator {
	case types.OpExists:
		if present {
			return true, fmt.Sprintf("field %q exists", cond.Field)
		}
		return false, fmt.Sprintf("field %q is missing or empty", cond.Field)
	case types.OpNotExists:
		if !present {
			return true, fmt.Sprintf("field %q does not exist", cond.Field)
		}
		return false, fmt.Sprintf("field %q is present", cond.Field)
	}

	matched, reason := applyOperator(cond, raw)
	if cond.Negate {
		matched = !matched
		reason = "negated: " + reason
	}
	return matched, reason
}

func applyOperator(cond types.RoutingCondition, raw string) (bool, string) {
	want := valueString(cond.Value)

	switch cond.Operator {
	case types.OpEquals:
		if raw == want {
			return true, fmt.Sprintf("%q equals %q", raw, want)
		}
		return false, fmt.Sprintf("%q does not equal %q", raw, want)

	case types.OpNotEquals:
		if raw != want {
			return true, fmt.Sprintf("%q differs from %q", raw, want)
		}
		return false, fmt.Sprintf("%q equals %q", raw, want)

	case types.OpContains:
		if strings.Contains(raw, want) {
			return true, fmt.Sprintf("%q contains %q", raw, want)
		}
		return false, fmt.Sprintf("%q does not contain %q", raw, want)

	case types.OpStartsWith:
		if strings.HasPrefix(raw, want) {
			return true, fmt.Sprintf("%q starts with %q", raw, want)
		}
		return false, fmt.Sprintf("%q does not start with %q", raw, want)

	case types.OpEndsWith:
		if strings.HasSuffix(raw, want) {
			return true, fmt.Sprintf("%q ends with %q", raw, want)
		}
		return false, fmt.Sprintf("%q does not end with %q", raw, want)

	case types.OpMatches:
		re, err := regexp.Compile(want)
		if err != nil {
			return false, fmt.Sprintf("invalid pattern %q: %v", want, err)
		}
		if re.MatchString(raw) {
			return true, fmt.Sprintf("%q matches %q", raw, want)
		}
		return false, fmt.Sprintf("%q does not match %q", raw, want)

	case types.OpIn:
		list := valueList(cond.Value)
		for _, v := range list {
			if raw == v {
				return true, fmt.Sprintf("%q is in %v", raw, list)
			}
		}
		return false, fmt.Sprintf("%q is not in %v", raw, list)

	case types.OpNotIn:
		list := valueList(cond.Value)
		for _, v := range list {
			if raw == v {
				return false, fmt.Sprintf("%q is in %v", raw, list)
			}
		}
		return true, fmt.Sprintf("%q is not in %v", raw, list)

	case types.OpGreaterThan, types.OpGreaterOrEqual, types.OpLessThan, types.OpLessOrEqual:
		return compareNumeric(cond.Operator, raw, want)

	case types.OpBetween:
		return betweenNumeric(raw, cond.Value)

	default:
		return false, fmt.Sprintf("unknown operator %q", cond.Operator)
	}
}

// compareNumeric coerces both sides to numbers. Non-numeric input on a
// numeric operator is a non-match, not an error.
func compareNumeric(op types.ConditionOperator, raw, want string) (bool, string) {
	a, errA := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	b, errB := strconv.ParseFloat(strings.TrimSpace(want), 64)
	if errA != nil || errB != nil {
		return false, fmt.Sprintf("non-numeric comparison: %q vs %q", raw, want)
	}

	var matched bool
	switch op {
	case types.OpGreaterThan:
		matched = a > b
	case types.OpGreaterOrEqual:
		matched = a >= b
	case types.OpLessThan:
		matched = a < b
	case types.OpLessOrEqual:
		matched = a <= b
	}
	if matched {
		return true, fmt.Sprintf("%v %s %v", a, op, b)
	}
	return false, fmt.Sprintf("%v is not %s %v", a, op, b)
}

// betweenNumeric is inclusive on both bounds
func betweenNumeric(raw string, bounds any) (bool, string) {
	list := valueList(bounds)
	if len(list) != 2 {
		return false, fmt.Sprintf("between requires two bounds, got %d", len(list))
	}
	a, errA := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	lo, errLo := strconv.ParseFloat(strings.TrimSpace(list[0]), 64)
	hi, errHi := strconv.ParseFloat(strings.TrimSpace(list[1]), 64)
	if errA != nil || errLo != nil || errHi != nil {
		return false, fmt.Sprintf("non-numeric between: %q vs %v", raw, list)
	}
	if a >= lo && a <= hi {
		return true, fmt.Sprintf("%v is between %v and %v", a, lo, hi)
	}
	return false, fmt.Sprintf("%v is not between %v and %v", a, lo, hi)
}

// valueString renders a condition value as a comparable string
func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// valueList renders a condition value as a list of comparable strings.
// Scalars become single-element lists so "in" with one value still works.
func valueList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, valueString(item))
		}
		return out
	default:
		return []string{valueString(v)}
	}
}
