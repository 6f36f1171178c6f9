package rules

import (
	"testing"

	"github.com/dispatchworks/taskhub/backend/internal/types"
)

func TestEvaluateStringOperators(t *testing.T) {
	fields := map[string]string{
		"workType": "ORDERS",
		"customer": "ACME Corp",
		"email":    "billing@acme.example",
	}

	tests := []struct {
		name string
		cond types.RoutingCondition
		want bool
	}{
		{"equals match", types.RoutingCondition{Field: "workType", Operator: types.OpEquals, Value: "ORDERS"}, true},
		{"equals case sensitive", types.RoutingCondition{Field: "workType", Operator: types.OpEquals, Value: "orders"}, false},
		{"not_equals", types.RoutingCondition{Field: "workType", Operator: types.OpNotEquals, Value: "CLAIMS"}, true},
		{"contains", types.RoutingCondition{Field: "customer", Operator: types.OpContains, Value: "ACME"}, true},
		{"contains miss", types.RoutingCondition{Field: "customer", Operator: types.OpContains, Value: "globex"}, false},
		{"starts_with", types.RoutingCondition{Field: "email", Operator: types.OpStartsWith, Value: "billing@"}, true},
		{"ends_with", types.RoutingCondition{Field: "email", Operator: types.OpEndsWith, Value: ".example"}, true},
		{"matches", types.RoutingCondition{Field: "email", Operator: types.OpMatches, Value: `^[a-z]+@acme\.`}, true},
		{"matches invalid pattern is non-match", types.RoutingCondition{Field: "email", Operator: types.OpMatches, Value: `([`}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := Evaluate(tt.cond, fields)
			if got != tt.want {
				t.Errorf("expected %v, got %v (reason: %s)", tt.want, got, reason)
			}
			if reason == "" {
				t.Error("expected a non-empty reason")
			}
		})
	}
}

func TestEvaluateNumericOperators(t *testing.T) {
	fields := map[string]string{
		"priority": "9",
		"amount":   "150.5",
		"notes":    "not a number",
	}

	tests := []struct {
		name string
		cond types.RoutingCondition
		want bool
	}{
		{"greater_than", types.RoutingCondition{Field: "priority", Operator: types.OpGreaterThan, Value: "8"}, true},
		{"greater_than equal value", types.RoutingCondition{Field: "priority", Operator: types.OpGreaterThan, Value: "9"}, false},
		{"greater_or_equal", types.RoutingCondition{Field: "priority", Operator: types.OpGreaterOrEqual, Value: 9}, true},
		{"less_than", types.RoutingCondition{Field: "amount", Operator: types.OpLessThan, Value: "200"}, true},
		{"less_or_equal", types.RoutingCondition{Field: "amount", Operator: types.OpLessOrEqual, Value: "150.5"}, true},
		{"numeric value as float64", types.RoutingCondition{Field: "priority", Operator: types.OpGreaterThan, Value: float64(8)}, true},
		{"non-numeric input is non-match not error", types.RoutingCondition{Field: "notes", Operator: types.OpGreaterThan, Value: "5"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := Evaluate(tt.cond, fields)
			if got != tt.want {
				t.Errorf("expected %v, got %v (reason: %s)", tt.want, got, reason)
			}
		})
	}
}

func TestEvaluateBetweenInclusive(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"below lower bound", "4", false},
		{"exactly lower bound", "5", true},
		{"inside", "7", true},
		{"exactly upper bound", "10", true},
		{"above upper bound", "11", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := types.RoutingCondition{
				Field:    "priority",
				Operator: types.OpBetween,
				Value:    []any{"5", "10"},
			}
			got, _ := Evaluate(cond, map[string]string{"priority": tt.value})
			if got != tt.want {
				t.Errorf("between(5,10) with %s: expected %v, got %v", tt.value, tt.want, got)
			}
		})
	}
}

func TestEvaluateInNotIn(t *testing.T) {
	fields := map[string]string{"region": "EMEA"}

	cond := types.RoutingCondition{Field: "region", Operator: types.OpIn, Value: []any{"EMEA", "APAC"}}
	if got, _ := Evaluate(cond, fields); !got {
		t.Error("expected EMEA to be in list")
	}

	cond = types.RoutingCondition{Field: "region", Operator: types.OpNotIn, Value: []any{"AMER"}}
	if got, _ := Evaluate(cond, fields); !got {
		t.Error("expected EMEA to not be in [AMER]")
	}

	cond = types.RoutingCondition{Field: "region", Operator: types.OpIn, Value: "EMEA"}
	if got, _ := Evaluate(cond, fields); !got {
		t.Error("expected scalar in-value to behave as single-element list")
	}
}

func TestEvaluateExistsIgnoresNegate(t *testing.T) {
	fields := map[string]string{"present": "x", "empty": ""}

	tests := []struct {
		name string
		cond types.RoutingCondition
		want bool
	}{
		{"exists on present field", types.RoutingCondition{Field: "present", Operator: types.OpExists}, true},
		{"exists on empty field", types.RoutingCondition{Field: "empty", Operator: types.OpExists}, false},
		{"exists on missing field", types.RoutingCondition{Field: "missing", Operator: types.OpExists}, false},
		{"not_exists on missing field", types.RoutingCondition{Field: "missing", Operator: types.OpNotExists}, true},
		{"exists with negate still tests presence", types.RoutingCondition{Field: "present", Operator: types.OpExists, Negate: true}, true},
		{"not_exists with negate still tests absence", types.RoutingCondition{Field: "missing", Operator: types.OpNotExists, Negate: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Evaluate(tt.cond, fields)
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEvaluateNegateInvertsResult(t *testing.T) {
	fields := map[string]string{"workType": "ORDERS"}

	cond := types.RoutingCondition{Field: "workType", Operator: types.OpEquals, Value: "ORDERS", Negate: true}
	if got, _ := Evaluate(cond, fields); got {
		t.Error("negated equals on matching value should be false")
	}

	cond = types.RoutingCondition{Field: "workType", Operator: types.OpEquals, Value: "CLAIMS", Negate: true}
	if got, _ := Evaluate(cond, fields); !got {
		t.Error("negated equals on non-matching value should be true")
	}
}
