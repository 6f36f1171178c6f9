package rules

import "github.com/dispatchworks/taskhub/backend/internal/types"

// OperatorInfo describes one condition operator for configuration UIs.
// This metadata is separate from the evaluation contract itself.
type OperatorInfo struct {
	ID          types.ConditionOperator `json:"id"`
	Label       string                  `json:"label"`
	NeedsValue  bool                    `json:"needsValue"`
	ValueIsList bool                    `json:"valueIsList"`
}

// FieldInfo describes a commonly mapped record field for configuration UIs.
// Conditions may reference any field, not only those listed here.
type FieldInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ActionInfo describes a default-routing behavior for configuration UIs
type ActionInfo struct {
	ID    types.DefaultBehavior `json:"id"`
	Label string                `json:"label"`
}

// Operators returns UI metadata for all supported operators
func Operators() []OperatorInfo {
	return []OperatorInfo{
		{types.OpEquals, "Equals", true, false},
		{types.OpNotEquals, "Does not equal", true, false},
		{types.OpContains, "Contains", true, false},
		{types.OpStartsWith, "Starts with", true, false},
		{types.OpEndsWith, "Ends with", true, false},
		{types.OpMatches, "Matches regex", true, false},
		{types.OpIn, "In list", true, true},
		{types.OpNotIn, "Not in list", true, true},
		{types.OpGreaterThan, "Greater than", true, false},
		{types.OpGreaterOrEqual, "Greater or equal", true, false},
		{types.OpLessThan, "Less than", true, false},
		{types.OpLessOrEqual, "Less or equal", true, false},
		{types.OpBetween, "Between (inclusive)", true, true},
		{types.OpExists, "Exists", false, false},
		{types.OpNotExists, "Does not exist", false, false},
	}
}

// Fields returns UI metadata for the standard draft fields
func Fields() []FieldInfo {
	return []FieldInfo{
		{"externalId", "External ID"},
		{"workType", "Work type"},
		{"priority", "Priority"},
		{"title", "Title"},
		{"customerId", "Customer ID"},
		{"region", "Region"},
		{"channel", "Channel"},
	}
}

// Actions returns UI metadata for default-routing behaviors
func Actions() []ActionInfo {
	return []ActionInfo{
		{types.DefaultRouteToQueue, "Route to default queue"},
		{types.DefaultReject, "Reject"},
		{types.DefaultHold, "Hold with timeout"},
	}
}
