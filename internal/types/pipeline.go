package types

import "time"

// ConditionOperator identifies how a condition compares a record field to its value
type ConditionOperator string

const (
	OpEquals         ConditionOperator = "equals"
	OpNotEquals      ConditionOperator = "not_equals"
	OpContains       ConditionOperator = "contains"
	OpStartsWith     ConditionOperator = "starts_with"
	OpEndsWith       ConditionOperator = "ends_with"
	OpMatches        ConditionOperator = "matches"
	OpIn             ConditionOperator = "in"
	OpNotIn          ConditionOperator = "not_in"
	OpGreaterThan    ConditionOperator = "greater_than"
	OpGreaterOrEqual ConditionOperator = "greater_or_equal"
	OpLessThan       ConditionOperator = "less_than"
	OpLessOrEqual    ConditionOperator = "less_or_equal"
	OpBetween        ConditionOperator = "between"
	OpExists         ConditionOperator = "exists"
	OpNotExists      ConditionOperator = "not_exists"
)

// AllOperators lists every supported condition operator
var AllOperators = []ConditionOperator{
	OpEquals, OpNotEquals, OpContains, OpStartsWith, OpEndsWith, OpMatches,
	OpIn, OpNotIn,
	OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpBetween,
	OpExists, OpNotExists,
}

// Valid reports whether op is a known operator
func (op ConditionOperator) Valid() bool {
	for _, known := range AllOperators {
		if op == known {
			return true
		}
	}
	return false
}

// ConditionLogic controls how a rule combines its conditions
type ConditionLogic string

const (
	LogicAnd ConditionLogic = "AND"
	LogicOr  ConditionLogic = "OR"
)

// RoutingCondition is a single field test within a routing rule.
// Field may name any column of the source record, not a fixed schema.
type RoutingCondition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value,omitempty"`
	Negate   bool              `json:"negate,omitempty"`
}

// RoutingRule maps a prioritized condition set to a target queue
type RoutingRule struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Enabled        bool               `json:"enabled"`
	Priority       int                `json:"priority"` // lower evaluates first
	Conditions     []RoutingCondition `json:"conditions"`
	ConditionLogic ConditionLogic     `json:"conditionLogic"`
	TargetQueueID  string             `json:"targetQueueId"`
	PriorityBoost  *int               `json:"priorityBoost,omitempty"` // overrides item priority when set
	AddSkills      []string           `json:"addSkills,omitempty"`

	MatchCount    int64      `json:"matchCount"`
	LastMatchedAt *time.Time `json:"lastMatchedAt,omitempty"`
}

// DefaultBehavior is what a pipeline does with records no rule matched
type DefaultBehavior string

const (
	DefaultRouteToQueue DefaultBehavior = "route_to_queue"
	DefaultReject       DefaultBehavior = "reject"
	DefaultHold         DefaultBehavior = "hold"
)

// HoldAction resolves a held record once its hold window expires
type HoldAction string

const (
	HoldThenRoute  HoldAction = "route_to_queue"
	HoldThenReject HoldAction = "reject"
)

// DefaultRouting configures the fall-through behavior of a pipeline
type DefaultRouting struct {
	Behavior          DefaultBehavior `json:"behavior"`
	DefaultQueueID    string          `json:"defaultQueueId,omitempty"`
	HoldTimeoutSecs   int             `json:"holdTimeoutSecs,omitempty"`
	HoldTimeoutAction HoldAction      `json:"holdTimeoutAction,omitempty"`
}

// Pipeline is a named routing domain owning queues and rules
type Pipeline struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Rules              []*RoutingRule `json:"rules"`
	DefaultRouting     DefaultRouting `json:"defaultRouting"`
	AllowedWorkTypes   []string       `json:"allowedWorkTypes,omitempty"`
	DefaultPriority    int            `json:"defaultPriority"`
	DefaultTimeoutSecs int            `json:"defaultTimeoutSecs"`
	AutoAccept         bool           `json:"autoAccept"`
}

// RouteStatus is the outcome class of a routing attempt
type RouteStatus string

const (
	RouteStatusRouted   RouteStatus = "routed"
	RouteStatusUnrouted RouteStatus = "unrouted"
	RouteStatusHeld     RouteStatus = "held"
)

// RouteDiagnostics explains why routing resolved the way it did.
// On a non-match it carries the record's available fields and the first
// condition failure seen, for operator troubleshooting.
type RouteDiagnostics struct {
	Reason          string   `json:"reason,omitempty"`
	AvailableFields []string `json:"availableFields,omitempty"`
	FirstFailure    string   `json:"firstFailure,omitempty"`
}

// RouteResult is the outcome of routing one record through a pipeline
type RouteResult struct {
	Status        RouteStatus      `json:"status"`
	QueueID       string           `json:"queueId,omitempty"`
	RuleID        string           `json:"ruleId,omitempty"`
	RuleName      string           `json:"ruleName,omitempty"`
	PriorityBoost *int             `json:"-"`
	AddSkills     []string         `json:"-"`
	HeldUntil     *time.Time       `json:"heldUntil,omitempty"`
	Diagnostics   RouteDiagnostics `json:"diagnostics"`
}
