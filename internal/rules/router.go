package rules

import (
	"fmt"
	"sort"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/rs/zerolog"
)

// Router evaluates a pipeline's routing rules against incoming records.
// Mutations of rule match counters go through the owning PipelineStore lock,
// so one Route call never interleaves with another for the same pipeline.
type Router struct {
	store  *PipelineStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewRouter creates a Router backed by the given pipeline store
func NewRouter(store *PipelineStore, logger zerolog.Logger) *Router {
	return &Router{
		store:  store,
		logger: logger.With().Str("component", "router").Logger(),
		now:    time.Now,
	}
}

// Route assigns one record to a queue. Enabled rules are evaluated in
// ascending priority order (insertion order breaks ties); the first match
// wins. When no rule matches, the pipeline's default-routing behavior
// applies. Non-match diagnostics carry the record's available fields and the
// first condition failure seen.
func (r *Router) Route(pipelineID string, fields map[string]string) types.RouteResult {
	result := r.store.withPipeline(pipelineID, func(p *types.Pipeline) types.RouteResult {
		return r.routeLocked(p, fields, true)
	})
	return result
}

// Preview evaluates routing for a record without recording the match:
// rule counters and last-matched timestamps stay untouched. Backs the
// dry-run rule tester.
func (r *Router) Preview(pipelineID string, fields map[string]string) types.RouteResult {
	result := r.store.withPipeline(pipelineID, func(p *types.Pipeline) types.RouteResult {
		return r.routeLocked(p, fields, false)
	})
	return result
}

func (r *Router) routeLocked(p *types.Pipeline, fields map[string]string, record bool) types.RouteResult {
	ordered := orderedRules(p.Rules)

	var firstFailure string
	for _, rule := range ordered {
		matched, failure := r.evalRule(rule, fields)
		if matched {
			if record {
				rule.MatchCount++
				now := r.now()
				rule.LastMatchedAt = &now
			}

			r.logger.Debug().
				Str("pipeline_id", p.ID).
				Str("rule_id", rule.ID).
				Str("queue_id", rule.TargetQueueID).
				Msg("record matched rule")

			return types.RouteResult{
				Status:        types.RouteStatusRouted,
				QueueID:       rule.TargetQueueID,
				RuleID:        rule.ID,
				RuleName:      rule.Name,
				PriorityBoost: rule.PriorityBoost,
				AddSkills:     rule.AddSkills,
				Diagnostics:   types.RouteDiagnostics{Reason: fmt.Sprintf("matched rule %q", rule.Name)},
			}
		}
		if firstFailure == "" && failure != "" {
			firstFailure = fmt.Sprintf("rule %q: %s", rule.Name, failure)
		}
	}

	diag := types.RouteDiagnostics{
		AvailableFields: fieldNames(fields),
		FirstFailure:    firstFailure,
	}

	switch p.DefaultRouting.Behavior {
	case types.DefaultRouteToQueue:
		diag.Reason = "no rule matched, default routing applied"
		return types.RouteResult{
			Status:      types.RouteStatusRouted,
			QueueID:     p.DefaultRouting.DefaultQueueID,
			Diagnostics: diag,
		}
	case types.DefaultHold:
		held := r.now().Add(time.Duration(p.DefaultRouting.HoldTimeoutSecs) * time.Second)
		diag.Reason = "no rule matched, record held"
		return types.RouteResult{
			Status:      types.RouteStatusHeld,
			HeldUntil:   &held,
			Diagnostics: diag,
		}
	default: // reject
		diag.Reason = "no rule matched, record rejected"
		return types.RouteResult{Status: types.RouteStatusUnrouted, Diagnostics: diag}
	}
}

// ResolveHold re-evaluates a held result once its window has passed. Hold
// expiry is checked lazily per poll; there is no background clock.
func (r *Router) ResolveHold(pipelineID string, result types.RouteResult) types.RouteResult {
	if result.Status != types.RouteStatusHeld || result.HeldUntil == nil {
		return result
	}
	if r.now().Before(*result.HeldUntil) {
		return result
	}

	p, ok := r.store.Get(pipelineID)
	if !ok {
		result.Status = types.RouteStatusUnrouted
		result.Diagnostics.Reason = "hold expired, pipeline no longer exists"
		return result
	}

	switch p.DefaultRouting.HoldTimeoutAction {
	case types.HoldThenRoute:
		result.Status = types.RouteStatusRouted
		result.QueueID = p.DefaultRouting.DefaultQueueID
		result.Diagnostics.Reason = "hold expired, routed to default queue"
	default:
		result.Status = types.RouteStatusUnrouted
		result.Diagnostics.Reason = "hold expired, record rejected"
	}
	result.HeldUntil = nil
	return result
}

// evalRule evaluates all conditions of one rule per its condition logic.
// Returns the first failure reason when the rule does not match.
func (r *Router) evalRule(rule *types.RoutingRule, fields map[string]string) (bool, string) {
	if len(rule.Conditions) == 0 {
		// A rule with no conditions matches everything.
		return true, ""
	}

	if rule.ConditionLogic == types.LogicOr {
		var firstFailure string
		for _, cond := range rule.Conditions {
			matched, reason := Evaluate(cond, fields)
			if matched {
				return true, ""
			}
			if firstFailure == "" {
				firstFailure = reason
			}
		}
		return false, firstFailure
	}

	// AND: all must match
	for _, cond := range rule.Conditions {
		matched, reason := Evaluate(cond, fields)
		if !matched {
			return false, reason
		}
	}
	return true, ""
}

// orderedRules returns enabled rules sorted by ascending priority, stable on
// insertion order for ties. Disabled rules are skipped entirely and never
// counted.
func orderedRules(all []*types.RoutingRule) []*types.RoutingRule {
	enabled := make([]*types.RoutingRule, 0, len(all))
	for _, rule := range all {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority < enabled[j].Priority
	})
	return enabled
}

func fieldNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
