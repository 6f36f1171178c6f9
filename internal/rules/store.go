package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/google/uuid"
)

// PipelineStore holds all pipelines and their rules in memory. All mutations
// run under one mutex, so rule counters and rule lists never interleave.
type PipelineStore struct {
	pipelines map[string]*types.Pipeline
	mu        sync.RWMutex
}

// NewPipelineStore creates an empty pipeline store
func NewPipelineStore() *PipelineStore {
	return &PipelineStore{
		pipelines: make(map[string]*types.Pipeline),
	}
}

// Create registers a new pipeline. Names must be unique.
func (s *PipelineStore) Create(p *types.Pipeline) (*types.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(p.Name) == "" {
		return nil, types.NewValidation("pipeline name is required")
	}
	for _, existing := range s.pipelines {
		if strings.EqualFold(existing.Name, p.Name) {
			return nil, types.NewConflict(fmt.Sprintf("pipeline %q already exists", p.Name))
		}
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.DefaultRouting.Behavior == "" {
		p.DefaultRouting.Behavior = types.DefaultReject
	}
	s.pipelines[p.ID] = p
	return p, nil
}

// Get returns a pipeline by id
func (s *PipelineStore) Get(id string) (*types.Pipeline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pipelines[id]
	return p, ok
}

// List returns all pipelines
func (s *PipelineStore) List() []*types.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Pipeline, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		out = append(out, p)
	}
	return out
}

// Update replaces a pipeline's configuration, keeping its rules
func (s *PipelineStore) Update(p *types.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.pipelines[p.ID]
	if !ok {
		return types.NewNotFound("pipeline not found")
	}
	if strings.TrimSpace(p.Name) == "" {
		return types.NewValidation("pipeline name is required")
	}
	for id, other := range s.pipelines {
		if id != p.ID && strings.EqualFold(other.Name, p.Name) {
			return types.NewConflict(fmt.Sprintf("pipeline %q already exists", p.Name))
		}
	}
	if p.DefaultRouting.Behavior == "" {
		p.DefaultRouting.Behavior = types.DefaultReject
	}
	p.Rules = existing.Rules
	s.pipelines[p.ID] = p
	return nil
}

// Delete removes a pipeline
func (s *PipelineStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pipelines[id]; !ok {
		return types.NewNotFound("pipeline not found")
	}
	delete(s.pipelines, id)
	return nil
}

// AddRule appends a rule to a pipeline. Rule conditions must name known
// operators; condition logic defaults to AND.
func (s *PipelineStore) AddRule(pipelineID string, rule *types.RoutingRule) (*types.RoutingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pipelines[pipelineID]
	if !ok {
		return nil, types.NewNotFound("pipeline not found")
	}
	if strings.TrimSpace(rule.Name) == "" {
		return nil, types.NewValidation("rule name is required")
	}
	for _, existing := range p.Rules {
		if strings.EqualFold(existing.Name, rule.Name) {
			return nil, types.NewConflict(fmt.Sprintf("rule %q already exists in pipeline", rule.Name))
		}
	}
	for _, cond := range rule.Conditions {
		if !cond.Operator.Valid() {
			return nil, types.NewValidation(fmt.Sprintf("unknown operator %q", cond.Operator))
		}
		if cond.Field == "" {
			return nil, types.NewValidation("condition field is required")
		}
	}
	if rule.ConditionLogic == "" {
		rule.ConditionLogic = types.LogicAnd
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	p.Rules = append(p.Rules, rule)
	return rule, nil
}

// UpdateRule replaces an existing rule's configuration, preserving counters
func (s *PipelineStore) UpdateRule(pipelineID string, rule *types.RoutingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pipelines[pipelineID]
	if !ok {
		return types.NewNotFound("pipeline not found")
	}
	for i, existing := range p.Rules {
		if existing.ID == rule.ID {
			rule.MatchCount = existing.MatchCount
			rule.LastMatchedAt = existing.LastMatchedAt
			if rule.ConditionLogic == "" {
				rule.ConditionLogic = types.LogicAnd
			}
			p.Rules[i] = rule
			return nil
		}
	}
	return types.NewNotFound("rule not found")
}

// DeleteRule removes a rule from a pipeline
func (s *PipelineStore) DeleteRule(pipelineID, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pipelines[pipelineID]
	if !ok {
		return types.NewNotFound("pipeline not found")
	}
	for i, existing := range p.Rules {
		if existing.ID == ruleID {
			p.Rules = append(p.Rules[:i], p.Rules[i+1:]...)
			return nil
		}
	}
	return types.NewNotFound("rule not found")
}

// withPipeline runs fn with the pipeline held under the store lock. Routing
// goes through here so rule counter updates never race.
func (s *PipelineStore) withPipeline(id string, fn func(*types.Pipeline) types.RouteResult) types.RouteResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pipelines[id]
	if !ok {
		return types.RouteResult{
			Status:      types.RouteStatusUnrouted,
			Diagnostics: types.RouteDiagnostics{Reason: fmt.Sprintf("pipeline %q not found", id)},
		}
	}
	return fn(p)
}
