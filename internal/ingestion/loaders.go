package ingestion

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/google/uuid"
)

// maxRunHistory bounds the retained run reports per loader
const maxRunHistory = 50

// LoaderStore keeps volume loader configurations and their run history
type LoaderStore struct {
	loaders map[string]*types.VolumeLoader
	runs    map[string][]*types.VolumeLoaderRun // loaderID -> newest first
	mu      sync.RWMutex
}

// NewLoaderStore creates an empty loader store
func NewLoaderStore() *LoaderStore {
	return &LoaderStore{
		loaders: make(map[string]*types.VolumeLoader),
		runs:    make(map[string][]*types.VolumeLoaderRun),
	}
}

// Create registers a new volume loader
func (s *LoaderStore) Create(cfg *types.VolumeLoader) (*types.VolumeLoader, error) {
	if err := validateLoader(cfg); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.loaders {
		if strings.EqualFold(existing.Name, cfg.Name) {
			return nil, types.NewConflict(fmt.Sprintf("loader named %q already exists", cfg.Name))
		}
	}

	cfg.ID = uuid.New().String()
	cfg.Status = types.LoaderIdle
	if cfg.Schedule.IntervalSecs > 0 {
		cfg.Status = types.LoaderScheduled
	}
	cfg.Stats = types.LoaderStats{}
	s.loaders[cfg.ID] = cfg
	return cfg, nil
}

// Get returns a loader by id
func (s *LoaderStore) Get(id string) (*types.VolumeLoader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loader, ok := s.loaders[id]
	return loader, ok
}

// List returns all loaders sorted by name
func (s *LoaderStore) List() []*types.VolumeLoader {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.VolumeLoader, 0, len(s.loaders))
	for _, loader := range s.loaders {
		out = append(out, loader)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Update replaces a loader's configuration, preserving id, stats and status
func (s *LoaderStore) Update(cfg *types.VolumeLoader) error {
	if err := validateLoader(cfg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.loaders[cfg.ID]
	if !ok {
		return types.NewNotFound("loader not found")
	}
	for _, other := range s.loaders {
		if other.ID != cfg.ID && strings.EqualFold(other.Name, cfg.Name) {
			return types.NewConflict(fmt.Sprintf("loader named %q already exists", cfg.Name))
		}
	}
	cfg.Stats = existing.Stats
	cfg.Status = existing.Status
	if existing.Status != types.LoaderDisabled && existing.Status != types.LoaderRunning {
		if cfg.Schedule.IntervalSecs > 0 {
			cfg.Status = types.LoaderScheduled
		} else {
			cfg.Status = types.LoaderIdle
		}
	}
	s.loaders[cfg.ID] = cfg
	return nil
}

// Delete removes a loader and its run history
func (s *LoaderStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.loaders[id]; !ok {
		return types.NewNotFound("loader not found")
	}
	delete(s.loaders, id)
	delete(s.runs, id)
	return nil
}

// SetEnabled flips a loader between DISABLED and its natural status
func (s *LoaderStore) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loader, ok := s.loaders[id]
	if !ok {
		return types.NewNotFound("loader not found")
	}
	if !enabled {
		loader.Status = types.LoaderDisabled
		return nil
	}
	if loader.Schedule.IntervalSecs > 0 {
		loader.Status = types.LoaderScheduled
	} else {
		loader.Status = types.LoaderIdle
	}
	return nil
}

// SetStatus records a transient status change (RUNNING, ERROR)
func (s *LoaderStore) SetStatus(id string, status types.LoaderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loader, ok := s.loaders[id]; ok {
		loader.Status = status
	}
}

// RecordRun appends a finished run report and folds it into the loader's
// cumulative stats
func (s *LoaderStore) RecordRun(run *types.VolumeLoaderRun) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append([]*types.VolumeLoaderRun{run}, s.runs[run.LoaderID]...)
	if len(history) > maxRunHistory {
		history = history[:maxRunHistory]
	}
	s.runs[run.LoaderID] = history

	if loader, ok := s.loaders[run.LoaderID]; ok {
		loader.Stats.TotalRuns++
		loader.Stats.TotalFound += run.RecordsFound
		loader.Stats.TotalProcessed += run.RecordsProcessed
		loader.Stats.TotalFailed += run.RecordsFailed
		loader.Stats.TotalSkipped += run.RecordsSkipped
		at := run.StartedAt
		loader.Stats.LastRunAt = &at
	}
}

// Runs returns the retained run reports for a loader, newest first
func (s *LoaderStore) Runs(loaderID string) []*types.VolumeLoaderRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.runs[loaderID]
	out := make([]*types.VolumeLoaderRun, len(history))
	copy(out, history)
	return out
}

// GetRun looks up a single run report by id
func (s *LoaderStore) GetRun(loaderID, runID string) (*types.VolumeLoaderRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, run := range s.runs[loaderID] {
		if run.ID == runID {
			return run, true
		}
	}
	return nil, false
}

func validateLoader(cfg *types.VolumeLoader) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return types.NewValidation("loader name is required")
	}
	if cfg.PipelineID == "" {
		return types.NewValidation("loader pipeline is required")
	}
	switch cfg.Type {
	case types.LoaderLocal, types.LoaderGCS, types.LoaderS3, types.LoaderHTTP, types.LoaderSFTP:
	default:
		return types.NewValidation(fmt.Sprintf("unknown loader type %q", cfg.Type))
	}
	if cfg.Type == types.LoaderLocal && cfg.WatchDir == "" {
		return types.NewValidation("local loaders need a watch directory")
	}
	seen := make(map[string]bool, len(cfg.Mappings))
	for _, mapping := range cfg.Mappings {
		if mapping.Source == "" || mapping.Target == "" {
			return types.NewValidation("field mappings need both source and target")
		}
		if seen[mapping.Target] {
			return types.NewValidation(fmt.Sprintf("duplicate mapping target %q", mapping.Target))
		}
		seen[mapping.Target] = true
	}
	if cfg.Schedule.IntervalSecs < 0 {
		return types.NewValidation("schedule interval cannot be negative")
	}
	return nil
}

// nowPtr is a tiny helper for stamping run completion
func nowPtr() *time.Time {
	t := time.Now()
	return &t
}
