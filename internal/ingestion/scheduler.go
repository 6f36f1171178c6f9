package ingestion

import (
	"context"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/rs/zerolog"
)

// Scheduler periodically runs loaders whose schedule is due and resolves
// expired holds. One goroutine polls for due loaders; individual runs are
// executed inline so a slow source can never pile up overlapping runs for
// the same loader.
type Scheduler struct {
	service  *Service
	loaders  *LoaderStore
	interval time.Duration
	lastRun  map[string]time.Time
	logger   zerolog.Logger
}

// NewScheduler creates the loader scheduler. The interval is the poll
// granularity, not a run frequency; each loader keeps its own cadence.
func NewScheduler(service *Service, loaders *LoaderStore, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		service:  service,
		loaders:  loaders,
		interval: interval,
		lastRun:  make(map[string]time.Time),
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start polls until the context is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("loader scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("loader scheduler stopped")
			return

		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

func (s *Scheduler) tick(now time.Time) {
	s.service.ResolveHeld()

	for _, loader := range s.loaders.List() {
		if !s.due(loader, now) {
			continue
		}
		s.lastRun[loader.ID] = now
		if _, err := s.service.Run(loader.ID); err != nil {
			s.logger.Error().Err(err).Str("loader", loader.Name).Msg("scheduled run failed")
		}
	}
}

func (s *Scheduler) due(loader *types.VolumeLoader, now time.Time) bool {
	if loader.Schedule.IntervalSecs <= 0 {
		return false
	}
	switch loader.Status {
	case types.LoaderDisabled, types.LoaderRunning:
		return false
	}
	last, ran := s.lastRun[loader.ID]
	if !ran {
		return true
	}
	return now.Sub(last) >= time.Duration(loader.Schedule.IntervalSecs)*time.Second
}
