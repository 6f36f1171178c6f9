package ingestion

import (
	"sync"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/google/uuid"
)

// StagingStore holds uploaded batches until a run consumes them. One batch
// per loader; a new upload for the same loader replaces the pending one.
type StagingStore struct {
	batches map[string]*types.StagedBatch // loaderID -> pending batch
	mu      sync.Mutex
}

// NewStagingStore creates an empty staging area
func NewStagingStore() *StagingStore {
	return &StagingStore{
		batches: make(map[string]*types.StagedBatch),
	}
}

// Stage stores a batch of mapped records for a loader
func (s *StagingStore) Stage(loaderID, fileName string, records []types.StagedRecord) *types.StagedBatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := &types.StagedBatch{
		UploadID:   uuid.New().String(),
		LoaderID:   loaderID,
		FileName:   fileName,
		UploadedAt: time.Now(),
		Records:    records,
	}
	s.batches[loaderID] = batch
	return batch
}

// Peek returns the pending batch without consuming it
func (s *StagingStore) Peek(loaderID string) (*types.StagedBatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[loaderID]
	return batch, ok
}

// FindByUpload returns the pending batch carrying the given upload id
func (s *StagingStore) FindByUpload(uploadID string) (*types.StagedBatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, batch := range s.batches {
		if batch.UploadID == uploadID {
			return batch, true
		}
	}
	return nil, false
}

// Latest returns the most recently uploaded pending batch
func (s *StagingStore) Latest() (*types.StagedBatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *types.StagedBatch
	for _, batch := range s.batches {
		if latest == nil || batch.UploadedAt.After(latest.UploadedAt) {
			latest = batch
		}
	}
	return latest, latest != nil
}

// Take removes and returns the pending batch for a loader
func (s *StagingStore) Take(loaderID string) (*types.StagedBatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[loaderID]
	if ok {
		delete(s.batches, loaderID)
	}
	return batch, ok
}

// Discard drops the pending batch for a loader, if any
func (s *StagingStore) Discard(loaderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[loaderID]; !ok {
		return false
	}
	delete(s.batches, loaderID)
	return true
}
