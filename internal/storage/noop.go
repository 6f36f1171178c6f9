package storage

import "github.com/dispatchworks/taskhub/backend/internal/types"

// Store defines the storage interface
type Store interface {
	SaveWorkItemRecord(record types.WorkItemRecord) error
	SaveStateEvent(event types.StateEventRecord) error
	GetWorkItemRecords(dateKey string) ([]types.WorkItemRecord, error)
	GetAgentStateEvents(agentID, date string) ([]types.StateEventRecord, error)
	TruncateAll() error
}

// NoopStore is a no-op implementation when DynamoDB is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveWorkItemRecord(_ types.WorkItemRecord) error  { return nil }
func (s *NoopStore) SaveStateEvent(_ types.StateEventRecord) error    { return nil }
func (s *NoopStore) GetWorkItemRecords(_ string) ([]types.WorkItemRecord, error) {
	return nil, nil
}
func (s *NoopStore) GetAgentStateEvents(_, _ string) ([]types.StateEventRecord, error) {
	return nil, nil
}
func (s *NoopStore) TruncateAll() error { return nil }
