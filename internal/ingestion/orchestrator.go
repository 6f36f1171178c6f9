package ingestion

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/mapper"
	"github.com/dispatchworks/taskhub/backend/internal/metrics"
	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RecordRouter matches mapped records against a pipeline's rules
type RecordRouter interface {
	Route(pipelineID string, fields map[string]string) types.RouteResult
	ResolveHold(pipelineID string, result types.RouteResult) types.RouteResult
}

// ItemSink accepts routed work items for queueing
type ItemSink interface {
	Enqueue(item *types.WorkItem) error
}

// PipelineSource exposes pipeline configuration to the ingestion runs
type PipelineSource interface {
	Get(id string) (*types.Pipeline, bool)
}

// heldRecord is a draft parked by a pipeline's hold behavior, awaiting
// timeout resolution
type heldRecord struct {
	loaderID   string
	pipelineID string
	draft      types.WorkItemDraft
	result     types.RouteResult
}

// Service drives the full ingestion path: upload (or connector fetch),
// field mapping, dedupe, staging, and routed enqueue.
type Service struct {
	loaders   *LoaderStore
	staging   *StagingStore
	pipelines PipelineSource
	router    RecordRouter
	sink      ItemSink

	processed map[string]map[string]struct{} // loaderID -> routed external ids
	held      []heldRecord
	mu        sync.Mutex
	logger    zerolog.Logger
}

// NewService wires the ingestion orchestrator
func NewService(loaders *LoaderStore, staging *StagingStore, pipelines PipelineSource, router RecordRouter, sink ItemSink, logger zerolog.Logger) *Service {
	return &Service{
		loaders:   loaders,
		staging:   staging,
		pipelines: pipelines,
		router:    router,
		sink:      sink,
		processed: make(map[string]map[string]struct{}),
		logger:    logger.With().Str("component", "ingestion").Logger(),
	}
}

// Upload parses and maps a file into the staging area. Uploading never
// routes; a separate run consumes the staged batch. With dryRun set the
// result is computed but nothing is staged or remembered.
func (s *Service) Upload(loaderID, fileName string, data []byte, dryRun bool) (*types.UploadResult, error) {
	loader, ok := s.loaders.Get(loaderID)
	if !ok {
		return nil, types.NewNotFound("loader not found")
	}
	if loader.Status == types.LoaderDisabled {
		return nil, types.NewValidation("loader is disabled")
	}

	rows, err := ParseRows(fileName, data, loader.Options)
	if err != nil {
		return nil, err
	}

	result := &types.UploadResult{
		LoaderID:     loaderID,
		RecordsFound: len(rows),
		DryRun:       dryRun,
	}

	var staged []types.StagedRecord
	for i, row := range rows {
		rowNum := i + 1
		draft, err := mapper.MapRow(row, loader)
		if err != nil {
			result.RecordsFailed++
			result.Errors = append(result.Errors, recordError(rowNum, err))
			continue
		}
		if loader.Options.Dedupe && s.alreadyProcessed(loaderID, draft.ExternalID) {
			result.RecordsSkipped++
			continue
		}
		staged = append(staged, types.StagedRecord{Row: rowNum, Draft: draft})
	}
	result.RecordsStaged = len(staged)

	if !dryRun && len(staged) > 0 {
		batch := s.staging.Stage(loaderID, fileName, staged)
		result.UploadID = batch.UploadID
	}

	s.logger.Info().
		Str("loader", loader.Name).
		Str("file", fileName).
		Int("found", result.RecordsFound).
		Int("staged", result.RecordsStaged).
		Int("failed", result.RecordsFailed).
		Int("skipped", result.RecordsSkipped).
		Bool("dry_run", dryRun).
		Msg("file upload processed")
	return result, nil
}

// Run executes a loader: the pending staged batch is consumed first, and
// for connector-backed loaders the source is scanned for new files. Each
// record is routed through the loader's pipeline and queued on a match.
func (s *Service) Run(loaderID string) (*types.VolumeLoaderRun, error) {
	loader, ok := s.loaders.Get(loaderID)
	if !ok {
		return nil, types.NewNotFound("loader not found")
	}
	if loader.Status == types.LoaderDisabled {
		return nil, types.NewValidation("loader is disabled")
	}
	if loader.Status == types.LoaderRunning {
		return nil, types.NewConflict("loader is already running")
	}

	s.loaders.SetStatus(loaderID, types.LoaderRunning)
	run := &types.VolumeLoaderRun{
		ID:             uuid.New().String(),
		LoaderID:       loaderID,
		Status:         types.RunRunning,
		RoutingSummary: make(map[string]int),
		StartedAt:      time.Now(),
	}

	records, fetchErrs := s.collectRecords(loader)
	run.RecordsFound = len(records)
	run.Errors = append(run.Errors, fetchErrs...)
	run.RecordsFailed += len(fetchErrs)

	for _, record := range records {
		s.processRecord(loader, record, run)
	}

	run.FinishedAt = nowPtr()
	run.Status = finalStatus(run)
	s.loaders.RecordRun(run)
	s.restoreStatus(loader, run.Status)

	metrics.Get().RecordIngested(run.RecordsProcessed, run.RecordsFailed, run.RecordsSkipped)
	metrics.Get().RecordLoaderRun(run.FinishedAt.Sub(run.StartedAt), run.Status == types.RunFailed)

	s.logger.Info().
		Str("loader", loader.Name).
		Str("run_id", run.ID).
		Str("status", string(run.Status)).
		Int("found", run.RecordsFound).
		Int("routed", run.RecordsRouted).
		Int("unrouted", run.RecordsUnrouted).
		Int("failed", run.RecordsFailed).
		Int("skipped", run.RecordsSkipped).
		Msg("loader run finished")
	return run, nil
}

// collectRecords gathers the staged batch plus any connector files
func (s *Service) collectRecords(loader *types.VolumeLoader) ([]types.StagedRecord, []types.RecordError) {
	var records []types.StagedRecord
	var errs []types.RecordError

	if batch, ok := s.staging.Take(loader.ID); ok {
		records = append(records, batch.Records...)
	}

	connector := ConnectorFor(loader.Type, s.logger)
	if connector == nil {
		return records, errs
	}

	files, err := connector.Fetch(loader)
	if err != nil {
		errs = append(errs, types.RecordError{Message: fmt.Sprintf("fetch failed: %v", err)})
		return records, errs
	}
	for _, file := range files {
		rows, err := ParseRows(file.Name, file.Data, loader.Options)
		if err != nil {
			errs = append(errs, types.RecordError{Message: fmt.Sprintf("%s: %v", file.Name, err)})
			continue
		}
		for i, row := range rows {
			draft, err := mapper.MapRow(row, loader)
			if err != nil {
				errs = append(errs, recordError(i+1, err))
				continue
			}
			records = append(records, types.StagedRecord{Row: i + 1, Draft: draft})
		}
		if err := connector.Archive(loader, file); err != nil {
			s.logger.Error().Err(err).Str("file", file.Name).Msg("failed to archive consumed file")
		}
	}
	return records, errs
}

// processRecord routes one staged record and applies the outcome to the run
func (s *Service) processRecord(loader *types.VolumeLoader, record types.StagedRecord, run *types.VolumeLoaderRun) {
	draft := record.Draft

	if loader.Options.Dedupe && s.alreadyProcessed(loader.ID, draft.ExternalID) {
		run.RecordsSkipped++
		return
	}

	pipeline, ok := s.pipelines.Get(loader.PipelineID)
	if !ok {
		run.RecordsFailed++
		run.Errors = append(run.Errors, types.RecordError{
			Row: record.Row, Message: fmt.Sprintf("pipeline %q not found", loader.PipelineID),
		})
		return
	}
	if len(pipeline.AllowedWorkTypes) > 0 && !contains(pipeline.AllowedWorkTypes, draft.WorkType) {
		run.RecordsFailed++
		run.Errors = append(run.Errors, types.RecordError{
			Row: record.Row, Field: "workType",
			Message: fmt.Sprintf("work type %q not allowed by pipeline", draft.WorkType),
		})
		return
	}

	result := s.router.Route(loader.PipelineID, draft.Fields)
	metrics.Get().RecordRouted(string(result.Status))

	switch result.Status {
	case types.RouteStatusRouted:
		if err := s.enqueueDraft(pipeline, draft, result); err != nil {
			run.RecordsFailed++
			run.Errors = append(run.Errors, types.RecordError{Row: record.Row, Message: err.Error()})
			return
		}
		run.RecordsProcessed++
		run.RecordsRouted++
		s.markProcessed(loader.ID, draft.ExternalID)
		key := result.RuleName
		if key == "" {
			key = "default"
		}
		run.RoutingSummary[key]++

	case types.RouteStatusHeld:
		s.mu.Lock()
		s.held = append(s.held, heldRecord{
			loaderID: loader.ID, pipelineID: loader.PipelineID, draft: draft, result: result,
		})
		s.mu.Unlock()
		run.RecordsProcessed++
		run.RoutingSummary["held"]++
		s.markProcessed(loader.ID, draft.ExternalID)

	default:
		run.RecordsUnrouted++
		run.RecordsProcessed++
		run.Errors = append(run.Errors, types.RecordError{
			Row:     record.Row,
			Message: unroutedMessage(result.Diagnostics),
		})
		s.logger.Warn().
			Int("row", record.Row).
			Str("external_id", draft.ExternalID).
			Strs("available_fields", result.Diagnostics.AvailableFields).
			Str("first_failure", result.Diagnostics.FirstFailure).
			Msg("record did not match any routing rule")
	}
}

// enqueueDraft converts a routed draft into a queued work item
func (s *Service) enqueueDraft(pipeline *types.Pipeline, draft types.WorkItemDraft, result types.RouteResult) error {
	priority := draft.Priority
	if priority == 0 {
		priority = pipeline.DefaultPriority
	}
	if result.PriorityBoost != nil {
		priority += *result.PriorityBoost
	}

	item := &types.WorkItem{
		ExternalID:     draft.ExternalID,
		PipelineID:     pipeline.ID,
		QueueID:        result.QueueID,
		WorkType:       draft.WorkType,
		Title:          draft.Title,
		Priority:       priority,
		PayloadURL:     draft.PayloadURL,
		Metadata:       draft.Metadata,
		RequiredSkills: result.AddSkills,
		AutoAccept:     pipeline.AutoAccept,
		TimeoutSecs:    pipeline.DefaultTimeoutSecs,
	}
	return s.sink.Enqueue(item)
}

// ResolveHeld re-evaluates parked records whose hold may have elapsed.
// Expired holds either route to the pipeline's fallback queue or are
// dropped, per the pipeline's hold action. Called on the scheduler tick.
func (s *Service) ResolveHeld() (routed, dropped int) {
	s.mu.Lock()
	pending := s.held
	s.held = nil
	s.mu.Unlock()

	var still []heldRecord
	for _, h := range pending {
		resolved := s.router.ResolveHold(h.pipelineID, h.result)
		switch resolved.Status {
		case types.RouteStatusHeld:
			still = append(still, h)
		case types.RouteStatusRouted:
			pipeline, ok := s.pipelines.Get(h.pipelineID)
			if !ok {
				dropped++
				continue
			}
			if err := s.enqueueDraft(pipeline, h.draft, resolved); err != nil {
				s.logger.Error().Err(err).Str("external_id", h.draft.ExternalID).Msg("held record enqueue failed")
				dropped++
				continue
			}
			routed++
		default:
			dropped++
		}
	}

	s.mu.Lock()
	s.held = append(s.held, still...)
	s.mu.Unlock()

	if routed > 0 || dropped > 0 {
		s.logger.Info().Int("routed", routed).Int("dropped", dropped).Msg("held records resolved")
	}
	return routed, dropped
}

// HeldCount reports how many records are currently parked
func (s *Service) HeldCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.held)
}

func (s *Service) alreadyProcessed(loaderID, externalID string) bool {
	if externalID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[loaderID][externalID]
	return ok
}

func (s *Service) markProcessed(loaderID, externalID string) {
	if externalID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processed[loaderID] == nil {
		s.processed[loaderID] = make(map[string]struct{})
	}
	s.processed[loaderID][externalID] = struct{}{}
}

// restoreStatus returns the loader to its resting status after a run
func (s *Service) restoreStatus(loader *types.VolumeLoader, outcome types.RunStatus) {
	switch {
	case outcome == types.RunFailed:
		s.loaders.SetStatus(loader.ID, types.LoaderError)
	case loader.Schedule.IntervalSecs > 0:
		s.loaders.SetStatus(loader.ID, types.LoaderScheduled)
	default:
		s.loaders.SetStatus(loader.ID, types.LoaderIdle)
	}
}

func finalStatus(run *types.VolumeLoaderRun) types.RunStatus {
	switch {
	case run.RecordsFound > 0 && run.RecordsProcessed == 0 && run.RecordsSkipped == 0:
		return types.RunFailed
	case run.RecordsFailed > 0 || run.RecordsUnrouted > 0:
		return types.RunPartial
	default:
		return types.RunCompleted
	}
}

func recordError(row int, err error) types.RecordError {
	var mapErr *mapper.MappingError
	if errors.As(err, &mapErr) {
		return types.RecordError{Row: row, Field: mapErr.Field, Message: mapErr.Message}
	}
	return types.RecordError{Row: row, Message: err.Error()}
}

func unroutedMessage(diag types.RouteDiagnostics) string {
	msg := diag.Reason
	if msg == "" {
		msg = "no routing rule matched"
	}
	if diag.FirstFailure != "" {
		msg += ": " + diag.FirstFailure
	}
	return msg
}

func contains(list []string, value string) bool {
	for _, entry := range list {
		if entry == value {
			return true
		}
	}
	return false
}
