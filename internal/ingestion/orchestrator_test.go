package ingestion

import (
	"sync"
	"testing"

	"github.com/dispatchworks/taskhub/backend/internal/rules"
	"github.com/dispatchworks/taskhub/backend/internal/types"
	"github.com/rs/zerolog"
)

type fakeSink struct {
	mu    sync.Mutex
	items []*types.WorkItem
	fail  bool
}

func (f *fakeSink) Enqueue(item *types.WorkItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return types.NewValidation("queue rejected item")
	}
	f.items = append(f.items, item)
	return nil
}

type fixture struct {
	service  *Service
	loaders  *LoaderStore
	sink     *fakeSink
	pipeline *types.Pipeline
	loader   *types.VolumeLoader
}

func newFixture(t *testing.T, defaults types.DefaultRouting) *fixture {
	t.Helper()

	store := rules.NewPipelineStore()
	pipeline, err := store.Create(&types.Pipeline{
		Name:            "orders",
		DefaultRouting:  defaults,
		DefaultPriority: 5,
	})
	if err != nil {
		t.Fatalf("pipeline setup failed: %v", err)
	}
	if _, err := store.AddRule(pipeline.ID, &types.RoutingRule{
		Name:     "orders-to-main",
		Enabled:  true,
		Priority: 1,
		Conditions: []types.RoutingCondition{
			{Field: "workType", Operator: types.OpEquals, Value: "ORDER"},
		},
		TargetQueueID: "q-main",
	}); err != nil {
		t.Fatalf("rule setup failed: %v", err)
	}

	loaders := NewLoaderStore()
	loader, err := loaders.Create(&types.VolumeLoader{
		Name:       "order-feed",
		Type:       types.LoaderHTTP,
		PipelineID: pipeline.ID,
		Mappings: []types.FieldMapping{
			{Source: "orderId", Target: "externalId", Required: true},
			{Source: "type", Target: "workType"},
		},
		Options: types.ProcessingOptions{Dedupe: true},
	})
	if err != nil {
		t.Fatalf("loader setup failed: %v", err)
	}

	sink := &fakeSink{}
	router := rules.NewRouter(store, zerolog.Nop())
	service := NewService(loaders, NewStagingStore(), store, router, sink, zerolog.Nop())
	return &fixture{service: service, loaders: loaders, sink: sink, pipeline: pipeline, loader: loader}
}

const orderCSV = "orderId,type\nA-1,ORDER\nA-2,ORDER\n"

func TestUploadStagesRecords(t *testing.T) {
	f := newFixture(t, types.DefaultRouting{Behavior: types.DefaultReject})

	result, err := f.service.Upload(f.loader.ID, "orders.csv", []byte(orderCSV), false)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if result.RecordsFound != 2 || result.RecordsStaged != 2 {
		t.Errorf("expected 2 staged, got %+v", result)
	}
	if result.UploadID == "" {
		t.Error("expected an upload id")
	}
	if len(f.sink.items) != 0 {
		t.Error("upload must never enqueue")
	}
}

func TestUploadDryRunStagesNothing(t *testing.T) {
	f := newFixture(t, types.DefaultRouting{Behavior: types.DefaultReject})

	result, err := f.service.Upload(f.loader.ID, "orders.csv", []byte(orderCSV), true)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if !result.DryRun || result.UploadID != "" {
		t.Errorf("dry run should not stage: %+v", result)
	}

	run, err := f.service.Run(f.loader.ID)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.RecordsFound != 0 {
		t.Errorf("expected nothing staged after dry run, got %d", run.RecordsFound)
	}
}

func TestUploadReportsRowFailures(t *testing.T) {
	f := newFixture(t, types.DefaultRouting{Behavior: types.DefaultReject})
	data := []byte("orderId,type\n,ORDER\nA-2,ORDER\n")

	result, err := f.service.Upload(f.loader.ID, "orders.csv", data, false)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if result.RecordsFailed != 1 || result.RecordsStaged != 1 {
		t.Errorf("expected 1 failed 1 staged, got %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].Row != 1 || result.Errors[0].Field != "externalId" {
		t.Errorf("unexpected error log: %+v", result.Errors)
	}
}

func TestRunRoutesStagedRecords(t *testing.T) {
	f := newFixture(t, types.DefaultRouting{Behavior: types.DefaultReject})

	if _, err := f.service.Upload(f.loader.ID, "orders.csv", []byte(orderCSV), false); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	run, err := f.service.Run(f.loader.ID)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if run.Status != types.RunCompleted {
		t.Errorf("expected COMPLETED, got %s", run.Status)
	}
	if run.RecordsRouted != 2 {
		t.Errorf("expected 2 routed, got %d", run.RecordsRouted)
	}
	if run.RoutingSummary["orders-to-main"] != 2 {
		t.Errorf("unexpected routing summary: %v", run.RoutingSummary)
	}
	if len(f.sink.items) != 2 {
		t.Fatalf("expected 2 queued items, got %d", len(f.sink.items))
	}
	item := f.sink.items[0]
	if item.QueueID != "q-main" || item.ExternalID != "A-1" {
		t.Errorf("unexpected item: %+v", item)
	}
	if item.Priority != 5 {
		t.Errorf("expected pipeline default priority 5, got %d", item.Priority)
	}
}

func TestRunPartialOnUnroutedRecords(t *testing.T) {
	f := newFixture(t, types.DefaultRouting{Behavior: types.DefaultReject})
	data := []byte("orderId,type\nA-1,ORDER\nA-2,REFUND\n")

	if _, err := f.service.Upload(f.loader.ID, "orders.csv", data, false); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	run, err := f.service.Run(f.loader.ID)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if run.Status != types.RunPartial {
		t.Errorf("expected PARTIAL, got %s", run.Status)
	}
	if run.RecordsRouted != 1 || run.RecordsUnrouted != 1 {
		t.Errorf("expected 1 routed 1 unrouted, got %+v", run)
	}
	if len(run.Errors) != 1 {
		t.Errorf("expected an error entry for the unrouted row, got %v", run.Errors)
	}
}

func TestRunDedupeSkipsProcessedIDs(t *testing.T) {
	f := newFixture(t, types.DefaultRouting{Behavior: types.DefaultReject})

	if _, err := f.service.Upload(f.loader.ID, "orders.csv", []byte(orderCSV), false); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if _, err := f.service.Run(f.loader.ID); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// The same file again: both ids are already processed.
	result, err := f.service.Upload(f.loader.ID, "orders.csv", []byte(orderCSV), false)
	if err != nil {
		t.Fatalf("second upload failed: %v", err)
	}
	if result.RecordsSkipped != 2 || result.RecordsStaged != 0 {
		t.Errorf("expected both rows skipped, got %+v", result)
	}
}

func TestRunDefaultQueueFallback(t *testing.T) {
	f := newFixture(t, types.DefaultRouting{
		Behavior:       types.DefaultRouteToQueue,
		DefaultQueueID: "q-overflow",
	})
	data := []byte("orderId,type\nA-9,REFUND\n")

	if _, err := f.service.Upload(f.loader.ID, "orders.csv", data, false); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	run, err := f.service.Run(f.loader.ID)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if run.Status != types.RunCompleted || run.RecordsRouted != 1 {
		t.Errorf("expected fallback routing, got %+v", run)
	}
	if run.RoutingSummary["default"] != 1 {
		t.Errorf("expected default summary bucket, got %v", run.RoutingSummary)
	}
	if len(f.sink.items) != 1 || f.sink.items[0].QueueID != "q-overflow" {
		t.Errorf("expected item on overflow queue, got %+v", f.sink.items)
	}
}

func TestHeldRecordsResolveAfterTimeout(t *testing.T) {
	// Zero hold timeout: records are held by the run and expire on the
	// next resolution pass.
	f := newFixture(t, types.DefaultRouting{
		Behavior:          types.DefaultHold,
		HoldTimeoutSecs:   0,
		HoldTimeoutAction: types.HoldThenRoute,
		DefaultQueueID:    "q-late",
	})
	data := []byte("orderId,type\nA-9,REFUND\n")

	if _, err := f.service.Upload(f.loader.ID, "orders.csv", data, false); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	run, err := f.service.Run(f.loader.ID)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.RoutingSummary["held"] != 1 {
		t.Fatalf("expected 1 held, got %v", run.RoutingSummary)
	}
	if f.service.HeldCount() != 1 {
		t.Fatalf("expected 1 parked record, got %d", f.service.HeldCount())
	}

	routed, dropped := f.service.ResolveHeld()
	if routed != 1 || dropped != 0 {
		t.Errorf("expected 1 routed on expiry, got routed=%d dropped=%d", routed, dropped)
	}
	if len(f.sink.items) != 1 || f.sink.items[0].QueueID != "q-late" {
		t.Errorf("expected held item on late queue, got %+v", f.sink.items)
	}
	if f.service.HeldCount() != 0 {
		t.Errorf("expected no parked records left, got %d", f.service.HeldCount())
	}
}

func TestRunFailedWhenEveryRecordFails(t *testing.T) {
	f := newFixture(t, types.DefaultRouting{Behavior: types.DefaultReject})
	f.sink.fail = true

	if _, err := f.service.Upload(f.loader.ID, "orders.csv", []byte("orderId,type\nA-1,ORDER\n"), false); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	run, err := f.service.Run(f.loader.ID)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.Status != types.RunFailed {
		t.Errorf("expected FAILED, got %s", run.Status)
	}

	loader, _ := f.loaders.Get(f.loader.ID)
	if loader.Status != types.LoaderError {
		t.Errorf("expected loader in ERROR, got %s", loader.Status)
	}
}

func TestRunRecordsHistoryAndStats(t *testing.T) {
	f := newFixture(t, types.DefaultRouting{Behavior: types.DefaultReject})

	if _, err := f.service.Upload(f.loader.ID, "orders.csv", []byte(orderCSV), false); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	run, err := f.service.Run(f.loader.ID)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	history := f.loaders.Runs(f.loader.ID)
	if len(history) != 1 || history[0].ID != run.ID {
		t.Errorf("run not recorded: %v", history)
	}
	loader, _ := f.loaders.Get(f.loader.ID)
	if loader.Stats.TotalRuns != 1 || loader.Stats.TotalProcessed != 2 {
		t.Errorf("stats not folded in: %+v", loader.Stats)
	}
	if loader.Stats.LastRunAt == nil {
		t.Error("expected last run timestamp")
	}
}

func TestUploadUnknownLoader(t *testing.T) {
	f := newFixture(t, types.DefaultRouting{Behavior: types.DefaultReject})

	_, err := f.service.Upload("nope", "orders.csv", []byte(orderCSV), false)
	failure, ok := types.AsFailure(err)
	if !ok || failure.Kind != types.FailNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
}
