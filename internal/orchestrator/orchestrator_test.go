package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/pspoerri/tileslicer/internal/blobstore"
	"github.com/pspoerri/tileslicer/internal/model"
	"github.com/pspoerri/tileslicer/internal/taskstore"
)

type fakeRunner struct {
	ran chan string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{ran: make(chan string, 8)}
}

func (f *fakeRunner) Run(ctx context.Context, taskID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	f.ran <- taskID
	<-ctx.Done()
	return ctx.Err()
}

func testRequest(source string) TaskRequest {
	return TaskRequest{
		SourcePath: source,
		ModelType:  "mesh",
		Config: model.SlicingConfig{
			Strategy:      model.StrategyOctree,
			TileSize:      100,
			MaxLevel:      3,
			OutputFormat:  model.FormatB3DM,
			ParallelCount: 2,
		},
	}
}

func newTestOrchestrator() (*Orchestrator, *fakeRunner) {
	store := taskstore.NewMemory()
	blobs := blobstore.NewMemory()
	runner := newFakeRunner()
	o := New(store, blobs, runner, DefaultProfile(), "/work")
	return o, runner
}

func TestOrchestrator_CreateTask_DerivesDeterministicOutputPrefix(t *testing.T) {
	o, _ := newTestOrchestrator()
	ctx := context.Background()

	t1, err := o.CreateTask(ctx, testRequest("/data/scene.glb"), "alice")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	t2, err := o.CreateTask(ctx, testRequest("/data/scene.glb"), "bob")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if t1.OutputPrefix != t2.OutputPrefix {
		t.Fatalf("expected identical output_prefix for identical source_path, got %q vs %q", t1.OutputPrefix, t2.OutputPrefix)
	}
	if t1.ID == t2.ID {
		t.Fatalf("expected distinct task IDs for distinct CreateTask calls")
	}
}

func TestOrchestrator_CreateTask_ReusesIncrementalTask(t *testing.T) {
	o, _ := newTestOrchestrator()
	ctx := context.Background()

	req := testRequest("/data/scene.glb")
	req.Config.EnableIncrementalUpdates = true

	first, err := o.CreateTask(ctx, req, "alice")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	second, err := o.CreateTask(ctx, req, "alice")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected incremental CreateTask to reuse task %q, got %q", first.ID, second.ID)
	}
	if second.Status != model.StatusCreated {
		t.Fatalf("expected reused task reset to Created, got %s", second.Status)
	}
}

func TestOrchestrator_CreateTask_RejectsEmptySourcePath(t *testing.T) {
	o, _ := newTestOrchestrator()
	if _, err := o.CreateTask(context.Background(), TaskRequest{}, "alice"); err == nil {
		t.Fatalf("expected error for empty source_path")
	}
}

func TestOrchestrator_Cancel_OnlyByCreatorAndActiveStatus(t *testing.T) {
	o, _ := newTestOrchestrator()
	ctx := context.Background()

	task, err := o.CreateTask(ctx, testRequest("/data/scene.glb"), "alice")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if err := o.Cancel(ctx, task.ID, "bob"); err == nil {
		t.Fatalf("expected Cancel by non-creator to fail")
	}
	if err := o.Cancel(ctx, task.ID, "alice"); err == nil {
		t.Fatalf("expected Cancel to fail from Created status")
	}

	task.Status = model.StatusProcessing
	if err := o.Store.UpdateTask(ctx, task); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if err := o.Cancel(ctx, task.ID, "alice"); err != nil {
		t.Fatalf("expected Cancel to succeed from Processing status: %v", err)
	}
}

func TestOrchestrator_Run_DispatchesOnDetachedContextAndCancelStopsIt(t *testing.T) {
	o, runner := newTestOrchestrator()
	ctx := context.Background()

	task, err := o.CreateTask(ctx, testRequest("/data/scene.glb"), "alice")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	task.Status = model.StatusProcessing
	if err := o.Store.UpdateTask(ctx, task); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	o.Run(task.ID)

	select {
	case ranID := <-runner.ran:
		if ranID != task.ID {
			t.Fatalf("expected runner invoked with %q, got %q", task.ID, ranID)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for Run to dispatch the runner")
	}

	if err := o.Cancel(ctx, task.ID, "alice"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	// The runner returns once its context is cancelled, and Run's goroutine
	// then drops the task's cancel handle.
	deadline := time.Now().Add(time.Second)
	for {
		o.mu.Lock()
		_, running := o.cancel[task.ID]
		o.mu.Unlock()
		if !running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected Cancel to stop the dispatched runner")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOrchestrator_Delete_RemovesTaskAndBlobs(t *testing.T) {
	o, _ := newTestOrchestrator()
	ctx := context.Background()

	task, err := o.CreateTask(ctx, testRequest("/data/scene.glb"), "alice")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if err := o.Blobs.Put(ctx, task.OutputPrefix, "tileset.json", []byte("{}"), "application/json"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := o.Delete(ctx, task.ID, "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := o.Store.GetTask(ctx, task.ID); err == nil {
		t.Fatalf("expected task to be gone after Delete")
	}
	if ok, _ := o.Blobs.Exists(ctx, task.OutputPrefix, "tileset.json"); ok {
		t.Fatalf("expected tileset.json blob to be gone after Delete")
	}
}

func TestOrchestrator_GetProgress_ReturnsETAEstimate(t *testing.T) {
	o, _ := newTestOrchestrator()
	ctx := context.Background()

	task, err := o.CreateTask(ctx, testRequest("/data/scene.glb"), "alice")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	task.Status = model.StatusProcessing
	task.Progress = 50
	if err := o.Store.UpdateTask(ctx, task); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	report, err := o.GetProgress(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if report.Progress != 50 {
		t.Fatalf("expected progress 50, got %d", report.Progress)
	}
	if report.Stage != model.StatusProcessing {
		t.Fatalf("expected stage Processing, got %s", report.Stage)
	}
}
