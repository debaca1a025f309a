package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pspoerri/tileslicer/internal/ioiface"
	"github.com/pspoerri/tileslicer/internal/model"
	"github.com/pspoerri/tileslicer/internal/pipelineerr"
)

// Runner is the collaborator that actually executes a task; tilingengine.Engine
// satisfies this directly. Kept as an interface so the orchestrator's tests
// don't need a real spatial index / generator / loader wired up.
type Runner interface {
	Run(ctx context.Context, taskID string) error
}

// Orchestrator accepts task requests, derives output_prefix and storage
// location, and dispatches the Tiling Engine on its own worker context —
// never the caller's — exposing progress/ETA and cancel/delete.
type Orchestrator struct {
	Store   ioiface.TaskStore
	Blobs   ioiface.BlobStore
	Engine  Runner
	Profile Profile
	Cwd     string // defaults to os.Getwd() result if empty

	mu     sync.Mutex
	cancel map[string]context.CancelFunc
	rings  map[string]*progressRing
}

// New constructs an Orchestrator. cwd may be "" to use the process's
// current working directory.
func New(store ioiface.TaskStore, blobs ioiface.BlobStore, engine Runner, profile Profile, cwd string) *Orchestrator {
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}
	return &Orchestrator{
		Store:   store,
		Blobs:   blobs,
		Engine:  engine,
		Profile: profile,
		Cwd:     cwd,
		cancel:  make(map[string]context.CancelFunc),
		rings:   make(map[string]*progressRing),
	}
}

// CreateTask validates req and either reuses an existing task with the
// same deterministic output_prefix and creator (when incremental updates
// are enabled) or creates a fresh one.
func (o *Orchestrator) CreateTask(ctx context.Context, req TaskRequest, createdBy string) (model.SlicingTask, error) {
	if req.SourcePath == "" {
		return model.SlicingTask{}, pipelineerr.New(pipelineerr.KindInvalidRequest, "orchestrator.Orchestrator.CreateTask",
			fmt.Errorf("source_path is required"))
	}
	if req.Config.Strategy == "" {
		req.Config.Strategy = o.Profile.DefaultStrategy
	}
	if req.Config.OutputFormat == "" {
		req.Config.OutputFormat = o.Profile.DefaultOutputFormat
	}
	if req.Config.ParallelCount == 0 {
		req.Config.ParallelCount = o.Profile.WorkerCount
	}
	if err := req.Config.Validate(); err != nil {
		return model.SlicingTask{}, pipelineerr.New(pipelineerr.KindInvalidRequest, "orchestrator.Orchestrator.CreateTask", err)
	}

	outputPrefix := o.resolveOutputPrefix(req)
	if req.Config.StorageLocation == "" {
		if filepath.IsAbs(outputPrefix) {
			req.Config.StorageLocation = model.StorageLocalFilesystem
		} else {
			req.Config.StorageLocation = model.StorageObjectStore
		}
	}

	if req.Config.EnableIncrementalUpdates {
		if existing, found, err := o.Store.FindTaskByOutputPrefix(ctx, outputPrefix, createdBy); err != nil {
			return model.SlicingTask{}, err
		} else if found {
			existing.Config = req.Config
			existing.Status = model.StatusCreated
			existing.Progress = 0
			existing.ErrorMessage = ""
			existing.ModelType = req.ModelType
			if err := o.Store.UpdateTask(ctx, existing); err != nil {
				return model.SlicingTask{}, err
			}
			return existing, nil
		}
	}

	now := time.Now()
	task := model.SlicingTask{
		ID:           newTaskID(req.SourcePath, now),
		SourcePath:   req.SourcePath,
		ModelType:    req.ModelType,
		Config:       req.Config,
		OutputPrefix: outputPrefix,
		Status:       model.StatusCreated,
		CreatedBy:    createdBy,
		CreatedAt:    now,
	}
	return o.Store.CreateTask(ctx, task)
}

func newTaskID(sourcePath string, at time.Time) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", sourcePath, at.UnixNano())))
	return hex.EncodeToString(h[:])[:32]
}

// resolveOutputPrefix derives `{clean_basename}_{sha256(source_path)[0..16]}`
// and places it under the profile's DefaultOutputRoot, rebasing a relative
// root onto o.Cwd (the default root "slices" yields {cwd}/slices/...). It
// only derives the path; CreateTask then resolves the storage location from
// it: an explicit config value wins, else an absolute output_prefix selects
// LocalFilesystem, else ObjectStore.
func (o *Orchestrator) resolveOutputPrefix(req TaskRequest) string {
	base := strings.TrimSuffix(filepath.Base(req.SourcePath), filepath.Ext(req.SourcePath))
	h := sha256.Sum256([]byte(req.SourcePath))
	suffix := hex.EncodeToString(h[:])[:16]
	name := fmt.Sprintf("%s_%s", base, suffix)

	root := o.Profile.DefaultOutputRoot
	if filepath.IsAbs(root) {
		return filepath.Join(root, name)
	}
	return filepath.Join(o.Cwd, root, name)
}

// Run dispatches the Tiling Engine on a fresh worker context derived from
// context.Background(), independent of any caller's request-scoped context,
// so a caller's cancellation (e.g. an HTTP handler returning) does not
// abort an in-progress task. The context's cancel func is retained so
// Cancel(taskID) can stop it later.
func (o *Orchestrator) Run(taskID string) {
	workerCtx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	o.cancel[taskID] = cancel
	if _, ok := o.rings[taskID]; !ok {
		o.rings[taskID] = newProgressRing()
	}
	o.mu.Unlock()

	go func() {
		defer func() {
			o.mu.Lock()
			delete(o.cancel, taskID)
			o.mu.Unlock()
		}()
		_ = o.Engine.Run(workerCtx, taskID)
	}()
}

// Cancel transitions taskID to Cancelled, permitted only from Queued or
// Processing, and only by its creator.
func (o *Orchestrator) Cancel(ctx context.Context, taskID, user string) error {
	task, err := o.Store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.CreatedBy != user {
		return pipelineerr.New(pipelineerr.KindInvalidRequest, "orchestrator.Orchestrator.Cancel",
			fmt.Errorf("task %s was not created by %s", taskID, user))
	}
	if task.Status != model.StatusQueued && task.Status != model.StatusProcessing {
		return pipelineerr.New(pipelineerr.KindInvalidRequest, "orchestrator.Orchestrator.Cancel",
			fmt.Errorf("task %s is in status %s, cannot cancel", taskID, task.Status))
	}

	o.mu.Lock()
	if cancel, ok := o.cancel[taskID]; ok {
		cancel()
	}
	o.mu.Unlock()

	task.Status = model.StatusCancelled
	return o.Store.UpdateTask(ctx, task)
}

// Delete removes a task and, via BlobStore/TaskStore, its tiles and records.
func (o *Orchestrator) Delete(ctx context.Context, taskID, user string) error {
	task, err := o.Store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.CreatedBy != user {
		return pipelineerr.New(pipelineerr.KindInvalidRequest, "orchestrator.Orchestrator.Delete",
			fmt.Errorf("task %s was not created by %s", taskID, user))
	}

	records, err := o.Store.ListTileRecords(ctx, taskID)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.RelativePath != "" {
			_ = o.Blobs.Delete(ctx, task.OutputPrefix, r.RelativePath)
		}
	}
	_ = o.Blobs.Delete(ctx, task.OutputPrefix, "tileset.json")
	_ = o.Blobs.Delete(ctx, task.OutputPrefix, "incremental_index.json")

	return o.Store.DeleteTask(ctx, taskID)
}

// ProgressReport is the progress/ETA snapshot GetProgress returns.
type ProgressReport struct {
	Progress       int
	Stage          model.TaskStatus
	ProcessedTiles int
	TotalTiles     int
	ETASeconds     float64
}

// GetProgress reports a task's current progress plus an ETA derived from
// its progress-history ring.
func (o *Orchestrator) GetProgress(ctx context.Context, taskID string) (ProgressReport, error) {
	task, err := o.Store.GetTask(ctx, taskID)
	if err != nil {
		return ProgressReport{}, err
	}

	o.mu.Lock()
	ring, ok := o.rings[taskID]
	if !ok {
		ring = newProgressRing()
		o.rings[taskID] = ring
	}
	now := time.Now()
	ring.Record(now, task.Progress)
	startedAt := task.CreatedAt
	if task.StartedAt != nil {
		startedAt = *task.StartedAt
	}
	eta := ring.ETASeconds(now, startedAt, task.Progress)
	o.mu.Unlock()

	records, err := o.Store.ListTileRecords(ctx, taskID)
	if err != nil {
		return ProgressReport{}, err
	}

	return ProgressReport{
		Progress:       task.Progress,
		Stage:          task.Status,
		ProcessedTiles: len(records),
		TotalTiles:     len(records), // exact total isn't known until a run completes
		ETASeconds:     eta,
	}, nil
}
