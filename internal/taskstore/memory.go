// Package taskstore implements the ioiface.TaskStore contract. Memory is an
// in-process store for tests and single-process deployments; its locking
// discipline (one mutex guarding a map plus per-batch staging) is grounded
// on internal/tile/diskstore.go's index-map-plus-mutex shape, adapted from
// a disk-offset index to a task/tile-record index.
package taskstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/pspoerri/tileslicer/internal/ioiface"
	"github.com/pspoerri/tileslicer/internal/model"
	"github.com/pspoerri/tileslicer/internal/pipelineerr"
)

// Memory is an in-process TaskStore. Safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	tasks map[string]model.SlicingTask
	tiles map[string]map[model.TileCoord]model.TileRecord // taskID -> coord -> record
}

// NewMemory constructs an empty in-memory task store.
func NewMemory() *Memory {
	return &Memory{
		tasks: make(map[string]model.SlicingTask),
		tiles: make(map[string]map[model.TileCoord]model.TileRecord),
	}
}

func (m *Memory) CreateTask(ctx context.Context, task model.SlicingTask) (model.SlicingTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task.ID == "" {
		return model.SlicingTask{}, pipelineerr.New(pipelineerr.KindInvalidRequest, "taskstore.Memory.CreateTask", fmt.Errorf("task ID is required"))
	}
	if _, exists := m.tasks[task.ID]; exists {
		return model.SlicingTask{}, pipelineerr.New(pipelineerr.KindStoreConflict, "taskstore.Memory.CreateTask", fmt.Errorf("task %s already exists", task.ID))
	}
	m.tasks[task.ID] = task
	m.tiles[task.ID] = make(map[model.TileCoord]model.TileRecord)
	return task, nil
}

func (m *Memory) GetTask(ctx context.Context, id string) (model.SlicingTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return model.SlicingTask{}, pipelineerr.New(pipelineerr.KindInvalidRequest, "taskstore.Memory.GetTask", fmt.Errorf("task %s not found", id))
	}
	return t, nil
}

func (m *Memory) FindTaskByOutputPrefix(ctx context.Context, outputPrefix, createdBy string) (model.SlicingTask, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.OutputPrefix == outputPrefix && t.CreatedBy == createdBy {
			return t, true, nil
		}
	}
	return model.SlicingTask{}, false, nil
}

func (m *Memory) UpdateTask(ctx context.Context, task model.SlicingTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; !ok {
		return pipelineerr.New(pipelineerr.KindInvalidRequest, "taskstore.Memory.UpdateTask", fmt.Errorf("task %s not found", task.ID))
	}
	m.tasks[task.ID] = task
	return nil
}

func (m *Memory) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	delete(m.tiles, id)
	return nil
}

func (m *Memory) ListTileRecords(ctx context.Context, taskID string) ([]model.TileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byCoord, ok := m.tiles[taskID]
	if !ok {
		return nil, nil
	}
	out := make([]model.TileRecord, 0, len(byCoord))
	for _, r := range byCoord {
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) DeleteTileRecord(ctx context.Context, taskID string, coord model.TileCoord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if byCoord, ok := m.tiles[taskID]; ok {
		delete(byCoord, coord)
	}
	return nil
}

// BeginBatch returns a UnitOfWork that stages upserts in memory and only
// merges them into the store's committed state on Commit, matching the
// "commit every N tiles or at level end" batching discipline the engine
// drives.
func (m *Memory) BeginBatch(ctx context.Context, taskID string) (ioiface.UnitOfWork, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tiles[taskID]; !ok {
		return nil, pipelineerr.New(pipelineerr.KindInvalidRequest, "taskstore.Memory.BeginBatch", fmt.Errorf("task %s not found", taskID))
	}
	return &batch{store: m, taskID: taskID}, nil
}

type batch struct {
	store   *Memory
	taskID  string
	staged  []model.TileRecord
	done    bool
}

func (b *batch) UpsertTileRecords(ctx context.Context, records []model.TileRecord) error {
	if b.done {
		return pipelineerr.New(pipelineerr.KindInvalidRequest, "taskstore.batch.UpsertTileRecords", fmt.Errorf("batch already finalized"))
	}
	b.staged = append(b.staged, records...)
	return nil
}

func (b *batch) Commit(ctx context.Context) error {
	if b.done {
		return pipelineerr.New(pipelineerr.KindInvalidRequest, "taskstore.batch.Commit", fmt.Errorf("batch already finalized"))
	}
	b.done = true
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	byCoord, ok := b.store.tiles[b.taskID]
	if !ok {
		return pipelineerr.New(pipelineerr.KindInvalidRequest, "taskstore.batch.Commit", fmt.Errorf("task %s not found", b.taskID))
	}
	for _, r := range b.staged {
		byCoord[r.Coord] = r
	}
	return nil
}

func (b *batch) Rollback(ctx context.Context) error {
	b.done = true
	b.staged = nil
	return nil
}
