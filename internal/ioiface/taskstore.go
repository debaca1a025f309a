package ioiface

import (
	"context"

	"github.com/pspoerri/tileslicer/internal/model"
)

// UnitOfWork batches TileRecord upserts so the engine can commit every N
// tiles or at level end rather than one write per tile.
type UnitOfWork interface {
	UpsertTileRecords(ctx context.Context, records []model.TileRecord) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TaskStore is the CRUD + transactional-batch contract over SlicingTask and
// TileRecord. Task lifecycle persistence is an external collaborator; the
// pipeline only consumes this interface.
type TaskStore interface {
	CreateTask(ctx context.Context, task model.SlicingTask) (model.SlicingTask, error)
	GetTask(ctx context.Context, id string) (model.SlicingTask, error)
	FindTaskByOutputPrefix(ctx context.Context, outputPrefix, createdBy string) (model.SlicingTask, bool, error)
	UpdateTask(ctx context.Context, task model.SlicingTask) error
	DeleteTask(ctx context.Context, id string) error

	ListTileRecords(ctx context.Context, taskID string) ([]model.TileRecord, error)
	DeleteTileRecord(ctx context.Context, taskID string, coord model.TileCoord) error

	// BeginBatch opens a transactional unit of work for batched tile
	// record upserts within one tiling run.
	BeginBatch(ctx context.Context, taskID string) (UnitOfWork, error)
}
