package taskstore

import (
	"context"
	"testing"

	"github.com/pspoerri/tileslicer/internal/model"
)

func TestMemory_CreateGetUpdateTask(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	task := model.SlicingTask{ID: "t1", SourcePath: "a.obj", Status: model.StatusCreated}
	if _, err := m.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := m.CreateTask(ctx, task); err == nil {
		t.Fatal("expected conflict creating duplicate task ID")
	}

	got, err := m.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != model.StatusCreated {
		t.Errorf("status = %v", got.Status)
	}

	got.Status = model.StatusProcessing
	if err := m.UpdateTask(ctx, got); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	got2, _ := m.GetTask(ctx, "t1")
	if got2.Status != model.StatusProcessing {
		t.Errorf("status after update = %v", got2.Status)
	}
}

func TestMemory_BatchCommitIsVisibleOnlyAfterCommit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, err := m.CreateTask(ctx, model.SlicingTask{ID: "t1"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	uow, err := m.BeginBatch(ctx, "t1")
	if err != nil {
		t.Fatalf("BeginBatch: %v", err)
	}
	rec := model.TileRecord{TaskID: "t1", Coord: model.TileCoord{Level: 0}}
	if err := uow.UpsertTileRecords(ctx, []model.TileRecord{rec}); err != nil {
		t.Fatalf("UpsertTileRecords: %v", err)
	}

	before, _ := m.ListTileRecords(ctx, "t1")
	if len(before) != 0 {
		t.Fatalf("expected no visible records before commit, got %d", len(before))
	}

	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	after, _ := m.ListTileRecords(ctx, "t1")
	if len(after) != 1 {
		t.Fatalf("expected 1 visible record after commit, got %d", len(after))
	}
}

func TestMemory_BatchRollbackDiscardsStaged(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, err := m.CreateTask(ctx, model.SlicingTask{ID: "t1"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	uow, err := m.BeginBatch(ctx, "t1")
	if err != nil {
		t.Fatalf("BeginBatch: %v", err)
	}
	_ = uow.UpsertTileRecords(ctx, []model.TileRecord{{TaskID: "t1", Coord: model.TileCoord{Level: 0}}})
	if err := uow.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	records, _ := m.ListTileRecords(ctx, "t1")
	if len(records) != 0 {
		t.Fatalf("expected no records after rollback, got %d", len(records))
	}
}

func TestMemory_DeleteTaskRemovesTileRecords(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, err := m.CreateTask(ctx, model.SlicingTask{ID: "t1"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	uow, _ := m.BeginBatch(ctx, "t1")
	_ = uow.UpsertTileRecords(ctx, []model.TileRecord{{TaskID: "t1", Coord: model.TileCoord{Level: 0}}})
	_ = uow.Commit(ctx)

	if err := m.DeleteTask(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if _, err := m.GetTask(ctx, "t1"); err == nil {
		t.Fatal("expected error getting deleted task")
	}
	records, _ := m.ListTileRecords(ctx, "t1")
	if len(records) != 0 {
		t.Fatalf("expected no tile records after task deletion, got %d", len(records))
	}
}
