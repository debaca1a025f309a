package tilesetdoc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pspoerri/tileslicer/internal/blobstore"
	"github.com/pspoerri/tileslicer/internal/geom"
	"github.com/pspoerri/tileslicer/internal/model"
)

func box(minX, minY, minZ, maxX, maxY, maxZ float32) geom.BoundingBox3D {
	return geom.BoundingBox3D{
		Min: geom.Vector3{X: minX, Y: minY, Z: minZ},
		Max: geom.Vector3{X: maxX, Y: maxY, Z: maxZ},
	}
}

func TestWriter_Emit_SingleRootNoParent(t *testing.T) {
	store := blobstore.NewMemory()
	w := &Writer{Store: store}

	task := model.SlicingTask{
		ID:           "t1",
		OutputPrefix: "out",
		Config: model.SlicingConfig{
			Strategy: model.StrategyGrid, TileSize: 1, MaxLevel: 1,
			GeometricErrorThreshold: 100,
		},
	}
	records := []model.TileRecord{
		{TaskID: "t1", Coord: model.TileCoord{Level: 0, X: 0, Y: 0, Z: 0}, Bounds: box(0, 0, 0, 8, 8, 8), RelativePath: "0/0_0_0.glb"},
	}

	if err := w.Emit(context.Background(), task, records, nil); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	rc, err := store.Get(context.Background(), "out", "tileset.json")
	if err != nil {
		t.Fatalf("Get tileset.json: %v", err)
	}
	defer rc.Close()

	var doc Document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Asset.Version != "1.1" {
		t.Errorf("asset.version = %q, want 1.1", doc.Asset.Version)
	}
	if doc.Root == nil || doc.Root.Content == nil || doc.Root.Content.URI != "0/0_0_0.glb" {
		t.Fatalf("root content mismatch: %+v", doc.Root)
	}
	if doc.Root.Refine != "REPLACE" {
		t.Errorf("refine = %q, want REPLACE", doc.Root.Refine)
	}
}

func TestWriter_Emit_ParentChildLinkage(t *testing.T) {
	store := blobstore.NewMemory()
	w := &Writer{Store: store}

	task := model.SlicingTask{
		ID: "t1", OutputPrefix: "out",
		Config: model.SlicingConfig{Strategy: model.StrategyOctree, TileSize: 1, MaxLevel: 2, GeometricErrorThreshold: 100},
	}

	root := model.TileCoord{Level: 0, X: 0, Y: 0, Z: 0}
	child := model.TileCoord{Level: 1, X: 0, Y: 0, Z: 0}

	records := []model.TileRecord{
		{TaskID: "t1", Coord: root, Bounds: box(0, 0, 0, 8, 8, 8), RelativePath: "0/0_0_0.glb"},
		{TaskID: "t1", Coord: child, Bounds: box(0, 0, 0, 4, 4, 4), RelativePath: "1/0_0_0.glb"},
	}
	parents := map[model.TileCoord]model.TileCoord{child: root}

	if err := w.Emit(context.Background(), task, records, parents); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	rc, err := store.Get(context.Background(), "out", "tileset.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	var doc Document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.Root.Children) != 1 {
		t.Fatalf("expected 1 child under root, got %d", len(doc.Root.Children))
	}
	if doc.Root.Children[0].Content.URI != "1/0_0_0.glb" {
		t.Errorf("child content = %q", doc.Root.Children[0].Content.URI)
	}
}

func TestWriter_Emit_WritesIncrementalIndexWhenEnabled(t *testing.T) {
	store := blobstore.NewMemory()
	w := &Writer{Store: store}

	task := model.SlicingTask{
		ID: "t1", OutputPrefix: "out",
		Config: model.SlicingConfig{
			Strategy: model.StrategyGrid, TileSize: 1, MaxLevel: 0,
			GeometricErrorThreshold: 10, EnableIncrementalUpdates: true,
		},
	}
	records := []model.TileRecord{
		{TaskID: "t1", Coord: model.TileCoord{Level: 0}, Bounds: box(0, 0, 0, 1, 1, 1), RelativePath: "0/0_0_0.glb", ContentHash: "abc"},
	}

	if err := w.Emit(context.Background(), task, records, nil); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	if ok, _ := store.Exists(context.Background(), "out", "incremental_index.json"); !ok {
		t.Fatal("expected incremental_index.json to be written")
	}
}

func TestWriter_Emit_MultipleRootsGetSyntheticEnclosingRoot(t *testing.T) {
	store := blobstore.NewMemory()
	w := &Writer{Store: store}

	task := model.SlicingTask{
		ID: "t1", OutputPrefix: "out",
		Config: model.SlicingConfig{Strategy: model.StrategyKdTree, TileSize: 1, MaxLevel: 0, GeometricErrorThreshold: 10},
	}
	records := []model.TileRecord{
		{TaskID: "t1", Coord: model.TileCoord{Level: 1, X: 0}, Bounds: box(0, 0, 0, 1, 1, 1), RelativePath: "1/0_0_0.glb"},
		{TaskID: "t1", Coord: model.TileCoord{Level: 1, X: 1}, Bounds: box(1, 0, 0, 2, 1, 1), RelativePath: "1/1_0_0.glb"},
	}

	if err := w.Emit(context.Background(), task, records, nil); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	rc, _ := store.Get(context.Background(), "out", "tileset.json")
	defer rc.Close()
	var doc Document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Root.Content != nil {
		t.Error("synthetic root should not carry content")
	}
	if len(doc.Root.Children) != 2 {
		t.Fatalf("expected 2 children under synthetic root, got %d", len(doc.Root.Children))
	}
}
