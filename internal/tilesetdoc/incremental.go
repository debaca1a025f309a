package tilesetdoc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pspoerri/tileslicer/internal/ioiface"
	"github.com/pspoerri/tileslicer/internal/model"
	"github.com/pspoerri/tileslicer/internal/pipelineerr"
)

// writeIncrementalIndex builds and persists incremental_index.json, a
// manifest of the run's tiles with their paths, bounds and content hashes.
// The engine's own unchanged-tile check does not read this file; it compares
// against the prior TileRecords in the TaskStore.
func writeIncrementalIndex(ctx context.Context, store ioiface.BlobStore, task model.SlicingTask, records []model.TileRecord) error {
	idx := model.IncrementalIndex{
		TaskID:   task.ID,
		Version:  time.Now().Unix(),
		Strategy: task.Config.Strategy,
		TileSize: task.Config.TileSize,
	}
	for _, r := range records {
		idx.Tiles = append(idx.Tiles, model.IncrementalIndexTile{
			Coord:       r.Coord,
			Path:        r.RelativePath,
			ContentHash: r.ContentHash,
			Bounds:      r.Bounds,
		})
	}

	body, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return pipelineerr.New(pipelineerr.KindEncodeError, "tilesetdoc.writeIncrementalIndex", err)
	}

	if err := store.Put(ctx, task.OutputPrefix, "incremental_index.json", body, "application/json"); err != nil {
		return pipelineerr.New(pipelineerr.KindTransientIOError, "tilesetdoc.writeIncrementalIndex", fmt.Errorf("writing incremental_index.json: %w", err))
	}
	return nil
}
