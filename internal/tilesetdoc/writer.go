// Package tilesetdoc emits the Cesium 3D Tiles hierarchy documents a
// tiling run produces: tileset.json (the Tile tree with bounding volumes
// and geometric errors) and incremental_index.json (the re-slice manifest).
// Both are written through the same BlobStore the tile payloads go through,
// atomically per the write-then-rename / versioned-overwrite policy.
package tilesetdoc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pspoerri/tileslicer/internal/ioiface"
	"github.com/pspoerri/tileslicer/internal/model"
	"github.com/pspoerri/tileslicer/internal/partition"
	"github.com/pspoerri/tileslicer/internal/pipelineerr"
)

// Generator is the string written to tileset.json's asset.generator field.
const Generator = "tileslicer"

// TilesetAsset is the asset block of a tileset.json document.
type TilesetAsset struct {
	Version        string `json:"version"`
	Generator      string `json:"generator"`
	TilesetVersion string `json:"tilesetVersion"`
}

// Tile is one node of the tileset.json hierarchy.
type Tile struct {
	BoundingVolume BoundingVolume `json:"boundingVolume"`
	GeometricError float64        `json:"geometricError"`
	Refine         string         `json:"refine,omitempty"`
	Content        *Content       `json:"content,omitempty"`
	Children       []*Tile        `json:"children,omitempty"`
}

// BoundingVolume wraps the 12-number box form: center (3) + three
// half-axis vectors (9), axis-aligned so the off-diagonal terms are zero.
type BoundingVolume struct {
	Box [12]float64 `json:"box"`
}

// Content references the tile's encoded payload.
type Content struct {
	URI string `json:"uri"`
}

// Document is the full tileset.json shape.
type Document struct {
	Asset          TilesetAsset `json:"asset"`
	GeometricError float64      `json:"geometricError"`
	Root           *Tile        `json:"root"`
}

// Writer builds and persists tileset.json and incremental_index.json
// through a BlobStore, keyed by a task's output_prefix.
type Writer struct {
	Store ioiface.BlobStore
}

// Emit implements tilingengine.TilesetEmitter: builds the Tile hierarchy
// from records and the parent links the engine threaded through, then
// writes both documents. A run that produced zero records still gets a
// tileset.json with an empty root, but incremental_index.json is only
// written when incremental mode is enabled (an empty-but-absent index is
// indistinguishable from "incremental mode never ran" otherwise).
func (w *Writer) Emit(ctx context.Context, task model.SlicingTask, records []model.TileRecord, parents map[model.TileCoord]model.TileCoord) error {
	root := buildTree(records, parents, task.Config)

	doc := Document{
		Asset: TilesetAsset{
			Version:        "1.1",
			Generator:      Generator,
			TilesetVersion: "1.0.0",
		},
		GeometricError: partition.GeometricError(partitionConfigFrom(task.Config), 0),
		Root:           root,
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return pipelineerr.New(pipelineerr.KindEncodeError, "tilesetdoc.Writer.Emit", err)
	}

	if err := w.Store.Put(ctx, task.OutputPrefix, "tileset.json", body, "application/json"); err != nil {
		return pipelineerr.New(pipelineerr.KindTransientIOError, "tilesetdoc.Writer.Emit", fmt.Errorf("writing tileset.json: %w", err))
	}

	if task.Config.EnableIncrementalUpdates {
		if err := writeIncrementalIndex(ctx, w.Store, task, records); err != nil {
			return err
		}
	}

	return nil
}

// buildTree links records into a Tile tree via the parent map. Records with
// no parent entry (or whose parent isn't itself a produced record) become
// roots; when more than one root tile exists they're wrapped under a
// synthetic enclosing root covering their union, since tileset.json needs
// exactly one root.
func buildTree(records []model.TileRecord, parents map[model.TileCoord]model.TileCoord, cfg model.SlicingConfig) *Tile {
	byCoord := make(map[model.TileCoord]*model.TileRecord, len(records))
	for i := range records {
		byCoord[records[i].Coord] = &records[i]
	}

	partCfg := partitionConfigFrom(cfg)

	nodes := make(map[model.TileCoord]*Tile, len(records))
	for _, r := range records {
		nodes[r.Coord] = &Tile{
			BoundingVolume: boxFromAABB(r),
			GeometricError: partition.GeometricError(partCfg, r.Coord.Level),
			Refine:         "REPLACE",
			Content:        &Content{URI: r.RelativePath},
		}
	}

	var topLevel []model.TileCoord
	for _, r := range records {
		parent, hasParent := parents[r.Coord]
		if hasParent {
			if _, parentProduced := byCoord[parent]; parentProduced {
				nodes[parent].Children = append(nodes[parent].Children, nodes[r.Coord])
				continue
			}
		}
		topLevel = append(topLevel, r.Coord)
	}

	sort.Slice(topLevel, func(i, j int) bool { return coordLess(topLevel[i], topLevel[j]) })
	sortAllChildren(nodes)

	if len(topLevel) == 0 {
		return &Tile{
			BoundingVolume: BoundingVolume{},
			GeometricError: partition.GeometricError(partCfg, 0),
			Refine:         "REPLACE",
		}
	}
	if len(topLevel) == 1 {
		return nodes[topLevel[0]]
	}

	root := &Tile{Refine: "REPLACE"}
	var union BoundingVolume
	first := true
	for _, c := range topLevel {
		root.Children = append(root.Children, nodes[c])
		if first {
			union = nodes[c].BoundingVolume
			first = false
		} else {
			union = unionBox(union, nodes[c].BoundingVolume)
		}
	}
	root.BoundingVolume = union
	root.GeometricError = partition.GeometricError(partCfg, 0)
	return root
}

// partitionConfigFrom projects the partition-relevant fields out of a
// task's SlicingConfig. tileset.json's document-level and per-tile
// geometricError values are derived straight from the task that produced
// the records, never from a Writer-level field, so a Writer with a zero
// value still emits correct errors.
func partitionConfigFrom(cfg model.SlicingConfig) partition.Config {
	return partition.Config{
		TileSize:                cfg.TileSize,
		MaxLevel:                cfg.MaxLevel,
		GeometricErrorThreshold: cfg.GeometricErrorThreshold,
	}
}

func sortAllChildren(nodes map[model.TileCoord]*Tile) {
	for _, n := range nodes {
		sort.Slice(n.Children, func(i, j int) bool {
			return childKey(n.Children[i]) < childKey(n.Children[j])
		})
	}
}

func childKey(t *Tile) string {
	if t.Content != nil {
		return t.Content.URI
	}
	return fmt.Sprintf("%v", t.BoundingVolume.Box)
}

func coordLess(a, b model.TileCoord) bool {
	if a.Level != b.Level {
		return a.Level < b.Level
	}
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

func boxFromAABB(r model.TileRecord) BoundingVolume {
	c := r.Bounds.Center()
	half := r.Bounds.Size().Scale(0.5)
	return BoundingVolume{Box: [12]float64{
		float64(c.X), float64(c.Y), float64(c.Z),
		float64(half.X), 0, 0,
		0, float64(half.Y), 0,
		0, 0, float64(half.Z),
	}}
}

func unionBox(a, b BoundingVolume) BoundingVolume {
	aMinX, aMaxX := a.Box[0]-a.Box[3], a.Box[0]+a.Box[3]
	aMinY, aMaxY := a.Box[1]-a.Box[7], a.Box[1]+a.Box[7]
	aMinZ, aMaxZ := a.Box[2]-a.Box[11], a.Box[2]+a.Box[11]
	bMinX, bMaxX := b.Box[0]-b.Box[3], b.Box[0]+b.Box[3]
	bMinY, bMaxY := b.Box[1]-b.Box[7], b.Box[1]+b.Box[7]
	bMinZ, bMaxZ := b.Box[2]-b.Box[11], b.Box[2]+b.Box[11]

	minX, maxX := minf(aMinX, bMinX), maxf(aMaxX, bMaxX)
	minY, maxY := minf(aMinY, bMinY), maxf(aMaxY, bMaxY)
	minZ, maxZ := minf(aMinZ, bMinZ), maxf(aMaxZ, bMaxZ)

	return BoundingVolume{Box: [12]float64{
		(minX + maxX) / 2, (minY + maxY) / 2, (minZ + maxZ) / 2,
		(maxX - minX) / 2, 0, 0,
		0, (maxY - minY) / 2, 0,
		0, 0, (maxZ - minZ) / 2,
	}}
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
