// Package model holds the data types shared across the tiling pipeline:
// tile coordinates and descriptors, persisted tile records, slicing
// configuration, task state, and the incremental-update index.
package model

import (
	"time"

	"github.com/pspoerri/tileslicer/internal/geom"
)

// Strategy selects a partitioning strategy.
type Strategy string

const (
	StrategyGrid     Strategy = "grid"
	StrategyOctree   Strategy = "octree"
	StrategyKdTree   Strategy = "kdtree"
	StrategyAdaptive Strategy = "adaptive"
)

// OutputFormat selects a tile generator.
type OutputFormat string

const (
	FormatB3DM OutputFormat = "b3dm"
	FormatGLB  OutputFormat = "glb"
	FormatGLTF OutputFormat = "gltf"
	FormatPNTS OutputFormat = "pnts"
)

// StorageLocation selects where tile payloads and hierarchy documents land.
type StorageLocation string

const (
	StorageLocalFilesystem StorageLocation = "local_filesystem"
	StorageObjectStore     StorageLocation = "object_store"
)

// TileCoord addresses a tile within a level's implicit grid (Grid/Octree)
// or by deterministic preorder allocation (KdTree/Adaptive).
type TileCoord struct {
	Level int `json:"level" yaml:"level"`
	X     int `json:"x" yaml:"x"`
	Y     int `json:"y" yaml:"y"`
	Z     int `json:"z" yaml:"z"`
}

// TileDescriptor is what a partitioning strategy emits and the engine
// consumes: a coordinate, its bounds, and hierarchy linkage.
type TileDescriptor struct {
	Coord            TileCoord
	Bounds           geom.BoundingBox3D
	Parent           *TileCoord
	ChildrenExpected int
}

// TileRecord is the persisted-per-tile record the TaskStore owns.
// Uniqueness is (TaskID, Coord).
type TileRecord struct {
	TaskID       string
	Coord        TileCoord
	Bounds       geom.BoundingBox3D
	RelativePath string
	ByteSize     int64
	ContentHash  string
	CreatedAt    time.Time
}

// SlicingConfig configures one tiling run.
type SlicingConfig struct {
	Strategy                 Strategy        `json:"strategy" yaml:"strategy"`
	TileSize                 float64         `json:"tile_size" yaml:"tile_size"`
	MaxLevel                 int             `json:"max_level" yaml:"max_level"`
	OutputFormat             OutputFormat    `json:"output_format" yaml:"output_format"`
	GeometricErrorThreshold  float64         `json:"geometric_error_threshold" yaml:"geometric_error_threshold"`
	CompressionLevel         int             `json:"compression_level" yaml:"compression_level"`
	ParallelCount            int             `json:"parallel_processing_count" yaml:"parallel_processing_count"`
	PreserveNormals          bool            `json:"preserve_normals" yaml:"preserve_normals"`
	PreserveUVs              bool            `json:"preserve_texture_coords" yaml:"preserve_texture_coords"`
	EnableIncrementalUpdates bool            `json:"enable_incremental_updates" yaml:"enable_incremental_updates"`
	EnableTextureCompression bool            `json:"enable_texture_compression" yaml:"enable_texture_compression"`
	EnableDraco              bool            `json:"enable_draco" yaml:"enable_draco"`
	StorageLocation          StorageLocation `json:"storage_location" yaml:"storage_location"`

	// Optional preview toggles, off by default, never required for
	// tileset correctness.
	TexturePreview   bool `json:"texture_preview" yaml:"texture_preview"`
	PartitionPreview bool `json:"partition_preview" yaml:"partition_preview"`
}

// Validate checks the config's range invariants: max_level must fall in
// [0,20], compression_level in [0,9].
func (c SlicingConfig) Validate() error {
	if c.MaxLevel < 0 || c.MaxLevel > 20 {
		return errInvalidConfig("max_level must be in [0,20]")
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return errInvalidConfig("compression_level must be in [0,9]")
	}
	if c.TileSize <= 0 {
		return errInvalidConfig("tile_size must be positive")
	}
	if c.ParallelCount <= 0 {
		return errInvalidConfig("parallel_processing_count must be positive")
	}
	switch c.Strategy {
	case StrategyGrid, StrategyOctree, StrategyKdTree, StrategyAdaptive:
	default:
		return errInvalidConfig("unknown strategy: " + string(c.Strategy))
	}
	switch c.OutputFormat {
	case FormatB3DM, FormatGLB, FormatGLTF, FormatPNTS:
	default:
		return errInvalidConfig("unknown output_format: " + string(c.OutputFormat))
	}
	return nil
}

// TaskStatus is one state in a SlicingTask's lifecycle.
type TaskStatus string

const (
	StatusCreated    TaskStatus = "created"
	StatusQueued     TaskStatus = "queued"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusCancelled  TaskStatus = "cancelled"
)

// SlicingTask is the persisted task record the orchestrator manages.
type SlicingTask struct {
	ID           string
	SourcePath   string
	ModelType    string
	Config       SlicingConfig
	OutputPrefix string
	Status       TaskStatus
	Progress     int // 0..100
	CreatedBy    string
	ProfileName  string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
}

// IncrementalIndex is the persisted incremental-update manifest.
type IncrementalIndex struct {
	TaskID   string                `json:"task_id" yaml:"task_id"`
	Version  int64                 `json:"version" yaml:"version"`
	Strategy Strategy              `json:"strategy" yaml:"strategy"`
	TileSize float64               `json:"tile_size" yaml:"tile_size"`
	Tiles    []IncrementalIndexTile `json:"tiles" yaml:"tiles"`
}

// IncrementalIndexTile is one entry in an IncrementalIndex.
type IncrementalIndexTile struct {
	Coord       TileCoord          `json:"coord" yaml:"coord"`
	Path        string             `json:"path" yaml:"path"`
	ContentHash string             `json:"content_hash" yaml:"content_hash"`
	Bounds      geom.BoundingBox3D `json:"bounds" yaml:"bounds"`
}

type configError string

func (e configError) Error() string { return string(e) }

func errInvalidConfig(msg string) error { return configError(msg) }
