// Package tilingengine drives one tiling run end to end: load source
// geometry, build a spatial index, partition it level by level, decimate
// and encode each tile, and persist results through the BlobStore/TaskStore
// collaborators. Concurrency uses a per-level worker-pool shape: bounded
// job channel, fixed worker count, an atomic failure counter, an atomic
// first-fatal-error slot and a buffered results channel.
package tilingengine

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pspoerri/tileslicer/internal/decimate"
	"github.com/pspoerri/tileslicer/internal/geocodec"
	"github.com/pspoerri/tileslicer/internal/geom"
	"github.com/pspoerri/tileslicer/internal/ioiface"
	"github.com/pspoerri/tileslicer/internal/model"
	"github.com/pspoerri/tileslicer/internal/partition"
	"github.com/pspoerri/tileslicer/internal/partition/preview"
	"github.com/pspoerri/tileslicer/internal/pipelineerr"
	"github.com/pspoerri/tileslicer/internal/spatialindex"
	"github.com/pspoerri/tileslicer/internal/texcodec"
	"github.com/pspoerri/tileslicer/internal/tileformat"
)

// workloadThreshold is the loaded mesh's triangle count (rounded down to a
// multiple of the level's descriptor count) above which a level's tiles are
// processed by a worker pool rather than sequentially.
const workloadThreshold = 5000

// tileRecordBatchSize commits TileRecord upserts every N tiles, per the
// batching policy.
const tileRecordBatchSize = 50

// maxGeneratorFailuresPerLevel fails the task once a single level produces
// more encode failures than this.
const maxGeneratorFailuresPerLevel = 25

// indexCacheFactor sizes the spatial index's query-result LRU relative to
// the task's parallelism: 4 entries per worker is enough for one level's
// in-flight sibling queries to hit without growing unbounded across levels.
const indexCacheFactor = 4

// TilesetEmitter is the collaborator that turns the finished TileRecord set
// into tileset.json and incremental_index.json. Kept as an interface here
// so the tileset writer package has no import-cycle back onto the engine.
//
// parents maps a produced tile's coord to its parent coord, one entry per
// TileDescriptor the partitioning strategy emitted that has a parent. Grid
// and Octree coords satisfy the (L,x,y,z)->(L+1,2x..2x+1,...) doubling
// relation the hierarchy could in principle be derived from, but KdTree and
// Adaptive allocate coordinates that don't — so the engine threads the
// Parent link it already has from TileDescriptor through explicitly rather
// than asking the writer to re-derive it from coordinates alone.
type TilesetEmitter interface {
	Emit(ctx context.Context, task model.SlicingTask, records []model.TileRecord, parents map[model.TileCoord]model.TileCoord) error
}

// Engine runs SlicingTasks against a fixed set of collaborators.
type Engine struct {
	Loaders   []ioiface.ModelLoader
	Store     ioiface.BlobStore
	TaskStore ioiface.TaskStore
	Tileset   TilesetEmitter

	// GeoCodec compresses a tile's geometry buffers with Draco when the
	// task's SlicingConfig sets EnableDraco. Nil means EnableDraco is
	// honored as a no-op, since no concrete GeometryCodec ships in this
	// repo (the same way ModelLoader decoding doesn't).
	GeoCodec *geocodec.Wrapper

	// TexCodec compresses a tile's referenced base-color textures when
	// EnableTextureCompression is set. Nil disables compression even if
	// the flag is set.
	TexCodec *texcodec.Wrapper

	// Textures resolves a Material's TextureID to RGBA source pixels for
	// TexCodec and for the texture_preview debug path. Nil disables both,
	// since there is then nothing to read pixels from.
	Textures ioiface.TextureSource

	// GeneratorOptions seeds tileformat.New for every tile in every run;
	// OutputFormat in the task's SlicingConfig selects the concrete
	// generator but byte ceilings/sampling mode come from here.
	GeneratorOptions tileformat.Options
}

// Run executes the full algorithm for taskID. Precondition: the task is in
// Created or Queued status.
func (e *Engine) Run(ctx context.Context, taskID string) error {
	task, err := e.TaskStore.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("loading task %s: %w", taskID, err)
	}
	if task.Status != model.StatusCreated && task.Status != model.StatusQueued {
		return pipelineerr.New(pipelineerr.KindInvalidRequest, "tilingengine.Engine.Run",
			fmt.Errorf("task %s is in status %s, expected Created or Queued", taskID, task.Status))
	}

	initialStatus := task.Status
	startedAt := time.Now()
	task.Status = model.StatusProcessing
	task.StartedAt = &startedAt
	if err := e.TaskStore.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("marking task processing: %w", err)
	}

	if err := e.run(ctx, &task); err != nil {
		if pipelineerr.Is(err, pipelineerr.KindCancelled) {
			task.Status = model.StatusCancelled
		} else if pipelineerr.Is(err, pipelineerr.KindStoreConflict) {
			task.Status = initialStatus
		} else {
			task.Status = model.StatusFailed
			task.ErrorMessage = err.Error()
		}
		_ = e.TaskStore.UpdateTask(ctx, task)
		return err
	}

	completedAt := time.Now()
	task.Status = model.StatusCompleted
	task.Progress = 100
	task.CompletedAt = &completedAt
	if err := e.TaskStore.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("marking task completed: %w", err)
	}
	return nil
}

func (e *Engine) run(ctx context.Context, task *model.SlicingTask) error {
	loader := e.findLoader(task.SourcePath)
	if loader == nil {
		return pipelineerr.New(pipelineerr.KindSourceUnavailable, "tilingengine.Engine.run",
			fmt.Errorf("no loader registered for source %q", task.SourcePath))
	}

	loaded, err := loader.Load(ctx, task.SourcePath)
	if err != nil {
		return pipelineerr.New(pipelineerr.KindSourceUnavailable, "tilingengine.Engine.run",
			fmt.Errorf("loading %q: %w", task.SourcePath, err))
	}

	grid := spatialindex.NewGrid(loaded.Bounds, loaded.Triangles, spatialindex.DefaultResolution)
	parallelCount := task.Config.ParallelCount
	if parallelCount <= 0 {
		parallelCount = 1
	}
	var index spatialindex.Index = spatialindex.NewCachedGrid(grid, indexCacheFactor*parallelCount)

	priorByCoord, incremental, err := e.loadIncrementalState(ctx, task)
	if err != nil {
		return err
	}

	gen, err := tileformat.New(task.Config.OutputFormat, e.GeneratorOptions)
	if err != nil {
		return err
	}

	strat := partition.New(task.Config.Strategy, partition.Config{
		TileSize:                task.Config.TileSize,
		MaxLevel:                task.Config.MaxLevel,
		GeometricErrorThreshold: task.Config.GeometricErrorThreshold,
	}, loaded.Triangles)

	produced := map[model.TileCoord]bool{}
	parents := map[model.TileCoord]model.TileCoord{}
	var allRecords []model.TileRecord

	for level := 0; level <= task.Config.MaxLevel; level++ {
		if err := checkCancel(ctx); err != nil {
			return err
		}

		descriptors := strat.Generate(level, loaded.Bounds)
		for _, d := range descriptors {
			if d.Parent != nil {
				parents[d.Coord] = *d.Parent
			}
		}

		if task.Config.PartitionPreview {
			e.writePartitionPreview(ctx, task, level, descriptors, loaded.Bounds)
		}

		records, err := e.processLevel(ctx, task, descriptors, index, loaded, gen, priorByCoord, incremental)
		if err != nil {
			return err
		}
		for _, r := range records {
			produced[r.Coord] = true
		}
		allRecords = append(allRecords, records...)

		task.Progress = int(math.Round(100 * float64(level+1) / float64(task.Config.MaxLevel+1)))
		if err := e.TaskStore.UpdateTask(ctx, *task); err != nil {
			return fmt.Errorf("updating progress: %w", err)
		}
	}

	if incremental {
		if err := e.deleteOrphans(ctx, task, priorByCoord, produced); err != nil {
			return err
		}
	}

	if e.Tileset != nil {
		if err := e.Tileset.Emit(ctx, *task, allRecords, parents); err != nil {
			return pipelineerr.New(pipelineerr.KindTransientIOError, "tilingengine.Engine.run",
				fmt.Errorf("emitting tileset: %w", err))
		}
	}

	return nil
}

func (e *Engine) findLoader(sourcePath string) ioiface.ModelLoader {
	ext := extOf(sourcePath)
	for _, l := range e.Loaders {
		if l.Supports(ext) {
			return l
		}
	}
	return nil
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' {
			break
		}
	}
	return ""
}

func (e *Engine) loadIncrementalState(ctx context.Context, task *model.SlicingTask) (map[model.TileCoord]model.TileRecord, bool, error) {
	if !task.Config.EnableIncrementalUpdates {
		return nil, false, nil
	}
	existing, err := e.TaskStore.ListTileRecords(ctx, task.ID)
	if err != nil {
		return nil, false, pipelineerr.New(pipelineerr.KindTransientIOError, "tilingengine.Engine.loadIncrementalState", err)
	}
	if len(existing) == 0 {
		return nil, false, nil
	}
	m := make(map[model.TileCoord]model.TileRecord, len(existing))
	for _, r := range existing {
		m[r.Coord] = r
	}
	return m, true, nil
}

// quality maps a level to a decimation target ratio: sqrt(level/max_level),
// so coarse (low) levels get heavily simplified and the leaf level renders
// at full detail.
func quality(level, maxLevel int) float32 {
	if maxLevel <= 0 {
		return 1
	}
	return float32(math.Sqrt(float64(level) / float64(maxLevel)))
}

func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return pipelineerr.New(pipelineerr.KindCancelled, "tilingengine", ctx.Err())
	default:
		return nil
	}
}

// writePartitionPreview renders and stores a debug SVG of one level's tile
// grid. Purely a visualization aid: a write failure here is swallowed
// rather than failing the task, exactly like the texture preview path.
func (e *Engine) writePartitionPreview(ctx context.Context, task *model.SlicingTask, level int, descriptors []model.TileDescriptor, bounds geom.BoundingBox3D) {
	sizeX := float64(bounds.Max.X - bounds.Min.X)
	sizeY := float64(bounds.Max.Y - bounds.Min.Y)
	if sizeX <= 0 {
		sizeX = 1
	}
	if sizeY <= 0 {
		sizeY = 1
	}
	svg := preview.RenderLevel(descriptors,
		[2]float64{float64(bounds.Min.X), float64(bounds.Min.Y)},
		[2]float64{sizeX, sizeY},
		preview.DefaultOptions())

	relPath := fmt.Sprintf("%d/partition_preview.svg", level)
	_ = e.Store.Put(ctx, task.OutputPrefix, relPath, svg, "image/svg+xml")
}

func (e *Engine) processLevel(
	ctx context.Context,
	task *model.SlicingTask,
	descriptors []model.TileDescriptor,
	index spatialindex.Index,
	loaded ioiface.LoadResult,
	gen tileformat.Generator,
	prior map[model.TileCoord]model.TileRecord,
	incremental bool,
) ([]model.TileRecord, error) {
	if len(descriptors) == 0 {
		return nil, nil
	}

	estimate := len(loaded.Triangles) / len(descriptors)
	parallelCount := 1
	if estimate*len(descriptors) > workloadThreshold && task.Config.ParallelCount > 1 {
		parallelCount = task.Config.ParallelCount
	}

	type result struct {
		rec model.TileRecord
		ok  bool
	}

	jobs := make(chan model.TileDescriptor, len(descriptors))
	results := make(chan result, len(descriptors))
	var failures atomic.Int64
	var fatal atomic.Value // stores error
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for d := range jobs {
			rec, ok, err := e.processTile(ctx, task, d, index, loaded, gen, prior, incremental)
			if err != nil {
				if pipelineerr.Is(err, pipelineerr.KindEncodeError) {
					failures.Add(1)
					continue
				}
				fatal.CompareAndSwap(nil, err)
				continue
			}
			results <- result{rec: rec, ok: ok}
		}
	}

	for w := 0; w < parallelCount; w++ {
		wg.Add(1)
		go worker()
	}
	for _, d := range descriptors {
		jobs <- d
	}
	close(jobs)
	wg.Wait()
	close(results)

	if v := fatal.Load(); v != nil {
		return nil, v.(error)
	}

	if failures.Load() > maxGeneratorFailuresPerLevel {
		return nil, pipelineerr.New(pipelineerr.KindEncodeError, "tilingengine.Engine.processLevel",
			fmt.Errorf("level exceeded generator failure budget: %d failures", failures.Load()))
	}

	var records []model.TileRecord
	var batch []model.TileRecord
	uow, err := e.TaskStore.BeginBatch(ctx, task.ID)
	if err != nil {
		return nil, pipelineerr.New(pipelineerr.KindTransientIOError, "tilingengine.Engine.processLevel", err)
	}

	for r := range results {
		if !r.ok {
			continue
		}
		records = append(records, r.rec)
		batch = append(batch, r.rec)
		if len(batch) >= tileRecordBatchSize {
			if err := withRetry(ctx, func() error { return uow.UpsertTileRecords(ctx, batch) }); err != nil {
				_ = uow.Rollback(ctx)
				return nil, err
			}
			if err := uow.Commit(ctx); err != nil {
				return nil, pipelineerr.New(pipelineerr.KindTransientIOError, "tilingengine.Engine.processLevel", err)
			}
			if uow, err = e.TaskStore.BeginBatch(ctx, task.ID); err != nil {
				return nil, pipelineerr.New(pipelineerr.KindTransientIOError, "tilingengine.Engine.processLevel", err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := withRetry(ctx, func() error { return uow.UpsertTileRecords(ctx, batch) }); err != nil {
			_ = uow.Rollback(ctx)
			return nil, err
		}
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, pipelineerr.New(pipelineerr.KindTransientIOError, "tilingengine.Engine.processLevel", err)
	}

	return records, nil
}

func (e *Engine) processTile(
	ctx context.Context,
	task *model.SlicingTask,
	d model.TileDescriptor,
	index spatialindex.Index,
	loaded ioiface.LoadResult,
	gen tileformat.Generator,
	prior map[model.TileCoord]model.TileRecord,
	incremental bool,
) (model.TileRecord, bool, error) {
	if err := checkCancel(ctx); err != nil {
		return model.TileRecord{}, false, err
	}

	tol := spatialindex.AdaptiveTolerance(d.Bounds, loaded.Bounds)
	candidates := index.TrianglesOverlapping(d.Bounds, tol)
	if len(candidates) == 0 {
		return model.TileRecord{}, false, nil
	}

	q := quality(d.Coord.Level, task.Config.MaxLevel)
	simplified := candidates
	if task.Config.MaxLevel > 0 {
		simplified = decimate.Simplify(candidates, decimate.Options{
			TargetRatio:     q,
			PreserveNormals: task.Config.PreserveNormals,
			PreserveUVs:     task.Config.PreserveUVs,
		})
	}

	payload, err := gen.Generate(simplified, d.Bounds, loaded.Materials)
	if err != nil {
		return model.TileRecord{}, false, err
	}

	hash := contentHash(d.Coord, d.Bounds, payload)

	relPath := fmt.Sprintf("%d/%d_%d_%d.%s", d.Coord.Level, d.Coord.X, d.Coord.Y, d.Coord.Z, gen.FileExtension())

	if incremental {
		if old, ok := prior[d.Coord]; ok && old.ContentHash == hash {
			return old, true, nil
		}
	}

	e.encodeSideArtifacts(ctx, task, d, simplified, loaded.Materials)

	writePayload, writeRelPath, contentType := compressForStorage(payload, relPath, gen.FileExtension(), task.Config.CompressionLevel)

	if err := withRetry(ctx, func() error {
		return e.Store.Put(ctx, task.OutputPrefix, writeRelPath, writePayload, contentType)
	}); err != nil {
		return model.TileRecord{}, false, pipelineerr.New(pipelineerr.KindTransientIOError, "tilingengine.Engine.processTile", err)
	}

	return model.TileRecord{
		TaskID:       task.ID,
		Coord:        d.Coord,
		Bounds:       d.Bounds,
		RelativePath: writeRelPath,
		ByteSize:     int64(len(writePayload)),
		ContentHash:  hash,
	}, true, nil
}

// encodeSideArtifacts writes the optional Draco geometry and texture
// compression/preview artifacts a tile's config enables, alongside its
// primary payload. Every path here is additive and best-effort: a failure
// never fails the tile, since none of these buffers are load-bearing for
// the generator's own output.
func (e *Engine) encodeSideArtifacts(ctx context.Context, task *model.SlicingTask, d model.TileDescriptor, triangles []geom.Triangle, materials map[geom.MaterialID]geom.Material) {
	prefix := fmt.Sprintf("%d/%d_%d_%d", d.Coord.Level, d.Coord.X, d.Coord.Y, d.Coord.Z)

	if task.Config.EnableDraco && e.GeoCodec != nil {
		if out, used, err := e.GeoCodec.EncodeIfEnabled(true, triangles); err == nil && used {
			_ = e.Store.Put(ctx, task.OutputPrefix, prefix+".drc", out, "application/octet-stream")
		}
	}

	if (!task.Config.EnableTextureCompression && !task.Config.TexturePreview) || e.Textures == nil {
		return
	}
	for _, matID := range materialsUsedBy(triangles) {
		mat, ok := materials[matID]
		if !ok || !mat.HasTexture || mat.TextureID == "" {
			continue
		}
		pixels, w, h, err := e.Textures.LoadRGBA(ctx, mat.TextureID)
		if err != nil {
			continue
		}
		matPrefix := fmt.Sprintf("%s_mat%d", prefix, matID)

		if task.Config.EnableTextureCompression && e.TexCodec != nil {
			if out, kind, err := e.TexCodec.EncodeBaseColor(pixels, w, h); err == nil {
				_ = e.Store.Put(ctx, task.OutputPrefix, matPrefix+"."+textureExtFor(kind), out, textureContentTypeFor(kind))
			}
		}
		if task.Config.TexturePreview {
			_ = texcodec.WritePreview(ctx, e.Store, task.OutputPrefix, matPrefix, pixels, w, h)
		}
	}
}

// materialsUsedBy returns the distinct material IDs triangles reference, in
// ascending order, so side-artifact paths are stable across runs.
func materialsUsedBy(triangles []geom.Triangle) []geom.MaterialID {
	seen := make(map[geom.MaterialID]bool)
	var ids []geom.MaterialID
	for _, t := range triangles {
		if !seen[t.Material] {
			seen[t.Material] = true
			ids = append(ids, t.Material)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func textureExtFor(kind string) string {
	if kind == "ktx2" {
		return "ktx2"
	}
	return "jpg"
}

func textureContentTypeFor(kind string) string {
	if kind == "ktx2" {
		return "image/ktx2"
	}
	return "image/jpeg"
}

// compressForStorage gzip-wraps payload when CompressionLevel > 0, the
// "0..9 for optional gzip wrap" config contract. content_hash is always
// computed from the uncompressed payload before this runs, so toggling
// compression never perturbs incremental-mode diffing.
func compressForStorage(payload []byte, relPath, ext string, level int) (out []byte, path string, contentType string) {
	if level <= 0 {
		return payload, relPath, contentTypeFor(ext)
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return payload, relPath, contentTypeFor(ext)
	}
	if _, err := zw.Write(payload); err != nil {
		return payload, relPath, contentTypeFor(ext)
	}
	if err := zw.Close(); err != nil {
		return payload, relPath, contentTypeFor(ext)
	}
	return buf.Bytes(), relPath + ".gz", "application/gzip"
}

func (e *Engine) deleteOrphans(ctx context.Context, task *model.SlicingTask, prior map[model.TileCoord]model.TileRecord, produced map[model.TileCoord]bool) error {
	for coord := range prior {
		if coord.Level > task.Config.MaxLevel || !produced[coord] {
			if err := withRetry(ctx, func() error { return e.TaskStore.DeleteTileRecord(ctx, task.ID, coord) }); err != nil {
				return pipelineerr.New(pipelineerr.KindTransientIOError, "tilingengine.Engine.deleteOrphans", err)
			}
			relPath := prior[coord].RelativePath
			if relPath != "" {
				if err := withRetry(ctx, func() error { return e.Store.Delete(ctx, task.OutputPrefix, relPath) }); err != nil {
					return pipelineerr.New(pipelineerr.KindTransientIOError, "tilingengine.Engine.deleteOrphans", err)
				}
			}
		}
	}
	return nil
}

func contentTypeFor(ext string) string {
	switch ext {
	case "gltf":
		return "model/gltf+json"
	default:
		return "application/octet-stream"
	}
}
