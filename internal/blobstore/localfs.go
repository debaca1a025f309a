// Package blobstore implements the ioiface.BlobStore contract: a local
// filesystem backend for LocalFilesystem-mode tasks, and an in-memory
// backend for tests. Both share the same write-then-rename atomicity
// discipline the tileset writer relies on for tileset.json.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pspoerri/tileslicer/internal/pipelineerr"
)

// LocalFilesystem persists blobs under a root directory, one bucketOrPrefix
// (an absolute output_prefix, per the orchestrator's storage resolution)
// per task. Keys are slash-separated relative paths; directories are
// created on demand.
type LocalFilesystem struct{}

// NewLocalFilesystem constructs a LocalFilesystem blob store. There is no
// root to configure: bucketOrPrefix passed to each call is itself the
// absolute output directory, matching the orchestrator's resolved
// output_prefix semantics.
func NewLocalFilesystem() *LocalFilesystem {
	return &LocalFilesystem{}
}

func (l *LocalFilesystem) Put(ctx context.Context, bucketOrPrefix, key string, data []byte, contentType string) error {
	path := filepath.Join(bucketOrPrefix, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pipelineerr.New(pipelineerr.KindTransientIOError, "blobstore.LocalFilesystem.Put", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tileslicer-*.tmp")
	if err != nil {
		return pipelineerr.New(pipelineerr.KindTransientIOError, "blobstore.LocalFilesystem.Put", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return pipelineerr.New(pipelineerr.KindTransientIOError, "blobstore.LocalFilesystem.Put", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return pipelineerr.New(pipelineerr.KindTransientIOError, "blobstore.LocalFilesystem.Put", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return pipelineerr.New(pipelineerr.KindTransientIOError, "blobstore.LocalFilesystem.Put", err)
	}
	return nil
}

func (l *LocalFilesystem) Get(ctx context.Context, bucketOrPrefix, key string) (io.ReadCloser, error) {
	path := filepath.Join(bucketOrPrefix, filepath.FromSlash(key))
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, pipelineerr.New(pipelineerr.KindInvalidRequest, "blobstore.LocalFilesystem.Get", fmt.Errorf("%s: %w", key, err))
		}
		return nil, pipelineerr.New(pipelineerr.KindTransientIOError, "blobstore.LocalFilesystem.Get", err)
	}
	return f, nil
}

func (l *LocalFilesystem) Exists(ctx context.Context, bucketOrPrefix, key string) (bool, error) {
	path := filepath.Join(bucketOrPrefix, filepath.FromSlash(key))
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, pipelineerr.New(pipelineerr.KindTransientIOError, "blobstore.LocalFilesystem.Exists", err)
}

func (l *LocalFilesystem) Delete(ctx context.Context, bucketOrPrefix, key string) error {
	path := filepath.Join(bucketOrPrefix, filepath.FromSlash(key))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return pipelineerr.New(pipelineerr.KindTransientIOError, "blobstore.LocalFilesystem.Delete", err)
	}
	return nil
}
