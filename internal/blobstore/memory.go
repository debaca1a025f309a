package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pspoerri/tileslicer/internal/pipelineerr"
)

// Memory is an in-process ioiface.BlobStore for tests and for ObjectStore
// callers that want a stand-in without a real bucket.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory constructs an empty in-memory blob store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func memKey(bucketOrPrefix, key string) string {
	return bucketOrPrefix + "\x00" + key
}

func (m *Memory) Put(ctx context.Context, bucketOrPrefix, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[memKey(bucketOrPrefix, key)] = cp
	return nil
}

func (m *Memory) Get(ctx context.Context, bucketOrPrefix, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[memKey(bucketOrPrefix, key)]
	if !ok {
		return nil, pipelineerr.New(pipelineerr.KindInvalidRequest, "blobstore.Memory.Get", fmt.Errorf("%s: %w", key, errors.New("not found")))
	}
	return io.NopCloser(bytes.NewReader(v)), nil
}

func (m *Memory) Exists(ctx context.Context, bucketOrPrefix, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[memKey(bucketOrPrefix, key)]
	return ok, nil
}

func (m *Memory) Delete(ctx context.Context, bucketOrPrefix, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, memKey(bucketOrPrefix, key))
	return nil
}
