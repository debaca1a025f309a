package tileformat

import "sync"

// largeBufferThreshold is the size above which a buffer is drawn from a
// shared pool rather than allocated fresh, bounding allocator churn for
// large tile payloads. Grounded on rgbaPool (internal/tile/rgbapool.go),
// generalized from fixed-size image buffers to the variable-size tile
// payload buffers this package builds.
const largeBufferThreshold = 1 << 20

var bufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, largeBufferThreshold)
		return &b
	},
}

// getBuffer returns a zero-length byte slice with at least capHint bytes
// of capacity, reusing a pooled buffer when capHint clears
// largeBufferThreshold.
func getBuffer(capHint int) []byte {
	if capHint < largeBufferThreshold {
		return make([]byte, 0, capHint)
	}
	p := bufPool.Get().(*[]byte)
	buf := (*p)[:0]
	if cap(buf) < capHint {
		buf = make([]byte, 0, capHint)
	}
	return buf
}

// putBuffer returns a large buffer to the pool. Small buffers are left for
// the garbage collector.
func putBuffer(buf []byte) {
	if cap(buf) < largeBufferThreshold {
		return
	}
	b := buf[:0]
	bufPool.Put(&b)
}
