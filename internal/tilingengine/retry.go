package tilingengine

import (
	"context"
	"time"

	"github.com/pspoerri/tileslicer/internal/pipelineerr"
)

const (
	maxTransientRetries = 3
	retryBaseDelay      = 100 * time.Millisecond
)

// withRetry calls op up to maxTransientRetries+1 times, backing off
// exponentially (base·2^attempt) between attempts, but only when the
// returned error is a KindTransientIOError. Any other error (or
// context cancellation) returns immediately.
func withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt <= maxTransientRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !pipelineerr.Is(err, pipelineerr.KindTransientIOError) {
			return err
		}
		if attempt == maxTransientRetries {
			break
		}
		delay := retryBaseDelay << uint(attempt)
		select {
		case <-ctx.Done():
			return pipelineerr.New(pipelineerr.KindCancelled, "tilingengine.withRetry", ctx.Err())
		case <-time.After(delay):
		}
	}
	return err
}
