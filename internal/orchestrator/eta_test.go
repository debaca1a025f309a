package orchestrator

import (
	"testing"
	"time"
)

func TestProgressRing_ETASeconds_ZeroWithoutHistory(t *testing.T) {
	r := newProgressRing()
	start := time.Unix(0, 0)
	if eta := r.ETASeconds(start.Add(time.Minute), start, 10); eta != 0 {
		t.Fatalf("expected 0 ETA with no recorded samples, got %v", eta)
	}
}

func TestProgressRing_ETASeconds_EdgesReturnZero(t *testing.T) {
	r := newProgressRing()
	start := time.Unix(0, 0)
	r.Record(start.Add(time.Minute), 50)
	if eta := r.ETASeconds(start.Add(time.Minute), start, 0); eta != 0 {
		t.Fatalf("expected 0 ETA at progress 0, got %v", eta)
	}
	if eta := r.ETASeconds(start.Add(time.Minute), start, 100); eta != 0 {
		t.Fatalf("expected 0 ETA at progress 100, got %v", eta)
	}
}

func TestProgressRing_ETASeconds_LinearExtrapolation(t *testing.T) {
	r := newProgressRing()
	start := time.Unix(0, 0)
	now := start.Add(50 * time.Second)
	r.Record(now, 50)
	eta := r.ETASeconds(now, start, 50)
	if eta <= 0 {
		t.Fatalf("expected positive ETA, got %v", eta)
	}
	// raw estimate is 50s; stage factor at 50% is 1.0, trend factor
	// defaults to 1.0 without enough windowed samples, so ETA should land
	// close to 50s.
	if eta < 40 || eta > 60 {
		t.Fatalf("expected ETA near 50s at steady 50%% progress, got %v", eta)
	}
}

func TestProgressRing_ETASeconds_BoundedByElapsedMultiple(t *testing.T) {
	r := newProgressRing()
	start := time.Unix(0, 0)
	now := start.Add(time.Second)
	r.Record(now, 1)
	eta := r.ETASeconds(now, start, 1)
	if eta > 10 {
		t.Fatalf("expected ETA bounded to 10x elapsed (10s), got %v", eta)
	}
}

func TestProgressRing_Record_EvictsBeyondCap(t *testing.T) {
	r := newProgressRing()
	start := time.Unix(0, 0)
	for i := 0; i < progressRecordCap+20; i++ {
		r.Record(start.Add(time.Duration(i)*time.Second), i%100)
	}
	if len(r.samples) > progressRecordCap {
		t.Fatalf("expected at most %d samples, got %d", progressRecordCap, len(r.samples))
	}
}

func TestProgressRing_Record_EvictsOutsideTimeWindow(t *testing.T) {
	r := newProgressRing()
	start := time.Unix(0, 0)
	r.Record(start, 1)
	r.Record(start.Add(progressWindowCap+time.Minute), 2)
	if len(r.samples) != 1 {
		t.Fatalf("expected stale sample to be evicted, got %d samples", len(r.samples))
	}
}
