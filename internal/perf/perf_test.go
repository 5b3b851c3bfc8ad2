package perf

import (
	"testing"
	"time"
)

func TestSnapshot_Empty(t *testing.T) {
	tr := New(8)
	snap := tr.Snapshot()
	if snap.TotalOperations != 0 {
		t.Fatalf("expected 0 total operations, got %d", snap.TotalOperations)
	}
	if snap.AvgLatencyMs != 0 || snap.P95LatencyMs != 0 {
		t.Fatalf("expected zero latencies on empty tracker, got %+v", snap)
	}
}

func TestSnapshot_TracksTotalsAndErrors(t *testing.T) {
	tr := New(8)
	tr.Record(1*time.Millisecond, false)
	tr.Record(2*time.Millisecond, false)
	tr.Record(3*time.Millisecond, true)

	snap := tr.Snapshot()
	if snap.TotalOperations != 3 {
		t.Fatalf("expected 3 total operations, got %d", snap.TotalOperations)
	}
	if snap.ErrorRate < 0.33 || snap.ErrorRate > 0.34 {
		t.Fatalf("expected error rate ~0.333, got %f", snap.ErrorRate)
	}
}

func TestSnapshot_Percentiles(t *testing.T) {
	tr := New(100)
	for i := 1; i <= 100; i++ {
		tr.Record(time.Duration(i)*time.Millisecond, false)
	}

	snap := tr.Snapshot()
	if snap.P95LatencyMs < 90 || snap.P95LatencyMs > 100 {
		t.Fatalf("expected p95 near 95-96ms, got %f", snap.P95LatencyMs)
	}
	if snap.P99LatencyMs < snap.P95LatencyMs {
		t.Fatalf("expected p99 >= p95, got p99=%f p95=%f", snap.P99LatencyMs, snap.P95LatencyMs)
	}
}

func TestWindowWrapsAroundWithoutGrowing(t *testing.T) {
	tr := New(4)
	for i := 0; i < 10; i++ {
		tr.Record(time.Duration(i)*time.Millisecond, false)
	}

	snap := tr.Snapshot()
	if snap.TotalOperations != 10 {
		t.Fatalf("expected lifetime total of 10 regardless of window size, got %d", snap.TotalOperations)
	}
	// Only the last 4 samples (6,7,8,9 ms) remain in the window, so the
	// average must reflect them, not all 10.
	if snap.AvgLatencyMs < 6 || snap.AvgLatencyMs > 9 {
		t.Fatalf("expected windowed average in [6,9], got %f", snap.AvgLatencyMs)
	}
}

func TestDefaultWindowUsedForNonPositiveSize(t *testing.T) {
	tr := New(0)
	if len(tr.samples) != DefaultWindow {
		t.Fatalf("expected default window size %d, got %d", DefaultWindow, len(tr.samples))
	}
}
