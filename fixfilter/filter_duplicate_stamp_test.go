package fixfilter

import (
	"context"
	"testing"
	"time"
)

// TestDuplicateStampSuppressedAcrossPaths verifies the stamp cache is
// shared by both ingestion paths: a fix already processed through the
// fallback path is not processed again when it arrives as a pair.
func TestDuplicateStampSuppressedAcrossPaths(t *testing.T) {
	ctx := context.Background()
	metrics := newCaptureMetrics()
	f, err := New(DefaultConfig(), nil, WithMetrics(metrics))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Step 1: no status stream yet, the fallback path handles the fix.
	res := f.ProcessFixOnly(ctx, fixAt(testEpoch, 0))
	if res.Fix == nil {
		t.Fatalf("fallback fix not emitted: %+v", res.Report)
	}

	// Step 2: the same stamp arriving as a real pair is a duplicate, not
	// a second cycle.
	res = f.ProcessPair(ctx, fixAt(testEpoch, 0), cleanStatus(testEpoch))
	if !res.Duplicate {
		t.Fatal("pair with an already-processed stamp must be flagged duplicate")
	}
	if res.Report != nil || res.Fix != nil {
		t.Fatalf("duplicate must publish nothing, got %+v", res)
	}
	if metrics.discards[DiscardDuplicatePair] != 1 {
		t.Fatalf("duplicate-pair discards = %d, want 1", metrics.discards[DiscardDuplicatePair])
	}

	// A duplicate leaves the bookkeeping untouched but it does mark the
	// status stream live.
	snap := f.Snapshot()
	if !snap.LastStamp.Equal(testEpoch) {
		t.Fatalf("last stamp = %v, want %v", snap.LastStamp, testEpoch)
	}
	if !snap.StatusStreamLive {
		t.Fatal("observing a pair must mark the status stream live even on a duplicate")
	}
}

// TestFixOnlyFallbackPermanentlyDisabledAfterRealPair verifies that once
// one real pair has been observed, bare fixes are dropped without
// touching the stamp cache, and pairs keep flowing.
func TestFixOnlyFallbackPermanentlyDisabledAfterRealPair(t *testing.T) {
	ctx := context.Background()
	metrics := newCaptureMetrics()
	f, err := New(DefaultConfig(), nil, WithMetrics(metrics))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	settle(t, f)

	// Step 1: the bare fix is dropped, not deduplicated.
	at := testEpoch.Add(1 * time.Second)
	res := f.ProcessFixOnly(ctx, fixAt(at, 0))
	if res.Report != nil || res.Fix != nil || res.Duplicate {
		t.Fatalf("disabled fallback must drop silently, got %+v", res)
	}
	if metrics.discards[DiscardFallbackDisabled] != 1 {
		t.Fatalf("fallback discards = %d, want 1", metrics.discards[DiscardFallbackDisabled])
	}

	// Step 2: the dropped input did not consume the stamp; the real pair
	// for it still processes.
	res = f.ProcessPair(ctx, fixAt(at, 0), cleanStatus(at))
	if res.Duplicate {
		t.Fatal("dropped fallback input must not poison the stamp cache")
	}
	if res.Fix == nil {
		t.Fatalf("pair not emitted: %+v", res.Report)
	}
}
