package fixfilter

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ctu-vras/gnss-drivers/model"
)

// TestSoftJumpAppliesDecayingCovariancePenalty verifies a sub-critical
// velocity (between max and nonsense) neither rejects the fix nor forces
// a state change, but multiplies the covariance by a penalty that decays
// linearly over the reconvergence window and is dropped once it would
// stop inflating.
func TestSoftJumpAppliesDecayingCovariancePenalty(t *testing.T) {
	ctx := context.Background()
	f := newTestFilter(t, DefaultConfig())
	start := settle(t, f)

	averageStatus := func(stamp time.Time) model.StatusRecord {
		st := cleanStatus(stamp)
		st.SatellitesUsed = 10 // AVERAGE tier, so the penalty applies
		return st
	}

	// Step 1: 2.5 m in 1 s is suspicious but not impossible. The fix is
	// still emitted in HAS_FIX, with the full penalty on top of the
	// AVERAGE multiplier: 10 x 10.
	at := start.Add(1 * time.Second)
	res := f.ProcessPair(ctx, fixAt(at, 2.5), averageStatus(at))
	if res.Fix == nil {
		t.Fatalf("soft-jumping fix must still be emitted: %+v", res.Report)
	}
	if res.Report.State != model.StateHasFix {
		t.Fatalf("state = %v, want HAS_FIX", res.Report.State)
	}
	if res.Report.Level != model.LevelAverage {
		t.Fatalf("level = %v, want AVERAGE (comments: %v)", res.Report.Level, res.Report.Comments)
	}
	if got := float64(res.Report.CovMultiplier); math.Abs(got-100) > 1e-9 {
		t.Fatalf("multiplier = %v, want 100 right after the jump", got)
	}

	// Step 2: the penalty decays as the window ages even though the
	// platform is stationary again.
	wantAt := map[int]float64{
		1:  95, // 10 x (1 - 1/20) x 10
		2:  90,
		17: 25,
	}
	for age := 1; age <= 17; age++ {
		stamp := at.Add(time.Duration(age) * time.Second)
		res = f.ProcessPair(ctx, fixAt(stamp, 2.5), averageStatus(stamp))
		if res.Fix == nil {
			t.Fatalf("fix at age %ds not emitted: %+v", age, res.Report)
		}
		if want, ok := wantAt[age]; ok {
			if got := float64(res.Report.CovMultiplier); math.Abs(got-want) > 1e-9 {
				t.Fatalf("multiplier at age %ds = %v, want %v", age, got, want)
			}
		}
	}

	// Step 3: once the remaining factor would stop inflating, only the
	// quality multiplier remains.
	stamp := at.Add(18 * time.Second)
	res = f.ProcessPair(ctx, fixAt(stamp, 2.5), averageStatus(stamp))
	if got := float64(res.Report.CovMultiplier); got != 10 {
		t.Fatalf("multiplier at age 18s = %v, want the bare AVERAGE multiplier 10", got)
	}

	// Step 4: past the window the marker itself is cleared.
	stamp = at.Add(20 * time.Second)
	f.ProcessPair(ctx, fixAt(stamp, 2.5), averageStatus(stamp))
	if !f.softSince.IsZero() {
		t.Fatal("soft-jump marker should be cleared after the reconvergence window")
	}
}

// TestSoftJumpWithCleanQualityCarriesNoPenalty verifies the decaying
// penalty only applies to AVERAGE and DEGRADED fixes; a fix that
// classifies OK keeps multiplier 1 even while the window is open.
func TestSoftJumpWithCleanQualityCarriesNoPenalty(t *testing.T) {
	ctx := context.Background()
	f := newTestFilter(t, DefaultConfig())
	start := settle(t, f)

	at := start.Add(1 * time.Second)
	res := f.ProcessPair(ctx, fixAt(at, 2.5), cleanStatus(at))
	if res.Fix == nil {
		t.Fatalf("fix not emitted: %+v", res.Report)
	}
	if res.Report.Level != model.LevelOK {
		t.Fatalf("level = %v, want OK", res.Report.Level)
	}
	if res.Report.CovMultiplier != 1 {
		t.Fatalf("multiplier = %v, want 1 for an OK fix", res.Report.CovMultiplier)
	}
	if f.softSince.IsZero() {
		t.Fatal("soft-jump window should still be tracked for later degraded fixes")
	}
}
