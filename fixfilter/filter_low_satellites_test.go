package fixfilter

import (
	"context"
	"testing"
	"time"

	"github.com/ctu-vras/gnss-drivers/model"
)

// TestTooFewSatellitesSuppressesFixWithoutLosingTracking verifies that a
// momentarily unusable fix (three satellites) produces only a quality
// report while the filter keeps believing it has a fix, so the next good
// fix flows straight through.
func TestTooFewSatellitesSuppressesFixWithoutLosingTracking(t *testing.T) {
	ctx := context.Background()
	f := newTestFilter(t, DefaultConfig())
	start := settle(t, f)

	// Step 1: the degraded fix is reported BAD and withheld.
	at := start.Add(500 * time.Millisecond)
	st := cleanStatus(at)
	st.SatellitesUsed = 3
	res := f.ProcessPair(ctx, fixAt(at, 0.5), st)
	if res.Fix != nil {
		t.Fatal("BAD fix must not be emitted")
	}
	if res.Report.Level != model.LevelBad {
		t.Fatalf("level = %v, want BAD", res.Report.Level)
	}
	if res.Report.State != model.StateHasFix {
		t.Fatalf("state = %v, want HAS_FIX to survive a bad classification", res.Report.State)
	}

	// Step 2: tracking state was untouched, so a clean follow-up fix is
	// emitted immediately rather than after a reconvergence wait.
	at = at.Add(500 * time.Millisecond)
	res = f.ProcessPair(ctx, fixAt(at, 1.0), cleanStatus(at))
	if res.Fix == nil {
		t.Fatalf("clean follow-up fix not emitted: %+v", res.Report)
	}
	if res.Report.Level != model.LevelOK {
		t.Fatalf("level = %v, want OK (comments: %v)", res.Report.Level, res.Report.Comments)
	}
}
