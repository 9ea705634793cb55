package fixfilter

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ctu-vras/gnss-drivers/model"
)

// Test site near Prague, squarely inside UTM zone 33U.
const (
	testLat = 50.0765
	testLon = 14.4180

	// Metres of northing per degree of latitude at the test site.
	metresPerLatDegree = 111185.0
)

var testEpoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestFilter(t *testing.T, cfg Config) *Filter {
	t.Helper()
	f, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

// fixAt builds an RTK-grade fix at the test site shifted the given number
// of metres northward.
func fixAt(stamp time.Time, northMetres float64) model.FixRecord {
	return model.FixRecord{
		Stamp: stamp,
		Lat:   testLat + northMetres/metresPerLatDegree,
		Lon:   testLon,
		Alt:   290,
		Type:  model.FixGBAS,
		Cov:   model.Diagonal(1e-6, 1e-6, 1e-6),
	}
}

// cleanStatus builds a status record that triggers none of the quality
// rules when paired with a fix at the same stamp.
func cleanStatus(stamp time.Time) model.StatusRecord {
	return model.StatusRecord{
		Stamp:           stamp,
		SatellitesUsed:  20,
		LastCorrections: stamp,
		AmbiguityRatio:  3.0,
	}
}

// captureMetrics counts recorder callbacks so tests can assert which
// outcomes the filter reported.
type captureMetrics struct {
	updates    int
	emitted    int
	jumps      map[string]int
	discards   map[string]int
	resets     map[string]int
	references map[string]int
}

func newCaptureMetrics() *captureMetrics {
	return &captureMetrics{
		jumps:      map[string]int{},
		discards:   map[string]int{},
		resets:     map[string]int{},
		references: map[string]int{},
	}
}

func (c *captureMetrics) RecordUpdate(_ model.QualityLevel, _ model.FixState, emitted bool, _ float64, _ time.Duration) {
	c.updates++
	if emitted {
		c.emitted++
	}
}

func (c *captureMetrics) RecordJump(kind string)         { c.jumps[kind]++ }
func (c *captureMetrics) RecordDiscard(reason string)    { c.discards[reason]++ }
func (c *captureMetrics) RecordReset(reason string)      { c.resets[reason]++ }
func (c *captureMetrics) RecordReference(outcome string) { c.references[outcome]++ }

// settle feeds one clean fix so the filter acquires HAS_FIX and holds a
// previous point, returning the stamp it used.
func settle(t *testing.T, f *Filter) time.Time {
	t.Helper()
	res := f.ProcessPair(context.Background(), fixAt(testEpoch, 0), cleanStatus(testEpoch))
	if res.Fix == nil {
		t.Fatalf("settling fix was not emitted: %+v", res.Report)
	}
	return testEpoch
}

// TestCleanFixEmittedWithFlooredCovariance verifies the ideal path: a
// tight RTK fix with a clean status classifies OK, keeps multiplier 1,
// and is published with its variances raised to the fix floors while
// correlation terms pass through untouched.
func TestCleanFixEmittedWithFlooredCovariance(t *testing.T) {
	f := newTestFilter(t, DefaultConfig())

	fix := fixAt(testEpoch, 0)
	fix.Cov[1] = 5e-7 // east/north correlation must survive filtering
	fix.Cov[3] = 5e-7

	res := f.ProcessPair(context.Background(), fix, cleanStatus(testEpoch))
	if res.Report == nil {
		t.Fatal("expected a quality report")
	}
	if res.Report.Level != model.LevelOK {
		t.Fatalf("level = %v, want OK (comments: %v)", res.Report.Level, res.Report.Comments)
	}
	if res.Report.State != model.StateHasFix {
		t.Fatalf("state = %v, want HAS_FIX", res.Report.State)
	}
	if res.Report.CovMultiplier != 1 {
		t.Fatalf("multiplier = %v, want 1", res.Report.CovMultiplier)
	}
	if len(res.Report.Comments) != 0 {
		t.Fatalf("unexpected comments on a clean fix: %v", res.Report.Comments)
	}
	if res.Fix == nil {
		t.Fatal("expected the filtered fix to be emitted")
	}
	for axis := model.AxisEast; axis <= model.AxisUp; axis++ {
		if got := res.Fix.Cov.Var(axis); got != 1e-4 {
			t.Errorf("axis %d variance = %g, want floored 1e-4", axis, got)
		}
	}
	if res.Fix.Cov[1] != 5e-7 || res.Fix.Cov[3] != 5e-7 {
		t.Errorf("off-diagonal terms were modified: %v", res.Fix.Cov)
	}
}

// TestFloatFixUsesLooserFloors verifies non-RTK fixes are floored at the
// float floors rather than the tight fix floors.
func TestFloatFixUsesLooserFloors(t *testing.T) {
	f := newTestFilter(t, DefaultConfig())

	fix := fixAt(testEpoch, 0)
	fix.Type = model.FixSBAS

	res := f.ProcessPair(context.Background(), fix, cleanStatus(testEpoch))
	if res.Fix == nil {
		t.Fatalf("fix not emitted: %+v", res.Report)
	}
	for axis := model.AxisEast; axis <= model.AxisUp; axis++ {
		if got := res.Fix.Cov.Var(axis); got != 1e-2 {
			t.Errorf("axis %d variance = %g, want floored 1e-2", axis, got)
		}
	}
}

// TestReportedVarianceAboveFloorIsKept verifies the floor only raises
// variances and never shrinks an honest covariance.
func TestReportedVarianceAboveFloorIsKept(t *testing.T) {
	f := newTestFilter(t, DefaultConfig())

	fix := fixAt(testEpoch, 0)
	fix.Cov = model.Diagonal(0.25, 0.25, 1.0)

	res := f.ProcessPair(context.Background(), fix, cleanStatus(testEpoch))
	if res.Fix == nil {
		t.Fatalf("fix not emitted: %+v", res.Report)
	}
	if got := res.Fix.Cov.Var(model.AxisEast); got != 0.25 {
		t.Errorf("east variance = %g, want 0.25 kept", got)
	}
	if got := res.Fix.Cov.Var(model.AxisUp); got != 1.0 {
		t.Errorf("up variance = %g, want 1.0 kept", got)
	}
}

// TestSuppressedReportCarriesInfiniteMultiplier verifies the multiplier
// sentinel on reports published without an accompanying fix.
func TestSuppressedReportCarriesInfiniteMultiplier(t *testing.T) {
	f := newTestFilter(t, DefaultConfig())

	fix := fixAt(testEpoch, 0)
	fix.Type = model.FixNone

	res := f.ProcessPair(context.Background(), fix, cleanStatus(testEpoch))
	if res.Fix != nil {
		t.Fatal("NO_FIX-type fix must not be emitted")
	}
	if res.Report == nil || !res.Report.CovMultiplier.Inf() {
		t.Fatalf("expected infinite multiplier, got %+v", res.Report)
	}
	if !math.IsInf(float64(res.Report.CovMultiplier), 1) {
		t.Fatalf("multiplier sentinel is not +Inf: %v", res.Report.CovMultiplier)
	}
}
