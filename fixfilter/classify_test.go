package fixfilter

import (
	"strings"
	"testing"
	"time"

	"github.com/ctu-vras/gnss-drivers/model"
)

// TestClassifyRules walks each quality rule through its tiers.
func TestClassifyRules(t *testing.T) {
	cfg := DefaultConfig()
	stamp := testEpoch

	cases := []struct {
		name   string
		mutate func(fix *model.FixRecord, st *model.StatusRecord)
		want   model.QualityLevel
		reason string // substring expected in some comment
	}{
		{
			name:   "clean",
			mutate: func(*model.FixRecord, *model.StatusRecord) {},
			want:   model.LevelOK,
		},
		{
			name:   "corrections never applied",
			mutate: func(_ *model.FixRecord, st *model.StatusRecord) { st.LastCorrections = time.Time{} },
			want:   model.LevelDegraded,
			reason: "corrections never",
		},
		{
			name: "corrections stale",
			mutate: func(_ *model.FixRecord, st *model.StatusRecord) {
				st.LastCorrections = stamp.Add(-11 * time.Second)
			},
			want:   model.LevelDegraded,
			reason: "corrections",
		},
		{
			name: "corrections just fresh enough",
			mutate: func(_ *model.FixRecord, st *model.StatusRecord) {
				st.LastCorrections = stamp.Add(-10 * time.Second)
			},
			want: model.LevelOK,
		},
		{
			name:   "three satellites",
			mutate: func(_ *model.FixRecord, st *model.StatusRecord) { st.SatellitesUsed = 3 },
			want:   model.LevelBad,
			reason: "too few satellites",
		},
		{
			name:   "four satellites",
			mutate: func(_ *model.FixRecord, st *model.StatusRecord) { st.SatellitesUsed = 4 },
			want:   model.LevelDegraded,
			reason: "few satellites",
		},
		{
			name:   "fourteen satellites",
			mutate: func(_ *model.FixRecord, st *model.StatusRecord) { st.SatellitesUsed = 14 },
			want:   model.LevelAverage,
			reason: "moderate satellite count",
		},
		{
			name:   "fifteen satellites",
			mutate: func(_ *model.FixRecord, st *model.StatusRecord) { st.SatellitesUsed = 15 },
			want:   model.LevelOK,
		},
		{
			name:   "unresolved ambiguity",
			mutate: func(_ *model.FixRecord, st *model.StatusRecord) { st.AmbiguityRatio = 0.9 },
			want:   model.LevelDegraded,
			reason: "low ambiguity",
		},
		{
			name:   "marginal ambiguity",
			mutate: func(_ *model.FixRecord, st *model.StatusRecord) { st.AmbiguityRatio = 1.5 },
			want:   model.LevelAverage,
			reason: "moderate ambiguity",
		},
		{
			name:   "ambiguity at average tier boundary",
			mutate: func(_ *model.FixRecord, st *model.StatusRecord) { st.AmbiguityRatio = 1.8 },
			want:   model.LevelOK,
		},
		{
			name:   "receiver reports no fix",
			mutate: func(fix *model.FixRecord, _ *model.StatusRecord) { fix.Type = model.FixNone },
			want:   model.LevelBad,
			reason: "no fix",
		},
		{
			name: "horizontal variance over limit",
			mutate: func(fix *model.FixRecord, _ *model.StatusRecord) {
				fix.Cov = model.Diagonal(0.5, 10.5, 0.5)
			},
			want:   model.LevelBad,
			reason: "variance",
		},
		{
			name: "vertical variance is not limited",
			mutate: func(fix *model.FixRecord, _ *model.StatusRecord) {
				fix.Cov = model.Diagonal(0.5, 0.5, 50)
			},
			want: model.LevelOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fix := fixAt(stamp, 0)
			st := cleanStatus(stamp)
			tc.mutate(&fix, &st)

			rep := &model.QualityReport{Stamp: stamp}
			classify(cfg, fix, st, false, rep)

			if rep.Level != tc.want {
				t.Fatalf("level = %v, want %v (comments: %v)", rep.Level, tc.want, rep.Comments)
			}
			if tc.reason == "" {
				return
			}
			found := false
			for _, c := range rep.Comments {
				if strings.Contains(c, tc.reason) {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("no comment mentioning %q in %v", tc.reason, rep.Comments)
			}
		})
	}
}

// TestClassifyWorstRuleWins verifies the final level is the maximum any
// rule demanded, independent of the order conditions trigger in.
func TestClassifyWorstRuleWins(t *testing.T) {
	cfg := DefaultConfig()

	fix := fixAt(testEpoch, 0)
	st := cleanStatus(testEpoch)
	st.SatellitesUsed = 10           // AVERAGE
	st.AmbiguityRatio = 0.5          // DEGRADED
	st.LastCorrections = time.Time{} // DEGRADED

	rep := &model.QualityReport{Stamp: testEpoch}
	classify(cfg, fix, st, false, rep)
	if rep.Level != model.LevelDegraded {
		t.Fatalf("level = %v, want DEGRADED", rep.Level)
	}
	if len(rep.Comments) != 3 {
		t.Fatalf("expected one comment per triggered rule, got %v", rep.Comments)
	}

	// Adding a BAD condition can only raise the verdict.
	st.SatellitesUsed = 2
	rep = &model.QualityReport{Stamp: testEpoch}
	classify(cfg, fix, st, false, rep)
	if rep.Level != model.LevelBad {
		t.Fatalf("level = %v, want BAD", rep.Level)
	}
}

// TestClassifyCommentsPreserveRuleOrder verifies comments land in the
// order the rules run, so readers can follow the evaluation.
func TestClassifyCommentsPreserveRuleOrder(t *testing.T) {
	cfg := DefaultConfig()

	fix := fixAt(testEpoch, 0)
	st := cleanStatus(testEpoch)
	st.LastCorrections = testEpoch.Add(-30 * time.Second)
	st.SatellitesUsed = 10
	st.AmbiguityRatio = 1.2

	rep := &model.QualityReport{Stamp: testEpoch}
	classify(cfg, fix, st, false, rep)

	if len(rep.Comments) != 3 {
		t.Fatalf("expected 3 comments, got %v", rep.Comments)
	}
	order := []string{"corrections", "satellite", "ambiguity"}
	for i, want := range order {
		if !strings.Contains(rep.Comments[i], want) {
			t.Fatalf("comment[%d] = %q, want it to mention %q", i, rep.Comments[i], want)
		}
	}
}

// TestClassifyJumpRaisesToBad verifies the jump flag computed earlier in
// the cycle feeds the classification as its own severity floor.
func TestClassifyJumpRaisesToBad(t *testing.T) {
	cfg := DefaultConfig()
	fix := fixAt(testEpoch, 0)
	st := cleanStatus(testEpoch)

	rep := &model.QualityReport{Stamp: testEpoch}
	classify(cfg, fix, st, true, rep)
	if rep.Level != model.LevelBad {
		t.Fatalf("level = %v, want BAD when a jump was detected", rep.Level)
	}
}
