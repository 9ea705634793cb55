package fixfilter

import (
	"time"

	"github.com/ctu-vras/gnss-drivers/model"
)

// softJumpPenalty is the covariance penalty factor right after a
// sub-critical jump; it decays linearly over the reconvergence window.
const softJumpPenalty = 10.0

// inflate rewrites the covariance diagonal in place and returns the
// multiplier that was applied. Each axis variance is floored (tighter
// floors for RTK-grade fixes), then scaled by the quality multiplier and,
// while a soft-jump penalty is decaying, by the remaining penalty.
// Off-diagonal entries pass through untouched so correlations survive
// filtering.
func inflate(cfg Config, level model.QualityLevel, rtkGrade bool, softSince, now time.Time, cov *model.Covariance) float64 {
	floors := cfg.MinFloatCov
	if rtkGrade {
		floors = cfg.MinFixCov
	}

	mult := 1.0
	switch level {
	case model.LevelAverage:
		mult = cfg.AverageCovMultiplier
	case model.LevelDegraded:
		mult = cfg.DegradedCovMultiplier
	}

	if !softSince.IsZero() && (level == model.LevelAverage || level == model.LevelDegraded) {
		if age := now.Sub(softSince); age < cfg.Reconvergence {
			// The penalty decays linearly with age. A factor below 1
			// would shrink the published covariance instead of inflating
			// it, so the tail of the window contributes nothing.
			factor := (1 - age.Seconds()/cfg.Reconvergence.Seconds()) * softJumpPenalty
			if factor > 1 {
				mult *= factor
			}
		}
	}

	for axis := model.AxisEast; axis <= model.AxisUp; axis++ {
		v := cov.Var(axis)
		if floor := floors[axis]; v < floor {
			v = floor
		}
		cov.SetVar(axis, mult*v)
	}
	return mult
}
