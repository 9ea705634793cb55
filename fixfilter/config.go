package fixfilter

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates a Config failed validation.
var ErrInvalidConfig = errors.New("invalid filter config")

// Config carries the thresholds and duration windows of the filter. The
// zero value is not usable; start from DefaultConfig and override.
type Config struct {
	// MinFixCov and MinFloatCov are per-axis variance floors in m²,
	// indexed by model.Axis. Fixes with an RTK-grade fix type use the
	// tighter fix floors, everything else the float floors.
	MinFixCov   [3]float64
	MinFloatCov [3]float64

	// MaxCov is the horizontal variance in m² above which a fix is
	// unusable regardless of anything else the receiver claims.
	MaxCov float64

	// MaxVelocity is the highest plausible speed of the platform in m/s.
	// Apparent velocities above it are treated as suspicious jumps;
	// above NonsenseVelocity they are treated as outright impossible.
	// A zero NonsenseVelocity defaults to three times MaxVelocity.
	MaxVelocity      float64
	NonsenseVelocity float64

	// Covariance multipliers applied per quality level. OK fixes always
	// use a multiplier of 1.
	AverageCovMultiplier  float64
	DegradedCovMultiplier float64

	// FixLost is the silence between consecutive fixes after which the
	// fix is considered lost. Reconvergence is how long the filter stays
	// cautious after a loss or a detected jump. MaxCorrectionsAge is
	// the oldest correction data still considered fresh.
	FixLost           time.Duration
	Reconvergence     time.Duration
	MaxCorrectionsAge time.Duration

	// Satellite-count tiers: fewer than BadSatellites makes the fix
	// unusable, fewer than DegradedSatellites strongly suspect, fewer
	// than AverageSatellites merely mediocre.
	BadSatellites      int
	DegradedSatellites int
	AverageSatellites  int

	// Ambiguity-ratio tiers: a ratio below DegradedRatio marks a poorly
	// resolved carrier-phase solution, below AverageRatio a marginal one.
	DegradedRatio float64
	AverageRatio  float64
}

// DefaultConfig returns the tuning used on the robots when nothing is
// overridden.
func DefaultConfig() Config {
	return Config{
		MinFixCov:   [3]float64{1e-4, 1e-4, 1e-4},
		MinFloatCov: [3]float64{1e-2, 1e-2, 1e-2},
		MaxCov:      10,

		MaxVelocity:      2.0,
		NonsenseVelocity: 6.0,

		AverageCovMultiplier:  10,
		DegradedCovMultiplier: 100,

		FixLost:           1 * time.Second,
		Reconvergence:     20 * time.Second,
		MaxCorrectionsAge: 10 * time.Second,

		BadSatellites:      4,
		DegradedSatellites: 5,
		AverageSatellites:  15,

		DegradedRatio: 1.0,
		AverageRatio:  1.8,
	}
}

// Validate checks the config for values the filter cannot operate with.
func (c Config) Validate() error {
	for axis, v := range c.MinFixCov {
		if v <= 0 {
			return fmt.Errorf("%w: min_fix_cov axis %d must be positive, got %g", ErrInvalidConfig, axis, v)
		}
	}
	for axis, v := range c.MinFloatCov {
		if v <= 0 {
			return fmt.Errorf("%w: min_float_cov axis %d must be positive, got %g", ErrInvalidConfig, axis, v)
		}
	}
	if c.MaxCov <= 0 {
		return fmt.Errorf("%w: max_cov must be positive, got %g", ErrInvalidConfig, c.MaxCov)
	}
	if c.MaxVelocity <= 0 {
		return fmt.Errorf("%w: max_velocity must be positive, got %g", ErrInvalidConfig, c.MaxVelocity)
	}
	if c.NonsenseVelocity <= c.MaxVelocity {
		return fmt.Errorf("%w: nonsense_velocity %g must exceed max_velocity %g",
			ErrInvalidConfig, c.NonsenseVelocity, c.MaxVelocity)
	}
	if c.AverageCovMultiplier < 1 {
		return fmt.Errorf("%w: average_fix_cov_multiplier must be at least 1, got %g",
			ErrInvalidConfig, c.AverageCovMultiplier)
	}
	if c.DegradedCovMultiplier < c.AverageCovMultiplier {
		return fmt.Errorf("%w: degraded_fix_cov_multiplier %g must not be below average_fix_cov_multiplier %g",
			ErrInvalidConfig, c.DegradedCovMultiplier, c.AverageCovMultiplier)
	}
	if c.FixLost <= 0 {
		return fmt.Errorf("%w: fix_lost_duration must be positive, got %s", ErrInvalidConfig, c.FixLost)
	}
	if c.Reconvergence <= 0 {
		return fmt.Errorf("%w: fix_reconvergence_duration must be positive, got %s", ErrInvalidConfig, c.Reconvergence)
	}
	if c.MaxCorrectionsAge <= 0 {
		return fmt.Errorf("%w: max_corrections_age must be positive, got %s", ErrInvalidConfig, c.MaxCorrectionsAge)
	}
	if c.BadSatellites < 1 {
		return fmt.Errorf("%w: bad satellite tier must be at least 1, got %d", ErrInvalidConfig, c.BadSatellites)
	}
	if c.DegradedSatellites < c.BadSatellites || c.AverageSatellites < c.DegradedSatellites {
		return fmt.Errorf("%w: satellite tiers must be ordered bad <= degraded <= average, got %d/%d/%d",
			ErrInvalidConfig, c.BadSatellites, c.DegradedSatellites, c.AverageSatellites)
	}
	if c.DegradedRatio < 0 {
		return fmt.Errorf("%w: degraded ratio tier must be non-negative, got %g", ErrInvalidConfig, c.DegradedRatio)
	}
	if c.AverageRatio < c.DegradedRatio {
		return fmt.Errorf("%w: ratio tiers must be ordered degraded <= average, got %g/%g",
			ErrInvalidConfig, c.DegradedRatio, c.AverageRatio)
	}
	return nil
}
