package model

import (
	"fmt"
	"math"
	"time"
)

// StatusRecord is the detailed correction/quality report some receivers
// publish alongside each fix. When a receiver does not provide one, the
// filter synthesizes an equivalent record from the fix itself.
type StatusRecord struct {
	Stamp          time.Time `json:"stamp"`
	SatellitesUsed int       `json:"satellites_used"`
	// LastCorrections is the time corrections were last applied; the zero
	// value means "never".
	LastCorrections time.Time `json:"last_corrections"`
	// AmbiguityRatio is the integer-ambiguity resolution ratio from
	// carrier-phase positioning; larger means a more trustworthy solution.
	AmbiguityRatio float64 `json:"ambiguity_ratio"`
	// Synthesized marks records imputed from a bare fix rather than
	// reported by the receiver.
	Synthesized bool `json:"synthesized,omitempty"`
}

// CorrectionsAge returns the elapsed time since corrections were last
// applied, and whether corrections have ever been applied.
func (s StatusRecord) CorrectionsAge(now time.Time) (time.Duration, bool) {
	if s.LastCorrections.IsZero() {
		return 0, false
	}
	return now.Sub(s.LastCorrections), true
}

// Validate performs structural validation on a status record.
func (s StatusRecord) Validate() error {
	if s.Stamp.IsZero() {
		return fmt.Errorf("%w: stamp is required", ErrInvalidStatus)
	}
	if s.SatellitesUsed < 0 {
		return fmt.Errorf("%w: satellites_used %d is negative", ErrInvalidStatus, s.SatellitesUsed)
	}
	if math.IsNaN(s.AmbiguityRatio) || s.AmbiguityRatio < 0 {
		return fmt.Errorf("%w: ambiguity_ratio %v out of range", ErrInvalidStatus, s.AmbiguityRatio)
	}
	return nil
}
