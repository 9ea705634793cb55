package fixfilter

import "github.com/ctu-vras/gnss-drivers/model"

// imputedSatellites maps a fix type to a satellite count that lands the
// fix in the tier the type deserves when no real status is available:
//
//	none      0   below every tier, unusable
//	standard  6   mediocre, autonomous fix
//	sbas      10  mediocre, differential corrections
//	gbas      20  full confidence, RTK corrections
var imputedSatellites = map[model.FixType]int{
	model.FixNone:     0,
	model.FixStandard: 6,
	model.FixSBAS:     10,
	model.FixGBAS:     20,
}

// SynthesizeStatus fabricates a StatusRecord from a bare fix for
// receivers that publish no separate status stream. Satellite count
// comes from the fix type, corrections are fresh only for corrected fix
// types, and the ambiguity ratio splits RTK fixes into confidently
// resolved ones (tight covariance) and float-grade ones.
//
// It is a pure function of its inputs so the imputation rules can be
// checked without touching live filter state.
func SynthesizeStatus(cfg Config, fix model.FixRecord) model.StatusRecord {
	st := model.StatusRecord{
		Stamp:       fix.Stamp,
		Synthesized: true,
	}
	if n, ok := imputedSatellites[fix.Type]; ok {
		st.SatellitesUsed = n
	}

	switch fix.Type {
	case model.FixSBAS:
		st.LastCorrections = fix.Stamp
		st.AmbiguityRatio = 1.5
	case model.FixGBAS:
		st.LastCorrections = fix.Stamp
		// An RTK fix reporting variance tighter than the float floor is
		// treated as a resolved (fixed-integer) solution.
		if fix.Cov.MaxHorizontal() <= horizontalFloor(cfg.MinFloatCov) {
			st.AmbiguityRatio = 3.0
		} else {
			st.AmbiguityRatio = 1.5
		}
	case model.FixStandard:
		st.AmbiguityRatio = 2.0
	}
	return st
}

// horizontalFloor returns the larger of the two horizontal axis floors.
func horizontalFloor(floors [3]float64) float64 {
	if floors[model.AxisNorth] > floors[model.AxisEast] {
		return floors[model.AxisNorth]
	}
	return floors[model.AxisEast]
}
