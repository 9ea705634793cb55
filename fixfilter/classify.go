package fixfilter

import "github.com/ctu-vras/gnss-drivers/model"

// classify applies the quality rules to one fix/status pair, raising the
// report's level and appending one comment per triggered condition. The
// rules are independent; the final level is the worst any rule demanded.
// It reads no filter state beyond the jumped flag computed this cycle.
func classify(cfg Config, fix model.FixRecord, status model.StatusRecord, jumped bool, rep *model.QualityReport) {
	// Correction freshness. Ages are measured against the fix stamp so
	// replayed data classifies the same way it did live.
	if age, ok := status.CorrectionsAge(fix.Stamp); !ok {
		rep.Level = rep.Level.RaiseTo(model.LevelDegraded)
		rep.Note("corrections never applied")
	} else if age > cfg.MaxCorrectionsAge {
		rep.Level = rep.Level.RaiseTo(model.LevelDegraded)
		rep.Note("corrections %.1fs old", age.Seconds())
	}

	// Satellite count, tiered. Only the most severe applicable tier fires.
	switch sats := status.SatellitesUsed; {
	case sats < cfg.BadSatellites:
		rep.Level = rep.Level.RaiseTo(model.LevelBad)
		rep.Note("too few satellites (%d)", sats)
	case sats < cfg.DegradedSatellites:
		rep.Level = rep.Level.RaiseTo(model.LevelDegraded)
		rep.Note("few satellites (%d)", sats)
	case sats < cfg.AverageSatellites:
		rep.Level = rep.Level.RaiseTo(model.LevelAverage)
		rep.Note("moderate satellite count (%d)", sats)
	}

	// Integer-ambiguity resolution confidence.
	switch ratio := status.AmbiguityRatio; {
	case ratio < cfg.DegradedRatio:
		rep.Level = rep.Level.RaiseTo(model.LevelDegraded)
		rep.Note("low ambiguity ratio (%.2f)", ratio)
	case ratio < cfg.AverageRatio:
		rep.Level = rep.Level.RaiseTo(model.LevelAverage)
		rep.Note("moderate ambiguity ratio (%.2f)", ratio)
	}

	// The receiver's own verdict.
	if fix.Type == model.FixNone {
		rep.Level = rep.Level.RaiseTo(model.LevelBad)
		rep.Note("receiver reports no fix")
	}

	// Covariance magnitude.
	if hv := fix.Cov.MaxHorizontal(); hv > cfg.MaxCov {
		rep.Level = rep.Level.RaiseTo(model.LevelBad)
		rep.Note("horizontal variance %.2f above limit %.2f", hv, cfg.MaxCov)
	}

	// A hard jump this cycle; its comment was appended at detection.
	if jumped {
		rep.Level = rep.Level.RaiseTo(model.LevelBad)
	}
}
