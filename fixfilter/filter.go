// Package fixfilter decides, fix by fix, how much a GNSS position can be
// trusted. It tracks whether a usable fix currently exists, detects
// implausible position jumps in a planar projected frame, classifies each
// fix into quality tiers with human-readable reasons, and inflates the
// published covariance so a downstream estimator down-weighs poor fixes
// instead of being destabilized by them.
package fixfilter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ctu-vras/gnss-drivers/geodesy"
	"github.com/ctu-vras/gnss-drivers/internal/logging"
	"github.com/ctu-vras/gnss-drivers/model"
)

// backwardTolerance is how far back a fix stamp may step before the
// filter treats it as a time discontinuity and resets.
const backwardTolerance = 3 * time.Second

// ErrBadReference indicates a forced-reference update was rejected and
// the previously stored reference kept.
var ErrBadReference = errors.New("bad reference update")

// Result is the outcome of one update cycle.
type Result struct {
	// Report carries the quality verdict. It is nil only when the input
	// was discarded (duplicate stamp or disabled fallback path).
	Report *model.QualityReport
	// Fix is the covariance-inflated fix, present only when the filter
	// holds a usable fix of acceptable quality.
	Fix *model.FixRecord
	// Duplicate marks inputs whose stamp was already processed.
	Duplicate bool
}

// Filter is the fix-quality filter. Its inputs arrive as independent
// callbacks on arbitrary goroutines; every exported method serializes on
// one lock so each update cycle observes and mutates consistent state.
type Filter struct {
	// mu serializes whole update cycles, not individual fields. The
	// state machine's transition order is only meaningful when a cycle
	// runs its read-modify-write as a unit.
	mu sync.Mutex

	cfg     Config
	log     logging.Logger
	metrics MetricsRecorder

	state       model.FixState
	lastLevel   model.QualityLevel
	lastStamp   time.Time      // stamp of the last processed fix
	lastPoint   *geodesy.Point // last projected position, nil until a fix arrives
	zone        geodesy.Zone   // sticky projection zone, zero until a fix arrives
	reconvSince time.Time      // when reconvergence began, zero when not reconverging
	softSince   time.Time      // when a sub-critical jump began decaying, zero when none

	// reference is the forced anchor. It survives filter resets: it
	// describes the world, not the timeline being tracked.
	reference *geodesy.Point

	// statusSeen flips once a real fix/status pair arrives, permanently
	// disabling the fix-only fallback path.
	statusSeen bool

	// seen deduplicates stamps across the two ingestion paths.
	seen *stampCache
}

// Option customises Filter construction.
type Option func(*Filter)

// WithMetrics attaches a recorder for filter outcomes.
func WithMetrics(m MetricsRecorder) Option {
	return func(f *Filter) {
		if m != nil {
			f.metrics = m
		}
	}
}

// New builds a Filter with the given tuning. A zero NonsenseVelocity
// defaults to three times MaxVelocity. A nil logger drops all logs.
func New(cfg Config, log logging.Logger, opts ...Option) (*Filter, error) {
	if cfg.NonsenseVelocity == 0 {
		cfg.NonsenseVelocity = 3 * cfg.MaxVelocity
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Noop()
	}
	f := &Filter{
		cfg:     cfg,
		log:     log,
		metrics: noopMetrics{},
		seen:    newStampCache(stampCacheSize),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// ProcessPair runs one update cycle for a fix with its matching status
// record. Observing a real pair permanently disables the fix-only
// fallback path.
func (f *Filter) ProcessPair(ctx context.Context, fix model.FixRecord, status model.StatusRecord) Result {
	ctx, span := startCycleSpan(ctx, "pair")
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.statusSeen {
		f.statusSeen = true
		f.log.Info(ctx, "status stream live, fix-only fallback disabled")
	}
	res := f.processLocked(ctx, fix, status, DiscardDuplicatePair)
	annotateCycleSpan(span, res)
	return res
}

// ProcessFixOnly runs one update cycle for a bare fix, synthesizing the
// status record the receiver did not provide. Once a real pair has been
// observed these inputs are dropped: the synthesized status would fight
// the real one over the same stamps.
func (f *Filter) ProcessFixOnly(ctx context.Context, fix model.FixRecord) Result {
	ctx, span := startCycleSpan(ctx, "fix_only")
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.statusSeen {
		f.log.Debug(ctx, "dropping fix-only input, status stream is live")
		f.metrics.RecordDiscard(DiscardFallbackDisabled)
		res := Result{}
		annotateCycleSpan(span, res)
		return res
	}
	res := f.processLocked(ctx, fix, SynthesizeStatus(f.cfg, fix), DiscardDuplicateFixOnly)
	annotateCycleSpan(span, res)
	return res
}

// SetReference replaces the forced anchor wholesale. Updates carrying the
// wrong frame tag, an unparseable zone or no stamp are rejected and the
// previous reference is kept.
func (f *Filter) SetReference(ctx context.Context, upd model.ReferenceUpdate) error {
	if upd.Frame != geodesy.FrameUTM {
		f.metrics.RecordReference(ReferenceBadFrame)
		f.log.Error(ctx, "reference update in wrong frame, ignored",
			logging.String("frame", upd.Frame), logging.String("want", geodesy.FrameUTM))
		return fmt.Errorf("%w: frame %q, want %q", ErrBadReference, upd.Frame, geodesy.FrameUTM)
	}
	zone, err := geodesy.ParseZone(upd.Zone)
	if err != nil {
		f.metrics.RecordReference(ReferenceBadZone)
		f.log.Error(ctx, "reference update with bad zone, ignored",
			logging.String("zone", upd.Zone), logging.Err(err))
		return fmt.Errorf("%w: %v", ErrBadReference, err)
	}
	if upd.Stamp.IsZero() {
		f.metrics.RecordReference(ReferenceBadStamp)
		f.log.Error(ctx, "reference update without stamp, ignored")
		return fmt.Errorf("%w: stamp is required", ErrBadReference)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.reference = &geodesy.Point{
		Easting:  upd.Easting,
		Northing: upd.Northing,
		Zone:     zone,
		Stamp:    upd.Stamp,
	}
	f.metrics.RecordReference(ReferenceAccepted)
	f.log.Info(ctx, "forced reference updated",
		logging.String("zone", zone.String()),
		logging.Float64("easting", upd.Easting),
		logging.Float64("northing", upd.Northing))
	return nil
}

// Snapshot is a point-in-time view of the filter for diagnostics.
type Snapshot struct {
	State            model.FixState     `json:"state"`
	LastLevel        model.QualityLevel `json:"last_level"`
	LastStamp        time.Time          `json:"last_stamp"`
	Zone             string             `json:"zone,omitempty"`
	Reference        *geodesy.Point     `json:"reference,omitempty"`
	StatusStreamLive bool               `json:"status_stream_live"`
}

// Snapshot returns a consistent view of the current filter state.
func (f *Filter) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := Snapshot{
		State:            f.state,
		LastLevel:        f.lastLevel,
		LastStamp:        f.lastStamp,
		StatusStreamLive: f.statusSeen,
	}
	if f.zone.Valid() {
		snap.Zone = f.zone.String()
	}
	if f.reference != nil {
		ref := *f.reference
		snap.Reference = &ref
	}
	return snap
}

// processLocked runs the full update cycle for one fix. Caller must hold
// f.mu. The cycle order is fixed: dedup, time discontinuity, projection,
// state transitions, displacement checks, anchor check, classification,
// inflation. Reordering it changes which transition wins a cycle.
func (f *Filter) processLocked(ctx context.Context, fix model.FixRecord, status model.StatusRecord, dupReason string) Result {
	start := time.Now()

	if f.seen.Contains(fix.Stamp) {
		f.log.Debug(ctx, "duplicate stamp, suppressing", logging.Any("stamp", fix.Stamp))
		f.metrics.RecordDiscard(dupReason)
		return Result{Duplicate: true}
	}

	rep := &model.QualityReport{Stamp: fix.Stamp}

	// A stamp stepping backwards beyond tolerance means replayed data or
	// a resynced clock; past state no longer describes this timeline.
	if !f.lastStamp.IsZero() {
		if back := f.lastStamp.Sub(fix.Stamp); back > backwardTolerance {
			f.resetLocked()
			rep.Note("time moved backwards %.1fs, filter reset", back.Seconds())
			f.log.Warn(ctx, "time moved backwards, filter reset",
				logging.Duration("backwards", back))
			f.metrics.RecordReset("backward_time")
		}
	}

	pt, err := f.projectLocked(ctx, fix)
	if err != nil {
		// Outside the projection domain: report an unusable fix and
		// leave the tracking state as it was.
		rep.Level = rep.Level.RaiseTo(model.LevelBad)
		rep.Note("position cannot be projected")
		rep.State = f.state
		rep.CovMultiplier = model.InfMultiplier()
		f.log.Warn(ctx, "fix outside projection domain",
			logging.Float64("lat", fix.Lat), logging.Float64("lon", fix.Lon), logging.Err(err))
		return f.finishLocked(start, rep, nil)
	}

	// State transitions, most fundamental first. Displacement verdicts
	// later in the cycle may override what happens here.
	if f.state == model.StateNoFix {
		f.state = model.StateHasFix
		f.log.Info(ctx, "fix acquired", logging.String("zone", pt.Zone.String()))
	}
	if f.state == model.StateHasFix && f.lastPoint != nil {
		if gap := fix.Stamp.Sub(f.lastPoint.Stamp); gap > f.cfg.FixLost {
			f.state = model.StateReconverging
			f.reconvSince = fix.Stamp
			rep.Note("fix lost for %.1fs", gap.Seconds())
			f.log.Warn(ctx, "fix lost, reconverging", logging.Duration("gap", gap))
		}
	}
	if f.state == model.StateReconverging && !f.reconvSince.IsZero() &&
		fix.Stamp.Sub(f.reconvSince) > f.cfg.Reconvergence {
		f.state = model.StateHasFix
		f.reconvSince = time.Time{}
		f.log.Info(ctx, "reconvergence complete")
	}

	// Displacement against the previous fix.
	jumped := false
	softJumped := false
	if f.lastPoint != nil {
		switch v := velocityBetween(*f.lastPoint, pt); {
		case v > f.cfg.NonsenseVelocity:
			jumped = true
			f.state = model.StateReconverging
			f.reconvSince = fix.Stamp
			rep.Note("position jumped at %.1fm/s", v)
			f.log.Warn(ctx, "position jump", logging.Float64("velocity", v))
			f.metrics.RecordJump(JumpHard)
		case v > f.cfg.MaxVelocity:
			softJumped = true
			f.softSince = fix.Stamp
			rep.Note("suspicious velocity %.1fm/s", v)
			f.log.Info(ctx, "suspicious velocity, covariance penalty applied",
				logging.Float64("velocity", v))
			f.metrics.RecordJump(JumpSoft)
		}
	}
	if !f.softSince.IsZero() && fix.Stamp.Sub(f.softSince) >= f.cfg.Reconvergence {
		f.softSince = time.Time{}
	}

	// Distance from the forced anchor, unless a jump already fired.
	if f.reference != nil && !jumped && !softJumped {
		f.checkReferenceLocked(ctx, pt, rep)
	}

	classify(f.cfg, fix, status, jumped, rep)
	rep.State = f.state

	var out *model.FixRecord
	if f.state == model.StateHasFix && rep.Level != model.LevelBad {
		filtered := fix
		mult := inflate(f.cfg, rep.Level, fix.Type.RTKGrade(), f.softSince, fix.Stamp, &filtered.Cov)
		rep.CovMultiplier = model.Multiplier(mult)
		out = &filtered
	} else {
		rep.CovMultiplier = model.InfMultiplier()
	}

	f.lastPoint = &pt
	return f.finishLocked(start, rep, out)
}

// checkReferenceLocked compares the fix against the forced anchor and
// forces a state downgrade when it lies outside the plausible envelope.
// Caller must hold f.mu.
func (f *Filter) checkReferenceLocked(ctx context.Context, pt geodesy.Point, rep *model.QualityReport) {
	ref := *f.reference
	if ref.Zone != pt.Zone {
		// Planar distances across zones mean nothing. The anchor is kept
		// and applies again once the sticky zone matches it.
		f.log.Debug(ctx, "reference zone differs from fix zone, anchor check skipped",
			logging.String("reference_zone", ref.Zone.String()),
			logging.String("fix_zone", pt.Zone.String()))
		return
	}
	dist := pt.DistanceTo(ref)
	switch {
	case dist > referenceEnvelope(f.cfg, ref, pt.Stamp, f.cfg.NonsenseVelocity):
		f.state = model.StateNoFix
		f.reconvSince = time.Time{}
		rep.Note("%.1fm from reference, fix rejected", dist)
		f.log.Warn(ctx, "fix impossibly far from reference, rejected",
			logging.Float64("distance", dist))
		f.metrics.RecordJump(JumpReferenceReject)
	case dist > referenceEnvelope(f.cfg, ref, pt.Stamp, f.cfg.MaxVelocity):
		f.state = model.StateReconverging
		f.reconvSince = pt.Stamp
		rep.Note("%.1fm from reference", dist)
		f.log.Warn(ctx, "fix too far from reference, reconverging",
			logging.Float64("distance", dist))
		f.metrics.RecordJump(JumpReference)
	}
}

// projectLocked projects the fix into the sticky zone, establishing the
// zone from the first projectable fix after a reset. Caller must hold f.mu.
func (f *Filter) projectLocked(ctx context.Context, fix model.FixRecord) (geodesy.Point, error) {
	if f.zone.Valid() {
		pt, err := geodesy.ToUTMZone(fix.Lat, fix.Lon, f.zone)
		if err != nil {
			return geodesy.Point{}, err
		}
		pt.Stamp = fix.Stamp
		return pt, nil
	}

	pt, err := geodesy.ToUTM(fix.Lat, fix.Lon)
	if err != nil {
		return geodesy.Point{}, err
	}
	f.zone = pt.Zone
	f.log.Info(ctx, "projection zone established", logging.String("zone", f.zone.String()))
	pt.Stamp = fix.Stamp
	return pt, nil
}

// resetLocked wipes fix-tracking state after a time discontinuity. The
// forced reference, the fallback-path flag and the dedup cache survive:
// they describe the inputs, not the timeline being tracked. Caller must
// hold f.mu.
func (f *Filter) resetLocked() {
	f.state = model.StateNoFix
	f.lastPoint = nil
	f.zone = geodesy.Zone{}
	f.reconvSince = time.Time{}
	f.softSince = time.Time{}
}

// finishLocked records the bookkeeping shared by every emitted report.
// Caller must hold f.mu.
func (f *Filter) finishLocked(start time.Time, rep *model.QualityReport, out *model.FixRecord) Result {
	f.seen.Add(rep.Stamp)
	f.lastStamp = rep.Stamp
	f.lastLevel = rep.Level
	f.metrics.RecordUpdate(rep.Level, rep.State, out != nil, float64(rep.CovMultiplier), time.Since(start))
	return Result{Report: rep, Fix: out}
}
