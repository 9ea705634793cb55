package fixfilter

import (
	"time"

	"github.com/ctu-vras/gnss-drivers/model"
)

// Jump kinds reported to the metrics recorder.
const (
	JumpSoft            = "soft"
	JumpHard            = "hard"
	JumpReference       = "reference"
	JumpReferenceReject = "reference_reject"
)

// Discard reasons reported to the metrics recorder.
const (
	DiscardDuplicatePair    = "duplicate_pair"
	DiscardDuplicateFixOnly = "duplicate_fix_only"
	DiscardFallbackDisabled = "fallback_disabled"
)

// Reference update outcomes reported to the metrics recorder.
const (
	ReferenceAccepted = "accepted"
	ReferenceBadFrame = "bad_frame"
	ReferenceBadZone  = "bad_zone"
	ReferenceBadStamp = "bad_stamp"
)

// MetricsRecorder receives filter outcomes for Prometheus-friendly
// aggregation. Implementations must be safe for concurrent use; the
// filter invokes them while holding its lock.
type MetricsRecorder interface {
	// RecordUpdate is called once per uniquely-stamped processed fix.
	RecordUpdate(level model.QualityLevel, state model.FixState, emitted bool, multiplier float64, took time.Duration)
	// RecordJump is called for each displacement-check violation.
	RecordJump(kind string)
	// RecordDiscard is called for inputs dropped before processing.
	RecordDiscard(reason string)
	// RecordReset is called when the filter state is wiped.
	RecordReset(reason string)
	// RecordReference is called for each forced-reference update attempt.
	RecordReference(outcome string)
}

type noopMetrics struct{}

func (noopMetrics) RecordUpdate(model.QualityLevel, model.FixState, bool, float64, time.Duration) {}
func (noopMetrics) RecordJump(string)                                                            {}
func (noopMetrics) RecordDiscard(string)                                                         {}
func (noopMetrics) RecordReset(string)                                                           {}
func (noopMetrics) RecordReference(string)                                                       {}
