package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ctu-vras/gnss-drivers/fixfilter"
	"github.com/ctu-vras/gnss-drivers/model"
)

// FilterCollector bundles the Prometheus metrics of the fix-quality
// filter. It implements fixfilter.MetricsRecorder so the filter can drive
// it directly from its update cycle.
type FilterCollector struct {
	gatherer prometheus.Gatherer

	Updates        *prometheus.CounterVec
	UpdateDuration prometheus.Histogram
	FixState       prometheus.Gauge
	CovMultiplier  prometheus.Gauge
	Jumps          *prometheus.CounterVec
	Discards       *prometheus.CounterVec
	Resets         *prometheus.CounterVec
	References     *prometheus.CounterVec
}

var _ fixfilter.MetricsRecorder = (*FilterCollector)(nil)

// NewFilterCollector registers filter Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when
// nil. Re-registering against the same registerer reuses the existing
// collectors.
func NewFilterCollector(reg prometheus.Registerer) (*FilterCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	updates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gnss_filter_updates_total",
		Help: "Processed fix updates, labeled by quality level, fix state, and whether a filtered fix was emitted.",
	}, []string{"level", "state", "emitted"})
	updates, err := registerCounterVec(reg, updates, "gnss_filter_updates_total")
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gnss_filter_update_duration_seconds",
		Help:    "Duration of one filter update cycle.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.1},
	})
	duration, err = registerHistogram(reg, duration, "gnss_filter_update_duration_seconds")
	if err != nil {
		return nil, err
	}

	fixState, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gnss_filter_fix_state",
		Help: "Current fix state: 0 = NO_FIX, 1 = HAS_FIX, 2 = RECONVERGING.",
	}), "gnss_filter_fix_state")
	if err != nil {
		return nil, err
	}

	covMultiplier, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gnss_filter_covariance_multiplier",
		Help: "Covariance multiplier of the last processed fix; +Inf while no fix is being published.",
	}), "gnss_filter_covariance_multiplier")
	if err != nil {
		return nil, err
	}

	jumps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gnss_filter_jumps_total",
		Help: "Displacement-check violations by kind (soft, hard, reference, reference_reject).",
	}, []string{"kind"})
	jumps, err = registerCounterVec(reg, jumps, "gnss_filter_jumps_total")
	if err != nil {
		return nil, err
	}

	discards := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gnss_filter_discards_total",
		Help: "Inputs dropped before processing, by reason.",
	}, []string{"reason"})
	discards, err = registerCounterVec(reg, discards, "gnss_filter_discards_total")
	if err != nil {
		return nil, err
	}

	resets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gnss_filter_resets_total",
		Help: "Full filter state resets, by reason.",
	}, []string{"reason"})
	resets, err = registerCounterVec(reg, resets, "gnss_filter_resets_total")
	if err != nil {
		return nil, err
	}

	references := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gnss_filter_reference_updates_total",
		Help: "Forced-reference update attempts, by outcome.",
	}, []string{"outcome"})
	references, err = registerCounterVec(reg, references, "gnss_filter_reference_updates_total")
	if err != nil {
		return nil, err
	}

	return &FilterCollector{
		gatherer:       gatherer,
		Updates:        updates,
		UpdateDuration: duration,
		FixState:       fixState,
		CovMultiplier:  covMultiplier,
		Jumps:          jumps,
		Discards:       discards,
		Resets:         resets,
		References:     references,
	}, nil
}

// RecordUpdate counts one processed fix and tracks the latest state and
// multiplier.
func (c *FilterCollector) RecordUpdate(level model.QualityLevel, state model.FixState, emitted bool, multiplier float64, took time.Duration) {
	if c == nil {
		return
	}
	if c.Updates != nil {
		c.Updates.WithLabelValues(level.String(), state.String(), strconv.FormatBool(emitted)).Inc()
	}
	if c.UpdateDuration != nil {
		c.UpdateDuration.Observe(took.Seconds())
	}
	if c.FixState != nil {
		c.FixState.Set(float64(state))
	}
	if c.CovMultiplier != nil {
		c.CovMultiplier.Set(multiplier)
	}
}

// RecordJump counts a displacement-check violation.
func (c *FilterCollector) RecordJump(kind string) {
	if c == nil || c.Jumps == nil {
		return
	}
	c.Jumps.WithLabelValues(kind).Inc()
}

// RecordDiscard counts an input dropped before processing.
func (c *FilterCollector) RecordDiscard(reason string) {
	if c == nil || c.Discards == nil {
		return
	}
	c.Discards.WithLabelValues(reason).Inc()
}

// RecordReset counts a full filter reset.
func (c *FilterCollector) RecordReset(reason string) {
	if c == nil || c.Resets == nil {
		return
	}
	c.Resets.WithLabelValues(reason).Inc()
}

// RecordReference counts a forced-reference update attempt.
func (c *FilterCollector) RecordReference(outcome string) {
	if c == nil || c.References == nil {
		return
	}
	c.References.WithLabelValues(outcome).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *FilterCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
