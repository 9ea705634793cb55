// Package sim generates the synthetic GNSS streams used to exercise the
// fix-quality filter without hardware: a circular walk around a survey
// point with correlated receiver noise, a satellite count taken from a
// TLE catalogue when one is loaded, and scripted anomalies that displace
// the track or starve it of corrections on a fixed schedule.
package sim

import (
	"math"
	"time"

	"github.com/ctu-vras/gnss-drivers/model"
	"github.com/ctu-vras/gnss-drivers/skyview"
)

// metresPerLatDegree converts small north offsets to degrees of latitude.
const metresPerLatDegree = 111185.0

// fallbackSatellites is published when no TLE catalogue is loaded.
const fallbackSatellites = 17

// Config tunes the synthetic track.
type Config struct {
	// CenterLat/CenterLon/Alt place the survey point the track circles.
	CenterLat float64
	CenterLon float64
	Alt       float64

	// RadiusM and SpeedMS describe the circular walk; a zero radius
	// keeps the track stationary at the centre.
	RadiusM float64
	SpeedMS float64

	// NoiseSigmaM is the horizontal noise sigma, NoiseCorr the
	// east/north correlation in (-1, 1).
	NoiseSigmaM float64
	NoiseCorr   float64

	// ElevationMaskDeg hides catalogue satellites below this elevation.
	ElevationMaskDeg float64

	// JumpEvery displaces the track east by JumpMetres for JumpFor, the
	// first window starting one full interval in. Zero disables it.
	JumpEvery  time.Duration
	JumpFor    time.Duration
	JumpMetres float64

	// CorrectionsDropEvery freezes the corrections stamp for
	// CorrectionsDropFor on the same schedule shape as the jumps.
	CorrectionsDropEvery time.Duration
	CorrectionsDropFor   time.Duration
}

// Track is a deterministic-path generator; only the noise draws differ
// between runs. At is not safe for concurrent use.
type Track struct {
	cfg   Config
	noise *noiseModel
	sky   skyview.Constellation
	start time.Time
}

// NewTrack builds a track. An empty constellation falls back to a fixed
// satellite count.
func NewTrack(cfg Config, sky skyview.Constellation) (*Track, error) {
	noise, err := newNoiseModel(cfg.NoiseSigmaM, cfg.NoiseCorr)
	if err != nil {
		return nil, err
	}
	return &Track{cfg: cfg, noise: noise, sky: sky}, nil
}

// At produces the fix and status records for one data-time stamp. The
// first stamp passed in anchors the anomaly schedule.
func (t *Track) At(stamp time.Time) (model.FixRecord, model.StatusRecord) {
	if t.start.IsZero() {
		t.start = stamp
	}
	elapsed := stamp.Sub(t.start)

	east, north := t.walk(elapsed)
	if windowActive(elapsed, t.cfg.JumpEvery, t.cfg.JumpFor) {
		east += t.cfg.JumpMetres
	}

	ne, nn, nu := t.noise.Sample()
	east += ne
	north += nn

	lat := t.cfg.CenterLat + north/metresPerLatDegree
	lon := t.cfg.CenterLon + east/(metresPerLatDegree*math.Cos(lat*math.Pi/180))

	varH := t.cfg.NoiseSigmaM * t.cfg.NoiseSigmaM
	if varH < 1e-6 {
		varH = 1e-6
	}
	fix := model.FixRecord{
		Stamp: stamp,
		Lat:   lat,
		Lon:   lon,
		Alt:   t.cfg.Alt + nu,
		Type:  model.FixGBAS,
		Cov:   model.Diagonal(varH, varH, 4*varH),
	}

	lastCorrections := stamp
	if t.cfg.CorrectionsDropEvery > 0 && windowActive(elapsed, t.cfg.CorrectionsDropEvery, t.cfg.CorrectionsDropFor) {
		// Frozen at the window start, so the reported age grows tick by
		// tick until corrections resume.
		lastCorrections = stamp.Add(-(elapsed % t.cfg.CorrectionsDropEvery))
	}
	status := model.StatusRecord{
		Stamp:           stamp,
		SatellitesUsed:  t.satellites(stamp),
		LastCorrections: lastCorrections,
		AmbiguityRatio:  3.0,
	}
	return fix, status
}

func (t *Track) walk(elapsed time.Duration) (east, north float64) {
	if t.cfg.RadiusM <= 0 {
		return 0, 0
	}
	theta := t.cfg.SpeedMS / t.cfg.RadiusM * elapsed.Seconds()
	return t.cfg.RadiusM * math.Cos(theta), t.cfg.RadiusM * math.Sin(theta)
}

func (t *Track) satellites(stamp time.Time) int {
	if t.sky.Len() == 0 {
		return fallbackSatellites
	}
	return t.sky.VisibleFrom(stamp, t.cfg.CenterLat, t.cfg.CenterLon, t.cfg.Alt, t.cfg.ElevationMaskDeg)
}

// windowActive reports whether elapsed falls inside an anomaly window.
// The first window opens one full interval in, so every run starts with
// clean data.
func windowActive(elapsed, every, length time.Duration) bool {
	if every <= 0 || length <= 0 || elapsed < every {
		return false
	}
	return elapsed%every < length
}
