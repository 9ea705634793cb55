// Package receiver translates the NMEA sentence stream of a serial GNSS
// receiver into the fix and status records the rest of the pipeline
// consumes.
//
// GGA is the anchor sentence: every GGA that can be stamped yields one
// fix/status pair. RMC contributes the date, because GGA carries only a
// time of day, and GST contributes the receiver's own per-axis error
// estimates for the covariance. When no GST accompanies a GGA the
// covariance falls back to HDOP scaled by the configured range error.
package receiver

import (
	"strconv"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/ctu-vras/gnss-drivers/model"
)

// defaultUERE is the assumed user-equivalent range error in metres when
// none is configured, a common single-frequency figure.
const defaultUERE = 5.0

// Pair is one assembled fix with its companion status record. Both carry
// the same stamp.
type Pair struct {
	Fix    model.FixRecord
	Status model.StatusRecord
}

// Translator assembles NMEA sentences into fix/status pairs. It is not
// safe for concurrent use; feed it from the single goroutine that reads
// the serial port.
type Translator struct {
	uere float64

	date     nmea.Date
	haveDate bool

	// Error estimates from the last GST sentence, keyed by its time of
	// day so they are only applied to the GGA of the same cycle.
	gstTime nmea.Time
	gstCov  model.Covariance
	haveGST bool

	lastStamp time.Time
}

// NewTranslator returns a Translator that uses uereM as the assumed
// range error for the HDOP covariance fallback. Non-positive values
// select the default.
func NewTranslator(uereM float64) *Translator {
	if uereM <= 0 {
		uereM = defaultUERE
	}
	return &Translator{uere: uereM}
}

// Translate consumes one raw line from the receiver. It returns the
// assembled pair and true when the line completes one; anything else
// returns false. Unparseable lines are dropped silently because partial
// sentences are routine on serial links.
func (t *Translator) Translate(line string) (Pair, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Pair{}, false
	}
	s, err := nmea.Parse(line)
	if err != nil {
		return Pair{}, false
	}

	switch s.DataType() {
	case nmea.TypeRMC:
		m := s.(nmea.RMC)
		if m.Date.Valid {
			t.date = m.Date
			t.haveDate = true
		}
	case nmea.TypeGST:
		m := s.(nmea.GST)
		t.gstTime = m.Time
		t.gstCov = model.Diagonal(
			m.LongitudeError*m.LongitudeError,
			m.LatitudeError*m.LatitudeError,
			m.AltitudeError*m.AltitudeError,
		)
		t.haveGST = true
	case nmea.TypeGGA:
		return t.assemble(s.(nmea.GGA))
	}
	return Pair{}, false
}

func (t *Translator) assemble(gga nmea.GGA) (Pair, bool) {
	// No date yet means no usable stamp; wait for the first RMC.
	if !t.haveDate || !gga.Time.Valid {
		return Pair{}, false
	}
	stamp := t.stampFor(gga.Time)
	typ := fixTypeFor(gga.FixQuality)

	pair := Pair{
		Fix: model.FixRecord{
			Stamp: stamp,
			Lat:   gga.Latitude,
			Lon:   gga.Longitude,
			Alt:   gga.Altitude,
			Type:  typ,
			Cov:   t.covarianceFor(gga),
		},
		Status: model.StatusRecord{
			Stamp:           stamp,
			SatellitesUsed:  int(gga.NumSatellites),
			LastCorrections: correctionsFor(stamp, typ, gga.DGPSAge),
			AmbiguityRatio:  ratioFor(gga.FixQuality),
		},
	}
	t.lastStamp = stamp
	return pair, true
}

// stampFor combines the remembered RMC date with a GGA time of day.
// Around midnight a GGA can arrive before the RMC that rolls the date;
// the wrap shows up as the stamp jumping back almost a day.
func (t *Translator) stampFor(tod nmea.Time) time.Time {
	stamp := time.Date(2000+t.date.YY, time.Month(t.date.MM), t.date.DD,
		tod.Hour, tod.Minute, tod.Second, tod.Millisecond*int(time.Millisecond), time.UTC)
	if !t.lastStamp.IsZero() && stamp.Before(t.lastStamp.Add(-12*time.Hour)) {
		stamp = stamp.AddDate(0, 0, 1)
	}
	return stamp
}

// covarianceFor prefers the receiver's own GST error estimates when one
// matches the GGA's time of day, and otherwise estimates the variances
// as (HDOP * UERE)^2 horizontally with doubled vertical error.
func (t *Translator) covarianceFor(gga nmea.GGA) model.Covariance {
	if t.haveGST && t.gstTime == gga.Time {
		return t.gstCov
	}
	hdop := gga.HDOP
	if hdop <= 0 {
		hdop = 1
	}
	sigma := hdop * t.uere
	return model.Diagonal(sigma*sigma, sigma*sigma, 4*sigma*sigma)
}

// fixTypeFor maps the GGA quality indicator onto the fix-type scale.
// Estimated (dead-reckoning) and manual modes count as no fix; both RTK
// variants count as ground-corrected.
func fixTypeFor(quality string) model.FixType {
	switch quality {
	case nmea.GPS, nmea.PPS:
		return model.FixStandard
	case nmea.DGPS:
		return model.FixSBAS
	case nmea.RTK, nmea.FRTK:
		return model.FixGBAS
	default:
		return model.FixNone
	}
}

// ratioFor imputes an ambiguity ratio from the quality indicator. GGA
// carries no carrier-phase statistics, so a receiver on this path gets
// the same figures a bare fix of the matching tier would: fixed RTK
// solutions confident, float RTK and differential fixes middling.
func ratioFor(quality string) float64 {
	switch quality {
	case nmea.RTK:
		return 3.0
	case nmea.FRTK, nmea.DGPS:
		return 1.5
	case nmea.GPS, nmea.PPS:
		return 2.0
	default:
		return 0
	}
}

// correctionsFor derives the last-corrections time for the status
// record. A reported differential age wins; otherwise corrected fix
// types count as freshly corrected and autonomous ones as never.
func correctionsFor(stamp time.Time, typ model.FixType, dgpsAge string) time.Time {
	if age, err := strconv.ParseFloat(dgpsAge, 64); err == nil && age >= 0 {
		return stamp.Add(-time.Duration(age * float64(time.Second)))
	}
	if typ == model.FixSBAS || typ == model.FixGBAS {
		return stamp
	}
	return time.Time{}
}
