package skyview

import (
	"fmt"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// Satellite is one SGP4-propagatable constellation member.
type Satellite struct {
	Name string

	rec satellite.Satellite
}

// FromTLE builds a Satellite from two-line element lines.
func FromTLE(name, line1, line2 string) Satellite {
	return Satellite{
		Name: name,
		rec:  satellite.TLEToSat(line1, line2, satellite.GravityWGS72),
	}
}

// PositionECEF propagates the satellite to the given time and returns its
// Earth-fixed position. go-satellite works in kilometres and so do we.
func (s Satellite) PositionECEF(at time.Time) Vec3 {
	year, month, day := at.Date()
	hour, min, sec := at.Clock()

	posECI, _ := satellite.Propagate(s.rec, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	return Vec3{X: posECEF.X, Y: posECEF.Y, Z: posECEF.Z}
}

// Constellation is a set of satellites loaded from a TLE catalogue.
type Constellation struct {
	sats []Satellite
}

// Len returns the number of satellites in the constellation.
func (c Constellation) Len() int { return len(c.sats) }

// Satellites returns the constellation members.
func (c Constellation) Satellites() []Satellite { return c.sats }

// ParseTLE reads a TLE catalogue in the usual celestrak layouts: groups of
// two element lines, optionally preceded by a name line. Blank lines are
// skipped.
func ParseTLE(text string) (Constellation, error) {
	var (
		c    Constellation
		name string
	)
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "1 ") {
			if name != "" {
				return Constellation{}, fmt.Errorf("tle line %d: consecutive name lines (%q, %q)", i+1, name, line)
			}
			name = line
			continue
		}

		// Element line 1 must be followed immediately by element line 2.
		j := i + 1
		for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
			j++
		}
		if j >= len(lines) || !strings.HasPrefix(strings.TrimSpace(lines[j]), "2 ") {
			return Constellation{}, fmt.Errorf("tle line %d: element line 1 without line 2", i+1)
		}
		if name == "" {
			name = fmt.Sprintf("SAT-%d", c.Len()+1)
		}
		c.sats = append(c.sats, FromTLE(name, line, strings.TrimSpace(lines[j])))
		name = ""
		i = j
	}
	if name != "" {
		return Constellation{}, fmt.Errorf("tle catalogue ends with dangling name line %q", name)
	}
	return c, nil
}

// VisibleFrom counts the satellites standing above the elevation mask as
// seen from the geodetic position at the given time. Satellites whose
// propagation degenerates (decayed element sets) are never counted.
func (c Constellation) VisibleFrom(at time.Time, latDeg, lonDeg, altM, maskDeg float64) int {
	observer := ECEFFromGeodetic(latDeg, lonDeg, altM)
	count := 0
	for _, s := range c.sats {
		if ElevationDegrees(observer, s.PositionECEF(at)) >= maskDeg {
			count++
		}
	}
	return count
}
