// Package geodesy converts geodetic WGS-84 coordinates into planar UTM
// coordinates. The filter pipeline does all of its distance reasoning in
// this projected frame: covariances are metric, and a Euclidean distance
// between two projected points is a usable displacement estimate as long
// as both points were projected into the same zone.
//
// The package is pure computation. It holds no state and is safe for
// concurrent use.
package geodesy

import (
	"errors"
	"math"
	"time"
)

// FrameUTM tags coordinates produced by this package. External reference
// updates carry a frame tag and are only trusted when it matches.
const FrameUTM = "utm"

// ErrOutOfRange is returned when a coordinate lies outside the domain the
// UTM projection is defined for.
var ErrOutOfRange = errors.New("geodesy: coordinate outside UTM domain")

// Point is a position in a UTM zone, in metres. Easting grows eastward,
// northing northward; both carry the conventional false offsets so they
// are always positive within the zone.
//
// Distances between points are meaningful only when their zones match.
type Point struct {
	Easting  float64   `json:"easting"`
	Northing float64   `json:"northing"`
	Zone     Zone      `json:"zone"`
	Stamp    time.Time `json:"stamp"`
}

// DistanceTo returns the planar distance between two points in metres.
// The caller is responsible for ensuring both points share a zone;
// comparing points across zones yields a number without meaning.
func (p Point) DistanceTo(q Point) float64 {
	de := p.Easting - q.Easting
	dn := p.Northing - q.Northing
	return math.Sqrt(de*de + dn*dn)
}
