package geodesy

import (
	"fmt"
	"math"
)

// WGS-84 ellipsoid and the UTM scale factor.
const (
	semiMajorM = 6378137.0
	flattening = 1.0 / 298.257223563
	scale      = 0.9996

	falseEastingM  = 500000.0
	falseNorthingM = 10000000.0
)

// Derived ellipsoid constants.
var (
	ecc2  = flattening * (2 - flattening) // first eccentricity squared
	eccP2 = ecc2 / (1 - ecc2)             // second eccentricity squared
)

// ToUTM projects a WGS-84 geodetic coordinate (degrees) into the UTM zone
// the coordinate naturally belongs to, including the Norway and Svalbard
// zone exceptions. Latitudes outside 80°S..84°N are rejected: UTM is not
// defined there.
func ToUTM(lat, lon float64) (Point, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -80 || lat > 84 {
		return Point{}, fmt.Errorf("%w: lat=%g lon=%g", ErrOutOfRange, lat, lon)
	}
	zone := Zone{Number: naturalZoneNumber(lat, lon), Band: bandFor(lat)}
	return project(lat, lon, zone), nil
}

// ToUTMZone projects a coordinate into a caller-chosen zone instead of its
// natural one. Near a zone boundary this keeps consecutive points in one
// planar frame so that their distance stays meaningful; the distortion a
// few kilometres past the boundary is negligible for that purpose.
func ToUTMZone(lat, lon float64, zone Zone) (Point, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -80 || lat > 84 {
		return Point{}, fmt.Errorf("%w: lat=%g lon=%g", ErrOutOfRange, lat, lon)
	}
	if !zone.Valid() {
		return Point{}, fmt.Errorf("%w: zone %s", ErrOutOfRange, zone)
	}
	return project(lat, lon, zone), nil
}

// naturalZoneNumber returns the longitude zone a coordinate falls into,
// with the two standard irregularities: southern Norway is folded into
// zone 32, and Svalbard uses the widened odd zones 31/33/35/37.
func naturalZoneNumber(lat, lon float64) int {
	// Normalise longitude to [-180, 180).
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	lon -= 180

	zone := int((lon+180)/6) + 1
	if zone > 60 {
		zone = 60
	}

	if lat >= 56 && lat < 64 && lon >= 3 && lon < 12 {
		zone = 32
	}
	if lat >= 72 && lat < 84 {
		switch {
		case lon >= 0 && lon < 9:
			zone = 31
		case lon >= 9 && lon < 21:
			zone = 33
		case lon >= 21 && lon < 33:
			zone = 35
		case lon >= 33 && lon < 42:
			zone = 37
		}
	}
	return zone
}

// project runs the transverse Mercator series expansion for the given
// zone's central meridian. The series is the classic USGS formulation,
// accurate to well under a metre anywhere a receiver plausibly is.
func project(lat, lon float64, zone Zone) Point {
	latR := lat * math.Pi / 180
	lonR := lon * math.Pi / 180
	lon0R := float64((zone.Number-1)*6-180+3) * math.Pi / 180

	sinLat := math.Sin(latR)
	cosLat := math.Cos(latR)
	tanLat := math.Tan(latR)

	n := semiMajorM / math.Sqrt(1-ecc2*sinLat*sinLat)
	t := tanLat * tanLat
	c := eccP2 * cosLat * cosLat
	a := (lonR - lon0R) * cosLat

	// Meridional arc from the equator to lat.
	m := semiMajorM * ((1-ecc2/4-3*ecc2*ecc2/64-5*ecc2*ecc2*ecc2/256)*latR -
		(3*ecc2/8+3*ecc2*ecc2/32+45*ecc2*ecc2*ecc2/1024)*math.Sin(2*latR) +
		(15*ecc2*ecc2/256+45*ecc2*ecc2*ecc2/1024)*math.Sin(4*latR) -
		(35*ecc2*ecc2*ecc2/3072)*math.Sin(6*latR))

	easting := scale*n*(a+(1-t+c)*a*a*a/6+
		(5-18*t+t*t+72*c-58*eccP2)*a*a*a*a*a/120) + falseEastingM

	northing := scale * (m + n*tanLat*(a*a/2+
		(5-t+9*c+4*c*c)*a*a*a*a/24+
		(61-58*t+t*t+600*c-330*eccP2)*a*a*a*a*a*a/720))
	if !zone.North() {
		northing += falseNorthingM
	}

	return Point{Easting: easting, Northing: northing, Zone: zone}
}
