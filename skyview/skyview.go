// Package skyview estimates how many satellites of a constellation stand
// above an elevation mask as seen from a ground position. The synthetic
// producer uses it so the satellites-used field of fabricated status
// records follows real orbital geometry instead of a constant.
package skyview

import "math"

// WGS-84 ellipsoid, in kilometres to match go-satellite's frames.
const (
	semiMajorKm = 6378.137
	flattening  = 1 / 298.257223563
)

var ecc2 = flattening * (2 - flattening)

// Vec3 is an ECEF vector in kilometres.
type Vec3 struct {
	X, Y, Z float64
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// ECEFFromGeodetic converts a geodetic position (degrees, metres above
// the ellipsoid) to an ECEF vector in kilometres.
func ECEFFromGeodetic(latDeg, lonDeg, altM float64) Vec3 {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	altKm := altM / 1000

	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	// Prime-vertical radius of curvature.
	n := semiMajorKm / math.Sqrt(1-ecc2*sinLat*sinLat)

	return Vec3{
		X: (n + altKm) * cosLat * cosLon,
		Y: (n + altKm) * cosLat * sinLon,
		Z: (n*(1-ecc2) + altKm) * sinLat,
	}
}

// ElevationDegrees returns the elevation angle of the target as seen from
// the observer, in degrees. 0° = geometric horizon, 90° = overhead.
func ElevationDegrees(observer, target Vec3) float64 {
	v := target.Sub(observer)
	vNorm := v.Norm()
	if vNorm == 0 {
		return 90
	}

	// Local zenith at the observer is its normalised position vector.
	r := observer.Norm()
	if r == 0 {
		return 90
	}
	zenith := Vec3{X: observer.X / r, Y: observer.Y / r, Z: observer.Z / r}

	cosGamma := v.Dot(zenith) / vNorm
	if cosGamma > 1 {
		cosGamma = 1
	} else if cosGamma < -1 {
		cosGamma = -1
	}
	gammaDeg := math.Acos(cosGamma) * 180 / math.Pi

	// Elevation is measured up from the local horizon.
	return 90 - gammaDeg
}
