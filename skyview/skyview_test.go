package skyview

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestECEFFromGeodeticKnownPoints(t *testing.T) {
	cases := []struct {
		name          string
		lat, lon, alt float64
		want          Vec3
	}{
		{"equator_prime_meridian", 0, 0, 0, Vec3{X: 6378.137}},
		{"equator_90_east", 0, 90, 0, Vec3{Y: 6378.137}},
		{"north_pole", 90, 0, 0, Vec3{Z: 6356.7523142}},
		{"equator_1km_up", 0, 0, 1000, Vec3{X: 6379.137}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ECEFFromGeodetic(tc.lat, tc.lon, tc.alt)
			if !almostEqual(got.X, tc.want.X, 1e-3) ||
				!almostEqual(got.Y, tc.want.Y, 1e-3) ||
				!almostEqual(got.Z, tc.want.Z, 1e-3) {
				t.Fatalf("ECEFFromGeodetic(%v, %v, %v) = %+v, want %+v",
					tc.lat, tc.lon, tc.alt, got, tc.want)
			}
		})
	}
}

func TestElevationDegrees(t *testing.T) {
	observer := Vec3{X: 6371}

	// Directly overhead: straight up along the observer's zenith.
	if got := ElevationDegrees(observer, Vec3{X: 26560}); !almostEqual(got, 90, 1e-9) {
		t.Fatalf("overhead elevation = %v, want 90", got)
	}

	// On the tangent plane: exactly the geometric horizon.
	if got := ElevationDegrees(observer, Vec3{X: 6371, Y: 100}); !almostEqual(got, 0, 1e-9) {
		t.Fatalf("horizon elevation = %v, want 0", got)
	}

	// Below the horizon: a satellite on the far side of the sky.
	if got := ElevationDegrees(observer, Vec3{Y: 26560}); got >= 0 {
		t.Fatalf("far-side elevation = %v, want negative", got)
	}

	// Degenerate input is pinned to overhead rather than NaN.
	if got := ElevationDegrees(observer, observer); got != 90 {
		t.Fatalf("zero-offset elevation = %v, want 90", got)
	}
}
