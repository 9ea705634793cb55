package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInvalidFix indicates a fix record failed structural validation.
	ErrInvalidFix = errors.New("invalid fix")
	// ErrInvalidStatus indicates a status record failed structural validation.
	ErrInvalidStatus = errors.New("invalid status")
)

// FixType encodes the correction tier of a positioning solution, following
// the conventional receiver status codes (-1 = no solution).
type FixType int8

const (
	FixNone     FixType = iota - 1 // no usable solution
	FixStandard                    // autonomous fix, no corrections applied
	FixSBAS                        // satellite-based augmentation corrections
	FixGBAS                        // ground-based (RTK-grade) corrections
)

// RTKGrade reports whether the fix type indicates real-time-kinematic
// corrections, the highest confidence tier.
func (t FixType) RTKGrade() bool { return t == FixGBAS }

// Known reports whether the value is one of the defined fix types.
func (t FixType) Known() bool { return t >= FixNone && t <= FixGBAS }

func (t FixType) String() string {
	switch t {
	case FixNone:
		return "NO_FIX"
	case FixStandard:
		return "FIX"
	case FixSBAS:
		return "SBAS_FIX"
	case FixGBAS:
		return "GBAS_FIX"
	default:
		return fmt.Sprintf("FixType(%d)", int8(t))
	}
}

// Axis indexes the diagonal of a position covariance matrix.
type Axis int

const (
	AxisEast Axis = iota
	AxisNorth
	AxisUp
)

// Covariance is a row-major 3x3 position covariance in m², with the
// diagonal holding the east/north/up variances.
type Covariance [9]float64

// Var returns the variance for the given axis.
func (c Covariance) Var(a Axis) float64 { return c[4*int(a)] }

// SetVar overwrites the variance for the given axis.
func (c *Covariance) SetVar(a Axis, v float64) { c[4*int(a)] = v }

// Diagonal builds a covariance with the given per-axis variances and zero
// correlation terms.
func Diagonal(east, north, up float64) Covariance {
	var c Covariance
	c.SetVar(AxisEast, east)
	c.SetVar(AxisNorth, north)
	c.SetVar(AxisUp, up)
	return c
}

// MaxHorizontal returns the larger of the two horizontal variances.
func (c Covariance) MaxHorizontal() float64 {
	return math.Max(c.Var(AxisEast), c.Var(AxisNorth))
}

// FixRecord is a single positioning solution as carried on the fix topic.
type FixRecord struct {
	Stamp time.Time  `json:"stamp"`
	Lat   float64    `json:"lat"` // decimal degrees, north positive
	Lon   float64    `json:"lon"` // decimal degrees, east positive
	Alt   float64    `json:"alt"` // metres above the ellipsoid
	Type  FixType    `json:"fix_type"`
	Cov   Covariance `json:"covariance"`
}

// Validate performs structural validation on a fix record before it enters
// the filter.
func (f FixRecord) Validate() error {
	if f.Stamp.IsZero() {
		return fmt.Errorf("%w: stamp is required", ErrInvalidFix)
	}
	if !f.Type.Known() {
		return fmt.Errorf("%w: unknown fix type %d", ErrInvalidFix, int8(f.Type))
	}
	if math.IsNaN(f.Lat) || f.Lat < -90 || f.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidFix, f.Lat)
	}
	if math.IsNaN(f.Lon) || f.Lon < -180 || f.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidFix, f.Lon)
	}
	for i, v := range f.Cov {
		if math.IsNaN(v) {
			return fmt.Errorf("%w: covariance[%d] is NaN", ErrInvalidFix, i)
		}
	}
	return nil
}
