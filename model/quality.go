package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// QualityLevel is a totally ordered fix quality classification. Higher
// values are worse; classification rules only ever raise the level.
type QualityLevel int

const (
	LevelOK QualityLevel = iota
	LevelAverage
	LevelDegraded
	LevelBad
)

// RaiseTo returns the worse of the two levels. Classification is a
// reduction over RaiseTo, which makes the worst-wins rule explicit.
func (l QualityLevel) RaiseTo(min QualityLevel) QualityLevel {
	if min > l {
		return min
	}
	return l
}

func (l QualityLevel) String() string {
	switch l {
	case LevelOK:
		return "OK"
	case LevelAverage:
		return "AVERAGE"
	case LevelDegraded:
		return "DEGRADED"
	case LevelBad:
		return "BAD"
	default:
		return fmt.Sprintf("QualityLevel(%d)", int(l))
	}
}

// Quality levels travel as their names on the wire so consumers never
// need the numeric ordering.

func (l QualityLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *QualityLevel) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("quality level: %w", err)
	}
	switch s {
	case "OK":
		*l = LevelOK
	case "AVERAGE":
		*l = LevelAverage
	case "DEGRADED":
		*l = LevelDegraded
	case "BAD":
		*l = LevelBad
	default:
		return fmt.Errorf("quality level: unknown value %q", s)
	}
	return nil
}

// FixState is the filter's view of whether a usable fix currently exists.
type FixState int

const (
	StateNoFix FixState = iota
	StateHasFix
	StateReconverging
)

func (s FixState) String() string {
	switch s {
	case StateNoFix:
		return "NO_FIX"
	case StateHasFix:
		return "HAS_FIX"
	case StateReconverging:
		return "RECONVERGING"
	default:
		return fmt.Sprintf("FixState(%d)", int(s))
	}
}

func (s FixState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *FixState) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("fix state: %w", err)
	}
	switch v {
	case "NO_FIX":
		*s = StateNoFix
	case "HAS_FIX":
		*s = StateHasFix
	case "RECONVERGING":
		*s = StateReconverging
	default:
		return fmt.Errorf("fix state: unknown value %q", v)
	}
	return nil
}

// Multiplier is the covariance inflation factor attached to a quality
// report. It is +Inf when no filtered fix is published; encoding/json
// rejects infinities, so the sentinel is carried as the string "inf".
type Multiplier float64

// InfMultiplier returns the sentinel carried when no filtered fix is
// published.
func InfMultiplier() Multiplier { return Multiplier(math.Inf(1)) }

// Inf reports whether the multiplier is the no-fix sentinel.
func (m Multiplier) Inf() bool { return math.IsInf(float64(m), 1) }

func (m Multiplier) MarshalJSON() ([]byte, error) {
	if m.Inf() {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(float64(m))
}

func (m *Multiplier) UnmarshalJSON(b []byte) error {
	if string(b) == `"inf"` {
		*m = Multiplier(math.Inf(1))
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("multiplier: %w", err)
	}
	*m = Multiplier(v)
	return nil
}

// QualityReport annotates one processed fix with the filter's verdict. One
// report is emitted for every uniquely-stamped input, whether or not a
// filtered fix accompanies it.
type QualityReport struct {
	Stamp time.Time    `json:"stamp"`
	Level QualityLevel `json:"level"`
	State FixState     `json:"state"`
	// CovMultiplier is the covariance inflation applied to the published
	// fix, or +Inf when no fix was published this cycle.
	CovMultiplier Multiplier `json:"covariance_multiplier"`
	// Comments lists one human-readable reason per triggered condition,
	// in detection order.
	Comments []string `json:"comments,omitempty"`
}

// Note appends a comment, preserving detection order.
func (r *QualityReport) Note(format string, args ...any) {
	r.Comments = append(r.Comments, fmt.Sprintf(format, args...))
}
