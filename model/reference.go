package model

import "time"

// ReferenceUpdate is the wire form of an externally supplied trusted
// position used by the filter as a sanity anchor. Frame names the projected
// frame the coordinates are expressed in and must match the filter's
// required frame, or the update is rejected.
type ReferenceUpdate struct {
	Stamp    time.Time `json:"stamp"`
	Frame    string    `json:"frame"`
	Easting  float64   `json:"easting"`  // metres
	Northing float64   `json:"northing"` // metres
	// Zone identifies the projection zone the coordinates belong to,
	// e.g. "33N".
	Zone string `json:"zone"`
}
