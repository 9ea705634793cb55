package fixfilter

import (
	"math"
	"time"

	"github.com/ctu-vras/gnss-drivers/geodesy"
)

// minVelocityInterval guards the velocity computation against division
// blow-up when two fixes carry near-identical stamps.
const minVelocityInterval = time.Millisecond

// velocityBetween returns the apparent speed in m/s between consecutive
// projected points. Near-simultaneous points are treated as stationary.
func velocityBetween(prev, cur geodesy.Point) float64 {
	elapsed := cur.Stamp.Sub(prev.Stamp)
	if elapsed < minVelocityInterval {
		return 0
	}
	return prev.DistanceTo(cur) / elapsed.Seconds()
}

// referenceEnvelope returns how far from the forced reference a fix may
// plausibly lie: the base position uncertainty plus the distance the
// platform could have covered at the given speed since the reference was
// taken. Elapsed time is floored at one second so a reference stamped
// just now still admits a sensible envelope.
func referenceEnvelope(cfg Config, ref geodesy.Point, at time.Time, speed float64) float64 {
	elapsed := at.Sub(ref.Stamp).Seconds()
	if elapsed < 1 {
		elapsed = 1
	}
	return math.Sqrt(cfg.MaxCov) + elapsed*speed
}
