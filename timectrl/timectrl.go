// Package timectrl drives the data-time cadence of the synthetic GNSS
// producer. Everything downstream is driven by the stamps inside the
// records rather than by wall time, so a cadence may run accelerated to
// replay long scenarios in seconds.
package timectrl

import (
	"context"
	"sync"
	"time"
)

// Mode describes how the cadence advances data time.
type Mode int

const (
	// RealTime advances one step per step-duration of wall time.
	RealTime Mode = iota
	// Accelerated advances as fast as the listeners keep up.
	Accelerated
)

// Cadence steps a data clock and notifies listeners on every step.
// Register all listeners before calling Run.
type Cadence struct {
	mu      sync.RWMutex
	step    time.Duration
	mode    Mode
	current time.Time

	listeners []func(time.Time)
}

// NewCadence builds a cadence starting at start and advancing data time
// by step per tick.
func NewCadence(start time.Time, step time.Duration, mode Mode) *Cadence {
	if step <= 0 {
		step = time.Second
	}
	return &Cadence{step: step, mode: mode, current: start}
}

// Now returns the current data time.
func (c *Cadence) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// SetTime jumps the data clock, e.g. to script a time discontinuity
// mid-run. The next tick steps from the new time.
func (c *Cadence) SetTime(to time.Time) {
	c.mu.Lock()
	c.current = to
	c.mu.Unlock()
}

// AddListener registers a callback invoked with the data time of every
// tick, in registration order, on the run goroutine.
func (c *Cadence) AddListener(fn func(time.Time)) {
	c.listeners = append(c.listeners, fn)
}

// Run advances data time until ctx is cancelled or, when total is
// positive, until that much data time has elapsed. The returned channel
// closes when the cadence stops.
func (c *Cadence) Run(ctx context.Context, total time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		interval := c.step
		if c.mode == Accelerated {
			// A short wall tick keeps accelerated runs from spinning a
			// core while still outrunning real time by orders of
			// magnitude.
			interval = time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var elapsed time.Duration
		for {
			if total > 0 && elapsed >= total {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			c.mu.Lock()
			c.current = c.current.Add(c.step)
			stamp := c.current
			c.mu.Unlock()
			elapsed += c.step

			for _, fn := range c.listeners {
				fn(stamp)
			}
		}
	}()
	return done
}
