package bus

import (
	"sync"
	"time"

	"github.com/ctu-vras/gnss-drivers/model"
)

// maxPending bounds the pairing table. Receivers publish a pair per
// second, so anything beyond a few entries means a stalled stream.
const maxPending = 64

// Pairer reunites fix and status records that carry the same stamp but
// arrive on separate topics in arbitrary order. A fix whose status does
// not show up within the window is delivered alone so the fix-only
// fallback can take over; a status whose fix never arrives ages out.
type Pairer struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[int64]*pendingRecord
	pair    func(model.FixRecord, model.StatusRecord)
	fixOnly func(model.FixRecord)
	stopped bool
}

type pendingRecord struct {
	stamp  time.Time
	fix    *model.FixRecord
	status *model.StatusRecord
	timer  *time.Timer
}

// NewPairer builds a Pairer delivering matched records to pair and
// unmatched fixes to fixOnly. Callbacks run outside the Pairer's lock,
// on whichever goroutine completed the pair or on a timer goroutine.
func NewPairer(window time.Duration, pair func(model.FixRecord, model.StatusRecord), fixOnly func(model.FixRecord)) *Pairer {
	if window <= 0 {
		window = 250 * time.Millisecond
	}
	return &Pairer{
		window:  window,
		pending: make(map[int64]*pendingRecord),
		pair:    pair,
		fixOnly: fixOnly,
	}
}

// AddFix offers a fix for pairing.
func (p *Pairer) AddFix(fix model.FixRecord) {
	key := fix.Stamp.UnixNano()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	if e, ok := p.pending[key]; ok {
		if e.status != nil {
			status := *e.status
			p.removeLocked(key, e)
			p.mu.Unlock()
			p.pair(fix, status)
			return
		}
		// Repeated fix with the same stamp. The filter deduplicates
		// stamps anyway; keep the newest payload.
		e.fix = &fix
		p.mu.Unlock()
		return
	}
	evicted := p.insertLocked(key, &pendingRecord{stamp: fix.Stamp, fix: &fix})
	p.mu.Unlock()

	if evicted != nil {
		p.fixOnly(*evicted)
	}
}

// AddStatus offers a status record for pairing.
func (p *Pairer) AddStatus(status model.StatusRecord) {
	key := status.Stamp.UnixNano()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	if e, ok := p.pending[key]; ok {
		if e.fix != nil {
			fix := *e.fix
			p.removeLocked(key, e)
			p.mu.Unlock()
			p.pair(fix, status)
			return
		}
		e.status = &status
		p.mu.Unlock()
		return
	}
	evicted := p.insertLocked(key, &pendingRecord{stamp: status.Stamp, status: &status})
	p.mu.Unlock()

	if evicted != nil {
		p.fixOnly(*evicted)
	}
}

// insertLocked stores a record and arms its expiry timer. A full table
// evicts the oldest entry first; its fix, if it held one, is returned so
// the caller can flush it down the fallback path outside the lock.
func (p *Pairer) insertLocked(key int64, e *pendingRecord) *model.FixRecord {
	var evictedFix *model.FixRecord
	if len(p.pending) >= maxPending {
		var oldestKey int64
		var oldest *pendingRecord
		for k, cand := range p.pending {
			if oldest == nil || cand.stamp.Before(oldest.stamp) {
				oldestKey, oldest = k, cand
			}
		}
		if oldest != nil {
			p.removeLocked(oldestKey, oldest)
			evictedFix = oldest.fix
		}
	}
	e.timer = time.AfterFunc(p.window, func() { p.expire(key) })
	p.pending[key] = e
	return evictedFix
}

func (p *Pairer) removeLocked(key int64, e *pendingRecord) {
	e.timer.Stop()
	delete(p.pending, key)
}

func (p *Pairer) expire(key int64) {
	p.mu.Lock()
	e, ok := p.pending[key]
	if !ok || p.stopped {
		p.mu.Unlock()
		return
	}
	delete(p.pending, key)
	fix := e.fix
	p.mu.Unlock()

	// A lone status has nothing to fall back to; only fixes survive an
	// expired window.
	if fix != nil {
		p.fixOnly(*fix)
	}
}

// Stop cancels all expiry timers and drops whatever is still pending.
func (p *Pairer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	for key, e := range p.pending {
		e.timer.Stop()
		delete(p.pending, key)
	}
}
