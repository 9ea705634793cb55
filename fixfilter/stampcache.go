package fixfilter

import "time"

// stampCacheSize is how many recently emitted timestamps are remembered
// for deduplication. Ten is plenty: the two ingestion paths can only
// race within a message or two of each other.
const stampCacheSize = 10

// stampCache is a fixed-size FIFO of recently emitted timestamps. It is
// not safe for concurrent use on its own; the filter accesses it under
// its lock.
type stampCache struct {
	stamps []time.Time
	next   int
}

func newStampCache(size int) *stampCache {
	return &stampCache{stamps: make([]time.Time, 0, size)}
}

// Contains reports whether the timestamp was recently emitted.
func (c *stampCache) Contains(t time.Time) bool {
	for _, s := range c.stamps {
		if s.Equal(t) {
			return true
		}
	}
	return false
}

// Add records an emitted timestamp, evicting the oldest entry once the
// cache is full.
func (c *stampCache) Add(t time.Time) {
	if len(c.stamps) < cap(c.stamps) {
		c.stamps = append(c.stamps, t)
		return
	}
	c.stamps[c.next] = t
	c.next = (c.next + 1) % len(c.stamps)
}
