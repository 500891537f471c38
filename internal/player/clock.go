// ABOUTME: Playback clock derived from samples handed to the device
// ABOUTME: Millisecond position without drift from integer division
package player

import "sync/atomic"

// Clock tracks playback position. It advances only when samples are
// committed to the sink, so it reflects what the listener hears, not
// what has been decoded. Position reads are safe from any goroutine.
type Clock struct {
	rate    int
	samples atomic.Int64
}

func NewClock(sampleRate int) *Clock {
	return &Clock{rate: sampleRate}
}

// Advance records n mono samples written to the device.
func (c *Clock) Advance(n int) {
	c.samples.Add(int64(n))
}

// Ms returns the playback position in milliseconds. The division
// happens on the running sample total so rounding never accumulates.
func (c *Clock) Ms() int64 {
	if c.rate == 0 {
		return 0
	}
	return c.samples.Load() * 1000 / int64(c.rate)
}

// Reset rewinds the clock for a new session.
func (c *Clock) Reset() {
	c.samples.Store(0)
}
