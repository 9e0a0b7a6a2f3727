package memory

import "sync/atomic"

// ManualClock is a ledger clock that only moves when told to.
type ManualClock struct {
	now atomic.Uint64
}

func NewManualClock(start uint64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(start)
	return c
}

func (c *ManualClock) Now() uint64 { return c.now.Load() }

func (c *ManualClock) Advance(seconds uint64) { c.now.Add(seconds) }

func (c *ManualClock) Set(ts uint64) { c.now.Store(ts) }
