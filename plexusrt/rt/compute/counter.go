package compute

import "sync/atomic"

// Counter is an atomic element count that saturates at its capacity instead of wrapping.
type Counter struct {
	value    atomic.Uint32
	capacity uint32
}

func NewCounter(capacity uint32) *Counter {
	return &Counter{capacity: capacity}
}

func (c *Counter) Capacity() uint32 { return c.capacity }
func (c *Counter) Load() uint32     { return c.value.Load() }
func (c *Counter) Store(v uint32) {
	if v > c.capacity {
		v = c.capacity
	}
	c.value.Store(v)
}

// Increment claims the next slot. It reports false, leaving the count untouched,
// when the counter is full.
func (c *Counter) Increment() (uint32, bool) {
	for {
		cur := c.value.Load()
		if cur >= c.capacity {
			return cur, false
		}
		if c.value.CompareAndSwap(cur, cur+1) {
			return cur, true
		}
	}
}
