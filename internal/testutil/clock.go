package testutil

import "sync"

// SeqClock hands out logical sequence numbers for harness events.
// Events are ordered by seq only, so traces are identical across runs.
type SeqClock struct {
	mu  sync.Mutex
	seq int64
}

// NewSeqClock creates a clock whose first Next returns 1.
func NewSeqClock() *SeqClock {
	return &SeqClock{}
}

// Next increments and returns the sequence number.
func (c *SeqClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last number handed out, or 0.
func (c *SeqClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so the next call to Next returns 1.
func (c *SeqClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
