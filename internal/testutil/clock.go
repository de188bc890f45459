package testutil

import (
	"sync"
	"time"
)

// SeqClock hands out buffer sequence numbers for tests.
//
// Observe lets a test mix explicit and generated seqs: generated values
// always land after every seq seen so far.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SeqClock struct {
	mu  sync.Mutex
	seq int64
}

// NewSeqClock creates a clock starting at 0. The first call to Next()
// returns 1.
func NewSeqClock() *SeqClock {
	return &SeqClock{}
}

// Next increments and returns the next sequence number.
func (c *SeqClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Observe records an explicitly chosen seq. The clock never moves back.
func (c *SeqClock) Observe(seq int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = max(c.seq, seq)
}

// Current returns the current sequence number without incrementing.
func (c *SeqClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset resets the clock to 0.
func (c *SeqClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// Epoch is the first instant a StepClock returns.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// StepClock is a wall clock that advances a fixed step on every reading.
// Pass its Now method wherever a func() time.Time is accepted so stored
// timestamps are reproducible.
//
// Thread-safety: Now is safe for concurrent use.
type StepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewStepClock creates a clock whose first reading is start.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{next: start, step: step}
}

// Now returns the current reading and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}
