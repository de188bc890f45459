package ir

import (
	"maps"
	"slices"
)

// Cursor holds the last integrated seq per stream.
// A missing stream is at seq 0.
type Cursor map[string]int64

// Get returns the position of a stream.
func (c Cursor) Get(stream string) int64 {
	return c[stream]
}

// Advance moves a stream forward. It never moves a stream backwards and
// reports whether the position changed.
func (c Cursor) Advance(stream string, seq int64) bool {
	if seq <= c[stream] {
		return false
	}
	c[stream] = seq
	return true
}

// Clone returns an independent copy.
func (c Cursor) Clone() Cursor {
	if c == nil {
		return Cursor{}
	}
	return maps.Clone(c)
}

// Streams returns stream names in sorted order.
func (c Cursor) Streams() []string {
	return slices.Sorted(maps.Keys(c))
}

// Max returns the highest seq over all streams.
func (c Cursor) Max() int64 {
	var highest int64
	for _, seq := range c {
		if seq > highest {
			highest = seq
		}
	}
	return highest
}
