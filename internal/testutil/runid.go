package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequentialRunIDs generates run-0001, run-0002, ... and never runs out.
//
// Unlike engine.FixedGenerator, which panics once its list is used up, this
// suits scenarios whose cycle count is data-driven.
//
// Implements engine.RunIDGenerator. Safe for concurrent use.
type SequentialRunIDs struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialRunIDs creates a generator. An empty prefix defaults to "run".
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDs{prefix: prefix}
}

// Generate returns the next run id.
func (g *SequentialRunIDs) Generate() string {
	return fmt.Sprintf("%s-%04d", g.prefix, g.n.Add(1))
}
