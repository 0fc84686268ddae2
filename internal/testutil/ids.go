package testutil

import (
	"sync"
	"time"
)

// FixedIDGenerator returns predetermined run identifiers.
//
// It satisfies plan.IDGenerator and ignores its inputs, so tests can assert
// exact artifact paths.
//
//	gen := NewFixedIDGenerator("rr-test-1", "rr-test-2")
//	gen.Generate(...) // "rr-test-1"
//	gen.Generate(...) // "rr-test-2"
//	gen.Generate(...) // panic: all ids exhausted
//
// Thread-safety: FixedIDGenerator is safe for concurrent use via internal mutex.
type FixedIDGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDGenerator creates a generator that returns ids in order.
func NewFixedIDGenerator(ids ...string) *FixedIDGenerator {
	return &FixedIDGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, which means the test planned more
// runs than it declared.
func (g *FixedIDGenerator) Generate(string, int64, time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedIDGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
