package predictor

import (
	"sync"

	"github.com/nimbusai/querycore/pkg/module"
)

// stripeCount is the number of independent shards in the co-occurrence
// counter. Write-heavy, read-rare counters tolerate a striped structure
// per the design notes on the co-occurrence matrix.
const stripeCount = 16

type pairKey struct {
	a, b module.Type
}

type stripe struct {
	mu     sync.Mutex
	counts map[pairKey]int
}

// coOccurrence is a sparse, symmetric, striped counter over unordered
// module-type pairs. Each emitted prediction set increments every pair
// within it once.
type coOccurrence struct {
	stripes [stripeCount]*stripe
}

func newCoOccurrence() *coOccurrence {
	c := &coOccurrence{}
	for i := range c.stripes {
		c.stripes[i] = &stripe{counts: make(map[pairKey]int)}
	}
	return c
}

func normalize(a, b module.Type) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

func (c *coOccurrence) stripeFor(k pairKey) *stripe {
	idx := (hashType(k.a) ^ hashType(k.b)) % stripeCount
	return c.stripes[idx]
}

func hashType(t module.Type) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(t); i++ {
		h ^= uint32(t[i])
		h *= 16777619
	}
	return h
}

// record increments every unordered pair within types by one.
func (c *coOccurrence) record(types []module.Type) {
	for i := 0; i < len(types); i++ {
		for j := i + 1; j < len(types); j++ {
			k := normalize(types[i], types[j])
			s := c.stripeFor(k)
			s.mu.Lock()
			s.counts[k]++
			s.mu.Unlock()
		}
	}
}

// get returns the joint-occurrence count for the unordered pair (a, b).
func (c *coOccurrence) get(a, b module.Type) int {
	k := normalize(a, b)
	s := c.stripeFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[k]
}
