package query

import (
	"sync"
	"sync/atomic"

	"github.com/TheBitDrifter/mask"

	"github.com/Voskan/ecsrt/ecs"
	"github.com/Voskan/ecsrt/internal/bitset"
)

// matcher is the incremental archetype-match cache owned by one query; each
// New* constructor builds its own. It mirrors spec.md §4.E's
// algorithm literally: a cheap integer comparison on the hot path, a single
// mutex guarding the rare re-scan, and an atomic pointer swap so concurrent
// readers never block on it or see a torn set.
//
// mask.Mask backs the per-archetype containment test, the same call shape
// TheBitDrifter-warehouse's compositeNode.Evaluate uses: mark every
// required bit once, then ContainsAll against each candidate archetype's
// own mask.
type matcher struct {
	mu       sync.Mutex
	need     mask.Mask
	lastSeen atomic.Int64
	matching atomic.Pointer[bitset.Set]
}

func newMatcher(needed []term) *matcher {
	m := &matcher{}
	for _, t := range needed {
		if t.requiredForMatch() {
			m.need.Mark(uint32(t.id))
		}
	}
	empty := bitset.Set{}
	m.matching.Store(&empty)
	return m
}

// Matching returns the current set of archetype ids whose component set
// satisfies every required dense term, rescanning any archetypes created
// since the last call.
func (m *matcher) Matching(w *ecs.World) *bitset.Set {
	total := w.ArchetypeCount()
	cached := m.matching.Load()
	if int64(total) <= m.lastSeen.Load() {
		return cached
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another goroutine may have already rescanned past `total` while we
	// waited for the lock.
	seen := int(m.lastSeen.Load())
	if total <= seen {
		return m.matching.Load()
	}

	next := m.matching.Load().Clone()
	for id := seen; id < total; id++ {
		arch := w.ArchetypeAt(ecs.ArchetypeId(id))
		if archetypeMatches(arch, m.need) {
			next.Insert(id)
		}
	}
	m.matching.Store(&next)
	m.lastSeen.Store(int64(total))
	return &next
}

func archetypeMatches(arch *ecs.Archetype, need mask.Mask) bool {
	var archMask mask.Mask
	comps := arch.Components()
	for v := range comps.Iter() {
		archMask.Mark(uint32(v))
	}
	return archMask.ContainsAll(need)
}
