package ecs

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Voskan/ecsrt/internal/bitset"
)

// ArchetypeId identifies an archetype within a World's Archetypes
// collection. Ids are assigned in insertion order; 0 is always the empty
// archetype.
type ArchetypeId int

// Archetype is an ordered component set plus the ordered vector of entities
// currently in it. Row i in Entities corresponds to row i in every dense
// storage registered for a component in Components.
type Archetype struct {
	id         ArchetypeId
	components bitset.Set
	Entities   []Entity
}

func (a *Archetype) Id() ArchetypeId         { return a.id }
func (a *Archetype) Components() bitset.Set  { return a.components.Clone() }
func (a *Archetype) Has(id ComponentId) bool { return a.components.Contains(int(id)) }
func (a *Archetype) Len() int                { return len(a.Entities) }

// archetypes is the World's archetype collection: get_or_insert keyed by
// component set, with ids assigned in insertion order and the empty set
// pre-registered as id 0.
type archetypes struct {
	list  []*Archetype
	byKey map[string]ArchetypeId
}

func newArchetypes() *archetypes {
	as := &archetypes{byKey: make(map[string]ArchetypeId)}
	empty := &Archetype{id: 0}
	as.list = append(as.list, empty)
	as.byKey[setKey(empty.components)] = 0
	return as
}

// setKey canonicalises a bitset's membership into a stable string so two
// equal component sets always land in the same map bucket, independent of
// insertion order or internal word-trimming.
func setKey(s bitset.Set) string {
	members := make([]int, 0, s.Len())
	for v := range s.Iter() {
		members = append(members, v)
	}
	sort.Ints(members)
	var b strings.Builder
	for i, m := range members {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(m))
	}
	return b.String()
}

// GetOrInsert returns the ArchetypeId for set, creating a new archetype if
// this exact component set has never been seen.
func (as *archetypes) GetOrInsert(set bitset.Set) ArchetypeId {
	key := setKey(set)
	if id, ok := as.byKey[key]; ok {
		return id
	}
	id := ArchetypeId(len(as.list))
	as.list = append(as.list, &Archetype{id: id, components: set.Clone()})
	as.byKey[key] = id
	return id
}

// Get returns the archetype for id. Two distinct ids yield two distinct
// pointers, so a caller migrating an entity between archetypes can hold
// both the old and new archetype mutably at once without any special API —
// Go's aliasing rules, unlike the borrow checker the original source
// relies on for this same guarantee, already allow it.
func (as *archetypes) Get(id ArchetypeId) *Archetype { return as.list[id] }

// Len returns the number of registered archetypes, including the empty one.
func (as *archetypes) Len() int { return len(as.list) }
