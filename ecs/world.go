package ecs

import (
	"github.com/Voskan/ecsrt/internal/arena"
	"github.com/Voskan/ecsrt/internal/bitset"
	"github.com/Voskan/ecsrt/resource"
)

// World owns the entity table, the component registry, the archetype
// collection, and the resource store every component's storage and every
// user resource lives in. It plays the role Voskan-arena-cache/pkg/cache.go
// plays for its shards: the single point callers reach through, while the
// real bookkeeping is delegated to the arena, the registry and the
// archetype collection underneath.
type World struct {
	resources  *resource.Store
	entities   *arena.Arena[EntityLocation]
	components *components
	archetypes *archetypes

	removalEvents []RemovalEvent
}

// NewWorld constructs an empty World. opts configure the underlying
// resource store exactly as they would resource.New (logging, metrics).
func NewWorld(opts ...resource.Option) *World {
	return &World{
		resources:  resource.New(opts...),
		entities:   arena.New[EntityLocation](),
		components: newComponents(),
		archetypes: newArchetypes(),
	}
}

// Resources exposes the World's resource store so callers can register and
// borrow ordinary (non-component) singleton resources alongside component
// storages.
func (w *World) Resources() *resource.Store { return w.resources }

// Contains reports whether e currently refers to a live entity.
func (w *World) Contains(e Entity) bool { return w.entities.Contains(arena.Index(e)) }

// Location returns e's current archetype and row, if e is live.
func (w *World) Location(e Entity) (EntityLocation, bool) {
	loc := w.entities.Get(arena.Index(e))
	if loc == nil {
		return EntityLocation{}, false
	}
	return *loc, true
}

// ArchetypeCount returns the number of registered archetypes, the empty
// archetype included. Query's incremental matcher polls this to discover
// archetypes created since its last scan.
func (w *World) ArchetypeCount() int { return w.archetypes.Len() }

// ArchetypeAt returns the archetype registered with id.
func (w *World) ArchetypeAt(id ArchetypeId) *Archetype { return w.archetypes.Get(id) }

// ComponentCount returns the number of registered component types.
func (w *World) ComponentCount() int { return len(w.components.infos) }

// ComponentKind reports id's storage kind.
func (w *World) ComponentKind(id ComponentId) StorageKind { return w.components.info(id).kind }

// ComponentStorageId returns the resource id backing id's storage.
func (w *World) ComponentStorageId(id ComponentId) resource.ID {
	return w.components.info(id).storageResID
}

// ComponentStorage returns the erased Storage for id.
func (w *World) ComponentStorage(id ComponentId) Storage {
	raw, ok := resource.GetAny(w.resources, w.components.info(id).storageResID)
	if !ok {
		return nil
	}
	st, ok := raw.(Storage)
	if !ok {
		return nil
	}
	return st
}

// Spawn allocates a new entity in the empty archetype and returns a mutator
// to build up its components. The entity is live (Contains reports true)
// from this call onward, even before Flush is called.
func (w *World) Spawn() *EntityMut {
	empty := w.archetypes.Get(0)
	row := len(empty.Entities)

	idx := w.entities.Insert(EntityLocation{Archetype: 0, Row: row})
	e := Entity(idx)
	empty.Entities = append(empty.Entities, e)

	return &EntityMut{
		world:    w,
		entity:   e,
		loc:      EntityLocation{Archetype: 0, Row: row},
		toInsert: make(map[ComponentId]pendingInsert),
	}
}

// Entity returns a mutator over an already-live entity, e.g. to add or
// remove components from it after spawn time.
func (w *World) Entity(e Entity) (*EntityMut, bool) {
	loc, ok := w.Location(e)
	if !ok {
		return nil, false
	}
	return &EntityMut{world: w, entity: e, loc: loc, toInsert: make(map[ComponentId]pendingInsert)}, true
}

// Despawn removes every component e has (dense and sparse alike), swap-
// removes it from its archetype, records a removal event per component,
// and frees the entity slot. It reports false if e was not live.
func (w *World) Despawn(e Entity) bool {
	loc, ok := w.Location(e)
	if !ok {
		return false
	}
	arch := w.archetypes.Get(loc.Archetype)

	for _, cid := range iterBits(arch.components) {
		st := w.ComponentStorage(ComponentId(cid))
		if st != nil && st.SwapRemove(e, loc.Archetype, loc.Row) {
			w.removalEvents = append(w.removalEvents, RemovalEvent{Entity: e, Component: ComponentId(cid)})
		}
	}
	for _, info := range w.components.infos {
		if info.kind != Sparse {
			continue
		}
		st := w.ComponentStorage(info.id)
		if st != nil && st.Contains(e, loc.Archetype, loc.Row) {
			st.SwapRemove(e, loc.Archetype, loc.Row)
			w.removalEvents = append(w.removalEvents, RemovalEvent{Entity: e, Component: info.id})
		}
	}

	w.removeArchetypeRow(arch, loc.Row)
	w.entities.Remove(arena.Index(e))
	return true
}

// DrainRemovalEvents returns every removal event recorded since the last
// call and clears the internal queue.
func (w *World) DrainRemovalEvents() []RemovalEvent {
	ev := w.removalEvents
	w.removalEvents = nil
	return ev
}

// removeArchetypeRow swap-removes row from arch's entity vector and fixes
// up the swapped-in entity's recorded location (invariant I4). It does not
// touch any component storage; callers are responsible for removing or
// migrating each dense column's row first.
func (w *World) removeArchetypeRow(arch *Archetype, row int) {
	last := len(arch.Entities) - 1
	if row != last {
		moved := arch.Entities[last]
		arch.Entities[row] = moved
		if loc := w.entities.Get(arena.Index(moved)); loc != nil {
			loc.Row = row
		}
	}
	arch.Entities = arch.Entities[:last]
}

func (w *World) setLocation(e Entity, loc EntityLocation) {
	if p := w.entities.Get(arena.Index(e)); p != nil {
		*p = loc
	}
}

func (w *World) recordRemoval(e Entity, cid ComponentId) {
	w.removalEvents = append(w.removalEvents, RemovalEvent{Entity: e, Component: cid})
}

// iterBits materialises a bitset.Set's members as a slice; used wherever
// the caller needs to mutate the World (entity storages, archetype
// registry) while iterating, since bitset.Set.Iter's range-over-func
// contract makes no promise about survival under concurrent mutation of a
// different Set.
func iterBits(s bitset.Set) []int {
	out := make([]int, 0, s.Len())
	for v := range s.Iter() {
		out = append(out, v)
	}
	return out
}
