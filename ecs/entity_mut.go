package ecs

import "github.com/Voskan/ecsrt/internal/bitset"

// pendingInsert holds a staged component value, boxed as `any` until Flush
// applies it through the component's Storage.
type pendingInsert struct {
	value any
}

// EntityMut collects a pending set of component insertions and removals
// for one entity and applies them together on Flush, so an entity that
// gains and loses several components in the same logical edit only crosses
// archetypes once.
//
// EntityMut has no destructor in Go; callers must call Flush explicitly
// (directly, or via WithEntity) once they are done describing the edit.
// Until Flush runs, the entity is already live and visible to queries at
// its pre-edit location.
type EntityMut struct {
	world    *World
	entity   Entity
	loc      EntityLocation
	toRemove bitset.Set
	toInsert map[ComponentId]pendingInsert
}

// Entity returns the entity this mutator describes.
func (m *EntityMut) Entity() Entity { return m.entity }

// Insert stages component c's value for insertion or replacement. It is a
// free function, not a method, because Go methods cannot carry their own
// type parameters.
func Insert[T any](m *EntityMut, c Component[T], v T) *EntityMut {
	m.toInsert[c.id] = pendingInsert{value: v}
	m.toRemove.Remove(int(c.id))
	return m
}

// Remove stages component c for removal.
func Remove[T any](m *EntityMut, c Component[T]) *EntityMut {
	delete(m.toInsert, c.id)
	m.toRemove.Insert(int(c.id))
	return m
}

// WithEntity runs edit over a freshly spawned entity's mutator and flushes
// it, returning the spawned Entity. It is the common case's one-liner:
// world.WithEntity(func(m *EntityMut) { ecs.Insert(m, pos, Position{}) }).
func (w *World) WithEntity(edit func(m *EntityMut)) Entity {
	m := w.Spawn()
	if edit != nil {
		edit(m)
	}
	return m.Flush()
}

// Flush applies every staged insertion and removal, migrating the entity
// to a new archetype if its component set changed, and returns the
// entity. Calling Flush a second time on the same mutator is a no-op that
// returns the same entity; the pending sets are empty after the first call.
func (m *EntityMut) Flush() Entity {
	w := m.world
	oldArch := w.archetypes.Get(m.loc.Archetype)

	// Step 1: sparse to_remove.
	for v := range m.toRemove.Iter() {
		cid := ComponentId(v)
		if w.components.info(cid).kind != Sparse {
			continue
		}
		st := w.ComponentStorage(cid)
		if st != nil && st.SwapRemove(m.entity, m.loc.Archetype, m.loc.Row) {
			w.recordRemoval(m.entity, cid)
		}
	}

	// Step 2: dense to_remove present in the current archetype — record
	// the event and fold the target component set; the actual data move
	// happens in step 5 alongside every other dense column's migration.
	target := oldArch.components.Clone()
	for v := range m.toRemove.Iter() {
		cid := ComponentId(v)
		if w.components.info(cid).kind != Dense {
			continue
		}
		if oldArch.Has(cid) {
			target.Remove(int(cid))
			w.recordRemoval(m.entity, cid)
		}
	}

	// Step 3: sparse to_insert.
	for cid, pending := range m.toInsert {
		if w.components.info(cid).kind != Sparse {
			continue
		}
		st := w.ComponentStorage(cid)
		st.Insert(m.entity, m.loc.Archetype, pending.value)
	}

	// Step 4: dense to_insert already present in the current archetype —
	// replace in place. New dense components fold into the target set.
	for cid, pending := range m.toInsert {
		info := w.components.info(cid)
		if info.kind != Dense {
			continue
		}
		if oldArch.Has(cid) {
			st := w.ComponentStorage(cid)
			st.Replace(m.entity, m.loc.Archetype, m.loc.Row, pending.value)
		} else {
			target.Insert(int(cid))
		}
	}

	if target.Equal(&oldArch.components) {
		m.clearPending()
		return m.entity
	}

	// Step 5: migrate to the target archetype.
	newArchID := w.archetypes.GetOrInsert(target)
	newArch := w.archetypes.Get(newArchID)
	oldRow := m.loc.Row

	for v := range oldArch.components.Iter() {
		cid := ComponentId(v)
		if w.components.info(cid).kind != Dense {
			continue
		}
		st := w.ComponentStorage(cid)
		if target.Contains(int(cid)) {
			st.SwapRemoveAndInsertTo(m.entity, m.loc.Archetype, oldRow, newArchID)
		} else {
			st.SwapRemove(m.entity, m.loc.Archetype, oldRow)
		}
	}

	for cid, pending := range m.toInsert {
		info := w.components.info(cid)
		if info.kind != Dense || oldArch.Has(cid) {
			continue
		}
		st := w.ComponentStorage(cid)
		st.Insert(m.entity, newArchID, pending.value)
	}

	newArch.Entities = append(newArch.Entities, m.entity)
	newRow := len(newArch.Entities) - 1
	w.removeArchetypeRow(oldArch, oldRow)
	w.setLocation(m.entity, EntityLocation{Archetype: newArchID, Row: newRow})

	m.loc = EntityLocation{Archetype: newArchID, Row: newRow}
	m.clearPending()
	return m.entity
}

func (m *EntityMut) clearPending() {
	m.toRemove.Clear()
	for k := range m.toInsert {
		delete(m.toInsert, k)
	}
}
