// Package ecs implements the archetype-based entity/component store: a
// generational entity table, component registration backed by the resource
// store, archetypes as ordered component sets, and the deferred-migration
// entity mutator.
//
// The shape mirrors Voskan-arena-cache's layered design (a generational
// arena at the bottom, a typed registry above it, dynamic dispatch at the
// edges) generalised from a single cache table to a table-of-tables: every
// component's storage is itself a resource in a *resource.Store, so the
// same borrow discipline from package resource governs concurrent system
// access to component data.
package ecs

import "github.com/Voskan/ecsrt/internal/arena"

// Entity is a generational reference into a World's entity table. The zero
// Entity is never returned by Spawn; it is reserved as the not-an-entity
// value so a map keyed by Entity can use it as a sentinel if needed.
type Entity arena.Index

// EntityLocation records where a live entity's component row lives: which
// archetype owns it and which row within that archetype's dense columns.
type EntityLocation struct {
	Archetype ArchetypeId
	Row       int
}

// RemovalEvent records that component Component was removed from Entity,
// either by an explicit EntityMut.Remove or as a side effect of Despawn.
type RemovalEvent struct {
	Entity    Entity
	Component ComponentId
}
