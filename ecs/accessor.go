package ecs

import "github.com/Voskan/ecsrt/resource"

// typedDense returns c's concrete *denseStorage[T], bypassing the erased
// Storage interface. Used by the query engine's hot iteration path, where
// an interface call per row would cost an allocation-free but still
// non-trivial dynamic dispatch per element.
func typedDense[T any](w *World, c Component[T]) (*denseStorage[T], bool) {
	raw, ok := resource.GetAny(w.resources, w.ComponentStorageId(c.id))
	if !ok {
		return nil, false
	}
	ds, ok := raw.(*denseStorage[T])
	return ds, ok
}

func typedSparse[T any](w *World, c Component[T]) (*sparseStorage[T], bool) {
	raw, ok := resource.GetAny(w.resources, w.ComponentStorageId(c.id))
	if !ok {
		return nil, false
	}
	ss, ok := raw.(*sparseStorage[T])
	return ss, ok
}

// GetComponent returns a pointer to e's value for component c, or
// (nil, false) if e doesn't have it. The pointer aliases the storage
// directly; callers must not retain it across a Flush that might migrate
// or swap-remove the row.
func GetComponent[T any](w *World, c Component[T], e Entity) (*T, bool) {
	loc, ok := w.Location(e)
	if !ok {
		return nil, false
	}
	switch w.ComponentKind(c.id) {
	case Sparse:
		ss, ok := typedSparse[T](w, c)
		if !ok {
			return nil, false
		}
		return ss.GetTyped(e)
	default:
		ds, ok := typedDense[T](w, c)
		if !ok {
			return nil, false
		}
		return ds.GetTyped(loc.Archetype, loc.Row)
	}
}

// HasComponent reports whether e currently has a value for component c.
func HasComponent[T any](w *World, c Component[T], e Entity) bool {
	_, ok := GetComponent[T](w, c, e)
	return ok
}

// DenseColumn returns the raw backing slice for component c in archetype a,
// in archetype-row order. The query engine uses this to walk dense
// components without a per-row lookup.
func DenseColumn[T any](w *World, c Component[T], a ArchetypeId) ([]T, bool) {
	ds, ok := typedDense[T](w, c)
	if !ok {
		return nil, false
	}
	return ds.Column(a), true
}
