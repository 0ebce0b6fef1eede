package ecs

import (
	"fmt"
	"reflect"

	"github.com/Voskan/ecsrt/resource"
)

// ComponentId is a dense, erased identifier for a registered component
// type. It doubles as the integer member stored in archetype bitsets.
type ComponentId int

// StorageKind selects how a component's values are stored: Dense columns
// keyed by (archetype, row), or a Sparse map keyed directly by Entity.
type StorageKind uint8

const (
	Dense StorageKind = iota
	Sparse
)

func (k StorageKind) String() string {
	if k == Sparse {
		return "sparse"
	}
	return "dense"
}

// Component is the typed handle returned by RegisterComponent. It carries
// no storage pointer of its own; GetComponent and EntityMut.Flush look the
// storage up through the World each call, the same way resource.ResourceId
// is just a dense int plus a phantom type.
type Component[T any] struct {
	id ComponentId
}

// Untyped erases T, yielding the plain ComponentId.
func (c Component[T]) Untyped() ComponentId { return c.id }

type componentInfo struct {
	id           ComponentId
	typ          reflect.Type
	name         string
	storageResID resource.ID
	kind         StorageKind
}

// components is the World's component registry: init<T>/id<T>/expect_id<T>.
type components struct {
	byType map[reflect.Type]ComponentId
	infos  []componentInfo
}

func newComponents() *components {
	return &components{byType: make(map[reflect.Type]ComponentId)}
}

func typeOf[T any]() reflect.Type { return reflect.TypeFor[T]() }

// RegisterComponent registers T (if not already registered) with the given
// storage kind, initialising its backing storage as a resource in w's
// store. Registration is idempotent: calling it twice for the same T
// ignores the kind argument on the second call and returns the existing id.
func RegisterComponent[T any](w *World, kind StorageKind) Component[T] {
	t := typeOf[T]()
	if id, ok := w.components.byType[t]; ok {
		return Component[T]{id: id}
	}

	// Register the storage by value, not by pointer: Store boxes whatever
	// value it's given as a single *T behind the any, so passing the
	// *denseStorage[T]/*sparseStorage[T] we just built would have the store
	// box a pointer-to-pointer, one indirection more than typedDense/
	// typedSparse's single-pointer type assertion expects.
	var storageResID resource.ID
	switch kind {
	case Sparse:
		rid := resource.InsertUnsend(w.resources, *newSparseStorage[T]())
		storageResID = rid.Untyped()
	default:
		rid := resource.InsertUnsend(w.resources, *newDenseStorage[T]())
		storageResID = rid.Untyped()
	}

	id := ComponentId(len(w.components.infos))
	w.components.infos = append(w.components.infos, componentInfo{
		id:           id,
		typ:          t,
		name:         t.String(),
		storageResID: storageResID,
		kind:         kind,
	})
	w.components.byType[t] = id
	return Component[T]{id: id}
}

// ComponentIdOf returns the id previously registered for T, if any.
func ComponentIdOf[T any](w *World) (Component[T], bool) {
	id, ok := w.components.byType[typeOf[T]()]
	return Component[T]{id: id}, ok
}

// ExpectComponentId returns T's registered id, registering it as Dense on
// first use. Use RegisterComponent directly when the storage kind matters.
func ExpectComponentId[T any](w *World) Component[T] {
	if id, ok := ComponentIdOf[T](w); ok {
		return id
	}
	return RegisterComponent[T](w, Dense)
}

func (c *components) info(id ComponentId) *componentInfo {
	if int(id) >= len(c.infos) {
		panic(fmt.Sprintf("ecs: unknown component id %d", id))
	}
	return &c.infos[id]
}
