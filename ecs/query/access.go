// Package query implements the query engine over an ecs.World: for a fixed
// pack of component terms it derives the storage resource ids and
// component ids once, matches archetypes incrementally as new ones are
// registered, and walks matching rows yielding typed references.
package query

import (
	"github.com/Voskan/ecsrt/ecs"
	"github.com/Voskan/ecsrt/internal/bitset"
	"github.com/Voskan/ecsrt/resource"
)

// AccessKind selects whether a query term borrows its component for
// reading (Shared) or read-write (Exclusive). The spec expresses this as
// distinct Shared<T>/Exclusive<T> marker types; Go has no const-reference
// type to hang that distinction on at the type-parameter level, so it is
// threaded through as a value instead — a query's derived Access is
// identical either way.
type AccessKind uint8

const (
	Shared AccessKind = iota
	Exclusive
)

// Access is the resource-access set a compiled query declares: every
// storage resource id it touches, split into shared and exclusive bitsets,
// exactly the ResourceAccess the scheduler's ResourceMutTracker consumes.
type Access struct {
	SharedIDs    bitset.Set
	ExclusiveIDs bitset.Set
}

func (a *Access) mark(id resource.ID, kind AccessKind) {
	if kind == Exclusive {
		a.ExclusiveIDs.Insert(int(id))
	} else {
		a.SharedIDs.Insert(int(id))
	}
}

// term describes one element of a query's pack: which component, whether
// its absence excludes the row entirely (required) or yields an
// ecs.Option (optional), and the borrow kind it contributes to Access.
type term struct {
	id           ecs.ComponentId
	storageResID resource.ID
	dense        bool
	optional     bool
	kind         AccessKind
}

func newTerm[T any](w *ecs.World, c ecs.Component[T], optional bool, kind AccessKind) term {
	id := c.Untyped()
	return term{
		id:           id,
		storageResID: w.ComponentStorageId(id),
		dense:        w.ComponentKind(id) == ecs.Dense,
		optional:     optional,
		kind:         kind,
	}
}

func (t term) requiredForMatch() bool { return !t.optional && t.dense }
