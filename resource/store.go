// Package resource implements a typed, dense resource store with interior
// mutability: singleton values registered once, looked up by a stable typed
// id, and borrowed through runtime-checked shared/exclusive guards.
//
// The locking discipline mirrors Voskan-arena-cache/pkg/shard.go's
// per-slot critical sections, generalised from a sync.RWMutex per shard to
// a lock-free shared/exclusive counter per resource slot (see cell.go),
// since resources — unlike cache shards — are borrowed one value at a time
// rather than bulk-iterated.
//
// Every slot stores its value boxed as *T behind an `any`, so a returned
// pointer (from GetMut or a RefMut guard) always observes and mutates the
// one value the Store owns, never a copy.
package resource

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// ID is an untyped, erased resource identifier.
type ID int

// ResourceId is a dense identifier for a resource of type T. It remains
// valid for the lifetime of the Store that issued it, even across Remove
// and InsertAgain.
type ResourceId[T any] struct {
	id ID
}

// Untyped erases the type parameter, yielding the plain ID this
// ResourceId wraps.
func (r ResourceId[T]) Untyped() ID { return r.id }

type slot struct {
	id       ID
	typeID   reflect.Type
	typeName string
	send     bool
	cell     *cell // nil when the slot holds no value; cell.value is always *T
}

// Store is a typed resource table with interior mutability. Construct one
// with New.
type Store struct {
	byType map[reflect.Type]ID
	slots  []slot

	logger  *zap.Logger
	metrics Metrics
}

// New constructs an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		byType:  make(map[reflect.Type]ID),
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
	}
	applyOptions(s, opts)
	return s
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Init registers T if it is not already registered and returns its id.
// Calling Init twice for the same T is idempotent and returns the existing
// id; it does not by itself create a value (use Insert for that).
func Init[T any](s *Store, send bool) ResourceId[T] {
	t := typeOf[T]()
	if id, ok := s.byType[t]; ok {
		return ResourceId[T]{id: id}
	}
	id := ID(len(s.slots))
	s.slots = append(s.slots, slot{
		id:       id,
		typeID:   t,
		typeName: t.String(),
		send:     send,
	})
	s.byType[t] = id
	s.metrics.setSlotCount(len(s.slots))
	return ResourceId[T]{id: id}
}

// Id returns the id previously assigned to T, if any.
func Id[T any](s *Store) (ResourceId[T], bool) {
	t := typeOf[T]()
	id, ok := s.byType[t]
	return ResourceId[T]{id: id}, ok
}

// Insert registers T if necessary and stores v as its value. T must be
// safe to share across goroutines (Send+Sync in the spec's vocabulary);
// such resources are visible through a SendView.
func Insert[T any](s *Store, v T) ResourceId[T] {
	id := Init[T](s, true)
	box := v
	s.slots[id.id].cell = newCell(&box)
	return id
}

// InsertUnsend registers T if necessary and stores v, marking the resource
// as driver-thread-only: it will never appear in a SendView.
func InsertUnsend[T any](s *Store, v T) ResourceId[T] {
	id := Init[T](s, false)
	box := v
	s.slots[id.id].cell = newCell(&box)
	return id
}

// Remove clears the value at id's slot and returns it. The id remains
// valid; InsertAgain can reuse it. Remove on an empty slot returns
// (zero, false).
func Remove[T any](s *Store, id ResourceId[T]) (T, bool) {
	var zero T
	sl := &s.slots[id.id]
	if sl.cell == nil {
		return zero, false
	}
	ptr, ok := sl.cell.value.(*T)
	if !ok {
		panic(fmt.Sprintf("resource: slot %d type mismatch on Remove: want %s", id.id, sl.typeName))
	}
	sl.cell = nil
	return *ptr, true
}

// InsertAgain re-populates id's slot after a Remove, without changing the
// id.
func InsertAgain[T any](s *Store, id ResourceId[T], v T) {
	box := v
	s.slots[id.id].cell = newCell(&box)
}

// GetCopy returns a copy of the resource's current value. It takes a brief
// shared borrow internally and releases it before returning.
func GetCopy[T any](s *Store, id ResourceId[T]) (T, bool) {
	var zero T
	sl := &s.slots[id.id]
	if sl.cell == nil {
		return zero, false
	}
	if !sl.cell.tryShared() {
		return zero, false
	}
	defer sl.cell.releaseShared()
	ptr, ok := sl.cell.value.(*T)
	if !ok {
		return zero, false
	}
	return *ptr, true
}

// GetMut returns a direct pointer to the resource's value, bypassing the
// borrow cell. It is only safe to call while holding &mut Store (i.e. on
// the driver thread with exclusive access to the whole store), mirroring
// Rust's `&mut self` receiver: the compile-time exclusivity of *Store is
// the only guarantee, there is no runtime check here.
func GetMut[T any](s *Store, id ResourceId[T]) (*T, bool) {
	sl := &s.slots[id.id]
	if sl.cell == nil {
		return nil, false
	}
	ptr, ok := sl.cell.value.(*T)
	return ptr, ok
}

// Ref is a shared-borrow guard returned by BorrowRes. Call Release when
// done; failing to do so leaks the borrow for the lifetime of the Store.
type Ref[T any] struct {
	sl  *slot
	ptr *T
}

// Get returns the borrowed value.
func (r Ref[T]) Get() T { return *r.ptr }

// Release ends the shared borrow.
func (r Ref[T]) Release() { r.sl.cell.releaseShared() }

// RefMut is an exclusive-borrow guard returned by BorrowResMut.
type RefMut[T any] struct {
	sl  *slot
	ptr *T
}

// Get returns a pointer to the borrowed value.
func (r RefMut[T]) Get() *T { return r.ptr }

// Release ends the exclusive borrow.
func (r RefMut[T]) Release() { r.sl.cell.releaseExclusive() }

// BorrowRes takes a shared borrow of id's value. It returns an error if the
// slot is empty or an exclusive borrow is already outstanding.
func BorrowRes[T any](s *Store, id ResourceId[T]) (Ref[T], error) {
	sl := &s.slots[id.id]
	if sl.cell == nil {
		return Ref[T]{}, fmt.Errorf("resource: %s is not present", sl.typeName)
	}
	if !sl.cell.tryShared() {
		s.metrics.incBorrowConflict()
		s.logger.Warn("borrow conflict", zap.String("resource", sl.typeName), zap.String("mode", "shared"))
		return Ref[T]{}, &BorrowError{TypeName: sl.typeName, Mode: "shared"}
	}
	ptr, ok := sl.cell.value.(*T)
	if !ok {
		sl.cell.releaseShared()
		panic(fmt.Sprintf("resource: slot %d type mismatch: want %s", id.id, sl.typeName))
	}
	return Ref[T]{sl: sl, ptr: ptr}, nil
}

// BorrowResMut takes the single exclusive borrow of id's value. It returns
// an error if the slot is empty or any borrow is already outstanding.
func BorrowResMut[T any](s *Store, id ResourceId[T]) (RefMut[T], error) {
	sl := &s.slots[id.id]
	if sl.cell == nil {
		return RefMut[T]{}, fmt.Errorf("resource: %s is not present", sl.typeName)
	}
	if !sl.cell.tryExclusive() {
		s.metrics.incBorrowConflict()
		s.logger.Warn("borrow conflict", zap.String("resource", sl.typeName), zap.String("mode", "exclusive"))
		return RefMut[T]{}, &BorrowError{TypeName: sl.typeName, Mode: "exclusive"}
	}
	ptr, ok := sl.cell.value.(*T)
	if !ok {
		sl.cell.releaseExclusive()
		panic(fmt.Sprintf("resource: slot %d type mismatch: want %s", id.id, sl.typeName))
	}
	return RefMut[T]{sl: sl, ptr: ptr}, nil
}

// typeName returns the registered type name for an untyped id, or "" if
// unknown. Used by the schedule package for conflict diagnostics.
func (s *Store) typeName(id ID) string {
	if int(id) >= len(s.slots) {
		return ""
	}
	return s.slots[id].typeName
}

// TypeName exposes typeName for schedule without making the slot slice
// itself public.
func (s *Store) TypeName(id ID) string { return s.typeName(id) }

// IsSend reports whether id's resource may cross into a SendView.
func (s *Store) IsSend(id ID) bool {
	if int(id) >= len(s.slots) {
		return false
	}
	return s.slots[id].send
}

// Len returns the number of registered resource slots (occupied or not).
func (s *Store) Len() int { return len(s.slots) }

// GetAny returns the slot's boxed value (the same *T stored by Insert, as an
// `any`) without requiring the caller to know T. Callers that do know the
// concrete type recover it with a type assertion; callers that only know a
// narrower interface T implements (ecs's Storage, for instance) assert to
// that interface instead. There is no borrow accounting here — GetAny exists
// for components that need to erase the component type at registration time
// but still want the entity-mutator's exclusive-&Store-access guarantee that
// GetMut relies on.
func GetAny(s *Store, id ID) (any, bool) {
	sl := &s.slots[id]
	if sl.cell == nil {
		return nil, false
	}
	return sl.cell.value, true
}
