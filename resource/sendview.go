package resource

import "fmt"

// SendView restricts a Store to its Send+Sync resources, so worker
// goroutines spawned by the scheduler's executor can safely hold one
// without risking access to a driver-thread-only (Unsend) resource. It is
// constructed once per concurrent task group by promoting a *Store; it
// never exposes InsertUnsend or GetMut, only the borrow operations that are
// safe to call from any goroutine.
type SendView struct {
	store *Store
}

// Promote builds a SendView over s. Promotion itself does not copy
// resources; it is a thin, allocation-free wrapper, the same way
// Voskan-arena-cache's shard methods wrap the underlying map without
// copying entries.
func Promote(s *Store) SendView {
	return SendView{store: s}
}

// SendViewBorrowRes takes a shared borrow of id's value through the view. It
// returns an error if id's resource is not Send.
func SendViewBorrowRes[T any](v SendView, id ResourceId[T]) (Ref[T], error) {
	if !v.store.IsSend(id.Untyped()) {
		return Ref[T]{}, fmt.Errorf("resource: %s is not Send, cannot borrow from a SendView", v.store.typeName(id.Untyped()))
	}
	return BorrowRes(v.store, id)
}

// SendViewBorrowResMut takes the exclusive borrow of id's value through the view.
// It returns an error if id's resource is not Send.
func SendViewBorrowResMut[T any](v SendView, id ResourceId[T]) (RefMut[T], error) {
	if !v.store.IsSend(id.Untyped()) {
		return RefMut[T]{}, fmt.Errorf("resource: %s is not Send, cannot borrow from a SendView", v.store.typeName(id.Untyped()))
	}
	return BorrowResMut(v.store, id)
}

// SendViewGetCopy returns a copy of id's value through the view, if it is Send.
func SendViewGetCopy[T any](v SendView, id ResourceId[T]) (T, bool) {
	var zero T
	if !v.store.IsSend(id.Untyped()) {
		return zero, false
	}
	return GetCopy(v.store, id)
}
