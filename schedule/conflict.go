package schedule

import "fmt"

// wholeStoreResource is a sentinel resource id an Exclusive-kind system
// implicitly exclusively claims, and every Concurrent-kind system
// implicitly shares, so the same assign() pass that resolves ordinary
// resource conflicts also guarantees an exclusive system never lands in a
// group with any other system: it always conflicts with (and is pushed
// past) whatever else is in its candidate group.
const wholeStoreResource = -1

// resourceState tracks, per group index, which system holds the resource
// exclusively and which systems share it. Keeping the whole history rather
// than only the latest wave matters: a reader assigned to group 0 must
// still block a writer from landing in group 0 even after a second reader
// was bumped to group 1.
type resourceState struct {
	exclusiveBy map[int]SystemID
	sharedBy    map[int][]SystemID
}

// resourceMutTracker assigns each system, in the order its resource
// accesses are submitted, the lowest group index at or after its
// phase-graph-derived candidate where its accesses do not collide with any
// already-assigned system's. Shared readers never bump each other; an
// exclusive access is always deferred past a same-group shared access
// (direction is forced: readers never wait on a writer that hasn't even
// been scheduled yet); two exclusive accesses to the same resource landing
// on the same candidate group, with nothing to break the tie, is reported
// as a hard conflict rather than silently ordered. The whole-store
// sentinel is the one exception to that last rule: two Exclusive-kind
// systems claiming it simply serialise, one group after the next.
type resourceMutTracker struct {
	state map[int]*resourceState
}

func newResourceMutTracker() *resourceMutTracker {
	return &resourceMutTracker{state: make(map[int]*resourceState)}
}

func (t *resourceMutTracker) stateFor(r int) *resourceState {
	st, ok := t.state[r]
	if !ok {
		st = &resourceState{
			exclusiveBy: make(map[int]SystemID),
			sharedBy:    make(map[int][]SystemID),
		}
		t.state[r] = st
	}
	return st
}

// ConflictError reports that two systems have irreconcilable access to the
// same resource in what would be the same concurrent group.
type ConflictError struct {
	System     SystemID
	SystemName string
	Other      SystemID
	OtherName  string
	Resource   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schedule: resource conflict: system %q and %q both require exclusive access to resource %d with no ordering between them", e.SystemName, e.OtherName, e.Resource)
}

// assign computes sid's final group index starting from candidate, bumping
// it forward past groups where its accesses collide with already-assigned
// systems', and records its accesses against the index it settles on. All
// deferral conditions at a candidate are evaluated before the hard
// exclusive/exclusive conflict is raised: if anything else already forces
// sid past this group, the two writers end up ordered after all and no
// error is due.
func (t *resourceMutTracker) assign(sid SystemID, name string, candidate int, shared, exclusive []int, nameOf func(SystemID) string) (int, error) {
	for {
		bumped := false
		var conflict *ConflictError
		for _, r := range exclusive {
			st := t.stateFor(r)
			if other, ok := st.exclusiveBy[candidate]; ok && other != sid {
				if r == wholeStoreResource {
					bumped = true
					continue
				}
				if conflict == nil {
					conflict = &ConflictError{System: sid, SystemName: name, Other: other, OtherName: nameOf(other), Resource: r}
				}
				continue
			}
			if holders := st.sharedBy[candidate]; len(holders) > 0 && !containsOnly(holders, sid) {
				bumped = true
			}
		}
		for _, r := range shared {
			st := t.stateFor(r)
			if other, ok := st.exclusiveBy[candidate]; ok && other != sid {
				bumped = true
			}
		}
		if bumped {
			candidate++
			continue
		}
		if conflict != nil {
			return 0, conflict
		}
		break
	}

	for _, r := range exclusive {
		t.stateFor(r).exclusiveBy[candidate] = sid
	}
	for _, r := range shared {
		st := t.stateFor(r)
		st.sharedBy[candidate] = append(st.sharedBy[candidate], sid)
	}
	return candidate, nil
}

func containsOnly(ids []SystemID, sid SystemID) bool {
	for _, id := range ids {
		if id != sid {
			return false
		}
	}
	return true
}
