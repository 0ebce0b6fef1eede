// Package schedule implements the PhaseGraph topological grouping
// algorithm and the Scheduler that compiles a set of systems into
// TaskGroups a schedule/internal/workerpool executor can run.
package schedule

import (
	"hash/fnv"
	"reflect"
)

// PhaseLabel stably identifies a phase. Two calls to Label[T] for the same
// T always return the same label, in this process or any other, since it
// is derived from T's fully-qualified type name rather than registration
// order.
type PhaseLabel uint64

// Reserved labels for the two graph-wide barrier phases: FIRST must be
// fully completed before any other node becomes ready, LAST only becomes
// ready once everything else has completed.
const (
	First PhaseLabel = 0
	Last  PhaseLabel = ^PhaseLabel(0)
)

// Label derives T's stable PhaseLabel. Define an empty marker type per
// phase (type Update struct{}) and call Label[Update]() wherever that
// phase needs to be referenced — into_phase, before, after, phase chains.
func Label[T any]() PhaseLabel {
	t := reflect.TypeFor[T]()
	h := fnv.New64a()
	h.Write([]byte(t.PkgPath() + "." + t.Name()))
	sum := h.Sum64()
	// Never collide with the two reserved sentinels.
	switch PhaseLabel(sum) {
	case First:
		sum++
	case Last:
		sum--
	}
	return PhaseLabel(sum)
}
