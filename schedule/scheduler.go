package schedule

import (
	"sort"

	"golang.org/x/sync/singleflight"

	"github.com/Voskan/ecsrt/internal/bitset"
	"github.com/Voskan/ecsrt/resource"
)

// Kind distinguishes the two ways a system can run.
type Kind uint8

const (
	// ConcurrentKind systems may share a group with other systems; Send
	// members of the group fan out onto the worker pool, Unsend members
	// stay on the driver thread.
	ConcurrentKind Kind = iota
	// ExclusiveKind systems receive the whole *resource.Store and always
	// run alone, driver-thread-side.
	ExclusiveKind
)

// ResourceAccess is the shared/exclusive resource id set a system declares
// at registration time — the same shape as query.Access, so a query's
// Access converts into one with a field copy.
type ResourceAccess struct {
	Shared    bitset.Set
	Exclusive bitset.Set
}

// CompiledSystem is one system ready to run, with its closure already
// bound; the workerpool executor never needs to reach back into the
// Scheduler to run a group. Exactly one of the Run fields is set,
// according to the Send/Unsend/Exclusive declaration.
type CompiledSystem struct {
	ID   SystemID
	Name string
	Send bool

	RunConcurrent func(resource.SendView)
	RunUnsend     func(*resource.Store)
	RunExclusive  func(*resource.Store)
}

// TaskGroup is one step of a compiled schedule: either a lone exclusive
// system, or a set of systems that may run concurrently with each other.
type TaskGroup struct {
	Exclusive  *CompiledSystem
	Concurrent []CompiledSystem
}

type systemEntry struct {
	id     SystemID
	name   string
	nodeID NodeID
	kind   Kind
	send   bool
	access ResourceAccess

	runConcurrent func(resource.SendView)
	runUnsend     func(*resource.Store)
	runExclusive  func(*resource.Store)
}

// SystemBuilder is returned by the Add*System methods so callers can chain
// phase placement without a separate step.
type SystemBuilder struct {
	s      *Scheduler
	nodeID NodeID
}

// IntoPhase places the system as a child of label's phase.
func (b *SystemBuilder) IntoPhase(label PhaseLabel) *SystemBuilder {
	b.s.graph.SetParentPhase(b.nodeID, label)
	b.s.dirty = true
	return b
}

// Before requires the system to complete before label's phase becomes ready.
func (b *SystemBuilder) Before(label PhaseLabel) *SystemBuilder {
	b.s.graph.Before(b.nodeID, label)
	b.s.dirty = true
	return b
}

// After requires label's phase to complete before the system becomes ready.
func (b *SystemBuilder) After(label PhaseLabel) *SystemBuilder {
	b.s.graph.After(b.nodeID, label)
	b.s.dirty = true
	return b
}

// Scheduler builds a PhaseGraph of systems plus their declared resource
// accesses and compiles both into an ordered []TaskGroup a workerpool
// executor can run unattended. Compilation is memoized: Init only
// recompiles when the graph or a system's access set has changed since the
// last call, and concurrent Init callers collapse onto a single compile via
// singleflight — mirroring Voskan-arena-cache's single-flight cache-fill
// path, generalised from "fill one cache key" to "recompile one schedule".
type Scheduler struct {
	graph   *PhaseGraph
	systems []*systemEntry
	byID    map[SystemID]*systemEntry

	dirty    bool
	compiled []TaskGroup

	logger  Logger
	metrics Metrics
	group   singleflight.Group
}

// NewScheduler constructs an empty Scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		graph: NewPhaseGraph(),
		byID:  make(map[SystemID]*systemEntry),
		dirty: true,
	}
	applyOptions(s, opts)
	return s
}

func (s *Scheduler) addEntry(e *systemEntry) *SystemBuilder {
	e.id = SystemID(len(s.systems))
	e.nodeID = s.graph.AddSystemNode(e.id)
	s.systems = append(s.systems, e)
	s.byID[e.id] = e
	s.dirty = true
	return &SystemBuilder{s: s, nodeID: e.nodeID}
}

// AddConcurrentSystem registers a Send system that runs against a SendView
// and may be dispatched to any worker, declaring the resources it borrows
// so the resourceMutTracker can detect conflicts with every other system.
func (s *Scheduler) AddConcurrentSystem(name string, access ResourceAccess, fn func(resource.SendView)) *SystemBuilder {
	return s.addEntry(&systemEntry{name: name, kind: ConcurrentKind, access: access, send: true, runConcurrent: fn})
}

// AddUnsendSystem registers a concurrent system pinned to the driver
// thread. It receives the un-promoted *resource.Store rather than a
// SendView, so it can reach the Unsend resources that forced it onto the
// driver in the first place; the store's borrow cells still arbitrate
// against whatever Send systems are in flight alongside it.
func (s *Scheduler) AddUnsendSystem(name string, access ResourceAccess, fn func(*resource.Store)) *SystemBuilder {
	return s.addEntry(&systemEntry{name: name, kind: ConcurrentKind, access: access, send: false, runUnsend: fn})
}

// AddExclusiveSystem registers a system that receives the whole
// *resource.Store and is guaranteed to run alone in its group.
func (s *Scheduler) AddExclusiveSystem(name string, fn func(*resource.Store)) *SystemBuilder {
	return s.addEntry(&systemEntry{name: name, kind: ExclusiveKind, runExclusive: fn})
}

// AddPhaseChain orders a sequence of phases: phase i+1 never becomes ready
// until phase i has fully completed.
func (s *Scheduler) AddPhaseChain(labels ...PhaseLabel) {
	s.graph.AddPhaseChain(labels...)
	s.dirty = true
}

// AddPhaseDependency orders two phases directly, without naming every
// phase in between.
func (s *Scheduler) AddPhaseDependency(before, after PhaseLabel) {
	s.graph.AddPhaseDependency(before, after)
	s.dirty = true
}

// Init (re)compiles the schedule if it is dirty. Concurrent callers
// collapse onto one compile; all observe its result.
func (s *Scheduler) Init() error {
	if !s.dirty {
		return nil
	}
	_, err, _ := s.group.Do("compile", func() (interface{}, error) {
		return nil, s.compile()
	})
	return err
}

// Groups returns the last successfully compiled schedule. Call Init first.
func (s *Scheduler) Groups() []TaskGroup { return s.compiled }

func effectiveAccess(e *systemEntry) (shared, exclusive []int) {
	if e.kind == ExclusiveKind {
		return nil, []int{wholeStoreResource}
	}
	for v := range e.access.Shared.Iter() {
		shared = append(shared, v)
	}
	for v := range e.access.Exclusive.Iter() {
		exclusive = append(exclusive, v)
	}
	shared = append(shared, wholeStoreResource)
	return shared, exclusive
}

func (s *Scheduler) compile() error {
	structuralGroups, err := s.graph.Compile()
	if err != nil {
		if cerr, ok := err.(*CycleError); ok {
			dumpOnCycle(cerr)
		}
		return err
	}

	tracker := newResourceMutTracker()
	finalWave := make(map[SystemID]int, len(s.systems))
	nameOf := func(id SystemID) string { return s.byID[id].name }

	// base keeps final waves monotone across structural groups: a system
	// bumped past its own structural group must not overlap the final wave
	// of anything from a later structural group, or the phase-graph edges
	// that separated them would be silently erased.
	base := 0
	for _, wave := range structuralGroups {
		sorted := append([]SystemID(nil), wave...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		next := base
		for _, sid := range sorted {
			e := s.byID[sid]
			shared, exclusive := effectiveAccess(e)
			final, cerr := tracker.assign(sid, e.name, base, shared, exclusive, nameOf)
			if cerr != nil {
				if s.logger != nil {
					s.logger.Error(cerr.Error())
				}
				if s.metrics != nil {
					s.metrics.incConflict()
				}
				if ce, ok := cerr.(*ConflictError); ok {
					dumpOnConflict(ce)
				}
				return cerr
			}
			finalWave[sid] = final
			if final+1 > next {
				next = final + 1
			}
		}
		base = next
	}

	byWave := make(map[int][]SystemID)
	for sid, w := range finalWave {
		byWave[w] = append(byWave[w], sid)
	}
	waves := make([]int, 0, len(byWave))
	for w := range byWave {
		waves = append(waves, w)
	}
	sort.Ints(waves)

	out := make([]TaskGroup, 0, len(waves))
	for _, w := range waves {
		sids := byWave[w]
		// Send systems first, non-Send last, ties broken by id: the
		// executor runs a concurrent group's non-Send entries on the
		// driver thread, so they belong at the tail.
		sort.Slice(sids, func(i, j int) bool {
			ei, ej := s.byID[sids[i]], s.byID[sids[j]]
			if ei.send != ej.send {
				return ei.send
			}
			return sids[i] < sids[j]
		})

		if len(sids) == 1 && s.byID[sids[0]].kind == ExclusiveKind {
			e := s.byID[sids[0]]
			out = append(out, TaskGroup{Exclusive: &CompiledSystem{ID: e.id, Name: e.name, RunExclusive: e.runExclusive}})
			continue
		}

		group := make([]CompiledSystem, 0, len(sids))
		for _, sid := range sids {
			e := s.byID[sid]
			group = append(group, CompiledSystem{ID: e.id, Name: e.name, Send: e.send, RunConcurrent: e.runConcurrent, RunUnsend: e.runUnsend})
		}
		out = append(out, TaskGroup{Concurrent: group})
	}

	s.compiled = out
	s.dirty = false
	if s.metrics != nil {
		s.metrics.setGroupCount(len(out))
	}
	dumpOnRequest(s, out, finalWave)
	return nil
}
