package schedule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Voskan/ecsrt/internal/bitset"
)

// NodeID identifies a node in a PhaseGraph: either a phase or the implicit
// node owning a single system.
type NodeID int

const noParent NodeID = -1

// SystemID identifies a system registered with a Scheduler.
type SystemID int

type node struct {
	id           NodeID
	isPhase      bool
	label        PhaseLabel
	parent       NodeID
	dependencies bitset.Set
	subNodes     bitset.Set
	systems      []SystemID

	ready     bool
	completed bool
}

// PhaseGraph tracks phases and the systems assigned to them, plus the
// dependency and parent edges between them, and compiles that graph into
// topologically-ordered groups of systems (spec.md §4.F).
type PhaseGraph struct {
	nodes        []*node
	labelToNode  map[PhaseLabel]NodeID
	systemToNode map[SystemID]NodeID

	firstID, lastID NodeID
}

// NewPhaseGraph constructs a graph containing only the two reserved
// FIRST/LAST phase nodes.
func NewPhaseGraph() *PhaseGraph {
	g := &PhaseGraph{
		labelToNode:  make(map[PhaseLabel]NodeID),
		systemToNode: make(map[SystemID]NodeID),
	}
	g.firstID = g.newNode(true, First, noParent)
	g.lastID = g.newNode(true, Last, noParent)
	g.labelToNode[First] = g.firstID
	g.labelToNode[Last] = g.lastID
	return g
}

func (g *PhaseGraph) newNode(isPhase bool, label PhaseLabel, parent NodeID) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, &node{id: id, isPhase: isPhase, label: label, parent: parent})
	return id
}

// EnsurePhase returns label's node, creating a root-level phase node for it
// on first use.
func (g *PhaseGraph) EnsurePhase(label PhaseLabel) NodeID {
	if id, ok := g.labelToNode[label]; ok {
		return id
	}
	id := g.newNode(true, label, noParent)
	g.labelToNode[label] = id
	return id
}

// AddSystemNode creates the implicit leaf node that owns sys, defaulting to
// root parent (no phase) and no edges.
func (g *PhaseGraph) AddSystemNode(sys SystemID) NodeID {
	id := g.newNode(false, 0, noParent)
	g.nodes[id].systems = []SystemID{sys}
	g.systemToNode[sys] = id
	return id
}

// SetParentPhase makes node a child of label's phase, so the phase cannot
// complete until node does.
func (g *PhaseGraph) SetParentPhase(n NodeID, label PhaseLabel) {
	parent := g.EnsurePhase(label)
	g.nodes[n].parent = parent
	g.nodes[parent].subNodes.Insert(int(n))
}

// AddDependency records that `before` must complete before `after` becomes
// ready.
func (g *PhaseGraph) AddDependency(before, after NodeID) {
	g.nodes[after].dependencies.Insert(int(before))
}

// Before records that n must complete before label's phase becomes ready.
func (g *PhaseGraph) Before(n NodeID, label PhaseLabel) {
	g.AddDependency(n, g.EnsurePhase(label))
}

// After records that n must wait for label's phase to complete.
func (g *PhaseGraph) After(n NodeID, label PhaseLabel) {
	g.AddDependency(g.EnsurePhase(label), n)
}

// AddPhaseChain adds a dependency edge between each consecutive pair of
// labels, so phase i+1 never becomes ready until phase i has completed.
func (g *PhaseGraph) AddPhaseChain(labels ...PhaseLabel) {
	for i := 1; i < len(labels); i++ {
		g.AddDependency(g.EnsurePhase(labels[i-1]), g.EnsurePhase(labels[i]))
	}
}

// AddPhaseDependency records that before's phase must complete before
// after's phase becomes ready.
func (g *PhaseGraph) AddPhaseDependency(before, after PhaseLabel) {
	g.AddDependency(g.EnsurePhase(before), g.EnsurePhase(after))
}

// CycleError is returned by Compile when no further node can become ready;
// it carries the partial group ordering computed before the stall, for
// diagnostics.
type CycleError struct {
	Partial [][]SystemID
	Stalled []NodeID
}

func (e *CycleError) Error() string {
	var b strings.Builder
	b.WriteString("schedule: phase graph has a cycle; stalled nodes: ")
	ids := make([]string, len(e.Stalled))
	for i, id := range e.Stalled {
		ids[i] = fmt.Sprintf("%d", id)
	}
	b.WriteString(strings.Join(ids, ", "))
	return b.String()
}

// Compile runs the fixpoint ready/complete algorithm and returns the
// resulting ordered groups of system ids. Each group's systems can run
// concurrently with respect to the phase graph alone, before any
// resource-access analysis.
func (g *PhaseGraph) Compile() ([][]SystemID, error) {
	for _, n := range g.nodes {
		n.ready = false
		n.completed = false
	}
	g.nodes[g.firstID].ready = true
	g.nodes[g.firstID].completed = true

	var groups [][]SystemID
	for !g.allCompleted() {
		g.readyFixpoint()
		newlyCompleted := g.completionFixpoint()

		if len(newlyCompleted) == 0 {
			return groups, &CycleError{Partial: groups, Stalled: g.incompleteNodeIDs()}
		}

		sort.Slice(newlyCompleted, func(i, j int) bool { return newlyCompleted[i] < newlyCompleted[j] })
		var group []SystemID
		for _, id := range newlyCompleted {
			group = append(group, g.nodes[id].systems...)
		}
		if len(group) > 0 {
			sort.Slice(group, func(i, j int) bool { return group[i] < group[j] })
			groups = append(groups, group)
		}
	}
	return groups, nil
}

func (g *PhaseGraph) allCompleted() bool {
	for _, n := range g.nodes {
		if !n.completed {
			return false
		}
	}
	return true
}

func (g *PhaseGraph) incompleteNodeIDs() []NodeID {
	var out []NodeID
	for _, n := range g.nodes {
		if !n.completed {
			out = append(out, n.id)
		}
	}
	return out
}

func (g *PhaseGraph) readyFixpoint() {
	for {
		changed := false
		for _, n := range g.nodes {
			if n.ready {
				continue
			}
			if n.id == g.lastID {
				if g.allOtherNodesCompleted(n.id) {
					n.ready = true
					changed = true
				}
				continue
			}
			if n.parent != noParent && !g.nodes[n.parent].ready {
				continue
			}
			if !g.depsCompleted(n) {
				continue
			}
			n.ready = true
			changed = true
		}
		if !changed {
			return
		}
	}
}

func (g *PhaseGraph) depsCompleted(n *node) bool {
	for d := range n.dependencies.Iter() {
		if !g.nodes[d].completed {
			return false
		}
	}
	return true
}

func (g *PhaseGraph) allOtherNodesCompleted(except NodeID) bool {
	for _, n := range g.nodes {
		if n.id != except && !n.completed {
			return false
		}
	}
	return true
}

func (g *PhaseGraph) completionFixpoint() []NodeID {
	var newlyCompleted []NodeID
	for {
		changed := false
		for _, n := range g.nodes {
			if n.completed || !n.ready {
				continue
			}
			subOK := true
			for s := range n.subNodes.Iter() {
				if !g.nodes[s].completed {
					subOK = false
					break
				}
			}
			if !subOK {
				continue
			}
			n.completed = true
			changed = true
			newlyCompleted = append(newlyCompleted, n.id)
		}
		if !changed {
			return newlyCompleted
		}
	}
}
