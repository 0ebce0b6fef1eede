package schedule

// dump.go implements the Graphviz dot diagnostic dump described in
// spec.md §4.G/§6: on a cycle or a resource conflict, and optionally on
// request, write a reproducible `dot` document naming every system and
// phase node, with dashed edges for resource-derived ordering and solid
// clusters per compiled task group.

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

const dumpPathEnv = "PULZ_DUMP_SCHEDULE"

// dumpOnCycle writes the phase graph's partial ordering when Compile finds
// no ready node to advance on. It is a best-effort diagnostic: a failure to
// write never masks the original CycleError.
func dumpOnCycle(err *CycleError) {
	path := os.Getenv(dumpPathEnv)
	if path == "" {
		return
	}
	var b strings.Builder
	writeHeader(&b, "cycle detected; partial ordering shown, stalled nodes highlighted")
	for i, group := range err.Partial {
		writeGroupCluster(&b, i, group, nil)
	}
	stalled := make([]int, len(err.Stalled))
	for i, id := range err.Stalled {
		stalled[i] = int(id)
	}
	sort.Ints(stalled)
	for _, id := range stalled {
		fmt.Fprintf(&b, "  stalled_%d [label=\"node %d (stalled)\" style=filled fillcolor=lightcoral];\n", id, id)
	}
	writeFooter(&b)
	_ = os.WriteFile(path, []byte(b.String()), 0o644)
}

// dumpOnConflict writes the schedule as compiled up to the point a
// resource conflict was detected, naming the two offending systems.
func dumpOnConflict(err *ConflictError) {
	path := os.Getenv(dumpPathEnv)
	if path == "" {
		return
	}
	var b strings.Builder
	writeHeader(&b, fmt.Sprintf("resource conflict: %q vs %q on resource %d", err.SystemName, err.OtherName, err.Resource))
	fmt.Fprintf(&b, "  sys_%d [label=%q style=filled fillcolor=lightcoral];\n", err.System, err.SystemName)
	fmt.Fprintf(&b, "  sys_%d [label=%q style=filled fillcolor=lightcoral];\n", err.Other, err.OtherName)
	fmt.Fprintf(&b, "  sys_%d -> sys_%d [style=dashed label=\"resource %d\" dir=none];\n", err.System, err.Other, err.Resource)
	writeFooter(&b)
	_ = os.WriteFile(path, []byte(b.String()), 0o644)
}

// dumpOnRequest writes a successfully compiled schedule's dot document
// whenever PULZ_DUMP_SCHEDULE is set, even when compilation did not fail,
// so operators can inspect the steady-state plan: one node per system and
// phase, solid edges for explicit dependencies, dashed edges for the
// resource-derived ordering the compiler added, clusters per task group.
func dumpOnRequest(s *Scheduler, groups []TaskGroup, finalWave map[SystemID]int) {
	path := os.Getenv(dumpPathEnv)
	if path == "" {
		return
	}
	var b strings.Builder
	writeHeader(&b, "compiled schedule")
	for i, g := range groups {
		var ids []SystemID
		if g.Exclusive != nil {
			ids = []SystemID{g.Exclusive.ID}
		} else {
			for _, c := range g.Concurrent {
				ids = append(ids, c.ID)
			}
		}
		names := make(map[SystemID]string, len(ids))
		for _, id := range ids {
			if e, ok := s.byID[id]; ok {
				names[id] = e.name
			}
		}
		writeGroupCluster(&b, i, ids, names)
	}
	writePhaseNodes(&b, s.graph)
	writeExplicitEdges(&b, s.graph)
	writeResourceEdges(&b, s, finalWave)
	writeFooter(&b)
	_ = os.WriteFile(path, []byte(b.String()), 0o644)
}

func nodeRef(g *PhaseGraph, id NodeID) string {
	n := g.nodes[id]
	if !n.isPhase && len(n.systems) == 1 {
		return fmt.Sprintf("sys_%d", n.systems[0])
	}
	return fmt.Sprintf("phase_%d", id)
}

func writePhaseNodes(b *strings.Builder, g *PhaseGraph) {
	for _, n := range g.nodes {
		if !n.isPhase {
			continue
		}
		label := fmt.Sprintf("phase %x", uint64(n.label))
		switch n.id {
		case g.firstID:
			label = "FIRST"
		case g.lastID:
			label = "LAST"
		}
		fmt.Fprintf(b, "  phase_%d [shape=box label=%q];\n", n.id, label)
	}
}

func writeExplicitEdges(b *strings.Builder, g *PhaseGraph) {
	for _, n := range g.nodes {
		deps := make([]int, 0, n.dependencies.Len())
		for d := range n.dependencies.Iter() {
			deps = append(deps, d)
		}
		sort.Ints(deps)
		for _, d := range deps {
			fmt.Fprintf(b, "  %s -> %s;\n", nodeRef(g, NodeID(d)), nodeRef(g, n.id))
		}
		if n.parent != noParent {
			fmt.Fprintf(b, "  %s -> %s [style=dotted arrowhead=none];\n", nodeRef(g, n.parent), nodeRef(g, n.id))
		}
	}
}

// writeResourceEdges emits the implicit ordering the compiler derived from
// declared accesses: a dashed edge from each system to every later-group
// system it shares a resource with where at least one side is exclusive.
func writeResourceEdges(b *strings.Builder, s *Scheduler, finalWave map[SystemID]int) {
	for _, early := range s.systems {
		for _, late := range s.systems {
			if finalWave[early.id] >= finalWave[late.id] {
				continue
			}
			for _, r := range conflictingResources(early, late) {
				fmt.Fprintf(b, "  sys_%d -> sys_%d [style=dashed label=\"resource %d\"];\n", early.id, late.id, r)
			}
		}
	}
}

// conflictingResources returns the declared resource ids where a and b
// overlap with at least one exclusive side, sorted ascending.
func conflictingResources(a, b *systemEntry) []int {
	var out []int
	for r := range a.access.Exclusive.Iter() {
		if b.access.Exclusive.Contains(r) || b.access.Shared.Contains(r) {
			out = append(out, r)
		}
	}
	for r := range a.access.Shared.Iter() {
		if b.access.Exclusive.Contains(r) {
			out = append(out, r)
		}
	}
	sort.Ints(out)
	return out
}

func writeHeader(b *strings.Builder, note string) {
	b.WriteString("digraph schedule {\n")
	b.WriteString("  rankdir=LR;\n")
	fmt.Fprintf(b, "  label=%q;\n", note)
	b.WriteString("  labelloc=t;\n")
	b.WriteString("  legend [shape=note label=\"solid = explicit dependency\\ndashed = resource-derived dependency\\ncluster = concurrent task group\"];\n")
}

func writeGroupCluster(b *strings.Builder, idx int, ids []SystemID, names map[SystemID]string) {
	fmt.Fprintf(b, "  subgraph cluster_%d {\n", idx)
	fmt.Fprintf(b, "    label=\"group %d\";\n", idx)
	sorted := append([]SystemID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, id := range sorted {
		name := names[id]
		if name == "" {
			name = fmt.Sprintf("system %d", id)
		}
		fmt.Fprintf(b, "    sys_%d [label=%q];\n", id, name)
	}
	b.WriteString("  }\n")
}

func writeFooter(b *strings.Builder) {
	b.WriteString("}\n")
}
