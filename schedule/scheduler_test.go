package schedule

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Voskan/ecsrt/resource"
)

func sharedAccess(ids ...int) ResourceAccess {
	var a ResourceAccess
	for _, id := range ids {
		a.Shared.Insert(id)
	}
	return a
}

func exclusiveAccess(ids ...int) ResourceAccess {
	var a ResourceAccess
	for _, id := range ids {
		a.Exclusive.Insert(id)
	}
	return a
}

func groupIDs(t *testing.T, groups []TaskGroup, i int) []SystemID {
	t.Helper()
	if groups[i].Exclusive != nil {
		return []SystemID{groups[i].Exclusive.ID}
	}
	ids := make([]SystemID, len(groups[i].Concurrent))
	for j, c := range groups[i].Concurrent {
		ids[j] = c.ID
	}
	return ids
}

func totalSystems(groups []TaskGroup) int {
	n := 0
	for _, g := range groups {
		if g.Exclusive != nil {
			n++
			continue
		}
		n += len(g.Concurrent)
	}
	return n
}

// TestSchedulerTopologicalOrder reproduces spec.md §8 scenario 4: s1 shares
// R1, s2 exclusively holds R1, s3 depends (via phase P) on s2.
func TestSchedulerTopologicalOrder(t *testing.T) {
	type P struct{}
	label := Label[P]()

	s := NewScheduler()
	s.AddConcurrentSystem("s1", sharedAccess(1), func(resource.SendView) {})
	s2b := s.AddConcurrentSystem("s2", exclusiveAccess(1), func(resource.SendView) {})
	s2b.IntoPhase(label)
	s3b := s.AddConcurrentSystem("s3", ResourceAccess{}, func(resource.SendView) {})
	s3b.After(label)

	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	groups := s.Groups()
	if len(groups) != 3 {
		t.Fatalf("Groups() has %d groups, want 3: %+v", len(groups), groups)
	}
	if groupIDs(t, groups, 0)[0] != 0 {
		t.Fatalf("group 0 = %v, want [s1]", groupIDs(t, groups, 0))
	}
	if groupIDs(t, groups, 1)[0] != 1 {
		t.Fatalf("group 1 = %v, want [s2]", groupIDs(t, groups, 1))
	}
	if groupIDs(t, groups, 2)[0] != 2 {
		t.Fatalf("group 2 = %v, want [s3]", groupIDs(t, groups, 2))
	}
}

// TestSchedulerExclusiveSystemRunsAlone checks that an Exclusive-kind
// system never shares a group, and that two exclusive systems with no
// ordering between them serialise rather than conflict.
func TestSchedulerExclusiveSystemRunsAlone(t *testing.T) {
	s := NewScheduler()
	s.AddConcurrentSystem("c1", sharedAccess(1), func(resource.SendView) {})
	s.AddConcurrentSystem("c2", sharedAccess(2), func(resource.SendView) {})
	s.AddExclusiveSystem("x1", func(*resource.Store) {})
	s.AddExclusiveSystem("x2", func(*resource.Store) {})

	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	groups := s.Groups()
	if len(groups) != 3 {
		t.Fatalf("Groups() has %d groups, want 3 (concurrent pair, x1, x2): %+v", len(groups), groups)
	}
	if groups[0].Exclusive != nil || len(groups[0].Concurrent) != 2 {
		t.Fatalf("group 0 should be the concurrent pair, got %+v", groups[0])
	}
	if groups[1].Exclusive == nil || groups[2].Exclusive == nil {
		t.Fatalf("groups 1 and 2 should each be a lone exclusive system: %+v", groups[1:])
	}
}

// TestSchedulerResourceConflictFails reproduces spec.md §8 scenario 5: two
// systems both declare exclusive access to R1 with no ordering between
// them; Init must fail naming both systems and the resource.
func TestSchedulerResourceConflictFails(t *testing.T) {
	s := NewScheduler()
	s.AddConcurrentSystem("a", exclusiveAccess(1), func(resource.SendView) {})
	s.AddConcurrentSystem("b", exclusiveAccess(1), func(resource.SendView) {})

	err := s.Init()
	if err == nil {
		t.Fatal("Init() should fail on an unresolved exclusive/exclusive conflict")
	}
	cerr, ok := err.(*ConflictError)
	if !ok {
		t.Fatalf("err = %T, want *ConflictError", err)
	}
	if cerr.Resource != 1 {
		t.Fatalf("cerr.Resource = %d, want 1", cerr.Resource)
	}
	names := map[string]bool{cerr.SystemName: true, cerr.OtherName: true}
	if !names["a"] || !names["b"] {
		t.Fatalf("ConflictError should name both systems, got %+v", cerr)
	}
}

// TestSchedulerSharedReaderBlocksLaterWriter checks that an exclusive
// access is deferred past every group with an outstanding shared holder of
// the same resource, even when other systems were assigned in between.
func TestSchedulerSharedReaderBlocksLaterWriter(t *testing.T) {
	s := NewScheduler()
	s.AddConcurrentSystem("reader1", sharedAccess(7), func(resource.SendView) {})
	s.AddConcurrentSystem("blocked_reader", func() ResourceAccess {
		a := sharedAccess(7)
		a.Shared.Insert(8)
		return a
	}(), func(resource.SendView) {})
	s.AddConcurrentSystem("writer8", exclusiveAccess(8), func(resource.SendView) {})
	s.AddConcurrentSystem("writer7", exclusiveAccess(7), func(resource.SendView) {})

	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	waveOf := make(map[string]int)
	for i, g := range s.Groups() {
		for _, c := range g.Concurrent {
			waveOf[c.Name] = i
		}
		if g.Exclusive != nil {
			waveOf[g.Exclusive.Name] = i
		}
	}
	if waveOf["writer7"] <= waveOf["reader1"] {
		t.Fatalf("writer7 (group %d) must run strictly after reader1 (group %d)", waveOf["writer7"], waveOf["reader1"])
	}
	if waveOf["writer7"] <= waveOf["blocked_reader"] {
		t.Fatalf("writer7 (group %d) must run strictly after blocked_reader (group %d)", waveOf["writer7"], waveOf["blocked_reader"])
	}
	if waveOf["writer8"] <= waveOf["blocked_reader"] {
		t.Fatalf("writer8 (group %d) must run strictly after blocked_reader (group %d)", waveOf["writer8"], waveOf["blocked_reader"])
	}
}

// TestSchedulerBumpedSystemStaysBeforeDependents checks that a system
// pushed past its phase-graph group by a resource conflict still completes
// before systems whose phase explicitly depends on it.
func TestSchedulerBumpedSystemStaysBeforeDependents(t *testing.T) {
	type P struct{}
	label := Label[P]()

	s := NewScheduler()
	s.AddConcurrentSystem("reader", sharedAccess(1), func(resource.SendView) {})
	wb := s.AddConcurrentSystem("writer", exclusiveAccess(1), func(resource.SendView) {})
	wb.IntoPhase(label)
	db := s.AddConcurrentSystem("dependent", ResourceAccess{}, func(resource.SendView) {})
	db.After(label)

	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	waveOf := make(map[string]int)
	for i, g := range s.Groups() {
		for _, c := range g.Concurrent {
			waveOf[c.Name] = i
		}
	}
	if waveOf["dependent"] <= waveOf["writer"] {
		t.Fatalf("dependent (group %d) must run strictly after writer (group %d), which its phase depends on", waveOf["dependent"], waveOf["writer"])
	}
}

// TestSchedulerThreadPoolFanOut reproduces spec.md §8 scenario 6: four
// disjoint Send systems plus one Unsend system sharing R5 compile into one
// concurrent group with the Unsend system moved to the tail.
func TestSchedulerThreadPoolFanOut(t *testing.T) {
	s := NewScheduler()
	for i := 0; i < 4; i++ {
		s.AddConcurrentSystem("send", sharedAccess(10+i), func(resource.SendView) {})
	}
	s.AddUnsendSystem("unsend", sharedAccess(5), func(*resource.Store) {})

	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	groups := s.Groups()
	if len(groups) != 1 {
		t.Fatalf("Groups() has %d groups, want 1: %+v", len(groups), groups)
	}
	if groups[0].Exclusive != nil {
		t.Fatal("the single group should be Concurrent, not Exclusive")
	}
	entries := groups[0].Concurrent
	if len(entries) != 5 {
		t.Fatalf("group has %d entries, want 5", len(entries))
	}
	last := entries[len(entries)-1]
	if last.Send {
		t.Fatalf("last entry should be the Unsend system, got Send=%v Name=%s", last.Send, last.Name)
	}
	if last.Name != "unsend" {
		t.Fatalf("last entry = %q, want \"unsend\"", last.Name)
	}
	for _, e := range entries[:len(entries)-1] {
		if !e.Send {
			t.Fatalf("entry %q before the tail should be Send", e.Name)
		}
	}
}

// TestSchedulerCompletenessEverySystemInExactlyOneGroup checks spec.md §8's
// completeness property across a mixed graph of exclusive and concurrent
// systems.
func TestSchedulerCompletenessEverySystemInExactlyOneGroup(t *testing.T) {
	s := NewScheduler()
	const n = 6
	for i := 0; i < n; i++ {
		s.AddConcurrentSystem("sys", sharedAccess(100+i), func(resource.SendView) {})
	}
	s.AddExclusiveSystem("excl", func(*resource.Store) {})

	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	seen := make(map[SystemID]int)
	for i := range s.Groups() {
		for _, id := range groupIDs(t, s.Groups(), i) {
			seen[id]++
		}
	}
	if len(seen) != n+1 {
		t.Fatalf("saw %d distinct systems, want %d", len(seen), n+1)
	}
	for id, c := range seen {
		if c != 1 {
			t.Fatalf("system %d appeared in %d groups, want exactly 1", id, c)
		}
	}
}

func TestScheduleDumpWritesDotDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.dot")
	t.Setenv("PULZ_DUMP_SCHEDULE", path)

	type P struct{}
	s := NewScheduler()
	s.AddConcurrentSystem("reader", sharedAccess(1), func(resource.SendView) {})
	wb := s.AddConcurrentSystem("writer", exclusiveAccess(1), func(resource.SendView) {})
	wb.IntoPhase(Label[P]())

	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("dump was not written: %v", err)
	}
	text := string(data)
	for _, want := range []string{"digraph schedule", "legend", "cluster_0", "style=dashed", "\"reader\"", "\"writer\""} {
		if !strings.Contains(text, want) {
			t.Fatalf("dump missing %q:\n%s", want, text)
		}
	}

	s.dirty = true
	if err := s.Init(); err != nil {
		t.Fatalf("recompile failed: %v", err)
	}
	again, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("dump was not rewritten: %v", err)
	}
	if string(again) != text {
		t.Fatal("the dump must be reproducible: identical inputs, identical document")
	}
}

func TestSchedulerRecompilesOnlyWhenDirty(t *testing.T) {
	s := NewScheduler()
	s.AddConcurrentSystem("a", sharedAccess(1), func(resource.SendView) {})
	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	first := totalSystems(s.Groups())
	if first != 1 {
		t.Fatalf("compiled schedule has %d systems, want 1", first)
	}

	if err := s.Init(); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	if totalSystems(s.Groups()) != first {
		t.Fatal("a non-dirty Init should not change the compiled schedule")
	}

	s.AddConcurrentSystem("b", sharedAccess(2), func(resource.SendView) {})
	if err := s.Init(); err != nil {
		t.Fatalf("Init after adding a system failed: %v", err)
	}
	if totalSystems(s.Groups()) != 2 {
		t.Fatal("adding a system should have re-dirtied and recompiled the schedule")
	}
}
