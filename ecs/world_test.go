package ecs

import "testing"

type A struct{ V int }
type B struct{ V int }
type C struct{ V int }

func TestSpawnIsLiveImmediately(t *testing.T) {
	w := NewWorld()
	m := w.Spawn()
	e := m.Entity()
	if !w.Contains(e) {
		t.Fatal("entity should be live as soon as Spawn returns")
	}
	loc, ok := w.Location(e)
	if !ok || loc.Archetype != 0 {
		t.Fatalf("freshly spawned entity should sit in the empty archetype, got %+v", loc)
	}
}

func TestArchetypeMigrationScenario(t *testing.T) {
	// Mirrors the literal spec scenario: spawn e; insert A,B -> {A,B};
	// insert C -> {A,B,C} with e at row 0 and the old archetype shrinking by
	// one; remove A -> {B,C} with B,C preserved; despawn frees the slot.
	w := NewWorld()
	a := RegisterComponent[A](w, Dense)
	b := RegisterComponent[B](w, Dense)
	c := RegisterComponent[C](w, Dense)

	e := w.WithEntity(func(m *EntityMut) {
		Insert(m, a, A{V: 1})
		Insert(m, b, B{V: 2})
	})

	loc, _ := w.Location(e)
	abArch := loc.Archetype
	if abArch == 0 {
		t.Fatal("entity with A,B should not be in the empty archetype")
	}
	if va, ok := GetComponent(w, a, e); !ok || va.V != 1 {
		t.Fatalf("A = %v, %v, want 1, true", va, ok)
	}

	m, _ := w.Entity(e)
	Insert(m, c, C{V: 3})
	m.Flush()

	loc, _ = w.Location(e)
	if loc.Archetype == abArch {
		t.Fatal("inserting C should move the entity to a new archetype")
	}
	if loc.Row != 0 {
		t.Fatalf("e should land on row 0 of the fresh {A,B,C} archetype, got row %d", loc.Row)
	}
	oldArch := w.ArchetypeAt(abArch)
	if len(oldArch.Entities) != 0 {
		t.Fatalf("old {A,B} archetype should have lost its only entity, has %d", len(oldArch.Entities))
	}

	m, _ = w.Entity(e)
	Remove[A](m, a)
	m.Flush()

	if HasComponent(w, a, e) {
		t.Fatal("A should be gone after Remove+Flush")
	}
	vb, ok := GetComponent(w, b, e)
	if !ok || vb.V != 2 {
		t.Fatalf("B should survive the migration, got %v, %v", vb, ok)
	}
	vc, ok := GetComponent(w, c, e)
	if !ok || vc.V != 3 {
		t.Fatalf("C should survive the migration, got %v, %v", vc, ok)
	}

	if !w.Despawn(e) {
		t.Fatal("Despawn should report true for a live entity")
	}
	if w.Contains(e) {
		t.Fatal("entity should not be live after Despawn")
	}
	if _, ok := w.Location(e); ok {
		t.Fatal("Location should report false after Despawn")
	}
}

func TestReplaceInPlaceDoesNotMigrate(t *testing.T) {
	w := NewWorld()
	a := RegisterComponent[A](w, Dense)
	e := w.WithEntity(func(m *EntityMut) { Insert(m, a, A{V: 1}) })
	loc1, _ := w.Location(e)

	m, _ := w.Entity(e)
	Insert(m, a, A{V: 99})
	m.Flush()

	loc2, _ := w.Location(e)
	if loc1 != loc2 {
		t.Fatalf("replacing an already-present component should not move the row: %+v -> %+v", loc1, loc2)
	}
	v, _ := GetComponent(w, a, e)
	if v.V != 99 {
		t.Fatalf("value should be updated in place, got %d", v.V)
	}
}

func TestSparseComponentIndependentOfArchetype(t *testing.T) {
	w := NewWorld()
	dense := RegisterComponent[A](w, Dense)
	sparse := RegisterComponent[B](w, Sparse)

	e := w.WithEntity(func(m *EntityMut) {
		Insert(m, dense, A{V: 1})
		Insert(m, sparse, B{V: 7})
	})

	loc, _ := w.Location(e)
	if w.ArchetypeAt(loc.Archetype).Has(sparse.Untyped()) {
		t.Fatal("a sparse component must never become part of an archetype's component set")
	}
	v, ok := GetComponent(w, sparse, e)
	if !ok || v.V != 7 {
		t.Fatalf("sparse GetComponent = %v, %v, want 7, true", v, ok)
	}

	m, _ := w.Entity(e)
	Insert(m, dense, A{V: 2}) // replace in place, archetype unchanged
	m.Flush()

	if !HasComponent(w, sparse, e) {
		t.Fatal("sparse component should survive an unrelated dense edit")
	}
}

func TestSwapRemoveFixesUpSwappedEntityLocation(t *testing.T) {
	w := NewWorld()
	a := RegisterComponent[A](w, Dense)

	e1 := w.WithEntity(func(m *EntityMut) { Insert(m, a, A{V: 1}) })
	e2 := w.WithEntity(func(m *EntityMut) { Insert(m, a, A{V: 2}) })
	e3 := w.WithEntity(func(m *EntityMut) { Insert(m, a, A{V: 3}) })

	w.Despawn(e1) // row 0 vacated; e3 (last row) should swap into it

	loc3, ok := w.Location(e3)
	if !ok || loc3.Row != 0 {
		t.Fatalf("e3 should have been swapped into row 0, got %+v, %v", loc3, ok)
	}
	v2, _ := GetComponent(w, a, e2)
	v3, _ := GetComponent(w, a, e3)
	if v2.V != 2 || v3.V != 3 {
		t.Fatalf("component values should survive the swap-remove: e2=%d e3=%d", v2.V, v3.V)
	}
}

func TestRemovalEventsRecordedExactlyOnce(t *testing.T) {
	w := NewWorld()
	a := RegisterComponent[A](w, Dense)
	b := RegisterComponent[B](w, Sparse)

	e := w.WithEntity(func(m *EntityMut) {
		Insert(m, a, A{V: 1})
		Insert(m, b, B{V: 2})
	})
	w.Despawn(e)

	events := w.DrainRemovalEvents()
	if len(events) != 2 {
		t.Fatalf("expected 2 removal events, got %d: %+v", len(events), events)
	}
	seen := map[ComponentId]int{}
	for _, ev := range events {
		if ev.Entity != e {
			t.Fatalf("removal event for wrong entity: %+v", ev)
		}
		seen[ev.Component]++
	}
	if seen[a.Untyped()] != 1 || seen[b.Untyped()] != 1 {
		t.Fatalf("each component should be reported exactly once: %+v", seen)
	}

	if more := w.DrainRemovalEvents(); len(more) != 0 {
		t.Fatalf("DrainRemovalEvents should empty the queue, got %+v", more)
	}
}
