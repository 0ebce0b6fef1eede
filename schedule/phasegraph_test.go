package schedule

import "testing"

func TestPhaseGraphLinearDependencyOrdering(t *testing.T) {
	g := NewPhaseGraph()
	n1 := g.AddSystemNode(1)
	n2 := g.AddSystemNode(2)
	g.AddDependency(n1, n2)

	groups, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("Compile() = %v, want 2 groups", groups)
	}
	if groups[0][0] != 1 || groups[1][0] != 2 {
		t.Fatalf("Compile() = %v, want [[1] [2]]", groups)
	}
}

func TestPhaseGraphIndependentSystemsShareAGroup(t *testing.T) {
	g := NewPhaseGraph()
	g.AddSystemNode(1)
	g.AddSystemNode(2)

	groups, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(groups) != 1 || len(groups[0]) != 2 {
		t.Fatalf("Compile() = %v, want one group of two systems", groups)
	}
}

func TestPhaseGraphPhaseMustCompleteBeforeDependent(t *testing.T) {
	g := NewPhaseGraph()
	type P struct{}
	label := Label[P]()

	inPhase := g.AddSystemNode(1)
	g.SetParentPhase(inPhase, label)

	after := g.AddSystemNode(2)
	g.After(after, label)

	groups, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(groups) != 2 || groups[0][0] != 1 || groups[1][0] != 2 {
		t.Fatalf("Compile() = %v, want [[1] [2]]", groups)
	}
}

func TestPhaseGraphCycleFails(t *testing.T) {
	g := NewPhaseGraph()
	n1 := g.AddSystemNode(1)
	n2 := g.AddSystemNode(2)
	g.AddDependency(n1, n2)
	g.AddDependency(n2, n1)

	_, err := g.Compile()
	if err == nil {
		t.Fatal("Compile() should fail on a cyclic dependency")
	}
	if _, ok := err.(*CycleError); !ok {
		t.Fatalf("err = %T, want *CycleError", err)
	}
}

func TestLabelIsStablePerType(t *testing.T) {
	type A struct{}
	type B struct{}
	if Label[A]() != Label[A]() {
		t.Fatal("Label[A]() should be stable across calls")
	}
	if Label[A]() == Label[B]() {
		t.Fatal("Label[A]() and Label[B]() should differ")
	}
}
