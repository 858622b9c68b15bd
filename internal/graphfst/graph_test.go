package graphfst

import (
	"math"
	"testing"
)

func TestStaticGraphArcsAndFinal(t *testing.T) {
	g := NewStaticGraph(0)
	g.AddArc(0, Arc{ILabel: 1, OLabel: 7, Weight: 0.0, Dst: 1})
	g.SetFinal(1, 0.0)

	if g.Start() != 0 {
		t.Fatalf("Start() = %d, want 0", g.Start())
	}
	arcs := g.Arcs(0)
	if len(arcs) != 1 || arcs[0].Dst != 1 {
		t.Fatalf("unexpected arcs: %+v", arcs)
	}
	if g.Final(1) != 0.0 {
		t.Fatalf("Final(1) = %v, want 0.0", g.Final(1))
	}
	if !math.IsInf(g.Final(0), 1) {
		t.Fatalf("Final(0) should be +Inf, got %v", g.Final(0))
	}
}

func TestStaticLMDiffGetArc(t *testing.T) {
	lm := NewStaticLMDiff(0)
	lm.AddArc(0, 7, Arc{Weight: 1.0, OLabel: 7, Dst: 1})

	weight, olabel, next, ok := lm.GetArc(0, 7)
	if !ok || weight != 1.0 || olabel != 7 || next != 1 {
		t.Fatalf("GetArc unexpected result: %v %v %v %v", weight, olabel, next, ok)
	}
	if _, _, _, ok := lm.GetArc(0, 99); ok {
		t.Fatalf("GetArc should report ok=false for unknown label")
	}
}

func TestCachedGraphTransparency(t *testing.T) {
	g := NewStaticGraph(0)
	g.AddArc(0, Arc{ILabel: 1, OLabel: 1, Weight: 0.5, Dst: 1})
	g.AddArc(1, Arc{ILabel: 2, OLabel: 2, Weight: 0.25, Dst: 2})
	g.SetFinal(2, 0.0)

	cached := NewCachedGraph(g, 8)

	for _, s := range []State{0, 1, 2, 0, 1} {
		want := g.Arcs(s)
		got := cached.Arcs(s)
		if len(got) != len(want) {
			t.Fatalf("Arcs(%d) length mismatch: got %d want %d", s, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("Arcs(%d)[%d] = %+v, want %+v", s, i, got[i], want[i])
			}
		}
	}
	if cached.Final(2) != g.Final(2) {
		t.Fatalf("Final mismatch through cache")
	}
}
