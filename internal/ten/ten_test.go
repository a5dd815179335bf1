package ten

import (
	"testing"

	"github.com/jsonW0/bean-tacos"
)

func ring(n int, alpha, beta float64) *tacos.Topology {
	top := tacos.NewTopology(n)
	for i := 0; i < n; i++ {
		if err := top.Connect(tacos.NodeId(i), tacos.NodeId((i+1)%n), alpha, beta); err != nil {
			panic(err)
		}
	}
	return top
}

// driveRing pushes every chunk one full hop around the ring, the canonical
// schedule for All-Gather on a ring topology: after k steps every node has
// seen k+1 chunks, and the whole exchange completes in numNodes-1 steps.
func driveRing(t *testing.T, n int, top *tacos.Topology, coll *tacos.Collective, chunkSize tacos.ChunkSize) *TEN {
	ten := New(top, coll, chunkSize)
	for step := 0; step < n-1; step++ {
		for i := 0; i < n; i++ {
			link := tacos.LinkId{Src: tacos.NodeId(i), Dst: tacos.NodeId((i + 1) % n)}
			for _, chunk := range ten.ChunksAt(tacos.NodeId(i)) {
				if ten.IsProductiveMatch(link, chunk) {
					if err := ten.Match(link, chunk); err != nil {
						t.Fatalf("match: %v", err)
					}
				}
			}
		}
		if !ten.Step() {
			t.Fatalf("expected a pending event at step %d", step)
		}
	}
	return ten
}

func TestRingAllGatherSatisfiedAfterNMinusOneSteps(t *testing.T) {
	const n = 4
	top := ring(n, 1, 1)
	coll := tacos.NewAllGather(n, tacos.UnitChunkSize, 1)
	ten := driveRing(t, n, top, coll, tacos.UnitChunkSize)
	if !ten.Satisfied() {
		t.Fatalf("expected postcondition satisfied after %d steps", n-1)
	}
}

func TestNewTENPreconditionChunksPresentAtZero(t *testing.T) {
	top := ring(4, 1, 1)
	coll := tacos.NewAllGather(4, tacos.UnitChunkSize, 1)
	state := New(top, coll, tacos.UnitChunkSize)
	got := state.ChunksAt(0)
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("ChunksAt(0) = %v, want [0]", got)
	}
}

func TestMatchRejectsNonProductive(t *testing.T) {
	top := ring(4, 1, 1)
	coll := tacos.NewAllGather(4, tacos.UnitChunkSize, 1)
	state := New(top, coll, tacos.UnitChunkSize)
	// node 1 does not have chunk 0 yet, so this match cannot be productive.
	link := tacos.LinkId{Src: 1, Dst: 2}
	if err := state.Match(link, 0); err == nil {
		t.Fatalf("expected error matching a chunk not present at the source")
	}
}

func TestMatchRejectsAlreadyBusyLink(t *testing.T) {
	top := ring(4, 1, 1)
	coll := tacos.NewAllGather(4, tacos.UnitChunkSize, 1)
	state := New(top, coll, tacos.UnitChunkSize)
	link := tacos.LinkId{Src: 0, Dst: 1}
	if err := state.Match(link, 0); err != nil {
		t.Fatalf("first match: %v", err)
	}
	if err := state.Match(link, 0); err == nil {
		t.Fatalf("expected error re-matching a busy link before it frees up")
	}
}

func TestStepReturnsFalseWhenQueueEmpty(t *testing.T) {
	top := ring(4, 1, 1)
	coll := tacos.NewAllGather(4, tacos.UnitChunkSize, 1)
	state := New(top, coll, tacos.UnitChunkSize)
	if state.Step() {
		t.Fatalf("expected Step to report no pending events on a fresh TEN")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	top := ring(4, 1, 1)
	coll := tacos.NewAllGather(4, tacos.UnitChunkSize, 1)
	state := New(top, coll, tacos.UnitChunkSize)
	link := tacos.LinkId{Src: 0, Dst: 1}
	if err := state.Match(link, 0); err != nil {
		t.Fatalf("match: %v", err)
	}

	clone := state.Clone()
	clone.Step()

	if state.CurrentTime() == clone.CurrentTime() {
		t.Fatalf("clone should have advanced independently of the original")
	}
	if state.PendingEvents() == clone.PendingEvents() {
		t.Fatalf("clone's event queue should not alias the original's")
	}
}

func TestPossibleMatchesInitiallyOnePerNodeChunk(t *testing.T) {
	top := ring(4, 1, 1)
	coll := tacos.NewAllGather(4, tacos.UnitChunkSize, 1)
	state := New(top, coll, tacos.UnitChunkSize)
	matches := state.PossibleMatches()
	if len(matches) != 4 {
		t.Fatalf("expected 4 initial productive matches (one per node's own chunk), got %d", len(matches))
	}
}
