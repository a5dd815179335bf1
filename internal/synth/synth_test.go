package synth

import (
	"context"
	"testing"

	"github.com/jsonW0/bean-tacos"
)

func fullyConnected(n int, alpha, beta float64) *tacos.Topology {
	top := tacos.NewTopology(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if err := top.Connect(tacos.NodeId(i), tacos.NodeId(j), alpha, beta); err != nil {
				panic(err)
			}
		}
	}
	return top
}

func ringTopology(n int, alpha, beta float64) *tacos.Topology {
	top := tacos.NewTopology(n)
	for i := 0; i < n; i++ {
		if err := top.Connect(tacos.NodeId(i), tacos.NodeId((i+1)%n), alpha, beta); err != nil {
			panic(err)
		}
	}
	return top
}

func assertSatisfiesSchedule(t *testing.T, top *tacos.Topology, coll *tacos.Collective, events []tacos.Event) {
	t.Helper()
	arrived := make(map[tacos.NodeId]map[tacos.ChunkId]bool)
	for node := 0; node < top.NumNodes(); node++ {
		arrived[tacos.NodeId(node)] = make(map[tacos.ChunkId]bool)
	}
	for node := 0; node < top.NumNodes(); node++ {
		for chunk := range coll.Precondition(tacos.NodeId(node)) {
			arrived[tacos.NodeId(node)][chunk] = true
		}
	}
	for _, e := range events {
		arrived[e.Link.Dst][e.Chunk] = true
	}
	for node := 0; node < top.NumNodes(); node++ {
		for chunk := range coll.Postcondition(tacos.NodeId(node)) {
			if !arrived[tacos.NodeId(node)][chunk] {
				t.Fatalf("node %d never received chunk %d", node, chunk)
			}
		}
	}
}

func TestNaiveSolvesAllGatherOnFullyConnected(t *testing.T) {
	top := fullyConnected(4, 10, 100)
	coll := tacos.NewAllGather(4, tacos.UnitChunkSize, 1)
	s := NewNaive(top, coll, tacos.UnitChunkSize)
	if err := s.Solve(context.Background()); err != nil {
		t.Fatalf("solve: %v", err)
	}
	assertSatisfiesSchedule(t, top, coll, s.EventHistory())
}

func TestTACOSDeterministicGivenSameSeed(t *testing.T) {
	top := fullyConnected(4, 10, 100)
	coll := tacos.NewAllToAll(4, tacos.UnitChunkSize, 1)

	a := NewTACOS(top, coll, tacos.UnitChunkSize, 42)
	b := NewTACOS(top, coll, tacos.UnitChunkSize, 42)
	if err := a.Solve(context.Background()); err != nil {
		t.Fatalf("solve a: %v", err)
	}
	if err := b.Solve(context.Background()); err != nil {
		t.Fatalf("solve b: %v", err)
	}
	if a.CurrentTime() != b.CurrentTime() {
		t.Fatalf("same-seed runs diverged: %v vs %v", a.CurrentTime(), b.CurrentTime())
	}
	if len(a.EventHistory()) != len(b.EventHistory()) {
		t.Fatalf("same-seed runs produced different event counts")
	}
}

func TestGreedyTACOSRingAllGatherMakespan(t *testing.T) {
	// On a ring of 4 with unit alpha/beta, All-Gather's optimal makespan is
	// 3 hops: the greedy smallest-delay rule always matches uniform-delay
	// links immediately, so it should find the optimum here.
	top := ringTopology(4, 1, 1)
	coll := tacos.NewAllGather(4, tacos.UnitChunkSize, 1)
	s := NewGreedyTACOS(top, coll, tacos.UnitChunkSize)
	if err := s.Solve(context.Background()); err != nil {
		t.Fatalf("solve: %v", err)
	}
	assertSatisfiesSchedule(t, top, coll, s.EventHistory())
	delay, err := top.Delay(tacos.LinkId{Src: 0, Dst: 1}, tacos.UnitChunkSize)
	if err != nil {
		t.Fatalf("delay: %v", err)
	}
	if got, want := s.CurrentTime(), 3*delay; got != want {
		t.Fatalf("makespan = %v, want %v (3 hops)", got, want)
	}
}

func TestMultipleTACOSIsNeverSlowerThanItsWorstInstance(t *testing.T) {
	top := fullyConnected(5, 10, 100)
	coll := tacos.NewAllToAll(5, tacos.UnitChunkSize, 1)

	m := NewMultipleTACOS(top, coll, tacos.UnitChunkSize, 4, 7)
	if err := m.Solve(context.Background()); err != nil {
		t.Fatalf("solve: %v", err)
	}
	assertSatisfiesSchedule(t, top, coll, m.EventHistory())

	var worst tacos.Time
	for _, inst := range m.instances {
		if inst.CurrentTime() > worst {
			worst = inst.CurrentTime()
		}
	}
	if m.CurrentTime() > worst {
		t.Fatalf("best-of-N time %v should never exceed the worst instance %v", m.CurrentTime(), worst)
	}
}

func TestBeamSolvesAllGather(t *testing.T) {
	top := fullyConnected(4, 10, 100)
	coll := tacos.NewAllGather(4, tacos.UnitChunkSize, 1)
	b := NewBeam(top, coll, tacos.UnitChunkSize, 3, FitnessChunkCount, 0, 9)
	if err := b.Solve(context.Background()); err != nil {
		t.Fatalf("solve: %v", err)
	}
	assertSatisfiesSchedule(t, top, coll, b.EventHistory())
}

func TestBeamShortestPathFitnessSolves(t *testing.T) {
	top := ringTopology(5, 1, 1)
	coll := tacos.NewAllGather(5, tacos.UnitChunkSize, 1)
	b := NewBeam(top, coll, tacos.UnitChunkSize, 2, FitnessShortestPath, 0, 3)
	if err := b.Solve(context.Background()); err != nil {
		t.Fatalf("solve: %v", err)
	}
	assertSatisfiesSchedule(t, top, coll, b.EventHistory())
}
