package builtins

import "testing"

func TestGetFullyConnected(t *testing.T) {
	top, err := Get("fc_n=4_alpha=1_beta=1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if top.NumNodes() != 4 {
		t.Fatalf("NumNodes = %d, want 4", top.NumNodes())
	}
	if top.NumEdges() != 4*3 {
		t.Fatalf("NumEdges = %d, want %d", top.NumEdges(), 4*3)
	}
}

func TestGetRingIsBidirected(t *testing.T) {
	top, err := Get("ring_n=5_alpha=2_beta=3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if top.NumEdges() != 5*2 {
		t.Fatalf("NumEdges = %d, want %d", top.NumEdges(), 5*2)
	}
}

func TestGetGridDimensions(t *testing.T) {
	top, err := Get("grid_w=3_h=2_alpha=1_beta=1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if top.NumNodes() != 6 {
		t.Fatalf("NumNodes = %d, want 6", top.NumNodes())
	}
	// 2*(3-1) horizontal pairs + 3*(2-1) vertical pairs, each bidirected.
	wantEdges := 2 * (2*(3-1) + 3*(2-1))
	if top.NumEdges() != wantEdges {
		t.Fatalf("NumEdges = %d, want %d", top.NumEdges(), wantEdges)
	}
}

func TestGetTorusHasMoreEdgesThanGrid(t *testing.T) {
	grid, err := Get("grid_w=3_h=3_alpha=1_beta=1")
	if err != nil {
		t.Fatalf("Get grid: %v", err)
	}
	torus, err := Get("torus_w=3_h=3_alpha=1_beta=1")
	if err != nil {
		t.Fatalf("Get torus: %v", err)
	}
	if torus.NumEdges() <= grid.NumEdges() {
		t.Fatalf("torus edges %d should exceed grid edges %d", torus.NumEdges(), grid.NumEdges())
	}
}

func TestGetWheelHubConnectsEveryRimNode(t *testing.T) {
	top, err := Get("wheel_n=6_alpha=1_beta=1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	for i := 1; i < 6; i++ {
		out := top.OutEdges(0)
		found := false
		for _, link := range out {
			if int(link.Dst) == i {
				found = true
			}
		}
		if !found {
			t.Fatalf("hub should connect to rim node %d", i)
		}
	}
}

func TestGetStarHasNoRimToRimLinks(t *testing.T) {
	top, err := Get("star_n=5_alpha=1_beta=1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if top.NumEdges() != (5-1)*2 {
		t.Fatalf("NumEdges = %d, want %d", top.NumEdges(), (5-1)*2)
	}
}

func TestGetGenericNxFormMatchesUnderscoreForm(t *testing.T) {
	a, err := Get("fc_n=4_alpha=1_beta=1")
	if err != nil {
		t.Fatalf("Get a: %v", err)
	}
	b, err := Get("nx_fc__n=4__alpha=1__beta=1")
	if err != nil {
		t.Fatalf("Get b: %v", err)
	}
	if !a.Equal(b, 1e-9) {
		t.Fatalf("nx form should produce the same topology as the underscore form")
	}
}

func TestGetRejectsUnknownGenerator(t *testing.T) {
	if _, err := Get("hypercube_n=4"); err == nil {
		t.Fatalf("expected error for unrecognized generator")
	}
}

func TestGetRejectsMissingParameter(t *testing.T) {
	if _, err := Get("fc_alpha=1_beta=1"); err == nil {
		t.Fatalf("expected error for missing n parameter")
	}
}

func TestGetRingHasOneSlowWrapEdge(t *testing.T) {
	top, err := Get("ring_n=5_alpha=1_beta=1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	for _, link := range top.OutEdges(4) {
		if int(link.Dst) != 0 {
			continue
		}
		edge, _ := top.Edge(link)
		if edge.Alpha <= 1 {
			t.Fatalf("wrap edge 4->0 alpha = %g, want > 1 (slow edge)", edge.Alpha)
		}
		if edge.Beta >= 1 {
			t.Fatalf("wrap edge 4->0 beta = %g, want < 1 (slow edge)", edge.Beta)
		}
	}
	for _, link := range top.OutEdges(0) {
		if int(link.Dst) != 1 {
			continue
		}
		edge, _ := top.Edge(link)
		if edge.Alpha != 1 || edge.Beta != 1 {
			t.Fatalf("non-wrap edge 0->1 should keep homogeneous (alpha, beta), got (%g, %g)", edge.Alpha, edge.Beta)
		}
	}
}

func TestGetRingSlowEdgeOverridable(t *testing.T) {
	top, err := Get("ring_n=4_alpha=1_beta=1_slow_alpha=99_slow_beta=0.01")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	for _, link := range top.OutEdges(3) {
		if int(link.Dst) != 0 {
			continue
		}
		edge, _ := top.Edge(link)
		if edge.Alpha != 99 || edge.Beta != 0.01 {
			t.Fatalf("wrap edge = (%g, %g), want (99, 0.01)", edge.Alpha, edge.Beta)
		}
	}
}

func TestGetFullyConnectedHeterogeneousSplit(t *testing.T) {
	top, err := Get("fc_n=10_alpha=1_beta=1_proportion=0.5_alpha2=5_beta2=0.2_seed=7")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	slow, fast := 0, 0
	for _, edge := range top.Edges() {
		switch {
		case edge.Alpha == 5 && edge.Beta == 0.2:
			slow++
		case edge.Alpha == 1 && edge.Beta == 1:
			fast++
		default:
			t.Fatalf("unexpected edge attributes (%g, %g)", edge.Alpha, edge.Beta)
		}
	}
	if slow == 0 {
		t.Fatalf("expected some edges to fall in the alpha2/beta2 bucket")
	}
	if fast == 0 {
		t.Fatalf("expected some edges to stay homogeneous")
	}
	if slow+fast != top.NumEdges() {
		t.Fatalf("slow(%d)+fast(%d) != NumEdges(%d)", slow, fast, top.NumEdges())
	}
}

func TestGetHeterogeneousSplitDisabledByDefault(t *testing.T) {
	top, err := Get("fc_n=6_alpha=1_beta=1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	for _, edge := range top.Edges() {
		if edge.Alpha != 1 || edge.Beta != 1 {
			t.Fatalf("expected every edge homogeneous without proportion, got (%g, %g)", edge.Alpha, edge.Beta)
		}
	}
}
