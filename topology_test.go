package tacos

import (
	"bytes"
	"math"
	"testing"
)

func ring(n int, alpha, beta float64) *Topology {
	top := NewTopology(n)
	for i := 0; i < n; i++ {
		if err := top.Connect(NodeId(i), NodeId((i+1)%n), alpha, beta); err != nil {
			panic(err)
		}
	}
	return top
}

func TestTopologyConnectRejectsSelfLoop(t *testing.T) {
	top := NewTopology(2)
	if err := top.Connect(0, 0, 1, 1); err == nil {
		t.Fatalf("expected error connecting a node to itself")
	}
}

func TestTopologyConnectRejectsOutOfRange(t *testing.T) {
	top := NewTopology(2)
	if err := top.Connect(0, 5, 1, 1); err == nil {
		t.Fatalf("expected error for out-of-range node")
	}
}

func TestTopologyConnectRejectsDuplicate(t *testing.T) {
	top := NewTopology(2)
	if err := top.Connect(0, 1, 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := top.Connect(0, 1, 2, 2); err == nil {
		t.Fatalf("expected error for duplicate edge")
	}
}

func TestTopologyDelay(t *testing.T) {
	top := NewTopology(2)
	if err := top.Connect(0, 1, 500, 100); err != nil {
		t.Fatalf("connect: %v", err)
	}
	d, err := top.Delay(LinkId{Src: 0, Dst: 1}, 1)
	if err != nil {
		t.Fatalf("delay: %v", err)
	}
	want := 500 + (1.0/float64(1<<30))*(1e9/100)
	if math.Abs(float64(d)-want) > 1e-9 {
		t.Fatalf("delay = %v, want %v", d, want)
	}
}

func TestTopologyDelayUnknownEdge(t *testing.T) {
	top := NewTopology(2)
	if _, err := top.Delay(LinkId{Src: 0, Dst: 1}, 1); err == nil {
		t.Fatalf("expected error for unknown edge")
	}
}

func TestTopologyInOutEdges(t *testing.T) {
	top := ring(4, 10, 10)
	if got := top.OutEdges(0); len(got) != 1 || got[0].Dst != 1 {
		t.Fatalf("OutEdges(0) = %v", got)
	}
	if got := top.InEdges(0); len(got) != 1 || got[0].Src != 3 {
		t.Fatalf("InEdges(0) = %v", got)
	}
}

func TestTopologyCSVRoundTrip(t *testing.T) {
	top := ring(4, 500, 200)
	var buf bytes.Buffer
	if err := top.WriteCSV(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := ReadTopologyCSV(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !top.Equal(loaded, 1e-9) {
		t.Fatalf("round-tripped topology does not match original")
	}
}

func TestTopologyCSVRejectsBadHeader(t *testing.T) {
	bad := "4\nA,B,C,D\n0,1,1,1\n"
	if _, err := ReadTopologyCSV(bytes.NewBufferString(bad)); err == nil {
		t.Fatalf("expected error for bad header")
	}
}
