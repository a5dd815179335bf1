package schedule

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jsonW0/bean-tacos"
	"github.com/jsonW0/bean-tacos/internal/synth"
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

func TestWriteThenVerifyAcceptsValidSchedule(t *testing.T) {
	top := ring(4, 500, 200)
	coll := tacos.NewAllGather(4, tacos.UnitChunkSize, 1)
	s := synth.NewGreedyTACOS(top, coll, tacos.UnitChunkSize)
	if err := s.Solve(context.Background()); err != nil {
		t.Fatalf("solve: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, top, coll, s.EventHistory(), s.CurrentTime(), 10*time.Millisecond); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := Verify(bytes.NewReader(buf.Bytes()), top, coll, 1e-6); err != nil {
		t.Fatalf("verify rejected a valid schedule: %v", err)
	}
}

func TestVerifyRejectsWrongNodeCount(t *testing.T) {
	top := ring(4, 500, 200)
	coll := tacos.NewAllGather(4, tacos.UnitChunkSize, 1)
	s := synth.NewGreedyTACOS(top, coll, tacos.UnitChunkSize)
	if err := s.Solve(context.Background()); err != nil {
		t.Fatalf("solve: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, top, coll, s.EventHistory(), s.CurrentTime(), time.Millisecond); err != nil {
		t.Fatalf("write: %v", err)
	}

	otherTop := ring(5, 500, 200)
	if err := Verify(bytes.NewReader(buf.Bytes()), otherTop, coll, 1e-6); err == nil {
		t.Fatalf("expected verify to reject a schedule built for a different topology")
	}
}

func TestVerifyRejectsTamperedDuration(t *testing.T) {
	top := ring(4, 500, 200)
	coll := tacos.NewAllGather(4, tacos.UnitChunkSize, 1)
	s := synth.NewGreedyTACOS(top, coll, tacos.UnitChunkSize)
	if err := s.Solve(context.Background()); err != nil {
		t.Fatalf("solve: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, top, coll, s.EventHistory(), s.CurrentTime(), time.Millisecond); err != nil {
		t.Fatalf("write: %v", err)
	}
	tampered := bytes.ReplaceAll(buf.Bytes(), []byte("0:0:500"), []byte("0:0:999999"))
	if bytes.Equal(tampered, buf.Bytes()) {
		t.Skip("fixture did not contain the expected substring to tamper with")
	}
	if err := Verify(bytes.NewReader(tampered), top, coll, 1e-6); err == nil {
		t.Fatalf("expected verify to reject a tampered receive time")
	}
}
