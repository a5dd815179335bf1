package ten

import (
	"testing"

	"github.com/jsonW0/bean-tacos"
)

func TestEventQueuePopOrdersByReceiveTime(t *testing.T) {
	q := NewEventQueue()
	q.Push(tacos.Event{Chunk: 1, Send: 0, Receive: 30})
	q.Push(tacos.Event{Chunk: 0, Send: 0, Receive: 10})
	q.Push(tacos.Event{Chunk: 2, Send: 0, Receive: 20})

	t1, evs, ok := q.Pop()
	if !ok || t1 != 10 || len(evs) != 1 || evs[0].Chunk != 0 {
		t.Fatalf("first pop = %v, %v, %v", t1, evs, ok)
	}
	t2, _, _ := q.Pop()
	if t2 != 20 {
		t.Fatalf("second pop time = %v, want 20", t2)
	}
}

func TestEventQueueCoalescesSameReceiveTime(t *testing.T) {
	q := NewEventQueue()
	q.Push(tacos.Event{Chunk: 0, Receive: 5})
	q.Push(tacos.Event{Chunk: 1, Receive: 5})
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 distinct time bucket", q.Len())
	}
	_, evs, ok := q.Pop()
	if !ok || len(evs) != 2 {
		t.Fatalf("expected 2 coalesced events, got %v", evs)
	}
}

func TestEventQueueEmpty(t *testing.T) {
	q := NewEventQueue()
	if !q.Empty() {
		t.Fatalf("new queue should be empty")
	}
	q.Push(tacos.Event{Receive: 1})
	if q.Empty() {
		t.Fatalf("queue with a pending event should not be empty")
	}
	q.Pop()
	if !q.Empty() {
		t.Fatalf("queue should be empty after draining its only event")
	}
}

func TestEventQueuePopOnEmptyReturnsFalse(t *testing.T) {
	q := NewEventQueue()
	if _, _, ok := q.Pop(); ok {
		t.Fatalf("expected Pop on empty queue to report false")
	}
}

func TestEventQueueCloneIsIndependent(t *testing.T) {
	q := NewEventQueue()
	q.Push(tacos.Event{Chunk: 0, Receive: 5})
	clone := q.Clone()
	clone.Pop()
	if clone.Empty() == q.Empty() {
		t.Fatalf("clone should not share state with the original after draining")
	}
}
