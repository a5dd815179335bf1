// Package ten implements the time-expanded network state machine: the
// discrete-event simulation that synthesizers advance one match (and one
// Step) at a time until a collective's postcondition is satisfied.
package ten

import (
	"container/heap"

	"github.com/jsonW0/bean-tacos"
)

// timeHeap is a min-heap of distinct receive times, used internally by
// EventQueue to pop the next time bucket in O(log n).
type timeHeap []tacos.Time

func (h timeHeap) Len() int            { return len(h) }
func (h timeHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h timeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timeHeap) Push(x interface{}) { *h = append(*h, x.(tacos.Time)) }
func (h *timeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// EventQueue is a min-heap priority queue of events ordered by receive time,
// coalescing events that land on the exact same time bucket so Pop returns
// every event simultaneously completing.
type EventQueue struct {
	times  timeHeap
	seen   map[tacos.Time]bool
	events map[tacos.Time][]tacos.Event
}

// NewEventQueue creates an empty EventQueue.
func NewEventQueue() *EventQueue {
	return &EventQueue{
		seen:   make(map[tacos.Time]bool),
		events: make(map[tacos.Time][]tacos.Event),
	}
}

// Push adds an event to the queue, bucketing it by Receive time.
func (q *EventQueue) Push(e tacos.Event) {
	if !q.seen[e.Receive] {
		heap.Push(&q.times, e.Receive)
		q.seen[e.Receive] = true
	}
	q.events[e.Receive] = append(q.events[e.Receive], e)
}

// Pop removes and returns the earliest time bucket and every event landing on
// it. The second return value is false when the queue is empty.
func (q *EventQueue) Pop() (tacos.Time, []tacos.Event, bool) {
	if q.times.Len() == 0 {
		return 0, nil, false
	}
	t := heap.Pop(&q.times).(tacos.Time)
	delete(q.seen, t)
	events := q.events[t]
	delete(q.events, t)
	return t, events, true
}

// Empty reports whether the queue holds no pending events.
func (q *EventQueue) Empty() bool { return len(q.events) == 0 }

// Len reports the number of distinct pending time buckets.
func (q *EventQueue) Len() int { return q.times.Len() }

// Clone returns a deep copy of the queue, safe to advance independently of
// the original — used when a beam search instance spawns descendants.
func (q *EventQueue) Clone() *EventQueue {
	clone := &EventQueue{
		times:  make(timeHeap, len(q.times)),
		seen:   make(map[tacos.Time]bool, len(q.seen)),
		events: make(map[tacos.Time][]tacos.Event, len(q.events)),
	}
	copy(clone.times, q.times)
	for t := range q.seen {
		clone.seen[t] = true
	}
	for t, evs := range q.events {
		cp := make([]tacos.Event, len(evs))
		copy(cp, evs)
		clone.events[t] = cp
	}
	return clone
}
