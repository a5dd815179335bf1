package ten

import (
	"fmt"
	"math"

	"github.com/jsonW0/bean-tacos"
	"github.com/jsonW0/bean-tacos/internal/check"
)

// Match is a candidate (link, chunk) pair the state machine would accept.
type Match struct {
	Link  tacos.LinkId
	Chunk tacos.ChunkId
}

// TEN is the time-expanded network: the mutable state a synthesizer drives
// forward one Match and one Step at a time until the collective's
// postcondition is satisfied. Chunk arrival is stored as a dense per-node
// array indexed by chunk id (not a map) so Clone — used heavily by beam
// search to fork descendants — is a handful of slice copies rather than a
// tree walk.
type TEN struct {
	topology   *tacos.Topology
	collective *tacos.Collective
	chunkSize  tacos.ChunkSize

	currentTime  tacos.Time
	eventHistory []tacos.Event
	queue        *EventQueue

	links         []tacos.LinkId
	linkIndex     map[tacos.LinkId]int
	linkBusyUntil []tacos.Time

	numChunks    int
	chunkArrival [][]tacos.Time // [node][chunk]
}

// New creates a TEN over top for coll, with every precondition chunk already
// present at time zero and every other (node, chunk) pair marked as "not yet
// arrived" (+Inf).
func New(top *tacos.Topology, coll *tacos.Collective, chunkSize tacos.ChunkSize) *TEN {
	edges := top.Edges()
	links := make([]tacos.LinkId, len(edges))
	linkIndex := make(map[tacos.LinkId]int, len(edges))
	for i, e := range edges {
		links[i] = e.Link
		linkIndex[e.Link] = i
	}

	numChunks := coll.NumChunks()
	chunkArrival := make([][]tacos.Time, top.NumNodes())
	for node := range chunkArrival {
		row := make([]tacos.Time, numChunks)
		for c := range row {
			row[c] = tacos.Time(math.Inf(1))
		}
		for chunk := range coll.Precondition(tacos.NodeId(node)) {
			row[chunk] = 0
		}
		chunkArrival[node] = row
	}

	return &TEN{
		topology:      top,
		collective:    coll,
		chunkSize:     chunkSize,
		queue:         NewEventQueue(),
		links:         links,
		linkIndex:     linkIndex,
		linkBusyUntil: make([]tacos.Time, len(links)),
		numChunks:     numChunks,
		chunkArrival:  chunkArrival,
	}
}

// CurrentTime returns the state machine's simulated clock.
func (t *TEN) CurrentTime() tacos.Time { return t.currentTime }

// NumNodes returns the number of NPUs the state machine was built over.
func (t *TEN) NumNodes() int { return len(t.chunkArrival) }

// NumChunks returns the number of distinct chunks the collective refers to.
func (t *TEN) NumChunks() int { return t.numChunks }

// EventHistory returns every match committed so far, in commit order.
func (t *TEN) EventHistory() []tacos.Event {
	out := make([]tacos.Event, len(t.eventHistory))
	copy(out, t.eventHistory)
	return out
}

// PendingEvents reports whether the event queue still holds in-flight
// transmissions.
func (t *TEN) PendingEvents() bool { return !t.queue.Empty() }

// Satisfied reports whether every postcondition (node, chunk) pair has
// already arrived by the current time.
func (t *TEN) Satisfied() bool {
	for node := 0; node < len(t.chunkArrival); node++ {
		for chunk := range t.collective.Postcondition(tacos.NodeId(node)) {
			if t.chunkArrival[node][chunk] > t.currentTime {
				return false
			}
		}
	}
	return true
}

// NeedingChunks returns the set of chunks node's postcondition names that it
// has not yet received.
func (t *TEN) NeedingChunks(node tacos.NodeId) map[tacos.ChunkId]bool {
	out := make(map[tacos.ChunkId]bool)
	for chunk := range t.collective.Postcondition(node) {
		if t.chunkArrival[node][chunk] > t.currentTime {
			out[chunk] = true
		}
	}
	return out
}

// AvailableLinks returns every link that is not currently transmitting a
// chunk.
func (t *TEN) AvailableLinks() []tacos.LinkId {
	var out []tacos.LinkId
	for i, link := range t.links {
		if t.linkBusyUntil[i] <= t.currentTime {
			out = append(out, link)
		}
	}
	return out
}

// ChunksAt returns every chunk currently present at node.
func (t *TEN) ChunksAt(node tacos.NodeId) []tacos.ChunkId {
	var out []tacos.ChunkId
	row := t.chunkArrival[node]
	for chunk, arrival := range row {
		if arrival <= t.currentTime {
			out = append(out, tacos.ChunkId(chunk))
		}
	}
	return out
}

// IsProductiveMatch reports whether matching chunk onto link right now would
// make progress: the link must be free, the chunk must already be at the
// source, the chunk must not already be at (or en route to) the destination,
// and the destination must actually need the chunk.
func (t *TEN) IsProductiveMatch(link tacos.LinkId, chunk tacos.ChunkId) bool {
	idx, ok := t.linkIndex[link]
	if !ok {
		return false
	}
	if t.linkBusyUntil[idx] > t.currentTime {
		return false
	}
	if int(chunk) < 0 || int(chunk) >= t.numChunks {
		return false
	}
	if t.chunkArrival[link.Src][chunk] > t.currentTime {
		return false
	}
	if !math.IsInf(float64(t.chunkArrival[link.Dst][chunk]), 1) {
		return false
	}
	return t.collective.Postcondition(link.Dst)[chunk]
}

// PossibleMatches enumerates every currently productive (link, chunk) pair.
func (t *TEN) PossibleMatches() []Match {
	var matches []Match
	for _, link := range t.AvailableLinks() {
		for _, chunk := range t.ChunksAt(link.Src) {
			if t.IsProductiveMatch(link, chunk) {
				matches = append(matches, Match{Link: link, Chunk: chunk})
			}
		}
	}
	return matches
}

// Match commits a transmission of chunk over link starting at the current
// time, scheduling its arrival event. It returns tacos.ErrNonProductiveMatch
// if the match would not currently make progress.
func (t *TEN) Match(link tacos.LinkId, chunk tacos.ChunkId) error {
	if !t.IsProductiveMatch(link, chunk) {
		return fmt.Errorf("%w: %s chunk=%d", tacos.ErrNonProductiveMatch, link, chunk)
	}
	delay, err := t.topology.Delay(link, t.chunkSize)
	if err != nil {
		return err
	}

	send := t.currentTime
	receive := t.currentTime + delay
	check.Assertf(receive >= send, "link %s produced a non-causal delay %v", link, delay)
	event := tacos.Event{Link: link, Chunk: chunk, Send: send, Receive: receive}

	idx := t.linkIndex[link]
	t.linkBusyUntil[idx] = receive
	t.chunkArrival[link.Dst][chunk] = receive
	t.eventHistory = append(t.eventHistory, event)
	t.queue.Push(event)
	return nil
}

// Step advances the clock to the next pending event's receive time. It
// returns false if the event queue is empty — the caller (a synthesizer) is
// expected to treat that, combined with an unsatisfied postcondition, as a
// deadlock.
func (t *TEN) Step() bool {
	next, _, ok := t.queue.Pop()
	if !ok {
		return false
	}
	check.Assertf(next >= t.currentTime, "event queue returned a time in the past: %v < %v", next, t.currentTime)
	t.currentTime = next
	return true
}

// Clone returns a deep, independent copy of the state machine — used by beam
// search to fork one candidate into several descendants without the
// descendants aliasing each other's state.
func (t *TEN) Clone() *TEN {
	clone := &TEN{
		topology:      t.topology,
		collective:    t.collective,
		chunkSize:     t.chunkSize,
		currentTime:   t.currentTime,
		queue:         t.queue.Clone(),
		links:         t.links,
		linkIndex:     t.linkIndex,
		linkBusyUntil: append([]tacos.Time(nil), t.linkBusyUntil...),
		numChunks:     t.numChunks,
		chunkArrival:  make([][]tacos.Time, len(t.chunkArrival)),
	}
	clone.eventHistory = append([]tacos.Event(nil), t.eventHistory...)
	for i, row := range t.chunkArrival {
		clone.chunkArrival[i] = append([]tacos.Time(nil), row...)
	}
	return clone
}
