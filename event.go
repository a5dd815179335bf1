package tacos

import "fmt"

// Event is a single timed transmission of one chunk over one link: it leaves
// its source at Send and arrives at its destination at Receive. Receive-Send
// equals the link's Delay for the chunk's size.
type Event struct {
	Link    LinkId
	Chunk   ChunkId
	Send    Time
	Receive Time
}

func (e Event) String() string {
	return fmt.Sprintf("%s chunk=%d send=%g receive=%g", e.Link, e.Chunk, float64(e.Send), float64(e.Receive))
}

// Duration returns Receive-Send.
func (e Event) Duration() Time { return e.Receive - e.Send }

// Schedule is an ordered list of events together with the topology and
// collective they were synthesized for — the unit written out by
// internal/schedule and re-checked by its verifier.
type Schedule struct {
	Topology   *Topology
	Collective *Collective
	Events     []Event
	Makespan   Time
}

// NewSchedule wraps events synthesized for top/coll into a Schedule, computing
// the makespan as the maximum Receive time across all events (zero if there
// are none).
func NewSchedule(top *Topology, coll *Collective, events []Event) *Schedule {
	var makespan Time
	for _, e := range events {
		if e.Receive > makespan {
			makespan = e.Receive
		}
	}
	return &Schedule{Topology: top, Collective: coll, Events: events, Makespan: makespan}
}
