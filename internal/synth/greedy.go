package synth

import (
	"context"
	"math"

	"github.com/jsonW0/bean-tacos"
)

// GreedyTACOS always commits the currently-possible match with the smallest
// link delay, breaking ties by link iteration order. Unlike RandomGreedy it
// reasons about links in a backward convention: a link only becomes eligible
// once the clock has advanced far enough that a transmission started "delay
// ago" would already have landed, and a committed match's send time is
// backdated to current_time-delay rather than recorded as the time the match
// was chosen. This lets the greedy choice always compare completed-looking
// transmissions instead of in-flight ones.
type GreedyTACOS struct {
	topology *tacos.Topology
	coll     *tacos.Collective

	links         []tacos.LinkId
	linkIndex     map[tacos.LinkId]int
	linkDelay     []tacos.Time
	availableFrom []tacos.Time

	numChunks    int
	chunkArrival [][]tacos.Time

	currentTime  tacos.Time
	eventHistory []tacos.Event
}

// NewGreedyTACOS creates a GreedyTACOS synthesizer over top for coll.
func NewGreedyTACOS(top *tacos.Topology, coll *tacos.Collective, chunkSize tacos.ChunkSize) *GreedyTACOS {
	edges := top.Edges()
	links := make([]tacos.LinkId, len(edges))
	linkIndex := make(map[tacos.LinkId]int, len(edges))
	linkDelay := make([]tacos.Time, len(edges))
	for i, e := range edges {
		links[i] = e.Link
		linkIndex[e.Link] = i
		d, _ := top.Delay(e.Link, chunkSize)
		linkDelay[i] = d
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

	return &GreedyTACOS{
		topology:      top,
		coll:          coll,
		links:         links,
		linkIndex:     linkIndex,
		linkDelay:     linkDelay,
		availableFrom: make([]tacos.Time, len(links)),
		numChunks:     numChunks,
		chunkArrival:  chunkArrival,
	}
}

func (g *GreedyTACOS) satisfied() bool {
	for node := 0; node < len(g.chunkArrival); node++ {
		for chunk := range g.coll.Postcondition(tacos.NodeId(node)) {
			if g.chunkArrival[node][chunk] > g.currentTime {
				return false
			}
		}
	}
	return true
}

type greedyMatch struct {
	idx   int
	link  tacos.LinkId
	chunk tacos.ChunkId
}

func (g *GreedyTACOS) possibleMatches() []greedyMatch {
	var matches []greedyMatch
	for idx, link := range g.links {
		threshold := g.currentTime - g.linkDelay[idx]
		if g.availableFrom[idx] > threshold {
			continue
		}
		for chunk, arrival := range g.chunkArrival[link.Src] {
			if arrival > threshold {
				continue
			}
			if !math.IsInf(float64(g.chunkArrival[link.Dst][chunk]), 1) {
				continue
			}
			if !g.coll.Postcondition(link.Dst)[tacos.ChunkId(chunk)] {
				continue
			}
			matches = append(matches, greedyMatch{idx: idx, link: link, chunk: tacos.ChunkId(chunk)})
		}
	}
	return matches
}

func (g *GreedyTACOS) match(m greedyMatch) {
	sendTime := g.currentTime - g.linkDelay[m.idx]
	if sendTime < 0 {
		sendTime = 0
	}
	receiveTime := g.currentTime
	g.eventHistory = append(g.eventHistory, tacos.Event{Link: m.link, Chunk: m.chunk, Send: sendTime, Receive: receiveTime})
	g.availableFrom[m.idx] = receiveTime
	g.chunkArrival[m.link.Dst][m.chunk] = receiveTime
}

// step advances the clock to the smallest time strictly greater than the
// present at which some link could deliver: its free time plus its delay,
// or a chunk's arrival at the link's source (after the link went free) plus
// its delay. It returns false if no such time exists, which only happens
// once no link can deliver anything further.
func (g *GreedyTACOS) step() bool {
	next := tacos.Time(math.Inf(1))
	found := false
	consider := func(candidate tacos.Time) {
		if candidate > g.currentTime && candidate < next {
			next = candidate
			found = true
		}
	}
	for idx, link := range g.links {
		consider(g.availableFrom[idx] + g.linkDelay[idx])
		for _, arrival := range g.chunkArrival[link.Src] {
			if arrival > g.availableFrom[idx] && !math.IsInf(float64(arrival), 1) {
				consider(arrival + g.linkDelay[idx])
			}
		}
	}
	if !found {
		return false
	}
	g.currentTime = next
	return true
}

// Solve drives the synthesizer, always preferring the smallest-delay
// currently-possible match, until the postcondition is satisfied.
func (g *GreedyTACOS) Solve(ctx context.Context) error {
	return traceSolve(ctx, "greedy_tacos", func(ctx context.Context) error {
		for !g.satisfied() {
			if err := ctx.Err(); err != nil {
				return err
			}
			matches := g.possibleMatches()
			if len(matches) == 0 {
				if !g.step() {
					return tacos.ErrDeadlock
				}
				continue
			}
			best := matches[0]
			for _, m := range matches[1:] {
				if g.linkDelay[m.idx] < g.linkDelay[best.idx] {
					best = m
				}
			}
			g.match(best)
		}
		return nil
	})
}

// CurrentTime returns the instance's simulated clock.
func (g *GreedyTACOS) CurrentTime() tacos.Time { return g.currentTime }

// EventHistory returns every match committed so far.
func (g *GreedyTACOS) EventHistory() []tacos.Event {
	out := make([]tacos.Event, len(g.eventHistory))
	copy(out, g.eventHistory)
	return out
}
