package synth

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/jsonW0/bean-tacos"
)

// FitnessFunc scores a candidate instance; higher is better. At temperature
// 0 Beam keeps the NumBeams highest-scoring candidates after each round;
// above 0 it samples survivors weighted by score.
type FitnessFunc string

const (
	// FitnessChunkCount scores an instance by the total number of chunks
	// present across every node at its current time — a simple measure of
	// how much data has already moved.
	FitnessChunkCount FitnessFunc = "chunk_count"

	// FitnessShortestPath scores an instance by the negated worst-case
	// shortest-path distance, over link delay, from any node already
	// holding a still-needed chunk to the node that needs it. Instances
	// whose hardest remaining chunk is "close" to a source score higher.
	FitnessShortestPath FitnessFunc = "shortest_path"
)

// Beam runs a population of NumBeams TACOS instances for one decision at a
// time, each round cloning every non-finished instance into NumBeams
// descendants, scoring the resulting population, and keeping only the best
// NumBeams to continue into the next round.
type Beam struct {
	instances   []*RandomGreedy
	numBeams    int
	fitness     FitnessFunc
	temperature float64
	rng         *rand.Rand
	topology    *tacos.Topology
	chunkSize   tacos.ChunkSize

	shortestPaths *path.AllShortest
}

// NewBeam creates a Beam with numBeams parallel instances seeded from seed.
// temperature of 0 always keeps the strictly best numBeams candidates;
// above 0, survivors are sampled from a softmax over fitness scores, giving
// weaker candidates a chance to survive a round.
func NewBeam(top *tacos.Topology, coll *tacos.Collective, chunkSize tacos.ChunkSize, numBeams int, fitness FitnessFunc, temperature float64, seed int64) *Beam {
	master := rand.New(rand.NewSource(seed))
	instances := make([]*RandomGreedy, numBeams)
	for i := range instances {
		instances[i] = NewTACOS(top, coll, chunkSize, master.Int63())
	}
	return &Beam{
		instances:   instances,
		numBeams:    numBeams,
		fitness:     fitness,
		temperature: temperature,
		rng:         master,
		topology:    top,
		chunkSize:   chunkSize,
	}
}

func (b *Beam) allSatisfied() bool {
	for _, inst := range b.instances {
		if !inst.Satisfied() {
			return false
		}
	}
	return true
}

// Solve runs the population forward, one descend-score-select round at a
// time, until every surviving instance's postcondition is satisfied.
//
// Each descendant's round already steps the clock when no match is
// available. Whenever a round makes no progress at all — no descendant can
// match or step, i.e. the state machine has nothing productive to do and
// nothing pending either — Beam returns tacos.ErrDeadlock instead of
// looping forever on an unreachable postcondition.
func (b *Beam) Solve(ctx context.Context) error {
	return traceSolve(ctx, "beam", func(ctx context.Context) error {
		for !b.allSatisfied() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var population []*RandomGreedy
			stalled := true
			for _, inst := range b.instances {
				if inst.Satisfied() {
					population = append(population, inst)
					continue
				}
				for i := 0; i < b.numBeams; i++ {
					clone := inst.Clone()
					progressed, err := driveOneRound(clone)
					if err != nil {
						return err
					}
					if progressed {
						stalled = false
					}
					population = append(population, clone)
				}
			}
			if stalled {
				return tacos.ErrDeadlock
			}

			survivors, err := b.selectSurvivors(population)
			if err != nil {
				return err
			}
			b.instances = survivors
		}
		return nil
	})
}

// driveOneRound advances a clone by repeated random matches until it either
// satisfies its postcondition or has to advance the clock, mirroring one
// "turn" of the population before the next fitness evaluation. It reports
// whether any state change occurred.
func driveOneRound(clone *RandomGreedy) (bool, error) {
	progressed := false
	for !clone.Satisfied() {
		matches := clone.State().PossibleMatches()
		if len(matches) == 0 {
			if !clone.State().Step() {
				return progressed, nil
			}
			progressed = true
			break
		}
		choice := matches[clone.Rand().Intn(len(matches))]
		if err := clone.State().Match(choice.Link, choice.Chunk); err != nil {
			return progressed, err
		}
		progressed = true
	}
	return progressed, nil
}

func (b *Beam) selectSurvivors(population []*RandomGreedy) ([]*RandomGreedy, error) {
	scores := make([]float64, len(population))
	for i, inst := range population {
		score, err := b.score(inst)
		if err != nil {
			return nil, err
		}
		scores[i] = score
	}

	if b.temperature == 0 {
		idx := make([]int, len(population))
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(i, j int) bool { return scores[idx[i]] > scores[idx[j]] })
		n := b.numBeams
		if n > len(idx) {
			n = len(idx)
		}
		out := make([]*RandomGreedy, n)
		for i := 0; i < n; i++ {
			out[i] = population[idx[i]]
		}
		return out, nil
	}

	weights := softmax(scores, b.temperature)
	return weightedSampleWithoutReplacement(b.rng, population, weights, b.numBeams), nil
}

func softmax(scores []float64, temperature float64) []float64 {
	scaled := make([]float64, len(scores))
	max := math.Inf(-1)
	for i, s := range scores {
		scaled[i] = s / temperature
		if scaled[i] > max {
			max = scaled[i]
		}
	}
	out := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scaled {
		v := math.Exp(s - max)
		out[i] = v
		sum += v
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func weightedSampleWithoutReplacement(rng *rand.Rand, population []*RandomGreedy, weights []float64, n int) []*RandomGreedy {
	remaining := append([]*RandomGreedy(nil), population...)
	remainingWeights := append([]float64(nil), weights...)
	if n > len(remaining) {
		n = len(remaining)
	}
	out := make([]*RandomGreedy, 0, n)
	for len(out) < n {
		total := 0.0
		for _, w := range remainingWeights {
			total += w
		}
		target := rng.Float64() * total
		cum := 0.0
		pick := len(remaining) - 1
		for i, w := range remainingWeights {
			cum += w
			if target <= cum {
				pick = i
				break
			}
		}
		out = append(out, remaining[pick])
		remaining = append(remaining[:pick], remaining[pick+1:]...)
		remainingWeights = append(remainingWeights[:pick], remainingWeights[pick+1:]...)
	}
	return out
}

func (b *Beam) score(inst *RandomGreedy) (float64, error) {
	switch b.fitness {
	case FitnessShortestPath:
		return b.shortestPathFitness(inst)
	case FitnessChunkCount:
		fallthrough
	default:
		return chunkCountFitness(inst), nil
	}
}

func chunkCountFitness(inst *RandomGreedy) float64 {
	total := 0
	state := inst.State()
	for node := 0; node < state.NumNodes(); node++ {
		total += len(state.ChunksAt(tacos.NodeId(node)))
	}
	return float64(total)
}

// shortestPathFitness scores by the negated worst-case link-delay distance
// from a chunk's nearest current holder to a node still needing it —
// instances closer to finishing their hardest remaining delivery score
// higher. The all-pairs shortest-path table is shared and computed once.
func (b *Beam) shortestPathFitness(inst *RandomGreedy) (float64, error) {
	if b.shortestPaths == nil {
		sp, err := buildShortestPaths(b.topology, b.chunkSize)
		if err != nil {
			return 0, err
		}
		b.shortestPaths = sp
	}

	state := inst.State()
	holders := make(map[tacos.ChunkId][]tacos.NodeId)
	for node := 0; node < state.NumNodes(); node++ {
		for _, chunk := range state.ChunksAt(tacos.NodeId(node)) {
			holders[chunk] = append(holders[chunk], tacos.NodeId(node))
		}
	}

	worst := 0.0
	for node := 0; node < state.NumNodes(); node++ {
		for chunk := range inst.State().NeedingChunks(tacos.NodeId(node)) {
			best := math.Inf(1)
			for _, src := range holders[chunk] {
				d := b.shortestPaths.Weight(int64(src), int64(node))
				if d < best {
					best = d
				}
			}
			if math.IsInf(best, 1) {
				continue
			}
			if best > worst {
				worst = best
			}
		}
	}
	return -worst, nil
}

func buildShortestPaths(top *tacos.Topology, chunkSize tacos.ChunkSize) (*path.AllShortest, error) {
	g := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for i := 0; i < top.NumNodes(); i++ {
		g.AddNode(simple.Node(int64(i)))
	}
	for _, e := range top.Edges() {
		d, err := top.Delay(e.Link, chunkSize)
		if err != nil {
			return nil, err
		}
		g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(int64(e.Link.Src)), T: simple.Node(int64(e.Link.Dst)), W: float64(d)})
	}
	shortest, _ := path.FloydWarshall(g)
	return &shortest, nil
}

// CurrentTime returns the fastest surviving instance's simulated clock.
func (b *Beam) CurrentTime() tacos.Time {
	best := tacos.Time(math.Inf(1))
	for _, inst := range b.instances {
		if inst.CurrentTime() < best {
			best = inst.CurrentTime()
		}
	}
	return best
}

// EventHistory returns the fastest surviving instance's committed matches.
func (b *Beam) EventHistory() []tacos.Event {
	var best *RandomGreedy
	for _, inst := range b.instances {
		if best == nil || inst.CurrentTime() < best.CurrentTime() {
			best = inst
		}
	}
	if best == nil {
		return nil
	}
	return best.EventHistory()
}
