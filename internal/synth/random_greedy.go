package synth

import (
	"context"
	"math/rand"

	"github.com/jsonW0/bean-tacos"
	"github.com/jsonW0/bean-tacos/internal/ten"
)

// RandomGreedy repeatedly picks a uniformly random productive match and
// commits it, stepping the clock forward whenever no match is currently
// available. Naive and TACOS are both instances of this algorithm; they
// differ only in how their *rand.Rand is seeded. GreedyTACOS instead always
// picks the smallest-delay match — see greedy.go.
type RandomGreedy struct {
	state *ten.TEN
	rng   *rand.Rand
}

// NewRandomGreedy creates a RandomGreedy driven by rng. A nil rng is replaced
// with an unseeded source — the Naive constructor's behavior, where
// reproducibility across runs is not required.
func NewRandomGreedy(top *tacos.Topology, coll *tacos.Collective, chunkSize tacos.ChunkSize, rng *rand.Rand) *RandomGreedy {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &RandomGreedy{state: ten.New(top, coll, chunkSize), rng: rng}
}

// Rand exposes the synthesizer's private RNG so a beam search can fork a
// deterministic descendant from this exact point in the random stream.
func (r *RandomGreedy) Rand() *rand.Rand { return r.rng }

// State exposes the underlying TEN for beam search cloning and fitness
// evaluation.
func (r *RandomGreedy) State() *ten.TEN { return r.state }

// Clone returns an independent RandomGreedy whose TEN is a deep copy and
// whose RNG continues from a freshly-seeded point derived from the parent's
// stream, so descendants diverge from each other.
func (r *RandomGreedy) Clone() *RandomGreedy {
	return &RandomGreedy{
		state: r.state.Clone(),
		rng:   rand.New(rand.NewSource(r.rng.Int63())),
	}
}

// Satisfied reports whether the postcondition currently holds.
func (r *RandomGreedy) Satisfied() bool { return r.state.Satisfied() }

// Step advances the instance by exactly one decision: it commits a single
// random productive match, or if none exist, advances the clock to the next
// pending event. It returns tacos.ErrDeadlock if neither is possible.
func (r *RandomGreedy) Step() error {
	matches := r.state.PossibleMatches()
	if len(matches) == 0 {
		if !r.state.Step() {
			return tacos.ErrDeadlock
		}
		return nil
	}
	choice := matches[r.rng.Intn(len(matches))]
	return r.state.Match(choice.Link, choice.Chunk)
}

// Solve drives the instance until the postcondition is satisfied, the
// context is cancelled, or no further progress can be made.
func (r *RandomGreedy) Solve(ctx context.Context) error {
	return traceSolve(ctx, "random_greedy", func(ctx context.Context) error {
		for !r.state.Satisfied() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.Step(); err != nil {
				return err
			}
		}
		return nil
	})
}

// CurrentTime returns the instance's simulated clock.
func (r *RandomGreedy) CurrentTime() tacos.Time { return r.state.CurrentTime() }

// EventHistory returns every match committed so far.
func (r *RandomGreedy) EventHistory() []tacos.Event { return r.state.EventHistory() }

// NewNaive builds a RandomGreedy seeded from an unpredictable source, the
// simplest possible synthesizer: useful as a correctness and performance
// baseline, not for reproducible benchmarking.
func NewNaive(top *tacos.Topology, coll *tacos.Collective, chunkSize tacos.ChunkSize) *RandomGreedy {
	return NewRandomGreedy(top, coll, chunkSize, nil)
}

// NewTACOS builds a RandomGreedy seeded deterministically from seed, so two
// runs with the same seed produce byte-identical schedules — required for
// MultipleTACOS and Beam to fork reproducible descendants.
func NewTACOS(top *tacos.Topology, coll *tacos.Collective, chunkSize tacos.ChunkSize, seed int64) *RandomGreedy {
	return NewRandomGreedy(top, coll, chunkSize, rand.New(rand.NewSource(seed)))
}
