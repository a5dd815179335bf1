// Package ilp finds a provably optimal schedule by branch-and-bound search
// over the same time-expanded network state space the randomized
// synthesizers explore heuristically.
//
// The corpus this module was grown from carries no MILP/LP solver
// dependency anywhere — Gurobi, the tool the original research code used,
// is neither open-source nor importable as a Go module. Rather than
// fabricate a binding to a solver nobody here actually depends on, the
// search is written directly against internal/ten: at each reachable state
// it branches over every productive (link, chunk) match, plus a "wait"
// branch that advances to the next pending arrival without committing any
// match whenever one is in flight — without this, a link can only ever be
// filled the instant it is free, which misses optima that hold a link idle
// to reserve it for a chunk that arrives shortly after. It prunes a branch
// the moment its current time can no longer beat the best schedule found so
// far, and returns the best complete schedule discovered once the context's
// deadline is reached or the tree is fully explored. A returned Result's
// Optimal field distinguishes an exhaustively-proven optimum from a
// time-boxed incumbent.
package ilp

import (
	"context"
	"fmt"

	"github.com/jsonW0/bean-tacos"
	"github.com/jsonW0/bean-tacos/internal/ten"
)

// Result is the outcome of a branch-and-bound search.
type Result struct {
	Makespan tacos.Time
	Events   []tacos.Event
	// Optimal is true only if the search exhausted the tree before the
	// context was cancelled — a false value means Events is the best
	// incumbent found within the time budget, not a proven optimum.
	Optimal bool
}

// Solver runs exact branch-and-bound search over a fixed topology and
// collective.
type Solver struct {
	topology  *tacos.Topology
	coll      *tacos.Collective
	chunkSize tacos.ChunkSize

	best       Result
	haveResult bool
	nodesSeen  int64
}

// New creates a Solver over top for coll.
func New(top *tacos.Topology, coll *tacos.Collective, chunkSize tacos.ChunkSize) *Solver {
	return &Solver{topology: top, coll: coll, chunkSize: chunkSize}
}

// Solve runs the search until ctx is cancelled or the tree is exhausted. It
// returns tacos.ErrNoIncumbent if no feasible schedule was found before ctx
// was cancelled.
func (s *Solver) Solve(ctx context.Context) (Result, error) {
	root := ten.New(s.topology, s.coll, s.chunkSize)
	exhausted := s.search(ctx, root)
	if !s.haveResult {
		return Result{}, fmt.Errorf("%w after exploring %d states", tacos.ErrNoIncumbent, s.nodesSeen)
	}
	s.best.Optimal = exhausted
	return s.best, nil
}

// search explores state depth-first, pruning any branch whose current time
// already meets or exceeds the best known makespan. It returns true if the
// subtree rooted at state was fully explored (not cut short by ctx or by a
// pruning bound that might have hidden an improving branch — pruning on a
// dominated bound still counts as fully explored, since no schedule through
// a pruned branch could possibly improve on the incumbent).
func (s *Solver) search(ctx context.Context, state *ten.TEN) bool {
	s.nodesSeen++
	if err := ctx.Err(); err != nil {
		return false
	}
	if s.haveResult && state.CurrentTime() >= s.best.Makespan {
		return true // pruned: this branch cannot improve on the incumbent
	}

	if state.Satisfied() {
		s.recordIncumbent(state)
		return true
	}

	matches := state.PossibleMatches()
	if len(matches) == 0 {
		if !state.Step() {
			return true // deadlock: dead end, nothing left to explore
		}
		return s.search(ctx, state)
	}

	fullyExplored := true
	for _, m := range matches {
		branch := state.Clone()
		if err := branch.Match(m.Link, m.Chunk); err != nil {
			continue
		}
		if !s.search(ctx, branch) {
			fullyExplored = false
		}
	}

	// A bottleneck link can be worth leaving idle now so a more critical
	// chunk that arrives later gets it instead — greedily committing every
	// available match the instant it becomes possible is not always
	// optimal. Whenever events are already in flight, also branch into
	// waiting for the next one instead of matching immediately.
	if state.PendingEvents() {
		branch := state.Clone()
		if branch.Step() {
			if !s.search(ctx, branch) {
				fullyExplored = false
			}
		}
	}

	return fullyExplored
}

func (s *Solver) recordIncumbent(state *ten.TEN) {
	if s.haveResult && state.CurrentTime() >= s.best.Makespan {
		return
	}
	s.best = Result{
		Makespan: state.CurrentTime(),
		Events:   state.EventHistory(),
	}
	s.haveResult = true
}
