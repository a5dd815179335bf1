package synth

import (
	"context"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jsonW0/bean-tacos"
)

// MultipleTACOS runs N independently seeded TACOS instances to completion,
// fanned out across a worker pool bounded by runtime.GOMAXPROCS, and keeps
// whichever one finished with the smallest makespan. It trades
// synthesis-time compute for schedule quality without changing the
// underlying algorithm.
type MultipleTACOS struct {
	instances []*RandomGreedy
	best      *RandomGreedy
}

// NewMultipleTACOS creates numTrials TACOS instances, each seeded from a
// shared master RNG so the whole run is reproducible from a single seed.
func NewMultipleTACOS(top *tacos.Topology, coll *tacos.Collective, chunkSize tacos.ChunkSize, numTrials int, seed int64) *MultipleTACOS {
	master := rand.New(rand.NewSource(seed))
	instances := make([]*RandomGreedy, numTrials)
	for i := range instances {
		instances[i] = NewTACOS(top, coll, chunkSize, master.Int63())
	}
	return &MultipleTACOS{instances: instances}
}

// Solve runs every instance to completion over a worker pool sized to
// runtime.GOMAXPROCS and selects the one with the smallest resulting
// CurrentTime. The pool bound keeps a large --num_trials from
// oversubscribing the machine the way one goroutine per instance would. A
// plain errgroup.Group (no WithContext) is used deliberately: one instance
// failing must not cancel its independent siblings, only skip itself from
// the final selection.
func (m *MultipleTACOS) Solve(ctx context.Context) error {
	return traceSolve(ctx, "multiple_tacos", func(ctx context.Context) error {
		errs := make([]error, len(m.instances))
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))

		for i, instance := range m.instances {
			i, instance := i, instance
			g.Go(func() error {
				errs[i] = instance.Solve(ctx)
				return nil
			})
		}
		_ = g.Wait()

		for i, inst := range m.instances {
			if errs[i] != nil {
				continue
			}
			if m.best == nil || inst.CurrentTime() < m.best.CurrentTime() {
				m.best = inst
			}
		}
		if m.best == nil {
			return errs[0]
		}
		return nil
	})
}

// CurrentTime returns the best surviving instance's simulated clock.
func (m *MultipleTACOS) CurrentTime() tacos.Time {
	if m.best == nil {
		return 0
	}
	return m.best.CurrentTime()
}

// EventHistory returns the best surviving instance's committed matches.
func (m *MultipleTACOS) EventHistory() []tacos.Event {
	if m.best == nil {
		return nil
	}
	return m.best.EventHistory()
}
