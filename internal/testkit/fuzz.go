// Package testkit generates randomized topology/collective instances and
// drives them through a synthesizer and the schedule verifier, the way
// internal/testkit/scenario's chaos runner drives a deployment scenario
// through randomized operations and checks invariants after each step. Here
// there is only one meaningful "step" — synthesize, then verify — so the
// harness is a single reproducible round per seed rather than a sequence of
// chaos operations.
package testkit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jsonW0/bean-tacos"
	"github.com/jsonW0/bean-tacos/internal/schedule"
	"github.com/jsonW0/bean-tacos/internal/synth"
)

// FuzzConfig bounds the randomly generated instance.
type FuzzConfig struct {
	MinNodes int
	MaxNodes int
	// EdgeProbability is the chance, independently per ordered node pair,
	// that a directed link exists in addition to the links a random
	// spanning structure guarantees for connectivity.
	EdgeProbability float64
}

// DefaultFuzzConfig mirrors the small, fast instances the randomized
// synthesizers are actually benchmarked against.
var DefaultFuzzConfig = FuzzConfig{MinNodes: 2, MaxNodes: 8, EdgeProbability: 0.3}

// Result is the outcome of one fuzz round.
type Result struct {
	Seed       int64
	NumNodes   int
	Collective string
	Deadlocked bool
}

// RandomTopology builds a random directed topology over cfg's node-count
// range. A random Hamiltonian cycle is connected first so every node can
// reach every other node (ruling out connectivity-caused deadlocks that
// would make this harness flaky rather than meaningful), then extra
// directed links are added per EdgeProbability.
func RandomTopology(rng *rand.Rand, cfg FuzzConfig) *tacos.Topology {
	n := cfg.MinNodes
	if cfg.MaxNodes > cfg.MinNodes {
		n += rng.Intn(cfg.MaxNodes - cfg.MinNodes + 1)
	}
	if n < 2 {
		n = 2
	}

	perm := rng.Perm(n)
	top := tacos.NewTopology(n)
	for i := 0; i < n; i++ {
		src := tacos.NodeId(perm[i])
		dst := tacos.NodeId(perm[(i+1)%n])
		alpha := 1 + rng.Float64()*9
		beta := 1 + rng.Float64()*99
		_ = top.Connect(src, dst, alpha, beta)
		_ = top.Connect(dst, src, alpha, beta)
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if rng.Float64() >= cfg.EdgeProbability {
				continue
			}
			link := tacos.LinkId{Src: tacos.NodeId(i), Dst: tacos.NodeId(j)}
			if _, exists := top.Edge(link); exists {
				continue
			}
			alpha := 1 + rng.Float64()*9
			beta := 1 + rng.Float64()*99
			_ = top.Connect(tacos.NodeId(i), tacos.NodeId(j), alpha, beta)
		}
	}
	return top
}

var collectiveKinds = []string{"allgather", "alltoall", "scatter", "gather", "broadcast"}

// RandomCollective picks a uniformly random collective pattern (with a random
// root where applicable) over top.
func RandomCollective(rng *rand.Rand, top *tacos.Topology, chunkSize tacos.ChunkSize) (string, *tacos.Collective) {
	kind := collectiveKinds[rng.Intn(len(collectiveKinds))]
	root := tacos.NodeId(rng.Intn(top.NumNodes()))
	collectivesCount := 1 + rng.Intn(2)

	switch kind {
	case "allgather":
		return kind, tacos.NewAllGather(top.NumNodes(), chunkSize, collectivesCount)
	case "alltoall":
		return kind, tacos.NewAllToAll(top.NumNodes(), chunkSize, collectivesCount)
	case "scatter":
		return kind, tacos.NewScatter(root, top.NumNodes(), chunkSize, collectivesCount)
	case "gather":
		return kind, tacos.NewGather(root, top.NumNodes(), chunkSize, collectivesCount)
	default:
		return kind, tacos.NewBroadcast(root, top.NumNodes(), chunkSize, collectivesCount)
	}
}

// Run generates one random topology/collective pair from seed, synthesizes a
// schedule for it with GreedyTACOS (deterministic and always terminates
// whenever a productive ordering exists), and independently verifies the
// result. A random topology built by RandomTopology is always weakly
// connected via its Hamiltonian cycle, so a tacos.ErrDeadlock here signals a
// synthesizer or verifier defect rather than an unreachable instance, and is
// reported as a failure rather than tolerated.
func Run(seed int64, cfg FuzzConfig) (Result, error) {
	rng := rand.New(rand.NewSource(seed))
	top := RandomTopology(rng, cfg)
	kind, coll := RandomCollective(rng, top, tacos.UnitChunkSize)

	s := synth.NewGreedyTACOS(top, coll, tacos.UnitChunkSize)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Solve(ctx); err != nil {
		if errors.Is(err, tacos.ErrDeadlock) {
			return Result{Seed: seed, NumNodes: top.NumNodes(), Collective: kind, Deadlocked: true},
				fmt.Errorf("seed %d: unexpected deadlock over a weakly connected topology: %w", seed, err)
		}
		return Result{}, fmt.Errorf("seed %d: solve: %w", seed, err)
	}

	var buf bytes.Buffer
	if err := schedule.Write(&buf, top, coll, s.EventHistory(), s.CurrentTime(), 0); err != nil {
		return Result{}, fmt.Errorf("seed %d: write: %w", seed, err)
	}
	if err := schedule.Verify(&buf, top, coll, 1e-6); err != nil {
		return Result{}, fmt.Errorf("seed %d: verify: %w", seed, err)
	}

	return Result{Seed: seed, NumNodes: top.NumNodes(), Collective: kind}, nil
}
