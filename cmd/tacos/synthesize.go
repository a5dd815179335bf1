package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jsonW0/bean-tacos"
	"github.com/jsonW0/bean-tacos/cmd/tacos/ui"
	"github.com/jsonW0/bean-tacos/internal/builtins"
	"github.com/jsonW0/bean-tacos/internal/config"
	"github.com/jsonW0/bean-tacos/internal/ilp"
	"github.com/jsonW0/bean-tacos/internal/progress"
	"github.com/jsonW0/bean-tacos/internal/schedule"
	"github.com/jsonW0/bean-tacos/internal/synth"
)

type synthesizeFlags struct {
	topology         string
	collective       string
	synthesizer      string
	chunkSize        float64
	collectivesCount int
	timeLimit        float64
	numBeams         int
	numTrials        int
	fitnessType      string
	temperature      float64
	seed             int64
	out              string
	preset           string
}

func newSynthesizeCmd() *cobra.Command {
	var f synthesizeFlags
	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Synthesize a schedule for a collective over a topology",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynthesize(cmd.Context(), f)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.topology, "topology", "", "topology specifier, e.g. fc_n=4_alpha=10_beta=100")
	flags.StringVar(&f.collective, "collective", "", "all_gather|all_to_all|scatter_<i>|gather_<i>|broadcast_<i>")
	flags.StringVar(&f.synthesizer, "synthesizer", "greedy_tacos", "naive|tacos|greedy_tacos|multiple_tacos|beam|ilp")
	flags.Float64Var(&f.chunkSize, "chunk_size", float64(tacos.UnitChunkSize), "chunk size in GB")
	flags.IntVar(&f.collectivesCount, "collectives_count", 1, "number of independent collective rounds to stack")
	flags.Float64Var(&f.timeLimit, "time_limit", 0, "wall-clock time limit in seconds (0 = unlimited, ilp only)")
	flags.IntVar(&f.numBeams, "num_beams", 4, "beam width for the beam synthesizer")
	flags.IntVar(&f.numTrials, "num_trials", 4, "instance count for multiple_tacos")
	flags.StringVar(&f.fitnessType, "fitness_type", string(synth.FitnessChunkCount), "chunk_count|shortest_path (beam only)")
	flags.Float64Var(&f.temperature, "temperature", 0, "beam softmax temperature (0 = always keep the best)")
	flags.Int64Var(&f.seed, "seed", 0, "RNG seed for reproducible runs")
	flags.StringVar(&f.out, "out", "schedule.csv", "output CSV path")
	flags.StringVar(&f.preset, "config", "", "named preset from the config file to use as defaults")
	return cmd
}

func runSynthesize(ctx context.Context, f synthesizeFlags) error {
	if f.preset != "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		preset, ok := cfg.Presets[f.preset]
		if !ok {
			return fmt.Errorf("preset %q not found", f.preset)
		}
		if f.topology == "" {
			f.topology = preset.Topology
		}
		if f.synthesizer == "greedy_tacos" && preset.Synthesizer != "" {
			f.synthesizer = preset.Synthesizer
		}
		if f.chunkSize == float64(tacos.UnitChunkSize) {
			f.chunkSize = float64(preset.EffectiveChunkSize())
		}
		if f.collectivesCount == 1 {
			f.collectivesCount = preset.EffectiveCollectivesCount()
		}
		if f.numBeams == 4 && preset.NumBeams > 0 {
			f.numBeams = preset.NumBeams
		}
		if f.numTrials == 4 && preset.NumTrials > 0 {
			f.numTrials = preset.NumTrials
		}
		if f.fitnessType == string(synth.FitnessChunkCount) && preset.FitnessType != "" {
			f.fitnessType = preset.FitnessType
		}
		if f.temperature == 0 && preset.Temperature != 0 {
			f.temperature = preset.Temperature
		}
		if f.seed == 0 && preset.Seed != 0 {
			f.seed = preset.Seed
		}
		if f.timeLimit == 0 && preset.TimeLimitSeconds != 0 {
			f.timeLimit = preset.TimeLimitSeconds
		}
	}

	top, err := builtins.Get(f.topology)
	if err != nil {
		return err
	}
	chunkSize := tacos.ChunkSize(f.chunkSize)
	coll, err := buildCollective(f.collective, top.NumNodes(), chunkSize, f.collectivesCount)
	if err != nil {
		return err
	}

	checklist := ui.NewChecklist()
	tracker := progress.New(checklist.OnProgress,
		progress.StepConfig{ID: "solve", Title: "solving"},
		progress.StepConfig{ID: "write", Title: "writing schedule"},
	)
	defer checklist.Close()

	if f.timeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(f.timeLimit*float64(time.Second)))
		defer cancel()
	}

	runID := uuid.NewString()
	slog.Info("synthesize: starting run", "run_id", runID, "topology", f.topology, "collective", f.collective, "synthesizer", f.synthesizer)

	start := time.Now()
	var events []tacos.Event
	var makespan tacos.Time

	err = tracker.Do("solve", func() error {
		s, err := newSynthesizer(top, coll, chunkSize, f)
		if err != nil {
			return err
		}
		if err := s.Solve(ctx); err != nil {
			return err
		}
		events = s.EventHistory()
		makespan = s.CurrentTime()
		return nil
	})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	return tracker.Do("write", func() error {
		if err := schedule.WriteFile(f.out, top, coll, events, makespan, elapsed); err != nil {
			return err
		}
		if err := schedule.VerifyFile(f.out, top, coll, 1e-6); err != nil {
			os.Remove(f.out)
			return err
		}
		slog.Info("synthesize: wrote schedule", "run_id", runID, "path", f.out, "makespan", makespan, "synthesis_time", elapsed)
		return nil
	})
}

// buildCollective parses the runner's collective naming convention:
// all_gather, all_to_all, and the rooted scatter_<i>/gather_<i>/broadcast_<i>
// forms, where <i> is the root node index.
func buildCollective(name string, numNodes int, chunkSize tacos.ChunkSize, collectivesCount int) (*tacos.Collective, error) {
	switch {
	case name == "all_gather":
		return tacos.NewAllGather(numNodes, chunkSize, collectivesCount), nil
	case name == "all_to_all":
		return tacos.NewAllToAll(numNodes, chunkSize, collectivesCount), nil
	case strings.HasPrefix(name, "scatter_"):
		root, err := parseRoot(name, "scatter_")
		if err != nil {
			return nil, err
		}
		return tacos.NewScatter(root, numNodes, chunkSize, collectivesCount), nil
	case strings.HasPrefix(name, "gather_"):
		root, err := parseRoot(name, "gather_")
		if err != nil {
			return nil, err
		}
		return tacos.NewGather(root, numNodes, chunkSize, collectivesCount), nil
	case strings.HasPrefix(name, "broadcast_"):
		root, err := parseRoot(name, "broadcast_")
		if err != nil {
			return nil, err
		}
		return tacos.NewBroadcast(root, numNodes, chunkSize, collectivesCount), nil
	default:
		return nil, fmt.Errorf("unrecognized collective %q", name)
	}
}

func parseRoot(name, prefix string) (tacos.NodeId, error) {
	suffix := strings.TrimPrefix(name, prefix)
	root, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, fmt.Errorf("collective %q must end in an integer root node, got %q", name, suffix)
	}
	return tacos.NodeId(root), nil
}

// ilpSynthesizer adapts ilp.Solver to the synth.Synthesizer interface so the
// CLI can treat it uniformly with the randomized synthesizers.
type ilpSynthesizer struct {
	solver *ilp.Solver
	result ilp.Result
}

func (i *ilpSynthesizer) Solve(ctx context.Context) error {
	result, err := i.solver.Solve(ctx)
	if err != nil {
		return err
	}
	i.result = result
	if !result.Optimal {
		slog.Warn("synthesize: ilp search hit its time limit before proving optimality")
	}
	return nil
}

func (i *ilpSynthesizer) CurrentTime() tacos.Time     { return i.result.Makespan }
func (i *ilpSynthesizer) EventHistory() []tacos.Event { return i.result.Events }

func newSynthesizer(top *tacos.Topology, coll *tacos.Collective, chunkSize tacos.ChunkSize, f synthesizeFlags) (synth.Synthesizer, error) {
	seed := f.seed
	if seed == 0 {
		seed = rand.Int63()
	}
	switch f.synthesizer {
	case "naive":
		return synth.NewNaive(top, coll, chunkSize), nil
	case "tacos":
		return synth.NewTACOS(top, coll, chunkSize, seed), nil
	case "greedy_tacos":
		return synth.NewGreedyTACOS(top, coll, chunkSize), nil
	case "multiple_tacos":
		return synth.NewMultipleTACOS(top, coll, chunkSize, f.numTrials, seed), nil
	case "beam":
		return synth.NewBeam(top, coll, chunkSize, f.numBeams, synth.FitnessFunc(f.fitnessType), f.temperature, seed), nil
	case "ilp":
		return &ilpSynthesizer{solver: ilp.New(top, coll, chunkSize)}, nil
	default:
		return nil, fmt.Errorf("unrecognized synthesizer %q", f.synthesizer)
	}
}
