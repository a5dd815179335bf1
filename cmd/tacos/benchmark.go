package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsonW0/bean-tacos"
	"github.com/jsonW0/bean-tacos/cmd/tacos/ui"
	"github.com/jsonW0/bean-tacos/internal/builtins"
	"github.com/jsonW0/bean-tacos/internal/progress"
	"github.com/jsonW0/bean-tacos/internal/synth"
)

// benchmarkCase is one (topology, collective, synthesizer) combination swept
// by the benchmark command.
type benchmarkCase struct {
	topology    string
	collective  string
	synthesizer string
}

// defaultBenchmarkMatrix is a small, fixed sweep over a few representative
// topology shapes, collectives and synthesizers (gather and the plain tacos
// synthesizer are not included), enough to sanity-check relative synthesizer
// quality without a config file.
var defaultBenchmarkMatrix = []benchmarkCase{
	{"fc_n=4_alpha=10_beta=100", "all_gather", "naive"},
	{"fc_n=4_alpha=10_beta=100", "all_gather", "greedy_tacos"},
	{"fc_n=4_alpha=10_beta=100", "all_gather", "multiple_tacos"},
	{"fc_n=4_alpha=10_beta=100", "all_gather", "beam"},
	{"ring_n=8_alpha=10_beta=100", "all_to_all", "greedy_tacos"},
	{"ring_n=8_alpha=10_beta=100", "all_to_all", "beam"},
	{"grid_w=3_h=3_alpha=10_beta=100", "broadcast_0", "greedy_tacos"},
	{"tree_n=15_branching=2_alpha=10_beta=100", "scatter_0", "greedy_tacos"},
}

func newBenchmarkCmd() *cobra.Command {
	var numBeams, numTrials int
	var seed int64
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Run a fixed matrix of topology/collective/synthesizer combinations and report makespans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchmark(defaultBenchmarkMatrix, numBeams, numTrials, seed)
		},
	}
	cmd.Flags().IntVar(&numBeams, "num_beams", 4, "beam width for beam cases")
	cmd.Flags().IntVar(&numTrials, "num_trials", 4, "instance count for multiple_tacos cases")
	cmd.Flags().Int64Var(&seed, "seed", 1, "RNG seed applied to every seeded case")
	return cmd
}

func runBenchmark(matrix []benchmarkCase, numBeams, numTrials int, seed int64) error {
	checklist := ui.NewChecklist()
	defer checklist.Close()

	steps := make([]progress.StepConfig, len(matrix))
	for i, c := range matrix {
		steps[i] = progress.StepConfig{
			ID:    fmt.Sprintf("case-%d", i),
			Title: fmt.Sprintf("%s / %s / %s", c.topology, c.collective, c.synthesizer),
		}
	}
	tracker := progress.New(checklist.OnProgress, steps...)

	rows := make([][]string, 0, len(matrix))
	for i, c := range matrix {
		var makespan tacos.Time
		var elapsed time.Duration
		id := fmt.Sprintf("case-%d", i)
		err := tracker.Do(id, func() error {
			top, err := builtins.Get(c.topology)
			if err != nil {
				return err
			}
			coll, err := buildCollective(c.collective, top.NumNodes(), tacos.UnitChunkSize, 1)
			if err != nil {
				return err
			}
			s, err := newSynthesizer(top, coll, tacos.UnitChunkSize, synthesizeFlags{
				synthesizer: c.synthesizer,
				numBeams:    numBeams,
				numTrials:   numTrials,
				fitnessType: string(synth.FitnessChunkCount),
				temperature: 0,
				seed:        seed,
			})
			if err != nil {
				return err
			}
			start := time.Now()
			if err := s.Solve(cmdContext()); err != nil {
				return err
			}
			elapsed = time.Since(start)
			makespan = s.CurrentTime()
			return nil
		})

		status := ui.Success("ok")
		detail := fmt.Sprintf("%v", makespan)
		if err != nil {
			status = ui.ErrorStyle.Render(err.Error())
			detail = "-"
		}
		rows = append(rows, []string{c.topology, c.collective, c.synthesizer, detail, elapsed.String(), status})
	}

	fmt.Println(ui.Table([]string{"Topology", "Collective", "Synthesizer", "Makespan", "Synthesis Time", "Status"}, rows))
	return nil
}

// cmdContext returns a background context; benchmark cases do not currently
// accept a deadline of their own since ilp is excluded from the default
// matrix (it is the one synthesizer whose search time is unbounded).
func cmdContext() context.Context { return context.Background() }
