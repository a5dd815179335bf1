package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jsonW0/bean-tacos"
	"github.com/jsonW0/bean-tacos/cmd/tacos/ui"
	"github.com/jsonW0/bean-tacos/internal/builtins"
	"github.com/jsonW0/bean-tacos/internal/schedule"
)

type verifyFlags struct {
	topology         string
	collective       string
	chunkSize        float64
	collectivesCount int
	relTol           float64
}

func newVerifyCmd() *cobra.Command {
	var f verifyFlags
	cmd := &cobra.Command{
		Use:   "verify SCHEDULE_CSV",
		Short: "Independently re-check a synthesized schedule against its topology and collective",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args[0], f)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.topology, "topology", "", "topology specifier the schedule was synthesized for")
	flags.StringVar(&f.collective, "collective", "", "all_gather|all_to_all|scatter_<i>|gather_<i>|broadcast_<i>")
	flags.Float64Var(&f.chunkSize, "chunk_size", float64(tacos.UnitChunkSize), "chunk size in GB, must match the one used for synthesis")
	flags.IntVar(&f.collectivesCount, "collectives_count", 1, "number of collective rounds, must match the one used for synthesis")
	flags.Float64Var(&f.relTol, "rel-tol", 1e-6, "relative tolerance used for floating-point comparisons")
	return cmd
}

func runVerify(path string, f verifyFlags) error {
	top, err := builtins.Get(f.topology)
	if err != nil {
		return err
	}
	chunkSize := tacos.ChunkSize(f.chunkSize)
	coll, err := buildCollective(f.collective, top.NumNodes(), chunkSize, f.collectivesCount)
	if err != nil {
		return err
	}

	if err := schedule.VerifyFile(path, top, coll, f.relTol); err != nil {
		fmt.Println(ui.ErrorMsg("schedule failed verification: %v", err))
		return err
	}
	fmt.Println(ui.SuccessMsg("schedule %s satisfies %s over %s", path, f.collective, f.topology))
	return nil
}
