package main

import (
	"github.com/spf13/cobra"

	"github.com/jsonW0/bean-tacos/internal/logging"
)

var logLevel string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tacos",
		Short: "Synthesize and verify collective communication schedules",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Configure(logLevel)
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", logging.LevelInfo, "log level: debug, info, warn, error")

	cmd.AddCommand(newSynthesizeCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newBenchmarkCmd())
	return cmd
}
