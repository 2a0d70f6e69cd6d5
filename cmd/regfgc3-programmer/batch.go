package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghabrous/fgc-pm/internal/commission"
	"github.com/ghabrous/fgc-pm/internal/pmlog"
	"github.com/ghabrous/fgc-pm/internal/session"
)

var batchTaskFileFlag string

// addBatchCommand wires the rack-scale commissioning pass, the Go shape of
// rpm_commissioning.py run as a standalone entry point rather than
// interactively on one device at a time.
func addBatchCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Commission every board/device listed in a task file",
		Long: `Read a comma-separated task file (converter,slot,board,device,variant,
var_revision,api_revision,bin_crc,fw_file_loc per line) and run three
programming repetitions, switching each slot to ProductionBoot once its
tasks are done. Prints a per-device summary on completion.`,
		Args: cobra.NoArgs,
		RunE: runBatch,
	}
	cmd.Flags().StringVarP(&batchTaskFileFlag, "task-file", "t", "", "Programming data CSV file")
	cmd.MarkFlagRequired("task-file")
	parent.AddCommand(cmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	tasks, err := commission.ReadTasks(batchTaskFileFlag)
	if err != nil {
		return err
	}

	log := pmlog.New(pmlog.Options{FilePath: logFileFlag, Verbose: verboseFlag}).WithField("component", "rpm_commissioning")

	runner := &commission.Runner{
		Dial: func(ctx context.Context, converter string) (session.Session, error) {
			return session.DialTCP(ctx, converter)
		},
		Log: log,
	}

	iterations, summaries, err := runner.Run(cmd.Context(), tasks)
	commission.WriteSummary(log, iterations, summaries)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "commissioning run complete: %d iterations over %d tasks\n", iterations, len(tasks))
	return nil
}
