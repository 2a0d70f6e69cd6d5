package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghabrous/fgc-pm/internal/ctlsock"
)

var (
	poolAreaFlag string
	poolJSONFlag bool
)

func addPoolCommands(root *cobra.Command) {
	poolCmd := &cobra.Command{
		Use:   "pool",
		Short: "Inspect and control a running program manager daemon",
		Long: `Talk to a running "pm serve" daemon over its local control socket.

Subcommands:
  status   Show queue depth and worker state per area
  pause    Stop an area from accepting new reconciliation jobs
  resume   Undo pause
  drain    Stop accepting new jobs and wait for in-flight work to finish`,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show area pool status",
		RunE:  runPoolStatus,
	}
	statusCmd.Flags().BoolVar(&poolJSONFlag, "json", false, "Output as JSON")

	pauseCmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause an area (or all areas)",
		RunE:  func(cmd *cobra.Command, args []string) error { return runPoolControl(cmd, ctlsock.TypePause) },
	}
	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume an area (or all areas)",
		RunE:  func(cmd *cobra.Command, args []string) error { return runPoolControl(cmd, ctlsock.TypeResume) },
	}
	drainCmd := &cobra.Command{
		Use:   "drain",
		Short: "Drain an area (or all areas) and wait for in-flight jobs to finish",
		RunE:  func(cmd *cobra.Command, args []string) error { return runPoolControl(cmd, ctlsock.TypeDrain) },
	}

	for _, c := range []*cobra.Command{statusCmd, pauseCmd, resumeCmd, drainCmd} {
		c.Flags().StringVar(&poolAreaFlag, "area", "", "Target area (default: all areas)")
	}

	poolCmd.AddCommand(statusCmd, pauseCmd, resumeCmd, drainCmd)
	root.AddCommand(poolCmd)
}

func runPoolStatus(cmd *cobra.Command, args []string) error {
	resp, err := ctlsock.Call(socketPathFlag, ctlsock.Request{Type: ctlsock.TypeStatus, Area: poolAreaFlag})
	if err != nil {
		return err
	}
	if resp.Type == ctlsock.TypeError {
		return fmt.Errorf("program manager daemon: %s", resp.Error)
	}

	if poolJSONFlag {
		data, err := json.MarshalIndent(resp.Status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	for _, s := range resp.Status {
		state := "running"
		switch {
		case s.Draining:
			state = "draining"
		case s.Paused:
			state = "paused"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-9s queued=%-4d in_flight=%d\n", s.Area, state, s.Queued, s.InFlight)
	}
	return nil
}

func runPoolControl(cmd *cobra.Command, reqType string) error {
	resp, err := ctlsock.Call(socketPathFlag, ctlsock.Request{Type: reqType, Area: poolAreaFlag})
	if err != nil {
		return err
	}
	if resp.Type == ctlsock.TypeError {
		return fmt.Errorf("program manager daemon: %s", resp.Error)
	}
	target := poolAreaFlag
	if target == "" {
		target = "all areas"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", reqType, target)
	return nil
}
