package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ghabrous/fgc-pm/internal/tui"
)

func addWatchCommand(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard of area pool load on a running daemon",
		Long: `Poll a running "pm serve" daemon's control socket every two seconds and
render queue depth, in-flight count, and pause/drain state per area.`,
		RunE: runWatch,
	}
	root.AddCommand(cmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	p := tea.NewProgram(tui.NewDashboard(socketPathFlag), tea.WithContext(cmd.Context()))
	_, err := p.Run()
	return err
}
