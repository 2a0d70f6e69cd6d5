package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ghabrous/fgc-pm/internal/ctlsock"
	"github.com/ghabrous/fgc-pm/internal/pmconfig"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	verboseFlag    bool
	configDirFlag  string
	socketPathFlag string
)

// NewRootCmd assembles the pm CLI: the daemon entry point plus the
// control-plane client commands. Grounded on the teacher's
// NewRootCmd/addXCommands composition.
func NewRootCmd() *cobra.Command {
	root := newRootCmd()
	addServeCommand(root)
	addPoolCommands(root)
	addWatchCommand(root)
	return root
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pm",
		Short:         "Program manager daemon for the FGC converter fleet",
		Long:          "pm runs the program manager daemon (pm serve) and talks to a running daemon over its local control socket (pm pool ..., pm watch).",
		Version:       fmt.Sprintf("pm v%s", Version),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			pmconfig.SetPrefsDir(configDirFlag)
			prefs, err := pmconfig.LoadPrefs()
			if err != nil {
				return err
			}
			if socketPathFlag == "" {
				socketPathFlag = prefs.SocketPath
			}
			if prefs.Verbose {
				verboseFlag = true
			}
			if socketPathFlag == "" {
				socketPathFlag = ctlsock.SocketPath()
			}
			return nil
		},
	}

	pflags := root.PersistentFlags()
	pflags.BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
	pflags.StringVar(&configDirFlag, "config-dir", "", "Override the preferences directory (default: ~/.config/fgc-pm)")
	pflags.StringVar(&socketPathFlag, "socket", "", "Control socket path (default: per-user /tmp socket)")

	if v := os.Getenv("PM_SOCKET"); v != "" && socketPathFlag == "" {
		socketPathFlag = v
	}
	if os.Getenv("PM_VERBOSE") == "1" {
		verboseFlag = true
	}

	return root
}

// Execute runs the pm CLI.
func Execute() error {
	return NewRootCmd().Execute()
}
