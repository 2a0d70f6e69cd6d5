package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghabrous/fgc-pm/internal/adapter"
	"github.com/ghabrous/fgc-pm/internal/pmconfig"
	"github.com/ghabrous/fgc-pm/internal/pmlog"
	"github.com/ghabrous/fgc-pm/internal/pool"
	"github.com/ghabrous/fgc-pm/internal/recon"
	"github.com/ghabrous/fgc-pm/internal/server"
	"github.com/ghabrous/fgc-pm/internal/session"
)

var (
	serveConfigFlag     string
	serveDirectoryFlag  string
	serveStatusURLFlag  string
	serveWorkersFlag    int
)

func addServeCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the program manager daemon in the foreground",
		Long: `Run the program manager daemon: poll the fleet status feed, reconcile
every device whose firmware the expected inventory disagrees with, and
expose the local control socket for "pm pool" and "pm watch".

Runs until SIGINT/SIGTERM; shutdown drains every area pool before exiting.`,
		RunE: runServe,
	}

	flags := cmd.Flags()
	flags.StringVarP(&serveConfigFlag, "config-file", "c", "/etc/fgc-pm/pm_config.cfg", "Program manager .ini configuration file")
	flags.StringVar(&serveDirectoryFlag, "directory-file", "", "Device/gateway directory JSON file (default: BASIC.name_file_location)")
	flags.StringVar(&serveStatusURLFlag, "status-url", "", "Status feed HTTP endpoint")
	flags.IntVar(&serveWorkersFlag, "workers-per-area", pool.MaxNumWorkers, "Worker goroutines per area pool")
	cmd.MarkFlagRequired("status-url")

	parent.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := pmconfig.LoadDaemonConfig(serveConfigFlag)
	if err != nil {
		return err
	}

	log := pmlog.New(pmlog.Options{FilePath: cfg.Basic.LogFileName, Verbose: verboseFlag}).WithField("component", "pm_main")

	var a adapter.Adapter
	switch cfg.Basic.ExpectedDataLocation {
	case pmconfig.AdapterFS:
		a = adapter.NewFilesystemAdapter(cfg.FS.DBSubfolder)
	case pmconfig.AdapterDB:
		dbAdapter, err := adapter.OpenDatabaseAdapter(cfg.DB.ConnectionString)
		if err != nil {
			return err
		}
		defer dbAdapter.Close()
		a = dbAdapter
	default:
		return fmt.Errorf("unknown expected_data_location %q", cfg.Basic.ExpectedDataLocation)
	}

	dirPath := serveDirectoryFlag
	if dirPath == "" {
		dirPath = cfg.Basic.NameFileLocation
	}
	dirs := server.FileDirectory{Path: dirPath}
	feed := server.NewHTTPStatusFeed(serveStatusURLFlag, 10*time.Second)

	dial := func(ctx context.Context, converter string) (session.Session, error) {
		return session.DialTCP(ctx, converter)
	}
	locate := recon.LocateInRepo(cfg.Basic.FSFWRepoLocation)

	srv := server.New(feed, dirs, a, dial, locate, log)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := srv.Start(ctx, serveWorkersFlag); err != nil {
		return err
	}
	log.Info("program manager server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.WithField("signal", sig.String()).Info("signal received; shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer stopCancel()
	srv.Stop(stopCtx)
	return nil
}
