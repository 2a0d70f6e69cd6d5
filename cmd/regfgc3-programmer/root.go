package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ghabrous/fgc-pm/internal/firmware"
	"github.com/ghabrous/fgc-pm/internal/pmlog"
	"github.com/ghabrous/fgc-pm/internal/session"
	"github.com/ghabrous/fgc-pm/internal/singleprog"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	verboseFlag bool
	looseFlag   bool
	logFileFlag string
)

// NewRootCmd assembles the regfgc3-programmer CLI: the single-device
// reprogram flow as the root command's own positional-argument RunE, plus
// the "batch" subcommand wired to internal/commission. Grounded on
// regfgc3_programmer.py's docopt usage string, generalized into a cobra
// command since this repo's other binary already uses cobra and a second
// argument-parsing convention would be inconsistent.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "regfgc3-programmer <converter> <slot> <board> <device> <variant> <var_revision> <api_revision> <fw_file_loc>",
		Short: "Reprogram a single converter's board device with a firmware binary",
		Long: `Detect what's currently on the named board/device, validate it against
the requested firmware file, prompt for confirmation, and run the program
FSM to completion.

Exit codes: 0 success or nothing to do, 1 board, slot or device not
found or board not in DownloadBoot, 2 any other failure (validation,
transport, maximum programming attempts exhausted).`,
		Version:       fmt.Sprintf("regfgc3-programmer v%s", Version),
		Args:          cobra.ExactArgs(8),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runSingle,
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&verboseFlag, "verbosity", "v", false, "Increase output verbosity")
	flags.BoolVarP(&looseFlag, "loose", "l", false, "Upgrade firmware even if the board's variant differs from the requested one")
	flags.StringVar(&logFileFlag, "log-file", "program_manager.log", "Log file path")

	addBatchCommand(root)
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

func runSingle(cmd *cobra.Command, args []string) error {
	req := singleprog.Request{
		Converter:       args[0],
		Slot:            args[1],
		Board:           args[2],
		Device:          args[3],
		Variant:         args[4],
		VariantRevision: args[5],
		APIRevision:     args[6],
		FWFileLoc:       args[7],
		Loose:           looseFlag,
	}

	log := pmlog.New(pmlog.Options{FilePath: logFileFlag, Verbose: verboseFlag}).WithField("component", "regfgc3_programmer")

	ctx := cmd.Context()
	sess, err := session.DialTCP(ctx, req.Converter)
	if err != nil {
		return err
	}
	defer sess.Disconnect()

	log.Info("running security checks...")
	detected, err := singleprog.Detect(ctx, sess, req)
	if err != nil {
		return err
	}

	ok, err := singleprog.Validate(req, detected)
	if err != nil {
		return err
	}
	if !ok {
		log.Info("nothing to do: requested variant/revision already matches what's detected. Exiting...")
		return nil
	}
	log.Info("input arguments successfully validated")

	fields, err := firmware.ParseName(req.FWFileLoc)
	if err != nil {
		return err
	}

	printConfirmationBanner(detected, req)
	confirmed, err := confirm(cmd)
	if err != nil {
		return err
	}
	if !confirmed {
		log.Info("action cancelled by user. Exiting...")
		return nil
	}

	attempts, err := singleprog.Program(ctx, sess, log, req, fields.CRC)
	if err != nil {
		log.WithError(err).Errorf("maximum attempts to reprogram %s reached: board %s, device %s", req.Converter, req.Board, req.Device)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "reprogrammed on attempt %d\n", attempts+1)
	return nil
}

func printConfirmationBanner(detected singleprog.Detected, req singleprog.Request) {
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	yellow.Printf("DEVICE: %s from BOARD: %s (slot %s) in CONVERTER %s will be programmed.\n",
		detected.Device.Name, detected.Board.Type, req.Slot, req.Converter)
	red.Printf("%-13s: %-13s ---> %-13s: %s\n", "VARIANT(old)", detected.Device.Variant, "VARIANT(new)", req.Variant)
	red.Printf("%-13s: %-13s ---> %-13s: %s\n", "REVISION(old)", detected.Device.VariantRevision, "REVISION(new)", req.VariantRevision)
	red.Printf("%-13s: %s\n", "Binary file", req.FWFileLoc)
}

// confirm prompts for Y/n on stdin, the Go shape of main()'s input()
// confirmation gate.
func confirm(cmd *cobra.Command) (bool, error) {
	green := color.New(color.FgGreen, color.Bold)
	green.Print("PROCEED? [Y/n] ")

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.TrimSpace(line)

	switch {
	case answer == "Y":
		return true, nil
	case strings.EqualFold(answer, "n"):
		return false, nil
	default:
		return false, fmt.Errorf("unknown option %q", answer)
	}
}
