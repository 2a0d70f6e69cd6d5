// Package singleprog implements the single-device, operator-driven
// reprogram flow: detect what is actually on the board, validate the
// operator's request against it, and run one ProgramFSM walk.
//
// Grounded on original_source/program_manager/regfgc3_programmer.py
// (_get_fgc_detected, _run_security_checks, program) generalized from a
// CLI-script main() into a package the cmd/regfgc3-programmer binary and
// its tests can both call.
package singleprog

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ghabrous/fgc-pm/internal/firmware"
	"github.com/ghabrous/fgc-pm/internal/fsm"
	"github.com/ghabrous/fgc-pm/internal/model"
	"github.com/ghabrous/fgc-pm/internal/pmerrors"
	"github.com/ghabrous/fgc-pm/internal/session"
	"github.com/ghabrous/fgc-pm/internal/slotinfo"
)

// ValidDevices mirrors DEVICES_LIST: the only device names the single-device
// tool will ever agree to reprogram.
var ValidDevices = []string{"DB", "MF", "DEVICE_2", "DEVICE_3", "DEVICE_4", "DEVICE_5"}

func isValidDevice(name string) bool {
	for _, d := range ValidDevices {
		if d == name {
			return true
		}
	}
	return false
}

// Request is the operator's command-line input, the Go shape of regfgc3_
// programmer's positional arguments.
type Request struct {
	Converter       string
	Slot            string
	Board           string
	Device          string
	Variant         string
	VariantRevision string
	APIRevision     string
	FWFileLoc       string
	Loose           bool
}

// Detected is what Detect reads back off the board: the board's current
// boot-mode state and the named device's currently-reported firmware
// identity, the Go shape of _get_fgc_detected's return tuple.
type Detected struct {
	Board   model.Board
	Device  model.Device
}

// Detect reads REGFGC3.SLOT_INFO, finds req.Slot, and requires it to be a
// board sitting in DownloadBoot with the requested device present.
func Detect(ctx context.Context, sess session.Session, req Request) (Detected, error) {
	reply, err := sess.Get(ctx, "REGFGC3.SLOT_INFO")
	if err != nil {
		return Detected{}, pmerrors.RpcFailure(err, "reading SLOT_INFO")
	}
	inventory, err := slotinfo.Parse(reply)
	if err != nil {
		return Detected{}, err
	}

	board, ok := inventory[req.Slot]
	if !ok {
		return Detected{}, pmerrors.NotFound("board not found in slot %s", req.Slot)
	}
	if !board.IsInDownloadBoot() {
		return Detected{}, pmerrors.NotFound("board %s in slot %s is not running in DownloadBoot", board.Type, req.Slot)
	}
	dev, ok := board.Devices[req.Device]
	if !ok {
		return Detected{}, pmerrors.NotFound("device %s not found in slot %s, board %s", req.Device, req.Slot, board.Type)
	}

	return Detected{Board: board, Device: dev}, nil
}

// Validate runs the security checks _run_security_checks performs before a
// reprogram is allowed to start: device name sanity, board/device identity
// agreement, variant agreement (tolerated under Loose), firmware filename
// naming consistency, and a "nothing to do" short-circuit when not Loose
// and the requested revision already matches what's detected.
//
// ok=false with a nil error means "nothing to do" (exit 0 territory, not an
// error); a non-nil error means the request is invalid (exit 2 territory).
func Validate(req Request, detected Detected) (ok bool, err error) {
	if !isValidDevice(req.Device) {
		return false, fmt.Errorf("device %s is not a valid device; possible values are %v", req.Device, ValidDevices)
	}
	if req.Board != detected.Board.Type {
		return false, fmt.Errorf("command line board %s is different than fgc board %s; board programming not allowed", req.Board, detected.Board.Type)
	}
	if req.Device != detected.Device.Name {
		return false, fmt.Errorf("command line device %s is different than fgc device %s; board programming not allowed", req.Device, detected.Device.Name)
	}
	if req.Variant != detected.Device.Variant {
		if !req.Loose {
			return false, fmt.Errorf("command line variant %s is different than fgc variant %s; board programming not allowed", req.Variant, detected.Device.Variant)
		}
	}

	if _, err := firmware.CheckConsistency(req.FWFileLoc, req.Device, req.Variant, req.VariantRevision); err != nil {
		return false, err
	}

	if !req.Loose && req.VariantRevision == detected.Device.VariantRevision {
		return false, nil
	}
	return true, nil
}

// Program runs up to three ProgramFSM attempts, resetting between
// failures, the Go shape of regfgc3_programmer.program.
func Program(ctx context.Context, sess session.Session, log *logrus.Entry, req Request, binCRC string) (attempt int, err error) {
	const maxAttempts = 3
	preq := model.ProgramRequest{
		Converter: req.Converter, Slot: req.Slot, Board: req.Board, Device: req.Device,
		Variant: req.Variant, VariantRevision: req.VariantRevision, APIRevision: req.APIRevision,
		BinCRC: binCRC, FWFilePath: req.FWFileLoc,
	}

	var lastErr error
	for n := 0; n < maxAttempts; n++ {
		f := fsm.New(preq, sess, log)
		if err := f.Process(ctx); err != nil {
			log.WithError(err).Errorf("error in %s while reprogramming %s in board %s (attempt %d)", req.Converter, req.Device, req.Board, n+1)
			lastErr = err
			f.Reset()
			continue
		}
		log.Infof("%s: device %s on board %s successfully reprogrammed", req.Converter, req.Device, req.Board)
		return n, nil
	}

	log.Errorf("%s: reached maximum programming attempts. Device %s on %s was NOT successfully reprogrammed", req.Converter, req.Device, req.Board)
	return maxAttempts, pmerrors.NewReprogramFailed(req.Converter, req.Device, req.Board, lastErr)
}
