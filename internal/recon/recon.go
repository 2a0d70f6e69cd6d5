// Package recon implements the reconciliation job a pool worker runs for
// one converter: fetch expected and detected inventories, diff them, and
// reprogram every differing device that is actually in DownloadBoot.
//
// Grounded on original_source/program_manager/area_worker.py:fgc_work and
// spec.md §4.7.
package recon

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ghabrous/fgc-pm/internal/adapter"
	"github.com/ghabrous/fgc-pm/internal/firmware"
	"github.com/ghabrous/fgc-pm/internal/fsm"
	"github.com/ghabrous/fgc-pm/internal/model"
	"github.com/ghabrous/fgc-pm/internal/pmerrors"
	"github.com/ghabrous/fgc-pm/internal/session"
	"github.com/ghabrous/fgc-pm/internal/slotinfo"
)

// SessionDialer opens a Session to converter. Kept separate from
// session.Session so the job, not the pool, owns connection lifecycle —
// matching fgc_work's own pyfgc.connect(job_name) call.
type SessionDialer func(ctx context.Context, converter string) (session.Session, error)

// FirmwareLocator resolves the firmware file path for one differing
// device, the Go counterpart of the naming-convention lookup §4.3
// describes (the original leaves this step implicit; the CLI tool
// receives the path as an argument, while the daemon must derive it from
// the expected inventory and a firmware repository root).
type FirmwareLocator func(dev model.DifferingDevice, expected model.ExpectedInventory) (string, error)

// Job runs one converter's reconciliation cycle.
type Job struct {
	Adapter  adapter.Adapter
	Dial     SessionDialer
	Locate   FirmwareLocator
	Log      *logrus.Entry
}

// Run executes the reconciliation cycle for converter, matching fgc_work's
// control flow: a NotFound expected inventory is logged and treated as
// "nothing to do" rather than propagated, an unchanged (nil) inventory
// likewise short-circuits, and any other error aborts the whole cycle.
func (j *Job) Run(ctx context.Context, converter string) error {
	log := j.Log.WithField("converter", converter)

	expected, err := j.Adapter.GetExpected(ctx, converter)
	if err != nil {
		if pmerrors.IsNotFound(err) {
			log.WithError(err).Warn("no expected inventory; skipping")
			return nil
		}
		return err
	}
	if expected == nil {
		log.Debug("expected inventory unchanged; nothing to do")
		return nil
	}

	sess, err := j.Dial(ctx, converter)
	if err != nil {
		return pmerrors.RpcFailure(err, "connecting to %s", converter)
	}
	defer sess.Disconnect()

	slotInfo, err := sess.Get(ctx, "REGFGC3.SLOT_INFO")
	if err != nil {
		return pmerrors.RpcFailure(err, "fetching SLOT_INFO from %s", converter)
	}
	detected, err := slotinfo.Parse(slotInfo)
	if err != nil {
		return err
	}

	diffs := model.Diff(detected, expected)
	if len(diffs) == 0 {
		log.Info("expected matches detected; nothing to do")
		return nil
	}

	// Every differing device on converter shares the one dialed session
	// above, and session.Session assumes strict one-write/one-read-reply
	// framing with no internal locking, so devices are walked one at a
	// time rather than fanned out — the "at most one ProgramFSM per
	// converter" invariant is per-converter, not per-device.
	for _, diff := range diffs {
		if err := j.reprogram(ctx, log, converter, sess, diff, expected); err != nil {
			return err
		}
	}
	return nil
}

func (j *Job) reprogram(ctx context.Context, log *logrus.Entry, converter string, sess session.Session, diff model.DifferingDevice, expected model.ExpectedInventory) error {
	dlog := log.WithField("slot", diff.Slot).WithField("device", diff.Device)

	if !diff.Board.IsInDownloadBoot() {
		dlog.Warn("board not in DownloadBoot; requesting operator intervention")
		return nil
	}

	fwPath, err := j.Locate(diff, expected)
	if err != nil {
		return err
	}

	expDev := expected[diff.Slot].Devices[diff.Device]
	if _, err := firmware.CheckConsistency(fwPath, expDev.Name, expDev.Variant, expDev.VariantRevision); err != nil {
		return err
	}
	fwFields, err := firmware.ParseName(fwPath)
	if err != nil {
		return err
	}

	req := model.ProgramRequest{
		Converter:       converter,
		Slot:            diff.Slot,
		Board:           diff.Board.Type,
		Device:          diff.Device,
		Variant:         expDev.Variant,
		VariantRevision: expDev.VariantRevision,
		APIRevision:     expDev.APIRevision,
		BinCRC:          fwFields.CRC,
		FWFilePath:      fwPath,
	}

	return RetryProgram(ctx, req, sess, dlog)
}
