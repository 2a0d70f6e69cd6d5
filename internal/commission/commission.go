// Package commission implements batch (rack-scale) firmware commissioning:
// reading a CSV task list, cycling every board between DownloadBoot and
// ProductionBoot, reprogramming each device up to three times, and
// producing a per-(converter,board,device) summary.
//
// Grounded on original_source/utils/rpm_commissioning.py. The original
// keeps tasks, tasks_per_converter_and_slot and prog_summary as
// module-level mutable globals threaded through free functions; this
// package replaces them with an explicit Runner and Summaries value so a
// batch run has no shared mutable state outside its own call tree.
package commission

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"github.com/ghabrous/fgc-pm/internal/fsm"
	"github.com/ghabrous/fgc-pm/internal/model"
	"github.com/ghabrous/fgc-pm/internal/pmerrors"
	"github.com/ghabrous/fgc-pm/internal/session"
	"github.com/ghabrous/fgc-pm/internal/slotinfo"
)

// programmingRepetitions is PROGRAMMING_REPETITIONS: a batch run always
// walks its task list exactly three times, switching boards back to
// ProductionBoot as each slot's last task completes.
const programmingRepetitions = 3

// maxAttemptsSwitchBoot is MAX_ATTEMPTS_SWITCH.
const maxAttemptsSwitchBoot = 3

// maxProgramAttempts is program()'s own max_attempts loop bound.
const maxProgramAttempts = 3

// Task is one row of the programming-data CSV, the Go shape of ProgDataRow.
type Task struct {
	Converter  string
	Slot       string
	Board      string
	Device     string
	Variant    string
	VarRev     string
	APIRev     string
	BinCRC     string
	FWFileLoc  string
}

// ReadTasks parses path as comma-separated ProgDataRow lines, skipping
// lines starting with '#'. Mirrors read_programming_data's csv reader.
func ReadTasks(path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pmerrors.NotFound("programming data file %q: %v", path, err)
	}
	defer f.Close()

	var tasks []Task
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		line := scanner.Text()
		lineNo++
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 9 {
			return nil, pmerrors.NewParseError(line, lineNo, "expected 9 comma-separated fields")
		}
		tasks = append(tasks, Task{
			Converter: fields[0],
			Slot:      fields[1],
			Board:     fields[2],
			Device:    fields[3],
			Variant:   fields[4],
			VarRev:    fields[5],
			APIRev:    fields[6],
			BinCRC:    fields[7],
			FWFileLoc: fields[8],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Key identifies one summary bucket: a (converter, board, device) triple.
type Key struct {
	Converter string
	Board     string
	Device    string
}

// Summary counts a single device's outcomes across a batch run, the Go
// shape of ProgrammingSummary.
type Summary struct {
	ToPBFail   int
	ToDBFail   int
	ReprogFail int
	Reprog1st  int
	Reprog2nd  int
	Reprog3rd  int
}

// recordAttempts folds one task's programming outcome into s, mirroring
// _update_summary's attempts-to-bucket mapping (0 = succeeded on the
// first try, 3 = exhausted every attempt).
func (s *Summary) recordAttempts(attempts int) {
	switch attempts {
	case 0:
		s.Reprog1st++
	case 1:
		s.Reprog2nd++
	case 2:
		s.Reprog3rd++
	default:
		s.ReprogFail++
	}
}

// Summaries accumulates one Summary per (converter, board, device).
type Summaries map[Key]*Summary

func (s Summaries) bucket(k Key) *Summary {
	if b, ok := s[k]; ok {
		return b
	}
	b := &Summary{}
	s[k] = b
	return b
}

// Runner drives a batch commissioning pass over a task list.
type Runner struct {
	Dial  func(ctx context.Context, converter string) (session.Session, error)
	Clock clock.Clock
	Log   *logrus.Entry
}

// Run walks tasks through programmingRepetitions iterations, the Go shape
// of program_loop. It returns the iteration count actually completed (always
// programmingRepetitions, barring ctx cancellation) and the accumulated
// summaries.
func (r *Runner) Run(ctx context.Context, tasks []Task) (int, Summaries, error) {
	cl := r.Clock
	if cl == nil {
		cl = clock.WallClock
	}
	summaries := make(Summaries)
	doneForSlot := make(map[string]map[string]int)
	totalForSlot := make(map[string]map[string]int)
	for _, t := range tasks {
		if totalForSlot[t.Converter] == nil {
			totalForSlot[t.Converter] = make(map[string]int)
		}
		totalForSlot[t.Converter][t.Slot]++
	}

	iterations := 0
	for iter := 0; iter < programmingRepetitions; iter++ {
		r.Log.Infof("programming loop iteration %d", iter)

		for _, t := range tasks {
			select {
			case <-ctx.Done():
				return iterations, summaries, ctx.Err()
			default:
			}

			tlog := r.Log.WithField("converter", t.Converter).WithField("board", t.Board).WithField("device", t.Device)
			tlog.Infof("target: file %s", t.FWFileLoc)

			bucket := summaries.bucket(Key{Converter: t.Converter, Board: t.Board, Device: t.Device})

			sess, err := r.Dial(ctx, t.Converter)
			if err != nil {
				tlog.WithError(err).Error("connecting to converter")
				bucket.ToDBFail++
				continue
			}

			if err := switchBoardsBoot(ctx, sess, cl, tlog, t.Slot, model.StateDownloadBoot); err != nil {
				tlog.WithError(err).Error("switching to DownloadBoot")
				bucket.ToDBFail++
				_ = sess.Disconnect()
				continue
			}

			attempts := r.program(ctx, sess, tlog, t)
			bucket.recordAttempts(attempts)

			if doneForSlot[t.Converter] == nil {
				doneForSlot[t.Converter] = make(map[string]int)
			}
			doneForSlot[t.Converter][t.Slot]++
			if doneForSlot[t.Converter][t.Slot] == totalForSlot[t.Converter][t.Slot] {
				tlog.Infof("all tasks done for slot %s, board %s", t.Slot, t.Board)
				if err := switchBoardsBoot(ctx, sess, cl, tlog, t.Slot, model.StateProductionBoot); err != nil {
					tlog.WithError(err).Error("switching to ProductionBoot")
					bucket.ToPBFail++
				}
			}
			_ = sess.Disconnect()
		}
		iterations++
	}
	return iterations, summaries, nil
}

// program runs up to maxProgramAttempts FSM walks for t, returning the
// zero-based attempt index that finally succeeded, or maxProgramAttempts
// if every attempt failed — the Go shape of programmer.program's return
// value.
func (r *Runner) program(ctx context.Context, sess session.Session, log *logrus.Entry, t Task) int {
	req := model.ProgramRequest{
		Converter:       t.Converter,
		Slot:            t.Slot,
		Board:           t.Board,
		Device:          t.Device,
		Variant:         t.Variant,
		VariantRevision: t.VarRev,
		APIRevision:     t.APIRev,
		BinCRC:          t.BinCRC,
		FWFilePath:      t.FWFileLoc,
	}
	for attempt := 0; attempt < maxProgramAttempts; attempt++ {
		f := fsm.New(req, sess, log.WithField("attempt", attempt))
		if err := f.Process(ctx); err == nil {
			return attempt
		}
		f.Reset()
	}
	return maxProgramAttempts
}

// switchBoardsBoot drives slot's board to targetMode, matching
// _switch_boards_boot: a no-op if already there, otherwise up to
// maxAttemptsSwitchBoot rounds of SWITCH + a settle sleep + recheck.
func switchBoardsBoot(ctx context.Context, sess session.Session, cl clock.Clock, log *logrus.Entry, slot, targetMode string) error {
	already, err := isBoardInRequestedBootMode(ctx, sess, slot, targetMode)
	if err != nil {
		return err
	}
	if already {
		log.Infof("board in slot %s already in boot mode %s", slot, targetMode)
		return nil
	}

	for attempt := 0; attempt < maxAttemptsSwitchBoot; attempt++ {
		if err := sess.Set(ctx, "REGFGC3.PROG.SLOT", slot); err != nil {
			return pmerrors.RpcFailure(err, "setting PROG.SLOT")
		}
		if err := sess.Set(ctx, "REGFGC3.PROG.DEBUG.ACTION", "SWITCH"); err != nil {
			return pmerrors.RpcFailure(err, "setting PROG.DEBUG.ACTION")
		}

		log.Infof("waiting for board in slot %s to switch to %s", slot, targetMode)
		select {
		case <-cl.After(10 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := sess.Set(ctx, "REGFGC3.SLOT_INFO", ""); err != nil {
			return pmerrors.RpcFailure(err, "resetting SLOT_INFO")
		}

		ok, err := isBoardInRequestedBootMode(ctx, sess, slot, targetMode)
		if err != nil {
			return err
		}
		if ok {
			log.Infof("board in slot %s switched to %s on attempt %d", slot, targetMode, attempt)
			return nil
		}
	}

	return errors.Errorf("board in slot %s did not switch to %s after %d attempts", slot, targetMode, maxAttemptsSwitchBoot)
}

// WriteSummary logs one line per (converter, board, device) bucket plus
// the total iteration count, the Go shape of write_summary.
func WriteSummary(log *logrus.Entry, iterations int, summaries Summaries) {
	log.Info("SUMMARY")
	log.Infof("TOTAL iterations: %d", iterations)
	for k, s := range summaries {
		log.Infof("converter: %s, board %s, device %s: to_pb_fail=%d to_db_fail=%d reprog_fail=%d reprog_1st=%d reprog_2nd=%d reprog_3rd=%d",
			k.Converter, k.Board, k.Device, s.ToPBFail, s.ToDBFail, s.ReprogFail, s.Reprog1st, s.Reprog2nd, s.Reprog3rd)
	}
}

func isBoardInRequestedBootMode(ctx context.Context, sess session.Session, slot, targetMode string) (bool, error) {
	reply, err := sess.Get(ctx, "REGFGC3.SLOT_INFO")
	if err != nil {
		return false, pmerrors.RpcFailure(err, "fetching SLOT_INFO")
	}
	inv, err := slotinfo.Parse(reply)
	if err != nil {
		return false, err
	}
	board, ok := inv[slot]
	if !ok {
		return false, pmerrors.NotFound("slot %s not present in SLOT_INFO reply", slot)
	}
	inDownloadBoot := board.IsInDownloadBoot()
	if targetMode == model.StateDownloadBoot {
		return inDownloadBoot, nil
	}
	return !inDownloadBoot, nil
}
