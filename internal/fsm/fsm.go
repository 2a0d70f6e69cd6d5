// Package fsm walks a single converter's remote REGFGC3.PROG.FSM through
// its mode/state table: UNINITIALIZED -> WAITING -> TRANSFERRED ->
// PROGRAMMED -> SET_PB_PARS -> TO_PROD_BOOT -> CLEAN_UP -> WAITING, with an
// ERROR short-circuit to CLEAN_UP.
//
// Grounded on original_source/program_manager/pm_fsm.py: the
// STATE_TO_MODE_TO_INTERIM_STATES table, PmState.run's polling loop and
// ProgramManagerFsm.process/_process_mode/reset. The polling clock is
// github.com/juju/clock rather than time.Sleep so tests can advance time
// deterministically instead of sleeping in wall-clock seconds.
package fsm

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/ghabrous/fgc-pm/internal/firmware"
	"github.com/ghabrous/fgc-pm/internal/model"
	"github.com/ghabrous/fgc-pm/internal/pmerrors"
	"github.com/ghabrous/fgc-pm/internal/session"
)

// State names, unchanged from the remote FSM's own vocabulary.
const (
	StateUninitialized = "UNINITIALIZED"
	StateWaiting        = "WAITING"
	StateTransferring    = "TRANSFERRING"
	StateTransferred     = "TRANSFERRED"
	StateGetProgInfo     = "GET_PROG_INFO"
	StateProgramming     = "PROGRAMMING"
	StateProgramCheck    = "PROG_CHK"
	StateProgrammed      = "PROGRAMMED"
	StateSetProdBootPars = "SET_PB_PARS"
	StateToProdBoot      = "TO_PROD_BOOT"
	StateCleanUp         = "CLEAN_UP"
	StateError           = "ERROR"
)

const (
	propFSMState       = "REGFGC3.PROG.FSM.STATE"
	propFSMMode        = "REGFGC3.PROG.FSM.MODE"
	propBoardError     = "REGFGC3.PROG.DEBUG.BOARD_ERROR"
	propLastState      = "REGFGC3.PROG.FSM.LAST_STATE"

	defaultPollTimeout  = 30
	pollInterval        = 3 // seconds, matches PmState.run's time.sleep(3)
	postTransferSettle  = 5 // seconds, matches the sleep after writing BIN chunks
)

// interimStep is one state in a mode's walk: its name, and whether it runs
// the firmware transfer payload (only TRANSFERRING does).
type interimStep struct {
	name      string
	isTransfer bool
}

// transitions mirrors STATE_TO_MODE_TO_INTERIM_STATES exactly: for each
// current state, the single valid target mode and the interim states a
// walk to that mode passes through.
var transitions = map[string]struct {
	mode  string
	steps []interimStep
}{
	StateUninitialized: {StateWaiting, []interimStep{{StateWaiting, false}}},
	StateWaiting:        {StateTransferred, []interimStep{{StateTransferring, true}, {StateTransferred, false}}},
	StateTransferred:    {StateProgrammed, []interimStep{{StateGetProgInfo, false}, {StateProgramming, false}, {StateProgramCheck, false}, {StateProgrammed, false}}},
	StateProgrammed:     {StateSetProdBootPars, []interimStep{{StateSetProdBootPars, false}}},
	StateSetProdBootPars: {StateToProdBoot, []interimStep{{StateToProdBoot, false}}},
	StateToProdBoot:      {StateCleanUp, []interimStep{{StateCleanUp, false}}},
	StateCleanUp:         {StateWaiting, []interimStep{{StateWaiting, false}}},
	StateError:           {StateCleanUp, []interimStep{{StateCleanUp, false}}},
}

// validModes is the fixed set of VALID_MODES: one mode per entry of
// transitions, used by process to decide how many mode-advances a full
// walk needs.
var validModes = []string{
	StateWaiting, StateTransferred, StateProgrammed, StateSetProdBootPars,
	StateToProdBoot, StateCleanUp,
}

// ProgramFSM walks one converter's remote FSM through a full reprogram
// cycle. Not safe for concurrent use: the pool guarantees at most one
// ProgramFSM per converter in flight at a time.
type ProgramFSM struct {
	req     model.ProgramRequest
	session session.Session
	clock   clock.Clock
	log     *logrus.Entry

	state string
	mode  string
}

// Option configures a ProgramFSM at construction time.
type Option func(*ProgramFSM)

// WithClock overrides the default wall clock, for deterministic tests.
func WithClock(c clock.Clock) Option {
	return func(f *ProgramFSM) { f.clock = c }
}

// New builds a ProgramFSM in its initial UNINITIALIZED state.
func New(req model.ProgramRequest, sess session.Session, log *logrus.Entry, opts ...Option) *ProgramFSM {
	f := &ProgramFSM{
		req:     req,
		session: sess,
		clock:   clock.WallClock,
		log:     log,
		state:   StateUninitialized,
		mode:    StateUninitialized,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State returns the FSM's current interim-state name.
func (f *ProgramFSM) State() string { return f.state }

// Mode returns the most recently requested target mode.
func (f *ProgramFSM) Mode() string { return f.mode }

// Process walks the FSM through every mode in validModes in turn. On a
// mid-walk error it attempts exactly one recovery via CLEAN_UP before
// giving up. After the walk, whether or not it succeeded, it always tries
// to leave the board back in WAITING. Mirrors ProgramManagerFsm.process byte for byte in control
// flow.
func (f *ProgramFSM) Process(ctx context.Context) error {
	if f.state != StateUninitialized {
		return pmerrors.NewReprogramFailed(f.req.Converter, f.req.Device, f.req.Board,
			fmt.Errorf("initial state %q is not UNINITIALIZED", f.state))
	}

	modeSequence := append([]string(nil), validModes...)
	errorDuringReprogram := false

	for len(modeSequence) > 0 {
		target := transitions[f.state].mode
		f.log.Infof("processing mode %s in state %s", target, f.state)

		if err := f.processMode(ctx, target); err != nil {
			f.log.WithError(err).Error("fsm step failed")
			if errorDuringReprogram {
				modeSequence = nil
			} else {
				errorDuringReprogram = true
				f.state = StateError
				modeSequence = []string{StateCleanUp}
			}
			continue
		}
		modeSequence = modeSequence[1:]
	}

	if err := f.processMode(ctx, StateWaiting); err != nil {
		return pmerrors.NewReprogramFailed(f.req.Converter, f.req.Device, f.req.Board, err)
	}

	if errorDuringReprogram {
		return pmerrors.NewReprogramFailed(f.req.Converter, f.req.Device, f.req.Board,
			fmt.Errorf("error during reprogramming after recovery attempt"))
	}
	return nil
}

// Reset returns the FSM to UNINITIALIZED. The caller owns the session's
// lifecycle; Reset never disconnects it.
func (f *ProgramFSM) Reset() {
	f.state = StateUninitialized
	f.mode = StateUninitialized
}

// processMode walks the interim states for targetMode, writing FSM.MODE
// before every step exactly as _process_mode does (even when the step is
// skipped because the FSM is already in that state — the mode write still
// happens, matching the original's unconditional fgc_session.set call).
func (f *ProgramFSM) processMode(ctx context.Context, targetMode string) error {
	f.mode = targetMode
	steps, ok := stepsFor(f.state, targetMode)
	if !ok && f.state == targetMode {
		// Already in targetMode's own state: FSM.MODE is still written
		// once and the step itself is skipped.
		steps, ok = []interimStep{{name: targetMode}}, true
	}
	if !ok {
		return fmt.Errorf("no transition from state %s to mode %s", f.state, targetMode)
	}

	for _, step := range steps {
		if err := f.session.Set(ctx, propFSMMode, targetMode); err != nil {
			return pmerrors.RpcFailure(err, "setting FSM.MODE to %s", targetMode)
		}
		if f.state == step.name {
			continue
		}
		if step.isTransfer {
			if err := f.runTransfer(ctx); err != nil {
				return err
			}
		}
		if err := f.awaitState(ctx, step.name); err != nil {
			return err
		}
		f.state = step.name
	}
	return nil
}

func stepsFor(currentState, targetMode string) ([]interimStep, bool) {
	t, ok := transitions[currentState]
	if !ok || t.mode != targetMode {
		return nil, false
	}
	return t.steps, true
}

// runTransfer loads the firmware file, writes the program parameters and
// the chunked binary payload, then sleeps to let the board digest it —
// the Go shape of PmStateTransferring.run.
func (f *ProgramFSM) runTransfer(ctx context.Context) error {
	fw, err := firmware.Load(f.req.FWFilePath)
	if err != nil {
		return err
	}

	// PROG.BIN_CRC takes the CRC's decimal value, not its hex text, the Go
	// shape of pm_fsm.py's int(bin_crc, 16).
	crc, err := strconv.ParseUint(f.req.BinCRC, 16, 16)
	if err != nil {
		return pmerrors.NewParseError(f.req.BinCRC, 0, "firmware CRC is not valid hex")
	}

	sets := []struct{ prop, value string }{
		{"REGFGC3.PROG.SLOT", f.req.Slot},
		{"REGFGC3.PROG.DEVICE", f.req.Device},
		{"REGFGC3.PROG.VARIANT", f.req.Variant},
		{"REGFGC3.PROG.VARIANT_REVISION", f.req.VariantRevision},
		{"REGFGC3.PROG.API_REVISION", f.req.APIRevision},
		{"REGFGC3.PROG.BIN_SIZE_BYTES", fmt.Sprintf("%d", fw.Size)},
		{"REGFGC3.PROG.BIN_CRC", strconv.FormatUint(crc, 10)},
	}
	for _, s := range sets {
		if err := f.session.Set(ctx, s.prop, s.value); err != nil {
			return pmerrors.RpcFailure(err, "setting %s", s.prop)
		}
	}

	for i, chunk := range fw.Chunks() {
		offset := i * 66100
		prop := fmt.Sprintf("REGFGC3.PROG.BIN[%d,]", offset)
		if err := f.session.Set(ctx, prop, joinComma(chunk)); err != nil {
			return pmerrors.RpcFailure(err, "writing firmware chunk at offset %d", offset)
		}
	}

	select {
	case <-f.clock.After(postTransferSettle * time.Second):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// awaitState polls FSM.STATE every pollInterval seconds until it matches
// target or the poll budget is exhausted, the way PmState.run does.
func (f *ProgramFSM) awaitState(ctx context.Context, target string) error {
	remaining := defaultPollTimeout
	for remaining > 0 {
		got, err := f.session.Get(ctx, propFSMState)
		if err != nil {
			return pmerrors.RpcFailure(err, "polling FSM.STATE")
		}
		f.log.Debugf("fsm state after polling: %s", got)
		if got == target {
			f.log.Infof("fsm state %s processed successfully", target)
			return nil
		}

		select {
		case <-f.clock.After(pollInterval * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
		remaining -= pollInterval
	}

	boardErr, _ := f.session.Get(ctx, propBoardError)
	lastState, _ := f.session.Get(ctx, propLastState)
	return pmerrors.NewTimeoutInState(target, lastState, boardErr)
}

func joinComma(words []string) string {
	if len(words) == 0 {
		return ""
	}
	out := words[0]
	for _, w := range words[1:] {
		out += "," + w
	}
	return out
}
