package fsm

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghabrous/fgc-pm/internal/model"
	"github.com/ghabrous/fgc-pm/internal/session"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return logrus.NewEntry(l)
}

func fixtureFirmware(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "EDA_12345-DB-REGFGC_1-2-3-1A2B.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 16), 0o600))
	return path
}

// instantClock fires After immediately, so a test exercising the poll-
// timeout path runs without real sleeping.
type instantClock struct{}

func (instantClock) Now() time.Time { return time.Time{} }
func (instantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}
func (instantClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	f()
	return nil
}
func (instantClock) NewTimer(time.Duration) clock.Timer { return nil }

func newProgramRequest(t *testing.T, converter string) model.ProgramRequest {
	return model.ProgramRequest{
		Converter: converter, Slot: "2", Board: "EDA_12345", Device: "DB",
		Variant: "REGFGC_1", VariantRevision: "2", APIRevision: "3",
		BinCRC: "1A2B", FWFilePath: fixtureFirmware(t),
	}
}

// TestProcessHappyPath scripts the exact sequence of FSM.STATE values a
// full reprogram walk polls for, in order, so Process completes without
// any clock advance or real waiting.
func TestProcessHappyPath(t *testing.T) {
	sess := session.NewFake()
	sess.StateSequence = []string{
		StateWaiting, StateTransferring, StateTransferred,
		StateGetProgInfo, StateProgramming, StateProgramCheck, StateProgrammed,
		StateSetProdBootPars, StateToProdBoot, StateCleanUp, StateWaiting,
	}
	f := New(newProgramRequest(t, "CONV.01"), sess, testLogger(), WithClock(instantClock{}))

	err := f.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, f.State())

	binSets := sess.SetCallsFor("REGFGC3.PROG.BIN_CRC")
	require.Len(t, binSets, 1)
	assert.Equal(t, "6699", binSets[0]) // 0x1A2B decimal, matching PROG.BIN_CRC = int(bin_crc, 16)
}

// TestProcessTimeoutInState never advances FSM.STATE to the awaited value,
// so awaitState exhausts its poll budget and reports a timeout.
func TestProcessTimeoutInState(t *testing.T) {
	sess := session.NewFake()
	sess.StateSequence = []string{"SOMETHING_ELSE"}
	f := New(newProgramRequest(t, "CONV.02"), sess, testLogger(), WithClock(instantClock{}))

	err := f.Process(context.Background())
	assert.Error(t, err)
}

func TestResetReturnsToUninitialized(t *testing.T) {
	f := New(model.ProgramRequest{}, session.NewFake(), testLogger())
	f.state = StateWaiting
	f.Reset()
	assert.Equal(t, StateUninitialized, f.State())
	assert.Equal(t, StateUninitialized, f.Mode())
}
