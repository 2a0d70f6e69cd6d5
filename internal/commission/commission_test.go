package commission

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

	"github.com/ghabrous/fgc-pm/internal/fsm"
	"github.com/ghabrous/fgc-pm/internal/session"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return logrus.NewEntry(l)
}

type instantClock struct{}

func (instantClock) Now() time.Time { return time.Unix(0, 0) }
func (instantClock) After(time.Duration) <-chan time.Time {
	c := make(chan time.Time, 1)
	c <- time.Unix(0, 0)
	return c
}
func (c instantClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	f()
	return nil
}
func (c instantClock) NewTimer(d time.Duration) clock.Timer { return nil }

func writeTaskFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog_data.csv")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadTasksSkipsCommentsAndBlankLines(t *testing.T) {
	path := writeTaskFile(t,
		"# comment",
		"",
		"CONV.01,2,EDA_1,DB,REGFGC3_2,5,3,1A2B,fw/a.bin",
	)
	tasks, err := ReadTasks(path)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "CONV.01", tasks[0].Converter)
	assert.Equal(t, "DB", tasks[0].Device)
}

func TestReadTasksRejectsMalformedLine(t *testing.T) {
	path := writeTaskFile(t, "CONV.01,2,EDA_1")
	_, err := ReadTasks(path)
	assert.Error(t, err)
}

func TestRecordAttemptsBuckets(t *testing.T) {
	var s Summary
	s.recordAttempts(0)
	s.recordAttempts(1)
	s.recordAttempts(2)
	s.recordAttempts(3)
	assert.Equal(t, 1, s.Reprog1st)
	assert.Equal(t, 1, s.Reprog2nd)
	assert.Equal(t, 1, s.Reprog3rd)
	assert.Equal(t, 1, s.ReprogFail)
}

func TestRunSwitchesBootAndProgramsSingleTaskSlot(t *testing.T) {
	sess := session.NewFake()
	sess.Props["REGFGC3.SLOT_INFO"] = "SLOT 2,BOARD EDA_1,STATE ProductionBoot,Device DB,Variant PROD,Var_Rev 1,API_Rev 1"
	sess.SlotInfoAfterReset = "SLOT 2,BOARD EDA_1,STATE DownloadBoot,Device DB,Variant DOWNLDBOOT_3,Var_Rev 1,API_Rev 1"
	sess.StateSequence = []string{
		fsm.StateWaiting, fsm.StateTransferring, fsm.StateTransferred,
		fsm.StateGetProgInfo, fsm.StateProgramming, fsm.StateProgramCheck, fsm.StateProgrammed,
		fsm.StateSetProdBootPars, fsm.StateToProdBoot, fsm.StateCleanUp, fsm.StateWaiting,
	}

	dir := t.TempDir()
	fwPath := filepath.Join(dir, "EDA_12345-DB-REGFGC_2-5-3-1A2B.bin")
	require.NoError(t, os.WriteFile(fwPath, make([]byte, 8), 0o600))

	tasks := []Task{{
		Converter: "CONV.01", Slot: "2", Board: "EDA_1", Device: "DB",
		Variant: "REGFGC_2", VarRev: "5", APIRev: "3", BinCRC: "1A2B",
		FWFileLoc: fwPath,
	}}

	r := &Runner{
		Dial:  func(context.Context, string) (session.Session, error) { return sess, nil },
		Clock: instantClock{},
		Log:   testLogger(),
	}

	iterations, summaries, err := r.Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.Equal(t, programmingRepetitions, iterations)
	assert.Len(t, summaries, 1)
}
