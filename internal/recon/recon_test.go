package recon

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghabrous/fgc-pm/internal/adapter"
	"github.com/ghabrous/fgc-pm/internal/fsm"
	"github.com/ghabrous/fgc-pm/internal/model"
	"github.com/ghabrous/fgc-pm/internal/pmerrors"
	"github.com/ghabrous/fgc-pm/internal/session"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return logrus.NewEntry(l)
}

type fakeAdapter struct {
	inv model.ExpectedInventory
	err error
}

func (f *fakeAdapter) GetExpected(_ context.Context, _ string) (model.ExpectedInventory, error) {
	return f.inv, f.err
}

func fixtureFirmware(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, 16), 0o600))
	return path
}

func TestRunNothingToDoOnMatchingInventory(t *testing.T) {
	sess := session.NewFake()
	sess.Props["REGFGC3.SLOT_INFO"] = "SLOT 2,BOARD EDA_1,STATE DownloadBoot,Device DB,Variant DOWNLDBOOT_3,Var_Rev 1,API_Rev 2"

	var a adapter.Adapter = &fakeAdapter{inv: model.ExpectedInventory{
		"2": {Type: "EDA_1", Devices: map[string]model.Device{
			"DB": {Name: "DB", Variant: "DOWNLDBOOT_3", VariantRevision: "1", APIRevision: "2"},
		}},
	}}

	j := &Job{
		Adapter: a,
		Dial:    func(context.Context, string) (session.Session, error) { return sess, nil },
		Log:     testLogger(),
	}
	err := j.Run(context.Background(), "CONV.01")
	assert.NoError(t, err)
}

func TestRunSkipsOnNotFoundExpected(t *testing.T) {
	j := &Job{
		Adapter: &fakeAdapter{err: pmerrors.NotFound("no expected inventory for %s", "CONV.02")},
		Dial:    func(context.Context, string) (session.Session, error) { return session.NewFake(), nil },
		Log:     testLogger(),
	}
	err := j.Run(context.Background(), "CONV.02")
	assert.NoError(t, err)
}

func TestRunSkipsOnUnchangedExpected(t *testing.T) {
	j := &Job{
		Adapter: &fakeAdapter{inv: nil},
		Dial:    func(context.Context, string) (session.Session, error) { return session.NewFake(), nil },
		Log:     testLogger(),
	}
	err := j.Run(context.Background(), "CONV.03")
	assert.NoError(t, err)
}

func TestRunReprogramsDifferingDevice(t *testing.T) {
	sess := session.NewFake()
	sess.Props["REGFGC3.SLOT_INFO"] = "SLOT 2,BOARD EDA_1,STATE DownloadBoot,Device DB,Variant DOWNLDBOOT_3,Var_Rev 1,API_Rev 2"
	sess.StateSequence = []string{
		fsm.StateWaiting, fsm.StateTransferring, fsm.StateTransferred,
		fsm.StateGetProgInfo, fsm.StateProgramming, fsm.StateProgramCheck, fsm.StateProgrammed,
		fsm.StateSetProdBootPars, fsm.StateToProdBoot, fsm.StateCleanUp, fsm.StateWaiting,
	}

	fwPath := fixtureFirmware(t, "EDA_12345-DB-REGFGC_2-5-3-1A2B.bin")

	var a adapter.Adapter = &fakeAdapter{inv: model.ExpectedInventory{
		"2": {Type: "EDA_1", Devices: map[string]model.Device{
			"DB": {Name: "DB", Variant: "REGFGC_2", VariantRevision: "5", APIRevision: "3"},
		}},
	}}

	j := &Job{
		Adapter: a,
		Dial:    func(context.Context, string) (session.Session, error) { return sess, nil },
		Locate:  func(model.DifferingDevice, model.ExpectedInventory) (string, error) { return fwPath, nil },
		Log:     testLogger(),
	}
	err := j.Run(context.Background(), "CONV.04")
	require.NoError(t, err)
}
