package singleprog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghabrous/fgc-pm/internal/fsm"
	"github.com/ghabrous/fgc-pm/internal/model"
	"github.com/ghabrous/fgc-pm/internal/session"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return logrus.NewEntry(l)
}

func fixtureFirmware(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, 16), 0o600))
	return path
}

func TestDetectRejectsBoardNotInDownloadBoot(t *testing.T) {
	sess := session.NewFake()
	sess.Props["REGFGC3.SLOT_INFO"] = "SLOT 2,BOARD EDA_1,STATE ProductionBoot,Device DB,Variant DOWNLDBOOT_3,Var_Rev 1,API_Rev 2"

	_, err := Detect(context.Background(), sess, Request{Slot: "2", Device: "DB"})
	assert.Error(t, err)
}

func TestDetectReturnsBoardAndDevice(t *testing.T) {
	sess := session.NewFake()
	sess.Props["REGFGC3.SLOT_INFO"] = "SLOT 2,BOARD EDA_1,STATE DownloadBoot,Device DB,Variant DOWNLDBOOT_3,Var_Rev 1,API_Rev 2"

	detected, err := Detect(context.Background(), sess, Request{Slot: "2", Device: "DB"})
	require.NoError(t, err)
	assert.Equal(t, "EDA_1", detected.Board.Type)
	assert.Equal(t, "DOWNLDBOOT_3", detected.Device.Variant)
}

func TestValidateRejectsInvalidDeviceName(t *testing.T) {
	req := Request{Device: "NOT_A_DEVICE"}
	_, err := Validate(req, Detected{})
	assert.Error(t, err)
}

func TestValidateRejectsBoardMismatch(t *testing.T) {
	req := Request{Device: "DB", Board: "EDA_2"}
	detected := Detected{
		Board:  model.Board{Type: "EDA_1"},
		Device: model.Device{Name: "DB", Variant: "REGFGC3_2", VariantRevision: "4"},
	}
	_, err := Validate(req, detected)
	assert.Error(t, err)
}

func TestValidateToleratesVariantMismatchWhenLoose(t *testing.T) {
	fwPath := fixtureFirmware(t, "EDA_12345-DB-REGFGC_2-5-3-1A2B.bin")
	req := Request{
		Device: "DB", Board: "EDA_1", Variant: "REGFGC_2", VariantRevision: "5",
		FWFileLoc: fwPath, Loose: true,
	}
	detected := Detected{
		Board:  model.Board{Type: "EDA_1"},
		Device: model.Device{Name: "DB", Variant: "REGFGC3_1", VariantRevision: "4"},
	}

	ok, err := Validate(req, detected)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateNothingToDoWhenRevisionMatches(t *testing.T) {
	fwPath := fixtureFirmware(t, "EDA_12345-DB-REGFGC_2-5-3-1A2B.bin")
	req := Request{
		Device: "DB", Board: "EDA_1", Variant: "REGFGC_2", VariantRevision: "5",
		FWFileLoc: fwPath,
	}
	detected := Detected{
		Board:  model.Board{Type: "EDA_1"},
		Device: model.Device{Name: "DB", Variant: "REGFGC_2", VariantRevision: "5"},
	}

	ok, err := Validate(req, detected)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProgramSucceedsOnFirstAttempt(t *testing.T) {
	sess := session.NewFake()
	sess.StateSequence = []string{
		fsm.StateWaiting, fsm.StateTransferring, fsm.StateTransferred,
		fsm.StateGetProgInfo, fsm.StateProgramming, fsm.StateProgramCheck, fsm.StateProgrammed,
		fsm.StateSetProdBootPars, fsm.StateToProdBoot, fsm.StateCleanUp, fsm.StateWaiting,
	}
	fwPath := fixtureFirmware(t, "EDA_12345-DB-REGFGC_2-5-3-1A2B.bin")

	req := Request{
		Converter: "CONV.01", Slot: "2", Board: "EDA_1", Device: "DB",
		Variant: "REGFGC_2", VariantRevision: "5", APIRevision: "3", FWFileLoc: fwPath,
	}
	attempt, err := Program(context.Background(), sess, testLogger(), req, "1A2B")
	require.NoError(t, err)
	assert.Equal(t, 0, attempt)
}
