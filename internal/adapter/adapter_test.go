package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExpectedFile(t *testing.T, dir, converter, contents string) string {
	t.Helper()
	path := filepath.Join(dir, converter)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const fixtureContents = "# comment line\n" +
	"2,EDA_12345,DB,REGFGC3_1,2,3\n" +
	"2,EDA_12345,MF,RUN,7,1\n"

func TestFilesystemAdapterParsesAndCaches(t *testing.T) {
	dir := t.TempDir()
	writeExpectedFile(t, dir, "CONV.01", fixtureContents)

	a := NewFilesystemAdapter(dir)
	inv, err := a.GetExpected(context.Background(), "CONV.01")
	require.NoError(t, err)
	require.Contains(t, inv, "2")
	assert.Equal(t, "EDA_12345", inv["2"].Type)
	assert.Equal(t, "REGFGC3_1", inv["2"].Devices["DB"].Variant)
	assert.Equal(t, "RUN", inv["2"].Devices["MF"].Variant)

	inv2, err := a.GetExpected(context.Background(), "CONV.01")
	require.NoError(t, err)
	assert.Nil(t, inv2, "unchanged mtime must yield a nil inventory")
}

func TestFilesystemAdapterReparsesAfterTouch(t *testing.T) {
	dir := t.TempDir()
	path := writeExpectedFile(t, dir, "CONV.02", fixtureContents)

	a := NewFilesystemAdapter(dir)
	_, err := a.GetExpected(context.Background(), "CONV.02")
	require.NoError(t, err)

	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	inv, err := a.GetExpected(context.Background(), "CONV.02")
	require.NoError(t, err)
	require.NotNil(t, inv)
}

func TestFilesystemAdapterMissingConverter(t *testing.T) {
	dir := t.TempDir()
	a := NewFilesystemAdapter(dir)
	_, err := a.GetExpected(context.Background(), "NOPE")
	assert.Error(t, err)
}

func TestParseExpectedFileRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	writeExpectedFile(t, dir, "CONV.03", "2,EDA_1,DB,REGFGC3_1\n")

	a := NewFilesystemAdapter(dir)
	_, err := a.GetExpected(context.Background(), "CONV.03")
	assert.Error(t, err)
}

func TestParseExpectedFileRejectsDuplicateSlotDevice(t *testing.T) {
	dir := t.TempDir()
	writeExpectedFile(t, dir, "CONV.04",
		"2,EDA_12345,DB,REGFGC3_1,2,3\n"+
			"2,EDA_12345,DB,REGFGC3_2,5,3\n")

	a := NewFilesystemAdapter(dir)
	_, err := a.GetExpected(context.Background(), "CONV.04")
	assert.Error(t, err)
}
