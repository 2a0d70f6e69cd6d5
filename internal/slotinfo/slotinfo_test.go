package slotinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "SLOT 2,BOARD EDA_12345,STATE DownloadBoot,Device DB,Variant DOWNLDBOOT_3,Var_Rev 1,API_Rev 2," +
	"Device MF,Variant RUN,Var_Rev 7,API_Rev 3," +
	"SLOT 3,BOARD EDA_54321,STATE ProductionBoot,Device DB,Variant PROD,Var_Rev 4,API_Rev 1"

func TestParseTwoSlots(t *testing.T) {
	inv, err := Parse(sample)
	require.NoError(t, err)
	require.Len(t, inv, 2)

	s2, ok := inv["2"]
	require.True(t, ok)
	assert.Equal(t, "EDA_12345", s2.Type)
	assert.Equal(t, "DownloadBoot", s2.State)
	require.Contains(t, s2.Devices, "DB")
	assert.Equal(t, "DOWNLDBOOT_3", s2.Devices["DB"].Variant)
	assert.Equal(t, "1", s2.Devices["DB"].VariantRevision)
	require.Contains(t, s2.Devices, "MF")
	assert.Equal(t, "RUN", s2.Devices["MF"].Variant)
	assert.True(t, s2.IsInDownloadBoot())

	s3, ok := inv["3"]
	require.True(t, ok)
	assert.False(t, s3.IsInDownloadBoot())
}

func TestParseNoSlotMarkers(t *testing.T) {
	_, err := Parse("BOARD x,STATE y")
	assert.Error(t, err)
}

func TestParseSingleSlotNoDevices(t *testing.T) {
	inv, err := Parse("SLOT 1,BOARD EDA_9,STATE ProductionBoot")
	require.NoError(t, err)
	require.Contains(t, inv, "1")
	assert.Empty(t, inv["1"].Devices)
}

func TestParseUnexpectedHeaderKey(t *testing.T) {
	_, err := Parse("SLOT 1,BOGUS x,STATE ProductionBoot")
	assert.Error(t, err)
}
