package firmware

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validName = "EDA_12345-DB-REGFGC_1-2-3-1A2B.bin"

func writeFixture(t *testing.T, name string, size int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestParseName(t *testing.T) {
	fields, err := ParseName(validName)
	require.NoError(t, err)
	assert.Equal(t, "DB", fields.Device)
	assert.Equal(t, "REGFGC_1", fields.Variant)
	assert.Equal(t, "2", fields.VariantRevision)
	assert.Equal(t, "3", fields.APIRevision)
	assert.Equal(t, "1A2B", fields.CRC)
}

func TestParseNameInvalid(t *testing.T) {
	_, err := ParseName("not_a_firmware_file.bin")
	assert.Error(t, err)
}

func TestCheckConsistencyMismatch(t *testing.T) {
	_, err := CheckConsistency(validName, "DB", "WRONG_VARIANT", "2")
	assert.Error(t, err)
}

func TestCheckConsistencyMatch(t *testing.T) {
	_, err := CheckConsistency(validName, "DB", "REGFGC_1", "2")
	assert.NoError(t, err)
}

func TestLoadChunksWords(t *testing.T) {
	path := writeFixture(t, validName, 10) // 2 full words + 1 short (2 bytes)
	f, err := Load(path)
	require.NoError(t, err)
	require.Len(t, f.Words, 3)
	assert.Len(t, f.Words[2], 10) // "0x" + 8 hex chars, zero-padded
	assert.Equal(t, "1A2B", f.CRC)
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeFixture(t, validName, 0)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadOversizeFile(t *testing.T) {
	path := writeFixture(t, validName, fileLimitBytes+1)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestChunksGrouping(t *testing.T) {
	f := &File{Words: make([]string, limitGwCmdWords+1)}
	chunks := f.Chunks()
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], limitGwCmdWords)
	assert.Len(t, chunks[1], 1)
}
