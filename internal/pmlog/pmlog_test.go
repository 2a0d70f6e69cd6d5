package pmlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToRotatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pm.log")

	logger := New(Options{FilePath: path})
	logger.WithField("converter", "CONV.01").Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "converter=CONV.01")
}

func TestNewVerboseEnablesDebugOnStderr(t *testing.T) {
	logger := New(Options{Verbose: true})
	assert.NotNil(t, logger)

	var stderrHook *levelWriterHook
	for _, h := range logger.Hooks[logrus.DebugLevel] {
		if lh, ok := h.(*levelWriterHook); ok && lh.writer == os.Stderr {
			stderrHook = lh
		}
	}
	require.NotNil(t, stderrHook)
	assert.Equal(t, logrus.DebugLevel, stderrHook.minLevel)
}
