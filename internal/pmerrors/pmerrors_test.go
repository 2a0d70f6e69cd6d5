package pmerrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeForNotFound(t *testing.T) {
	err := NotFound("board in slot %s", "9")
	assert.Equal(t, ExitOperational, ExitCodeFor(err))
	assert.True(t, IsNotFound(err))
}

func TestExitCodeForParseError(t *testing.T) {
	err := NewParseError("garbage", 2, "bad token")
	assert.Equal(t, ExitUsage, ExitCodeFor(err))
}

func TestExitCodeForNil(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCodeFor(nil))
}

func TestReprogramFailedUnwraps(t *testing.T) {
	inner := NewTimeoutInState("PROGRAMMED", "TRANSFERRED", "none")
	err := NewReprogramFailed("CONV.01", "DB", "EDA_1", inner)
	assert.Contains(t, err.Error(), "CONV.01")
}
