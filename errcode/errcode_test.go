package errcode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOfAndIs(t *testing.T) {
	cause := errors.New("clock did not lock")
	err := Wrap(BootFailed, "clock", cause)

	assert.Equal(t, BootFailed, Of(err))
	assert.True(t, errors.Is(err, BootFailed))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, InvalidConfig))
	assert.Equal(t, "boot_failed [clock]: clock did not lock", err.Error())

	assert.Equal(t, OK, Of(nil))
	assert.Equal(t, QueueFull, Of(QueueFull))
	assert.Equal(t, Error, Of(cause))
	assert.Nil(t, Wrap(BootFailed, "x", nil))
}
