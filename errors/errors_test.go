package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/dargueta/quotafs/errors"
	"github.com/stretchr/testify/assert"
)

func TestDriverErrorWithMessage(t *testing.T) {
	newErr := errors.ErrNotFound.WithMessage("asdfqwerty")
	assert.Equal(
		t, "No such file or directory: asdfqwerty", newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, errors.ErrNotFound)
	assert.Equal(t, errors.ENOENT, newErr.Errno())
}

func TestDriverErrorWrap(t *testing.T) {
	originalErr := stderrors.New("original error")
	newErr := errors.ErrExists.Wrap(originalErr)
	expectedMessage := "File exists: original error"

	assert.EqualValues(t, expectedMessage, newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, originalErr, "original error not set as parent")
	assert.ErrorIs(t, newErr, errors.ErrExists, "driver error not set as parent")
}

// Errors with different codes must never match each other.
func TestDriverErrorIs__DifferentCodes(t *testing.T) {
	err := errors.NewWithMessage(errors.EACCES, "nope")
	assert.ErrorIs(t, err, errors.ErrPermissionDenied)
	assert.NotErrorIs(t, err, errors.ErrNotFound)
	assert.NotErrorIs(t, err, stderrors.New("Permission denied"))
}

func TestErrnoOf(t *testing.T) {
	assert.Equal(t, errors.EOK, errors.ErrnoOf(nil))
	assert.Equal(t, errors.ENOSPC, errors.ErrnoOf(errors.ErrNoSpaceOnDevice.WithMessage("x")))
	assert.Equal(t, errors.EIO, errors.ErrnoOf(stderrors.New("something else")))
}

func TestStrError__Unknown(t *testing.T) {
	assert.Equal(t, "error 9999 not recognized.", errors.StrError(errors.Errno(9999)))
	assert.Equal(t, "Errno(9999)", errors.Errno(9999).String())
	assert.Equal(t, "EINVAL", errors.EINVAL.String())
}

func TestSentinels__DefaultMessages(t *testing.T) {
	sentinels := map[errors.DriverError]string{
		errors.ErrNotFound:           "No such file or directory",
		errors.ErrExists:             "File exists",
		errors.ErrNoSpaceOnDevice:    "No space left on device",
		errors.ErrInvalidArgument:    "Invalid argument",
		errors.ErrPermissionDenied:   "Permission denied",
		errors.ErrArgumentOutOfRange: "Numerical argument out of domain",
		errors.ErrNotSupported:       "Operation not supported",
	}
	for sentinel, message := range sentinels {
		assert.Equal(t, message, sentinel.Error())
		assert.Equal(t, message, errors.StrError(sentinel.Errno()))
	}
}
