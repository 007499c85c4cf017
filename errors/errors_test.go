package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vilterp/blockfs/errors"
)

func TestWithMessage(t *testing.T) {
	err := errors.ErrDoesNotExist.WithMessage("foo.txt")
	assert.Equal(t, "does not exist: foo.txt", err.Error())
	assert.ErrorIs(t, err, errors.ErrDoesNotExist)
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("disk exploded")
	err := errors.ErrHostIO.Wrap(cause)
	assert.Equal(t, "host stream I/O error: disk exploded", err.Error())
	assert.ErrorIs(t, err, errors.ErrHostIO)
	assert.ErrorIs(t, err, cause)
}

func TestWithMessageChains(t *testing.T) {
	err := errors.ErrAlreadyExists.WithMessage("a").WithMessage("b")
	assert.Equal(t, "already exists: a: b", err.Error())
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)
}
