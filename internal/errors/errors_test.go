package errors

import (
	stderrors "errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_KeepsCode(t *testing.T) {
	base := ConfigInvalid("COMBAT_WORKERS must be >= 1")
	wrapped := Wrap(base, "configuration validation failed")

	assert.Equal(t, CodeConfigInvalid, GetCode(wrapped))
	assert.Contains(t, wrapped.Error(), "COMBAT_WORKERS")
	assert.True(t, stderrors.Is(wrapped, base))
}

func TestWrap_ForeignErrorBecomesInternal(t *testing.T) {
	wrapped := Wrapf(io.EOF, "reading %s", "matrix.csv")
	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.True(t, stderrors.Is(wrapped, io.EOF))
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestCodes(t *testing.T) {
	assert.Equal(t, CodeIOError, GetCode(IOError("open failed", io.ErrUnexpectedEOF)))
	assert.Equal(t, CodeInvalidInput, GetCode(WithCode(CodeInvalidInput, io.EOF)))
	assert.Equal(t, "UNKNOWN", GetCode(io.EOF))
	assert.True(t, IsAppError(InvalidInput("bad cell")))
	assert.False(t, IsAppError(io.EOF))
}
