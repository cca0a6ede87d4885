package smtd

import (
	"errors"
	"testing"

	"github.com/modtap/smtd/internal/keystate"
	"github.com/stretchr/testify/assert"
)

func TestErrorWithoutPos(t *testing.T) {
	err := NewError("NewEngine", ErrCodeInvalidConfig, "nil host adapter")
	assert.Equal(t, "smtd: nil host adapter (op=NewEngine)", err.Error())
}

func TestErrorWithPos(t *testing.T) {
	pos := keystate.KeyPos{Row: 1, Col: 2}
	err := NewKeyError("Process", pos, ErrCodeMacroCollision, "macro keycode already in use")
	assert.Equal(t, "smtd: macro keycode already in use (op=Process pos=(1,2))", err.Error())
}

func TestErrorDefaultsMessageToCode(t *testing.T) {
	err := NewError("op", ErrCodeQueueOverflow, "")
	assert.Equal(t, "smtd: queue overflow (op=op)", err.Error())
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := NewError("op1", ErrCodeReentrant, "first")
	b := NewError("op2", ErrCodeReentrant, "second")
	c := NewError("op3", ErrCodeStaleTimeout, "third")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &Error{Op: "op", Code: ErrCodeInvalidConfig, Msg: "wrapped", Inner: inner}
	assert.Equal(t, inner, errors.Unwrap(err))
	assert.True(t, errors.Is(err, inner))
}

func TestIsCode(t *testing.T) {
	err := NewError("op", ErrCodeMacroCollision, "dup")
	assert.True(t, IsCode(err, ErrCodeMacroCollision))
	assert.False(t, IsCode(err, ErrCodeReentrant))
	assert.False(t, IsCode(errors.New("plain"), ErrCodeMacroCollision))
}
