package smtd

import (
	"fmt"

	"github.com/modtap/smtd/internal/keystate"
)

// ErrorCode categorizes the internally-handled error kinds from spec §7.
// None of these surface from Process — they exist for test-introspection
// and logging context, and for the configuration failures NewEngine can
// return.
type ErrorCode string

const (
	ErrCodeUnknownRelease  ErrorCode = "unknown release"
	ErrCodeStaleTimeout    ErrorCode = "stale timeout"
	ErrCodeQueueOverflow   ErrorCode = "queue overflow"
	ErrCodeReentrant       ErrorCode = "reentrant dispatch"
	ErrCodeInvalidConfig   ErrorCode = "invalid configuration"
	ErrCodeMacroCollision  ErrorCode = "macro keycode collision"
)

// Error is the structured error type used throughout this module: a
// configuration or lifecycle failure tagged with the operation and,
// where meaningful, the physical key position involved.
type Error struct {
	Op    string
	Pos   *keystate.KeyPos
	Code  ErrorCode
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Pos != nil {
		return fmt.Sprintf("smtd: %s (op=%s pos=%s)", msg, e.Op, e.Pos)
	}
	if e.Op != "" {
		return fmt.Sprintf("smtd: %s (op=%s)", msg, e.Op)
	}
	return fmt.Sprintf("smtd: %s", msg)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is reports equality by ErrorCode, so callers can test for a category of
// failure without depending on the exact message.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError creates a structured Error with no associated key position.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewKeyError creates a structured Error tagged with the key position it
// concerns.
func NewKeyError(op string, pos keystate.KeyPos, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Pos: &pos, Code: code, Msg: msg}
}

// IsCode reports whether err is a *Error carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	se, ok := err.(*Error)
	if !ok {
		return false
	}
	return se.Code == code
}
