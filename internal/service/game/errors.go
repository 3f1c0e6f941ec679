package game

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a machine-readable error code sent back to clients.
type Code string

const (
	CodeDuplicateOrEmptyName Code = "DUPLICATE_OR_EMPTY_NAME"
	CodeInvalidSetting       Code = "INVALID_SETTING"
	CodeWrongPhase           Code = "WRONG_PHASE"
	CodeWrongRole            Code = "WRONG_ROLE"
	CodePhaseClosed          Code = "PHASE_CLOSED"
	CodeTargetOrVoterDead    Code = "TARGET_OR_VOTER_DEAD"
	CodeUnknownPlayer        Code = "UNKNOWN_PLAYER"
	CodeInvalidHunterAction  Code = "INVALID_HUNTER_ACTION"
	CodeNotHost              Code = "NOT_HOST"
	CodeAlreadySubmitted     Code = "ALREADY_SUBMITTED"
	CodeRoomClosed           Code = "ROOM_CLOSED"
	CodeRoomFull             Code = "ROOM_FULL"
	CodeRoomNotFound         Code = "ROOM_NOT_FOUND"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeBadRequest           Code = "BAD_REQUEST"
)

// Error is a rejected input. Session state is never mutated when one is returned.
type Error struct {
	Code    Code
	Message string
	// Reasons lists every failed check for CodeInvalidSetting.
	Reasons []string
}

func (e *Error) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(e.Reasons, "; "))
}

// Is matches by code so callers can write errors.Is(err, game.ErrPhaseClosed).
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewError builds a domain error for layers outside the session, such as the
// room service and the transport.
func NewError(code Code, message string) *Error {
	return newError(code, message)
}

// Sentinels for errors.Is.
var (
	ErrDuplicateOrEmptyName = newError(CodeDuplicateOrEmptyName, "")
	ErrInvalidSetting       = newError(CodeInvalidSetting, "")
	ErrWrongPhase           = newError(CodeWrongPhase, "")
	ErrWrongRole            = newError(CodeWrongRole, "")
	ErrPhaseClosed          = newError(CodePhaseClosed, "")
	ErrTargetOrVoterDead    = newError(CodeTargetOrVoterDead, "")
	ErrUnknownPlayer        = newError(CodeUnknownPlayer, "")
	ErrInvalidHunterAction  = newError(CodeInvalidHunterAction, "")
	ErrNotHost              = newError(CodeNotHost, "")
	ErrAlreadySubmitted     = newError(CodeAlreadySubmitted, "")
	ErrRoomClosed           = newError(CodeRoomClosed, "room is closed")
	ErrRoomFull             = newError(CodeRoomFull, "")
	ErrRoomNotFound         = newError(CodeRoomNotFound, "room not found")
	ErrRateLimited          = newError(CodeRateLimited, "too many messages, slow down")
	ErrBadRequest           = newError(CodeBadRequest, "")
)

// CodeOf extracts the code of a domain error, or CodeBadRequest for anything else.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeBadRequest
}

// mustHold aborts on a broken invariant. These are programming errors, not inputs.
func mustHold(cond bool, format string, args ...any) {
	if !cond {
		panic("invariant violated: " + fmt.Sprintf(format, args...))
	}
}
