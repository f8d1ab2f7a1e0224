package session

import (
	"errors"
	"fmt"
)

// Domain rejections surfaced to callers. Each one is a typed, recoverable
// refusal of a single request; none is retried internally.
var (
	ErrInvalidTimeWindow   = errors.New("invalid time window")
	ErrInvalidLocation     = errors.New("invalid location")
	ErrOverlappingSession  = errors.New("lecturer already has a session in this time window")
	ErrCourseNotInProgram  = errors.New("course does not belong to program")
	ErrStreamsNotSupported = errors.New("program does not support streams")
	ErrStreamNotInProgram  = errors.New("stream does not belong to program")
	ErrLecturerNotAssigned = errors.New("lecturer is not assigned to this course")
	ErrLecturerInactive    = errors.New("assigned lecturer account is inactive")
	ErrNotOwner            = errors.New("session belongs to another lecturer")
	ErrSessionNotFound     = errors.New("session not found")
)

// ValidationError reports a caller-correctable problem with one request field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func invalidField(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}
