package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller.
type Kind string

const (
	KindNoFaceDetected Kind = "no_face_detected"
	KindInvalidInput   Kind = "invalid_input"
	KindComputation    Kind = "computation_error"
)

// Error is a classified error raised by the embedding pipeline.
//
// The wrapped cause, if any, is available through errors.Unwrap.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

func NewInvalidInput(op, msg string) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: msg}
}

func NewComputationError(op, msg string) *Error {
	return &Error{Kind: KindComputation, Op: op, Message: msg}
}

// ErrNoFaceDetected is returned when the encoder finds no usable face.
var ErrNoFaceDetected = &Error{Kind: KindNoFaceDetected, Message: "no face detected in image"}

// MissingFieldError reports a required request field that was absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field: %s", e.Field)
}

// ShapeMismatchError reports two vectors whose lengths differ.
type ShapeMismatchError struct {
	Left  int
	Right int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: %d != %d", e.Left, e.Right)
}

// KindOf returns the Kind of the first classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	if err == nil {
		return "", false
	}

	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}

	var mf *MissingFieldError
	if errors.As(err, &mf) {
		return KindInvalidInput, true
	}

	var sm *ShapeMismatchError
	if errors.As(err, &sm) {
		return KindInvalidInput, true
	}

	return "", false
}
