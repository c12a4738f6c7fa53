package form

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Validation Kind = iota + 1
	InvalidAttachment
	SubmissionFailure
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case InvalidAttachment:
		return "invalid_attachment"
	case SubmissionFailure:
		return "submission_failure"
	default:
		return "unknown"
	}
}

var (
	ErrSubmissionInProgress = errors.New("a submission is already in progress")
	ErrNotMounted           = errors.New("form is not mounted")
)

// Error is returned by the form operations that can fail. Message is safe
// to show to the user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func isKind(err error, k Kind) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Kind == k
}

func IsValidation(err error) bool {
	return isKind(err, Validation)
}

func IsInvalidAttachment(err error) bool {
	return isKind(err, InvalidAttachment)
}

func IsSubmissionFailure(err error) bool {
	return isKind(err, SubmissionFailure)
}

// Message returns the user-facing text of err: the Message of the first
// form error it wraps, or fallback.
func Message(err error, fallback string) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return fallback
}
