package resume

import (
	"errors"
	"fmt"
)

// Kind classifies session operation failures.
type Kind string

const (
	KindParse             Kind = "parse_error"
	KindModel             Kind = "model_error"
	KindGenerationInvalid Kind = "generation_invalid"
	KindPrecondition      Kind = "precondition_failed"
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindInternal          Kind = "internal"
)

var (
	// ErrParse indicates the model reply could not be read as a resume.
	ErrParse = errors.New("resume parse failed")

	// ErrModel indicates the model gateway call failed.
	ErrModel = errors.New("model call failed")

	// ErrGenerationInvalid indicates generated markup lacked the document-root marker.
	ErrGenerationInvalid = errors.New("generated markup invalid")

	// ErrPrecondition indicates an operation ran before its inputs were set.
	ErrPrecondition = errors.New("precondition failed")

	// ErrNotFound indicates an unknown session or version.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates validation or bad input.
	ErrInvalidInput = errors.New("invalid input")
)

var sentinels = map[Kind]error{
	KindParse:             ErrParse,
	KindModel:             ErrModel,
	KindGenerationInvalid: ErrGenerationInvalid,
	KindPrecondition:      ErrPrecondition,
	KindNotFound:          ErrNotFound,
	KindInvalidInput:      ErrInvalidInput,
}

// Error is the structured failure returned by session operations.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := sentinels[e.Kind]
	return ok && sentinel == target
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// OutcomeKind discriminates an Outcome.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeError   OutcomeKind = "error"
)

// Detail describes a failed operation.
type Detail struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Outcome is either a success carrying Value or an error carrying Detail.
type Outcome[T any] struct {
	Kind   OutcomeKind `json:"kind"`
	Value  T           `json:"value,omitempty"`
	Detail *Detail     `json:"detail,omitempty"`
}

// Capture builds an Outcome from a (value, error) pair.
func Capture[T any](value T, err error) Outcome[T] {
	if err == nil {
		return Outcome[T]{Kind: OutcomeSuccess, Value: value}
	}
	detail := &Detail{Kind: KindOf(err), Message: err.Error()}
	var e *Error
	if errors.As(err, &e) {
		detail.Message = e.Message
	}
	return Outcome[T]{Kind: OutcomeError, Detail: detail}
}

// OK reports whether the outcome is a success.
func (o Outcome[T]) OK() bool { return o.Kind == OutcomeSuccess }
