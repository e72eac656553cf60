package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layers.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "ValidationError"
	case KindConflict:
		return "Conflict"
	case KindUpstream:
		return "UpstreamFailure"
	default:
		return "InternalError"
	}
}

// Error is a classified failure. Two errors match under errors.Is when their codes are equal,
// so sentinels can be specialised with WithMessagef or WithCause.
type Error struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	err     error
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithMessagef returns a copy of e carrying a more specific message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.err = cause
	return &c
}

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = newError(KindNotFound, "QuizNotFound", "quiz not found")
	// ErrSessionNotFound is returned when no session exists for a code.
	ErrSessionNotFound = newError(KindNotFound, "SessionNotFound", "session not found")
	// ErrParticipantNotFound is returned when a participant id is not on the roster.
	ErrParticipantNotFound = newError(KindNotFound, "ParticipantNotFound", "participant not found in this session")

	ErrMalformedRequest     = newError(KindValidation, "MalformedRequest", "missing required fields")
	ErrInvalidQuestionIndex = newError(KindValidation, "InvalidQuestionIndex", "invalid question index")
	ErrInvalidOptionIndex   = newError(KindValidation, "InvalidOptionIndex", "invalid option index")
	ErrInvalidQuiz          = newError(KindValidation, "InvalidQuiz", "quiz content is invalid")

	// ErrDuplicateAnswer is returned for a second answer to the same question by one participant.
	ErrDuplicateAnswer = newError(KindConflict, "DuplicateAnswer", "you have already answered this question")
	// ErrDuplicateName is returned when a name is taken (case-insensitively) within a session.
	ErrDuplicateName    = newError(KindConflict, "DuplicateName", "this name is already taken, please choose another name")
	ErrSessionNotActive = newError(KindConflict, "SessionNotActive", "session is not active")
	ErrSessionCompleted = newError(KindConflict, "SessionCompleted", "session is already completed")
	ErrSessionClosed    = newError(KindConflict, "SessionClosed", "session has ended and is not accepting participants")
	ErrSessionCodeTaken = newError(KindConflict, "SessionCodeTaken", "session code is already in use")
	// ErrQuizSessionOpen rejects reopening a session while another session of the quiz is open.
	ErrQuizSessionOpen = newError(KindConflict, "QuizSessionOpen", "quiz already has an open session")
	// ErrStaleSession is returned by stores when a save raced with another writer.
	ErrStaleSession = newError(KindConflict, "StaleSession", "session was modified concurrently")

	ErrGeneratorUnavailable = newError(KindUpstream, "GeneratorUnavailable", "question generation is not configured")
	ErrGeneration           = newError(KindUpstream, "GenerationFailed", "failed to generate quiz")

	ErrInternal = newError(KindInternal, "InternalError", "internal error")
)

// AsError converts any error to a classified *Error; unknown errors become internal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.WithCause(err)
}

// KindOf reports the classification of err.
func KindOf(err error) Kind {
	return AsError(err).Kind
}
