package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error wraps exactly one of these, so callers can
// branch with errors.Is(err, ErrConflict) without knowing the specific error.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrValidation  = errors.New("validation failed")
	ErrExhausted   = errors.New("exhausted")
	ErrUnavailable = errors.New("service unavailable")
)

var (
	// ErrChallengeNotFound is returned when no challenge has the given code.
	ErrChallengeNotFound = newKindError(ErrNotFound, "challenge not found")
	// ErrParticipantNotFound is returned when a participant id is not part of the challenge.
	ErrParticipantNotFound = newKindError(ErrNotFound, "participant not found in challenge")
	// ErrQuestionNotFound indicates the question bank has no such question.
	ErrQuestionNotFound = newKindError(ErrNotFound, "question not found")
	// ErrQuestionNotInChallenge indicates the question was not sampled for this challenge.
	ErrQuestionNotInChallenge = newKindError(ErrNotFound, "question is not part of this challenge")
	// ErrNoQuestionsAvailable means the filters matched an empty pool.
	ErrNoQuestionsAvailable = newKindError(ErrNotFound, "no questions match the challenge filters")

	ErrChallengeNotJoinable  = newKindError(ErrConflict, "challenge is no longer accepting participants")
	ErrAlreadyJoined         = newKindError(ErrConflict, "user already joined this challenge")
	ErrChallengeFull         = newKindError(ErrConflict, "challenge is full")
	ErrChallengeNotInLobby   = newKindError(ErrConflict, "challenge is not in the lobby")
	ErrChallengeNotActive    = newKindError(ErrConflict, "challenge is not active")
	ErrChallengeCompleted    = newKindError(ErrConflict, "challenge is completed")
	ErrParticipantsNotReady  = newKindError(ErrConflict, "not all participants are ready")
	ErrAnswerAlreadyRecorded = newKindError(ErrConflict, "answer already recorded for this question")
	ErrStaleChallengeState   = newKindError(ErrConflict, "challenge state changed concurrently")
	// ErrCodeTaken is returned by stores when a generated code collides.
	ErrCodeTaken = newKindError(ErrConflict, "challenge code already in use")

	ErrNotHost            = newKindError(ErrForbidden, "only the host can perform this action")
	ErrHostCannotLeave    = newKindError(ErrForbidden, "host cannot remove themselves")
	ErrNotParticipant     = newKindError(ErrForbidden, "participant belongs to another user")
	ErrElevatedRoleNeeded = newKindError(ErrForbidden, "elevated role required")

	ErrInvalidCode = newKindError(ErrValidation, "challenge code must be 6 digits")

	ErrCodeGenerationExhausted = newKindError(ErrExhausted, "could not generate a unique challenge code")
)

type kindError struct {
	kind error
	msg  string
}

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Invalid builds a validation error with a user-displayable message.
func Invalid(format string, args ...any) error {
	return newKindError(ErrValidation, fmt.Sprintf(format, args...))
}

// Unavailable marks err as a transient persistence failure.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrUnavailable, err))
}

// Kind returns the error kind name for API responses.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	}
	return "internal"
}
