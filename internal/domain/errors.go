package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz definition could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionOutOfRange indicates a question index outside the quiz.
	ErrQuestionOutOfRange = errors.New("question index out of range")
	// ErrOptionOutOfRange indicates an option index outside the question's options.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrAttemptLocked is returned when mutating an attempt that has been
	// submitted or has a submission in flight.
	ErrAttemptLocked = errors.New("attempt is locked")
	// ErrNoAnswers rejects submitting an attempt with zero selections.
	ErrNoAnswers = errors.New("at least one question must be answered")
	// ErrAtFirstQuestion rejects going back from the first question.
	ErrAtFirstQuestion = errors.New("already at the first question")
	// ErrNotAuthenticated indicates a missing or cleared session token.
	ErrNotAuthenticated = errors.New("no authenticated session")
)

// SubmissionError wraps a failed grading submission. Message carries the
// server-provided explanation when one was returned, otherwise a generic
// transport description. The attempt stays open and may be resubmitted.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	if e.Message != "" {
		return "submission failed: " + e.Message
	}
	if e.Err != nil {
		return "submission failed: " + e.Err.Error()
	}
	return "submission failed"
}

func (e *SubmissionError) Unwrap() error { return e.Err }
