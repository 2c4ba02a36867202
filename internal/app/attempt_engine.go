package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"edvora-attempt-service/internal/domain"
)

// SessionStore abstracts the authenticated session the engine reports into
// (in-memory, Redis, etc).
type SessionStore interface {
	Token() (string, bool)
	CurrentUser() (domain.User, bool)
	AppendAttempt(ctx context.Context, record domain.AttemptRecord) error
}

// SessionHub resolves the session store for a given user, creating or
// resuming it as needed. Shells hold a hub; engines hold a single store.
type SessionHub interface {
	Session(ctx context.Context, userID, name, token string) (SessionStore, error)
}

// QuizCatalog loads quiz definitions (from cache/backing store).
type QuizCatalog interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Grader posts a completed answer set to the grading endpoint, authenticated
// with the submitting user's session token.
type Grader interface {
	GradeAttempt(ctx context.Context, token, quizID string, answers []domain.Answer) error
}

// OfflineGrader accepts every submission without a network round trip.
// Scoring is derived locally from the correct indices baked into the answers,
// so nothing else is needed for self-hosted and terminal use.
type OfflineGrader struct{}

func (OfflineGrader) GradeAttempt(context.Context, string, string, []domain.Answer) error {
	return nil
}

// AttemptEngine drives a single quiz-taking session from the first question
// to a submitted, graded result.
//
// States: in progress (navigation and selection allowed), submitting (all
// mutation rejected while the grading call is in flight), graded (terminal,
// immutable). Mutating a locked attempt returns domain.ErrAttemptLocked
// rather than failing silently.
type AttemptEngine struct {
	quiz    domain.Quiz
	grader  Grader
	session SessionStore
	now     func() time.Time

	mu         sync.Mutex
	current    int
	answers    []domain.Answer
	submitting bool
	submitted  bool
	record     domain.AttemptRecord
}

// NewAttemptEngine validates the quiz and creates a fresh attempt with every
// answer unselected. session may be nil when no authenticated session exists
// (history is then not persisted).
func NewAttemptEngine(quiz domain.Quiz, grader Grader, session SessionStore) (*AttemptEngine, error) {
	return NewAttemptEngineWithClock(quiz, grader, session, time.Now)
}

// NewAttemptEngineWithClock is test-only for deterministic timestamps.
func NewAttemptEngineWithClock(quiz domain.Quiz, grader Grader, session SessionStore, now func() time.Time) (*AttemptEngine, error) {
	if err := quiz.Validate(); err != nil {
		return nil, err
	}
	if grader == nil {
		grader = OfflineGrader{}
	}
	answers := make([]domain.Answer, len(quiz.Questions))
	for i, q := range quiz.Questions {
		answers[i] = domain.Answer{QuestionID: q.ID, CorrectIndex: q.CorrectIndex}
	}
	return &AttemptEngine{
		quiz:    quiz,
		grader:  grader,
		session: session,
		now:     now,
		answers: answers,
	}, nil
}

// SelectOption records (or overwrites) the choice for a question. Last write
// wins until submission.
func (e *AttemptEngine) SelectOption(questionIndex, optionIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitted || e.submitting {
		return domain.ErrAttemptLocked
	}
	if questionIndex < 0 || questionIndex >= len(e.quiz.Questions) {
		return domain.ErrQuestionOutOfRange
	}
	if optionIndex < 0 || optionIndex >= len(e.quiz.Questions[questionIndex].Options) {
		return domain.ErrOptionOutOfRange
	}
	selected := optionIndex
	e.answers[questionIndex].SelectedIndex = &selected
	return nil
}

// Advance moves to the next question, or submits when already on the last
// one. Shells surface this as a single button whose label flips between
// "Next" and "Submit". Advancing past an unanswered question leaves it
// skipped. The returned record is non-nil only when submission happened.
func (e *AttemptEngine) Advance(ctx context.Context) (*domain.AttemptRecord, error) {
	e.mu.Lock()
	if e.submitted || e.submitting {
		e.mu.Unlock()
		return nil, domain.ErrAttemptLocked
	}
	if e.current < len(e.quiz.Questions)-1 {
		e.current++
		e.mu.Unlock()
		return nil, nil
	}
	e.mu.Unlock()

	record, err := e.Submit(ctx)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GoBack returns to the previous question.
func (e *AttemptEngine) GoBack() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitted || e.submitting {
		return domain.ErrAttemptLocked
	}
	if e.current == 0 {
		return domain.ErrAtFirstQuestion
	}
	e.current--
	return nil
}

// Submit sends the recorded answers for grading and freezes the attempt.
// At least one non-nil selection is required. On a grading failure the
// attempt stays open with every answer intact, so Submit may be retried and
// will send the identical answer set.
func (e *AttemptEngine) Submit(ctx context.Context) (domain.AttemptRecord, error) {
	e.mu.Lock()
	if e.submitted || e.submitting {
		e.mu.Unlock()
		return domain.AttemptRecord{}, domain.ErrAttemptLocked
	}
	answered := false
	for _, a := range e.answers {
		if !a.Skipped() {
			answered = true
			break
		}
	}
	if !answered {
		e.mu.Unlock()
		return domain.AttemptRecord{}, domain.ErrNoAnswers
	}
	e.submitting = true
	answers := cloneAnswers(e.answers)
	e.mu.Unlock()

	var token string
	if e.session != nil {
		token, _ = e.session.Token()
	}
	err := e.grader.GradeAttempt(ctx, token, e.quiz.ID, answers)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitting = false
	if err != nil {
		return domain.AttemptRecord{}, err
	}
	e.submitted = true
	e.record = domain.NewAttemptRecord(e.quiz, answers, e.now())
	if e.session != nil {
		if err := e.session.AppendAttempt(ctx, e.record); err != nil {
			return e.record, fmt.Errorf("persist attempt history: %w", err)
		}
	}
	return e.record, nil
}

// CurrentQuestion projects the question at the cursor plus the recorded
// selection. The correct option index is deliberately absent.
func (e *AttemptEngine) CurrentQuestion() domain.QuestionView {
	e.mu.Lock()
	defer e.mu.Unlock()
	q := e.quiz.Questions[e.current]
	view := domain.QuestionView{
		Index:      e.current,
		Total:      len(e.quiz.Questions),
		QuestionID: q.ID,
		Text:       q.Text,
		Options:    append([]string(nil), q.Options...),
		Last:       e.current == len(e.quiz.Questions)-1,
	}
	if sel := e.answers[e.current].SelectedIndex; sel != nil {
		v := *sel
		view.SelectedIndex = &v
	}
	return view
}

// Submitted reports whether the attempt has reached its terminal state.
func (e *AttemptEngine) Submitted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitted
}

// Record returns the graded record once the attempt is submitted.
func (e *AttemptEngine) Record() (domain.AttemptRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record, e.submitted
}

func cloneAnswers(answers []domain.Answer) []domain.Answer {
	out := make([]domain.Answer, len(answers))
	for i, a := range answers {
		out[i] = domain.Answer{QuestionID: a.QuestionID, CorrectIndex: a.CorrectIndex}
		if a.SelectedIndex != nil {
			v := *a.SelectedIndex
			out[i].SelectedIndex = &v
		}
	}
	return out
}
