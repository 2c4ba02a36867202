package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"edvora-attempt-service/internal/app"
	"edvora-attempt-service/internal/domain"
)

func TestFreshAttemptHasAllAnswersUnselected(t *testing.T) {
	engine := newTestEngine(t, fourQuestionQuiz(), app.OfflineGrader{})

	for i := 0; i < 4; i++ {
		view := engine.CurrentQuestion()
		if view.SelectedIndex != nil {
			t.Fatalf("question %d: expected no selection, got %d", i, *view.SelectedIndex)
		}
		if view.Index != i || view.Total != 4 {
			t.Fatalf("expected view %d/4, got %d/%d", i, view.Index, view.Total)
		}
		if i < 3 {
			if _, err := engine.Advance(context.Background()); err != nil {
				t.Fatalf("advance: %v", err)
			}
		}
	}
}

func TestSelectOptionLastWriteWins(t *testing.T) {
	engine := newTestEngine(t, fourQuestionQuiz(), app.OfflineGrader{})

	if err := engine.SelectOption(0, 2); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := engine.SelectOption(0, 1); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	view := engine.CurrentQuestion()
	if view.SelectedIndex == nil || *view.SelectedIndex != 1 {
		t.Fatalf("expected selection 1, got %v", view.SelectedIndex)
	}
}

func TestSelectOptionValidatesIndices(t *testing.T) {
	engine := newTestEngine(t, fourQuestionQuiz(), app.OfflineGrader{})

	if err := engine.SelectOption(0, 3); !errors.Is(err, domain.ErrOptionOutOfRange) {
		t.Fatalf("expected option range error, got %v", err)
	}
	if err := engine.SelectOption(9, 0); !errors.Is(err, domain.ErrQuestionOutOfRange) {
		t.Fatalf("expected question range error, got %v", err)
	}
	if err := engine.SelectOption(0, -1); !errors.Is(err, domain.ErrOptionOutOfRange) {
		t.Fatalf("expected option range error for negative index, got %v", err)
	}
}

func TestAdvanceOnLastQuestionSubmitsExactlyOnce(t *testing.T) {
	grader := &recordingGrader{}
	engine := newTestEngine(t, fourQuestionQuiz(), grader)

	if err := engine.SelectOption(0, 0); err != nil {
		t.Fatalf("select: %v", err)
	}
	var record *domain.AttemptRecord
	for i := 0; i < 4; i++ {
		rec, err := engine.Advance(context.Background())
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		record = rec
	}
	if record == nil {
		t.Fatalf("expected final advance to submit")
	}
	if grader.calls != 1 {
		t.Fatalf("expected one grading call, got %d", grader.calls)
	}

	if _, err := engine.Advance(context.Background()); !errors.Is(err, domain.ErrAttemptLocked) {
		t.Fatalf("expected locked error after submission, got %v", err)
	}
	if err := engine.SelectOption(1, 1); !errors.Is(err, domain.ErrAttemptLocked) {
		t.Fatalf("expected locked error on select, got %v", err)
	}
	if got, ok := engine.Record(); !ok || got.TotalMarks != 4 {
		t.Fatalf("expected intact record after post-submit calls, got %+v ok=%v", got, ok)
	}
}

func TestGoBack(t *testing.T) {
	engine := newTestEngine(t, fourQuestionQuiz(), app.OfflineGrader{})

	if err := engine.GoBack(); !errors.Is(err, domain.ErrAtFirstQuestion) {
		t.Fatalf("expected first-question error, got %v", err)
	}
	if _, err := engine.Advance(context.Background()); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := engine.GoBack(); err != nil {
		t.Fatalf("go back: %v", err)
	}
	if view := engine.CurrentQuestion(); view.Index != 0 {
		t.Fatalf("expected cursor back at 0, got %d", view.Index)
	}
}

func TestSubmitRejectsEmptyAttempt(t *testing.T) {
	engine := newTestEngine(t, fourQuestionQuiz(), app.OfflineGrader{})

	if _, err := engine.Submit(context.Background()); !errors.Is(err, domain.ErrNoAnswers) {
		t.Fatalf("expected no-answers error, got %v", err)
	}
	if engine.Submitted() {
		t.Fatalf("attempt must stay open after rejected submit")
	}
}

func TestSubmitGradesAndPersists(t *testing.T) {
	quiz := tenQuestionQuiz()
	session := &fakeSession{token: "tok"}
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	engine, err := app.NewAttemptEngineWithClock(quiz, app.OfflineGrader{}, session, func() time.Time { return now })
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	// 6 correct, 3 incorrect, question 9 skipped.
	for i := 0; i < 6; i++ {
		mustSelect(t, engine, i, quiz.Questions[i].CorrectIndex)
	}
	for i := 6; i < 9; i++ {
		mustSelect(t, engine, i, wrongOption(quiz.Questions[i]))
	}

	record, err := engine.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if record.Score != 6 || record.TotalMarks != 10 {
		t.Fatalf("expected 6/10, got %d/%d", record.Score, record.TotalMarks)
	}
	if pct := record.Percentage(); pct != 60.00 {
		t.Fatalf("expected 60.00, got %.2f", pct)
	}
	if !record.Passed() {
		t.Fatalf("expected pass at 60%%")
	}
	if !record.AttemptedAt.Equal(now) {
		t.Fatalf("expected attempt timestamp %v, got %v", now, record.AttemptedAt)
	}
	if len(session.appended) != 1 || session.appended[0].QuizID != quiz.ID {
		t.Fatalf("expected one persisted record, got %+v", session.appended)
	}
}

func TestSubmitFailureIsRetryableWithSameAnswers(t *testing.T) {
	grader := &recordingGrader{failures: 1}
	engine := newTestEngine(t, fourQuestionQuiz(), grader)
	mustSelect(t, engine, 0, 1)
	mustSelect(t, engine, 2, 0)

	_, err := engine.Submit(context.Background())
	var subErr *domain.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected submission error, got %v", err)
	}
	if engine.Submitted() {
		t.Fatalf("attempt must stay open after network failure")
	}

	if _, err := engine.Submit(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(grader.payloads) != 2 {
		t.Fatalf("expected two grading calls, got %d", len(grader.payloads))
	}
	if !answersEqual(grader.payloads[0], grader.payloads[1]) {
		t.Fatalf("retry sent a different answer set:\n%+v\n%+v", grader.payloads[0], grader.payloads[1])
	}
}

func TestMutationBlockedWhileSubmitting(t *testing.T) {
	quiz := fourQuestionQuiz()
	var engine *app.AttemptEngine
	grader := graderFunc(func(ctx context.Context, token, quizID string, answers []domain.Answer) error {
		// Simulates a user action racing a slow grading call.
		if err := engine.SelectOption(1, 0); !errors.Is(err, domain.ErrAttemptLocked) {
			t.Fatalf("expected locked error during in-flight submit, got %v", err)
		}
		return nil
	})
	engine = newTestEngine(t, quiz, grader)
	mustSelect(t, engine, 0, 0)

	if _, err := engine.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	record, _ := engine.Record()
	if !record.Answers[1].Skipped() {
		t.Fatalf("racing selection must not land in the submitted answer set")
	}
}

func TestCurrentQuestionHidesCorrectIndex(t *testing.T) {
	quiz := fourQuestionQuiz()
	engine := newTestEngine(t, quiz, app.OfflineGrader{})
	view := engine.CurrentQuestion()
	if len(view.Options) != len(quiz.Questions[0].Options) {
		t.Fatalf("expected full option list, got %d", len(view.Options))
	}
	// QuestionView has no correct-index field; mutating the returned options
	// must not leak into the engine either.
	view.Options[0] = "tampered"
	if engine.CurrentQuestion().Options[0] == "tampered" {
		t.Fatalf("view must be a copy")
	}
}

func newTestEngine(t *testing.T, quiz domain.Quiz, grader app.Grader) *app.AttemptEngine {
	t.Helper()
	engine, err := app.NewAttemptEngine(quiz, grader, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func mustSelect(t *testing.T, engine *app.AttemptEngine, question, option int) {
	t.Helper()
	if err := engine.SelectOption(question, option); err != nil {
		t.Fatalf("select %d/%d: %v", question, option, err)
	}
}

func wrongOption(q domain.Question) int {
	if q.CorrectIndex == 0 {
		return 1
	}
	return 0
}

func answersEqual(a, b []domain.Answer) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].QuestionID != b[i].QuestionID || a[i].CorrectIndex != b[i].CorrectIndex {
			return false
		}
		if (a[i].SelectedIndex == nil) != (b[i].SelectedIndex == nil) {
			return false
		}
		if a[i].SelectedIndex != nil && *a[i].SelectedIndex != *b[i].SelectedIndex {
			return false
		}
	}
	return true
}

type recordingGrader struct {
	calls    int
	failures int
	payloads [][]domain.Answer
}

func (g *recordingGrader) GradeAttempt(_ context.Context, _, _ string, answers []domain.Answer) error {
	g.calls++
	g.payloads = append(g.payloads, answers)
	if g.failures > 0 {
		g.failures--
		return &domain.SubmissionError{Message: "upstream unavailable"}
	}
	return nil
}

type graderFunc func(ctx context.Context, token, quizID string, answers []domain.Answer) error

func (f graderFunc) GradeAttempt(ctx context.Context, token, quizID string, answers []domain.Answer) error {
	return f(ctx, token, quizID, answers)
}

type fakeSession struct {
	token    string
	user     domain.User
	appended []domain.AttemptRecord
}

func (s *fakeSession) Token() (string, bool) { return s.token, s.token != "" }

func (s *fakeSession) CurrentUser() (domain.User, bool) { return s.user, s.user.ID != "" }
func (s *fakeSession) AppendAttempt(_ context.Context, record domain.AttemptRecord) error {
	s.appended = append(s.appended, record)
	return nil
}

func fourQuestionQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-go-basics",
		Title: "Go Basics",
		Questions: []domain.Question{
			{ID: "q1", Text: "Keyword that declares a variable?", Options: []string{"var", "let", "dim"}, CorrectIndex: 0},
			{ID: "q2", Text: "Zero value of a pointer?", Options: []string{"0", "nil", "undefined"}, CorrectIndex: 1},
			{ID: "q3", Text: "Builtin that appends to a slice?", Options: []string{"push", "append", "add"}, CorrectIndex: 1},
			{ID: "q4", Text: "Keyword that starts a goroutine?", Options: []string{"go", "run", "spawn"}, CorrectIndex: 0},
		},
	}
}

func tenQuestionQuiz() domain.Quiz {
	questions := make([]domain.Question, 10)
	for i := range questions {
		questions[i] = domain.Question{
			ID:           "q" + string(rune('a'+i)),
			Text:         "Question",
			Options:      []string{"first", "second", "third"},
			CorrectIndex: i % 3,
		}
	}
	return domain.Quiz{ID: "quiz-long", Title: "Long quiz", Questions: questions}
}
