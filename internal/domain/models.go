package domain

import (
	"math"
	"time"
)

// PassThreshold is the minimum percentage (inclusive) required to pass an
// attempt. Fixed business rule, not configurable.
const PassThreshold = 40.0

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID           string   `json:"questionId"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctAnswerIndex"`
}

// Quiz is an ordered collection of questions. Question order is significant
// and fixed once loaded.
type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// Answer records the user's choice for one question. SelectedIndex is nil
// while the question is unanswered (skipped if still nil at submission).
// CorrectIndex is copied from the quiz at attempt time so grading survives
// later edits to the quiz definition.
type Answer struct {
	QuestionID    string `json:"questionId"`
	SelectedIndex *int   `json:"selectedIndex"`
	CorrectIndex  int    `json:"correctAnswerIndex"`
}

// Skipped reports whether the question was left unanswered.
func (a Answer) Skipped() bool {
	return a.SelectedIndex == nil
}

// Correct reports whether the selected option matches the correct one.
// A skipped answer is never correct.
func (a Answer) Correct() bool {
	return a.SelectedIndex != nil && *a.SelectedIndex == a.CorrectIndex
}

// AttemptRecord is the persisted history shape for one submitted attempt.
// Once persisted it is immutable history.
type AttemptRecord struct {
	QuizID      string    `json:"quizId"`
	QuizTitle   string    `json:"quizTitle"`
	TotalMarks  int       `json:"totalMarks"`
	Score       int       `json:"score"`
	AttemptedAt time.Time `json:"attemptedAt"`
	Answers     []Answer  `json:"answers"`
}

// NewAttemptRecord grades the answer set against the correct indices baked
// into it and freezes the result.
func NewAttemptRecord(quiz Quiz, answers []Answer, attemptedAt time.Time) AttemptRecord {
	score := 0
	for _, a := range answers {
		if a.Correct() {
			score++
		}
	}
	return AttemptRecord{
		QuizID:      quiz.ID,
		QuizTitle:   quiz.Title,
		TotalMarks:  len(answers),
		Score:       score,
		AttemptedAt: attemptedAt,
		Answers:     answers,
	}
}

// Percentage returns score/total as a percentage rounded to two decimals.
func (r AttemptRecord) Percentage() float64 {
	if r.TotalMarks == 0 {
		return 0
	}
	return math.Round(float64(r.Score)/float64(r.TotalMarks)*100*100) / 100
}

// Passed reports whether the attempt meets the pass threshold (inclusive).
func (r AttemptRecord) Passed() bool {
	return r.Percentage() >= PassThreshold
}

// User is the authenticated portal user plus their attempt history.
type User struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	AttemptedQuizzes []AttemptRecord `json:"attemptedQuizzes"`
}

// AuthChange is broadcast to session subscribers whenever the authenticated
// user logs in, logs out, or their record is updated.
type AuthChange struct {
	LoggedIn bool `json:"loggedIn"`
	User     User `json:"user"`
}

// QuestionView is the read-only projection handed to shells while an attempt
// is in progress. It never carries the correct option index.
type QuestionView struct {
	Index         int      `json:"index"`
	Total         int      `json:"total"`
	QuestionID    string   `json:"questionId"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	SelectedIndex *int     `json:"selectedIndex"`
	Last          bool     `json:"last"`
}

// ReviewEntry is one row of a reconstructed post-submission review.
type ReviewEntry struct {
	QuestionText  string   `json:"questionText"`
	Options       []string `json:"options"`
	SelectedIndex *int     `json:"selectedIndex"`
	CorrectIndex  int      `json:"correctAnswerIndex"`
	IsCorrect     bool     `json:"isCorrect"`
	IsSkipped     bool     `json:"isSkipped"`
}
