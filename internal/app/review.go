package app

import (
	"edvora-attempt-service/internal/domain"
)

// missingQuestionText is shown when a historical answer references a question
// that no longer exists in the live quiz definition.
const missingQuestionText = "Question not found"

// ReconstructReview rebuilds a display-ready review from a persisted attempt
// and the matching quiz definition. Answers keep the order they were recorded
// in; later edits to the quiz never reorder history. Answers whose question
// has since disappeared get a placeholder entry instead of failing the whole
// reconstruction.
func ReconstructReview(record domain.AttemptRecord, quiz domain.Quiz) []domain.ReviewEntry {
	byID := make(map[string]domain.Question, len(quiz.Questions))
	for _, q := range quiz.Questions {
		byID[q.ID] = q
	}

	entries := make([]domain.ReviewEntry, 0, len(record.Answers))
	for _, answer := range record.Answers {
		entry := domain.ReviewEntry{
			QuestionText:  missingQuestionText,
			SelectedIndex: answer.SelectedIndex,
			CorrectIndex:  answer.CorrectIndex,
			IsCorrect:     answer.Correct(),
			IsSkipped:     answer.Skipped(),
		}
		if q, ok := byID[answer.QuestionID]; ok {
			entry.QuestionText = q.Text
			entry.Options = append([]string(nil), q.Options...)
		}
		entries = append(entries, entry)
	}
	return entries
}
