package domain

import (
	"encoding/json"
	"fmt"
)

// The upstream portal API is loose about field names: quiz identifiers arrive
// as "id", "quizId" or "_id", question text as "text" or "question", and the
// correct option index under two spellings. All of that is collapsed here,
// once, at the ingestion boundary; the rest of the system only ever sees the
// canonical Quiz/Question shape.

type wireQuiz struct {
	ID          string         `json:"id"`
	QuizID      string         `json:"quizId"`
	MongoID     string         `json:"_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Questions   []wireQuestion `json:"questions"`
}

type wireQuestion struct {
	QuestionID   string   `json:"questionId"`
	MongoID      string   `json:"_id"`
	Text         string   `json:"text"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correctAnswerIndex"`
	AltIndex     *int     `json:"correctIndex"`
}

// NormalizeQuiz decodes a raw quiz payload into the canonical shape and
// validates it. It is the only place that understands the wire variants.
func NormalizeQuiz(raw []byte) (Quiz, error) {
	var w wireQuiz
	if err := json.Unmarshal(raw, &w); err != nil {
		return Quiz{}, fmt.Errorf("decode quiz: %w", err)
	}

	quiz := Quiz{
		ID:          firstNonEmpty(w.ID, w.QuizID, w.MongoID),
		Title:       w.Title,
		Description: w.Description,
		Questions:   make([]Question, 0, len(w.Questions)),
	}
	for _, q := range w.Questions {
		correct := -1
		if q.CorrectIndex != nil {
			correct = *q.CorrectIndex
		} else if q.AltIndex != nil {
			correct = *q.AltIndex
		}
		quiz.Questions = append(quiz.Questions, Question{
			ID:           firstNonEmpty(q.QuestionID, q.MongoID),
			Text:         firstNonEmpty(q.Text, q.Question),
			Options:      q.Options,
			CorrectIndex: correct,
		})
	}

	if err := quiz.Validate(); err != nil {
		return Quiz{}, err
	}
	return quiz, nil
}

// Validate checks the structural invariants of a quiz definition.
func (q Quiz) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("quiz has no identifier")
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("quiz %s has no questions", q.ID)
	}
	for i, question := range q.Questions {
		if question.ID == "" {
			return fmt.Errorf("quiz %s: question %d has no identifier", q.ID, i)
		}
		if len(question.Options) < 2 {
			return fmt.Errorf("quiz %s: question %s needs at least two options", q.ID, question.ID)
		}
		if question.CorrectIndex < 0 || question.CorrectIndex >= len(question.Options) {
			return fmt.Errorf("quiz %s: question %s correct index %d out of range", q.ID, question.ID, question.CorrectIndex)
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
