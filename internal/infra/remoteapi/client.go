package remoteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"edvora-attempt-service/internal/domain"
)

// Client talks to the portal's quiz API. It serves as both a quiz source for
// the catalog cache and the grader the attempt engine submits to.
type Client struct {
	http    *http.Client
	baseURL string
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// LoadQuiz fetches one quiz definition. The payload goes through the
// normalization boundary, so legacy field spellings are accepted.
func (c *Client) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quizzes/"+quizID, nil)
	if err != nil {
		return domain.Quiz{}, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("fetch quiz: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if res.StatusCode/100 != 2 {
		return domain.Quiz{}, fmt.Errorf("fetch quiz: %s", res.Status)
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("read quiz payload: %w", err)
	}
	return domain.NormalizeQuiz(raw)
}

// GradeAttempt posts the completed answer set for server-side grading,
// authenticated with the caller's session token. A missing token fails before
// any network traffic; server failures come back as SubmissionError with the
// server's message when one was provided.
func (c *Client) GradeAttempt(ctx context.Context, token, quizID string, answers []domain.Answer) error {
	if token == "" {
		return domain.ErrNotAuthenticated
	}

	body, err := json.Marshal(struct {
		Answers []domain.Answer `json:"answers"`
	}{Answers: answers})
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/quizzes/"+quizID+"/attempts", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.http.Do(req)
	if err != nil {
		return &domain.SubmissionError{Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized {
		return domain.ErrNotAuthenticated
	}
	if res.StatusCode/100 != 2 {
		return &domain.SubmissionError{Message: serverMessage(res.Body, res.Status)}
	}
	return nil
}

// serverMessage pulls the human-readable message out of an error payload,
// falling back to the HTTP status line.
func serverMessage(body io.Reader, status string) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return status
}
