package redis

import (
	"context"
	"testing"
	"time"

	"edvora-attempt-service/internal/domain"
	"edvora-attempt-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCatalogCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	source := &countingSource{
		QuizSource: memory.NewStaticQuizSource(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	cache := NewCatalogCache(client, source, time.Minute)

	quiz, err := cache.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if quiz.Questions[0].Text != "What is 2 + 2?" {
		t.Fatalf("unexpected quiz: %+v", quiz)
	}
	if source.calls != 1 {
		t.Fatalf("expected source called once, got %d", source.calls)
	}

	// Second call should hit Redis, source not incremented.
	if _, err := cache.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected cache hit, source calls=%d", source.calls)
	}
	if !mr.Exists("quiz:catalog:quiz-1") {
		t.Fatalf("expected cached key in redis")
	}

	// A fresh cache instance over the same Redis also avoids the source.
	other := NewCatalogCache(client, source, time.Minute)
	if _, err := other.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz via second instance: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected shared cache hit, source calls=%d", source.calls)
	}
}

type countingSource struct {
	QuizSource
	calls int
}

func (s *countingSource) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	s.calls++
	return s.QuizSource.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Sample",
		Questions: []domain.Question{
			{
				ID:           "q1",
				Text:         "What is 2 + 2?",
				Options:      []string{"3", "4", "5"},
				CorrectIndex: 1,
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
