package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	store := &countingStore{QuizStore: memory.NewQuizStore(sampleQuiz())}
	repo := NewQuizRepository(client, store, time.Minute)

	quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected store called once, got %d", store.calls)
	}
	if !mr.Exists("quiz:quiz-1") {
		t.Fatalf("expected quiz cached in redis")
	}

	// Second call should hit cache, store not incremented.
	cached, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get cached quiz: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected cache hit, store calls=%d", store.calls)
	}
	if cached.Questions[0].CorrectOptionIndex != quiz.Questions[0].CorrectOptionIndex ||
		cached.Questions[0].Explanation != quiz.Questions[0].Explanation {
		t.Fatalf("cached quiz differs: %+v", cached.Questions[0])
	}
}

func TestQuizRepositoryLinkSessionEvicts(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := &countingStore{QuizStore: memory.NewQuizStore(sampleQuiz())}
	repo := NewQuizRepository(newClient(mr), store, time.Minute)
	ctx := context.Background()

	_, _ = repo.GetQuiz(ctx, "quiz-1")
	if err := repo.LinkSession(ctx, "quiz-1", "123456"); err != nil {
		t.Fatalf("link session: %v", err)
	}
	if mr.Exists("quiz:quiz-1") {
		t.Fatalf("expected cached quiz evicted")
	}

	quiz, err := repo.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if quiz.SessionCode != "123456" {
		t.Fatalf("expected linked code, got %q", quiz.SessionCode)
	}
}

func TestQuizRepositoryTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := &countingStore{QuizStore: memory.NewQuizStore(sampleQuiz())}
	repo := NewQuizRepository(newClient(mr), store, time.Minute)

	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	mr.FastForward(2 * time.Minute)
	_, _ = repo.GetQuiz(context.Background(), "quiz-1")

	if store.calls != 2 {
		t.Fatalf("expected reload after expiry, store calls=%d", store.calls)
	}
}

type countingStore struct {
	QuizStore
	calls int
}

func (s *countingStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	s.calls++
	return s.QuizStore.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Arithmetic",
		Questions: []domain.Question{
			{
				Text:               "What is 2 + 2?",
				Options:            []string{"3", "4", "5", "6"},
				CorrectOptionIndex: 1,
				Explanation:        "2 + 2 equals 4",
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
