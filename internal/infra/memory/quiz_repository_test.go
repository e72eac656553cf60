package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	store := &countingStore{Store: NewQuizStore(sampleQuiz())}
	repo := NewQuizRepository(store, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected store once, got %d", store.calls)
	}

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected cache hit, store calls %d", store.calls)
	}
}

func TestQuizRepositoryExpires(t *testing.T) {
	store := &countingStore{Store: NewQuizStore(sampleQuiz())}
	repo := NewQuizRepository(store, time.Minute)
	now := time.Now()
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetQuiz(context.Background(), "quiz-1")

	if store.calls != 2 {
		t.Fatalf("expected reload after ttl, store calls %d", store.calls)
	}
}

func TestQuizRepositoryLinkSessionInvalidates(t *testing.T) {
	store := &countingStore{Store: NewQuizStore(sampleQuiz())}
	repo := NewQuizRepository(store, time.Minute)
	ctx := context.Background()

	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if err := repo.LinkSession(ctx, "quiz-1", "123456"); err != nil {
		t.Fatalf("link session: %v", err)
	}

	quiz, err := repo.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz after link: %v", err)
	}
	if quiz.SessionCode != "123456" || !quiz.IsActive {
		t.Fatalf("expected linked quiz, got code=%q active=%v", quiz.SessionCode, quiz.IsActive)
	}
	if store.calls != 2 {
		t.Fatalf("expected reload after link, store calls %d", store.calls)
	}
}

func TestQuizStoreSessionCodesAreUnique(t *testing.T) {
	other := sampleQuiz()
	other.ID = "quiz-2"
	store := NewQuizStore(sampleQuiz(), other)
	ctx := context.Background()

	if err := store.LinkSession(ctx, "quiz-1", "123456"); err != nil {
		t.Fatalf("link quiz-1: %v", err)
	}
	if err := store.LinkSession(ctx, "quiz-1", "123456"); err != nil {
		t.Fatalf("relink quiz-1 to its own code: %v", err)
	}
	if err := store.LinkSession(ctx, "quiz-2", "123456"); !errors.Is(err, domain.ErrSessionCodeTaken) {
		t.Fatalf("expected code taken, got %v", err)
	}
	if err := store.LinkSession(ctx, "missing", "654321"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestQuizRepositoryCreateQuiz(t *testing.T) {
	store := &countingStore{Store: NewQuizStore()}
	repo := NewQuizRepository(store, time.Minute)
	ctx := context.Background()

	if err := repo.CreateQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	if _, err := repo.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if store.calls != 0 {
		t.Fatalf("expected created quiz served from cache, store calls %d", store.calls)
	}
	if err := repo.CreateQuiz(ctx, sampleQuiz()); err == nil {
		t.Fatalf("expected duplicate quiz id to fail")
	}
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizzes.yaml")
	seed := `
quizzes:
  - id: geo
    title: Geography
    topic: capitals
    difficulty: easy
    questions:
      - question: Capital of France?
        options: [Berlin, Paris, Rome, Madrid]
        correctAnswer: 1
        explanation: Paris is the capital of France
`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	quizzes, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	if len(quizzes) != 1 || quizzes[0].ID != "geo" {
		t.Fatalf("unexpected quizzes %+v", quizzes)
	}
	if q := quizzes[0].Questions[0]; q.CorrectOptionIndex != 1 || len(q.Options) != 4 {
		t.Fatalf("unexpected question %+v", q)
	}
}

func TestLoadSeedFileRejectsInvalidQuiz(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizzes.yaml")
	seed := `
quizzes:
  - id: broken
    questions:
      - question: Only two options?
        options: [yes, no]
        correctAnswer: 0
`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := LoadSeedFile(path); !errors.Is(err, domain.ErrInvalidQuiz) {
		t.Fatalf("expected invalid quiz, got %v", err)
	}
}

type countingStore struct {
	Store
	calls int
}

func (s *countingStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	s.calls++
	return s.Store.LoadQuiz(ctx, quizID)
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
			},
		},
	}
}
