package memory

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"live-quiz-service/internal/domain"
)

// QuizStore is a map-backed quiz store (useful for tests/demos and when no database is configured).
type QuizStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewQuizStore(quizzes ...domain.Quiz) *QuizStore {
	s := &QuizStore{quizzes: make(map[string]domain.Quiz, len(quizzes))}
	for _, q := range quizzes {
		s.quizzes[q.ID] = q
	}
	return s
}

func (s *QuizStore) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if quiz, ok := s.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (s *QuizStore) InsertQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quiz.ID]; ok {
		return domain.ErrInvalidQuiz.WithMessagef("quiz %s already exists", quiz.ID)
	}
	if quiz.SessionCode != "" && s.codeHeldLocked(quiz.SessionCode, quiz.ID) {
		return domain.ErrSessionCodeTaken
	}
	s.quizzes[quiz.ID] = quiz
	return nil
}

// LinkSession stores code on the quiz. Codes are unique across quizzes.
func (s *QuizStore) LinkSession(_ context.Context, quizID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	if s.codeHeldLocked(code, quizID) {
		return domain.ErrSessionCodeTaken
	}
	quiz.SessionCode = code
	quiz.IsActive = true
	s.quizzes[quizID] = quiz
	return nil
}

func (s *QuizStore) codeHeldLocked(code, quizID string) bool {
	for id, q := range s.quizzes {
		if id != quizID && q.SessionCode == code {
			return true
		}
	}
	return false
}

// LoadSeedFile reads quizzes from a YAML document of the form `quizzes: [...]`.
func LoadSeedFile(path string) ([]domain.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Quizzes []domain.Quiz `yaml:"quizzes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for _, q := range doc.Quizzes {
		if q.ID == "" {
			return nil, fmt.Errorf("seed quiz %q has no id", q.Title)
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("seed quiz %s: %w", q.ID, err)
		}
	}
	return doc.Quizzes, nil
}

// SampleQuizzes provides a minimal quiz for running without a database or seed file.
func SampleQuizzes() []domain.Quiz {
	return []domain.Quiz{
		{
			ID:         "quiz-1",
			Title:      "Warm-up",
			Topic:      "general knowledge",
			Difficulty: domain.DifficultyEasy,
			CreatedAt:  time.Date(2024, 11, 22, 0, 0, 0, 0, time.UTC),
			Questions: []domain.Question{
				{
					Text:               "What is 2 + 2?",
					Options:            []string{"3", "4", "5", "6"},
					CorrectOptionIndex: 1,
					Explanation:        "2 + 2 equals 4",
				},
				{
					Text:               "Which planet is known as the Red Planet?",
					Options:            []string{"Mars", "Venus", "Jupiter", "Mercury"},
					CorrectOptionIndex: 0,
					Explanation:        "Iron oxide on its surface gives Mars its colour",
				},
				{
					Text:               "How many continents are there?",
					Options:            []string{"5", "6", "7", "8"},
					CorrectOptionIndex: 2,
				},
			},
		},
	}
}
