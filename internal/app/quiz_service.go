package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"live-quiz-service/internal/domain"
)

const (
	defaultQuestionCount = 5
	maxQuestionCount     = 50
)

// CreateQuizRequest asks for a new generated quiz.
type CreateQuizRequest struct {
	Title        string
	Topic        string
	NumQuestions int
	Difficulty   domain.Difficulty
}

// QuizService contains the quiz authoring use cases.
type QuizService struct {
	quizzes   QuizRepository
	generator Generator
	now       func() time.Time
	newID     func() string
	log       *slog.Logger
}

// NewQuizService wires quiz storage with a question generator. generator may be nil,
// in which case creation fails with domain.ErrGeneratorUnavailable.
func NewQuizService(quizzes QuizRepository, generator Generator, logger *slog.Logger) *QuizService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizService{
		quizzes:   quizzes,
		generator: generator,
		now:       time.Now,
		newID:     uuid.NewString,
		log:       logger,
	}
}

// CreateQuiz generates questions for the topic and stores the resulting quiz.
func (s *QuizService) CreateQuiz(ctx context.Context, req CreateQuizRequest) (domain.Quiz, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Title == "" || req.Topic == "" {
		return domain.Quiz{}, domain.ErrMalformedRequest.WithMessagef("title and topic are required")
	}
	if req.NumQuestions == 0 {
		req.NumQuestions = defaultQuestionCount
	}
	if req.NumQuestions < 0 || req.NumQuestions > maxQuestionCount {
		return domain.Quiz{}, domain.ErrMalformedRequest.WithMessagef("numQuestions must be between 1 and %d", maxQuestionCount)
	}
	if req.Difficulty == "" {
		req.Difficulty = domain.DifficultyMedium
	}
	if !req.Difficulty.Valid() {
		return domain.Quiz{}, domain.ErrMalformedRequest.WithMessagef("unknown difficulty %q", req.Difficulty)
	}
	if s.generator == nil {
		return domain.Quiz{}, domain.ErrGeneratorUnavailable
	}

	questions, err := s.generator.Generate(ctx, GenerateRequest{
		Topic:      req.Topic,
		Count:      req.NumQuestions,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindUpstream {
			return domain.Quiz{}, err
		}
		return domain.Quiz{}, domain.ErrGeneration.WithCause(err)
	}

	quiz := domain.Quiz{
		ID:         s.newID(),
		Title:      req.Title,
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		Questions:  questions,
		CreatedAt:  s.now(),
	}
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, domain.ErrGeneration.WithMessagef("generated quiz is invalid").WithCause(err)
	}

	if err := s.quizzes.CreateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	s.log.Info("quiz created", "quiz_id", quiz.ID, "topic", quiz.Topic, "questions", len(quiz.Questions))
	return quiz, nil
}

// GetQuiz returns a stored quiz.
func (s *QuizService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}
