package app

import (
	"context"

	"live-quiz-service/internal/domain"
)

// SessionRepository persists sessions as whole documents (in-memory, Redis, etc).
// Save must reject a session whose Version no longer matches the stored one with domain.ErrStaleSession.
type SessionRepository interface {
	FindByCode(ctx context.Context, code string) (domain.Session, error)
	// FindOpenByQuiz returns the non-completed session of a quiz, or domain.ErrSessionNotFound.
	FindOpenByQuiz(ctx context.Context, quizID string) (domain.Session, error)
	// Create stores a new session; an existing code yields domain.ErrSessionCodeTaken.
	Create(ctx context.Context, session domain.Session) (domain.Session, error)
	Save(ctx context.Context, session domain.Session) (domain.Session, error)
	Delete(ctx context.Context, code string) error
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	CreateQuiz(ctx context.Context, quiz domain.Quiz) error
	// LinkSession records code as the quiz's session code and marks it active.
	// A code already held by another quiz yields domain.ErrSessionCodeTaken.
	LinkSession(ctx context.Context, quizID, code string) error
}

// ScoreRecorder mirrors scores into an external ranking (e.g. a Redis sorted set).
type ScoreRecorder interface {
	RecordScore(ctx context.Context, code, name string, score int) error
	ClearScores(ctx context.Context, code string) error
}

// Notifier is told about committed session changes. It is called while the session is still
// locked, so listeners see changes in commit order. Implementations must not block and must
// not call back into the SessionService.
type Notifier interface {
	QuizStarted(code string)
	QuestionRevealed(code string, q QuestionView)
	QuizCompleted(code string)
	AnswerRecorded(code string, participant domain.Participant, correct bool, lb domain.Leaderboard)
	LeaderboardChanged(code string, lb domain.Leaderboard)
}

// GenerateRequest describes the questions a Generator should produce.
type GenerateRequest struct {
	Topic      string
	Count      int
	Difficulty domain.Difficulty
}

// Generator produces quiz questions, typically by calling an AI model.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]domain.Question, error)
}

type noopScores struct{}

func (noopScores) RecordScore(context.Context, string, string, int) error { return nil }
func (noopScores) ClearScores(context.Context, string) error              { return nil }

type noopNotifier struct{}

func (noopNotifier) QuizStarted(string)                                                  {}
func (noopNotifier) QuestionRevealed(string, QuestionView)                               {}
func (noopNotifier) QuizCompleted(string)                                                {}
func (noopNotifier) AnswerRecorded(string, domain.Participant, bool, domain.Leaderboard) {}
func (noopNotifier) LeaderboardChanged(string, domain.Leaderboard)                       {}
