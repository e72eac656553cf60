package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-service/internal/domain"
)

const (
	uniqueViolation      = "23505"
	sessionCodeIndexName = "quizzes_session_code_key"
)

// QuizStore keeps each quiz as a JSONB document. The session code and active flag
// live in their own columns so the sparse unique index can guard codes.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var (
		raw      []byte
		code     *string
		isActive bool
	)
	err := s.pool.QueryRow(ctx,
		`SELECT data, session_code, is_active FROM quizzes WHERE id=$1`, quizID,
	).Scan(&raw, &code, &isActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.ID = quizID
	quiz.IsActive = isActive
	quiz.SessionCode = ""
	if code != nil {
		quiz.SessionCode = *code
	}
	return quiz, nil
}

func (s *QuizStore) InsertQuiz(ctx context.Context, quiz domain.Quiz) error {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quizzes (id, session_code, is_active, data, created_at)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5)`,
		quiz.ID, quiz.SessionCode, quiz.IsActive, raw, quiz.CreatedAt,
	)
	if err != nil {
		return mapWriteError("insert quiz", err)
	}
	return nil
}

func (s *QuizStore) LinkSession(ctx context.Context, quizID, code string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quizzes SET session_code=$2, is_active=TRUE WHERE id=$1`, quizID, code,
	)
	if err != nil {
		return mapWriteError("link session", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == sessionCodeIndexName {
			return domain.ErrSessionCodeTaken.WithCause(err)
		}
		return domain.ErrInvalidQuiz.WithMessagef("quiz already exists").WithCause(err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
