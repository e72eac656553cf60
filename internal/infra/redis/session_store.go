package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
)

// SessionStore keeps each session as one JSON document in Redis.
// Keys:
//   - quiz:session:{code}       session document
//   - quiz:session:open:{quizID} code of the quiz's non-completed session
//
// Saves run inside WATCH/MULTI so a concurrent writer surfaces as domain.ErrStaleSession.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore builds the store. A zero ttl keeps sessions until they are deleted.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) FindByCode(ctx context.Context, code string) (domain.Session, error) {
	return s.get(ctx, s.client, code)
}

func (s *SessionStore) FindOpenByQuiz(ctx context.Context, quizID string) (domain.Session, error) {
	code, err := s.client.Get(ctx, s.openKey(quizID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get open session: %w", err)
	}
	session, err := s.get(ctx, s.client, code)
	if err != nil {
		return domain.Session{}, err
	}
	if session.Status == domain.StatusCompleted || session.QuizID != quizID {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) Create(ctx context.Context, session domain.Session) (domain.Session, error) {
	session.Version = 1
	raw, err := json.Marshal(session)
	if err != nil {
		return domain.Session{}, fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(session.Code), raw, s.ttl).Result()
	if err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return domain.Session{}, domain.ErrSessionCodeTaken
	}
	if session.Status != domain.StatusCompleted {
		if err := s.client.Set(ctx, s.openKey(session.QuizID), session.Code, s.ttl).Err(); err != nil {
			return domain.Session{}, fmt.Errorf("index session: %w", err)
		}
	}
	return session, nil
}

func (s *SessionStore) Save(ctx context.Context, session domain.Session) (domain.Session, error) {
	key := s.key(session.Code)
	var saved domain.Session

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.get(ctx, tx, session.Code)
		if err != nil {
			return err
		}
		if current.Version != session.Version {
			return domain.ErrStaleSession
		}

		saved = session
		saved.Version++
		raw, err := json.Marshal(saved)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		openKey := s.openKey(saved.QuizID)
		openCode, err := tx.Get(ctx, openKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("get open session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			switch {
			case saved.Status != domain.StatusCompleted:
				pipe.Set(ctx, openKey, saved.Code, s.ttl)
			case openCode == saved.Code:
				pipe.Del(ctx, openKey)
			}
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return domain.Session{}, domain.ErrStaleSession
	}
	if err != nil {
		return domain.Session{}, err
	}
	return saved, nil
}

func (s *SessionStore) Delete(ctx context.Context, code string) error {
	session, err := s.get(ctx, s.client, code)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	openKey := s.openKey(session.QuizID)
	openCode, err := s.client.Get(ctx, openKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get open session: %w", err)
	}
	keys := []string{s.key(code)}
	if openCode == code {
		keys = append(keys, openKey)
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *SessionStore) get(ctx context.Context, c getter, code string) (domain.Session, error) {
	raw, err := c.Get(ctx, s.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *SessionStore) key(code string) string {
	return "quiz:session:" + code
}

func (s *SessionStore) openKey(quizID string) string {
	return "quiz:session:open:" + quizID
}
