package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Sessions are cloned on the way in and out so callers never share slices with the store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.Session),
	}
}

func (s *SessionStore) FindByCode(_ context.Context, code string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[code]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *SessionStore) FindOpenByQuiz(_ context.Context, quizID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.QuizID == quizID && session.Status != domain.StatusCompleted {
			return session.Clone(), nil
		}
	}
	return domain.Session{}, domain.ErrSessionNotFound
}

func (s *SessionStore) Create(_ context.Context, session domain.Session) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.Code]; ok {
		return domain.Session{}, domain.ErrSessionCodeTaken
	}
	session.Version = 1
	s.sessions[session.Code] = session.Clone()
	return session, nil
}

func (s *SessionStore) Save(_ context.Context, session domain.Session) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[session.Code]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if current.Version != session.Version {
		return domain.Session{}, domain.ErrStaleSession
	}
	session.Version++
	s.sessions[session.Code] = session.Clone()
	return session, nil
}

func (s *SessionStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, code)
	return nil
}
