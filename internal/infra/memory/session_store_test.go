package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	session := domain.NewSession("123456", "quiz-1", domain.Settings{TimePerQuestion: 30}, time.Now())

	created, err := store.Create(ctx, session)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}
	if _, err := store.Create(ctx, session); !errors.Is(err, domain.ErrSessionCodeTaken) {
		t.Fatalf("expected code taken, got %v", err)
	}

	open, err := store.FindOpenByQuiz(ctx, "quiz-1")
	if err != nil || open.Code != "123456" {
		t.Fatalf("expected open session, got %+v err=%v", open, err)
	}

	created.Status = domain.StatusCompleted
	saved, err := store.Save(ctx, created)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Version != 2 {
		t.Fatalf("expected version 2, got %d", saved.Version)
	}
	if _, err := store.FindOpenByQuiz(ctx, "quiz-1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected no open session, got %v", err)
	}

	if err := store.Delete(ctx, "123456"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.FindByCode(ctx, "123456"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session removed, got %v", err)
	}
}

func TestSessionStoreRejectsStaleSave(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	created, err := store.Create(ctx, domain.NewSession("123456", "quiz-1", domain.Settings{}, time.Now()))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first := created
	second := created
	if _, err := store.Save(ctx, first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := store.Save(ctx, second); !errors.Is(err, domain.ErrStaleSession) {
		t.Fatalf("expected stale session, got %v", err)
	}
}

func TestSessionStoreReturnsCopies(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	session := domain.NewSession("123456", "quiz-1", domain.Settings{}, time.Now())
	session.Participants = append(session.Participants, domain.Participant{ID: "p1", Name: "Ava"})
	if _, err := store.Create(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}

	loaded, _ := store.FindByCode(ctx, "123456")
	loaded.Participants[0].Score = 500

	again, _ := store.FindByCode(ctx, "123456")
	if again.Participants[0].Score != 0 {
		t.Fatalf("store state leaked through a returned session")
	}
}
