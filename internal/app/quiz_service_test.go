package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

type stubGenerator struct {
	questions []domain.Question
	err       error
	got       app.GenerateRequest
}

func (g *stubGenerator) Generate(_ context.Context, req app.GenerateRequest) ([]domain.Question, error) {
	g.got = req
	return g.questions, g.err
}

func TestQuizService_CreateQuiz(t *testing.T) {
	gen := &stubGenerator{questions: testQuiz().Questions}
	repo := memory.NewQuizRepository(memory.NewQuizStore(), time.Minute)
	svc := app.NewQuizService(repo, gen, nil)
	ctx := context.Background()

	quiz, err := svc.CreateQuiz(ctx, app.CreateQuizRequest{Title: " Capitals ", Topic: "geography"})
	require.NoError(t, err)
	require.NotEmpty(t, quiz.ID)
	require.Equal(t, "Capitals", quiz.Title)
	require.Equal(t, domain.DifficultyMedium, quiz.Difficulty)
	require.False(t, quiz.IsActive)
	require.Equal(t, app.GenerateRequest{Topic: "geography", Count: 5, Difficulty: domain.DifficultyMedium}, gen.got)

	stored, err := svc.GetQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	require.Equal(t, quiz.Questions, stored.Questions)
}

func TestQuizService_CreateQuizFailures(t *testing.T) {
	badQuestion := domain.Question{Text: "Broken", Options: []string{"a", "b", "c", "d"}, CorrectOptionIndex: 4}

	tests := map[string]struct {
		gen  app.Generator
		req  app.CreateQuizRequest
		want *domain.Error
	}{
		"missing topic": {
			gen:  &stubGenerator{questions: testQuiz().Questions},
			req:  app.CreateQuizRequest{Title: "t"},
			want: domain.ErrMalformedRequest,
		},
		"unknown difficulty": {
			gen:  &stubGenerator{questions: testQuiz().Questions},
			req:  app.CreateQuizRequest{Title: "t", Topic: "x", Difficulty: "impossible"},
			want: domain.ErrMalformedRequest,
		},
		"too many questions": {
			gen:  &stubGenerator{questions: testQuiz().Questions},
			req:  app.CreateQuizRequest{Title: "t", Topic: "x", NumQuestions: 500},
			want: domain.ErrMalformedRequest,
		},
		"no generator": {
			gen:  nil,
			req:  app.CreateQuizRequest{Title: "t", Topic: "x"},
			want: domain.ErrGeneratorUnavailable,
		},
		"generator failure": {
			gen:  &stubGenerator{err: errors.New("quota exceeded")},
			req:  app.CreateQuizRequest{Title: "t", Topic: "x"},
			want: domain.ErrGeneration,
		},
		"generator returns invalid question": {
			gen:  &stubGenerator{questions: []domain.Question{badQuestion}},
			req:  app.CreateQuizRequest{Title: "t", Topic: "x"},
			want: domain.ErrGeneration,
		},
		"generator returns nothing": {
			gen:  &stubGenerator{},
			req:  app.CreateQuizRequest{Title: "t", Topic: "x"},
			want: domain.ErrGeneration,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			repo := memory.NewQuizRepository(memory.NewQuizStore(), time.Minute)
			svc := app.NewQuizService(repo, tt.gen, nil)

			_, err := svc.CreateQuiz(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
}
