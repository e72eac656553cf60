package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/realtime"
)

const testCode = "123456"

type testEnv struct {
	server   *httptest.Server
	sessions *app.SessionService
	hub      *realtime.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, memory.NewSessionStore())
}

func newTestEnvWithStore(t *testing.T, store app.SessionRepository) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	quizzes := memory.NewQuizRepository(memory.NewQuizStore(memory.SampleQuizzes()...), time.Minute)
	hub := realtime.NewHub(nil)
	sessions := app.NewSessionService(store, quizzes, app.DefaultSessionConfig(),
		app.WithCodeGenerator(func() string { return testCode }),
		app.WithNotifier(realtime.NewBroadcaster(hub, nil)),
	)
	router := NewRouter(RouterConfig{}, sessions, app.NewQuizService(quizzes, nil, nil), hub)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{server: server, sessions: sessions, hub: hub}
}

func (e *testEnv) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp)
}

func (e *testEnv) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func (e *testEnv) startSession(t *testing.T) string {
	t.Helper()
	status, body := e.post(t, "/api/sessions/start", map[string]any{"quizId": "quiz-1"})
	require.Equal(t, http.StatusOK, status)
	return body["sessionCode"].(string)
}

func TestAPI_SessionFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	status, body := env.post(t, "/api/sessions/start", map[string]any{"quizId": "quiz-1"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, testCode, body["sessionCode"])
	require.Equal(t, "active", body["status"])
	require.Equal(t, "Warm-up", body["quizTitle"])
	require.Equal(t, float64(3), body["totalQuestions"])
	require.Equal(t, false, body["resumed"])

	status, body = env.post(t, "/api/sessions/start", map[string]any{"quizId": "quiz-1"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, testCode, body["sessionCode"])
	require.Equal(t, true, body["resumed"])

	status, body = env.post(t, "/api/sessions/join", map[string]any{"sessionCode": testCode, "participantName": "Ava"})
	require.Equal(t, http.StatusOK, status)
	avaID := body["participantId"].(string)
	require.NotEmpty(t, avaID)
	require.Equal(t, "Ava", body["name"])
	require.Equal(t, float64(-1), body["currentQuestion"])

	status, body = env.post(t, "/api/sessions/join", map[string]any{"sessionCode": testCode, "participantName": "ava"})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "DuplicateName", body["code"])
	require.Equal(t, false, body["success"])

	_, err := env.sessions.Advance(ctx, testCode)
	require.NoError(t, err)

	status, body = env.post(t, "/api/sessions/answer", map[string]any{
		"sessionCode": testCode, "participantId": avaID, "questionIndex": 0, "selectedOptionIndex": 1,
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["isCorrect"])
	require.Equal(t, true, body["success"])
	require.Equal(t, float64(100), body["pointsAwarded"])
	require.Equal(t, float64(100), body["totalScore"])
	require.Equal(t, float64(1), body["correctOptionIndex"])
	require.Equal(t, "2 + 2 equals 4", body["explanation"])

	status, body = env.post(t, "/api/sessions/answer", map[string]any{
		"sessionCode": testCode, "participantId": avaID, "questionIndex": 0, "selectedOptionIndex": 2,
	})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "DuplicateAnswer", body["code"])

	status, body = env.get(t, "/api/sessions/"+testCode+"/leaderboard")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	require.Equal(t, float64(1), body["totalParticipants"])
	entries := body["leaderboard"].([]any)
	require.Len(t, entries, 1)
	require.Equal(t, map[string]any{"name": "Ava", "score": float64(100), "answeredCount": float64(1)}, entries[0])

	status, body = env.get(t, "/api/sessions/"+testCode)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	require.Equal(t, testCode, body["sessionCode"])
	require.Equal(t, float64(0), body["currentQuestionIndex"])
	require.Equal(t, float64(1), body["participantCount"])

	status, _ = env.post(t, "/api/sessions/reset", map[string]any{"sessionCode": testCode})
	require.Equal(t, http.StatusOK, status)

	status, body = env.get(t, "/api/sessions/"+testCode+"/results")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	require.Equal(t, "Warm-up", body["quizTitle"])
	participants := body["participants"].([]any)
	require.Len(t, participants, 1)
	ava := participants[0].(map[string]any)
	require.Equal(t, float64(0), ava["score"])
	require.Empty(t, ava["answers"])

	status, _ = env.post(t, "/api/sessions/end", map[string]any{"sessionCode": testCode})
	require.Equal(t, http.StatusOK, status)
	status, body = env.post(t, "/api/sessions/end", map[string]any{"sessionCode": testCode})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "SessionCompleted", body["code"])

	status, body = env.post(t, "/api/sessions/join", map[string]any{"sessionCode": testCode, "participantName": "Ben"})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "SessionClosed", body["code"])
}

func TestAPI_SubmitAnswerFieldNames(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	code := env.startSession(t)
	ava, err := env.sessions.JoinSession(ctx, code, "Ava")
	require.NoError(t, err)

	status, body := env.post(t, "/api/sessions/answer", map[string]any{
		"sessionCode": code, "participantId": ava.Participant.ID, "questionIndex": 1, "selectedAnswer": 0,
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["isCorrect"])
	require.Equal(t, float64(100), body["pointsAwarded"])
	require.Equal(t, float64(0), body["correctOptionIndex"])
	require.NotContains(t, body, "points")
	require.NotContains(t, body, "correctAnswer")

	status, body = env.get(t, "/api/sessions/"+code+"/results")
	require.Equal(t, http.StatusOK, status)
	answers := body["participants"].([]any)[0].(map[string]any)["answers"].([]any)
	require.Len(t, answers, 1)
	stored := answers[0].(map[string]any)
	require.Equal(t, float64(0), stored["selectedOptionIndex"])
	require.NotContains(t, stored, "selectedAnswer")
}

func TestAPI_Errors(t *testing.T) {
	env := newTestEnv(t)
	code := env.startSession(t)

	tests := map[string]struct {
		method   string
		path     string
		body     any
		wantCode int
		wantErr  string
	}{
		"unknown session": {
			method: http.MethodGet, path: "/api/sessions/999999",
			wantCode: http.StatusNotFound, wantErr: "SessionNotFound",
		},
		"unknown quiz": {
			method: http.MethodPost, path: "/api/sessions/start", body: map[string]any{"quizId": "missing"},
			wantCode: http.StatusNotFound, wantErr: "QuizNotFound",
		},
		"start without quiz id": {
			method: http.MethodPost, path: "/api/sessions/start", body: map[string]any{},
			wantCode: http.StatusBadRequest, wantErr: "MalformedRequest",
		},
		"answer without question index": {
			method: http.MethodPost, path: "/api/sessions/answer",
			body:     map[string]any{"sessionCode": code, "participantId": "p1", "selectedOptionIndex": 1},
			wantCode: http.StatusBadRequest, wantErr: "MalformedRequest",
		},
		"answer from unknown participant": {
			method: http.MethodPost, path: "/api/sessions/answer",
			body:     map[string]any{"sessionCode": code, "participantId": "nobody", "questionIndex": 0, "selectedOptionIndex": 1},
			wantCode: http.StatusNotFound, wantErr: "ParticipantNotFound",
		},
		"quiz creation without generator": {
			method: http.MethodPost, path: "/api/quizzes", body: map[string]any{"title": "Go", "topic": "goroutines"},
			wantCode: http.StatusBadGateway, wantErr: "GeneratorUnavailable",
		},
		"quiz creation without topic": {
			method: http.MethodPost, path: "/api/quizzes", body: map[string]any{"title": "Go"},
			wantCode: http.StatusBadRequest, wantErr: "MalformedRequest",
		},
		"unknown quiz lookup": {
			method: http.MethodGet, path: "/api/quizzes/missing",
			wantCode: http.StatusNotFound, wantErr: "QuizNotFound",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var (
				status int
				body   map[string]any
			)
			if tt.method == http.MethodGet {
				status, body = env.get(t, tt.path)
			} else {
				status, body = env.post(t, tt.path, tt.body)
			}
			require.Equal(t, tt.wantCode, status)
			require.Equal(t, tt.wantErr, body["code"])
			require.Equal(t, false, body["success"])
			require.NotEmpty(t, body["error"])
		})
	}
}

func TestAPI_MalformedJSON(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Post(env.server.URL+"/api/sessions/join", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "MalformedRequest", decodeBody(t, resp)["code"])
}

func TestAPI_GetQuizAndHealth(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/api/quizzes/quiz-1")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	require.Equal(t, "Warm-up", body["title"])
	require.Len(t, body["questions"], 3)

	status, body = env.get(t, "/healthz")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://quiz.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	require.True(t, check(req), "non-browser clients send no origin")

	req.Header.Set("Origin", "https://quiz.example.com")
	require.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	require.False(t, check(req))

	require.True(t, originChecker(nil)(req))
	require.True(t, originChecker([]string{"*"})(req))
}
