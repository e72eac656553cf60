package realtime

import (
	"encoding/json"
	"time"

	"live-quiz-service/internal/domain"
)

// Server to client events.
const (
	EventSessionState        = "session-state"
	EventParticipantJoined   = "participant-joined"
	EventParticipantCount    = "participant-count"
	EventParticipantUpdate   = "participant-update"
	EventQuizStarted         = "quiz-started"
	EventNewQuestion         = "new-question"
	EventQuizCompleted       = "quiz-completed"
	EventParticipantAnswered = "participant-answered"
	EventLeaderboardUpdate   = "leaderboard-update"
	EventError               = "error"
)

// Message is the wire envelope of every frame.
type Message[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// Encode renders one frame.
func Encode(event string, payload any) ([]byte, error) {
	return json.Marshal(Message[any]{Type: event, Payload: payload})
}

type SessionState struct {
	Status               domain.Status `json:"status"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	ParticipantCount     int           `json:"participantCount"`
	QuizTitle            string        `json:"quizTitle"`
	TotalQuestions       int           `json:"totalQuestions"`
}

type ParticipantJoined struct {
	ParticipantID   string `json:"participantId"`
	ParticipantName string `json:"participantName"`
}

type ParticipantCount struct {
	Count int `json:"count"`
}

type ParticipantUpdate struct {
	Action            string `json:"action"`
	ParticipantName   string `json:"participantName"`
	TotalParticipants int    `json:"totalParticipants"`
}

type Notice struct {
	Message string `json:"message"`
}

// QuestionBody never carries the correct answer or the explanation.
type QuestionBody struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type NewQuestion struct {
	QuestionIndex  int          `json:"questionIndex"`
	Question       QuestionBody `json:"question"`
	TotalQuestions int          `json:"totalQuestions"`
	TimeLimit      int          `json:"timeLimit"`
}

type ParticipantAnswered struct {
	ParticipantName string    `json:"participantName"`
	IsCorrect       bool      `json:"isCorrect"`
	Timestamp       time.Time `json:"timestamp"`
}

type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
