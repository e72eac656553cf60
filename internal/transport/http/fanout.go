package http

import (
	"log/slog"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/realtime"
)

// fanout pushes roster changes and client relays to a room. Committed session changes go
// through the service's notifier instead.
type fanout struct {
	hub *realtime.Hub
	now func() time.Time
	log *slog.Logger
}

func newFanout(hub *realtime.Hub, logger *slog.Logger) *fanout {
	return &fanout{hub: hub, now: time.Now, log: logger}
}

func (f *fanout) participantCount(code string, count int) {
	f.broadcast(code, nil, realtime.EventParticipantCount, realtime.ParticipantCount{Count: count})
}

// participantJoined notifies everyone but the joiner (nil when the join came over REST).
func (f *fanout) participantJoined(code string, joiner *realtime.Client, name string, total int) {
	f.broadcast(code, joiner, realtime.EventParticipantUpdate, realtime.ParticipantUpdate{
		Action:            "joined",
		ParticipantName:   name,
		TotalParticipants: total,
	})
}

// answerRelayed repeats a client's answer notice to the rest of the room.
func (f *fanout) answerRelayed(code string, origin *realtime.Client, name string, correct bool) {
	f.broadcast(code, origin, realtime.EventParticipantAnswered, realtime.ParticipantAnswered{
		ParticipantName: name,
		IsCorrect:       correct,
		Timestamp:       f.now().UTC(),
	})
}

func (f *fanout) broadcast(code string, except *realtime.Client, event string, payload any) {
	if err := f.hub.BroadcastExcept(code, except, event, payload); err != nil {
		f.log.Error("broadcast failed", "session_code", code, "event", event, "error", err)
	}
}

func sessionStatePayload(s app.Snapshot) realtime.SessionState {
	return realtime.SessionState{
		Status:               s.Status,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		ParticipantCount:     s.ParticipantCount,
		QuizTitle:            s.QuizTitle,
		TotalQuestions:       s.TotalQuestions,
	}
}
