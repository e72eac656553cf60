package realtime

import (
	"log/slog"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// Broadcaster turns committed session changes into room frames. The session service calls it
// with the session locked, and the hub enqueues without blocking, so rooms see changes in
// commit order.
type Broadcaster struct {
	hub *Hub
	now func() time.Time
	log *slog.Logger
}

var _ app.Notifier = (*Broadcaster)(nil)

func NewBroadcaster(hub *Hub, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{hub: hub, now: time.Now, log: logger}
}

func (b *Broadcaster) QuizStarted(code string) {
	b.broadcast(code, EventQuizStarted, Notice{Message: "Quiz is starting!"})
}

func (b *Broadcaster) QuestionRevealed(code string, q app.QuestionView) {
	b.broadcast(code, EventNewQuestion, QuestionPayload(q))
}

func (b *Broadcaster) QuizCompleted(code string) {
	b.broadcast(code, EventQuizCompleted, Notice{Message: "Quiz completed! Check final results."})
}

// AnswerRecorded tells the room who answered, never what they answered, then refreshes the leaderboard.
func (b *Broadcaster) AnswerRecorded(code string, participant domain.Participant, correct bool, lb domain.Leaderboard) {
	b.broadcast(code, EventParticipantAnswered, ParticipantAnswered{
		ParticipantName: participant.Name,
		IsCorrect:       correct,
		Timestamp:       b.now().UTC(),
	})
	b.LeaderboardChanged(code, lb)
}

func (b *Broadcaster) LeaderboardChanged(code string, lb domain.Leaderboard) {
	b.broadcast(code, EventLeaderboardUpdate, LeaderboardPayload(lb))
}

func (b *Broadcaster) broadcast(code, event string, payload any) {
	if err := b.hub.Broadcast(code, event, payload); err != nil {
		b.log.Error("broadcast failed", "session_code", code, "event", event, "error", err)
	}
}

// QuestionPayload renders a question for participants.
func QuestionPayload(q app.QuestionView) NewQuestion {
	return NewQuestion{
		QuestionIndex:  q.Index,
		Question:       QuestionBody{Question: q.Text, Options: q.Options},
		TotalQuestions: q.Total,
		TimeLimit:      q.TimeLimit,
	}
}

// LeaderboardPayload keeps the list non-nil so clients always get an array.
func LeaderboardPayload(lb domain.Leaderboard) domain.Leaderboard {
	if lb.Entries == nil {
		lb.Entries = []domain.LeaderboardEntry{}
	}
	return lb
}
