package domain

import (
	"sort"
	"strings"
	"time"
)

const (
	// PointsPerCorrectAnswer is the flat award for a correct answer; response time is not scored.
	PointsPerCorrectAnswer = 100
	// LeaderboardSize caps the number of ranked entries broadcast to clients.
	LeaderboardSize = 10
)

// NewSession builds a waiting session for quizID.
func NewSession(code, quizID string, settings Settings, now time.Time) Session {
	return Session{
		Code:                 code,
		QuizID:               quizID,
		Status:               StatusWaiting,
		CurrentQuestionIndex: NotStarted,
		Participants:         []Participant{},
		Settings:             settings,
		CreatedAt:            now,
	}
}

// Clone returns a deep copy so stores never share slices with callers.
func (s Session) Clone() Session {
	c := s
	c.Participants = make([]Participant, len(s.Participants))
	for i, p := range s.Participants {
		p.Answers = append([]Answer(nil), p.Answers...)
		c.Participants[i] = p
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return c
}

// Start moves a waiting session to active. Starting an active session only confirms it.
func (s *Session) Start(now time.Time) error {
	switch s.Status {
	case StatusCompleted:
		return ErrSessionCompleted
	case StatusWaiting:
		s.Status = StatusActive
		s.StartedAt = &now
	}
	if s.StartedAt == nil {
		s.StartedAt = &now
	}
	return nil
}

// Resume re-activates an open session and restamps its start time.
func (s *Session) Resume(now time.Time) error {
	if s.Status == StatusCompleted {
		return ErrSessionCompleted
	}
	s.Status = StatusActive
	s.StartedAt = &now
	return nil
}

// AdvanceOutcome describes what an advance revealed.
type AdvanceOutcome struct {
	// Completed is set when the questions were exhausted and the session ended.
	Completed     bool
	QuestionIndex int
}

// Advance reveals the next question, or completes the session when none remain.
func (s *Session) Advance(questionCount int, now time.Time) (AdvanceOutcome, error) {
	switch s.Status {
	case StatusCompleted:
		return AdvanceOutcome{}, ErrSessionCompleted
	case StatusActive:
	default:
		return AdvanceOutcome{}, ErrSessionNotActive.WithMessagef("session %s has not been started", s.Code)
	}

	next := s.CurrentQuestionIndex + 1
	if next < questionCount {
		s.CurrentQuestionIndex = next
		return AdvanceOutcome{QuestionIndex: next}, nil
	}

	s.Status = StatusCompleted
	s.EndedAt = &now
	return AdvanceOutcome{Completed: true, QuestionIndex: s.CurrentQuestionIndex}, nil
}

// End completes the session before its questions are exhausted.
func (s *Session) End(now time.Time) error {
	if s.Status == StatusCompleted {
		return ErrSessionCompleted
	}
	s.Status = StatusCompleted
	s.EndedAt = &now
	return nil
}

// Reset rewinds the session for a re-run with the same roster.
func (s *Session) Reset() {
	s.CurrentQuestionIndex = NotStarted
	s.Status = StatusActive
	s.EndedAt = nil
	for i := range s.Participants {
		s.Participants[i].Score = 0
		s.Participants[i].Answers = []Answer{}
	}
}

// FindByName looks a participant up case-insensitively.
func (s *Session) FindByName(name string) (*Participant, bool) {
	for i := range s.Participants {
		if strings.EqualFold(s.Participants[i].Name, name) {
			return &s.Participants[i], true
		}
	}
	return nil, false
}

// FindByID looks a participant up by id.
func (s *Session) FindByID(id string) (*Participant, bool) {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return &s.Participants[i], true
		}
	}
	return nil, false
}

// EnrollRequest carries the identity of a joining participant.
type EnrollRequest struct {
	Name string
	// ID is optional; a fresh one is generated when empty or already held by someone else.
	ID    string
	NewID func() string
	Now   time.Time
	// Rejoin returns the existing participant when the name is taken instead of failing.
	Rejoin bool
}

// Enroll adds a participant under the case-insensitive unique name rule.
// The returned bool is true when a new participant was added.
func (s *Session) Enroll(req EnrollRequest) (Participant, bool, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Participant{}, false, ErrMalformedRequest.WithMessagef("participant name is required")
	}

	if existing, ok := s.FindByName(name); ok {
		if !req.Rejoin {
			return Participant{}, false, ErrDuplicateName
		}
		return *existing, false, nil
	}

	if s.Status == StatusCompleted {
		return Participant{}, false, ErrSessionClosed
	}

	id := req.ID
	if _, taken := s.FindByID(id); id == "" || taken {
		id = req.NewID()
	}

	p := Participant{
		ID:       id,
		Name:     name,
		JoinedAt: req.Now,
		Score:    0,
		Answers:  []Answer{},
	}
	s.Participants = append(s.Participants, p)
	return p, true, nil
}

// RecordAnswer scores one answer, enforcing at most one answer per participant and question.
// The session is left untouched on error.
func (s *Session) RecordAnswer(quiz Quiz, participantID string, questionIndex, selected int, now time.Time) (AnswerResult, Participant, error) {
	participant, ok := s.FindByID(participantID)
	if !ok {
		return AnswerResult{}, Participant{}, ErrParticipantNotFound
	}
	if questionIndex < 0 || questionIndex >= len(quiz.Questions) {
		return AnswerResult{}, Participant{}, ErrInvalidQuestionIndex.WithMessagef("question index %d out of range [0,%d)", questionIndex, len(quiz.Questions))
	}
	question := quiz.Questions[questionIndex]
	if selected < 0 || selected >= len(question.Options) {
		return AnswerResult{}, Participant{}, ErrInvalidOptionIndex.WithMessagef("option index %d out of range [0,%d)", selected, len(question.Options))
	}
	for _, a := range participant.Answers {
		if a.QuestionIndex == questionIndex {
			return AnswerResult{}, Participant{}, ErrDuplicateAnswer
		}
	}

	correct := selected == question.CorrectOptionIndex
	points := 0
	if correct {
		points = PointsPerCorrectAnswer
	}

	participant.Answers = append(participant.Answers, Answer{
		QuestionIndex:       questionIndex,
		SelectedOptionIndex: selected,
		IsCorrect:           correct,
		AnsweredAt:          now,
	})
	participant.Score += points

	return AnswerResult{
		IsCorrect:          correct,
		PointsAwarded:      points,
		TotalScore:         participant.Score,
		CorrectOptionIndex: question.CorrectOptionIndex,
		Explanation:        question.Explanation,
	}, *participant, nil
}

// Leaderboard ranks participants by score, keeping join order among equal scores.
func (s *Session) Leaderboard() Leaderboard {
	entries := make([]LeaderboardEntry, 0, len(s.Participants))
	for _, p := range s.Participants {
		entries = append(entries, LeaderboardEntry{
			Name:          p.Name,
			Score:         p.Score,
			AnsweredCount: len(p.Answers),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if len(entries) > LeaderboardSize {
		entries = entries[:LeaderboardSize]
	}

	return Leaderboard{
		Entries:           entries,
		TotalParticipants: len(s.Participants),
	}
}
