package domain

import "time"

// Difficulty of a generated quiz.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// OptionCount is the number of options every question carries.
const OptionCount = 4

// Question models an MCQ question. Options are revealed in order; CorrectOptionIndex indexes Options.
type Question struct {
	Text               string   `json:"question" yaml:"question"`
	Options            []string `json:"options" yaml:"options"`
	CorrectOptionIndex int      `json:"correctAnswer" yaml:"correctAnswer"`
	Explanation        string   `json:"explanation,omitempty" yaml:"explanation"`
}

// Validate checks the option count and the correct index.
func (q Question) Validate() error {
	if q.Text == "" {
		return ErrInvalidQuiz.WithMessagef("question text is empty")
	}
	if len(q.Options) != OptionCount {
		return ErrInvalidQuiz.WithMessagef("question %q must have %d options, got %d", q.Text, OptionCount, len(q.Options))
	}
	if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
		return ErrInvalidQuiz.WithMessagef("question %q has invalid correct answer %d", q.Text, q.CorrectOptionIndex)
	}
	return nil
}

// Quiz is an ordered collection of questions. Only SessionCode and IsActive change after creation.
type Quiz struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Topic       string     `json:"topic" yaml:"topic"`
	Difficulty  Difficulty `json:"difficulty" yaml:"difficulty"`
	Questions   []Question `json:"questions" yaml:"questions"`
	SessionCode string     `json:"sessionCode,omitempty" yaml:"sessionCode"`
	IsActive    bool       `json:"isActive" yaml:"isActive"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt"`
}

// Validate checks every question of the quiz.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return ErrInvalidQuiz.WithMessagef("quiz has no questions")
	}
	if q.Difficulty != "" && !q.Difficulty.Valid() {
		return ErrInvalidQuiz.WithMessagef("unknown difficulty %q", q.Difficulty)
	}
	for _, question := range q.Questions {
		if err := question.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Status of a session.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// NotStarted is the CurrentQuestionIndex of a session before its first advance.
const NotStarted = -1

// Answer records one participant's answer to one question.
type Answer struct {
	QuestionIndex       int       `json:"questionIndex"`
	SelectedOptionIndex int       `json:"selectedOptionIndex"`
	IsCorrect           bool      `json:"isCorrect"`
	AnsweredAt          time.Time `json:"answeredAt"`
}

// Participant represents a quiz participant and their accumulated score.
type Participant struct {
	ID       string    `json:"participantId"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
	Score    int       `json:"score"`
	Answers  []Answer  `json:"answers"`
}

// Settings are advisory values sent to clients.
type Settings struct {
	TimePerQuestion int  `json:"timePerQuestion"`
	ShowLeaderboard bool `json:"showLeaderboard"`
}

// Session is one live run of a quiz. Participants are kept in join order.
type Session struct {
	Code                 string        `json:"sessionCode"`
	QuizID               string        `json:"quizId"`
	Status               Status        `json:"status"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	Participants         []Participant `json:"participants"`
	Settings             Settings      `json:"settings"`
	CreatedAt            time.Time     `json:"createdAt"`
	StartedAt            *time.Time    `json:"startedAt,omitempty"`
	EndedAt              *time.Time    `json:"endedAt,omitempty"`
	// Version increments on every save; stores reject saves made from an older version.
	Version int64 `json:"version"`
}

// LeaderboardEntry is a ranked view of a participant.
type LeaderboardEntry struct {
	Name          string `json:"name"`
	Score         int    `json:"score"`
	AnsweredCount int    `json:"answeredCount"`
}

// Leaderboard captures the ordered scoreboard for a session.
type Leaderboard struct {
	Entries           []LeaderboardEntry `json:"leaderboard"`
	TotalParticipants int                `json:"totalParticipants"`
}

// AnswerResult is the private outcome of a submission.
type AnswerResult struct {
	IsCorrect          bool   `json:"isCorrect"`
	PointsAwarded      int    `json:"pointsAwarded"`
	TotalScore         int    `json:"totalScore"`
	CorrectOptionIndex int    `json:"correctOptionIndex"`
	Explanation        string `json:"explanation,omitempty"`
}
