package app

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"live-quiz-service/internal/domain"
)

// SessionConfig tunes how sessions are created.
type SessionConfig struct {
	TimePerQuestion int
	ShowLeaderboard bool
	// AutoStart activates a freshly created session right away.
	AutoStart bool
	// CodeAttempts bounds the regenerate-on-conflict loop for session codes.
	CodeAttempts int
}

// DefaultSessionConfig mirrors what educators get without any configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TimePerQuestion: 30,
		ShowLeaderboard: true,
		AutoStart:       true,
		CodeAttempts:    20,
	}
}

// Option customises a SessionService.
type Option func(*SessionService)

// WithClock replaces time.Now, mainly for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *SessionService) { s.now = now }
}

// WithIDGenerator replaces the participant id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *SessionService) { s.newID = newID }
}

// WithCodeGenerator replaces the session code generator.
func WithCodeGenerator(newCode func() string) Option {
	return func(s *SessionService) { s.newCode = newCode }
}

// WithScoreRecorder mirrors every scored answer into rec.
func WithScoreRecorder(rec ScoreRecorder) Option {
	return func(s *SessionService) {
		if rec != nil {
			s.scores = rec
		}
	}
}

// WithNotifier publishes committed session changes to n.
func WithNotifier(n Notifier) Option {
	return func(s *SessionService) {
		if n != nil {
			s.notify = n
		}
	}
}

// WithLogger sets the logger used for state transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SessionService) { s.log = logger }
}

// SessionService owns every session transition. Mutations of one session run one at a time.
type SessionService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	scores   ScoreRecorder
	notify   Notifier
	cfg      SessionConfig
	locks    *keyedMutex
	now      func() time.Time
	newID    func() string
	newCode  func() string
	log      *slog.Logger
}

func NewSessionService(sessions SessionRepository, quizzes QuizRepository, cfg SessionConfig, opts ...Option) *SessionService {
	if cfg.CodeAttempts <= 0 {
		cfg.CodeAttempts = DefaultSessionConfig().CodeAttempts
	}
	if cfg.TimePerQuestion <= 0 {
		cfg.TimePerQuestion = DefaultSessionConfig().TimePerQuestion
	}
	s := &SessionService{
		sessions: sessions,
		quizzes:  quizzes,
		scores:   noopScores{},
		notify:   noopNotifier{},
		cfg:      cfg,
		locks:    newKeyedMutex(),
		now:      time.Now,
		newID:    uuid.NewString,
		newCode:  RandomSessionCode,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RandomSessionCode picks a 6-digit code uniformly from [100000, 999999].
func RandomSessionCode() string {
	return strconv.Itoa(100000 + rand.Intn(900000))
}

// Snapshot is the private state sent to a connection when it joins a room.
type Snapshot struct {
	SessionCode          string        `json:"sessionCode"`
	Status               domain.Status `json:"status"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	ParticipantCount     int           `json:"participantCount"`
	QuizTitle            string        `json:"quizTitle"`
	TotalQuestions       int           `json:"totalQuestions"`
}

// QuestionView is a question as participants see it: no correct answer, no explanation.
type QuestionView struct {
	Index     int
	Text      string
	Options   []string
	Total     int
	TimeLimit int
}

// StartResult reports the session a start request landed on.
type StartResult struct {
	Snapshot Snapshot
	// Resumed is set when an open session of the quiz was reused.
	Resumed bool
}

// JoinResult describes an enrolled participant.
type JoinResult struct {
	Participant domain.Participant
	// Created is false when an existing participant re-identified by name.
	Created  bool
	Snapshot Snapshot
}

// AdvanceResult carries what an advance revealed.
type AdvanceResult struct {
	Completed bool
	Question  QuestionView
}

// AnswerSubmission is one participant's answer. Index fields are pointers so a missing value can be told apart from zero.
type AnswerSubmission struct {
	SessionCode         string
	ParticipantID       string
	QuestionIndex       *int
	SelectedOptionIndex *int
}

// SubmitResult is the outcome of a recorded answer.
type SubmitResult struct {
	Result      domain.AnswerResult
	Participant domain.Participant
	Leaderboard domain.Leaderboard
}

// Results is the final report of a session.
type Results struct {
	SessionCode    string               `json:"sessionCode"`
	QuizTitle      string               `json:"quizTitle"`
	Status         domain.Status        `json:"status"`
	TotalQuestions int                  `json:"totalQuestions"`
	StartedAt      *time.Time           `json:"startedAt,omitempty"`
	EndedAt        *time.Time           `json:"endedAt,omitempty"`
	Participants   []domain.Participant `json:"participants"`
	Leaderboard    domain.Leaderboard   `json:"leaderboard"`
}

// errUnchanged lets a mutation finish without saving.
var errUnchanged = errors.New("session unchanged")

// StartSession resumes the open session of quizID or creates a new one.
func (s *SessionService) StartSession(ctx context.Context, quizID string) (StartResult, error) {
	if strings.TrimSpace(quizID) == "" {
		return StartResult{}, domain.ErrMalformedRequest.WithMessagef("quizId is required")
	}
	unlock := s.locks.Lock("quiz:" + quizID)
	defer unlock()

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return StartResult{}, err
	}

	open, err := s.sessions.FindOpenByQuiz(ctx, quizID)
	switch {
	case err == nil:
		saved, _, err := s.mutate(ctx, open.Code, func(session *domain.Session, _ domain.Quiz) error {
			if !s.cfg.AutoStart {
				return errUnchanged
			}
			return session.Resume(s.now())
		}, func(saved domain.Session, _ domain.Quiz) {
			if saved.Status == domain.StatusActive {
				s.notify.QuizStarted(saved.Code)
			}
		})
		if err != nil {
			return StartResult{}, err
		}
		s.log.Info("session resumed", "session_code", saved.Code, "quiz_id", quizID)
		return StartResult{Snapshot: snapshotOf(saved, quiz), Resumed: true}, nil
	case !errors.Is(err, domain.ErrSessionNotFound):
		return StartResult{}, err
	}

	created, err := s.createSession(ctx, quiz)
	if err != nil {
		return StartResult{}, err
	}
	s.log.Info("session created", "session_code", created.Code, "quiz_id", quizID, "status", created.Status)
	return StartResult{Snapshot: snapshotOf(created, quiz)}, nil
}

func (s *SessionService) createSession(ctx context.Context, quiz domain.Quiz) (domain.Session, error) {
	settings := domain.Settings{TimePerQuestion: s.cfg.TimePerQuestion, ShowLeaderboard: s.cfg.ShowLeaderboard}
	code := quiz.SessionCode

	for attempt := 0; attempt < s.cfg.CodeAttempts; attempt++ {
		if code == "" || attempt > 0 {
			code = s.newCode()
		}
		now := s.now()
		session := domain.NewSession(code, quiz.ID, settings, now)
		if s.cfg.AutoStart {
			if err := session.Start(now); err != nil {
				return domain.Session{}, err
			}
		}

		created, err := s.sessions.Create(ctx, session)
		if errors.Is(err, domain.ErrSessionCodeTaken) {
			s.log.Debug("session code collision", "session_code", code, "attempt", attempt)
			continue
		}
		if err != nil {
			return domain.Session{}, err
		}

		if err := s.quizzes.LinkSession(ctx, quiz.ID, code); err != nil {
			if delErr := s.sessions.Delete(ctx, code); delErr != nil {
				s.log.Warn("failed to drop unlinked session", "session_code", code, "error", delErr)
			}
			if errors.Is(err, domain.ErrSessionCodeTaken) {
				continue
			}
			return domain.Session{}, err
		}
		return created, nil
	}
	return domain.Session{}, domain.ErrSessionCodeTaken.WithMessagef("no free session code after %d attempts", s.cfg.CodeAttempts)
}

// JoinSession enrolls a new participant. A name already on the roster is rejected.
func (s *SessionService) JoinSession(ctx context.Context, code, name string) (JoinResult, error) {
	if strings.TrimSpace(code) == "" || strings.TrimSpace(name) == "" {
		return JoinResult{}, domain.ErrMalformedRequest.WithMessagef("sessionCode and participantName are required")
	}
	return s.enroll(ctx, code, "", name, false)
}

// Enroll identifies a participant on a realtime join: a known name gets its existing identity back,
// an unknown one is enrolled with id (or a fresh id).
func (s *SessionService) Enroll(ctx context.Context, code, id, name string) (JoinResult, error) {
	if strings.TrimSpace(code) == "" || strings.TrimSpace(name) == "" {
		return JoinResult{}, domain.ErrMalformedRequest.WithMessagef("sessionCode and participantName are required")
	}
	return s.enroll(ctx, code, id, name, true)
}

func (s *SessionService) enroll(ctx context.Context, code, id, name string, rejoin bool) (JoinResult, error) {
	var (
		participant domain.Participant
		created     bool
	)
	saved, quiz, err := s.mutate(ctx, code, func(session *domain.Session, _ domain.Quiz) error {
		if !rejoin && session.Status == domain.StatusCompleted {
			return domain.ErrSessionClosed
		}
		var err error
		participant, created, err = session.Enroll(domain.EnrollRequest{
			Name:   name,
			ID:     id,
			NewID:  s.newID,
			Now:    s.now(),
			Rejoin: rejoin,
		})
		if err != nil {
			return err
		}
		if !created {
			return errUnchanged
		}
		return nil
	}, nil)
	if err != nil {
		return JoinResult{}, err
	}
	if created {
		s.log.Info("participant joined", "session_code", code, "participant_id", participant.ID)
	}
	return JoinResult{Participant: participant, Created: created, Snapshot: snapshotOf(saved, quiz)}, nil
}

// Start activates a waiting session; an active one is left as is.
func (s *SessionService) Start(ctx context.Context, code string) (Snapshot, error) {
	saved, quiz, err := s.mutate(ctx, code, func(session *domain.Session, _ domain.Quiz) error {
		if session.Status == domain.StatusActive {
			return errUnchanged
		}
		return session.Start(s.now())
	}, func(domain.Session, domain.Quiz) {
		s.notify.QuizStarted(code)
	})
	if err != nil {
		return Snapshot{}, err
	}
	s.log.Info("session started", "session_code", code)
	return snapshotOf(saved, quiz), nil
}

// Advance reveals the next question or completes the session.
func (s *SessionService) Advance(ctx context.Context, code string) (AdvanceResult, error) {
	var (
		outcome domain.AdvanceOutcome
		view    QuestionView
	)
	_, _, err := s.mutate(ctx, code, func(session *domain.Session, quiz domain.Quiz) error {
		var err error
		outcome, err = session.Advance(len(quiz.Questions), s.now())
		return err
	}, func(saved domain.Session, quiz domain.Quiz) {
		if outcome.Completed {
			s.notify.QuizCompleted(code)
			return
		}
		view = s.questionView(saved, quiz, outcome.QuestionIndex)
		s.notify.QuestionRevealed(code, view)
	})
	if err != nil {
		return AdvanceResult{}, err
	}
	if outcome.Completed {
		s.log.Info("session completed", "session_code", code)
		return AdvanceResult{Completed: true}, nil
	}
	s.log.Info("question advanced", "session_code", code, "question_index", outcome.QuestionIndex)
	return AdvanceResult{Question: view}, nil
}

// End completes a session before its questions run out.
func (s *SessionService) End(ctx context.Context, code string) error {
	_, _, err := s.mutate(ctx, code, func(session *domain.Session, _ domain.Quiz) error {
		return session.End(s.now())
	}, func(domain.Session, domain.Quiz) {
		s.notify.QuizCompleted(code)
	})
	if err != nil {
		return err
	}
	s.log.Info("session ended", "session_code", code)
	return nil
}

// Reset rewinds a session and clears every score, keeping the roster. A completed session is
// only reopened while its quiz has no other open session.
func (s *SessionService) Reset(ctx context.Context, code string) (domain.Leaderboard, error) {
	if strings.TrimSpace(code) == "" {
		return domain.Leaderboard{}, domain.ErrMalformedRequest.WithMessagef("sessionCode is required")
	}
	current, err := s.sessions.FindByCode(ctx, code)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	unlock := s.locks.Lock("quiz:" + current.QuizID)
	defer unlock()

	saved, _, err := s.mutate(ctx, code, func(session *domain.Session, _ domain.Quiz) error {
		if session.Status == domain.StatusCompleted {
			open, err := s.sessions.FindOpenByQuiz(ctx, session.QuizID)
			switch {
			case err == nil && open.Code != session.Code:
				return domain.ErrQuizSessionOpen.WithMessagef("quiz %s already has open session %s", session.QuizID, open.Code)
			case err != nil && !errors.Is(err, domain.ErrSessionNotFound):
				return err
			}
		}
		session.Reset()
		return nil
	}, func(saved domain.Session, _ domain.Quiz) {
		if err := s.scores.ClearScores(ctx, code); err != nil {
			s.log.Warn("failed to clear score mirror", "session_code", code, "error", err)
		}
		s.notify.LeaderboardChanged(code, saved.Leaderboard())
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	s.log.Info("session reset", "session_code", code, "participants", len(saved.Participants))
	return saved.Leaderboard(), nil
}

// SubmitAnswer records one answer, at most once per participant and question.
func (s *SessionService) SubmitAnswer(ctx context.Context, sub AnswerSubmission) (SubmitResult, error) {
	if strings.TrimSpace(sub.SessionCode) == "" || strings.TrimSpace(sub.ParticipantID) == "" ||
		sub.QuestionIndex == nil || sub.SelectedOptionIndex == nil {
		return SubmitResult{}, domain.ErrMalformedRequest
	}

	var (
		result      domain.AnswerResult
		participant domain.Participant
	)
	saved, _, err := s.mutate(ctx, sub.SessionCode, func(session *domain.Session, quiz domain.Quiz) error {
		var err error
		result, participant, err = session.RecordAnswer(quiz, sub.ParticipantID, *sub.QuestionIndex, *sub.SelectedOptionIndex, s.now())
		return err
	}, func(saved domain.Session, _ domain.Quiz) {
		if err := s.scores.RecordScore(ctx, sub.SessionCode, participant.Name, participant.Score); err != nil {
			s.log.Warn("failed to mirror score", "session_code", sub.SessionCode, "participant_id", participant.ID, "error", err)
		}
		s.notify.AnswerRecorded(sub.SessionCode, participant, result.IsCorrect, saved.Leaderboard())
	})
	if err != nil {
		return SubmitResult{}, err
	}

	s.log.Info("answer recorded",
		"session_code", sub.SessionCode,
		"participant_id", participant.ID,
		"question_index", *sub.QuestionIndex,
		"correct", result.IsCorrect,
	)
	return SubmitResult{Result: result, Participant: participant, Leaderboard: saved.Leaderboard()}, nil
}

// Snapshot returns the current state of a session.
func (s *SessionService) Snapshot(ctx context.Context, code string) (Snapshot, error) {
	session, quiz, err := s.load(ctx, code)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotOf(session, quiz), nil
}

// CurrentQuestion replays the question on screen. ok is false when no question is shown.
func (s *SessionService) CurrentQuestion(ctx context.Context, code string) (QuestionView, bool, error) {
	session, quiz, err := s.load(ctx, code)
	if err != nil {
		return QuestionView{}, false, err
	}
	idx := session.CurrentQuestionIndex
	if session.Status != domain.StatusActive || idx < 0 || idx >= len(quiz.Questions) {
		return QuestionView{}, false, nil
	}
	return s.questionView(session, quiz, idx), true, nil
}

// Leaderboard ranks the participants of a session.
func (s *SessionService) Leaderboard(ctx context.Context, code string) (domain.Leaderboard, error) {
	session, err := s.sessions.FindByCode(ctx, code)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return session.Leaderboard(), nil
}

// PublishLeaderboard pushes the current leaderboard to the notifier in commit order.
func (s *SessionService) PublishLeaderboard(ctx context.Context, code string) error {
	_, _, err := s.mutate(ctx, code, func(*domain.Session, domain.Quiz) error {
		return errUnchanged
	}, func(saved domain.Session, _ domain.Quiz) {
		s.notify.LeaderboardChanged(code, saved.Leaderboard())
	})
	return err
}

// Results returns the full roster with answers.
func (s *SessionService) Results(ctx context.Context, code string) (Results, error) {
	session, quiz, err := s.load(ctx, code)
	if err != nil {
		return Results{}, err
	}
	return Results{
		SessionCode:    session.Code,
		QuizTitle:      quiz.Title,
		Status:         session.Status,
		TotalQuestions: len(quiz.Questions),
		StartedAt:      session.StartedAt,
		EndedAt:        session.EndedAt,
		Participants:   session.Participants,
		Leaderboard:    session.Leaderboard(),
	}, nil
}

func (s *SessionService) load(ctx context.Context, code string) (domain.Session, domain.Quiz, error) {
	session, err := s.sessions.FindByCode(ctx, code)
	if err != nil {
		return domain.Session{}, domain.Quiz{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return domain.Session{}, domain.Quiz{}, err
	}
	return session, quiz, nil
}

// mutate runs fn against the stored session under the per-session lock and saves the result.
// fn returning errUnchanged skips the save. committed, when set, runs before the lock is released.
func (s *SessionService) mutate(
	ctx context.Context,
	code string,
	fn func(*domain.Session, domain.Quiz) error,
	committed func(domain.Session, domain.Quiz),
) (domain.Session, domain.Quiz, error) {
	if strings.TrimSpace(code) == "" {
		return domain.Session{}, domain.Quiz{}, domain.ErrMalformedRequest.WithMessagef("sessionCode is required")
	}
	unlock := s.locks.Lock(code)
	defer unlock()

	session, quiz, err := s.load(ctx, code)
	if err != nil {
		return domain.Session{}, domain.Quiz{}, err
	}

	switch err := fn(&session, quiz); {
	case errors.Is(err, errUnchanged):
	case err != nil:
		return domain.Session{}, domain.Quiz{}, err
	default:
		if session, err = s.sessions.Save(ctx, session); err != nil {
			return domain.Session{}, domain.Quiz{}, err
		}
	}

	if committed != nil {
		committed(session, quiz)
	}
	return session, quiz, nil
}

func (s *SessionService) questionView(session domain.Session, quiz domain.Quiz, idx int) QuestionView {
	q := quiz.Questions[idx]
	limit := session.Settings.TimePerQuestion
	if limit <= 0 {
		limit = s.cfg.TimePerQuestion
	}
	return QuestionView{
		Index:     idx,
		Text:      q.Text,
		Options:   append([]string(nil), q.Options...),
		Total:     len(quiz.Questions),
		TimeLimit: limit,
	}
}

func snapshotOf(session domain.Session, quiz domain.Quiz) Snapshot {
	return Snapshot{
		SessionCode:          session.Code,
		Status:               session.Status,
		CurrentQuestionIndex: session.CurrentQuestionIndex,
		ParticipantCount:     len(session.Participants),
		QuizTitle:            quiz.Title,
		TotalQuestions:       len(quiz.Questions),
	}
}
