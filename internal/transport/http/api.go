package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/realtime"
)

// APIHandler serves the REST surface. Session transitions reach the room through the
// service's notifier; joins are announced here.
type APIHandler struct {
	sessions *app.SessionService
	quizzes  *app.QuizService
	fanout   *fanout
}

func NewAPIHandler(sessions *app.SessionService, quizzes *app.QuizService, hub *realtime.Hub, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{sessions: sessions, quizzes: quizzes, fanout: newFanout(hub, logger)}
}

type startSessionRequest struct {
	QuizID string `json:"quizId" binding:"required"`
}

type sessionCodeRequest struct {
	SessionCode string `json:"sessionCode" binding:"required"`
}

type joinSessionRequest struct {
	SessionCode     string `json:"sessionCode" binding:"required"`
	ParticipantName string `json:"participantName" binding:"required"`
}

type submitAnswerRequest struct {
	SessionCode         string `json:"sessionCode"`
	ParticipantID       string `json:"participantId"`
	QuestionIndex       *int   `json:"questionIndex"`
	SelectedOptionIndex *int   `json:"selectedOptionIndex"`
	// SelectedAnswer is the older name of SelectedOptionIndex.
	SelectedAnswer *int `json:"selectedAnswer"`
}

func (r submitAnswerRequest) selected() *int {
	if r.SelectedOptionIndex != nil {
		return r.SelectedOptionIndex
	}
	return r.SelectedAnswer
}

type createQuizRequest struct {
	Title        string            `json:"title" binding:"required"`
	Topic        string            `json:"topic" binding:"required"`
	NumQuestions int               `json:"numQuestions"`
	Difficulty   domain.Difficulty `json:"difficulty"`
}

type startSessionResponse struct {
	Success        bool          `json:"success"`
	SessionCode    string        `json:"sessionCode"`
	Status         domain.Status `json:"status"`
	QuizTitle      string        `json:"quizTitle"`
	TotalQuestions int           `json:"totalQuestions"`
	Resumed        bool          `json:"resumed"`
}

type joinSessionResponse struct {
	Success         bool   `json:"success"`
	ParticipantID   string `json:"participantId"`
	Name            string `json:"name"`
	SessionCode     string `json:"sessionCode"`
	QuizTitle       string `json:"quizTitle"`
	CurrentQuestion int    `json:"currentQuestion"`
}

type submitAnswerResponse struct {
	Success bool `json:"success"`
	domain.AnswerResult
}

type sessionResponse struct {
	Success bool `json:"success"`
	app.Snapshot
}

type leaderboardResponse struct {
	Success bool `json:"success"`
	domain.Leaderboard
}

type resultsResponse struct {
	Success bool `json:"success"`
	app.Results
}

type quizResponse struct {
	Success bool `json:"success"`
	domain.Quiz
}

func (h *APIHandler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	res, err := h.sessions.StartSession(c.Request.Context(), req.QuizID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, startSessionResponse{
		Success:        true,
		SessionCode:    res.Snapshot.SessionCode,
		Status:         res.Snapshot.Status,
		QuizTitle:      res.Snapshot.QuizTitle,
		TotalQuestions: res.Snapshot.TotalQuestions,
		Resumed:        res.Resumed,
	})
}

func (h *APIHandler) JoinSession(c *gin.Context) {
	var req joinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	res, err := h.sessions.JoinSession(c.Request.Context(), req.SessionCode, req.ParticipantName)
	if err != nil {
		writeError(c, err)
		return
	}
	code := res.Snapshot.SessionCode
	h.fanout.participantCount(code, res.Snapshot.ParticipantCount)
	h.fanout.participantJoined(code, nil, res.Participant.Name, res.Snapshot.ParticipantCount)
	c.JSON(http.StatusOK, joinSessionResponse{
		Success:         true,
		ParticipantID:   res.Participant.ID,
		Name:            res.Participant.Name,
		SessionCode:     code,
		QuizTitle:       res.Snapshot.QuizTitle,
		CurrentQuestion: res.Snapshot.CurrentQuestionIndex,
	})
}

func (h *APIHandler) SubmitAnswer(c *gin.Context) {
	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	res, err := h.sessions.SubmitAnswer(c.Request.Context(), app.AnswerSubmission{
		SessionCode:         req.SessionCode,
		ParticipantID:       req.ParticipantID,
		QuestionIndex:       req.QuestionIndex,
		SelectedOptionIndex: req.selected(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, submitAnswerResponse{Success: true, AnswerResult: res.Result})
}

func (h *APIHandler) GetSession(c *gin.Context) {
	snapshot, err := h.sessions.Snapshot(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Success: true, Snapshot: snapshot})
}

func (h *APIHandler) GetLeaderboard(c *gin.Context) {
	lb, err := h.sessions.Leaderboard(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, leaderboardResponse{Success: true, Leaderboard: realtime.LeaderboardPayload(lb)})
}

func (h *APIHandler) GetResults(c *gin.Context) {
	results, err := h.sessions.Results(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	results.Leaderboard = realtime.LeaderboardPayload(results.Leaderboard)
	if results.Participants == nil {
		results.Participants = []domain.Participant{}
	}
	c.JSON(http.StatusOK, resultsResponse{Success: true, Results: results})
}

func (h *APIHandler) ResetSession(c *gin.Context) {
	var req sessionCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	if _, err := h.sessions.Reset(c.Request.Context(), req.SessionCode); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "session reset"})
}

func (h *APIHandler) EndSession(c *gin.Context) {
	var req sessionCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	if err := h.sessions.End(c.Request.Context(), req.SessionCode); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "session ended"})
}

func (h *APIHandler) CreateQuiz(c *gin.Context) {
	var req createQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	quiz, err := h.quizzes.CreateQuiz(c.Request.Context(), app.CreateQuizRequest{
		Title:        req.Title,
		Topic:        req.Topic,
		NumQuestions: req.NumQuestions,
		Difficulty:   req.Difficulty,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quizResponse{Success: true, Quiz: quiz})
}

func (h *APIHandler) GetQuiz(c *gin.Context) {
	quiz, err := h.quizzes.GetQuiz(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quizResponse{Success: true, Quiz: quiz})
}
