package http

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/realtime"
)

type RouterConfig struct {
	// AllowOrigins lists the browser origins allowed for REST and websocket requests.
	// Empty or "*" allows any origin.
	AllowOrigins []string
	Logger       *slog.Logger
}

// NewRouter builds the HTTP surface: REST under /api, the realtime channel on /ws,
// and the operational endpoints.
func NewRouter(cfg RouterConfig, sessions *app.SessionService, quizzes *app.QuizService, hub *realtime.Hub) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), requestLogger(logger), cors.New(corsConfig(cfg.AllowOrigins)))

	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	ws := NewWSHandler(sessions, hub, originChecker(cfg.AllowOrigins), logger)
	e.GET("/ws", ws.ServeWS)

	api := NewAPIHandler(sessions, quizzes, hub, logger)
	sessionsGroup := e.Group("/api/sessions")
	{
		sessionsGroup.POST("/start", api.StartSession)
		sessionsGroup.POST("/join", api.JoinSession)
		sessionsGroup.POST("/answer", api.SubmitAnswer)
		sessionsGroup.POST("/reset", api.ResetSession)
		sessionsGroup.POST("/end", api.EndSession)
		sessionsGroup.GET("/:code", api.GetSession)
		sessionsGroup.GET("/:code/leaderboard", api.GetLeaderboard)
		sessionsGroup.GET("/:code/results", api.GetResults)
	}
	quizzesGroup := e.Group("/api/quizzes")
	{
		quizzesGroup.POST("", api.CreateQuiz)
		quizzesGroup.GET("/:id", api.GetQuiz)
	}
	return e
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if allowAll(origins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func originChecker(origins []string) func(*http.Request) bool {
	if allowAll(origins) {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

func allowAll(origins []string) bool {
	return len(origins) == 0 || slices.Contains(origins, "*")
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/healthz" {
			return
		}
		logger.LogAttrs(c.Request.Context(), slog.LevelInfo, "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
