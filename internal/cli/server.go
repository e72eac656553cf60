package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/gemini"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	redisstore "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/realtime"
	"live-quiz-service/internal/telemetry"
	transport "live-quiz-service/internal/transport/http"
)

const (
	defaultPort     = "8080"
	defaultQuizTTL  = 10 * time.Minute
	defaultRedisTTL = 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

type infra struct {
	redis *redis.Client
	pool  *pgxpool.Pool
}

func (i infra) close() {
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.pool != nil {
		i.pool.Close()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	in, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer in.close()

	quizStore, err := newQuizStore(cfg, in)
	if err != nil {
		return err
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, defaultQuizTTL)
	hub := realtime.NewHub(logger)
	var (
		quizzes  app.QuizRepository
		sessions app.SessionRepository
		opts     = []app.Option{app.WithLogger(logger), app.WithNotifier(realtime.NewBroadcaster(hub, logger))}
	)
	if in.redis != nil {
		quizzes = redisstore.NewQuizRepository(in.redis, quizStore, quizTTL)
		sessions = redisstore.NewSessionStore(in.redis, config.TTLDuration(cfg.Redis.TTL, defaultRedisTTL))
		mirror := redisstore.NewLeaderboardMirror(in.redis, config.TTLDuration(cfg.Redis.LeaderboardTTL, redisstore.DefaultLeaderboardTTL))
		opts = append(opts, app.WithScoreRecorder(mirror))
	} else {
		quizzes = memory.NewQuizRepository(quizStore, quizTTL)
		sessions = memory.NewSessionStore()
	}

	sessionService := app.NewSessionService(sessions, quizzes, app.SessionConfig{
		TimePerQuestion: cfg.Session.TimePerQuestion,
		ShowLeaderboard: true,
		AutoStart:       cfg.AutoStart(),
		CodeAttempts:    cfg.Session.CodeAttempts,
	}, opts...)

	var generator app.Generator
	if cfg.Generator.APIKey != "" {
		generator = gemini.NewClient(cfg.Generator.APIKey, cfg.Generator.Endpoint, cfg.Generator.Model,
			config.TTLDuration(cfg.Generator.Timeout, 60*time.Second))
	} else {
		logger.Warn("generator api key not set, quiz generation disabled")
	}
	quizService := app.NewQuizService(quizzes, generator, logger)

	gin.SetMode(gin.ReleaseMode)
	router := transport.NewRouter(transport.RouterConfig{
		AllowOrigins: cfg.Server.AllowOrigins,
		Logger:       logger,
	}, sessionService, quizService, hub)

	listenPort := portFlag
	if listenPort == "" {
		listenPort = cfg.Server.Port
	}
	if listenPort == "" {
		listenPort = defaultPort
	}
	server := &http.Server{
		Addr:              ":" + listenPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info("starting quiz service", "port", listenPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

// connect opens the optional backing services. Either may be left unconfigured.
func connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (infra, error) {
	var in infra
	if cfg.Redis.Addr != "" {
		in.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := telemetry.MonitorRedis(in.redis, logger); err != nil {
			in.close()
			return infra{}, fmt.Errorf("redis: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := in.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			in.close()
			return infra{}, fmt.Errorf("redis: ping: %w", err)
		}
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg.Postgres.URL); err != nil {
			in.close()
			return infra{}, fmt.Errorf("postgres: %w", err)
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			in.close()
			return infra{}, fmt.Errorf("postgres: connect: %w", err)
		}
		in.pool = pool
	}
	return in, nil
}

// quizStore is what both cache layers need from the source of truth.
type quizStore interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	InsertQuiz(ctx context.Context, quiz domain.Quiz) error
	LinkSession(ctx context.Context, quizID, code string) error
}

func newQuizStore(cfg config.Config, in infra) (quizStore, error) {
	if in.pool != nil {
		return postgres.NewQuizStore(in.pool), nil
	}
	if cfg.Quiz.SeedFile == "" {
		return memory.NewQuizStore(memory.SampleQuizzes()...), nil
	}
	seed, err := memory.LoadSeedFile(cfg.Quiz.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("quiz seed: %w", err)
	}
	return memory.NewQuizStore(seed...), nil
}
