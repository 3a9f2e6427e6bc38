package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bleepy-challenge-service/internal/app"
	"bleepy-challenge-service/internal/config"
	"bleepy-challenge-service/internal/infra/memory"
	"bleepy-challenge-service/internal/infra/postgres"
	redisinfra "bleepy-challenge-service/internal/infra/redis"
	"bleepy-challenge-service/internal/logger"
	"bleepy-challenge-service/internal/metrics"
	transport "bleepy-challenge-service/internal/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const serviceName = "bleepy-challenge-service"

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the challenge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(serviceName, cfg.Server.LogLevel)
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret not configured")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	deps, cleanup, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := []app.Option{app.WithLogger(log), app.WithMetrics(m)}
	if deps.board != nil {
		opts = append(opts, app.WithLeaderboardCache(deps.board))
	}
	service := app.NewChallengeService(deps.store, deps.ledger, deps.questions, deps.hubs, settingsFrom(cfg), opts...)

	gin.SetMode(gin.ReleaseMode)
	router := transport.NewRouter(transport.RouterConfig{
		Service:   service,
		Log:       log,
		Metrics:   m,
		Gatherer:  reg,
		JWTSecret: cfg.Auth.JWTSecret,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: websocket connections are long-lived.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting challenge service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

type dependencies struct {
	store     app.ChallengeStore
	ledger    app.Ledger
	questions app.QuestionBank
	hubs      app.HubRepository
	board     app.LeaderboardCache
}

// buildDeps picks Postgres/Redis backends when configured and in-memory ones otherwise.
func buildDeps(ctx context.Context, cfg config.Config, log *logrus.Entry) (deps dependencies, cleanup func(), err error) {
	var closers []func()
	cleanup = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	defer func() {
		if err != nil {
			cleanup()
			cleanup = func() {}
		}
	}()

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var bank app.QuestionBank
	if cfg.Postgres.URL != "" {
		db, err := openDB(cfg)
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := runMigrations(ctx, db, log); err != nil {
			return deps, cleanup, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, pool.Close)

		store := postgres.NewStore(db)
		deps.store, deps.ledger = store, store
		bank = postgres.NewQuestionLoader(pool)
		log.Info("using postgres store")
	} else {
		store := memory.NewStore()
		deps.store, deps.ledger = store, store
		questions := memory.SampleQuestionSet()
		if cfg.Quiz.QuestionsFile != "" {
			loaded, err := memory.LoadQuestionsFile(cfg.Quiz.QuestionsFile)
			if err != nil {
				return deps, cleanup, err
			}
			questions = loaded
		}
		bank = memory.NewStaticQuestionBank(questions)
		log.WithField("questions", len(questions)).Warn("postgres not configured, using in-memory store")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return deps, cleanup, err
		}
		deps.questions = redisinfra.NewQuestionCache(client, bank, quizTTL)
		deps.hubs = redisinfra.NewHubStore(client, redisTTL)
		deps.board = redisinfra.NewLeaderboardCache(client, config.TTLDuration(cfg.Leaderboard.CacheTTL, 30*time.Second))
	} else {
		deps.questions = memory.NewQuestionRepository(bank, quizTTL)
		deps.hubs = memory.NewHubStore()
	}
	return deps, cleanup, nil
}

// settingsFrom maps config onto challenge settings; unset or non-positive
// limits keep the defaults.
func settingsFrom(cfg config.Config) app.Settings {
	def := app.DefaultSettings()
	s := app.Settings{
		MaxParticipants: positiveOr(cfg.Challenge.MaxParticipants, def.MaxParticipants),
		MaxQuestions:    positiveOr(cfg.Challenge.MaxQuestions, def.MaxQuestions),
		CodeAttempts:    positiveOr(cfg.Challenge.CodeAttempts, def.CodeAttempts),
		RequireAllReady: config.BoolOr(cfg.Challenge.RequireAllReady, def.RequireAllReady),
		ElevatedRoles:   cfg.Auth.ElevatedRoles,
	}
	if len(s.ElevatedRoles) == 0 {
		s.ElevatedRoles = def.ElevatedRoles
	}
	return s
}

func positiveOr(v *int, fallback int) int {
	if n := config.IntOr(v, fallback); n > 0 {
		return n
	}
	return fallback
}
