package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"trivia-match-service/internal/app"
	"trivia-match-service/internal/config"
	"trivia-match-service/internal/domain"
	fileloader "trivia-match-service/internal/infra/file"
	"trivia-match-service/internal/infra/memory"
	pgloader "trivia-match-service/internal/infra/postgres"
	redisinfra "trivia-match-service/internal/infra/redis"
	sqliteloader "trivia-match-service/internal/infra/sqlite"
	transport "trivia-match-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia match server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	loader, cleanup, err := buildLoader(ctx, cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questionRepo app.QuestionRepository
	if redisClient != nil {
		questionRepo = redisinfra.NewQuestionRepository(redisClient, loader, questionTTL)
	} else {
		questionRepo = memory.NewQuestionRepository(loader, questionTTL)
	}

	var store app.MatchStore
	if redisClient != nil {
		store = redisinfra.NewMatchStore(redisClient, redisTTL)
	} else {
		store = memory.NewMatchStore()
	}
	points := make(map[domain.Difficulty]int, len(cfg.Match.Points))
	for difficulty, p := range cfg.Match.Points {
		points[domain.Difficulty(difficulty)] = p
	}
	service := app.NewMatchService(store, questionRepo).WithMatchDefaults(domain.MatchSettings{
		TargetScore:     cfg.Match.TargetScore,
		SoloQuestionCap: cfg.Match.SoloQuestionCap,
		Points:          points,
	})
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia match service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildLoader picks the question source: Postgres, then SQLite, then a JSON
// question file, falling back to the bundled sample set.
func buildLoader(ctx context.Context, cfg config.Config) (memory.QuestionLoader, func(), error) {
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		return pgloader.NewQuestionLoader(pool), pool.Close, nil
	}
	if cfg.SQLite.Path != "" {
		loader, err := sqliteloader.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return loader, func() { _ = loader.Close() }, nil
	}
	if cfg.Questions.File != "" {
		return fileloader.NewQuestionLoader(cfg.Questions.File), nil, nil
	}
	return memory.NewStaticQuestionLoader(sampleQuestions()), nil, nil
}

// sampleQuestions provides a minimal question table so the service runs with
// no backing store configured; swap in a real source via config in production.
func sampleQuestions() map[string][]domain.Question {
	return map[string][]domain.Question{
		"general": {
			{ID: "g1", Prompt: "What is the largest planet in the solar system?", Answer: "Jupiter", Distractors: []string{"Saturn", "Neptune"}, Difficulty: domain.DifficultyEasy, Category: "general"},
			{ID: "g2", Prompt: "What is the chemical symbol for gold?", Answer: "Au", Distractors: []string{"Ag", "Gd"}, Difficulty: domain.DifficultyEasy, Category: "general"},
			{ID: "g3", Prompt: "Which year did the Berlin Wall fall?", Answer: "1989", Distractors: []string{"1991", "1987"}, Difficulty: domain.DifficultyHard, Category: "general"},
			{ID: "g4", Prompt: "Who painted The Persistence of Memory?", Answer: "Salvador Dali", Distractors: []string{"Pablo Picasso", "Rene Magritte"}, Difficulty: domain.DifficultyHard, Category: "general"},
		},
		"animals": {
			{ID: "a1", Prompt: "What is the fastest land animal?", Answer: "Cheetah", Distractors: []string{"Lion", "Pronghorn"}, Difficulty: domain.DifficultyEasy, Category: "animals"},
			{ID: "a2", Prompt: "How many hearts does an octopus have?", Answer: "Three", Distractors: []string{"One", "Two"}, Difficulty: domain.DifficultyHard, Category: "animals"},
		},
	}
}
