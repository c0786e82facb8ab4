package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"trivia-match-service/internal/app"
	"trivia-match-service/internal/domain"
	pgloader "trivia-match-service/internal/infra/postgres"
	pgmigrations "trivia-match-service/internal/infra/postgres/migrations"
	infraredis "trivia-match-service/internal/infra/redis"
)

func TestMatchEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestions(t, ctx, pgURL, sampleQuestions())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgloader.NewQuestionLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	questionRepo := infraredis.NewQuestionRepository(redisClient, loader, 5*time.Minute)
	store := infraredis.NewMatchStore(redisClient, 5*time.Minute)
	service := app.NewMatchService(store, questionRepo)

	state, err := service.Start(ctx, app.MatchSpec{
		MatchID: "match-1",
		Seats: []domain.PlayerSeat{
			{ID: "p1", DisplayName: "Alice"},
			{ID: "p2", DisplayName: "Bob"},
		},
		Settings: domain.MatchSettings{
			Category:    "general",
			TargetScore: 2,
		},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if state.CurrentQuestion == nil {
		t.Fatalf("expected first question drawn from postgres-backed pool")
	}

	// P1 correct, P2 wrong, P1 correct -> P1 wins at the target
	if _, err := service.Answer(ctx, "match-1", true); err != nil {
		t.Fatalf("answer 1: %v", err)
	}
	if _, err := service.Answer(ctx, "match-1", false); err != nil {
		t.Fatalf("answer 2: %v", err)
	}
	state, err = service.Answer(ctx, "match-1", true)
	if err != nil {
		t.Fatalf("answer 3: %v", err)
	}

	if !state.Over {
		t.Fatalf("expected match over at target score")
	}
	if state.WinnerID == nil || *state.WinnerID != "p1" {
		t.Fatalf("expected Alice winning, got %v", state.WinnerID)
	}
	if state.TurnCount != 3 {
		t.Fatalf("expected 3 recorded turns, got %d", state.TurnCount)
	}

	// the finished match survives a "restart" through its redis snapshot
	restarted := app.NewMatchService(infraredis.NewMatchStore(redisClient, 5*time.Minute), questionRepo)
	restored, err := restarted.State(ctx, "match-1")
	if err != nil {
		t.Fatalf("state after restart: %v", err)
	}
	if !restored.Over || restored.WinnerID == nil || *restored.WinnerID != "p1" {
		t.Fatalf("expected finished match restored, got %+v", restored)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuestions(t *testing.T, ctx context.Context, dsn string, questions []domain.Question) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, q := range questions {
		distractors, err := json.Marshal(q.Distractors)
		if err != nil {
			t.Fatalf("marshal distractors: %v", err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO questions (id, prompt, answer, distractors, difficulty, category, reference)
			 VALUES (?, ?, ?, ?::jsonb, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET prompt=EXCLUDED.prompt`,
			q.ID, q.Prompt, q.Answer, string(distractors), string(q.Difficulty), q.Category, q.Reference,
		); err != nil {
			t.Fatalf("insert question: %v", err)
		}
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Prompt: "What is the largest planet in the solar system?", Answer: "Jupiter", Distractors: []string{"Saturn", "Neptune"}, Difficulty: domain.DifficultyEasy, Category: "general"},
		{ID: "q2", Prompt: "What is the chemical symbol for gold?", Answer: "Au", Distractors: []string{"Ag", "Gd"}, Difficulty: domain.DifficultyEasy, Category: "general"},
		{ID: "q3", Prompt: "Which year did the Berlin Wall fall?", Answer: "1989", Distractors: []string{"1991", "1987"}, Difficulty: domain.DifficultyHard, Category: "general"},
		{ID: "q4", Prompt: "Who painted The Persistence of Memory?", Answer: "Salvador Dali", Distractors: []string{"Pablo Picasso", "Rene Magritte"}, Difficulty: domain.DifficultyHard, Category: "general"},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
