package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"trivia-round-service/internal/app"
	"trivia-round-service/internal/catalog"
	"trivia-round-service/internal/domain"
	"trivia-round-service/internal/infra/postgres"
	infraredis "trivia-round-service/internal/infra/redis"
	"trivia-round-service/internal/logger"
	"trivia-round-service/internal/testutil/mocks"
)

func TestRoundAgainstPostgresCatalogAndRedisStore(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	pool := seedQuestions(t, ctx, pgURL)
	defer pool.Close()

	questions, err := catalog.Load(ctx, catalog.DefaultCategories, postgres.NewQuestionLoader(pool), logger.Discard())
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if questions.Len() != 1 {
		t.Fatalf("expected 1 question in catalog, got %d", questions.Len())
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	presenter := mocks.NewRecordingPresenter()
	service := app.NewRoundService(questions, infraredis.NewSessionStore(redisClient), presenter,
		app.WithLogger(logger.Discard()), app.WithTickInterval(time.Hour))
	defer service.Close()

	start, err := service.Start(ctx, "u1", "science", domain.Medium)
	if err != nil || start.Signal != domain.SignalNone {
		t.Fatalf("start: signal=%q err=%v", start.Signal, err)
	}
	out, err := service.SubmitAnswer(ctx, "u1", "Jupiter")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !out.Settlement.Correct || out.Settlement.PointsDelta != 10 || out.Settlement.NewScore != 10 {
		t.Fatalf("expected a correct medium settlement worth 10, got %+v", out.Settlement)
	}

	again, err := service.Start(ctx, "u1", "science", domain.Medium)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if again.Signal != domain.SignalPoolExhausted {
		t.Fatalf("expected exhausted pool after the only question was used, got %q", again.Signal)
	}
}

func TestPostgresSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	pool := seedQuestions(t, ctx, pgURL)
	defer pool.Close()

	store := postgres.NewSessionStore(pool)
	progress, err := store.LoadProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if progress.Score != 0 || progress.Streak != 0 || len(progress.Used) != 0 {
		t.Fatalf("expected fresh progress, got %+v", progress)
	}

	progress.Score, progress.Streak = -5, 2
	if err := store.CommitSettlement(ctx, "u1", "q1", progress); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := store.MarkUsed(ctx, "u1", "q1"); err != nil {
		t.Fatalf("mark twice: %v", err)
	}
	pick := domain.Pick{Category: "science", Difficulty: domain.Medium}
	if err := store.SaveLastPick(ctx, "u1", pick); err != nil {
		t.Fatalf("save pick: %v", err)
	}

	reloaded, err := store.LoadProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Score != -5 || reloaded.Streak != 2 || !reloaded.IsUsed("q1") || reloaded.LastPick != pick {
		t.Fatalf("unexpected progress after reload: %+v", reloaded)
	}

	progress.Streak = -1
	if err := store.CommitSettlement(ctx, "u1", "q2", progress); err == nil {
		t.Fatalf("expected the streak check constraint to reject the commit")
	}
	if used, _ := store.IsUsed(ctx, "u1", "q2"); used {
		t.Fatalf("a rejected settlement must not spend its question")
	}
	used, err := store.IsUsed(ctx, "u2", "q1")
	if err != nil || used {
		t.Fatalf("used set leaked across users: used=%v err=%v", used, err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
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
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
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

// seedQuestions migrates the database and imports one science question.
func seedQuestions(t *testing.T, ctx context.Context, dsn string) *pgxpool.Pool {
	t.Helper()
	if _, err := postgres.Migrate(ctx, dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	entries := []domain.QuestionEntry{{
		Category:   "science",
		Difficulty: "medium",
		Prompt:     "Largest planet in the solar system?",
		Options:    []string{"Mars", "Jupiter", "Venus", "Saturn"},
		Answer:     "Jupiter",
	}}
	writer := postgres.NewQuestionWriter(pool)
	if n, err := writer.Import(ctx, entries); err != nil || n != 1 {
		t.Fatalf("import: inserted=%d err=%v", n, err)
	}
	if n, err := writer.Import(ctx, entries); err != nil || n != 0 {
		t.Fatalf("re-import should be a no-op: inserted=%d err=%v", n, err)
	}
	return pool
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
