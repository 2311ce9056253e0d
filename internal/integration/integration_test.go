package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
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

	"duel-service/internal/app"
	"duel-service/internal/domain"
	pginfra "duel-service/internal/infra/postgres"
	pgmigrations "duel-service/internal/infra/postgres/migrations"
	redisinfra "duel-service/internal/infra/redis"
)

func TestDuelLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateAndSeed(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	users := pginfra.NewUserRepository(pool)
	duels := pginfra.NewDuelStore(pool)
	questions := redisinfra.NewQuestionBank(redisClient, pginfra.NewQuestionBank(pool), 5*time.Minute)
	notifier := &countingNotifier{}
	engine := app.NewDuelEngine(duels, users, questions, notifier)

	duel, err := engine.Create(ctx, "u1", "u2", "geography")
	if err != nil {
		t.Fatalf("create duel: %v", err)
	}
	if duel.Status != domain.StatusPending || duel.CorrectAnswer != "Paris" {
		t.Fatalf("unexpected duel: %+v", duel)
	}

	if _, err := engine.Accept(ctx, duel.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Both sides race their submissions against the real store.
	var wg sync.WaitGroup
	answers := map[string]string{"u1": "Paris", "u2": "London"}
	errs := make(map[string]error)
	var mu sync.Mutex
	for userID, answer := range answers {
		wg.Add(1)
		go func(userID, answer string) {
			defer wg.Done()
			_, err := engine.SubmitAnswer(ctx, duel.ID, userID, answer)
			mu.Lock()
			errs[userID] = err
			mu.Unlock()
		}(userID, answer)
	}
	wg.Wait()
	for userID, err := range errs {
		if err != nil {
			t.Fatalf("submit %s: %v", userID, err)
		}
	}

	final, err := engine.Get(ctx, duel.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != domain.StatusCompleted || final.Winner != "alice" {
		t.Fatalf("unexpected final state: status=%s winner=%s", final.Status, final.Winner)
	}

	// A late duplicate must bounce off the completed record.
	if _, err := engine.SubmitAnswer(ctx, duel.ID, "u1", "Paris"); !errors.Is(err, domain.ErrDuplicateAnswer) {
		t.Fatalf("expected ErrDuplicateAnswer, got %v", err)
	}

	winner, err := users.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("find winner: %v", err)
	}
	if winner.Points != 2 || winner.TotalWins != 1 || winner.TotalDuelsPlayed != 1 {
		t.Fatalf("winner stats: %+v", winner)
	}
	loser, err := users.FindByID(ctx, "u2")
	if err != nil {
		t.Fatalf("find loser: %v", err)
	}
	if loser.Points != 0 || loser.TotalLosses != 1 {
		t.Fatalf("loser stats: %+v", loser)
	}

	history, total, err := users.History(ctx, "u2", 1, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 1 || len(history) != 1 || history[0].Result != domain.OutcomeLoss || history[0].PointsLost != 1 {
		t.Fatalf("unexpected history: %+v (total %d)", history, total)
	}

	if got := notifier.completions(); got != 2 {
		t.Fatalf("duelCompleted emissions = %d, want 2 (one per participant)", got)
	}

	board, err := users.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 1 || board[0].Username != "alice" {
		t.Fatalf("unexpected leaderboard: %+v", board)
	}
}

type countingNotifier struct {
	mu     sync.Mutex
	events map[string]int
}

func (n *countingNotifier) record(event string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.events == nil {
		n.events = make(map[string]int)
	}
	n.events[event]++
}

func (n *countingNotifier) EmitToUser(_, event string, _ any) { n.record("user:" + event) }
func (n *countingNotifier) EmitToDuel(_, event string, _ any) { n.record("duel:" + event) }
func (n *countingNotifier) Broadcast(event string, _ any)     { n.record("broadcast:" + event) }

func (n *countingNotifier) completions() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events["user:"+app.EventDuelCompleted]
}

func migrateAndSeed(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
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

	for _, row := range [][2]string{{"u1", "alice"}, {"u2", "bob"}} {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO users (id, username) VALUES (?, ?)`, row[0], row[1]); err != nil {
			t.Fatalf("insert user: %v", err)
		}
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO questions (category, question, options, correct_answer)
		VALUES (?, ?, ?::jsonb, ?)`,
		"geography", "What is the capital of France?",
		`["Paris","London","Berlin","Madrid"]`, "Paris"); err != nil {
		t.Fatalf("insert question: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "duel", "POSTGRES_PASSWORD": "duelpass", "POSTGRES_DB": "dueldb"},
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
	dsn := fmt.Sprintf("postgres://duel:duelpass@%s:%s/dueldb?sslmode=disable", host, port.Port())
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
