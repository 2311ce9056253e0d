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

	"duel-service/internal/app"
	"duel-service/internal/config"
	"duel-service/internal/domain"
	"duel-service/internal/infra/memory"
	pginfra "duel-service/internal/infra/postgres"
	redisinfra "duel-service/internal/infra/redis"
	transport "duel-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the duel server",
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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var duels app.DuelStore
	var users app.UserRepository
	var questions app.QuestionBank
	if pool != nil {
		duels = pginfra.NewDuelStore(pool)
		users = pginfra.NewUserRepository(pool)
		pgQuestions := pginfra.NewQuestionBank(pool)
		questions = pgQuestions
		if redisClient != nil {
			questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
			questions = redisinfra.NewQuestionBank(redisClient, pgQuestions, questionTTL)
		}
	} else {
		// No database configured: run fully in memory with demo data.
		duels = memory.NewDuelStore()
		memUsers := memory.NewUserRepository()
		seedDemoUsers(ctx, memUsers)
		users = memUsers
		questions = memory.NewQuestionBank(sampleQuestions())
	}

	hub := transport.NewHub()
	engine := app.NewDuelEngine(duels, users, questions, hub).WithMaxRetries(cfg.Engine.MaxRetries)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(hub).ServeWS)
	transport.NewAPIHandler(engine).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting duel service on :%s", finalPort)
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

func seedDemoUsers(ctx context.Context, users *memory.UserRepository) {
	_ = users.Put(ctx, &domain.User{ID: "u1", Username: "alice", CreatedAt: time.Now()})
	_ = users.Put(ctx, &domain.User{ID: "u2", Username: "bob", CreatedAt: time.Now()})
}

// sampleQuestions provides a minimal pool for running without a database.
func sampleQuestions() map[string][]domain.Question {
	return map[string][]domain.Question{
		"geography": {
			{
				Category:      "geography",
				Question:      "What is the capital of France?",
				Options:       []string{"Paris", "London", "Berlin", "Madrid"},
				CorrectAnswer: "Paris",
			},
			{
				Category:      "geography",
				Question:      "Which river runs through Cairo?",
				Options:       []string{"Nile", "Danube", "Amazon", "Seine"},
				CorrectAnswer: "Nile",
			},
		},
	}
}
