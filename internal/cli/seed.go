package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"duel-service/internal/config"
	"duel-service/internal/domain"
	pginfra "duel-service/internal/infra/postgres"
)

// NewSeedCmd bulk-loads questions from a JSON file into Postgres.
// The file holds an array of {category, question, options, correctAnswer}.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import questions from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "questions.json", "path to questions JSON file")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}
	if len(questions) == 0 {
		return fmt.Errorf("%s holds no questions", file)
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pginfra.NewQuestionBank(pool).InsertQuestions(ctx, questions); err != nil {
		return err
	}
	log.Printf("imported %d questions", len(questions))
	return nil
}
