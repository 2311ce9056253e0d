package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"duel-service/internal/domain"
)

// QuestionBank draws random questions from the questions table. It also
// serves whole category pools so the Redis cache layer can warm itself.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

func (b *QuestionBank) RandomQuestion(ctx context.Context, category string) (domain.Question, error) {
	var q domain.Question
	var options []byte
	err := b.pool.QueryRow(ctx, `
		SELECT category, question, options, correct_answer
		FROM questions WHERE category=$1
		ORDER BY random() LIMIT 1`, category).Scan(&q.Category, &q.Question, &options, &q.CorrectAnswer)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionUnavailable
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("random question: %w", err)
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return domain.Question{}, fmt.Errorf("decode options: %w", err)
	}
	return q, nil
}

func (b *QuestionBank) QuestionsByCategory(ctx context.Context, category string) ([]domain.Question, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT category, question, options, correct_answer
		FROM questions WHERE category=$1`, category)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var q domain.Question
		var options []byte
		if err := rows.Scan(&q.Category, &q.Question, &options, &q.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrQuestionUnavailable
	}
	return out, nil
}

// InsertQuestions bulk-loads questions, used by the seed command.
func (b *QuestionBank) InsertQuestions(ctx context.Context, questions []domain.Question) error {
	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("encode options: %w", err)
		}
		if _, err := b.pool.Exec(ctx, `
			INSERT INTO questions (category, question, options, correct_answer)
			VALUES ($1,$2,$3,$4)`, q.Category, q.Question, options, q.CorrectAnswer); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}
	return nil
}
