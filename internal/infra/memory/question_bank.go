package memory

import (
	"context"
	"math/rand"
	"sync"

	"duel-service/internal/domain"
)

// QuestionBank serves random questions from an in-memory pool, keyed by
// category. Useful for demos and tests; production wires the Postgres bank.
type QuestionBank struct {
	mu        sync.RWMutex
	questions map[string][]domain.Question
}

func NewQuestionBank(questions map[string][]domain.Question) *QuestionBank {
	pool := make(map[string][]domain.Question, len(questions))
	for category, qs := range questions {
		pool[category] = append([]domain.Question(nil), qs...)
	}
	return &QuestionBank{questions: pool}
}

func (b *QuestionBank) RandomQuestion(_ context.Context, category string) (domain.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pool := b.questions[category]
	if len(pool) == 0 {
		return domain.Question{}, domain.ErrQuestionUnavailable
	}
	return pool[rand.Intn(len(pool))], nil
}

// QuestionsByCategory exposes the raw pool so cache layers can warm from it.
func (b *QuestionBank) QuestionsByCategory(_ context.Context, category string) ([]domain.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pool := b.questions[category]
	if len(pool) == 0 {
		return nil, domain.ErrQuestionUnavailable
	}
	return append([]domain.Question(nil), pool...), nil
}
