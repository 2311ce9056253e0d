package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"duel-service/internal/domain"
)

// QuestionLoader fetches a category's question pool from a backing store.
type QuestionLoader interface {
	QuestionsByCategory(ctx context.Context, category string) ([]domain.Question, error)
}

// QuestionBank caches whole category pools in Redis as JSON and draws random
// questions from the cached pool. Cache misses are collapsed with
// singleflight so a popular category hits the backing store once, and TTLs
// carry jitter to spread expirations.
// Pools are stored as: SET questions:{category} {json array}
type QuestionBank struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) RandomQuestion(ctx context.Context, category string) (domain.Question, error) {
	pool, err := b.pool(ctx, category)
	if err != nil {
		return domain.Question{}, err
	}
	if len(pool) == 0 {
		return domain.Question{}, domain.ErrQuestionUnavailable
	}
	return pool[rand.Intn(len(pool))], nil
}

func (b *QuestionBank) pool(ctx context.Context, category string) ([]domain.Question, error) {
	key := b.key(category)

	raw, err := b.client.Get(ctx, key).Bytes()
	if err == nil && len(raw) > 0 {
		return decodePool(raw)
	}

	result, err, _ := b.sf.Do(category, func() (interface{}, error) {
		// Re-check the cache in case another goroutine filled it.
		raw, err := b.client.Get(ctx, key).Bytes()
		if err == nil && len(raw) > 0 {
			return decodePool(raw)
		}

		pool, err := b.loader.QuestionsByCategory(ctx, category)
		if err != nil {
			return nil, err
		}

		encoded, err := json.Marshal(pool)
		if err != nil {
			return nil, fmt.Errorf("encode question pool: %w", err)
		}
		_ = b.client.Set(ctx, key, encoded, b.ttlWithJitter()).Err()
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) key(category string) string {
	return "questions:" + category
}

func decodePool(raw []byte) ([]domain.Question, error) {
	var pool []domain.Question
	if err := json.Unmarshal(raw, &pool); err != nil {
		return nil, fmt.Errorf("decode question pool: %w", err)
	}
	return pool, nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
