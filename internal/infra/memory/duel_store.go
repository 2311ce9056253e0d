package memory

import (
	"context"
	"slices"
	"sync"

	"duel-service/internal/domain"
)

// DuelStore is an in-memory implementation of app.DuelStore. It mirrors the
// optimistic discipline of the Postgres store: AtomicUpdate mutates a
// snapshot outside the lock and commits it only if the record's version is
// unchanged, so engine-level conflict retries behave the same against both
// backends.
type DuelStore struct {
	mu    sync.RWMutex
	duels map[string]*domain.Duel
}

func NewDuelStore() *DuelStore {
	return &DuelStore{duels: make(map[string]*domain.Duel)}
}

func (s *DuelStore) Create(_ context.Context, duel *domain.Duel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := duel.Clone()
	stored.Version = 1
	s.duels[duel.ID] = stored
	duel.Version = stored.Version
	return nil
}

func (s *DuelStore) GetByID(_ context.Context, id string) (*domain.Duel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	duel, ok := s.duels[id]
	if !ok {
		return nil, domain.ErrDuelNotFound
	}
	return duel.Clone(), nil
}

func (s *DuelStore) AtomicUpdate(_ context.Context, id string, mutate func(*domain.Duel) error) (*domain.Duel, error) {
	s.mu.RLock()
	current, ok := s.duels[id]
	if !ok {
		s.mu.RUnlock()
		return nil, domain.ErrDuelNotFound
	}
	snapshot := current.Clone()
	s.mu.RUnlock()

	if err := mutate(snapshot); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	latest, ok := s.duels[id]
	if !ok {
		return nil, domain.ErrDuelNotFound
	}
	if latest.Version != snapshot.Version {
		return nil, domain.ErrStoreConflict
	}
	snapshot.Version++
	s.duels[id] = snapshot
	return snapshot.Clone(), nil
}

func (s *DuelStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.duels[id]; !ok {
		return domain.ErrDuelNotFound
	}
	delete(s.duels, id)
	return nil
}

func (s *DuelStore) ListForUser(_ context.Context, userID string, statuses []domain.DuelStatus) ([]*domain.Duel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Duel
	for _, duel := range s.duels {
		if duel.Challenger.UserID != userID && duel.Opponent.UserID != userID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, duel.Status) {
			continue
		}
		out = append(out, duel.Clone())
	}
	slices.SortFunc(out, func(a, b *domain.Duel) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}
