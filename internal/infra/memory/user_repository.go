package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"duel-service/internal/domain"
)

// UserRepository keeps users, statistics and the append-only duel history in
// memory. History lives beside the user record rather than inside it so
// appends never rewrite the user itself.
type UserRepository struct {
	mu      sync.RWMutex
	users   map[string]*domain.User
	history map[string][]domain.HistoryEntry
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:   make(map[string]*domain.User),
		history: make(map[string][]domain.HistoryEntry),
	}
}

// Put inserts or replaces a user. Used for seeding demo data and tests.
func (r *UserRepository) Put(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Username == username {
			cp := *user
			return &cp, nil
		}
	}
	return nil, domain.ErrParticipantNotFound
}

func (r *UserRepository) ApplyStats(_ context.Context, userID string, delta domain.StatsDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	user.Points += delta.Points
	user.TotalDuelsPlayed += delta.DuelsPlayed
	user.TotalWins += delta.Wins
	user.TotalLosses += delta.Losses
	user.TotalDraws += delta.Draws
	return nil
}

func (r *UserRepository) AppendHistory(_ context.Context, entry domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[entry.UserID] = append(r.history[entry.UserID], entry)
	return nil
}

func (r *UserRepository) History(_ context.Context, userID string, page, limit int) ([]domain.HistoryEntry, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := slices.Clone(r.history[userID])
	slices.SortFunc(entries, func(a, b domain.HistoryEntry) int {
		return b.Date.Compare(a.Date)
	})

	total := len(entries)
	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return entries[start:end], total, nil
}

func (r *UserRepository) Leaderboard(_ context.Context) ([]domain.LeaderboardEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.LeaderboardEntry
	for _, user := range r.users {
		if user.Points < 1 {
			continue
		}
		out = append(out, domain.LeaderboardEntry{
			Username:         user.Username,
			Points:           user.Points,
			TotalWins:        user.TotalWins,
			TotalDraws:       user.TotalDraws,
			TotalDuelsPlayed: user.TotalDuelsPlayed,
		})
	}
	slices.SortFunc(out, func(a, b domain.LeaderboardEntry) int {
		if a.Points != b.Points {
			return b.Points - a.Points
		}
		return strings.Compare(a.Username, b.Username)
	})
	return out, nil
}
