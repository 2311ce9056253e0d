package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"duel-service/internal/domain"
)

func TestUserRepositoryStats(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	if err := repo.Put(ctx, &domain.User{ID: "u1", Username: "alice"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := repo.ApplyStats(ctx, "u1", domain.StatsDelta{Points: 2, DuelsPlayed: 1, Wins: 1}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	user, err := repo.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if user.Points != 2 || user.TotalWins != 1 || user.TotalDuelsPlayed != 1 {
		t.Fatalf("unexpected stats: %+v", user)
	}

	if err := repo.ApplyStats(ctx, "ghost", domain.StatsDelta{Points: 1}); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}

func TestApplyStatsIsAtomicUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	if err := repo.Put(ctx, &domain.User{ID: "u1", Username: "alice"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.ApplyStats(ctx, "u1", domain.StatsDelta{Points: 1, DuelsPlayed: 1})
		}()
	}
	wg.Wait()

	user, err := repo.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if user.Points != workers || user.TotalDuelsPlayed != workers {
		t.Fatalf("lost updates: points=%d played=%d, want %d", user.Points, user.TotalDuelsPlayed, workers)
	}
}

func TestHistoryIsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := repo.AppendHistory(ctx, domain.HistoryEntry{
			DuelID: string(rune('a' + i)),
			UserID: "u1",
			Result: domain.OutcomeWin,
			Date:   base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, total, err := repo.History(ctx, "u1", 1, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 3 || len(entries) != 2 {
		t.Fatalf("page = %d entries (total %d), want 2 (3)", len(entries), total)
	}
	if !entries[0].Date.After(entries[1].Date) {
		t.Fatalf("expected newest first, got %v then %v", entries[0].Date, entries[1].Date)
	}
}

func TestLeaderboardFiltersZeroPoints(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	_ = repo.Put(ctx, &domain.User{ID: "u1", Username: "alice", Points: 4})
	_ = repo.Put(ctx, &domain.User{ID: "u2", Username: "bob", Points: 0})
	_ = repo.Put(ctx, &domain.User{ID: "u3", Username: "carol", Points: 7})

	entries, err := repo.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 2 || entries[0].Username != "carol" || entries[1].Username != "alice" {
		t.Fatalf("unexpected order: %+v", entries)
	}
}
