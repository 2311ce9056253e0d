package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"duel-service/internal/domain"
)

// UserRepository stores users and their statistics in Postgres. Statistics
// increments run as a single UPDATE so concurrent duels touching the same
// user never lose an update. History rows live in their own append-only
// table referencing the user, not embedded in the user record.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Put inserts or replaces a user. Used by seeding and tests.
func (r *UserRepository) Put(ctx context.Context, user *domain.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, username, points, total_duels_played, total_wins, total_losses, total_draws, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			username=EXCLUDED.username, points=EXCLUDED.points,
			total_duels_played=EXCLUDED.total_duels_played,
			total_wins=EXCLUDED.total_wins, total_losses=EXCLUDED.total_losses,
			total_draws=EXCLUDED.total_draws`,
		user.ID, user.Username, user.Points, user.TotalDuelsPlayed, user.TotalWins, user.TotalLosses, user.TotalDraws, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findBy(ctx, `WHERE id=$1`, id)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findBy(ctx, `WHERE username=$1`, username)
}

func (r *UserRepository) findBy(ctx context.Context, where string, arg interface{}) (*domain.User, error) {
	var user domain.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, points, total_duels_played, total_wins, total_losses, total_draws, created_at
		FROM users `+where, arg).Scan(
		&user.ID, &user.Username, &user.Points, &user.TotalDuelsPlayed,
		&user.TotalWins, &user.TotalLosses, &user.TotalDraws, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) ApplyStats(ctx context.Context, userID string, delta domain.StatsDelta) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET
			points = points + $2,
			total_duels_played = total_duels_played + $3,
			total_wins = total_wins + $4,
			total_losses = total_losses + $5,
			total_draws = total_draws + $6
		WHERE id=$1`,
		userID, delta.Points, delta.DuelsPlayed, delta.Wins, delta.Losses, delta.Draws,
	)
	if err != nil {
		return fmt.Errorf("apply stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

func (r *UserRepository) AppendHistory(ctx context.Context, entry domain.HistoryEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO duel_history (duel_id, user_id, result, points_gained, points_lost,
			user_answer, correct_answer, opponent_username, question, date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		entry.DuelID, entry.UserID, entry.Result, entry.PointsGained, entry.PointsLost,
		entry.UserAnswer, entry.CorrectAnswer, entry.OpponentUsername, entry.Question, entry.Date,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (r *UserRepository) History(ctx context.Context, userID string, page, limit int) ([]domain.HistoryEntry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM duel_history WHERE user_id=$1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT duel_id, user_id, result, points_gained, points_lost,
			user_answer, correct_answer, opponent_username, question, date
		FROM duel_history
		WHERE user_id=$1
		ORDER BY date DESC
		LIMIT $2 OFFSET $3`, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(
			&entry.DuelID, &entry.UserID, &entry.Result, &entry.PointsGained, &entry.PointsLost,
			&entry.UserAnswer, &entry.CorrectAnswer, &entry.OpponentUsername, &entry.Question, &entry.Date,
		); err != nil {
			return nil, 0, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, entry)
	}
	return out, total, rows.Err()
}

func (r *UserRepository) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT username, points, total_wins, total_draws, total_duels_played
		FROM users
		WHERE points >= 1
		ORDER BY points DESC, username ASC`)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var out []domain.LeaderboardEntry
	for rows.Next() {
		var entry domain.LeaderboardEntry
		if err := rows.Scan(&entry.Username, &entry.Points, &entry.TotalWins, &entry.TotalDraws, &entry.TotalDuelsPlayed); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
