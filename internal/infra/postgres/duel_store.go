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

// DuelStore persists duels in Postgres. AtomicUpdate uses optimistic
// concurrency: the row carries a version column and the UPDATE only lands
// when the version read is still current, otherwise domain.ErrStoreConflict
// is returned and the engine retries.
type DuelStore struct {
	pool *pgxpool.Pool
}

func NewDuelStore(pool *pgxpool.Pool) *DuelStore {
	return &DuelStore{pool: pool}
}

const duelColumns = `id, challenger_id, challenger_username, challenger_answer, challenger_answered, challenger_points,
	opponent_id, opponent_username, opponent_answer, opponent_answered, opponent_points,
	category, question, options, correct_answer, status, winner, version, created_at`

func (s *DuelStore) Create(ctx context.Context, duel *domain.Duel) error {
	options, err := json.Marshal(duel.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	duel.Version = 1
	_, err = s.pool.Exec(ctx, `
		INSERT INTO duels (`+duelColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		duel.ID,
		duel.Challenger.UserID, duel.Challenger.Username, duel.Challenger.Answer, duel.Challenger.Answered, duel.Challenger.PointsGained,
		duel.Opponent.UserID, duel.Opponent.Username, duel.Opponent.Answer, duel.Opponent.Answered, duel.Opponent.PointsGained,
		duel.Category, duel.Question, options, duel.CorrectAnswer, duel.Status, duel.Winner, duel.Version, duel.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert duel: %w", err)
	}
	return nil
}

func (s *DuelStore) GetByID(ctx context.Context, id string) (*domain.Duel, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+duelColumns+` FROM duels WHERE id=$1`, id)
	return scanDuel(row)
}

func (s *DuelStore) AtomicUpdate(ctx context.Context, id string, mutate func(*domain.Duel) error) (*domain.Duel, error) {
	duel, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	readVersion := duel.Version

	if err := mutate(duel); err != nil {
		return nil, err
	}

	options, err := json.Marshal(duel.Options)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	duel.Version = readVersion + 1
	tag, err := s.pool.Exec(ctx, `
		UPDATE duels SET
			challenger_answer=$2, challenger_answered=$3, challenger_points=$4,
			opponent_answer=$5, opponent_answered=$6, opponent_points=$7,
			question=$8, options=$9, correct_answer=$10, status=$11, winner=$12, version=$13
		WHERE id=$1 AND version=$14`,
		duel.ID,
		duel.Challenger.Answer, duel.Challenger.Answered, duel.Challenger.PointsGained,
		duel.Opponent.Answer, duel.Opponent.Answered, duel.Opponent.PointsGained,
		duel.Question, options, duel.CorrectAnswer, duel.Status, duel.Winner, duel.Version,
		readVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update duel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either a concurrent writer bumped the version or the duel was
		// deleted under us; distinguish so cancel races surface as not found.
		if _, err := s.GetByID(ctx, id); errors.Is(err, domain.ErrDuelNotFound) {
			return nil, domain.ErrDuelNotFound
		}
		return nil, domain.ErrStoreConflict
	}
	return duel, nil
}

func (s *DuelStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM duels WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete duel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuelNotFound
	}
	return nil
}

func (s *DuelStore) ListForUser(ctx context.Context, userID string, statuses []domain.DuelStatus) ([]*domain.Duel, error) {
	states := make([]string, 0, len(statuses))
	for _, st := range statuses {
		states = append(states, string(st))
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+duelColumns+` FROM duels
		WHERE (challenger_id=$1 OR opponent_id=$1) AND status = ANY($2)
		ORDER BY created_at DESC`, userID, states)
	if err != nil {
		return nil, fmt.Errorf("list duels: %w", err)
	}
	defer rows.Close()

	var out []*domain.Duel
	for rows.Next() {
		duel, err := scanDuel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, duel)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDuel(row rowScanner) (*domain.Duel, error) {
	var duel domain.Duel
	var options []byte
	err := row.Scan(
		&duel.ID,
		&duel.Challenger.UserID, &duel.Challenger.Username, &duel.Challenger.Answer, &duel.Challenger.Answered, &duel.Challenger.PointsGained,
		&duel.Opponent.UserID, &duel.Opponent.Username, &duel.Opponent.Answer, &duel.Opponent.Answered, &duel.Opponent.PointsGained,
		&duel.Category, &duel.Question, &options, &duel.CorrectAnswer, &duel.Status, &duel.Winner, &duel.Version, &duel.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDuelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan duel: %w", err)
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &duel.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
	}
	return &duel, nil
}
