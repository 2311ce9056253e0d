package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"duel-service/internal/domain"
)

// DuelStore abstracts how duel records are persisted (in-memory, Postgres).
// AtomicUpdate is the single concurrency primitive: the mutator runs against
// a snapshot and the result is committed only if no concurrent write landed
// in between, otherwise domain.ErrStoreConflict is returned.
type DuelStore interface {
	Create(ctx context.Context, duel *domain.Duel) error
	GetByID(ctx context.Context, id string) (*domain.Duel, error)
	AtomicUpdate(ctx context.Context, id string, mutate func(*domain.Duel) error) (*domain.Duel, error)
	Delete(ctx context.Context, id string) error
	ListForUser(ctx context.Context, userID string, statuses []domain.DuelStatus) ([]*domain.Duel, error)
}

// UserRepository resolves participants and owns their cumulative statistics.
// ApplyStats must be atomic per user so concurrent duels touching the same
// user never lose an update.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	ApplyStats(ctx context.Context, userID string, delta domain.StatsDelta) error
	AppendHistory(ctx context.Context, entry domain.HistoryEntry) error
	History(ctx context.Context, userID string, page, limit int) ([]domain.HistoryEntry, int, error)
	Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error)
}

// QuestionBank supplies one random question per duel creation.
type QuestionBank interface {
	RandomQuestion(ctx context.Context, category string) (domain.Question, error)
}

// Notifier delivers duel lifecycle events. Delivery is fire-and-forget;
// at-least-once is acceptable and failures never affect duel state.
type Notifier interface {
	EmitToUser(userID, event string, payload any)
	EmitToDuel(duelID, event string, payload any)
	Broadcast(event string, payload any)
}

// Lifecycle event names, matching what clients subscribe to.
const (
	EventDuelReceived       = "duelReceived"
	EventDuelAccepted       = "duelAccepted"
	EventDuelCompleted      = "duelCompleted"
	EventDuelCancelled      = "duelCancelled"
	EventLeaderboardUpdated = "leaderboardUpdated"
)

// defaultMaxRetries bounds how often a conflicting atomic update is retried
// before surfacing the conflict to the caller.
const defaultMaxRetries = 5

// DuelEngine orchestrates the duel lifecycle: create -> accept -> answer x2
// -> complete. It guarantees at-most-once answer acceptance per side and
// fires completion side effects exactly once.
type DuelEngine struct {
	duels      DuelStore
	users      UserRepository
	questions  QuestionBank
	notifier   Notifier
	maxRetries int
	now        func() time.Time
	newID      func() string
}

func NewDuelEngine(duels DuelStore, users UserRepository, questions QuestionBank, notifier Notifier) *DuelEngine {
	return &DuelEngine{
		duels:      duels,
		users:      users,
		questions:  questions,
		notifier:   notifier,
		maxRetries: defaultMaxRetries,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// WithMaxRetries overrides the bounded retry count for conflicting updates.
func (e *DuelEngine) WithMaxRetries(n int) *DuelEngine {
	if n > 0 {
		e.maxRetries = n
	}
	return e
}

// WithClock is test-only for deterministic timestamps.
func (e *DuelEngine) WithClock(now func() time.Time) *DuelEngine {
	e.now = now
	return e
}

// Create resolves both participants, draws a question for the category and
// persists a pending duel. Nothing is persisted when any step fails.
func (e *DuelEngine) Create(ctx context.Context, challengerID, opponentID, category string) (*domain.Duel, error) {
	if challengerID == "" || opponentID == "" || category == "" {
		return nil, domain.ErrInvalidRequest
	}
	if challengerID == opponentID {
		return nil, domain.ErrSelfDuel
	}

	challenger, err := e.users.FindByID(ctx, challengerID)
	if err != nil {
		return nil, err
	}
	opponent, err := e.users.FindByID(ctx, opponentID)
	if err != nil {
		return nil, err
	}

	question, err := e.questions.RandomQuestion(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("draw question: %w", err)
	}

	duel := &domain.Duel{
		ID:            e.newID(),
		Challenger:    domain.ParticipantSlot{UserID: challenger.ID, Username: challenger.Username},
		Opponent:      domain.ParticipantSlot{UserID: opponent.ID, Username: opponent.Username},
		Category:      category,
		Question:      question.Question,
		Options:       question.Options,
		CorrectAnswer: question.CorrectAnswer,
		Status:        domain.StatusPending,
		CreatedAt:     e.now(),
	}
	if err := e.duels.Create(ctx, duel); err != nil {
		return nil, fmt.Errorf("persist duel: %w", err)
	}

	e.notifier.EmitToUser(opponent.ID, EventDuelReceived, duel)
	return duel, nil
}

// Accept marks a pending duel as accepted and notifies both participants.
// Accepting an already accepted duel is a no-op success so callers can
// safely retry a request whose first response was lost.
func (e *DuelEngine) Accept(ctx context.Context, duelID string) (*domain.Duel, error) {
	if duelID == "" {
		return nil, domain.ErrInvalidRequest
	}
	duel, err := e.atomicUpdate(ctx, duelID, func(d *domain.Duel) error {
		if d.Status == domain.StatusPending {
			d.Status = domain.StatusAccepted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notifier.EmitToUser(duel.Challenger.UserID, EventDuelAccepted, duel)
	e.notifier.EmitToUser(duel.Opponent.UserID, EventDuelAccepted, duel)
	return duel, nil
}

// SubmitAnswer records one side's answer. The duplicate check, the write and
// the both-answered completion predicate all run inside a single atomic
// update of the duel record, so racing submissions can never double-accept
// an answer or fire completion twice.
func (e *DuelEngine) SubmitAnswer(ctx context.Context, duelID, userID, answer string) (*domain.Duel, error) {
	if duelID == "" || userID == "" || answer == "" {
		return nil, domain.ErrInvalidRequest
	}

	var completing bool
	duel, err := e.atomicUpdate(ctx, duelID, func(d *domain.Duel) error {
		completing = false

		side, ok := d.SideOf(userID)
		if !ok {
			return domain.ErrForbiddenParticipant
		}
		slot := d.Slot(side)
		if slot.Answered {
			return domain.ErrDuplicateAnswer
		}

		slot.Answer = answer
		slot.Answered = true
		if domain.AnswerCorrect(answer, d.CorrectAnswer) {
			slot.PointsGained = 1
		} else {
			slot.PointsGained = 0
		}

		if d.BothAnswered() {
			verdict := domain.Score(d.Challenger.Answer, d.Opponent.Answer, d.CorrectAnswer)
			d.Status = domain.StatusCompleted
			d.Challenger.PointsGained = verdict.ChallengerPoints
			d.Opponent.PointsGained = verdict.OpponentPoints
			d.Winner = winnerLabel(d, verdict)
			completing = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Only the submission whose atomic update flipped the status runs the
	// completion side effects, so they execute exactly once per duel.
	if completing {
		e.finishDuel(ctx, duel)
	}
	return duel, nil
}

// Cancel deletes an existing duel and tells both participants. When a cancel
// races a submission, whichever atomic store operation lands first wins; the
// loser observes ErrDuelNotFound or a completed duel, never a half-deleted one.
func (e *DuelEngine) Cancel(ctx context.Context, duelID string) error {
	if duelID == "" {
		return domain.ErrInvalidRequest
	}
	duel, err := e.duels.GetByID(ctx, duelID)
	if err != nil {
		return err
	}
	if err := e.duels.Delete(ctx, duelID); err != nil {
		return err
	}

	payload := map[string]string{"duelId": duel.ID}
	e.notifier.EmitToUser(duel.Challenger.UserID, EventDuelCancelled, payload)
	e.notifier.EmitToUser(duel.Opponent.UserID, EventDuelCancelled, payload)
	e.notifier.EmitToDuel(duel.ID, EventDuelCancelled, payload)
	return nil
}

// Get fetches a duel by ID.
func (e *DuelEngine) Get(ctx context.Context, duelID string) (*domain.Duel, error) {
	if duelID == "" {
		return nil, domain.ErrInvalidRequest
	}
	return e.duels.GetByID(ctx, duelID)
}

// ListForUser returns the open duels (pending or accepted) where the user is
// either side.
func (e *DuelEngine) ListForUser(ctx context.Context, userID string) ([]*domain.Duel, error) {
	if userID == "" {
		return nil, domain.ErrInvalidRequest
	}
	return e.duels.ListForUser(ctx, userID, []domain.DuelStatus{domain.StatusPending, domain.StatusAccepted})
}

// Leaderboard returns the global ranking of users with at least one point.
func (e *DuelEngine) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return e.users.Leaderboard(ctx)
}

// History returns one page of a user's duel history, newest first, along
// with the total entry count for pagination.
func (e *DuelEngine) History(ctx context.Context, userID string, page, limit int) ([]domain.HistoryEntry, int, error) {
	if userID == "" {
		return nil, 0, domain.ErrInvalidRequest
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return e.users.History(ctx, userID, page, limit)
}

// finishDuel applies the completion side effects: statistics and history for
// both participants, then the completion notifications. The duel record is
// already committed; failures here are logged and do not unwind the duel.
func (e *DuelEngine) finishDuel(ctx context.Context, duel *domain.Duel) {
	verdict := domain.Score(duel.Challenger.Answer, duel.Opponent.Answer, duel.CorrectAnswer)
	now := e.now()

	e.applyOutcome(ctx, duel, duel.Challenger, duel.Opponent, verdict.ChallengerOutcome, verdict.ChallengerPoints, verdict.CountedDraw, now)
	e.applyOutcome(ctx, duel, duel.Opponent, duel.Challenger, verdict.OpponentOutcome, verdict.OpponentPoints, verdict.CountedDraw, now)

	e.notifier.Broadcast(EventLeaderboardUpdated, nil)
	e.notifier.EmitToUser(duel.Challenger.UserID, EventDuelCompleted, duel)
	e.notifier.EmitToUser(duel.Opponent.UserID, EventDuelCompleted, duel)
	e.notifier.EmitToDuel(duel.ID, EventDuelCompleted, duel)
}

// applyOutcome updates one participant's cumulative statistics and appends
// their history entry. A draw only increments totalDraws when both sides
// scored (the counted-draw rule); a scoreless draw still shows up in history
// as a draw but leaves the counter alone.
func (e *DuelEngine) applyOutcome(ctx context.Context, duel *domain.Duel, self, other domain.ParticipantSlot, outcome domain.Outcome, points int, countedDraw bool, now time.Time) {
	delta := domain.StatsDelta{Points: points, DuelsPlayed: 1}
	switch outcome {
	case domain.OutcomeWin:
		delta.Wins = 1
	case domain.OutcomeLoss:
		delta.Losses = 1
	case domain.OutcomeDraw:
		if countedDraw {
			delta.Draws = 1
		}
	}
	if err := e.users.ApplyStats(ctx, self.UserID, delta); err != nil {
		log.Printf("apply stats for %s after duel %s: %v", self.UserID, duel.ID, err)
	}

	pointsLost := 0
	if outcome == domain.OutcomeLoss {
		pointsLost = 1
	}
	entry := domain.HistoryEntry{
		DuelID:           duel.ID,
		UserID:           self.UserID,
		Result:           outcome,
		PointsGained:     points,
		PointsLost:       pointsLost,
		UserAnswer:       self.Answer,
		CorrectAnswer:    duel.CorrectAnswer,
		OpponentUsername: other.Username,
		Question:         duel.Question,
		Date:             now,
	}
	if err := e.users.AppendHistory(ctx, entry); err != nil {
		log.Printf("append history for %s after duel %s: %v", self.UserID, duel.ID, err)
	}
}

// atomicUpdate retries conflicting updates a bounded number of times before
// surfacing the conflict.
func (e *DuelEngine) atomicUpdate(ctx context.Context, duelID string, mutate func(*domain.Duel) error) (*domain.Duel, error) {
	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		duel, err := e.duels.AtomicUpdate(ctx, duelID, mutate)
		if err == nil {
			return duel, nil
		}
		if !errors.Is(err, domain.ErrStoreConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("duel %s update exhausted %d retries: %w", duelID, e.maxRetries, lastErr)
}

func winnerLabel(d *domain.Duel, verdict domain.ScoreResult) string {
	switch verdict.WinnerSide {
	case domain.SideChallenger:
		return d.Challenger.Username
	case domain.SideOpponent:
		return d.Opponent.Username
	}
	return domain.WinnerDraw
}
