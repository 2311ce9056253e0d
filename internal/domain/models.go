package domain

import "time"

// DuelStatus tracks the lifecycle of a duel. Transitions only move forward:
// pending -> accepted -> completed.
type DuelStatus string

const (
	StatusPending   DuelStatus = "pending"
	StatusAccepted  DuelStatus = "accepted"
	StatusCompleted DuelStatus = "completed"
)

// Side identifies which role a participant holds within a duel.
type Side string

const (
	SideChallenger Side = "challenger"
	SideOpponent   Side = "opponent"
)

// WinnerDraw is the sentinel winner value when neither side wins outright.
const WinnerDraw = "draw"

// ParticipantSlot holds one side's state within a duel.
type ParticipantSlot struct {
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	Answer       string `json:"answer"`
	Answered     bool   `json:"answered"`
	PointsGained int    `json:"pointsGained"`
}

// Duel is a single-question contest between two participants. The question
// content is fixed at creation; answers and the winner are filled in as the
// duel advances. Version is the optimistic concurrency token managed by the
// store and must not be touched by callers.
type Duel struct {
	ID            string          `json:"id"`
	Challenger    ParticipantSlot `json:"challenger"`
	Opponent      ParticipantSlot `json:"opponent"`
	Category      string          `json:"category"`
	Question      string          `json:"question"`
	Options       []string        `json:"options"`
	CorrectAnswer string          `json:"correctAnswer"`
	Status        DuelStatus      `json:"status"`
	Winner        string          `json:"winner,omitempty"`
	Version       int64           `json:"-"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// SideOf resolves which side of the duel a user plays, if any.
func (d *Duel) SideOf(userID string) (Side, bool) {
	switch userID {
	case d.Challenger.UserID:
		return SideChallenger, true
	case d.Opponent.UserID:
		return SideOpponent, true
	}
	return "", false
}

// Slot returns the mutable participant slot for a side.
func (d *Duel) Slot(side Side) *ParticipantSlot {
	if side == SideChallenger {
		return &d.Challenger
	}
	return &d.Opponent
}

// BothAnswered reports whether both sides have submitted an answer.
func (d *Duel) BothAnswered() bool {
	return d.Challenger.Answered && d.Opponent.Answered
}

// Clone returns a deep copy so store snapshots can be mutated safely.
func (d *Duel) Clone() *Duel {
	cp := *d
	cp.Options = append([]string(nil), d.Options...)
	return &cp
}

// User carries identity plus the cumulative duel statistics mutated on
// duel completion.
type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Points           int       `json:"points"`
	TotalDuelsPlayed int       `json:"totalDuelsPlayed"`
	TotalWins        int       `json:"totalWins"`
	TotalLosses      int       `json:"totalLosses"`
	TotalDraws       int       `json:"totalDraws"`
	CreatedAt        time.Time `json:"createdAt"`
}

// StatsDelta is a single atomic increment applied to a user's statistics.
type StatsDelta struct {
	Points      int
	DuelsPlayed int
	Wins        int
	Losses      int
	Draws       int
}

// HistoryEntry is an immutable record of one completed duel from one
// participant's point of view. Entries are append-only.
type HistoryEntry struct {
	DuelID           string    `json:"duelId"`
	UserID           string    `json:"-"`
	Result           Outcome   `json:"result"`
	PointsGained     int       `json:"pointsGained"`
	PointsLost       int       `json:"pointsLost"`
	UserAnswer       string    `json:"userAnswer"`
	CorrectAnswer    string    `json:"correctAnswer"`
	OpponentUsername string    `json:"opponentUsername"`
	Question         string    `json:"question"`
	Date             time.Time `json:"date"`
}

// LeaderboardEntry is a read-only ranking row.
type LeaderboardEntry struct {
	Username         string `json:"username"`
	Points           int    `json:"points"`
	TotalWins        int    `json:"totalWins"`
	TotalDraws       int    `json:"totalDraws"`
	TotalDuelsPlayed int    `json:"totalDuelsPlayed"`
}

// Question is the content served by the question bank for one duel.
type Question struct {
	Category      string   `json:"category"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}
