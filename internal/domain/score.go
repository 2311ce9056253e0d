package domain

import "strings"

// Outcome labels one participant's result in a completed duel.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
)

// ScoreResult is the full verdict for a completed duel. WinnerSide is empty
// for draws. CountedDraw distinguishes the both-correct draw (each side
// earned a point, totalDraws increments) from the both-wrong draw (nobody
// scored, totalDraws stays untouched).
type ScoreResult struct {
	ChallengerPoints  int
	OpponentPoints    int
	ChallengerOutcome Outcome
	OpponentOutcome   Outcome
	WinnerSide        Side
	CountedDraw       bool
}

// AnswerCorrect compares a submitted answer against the correct one using
// trimmed, case-insensitive equality.
func AnswerCorrect(answer, correctAnswer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(correctAnswer))
}

// Score computes the final verdict from both answers. A correct answer is
// worth 1 raw point; the side with strictly more raw points wins and takes 2
// final points while the loser takes 0. Both correct is a counted draw worth
// 1 point each. Both wrong is a draw worth nothing and does not count toward
// draw totals.
func Score(challengerAnswer, opponentAnswer, correctAnswer string) ScoreResult {
	challengerRaw := rawPoints(challengerAnswer, correctAnswer)
	opponentRaw := rawPoints(opponentAnswer, correctAnswer)

	switch {
	case challengerRaw > opponentRaw:
		return ScoreResult{
			ChallengerPoints:  2,
			OpponentPoints:    0,
			ChallengerOutcome: OutcomeWin,
			OpponentOutcome:   OutcomeLoss,
			WinnerSide:        SideChallenger,
		}
	case opponentRaw > challengerRaw:
		return ScoreResult{
			ChallengerPoints:  0,
			OpponentPoints:    2,
			ChallengerOutcome: OutcomeLoss,
			OpponentOutcome:   OutcomeWin,
			WinnerSide:        SideOpponent,
		}
	case challengerRaw > 0:
		return ScoreResult{
			ChallengerPoints:  1,
			OpponentPoints:    1,
			ChallengerOutcome: OutcomeDraw,
			OpponentOutcome:   OutcomeDraw,
			CountedDraw:       true,
		}
	default:
		return ScoreResult{
			ChallengerOutcome: OutcomeDraw,
			OpponentOutcome:   OutcomeDraw,
		}
	}
}

func rawPoints(answer, correctAnswer string) int {
	if AnswerCorrect(answer, correctAnswer) {
		return 1
	}
	return 0
}
