package app

import "trivia-round-service/internal/domain"

const (
	// RoundSeconds is the fixed answer window of every round.
	RoundSeconds = 30
	// HintPenalty is charged when the hint is applied, whatever the outcome.
	HintPenalty = 10
	// ComboEvery is the streak length that earns ComboBonus.
	ComboEvery = 3
	// ComboBonus is added on the settlement that brings the streak to a multiple of ComboEvery.
	ComboBonus = 5
)

var basePoints = map[domain.Difficulty]int{
	domain.Easy:   5,
	domain.Medium: 10,
	domain.Hard:   15,
}

// BasePoints returns the reward for a correct answer at the given difficulty.
func BasePoints(d domain.Difficulty) int {
	return basePoints[d]
}

// Outcome is the score effect of one settlement.
type Outcome struct {
	PointsDelta int
	NewStreak   int
	ComboBonus  bool
}

// Settle computes the score effect of a settlement. The hint penalty is charged
// when the hint is applied, so hintApplied does not change the result here.
func Settle(difficulty domain.Difficulty, correct, hintApplied bool, streak int) Outcome {
	if !correct {
		return Outcome{}
	}
	out := Outcome{
		PointsDelta: BasePoints(difficulty),
		NewStreak:   streak + 1,
	}
	if out.NewStreak%ComboEvery == 0 {
		out.PointsDelta += ComboBonus
		out.ComboBonus = true
	}
	return out
}
