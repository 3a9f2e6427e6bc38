// Package scoring computes the points awarded for a single challenge answer.
package scoring

import (
	"math"

	"bleepy-challenge-service/internal/domain"
)

const (
	// BasePoints is awarded for every correct answer before multipliers.
	BasePoints = 100
	// TimeoutThreshold classifies an answer as a timeout. Display only.
	TimeoutThreshold = 60.0

	TimingOnTime  = "on_time"
	TimingTimeout = "timeout"
)

// Score returns the breakdown for one answer. It is pure and deterministic.
// Speed does not affect points; SpeedBonus is kept at zero for output compatibility.
func Score(isCorrect bool, timeTakenSeconds float64, difficulty domain.Difficulty, currentStreak int) domain.ScoreBreakdown {
	timing := Classify(timeTakenSeconds)
	if !isCorrect {
		return domain.ScoreBreakdown{
			DifficultyMultiplier: 1.0,
			StreakMultiplier:     1.0,
			Timing:               timing,
		}
	}

	dm := DifficultyMultiplier(difficulty)
	sm := StreakMultiplier(currentStreak)
	return domain.ScoreBreakdown{
		BasePoints:           BasePoints,
		SpeedBonus:           0,
		DifficultyMultiplier: dm,
		StreakMultiplier:     sm,
		TotalPoints:          int(math.Round(float64(BasePoints) * dm * sm)),
		Timing:               timing,
	}
}

// DifficultyMultiplier maps a difficulty to its multiplier; unknown values score as easy.
func DifficultyMultiplier(d domain.Difficulty) float64 {
	switch d {
	case domain.DifficultyMedium:
		return 1.3
	case domain.DifficultyHard:
		return 1.6
	default:
		return 1.0
	}
}

// StreakMultiplier is a step function of consecutive correct answers.
func StreakMultiplier(streak int) float64 {
	switch {
	case streak >= 10:
		return 2.0
	case streak >= 5:
		return 1.5
	case streak >= 3:
		return 1.2
	default:
		return 1.0
	}
}

// Classify reports whether the answer took long enough to count as a timeout.
func Classify(timeTakenSeconds float64) string {
	if timeTakenSeconds >= TimeoutThreshold {
		return TimingTimeout
	}
	return TimingOnTime
}
