package rating

import "math"

const (
	// DefaultRating is the rating assigned to players with no rating row.
	DefaultRating = 1000

	kBase          = 600.0
	streakBonus    = 0.05
	streakBonusCap = 5

	minWinGain  = 100
	maxWinGain  = 250
	minLoseLoss = -100
	maxLoseLoss = -50
)

// Delta is the rating change produced by a single settled match.
// WinGain is always positive, LoseLoss always negative.
type Delta struct {
	WinGain  int
	LoseLoss int
}

// ComputeDelta computes the symmetric rating change for a finished series.
//
// The expected score follows the usual logistic curve with a 400-point
// divisor. The K factor grows with the winner's streak (capped at 5) and
// with the series margin, then both deltas are clamped so a single match
// moves a rating by a bounded, display-friendly amount.
func ComputeDelta(ratingWinner, ratingLoser, winScore, loseScore, winnerStreak int) Delta {
	expected := 1.0 / (1.0 + math.Pow(10, float64(ratingLoser-ratingWinner)/400.0))

	streak := winnerStreak
	if streak > streakBonusCap {
		streak = streakBonusCap
	}
	if streak < 0 {
		streak = 0
	}
	k := kBase * (1.0 + streakBonus*float64(streak))

	total := winScore + loseScore
	ratio := 1.0
	if total > 0 {
		ratio = float64(winScore) / float64(total)
	}
	k *= 0.8 + 0.4*ratio

	winGain := int(math.Round(k * (1.0 - expected)))
	loseLoss := int(math.Round(-k * expected))

	if winGain < minWinGain {
		winGain = minWinGain
	}
	if winGain > maxWinGain {
		winGain = maxWinGain
	}
	if loseLoss < minLoseLoss {
		loseLoss = minLoseLoss
	}
	if loseLoss > maxLoseLoss {
		loseLoss = maxLoseLoss
	}

	return Delta{WinGain: winGain, LoseLoss: loseLoss}
}

// ApplyFloor returns the post-match rating, never below zero.
func ApplyFloor(rating int) int {
	if rating < 0 {
		return 0
	}
	return rating
}
