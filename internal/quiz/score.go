package quiz

import (
	"math"
	"time"
)

// speedBonusMax is the bonus granted for an instantaneous correct answer.
const speedBonusMax = 50

// scoreDelta computes the points granted for an answer submission.
// An incorrect answer grants zero. A correct answer grants the base
// points, plus a speed bonus of max(0, floor((1 - elapsed/limit) * 50))
// when enabled. Elapsed time is clamped to [0, limit] first.
func scoreDelta(cfg Config, correct bool, elapsed time.Duration) int {
	if !correct {
		return 0
	}

	points := cfg.PointsForCorrect
	if !cfg.BonusForSpeed {
		return points
	}

	elapsed = clampElapsed(elapsed, cfg.TimePerQuestion)
	frac := 1 - elapsed.Seconds()/cfg.TimePerQuestion.Seconds()
	if bonus := int(math.Floor(frac * speedBonusMax)); bonus > 0 {
		points += bonus
	}

	return points
}

func clampElapsed(elapsed, limit time.Duration) time.Duration {
	if elapsed < 0 {
		return 0
	}
	if elapsed > limit {
		return limit
	}
	return elapsed
}
