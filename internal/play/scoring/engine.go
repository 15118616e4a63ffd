package scoring

import (
	"time"
)

// ScoringConfig holds configurable scoring constants.
type ScoringConfig struct {
	BaseScore          int     // default: 100
	MaxTimeBonus       int     // default: 50
	StreakBonusPercent float64 // default: 0.05 (5% per consecutive correct)
	MaxStreakBonus     float64 // default: 0.50 (50% cap)
}

// DefaultScoringConfig returns production defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		BaseScore:          100,
		MaxTimeBonus:       50,
		StreakBonusPercent: 0.05,
		MaxStreakBonus:     0.50,
	}
}

// Engine computes leaderboard points. Points never influence the percentage score.
type Engine struct {
	config ScoringConfig
}

// NewEngine creates a scoring engine; a zero config falls back to defaults.
func NewEngine(config ScoringConfig) *Engine {
	if config.BaseScore == 0 {
		config = DefaultScoringConfig()
	}
	return &Engine{config: config}
}

// CalculateScore computes points for a single answer.
// Formula: base + time_bonus + streak_bonus
// - base: always awarded if correct
// - time_bonus: max when answered instantly, decays linearly to 0 at the limit;
//   only applies when the question had its own limit
// - streak_bonus: percentage of base, grows with consecutive correct answers
func (e *Engine) CalculateScore(
	isCorrect bool,
	timeRemaining time.Duration,
	timeLimit time.Duration,
	currentStreak int,
) int {
	if !isCorrect {
		return 0
	}

	score := e.config.BaseScore

	if timeLimit > 0 {
		timeRatio := float64(timeRemaining) / float64(timeLimit)
		if timeRatio > 1.0 {
			timeRatio = 1.0
		}
		if timeRatio < 0.0 {
			timeRatio = 0.0
		}
		score += int(float64(e.config.MaxTimeBonus) * timeRatio)
	}

	if currentStreak > 0 {
		score += int(float64(e.config.BaseScore) * e.streakMultiplier(currentStreak))
	}

	return score
}

// Outcome is one graded answer as seen by the points calculation.
type Outcome struct {
	IsCorrect     bool
	TimeRemaining time.Duration
	TimeLimit     time.Duration // zero when the session has no per-question limit
}

// ComputeTotal sums points over outcomes in resolution order and returns the
// longest run of correct answers alongside.
func (e *Engine) ComputeTotal(outcomes []Outcome) (total int, maxStreak int) {
	streak := 0
	for _, o := range outcomes {
		if o.IsCorrect {
			streak++
			if streak > maxStreak {
				maxStreak = streak
			}
		} else {
			streak = 0
		}
		total += e.CalculateScore(o.IsCorrect, o.TimeRemaining, o.TimeLimit, streak)
	}
	return total, maxStreak
}

// StreakBonusPct returns the bonus fraction applied for a streak of the given length.
func (e *Engine) StreakBonusPct(streak int) float64 {
	if streak <= 0 {
		return 0
	}
	return e.streakMultiplier(streak)
}

func (e *Engine) streakMultiplier(streak int) float64 {
	m := float64(streak) * e.config.StreakBonusPercent
	if m > e.config.MaxStreakBonus {
		m = e.config.MaxStreakBonus
	}
	return m
}
