package fsrs

import (
	"math"
	"time"
)

// Mastery buckets derived from stability.
const (
	MasteryBeginner     = "beginner"
	MasteryIntermediate = "intermediate"
	MasteryAdvanced     = "advanced"
	MasteryExpert       = "expert"
)

// DaysUntil returns the whole days from now until due, rounded up, never negative.
func DaysUntil(due, now time.Time) int {
	days := math.Ceil(due.Sub(now).Hours() / 24.0)
	if days < 0 {
		return 0
	}
	return int(days)
}

// IsDue reports whether a review scheduled at due is owed at now.
func IsDue(due, now time.Time) bool {
	return !due.After(now)
}

// Urgency maps the time left before due onto [0.2, 1.0].
func Urgency(due, now time.Time) float64 {
	switch days := DaysUntil(due, now); {
	case days <= 0:
		return 1.0
	case days <= 1:
		return 0.8
	case days <= 3:
		return 0.6
	case days <= 7:
		return 0.4
	default:
		return 0.2
	}
}

// MasteryLevel buckets a stability (in days) into a coarse skill level.
func MasteryLevel(stability float64) string {
	switch {
	case stability >= 365:
		return MasteryExpert
	case stability >= 90:
		return MasteryAdvanced
	case stability >= 30:
		return MasteryIntermediate
	default:
		return MasteryBeginner
	}
}
