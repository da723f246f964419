// Package classify turns an analysis of a practice log into a review grade.
package classify

import (
	"math"

	"github.com/conorfennell/skillcadence/internal/domain"
)

// Grade maps an analysis onto Again, Hard, Good or Easy.
//
// Rules are checked in order and the first match wins:
//
//	smooth, level >= 7, confidence >= 0.7  → easy
//	smooth, level >= 5                     → good
//	normal, level >= 4                     → good
//	difficult or level < 4                 → hard when confidence >= 0.6, else again
//	anything else                          → good
//
// Skill level is clamped to [1, 10] and confidence to [0, 1] first.
// NaN values are left alone so they fail every comparison and reach the default.
func Grade(a domain.AnalysisResult) domain.Grade {
	level := clamp(a.SkillLevel, 1, 10)
	confidence := clamp(a.Confidence, 0, 1)

	switch {
	case a.Feeling == domain.FeelingSmooth && level >= 7 && confidence >= 0.7:
		return domain.GradeEasy
	case a.Feeling == domain.FeelingSmooth && level >= 5:
		return domain.GradeGood
	case a.Feeling == domain.FeelingNormal && level >= 4:
		return domain.GradeGood
	case a.Feeling == domain.FeelingDifficult || level < 4:
		if confidence >= 0.6 {
			return domain.GradeHard
		}
		return domain.GradeAgain
	default:
		return domain.GradeGood
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Min(math.Max(v, lo), hi)
}
