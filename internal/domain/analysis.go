package domain

import "strings"

// Feeling is how a practice session felt, as classified from the log text.
type Feeling string

const (
	FeelingSmooth    Feeling = "smooth"
	FeelingDifficult Feeling = "difficult"
	FeelingNormal    Feeling = "normal"
)

// ParseFeeling maps free text onto a known feeling.
// The boolean is false when s is not one of the three recognized values.
func ParseFeeling(s string) (Feeling, bool) {
	switch f := Feeling(strings.ToLower(strings.TrimSpace(s))); f {
	case FeelingSmooth, FeelingDifficult, FeelingNormal:
		return f, true
	default:
		return FeelingNormal, false
	}
}

// AnalysisResult is the structured reading of a practice log supplied by the oracle.
// Optional fields are nil when the oracle omitted them or they failed validation.
type AnalysisResult struct {
	SkillLevel         float64  `json:"skillLevel"`
	Confidence         float64  `json:"confidence"`
	Feeling            Feeling  `json:"feeling"`
	NextReviewInterval *float64 `json:"nextReviewInterval,omitempty"`
	Difficulty         *float64 `json:"difficulty,omitempty"`
	Retention          *float64 `json:"retention,omitempty"`
	Suggestion         string   `json:"suggestion,omitempty"`
}

// Float returns a pointer to v, for building optional analysis fields.
func Float(v float64) *float64 {
	return &v
}
