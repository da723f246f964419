package classify

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conorfennell/skillcadence/internal/domain"
)

func TestGrade(t *testing.T) {
	tests := []struct {
		name     string
		analysis domain.AnalysisResult
		want     domain.Grade
	}{
		{"smooth expert confident", domain.AnalysisResult{Feeling: domain.FeelingSmooth, SkillLevel: 8, Confidence: 0.8}, domain.GradeEasy},
		{"smooth expert boundary", domain.AnalysisResult{Feeling: domain.FeelingSmooth, SkillLevel: 7, Confidence: 0.7}, domain.GradeEasy},
		{"smooth expert unsure", domain.AnalysisResult{Feeling: domain.FeelingSmooth, SkillLevel: 9, Confidence: 0.5}, domain.GradeGood},
		{"smooth intermediate", domain.AnalysisResult{Feeling: domain.FeelingSmooth, SkillLevel: 5, Confidence: 0.9}, domain.GradeGood},
		{"smooth beginner confident", domain.AnalysisResult{Feeling: domain.FeelingSmooth, SkillLevel: 3, Confidence: 0.9}, domain.GradeHard},
		{"smooth mid level falls to default", domain.AnalysisResult{Feeling: domain.FeelingSmooth, SkillLevel: 4, Confidence: 0.2}, domain.GradeGood},
		{"normal at four", domain.AnalysisResult{Feeling: domain.FeelingNormal, SkillLevel: 4, Confidence: 0.1}, domain.GradeGood},
		{"normal low level unsure", domain.AnalysisResult{Feeling: domain.FeelingNormal, SkillLevel: 2, Confidence: 0.3}, domain.GradeAgain},
		{"difficult confident", domain.AnalysisResult{Feeling: domain.FeelingDifficult, SkillLevel: 2, Confidence: 0.9}, domain.GradeHard},
		{"difficult high level unsure", domain.AnalysisResult{Feeling: domain.FeelingDifficult, SkillLevel: 9, Confidence: 0.59}, domain.GradeAgain},
		{"unknown feeling high level", domain.AnalysisResult{Feeling: "ecstatic", SkillLevel: 8, Confidence: 1}, domain.GradeGood},
		{"unknown feeling low level", domain.AnalysisResult{Feeling: "", SkillLevel: 1, Confidence: 0.9}, domain.GradeHard},
		{"skill level zero is clamped", domain.AnalysisResult{Feeling: domain.FeelingNormal, SkillLevel: 0, Confidence: 0.7}, domain.GradeHard},
		{"confidence above one is clamped", domain.AnalysisResult{Feeling: domain.FeelingSmooth, SkillLevel: 12, Confidence: 1.4}, domain.GradeEasy},
		{"negative confidence", domain.AnalysisResult{Feeling: domain.FeelingDifficult, SkillLevel: 5, Confidence: -2}, domain.GradeAgain},
		{"NaN skill level", domain.AnalysisResult{Feeling: domain.FeelingSmooth, SkillLevel: math.NaN(), Confidence: 0.9}, domain.GradeGood},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Grade(tt.analysis))
		})
	}
}

func TestGradeIsTotal(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1))
	feelings := []domain.Feeling{domain.FeelingSmooth, domain.FeelingDifficult, domain.FeelingNormal, "", "SMOOTH", "bored"}
	specials := []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1, 0, 100}

	pick := func() float64 {
		if rng.IntN(5) == 0 {
			return specials[rng.IntN(len(specials))]
		}
		return rng.Float64()*30 - 10
	}

	for i := 0; i < 5000; i++ {
		a := domain.AnalysisResult{
			Feeling:    feelings[rng.IntN(len(feelings))],
			SkillLevel: pick(),
			Confidence: pick(),
		}
		g := Grade(a)
		if !g.IsValid() {
			t.Fatalf("Grade(%+v) = %d, not a valid grade", a, int(g))
		}
	}
}
