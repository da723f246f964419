package fsrs

import (
	"math"

	"github.com/conorfennell/skillcadence/internal/domain"
)

const (
	decay        = -0.5
	factor       = 19.0 / 81.0 // 0.9^(1/decay) - 1
	minStability = 0.01
	maxStability = 36500.0
	// maxInterval bounds MaximumInterval so due dates stay inside time.Duration.
	maxInterval = 36500
)

// algo holds the weights the formulas read from.
type algo struct {
	w [17]float64
}

func newAlgo(w [17]float64) algo {
	return algo{w: w}
}

// retrievability computes R(t, S) = (1 + FACTOR * t / S) ^ DECAY.
func (a *algo) retrievability(elapsedDays, stability float64) float64 {
	return math.Pow(1+factor*elapsedDays/stability, decay)
}

// initStability returns S₀(G) = w[G-1].
func (a *algo) initStability(g domain.Grade) float64 {
	return math.Max(a.w[g-1], minStability)
}

// initDifficulty returns D₀(G) = w[4] - (G - 3) * w[5], clamped to [1, 10].
func (a *algo) initDifficulty(g domain.Grade) float64 {
	return clampD(a.w[4] - float64(g-3)*a.w[5])
}

// nextInterval converts stability into whole days for the desired retention.
// I(r, S) = round((S / FACTOR) * (r^(1/DECAY) - 1)), clamped to [1, maxIvl].
func (a *algo) nextInterval(stability, desiredRetention float64, maxIvl int) int {
	ivl := stability / factor * (math.Pow(desiredRetention, 1.0/decay) - 1)
	rounded := int(math.Round(ivl))
	if rounded < 1 {
		rounded = 1
	}
	if rounded > maxIvl {
		rounded = maxIvl
	}
	return rounded
}

// nextDifficulty computes the updated difficulty after a review.
// D' = D - w[6] * (G - 3)
// D'' = w[7] * D₀(Good) + (1 - w[7]) * D'   (mean reversion)
func (a *algo) nextDifficulty(difficulty float64, g domain.Grade) float64 {
	dPrime := difficulty - a.w[6]*float64(g-3)
	target := a.w[4] // D₀(Good), unclamped
	return clampD(a.w[7]*target + (1-a.w[7])*dPrime)
}

// nextStability dispatches to the recall or forget formula.
func (a *algo) nextStability(d, s, r float64, g domain.Grade) float64 {
	var next float64
	if g == domain.GradeAgain {
		next = a.nextForgetStability(d, s, r)
	} else {
		next = a.nextRecallStability(d, s, r, g)
	}
	return math.Min(math.Max(next, minStability), maxStability)
}

// nextRecallStability computes stability after a successful recall (Hard/Good/Easy).
// S'_r = S * (1 + e^w[8] * (11-D) * S^(-w[9]) * (e^((1-R)*w[10]) - 1) * hardPenalty * easyBonus)
func (a *algo) nextRecallStability(d, s, r float64, g domain.Grade) float64 {
	hardPenalty := 1.0
	if g == domain.GradeHard {
		hardPenalty = a.w[15]
	}
	easyBonus := 1.0
	if g == domain.GradeEasy {
		easyBonus = a.w[16]
	}
	return s * (1 + math.Exp(a.w[8])*
		(11-d)*
		math.Pow(s, -a.w[9])*
		(math.Exp((1-r)*a.w[10])-1)*
		hardPenalty*easyBonus)
}

// nextForgetStability computes stability after forgetting (Again).
// S'_f = w[11] * D^(-w[12]) * ((S+1)^w[13] - 1) * e^((1-R)*w[14]), never above S.
func (a *algo) nextForgetStability(d, s, r float64) float64 {
	sf := a.w[11] *
		math.Pow(d, -a.w[12]) *
		(math.Pow(s+1, a.w[13]) - 1) *
		math.Exp((1-r)*a.w[14])
	return math.Min(sf, s)
}

// clampD clamps difficulty to [1, 10].
func clampD(d float64) float64 {
	return math.Min(math.Max(d, 1), 10)
}
