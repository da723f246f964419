package fsrs

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/skillcadence/internal/domain"
)

// ErrInvalidParams is returned by Params.Validate and NewModel.
var ErrInvalidParams = errors.New("fsrs: invalid parameters")

// Params holds the parameters for the FSRS algorithm.
// A Params value is never mutated after a Model is built from it.
type Params struct {
	Weights          [17]float64 // FSRS-4.5 weights w[0..16]
	DesiredRetention float64     // target recall probability at the due date, e.g. 0.9
	MaximumInterval  int         // upper bound on a scheduled interval, in days
	EnableFuzz       bool        // spread review intervals to avoid same-day pile-ups
	FuzzSeed         uint64      // mixed into every fuzz draw
}

// DefaultWeights are the FSRS-4.5 default weights.
var DefaultWeights = [17]float64{
	0.4, 0.6, 2.4, 5.8, // w[0..3]   initial stability per grade
	4.93, 0.94, 0.86, 0.01, // w[4..7]   difficulty
	1.49, 0.14, 0.94, // w[8..10]  recall stability
	2.18, 0.05, 0.34, 1.26, // w[11..14] forget stability
	0.29, 2.61, // w[15..16] hard penalty, easy bonus
}

// DefaultParams provides a set of sensible default parameters to start with.
func DefaultParams() Params {
	return Params{
		Weights:          DefaultWeights,
		DesiredRetention: 0.9,
		MaximumInterval:  36500,
		EnableFuzz:       true,
	}
}

// Validate checks that the parameters can drive the model.
func (p Params) Validate() error {
	for i, w := range p.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: w[%d] is not finite", ErrInvalidParams, i)
		}
	}
	for i := 0; i < 4; i++ {
		if p.Weights[i] <= 0 {
			return fmt.Errorf("%w: initial stability w[%d] = %f must be positive", ErrInvalidParams, i, p.Weights[i])
		}
	}
	if !(p.DesiredRetention > 0 && p.DesiredRetention < 1) {
		return fmt.Errorf("%w: desired retention %f out of range (0, 1)", ErrInvalidParams, p.DesiredRetention)
	}
	if p.MaximumInterval < 1 || p.MaximumInterval > maxInterval {
		return fmt.Errorf("%w: maximum interval %d out of range [1, %d]", ErrInvalidParams, p.MaximumInterval, maxInterval)
	}
	return nil
}

// Model advances review cards. It is safe for concurrent use.
type Model struct {
	params Params
	algo   algo
}

// NewModel builds a Model from validated parameters.
func NewModel(p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Model{params: p, algo: newAlgo(p.Weights)}, nil
}

// Params returns a copy of the parameters the model was built with.
func (m *Model) Params() Params {
	return m.params
}

// Advance grades a card at time now and returns the updated card.
// The input card is not modified. NextReview on the result is the
// memory model's own due date; LastReviewed is now.
func (m *Model) Advance(card domain.ReviewCard, grade domain.Grade, now time.Time) domain.ReviewCard {
	out := card
	grade = normalizeGrade(grade)
	mem := m.normalizeMemory(card.Memory)

	elapsedDays := 0.0
	if mem.State != domain.StateNew && !card.LastReviewed.IsZero() {
		elapsedDays = math.Max(0, now.Sub(card.LastReviewed).Hours()/24.0)
	}

	prior := mem.State
	if prior == domain.StateNew {
		mem.Stability = m.algo.initStability(grade)
		mem.Difficulty = m.algo.initDifficulty(grade)
	} else {
		r := m.algo.retrievability(elapsedDays, mem.Stability)
		mem.Stability = m.algo.nextStability(mem.Difficulty, mem.Stability, r, grade)
		mem.Difficulty = m.algo.nextDifficulty(mem.Difficulty, grade)
	}
	mem.State = nextState(prior, grade)

	if prior == domain.StateReview && grade == domain.GradeAgain {
		out.Lapses++
	}
	out.Reps++

	days := m.algo.nextInterval(mem.Stability, m.params.DesiredRetention, m.params.MaximumInterval)
	if m.params.EnableFuzz && mem.State == domain.StateReview {
		days = applyFuzz(days, m.params.MaximumInterval, m.fuzzSource(now, out.Reps, mem.Stability))
	}

	out.Memory = mem
	out.ScheduledDays = days
	out.LastReviewed = now
	out.NextReview = now.Add(time.Duration(days) * 24 * time.Hour)
	return out
}

// Retrievability returns the probability of recall for the card at the given time.
// Returns 0 if the card has never been reviewed.
func (m *Model) Retrievability(card domain.ReviewCard, now time.Time) float64 {
	if card.Memory.State == domain.StateNew || card.LastReviewed.IsZero() {
		return 0
	}
	mem := m.normalizeMemory(card.Memory)
	elapsed := math.Max(0, now.Sub(card.LastReviewed).Hours()/24.0)
	return m.algo.retrievability(elapsed, mem.Stability)
}

// nextState applies the card lifecycle:
// new → learning on the first grade, learning → review once a grade other
// than again is given, review → relearning on again, relearning → review
// on recovery.
func nextState(current domain.CardState, grade domain.Grade) domain.CardState {
	switch current {
	case domain.StateNew:
		return domain.StateLearning
	case domain.StateLearning, domain.StateRelearning:
		if grade == domain.GradeAgain {
			return current
		}
		return domain.StateReview
	default:
		if grade == domain.GradeAgain {
			return domain.StateRelearning
		}
		return domain.StateReview
	}
}

func normalizeGrade(g domain.Grade) domain.Grade {
	if g < domain.GradeAgain {
		return domain.GradeAgain
	}
	if g > domain.GradeEasy {
		return domain.GradeEasy
	}
	return g
}

// normalizeMemory pulls an inconsistent stored state back to the nearest
// valid one instead of failing.
func (m *Model) normalizeMemory(mem domain.MemoryState) domain.MemoryState {
	if !mem.State.IsValid() {
		if mem.Stability > 0 {
			mem.State = domain.StateReview
		} else {
			mem.State = domain.StateNew
		}
	}
	if mem.State == domain.StateNew {
		return mem
	}

	switch {
	case math.IsNaN(mem.Stability), mem.Stability < minStability:
		mem.Stability = minStability
	case mem.Stability > maxStability:
		mem.Stability = maxStability
	}
	if math.IsNaN(mem.Difficulty) {
		mem.Difficulty = m.algo.initDifficulty(domain.GradeGood)
	}
	mem.Difficulty = clampD(mem.Difficulty)
	return mem
}
