// Package schedule runs one scheduling session: it turns an analysis of a
// practice log into an updated review card and a next review date.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/conorfennell/skillcadence/internal/classify"
	"github.com/conorfennell/skillcadence/internal/domain"
	"github.com/conorfennell/skillcadence/internal/fsrs"
	"github.com/conorfennell/skillcadence/internal/interval"
)

var (
	// ErrInvalidInput is returned when the session is missing a skill or user id.
	ErrInvalidInput = errors.New("schedule: invalid input")
	// ErrStore wraps failures reported by a CardStore or SkillStore.
	ErrStore = errors.New("schedule: store failure")
)

// CardStore loads and saves review cards. GetCard returns (nil, nil) when the
// pair has no card yet.
type CardStore interface {
	GetCard(ctx context.Context, skillID, userID string) (*domain.ReviewCard, error)
	PutCard(ctx context.Context, card *domain.ReviewCard) error
}

// SkillStore exposes the two skill fields a session touches.
type SkillStore interface {
	GetCategory(ctx context.Context, skillID string) (string, error)
	SetNextReviewDate(ctx context.Context, skillID string, due time.Time) error
}

// Committer persists a card and its skill's next review date in one step.
// Stores that implement it get all-or-nothing writes.
type Committer interface {
	CommitReview(ctx context.Context, card *domain.ReviewCard) error
}

// Input is one grading event.
type Input struct {
	SkillID  string
	UserID   string
	Analysis domain.AnalysisResult
	Now      time.Time
}

// Result is what a session decided and persisted.
type Result struct {
	Card      domain.ReviewCard
	Grade     domain.Grade
	MemoryDue time.Time
	Due       time.Time
	DaysUntil int
	FloorDays float64
}

// Scheduler wires the memory model, floor policy and stores together.
type Scheduler struct {
	model  *fsrs.Model
	floors interval.FloorPolicy
	cards  CardStore
	skills SkillStore
	logger *slog.Logger
}

// New returns a Scheduler. A nil logger uses slog.Default().
func New(model *fsrs.Model, floors interval.FloorPolicy, cards CardStore, skills SkillStore, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		model:  model,
		floors: floors,
		cards:  cards,
		skills: skills,
		logger: logger,
	}
}

// Schedule grades the analysis, advances the card and stores the reconciled
// due date on both the card and the skill. Nothing is written unless every
// step before persistence succeeds.
func (s *Scheduler) Schedule(ctx context.Context, in Input) (*Result, error) {
	if strings.TrimSpace(in.SkillID) == "" || strings.TrimSpace(in.UserID) == "" {
		return nil, fmt.Errorf("%w: skill and user ids are required", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	existing, err := s.cards.GetCard(ctx, in.SkillID, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load card for skill %s: %w", ErrStore, in.SkillID, err)
	}
	card := domain.NewReviewCard(in.SkillID, in.UserID)
	if existing != nil {
		card = *existing
	}

	grade := classify.Grade(in.Analysis)
	next := s.model.Advance(card, grade, now)
	memoryDue := next.NextReview

	category, err := s.skills.GetCategory(ctx, in.SkillID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load category for skill %s: %w", ErrStore, in.SkillID, err)
	}
	floorDays := s.floors.Resolve(category)

	due := interval.Reconcile(memoryDue, in.Analysis.NextReviewInterval, in.Analysis.Confidence, floorDays, now)
	next.NextReview = due
	next.ScheduledDays = fsrs.DaysUntil(due, now)

	if err := s.persist(ctx, &next); err != nil {
		return nil, err
	}

	s.logger.Info("review scheduled",
		"skill_id", in.SkillID,
		"user_id", in.UserID,
		"grade", grade.String(),
		"state", next.Memory.State.String(),
		"memory_due", memoryDue,
		"due", due,
		"floor_days", floorDays,
	)

	return &Result{
		Card:      next,
		Grade:     grade,
		MemoryDue: memoryDue,
		Due:       due,
		DaysUntil: next.ScheduledDays,
		FloorDays: floorDays,
	}, nil
}

func (s *Scheduler) persist(ctx context.Context, card *domain.ReviewCard) error {
	if c, ok := s.cards.(Committer); ok {
		if err := c.CommitReview(ctx, card); err != nil {
			return fmt.Errorf("%w: failed to commit review for skill %s: %w", ErrStore, card.SkillID, err)
		}
		return nil
	}

	// Without a Committer the card is written first. A failure on the skill
	// write leaves the card ahead of the skill's date until the next session.
	if err := s.cards.PutCard(ctx, card); err != nil {
		return fmt.Errorf("%w: failed to save card for skill %s: %w", ErrStore, card.SkillID, err)
	}
	if err := s.skills.SetNextReviewDate(ctx, card.SkillID, card.NextReview); err != nil {
		return fmt.Errorf("%w: failed to save next review date for skill %s: %w", ErrStore, card.SkillID, err)
	}
	return nil
}
