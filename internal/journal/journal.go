// Package journal records practice logs for a user's skills and reschedules
// each skill from the log's analysis.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/skillcadence/internal/domain"
	"github.com/conorfennell/skillcadence/internal/fsrs"
	"github.com/conorfennell/skillcadence/internal/metrics"
	"github.com/conorfennell/skillcadence/internal/oracle"
	"github.com/conorfennell/skillcadence/internal/quota"
	"github.com/conorfennell/skillcadence/internal/schedule"
)

const initialReviewDelay = 7 * 24 * time.Hour

var (
	ErrEmptyContent  = errors.New("journal: log content is empty")
	ErrInvalidSkill  = errors.New("journal: skill name is required")
	ErrSkillNotFound = errors.New("journal: skill not found")
	// ErrOracle wraps any analysis failure. The card is left untouched.
	ErrOracle = errors.New("journal: analysis failed")
)

// Store is everything the journal needs from persistence.
type Store interface {
	schedule.CardStore
	schedule.SkillStore
	InsertSkill(ctx context.Context, skill *domain.Skill) error
	GetSkill(ctx context.Context, skillID string) (*domain.Skill, error)
	ListSkills(ctx context.Context, userID string) ([]domain.Skill, error)
	ListDueSkills(ctx context.Context, now time.Time) ([]domain.Skill, error)
	DeleteSkill(ctx context.Context, skillID string) error
	AddLog(ctx context.Context, log *domain.PracticeLog) error
	ListLogs(ctx context.Context, skillID string, limit int) ([]domain.PracticeLog, error)
}

// Service ties the store, the oracle, the quota and the scheduler together.
type Service struct {
	store     Store
	oracle    oracle.Oracle
	limiter   quota.Limiter
	scheduler *schedule.Scheduler
	metrics   *metrics.Metrics
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs replaces the uuid generator for new skills and logs.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithMetrics records submissions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New builds a Service. A nil limiter means no quota.
func New(store Store, o oracle.Oracle, limiter quota.Limiter, scheduler *schedule.Scheduler, opts ...Option) *Service {
	if limiter == nil {
		limiter = quota.Unlimited{}
	}
	s := &Service{
		store:     store,
		oracle:    o,
		limiter:   limiter,
		scheduler: scheduler,
		logger:    slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogRequest is one practice log submission.
type LogRequest struct {
	UserID  string
	SkillID string
	Content string
	// Feeling is the user's own label. Empty uses the analysis feeling.
	Feeling string
}

// Outcome is the result of a successful submission.
type Outcome struct {
	Skill    domain.Skill
	Analysis domain.AnalysisResult
	Schedule *schedule.Result
	Log      domain.PracticeLog
}

// SubmitLog analyzes a practice log, reschedules its skill and records it.
// Failures before scheduling leave the card and skill as they were.
func (s *Service) SubmitLog(ctx context.Context, req LogRequest) (*Outcome, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		s.metrics.Session(metrics.OutcomeRejected)
		return nil, ErrEmptyContent
	}

	skill, err := s.ownedSkill(ctx, req.UserID, req.SkillID)
	if err != nil {
		s.metrics.Session(metrics.OutcomeRejected)
		return nil, err
	}

	now := s.now()
	if err := s.limiter.Allow(ctx, req.UserID, now); err != nil {
		if errors.Is(err, quota.ErrExceeded) {
			s.metrics.QuotaRejected()
			s.metrics.Session(metrics.OutcomeRejected)
			return nil, err
		}
		s.metrics.Session(metrics.OutcomeStoreError)
		s.logger.Error("quota check failed", "skill_id", skill.ID, "user_id", req.UserID, "error", err)
		return nil, fmt.Errorf("failed to check quota for user %s: %w", req.UserID, err)
	}

	start := time.Now()
	analysis, err := s.oracle.Analyze(ctx, oracle.Sanitize(content), skill.Name)
	s.metrics.OracleCall(time.Since(start), err)
	if err != nil {
		s.metrics.Session(metrics.OutcomeOracleError)
		s.logger.Warn("practice log analysis failed", "skill_id", skill.ID, "user_id", req.UserID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrOracle, err)
	}

	res, err := s.scheduler.Schedule(ctx, schedule.Input{
		SkillID:  skill.ID,
		UserID:   req.UserID,
		Analysis: analysis,
		Now:      now,
	})
	if err != nil {
		s.metrics.Session(metrics.OutcomeStoreError)
		return nil, err
	}
	s.metrics.Grade(res.Grade)
	s.metrics.Session(metrics.OutcomeScheduled)

	feeling, ok := domain.ParseFeeling(req.Feeling)
	if !ok {
		feeling = analysis.Feeling
	}
	entry := domain.PracticeLog{
		ID:        s.newID(),
		SkillID:   skill.ID,
		UserID:    req.UserID,
		Content:   content,
		Feeling:   feeling,
		Analysis:  &analysis,
		CreatedAt: now,
	}
	// The review is already committed, so a lost log entry is reported but
	// not returned as a failure.
	if err := s.store.AddLog(ctx, &entry); err != nil {
		s.logger.Error("failed to record practice log", "skill_id", skill.ID, "user_id", req.UserID, "error", err)
	}

	skill.NextReviewDate = res.Due
	return &Outcome{
		Skill:    *skill,
		Analysis: analysis,
		Schedule: res,
		Log:      entry,
	}, nil
}

func (s *Service) ownedSkill(ctx context.Context, userID, skillID string) (*domain.Skill, error) {
	skill, err := s.store.GetSkill(ctx, skillID)
	if err != nil {
		return nil, err
	}
	if skill == nil || skill.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrSkillNotFound, skillID)
	}
	return skill, nil
}

// CreateSkill adds a skill for userID. Its first review is a week out.
func (s *Service) CreateSkill(ctx context.Context, userID, name, category string) (*domain.Skill, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidSkill
	}
	now := s.now()
	skill := &domain.Skill{
		ID:             s.newID(),
		UserID:         userID,
		Name:           name,
		Category:       strings.TrimSpace(category),
		NextReviewDate: now.Add(initialReviewDelay),
		CreatedAt:      now,
	}
	if err := s.store.InsertSkill(ctx, skill); err != nil {
		return nil, err
	}
	s.logger.Info("skill created", "skill_id", skill.ID, "user_id", userID, "name", name)
	return skill, nil
}

// SkillSummary is a skill with the display figures derived from its card.
type SkillSummary struct {
	domain.Skill
	DaysUntil int     `json:"days_until"`
	IsDue     bool    `json:"is_due"`
	Urgency   float64 `json:"urgency"`
	Mastery   string  `json:"mastery"`
	Reps      int     `json:"reps"`
	Stability float64 `json:"stability"`
}

// ListSkills returns a user's skills, soonest review first.
func (s *Service) ListSkills(ctx context.Context, userID string) ([]SkillSummary, error) {
	skills, err := s.store.ListSkills(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, skills)
}

// DueSkills returns the skills owed a review now. An empty userID lists every user.
func (s *Service) DueSkills(ctx context.Context, userID string) ([]SkillSummary, error) {
	due, err := s.store.ListDueSkills(ctx, s.now())
	if err != nil {
		return nil, err
	}
	if userID != "" {
		mine := due[:0]
		for _, sk := range due {
			if sk.UserID == userID {
				mine = append(mine, sk)
			}
		}
		due = mine
	}
	return s.summarize(ctx, due)
}

func (s *Service) summarize(ctx context.Context, skills []domain.Skill) ([]SkillSummary, error) {
	now := s.now()
	out := make([]SkillSummary, 0, len(skills))
	for _, sk := range skills {
		sum := SkillSummary{
			Skill:     sk,
			DaysUntil: fsrs.DaysUntil(sk.NextReviewDate, now),
			IsDue:     fsrs.IsDue(sk.NextReviewDate, now),
			Urgency:   fsrs.Urgency(sk.NextReviewDate, now),
			Mastery:   fsrs.MasteryLevel(0),
		}
		card, err := s.store.GetCard(ctx, sk.ID, sk.UserID)
		if err != nil {
			return nil, err
		}
		if card != nil {
			sum.Reps = card.Reps
			sum.Stability = card.Memory.Stability
			sum.Mastery = fsrs.MasteryLevel(card.Memory.Stability)
		}
		out = append(out, sum)
	}
	return out, nil
}

// Logs returns the recent practice logs of a skill owned by userID.
func (s *Service) Logs(ctx context.Context, userID, skillID string, limit int) ([]domain.PracticeLog, error) {
	if _, err := s.ownedSkill(ctx, userID, skillID); err != nil {
		return nil, err
	}
	return s.store.ListLogs(ctx, skillID, limit)
}

// DeleteSkill removes a skill with its card and logs.
func (s *Service) DeleteSkill(ctx context.Context, userID, skillID string) error {
	if _, err := s.ownedSkill(ctx, userID, skillID); err != nil {
		return err
	}
	if err := s.store.DeleteSkill(ctx, skillID); err != nil {
		return err
	}
	s.logger.Info("skill deleted", "skill_id", skillID, "user_id", userID)
	return nil
}
