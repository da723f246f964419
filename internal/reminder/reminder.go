// Package reminder finds skills whose review is due and notifies their owners.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/conorfennell/skillcadence/internal/domain"
)

// DueLister is the store query a sweep needs.
type DueLister interface {
	ListDueSkills(ctx context.Context, now time.Time) ([]domain.Skill, error)
}

// Reminder is one user's batch of due skills.
type Reminder struct {
	UserID string
	Skills []domain.Skill
}

// Title and Body render the reminder as a notification.
func (r Reminder) Title() string {
	return "Review reminder"
}

func (r Reminder) Body() string {
	if len(r.Skills) == 1 {
		return fmt.Sprintf("%q is due for review. Log your practice in the app.", r.Skills[0].Name)
	}
	names := make([]string, len(r.Skills))
	for i, s := range r.Skills {
		names[i] = fmt.Sprintf("%q", s.Name)
	}
	return fmt.Sprintf("Skills due for review today: %s. Log your practice in the app.", strings.Join(names, ", "))
}

// Notifier delivers a reminder to its user.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// LogNotifier writes reminders to a structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, r Reminder) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("review reminder", "user_id", r.UserID, "skills", len(r.Skills), "body", r.Body())
	return nil
}

// Report summarizes a sweep.
type Report struct {
	DueSkills int
	Notified  []string
	Failed    []string
}

// RunSweep groups every due skill by user and notifies each user once.
// A failed delivery is logged and the sweep moves on to the next user.
func RunSweep(ctx context.Context, store DueLister, notifier Notifier, now time.Time, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Starting reminder sweep", "now", now)

	due, err := store.ListDueSkills(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due skills: %w", err)
	}

	report := &Report{DueSkills: len(due)}
	if len(due) == 0 {
		logger.Info("No skills due for review.")
		return report, nil
	}

	var users []string
	byUser := make(map[string][]domain.Skill)
	for _, skill := range due {
		if skill.UserID == "" || skill.Name == "" {
			continue
		}
		if _, seen := byUser[skill.UserID]; !seen {
			users = append(users, skill.UserID)
		}
		byUser[skill.UserID] = append(byUser[skill.UserID], skill)
	}

	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r := Reminder{UserID: userID, Skills: byUser[userID]}
		if err := notifier.Notify(ctx, r); err != nil {
			logger.Warn("Failed to send reminder", "user_id", userID, "error", err)
			report.Failed = append(report.Failed, userID)
			continue
		}
		report.Notified = append(report.Notified, userID)
	}

	logger.Info("reminder sweep complete",
		"due_skills", report.DueSkills,
		"notified", len(report.Notified),
		"failed", len(report.Failed),
	)
	return report, nil
}
