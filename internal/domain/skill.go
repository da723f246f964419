package domain

import "time"

// Skill is a practiced skill owned by a user.
// Category only selects the minimum review spacing.
type Skill struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	Category       string    `json:"category,omitempty"`
	NextReviewDate time.Time `json:"next_review_date"`
	CreatedAt      time.Time `json:"created_at"`
}

// PracticeLog records a single free-text practice entry for a skill.
type PracticeLog struct {
	ID        string          `json:"id"`
	SkillID   string          `json:"skill_id"`
	UserID    string          `json:"user_id"`
	Content   string          `json:"content"`
	Feeling   Feeling         `json:"feeling"`
	Analysis  *AnalysisResult `json:"analysis,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
