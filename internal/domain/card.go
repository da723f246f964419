package domain

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// CardState is the learning stage of a review card.
// The integer values are what the storage layer persists.
type CardState int

const (
	StateNew        CardState = 0
	StateLearning   CardState = 1
	StateReview     CardState = 2
	StateRelearning CardState = 3
)

var stateNames = [...]string{
	StateNew:        "new",
	StateLearning:   "learning",
	StateReview:     "review",
	StateRelearning: "relearning",
}

// IsValid reports whether s is one of the four known states.
func (s CardState) IsValid() bool {
	return s >= StateNew && s <= StateRelearning
}

func (s CardState) String() string {
	if s.IsValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("CardState(%d)", int(s))
}

// MemoryState is the memory model's view of a card.
type MemoryState struct {
	Stability  float64   `json:"stability"`
	Difficulty float64   `json:"difficulty"`
	State      CardState `json:"state"`
}

// ReviewCard is the scheduling card kept for one (skill, user) pair.
type ReviewCard struct {
	CardID        string      `json:"card_id"`
	SkillID       string      `json:"skill_id"`
	UserID        string      `json:"user_id"`
	Memory        MemoryState `json:"memory"`
	Reps          int         `json:"reps"`
	Lapses        int         `json:"lapses"`
	ScheduledDays int         `json:"scheduled_days"`
	LastReviewed  time.Time   `json:"last_reviewed"`
	NextReview    time.Time   `json:"next_review"`
}

// NewReviewCard returns the empty card for a (skill, user) pair.
// Timestamps stay zero until the first grading event.
func NewReviewCard(skillID, userID string) ReviewCard {
	return ReviewCard{
		CardID:  CardID(skillID, userID),
		SkillID: skillID,
		UserID:  userID,
		Memory:  MemoryState{State: StateNew},
	}
}

// CardID derives the card identifier from the (skill, user) pair.
// The same pair always yields the same id.
func CardID(skillID, userID string) string {
	normalizePart := func(part string) string {
		return strings.TrimSpace(part)
	}
	// Join with a NUL so ("ab", "c") and ("a", "bc") cannot collide.
	joined := normalizePart(skillID) + "\x00" + normalizePart(userID)
	sum := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("%x", sum[:16])
}
