package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/skillcadence/internal/domain"
)

var testNow = time.Date(2026, 4, 12, 7, 45, 30, 0, time.UTC)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := InMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addSkill(t *testing.T, s *Store, id, userID string, next time.Time) {
	t.Helper()
	require.NoError(t, s.InsertSkill(context.Background(), &domain.Skill{
		ID:             id,
		UserID:         userID,
		Name:           "Skill " + id,
		NextReviewDate: next,
		CreatedAt:      testNow,
	}))
}

func TestCards(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	addSkill(t, s, "s1", "u1", testNow)

	got, err := s.GetCard(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	card := domain.NewReviewCard("s1", "u1")
	card.Memory = domain.MemoryState{Stability: 5.8, Difficulty: 3.99, State: domain.StateLearning}
	card.Reps = 1
	card.LastReviewed = testNow
	card.NextReview = testNow.AddDate(0, 0, 9)

	require.NoError(t, s.CommitReview(ctx, &card))

	got, err = s.GetCard(ctx, "s1", "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, card, *got)

	skill, err := s.GetSkill(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, skill.NextReviewDate.Equal(card.NextReview))
}

func TestCommitReviewNeedsSkill(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	card := domain.NewReviewCard("ghost", "u1")
	err := s.CommitReview(ctx, &card)
	assert.ErrorIs(t, err, ErrSkillNotFound)

	got, err := s.GetCard(ctx, "ghost", "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSkillListings(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	addSkill(t, s, "late", "u1", testNow.AddDate(0, 0, 3))
	addSkill(t, s, "soon", "u1", testNow.Add(-time.Hour))
	addSkill(t, s, "other", "u2", testNow)

	skills, err := s.ListSkills(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, skills, 2)
	assert.Equal(t, "soon", skills[0].ID)
	assert.Equal(t, "late", skills[1].ID)

	due, err := s.ListDueSkills(ctx, testNow)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "soon", due[0].ID)
	assert.Equal(t, "other", due[1].ID)

	category, err := s.GetCategory(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, category)
}

func TestDeleteSkill(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	addSkill(t, s, "s1", "u1", testNow)
	addSkill(t, s, "s10", "u1", testNow)

	for _, id := range []string{"s1", "s10"} {
		card := domain.NewReviewCard(id, "u1")
		require.NoError(t, s.PutCard(ctx, &card))
		require.NoError(t, s.AddLog(ctx, &domain.PracticeLog{ID: "log-" + id, SkillID: id, UserID: "u1", Content: "x", CreatedAt: testNow}))
	}

	require.NoError(t, s.DeleteSkill(ctx, "s1"))

	skill, err := s.GetSkill(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, skill)
	card, err := s.GetCard(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Nil(t, card)
	logs, err := s.ListLogs(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, logs)

	// a skill whose id shares a prefix is untouched
	card, err = s.GetCard(ctx, "s10", "u1")
	require.NoError(t, err)
	assert.NotNil(t, card)
	logs, err = s.ListLogs(ctx, "s10", 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestLogsNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	addSkill(t, s, "s1", "u1", testNow)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.AddLog(ctx, &domain.PracticeLog{
			ID:        id,
			SkillID:   "s1",
			UserID:    "u1",
			Content:   "session " + id,
			Feeling:   domain.FeelingNormal,
			Analysis:  &domain.AnalysisResult{SkillLevel: float64(i + 3), Confidence: 0.5, Feeling: domain.FeelingNormal},
			CreatedAt: testNow.Add(time.Duration(i) * time.Hour),
		}))
	}

	logs, err := s.ListLogs(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "c", logs[0].ID)
	assert.Equal(t, "b", logs[1].ID)
	assert.Equal(t, 5.0, logs[0].Analysis.SkillLevel)

	err = s.AddLog(ctx, &domain.PracticeLog{ID: "x", SkillID: "ghost", CreatedAt: testNow})
	assert.ErrorIs(t, err, ErrSkillNotFound)
}
