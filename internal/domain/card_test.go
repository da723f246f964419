package domain

import "testing"

func TestCardID(t *testing.T) {
	t.Run("id is deterministic", func(t *testing.T) {
		if CardID("skill-1", "user-1") != CardID("skill-1", "user-1") {
			t.Error("Expected identical pairs to produce the same card id")
		}
	})

	t.Run("surrounding whitespace is ignored", func(t *testing.T) {
		if CardID(" skill-1 ", "user-1\n") != CardID("skill-1", "user-1") {
			t.Error("Expected card ids to match after trimming, but they were different.")
		}
	})

	t.Run("different pairs have different ids", func(t *testing.T) {
		if CardID("skill-1", "user-1") == CardID("skill-1", "user-2") {
			t.Error("Expected different users to get different card ids")
		}
		if CardID("ab", "c") == CardID("a", "bc") {
			t.Error("Expected the field boundary to be part of the id")
		}
	})

	t.Run("id is 32 hex characters", func(t *testing.T) {
		if id := CardID("s", "u"); len(id) != 32 {
			t.Errorf("Expected a 32 character id, but got %q", id)
		}
	})
}

func TestNewReviewCard(t *testing.T) {
	card := NewReviewCard("skill-1", "user-1")
	if card.Memory.State != StateNew {
		t.Errorf("Expected a new card, but got state %s", card.Memory.State)
	}
	if !card.LastReviewed.IsZero() || !card.NextReview.IsZero() {
		t.Error("Expected timestamps to be zero before the first review")
	}
	if card.CardID != CardID("skill-1", "user-1") {
		t.Errorf("Expected card id to be derived from the pair, got %s", card.CardID)
	}
}

func TestParseFeeling(t *testing.T) {
	testCases := []struct {
		input    string
		expected Feeling
		ok       bool
	}{
		{"smooth", FeelingSmooth, true},
		{" Difficult ", FeelingDifficult, true},
		{"normal", FeelingNormal, true},
		{"great", FeelingNormal, false},
		{"", FeelingNormal, false},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, ok := ParseFeeling(tc.input)
			if got != tc.expected || ok != tc.ok {
				t.Errorf("Expected (%s, %v), but got (%s, %v)", tc.expected, tc.ok, got, ok)
			}
		})
	}
}

func TestGradeText(t *testing.T) {
	for _, g := range Grades {
		text, err := g.MarshalText()
		if err != nil {
			t.Fatalf("Expected %d to marshal, got %v", int(g), err)
		}
		var back Grade
		if err := back.UnmarshalText(text); err != nil || back != g {
			t.Errorf("Expected %s to round trip, but got %s (%v)", g, back, err)
		}
	}

	if _, err := Grade(0).MarshalText(); err == nil {
		t.Error("Expected an invalid grade to fail marshaling")
	}
	if Grade(9).String() != "Grade(9)" {
		t.Errorf("Expected fallback name for an invalid grade, got %s", Grade(9))
	}
}
