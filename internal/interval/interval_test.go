package interval

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)

func daysFromNow(n float64) time.Time {
	return now.Add(time.Duration(n * float64(24*time.Hour)))
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name       string
		memoryDue  time.Time
		oracle     *float64
		confidence float64
		floor      float64
		want       time.Time
	}{
		{"no oracle uses memory date", daysFromNow(6), nil, 0.9, 1, daysFromNow(6)},
		{"no oracle respects floor", daysFromNow(1), nil, 0.9, 3, daysFromNow(3)},
		{"NaN oracle is absent", daysFromNow(6), ptr(math.NaN()), 0.9, 1, daysFromNow(6)},
		{"infinite oracle is absent", daysFromNow(6), ptr(math.Inf(1)), 0.9, 1, daysFromNow(6)},
		{"zero confidence keeps the exact memory date", daysFromNow(6.4), ptr(20), 0, 1, daysFromNow(6.4)},
		{"zero confidence still floors", daysFromNow(0.5), ptr(20), 0, 2, daysFromNow(2)},
		{"NaN confidence is zero confidence", daysFromNow(6), ptr(20), math.NaN(), 1, daysFromNow(6)},
		{"full confidence takes the oracle", daysFromNow(6), ptr(10), 1, 1, daysFromNow(10)},
		{"confidence above one is clamped", daysFromNow(6), ptr(10), 1.4, 1, daysFromNow(10)},
		{"full confidence floors the oracle", daysFromNow(6), ptr(1), 1, 2, daysFromNow(2)},
		{"weighted blend", daysFromNow(6), ptr(10), 0.8, 1, daysFromNow(9)},
		{"fractional memory days are rounded after blending", daysFromNow(1.5), ptr(3), 0.5, 0, daysFromNow(2)},
		{"negative oracle days count as zero", daysFromNow(6), ptr(-4), 0.5, 0, daysFromNow(3)},
		{"negative floor counts as zero", daysFromNow(4), ptr(4), 0.5, -3, daysFromNow(4)},
		{"overdue memory date blends toward the oracle", daysFromNow(-2), ptr(8), 0.5, 1, daysFromNow(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.memoryDue, tt.oracle, tt.confidence, tt.floor, now)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestReconcileScenarios(t *testing.T) {
	t.Run("confident smooth session leans on the oracle", func(t *testing.T) {
		// memory says 6 days, oracle says 10 at 0.8 confidence:
		// round(6*0.2 + 10*0.8) = round(9.2) = 9
		got := Reconcile(daysFromNow(6), ptr(10), 0.8, 1, now)
		assert.True(t, got.Equal(daysFromNow(9)), "got %v", got)
	})

	t.Run("practical floor beats short estimates", func(t *testing.T) {
		got := Reconcile(daysFromNow(1), ptr(1), 0.9, 2, now)
		assert.True(t, got.Equal(daysFromNow(2)), "got %v", got)
	})
}

func TestReconcileNeverBeforeFloor(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for i := 0; i < 2000; i++ {
		memoryDue := daysFromNow(rng.Float64()*60 - 10)
		var oracle *float64
		if rng.IntN(4) > 0 {
			oracle = ptr(rng.Float64()*40 - 5)
		}
		confidence := rng.Float64()*1.6 - 0.3
		floor := float64(rng.IntN(8))

		got := Reconcile(memoryDue, oracle, confidence, floor, now)
		require.False(t, got.Before(daysFromNow(floor)),
			"case %d: %v is before the %v day floor", i, got, floor)
	}
}

func TestReconcileCapsHugeIntervals(t *testing.T) {
	got := Reconcile(daysFromNow(3), ptr(1e12), 1, math.Inf(1), now)
	assert.True(t, got.After(now), "expected a finite future date, got %v", got)
	assert.True(t, got.Equal(daysFromNow(maxDays)), "got %v", got)

	// a memory due date centuries out must not wrap around to the past
	got = Reconcile(now.AddDate(400, 0, 0), ptr(5), 1e-9, 1, now)
	assert.False(t, got.Before(daysFromNow(1)), "result %v is before the 1 day floor", got)
	assert.True(t, got.Equal(daysFromNow(maxDays)), "got %v", got)
}

func TestFloorPolicy(t *testing.T) {
	policy, err := NewFloorPolicy(map[string]float64{
		"default":    1,
		" Practical": 2,
		"language":   3,
	})
	require.NoError(t, err)

	assert.Equal(t, 2.0, policy.Resolve("practical"))
	assert.Equal(t, 2.0, policy.Resolve("PRACTICAL "))
	assert.Equal(t, 3.0, ResolveFloorDays("language", policy))
	assert.Equal(t, 1.0, policy.Resolve("cooking"))
	assert.Equal(t, 1.0, policy.Resolve(""))
}

func TestNewFloorPolicyRejectsBadTables(t *testing.T) {
	_, err := NewFloorPolicy(map[string]float64{"practical": 2})
	assert.ErrorIs(t, err, ErrNoDefaultFloor)

	_, err = NewFloorPolicy(map[string]float64{"default": 1, "practical": -2})
	assert.Error(t, err)

	_, err = NewFloorPolicy(map[string]float64{"default": math.NaN()})
	assert.Error(t, err)
}

func TestResolveFloorDaysWithoutDefault(t *testing.T) {
	assert.Equal(t, 0.0, ResolveFloorDays("anything", FloorPolicy{}))
}

func ptr(v float64) *float64 {
	return &v
}
