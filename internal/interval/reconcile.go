// Package interval reconciles the memory model's due date with the oracle's
// suggested interval and enforces per-category minimum spacing.
package interval

import (
	"math"
	"time"
)

const (
	day = 24 * time.Hour
	// maxDays keeps day counts inside time.Duration's range.
	maxDays = 36500
)

// Reconcile blends the memory model's due date with an externally suggested
// interval, weighted by the oracle's own confidence, and never returns a date
// earlier than now + floorDays.
//
// With oracleDays nil or non-finite, or confidence at zero, the result is the
// memory due date moved forward to the floor if needed. Otherwise
//
//	days = max(floorDays, round(memoryDays*(1-c) + oracleDays*c))
//
// where c is confidence clamped to [0, 1].
func Reconcile(memoryDue time.Time, oracleDays *float64, confidence, floorDays float64, now time.Time) time.Time {
	floorDays = nonNegative(floorDays)
	floorDue := now.Add(days(floorDays))

	if oracleDays == nil || math.IsNaN(*oracleDays) || math.IsInf(*oracleDays, 0) {
		return later(memoryDue, floorDue)
	}

	wOracle := clamp01(confidence)
	if wOracle == 0 {
		return later(memoryDue, floorDue)
	}
	wMemory := 1 - wOracle

	memoryDays := math.Min(math.Max(memoryDue.Sub(now).Hours()/24.0, -maxDays), maxDays)
	blended := math.Round(memoryDays*wMemory + nonNegative(*oracleDays)*wOracle)
	return now.Add(days(math.Max(floorDays, blended)))
}

func days(n float64) time.Duration {
	return time.Duration(n * float64(day))
}

func later(a, b time.Time) time.Time {
	if a.Before(b) {
		return b
	}
	return a
}

// clamp01 clamps to [0, 1]; NaN counts as no confidence.
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), 1)
}

// nonNegative clamps a day count to [0, maxDays]; NaN becomes 0.
func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, maxDays)
}
