package interval

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// DefaultCategory is the floor table entry used for unmapped categories.
const DefaultCategory = "default"

// ErrNoDefaultFloor is returned when a floor table lacks its default entry.
var ErrNoDefaultFloor = errors.New("interval: floor table has no default entry")

// FloorPolicy maps a skill category to the minimum days between reviews.
// Keys are stored trimmed and lower-cased.
type FloorPolicy map[string]float64

// NewFloorPolicy normalizes and checks a category table.
func NewFloorPolicy(table map[string]float64) (FloorPolicy, error) {
	policy := make(FloorPolicy, len(table))
	for category, days := range table {
		if math.IsNaN(days) || math.IsInf(days, 0) || days < 0 {
			return nil, fmt.Errorf("interval: floor for %q must be a non-negative number, got %v", category, days)
		}
		policy[normalizeCategory(category)] = days
	}
	if _, ok := policy[DefaultCategory]; !ok {
		return nil, ErrNoDefaultFloor
	}
	return policy, nil
}

// Resolve returns the floor for category, falling back to the default entry.
func (p FloorPolicy) Resolve(category string) float64 {
	return ResolveFloorDays(category, p)
}

// ResolveFloorDays looks category up in table. An empty or unmapped category
// uses the table's default entry; a table without one yields zero.
func ResolveFloorDays(category string, table FloorPolicy) float64 {
	if days, ok := table[normalizeCategory(category)]; ok {
		return days
	}
	return table[DefaultCategory]
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
