package domain

import "fmt"

// Grade is the discrete outcome of a practice session.
// It is the only input the memory model accepts from the classifier.
// 1: Again
// 2: Hard
// 3: Good
// 4: Easy
type Grade int

const (
	GradeAgain Grade = 1
	GradeHard  Grade = 2
	GradeGood  Grade = 3
	GradeEasy  Grade = 4
)

var gradeNames = [...]string{
	GradeAgain: "again",
	GradeHard:  "hard",
	GradeGood:  "good",
	GradeEasy:  "easy",
}

// Grades lists every valid grade in ascending order.
var Grades = []Grade{GradeAgain, GradeHard, GradeGood, GradeEasy}

// IsValid reports whether g is Again through Easy.
func (g Grade) IsValid() bool {
	return g >= GradeAgain && g <= GradeEasy
}

func (g Grade) String() string {
	if g.IsValid() {
		return gradeNames[g]
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

// MarshalText implements encoding.TextMarshaler.
func (g Grade) MarshalText() ([]byte, error) {
	if !g.IsValid() {
		return nil, fmt.Errorf("invalid grade: %d", int(g))
	}
	return []byte(gradeNames[g]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Grade) UnmarshalText(text []byte) error {
	for _, candidate := range Grades {
		if gradeNames[candidate] == string(text) {
			*g = candidate
			return nil
		}
	}
	return fmt.Errorf("invalid grade: %q", text)
}
