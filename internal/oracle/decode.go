package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/skillcadence/internal/domain"
)

const (
	defaultSkillLevel = 5
	maxSuggestionLen  = 200
)

// Declared ranges for the optional fields. A value outside its range is
// dropped rather than clamped.
const (
	intervalRule   = "gte=1,lte=30"
	difficultyRule = "gte=0,lte=10"
	retentionRule  = "gte=0,lte=1"
)

var (
	fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	validate     = validator.New()
)

// Decode turns a raw model reply into an AnalysisResult.
//
// Markdown fences and text around the object are ignored. Numbers may arrive
// as JSON numbers or numeric strings. skillLevel is clamped to [1, 10]
// (missing means 5) and confidence to [0, 1] (missing means 0). Optional
// fields outside their declared range are dropped. An unknown feeling becomes
// normal. Anything that is not a JSON object yields ErrUnparseable.
func Decode(raw []byte) (domain.AnalysisResult, error) {
	body := extractObject(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return domain.AnalysisResult{}, fmt.Errorf("%w: %q", ErrUnparseable, truncate(string(raw), 80))
	}

	res := domain.AnalysisResult{
		SkillLevel: defaultSkillLevel,
		Feeling:    domain.FeelingNormal,
	}

	if v, ok := number(fields["skillLevel"]); ok {
		res.SkillLevel = clamp(v, 1, 10)
	}
	if v, ok := number(fields["confidence"]); ok {
		res.Confidence = clamp(v, 0, 1)
	}
	if s, ok := text(fields["feeling"]); ok {
		res.Feeling, _ = domain.ParseFeeling(s)
	}
	if s, ok := text(fields["suggestion"]); ok {
		res.Suggestion = truncate(strings.TrimSpace(s), maxSuggestionLen)
	}

	res.NextReviewInterval = optional(fields["nextReviewInterval"], intervalRule)
	res.Difficulty = optional(fields["difficulty"], difficultyRule)
	res.Retention = optional(fields["retention"], retentionRule)

	return res, nil
}

func extractObject(raw []byte) []byte {
	body := bytes.TrimSpace(raw)
	if m := fencePattern.FindSubmatch(body); m != nil {
		body = bytes.TrimSpace(m[1])
	}
	if len(body) > 0 && body[0] != '{' {
		start := bytes.IndexByte(body, '{')
		end := bytes.LastIndexByte(body, '}')
		if start >= 0 && end > start {
			body = body[start : end+1]
		}
	}
	return body
}

// number reads a JSON number or a string holding one. Non-finite values are
// treated as missing.
func number(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		s, ok := text(raw)
		if !ok {
			return 0, false
		}
		v, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func text(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func optional(raw json.RawMessage, rule string) *float64 {
	v, ok := number(raw)
	if !ok {
		return nil
	}
	if err := validate.Var(v, rule); err != nil {
		return nil
	}
	return domain.Float(v)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
