// Package oracle asks a language model to analyze a practice log and decodes
// its answer into a domain.AnalysisResult.
package oracle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/conorfennell/skillcadence/internal/domain"
)

// Oracle analyzes the free-text log of one practice session.
type Oracle interface {
	Analyze(ctx context.Context, content, skillName string) (domain.AnalysisResult, error)
}

// Static always returns the same analysis. It backs offline runs and tests.
type Static struct {
	Result domain.AnalysisResult
	Err    error
}

func (s Static) Analyze(ctx context.Context, _, _ string) (domain.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.AnalysisResult{}, err
	}
	if s.Err != nil {
		return domain.AnalysisResult{}, s.Err
	}
	return s.Result, nil
}

// FallbackAnalysis is the neutral reading used when a reply cannot be parsed.
func FallbackAnalysis() domain.AnalysisResult {
	return domain.AnalysisResult{
		SkillLevel:         5,
		Confidence:         0.5,
		Feeling:            domain.FeelingNormal,
		NextReviewInterval: domain.Float(7),
		Suggestion:         "Keep practicing regularly.",
	}
}

type fallback struct {
	next     Oracle
	analysis domain.AnalysisResult
	logger   *slog.Logger
}

// WithFallback wraps o so that an unparseable reply is replaced by analysis.
// Unavailability and every other error still reach the caller.
func WithFallback(o Oracle, analysis domain.AnalysisResult, logger *slog.Logger) Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &fallback{next: o, analysis: analysis, logger: logger}
}

func (f *fallback) Analyze(ctx context.Context, content, skillName string) (domain.AnalysisResult, error) {
	res, err := f.next.Analyze(ctx, content, skillName)
	if errors.Is(err, ErrUnparseable) {
		f.logger.Warn("analysis reply unparseable, using fallback", "skill", skillName, "error", err)
		return f.analysis, nil
	}
	return res, err
}
