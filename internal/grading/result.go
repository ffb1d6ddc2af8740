// Package grading scores submissions against a rubric, one criteria at a time.
package grading

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/sacel-api/internal/rubric"
	"github.com/noah-isme/sacel-api/internal/stats"
)

// ErrEmptySubmission is returned when there is no text to grade.
var ErrEmptySubmission = errors.New("no content to grade")

// Source records which path produced a criteria result.
type Source string

const (
	SourceOracle    Source = "oracle"
	SourceHeuristic Source = "heuristic"
	SourceLocal     Source = "local"
	SourceFallback  Source = "fallback"
)

// CriteriaResult is the scored outcome of one criteria.
type CriteriaResult struct {
	Criteria    string       `json:"criteria"`
	Level       rubric.Level `json:"level"`
	Score       float64      `json:"score"`
	MaxPoints   int          `json:"max_points"`
	Feedback    string       `json:"feedback"`
	Suggestions []string     `json:"suggestions"`
	Source      Source       `json:"source"`
}

// Result is a complete rubric evaluation of a submission.
type Result struct {
	RubricID    uint             `json:"rubric_id"`
	RubricTitle string           `json:"rubric_title"`
	Criteria    []CriteriaResult `json:"criteria_scores"`
	TotalScore  float64          `json:"total_score"`
	MaxScore    int              `json:"max_score"`
	Percentage  float64          `json:"percentage"`
	Feedback    string           `json:"feedback"`
	AutoGraded  bool             `json:"auto_graded"`
	GradedAt    time.Time        `json:"graded_at"`
}

// Strengths lists criteria rated excellent or good.
func (r Result) Strengths() []string {
	names := make([]string, 0)
	for _, c := range r.Criteria {
		if c.Level.IsStrength() {
			names = append(names, c.Criteria)
		}
	}
	return names
}

// FocusAreas lists criteria rated needs_improvement.
func (r Result) FocusAreas() []string {
	names := make([]string, 0)
	for _, c := range r.Criteria {
		if c.Level == rubric.NeedsImprovement {
			names = append(names, c.Criteria)
		}
	}
	return names
}

// Evaluator scores a single criteria. Implementations never fail; an unusable
// signal degrades to Fallback.
type Evaluator interface {
	EvaluateCriteria(ctx context.Context, r rubric.Rubric, c rubric.Criteria, text string) CriteriaResult
}

// Grade evaluates every criteria and assembles totals and the feedback report.
func Grade(ctx context.Context, evaluator Evaluator, r rubric.Rubric, text string, now time.Time) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptySubmission
	}

	results := make([]CriteriaResult, 0, len(r.Criteria))
	var total float64
	for _, criteria := range r.Criteria {
		scored := evaluator.EvaluateCriteria(ctx, r, criteria, text)
		scored = enforceBand(criteria, scored)
		results = append(results, scored)
		total += scored.Score
	}

	result := Result{
		RubricID:    r.ID,
		RubricTitle: r.Title,
		Criteria:    results,
		TotalScore:  stats.Round(total, 2),
		MaxScore:    r.TotalPoints(),
		Percentage:  Percentage(total, r.TotalPoints()),
		AutoGraded:  true,
		GradedAt:    now.UTC(),
	}
	result.Feedback = BuildReport(result)
	return result, nil
}

// Percentage converts a points total into a percentage rounded to two decimals and clamped to [0,100].
func Percentage(total float64, maxPoints int) float64 {
	if maxPoints <= 0 {
		return 0
	}
	pct := stats.Round(total/float64(maxPoints)*100, 2)
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}

// enforceBand keeps evaluator output honest: the level must exist on the criteria
// and the score must sit inside that level's range.
func enforceBand(c rubric.Criteria, result CriteriaResult) CriteriaResult {
	result.Criteria = c.Name
	result.MaxPoints = c.Points
	band, ok := c.Band(result.Level)
	if !ok {
		return Fallback(c, "unknown performance level")
	}
	result.Score = band.Clamp(result.Score)
	if result.Suggestions == nil {
		result.Suggestions = []string{}
	}
	return result
}
