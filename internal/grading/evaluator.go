package grading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/sacel-api/internal/observability"
	"github.com/noah-isme/sacel-api/internal/rubric"
	"github.com/noah-isme/sacel-api/pkg/ai"
)

// DefaultOracleTimeout bounds a single criteria call to the oracle.
const DefaultOracleTimeout = 20 * time.Second

// OracleEvaluator asks an external oracle to score each criteria. The reply goes
// through ParseStrict, then ParseHeuristic, then Fallback.
type OracleEvaluator struct {
	oracle  ai.Oracle
	timeout time.Duration
	logger  zerolog.Logger
}

// NewOracleEvaluator wraps oracle with a per-call timeout.
func NewOracleEvaluator(oracle ai.Oracle, timeout time.Duration, logger zerolog.Logger) *OracleEvaluator {
	if timeout <= 0 {
		timeout = DefaultOracleTimeout
	}
	return &OracleEvaluator{
		oracle:  oracle,
		timeout: timeout,
		logger:  logger.With().Str("component", "oracle_evaluator").Logger(),
	}
}

// EvaluateCriteria implements Evaluator.
func (e *OracleEvaluator) EvaluateCriteria(ctx context.Context, r rubric.Rubric, c rubric.Criteria, text string) CriteriaResult {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	completion, err := e.oracle.Evaluate(callCtx, PromptFor(r, c, text))
	if err != nil {
		e.logger.Warn().Err(externalError(err)).Str("criteria", c.Name).Msg("oracle unavailable, using default band")
		observability.GradingFallbacks().WithLabelValues(string(SourceFallback)).Inc()
		return Fallback(c, "")
	}

	result, err := ParseStrict(completion.Content, c)
	if err == nil {
		return result
	}
	e.logger.Debug().Err(err).Str("criteria", c.Name).Msg("strict parse failed")

	if result, ok := ParseHeuristic(completion.Content, c); ok {
		observability.GradingFallbacks().WithLabelValues(string(SourceHeuristic)).Inc()
		return result
	}

	e.logger.Warn().Err(externalError(fmt.Errorf("unusable reply: %w", err))).Str("criteria", c.Name).Msg("oracle reply unusable, using default band")
	observability.GradingFallbacks().WithLabelValues(string(SourceFallback)).Inc()
	return Fallback(c, "")
}

func externalError(err error) error {
	if errors.Is(err, ai.ErrExternalService) {
		return err
	}
	return fmt.Errorf("%w: %w", ai.ErrExternalService, err)
}

// PromptFor converts a rubric criteria into the oracle request.
func PromptFor(r rubric.Rubric, c rubric.Criteria, text string) ai.CriteriaPrompt {
	bands := make([]ai.BandPrompt, 0, len(c.Bands))
	for _, band := range c.Bands {
		bands = append(bands, ai.BandPrompt{
			Level:       band.Level.String(),
			Description: band.Description,
			Min:         band.Min,
			Max:         band.Max,
		})
	}
	return ai.CriteriaPrompt{
		RubricTitle:         r.Title,
		CriteriaName:        c.Name,
		CriteriaDescription: c.Description,
		Points:              c.Points,
		Bands:               bands,
		SubmissionText:      text,
	}
}

// Keyword evaluator tuning.
const (
	// MinSubstantiveWords is the length under which work is treated as trivial.
	MinSubstantiveWords = 50
	// FullCreditWords is the length at which the length signal saturates.
	FullCreditWords = 600
)

// KeywordEvaluator is the local weak-signal evaluator used when no oracle is
// configured. It combines submission length with the band keyword hints.
type KeywordEvaluator struct{}

// EvaluateCriteria implements Evaluator.
func (KeywordEvaluator) EvaluateCriteria(_ context.Context, _ rubric.Rubric, c rubric.Criteria, text string) CriteriaResult {
	words := strings.Fields(strings.ToLower(text))
	wordCount := len(words)
	present := make(map[string]struct{}, wordCount)
	for _, word := range words {
		present[strings.Trim(word, ".,;:!?\"'()[]")] = struct{}{}
	}

	level := levelFromSignals(c, wordCount, present)
	band, _ := c.Band(level)

	fill := float64(wordCount) / FullCreditWords
	if fill > 1 {
		fill = 1
	}
	score := float64(band.Min) + float64(band.Max-band.Min)*fill

	observability.GradingFallbacks().WithLabelValues(string(SourceLocal)).Inc()
	return CriteriaResult{
		Criteria:    c.Name,
		Level:       level,
		Score:       score,
		MaxPoints:   c.Points,
		Feedback:    fmt.Sprintf("Estimated from length (%d words) and rubric keywords; a teacher should confirm this score.", wordCount),
		Suggestions: suggestionsFor(c, level),
		Source:      SourceLocal,
	}
}

func levelFromSignals(c rubric.Criteria, wordCount int, present map[string]struct{}) rubric.Level {
	if wordCount < MinSubstantiveWords {
		return rubric.NeedsImprovement
	}

	best := rubric.NeedsImprovement
	bestHits := 0
	for _, band := range c.Bands {
		hits := 0
		for _, keyword := range band.Keywords {
			if _, ok := present[strings.ToLower(keyword)]; ok {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = band.Level, hits
		}
	}
	if bestHits > 0 {
		return best
	}

	switch {
	case wordCount >= FullCreditWords:
		return rubric.Good
	case wordCount >= FullCreditWords/2:
		return rubric.Satisfactory
	default:
		return rubric.NeedsImprovement
	}
}

func suggestionsFor(c rubric.Criteria, level rubric.Level) []string {
	if level == rubric.Excellent {
		return []string{"Keep up the strong work on " + strings.ToLower(c.Name) + "."}
	}
	next, _ := c.Band(level - 1)
	return []string{fmt.Sprintf("Aim for: %s.", strings.TrimSuffix(next.Description, "."))}
}
