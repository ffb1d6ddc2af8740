package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/sacel-api/internal/rubric"
)

// ErrUnparseable is returned when an oracle reply does not satisfy the strict contract.
var ErrUnparseable = errors.New("unparseable oracle reply")

const evaluationSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["level", "score"],
  "properties": {
    "level": {"type": "string", "enum": ["excellent", "good", "satisfactory", "needs_improvement"]},
    "score": {"type": "number"},
    "feedback": {"type": "string"},
    "suggestions": {
      "anyOf": [
        {"type": "string"},
        {"type": "array", "items": {"type": "string"}}
      ]
    }
  }
}`

var (
	schema = jsonschema.MustCompileString("https://schemas.sacel.local/oracle_evaluation.json", evaluationSchema)

	scorePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:points?|/)`)
)

type evaluationPayload struct {
	Level       string          `json:"level"`
	Score       float64         `json:"score"`
	Feedback    string          `json:"feedback"`
	Suggestions json.RawMessage `json:"suggestions"`
}

// ParseStrict extracts the JSON object embedded in content and validates it against
// the evaluation schema.
func ParseStrict(content string, c rubric.Criteria) (CriteriaResult, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return CriteriaResult{}, fmt.Errorf("%w: no json object", ErrUnparseable)
	}
	raw := []byte(content[start : end+1])

	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return CriteriaResult{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if err := schema.Validate(document); err != nil {
		return CriteriaResult{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	var payload evaluationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return CriteriaResult{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	level, err := rubric.ParseLevel(payload.Level)
	if err != nil {
		return CriteriaResult{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	feedback := strings.TrimSpace(payload.Feedback)
	if feedback == "" {
		feedback = fmt.Sprintf("Rated %s for %s.", strings.ToLower(level.Label()), c.Name)
	}

	return CriteriaResult{
		Criteria:    c.Name,
		Level:       level,
		Score:       payload.Score,
		MaxPoints:   c.Points,
		Feedback:    feedback,
		Suggestions: decodeSuggestions(payload.Suggestions),
		Source:      SourceOracle,
	}, nil
}

// ParseHeuristic reads a free-text reply. An explicit level name wins over band
// keywords; a "N points" or "N/" mention supplies the score. It reports false when
// the reply carries neither a level nor a score.
func ParseHeuristic(content string, c rubric.Criteria) (CriteriaResult, bool) {
	lower := strings.ToLower(content)

	level, levelFound := levelMention(lower)
	if !levelFound {
		level, levelFound = keywordLevel(lower, c)
	}

	var score float64
	scoreFound := false
	if match := scorePattern.FindStringSubmatch(content); match != nil {
		if parsed, err := strconv.ParseFloat(match[1], 64); err == nil {
			score = parsed
			scoreFound = true
		}
	}

	switch {
	case !levelFound && !scoreFound:
		return CriteriaResult{}, false
	case !levelFound:
		level = c.LevelFor(score)
	case !scoreFound:
		band, _ := c.Band(level)
		score = band.Midpoint()
	}

	return CriteriaResult{
		Criteria:    c.Name,
		Level:       level,
		Score:       score,
		MaxPoints:   c.Points,
		Feedback:    truncate(strings.TrimSpace(content), 200),
		Suggestions: []string{"Continue to develop your skills in this area."},
		Source:      SourceHeuristic,
	}, true
}

// Fallback is the deterministic result used when no usable signal exists:
// satisfactory, scored at the top of that band.
func Fallback(c rubric.Criteria, reason string) CriteriaResult {
	band, _ := c.Band(rubric.Satisfactory)
	feedback := "Automatic evaluation unavailable. Score based on completion."
	if reason != "" {
		feedback = fmt.Sprintf("%s (%s)", feedback, reason)
	}
	return CriteriaResult{
		Criteria:    c.Name,
		Level:       rubric.Satisfactory,
		Score:       float64(band.Max),
		MaxPoints:   c.Points,
		Feedback:    feedback,
		Suggestions: []string{"Please review this work manually for detailed feedback."},
		Source:      SourceFallback,
	}
}

func levelMention(lower string) (rubric.Level, bool) {
	normalized := strings.NewReplacer("needs improvement", "needs_improvement", "needs-improvement", "needs_improvement").Replace(lower)
	words := strings.FieldsFunc(normalized, func(r rune) bool {
		return !(r == '_' || ('a' <= r && r <= 'z'))
	})
	present := make(map[string]struct{}, len(words))
	for _, word := range words {
		present[word] = struct{}{}
	}
	for _, level := range rubric.Levels {
		if _, ok := present[level.String()]; ok {
			return level, true
		}
	}
	return 0, false
}

func keywordLevel(lower string, c rubric.Criteria) (rubric.Level, bool) {
	for _, band := range c.Bands {
		for _, keyword := range band.Keywords {
			if keyword != "" && strings.Contains(lower, strings.ToLower(keyword)) {
				return band.Level, true
			}
		}
	}
	return 0, false
}

func decodeSuggestions(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && strings.TrimSpace(single) != "" {
		return []string{strings.TrimSpace(single)}
	}
	return []string{}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
