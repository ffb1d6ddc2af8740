package rubric

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Level is a performance tier within a criteria. Levels are ordered from the
// highest (Excellent) to the lowest (NeedsImprovement).
type Level int

const (
	Excellent Level = iota
	Good
	Satisfactory
	NeedsImprovement
)

// Levels lists every performance level in descending order.
var Levels = [...]Level{Excellent, Good, Satisfactory, NeedsImprovement}

var levelTokens = [...]string{
	Excellent:        "excellent",
	Good:             "good",
	Satisfactory:     "satisfactory",
	NeedsImprovement: "needs_improvement",
}

// String returns the wire token of the level.
func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelTokens[l]
}

// Valid reports whether l is one of the four known levels.
func (l Level) Valid() bool {
	return l >= Excellent && l <= NeedsImprovement
}

// Label returns a human friendly name for feedback reports.
func (l Level) Label() string {
	switch l {
	case Excellent:
		return "Excellent"
	case Good:
		return "Good"
	case Satisfactory:
		return "Satisfactory"
	case NeedsImprovement:
		return "Needs Improvement"
	default:
		return l.String()
	}
}

// IsStrength reports whether the level counts as a strength in feedback.
func (l Level) IsStrength() bool {
	return l == Excellent || l == Good
}

// ParseLevel converts a token such as "needs_improvement" or "Needs Improvement" into a Level.
func ParseLevel(token string) (Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(token))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	for idx, candidate := range levelTokens {
		if candidate == normalized {
			return Level(idx), nil
		}
	}
	return 0, fmt.Errorf("unknown performance level %q", token)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid performance level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalJSON keeps levels readable in cached payloads.
func (l Level) MarshalJSON() ([]byte, error) {
	text, err := l.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON accepts the string token form.
func (l *Level) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return err
	}
	return l.UnmarshalText([]byte(token))
}
