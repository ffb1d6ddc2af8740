// Package rubric defines weighted grading rubrics with banded performance levels.
package rubric

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRubric is returned when a rubric or criteria breaks a structural invariant.
var ErrInvalidRubric = errors.New("invalid rubric")

// Band is the point sub-range and guidance attached to one performance level.
type Band struct {
	Level       Level    `json:"level"`
	Description string   `json:"description"`
	Min         int      `json:"min"`
	Max         int      `json:"max"`
	Keywords    []string `json:"keywords"`
}

// Contains reports whether score lies inside the band.
func (b Band) Contains(score float64) bool {
	return score >= float64(b.Min) && score <= float64(b.Max)
}

// Clamp forces score into the band range.
func (b Band) Clamp(score float64) float64 {
	if score < float64(b.Min) {
		return float64(b.Min)
	}
	if score > float64(b.Max) {
		return float64(b.Max)
	}
	return score
}

// Midpoint returns the centre of the band.
func (b Band) Midpoint() float64 {
	return float64(b.Min+b.Max) / 2
}

// Criteria is a single weighted dimension of a rubric.
type Criteria struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	Bands       []Band `json:"bands"`
}

// NewCriteria builds a criteria and checks the band invariants.
func NewCriteria(name, description string, points int, bands ...Band) (Criteria, error) {
	criteria := Criteria{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Points:      points,
		Bands:       bands,
	}
	if err := criteria.Validate(); err != nil {
		return Criteria{}, err
	}
	return criteria, nil
}

// Validate checks that the bands cover [0, Points] contiguously in descending level order.
func (c Criteria) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: criteria name is required", ErrInvalidRubric)
	}
	if c.Points <= 0 {
		return fmt.Errorf("%w: criteria %q must be worth more than zero points", ErrInvalidRubric, c.Name)
	}
	if len(c.Bands) != len(Levels) {
		return fmt.Errorf("%w: criteria %q must define %d bands, got %d", ErrInvalidRubric, c.Name, len(Levels), len(c.Bands))
	}

	for idx, band := range c.Bands {
		if band.Level != Levels[idx] {
			return fmt.Errorf("%w: criteria %q band %d must be %s, got %s", ErrInvalidRubric, c.Name, idx, Levels[idx], band.Level)
		}
		if band.Min > band.Max {
			return fmt.Errorf("%w: criteria %q band %s has min %d above max %d", ErrInvalidRubric, c.Name, band.Level, band.Min, band.Max)
		}
		if idx == 0 && band.Max != c.Points {
			return fmt.Errorf("%w: criteria %q top band must end at %d, got %d", ErrInvalidRubric, c.Name, c.Points, band.Max)
		}
		if idx > 0 && band.Max != c.Bands[idx-1].Min-1 {
			return fmt.Errorf("%w: criteria %q band %s must end at %d, got %d", ErrInvalidRubric, c.Name, band.Level, c.Bands[idx-1].Min-1, band.Max)
		}
	}

	if bottom := c.Bands[len(c.Bands)-1]; bottom.Min != 0 {
		return fmt.Errorf("%w: criteria %q bottom band must start at 0, got %d", ErrInvalidRubric, c.Name, bottom.Min)
	}

	return nil
}

// Band returns the band for the requested level.
func (c Criteria) Band(level Level) (Band, bool) {
	for _, band := range c.Bands {
		if band.Level == level {
			return band, true
		}
	}
	return Band{}, false
}

// LevelFor returns the level whose band contains score, clamping out of range scores first.
func (c Criteria) LevelFor(score float64) Level {
	if score > float64(c.Points) {
		score = float64(c.Points)
	}
	for _, band := range c.Bands {
		if score >= float64(band.Min) {
			return band.Level
		}
	}
	return NeedsImprovement
}

// Rubric is an ordered collection of criteria. A rubric is immutable once stored.
type Rubric struct {
	ID          uint       `json:"id,omitempty"`
	Slug        string     `json:"slug,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Criteria    []Criteria `json:"criteria"`
}

// NewRubric builds and validates a rubric.
func NewRubric(title, description string, criteria ...Criteria) (Rubric, error) {
	r := Rubric{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Criteria:    criteria,
	}
	if err := r.Validate(); err != nil {
		return Rubric{}, err
	}
	return r, nil
}

// TotalPoints is the sum of criteria points.
func (r Rubric) TotalPoints() int {
	total := 0
	for _, criteria := range r.Criteria {
		total += criteria.Points
	}
	return total
}

// Validate checks every criteria and rejects duplicate criteria names.
func (r Rubric) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRubric)
	}
	if len(r.Criteria) == 0 {
		return fmt.Errorf("%w: at least one criteria is required", ErrInvalidRubric)
	}

	seen := make(map[string]struct{}, len(r.Criteria))
	for _, criteria := range r.Criteria {
		if err := criteria.Validate(); err != nil {
			return err
		}
		key := strings.ToLower(criteria.Name)
		if _, exists := seen[key]; exists {
			return fmt.Errorf("%w: duplicate criteria %q", ErrInvalidRubric, criteria.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// CheckDeclaredTotal rejects a rubric whose declared total disagrees with its criteria.
func (r Rubric) CheckDeclaredTotal(declared int) error {
	if declared != r.TotalPoints() {
		return fmt.Errorf("%w: declared total %d does not match criteria sum %d", ErrInvalidRubric, declared, r.TotalPoints())
	}
	return nil
}
