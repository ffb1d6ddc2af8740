package rubric

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

type rawBand struct {
	Description string   `mapstructure:"description"`
	PointsRange []int    `mapstructure:"points_range"`
	Keywords    []string `mapstructure:"keywords"`
}

type rawCriteria struct {
	Name              string             `mapstructure:"name"`
	Description       string             `mapstructure:"description"`
	Points            int                `mapstructure:"points"`
	PerformanceLevels map[string]rawBand `mapstructure:"performance_levels"`
}

type rawRubric struct {
	ID          uint          `mapstructure:"id"`
	Slug        string        `mapstructure:"slug"`
	Title       string        `mapstructure:"title"`
	Description string        `mapstructure:"description"`
	TotalPoints *int          `mapstructure:"total_points"`
	Criteria    []rawCriteria `mapstructure:"criteria"`
}

// ToMap flattens the criteria into primitives keyed by level token.
func (c Criteria) ToMap() map[string]interface{} {
	levels := make(map[string]interface{}, len(c.Bands))
	for _, band := range c.Bands {
		keywords := make([]interface{}, 0, len(band.Keywords))
		for _, keyword := range band.Keywords {
			keywords = append(keywords, keyword)
		}
		levels[band.Level.String()] = map[string]interface{}{
			"description":  band.Description,
			"points_range": []interface{}{band.Min, band.Max},
			"keywords":     keywords,
		}
	}

	return map[string]interface{}{
		"name":               c.Name,
		"description":        c.Description,
		"points":             c.Points,
		"performance_levels": levels,
	}
}

// ToMap serializes the rubric into a mapping of primitives, including the computed total.
func (r Rubric) ToMap() map[string]interface{} {
	criteria := make([]interface{}, 0, len(r.Criteria))
	for _, c := range r.Criteria {
		criteria = append(criteria, c.ToMap())
	}

	out := map[string]interface{}{
		"title":        r.Title,
		"description":  r.Description,
		"criteria":     criteria,
		"total_points": r.TotalPoints(),
	}
	if r.ID != 0 {
		out["id"] = r.ID
	}
	if r.Slug != "" {
		out["slug"] = r.Slug
	}
	return out
}

// FromMap rebuilds a rubric from ToMap output (or its JSON-decoded form) and validates it.
// A declared total_points that disagrees with the criteria sum is rejected.
func FromMap(data map[string]interface{}) (Rubric, error) {
	var raw rawRubric
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &raw,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Rubric{}, err
	}
	if err := decoder.Decode(data); err != nil {
		return Rubric{}, fmt.Errorf("%w: %v", ErrInvalidRubric, err)
	}

	r := Rubric{
		ID:          raw.ID,
		Slug:        raw.Slug,
		Title:       raw.Title,
		Description: raw.Description,
		Criteria:    make([]Criteria, 0, len(raw.Criteria)),
	}

	for _, rc := range raw.Criteria {
		criteria := Criteria{
			Name:        rc.Name,
			Description: rc.Description,
			Points:      rc.Points,
			Bands:       make([]Band, 0, len(Levels)),
		}
		for _, level := range Levels {
			rb, ok := rc.PerformanceLevels[level.String()]
			if !ok {
				return Rubric{}, fmt.Errorf("%w: criteria %q is missing level %s", ErrInvalidRubric, rc.Name, level)
			}
			if len(rb.PointsRange) != 2 {
				return Rubric{}, fmt.Errorf("%w: criteria %q level %s needs a two element points_range", ErrInvalidRubric, rc.Name, level)
			}
			criteria.Bands = append(criteria.Bands, Band{
				Level:       level,
				Description: rb.Description,
				Min:         rb.PointsRange[0],
				Max:         rb.PointsRange[1],
				Keywords:    rb.Keywords,
			})
		}
		if len(rc.PerformanceLevels) != len(Levels) {
			return Rubric{}, fmt.Errorf("%w: criteria %q declares unknown levels", ErrInvalidRubric, rc.Name)
		}
		r.Criteria = append(r.Criteria, criteria)
	}

	if err := r.Validate(); err != nil {
		return Rubric{}, err
	}
	if raw.TotalPoints != nil {
		if err := r.CheckDeclaredTotal(*raw.TotalPoints); err != nil {
			return Rubric{}, err
		}
	}

	return r, nil
}
