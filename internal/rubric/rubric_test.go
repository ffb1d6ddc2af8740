package rubric

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsSatisfyBandInvariants(t *testing.T) {
	defaults, err := Defaults()
	require.NoError(t, err)
	require.Len(t, defaults, 2)

	for slug, r := range defaults {
		sum := 0
		for _, c := range r.Criteria {
			sum += c.Points
			require.Len(t, c.Bands, 4, slug)
			require.Equal(t, c.Points, c.Bands[0].Max, "%s/%s top band", slug, c.Name)
			require.Equal(t, 0, c.Bands[3].Min)
			for i := 1; i < len(c.Bands); i++ {
				require.Less(t, c.Bands[i].Max, c.Bands[i-1].Min, "%s/%s bands overlap", slug, c.Name)
				require.Equal(t, c.Bands[i-1].Min-1, c.Bands[i].Max)
			}
		}
		require.Equal(t, sum, r.TotalPoints(), slug)
		require.Equal(t, 100, r.TotalPoints(), slug)
	}

	require.Len(t, defaults[SlugEssay].Criteria, 5)
	require.Len(t, defaults[SlugMathematics].Criteria, 4)
}

func TestNewCriteriaRejectsGapBetweenBands(t *testing.T) {
	_, err := NewCriteria("Clarity", "How clear", 10,
		band(Excellent, "", 9, 10),
		band(Good, "", 7, 7),
		band(Satisfactory, "", 4, 6),
		band(NeedsImprovement, "", 0, 3),
	)
	require.ErrorIs(t, err, ErrInvalidRubric)
}

func TestNewCriteriaRejectsTopBandBelowPoints(t *testing.T) {
	_, err := NewCriteria("Clarity", "How clear", 10,
		band(Excellent, "", 8, 9),
		band(Good, "", 6, 7),
		band(Satisfactory, "", 3, 5),
		band(NeedsImprovement, "", 0, 2),
	)
	require.ErrorIs(t, err, ErrInvalidRubric)
}

func TestNewCriteriaRejectsOutOfOrderLevels(t *testing.T) {
	_, err := NewCriteria("Clarity", "How clear", 10,
		band(Good, "", 9, 10),
		band(Excellent, "", 7, 8),
		band(Satisfactory, "", 3, 6),
		band(NeedsImprovement, "", 0, 2),
	)
	require.ErrorIs(t, err, ErrInvalidRubric)
}

func TestCriteriaLevelFor(t *testing.T) {
	c := MustDefaults()[SlugEssay].Criteria[0]

	require.Equal(t, Excellent, c.LevelFor(24))
	require.Equal(t, Good, c.LevelFor(20))
	require.Equal(t, Satisfactory, c.LevelFor(19.5))
	require.Equal(t, NeedsImprovement, c.LevelFor(3))
	require.Equal(t, Excellent, c.LevelFor(400))
}

func TestBandClamp(t *testing.T) {
	b := band(Good, "", 20, 22)
	require.Equal(t, 20.0, b.Clamp(5))
	require.Equal(t, 22.0, b.Clamp(30))
	require.Equal(t, 21.0, b.Clamp(21))
	require.Equal(t, 21.0, b.Midpoint())
}

func TestRubricMapRoundTrip(t *testing.T) {
	original := MustDefaults()[SlugMathematics]

	restored, err := FromMap(original.ToMap())
	require.NoError(t, err)
	require.Equal(t, original, restored)

	// JSON decoding turns ints into float64; weak decoding must still accept it.
	payload, err := json.Marshal(original.ToMap())
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))

	fromJSON, err := FromMap(decoded)
	require.NoError(t, err)
	require.Equal(t, original, fromJSON)
}

func TestFromMapRejectsDeclaredTotalMismatch(t *testing.T) {
	data := MustDefaults()[SlugEssay].ToMap()
	data["total_points"] = 120

	_, err := FromMap(data)
	require.ErrorIs(t, err, ErrInvalidRubric)
}

func TestFromMapRejectsMissingLevel(t *testing.T) {
	data := MustDefaults()[SlugEssay].ToMap()
	criteria := data["criteria"].([]interface{})
	first := criteria[0].(map[string]interface{})
	levels := first["performance_levels"].(map[string]interface{})
	delete(levels, "good")

	_, err := FromMap(data)
	require.ErrorIs(t, err, ErrInvalidRubric)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("Needs Improvement")
	require.NoError(t, err)
	require.Equal(t, NeedsImprovement, level)

	level, err = ParseLevel(" EXCELLENT ")
	require.NoError(t, err)
	require.Equal(t, Excellent, level)

	_, err = ParseLevel("outstanding")
	require.Error(t, err)
}

func TestLevelJSON(t *testing.T) {
	payload, err := json.Marshal(struct {
		Level Level `json:"level"`
	}{Level: NeedsImprovement})
	require.NoError(t, err)
	require.JSONEq(t, `{"level":"needs_improvement"}`, string(payload))

	var decoded struct {
		Level Level `json:"level"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"level":"good"}`), &decoded))
	require.Equal(t, Good, decoded.Level)
}
