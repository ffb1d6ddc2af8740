package rubric

// Slugs of the rubrics that ship with every installation.
const (
	SlugEssay       = "essay"
	SlugMathematics = "mathematics"
)

type criteriaSpec struct {
	name, description string
	points            int
	bands             []Band
}

func buildRubric(slug, title, description string, specs []criteriaSpec) (Rubric, error) {
	criteria := make([]Criteria, 0, len(specs))
	for _, spec := range specs {
		c, err := NewCriteria(spec.name, spec.description, spec.points, spec.bands...)
		if err != nil {
			return Rubric{}, err
		}
		criteria = append(criteria, c)
	}

	r, err := NewRubric(title, description, criteria...)
	if err != nil {
		return Rubric{}, err
	}
	r.Slug = slug
	return r, nil
}

func band(level Level, description string, lo, hi int, keywords ...string) Band {
	return Band{Level: level, Description: description, Min: lo, Max: hi, Keywords: keywords}
}

// Defaults builds the built-in rubrics keyed by slug. Every criteria goes through
// NewCriteria so a typo in a band range surfaces as an error instead of a bad grade.
func Defaults() (map[string]Rubric, error) {
	essay, err := essayRubric()
	if err != nil {
		return nil, err
	}
	math, err := mathematicsRubric()
	if err != nil {
		return nil, err
	}
	return map[string]Rubric{
		SlugEssay:       essay,
		SlugMathematics: math,
	}, nil
}

// MustDefaults is Defaults for callers that treat a broken built-in rubric as a programming error.
func MustDefaults() map[string]Rubric {
	defaults, err := Defaults()
	if err != nil {
		panic(err)
	}
	return defaults
}

func essayRubric() (Rubric, error) {
	specs := []criteriaSpec{
		{
			name:        "Content & Ideas",
			description: "Quality and relevance of ideas presented",
			points:      25,
			bands: []Band{
				band(Excellent, "Exceptional insight and original thinking", 23, 25, "original", "insightful", "comprehensive", "thorough"),
				band(Good, "Clear ideas with good support", 20, 22, "clear", "supported", "relevant", "adequate"),
				band(Satisfactory, "Basic ideas with minimal support", 15, 19, "basic", "simple", "unclear", "minimal"),
				band(NeedsImprovement, "Lacks clarity and support", 0, 14, "confused", "irrelevant", "unclear", "insufficient"),
			},
		},
		{
			name:        "Organization & Structure",
			description: "Logical flow and organization of content",
			points:      20,
			bands: []Band{
				band(Excellent, "Clear, logical progression with smooth transitions", 18, 20, "logical", "smooth", "coherent", "well-organized"),
				band(Good, "Generally well-organized with clear structure", 16, 17, "organized", "structured", "clear progression"),
				band(Satisfactory, "Basic organization with some confusion", 12, 15, "basic", "somewhat confused", "unclear structure"),
				band(NeedsImprovement, "Poor organization, difficult to follow", 0, 11, "disorganized", "confusing", "no clear structure"),
			},
		},
		{
			name:        "Language & Grammar",
			description: "Proper use of language, grammar, and mechanics",
			points:      20,
			bands: []Band{
				band(Excellent, "Excellent grammar with varied sentence structure", 18, 20, "excellent grammar", "varied sentences", "fluent"),
				band(Good, "Good grammar with minor errors", 16, 17, "good grammar", "minor errors", "clear language"),
				band(Satisfactory, "Adequate grammar with some errors", 12, 15, "adequate", "some errors", "basic language"),
				band(NeedsImprovement, "Poor grammar interferes with understanding", 0, 11, "poor grammar", "many errors", "unclear"),
			},
		},
		{
			name:        "Critical Thinking",
			description: "Analysis, evaluation, and synthesis of information",
			points:      25,
			bands: []Band{
				band(Excellent, "Sophisticated analysis with original insights", 23, 25, "sophisticated", "analytical", "synthesis", "evaluation"),
				band(Good, "Good analysis with some evaluation", 20, 22, "analytical", "evaluative", "thoughtful"),
				band(Satisfactory, "Basic analysis with limited evaluation", 15, 19, "basic analysis", "limited thinking", "surface level"),
				band(NeedsImprovement, "Little evidence of critical thinking", 0, 14, "no analysis", "superficial", "limited thinking"),
			},
		},
		{
			name:        "Use of Evidence",
			description: "Quality and integration of supporting evidence",
			points:      10,
			bands: []Band{
				band(Excellent, "Strong, relevant evidence well-integrated", 9, 10, "strong evidence", "well-integrated", "relevant sources"),
				band(Good, "Good evidence with adequate integration", 8, 8, "good evidence", "adequate support"),
				band(Satisfactory, "Some evidence but poorly integrated", 6, 7, "some evidence", "poorly integrated", "weak support"),
				band(NeedsImprovement, "Little or no supporting evidence", 0, 5, "no evidence", "unsupported", "lacking sources"),
			},
		},
	}

	return buildRubric(SlugEssay, "Essay Writing Rubric", "Comprehensive rubric for evaluating essay assignments", specs)
}

func mathematicsRubric() (Rubric, error) {
	specs := []criteriaSpec{
		{
			name:        "Problem Understanding",
			description: "Demonstrates understanding of the problem",
			points:      20,
			bands: []Band{
				band(Excellent, "Complete understanding with clear problem identification", 18, 20, "complete understanding", "identifies key elements"),
				band(Good, "Good understanding with minor gaps", 15, 17, "good understanding", "mostly correct interpretation"),
				band(Satisfactory, "Basic understanding with some confusion", 10, 14, "basic understanding", "some confusion"),
				band(NeedsImprovement, "Little understanding of the problem", 0, 9, "misunderstands", "incorrect interpretation"),
			},
		},
		{
			name:        "Mathematical Reasoning",
			description: "Quality of mathematical thinking and logic",
			points:      30,
			bands: []Band{
				band(Excellent, "Sophisticated reasoning with clear logic", 27, 30, "sophisticated reasoning", "clear logic", "mathematical insight"),
				band(Good, "Sound reasoning with minor gaps", 24, 26, "sound reasoning", "logical approach"),
				band(Satisfactory, "Basic reasoning with some errors", 18, 23, "basic reasoning", "some logical errors"),
				band(NeedsImprovement, "Poor reasoning or major errors", 0, 17, "poor reasoning", "major errors", "illogical"),
			},
		},
		{
			name:        "Solution Strategy",
			description: "Appropriateness and efficiency of solution method",
			points:      25,
			bands: []Band{
				band(Excellent, "Efficient and elegant solution strategy", 23, 25, "efficient", "elegant", "optimal strategy"),
				band(Good, "Appropriate strategy with good execution", 20, 22, "appropriate strategy", "good method"),
				band(Satisfactory, "Workable strategy but inefficient", 15, 19, "workable", "inefficient", "basic method"),
				band(NeedsImprovement, "Inappropriate or no clear strategy", 0, 14, "inappropriate", "no strategy", "random approach"),
			},
		},
		{
			name:        "Accuracy",
			description: "Correctness of calculations and final answer",
			points:      25,
			bands: []Band{
				band(Excellent, "All calculations correct with accurate answer", 23, 25, "accurate", "correct calculations", "right answer"),
				band(Good, "Mostly correct with minor calculation errors", 20, 22, "mostly correct", "minor errors"),
				band(Satisfactory, "Some correct work but major errors", 12, 19, "some correct", "major errors", "wrong answer"),
				band(NeedsImprovement, "Mostly incorrect calculations", 0, 11, "incorrect", "major calculation errors"),
			},
		},
	}

	return buildRubric(SlugMathematics, "Mathematics Problem Solving Rubric", "Comprehensive rubric for evaluating math problem-solving assignments", specs)
}
