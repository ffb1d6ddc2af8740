package similarity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const essay = "Climate change is reshaping coastal cities. Rising seas force planners to rethink " +
	"drainage, housing and transport, while residents weigh the cost of staying against the risk of leaving."

func TestNormalize(t *testing.T) {
	require.Equal(t, "hello world its done", Normalize("  Hello,   World! It's\n\tdone. "))
	require.Equal(t, "", Normalize("?!..."))
}

func TestCompareIsReflexive(t *testing.T) {
	clean := Normalize(essay)
	cmp := Compare(clean, clean)

	require.Equal(t, 1.0, cmp.Character)
	require.Equal(t, 1.0, cmp.Word)
	require.Equal(t, 1.0, cmp.Phrase)
	require.InDelta(t, 1.0, cmp.Overall(), 1e-9)
}

func TestCompareIsSymmetric(t *testing.T) {
	a := Normalize(essay)
	b := Normalize("Rising seas force coastal planners to rethink housing. Residents weigh the cost of staying.")

	ab := Compare(a, b)
	ba := Compare(b, a)

	require.InDelta(t, ab.Character, ba.Character, 1e-9)
	require.InDelta(t, ab.Word, ba.Word, 1e-9)
	require.InDelta(t, ab.Phrase, ba.Phrase, 1e-9)
	require.Greater(t, ab.Overall(), 0.0)
	require.Less(t, ab.Overall(), 1.0)
}

func TestPhraseSimilarityShortTextsScoreZero(t *testing.T) {
	require.Equal(t, 0.0, PhraseSimilarity("one two three", "one two three", PhraseLength))
	require.Equal(t, 0.0, PhraseSimilarity("", "", PhraseLength))
}

func TestWordSimilarityEmptySets(t *testing.T) {
	require.Equal(t, 1.0, WordSimilarity("", ""))
	require.Equal(t, 0.0, WordSimilarity("word", ""))
	require.InDelta(t, 1.0/3.0, WordSimilarity("a b", "b c"), 1e-9)
}

func TestCheckWithoutPriorsIsClean(t *testing.T) {
	report := Check(essay, nil, Options{})

	require.Zero(t, report.OverallSimilarity)
	require.False(t, report.Flagged)
	require.Empty(t, report.Matches)
	require.Zero(t, report.CheckedAgainst)
	require.Equal(t, len(essay), report.Analysis.ContentLength)
}

func TestCheckFlagsIdenticalSubmission(t *testing.T) {
	report := Check(essay, []Prior{
		{SubmissionID: 7, StudentID: 3, Content: essay},
		{SubmissionID: 8, StudentID: 4, Content: "Volcanoes erupt when pressure builds."},
	}, Options{})

	require.True(t, report.Flagged)
	require.Equal(t, 2, report.CheckedAgainst)
	require.Len(t, report.Matches, 1)
	require.Equal(t, 100.0, report.OverallSimilarity)

	match := report.Matches[0]
	require.Equal(t, uint(7), match.SubmissionID)
	require.Equal(t, uint(3), match.StudentID)
	require.Equal(t, []string{Normalize(essay)}, match.MatchingPhrases)
}

func TestCheckHonoursCustomThresholds(t *testing.T) {
	report := Check(essay, []Prior{{SubmissionID: 1, Content: essay}}, Options{FlagThreshold: 100})
	require.False(t, report.Flagged)
	require.Len(t, report.Matches, 1)

	report = Check(essay, []Prior{{SubmissionID: 1, Content: essay}}, Options{ReportThreshold: 100})
	require.Empty(t, report.Matches)
	require.False(t, report.Flagged)
}

func TestMatchingPhrasesRequiresLongRuns(t *testing.T) {
	a := "one two three four five six seven eight nine ten eleven twelve"
	b := "zero one two three four five six seven eight nine ten stop"

	require.Equal(t, []string{"one two three four five six seven eight nine ten"}, MatchingPhrases(a, b, MatchingPhraseMinWords))
	require.Empty(t, MatchingPhrases("a b c", "a b c", MatchingPhraseMinWords))
}

func TestCountSyllables(t *testing.T) {
	require.Equal(t, 1, CountSyllables("the"))
	require.Equal(t, 1, CountSyllables("cake"))
	require.Equal(t, 1, CountSyllables("rhythm"))
	require.Equal(t, 3, CountSyllables("beautiful"))
	require.Equal(t, 1, CountSyllables("x"))
}

func TestReadabilityAndPatterns(t *testing.T) {
	require.Zero(t, Readability(""))

	score := Readability(essay)
	require.GreaterOrEqual(t, score, 0.0)
	require.LessOrEqual(t, score, 100.0)

	patterns := AnalyzeWritingPatterns("The cat sat. The cat ran.")
	require.Equal(t, 3.0, patterns.AverageSentenceLength)
	require.Equal(t, 0.67, patterns.VocabularyDiversity)
	require.Zero(t, patterns.ComplexWordRatio)
}
