// Package similarity scores textual overlap between submissions of the same assignment.
package similarity

import (
	"sort"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/noah-isme/sacel-api/internal/stats"
)

const (
	// PhraseLength is the shingle size used for phrase similarity.
	PhraseLength = 5
	// MatchingPhraseMinWords is the shortest shared word run reported as a matching phrase.
	MatchingPhraseMinWords = 10

	maxMatchingPhrases = 10
)

// Default thresholds, expressed as percentages.
const (
	DefaultReportThreshold = 30.0
	DefaultFlagThreshold   = 80.0
)

// Normalize lowercases text, strips punctuation and collapses whitespace.
func Normalize(text string) string {
	stripped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, text)
	return strings.Join(strings.Fields(stripped), " ")
}

// Comparison holds the three independent measures for a pair of normalized texts, each in [0,1].
type Comparison struct {
	Character float64
	Word      float64
	Phrase    float64
}

// Overall is the arithmetic mean of the three measures.
func (c Comparison) Overall() float64 {
	return (c.Character + c.Word + c.Phrase) / 3
}

// Compare computes every measure for two already normalized texts.
func Compare(a, b string) Comparison {
	return Comparison{
		Character: CharacterSimilarity(a, b),
		Word:      WordSimilarity(a, b),
		Phrase:    PhraseSimilarity(a, b, PhraseLength),
	}
}

// CharacterSimilarity is the sequence matching ratio 2*M/T over characters. The matcher
// is not order independent, so both directions are averaged to keep the score symmetric.
func CharacterSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := runeStrings(a), runeStrings(b)
	forward := difflib.NewMatcherWithJunk(ra, rb, false, nil).Ratio()
	backward := difflib.NewMatcherWithJunk(rb, ra, false, nil).Ratio()
	return (forward + backward) / 2
}

// WordSimilarity is the Jaccard index of the two word sets.
func WordSimilarity(a, b string) float64 {
	return jaccard(toSet(strings.Fields(a)), toSet(strings.Fields(b)))
}

// PhraseSimilarity is the Jaccard index of n-word shingles. Texts shorter than n words score 0.
func PhraseSimilarity(a, b string, n int) float64 {
	wa, wb := strings.Fields(a), strings.Fields(b)
	if n <= 0 || len(wa) < n || len(wb) < n {
		return 0
	}
	return jaccard(toSet(shingles(wa, n)), toSet(shingles(wb, n)))
}

// MatchingPhrases returns shared runs of at least minWords consecutive words, longest first.
func MatchingPhrases(a, b string, minWords int) []string {
	wa, wb := strings.Fields(a), strings.Fields(b)
	if len(wa) < minWords || len(wb) < minWords {
		return []string{}
	}

	matcher := difflib.NewMatcherWithJunk(wa, wb, false, nil)
	seen := map[string]struct{}{}
	phrases := make([]string, 0)
	for _, block := range matcher.GetMatchingBlocks() {
		if block.Size < minWords {
			continue
		}
		phrase := strings.Join(wa[block.A:block.A+block.Size], " ")
		if _, ok := seen[phrase]; ok {
			continue
		}
		seen[phrase] = struct{}{}
		phrases = append(phrases, phrase)
	}

	sort.SliceStable(phrases, func(i, j int) bool { return len(phrases[i]) > len(phrases[j]) })
	if len(phrases) > maxMatchingPhrases {
		phrases = phrases[:maxMatchingPhrases]
	}
	return phrases
}

// Prior is a previously submitted text to compare against.
type Prior struct {
	SubmissionID uint
	StudentID    uint
	Content      string
}

// Options tunes reporting. Thresholds are percentages; zero values fall back to defaults.
type Options struct {
	ReportThreshold float64
	FlagThreshold   float64
}

func (o Options) withDefaults() Options {
	if o.ReportThreshold <= 0 {
		o.ReportThreshold = DefaultReportThreshold
	}
	if o.FlagThreshold <= 0 {
		o.FlagThreshold = DefaultFlagThreshold
	}
	return o
}

// Match is a reported comparison; scores are percentages rounded to two decimals.
type Match struct {
	SubmissionID        uint     `json:"submission_id"`
	StudentID           uint     `json:"student_id,omitempty"`
	SimilarityScore     float64  `json:"similarity_score"`
	CharacterSimilarity float64  `json:"character_similarity"`
	WordSimilarity      float64  `json:"word_similarity"`
	PhraseSimilarity    float64  `json:"phrase_similarity"`
	MatchingPhrases     []string `json:"matching_phrases,omitempty"`
}

// Analysis carries supplementary signals that never influence the flag decision.
type Analysis struct {
	ContentLength   int             `json:"content_length"`
	UniqueWords     int             `json:"unique_words"`
	Readability     float64         `json:"readability_score"`
	WritingPatterns WritingPatterns `json:"writing_patterns"`
}

// Report is the outcome of checking one candidate text.
type Report struct {
	OverallSimilarity float64  `json:"overall_similarity"`
	Matches           []Match  `json:"suspicious_matches"`
	Flagged           bool     `json:"flagged"`
	CheckedAgainst    int      `json:"checked_against"`
	Analysis          Analysis `json:"analysis_details"`
}

// Check compares candidate with every prior text. It never fails: with nothing to
// compare against the report is empty and unflagged.
func Check(candidate string, priors []Prior, opts Options) Report {
	opts = opts.withDefaults()
	clean := Normalize(candidate)

	report := Report{
		Matches:        []Match{},
		CheckedAgainst: len(priors),
		Analysis: Analysis{
			ContentLength:   len(candidate),
			UniqueWords:     len(toSet(strings.Fields(clean))),
			Readability:     Readability(candidate),
			WritingPatterns: AnalyzeWritingPatterns(candidate),
		},
	}

	for _, prior := range priors {
		other := Normalize(prior.Content)
		if other == "" {
			continue
		}
		cmp := Compare(clean, other)
		overall := cmp.Overall() * 100
		if overall <= opts.ReportThreshold {
			continue
		}
		report.Matches = append(report.Matches, Match{
			SubmissionID:        prior.SubmissionID,
			StudentID:           prior.StudentID,
			SimilarityScore:     stats.Round(overall, 2),
			CharacterSimilarity: stats.Round(cmp.Character*100, 2),
			WordSimilarity:      stats.Round(cmp.Word*100, 2),
			PhraseSimilarity:    stats.Round(cmp.Phrase*100, 2),
			MatchingPhrases:     MatchingPhrases(clean, other, MatchingPhraseMinWords),
		})
	}

	sort.SliceStable(report.Matches, func(i, j int) bool {
		return report.Matches[i].SimilarityScore > report.Matches[j].SimilarityScore
	})

	if len(report.Matches) > 0 {
		report.OverallSimilarity = report.Matches[0].SimilarityScore
		report.Flagged = report.OverallSimilarity > opts.FlagThreshold
	}

	return report
}

func runeStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func shingles(words []string, n int) []string {
	out := make([]string, 0, len(words)-n+1)
	for i := 0; i+n <= len(words); i++ {
		out = append(out, strings.Join(words[i:i+n], " "))
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for item := range a {
		if _, ok := b[item]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
