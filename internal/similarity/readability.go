package similarity

import (
	"strings"

	"github.com/noah-isme/sacel-api/internal/stats"
)

// WritingPatterns summarises surface features of a text.
type WritingPatterns struct {
	AverageWordLength     float64 `json:"average_word_length"`
	AverageSentenceLength float64 `json:"average_sentence_length"`
	VocabularyDiversity   float64 `json:"vocabulary_diversity"`
	ComplexWordRatio      float64 `json:"complex_words"`
}

// Readability is a simplified Flesch reading ease score clamped to [0,100].
func Readability(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	sentences := countSentences(text)

	syllables := 0
	for _, word := range words {
		syllables += CountSyllables(word)
	}

	score := 206.835 - 1.015*(float64(len(words))/float64(sentences)) - 84.6*(float64(syllables)/float64(len(words)))
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return stats.Round(score, 2)
	}
}

// CountSyllables counts vowel groups, dropping a trailing silent e. Every word has at least one.
func CountSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && count > 1 {
		count--
	}
	if count < 1 {
		return 1
	}
	return count
}

// AnalyzeWritingPatterns computes average lengths and vocabulary diversity of the raw text.
func AnalyzeWritingPatterns(text string) WritingPatterns {
	words := strings.Fields(text)
	if len(words) == 0 {
		return WritingPatterns{}
	}

	totalLength := 0
	complex := 0
	unique := make(map[string]struct{}, len(words))
	for _, word := range words {
		length := len([]rune(word))
		totalLength += length
		if length > 6 {
			complex++
		}
		unique[word] = struct{}{}
	}

	n := float64(len(words))
	return WritingPatterns{
		AverageWordLength:     stats.Round(float64(totalLength)/n, 2),
		AverageSentenceLength: stats.Round(n/float64(countSentences(text)), 2),
		VocabularyDiversity:   stats.Round(float64(len(unique))/n, 2),
		ComplexWordRatio:      stats.Round(float64(complex)/n, 2),
	}
}

func countSentences(text string) int {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	count := 0
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return count
}
