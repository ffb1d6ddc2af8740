package grading

import (
	"fmt"
	"strings"
)

// Tier returns the headline sentence for an overall percentage.
func Tier(percentage float64) string {
	switch {
	case percentage >= 90:
		return "Excellent work! You have demonstrated mastery of the material."
	case percentage >= 80:
		return "Good work! You show strong understanding with room for refinement."
	case percentage >= 70:
		return "Satisfactory work. You meet the basic requirements and can push further."
	default:
		return "This work needs improvement. Please review the feedback below."
	}
}

// BuildReport renders the human readable feedback stored on the submission.
func BuildReport(result Result) string {
	var b strings.Builder

	b.WriteString("=== GRADING FEEDBACK ===\n")
	b.WriteString(Tier(result.Percentage))
	b.WriteString(fmt.Sprintf("\n\nOverall Score: %.1f%%\n\n", result.Percentage))

	b.WriteString("=== FEEDBACK BY CRITERIA ===\n")
	for _, c := range result.Criteria {
		b.WriteString(fmt.Sprintf("%s: %.1f/%d points (%s)\n", c.Criteria, c.Score, c.MaxPoints, c.Level.Label()))
		b.WriteString("  " + c.Feedback + "\n")
		for _, suggestion := range c.Suggestions {
			b.WriteString("  Suggestion: " + suggestion + "\n")
		}
	}

	if strengths := result.Strengths(); len(strengths) > 0 {
		b.WriteString("\nSTRENGTHS: " + strings.Join(strengths, ", "))
	}
	if focus := result.FocusAreas(); len(focus) > 0 {
		b.WriteString("\nFOCUS AREAS: " + strings.Join(focus, ", "))
	}

	b.WriteString("\n\n=== NEXT STEPS ===\n")
	b.WriteString("Review the feedback for each criteria above.\n")
	b.WriteString("Start with the focus areas before polishing your strengths.\n")
	b.WriteString("Ask your teacher if any comment is unclear.")

	return b.String()
}
