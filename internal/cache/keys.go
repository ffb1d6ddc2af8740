package cache

import (
	"fmt"
	"strings"
)

// Scopes label cache metrics.
const (
	ScopeRubric              = "rubric"
	ScopeRubricResults       = "rubric_results"
	ScopePeerReview          = "peer_review"
	ScopeStudentAnalytics    = "student_analytics"
	ScopeClassAnalytics      = "class_analytics"
	ScopeSchoolAnalytics     = "school_analytics"
	ScopeAssignmentAnalytics = "assignment_analytics"
	ScopeRecommendations     = "learning_recommendations"
)

// RubricKey addresses a persisted rubric definition.
func RubricKey(id uint) string {
	return fmt.Sprintf("%s:%d", ScopeRubric, id)
}

// RubricResultsKey addresses the per-criteria result of a graded submission.
func RubricResultsKey(submissionID uint) string {
	return fmt.Sprintf("%s:%d", ScopeRubricResults, submissionID)
}

// PeerReviewKey addresses the pairing set of an assignment.
func PeerReviewKey(assignmentID uint) string {
	return fmt.Sprintf("%s:%d", ScopePeerReview, assignmentID)
}

// StudentAnalyticsKey addresses a student overview for a window.
func StudentAnalyticsKey(studentID uint, windowDays int) string {
	return fmt.Sprintf("%s:%d:%d", ScopeStudentAnalytics, studentID, windowDays)
}

// StudentAnalyticsPattern matches every window of a student overview.
func StudentAnalyticsPattern(studentID uint) string {
	return fmt.Sprintf("%s:%d:*", ScopeStudentAnalytics, studentID)
}

// ClassAnalyticsKey addresses a teacher's class view filtered by subject and grade level.
func ClassAnalyticsKey(teacherID uint, subject, gradeLevel string) string {
	return fmt.Sprintf("%s:%d:%s:%s", ScopeClassAnalytics, teacherID, keyPart(subject), keyPart(gradeLevel))
}

// ClassAnalyticsPattern matches every filter combination of a teacher's class view.
func ClassAnalyticsPattern(teacherID uint) string {
	return fmt.Sprintf("%s:%d:*", ScopeClassAnalytics, teacherID)
}

// SchoolAnalyticsKey addresses a school rollup.
func SchoolAnalyticsKey(schoolID uint) string {
	return fmt.Sprintf("%s:%d", ScopeSchoolAnalytics, schoolID)
}

// AssignmentAnalyticsKey addresses the statistics of one assignment.
func AssignmentAnalyticsKey(assignmentID uint) string {
	return fmt.Sprintf("%s:%d", ScopeAssignmentAnalytics, assignmentID)
}

// RecommendationsKey addresses a student's learning recommendations.
func RecommendationsKey(studentID uint) string {
	return fmt.Sprintf("%s:%d", ScopeRecommendations, studentID)
}

func keyPart(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "all"
	}
	return strings.NewReplacer(" ", "_", ":", "_", "*", "_").Replace(value)
}
