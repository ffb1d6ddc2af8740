package dto

import (
	"time"

	"github.com/noah-isme/sacel-api/internal/models"
	"github.com/noah-isme/sacel-api/internal/stats"
)

// AutoGradeRequest selects the rubric used to grade a submission. When RubricID is
// empty the assignment's rubric, then the default essay rubric, is used.
type AutoGradeRequest struct {
	RubricID *uint `json:"rubric_id" validate:"omitempty,gt=0"`
}

// GradeResultResponse is the per-criteria outcome of an auto-grade.
type GradeResultResponse struct {
	SubmissionID   uint                   `json:"submission_id"`
	RubricID       uint                   `json:"rubric_id"`
	RubricTitle    string                 `json:"rubric_title"`
	CriteriaScores []models.CriteriaScore `json:"criteria_scores"`
	TotalScore     float64                `json:"total_score"`
	MaxScore       int                    `json:"max_score"`
	Percentage     float64                `json:"percentage"`
	LetterGrade    string                 `json:"letter_grade"`
	Feedback       string                 `json:"feedback,omitempty"`
	AutoGraded     bool                   `json:"auto_graded"`
	GradedAt       time.Time              `json:"graded_at"`
	Version        uint                   `json:"version,omitempty"`
}

// NewGradeResultResponse converts a stored grade result.
func NewGradeResultResponse(result models.GradeResult, feedback string) GradeResultResponse {
	scores := result.Criteria.Data()
	if scores == nil {
		scores = []models.CriteriaScore{}
	}
	return GradeResultResponse{
		SubmissionID:   result.SubmissionID,
		RubricID:       result.RubricID,
		RubricTitle:    result.RubricTitle,
		CriteriaScores: scores,
		TotalScore:     result.TotalScore,
		MaxScore:       result.MaxScore,
		Percentage:     result.Percentage,
		LetterGrade:    stats.LetterGrade(result.Percentage),
		Feedback:       feedback,
		AutoGraded:     result.AutoGraded,
		GradedAt:       result.GradedAt,
	}
}

// FinalGradeRequest controls peer review blending.
type FinalGradeRequest struct {
	IncludePeerReviews *bool `json:"include_peer_reviews"`
}

// GradeWeights describes how a final grade was blended.
type GradeWeights struct {
	Rubric     float64 `json:"rubric_weight"`
	PeerReview float64 `json:"peer_review_weight"`
}

// FinalGradeResponse is the blended grade written back onto the submission.
type FinalGradeResponse struct {
	SubmissionID uint         `json:"submission_id"`
	BaseScore    float64      `json:"base_score"`
	PeerScores   []float64    `json:"peer_scores"`
	PeerAverage  *float64     `json:"peer_average"`
	FinalScore   float64      `json:"final_score"`
	LetterGrade  string       `json:"letter_grade"`
	Breakdown    GradeWeights `json:"grade_breakdown"`
}

// GradeReportResponse is the printable summary of a graded submission.
type GradeReportResponse struct {
	SubmissionID    uint                 `json:"submission_id"`
	StudentName     string               `json:"student_name"`
	StudentEmail    string               `json:"student_email"`
	AssignmentTitle string               `json:"assignment_title"`
	Subject         string               `json:"subject"`
	Status          string               `json:"status"`
	SubmissionDate  *time.Time           `json:"submission_date"`
	GradedDate      *time.Time           `json:"graded_date"`
	FinalGrade      *float64             `json:"final_grade"`
	LetterGrade     string               `json:"grade_letter"`
	Feedback        string               `json:"feedback"`
	RubricResults   *GradeResultResponse `json:"rubric_results"`
	PeerReviewCount int                  `json:"peer_review_count"`
	PeerAverage     *float64             `json:"peer_average"`
	GeneratedAt     time.Time            `json:"generated_at"`
}

// GradingCacheResponse reports how many cache keys were cleared.
type GradingCacheResponse struct {
	Cleared int `json:"cleared"`
}
