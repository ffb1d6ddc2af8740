package models

import "time"

const (
	// SubmissionStatusDraft indicates the student has not handed the work in yet.
	SubmissionStatusDraft = "draft"
	// SubmissionStatusSubmitted indicates the submission has been handed in but not graded.
	SubmissionStatusSubmitted = "submitted"
	// SubmissionStatusGraded indicates the submission has been evaluated.
	SubmissionStatusGraded = "graded"
)

// Submission is a student's answer to an assignment. Grade is a percentage.
// Version guards grading commits against concurrent writers.
type Submission struct {
	ID           uint                     `gorm:"primaryKey" json:"id"`
	AssignmentID uint                     `gorm:"index;not null" json:"assignment_id"`
	StudentID    uint                     `gorm:"index;not null" json:"student_id"`
	Content      string                   `gorm:"type:text" json:"content"`
	Status       string                   `gorm:"size:32;not null;index" json:"status"`
	Grade        *float64                 `json:"grade"`
	Feedback     string                   `gorm:"type:text" json:"feedback"`
	SubmittedAt  *time.Time               `json:"submitted_at"`
	GradedAt     *time.Time               `json:"graded_at"`
	GradedBy     *uint                    `json:"graded_by"`
	Version      uint                     `gorm:"not null;default:1" json:"version"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
	Assignment   Assignment               `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Student      User                     `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
	History      []SubmissionGradeHistory `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"history,omitempty"`
}

// IsGraded reports whether the submission has a final grade.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded && s.Grade != nil
}

// SubmissionGradeHistory is an append-only record of every grade written to a submission.
type SubmissionGradeHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"index;not null" json:"submission_id"`
	Score        float64   `gorm:"not null" json:"score"`
	Feedback     string    `gorm:"type:text" json:"feedback"`
	GradedBy     uint      `json:"graded_by"`
	Source       string    `gorm:"size:32;not null" json:"source"`
	GradedAt     time.Time `gorm:"not null" json:"graded_at"`
}
