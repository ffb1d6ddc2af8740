package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// PairingStatusPending marks a pairing whose review has not been submitted.
	PairingStatusPending = "pending"
	// PairingStatusCompleted marks a pairing whose review has been submitted.
	PairingStatusCompleted = "completed"
)

// PeerReviewRound configures peer review for an assignment.
type PeerReviewRound struct {
	ID                uint                         `gorm:"primaryKey" json:"id"`
	AssignmentID      uint                         `gorm:"uniqueIndex;not null" json:"assignment_id"`
	Criteria          datatypes.JSONType[[]string] `json:"criteria"`
	ReviewsPerStudent int                          `gorm:"not null" json:"reviews_per_student"`
	Deadline          *time.Time                   `json:"deadline"`
	CreatedAt         time.Time                    `json:"created_at"`
	UpdatedAt         time.Time                    `json:"updated_at"`
}

// PeerReviewPairing assigns a reviewer to another student's submission.
type PeerReviewPairing struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AssignmentID uint       `gorm:"index;not null" json:"assignment_id"`
	SubmissionID uint       `gorm:"uniqueIndex:idx_pairing_submission_reviewer;not null" json:"submission_id"`
	ReviewerID   uint       `gorm:"uniqueIndex:idx_pairing_submission_reviewer;not null" json:"reviewer_id"`
	RevieweeID   uint       `gorm:"not null" json:"reviewee_id"`
	Status       string     `gorm:"size:32;not null" json:"status"`
	AssignedAt   time.Time  `gorm:"not null" json:"assigned_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// PeerReview is a reviewer's assessment of a submission. One per (submission, reviewer).
type PeerReview struct {
	ID           uint                                   `gorm:"primaryKey" json:"id"`
	SubmissionID uint                                   `gorm:"uniqueIndex:idx_review_submission_reviewer;not null" json:"submission_id"`
	ReviewerID   uint                                   `gorm:"uniqueIndex:idx_review_submission_reviewer;not null" json:"reviewer_id"`
	Ratings      datatypes.JSONType[map[string]float64] `json:"ratings"`
	Comments     string                                 `gorm:"type:text" json:"comments"`
	OverallScore float64                                `gorm:"not null" json:"overall_score"`
	CreatedAt    time.Time                              `json:"created_at"`
	UpdatedAt    time.Time                              `json:"updated_at"`
}
