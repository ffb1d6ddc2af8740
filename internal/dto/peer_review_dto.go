package dto

import (
	"time"

	"github.com/noah-isme/sacel-api/internal/models"
)

// CreatePeerReviewsRequest configures a peer review round. Reviews are refused after Deadline.
type CreatePeerReviewsRequest struct {
	ReviewsPerStudent int        `json:"reviews_per_student" validate:"omitempty,gt=0,lte=10"`
	Criteria          []string   `json:"criteria" validate:"omitempty,dive,required,max=100"`
	Deadline          *time.Time `json:"deadline"`
}

// PairingResponse is one reviewer to submission assignment.
type PairingResponse struct {
	ReviewerID   uint       `json:"reviewer_id"`
	RevieweeID   uint       `json:"reviewee_id"`
	SubmissionID uint       `json:"submission_id"`
	Status       string     `json:"status"`
	AssignedAt   time.Time  `json:"assigned_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewPairingResponse converts a stored pairing.
func NewPairingResponse(p models.PeerReviewPairing) PairingResponse {
	return PairingResponse{
		ReviewerID:   p.ReviewerID,
		RevieweeID:   p.RevieweeID,
		SubmissionID: p.SubmissionID,
		Status:       p.Status,
		AssignedAt:   p.AssignedAt,
		CompletedAt:  p.CompletedAt,
	}
}

// PeerReviewRoundResponse is the pairing set of an assignment.
type PeerReviewRoundResponse struct {
	AssignmentID      uint              `json:"peer_review_id"`
	Criteria          []string          `json:"criteria"`
	ReviewsPerStudent int               `json:"reviews_per_student"`
	Deadline          *time.Time        `json:"deadline,omitempty"`
	PairingsCount     int               `json:"pairings_count"`
	Pairings          []PairingResponse `json:"pairings"`
	CreatedAt         time.Time         `json:"created_at"`
}

// SubmitPeerReviewRequest is a reviewer's assessment.
type SubmitPeerReviewRequest struct {
	Ratings      map[string]float64 `json:"ratings" validate:"required,min=1,dive,keys,required,endkeys,gte=0,lte=100"`
	Comments     string             `json:"comments" validate:"max=5000"`
	OverallScore *float64           `json:"overall_score" validate:"required,gte=0,lte=100"`
}

// PeerReviewSummaryResponse reports the reviews a submission has received.
type PeerReviewSummaryResponse struct {
	SubmissionID   uint               `json:"submission_id"`
	ReviewerID     uint               `json:"reviewer_id"`
	ReviewCount    int                `json:"review_count"`
	AverageRatings map[string]float64 `json:"average_ratings"`
	AverageOverall float64            `json:"average_overall"`
}
