package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/sacel-api/internal/models"
)

// PeerReviewRepository stores peer review rounds, pairings and reviews.
type PeerReviewRepository interface {
	ReplacePairings(ctx context.Context, round *models.PeerReviewRound, pairings []models.PeerReviewPairing) error
	GetRound(ctx context.Context, assignmentID uint) (models.PeerReviewRound, error)
	ListPairings(ctx context.Context, assignmentID uint) ([]models.PeerReviewPairing, error)
	FindPairing(ctx context.Context, submissionID, reviewerID uint) (models.PeerReviewPairing, error)
	UpsertReview(ctx context.Context, review *models.PeerReview, completedAt time.Time) error
	ListReviews(ctx context.Context, submissionID uint) ([]models.PeerReview, error)
	ListReviewsForAssignment(ctx context.Context, assignmentID uint) ([]models.PeerReview, error)
}

type peerReviewRepository struct {
	db *gorm.DB
}

// NewPeerReviewRepository constructs the peer review repository.
func NewPeerReviewRepository(db *gorm.DB) PeerReviewRepository {
	return &peerReviewRepository{db: db}
}

// ReplacePairings swaps every pairing of the round's assignment for the new set atomically.
func (r *peerReviewRepository) ReplacePairings(ctx context.Context, round *models.PeerReviewRound, pairings []models.PeerReviewPairing) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assignment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"criteria", "reviews_per_student", "deadline", "updated_at"}),
		}).Create(round).Error; err != nil {
			return err
		}

		if err := tx.Where("assignment_id = ?", round.AssignmentID).Delete(&models.PeerReviewPairing{}).Error; err != nil {
			return err
		}

		if len(pairings) == 0 {
			return nil
		}
		return tx.Create(&pairings).Error
	})
}

func (r *peerReviewRepository) GetRound(ctx context.Context, assignmentID uint) (models.PeerReviewRound, error) {
	var round models.PeerReviewRound
	if err := r.db.WithContext(ctx).Where("assignment_id = ?", assignmentID).First(&round).Error; err != nil {
		return models.PeerReviewRound{}, err
	}
	return round, nil
}

func (r *peerReviewRepository) ListPairings(ctx context.Context, assignmentID uint) ([]models.PeerReviewPairing, error) {
	var pairings []models.PeerReviewPairing
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("reviewer_id ASC").
		Order("submission_id ASC").
		Find(&pairings).Error; err != nil {
		return nil, err
	}
	return pairings, nil
}

func (r *peerReviewRepository) FindPairing(ctx context.Context, submissionID, reviewerID uint) (models.PeerReviewPairing, error) {
	var pairing models.PeerReviewPairing
	if err := r.db.WithContext(ctx).
		Where("submission_id = ? AND reviewer_id = ?", submissionID, reviewerID).
		First(&pairing).Error; err != nil {
		return models.PeerReviewPairing{}, err
	}
	return pairing, nil
}

// UpsertReview replaces the reviewer's previous review of the submission and marks the pairing completed.
func (r *peerReviewRepository) UpsertReview(ctx context.Context, review *models.PeerReview, completedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}, {Name: "reviewer_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"ratings", "comments", "overall_score", "updated_at"}),
		}).Create(review).Error; err != nil {
			return err
		}

		return tx.Model(&models.PeerReviewPairing{}).
			Where("submission_id = ? AND reviewer_id = ?", review.SubmissionID, review.ReviewerID).
			Updates(map[string]interface{}{
				"status":       models.PairingStatusCompleted,
				"completed_at": completedAt,
			}).Error
	})
}

func (r *peerReviewRepository) ListReviews(ctx context.Context, submissionID uint) ([]models.PeerReview, error) {
	var reviews []models.PeerReview
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("reviewer_id ASC").
		Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *peerReviewRepository) ListReviewsForAssignment(ctx context.Context, assignmentID uint) ([]models.PeerReview, error) {
	var reviews []models.PeerReview
	if err := r.db.WithContext(ctx).
		Joins("JOIN submissions ON submissions.id = peer_reviews.submission_id").
		Where("submissions.assignment_id = ?", assignmentID).
		Order("peer_reviews.id ASC").
		Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}
