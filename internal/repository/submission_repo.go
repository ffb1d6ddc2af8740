package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/sacel-api/internal/models"
)

// ErrVersionConflict is returned when a submission changed between read and grading commit.
var ErrVersionConflict = errors.New("submission version conflict")

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	AssignmentID *uint
	StudentID    *uint
	Statuses     []string
}

// GradeCommit is everything written when a grade is recorded on a submission.
type GradeCommit struct {
	SubmissionID    uint
	ExpectedVersion uint
	Grade           float64
	Feedback        string
	GradedAt        time.Time
	GradedBy        *uint
	Result          *models.GradeResult
	History         models.SubmissionGradeHistory
}

// SubmissionRepository defines data operations for submissions and their grades.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	CommitGrade(ctx context.Context, commit GradeCommit) (uint, error)
	GetGradeResult(ctx context.Context, submissionID uint) (models.GradeResult, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Assignment").
		Preload("Student")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx)

	if filter.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filter.AssignmentID)
	}

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var submissions []models.Submission
	if err := query.Order("created_at DESC").Order("id DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

// CommitGrade writes the grade, the optional per-criteria result and the history row in
// one transaction. The update only applies when the stored version still matches.
func (r *submissionRepository) CommitGrade(ctx context.Context, commit GradeCommit) (uint, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		update := tx.Model(&models.Submission{}).
			Where("id = ? AND version = ?", commit.SubmissionID, commit.ExpectedVersion).
			Updates(map[string]interface{}{
				"grade":      commit.Grade,
				"feedback":   commit.Feedback,
				"status":     models.SubmissionStatusGraded,
				"graded_at":  commit.GradedAt,
				"graded_by":  commit.GradedBy,
				"version":    gorm.Expr("version + 1"),
				"updated_at": commit.GradedAt,
			})
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return ErrVersionConflict
		}

		if commit.Result != nil {
			commit.Result.SubmissionID = commit.SubmissionID
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "submission_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"rubric_id", "rubric_title", "total_score", "max_score", "percentage",
					"criteria", "auto_graded", "graded_at", "updated_at",
				}),
			}).Create(commit.Result).Error; err != nil {
				return err
			}
		}

		history := commit.History
		history.SubmissionID = commit.SubmissionID
		return tx.Create(&history).Error
	})
	if err != nil {
		return 0, err
	}
	return commit.ExpectedVersion + 1, nil
}

func (r *submissionRepository) GetGradeResult(ctx context.Context, submissionID uint) (models.GradeResult, error) {
	var result models.GradeResult
	if err := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).First(&result).Error; err != nil {
		return models.GradeResult{}, err
	}
	return result, nil
}
