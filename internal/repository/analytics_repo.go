package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/sacel-api/internal/models"
)

// AnalyticsFilter narrows the submissions an aggregate is computed over.
// Assignment-level fields are matched through a join on assignments.
type AnalyticsFilter struct {
	StudentID      *uint
	AssignmentID   *uint
	TeacherID      *uint
	SchoolID       *uint
	Subject        string
	GradeLevel     string
	SubmittedSince *time.Time
	Statuses       []string
}

// AnalyticsRepository provides the read queries behind analytics aggregates.
type AnalyticsRepository interface {
	ListSubmissions(ctx context.Context, filter AnalyticsFilter) ([]models.Submission, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository constructs the analytics repository.
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) ListSubmissions(ctx context.Context, filter AnalyticsFilter) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).Model(&models.Submission{}).
		Joins("JOIN assignments ON assignments.id = submissions.assignment_id").
		Preload("Assignment").
		Preload("Student")

	if filter.StudentID != nil {
		query = query.Where("submissions.student_id = ?", *filter.StudentID)
	}
	if filter.AssignmentID != nil {
		query = query.Where("submissions.assignment_id = ?", *filter.AssignmentID)
	}
	if filter.TeacherID != nil {
		query = query.Where("assignments.teacher_id = ?", *filter.TeacherID)
	}
	if filter.SchoolID != nil {
		query = query.Where("assignments.school_id = ?", *filter.SchoolID)
	}
	if subject := strings.TrimSpace(filter.Subject); subject != "" {
		query = query.Where("LOWER(assignments.subject) = ?", strings.ToLower(subject))
	}
	if grade := strings.TrimSpace(filter.GradeLevel); grade != "" {
		query = query.Where("assignments.grade_level = ?", grade)
	}
	if filter.SubmittedSince != nil {
		query = query.Where("submissions.submitted_at >= ?", *filter.SubmittedSince)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("submissions.status IN ?", filter.Statuses)
	}

	var submissions []models.Submission
	if err := query.
		Order("submissions.submitted_at ASC").
		Order("submissions.id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}
