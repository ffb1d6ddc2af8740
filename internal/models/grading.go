package models

import (
	"time"

	"gorm.io/datatypes"
)

// RubricRecord is the durable copy of a rubric; Definition holds the rubric map form.
type RubricRecord struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	Slug        *string           `gorm:"size:64;uniqueIndex" json:"slug"`
	Title       string            `gorm:"size:255;not null" json:"title"`
	Description string            `gorm:"type:text" json:"description"`
	TotalPoints int               `gorm:"not null" json:"total_points"`
	Definition  datatypes.JSONMap `gorm:"type:json" json:"definition"`
	CreatedBy   *uint             `json:"created_by"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// CriteriaScore is the stored form of one criteria outcome.
type CriteriaScore struct {
	Criteria    string   `json:"criteria"`
	Level       string   `json:"level"`
	Score       float64  `json:"score"`
	MaxPoints   int      `json:"max_points"`
	Feedback    string   `json:"feedback"`
	Suggestions []string `json:"suggestions"`
	Source      string   `json:"source"`
}

// GradeResult is the per-criteria breakdown of the latest auto-grade of a submission.
type GradeResult struct {
	ID           uint                                `gorm:"primaryKey" json:"id"`
	SubmissionID uint                                `gorm:"uniqueIndex;not null" json:"submission_id"`
	RubricID     uint                                `gorm:"index" json:"rubric_id"`
	RubricTitle  string                              `gorm:"size:255" json:"rubric_title"`
	TotalScore   float64                             `json:"total_score"`
	MaxScore     int                                 `json:"max_score"`
	Percentage   float64                             `json:"percentage"`
	Criteria     datatypes.JSONType[[]CriteriaScore] `json:"criteria_scores"`
	AutoGraded   bool                                `json:"auto_graded"`
	GradedAt     time.Time                           `json:"graded_at"`
	CreatedAt    time.Time                           `json:"created_at"`
	UpdatedAt    time.Time                           `json:"updated_at"`
}
