package models

import "time"

// Assignment is a piece of work set by a teacher.
type Assignment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	SchoolID    uint       `gorm:"index;not null" json:"school_id"`
	TeacherID   uint       `gorm:"index;not null" json:"teacher_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Subject     string     `gorm:"size:100;index" json:"subject"`
	GradeLevel  string     `gorm:"size:32;index" json:"grade_level"`
	MaxScore    float64    `gorm:"not null;default:100" json:"max_score"`
	RubricID    *uint      `json:"rubric_id"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Teacher     User       `gorm:"foreignKey:TeacherID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return a.DueDate != nil && reference.After(*a.DueDate)
}
