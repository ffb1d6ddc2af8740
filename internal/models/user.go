package models

import "time"

// Roles recognised by the grading and analytics endpoints.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// School is the tenant boundary for analytics.
type School struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a student, teacher or admin belonging to a school.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SchoolID   uint      `gorm:"index;not null" json:"school_id"`
	Role       string    `gorm:"size:32;not null;index" json:"role"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	Email      string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	GradeLevel string    `gorm:"size:32" json:"grade_level"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user administers their school.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
