package service

import (
	"strings"

	"github.com/noah-isme/sacel-api/internal/models"
)

// canManageAssignment allows the owning teacher and admins.
func canManageAssignment(actor ActivityActor, assignment models.Assignment) bool {
	switch strings.ToLower(actor.Role) {
	case models.RoleAdmin:
		return true
	case models.RoleTeacher:
		return actor.ID == assignment.TeacherID
	default:
		return false
	}
}

// canViewSubmission additionally lets students read their own work.
func canViewSubmission(actor ActivityActor, submission models.Submission) bool {
	if strings.EqualFold(actor.Role, models.RoleStudent) {
		return actor.ID == submission.StudentID
	}
	return canManageAssignment(actor, submission.Assignment)
}

// canViewSchool lets admins read any school and everyone else only their own.
func canViewSchool(actor ActivityActor, schoolID uint) bool {
	return actor.IsAdmin() || actor.SchoolID == schoolID
}

// canViewStudent lets students read themselves and staff read students of their school.
func canViewStudent(actor ActivityActor, student models.User) bool {
	switch strings.ToLower(actor.Role) {
	case models.RoleStudent:
		return actor.ID == student.ID
	case models.RoleTeacher, models.RoleAdmin:
		return canViewSchool(actor, student.SchoolID)
	default:
		return false
	}
}
