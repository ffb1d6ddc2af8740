package service

import (
	"errors"
	"fmt"

	"github.com/noah-isme/sacel-api/pkg/ai"
)

// Error kinds. Handlers map them onto HTTP statuses; specific errors wrap one of them.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrValidation       = errors.New("validation failed")
	ErrExternalService  = ai.ErrExternalService
	ErrPersistence      = errors.New("persistence failure")
	ErrConflict         = errors.New("conflict")
)

var (
	// ErrRubricNotFound indicates the rubric does not exist.
	ErrRubricNotFound = kindError(ErrNotFound, "rubric not found")
	// ErrSubmissionNotFound indicates the submission does not exist.
	ErrSubmissionNotFound = kindError(ErrNotFound, "submission not found")
	// ErrAssignmentNotFound indicates the assignment does not exist.
	ErrAssignmentNotFound = kindError(ErrNotFound, "assignment not found")
	// ErrUserNotFound indicates the student, teacher or admin does not exist.
	ErrUserNotFound = kindError(ErrNotFound, "user not found")
	// ErrGradeResultNotFound indicates the submission was never auto-graded.
	ErrGradeResultNotFound = kindError(ErrNotFound, "grade result not found")
	// ErrGradeConflict indicates the submission changed while it was being graded.
	ErrGradeConflict = kindError(ErrConflict, "submission was modified during grading")
	// ErrEmptySubmissionContent indicates there is nothing to grade.
	ErrEmptySubmissionContent = kindError(ErrValidation, "submission has no content to grade")
	// ErrNotEnoughSubmissions indicates peer review needs at least two authors.
	ErrNotEnoughSubmissions = kindError(ErrValidation, "at least two submissions are required for peer review")
	// ErrPeerReviewClosed indicates the round's deadline has passed.
	ErrPeerReviewClosed = kindError(ErrValidation, "peer review deadline has passed")
	// ErrNotAssignedReviewer indicates the reviewer was not paired with the submission.
	ErrNotAssignedReviewer = kindError(ErrPermissionDenied, "reviewer is not assigned to this submission")
	// ErrNoOwnSubmission indicates a student has nothing of their own to check.
	ErrNoOwnSubmission = kindError(ErrPermissionDenied, "no submission of yours exists for this assignment")
	// ErrCrossSchoolAccess indicates a non-admin asked for another school's analytics.
	ErrCrossSchoolAccess = kindError(ErrPermissionDenied, "analytics of another school are not accessible")
)

type serviceError struct {
	kind error
	msg  string
}

func (e *serviceError) Error() string { return e.msg }

func (e *serviceError) Unwrap() error { return e.kind }

func kindError(kind error, msg string) error {
	return &serviceError{kind: kind, msg: msg}
}

func validationError(format string, args ...interface{}) error {
	return &serviceError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrPersistence, err))
}
