package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/noah-isme/sacel-api/internal/dto"
	"github.com/noah-isme/sacel-api/internal/models"
	"github.com/noah-isme/sacel-api/internal/observability"
	"github.com/noah-isme/sacel-api/internal/repository"
	"github.com/noah-isme/sacel-api/internal/similarity"
)

// PlagiarismService compares a text with the other submissions of the same assignment.
type PlagiarismService interface {
	Check(ctx context.Context, assignmentID uint, req dto.PlagiarismCheckRequest, actor ActivityActor) (similarity.Report, error)
}

type plagiarismService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	validator   *validator.Validate
	defaults    similarity.Options
	logger      zerolog.Logger
}

// NewPlagiarismService constructs the plagiarism service. defaults holds the configured thresholds.
func NewPlagiarismService(submissions repository.SubmissionRepository, assignments repository.AssignmentRepository, validate *validator.Validate, defaults similarity.Options, logger zerolog.Logger) PlagiarismService {
	return &plagiarismService{
		submissions: submissions,
		assignments: assignments,
		validator:   validate,
		defaults:    defaults,
		logger:      logger.With().Str("component", "plagiarism_service").Logger(),
	}
}

// Check never fails because of the comparison itself; only lookups and validation return errors.
// Students can only check their own latest submission in their own school. Their request
// content, exclusions and threshold overrides are ignored, and matches are redacted.
func (s *plagiarismService) Check(ctx context.Context, assignmentID uint, req dto.PlagiarismCheckRequest, actor ActivityActor) (similarity.Report, error) {
	tracer := otel.Tracer("github.com/noah-isme/sacel-api/internal/service/plagiarism")
	ctx, span := tracer.Start(ctx, "plagiarism.check")
	span.SetAttributes(attribute.Int64("plagiarism.assignment_id", int64(assignmentID)))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		return similarity.Report{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return similarity.Report{}, ErrAssignmentNotFound
		}
		return similarity.Report{}, persistenceError("load assignment", err)
	}

	isStudent := strings.EqualFold(actor.Role, models.RoleStudent)
	switch {
	case isStudent:
		if actor.SchoolID == 0 || actor.SchoolID != assignment.SchoolID {
			return similarity.Report{}, ErrPermissionDenied
		}
	case !canManageAssignment(actor, assignment):
		return similarity.Report{}, ErrPermissionDenied
	case strings.TrimSpace(req.Content) == "":
		return similarity.Report{}, validationError("content is required")
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{AssignmentID: &assignmentID})
	if err != nil {
		span.RecordError(err)
		return similarity.Report{}, persistenceError("list submissions", err)
	}

	candidate := req.Content
	opts := s.defaults
	excluded := make(map[uint]struct{}, len(req.ExcludeStudentIDs)+1)
	if isStudent {
		own, ok := latestOwnSubmission(submissions, actor.ID)
		if !ok {
			return similarity.Report{}, ErrNoOwnSubmission
		}
		if strings.TrimSpace(own.Content) == "" {
			return similarity.Report{}, ErrEmptySubmissionContent
		}
		candidate = own.Content
		excluded[actor.ID] = struct{}{}
	} else {
		for _, id := range req.ExcludeStudentIDs {
			excluded[id] = struct{}{}
		}
		if req.ReportThreshold != nil {
			opts.ReportThreshold = *req.ReportThreshold
		}
		if req.FlagThreshold != nil {
			opts.FlagThreshold = *req.FlagThreshold
		}
	}

	priors := make([]similarity.Prior, 0, len(submissions))
	for _, submission := range submissions {
		if _, skip := excluded[submission.StudentID]; skip {
			continue
		}
		if submission.Status != models.SubmissionStatusSubmitted && submission.Status != models.SubmissionStatusGraded {
			continue
		}
		priors = append(priors, similarity.Prior{
			SubmissionID: submission.ID,
			StudentID:    submission.StudentID,
			Content:      submission.Content,
		})
	}

	report := similarity.Check(candidate, priors, opts)
	if report.Flagged {
		observability.PlagiarismFlags().Inc()
		s.logger.Info().
			Uint("assignment_id", assignmentID).
			Float64("overall_similarity", report.OverallSimilarity).
			Msg("submission flagged for similarity")
	}

	if isStudent {
		redactMatches(report.Matches)
	}

	span.SetAttributes(
		attribute.Int("plagiarism.checked_against", report.CheckedAgainst),
		attribute.Float64("plagiarism.overall_similarity", report.OverallSimilarity),
		attribute.Bool("plagiarism.flagged", report.Flagged),
	)
	return report, nil
}

// latestOwnSubmission relies on the repository listing newest first.
func latestOwnSubmission(submissions []models.Submission, studentID uint) (models.Submission, bool) {
	for _, submission := range submissions {
		if submission.StudentID == studentID {
			return submission, true
		}
	}
	return models.Submission{}, false
}

// redactMatches hides who wrote the matched work and what was matched.
func redactMatches(matches []similarity.Match) {
	for i := range matches {
		matches[i].StudentID = 0
		matches[i].MatchingPhrases = nil
	}
}
