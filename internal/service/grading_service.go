package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/sacel-api/internal/cache"
	"github.com/noah-isme/sacel-api/internal/dto"
	"github.com/noah-isme/sacel-api/internal/grading"
	"github.com/noah-isme/sacel-api/internal/models"
	"github.com/noah-isme/sacel-api/internal/observability"
	"github.com/noah-isme/sacel-api/internal/repository"
	"github.com/noah-isme/sacel-api/internal/rubric"
	"github.com/noah-isme/sacel-api/internal/stats"
)

// Sources recorded in the grade history.
const (
	gradeSourceAuto  = "auto"
	gradeSourceFinal = "final"
)

// CSVHeader is the first line of a grade export.
var CSVHeader = []string{"Student Name", "Email", "Grade", "Letter Grade", "Submission Date", "Graded Date"}

// ErrDraftSubmission indicates the student has not handed the work in.
var ErrDraftSubmission = kindError(ErrValidation, "draft submissions cannot be graded")

// GradingService runs auto-grading and the derived grade views.
type GradingService interface {
	AutoGrade(ctx context.Context, submissionID uint, req dto.AutoGradeRequest, actor ActivityActor) (dto.GradeResultResponse, error)
	RubricResults(ctx context.Context, submissionID uint, actor ActivityActor) (dto.GradeResultResponse, error)
	CalculateFinalGrade(ctx context.Context, submissionID uint, req dto.FinalGradeRequest, actor ActivityActor) (dto.FinalGradeResponse, error)
	GradeReport(ctx context.Context, submissionID uint, actor ActivityActor) (dto.GradeReportResponse, error)
	ExportGradesCSV(ctx context.Context, assignmentID uint, actor ActivityActor) (string, error)
	InvalidateGradingCache(ctx context.Context, submissionID, assignmentID uint) (int, error)
}

// GradingDependencies groups the collaborators of the grading service.
type GradingDependencies struct {
	Submissions repository.SubmissionRepository
	Assignments repository.AssignmentRepository
	PeerReviews repository.PeerReviewRepository
	Rubrics     RubricService
	Evaluator   grading.Evaluator
	Cache       *cache.Store
	Analytics   AnalyticsInvalidator
	Events      GradeEventPublisher
	Activity    ActivityRecorder
	Validator   *validator.Validate
	ResultTTL   time.Duration
	PeerWeight  float64
}

type gradingService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	peerReviews repository.PeerReviewRepository
	rubrics     RubricService
	evaluator   grading.Evaluator
	cache       *cache.Store
	analytics   AnalyticsInvalidator
	events      GradeEventPublisher
	activity    ActivityRecorder
	validator   *validator.Validate
	resultTTL   time.Duration
	peerWeight  float64
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the grading service. Without an evaluator the keyword
// evaluator grades locally.
func NewGradingService(deps GradingDependencies, logger zerolog.Logger) GradingService {
	evaluator := deps.Evaluator
	if evaluator == nil {
		evaluator = grading.KeywordEvaluator{}
	}
	ttl := deps.ResultTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	weight := deps.PeerWeight
	if weight <= 0 || weight >= 1 {
		weight = DefaultPeerWeight
	}
	return &gradingService{
		submissions: deps.Submissions,
		assignments: deps.Assignments,
		peerReviews: deps.PeerReviews,
		rubrics:     deps.Rubrics,
		evaluator:   evaluator,
		cache:       deps.Cache,
		analytics:   deps.Analytics,
		events:      deps.Events,
		activity:    deps.Activity,
		validator:   deps.Validator,
		resultTTL:   ttl,
		peerWeight:  weight,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

func (s *gradingService) AutoGrade(ctx context.Context, submissionID uint, req dto.AutoGradeRequest, actor ActivityActor) (dto.GradeResultResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/sacel-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.auto_grade")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if s.validator != nil {
		if err := s.validator.Struct(req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "validation_failed")
			return dto.GradeResultResponse{}, err
		}
	}

	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.GradeResultResponse{}, err
	}
	if !canManageAssignment(actor, submission.Assignment) {
		span.SetStatus(codes.Error, "permission_denied")
		return dto.GradeResultResponse{}, ErrPermissionDenied
	}
	if submission.Status == models.SubmissionStatusDraft {
		span.SetStatus(codes.Error, "draft_submission")
		return dto.GradeResultResponse{}, ErrDraftSubmission
	}

	r, err := s.resolveRubric(ctx, req.RubricID, submission.Assignment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rubric_lookup_failed")
		return dto.GradeResultResponse{}, err
	}
	span.SetAttributes(attribute.Int64("grading.rubric_id", int64(r.ID)))

	result, err := grading.Grade(ctx, s.evaluator, r, submission.Content, s.now())
	if err != nil {
		if errors.Is(err, grading.ErrEmptySubmission) {
			span.SetStatus(codes.Error, "empty_submission")
			return dto.GradeResultResponse{}, ErrEmptySubmissionContent
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "grading_failed")
		return dto.GradeResultResponse{}, err
	}

	stored := gradeResultModel(submission.ID, result)
	gradedBy := actor.ID
	version, err := s.submissions.CommitGrade(ctx, repository.GradeCommit{
		SubmissionID:    submission.ID,
		ExpectedVersion: submission.Version,
		Grade:           result.Percentage,
		Feedback:        result.Feedback,
		GradedAt:        result.GradedAt,
		GradedBy:        &gradedBy,
		Result:          &stored,
		History: models.SubmissionGradeHistory{
			Score:    result.Percentage,
			Feedback: result.Feedback,
			GradedBy: actor.ID,
			Source:   gradeSourceAuto,
			GradedAt: result.GradedAt,
		},
	})
	if err != nil {
		return dto.GradeResultResponse{}, s.commitFailed(span, submission.ID, err)
	}
	observability.GradingRuns().WithLabelValues("committed").Inc()

	response := dto.NewGradeResultResponse(stored, result.Feedback)
	response.Version = version
	if err := s.cache.SetJSON(ctx, cache.RubricResultsKey(submission.ID), response, s.resultTTL); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to cache rubric results")
	}

	s.afterGradeChange(ctx, submission, result.Percentage)
	recordActivity(ctx, s.activity, s.logger, actor, ActionSubmissionAutoGraded, "submission", submission.ID, map[string]interface{}{
		"assignment_id": submission.AssignmentID,
		"student_id":    submission.StudentID,
		"rubric_id":     r.ID,
		"percentage":    result.Percentage,
	})

	span.SetAttributes(
		attribute.Float64("grading.percentage", result.Percentage),
		attribute.Int64("grading.version", int64(version)),
	)
	return response, nil
}

func (s *gradingService) RubricResults(ctx context.Context, submissionID uint, actor ActivityActor) (dto.GradeResultResponse, error) {
	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return dto.GradeResultResponse{}, err
	}
	if !canViewSubmission(actor, submission) {
		return dto.GradeResultResponse{}, ErrPermissionDenied
	}

	var cached dto.GradeResultResponse
	if s.cache.GetJSON(ctx, cache.ScopeRubricResults, cache.RubricResultsKey(submissionID), &cached) {
		return cached, nil
	}

	stored, err := s.submissions.GetGradeResult(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeResultResponse{}, ErrGradeResultNotFound
		}
		return dto.GradeResultResponse{}, persistenceError("load grade result", err)
	}

	response := dto.NewGradeResultResponse(stored, submission.Feedback)
	response.Version = submission.Version
	if err := s.cache.SetJSON(ctx, cache.RubricResultsKey(submissionID), response, s.resultTTL); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to cache rubric results")
	}
	return response, nil
}

func (s *gradingService) CalculateFinalGrade(ctx context.Context, submissionID uint, req dto.FinalGradeRequest, actor ActivityActor) (dto.FinalGradeResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/sacel-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.final_grade")
	span.SetAttributes(attribute.Int64("grading.submission_id", int64(submissionID)))
	defer span.End()

	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		return dto.FinalGradeResponse{}, err
	}
	if !canManageAssignment(actor, submission.Assignment) {
		span.SetStatus(codes.Error, "permission_denied")
		return dto.FinalGradeResponse{}, ErrPermissionDenied
	}

	stored, err := s.submissions.GetGradeResult(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "grade_result_not_found")
			return dto.FinalGradeResponse{}, ErrGradeResultNotFound
		}
		span.RecordError(err)
		return dto.FinalGradeResponse{}, persistenceError("load grade result", err)
	}

	includePeers := req.IncludePeerReviews == nil || *req.IncludePeerReviews
	response := dto.FinalGradeResponse{
		SubmissionID: submissionID,
		BaseScore:    stored.Percentage,
		PeerScores:   []float64{},
		FinalScore:   stored.Percentage,
		Breakdown:    dto.GradeWeights{Rubric: 1},
	}

	if includePeers {
		reviews, err := s.peerReviews.ListReviews(ctx, submissionID)
		if err != nil {
			span.RecordError(err)
			return dto.FinalGradeResponse{}, persistenceError("load peer reviews", err)
		}
		for _, review := range reviews {
			response.PeerScores = append(response.PeerScores, review.OverallScore)
		}
		if len(response.PeerScores) > 0 {
			average := stats.Round(stats.Mean(response.PeerScores), 2)
			response.PeerAverage = &average
			response.FinalScore = BlendGrade(stored.Percentage, response.PeerScores, s.peerWeight)
			response.Breakdown = dto.GradeWeights{Rubric: 1 - s.peerWeight, PeerReview: s.peerWeight}
		}
	}
	response.FinalScore = stats.Round(response.FinalScore, 2)
	response.LetterGrade = stats.LetterGrade(response.FinalScore)

	gradedAt := s.now().UTC()
	gradedBy := actor.ID
	if _, err := s.submissions.CommitGrade(ctx, repository.GradeCommit{
		SubmissionID:    submission.ID,
		ExpectedVersion: submission.Version,
		Grade:           response.FinalScore,
		Feedback:        submission.Feedback,
		GradedAt:        gradedAt,
		GradedBy:        &gradedBy,
		History: models.SubmissionGradeHistory{
			Score:    response.FinalScore,
			Feedback: submission.Feedback,
			GradedBy: actor.ID,
			Source:   gradeSourceFinal,
			GradedAt: gradedAt,
		},
	}); err != nil {
		return dto.FinalGradeResponse{}, s.commitFailed(span, submission.ID, err)
	}
	observability.GradingRuns().WithLabelValues("final").Inc()
	if err := s.cache.Delete(ctx, cache.RubricResultsKey(submission.ID)); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to drop cached rubric results")
	}

	s.afterGradeChange(ctx, submission, response.FinalScore)
	recordActivity(ctx, s.activity, s.logger, actor, ActionSubmissionFinalGrade, "submission", submission.ID, map[string]interface{}{
		"base_score":  response.BaseScore,
		"final_score": response.FinalScore,
		"peer_count":  len(response.PeerScores),
	})

	return response, nil
}

func (s *gradingService) GradeReport(ctx context.Context, submissionID uint, actor ActivityActor) (dto.GradeReportResponse, error) {
	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return dto.GradeReportResponse{}, err
	}
	if !canViewSubmission(actor, submission) {
		return dto.GradeReportResponse{}, ErrPermissionDenied
	}

	report := dto.GradeReportResponse{
		SubmissionID:    submission.ID,
		StudentName:     submission.Student.Name,
		StudentEmail:    submission.Student.Email,
		AssignmentTitle: submission.Assignment.Title,
		Subject:         submission.Assignment.Subject,
		Status:          submission.Status,
		SubmissionDate:  submission.SubmittedAt,
		GradedDate:      submission.GradedAt,
		FinalGrade:      submission.Grade,
		Feedback:        submission.Feedback,
		GeneratedAt:     s.now().UTC(),
	}
	if submission.Grade != nil {
		report.LetterGrade = stats.LetterGrade(*submission.Grade)
	}

	results, err := s.RubricResults(ctx, submissionID, actor)
	switch {
	case err == nil:
		report.RubricResults = &results
	case !errors.Is(err, ErrGradeResultNotFound):
		return dto.GradeReportResponse{}, err
	}

	reviews, err := s.peerReviews.ListReviews(ctx, submissionID)
	if err != nil {
		return dto.GradeReportResponse{}, persistenceError("load peer reviews", err)
	}
	report.PeerReviewCount = len(reviews)
	if len(reviews) > 0 {
		scores := make([]float64, 0, len(reviews))
		for _, review := range reviews {
			scores = append(scores, review.OverallScore)
		}
		average := stats.Round(stats.Mean(scores), 2)
		report.PeerAverage = &average
	}

	return report, nil
}

// ExportGradesCSV renders one row per graded submission, ordered by student name.
// The output has no trailing newline.
func (s *gradingService) ExportGradesCSV(ctx context.Context, assignmentID uint, actor ActivityActor) (string, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAssignmentNotFound
		}
		return "", persistenceError("load assignment", err)
	}
	if !canManageAssignment(actor, assignment) {
		return "", ErrPermissionDenied
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		AssignmentID: &assignmentID,
		Statuses:     []string{models.SubmissionStatusGraded},
	})
	if err != nil {
		return "", persistenceError("list graded submissions", err)
	}
	sort.SliceStable(submissions, func(i, j int) bool {
		if submissions[i].Student.Name != submissions[j].Student.Name {
			return submissions[i].Student.Name < submissions[j].Student.Name
		}
		return submissions[i].ID < submissions[j].ID
	})

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(CSVHeader); err != nil {
		return "", err
	}
	for _, submission := range submissions {
		if submission.Grade == nil {
			continue
		}
		grade := *submission.Grade
		if err := writer.Write([]string{
			submission.Student.Name,
			submission.Student.Email,
			strconv.FormatFloat(grade, 'f', -1, 64),
			stats.LetterGrade(grade),
			formatTimestamp(submission.SubmittedAt),
			formatTimestamp(submission.GradedAt),
		}); err != nil {
			return "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}

	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// InvalidateGradingCache drops the cached rubric result of a submission and the pairings of an assignment.
func (s *gradingService) InvalidateGradingCache(ctx context.Context, submissionID, assignmentID uint) (int, error) {
	keys := make([]string, 0, 2)
	if submissionID != 0 {
		keys = append(keys, cache.RubricResultsKey(submissionID))
	}
	if assignmentID != 0 {
		keys = append(keys, cache.PeerReviewKey(assignmentID))
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *gradingService) loadSubmission(ctx context.Context, id uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, persistenceError("load submission", err)
	}
	return submission, nil
}

func (s *gradingService) resolveRubric(ctx context.Context, requested *uint, assignment models.Assignment) (rubric.Rubric, error) {
	switch {
	case requested != nil:
		return s.rubrics.Get(ctx, *requested)
	case assignment.RubricID != nil:
		return s.rubrics.Get(ctx, *assignment.RubricID)
	default:
		return s.rubrics.GetBySlug(ctx, rubric.SlugEssay)
	}
}

func (s *gradingService) commitFailed(span trace.Span, submissionID uint, err error) error {
	span.RecordError(err)
	if errors.Is(err, repository.ErrVersionConflict) {
		observability.GradingRuns().WithLabelValues("conflict").Inc()
		span.SetStatus(codes.Error, "version_conflict")
		s.logger.Warn().Uint("submission_id", submissionID).Msg("submission changed during grading")
		return ErrGradeConflict
	}
	observability.GradingRuns().WithLabelValues("failed").Inc()
	span.SetStatus(codes.Error, "grade_commit_failed")
	s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("failed to commit grade")
	return persistenceError("commit grade", err)
}

// afterGradeChange refreshes everything derived from a submission grade. Failures are logged only.
func (s *gradingService) afterGradeChange(ctx context.Context, submission models.Submission, percentage float64) {
	scope := AnalyticsScope{
		StudentID:    submission.StudentID,
		TeacherID:    submission.Assignment.TeacherID,
		SchoolID:     submission.Assignment.SchoolID,
		AssignmentID: submission.AssignmentID,
	}
	if s.analytics != nil {
		if _, err := s.analytics.Invalidate(ctx, scope); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to invalidate analytics")
		}
	}
	if s.events != nil {
		if err := s.events.Publish(ctx, GradeEvent{
			Type:         EventGradeUpdated,
			SubmissionID: submission.ID,
			AssignmentID: submission.AssignmentID,
			StudentID:    submission.StudentID,
			TeacherID:    submission.Assignment.TeacherID,
			SchoolID:     submission.Assignment.SchoolID,
			Percentage:   percentage,
			OccurredAt:   s.now().UTC(),
		}); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to publish grade event")
		}
	}
}

func gradeResultModel(submissionID uint, result grading.Result) models.GradeResult {
	scores := make([]models.CriteriaScore, 0, len(result.Criteria))
	for _, c := range result.Criteria {
		scores = append(scores, models.CriteriaScore{
			Criteria:    c.Criteria,
			Level:       c.Level.String(),
			Score:       c.Score,
			MaxPoints:   c.MaxPoints,
			Feedback:    c.Feedback,
			Suggestions: c.Suggestions,
			Source:      string(c.Source),
		})
	}
	return models.GradeResult{
		SubmissionID: submissionID,
		RubricID:     result.RubricID,
		RubricTitle:  result.RubricTitle,
		TotalScore:   result.TotalScore,
		MaxScore:     result.MaxScore,
		Percentage:   result.Percentage,
		Criteria:     datatypes.NewJSONType(scores),
		AutoGraded:   result.AutoGraded,
		GradedAt:     result.GradedAt,
	}
}

func formatTimestamp(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
