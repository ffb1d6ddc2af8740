package service

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/sacel-api/internal/cache"
	"github.com/noah-isme/sacel-api/internal/dto"
	"github.com/noah-isme/sacel-api/internal/models"
	"github.com/noah-isme/sacel-api/internal/repository"
	"github.com/noah-isme/sacel-api/internal/rubric"
	"github.com/noah-isme/sacel-api/internal/stats"
)

const (
	// DefaultReviewsPerStudent is used when a round does not say how many reviews each author gives.
	DefaultReviewsPerStudent = 2
	// DefaultPeerWeight is the share of the final grade contributed by peer reviews.
	DefaultPeerWeight = 0.2
)

// ErrPeerReviewRoundNotFound indicates peer review was never set up for the assignment.
var ErrPeerReviewRoundNotFound = kindError(ErrNotFound, "peer review round not found")

// PeerReviewService pairs reviewers and collects their reviews.
type PeerReviewService interface {
	CreatePeerReviews(ctx context.Context, assignmentID uint, req dto.CreatePeerReviewsRequest, actor ActivityActor) (dto.PeerReviewRoundResponse, error)
	GetPairings(ctx context.Context, assignmentID uint, actor ActivityActor) (dto.PeerReviewRoundResponse, error)
	SubmitPeerReview(ctx context.Context, submissionID uint, req dto.SubmitPeerReviewRequest, actor ActivityActor) (dto.PeerReviewSummaryResponse, error)
}

// PeerReviewDependencies groups the collaborators of the peer review service.
type PeerReviewDependencies struct {
	Reviews     repository.PeerReviewRepository
	Submissions repository.SubmissionRepository
	Assignments repository.AssignmentRepository
	Rubrics     RubricService
	Cache       *cache.Store
	Analytics   AnalyticsInvalidator
	Activity    ActivityRecorder
	Validator   *validator.Validate
	PairingTTL  time.Duration
	Rand        *rand.Rand
}

type peerReviewService struct {
	reviews     repository.PeerReviewRepository
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	rubrics     RubricService
	cache       *cache.Store
	analytics   AnalyticsInvalidator
	activity    ActivityRecorder
	validator   *validator.Validate
	ttl         time.Duration
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewPeerReviewService constructs the peer review service.
func NewPeerReviewService(deps PeerReviewDependencies, logger zerolog.Logger) PeerReviewService {
	ttl := deps.PairingTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &peerReviewService{
		reviews:     deps.Reviews,
		submissions: deps.Submissions,
		assignments: deps.Assignments,
		rubrics:     deps.Rubrics,
		cache:       deps.Cache,
		analytics:   deps.Analytics,
		activity:    deps.Activity,
		validator:   deps.Validator,
		ttl:         ttl,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "peer_review_service").Logger(),
		now:         time.Now,
		rng:         rng,
	}
}

func (s *peerReviewService) CreatePeerReviews(ctx context.Context, assignmentID uint, req dto.CreatePeerReviewsRequest, actor ActivityActor) (dto.PeerReviewRoundResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/sacel-api/internal/service/peer_review")
	ctx, span := tracer.Start(ctx, "peer_review.create")
	span.SetAttributes(attribute.Int64("peer_review.assignment_id", int64(assignmentID)))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.PeerReviewRoundResponse{}, err
	}

	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		span.RecordError(err)
		return dto.PeerReviewRoundResponse{}, err
	}
	if !canManageAssignment(actor, assignment) {
		span.SetStatus(codes.Error, "permission_denied")
		return dto.PeerReviewRoundResponse{}, ErrPermissionDenied
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		AssignmentID: &assignmentID,
		Statuses:     []string{models.SubmissionStatusSubmitted, models.SubmissionStatusGraded},
	})
	if err != nil {
		span.RecordError(err)
		return dto.PeerReviewRoundResponse{}, persistenceError("list submissions", err)
	}

	authors := LatestByStudent(submissions)
	if len(authors) < 2 {
		span.SetStatus(codes.Error, "not_enough_submissions")
		return dto.PeerReviewRoundResponse{}, ErrNotEnoughSubmissions
	}

	var deadline *time.Time
	if req.Deadline != nil {
		if !req.Deadline.After(s.now()) {
			return dto.PeerReviewRoundResponse{}, validationError("peer review deadline must be in the future")
		}
		d := req.Deadline.UTC()
		deadline = &d
	}

	perStudent := req.ReviewsPerStudent
	if perStudent <= 0 {
		perStudent = DefaultReviewsPerStudent
	}
	criteria, err := s.reviewCriteria(ctx, req.Criteria, assignment)
	if err != nil {
		return dto.PeerReviewRoundResponse{}, err
	}

	assignedAt := s.now().UTC()
	s.rngMu.Lock()
	pairings := PairReviewers(authors, perStudent, s.rng)
	s.rngMu.Unlock()
	for i := range pairings {
		pairings[i].AssignmentID = assignmentID
		pairings[i].AssignedAt = assignedAt
	}

	round := models.PeerReviewRound{
		AssignmentID:      assignmentID,
		Criteria:          datatypes.NewJSONType(criteria),
		ReviewsPerStudent: perStudent,
		Deadline:          deadline,
	}
	if err := s.reviews.ReplacePairings(ctx, &round, pairings); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pairings_persist_failed")
		s.logger.Error().Err(err).Uint("assignment_id", assignmentID).Msg("failed to store peer review pairings")
		return dto.PeerReviewRoundResponse{}, persistenceError("store pairings", err)
	}
	round.CreatedAt = assignedAt

	response := roundResponse(round, pairings)
	if err := s.cache.SetJSON(ctx, cache.PeerReviewKey(assignmentID), response, s.ttl); err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to cache peer review pairings")
	}

	recordActivity(ctx, s.activity, s.logger, actor, ActionPeerReviewsCreated, "assignment", assignmentID, map[string]interface{}{
		"pairings":            len(pairings),
		"reviews_per_student": perStudent,
	})

	span.SetAttributes(attribute.Int("peer_review.pairings", len(pairings)))
	return response, nil
}

func (s *peerReviewService) GetPairings(ctx context.Context, assignmentID uint, actor ActivityActor) (dto.PeerReviewRoundResponse, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return dto.PeerReviewRoundResponse{}, err
	}
	isStudent := strings.EqualFold(actor.Role, models.RoleStudent)
	if !isStudent && !canManageAssignment(actor, assignment) {
		return dto.PeerReviewRoundResponse{}, ErrPermissionDenied
	}

	var response dto.PeerReviewRoundResponse
	if !s.cache.GetJSON(ctx, cache.ScopePeerReview, cache.PeerReviewKey(assignmentID), &response) {
		round, err := s.reviews.GetRound(ctx, assignmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.PeerReviewRoundResponse{}, ErrPeerReviewRoundNotFound
			}
			return dto.PeerReviewRoundResponse{}, persistenceError("load peer review round", err)
		}
		pairings, err := s.reviews.ListPairings(ctx, assignmentID)
		if err != nil {
			return dto.PeerReviewRoundResponse{}, persistenceError("list pairings", err)
		}
		response = roundResponse(round, pairings)
		if err := s.cache.SetJSON(ctx, cache.PeerReviewKey(assignmentID), response, s.ttl); err != nil {
			s.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to cache peer review pairings")
		}
	}

	if isStudent {
		own := make([]dto.PairingResponse, 0)
		for _, pairing := range response.Pairings {
			if pairing.ReviewerID == actor.ID {
				own = append(own, pairing)
			}
		}
		response.Pairings = own
	}
	return response, nil
}

func (s *peerReviewService) SubmitPeerReview(ctx context.Context, submissionID uint, req dto.SubmitPeerReviewRequest, actor ActivityActor) (dto.PeerReviewSummaryResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/sacel-api/internal/service/peer_review")
	ctx, span := tracer.Start(ctx, "peer_review.submit")
	span.SetAttributes(
		attribute.Int64("peer_review.submission_id", int64(submissionID)),
		attribute.Int64("peer_review.reviewer_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.PeerReviewSummaryResponse{}, err
	}

	pairing, err := s.reviews.FindPairing(ctx, submissionID, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "reviewer_not_assigned")
			return dto.PeerReviewSummaryResponse{}, ErrNotAssignedReviewer
		}
		span.RecordError(err)
		return dto.PeerReviewSummaryResponse{}, persistenceError("load pairing", err)
	}

	round, err := s.reviews.GetRound(ctx, pairing.AssignmentID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return dto.PeerReviewSummaryResponse{}, persistenceError("load peer review round", err)
	}
	if round.Deadline != nil && s.now().After(*round.Deadline) {
		span.SetStatus(codes.Error, "deadline_passed")
		return dto.PeerReviewSummaryResponse{}, ErrPeerReviewClosed
	}

	ratings := make(map[string]float64, len(req.Ratings))
	for name, value := range req.Ratings {
		ratings[strings.TrimSpace(name)] = value
	}
	review := models.PeerReview{
		SubmissionID: submissionID,
		ReviewerID:   actor.ID,
		Ratings:      datatypes.NewJSONType(ratings),
		Comments:     strings.TrimSpace(s.sanitizer.Sanitize(req.Comments)),
		OverallScore: *req.OverallScore,
	}
	if err := s.reviews.UpsertReview(ctx, &review, s.now().UTC()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "review_persist_failed")
		s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("failed to store peer review")
		return dto.PeerReviewSummaryResponse{}, persistenceError("store peer review", err)
	}

	reviews, err := s.reviews.ListReviews(ctx, submissionID)
	if err != nil {
		return dto.PeerReviewSummaryResponse{}, persistenceError("list peer reviews", err)
	}

	if err := s.cache.Delete(ctx, cache.PeerReviewKey(pairing.AssignmentID)); err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", pairing.AssignmentID).Msg("failed to drop cached pairings")
	}
	if s.analytics != nil {
		if _, err := s.analytics.Invalidate(ctx, AnalyticsScope{AssignmentID: pairing.AssignmentID}); err != nil {
			s.logger.Warn().Err(err).Uint("assignment_id", pairing.AssignmentID).Msg("failed to invalidate analytics")
		}
	}

	recordActivity(ctx, s.activity, s.logger, actor, ActionPeerReviewSubmitted, "submission", submissionID, map[string]interface{}{
		"overall_score": review.OverallScore,
	})

	overall := make([]float64, 0, len(reviews))
	for _, r := range reviews {
		overall = append(overall, r.OverallScore)
	}
	return dto.PeerReviewSummaryResponse{
		SubmissionID:   submissionID,
		ReviewerID:     actor.ID,
		ReviewCount:    len(reviews),
		AverageRatings: AverageScores(reviews),
		AverageOverall: stats.Round(stats.Mean(overall), 2),
	}, nil
}

func (s *peerReviewService) loadAssignment(ctx context.Context, id uint) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, persistenceError("load assignment", err)
	}
	return assignment, nil
}

// reviewCriteria falls back to the criteria names of the assignment's rubric.
func (s *peerReviewService) reviewCriteria(ctx context.Context, requested []string, assignment models.Assignment) ([]string, error) {
	criteria := make([]string, 0, len(requested))
	for _, name := range requested {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			criteria = append(criteria, trimmed)
		}
	}
	if len(criteria) > 0 || s.rubrics == nil {
		return criteria, nil
	}

	var (
		r   rubric.Rubric
		err error
	)
	if assignment.RubricID != nil {
		r, err = s.rubrics.Get(ctx, *assignment.RubricID)
	} else {
		r, err = s.rubrics.GetBySlug(ctx, rubric.SlugEssay)
	}
	if err != nil {
		return nil, err
	}
	for _, c := range r.Criteria {
		criteria = append(criteria, c.Name)
	}
	return criteria, nil
}

// LatestByStudent keeps the most recent submission of every author, ordered by student id.
func LatestByStudent(submissions []models.Submission) []models.Submission {
	latest := make(map[uint]models.Submission, len(submissions))
	for _, submission := range submissions {
		current, ok := latest[submission.StudentID]
		if !ok || submittedLater(submission, current) {
			latest[submission.StudentID] = submission
		}
	}

	authors := make([]models.Submission, 0, len(latest))
	for _, submission := range latest {
		authors = append(authors, submission)
	}
	sort.Slice(authors, func(i, j int) bool { return authors[i].StudentID < authors[j].StudentID })
	return authors
}

func submittedLater(a, b models.Submission) bool {
	at, bt := a.CreatedAt, b.CreatedAt
	if a.SubmittedAt != nil {
		at = *a.SubmittedAt
	}
	if b.SubmittedAt != nil {
		bt = *b.SubmittedAt
	}
	if at.Equal(bt) {
		return a.ID > b.ID
	}
	return at.After(bt)
}

// PairReviewers assigns every author min(perStudent, authors-1) distinct other authors,
// sampled without replacement. Authors must be unique per student.
func PairReviewers(authors []models.Submission, perStudent int, rng *rand.Rand) []models.PeerReviewPairing {
	pairings := make([]models.PeerReviewPairing, 0, len(authors)*perStudent)
	for i, reviewer := range authors {
		others := make([]models.Submission, 0, len(authors)-1)
		for j, candidate := range authors {
			if j != i {
				others = append(others, candidate)
			}
		}

		count := perStudent
		if count > len(others) {
			count = len(others)
		}
		for _, idx := range rng.Perm(len(others))[:count] {
			reviewee := others[idx]
			pairings = append(pairings, models.PeerReviewPairing{
				SubmissionID: reviewee.ID,
				ReviewerID:   reviewer.StudentID,
				RevieweeID:   reviewee.StudentID,
				Status:       models.PairingStatusPending,
			})
		}
	}
	return pairings
}

// AverageScores returns the mean rating per criterion across reviews, rounded to two decimals.
func AverageScores(reviews []models.PeerReview) map[string]float64 {
	grouped := make(map[string][]float64)
	for _, review := range reviews {
		for name, value := range review.Ratings.Data() {
			grouped[name] = append(grouped[name], value)
		}
	}

	averages := make(map[string]float64, len(grouped))
	for name, values := range grouped {
		averages[name] = stats.Round(stats.Mean(values), 2)
	}
	return averages
}

// BlendGrade mixes the rubric percentage with the mean peer score. Without peer scores
// the rubric score stands alone.
func BlendGrade(rubricScore float64, peerScores []float64, peerWeight float64) float64 {
	if len(peerScores) == 0 {
		return rubricScore
	}
	return rubricScore*(1-peerWeight) + stats.Mean(peerScores)*peerWeight
}

func roundResponse(round models.PeerReviewRound, pairings []models.PeerReviewPairing) dto.PeerReviewRoundResponse {
	items := make([]dto.PairingResponse, 0, len(pairings))
	for _, pairing := range pairings {
		items = append(items, dto.NewPairingResponse(pairing))
	}
	criteria := round.Criteria.Data()
	if criteria == nil {
		criteria = []string{}
	}
	return dto.PeerReviewRoundResponse{
		AssignmentID:      round.AssignmentID,
		Criteria:          criteria,
		ReviewsPerStudent: round.ReviewsPerStudent,
		Deadline:          round.Deadline,
		PairingsCount:     len(items),
		Pairings:          items,
		CreatedAt:         round.CreatedAt,
	}
}
