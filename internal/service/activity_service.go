package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/sacel-api/internal/dto"
	"github.com/noah-isme/sacel-api/internal/middleware"
	"github.com/noah-isme/sacel-api/internal/models"
	"github.com/noah-isme/sacel-api/internal/repository"
)

// Audit actions recorded by the grading workflows.
const (
	ActionSubmissionAutoGraded = "submission.auto_graded"
	ActionSubmissionFinalGrade = "submission.final_graded"
	ActionPeerReviewsCreated   = "peer_review.round_created"
	ActionPeerReviewSubmitted  = "peer_review.submitted"
	ActionRubricCreated        = "rubric.created"
)

// Activity listing page bounds.
const (
	DefaultActivityPageSize = 25
	MaxActivityPageSize     = 200
)

// ActivityActor represents the authenticated user performing an action.
type ActivityActor struct {
	ID       uint
	Role     string
	SchoolID uint
}

// IsAdmin reports whether the actor is a platform admin.
func (a ActivityActor) IsAdmin() bool {
	return strings.EqualFold(a.Role, models.RoleAdmin)
}

// ActivityEntry is one audit event before it is stored.
type ActivityEntry struct {
	Actor      ActivityActor
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// ActivityRecorder stores audit events.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error)
}

// ActivityService records and lists the grading audit trail.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
}

// NewActivityService constructs the activity log service.
func NewActivityService(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_service").Logger(),
	}
}

// Record stamps the entry with the request correlation id. Metadata values whose keys
// look like contact details or credentials are masked.
func (s *activityService) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	action := strings.ToLower(strings.TrimSpace(entry.Action))
	entityType := strings.ToLower(strings.TrimSpace(entry.EntityType))
	if action == "" {
		return dto.ActivityResponse{}, validationError("activity action is required")
	}
	if entityType == "" {
		return dto.ActivityResponse{}, validationError("activity entity type is required")
	}

	role := strings.ToLower(strings.TrimSpace(entry.Actor.Role))
	if role == "" {
		role = "system"
	}

	model := models.ActivityLog{
		SchoolID:      entry.Actor.SchoolID,
		ActorID:       entry.Actor.ID,
		ActorRole:     role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entry.EntityID,
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
		Metadata:      maskMetadata(entry.Metadata),
	}
	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("failed to persist activity log")
		return dto.ActivityResponse{}, persistenceError("record activity", err)
	}

	return dto.NewActivityResponse(model), nil
}

func (s *activityService) List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	switch {
	case pageSize <= 0:
		pageSize = DefaultActivityPageSize
	case pageSize > MaxActivityPageSize:
		pageSize = MaxActivityPageSize
	}

	filter := repository.ActivityLogFilter{
		Page:       page,
		PageSize:   pageSize,
		Action:     strings.ToLower(strings.TrimSpace(req.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(req.EntityType)),
		Since:      req.Since,
	}
	if req.ActorID > 0 {
		filter.ActorID = &req.ActorID
	}
	if req.SchoolID > 0 {
		filter.SchoolID = &req.SchoolID
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.ActivityListResponse{}, persistenceError("list activity", err)
	}

	items := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewActivityResponse(entry))
	}

	pages := 1
	if total > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}

	return dto.ActivityListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: pages,
		},
	}, nil
}

// recordActivity is best effort: a failed audit write never fails the action itself.
func recordActivity(ctx context.Context, recorder ActivityRecorder, logger zerolog.Logger, actor ActivityActor, action, entityType string, entityID uint, metadata map[string]interface{}) {
	if recorder == nil {
		return
	}
	id := entityID
	if _, err := recorder.Record(ctx, ActivityEntry{
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   &id,
		Metadata:   metadata,
	}); err != nil {
		logger.Warn().Err(err).Str("action", action).Msg("failed to record activity")
	}
}

func maskMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	masked := make(datatypes.JSONMap, len(metadata))
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") || strings.Contains(lower, "secret") {
			masked[key] = "***"
			continue
		}
		masked[key] = value
	}
	return masked
}
