package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
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
)

// ErrRubricSlugTaken indicates another rubric already uses the slug.
var ErrRubricSlugTaken = kindError(ErrConflict, "rubric slug already exists")

// RubricService stores rubrics durably and serves them through the cache.
type RubricService interface {
	Get(ctx context.Context, id uint) (rubric.Rubric, error)
	GetBySlug(ctx context.Context, slug string) (rubric.Rubric, error)
	List(ctx context.Context) ([]rubric.Rubric, error)
	Create(ctx context.Context, req dto.RubricCreateRequest, actor ActivityActor) (rubric.Rubric, error)
	EnsureDefaults(ctx context.Context) (map[string]rubric.Rubric, error)
}

type rubricService struct {
	repo      repository.RubricRepository
	cache     *cache.Store
	ttl       time.Duration
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewRubricService constructs the rubric service.
func NewRubricService(repo repository.RubricRepository, store *cache.Store, ttl time.Duration, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) RubricService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &rubricService{
		repo:      repo,
		cache:     store,
		ttl:       ttl,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "rubric_service").Logger(),
	}
}

func (s *rubricService) Get(ctx context.Context, id uint) (rubric.Rubric, error) {
	tracer := otel.Tracer("github.com/noah-isme/sacel-api/internal/service/rubric")
	ctx, span := tracer.Start(ctx, "rubric.get")
	span.SetAttributes(attribute.Int64("rubric.id", int64(id)))
	defer span.End()

	var cached rubric.Rubric
	if s.cache.GetJSON(ctx, cache.ScopeRubric, cache.RubricKey(id), &cached) {
		span.SetAttributes(attribute.Bool("rubric.cache_hit", true))
		return cached, nil
	}

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "rubric_not_found")
			return rubric.Rubric{}, ErrRubricNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "rubric_lookup_failed")
		return rubric.Rubric{}, persistenceError("load rubric", err)
	}

	return s.decodeAndCache(ctx, record)
}

func (s *rubricService) GetBySlug(ctx context.Context, slug string) (rubric.Rubric, error) {
	record, err := s.repo.GetBySlug(ctx, normalizeSlug(slug))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rubric.Rubric{}, ErrRubricNotFound
		}
		return rubric.Rubric{}, persistenceError("load rubric", err)
	}
	return s.decodeAndCache(ctx, record)
}

func (s *rubricService) List(ctx context.Context) ([]rubric.Rubric, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, persistenceError("list rubrics", err)
	}

	rubrics := make([]rubric.Rubric, 0, len(records))
	for _, record := range records {
		r, err := decodeRecord(record)
		if err != nil {
			s.logger.Error().Err(err).Uint("rubric_id", record.ID).Msg("skipping undecodable rubric")
			continue
		}
		rubrics = append(rubrics, r)
	}
	return rubrics, nil
}

func (s *rubricService) Create(ctx context.Context, req dto.RubricCreateRequest, actor ActivityActor) (rubric.Rubric, error) {
	tracer := otel.Tracer("github.com/noah-isme/sacel-api/internal/service/rubric")
	ctx, span := tracer.Start(ctx, "rubric.create")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return rubric.Rubric{}, err
	}

	r, err := rubricFromRequest(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid_rubric")
		return rubric.Rubric{}, err
	}

	if r.Slug != "" {
		if _, err := s.repo.GetBySlug(ctx, r.Slug); err == nil {
			return rubric.Rubric{}, ErrRubricSlugTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return rubric.Rubric{}, persistenceError("check rubric slug", err)
		}
	}

	var createdBy *uint
	if actor.ID != 0 {
		id := actor.ID
		createdBy = &id
	}
	stored, err := s.persist(ctx, r, createdBy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rubric_persist_failed")
		return rubric.Rubric{}, err
	}

	recordActivity(ctx, s.activity, s.logger, actor, ActionRubricCreated, "rubric", stored.ID, map[string]interface{}{
		"title":        stored.Title,
		"total_points": stored.TotalPoints(),
	})

	span.SetAttributes(attribute.Int64("rubric.id", int64(stored.ID)))
	return stored, nil
}

// EnsureDefaults stores the built-in rubrics that are missing. Running it twice is a no-op.
func (s *rubricService) EnsureDefaults(ctx context.Context) (map[string]rubric.Rubric, error) {
	defaults, err := rubric.Defaults()
	if err != nil {
		return nil, err
	}

	slugs := make([]string, 0, len(defaults))
	for slug := range defaults {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	result := make(map[string]rubric.Rubric, len(defaults))
	for _, slug := range slugs {
		existing, err := s.GetBySlug(ctx, slug)
		if err == nil {
			result[slug] = existing
			continue
		}
		if !errors.Is(err, ErrRubricNotFound) {
			return nil, err
		}

		stored, err := s.persist(ctx, defaults[slug], nil)
		if err != nil {
			return nil, err
		}
		s.logger.Info().Str("slug", slug).Uint("rubric_id", stored.ID).Msg("seeded default rubric")
		result[slug] = stored
	}
	return result, nil
}

func (s *rubricService) persist(ctx context.Context, r rubric.Rubric, createdBy *uint) (rubric.Rubric, error) {
	record := models.RubricRecord{
		Title:       r.Title,
		Description: r.Description,
		TotalPoints: r.TotalPoints(),
		Definition:  datatypes.JSONMap(r.ToMap()),
		CreatedBy:   createdBy,
	}
	if r.Slug != "" {
		slug := r.Slug
		record.Slug = &slug
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		s.logger.Error().Err(err).Str("title", r.Title).Msg("failed to store rubric")
		return rubric.Rubric{}, persistenceError("store rubric", err)
	}

	r.ID = record.ID
	if err := s.cache.SetJSON(ctx, cache.RubricKey(r.ID), r, s.ttl); err != nil {
		s.logger.Warn().Err(err).Uint("rubric_id", r.ID).Msg("failed to cache rubric")
	}
	return r, nil
}

func (s *rubricService) decodeAndCache(ctx context.Context, record models.RubricRecord) (rubric.Rubric, error) {
	r, err := decodeRecord(record)
	if err != nil {
		s.logger.Error().Err(err).Uint("rubric_id", record.ID).Msg("stored rubric is invalid")
		return rubric.Rubric{}, persistenceError("decode rubric", err)
	}
	if err := s.cache.SetJSON(ctx, cache.RubricKey(r.ID), r, s.ttl); err != nil {
		s.logger.Warn().Err(err).Uint("rubric_id", r.ID).Msg("failed to cache rubric")
	}
	return r, nil
}

func decodeRecord(record models.RubricRecord) (rubric.Rubric, error) {
	r, err := rubric.FromMap(map[string]interface{}(record.Definition))
	if err != nil {
		return rubric.Rubric{}, err
	}
	r.ID = record.ID
	if record.Slug != nil {
		r.Slug = *record.Slug
	}
	return r, nil
}

func rubricFromRequest(req dto.RubricCreateRequest) (rubric.Rubric, error) {
	criteria := make([]rubric.Criteria, 0, len(req.Criteria))
	for _, rc := range req.Criteria {
		bands := make([]rubric.Band, 0, len(rc.Bands))
		for _, rb := range rc.Bands {
			level, err := rubric.ParseLevel(rb.Level)
			if err != nil {
				return rubric.Rubric{}, validationError("criteria %q: %v", rc.Name, err)
			}
			bands = append(bands, rubric.Band{
				Level:       level,
				Description: strings.TrimSpace(rb.Description),
				Min:         rb.Min,
				Max:         rb.Max,
				Keywords:    rb.Keywords,
			})
		}
		sort.SliceStable(bands, func(i, j int) bool { return bands[i].Level < bands[j].Level })

		c, err := rubric.NewCriteria(rc.Name, rc.Description, rc.Points, bands...)
		if err != nil {
			return rubric.Rubric{}, validationError("%v", err)
		}
		criteria = append(criteria, c)
	}

	r, err := rubric.NewRubric(req.Title, req.Description, criteria...)
	if err != nil {
		return rubric.Rubric{}, validationError("%v", err)
	}
	if req.TotalPoints != nil {
		if err := r.CheckDeclaredTotal(*req.TotalPoints); err != nil {
			return rubric.Rubric{}, validationError("%v", err)
		}
	}
	r.Slug = normalizeSlug(req.Slug)
	return r, nil
}

func normalizeSlug(slug string) string {
	slug = strings.ToLower(strings.TrimSpace(slug))
	return strings.ReplaceAll(slug, " ", "-")
}
