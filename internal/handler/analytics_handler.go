package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sacel-api/internal/dto"
	"github.com/noah-isme/sacel-api/internal/middleware"
	"github.com/noah-isme/sacel-api/internal/models"
	"github.com/noah-isme/sacel-api/internal/service"
	"github.com/noah-isme/sacel-api/internal/utils"
)

// AnalyticsHandler exposes the cached analytics aggregates.
type AnalyticsHandler struct {
	service   service.AnalyticsService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAnalyticsHandler constructs the handler.
func NewAnalyticsHandler(service service.AnalyticsService, validate *validator.Validate, logger zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "analytics_handler").Logger(),
	}
}

// Register attaches analytics routes to the router group.
func (h *AnalyticsHandler) Register(router fiber.Router) {
	router.Get("/students/:id", h.student)
	router.Get("/students/:id/recommendations", h.recommendations)
	router.Get("/teachers/:id", middleware.RequireRole(models.RoleTeacher, models.RoleAdmin), h.class)
	router.Get("/schools/:id", middleware.RequireRole(models.RoleTeacher, models.RoleAdmin), h.school)
	router.Get("/assignments/:id", middleware.RequireRole(models.RoleTeacher, models.RoleAdmin), h.assignment)
	router.Delete("/cache", middleware.RequireRole(models.RoleAdmin), h.invalidate)
}

func (h *AnalyticsHandler) student(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	window, err := parseQueryInt(c, "window_days")
	if err != nil || window < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid window_days")
	}

	overview, err := h.service.StudentOverview(withRequestContext(c), id, window, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load student analytics")
	}
	return utils.SendSuccess(c, "student analytics", overview)
}

func (h *AnalyticsHandler) recommendations(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	recommendations, err := h.service.LearningRecommendations(withRequestContext(c), id, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load learning recommendations")
	}
	return utils.SendSuccess(c, "learning recommendations", recommendations)
}

func (h *AnalyticsHandler) class(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	class, err := h.service.ClassAnalytics(withRequestContext(c), id, c.Query("subject"), c.Query("grade_level"), activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load class analytics")
	}
	return utils.SendSuccess(c, "class analytics", class)
}

func (h *AnalyticsHandler) school(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	school, err := h.service.SchoolAnalytics(withRequestContext(c), id, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load school analytics")
	}
	return utils.SendSuccess(c, "school analytics", school)
}

func (h *AnalyticsHandler) assignment(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	result, err := h.service.AssignmentAnalytics(withRequestContext(c), id, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load assignment analytics")
	}
	return utils.SendSuccess(c, "assignment analytics", result)
}

func (h *AnalyticsHandler) invalidate(c *fiber.Ctx) error {
	var payload dto.AnalyticsInvalidateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return respondError(c, h.logger, err, "invalid payload")
	}

	scope := service.AnalyticsScope{
		StudentID:    derefUint(payload.StudentID),
		TeacherID:    derefUint(payload.TeacherID),
		SchoolID:     derefUint(payload.SchoolID),
		AssignmentID: derefUint(payload.AssignmentID),
	}
	if scope == (service.AnalyticsScope{}) {
		return utils.SendError(c, fiber.StatusBadRequest, "at least one scope identifier is required")
	}

	deleted, err := h.service.Invalidate(withRequestContext(c), scope)
	if err != nil {
		return respondError(c, h.logger, err, "failed to invalidate analytics cache")
	}
	return utils.SendSuccess(c, "analytics cache invalidated", dto.AnalyticsInvalidateResponse{Deleted: deleted})
}

func derefUint(v *uint) uint {
	if v == nil {
		return 0
	}
	return *v
}
