package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sacel-api/internal/dto"
	"github.com/noah-isme/sacel-api/internal/middleware"
	"github.com/noah-isme/sacel-api/internal/models"
	"github.com/noah-isme/sacel-api/internal/service"
	"github.com/noah-isme/sacel-api/internal/utils"
)

// GradingHandler wires auto-grading, final grade and export endpoints.
type GradingHandler struct {
	service          service.GradingService
	autoGradeLimiter fiber.Handler
	logger           zerolog.Logger
}

// NewGradingHandler constructs the handler. limiter guards the auto-grade endpoint and may be nil.
func NewGradingHandler(service service.GradingService, limiter fiber.Handler, logger zerolog.Logger) *GradingHandler {
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &GradingHandler{
		service:          service,
		autoGradeLimiter: limiter,
		logger:           logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches grading routes to the router group.
func (h *GradingHandler) Register(router fiber.Router) {
	staff := middleware.RequireRole(models.RoleTeacher, models.RoleAdmin)

	router.Post("/submissions/:id/auto-grade", staff, h.autoGradeLimiter, h.autoGrade)
	router.Get("/submissions/:id/results", h.results)
	router.Post("/submissions/:id/final-grade", staff, h.finalGrade)
	router.Get("/submissions/:id/report", h.report)
	router.Get("/assignments/:id/export", staff, h.export)
	router.Delete("/cache", middleware.RequireRole(models.RoleAdmin), h.invalidateCache)
}

func (h *GradingHandler) invalidateCache(c *fiber.Ctx) error {
	submissionID, err := parseQueryInt(c, "submission_id")
	if err != nil || submissionID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission_id")
	}
	assignmentID, err := parseQueryInt(c, "assignment_id")
	if err != nil || assignmentID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment_id")
	}
	if submissionID == 0 && assignmentID == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "submission_id or assignment_id is required")
	}

	cleared, err := h.service.InvalidateGradingCache(withRequestContext(c), uint(submissionID), uint(assignmentID))
	if err != nil {
		return respondError(c, h.logger, err, "failed to invalidate grading cache")
	}
	return utils.SendSuccess(c, "grading cache invalidated", dto.GradingCacheResponse{Cleared: cleared})
}

func (h *GradingHandler) autoGrade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.AutoGradeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	result, err := h.service.AutoGrade(withRequestContext(c), id, payload, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to auto-grade submission")
	}

	return utils.SendSuccess(c, "submission graded", result)
}

func (h *GradingHandler) results(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	result, err := h.service.RubricResults(withRequestContext(c), id, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load rubric results")
	}

	return utils.SendSuccess(c, "rubric results", result)
}

func (h *GradingHandler) finalGrade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.FinalGradeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	result, err := h.service.CalculateFinalGrade(withRequestContext(c), id, payload, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to calculate final grade")
	}

	return utils.SendSuccess(c, "final grade calculated", result)
}

func (h *GradingHandler) report(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	report, err := h.service.GradeReport(withRequestContext(c), id, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to build grade report")
	}

	return utils.SendSuccess(c, "grade report", report)
}

func (h *GradingHandler) export(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	csv, err := h.service.ExportGradesCSV(withRequestContext(c), id, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to export grades")
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="grades_assignment_%d.csv"`, id))
	return c.SendString(csv)
}
