package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sacel-api/internal/dto"
	"github.com/noah-isme/sacel-api/internal/middleware"
	"github.com/noah-isme/sacel-api/internal/models"
	"github.com/noah-isme/sacel-api/internal/rubric"
	"github.com/noah-isme/sacel-api/internal/service"
	"github.com/noah-isme/sacel-api/internal/utils"
)

// RubricHandler exposes rubric definitions.
type RubricHandler struct {
	service service.RubricService
	logger  zerolog.Logger
}

// NewRubricHandler constructs the handler.
func NewRubricHandler(service service.RubricService, logger zerolog.Logger) *RubricHandler {
	return &RubricHandler{
		service: service,
		logger:  logger.With().Str("component", "rubric_handler").Logger(),
	}
}

// Register attaches rubric routes to the router group.
func (h *RubricHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", middleware.RequireRole(models.RoleTeacher, models.RoleAdmin), h.create)
}

func (h *RubricHandler) list(c *fiber.Ctx) error {
	rubrics, err := h.service.List(withRequestContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to list rubrics")
	}

	items := make([]dto.RubricResponse, 0, len(rubrics))
	for _, r := range rubrics {
		items = append(items, dto.NewRubricResponse(r))
	}
	return utils.SendSuccess(c, "rubrics", items)
}

// get accepts either a numeric id or a slug such as "essay".
func (h *RubricHandler) get(c *fiber.Ctx) error {
	key := c.Params("id")

	var (
		found rubric.Rubric
		err   error
	)
	if id, parseErr := strconv.ParseUint(key, 10, 64); parseErr == nil {
		found, err = h.service.Get(withRequestContext(c), uint(id))
	} else {
		found, err = h.service.GetBySlug(withRequestContext(c), key)
	}
	if err != nil {
		return respondError(c, h.logger, err, "failed to load rubric")
	}

	return utils.SendSuccess(c, "rubric", dto.NewRubricResponse(found))
}

func (h *RubricHandler) create(c *fiber.Ctx) error {
	var payload dto.RubricCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	created, err := h.service.Create(withRequestContext(c), payload, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to create rubric")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "rubric created", dto.NewRubricResponse(created))
}
