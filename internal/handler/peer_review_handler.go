package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sacel-api/internal/dto"
	"github.com/noah-isme/sacel-api/internal/middleware"
	"github.com/noah-isme/sacel-api/internal/models"
	"github.com/noah-isme/sacel-api/internal/service"
	"github.com/noah-isme/sacel-api/internal/utils"
)

// PeerReviewHandler exposes peer review rounds and review submission.
type PeerReviewHandler struct {
	service service.PeerReviewService
	logger  zerolog.Logger
}

// NewPeerReviewHandler constructs the handler.
func NewPeerReviewHandler(service service.PeerReviewService, logger zerolog.Logger) *PeerReviewHandler {
	return &PeerReviewHandler{
		service: service,
		logger:  logger.With().Str("component", "peer_review_handler").Logger(),
	}
}

// Register attaches peer review routes to the router group.
func (h *PeerReviewHandler) Register(router fiber.Router) {
	router.Post("/assignments/:id", middleware.RequireRole(models.RoleTeacher, models.RoleAdmin), h.create)
	router.Get("/assignments/:id", h.pairings)
	router.Post("/submissions/:id", middleware.RequireRole(models.RoleStudent), h.submit)
}

func (h *PeerReviewHandler) create(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.CreatePeerReviewsRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	round, err := h.service.CreatePeerReviews(withRequestContext(c), id, payload, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to create peer reviews")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "peer reviews created", round)
}

func (h *PeerReviewHandler) pairings(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	round, err := h.service.GetPairings(withRequestContext(c), id, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load peer review pairings")
	}

	return utils.SendSuccess(c, "peer review pairings", round)
}

func (h *PeerReviewHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.SubmitPeerReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	summary, err := h.service.SubmitPeerReview(withRequestContext(c), id, payload, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to submit peer review")
	}

	return utils.SendSuccess(c, "peer review submitted", summary)
}
