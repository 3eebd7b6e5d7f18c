package handler

import (
	"bufio"
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/artdirector-api/internal/dto"
	"github.com/noah-isme/artdirector-api/internal/middleware"
	"github.com/noah-isme/artdirector-api/internal/service"
	"github.com/noah-isme/artdirector-api/internal/utils"
)

// SubmissionHandler manages submission endpoints.
type SubmissionHandler struct {
	service   service.SubmissionService
	broker    service.StatusBroker
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewSubmissionHandler builds a submission handler instance. broker may be nil,
// in which case the status stream is not registered.
func NewSubmissionHandler(service service.SubmissionService, broker service.StatusBroker, logger zerolog.Logger, keepAlive time.Duration) *SubmissionHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &SubmissionHandler{
		service:   service,
		broker:    broker,
		logger:    logger.With().Str("component", "submission_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register attaches the routes to the provided router group. uploadGuard runs
// before the upload handler only.
func (h *SubmissionHandler) Register(router fiber.Router, uploadGuard ...fiber.Handler) {
	router.Get("", h.listMine)
	router.Post("", append(uploadGuard, h.create)...)
	router.Get("/reviewing", h.listReviewing)
	if h.broker != nil {
		router.Get("/stream", h.stream)
	}
	router.Get("/:id", h.get)
	router.Delete("/:id", h.delete)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	contentType := c.FormValue("content_type")
	if contentType == "" {
		contentType = file.Header.Get("Content-Type")
	}

	payload := dto.SubmissionCreateRequest{
		Title:       c.FormValue("title"),
		ContentType: contentType,
		ReviewerKey: c.FormValue("reviewer_key"),
		SizeBytes:   file.Size,
	}

	content, err := file.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file could not be read")
	}
	defer content.Close()

	response, err := h.service.Create(requestContext(c), identity, payload, content)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "submission accepted", response)
}

func (h *SubmissionHandler) listMine(c *fiber.Ctx) error {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	submissions, err := h.service.ListMine(requestContext(c), identity)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) listReviewing(c *fiber.Ctx) error {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	submissions, err := h.service.ListReviewing(requestContext(c), identity)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	submission, err := h.service.Get(requestContext(c), identity, id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) delete(c *fiber.Ctx) error {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	if err := h.service.Delete(requestContext(c), identity, id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission deleted", nil)
}

func (h *SubmissionHandler) stream(c *fiber.Ctx) error {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(requestContext(c))
	events, cleanup := h.broker.Subscribe(identity)
	keepAlive := h.keepAlive

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		ticker := time.NewTicker(keepAlive / 2)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := writeEvent(w, "submission.status", event); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write status event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write status keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.SendValidationError(c, err)
	case errors.Is(err, service.ErrInvalidInput):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthorizedAccess):
		return utils.SendError(c, fiber.StatusForbidden, "not allowed to access this submission")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
