package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ratecast/ratecast/internal/logging"
	"github.com/ratecast/ratecast/internal/models"
	"github.com/ratecast/ratecast/internal/services"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Handler contains all HTTP handlers
type Handler struct {
	logger          *logging.Logger
	forecastService *services.ForecastService
}

// New creates a new handler instance
func New(logger *logging.Logger, forecastService *services.ForecastService) *Handler {
	return &Handler{
		logger:          logger,
		forecastService: forecastService,
	}
}

// statusFor maps service error codes to HTTP status codes
func statusFor(code string) int {
	switch code {
	case services.CodeInvalidRequest, services.CodeInvalidStrategy:
		return fiber.StatusBadRequest
	case services.CodeNotFound:
		return fiber.StatusNotFound
	case services.CodeInsufficientHistory, services.CodeInvalidWindowConfig, services.CodeNoData:
		return fiber.StatusUnprocessableEntity
	case services.CodeModelFitFailed:
		return fiber.StatusBadGateway
	case services.CodeUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// serviceError writes err as an ErrorResponse
func (h *Handler) serviceError(c *fiber.Ctx, err error) error {
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		return err
	}
	status := statusFor(svcErr.Code)
	if status >= fiber.StatusInternalServerError {
		logging.Ctx(c.UserContext()).Error("Request failed",
			"path", c.Path(), "code", svcErr.Code, "error", err)
	}
	return c.Status(status).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    svcErr.Code,
			Message: svcErr.Message,
			Details: svcErr.Details,
		},
	})
}

func invalidRequest(c *fiber.Ctx, message string, errs []models.ValidationError) error {
	detail := models.ErrorDetail{
		Code:    services.CodeInvalidRequest,
		Message: message,
	}
	if len(errs) > 0 {
		detail.Details = map[string]interface{}{"errors": errs}
	}
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: detail})
}
