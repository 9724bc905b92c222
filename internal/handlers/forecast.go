package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ratecast/ratecast/internal/models"
	"github.com/ratecast/ratecast/internal/services"
)

const defaultListLimit = 50

// Strategies lists the registered forecasting strategies
// GET /v1/strategies
func (h *Handler) Strategies(c *fiber.Ctx) error {
	return c.JSON(models.StrategiesResponse{
		Strategies: h.forecastService.Strategies(),
		Default:    h.forecastService.DefaultStrategy(),
	})
}

// CreateForecast runs a backtest and returns the stored run
// POST /v1/forecasts
func (h *Handler) CreateForecast(c *fiber.Ctx) error {
	var body models.ForecastRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
				Error: models.ErrorDetail{
					Code:    "INVALID_JSON",
					Message: "Failed to parse JSON body",
					Details: map[string]interface{}{"error": err.Error()},
				},
			})
		}
	}

	if errs := models.Validate(&body); errs != nil {
		return invalidRequest(c, "request validation failed", errs)
	}

	series, err := body.Series()
	if err != nil {
		return invalidRequest(c, err.Error(), nil)
	}

	record, err := h.forecastService.Run(c.UserContext(), &services.ForecastRequest{
		Strategy:         body.Strategy,
		Horizon:          body.Horizon,
		Step:             body.Step,
		FeatureSelection: body.FeatureSelection,
		Points:           series,
	})
	if err != nil {
		return h.serviceError(c, err)
	}

	c.Location("/v1/forecasts/" + record.ID)
	return c.Status(fiber.StatusCreated).JSON(record)
}

// ListForecasts returns stored runs, newest first
// GET /v1/forecasts?limit=N
func (h *Handler) ListForecasts(c *fiber.Ctx) error {
	var q models.ListQuery
	if err := c.QueryParser(&q); err != nil {
		return invalidRequest(c, "limit must be an integer", nil)
	}
	if errs := models.Validate(&q); errs != nil {
		return invalidRequest(c, "request validation failed", errs)
	}
	if q.Limit == 0 {
		q.Limit = defaultListLimit
	}

	runs, err := h.forecastService.List(c.UserContext(), q.Limit)
	if err != nil {
		return h.serviceError(c, err)
	}

	resp := models.RunListResponse{Runs: make([]models.RunSummary, 0, len(runs))}
	for _, r := range runs {
		resp.Runs = append(resp.Runs, models.NewRunSummary(r))
	}
	resp.Count = len(resp.Runs)
	return c.JSON(resp)
}

// GetForecast returns one stored run
// GET /v1/forecasts/:id
func (h *Handler) GetForecast(c *fiber.Ctx) error {
	record, err := h.forecastService.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(record)
}

// DeleteForecast removes a stored run
// DELETE /v1/forecasts/:id
func (h *Handler) DeleteForecast(c *fiber.Ctx) error {
	if err := h.forecastService.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.serviceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
