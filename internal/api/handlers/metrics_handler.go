package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Hngdcmnh/ai-metric/internal/service"
	"github.com/Hngdcmnh/ai-metric/internal/storage/models"
	"github.com/Hngdcmnh/ai-metric/pkg/logger"
)

const apiDateLayout = "2006-01-02"

type MetricsHandler struct {
	service *service.MetricsService
}

func NewMetricsHandler(svc *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{
		service: svc,
	}
}

// GetLast7Days serves the dashboard landing chart: the trailing week of
// latency percentiles, recomputed from raw rows.
func (h *MetricsHandler) GetLast7Days(c *fiber.Ctx) error {
	botID, err := queryBotID(c)
	if err != nil {
		return badRequest(c, "bot_id must be an integer")
	}
	metricType := c.Query("type", "learn")

	response, err := h.service.LastNDaysLatency(c.Context(), 7, metricType, botID)
	if err != nil {
		logger.Error("Failed to get last 7 days metrics", zap.Error(err))
		return internalError(c, "Failed to get metrics")
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"data":   response,
	})
}

// RefreshMetrics drops cached responses and recomputes the trailing week.
func (h *MetricsHandler) RefreshMetrics(c *fiber.Ctx) error {
	var req struct {
		BotID *int64 `json:"bot_id"`
		Type  string `json:"type"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	if req.Type == "" {
		req.Type = "learn"
	}

	h.service.InvalidateCache(c.Context())

	response, err := h.service.LastNDaysLatency(c.Context(), 7, req.Type, req.BotID)
	if err != nil {
		logger.Error("Failed to refresh metrics", zap.Error(err))
		return internalError(c, "Failed to refresh metrics")
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"data":   response,
	})
}

// GetDailyMetrics serves an arbitrary date range. source=rollup reads the
// precomputed daily table, anything else recomputes from raw rows.
func (h *MetricsHandler) GetDailyMetrics(c *fiber.Ctx) error {
	start, end, err := queryDateRange(c, 7)
	if err != nil {
		return badRequest(c, "Invalid date format, expected YYYY-MM-DD")
	}
	botID, err := queryBotID(c)
	if err != nil {
		return badRequest(c, "bot_id must be an integer")
	}
	metricType := c.Query("type", "learn")
	source := h.service.Source(c.Query("source", "raw"))

	response, err := h.service.DailyLatency(c.Context(), source, start, end, metricType, botID)
	if err != nil {
		logger.Error("Failed to get daily metrics", zap.Error(err))
		return internalError(c, "Failed to get metrics")
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"data":   response,
	})
}

// GetIntentAccuracy serves the single-date accuracy number. A date that has
// records but no corrections yet answers with a null accuracy, which is not
// the same as zero.
func (h *MetricsHandler) GetIntentAccuracy(c *fiber.Ctx) error {
	dateStr := c.Query("date")
	if dateStr == "" {
		return badRequest(c, "Date is required")
	}
	date, err := time.Parse(apiDateLayout, dateStr)
	if err != nil {
		return badRequest(c, "Invalid date format, expected YYYY-MM-DD")
	}

	accuracy, total, err := h.service.AccuracyForDate(c.Context(), date)
	if err != nil {
		logger.Error("Failed to get intent accuracy", zap.Error(err))
		return internalError(c, "Failed to get intent accuracy")
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"data": fiber.Map{
			"date":            dateStr,
			"intent_accuracy": accuracy,
			"total_records":   total,
		},
	})
}

// GetIntentAccuracyMetrics serves the per-day accuracy breakdown for a
// range, defaulting to the trailing week.
func (h *MetricsHandler) GetIntentAccuracyMetrics(c *fiber.Ctx) error {
	start, end, err := queryDateRange(c, 7)
	if err != nil {
		return badRequest(c, "Invalid date format, expected YYYY-MM-DD")
	}

	results, err := h.service.AccuracyRange(c.Context(), start, end)
	if err != nil {
		logger.Error("Failed to get intent accuracy metrics", zap.Error(err))
		return internalError(c, "Failed to get intent accuracy metrics")
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"data": fiber.Map{
			"date_range": fiber.Map{
				"start": models.DateKey(start),
				"end":   models.DateKey(end),
			},
			"metrics": results,
			"count":   len(results),
		},
	})
}

func queryBotID(c *fiber.Ctx) (*int64, error) {
	raw := c.Query("bot_id")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// queryDateRange reads start_date/end_date, falling back to the trailing
// defaultDays-day window ending today. Both bounds must be present to
// override the default.
func queryDateRange(c *fiber.Ctx, defaultDays int) (time.Time, time.Time, error) {
	startStr := c.Query("start_date")
	endStr := c.Query("end_date")

	if startStr == "" || endStr == "" {
		end := time.Now()
		return end.AddDate(0, 0, -(defaultDays - 1)), end, nil
	}

	start, err := time.Parse(apiDateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse(apiDateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"status":  "error",
		"message": msg,
	})
}

func internalError(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"status":  "error",
		"message": msg,
	})
}
