package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Hngdcmnh/ai-metric/internal/ingestion"
	"github.com/Hngdcmnh/ai-metric/internal/storage/models"
	"github.com/Hngdcmnh/ai-metric/internal/storage/postgres"
	"github.com/Hngdcmnh/ai-metric/pkg/logger"
)

type IngestionHandler struct {
	processor *ingestion.Processor
	store     *postgres.Client
}

func NewIngestionHandler(processor *ingestion.Processor, store *postgres.Client) *IngestionHandler {
	return &IngestionHandler{
		processor: processor,
		store:     store,
	}
}

// FetchDate ingests the latency partition for one date. A partition that
// already exists is never re-ingested; the response says so through
// data_exists.
func (h *IngestionHandler) FetchDate(c *fiber.Ctx) error {
	var req struct {
		Date string `json:"date"`
		Type string `json:"type"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Date == "" {
		return badRequest(c, "Date is required")
	}
	if req.Type == "" {
		req.Type = "learn"
	}

	date, err := time.Parse(apiDateLayout, req.Date)
	if err != nil {
		return badRequest(c, "Invalid date format, expected YYYY-MM-DD")
	}

	dbType := models.NormalizeMetricType(req.Type)
	exists, err := h.store.HasLatencyData(c.Context(), date, dbType)
	if err != nil {
		logger.Error("Failed to check existing data", zap.Error(err))
		return internalError(c, "Failed to check existing data")
	}
	if exists {
		logger.Info("Data already exists for date",
			zap.String("date", req.Date),
			zap.String("type", dbType),
		)
		return c.JSON(fiber.Map{
			"status":      "success",
			"message":     fmt.Sprintf("Data already exists for %s", req.Date),
			"data_exists": true,
		})
	}

	inserted, err := h.processor.RunDailyLatencyJob(c.Context(), date, req.Type)
	if err != nil {
		logger.Error("Fetch-date job failed", zap.Error(err))
		return internalError(c, "Failed to fetch data")
	}

	if inserted == 0 {
		return c.JSON(fiber.Map{
			"status":      "warning",
			"message":     fmt.Sprintf("Fetch completed but no data was saved for %s", req.Date),
			"data_exists": false,
		})
	}

	return c.JSON(fiber.Map{
		"status":      "success",
		"message":     fmt.Sprintf("Data fetched and saved for %s", req.Date),
		"data_exists": false,
		"date":        req.Date,
	})
}

// FetchIntentAccuracy imports the accuracy records of one date.
func (h *IngestionHandler) FetchIntentAccuracy(c *fiber.Ctx) error {
	var req struct {
		Date string `json:"date"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Date == "" {
		return badRequest(c, "Date is required")
	}

	date, err := time.Parse(apiDateLayout, req.Date)
	if err != nil {
		return badRequest(c, "Invalid date format, expected YYYY-MM-DD")
	}

	summary, err := h.processor.ImportIntentAccuracy(c.Context(), date)
	if err != nil {
		logger.Error("Intent accuracy import failed", zap.Error(err))
		return internalError(c, "Failed to import intent accuracy data")
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": fmt.Sprintf("Intent accuracy data imported for %s", req.Date),
		"data":    summary,
	})
}

// UpdateIntentAccuracy3Days re-applies human corrections to the trailing
// three days of accuracy records.
func (h *IngestionHandler) UpdateIntentAccuracy3Days(c *fiber.Ctx) error {
	updated, err := h.processor.UpdateCorrectionsLastNDays(c.Context(), 3)
	if err != nil {
		logger.Error("Correction update failed", zap.Error(err))
		return internalError(c, "Failed to update intent accuracy data")
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Update completed",
		"data": fiber.Map{
			"updated_records": updated,
			"days":            3,
		},
	})
}
