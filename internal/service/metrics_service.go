package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Hngdcmnh/ai-metric/internal/cache/redis"
	"github.com/Hngdcmnh/ai-metric/internal/engine"
	"github.com/Hngdcmnh/ai-metric/internal/metrics"
	"github.com/Hngdcmnh/ai-metric/internal/storage/models"
	"github.com/Hngdcmnh/ai-metric/internal/storage/postgres"
	"github.com/Hngdcmnh/ai-metric/pkg/logger"
	"github.com/Hngdcmnh/ai-metric/pkg/utils"
)

// LatencySource is one strategy for answering a daily-latency query. The
// caller picks the strategy explicitly: recomputing from raw rows is always
// correct but touches every sample in range, reading rollups is cheap but
// only as fresh as the last ingestion run.
type LatencySource interface {
	DailyLatency(ctx context.Context, start, end time.Time, metricType string, botID *int64) ([]models.DailyLatencyMetric, error)
}

// RawRecompute aggregates directly from latency_metric rows.
type RawRecompute struct {
	Store *postgres.Client
}

func (s *RawRecompute) DailyLatency(ctx context.Context, start, end time.Time, metricType string, botID *int64) ([]models.DailyLatencyMetric, error) {
	samples, err := s.Store.GetLatencySamples(ctx, start, end, models.NormalizeMetricType(metricType), botID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latency samples: %w", err)
	}
	return engine.AggregateLatencyByDay(samples, start, end, botID), nil
}

// RollupRead serves precomputed metric_by_day rows, one entry per
// (date, bot) the ingestion has rolled up.
type RollupRead struct {
	Store *postgres.Client
}

func (s *RollupRead) DailyLatency(ctx context.Context, start, end time.Time, metricType string, botID *int64) ([]models.DailyLatencyMetric, error) {
	rollups, err := s.Store.GetDailyMetricRollups(ctx, start, end, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily rollups: %w", err)
	}

	results := make([]models.DailyLatencyMetric, 0, len(rollups))
	for _, r := range rollups {
		m := models.DailyLatencyMetric{
			Date:              r.Date,
			ServerResponseP90: r.ServerResponseP90,
			ServerResponseP99: r.ServerResponseP99,
			LLMResponseP90:    r.LLMResponseP90,
			LLMResponseP99:    r.LLMResponseP99,
			FastResponseP90:   r.FastResponseP90,
			FastResponseP99:   r.FastResponseP99,
			TotalRecords:      r.TotalRecords,
		}
		if r.BotID != nil {
			display := strconv.FormatInt(*r.BotID, 10)
			m.BotID = &display
			m.BotIDs = []int64{*r.BotID}
		}
		results = append(results, m)
	}
	return results, nil
}

// LatencyRangeResponse is the presentation envelope for a latency query: the
// resolved date range travels with the rows so the dashboard can label empty
// windows.
type LatencyRangeResponse struct {
	DateRange DateRange                   `json:"date_range"`
	Metrics   []models.DailyLatencyMetric `json:"metrics"`
	Count     int                         `json:"count"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MetricsService answers the dashboard's read queries. The cache is
// optional; with a nil cache every query goes to the database.
type MetricsService struct {
	store    *postgres.Client
	cache    *redis.Client
	cacheTTL time.Duration

	raw    LatencySource
	rollup LatencySource
}

func NewMetricsService(store *postgres.Client, cache *redis.Client, cacheTTL time.Duration) *MetricsService {
	return &MetricsService{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		raw:      &RawRecompute{Store: store},
		rollup:   &RollupRead{Store: store},
	}
}

// Source resolves a strategy name. Anything that is not "rollup" recomputes
// from raw rows.
func (s *MetricsService) Source(name string) LatencySource {
	if name == "rollup" {
		return s.rollup
	}
	return s.raw
}

// DailyLatency runs a latency query through the chosen source with a
// cache-aside in front.
func (s *MetricsService) DailyLatency(ctx context.Context, source LatencySource, start, end time.Time, metricType string, botID *int64) (*LatencyRangeResponse, error) {
	key := latencyCacheKey(source, start, end, metricType, botID)

	if s.cache != nil {
		var cached LatencyRangeResponse
		hit, err := s.cache.GetMetrics(ctx, key, &cached)
		if err != nil {
			logger.Warn("Cache read failed", zap.Error(err))
		} else if hit {
			metrics.CacheHits.WithLabelValues("daily_latency").Inc()
			return &cached, nil
		}
		metrics.CacheMisses.WithLabelValues("daily_latency").Inc()
	}

	rows, err := source.DailyLatency(ctx, start, end, metricType, botID)
	if err != nil {
		return nil, err
	}

	response := &LatencyRangeResponse{
		DateRange: DateRange{Start: models.DateKey(start), End: models.DateKey(end)},
		Metrics:   rows,
		Count:     len(rows),
	}

	if s.cache != nil {
		if err := s.cache.SetMetrics(ctx, key, response, s.cacheTTL); err != nil {
			logger.Warn("Cache write failed", zap.Error(err))
		}
	}

	return response, nil
}

// LastNDaysLatency answers the dashboard landing chart: the trailing n-day
// window ending today, recomputed from raw rows.
func (s *MetricsService) LastNDaysLatency(ctx context.Context, n int, metricType string, botID *int64) (*LatencyRangeResponse, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -(n - 1))
	return s.DailyLatency(ctx, s.raw, start, end, metricType, botID)
}

// InvalidateCache drops every cached metrics response. A nil cache makes
// this a no-op.
func (s *MetricsService) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateMetricsCache(ctx); err != nil {
		logger.Warn("Failed to invalidate metrics cache", zap.Error(err))
	}
}

// AccuracyRange aggregates intent accuracy per day over [start, end].
func (s *MetricsService) AccuracyRange(ctx context.Context, start, end time.Time) ([]models.DailyAccuracyMetric, error) {
	records, err := s.store.GetAccuracyRecords(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load accuracy records: %w", err)
	}
	return engine.AggregateAccuracyByDay(records, start, end), nil
}

// AccuracyForDate returns the corrected-intent accuracy of one date, nil
// when the date has no records with a corrected intent. Nil and zero are
// different answers: zero means everything was wrong, nil means nobody has
// corrected anything yet.
func (s *MetricsService) AccuracyForDate(ctx context.Context, date time.Time) (*float64, int, error) {
	records, err := s.store.GetRecordsForDate(ctx, date)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load accuracy records: %w", err)
	}
	return engine.AccuracyForRecords(records), len(records), nil
}

func latencyCacheKey(source LatencySource, start, end time.Time, metricType string, botID *int64) string {
	sourceName := "raw"
	if _, ok := source.(*RollupRead); ok {
		sourceName = "rollup"
	}
	bot := "all"
	if botID != nil {
		bot = strconv.FormatInt(*botID, 10)
	}
	return utils.HashString(fmt.Sprintf("latency|%s|%s|%s|%s|%s",
		sourceName, models.DateKey(start), models.DateKey(end), metricType, bot))
}
