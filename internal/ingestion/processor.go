package ingestion

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Hngdcmnh/ai-metric/internal/cache/redis"
	"github.com/Hngdcmnh/ai-metric/internal/engine"
	"github.com/Hngdcmnh/ai-metric/internal/metrics"
	"github.com/Hngdcmnh/ai-metric/internal/monitor"
	"github.com/Hngdcmnh/ai-metric/internal/storage/models"
	"github.com/Hngdcmnh/ai-metric/internal/storage/postgres"
	"github.com/Hngdcmnh/ai-metric/pkg/logger"
)

// Processor runs the batch jobs that fill the metric tables: the daily
// latency ingestion, the intent-accuracy import and the correction update
// pass. It owns no schedule of its own; the scheduler and the HTTP handlers
// trigger it.
type Processor struct {
	store    *postgres.Client
	monitor  *monitor.Client
	cache    *redis.Client
	progress *Broadcaster
}

// ImportSummary reports one intent-accuracy import run.
type ImportSummary struct {
	ConversationsProcessed int `json:"conversations_processed"`
	TotalPairs             int `json:"total_pairs"`
	TotalInserted          int `json:"total_inserted"`
	FailedConversations    int `json:"failed_conversations"`
}

// NewProcessor wires the processor. cache may be nil when redis is disabled.
func NewProcessor(store *postgres.Client, monitorClient *monitor.Client, cache *redis.Client, progress *Broadcaster) *Processor {
	return &Processor{
		store:    store,
		monitor:  monitorClient,
		cache:    cache,
		progress: progress,
	}
}

// RunDailyLatencyJob ingests one (date, type) latency partition: list the
// day's conversations, collect their response times, bulk-insert the
// partition (skipped wholesale when it already exists) and refresh the
// per-bot rollups. Returns the number of rows inserted.
func (p *Processor) RunDailyLatencyJob(ctx context.Context, date time.Time, metricType string) (int, error) {
	runID := uuid.NewString()
	dbType := models.NormalizeMetricType(metricType)
	started := time.Now()

	logger.Info("Starting daily latency job",
		zap.String("run_id", runID),
		zap.String("date", models.DateKey(date)),
		zap.String("type", dbType),
	)

	p.publish(runID, "latency", "fetching conversation ids", 0, 0, "")

	conversationIDs, err := p.monitor.GetConversationIDs(ctx, date, date)
	if err != nil {
		metrics.MonitorAPIErrors.WithLabelValues("conversation_ids").Inc()
		return 0, fmt.Errorf("failed to fetch conversation ids: %w", err)
	}

	logger.Info("Found conversations",
		zap.String("run_id", runID),
		zap.Int("count", len(conversationIDs)),
	)

	var samples []models.LatencySample
	failed := 0
	for idx, convID := range conversationIDs {
		rows, err := p.monitor.GetResponseTimes(ctx, convID)
		if err != nil {
			logger.Warn("Error fetching response times, skipping conversation",
				zap.Int64("conversation_id", convID),
				zap.Error(err),
			)
			metrics.MonitorAPIErrors.WithLabelValues("response_times").Inc()
			metrics.ConversationsProcessed.WithLabelValues("latency", "failed").Inc()
			failed++
			continue
		}

		for _, row := range rows {
			samples = append(samples, models.LatencySample{
				BotID:              row.BotID,
				ConversationID:     strconv.FormatInt(convID, 10),
				FastResponseTime:   row.FastResponseTime,
				LLMResponseTime:    row.LLMResponseTime,
				ServerResponseTime: row.ServerResponseTime,
				Type:               dbType,
				DateTime:           date,
			})
		}

		metrics.ConversationsProcessed.WithLabelValues("latency", "ok").Inc()
		if (idx+1)%100 == 0 {
			logger.Info("Processed conversations",
				zap.String("run_id", runID),
				zap.Int("done", idx+1),
				zap.Int("total", len(conversationIDs)),
			)
			p.publish(runID, "latency", "fetching response times", idx+1, len(conversationIDs), "")
		}
	}

	p.publish(runID, "latency", "saving", len(conversationIDs), len(conversationIDs), "")

	inserted, err := p.store.InsertLatencySamples(ctx, samples, date, dbType, true)
	if err != nil {
		return 0, fmt.Errorf("failed to save latency samples: %w", err)
	}
	if inserted == 0 && len(samples) > 0 {
		metrics.PartitionSkips.Inc()
	}
	metrics.RecordsInserted.WithLabelValues("latency_metric").Add(float64(inserted))

	if inserted > 0 {
		if err := p.RecomputeDailyRollup(ctx, date, dbType); err != nil {
			logger.Error("Failed to recompute daily rollup", zap.Error(err))
		}
		p.invalidateCache(ctx)
	}

	metrics.IngestionRunDuration.WithLabelValues("latency").Observe(time.Since(started).Seconds())
	p.publish(runID, "latency", "done", len(conversationIDs), len(conversationIDs),
		fmt.Sprintf("%d records inserted, %d conversations failed", inserted, failed))

	logger.Info("Daily latency job completed",
		zap.String("run_id", runID),
		zap.Int("inserted", inserted),
		zap.Int("failed_conversations", failed),
	)

	return inserted, nil
}

// RecomputeDailyRollup rebuilds the metric_by_day rows for one (date, type)
// partition, one rollup per contributing bot. The upsert makes the rebuild
// idempotent.
func (p *Processor) RecomputeDailyRollup(ctx context.Context, date time.Time, metricType string) error {
	samples, err := p.store.GetLatencySamples(ctx, date, date, metricType, nil)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		logger.Warn("No latency data for rollup", zap.String("date", models.DateKey(date)))
		return nil
	}

	type channels struct {
		server []float64
		llm    []float64
		fast   []float64
	}

	// Rollups keep bot granularity; the read path decides whether to
	// collapse. A nil bot id gets its own bucket.
	buckets := make(map[string]*channels)
	botByKey := make(map[string]*int64)
	for _, s := range samples {
		key := "none"
		if s.BotID != nil {
			key = strconv.FormatInt(*s.BotID, 10)
		}
		b, ok := buckets[key]
		if !ok {
			b = &channels{}
			buckets[key] = b
			botByKey[key] = s.BotID
		}
		if s.ServerResponseTime != nil {
			b.server = append(b.server, *s.ServerResponseTime)
		}
		if s.LLMResponseTime != nil {
			b.llm = append(b.llm, *s.LLMResponseTime)
		}
		if s.FastResponseTime != nil {
			b.fast = append(b.fast, *s.FastResponseTime)
		}
	}

	if _, ok := buckets["none"]; ok {
		// The unique constraint never matches a NULL bot id, so the
		// bot-less row is replaced by delete + insert.
		if err := p.store.ClearNullBotRollup(ctx, date); err != nil {
			return err
		}
	}

	for key, b := range buckets {
		rollup := models.MetricRollup{
			Date:         models.DateKey(date),
			BotID:        botByKey[key],
			TotalRecords: len(b.server) + len(b.llm) + len(b.fast),
		}
		rollup.ServerResponseP90, rollup.ServerResponseP99 = rollupPercentiles(b.server)
		rollup.LLMResponseP90, rollup.LLMResponseP99 = rollupPercentiles(b.llm)
		rollup.FastResponseP90, rollup.FastResponseP99 = rollupPercentiles(b.fast)

		if err := p.store.UpsertDailyMetric(ctx, rollup); err != nil {
			return err
		}
	}

	logger.Info("Daily rollups recomputed",
		zap.String("date", models.DateKey(date)),
		zap.Int("bots", len(buckets)),
	)

	return nil
}

// ImportIntentAccuracy fetches every conversation of a date, builds
// question/answer pairs from the logs and persists them as accuracy
// records. A failing conversation is logged and skipped; the import keeps
// going.
func (p *Processor) ImportIntentAccuracy(ctx context.Context, date time.Time) (ImportSummary, error) {
	runID := uuid.NewString()
	started := time.Now()
	summary := ImportSummary{}

	logger.Info("Starting intent accuracy import",
		zap.String("run_id", runID),
		zap.String("date", models.DateKey(date)),
	)

	conversationIDs, err := p.monitor.GetConversationIDs(ctx, date, date)
	if err != nil {
		metrics.MonitorAPIErrors.WithLabelValues("conversation_ids").Inc()
		return summary, fmt.Errorf("failed to fetch conversation ids: %w", err)
	}
	summary.ConversationsProcessed = len(conversationIDs)

	for idx, convID := range conversationIDs {
		meta, messages, err := p.monitor.GetConversationLogs(ctx, convID)
		if err != nil {
			logger.Error("Error fetching conversation logs, skipping",
				zap.Int64("conversation_id", convID),
				zap.Error(err),
			)
			metrics.MonitorAPIErrors.WithLabelValues("conversation_logs").Inc()
			metrics.ConversationsProcessed.WithLabelValues("accuracy", "failed").Inc()
			summary.FailedConversations++
			continue
		}
		if len(messages) == 0 {
			logger.Warn("No messages for conversation", zap.Int64("conversation_id", convID))
			continue
		}
		if meta.Date.IsZero() {
			meta.Date = date
		}

		pairs := engine.BuildPairs(messages)
		summary.TotalPairs += len(pairs)
		if len(pairs) == 0 {
			logger.Warn("Conversation produced no pairs", zap.Int64("conversation_id", convID))
			continue
		}

		records := buildRecords(pairs, meta)
		inserted, err := p.store.InsertAccuracyRecords(ctx, records)
		if err != nil {
			logger.Error("Error saving accuracy records",
				zap.Int64("conversation_id", convID),
				zap.Error(err),
			)
			summary.FailedConversations++
			continue
		}
		summary.TotalInserted += inserted
		metrics.RecordsInserted.WithLabelValues("intent_acc_metric").Add(float64(inserted))
		metrics.ConversationsProcessed.WithLabelValues("accuracy", "ok").Inc()

		if (idx+1)%50 == 0 {
			logger.Info("Import progress",
				zap.String("run_id", runID),
				zap.Int("done", idx+1),
				zap.Int("total", len(conversationIDs)),
				zap.Int("pairs", summary.TotalPairs),
				zap.Int("inserted", summary.TotalInserted),
			)
			p.publish(runID, "accuracy", "importing", idx+1, len(conversationIDs), "")
		}
	}

	p.invalidateCache(ctx)

	metrics.IngestionRunDuration.WithLabelValues("accuracy").Observe(time.Since(started).Seconds())
	p.publish(runID, "accuracy", "done", summary.ConversationsProcessed, summary.ConversationsProcessed,
		fmt.Sprintf("%d records from %d pairs", summary.TotalInserted, summary.TotalPairs))

	logger.Info("Intent accuracy import completed",
		zap.String("run_id", runID),
		zap.Int("inserted", summary.TotalInserted),
		zap.Int("pairs", summary.TotalPairs),
		zap.Int("failed", summary.FailedConversations),
	)

	return summary, nil
}

// buildRecords turns pairs into persistable accuracy records. The message id
// is derived from the conversation id plus the user turn's sequence id (or
// the pair index when the log carries no ids), so re-deriving the same
// conversation always yields the same keys.
func buildRecords(pairs []models.Pair, meta models.ConversationMeta) []models.AccuracyRecord {
	records := make([]models.AccuracyRecord, 0, len(pairs))
	for idx, pair := range pairs {
		seq := strconv.Itoa(idx)
		if pair.User.SequenceID != nil && *pair.User.SequenceID != "" {
			seq = *pair.User.SequenceID
		}

		contextQuestion := pair.ContextQuestion
		r := models.AccuracyRecord{
			UserID:           meta.UserID,
			BotID:            meta.BotID,
			DateTime:         meta.Date,
			Content:          pair.User.Content,
			Audio:            pair.User.Audio,
			Intent:           pair.ResolvedIntent,
			Pattern:          pair.User.Pattern,
			Language:         pair.User.Language,
			CorrectedContent: pair.User.CorrectedContent,
			ConversationID:   meta.ConversationID,
			MessageID:        fmt.Sprintf("%s_%s", meta.ConversationID, seq),
			ContextQuestion:  &contextQuestion,
			// The stored corrected intent is always the mapped vocabulary
			// value, never the raw external label.
			CorrectedIntent: engine.MapCorrectedIntent(pair.User.CorrectedIntent),
		}

		if r.CorrectedContent != nil {
			wer := engine.WordErrorRate(deref(r.CorrectedContent), deref(r.Content))
			r.WER = &wer
		}

		records = append(records, r)
	}
	return records
}

// UpdateCorrectionsForDate re-reads the correction store for every record of
// a date and applies any labels found. Only the correction fields change;
// content, intent and the natural key stay untouched.
func (p *Processor) UpdateCorrectionsForDate(ctx context.Context, date time.Time) (int, error) {
	records, err := p.store.GetRecordsForDate(ctx, date)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, r := range records {
		correction, found, err := p.monitor.GetCorrection(ctx, r.MessageID)
		if err != nil {
			logger.Warn("Error fetching correction",
				zap.String("message_id", r.MessageID),
				zap.Error(err),
			)
			metrics.MonitorAPIErrors.WithLabelValues("correction").Inc()
			continue
		}
		if !found {
			continue
		}

		content, intent, wer := mergeCorrection(r, *correction)

		err = p.store.UpdateCorrection(ctx, r.MessageID, content, intent, wer)
		if err != nil {
			logger.Error("Error updating correction",
				zap.String("message_id", r.MessageID),
				zap.Error(err),
			)
			continue
		}
		updated++
		metrics.CorrectionsApplied.Inc()
	}

	if updated > 0 {
		p.invalidateCache(ctx)
	}

	logger.Info("Corrections updated",
		zap.String("date", models.DateKey(date)),
		zap.Int("updated", updated),
		zap.Int("records", len(records)),
	)

	return updated, nil
}

// mergeCorrection folds a correction into the stored record field by field.
// A field the correction source did not return keeps its stored value, so a
// later intent-only correction never wipes an earlier transcript fix. WER is
// recomputed only when the corrected text itself changed, with the corrected
// text as the reference and the ASR output as the hypothesis.
func mergeCorrection(r models.AccuracyRecord, c monitor.Correction) (content, intent *string, wer *float64) {
	content, intent, wer = r.CorrectedContent, r.CorrectedIntent, r.WER

	if c.CorrectedContent != nil {
		content = c.CorrectedContent
		w := engine.WordErrorRate(deref(c.CorrectedContent), deref(r.Content))
		wer = &w
	}
	if c.CorrectedIntent != nil {
		intent = engine.MapCorrectedIntent(c.CorrectedIntent)
	}

	return content, intent, wer
}

// UpdateCorrectionsLastNDays runs the correction pass over the trailing n
// days including today.
func (p *Processor) UpdateCorrectionsLastNDays(ctx context.Context, n int) (int, error) {
	total := 0
	today := time.Now()
	for offset := 0; offset < n; offset++ {
		date := today.AddDate(0, 0, -offset)
		updated, err := p.UpdateCorrectionsForDate(ctx, date)
		if err != nil {
			return total, fmt.Errorf("failed updating corrections for %s: %w", models.DateKey(date), err)
		}
		total += updated
	}
	return total, nil
}

// rollupPercentiles summarizes one channel's samples as (p90, p99), both nil
// when no samples were recorded for the channel.
func rollupPercentiles(samples []float64) (*float64, *float64) {
	if len(samples) == 0 {
		return nil, nil
	}
	p90 := engine.Percentile(samples, 90)
	p99 := engine.Percentile(samples, 99)
	return &p90, &p99
}

func (p *Processor) publish(runID, job, stage string, done, total int, msg string) {
	if p.progress == nil {
		return
	}
	p.progress.Publish(ProgressEvent{
		RunID:   runID,
		Job:     job,
		Stage:   stage,
		Done:    done,
		Total:   total,
		Message: msg,
	})
}

func (p *Processor) invalidateCache(ctx context.Context) {
	if p.cache == nil {
		return
	}
	if err := p.cache.InvalidateMetricsCache(ctx); err != nil {
		logger.Warn("Failed to invalidate metrics cache", zap.Error(err))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
