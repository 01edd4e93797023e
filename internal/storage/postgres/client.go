package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Hngdcmnh/ai-metric/internal/storage/models"
	"github.com/Hngdcmnh/ai-metric/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dsn string) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	logger.Info("Postgres client initialized")

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS latency_metric (
		id SERIAL PRIMARY KEY,
		bot_id INTEGER,
		conversation_id TEXT NOT NULL,
		fast_response_time NUMERIC(10, 2),
		llm_response_time NUMERIC(10, 2),
		server_response_time NUMERIC(10, 2),
		type TEXT NOT NULL,
		date_time DATE NOT NULL,
		created_at TIMESTAMP DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_latency_date_type ON latency_metric(date_time, type);
	CREATE INDEX IF NOT EXISTS idx_latency_bot ON latency_metric(bot_id);

	CREATE TABLE IF NOT EXISTS intent_acc_metric (
		id SERIAL PRIMARY KEY,
		user_id TEXT,
		bot_id TEXT,
		date_time TIMESTAMP NOT NULL,
		content TEXT,
		audio TEXT,
		intent TEXT,
		pattern TEXT,
		language TEXT,
		corrected_content TEXT,
		conversation_id TEXT NOT NULL,
		message_id TEXT NOT NULL UNIQUE,
		context_question TEXT,
		corrected_intent TEXT,
		wer NUMERIC(8, 4),
		created_at TIMESTAMP DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_intent_acc_date ON intent_acc_metric(date_time);
	CREATE INDEX IF NOT EXISTS idx_intent_acc_conversation ON intent_acc_metric(conversation_id);

	CREATE TABLE IF NOT EXISTS metric_by_day (
		id SERIAL PRIMARY KEY,
		date_time DATE NOT NULL,
		bot_id INTEGER,
		server_response_p90 NUMERIC(10, 2),
		server_response_p99 NUMERIC(10, 2),
		llm_response_p90 NUMERIC(10, 2),
		llm_response_p99 NUMERIC(10, 2),
		fast_response_p90 NUMERIC(10, 2),
		fast_response_p99 NUMERIC(10, 2),
		total_records INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT NOW(),
		updated_at TIMESTAMP DEFAULT NOW(),
		UNIQUE(date_time, bot_id)
	);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Postgres schema initialized")
	return nil
}

// HasLatencyData reports whether any row exists for a (date, type)
// partition. Partitions are all-or-nothing: ingestion never partially
// re-inserts a day.
func (c *Client) HasLatencyData(ctx context.Context, date time.Time, metricType string) (bool, error) {
	var count int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM latency_metric WHERE date_time = $1 AND type = $2`,
		models.DateKey(date), metricType,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check latency data existence: %w", err)
	}
	return count > 0, nil
}

// InsertLatencySamples bulk-inserts one (date, type) partition in a single
// transaction. With skipIfExists set, a partition that already holds rows is
// skipped entirely. Samples without a conversation id are dropped. Returns
// the number of rows inserted.
func (c *Client) InsertLatencySamples(ctx context.Context, samples []models.LatencySample, date time.Time, metricType string, skipIfExists bool) (int, error) {
	if len(samples) == 0 {
		logger.Warn("No latency samples to insert")
		return 0, nil
	}

	if skipIfExists {
		exists, err := c.HasLatencyData(ctx, date, metricType)
		if err != nil {
			return 0, err
		}
		if exists {
			logger.Info("Latency data already exists, skipping insertion",
				zap.String("date", models.DateKey(date)),
				zap.String("type", metricType),
			)
			return 0, nil
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO latency_metric
		(bot_id, conversation_id, fast_response_time, llm_response_time,
		 server_response_time, type, date_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	now := time.Now()
	for _, s := range samples {
		if s.ConversationID == "" {
			continue
		}
		_, err := stmt.ExecContext(ctx,
			nullInt64(s.BotID),
			s.ConversationID,
			nullFloat64(s.FastResponseTime),
			nullFloat64(s.LLMResponseTime),
			nullFloat64(s.ServerResponseTime),
			metricType,
			models.DateKey(date),
			now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert latency sample: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit latency samples: %w", err)
	}

	logger.Info("Latency samples inserted",
		zap.Int("count", inserted),
		zap.String("date", models.DateKey(date)),
		zap.String("type", metricType),
	)

	return inserted, nil
}

// GetLatencySamples returns raw samples in [start, end] for a metric type,
// optionally scoped to one bot. Rows with no measurement on any channel are
// excluded at the source.
func (c *Client) GetLatencySamples(ctx context.Context, start, end time.Time, metricType string, botID *int64) ([]models.LatencySample, error) {
	query := `
		SELECT date_time, bot_id, conversation_id,
		       server_response_time, llm_response_time, fast_response_time
		FROM latency_metric
		WHERE date_time BETWEEN $1 AND $2
		AND type = $3
		AND (server_response_time IS NOT NULL
		     OR llm_response_time IS NOT NULL
		     OR fast_response_time IS NOT NULL)
	`
	args := []interface{}{models.DateKey(start), models.DateKey(end), metricType}
	if botID != nil {
		query += ` AND bot_id = $4`
		args = append(args, *botID)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get latency samples: %w", err)
	}
	defer rows.Close()

	var samples []models.LatencySample
	for rows.Next() {
		var (
			s        models.LatencySample
			dateTime time.Time
			bot      sql.NullInt64
			server   sql.NullFloat64
			llm      sql.NullFloat64
			fast     sql.NullFloat64
		)
		if err := rows.Scan(&dateTime, &bot, &s.ConversationID, &server, &llm, &fast); err != nil {
			return nil, fmt.Errorf("failed to scan latency sample: %w", err)
		}
		s.DateTime = dateTime
		s.Type = metricType
		s.BotID = int64Ptr(bot)
		s.ServerResponseTime = float64Ptr(server)
		s.LLMResponseTime = float64Ptr(llm)
		s.FastResponseTime = float64Ptr(fast)
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// UpsertDailyMetric writes one precomputed rollup row, replacing any
// previous rollup for the same (date, bot).
func (c *Client) UpsertDailyMetric(ctx context.Context, rollup models.MetricRollup) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO metric_by_day
		(date_time, bot_id, server_response_p90, server_response_p99,
		 llm_response_p90, llm_response_p99, fast_response_p90, fast_response_p99,
		 total_records, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (date_time, bot_id)
		DO UPDATE SET
			server_response_p90 = EXCLUDED.server_response_p90,
			server_response_p99 = EXCLUDED.server_response_p99,
			llm_response_p90 = EXCLUDED.llm_response_p90,
			llm_response_p99 = EXCLUDED.llm_response_p99,
			fast_response_p90 = EXCLUDED.fast_response_p90,
			fast_response_p99 = EXCLUDED.fast_response_p99,
			total_records = EXCLUDED.total_records,
			updated_at = EXCLUDED.updated_at
	`,
		rollup.Date,
		nullInt64(rollup.BotID),
		nullFloat64(rollup.ServerResponseP90),
		nullFloat64(rollup.ServerResponseP99),
		nullFloat64(rollup.LLMResponseP90),
		nullFloat64(rollup.LLMResponseP99),
		nullFloat64(rollup.FastResponseP90),
		nullFloat64(rollup.FastResponseP99),
		rollup.TotalRecords,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily metric: %w", err)
	}

	return nil
}

// ClearNullBotRollup removes the bot-less rollup row of a date. Postgres
// UNIQUE treats NULLs as distinct, so ON CONFLICT never matches these rows;
// recomputation deletes the old one instead.
func (c *Client) ClearNullBotRollup(ctx context.Context, date time.Time) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM metric_by_day WHERE date_time = $1 AND bot_id IS NULL`,
		date,
	)
	if err != nil {
		return fmt.Errorf("failed to clear bot-less rollup: %w", err)
	}
	return nil
}

// GetDailyMetricRollups reads precomputed per-day-per-bot rollups, newest
// date first.
func (c *Client) GetDailyMetricRollups(ctx context.Context, start, end time.Time, botID *int64) ([]models.MetricRollup, error) {
	query := `
		SELECT date_time, bot_id,
		       server_response_p90, server_response_p99,
		       llm_response_p90, llm_response_p99,
		       fast_response_p90, fast_response_p99,
		       total_records
		FROM metric_by_day
		WHERE date_time BETWEEN $1 AND $2
	`
	args := []interface{}{models.DateKey(start), models.DateKey(end)}
	if botID != nil {
		query += ` AND bot_id = $3`
		args = append(args, *botID)
	}
	query += ` ORDER BY date_time DESC, bot_id`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily metric rollups: %w", err)
	}
	defer rows.Close()

	var rollups []models.MetricRollup
	for rows.Next() {
		var (
			r         models.MetricRollup
			dateTime  time.Time
			bot       sql.NullInt64
			serverP90 sql.NullFloat64
			serverP99 sql.NullFloat64
			llmP90    sql.NullFloat64
			llmP99    sql.NullFloat64
			fastP90   sql.NullFloat64
			fastP99   sql.NullFloat64
		)
		err := rows.Scan(&dateTime, &bot, &serverP90, &serverP99, &llmP90, &llmP99, &fastP90, &fastP99, &r.TotalRecords)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily metric rollup: %w", err)
		}
		r.Date = models.DateKey(dateTime)
		r.BotID = int64Ptr(bot)
		r.ServerResponseP90 = float64Ptr(serverP90)
		r.ServerResponseP99 = float64Ptr(serverP99)
		r.LLMResponseP90 = float64Ptr(llmP90)
		r.LLMResponseP99 = float64Ptr(llmP99)
		r.FastResponseP90 = float64Ptr(fastP90)
		r.FastResponseP99 = float64Ptr(fastP99)
		rollups = append(rollups, r)
	}

	return rollups, rows.Err()
}

// InsertAccuracyRecords batch-inserts accuracy records in one transaction.
// Re-importing a conversation hits the message_id unique constraint, which
// keeps the natural key idempotent; conflicting rows are left untouched.
func (c *Client) InsertAccuracyRecords(ctx context.Context, records []models.AccuracyRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO intent_acc_metric
		(user_id, bot_id, date_time, content, audio, intent, pattern, language,
		 corrected_content, conversation_id, message_id, context_question, corrected_intent, wer)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (message_id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range records {
		res, err := stmt.ExecContext(ctx,
			r.UserID,
			r.BotID,
			r.DateTime,
			nullString(r.Content),
			nullString(r.Audio),
			nullString(r.Intent),
			nullString(r.Pattern),
			nullString(r.Language),
			nullString(r.CorrectedContent),
			r.ConversationID,
			r.MessageID,
			nullString(r.ContextQuestion),
			nullString(r.CorrectedIntent),
			nullFloat64(r.WER),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert accuracy record: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit accuracy records: %w", err)
	}

	logger.Info("Accuracy records inserted", zap.Int("count", inserted))

	return inserted, nil
}

// GetAccuracyRecords returns records whose date_time falls in [start, end].
func (c *Client) GetAccuracyRecords(ctx context.Context, start, end time.Time) ([]models.AccuracyRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT user_id, bot_id, date_time, content, audio, intent, pattern, language,
		       corrected_content, conversation_id, message_id, context_question, corrected_intent, wer
		FROM intent_acc_metric
		WHERE DATE(date_time) BETWEEN $1 AND $2
		ORDER BY date_time
	`, models.DateKey(start), models.DateKey(end))
	if err != nil {
		return nil, fmt.Errorf("failed to get accuracy records: %w", err)
	}
	defer rows.Close()

	return scanAccuracyRecords(rows)
}

// GetRecordsForDate returns all records of a single calendar date; the
// correction update pass iterates these.
func (c *Client) GetRecordsForDate(ctx context.Context, date time.Time) ([]models.AccuracyRecord, error) {
	return c.GetAccuracyRecords(ctx, date, date)
}

// UpdateCorrection sets the correction fields of one record addressed by its
// natural key. Content, intent and the key itself are never modified here.
func (c *Client) UpdateCorrection(ctx context.Context, messageID string, correctedContent, correctedIntent *string, wer *float64) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE intent_acc_metric
		SET corrected_content = $2, corrected_intent = $3, wer = $4
		WHERE message_id = $1
	`, messageID, nullString(correctedContent), nullString(correctedIntent), nullFloat64(wer))
	if err != nil {
		return fmt.Errorf("failed to update correction: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		logger.Warn("Correction update matched no record", zap.String("message_id", messageID))
	}

	return nil
}

func scanAccuracyRecords(rows *sql.Rows) ([]models.AccuracyRecord, error) {
	var records []models.AccuracyRecord
	for rows.Next() {
		var (
			r                models.AccuracyRecord
			content          sql.NullString
			audio            sql.NullString
			intent           sql.NullString
			pattern          sql.NullString
			language         sql.NullString
			correctedContent sql.NullString
			contextQuestion  sql.NullString
			correctedIntent  sql.NullString
			wer              sql.NullFloat64
		)
		err := rows.Scan(
			&r.UserID, &r.BotID, &r.DateTime,
			&content, &audio, &intent, &pattern, &language,
			&correctedContent, &r.ConversationID, &r.MessageID,
			&contextQuestion, &correctedIntent, &wer,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan accuracy record: %w", err)
		}
		r.Content = stringPtr(content)
		r.Audio = stringPtr(audio)
		r.Intent = stringPtr(intent)
		r.Pattern = stringPtr(pattern)
		r.Language = stringPtr(language)
		r.CorrectedContent = stringPtr(correctedContent)
		r.ContextQuestion = stringPtr(contextQuestion)
		r.CorrectedIntent = stringPtr(correctedIntent)
		r.WER = float64Ptr(wer)
		records = append(records, r)
	}

	return records, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat64(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func float64Ptr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	return &f.Float64
}

func int64Ptr(i sql.NullInt64) *int64 {
	if !i.Valid {
		return nil
	}
	return &i.Int64
}
