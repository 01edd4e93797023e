package models

import "time"

type Role string

const (
	RoleBot   Role = "BOT"
	RoleUser  Role = "USER"
	RoleOther Role = "OTHER"
)

// ParseRole maps the monitor API "character" field onto the internal role
// vocabulary. Anything that is not a bot response or a user turn resets the
// pairing state, so it all collapses to RoleOther.
func ParseRole(character string) Role {
	switch character {
	case "BOT_RESPONSE_CONVERSATION":
		return RoleBot
	case "USER":
		return RoleUser
	default:
		return RoleOther
	}
}

// Message is one entry of an ordered conversation log. Order is significant:
// pairing is defined entirely by the position of messages in the slice.
type Message struct {
	Role             Role
	Content          *string
	Intent           *string
	Audio            *string
	Pattern          *string
	Language         *string
	CorrectedContent *string
	CorrectedIntent  *string
	SequenceID       *string
}

// Pair is one (bot context, user turn, resolved intent) triple. It only
// lives for the duration of a single conversation's processing.
type Pair struct {
	ContextQuestion string
	User            Message
	ResolvedIntent  *string
}

// LatencySample is one response-time event for a conversation. Any of the
// three measurement channels may be absent independently.
type LatencySample struct {
	BotID              *int64
	ConversationID     string
	FastResponseTime   *float64
	LLMResponseTime    *float64
	ServerResponseTime *float64
	Type               string
	DateTime           time.Time
}

// AccuracyRecord is the persisted form of one Pair. MessageID is the natural
// key ({conversationID}_{sequenceID or pair index}); correction updates
// address records through it and never rewrite it.
type AccuracyRecord struct {
	UserID           string
	BotID            string
	DateTime         time.Time
	Content          *string
	Audio            *string
	Intent           *string
	Pattern          *string
	Language         *string
	CorrectedContent *string
	ConversationID   string
	MessageID        string
	ContextQuestion  *string
	CorrectedIntent  *string
	WER              *float64
}

// DailyLatencyMetric is one chart point: percentile summaries for a single
// calendar date across all contributing bots. Channel percentiles are nil
// when that channel had no samples; TotalRecords sums the three channel
// counts, not the distinct sample count.
type DailyLatencyMetric struct {
	Date              string   `json:"date_time"`
	BotID             *string  `json:"bot_id"`
	BotIDs            []int64  `json:"bot_ids"`
	ServerResponseP90 *float64 `json:"server_response_p90"`
	ServerResponseP99 *float64 `json:"server_response_p99"`
	LLMResponseP90    *float64 `json:"llm_response_p90"`
	LLMResponseP99    *float64 `json:"llm_response_p99"`
	FastResponseP90   *float64 `json:"fast_response_p90"`
	FastResponseP99   *float64 `json:"fast_response_p99"`
	TotalRecords      int      `json:"total_records"`
}

// DailyAccuracyMetric is one day of intent accuracy. Percentages are
// relative to the count of records that carry a corrected intent; records
// still awaiting human correction stay outside the denominator.
type DailyAccuracyMetric struct {
	Date                string  `json:"date"`
	IntentAccuracy      float64 `json:"intent_accuracy"`
	IntentErrorDueToASR float64 `json:"intent_error_due_to_asr"`
	IntentErrorNotASR   float64 `json:"intent_error_not_asr"`
	TotalRecords        int     `json:"total_records"`
	CorrectCount        int     `json:"correct_count"`
	IncorrectDueToWER   int     `json:"incorrect_due_to_wer"`
	IncorrectNotASR     int     `json:"incorrect_not_asr"`
}

// MetricRollup is one persisted metric_by_day row: precomputed percentiles
// for a single (date, bot) pair. The UNIQUE(date_time, bot_id) constraint
// makes recomputation an idempotent upsert.
type MetricRollup struct {
	Date              string
	BotID             *int64
	ServerResponseP90 *float64
	ServerResponseP99 *float64
	LLMResponseP90    *float64
	LLMResponseP99    *float64
	FastResponseP90   *float64
	FastResponseP99   *float64
	TotalRecords      int
}

// ConversationMeta is the conversation-level metadata returned alongside a
// message log.
type ConversationMeta struct {
	UserID         string
	BotID          string
	ConversationID string
	Date           time.Time
}

// NormalizeMetricType maps the dashboard metric type onto the stored
// partition type. The dashboard's "learn" data lives under "workflow".
func NormalizeMetricType(metricType string) string {
	if metricType == "learn" {
		return "workflow"
	}
	return metricType
}

// DateKey is the canonical day-bucket key and wire format for dates.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
