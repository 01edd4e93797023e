package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hngdcmnh/ai-metric/internal/storage/models"
	"github.com/Hngdcmnh/ai-metric/pkg/logger"
)

func init() {
	logger.Init("error", "console", "stdout")
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.URL, "auth-token", "monitor-token", 5*time.Second)
	client.retryCfg.InitialDelay = time.Millisecond
	return client, server
}

func TestGetConversationIDs(t *testing.T) {
	var gotQuery string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		assert.Equal(t, "/web/admin/api/conversations/ids", r.URL.Path)
		w.Write([]byte(`{"status":200,"message":"ok","data":{"conversation_ids":[101,102,103]}}`))
	})

	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	ids, err := client.GetConversationIDs(context.Background(), date, date)
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 102, 103}, ids)

	// Dates go over the wire as DD/MM/YYYY.
	assert.Contains(t, gotQuery, "startDate=30%2F08%2F2026")
	assert.Contains(t, gotQuery, "endDate=30%2F08%2F2026")
	assert.Contains(t, gotQuery, "token=auth-token")
}

func TestGetConversationIDsEnvelopeError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":403,"message":"invalid token","data":{}}`))
	})

	_, err := client.GetConversationIDs(context.Background(), time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestGetResponseTimes(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/robot/api/v1/monitor/conversations/response_time", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("conversation_id"))
		w.Write([]byte(`{"status":200,"message":"ok","data":{"data":[
			{"bot_id":7,"server_response_time":1.5,"llm_response_time":null,"fast_response_time":0.2},
			{"bot_id":null,"server_response_time":null,"llm_response_time":2.0,"fast_response_time":null}
		]}}`))
	})

	rows, err := client.GetResponseTimes(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NotNil(t, rows[0].BotID)
	assert.Equal(t, int64(7), *rows[0].BotID)
	assert.Equal(t, 1.5, *rows[0].ServerResponseTime)
	assert.Nil(t, rows[0].LLMResponseTime)

	assert.Nil(t, rows[1].BotID)
	assert.Equal(t, 2.0, *rows[1].LLMResponseTime)
}

func TestGetConversationLogs(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/robot/api/v1/monitor/conversations/42", r.URL.Path)
		w.Write([]byte(`{"status":200,"message":"ok","data":{
			"user_id":"","bot_id":"bot-9","date":"2026-08-30",
			"data":[
				{"_id":"m1","character":"BOT_RESPONSE_CONVERSATION","content":"hello"},
				{"_id":"m2","character":"USER","content":"hi","intent":"greeting"}
			]}}`))
	})

	meta, messages, err := client.GetConversationLogs(context.Background(), 42)
	require.NoError(t, err)

	// Missing ids fall back to placeholders rather than empty strings.
	assert.Equal(t, "unknown_user", meta.UserID)
	assert.Equal(t, "bot-9", meta.BotID)
	assert.Equal(t, "42", meta.ConversationID)
	assert.Equal(t, "2026-08-30", models.DateKey(meta.Date))

	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleBot, messages[0].Role)
	assert.Equal(t, models.RoleUser, messages[1].Role)
	assert.Equal(t, "greeting", *messages[1].Intent)
	assert.Equal(t, "m2", *messages[1].SequenceID)
}

func TestGetCorrectionFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/robot/api/v1/monitor/corrections/pika-conv1_m2", r.URL.Path)
		w.Write([]byte(`{"status":200,"message":"ok","data":{"corrected_content":"turn on the light","corrected_intent":"correct"}}`))
	})

	correction, found, err := client.GetCorrection(context.Background(), "conv1_m2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "turn on the light", *correction.CorrectedContent)
	assert.Equal(t, "correct", *correction.CorrectedIntent)
}

func TestGetCorrectionNotFound(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	correction, found, err := client.GetCorrection(context.Background(), "conv1_m2")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, correction)

	// A missing correction is a data answer: one request, no retries.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"status":200,"message":"ok","data":{"conversation_ids":[1]}}`))
	})

	ids, err := client.GetConversationIDs(context.Background(), time.Now(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestParseConversationDate(t *testing.T) {
	parsed := parseConversationDate("2026-08-30T10:15:00")
	assert.Equal(t, "2026-08-30", models.DateKey(parsed))

	parsed = parseConversationDate("2026-08-30")
	assert.Equal(t, "2026-08-30", models.DateKey(parsed))

	// Unparseable input falls back to now instead of a zero time.
	assert.False(t, parseConversationDate("not-a-date").IsZero())
}
