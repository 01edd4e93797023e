package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Hngdcmnh/ai-metric/internal/storage/models"
	"github.com/Hngdcmnh/ai-metric/pkg/circuitbreaker"
	"github.com/Hngdcmnh/ai-metric/pkg/logger"
	"github.com/Hngdcmnh/ai-metric/pkg/retry"
)

// apiDateFormat is what the monitor API expects in query params.
const apiDateFormat = "02/01/2006"

// Client talks to the conversation-monitor REST API. The auth token guards
// the admin conversation-id listing; the monitor token guards everything
// under /robot/api/v1/monitor.
type Client struct {
	baseURL      string
	authToken    string
	monitorToken string
	httpClient   *http.Client
	breaker      *circuitbreaker.CircuitBreaker
	retryCfg     retry.Config
}

type Correction struct {
	CorrectedContent *string `json:"corrected_content"`
	CorrectedIntent  *string `json:"corrected_intent"`
}

type ResponseTimeRow struct {
	BotID              *int64   `json:"bot_id"`
	ServerResponseTime *float64 `json:"server_response_time"`
	LLMResponseTime    *float64 `json:"llm_response_time"`
	FastResponseTime   *float64 `json:"fast_response_time"`
}

type conversationMessage struct {
	ID               *string `json:"_id"`
	Character        string  `json:"character"`
	Content          *string `json:"content"`
	Intent           *string `json:"intent"`
	Audio            *string `json:"audio"`
	Pattern          *string `json:"pattern"`
	Language         *string `json:"language"`
	CorrectedContent *string `json:"corrected_content"`
	CorrectedIntent  *string `json:"corrected_intent"`
}

func NewClient(baseURL, authToken, monitorToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		authToken:    authToken,
		monitorToken: monitorToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: circuitbreaker.NewCircuitBreaker("monitor-api", circuitbreaker.Config{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
			Logger:           zap.NewNop(),
		}),
		retryCfg: retry.DefaultConfig(),
	}
}

// GetConversationIDs lists conversation ids in the [start, end] date range.
func (c *Client) GetConversationIDs(ctx context.Context, start, end time.Time) ([]int64, error) {
	params := url.Values{}
	params.Add("startDate", start.Format(apiDateFormat))
	params.Add("endDate", end.Format(apiDateFormat))
	params.Add("token", c.authToken)

	var envelope struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Data    struct {
			ConversationIDs []int64 `json:"conversation_ids"`
		} `json:"data"`
	}

	err := c.getJSON(ctx, "/web/admin/api/conversations/ids", params, &envelope)
	if err != nil {
		return nil, err
	}
	if envelope.Status != 200 {
		return nil, fmt.Errorf("monitor API error: %s", envelope.Message)
	}

	logger.Debug("Fetched conversation ids",
		zap.Int("count", len(envelope.Data.ConversationIDs)),
		zap.String("start", start.Format(apiDateFormat)),
		zap.String("end", end.Format(apiDateFormat)),
	)

	return envelope.Data.ConversationIDs, nil
}

// GetResponseTimes fetches the per-turn response-time rows of one
// conversation.
func (c *Client) GetResponseTimes(ctx context.Context, conversationID int64) ([]ResponseTimeRow, error) {
	params := url.Values{}
	params.Add("token", c.monitorToken)
	params.Add("conversation_id", fmt.Sprintf("%d", conversationID))

	var envelope struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Data []ResponseTimeRow `json:"data"`
		} `json:"data"`
	}

	err := c.getJSON(ctx, "/robot/api/v1/monitor/conversations/response_time", params, &envelope)
	if err != nil {
		return nil, err
	}
	if envelope.Status != 200 {
		return nil, fmt.Errorf("monitor API error: %s", envelope.Message)
	}

	return envelope.Data.Data, nil
}

// GetConversationLogs fetches the ordered message log plus conversation
// metadata for one conversation.
func (c *Client) GetConversationLogs(ctx context.Context, conversationID int64) (models.ConversationMeta, []models.Message, error) {
	params := url.Values{}
	params.Add("token", c.monitorToken)

	var envelope struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Data    struct {
			UserID string                `json:"user_id"`
			BotID  string                `json:"bot_id"`
			Date   string                `json:"date"`
			Data   []conversationMessage `json:"data"`
		} `json:"data"`
	}

	path := fmt.Sprintf("/robot/api/v1/monitor/conversations/%d", conversationID)
	err := c.getJSON(ctx, path, params, &envelope)
	if err != nil {
		return models.ConversationMeta{}, nil, err
	}
	if envelope.Status != 200 {
		return models.ConversationMeta{}, nil, fmt.Errorf("monitor API error: %s", envelope.Message)
	}

	meta := models.ConversationMeta{
		UserID:         envelope.Data.UserID,
		BotID:          envelope.Data.BotID,
		ConversationID: fmt.Sprintf("%d", conversationID),
		Date:           parseConversationDate(envelope.Data.Date),
	}
	if meta.UserID == "" {
		meta.UserID = "unknown_user"
	}
	if meta.BotID == "" {
		meta.BotID = "unknown_bot"
	}

	messages := make([]models.Message, 0, len(envelope.Data.Data))
	for _, m := range envelope.Data.Data {
		messages = append(messages, models.Message{
			Role:             models.ParseRole(m.Character),
			Content:          m.Content,
			Intent:           m.Intent,
			Audio:            m.Audio,
			Pattern:          m.Pattern,
			Language:         m.Language,
			CorrectedContent: m.CorrectedContent,
			CorrectedIntent:  m.CorrectedIntent,
			SequenceID:       m.ID,
		})
	}

	return meta, messages, nil
}

// GetCorrection looks up the human correction labels for one accuracy
// record. The correction store keys records as "pika-{messageID}". A
// missing key is not an error: it means no reviewer has labeled the record
// yet.
func (c *Client) GetCorrection(ctx context.Context, messageID string) (*Correction, bool, error) {
	params := url.Values{}
	params.Add("token", c.monitorToken)

	var envelope struct {
		Status  int        `json:"status"`
		Message string     `json:"message"`
		Data    Correction `json:"data"`
	}

	path := fmt.Sprintf("/robot/api/v1/monitor/corrections/pika-%s", url.PathEscape(messageID))
	err := c.getJSON(ctx, path, params, &envelope)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if envelope.Status == 404 {
		return nil, false, nil
	}
	if envelope.Status != 200 {
		return nil, false, fmt.Errorf("monitor API error: %s", envelope.Message)
	}

	return &envelope.Data, true, nil
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("monitor API returned status %d", e.status)
}

func isNotFound(err error) bool {
	se, ok := err.(*httpStatusError)
	return ok && se.status == http.StatusNotFound
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	// A 404 is a data answer, not a service failure: it must neither be
	// retried nor trip the breaker, so it is carried out-of-band.
	var notFound *httpStatusError

	err := retry.Do(ctx, c.retryCfg, func() error {
		notFound = nil
		return c.breaker.Execute(ctx, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Accept", "*/*")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				notFound = &httpStatusError{status: resp.StatusCode}
				return nil
			}
			if resp.StatusCode != http.StatusOK {
				return &httpStatusError{status: resp.StatusCode}
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}

			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			return nil
		})
	})
	if err != nil {
		return err
	}
	if notFound != nil {
		return notFound
	}
	return nil
}

func parseConversationDate(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Now()
}
