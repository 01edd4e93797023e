package engine

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/Hngdcmnh/ai-metric/internal/storage/models"
)

type latencyBucket struct {
	date           string
	botIDs         map[int64]struct{}
	serverResponse []float64
	llmResponse    []float64
	fastResponse   []float64
}

// AggregateLatencyByDay groups raw latency samples into one row per calendar
// date within [start, end], newest date first. Bot identity never splits
// rows: a chart shows one point per day even when several bots contributed,
// so bot ids are collapsed into a display value plus the full sorted list.
// The three measurement channels are collected independently, dropping nulls
// per channel, and a day with no qualifying measurement on any channel is
// omitted rather than emitted as a zero row.
func AggregateLatencyByDay(samples []models.LatencySample, start, end time.Time, botFilter *int64) []models.DailyLatencyMetric {
	startKey := models.DateKey(start)
	endKey := models.DateKey(end)

	buckets := make(map[string]*latencyBucket)
	for _, s := range samples {
		key := models.DateKey(s.DateTime)
		if key < startKey || key > endKey {
			continue
		}
		if botFilter != nil && (s.BotID == nil || *s.BotID != *botFilter) {
			continue
		}

		b, ok := buckets[key]
		if !ok {
			b = &latencyBucket{date: key, botIDs: make(map[int64]struct{})}
			buckets[key] = b
		}

		if s.BotID != nil {
			b.botIDs[*s.BotID] = struct{}{}
		}
		if s.ServerResponseTime != nil {
			b.serverResponse = append(b.serverResponse, *s.ServerResponseTime)
		}
		if s.LLMResponseTime != nil {
			b.llmResponse = append(b.llmResponse, *s.LLMResponseTime)
		}
		if s.FastResponseTime != nil {
			b.fastResponse = append(b.fastResponse, *s.FastResponseTime)
		}
	}

	results := make([]models.DailyLatencyMetric, 0, len(buckets))
	for _, b := range buckets {
		total := len(b.serverResponse) + len(b.llmResponse) + len(b.fastResponse)
		if total == 0 {
			continue
		}

		serverP90, serverP99 := channelPercentiles(b.serverResponse)
		llmP90, llmP99 := channelPercentiles(b.llmResponse)
		fastP90, fastP99 := channelPercentiles(b.fastResponse)

		botIDs := make([]int64, 0, len(b.botIDs))
		for id := range b.botIDs {
			botIDs = append(botIDs, id)
		}
		sort.Slice(botIDs, func(i, j int) bool { return botIDs[i] < botIDs[j] })

		results = append(results, models.DailyLatencyMetric{
			Date:              b.date,
			BotID:             botDisplay(botIDs),
			BotIDs:            botIDs,
			ServerResponseP90: serverP90,
			ServerResponseP99: serverP99,
			LLMResponseP90:    llmP90,
			LLMResponseP99:    llmP99,
			FastResponseP90:   fastP90,
			FastResponseP99:   fastP99,
			TotalRecords:      total,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Date > results[j].Date })

	return results
}

func channelPercentiles(values []float64) (*float64, *float64) {
	if len(values) == 0 {
		return nil, nil
	}
	p90 := Percentile(values, 90)
	p99 := Percentile(values, 99)
	return &p90, &p99
}

func botDisplay(botIDs []int64) *string {
	switch len(botIDs) {
	case 0:
		return nil
	case 1:
		s := strconv.FormatInt(botIDs[0], 10)
		return &s
	default:
		s := fmt.Sprintf("%d bots", len(botIDs))
		return &s
	}
}
