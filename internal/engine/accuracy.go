package engine

import (
	"math"
	"sort"
	"time"

	"github.com/Hngdcmnh/ai-metric/internal/storage/models"
)

type accuracyBucket struct {
	total             int
	correct           int
	incorrectDueToWER int
	incorrectNotASR   int
}

// AggregateAccuracyByDay groups accuracy records into one row per calendar
// date within [start, end], oldest date first (the accuracy chart reads left
// to right; latency intentionally keeps the opposite ordering). The
// denominator for a day counts only records with a corrected intent;
// records awaiting human correction are excluded, not treated as incorrect.
// Incorrect records split into two disjoint causes: a positive WER points at
// the transcription, everything else at the intent model. Days with an
// empty denominator are omitted.
func AggregateAccuracyByDay(records []models.AccuracyRecord, start, end time.Time) []models.DailyAccuracyMetric {
	startKey := models.DateKey(start)
	endKey := models.DateKey(end)

	buckets := make(map[string]*accuracyBucket)
	for _, r := range records {
		key := models.DateKey(r.DateTime)
		if key < startKey || key > endKey {
			continue
		}
		if r.CorrectedIntent == nil {
			continue
		}

		b, ok := buckets[key]
		if !ok {
			b = &accuracyBucket{}
			buckets[key] = b
		}

		b.total++
		switch {
		case r.Intent != nil && *r.Intent == *r.CorrectedIntent:
			b.correct++
		case r.WER != nil && *r.WER > 0:
			b.incorrectDueToWER++
		default:
			b.incorrectNotASR++
		}
	}

	results := make([]models.DailyAccuracyMetric, 0, len(buckets))
	for key, b := range buckets {
		results = append(results, models.DailyAccuracyMetric{
			Date:                key,
			IntentAccuracy:      percentage(b.correct, b.total),
			IntentErrorDueToASR: percentage(b.incorrectDueToWER, b.total),
			IntentErrorNotASR:   percentage(b.incorrectNotASR, b.total),
			TotalRecords:        b.total,
			CorrectCount:        b.correct,
			IncorrectDueToWER:   b.incorrectDueToWER,
			IncorrectNotASR:     b.incorrectNotASR,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Date < results[j].Date })

	return results
}

// AccuracyForRecords computes the single accuracy percentage over a record
// set, using the same corrected-intent denominator as the per-day
// aggregation. It returns nil when no record carries a corrected intent:
// callers must be able to tell "no data" apart from 0% accuracy.
func AccuracyForRecords(records []models.AccuracyRecord) *float64 {
	total := 0
	correct := 0
	for _, r := range records {
		if r.CorrectedIntent == nil {
			continue
		}
		total++
		if r.Intent != nil && *r.Intent == *r.CorrectedIntent {
			correct++
		}
	}

	if total == 0 {
		return nil
	}

	acc := percentage(correct, total)
	return &acc
}

func percentage(count, total int) float64 {
	return round2(float64(count) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
