package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Hngdcmnh/ai-metric/internal/storage/models"
)

func record(date string, intent, corrected *string, wer *float64) models.AccuracyRecord {
	return models.AccuracyRecord{
		ConversationID:  "conv",
		MessageID:       "conv_1",
		DateTime:        day(date),
		Intent:          intent,
		CorrectedIntent: corrected,
		WER:             wer,
	}
}

func TestAggregateAccuracyByDay(t *testing.T) {
	start := day("2025-11-01")
	end := day("2025-11-07")

	t.Run("denominator counts only corrected records", func(t *testing.T) {
		records := []models.AccuracyRecord{
			record("2025-11-03", strPtr("intent_true"), strPtr("intent_true"), nil),
			record("2025-11-03", strPtr("intent_true"), nil, nil),
			record("2025-11-03", strPtr("intent_true"), nil, nil),
		}

		rows := AggregateAccuracyByDay(records, start, end)
		if assert.Len(t, rows, 1) {
			assert.Equal(t, 1, rows[0].TotalRecords)
			assert.Equal(t, 100.0, rows[0].IntentAccuracy)
		}
	})

	t.Run("day with no corrected records is absent, not zero", func(t *testing.T) {
		records := []models.AccuracyRecord{
			record("2025-11-03", strPtr("intent_true"), nil, nil),
			record("2025-11-04", strPtr("intent_true"), strPtr("intent_true"), nil),
		}

		rows := AggregateAccuracyByDay(records, start, end)
		if assert.Len(t, rows, 1) {
			assert.Equal(t, "2025-11-04", rows[0].Date)
		}
	})

	t.Run("incorrect splits by whether the transcription erred", func(t *testing.T) {
		records := []models.AccuracyRecord{
			record("2025-11-03", strPtr("intent_true"), strPtr("intent_true"), nil),
			record("2025-11-03", strPtr("intent_true"), strPtr("intent_false"), f64Ptr(0.5)),
			record("2025-11-03", strPtr("intent_true"), strPtr("intent_false"), f64Ptr(0)),
			record("2025-11-03", strPtr("intent_true"), strPtr("intent_false"), nil),
		}

		rows := AggregateAccuracyByDay(records, start, end)
		if assert.Len(t, rows, 1) {
			assert.Equal(t, 4, rows[0].TotalRecords)
			assert.Equal(t, 1, rows[0].CorrectCount)
			assert.Equal(t, 1, rows[0].IncorrectDueToWER)
			assert.Equal(t, 2, rows[0].IncorrectNotASR)
			assert.Equal(t, 25.0, rows[0].IntentAccuracy)
			assert.Equal(t, 25.0, rows[0].IntentErrorDueToASR)
			assert.Equal(t, 50.0, rows[0].IntentErrorNotASR)
		}
	})

	t.Run("nil intent with a corrected intent counts as incorrect", func(t *testing.T) {
		records := []models.AccuracyRecord{
			record("2025-11-03", nil, strPtr("intent_true"), nil),
		}

		rows := AggregateAccuracyByDay(records, start, end)
		if assert.Len(t, rows, 1) {
			assert.Equal(t, 0, rows[0].CorrectCount)
			assert.Equal(t, 1, rows[0].IncorrectNotASR)
		}
	})

	t.Run("percentages round to two decimals", func(t *testing.T) {
		records := []models.AccuracyRecord{
			record("2025-11-03", strPtr("intent_true"), strPtr("intent_true"), nil),
			record("2025-11-03", strPtr("intent_true"), strPtr("intent_false"), nil),
			record("2025-11-03", strPtr("intent_true"), strPtr("intent_false"), nil),
		}

		rows := AggregateAccuracyByDay(records, start, end)
		if assert.Len(t, rows, 1) {
			assert.Equal(t, 33.33, rows[0].IntentAccuracy)
			assert.Equal(t, 66.67, rows[0].IntentErrorNotASR)
		}
	})

	t.Run("rows sort oldest first", func(t *testing.T) {
		records := []models.AccuracyRecord{
			record("2025-11-05", strPtr("a"), strPtr("a"), nil),
			record("2025-11-02", strPtr("a"), strPtr("a"), nil),
			record("2025-11-04", strPtr("a"), strPtr("a"), nil),
		}

		rows := AggregateAccuracyByDay(records, start, end)
		if assert.Len(t, rows, 3) {
			assert.Equal(t, "2025-11-02", rows[0].Date)
			assert.Equal(t, "2025-11-04", rows[1].Date)
			assert.Equal(t, "2025-11-05", rows[2].Date)
		}
	})

	t.Run("records outside the range are ignored", func(t *testing.T) {
		records := []models.AccuracyRecord{
			record("2025-10-30", strPtr("a"), strPtr("a"), nil),
		}

		assert.Empty(t, AggregateAccuracyByDay(records, start, end))
	})
}

func TestAccuracyForRecords(t *testing.T) {
	t.Run("nil on empty denominator, not zero", func(t *testing.T) {
		records := []models.AccuracyRecord{
			record("2025-11-03", strPtr("intent_true"), nil, nil),
		}
		assert.Nil(t, AccuracyForRecords(records))
		assert.Nil(t, AccuracyForRecords(nil))
	})

	t.Run("zero percent is distinct from no data", func(t *testing.T) {
		records := []models.AccuracyRecord{
			record("2025-11-03", strPtr("intent_true"), strPtr("intent_false"), nil),
		}
		got := AccuracyForRecords(records)
		if assert.NotNil(t, got) {
			assert.Equal(t, 0.0, *got)
		}
	})

	t.Run("matches the per-day definition", func(t *testing.T) {
		records := []models.AccuracyRecord{
			record("2025-11-03", strPtr("intent_true"), strPtr("intent_true"), nil),
			record("2025-11-03", strPtr("intent_true"), strPtr("intent_false"), nil),
			record("2025-11-03", strPtr("x"), nil, nil),
		}
		got := AccuracyForRecords(records)
		if assert.NotNil(t, got) {
			assert.Equal(t, 50.0, *got)
		}
	})
}
