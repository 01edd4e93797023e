package engine

import "strings"

// Correction labels arrive in the external reviewer vocabulary; the stored
// corrected intent uses the bot's own intent-outcome vocabulary.
var correctedIntentByLabel = map[string]string{
	"correct":    "intent_true",
	"wrong":      "intent_false",
	"irrelevant": "fallback",
	"silent":     "silent",
}

// MapCorrectedIntent translates an external correction label into the
// internal vocabulary. Lookup is trimmed and case-insensitive. Unknown
// labels pass through unchanged, case preserved, so a new external value
// surfaces in the data instead of disappearing.
func MapCorrectedIntent(label *string) *string {
	if label == nil {
		return nil
	}
	if mapped, ok := correctedIntentByLabel[strings.ToLower(strings.TrimSpace(*label))]; ok {
		return &mapped
	}
	return label
}
