package engine

import (
	"strings"

	"github.com/Hngdcmnh/ai-metric/internal/storage/models"
)

// BuildPairs walks an ordered conversation log once and emits
// (context question, user turn) pairs. Consecutive bot contents accumulate
// into the context for the next user turn; the first bot message after an
// emitted pair resolves that pair's intent and is never re-resolved. Any
// other role resets the accumulator.
//
// A user turn with no accumulated bot content emits nothing: a pair with an
// empty context question would be unanswerable downstream, so those turns
// are dropped on purpose. Trailing bot content with no following user turn
// is likewise discarded. BuildPairs never fails; missing fields carry
// through as nil.
func BuildPairs(messages []models.Message) []models.Pair {
	var pairs []models.Pair
	var pending []string

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleBot:
			if msg.Content != nil && *msg.Content != "" {
				pending = append(pending, *msg.Content)
			}
			// This bot message is the resolver for the most recently
			// emitted pair only, and only while that pair is unresolved.
			if len(pairs) > 0 && pairs[len(pairs)-1].ResolvedIntent == nil {
				pairs[len(pairs)-1].ResolvedIntent = msg.Intent
			}
		case models.RoleUser:
			if len(pending) > 0 {
				pairs = append(pairs, models.Pair{
					ContextQuestion: strings.Join(pending, " "),
					User:            msg,
				})
				pending = nil
			}
		default:
			pending = nil
		}
	}

	return pairs
}
