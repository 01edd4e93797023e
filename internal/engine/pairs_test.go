package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Hngdcmnh/ai-metric/internal/storage/models"
)

func botMsg(content, intent string) models.Message {
	m := models.Message{Role: models.RoleBot}
	if content != "" {
		m.Content = strPtr(content)
	}
	if intent != "" {
		m.Intent = strPtr(intent)
	}
	return m
}

func userMsg(content string) models.Message {
	m := models.Message{Role: models.RoleUser}
	if content != "" {
		m.Content = strPtr(content)
	}
	return m
}

func TestBuildPairs(t *testing.T) {
	t.Run("consecutive bot contents merge into one context", func(t *testing.T) {
		pairs := BuildPairs([]models.Message{
			botMsg("hi", ""),
			botMsg("there", ""),
			userMsg("hello"),
			botMsg("good", "greet"),
		})

		if assert.Len(t, pairs, 1) {
			assert.Equal(t, "hi there", pairs[0].ContextQuestion)
			assert.Equal(t, "hello", *pairs[0].User.Content)
			if assert.NotNil(t, pairs[0].ResolvedIntent) {
				assert.Equal(t, "greet", *pairs[0].ResolvedIntent)
			}
		}
	})

	t.Run("user turn without preceding bot content is dropped", func(t *testing.T) {
		pairs := BuildPairs([]models.Message{
			userMsg("hello"),
			botMsg("welcome", "greet"),
			userMsg("thanks"),
		})

		if assert.Len(t, pairs, 1) {
			assert.Equal(t, "welcome", pairs[0].ContextQuestion)
			assert.Equal(t, "thanks", *pairs[0].User.Content)
		}
	})

	t.Run("resolved intent is never overwritten", func(t *testing.T) {
		pairs := BuildPairs([]models.Message{
			botMsg("question one", ""),
			userMsg("answer"),
			botMsg("feedback", "first"),
			botMsg("more feedback", "second"),
		})

		if assert.Len(t, pairs, 1) {
			assert.Equal(t, "first", *pairs[0].ResolvedIntent)
		}
	})

	t.Run("nil intent on the resolver leaves the pair open for the next bot", func(t *testing.T) {
		pairs := BuildPairs([]models.Message{
			botMsg("question", ""),
			userMsg("answer"),
			botMsg("ack", ""),
			botMsg("scored", "late"),
		})

		if assert.Len(t, pairs, 1) {
			if assert.NotNil(t, pairs[0].ResolvedIntent) {
				assert.Equal(t, "late", *pairs[0].ResolvedIntent)
			}
		}
	})

	t.Run("resolver only touches the most recent pair", func(t *testing.T) {
		pairs := BuildPairs([]models.Message{
			botMsg("q1", ""),
			userMsg("a1"),
			botMsg("q2", "intent1"),
			userMsg("a2"),
			botMsg("q3", "intent2"),
		})

		if assert.Len(t, pairs, 2) {
			assert.Equal(t, "intent1", *pairs[0].ResolvedIntent)
			assert.Equal(t, "intent2", *pairs[1].ResolvedIntent)
		}
	})

	t.Run("consecutive user turns only pair the first", func(t *testing.T) {
		pairs := BuildPairs([]models.Message{
			botMsg("question", ""),
			userMsg("first"),
			userMsg("second"),
			botMsg("next question", "scored"),
			userMsg("third"),
		})

		if assert.Len(t, pairs, 2) {
			assert.Equal(t, "first", *pairs[0].User.Content)
			assert.Equal(t, "third", *pairs[1].User.Content)
		}
	})

	t.Run("other roles reset the accumulator", func(t *testing.T) {
		pairs := BuildPairs([]models.Message{
			botMsg("lost context", ""),
			{Role: models.RoleOther},
			userMsg("hello"),
		})

		assert.Empty(t, pairs)
	})

	t.Run("trailing bot content produces no pair", func(t *testing.T) {
		pairs := BuildPairs([]models.Message{
			botMsg("question", ""),
			userMsg("answer"),
			botMsg("dangling", "x"),
			botMsg("more dangling", ""),
		})

		assert.Len(t, pairs, 1)
	})

	t.Run("bot messages without content still resolve intents", func(t *testing.T) {
		pairs := BuildPairs([]models.Message{
			botMsg("question", ""),
			userMsg("answer"),
			botMsg("", "silent_intent"),
		})

		if assert.Len(t, pairs, 1) {
			assert.Equal(t, "silent_intent", *pairs[0].ResolvedIntent)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, BuildPairs(nil))
	})
}
