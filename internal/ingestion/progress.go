package ingestion

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Hngdcmnh/ai-metric/pkg/logger"
)

// ProgressEvent describes one step of a running ingestion job. Events are
// best-effort: a slow subscriber misses events rather than stalling the job.
type ProgressEvent struct {
	RunID   string `json:"run_id"`
	Job     string `json:"job"`
	Stage   string `json:"stage"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[chan ProgressEvent]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan ProgressEvent]struct{}),
	}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the listener goes away.
func (b *Broadcaster) Subscribe() (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, 64)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}

	return ch, cancel
}

func (b *Broadcaster) Publish(event ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			logger.Debug("Dropping progress event for slow subscriber",
				zap.String("run_id", event.RunID),
				zap.String("stage", event.Stage),
			)
		}
	}
}
