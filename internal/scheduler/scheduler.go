package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Hngdcmnh/ai-metric/internal/ingestion"
	"github.com/Hngdcmnh/ai-metric/pkg/logger"
)

// Scheduler fires the daily latency ingestion once a day at a fixed local
// wall-clock time, covering the previous calendar day.
type Scheduler struct {
	processor  *ingestion.Processor
	runTime    string
	metricType string
	stop       chan struct{}
	done       chan struct{}
}

func New(processor *ingestion.Processor, runTime, metricType string) (*Scheduler, error) {
	if _, err := time.Parse("15:04", runTime); err != nil {
		return nil, fmt.Errorf("invalid scheduler run time %q: %w", runTime, err)
	}
	return &Scheduler{
		processor:  processor,
		runTime:    runTime,
		metricType: metricType,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Start launches the scheduling loop in its own goroutine.
func (s *Scheduler) Start() {
	go s.run()
	logger.Info("Scheduler started",
		zap.String("run_time", s.runTime),
		zap.String("metric_type", s.metricType),
	)
}

// Stop shuts the loop down and waits for an in-flight run to observe
// cancellation.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
	logger.Info("Scheduler stopped")
}

func (s *Scheduler) run() {
	defer close(s.done)

	for {
		wait := time.Until(s.nextRun(time.Now()))
		timer := time.NewTimer(wait)

		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		yesterday := time.Now().AddDate(0, 0, -1)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)

		inserted, err := s.processor.RunDailyLatencyJob(ctx, yesterday, s.metricType)
		if err != nil {
			logger.Error("Scheduled latency job failed", zap.Error(err))
		} else {
			logger.Info("Scheduled latency job finished", zap.Int("inserted", inserted))
		}
		cancel()
	}
}

// nextRun returns the next wall-clock occurrence of the configured HH:MM
// strictly after now.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	at, _ := time.Parse("15:04", s.runTime)
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
