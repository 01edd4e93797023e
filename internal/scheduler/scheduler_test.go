package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidRunTime(t *testing.T) {
	_, err := New(nil, "25:99", "learn")
	require.Error(t, err)

	_, err = New(nil, "two am", "learn")
	require.Error(t, err)
}

func TestNextRunLaterToday(t *testing.T) {
	s, err := New(nil, "02:00", "learn")
	require.NoError(t, err)

	now := time.Date(2026, 8, 30, 1, 30, 0, 0, time.UTC)
	next := s.nextRun(now)
	assert.Equal(t, time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC), next)
}

func TestNextRunRollsToTomorrow(t *testing.T) {
	s, err := New(nil, "02:00", "learn")
	require.NoError(t, err)

	now := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)
	next := s.nextRun(now)
	assert.Equal(t, time.Date(2026, 8, 31, 2, 0, 0, 0, time.UTC), next)
}

func TestNextRunExactBoundaryIsTomorrow(t *testing.T) {
	s, err := New(nil, "02:00", "learn")
	require.NoError(t, err)

	// Firing exactly at the run time schedules the next day, never an
	// immediate re-run.
	now := time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC)
	next := s.nextRun(now)
	assert.Equal(t, time.Date(2026, 8, 31, 2, 0, 0, 0, time.UTC), next)
}
