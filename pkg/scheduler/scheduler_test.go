package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPreviousHourZeroesMinutesAndSteps(t *testing.T) {
	t0 := time.Date(2024, 3, 15, 9, 47, 12, 0, time.UTC)
	got := PreviousHour(t0)
	assert.Equal(t, time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC), got)
}

func TestPreviousDaySteps(t *testing.T) {
	t0 := time.Date(2024, 3, 15, 0, 15, 0, 0, time.UTC)
	got := PreviousDay(t0)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), got)
}

func TestPreviousMonthStepsAcrossYearBoundary(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC)
	got := PreviousMonth(t0)
	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestSchedulerRunsJobOnTick(t *testing.T) {
	var count int32
	job := Job{
		Name:     "test",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&count, 1)
			return nil
		},
	}

	s := New([]Job{job}, nil, nil)
	s.Start()
	time.Sleep(35 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(2))
}

func TestSchedulerRetriesOnFailure(t *testing.T) {
	var attempts int32
	job := Job{
		Name:       "test",
		Interval:   50 * time.Millisecond,
		MaxRetries: 2,
		BaseDelay:  1 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&attempts, 1)
			return errors.New("boom")
		},
	}

	s := New([]Job{job}, nil, nil)
	s.Start()
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt32(&attempts), int32(3))
}
