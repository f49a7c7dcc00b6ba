package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestImmediateEverySchedule(t *testing.T) {
	t.Parallel()

	s := &immediateEvery{interval: time.Minute}
	start := time.Date(2025, time.December, 26, 16, 0, 0, 0, time.UTC)

	assert.Equal(t, start, s.Next(start))
	assert.Equal(t, start.Add(time.Minute), s.Next(start))
	assert.Equal(t, start.Add(2*time.Minute), s.Next(start.Add(time.Minute)))
}

func TestFirstRunIsImmediate(t *testing.T) {
	t.Parallel()

	ran := make(chan struct{}, 1)
	s := NewCronScheduler(quietLogger())
	require.NoError(t, s.Every("coindesk", time.Hour, func(context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	}))
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("first run was not triggered immediately")
	}
}

func TestFailingJobDoesNotAffectOthers(t *testing.T) {
	t.Parallel()

	var failing, healthy atomic.Int32
	s := NewCronScheduler(quietLogger())
	require.NoError(t, s.Every("broken", 20*time.Millisecond, func(context.Context) {
		failing.Add(1)
		panic("selector exploded")
	}))
	require.NoError(t, s.Every("healthy", 20*time.Millisecond, func(context.Context) {
		healthy.Add(1)
	}))
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	assert.Eventually(t, func() bool {
		return failing.Load() >= 3 && healthy.Load() >= 3
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRunsOfOneJobNeverOverlap(t *testing.T) {
	t.Parallel()

	var running, maxRunning, runs atomic.Int32
	s := NewCronScheduler(quietLogger())
	require.NoError(t, s.Every("slow", 5*time.Millisecond, func(context.Context) {
		n := running.Add(1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(40 * time.Millisecond)
		running.Add(-1)
		runs.Add(1)
	}))
	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestStopWaitsForInFlightRun(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var finished atomic.Bool

	s := NewCronScheduler(quietLogger())
	require.NoError(t, s.Every("vietstock", time.Hour, func(context.Context) {
		once.Do(func() { close(started) })
		<-release
		finished.Store(true)
	}))
	require.NoError(t, s.Start(context.Background()))
	<-started

	short, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.Error(t, s.Stop(short), "stop must report that the run is still going")

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.Background()) }()

	close(release)
	select {
	case err := <-stopped:
		require.NoError(t, err)
		assert.True(t, finished.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return after the run finished")
	}
}

func TestEveryValidation(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler(nil)
	noop := func(context.Context) {}

	assert.Error(t, s.Every("zero", 0, noop))
	assert.Error(t, s.Every("nil", time.Second, nil))
	require.NoError(t, s.Every("a", time.Hour, noop))
	assert.Error(t, s.Every("a", time.Hour, noop))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Every("late", time.Hour, noop), errAlreadyStarted)
	assert.ErrorIs(t, s.Start(context.Background()), errAlreadyStarted)
	require.NoError(t, s.Stop(context.Background()))
}
