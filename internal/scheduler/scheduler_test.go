package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexalert/internal/metrics"
	"dexalert/internal/scan"
)

type blockingJobs struct {
	release   chan struct{}
	started   chan struct{}
	scans     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	summaries atomic.Int32
}

func newBlockingJobs() *blockingJobs {
	return &blockingJobs{release: make(chan struct{}), started: make(chan struct{}, 16)}
}

func (j *blockingJobs) ScanAll(ctx context.Context) (scan.Result, error) {
	n := j.active.Add(1)
	defer j.active.Add(-1)
	for {
		m := j.maxActive.Load()
		if n <= m || j.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	j.scans.Add(1)
	j.started <- struct{}{}

	select {
	case <-j.release:
	case <-ctx.Done():
		return scan.Result{}, ctx.Err()
	}
	return scan.Result{Processed: 1}, nil
}

func (j *blockingJobs) DailySummary(context.Context) (int, error) {
	j.summaries.Add(1)
	return 0, nil
}

func TestRunNow_SkipsWhileRunning(t *testing.T) {
	jobs := newBlockingJobs()
	s := New(jobs, "", "", metrics.New())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := s.RunNow(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, 1, res.Processed)
	}()

	<-jobs.started
	assert.True(t, s.Running())

	for i := 0; i < 5; i++ {
		_, err := s.RunNow(context.Background())
		assert.ErrorIs(t, err, ErrScanInProgress)
	}

	close(jobs.release)
	wg.Wait()

	assert.False(t, s.Running())
	assert.EqualValues(t, 1, jobs.scans.Load())
	assert.EqualValues(t, 1, jobs.maxActive.Load())

	// Free again once the first scan finished
	_, err := s.RunNow(context.Background())
	assert.NoError(t, err)
}

func TestTicksNeverOverlap(t *testing.T) {
	jobs := newBlockingJobs()
	s := New(jobs, "", "", nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.tickScan()
		}()
	}

	<-jobs.started
	time.Sleep(20 * time.Millisecond)
	close(jobs.release)
	wg.Wait()

	assert.EqualValues(t, 1, jobs.maxActive.Load())
}

func TestStartAndStop(t *testing.T) {
	jobs := newBlockingJobs()
	close(jobs.release)

	s := New(jobs, "@every 1s", "@every 1s", nil)
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool {
		return jobs.scans.Load() > 0 && jobs.summaries.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestStop_CancelsRunningScan(t *testing.T) {
	jobs := newBlockingJobs()
	s := New(jobs, "@every 1s", "0 0 * * *", nil)
	require.NoError(t, s.Start())

	select {
	case <-jobs.started:
	case <-time.After(3 * time.Second):
		t.Fatal("scan never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
	assert.False(t, s.Running())
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := New(newBlockingJobs(), "every now and then", "", nil)
	err := s.Start()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrScanInProgress))
	assert.Contains(t, err.Error(), "invalid scan schedule")
}
