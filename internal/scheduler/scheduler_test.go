package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/arbfilter/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string
	failures int32 // number of leading runs that fail
	calls    int32
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }

func (j *stubJob) Run(ctx context.Context) error {
	if atomic.AddInt32(&j.calls, 1) <= j.failures {
		return errors.New("transient")
	}
	return nil
}

type panickingJob struct {
	calls int32
}

func (j *panickingJob) Name() string     { return "panics" }
func (j *panickingJob) Schedule() string { return "* * * * * *" }

func (j *panickingJob) Run(ctx context.Context) error {
	atomic.AddInt32(&j.calls, 1)
	panic("arbitrage: quote became feasible after rejection")
}

func waitForHistory(t *testing.T, s *Scheduler, name string) []JobResult {
	t.Helper()
	var results []JobResult
	require.Eventually(t, func() bool {
		var err error
		results, err = s.GetJobHistory(name, 10)
		return err == nil && len(results) > 0
	}, 2*time.Second, 5*time.Millisecond)
	return results
}

func TestScheduler_AddAndRemove(t *testing.T) {
	s := New(logger.Nop())

	require.NoError(t, s.AddJob(&stubJob{name: "b", schedule: "@hourly"}))
	require.NoError(t, s.AddJob(&stubJob{name: "a", schedule: "0 */15 * * * *"}))
	assert.Error(t, s.AddJob(&stubJob{name: "a", schedule: "@hourly"}))
	assert.Error(t, s.AddJob(&stubJob{name: "bad", schedule: "every day"}))

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())
	assert.Len(t, s.cron.Entries(), 2)

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"b"}, s.GetAllJobs())
	assert.Len(t, s.cron.Entries(), 1)
}

func TestScheduler_RunJobRetries(t *testing.T) {
	s := New(logger.Nop(), WithRetry(3, time.Millisecond))
	job := &stubJob{name: "flaky", schedule: "@hourly", failures: 2}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("flaky"))
	results := waitForHistory(t, s, "flaky")

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, 3, results[0].Attempts)
	assert.Empty(t, results[0].Error)

	stats := s.GetJobStats()["flaky"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1.0, stats.SuccessRate)
	require.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)
}

func TestScheduler_RunJobGivesUp(t *testing.T) {
	s := New(logger.Nop(), WithRetry(1, time.Millisecond))
	require.NoError(t, s.AddJob(&stubJob{name: "broken", schedule: "@hourly", failures: 100}))

	require.NoError(t, s.RunJob("broken"))
	results := waitForHistory(t, s, "broken")

	assert.False(t, results[0].Success)
	assert.Equal(t, 2, results[0].Attempts)
	assert.Equal(t, "transient", results[0].Error)
	assert.Equal(t, 1, s.GetJobStats()["broken"].FailureCount)
}

func TestScheduler_StopCancelsRetryWait(t *testing.T) {
	s := New(logger.Nop(), WithRetry(3, time.Hour))
	require.NoError(t, s.AddJob(&stubJob{name: "slow", schedule: "@hourly", failures: 100}))
	s.Start()
	require.NoError(t, s.RunJob("slow"))

	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the retry wait")
	}

	results, err := s.GetJobHistory("slow", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Error, context.Canceled.Error())
}

func TestScheduler_UnknownJob(t *testing.T) {
	s := New(logger.Nop())
	assert.Error(t, s.RunJob("nope"))
	_, err := s.GetJobHistory("nope", 1)
	assert.Error(t, err)
}

func TestHistory_Ring(t *testing.T) {
	h := newHistory(historySize)
	assert.Empty(t, h.latest(5))
	assert.Zero(t, h.stats("x", "@hourly").SuccessRate)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < historySize+20; i++ {
		h.add(JobResult{StartTime: base.Add(time.Duration(i) * time.Minute), Success: i%2 == 0})
	}

	assert.Equal(t, historySize, h.len())
	latest := h.latest(3)
	require.Len(t, latest, 3)
	assert.Equal(t, base.Add(time.Duration(historySize+19)*time.Minute), latest[0].StartTime)
	assert.True(t, latest[0].StartTime.After(latest[1].StartTime))
	assert.Len(t, h.latest(1000), historySize)

	st := h.stats("x", "@hourly")
	assert.Equal(t, historySize, st.TotalRuns)
	assert.Equal(t, historySize/2, st.FailureCount)
	assert.InDelta(t, 0.5, st.SuccessRate, 1e-12)
	require.NotNil(t, st.LastRun)
	require.NotNil(t, st.LastSuccess)
	require.NotNil(t, st.LastFailure)
	assert.Equal(t, *st.LastRun, *st.LastFailure) // last index is odd
	assert.True(t, st.LastSuccess.Before(*st.LastFailure))
}

func TestScheduler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(logger.Nop(), WithRetry(0, time.Millisecond), WithRegisterer(reg))
	require.NoError(t, s.AddJob(&stubJob{name: "ok", schedule: "@hourly"}))
	require.NoError(t, s.AddJob(&stubJob{name: "bad", schedule: "@hourly", failures: 100}))

	require.NoError(t, s.RunJob("ok"))
	require.NoError(t, s.RunJob("bad"))
	waitForHistory(t, s, "ok")
	waitForHistory(t, s, "bad")

	assert.Equal(t, 1.0, testutil.ToFloat64(s.runs.WithLabelValues("ok", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.runs.WithLabelValues("bad", "failed")))
}

func TestScheduler_HistorySurvivesRemove(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&stubJob{name: "gone", schedule: "@hourly"}))
	require.NoError(t, s.RunJob("gone"))
	waitForHistory(t, s, "gone")

	require.NoError(t, s.RemoveJob("gone"))
	results, err := s.GetJobHistory("gone", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.NotContains(t, s.GetJobStats(), "gone")
}

func TestScheduler_RecoversJobPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(logger.Nop(), WithRetry(3, time.Millisecond), WithRegisterer(reg))
	job := &panickingJob{}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("panics"))
	results := waitForHistory(t, s, "panics")

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, 1, results[0].Attempts, "a panic is not retried")
	assert.Contains(t, results[0].Error, "became feasible after rejection")
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.calls))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.runs.WithLabelValues("panics", "failed")))
}

func TestScheduler_CronPanicKeepsRunning(t *testing.T) {
	s := New(logger.Nop(), WithRetry(0, time.Millisecond))
	job := &panickingJob{}
	require.NoError(t, s.AddJob(job))

	s.Start()
	defer s.Stop()

	// every second: two scheduled runs mean the first panic did not stop cron
	require.Eventually(t, func() bool {
		results, err := s.GetJobHistory("panics", 10)
		return err == nil && len(results) >= 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestScheduler_RunJobAfterStop(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&stubJob{name: "late", schedule: "@hourly"}))
	s.Start()
	s.Stop()

	assert.Error(t, s.RunJob("late"))
	results, err := s.GetJobHistory("late", 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}
