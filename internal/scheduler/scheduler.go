package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"

	"github.com/wonny/arbfilter/pkg/logger"
)

// Scheduler runs jobs on cron schedules with bounded retries
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron    *cron.Cron
	log     *logger.Logger
	mu      sync.RWMutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
	history map[string]*history // kept after RemoveJob

	// Stop cancels ctx and waits on wg (RunJob goroutines only; cron waits
	// for its own)
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool

	maxRetries int
	retryDelay time.Duration

	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRetry overrides the retry policy (default 3 retries, 1 minute apart).
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(s *Scheduler) {
		s.maxRetries = maxRetries
		s.retryDelay = delay
	}
}

// WithRegisterer exports job run counters and durations.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Scheduler) {
		f := promauto.With(reg)
		s.runs = f.NewCounterVec(prometheus.CounterOpts{
			Name: "arbfilter_scheduler_runs_total",
			Help: "Scheduled job executions by outcome.",
		}, []string{"job", "status"})
		s.duration = f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arbfilter_scheduler_run_duration_seconds",
			Help:    "Scheduled job duration, retries included.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"job"})
	}
}

// New creates a scheduler. Schedules take a leading seconds field.
func New(log *logger.Logger, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		log:        log,
		jobs:       make(map[string]Job),
		entries:    make(map[string]cron.EntryID),
		history:    make(map[string]*history),
		ctx:        ctx,
		cancel:     cancel,
		maxRetries: 3,
		retryDelay: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddJob registers job under its name.
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() { s.execute(job) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = job
	s.entries[name] = id
	if _, ok := s.history[name]; !ok {
		s.history[name] = newHistory(historySize)
	}

	s.log.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")
	return nil
}

// RemoveJob unschedules a job. Its history stays queryable.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	s.cron.Remove(id)
	delete(s.jobs, name)
	delete(s.entries, name)

	s.log.WithField("job", name).Info("Job removed from scheduler")
	return nil
}

// Start starts the cron loop.
func (s *Scheduler) Start() {
	s.log.Info("Starting scheduler")
	s.cron.Start()
}

// Stop halts the cron loop, cancels running jobs and waits for them.
func (s *Scheduler) Stop() {
	s.log.Info("Stopping scheduler")
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronDone := s.cron.Stop() // done once running cron jobs return
	s.cancel()
	<-cronDone.Done()
	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}

// RunJob starts a job now, outside its schedule.
func (s *Scheduler) RunJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	if s.stopped {
		return fmt.Errorf("job %s: scheduler stopped", name)
	}

	// Add happens under mu, so it never races the Wait in Stop
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(job)
	}()
	return nil
}

// =============================================================================
// Execution
// =============================================================================

// panicError is a recovered job panic. It is not retried.
type panicError struct {
	value interface{}
}

func (e *panicError) Error() string { return fmt.Sprintf("job panicked: %v", e.value) }

// run calls job.Run and turns a panic into an error, so one broken job run
// cannot take the process down.
func (s *Scheduler) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return job.Run(s.ctx)
}

// attempt runs job until it succeeds, retries run out or Stop is called.
func (s *Scheduler) attempt(job Job) (int, error) {
	var err error
	for n := 1; ; n++ {
		if err = s.run(job); err == nil {
			return n, nil
		}
		var pe *panicError
		if n > s.maxRetries || errors.As(err, &pe) {
			return n, err
		}

		s.log.WithFields(map[string]interface{}{
			"job":     job.Name(),
			"attempt": n,
			"error":   err.Error(),
		}).Warn("Job execution failed, retrying")

		select {
		case <-s.ctx.Done():
			return n, fmt.Errorf("%w (last error: %v)", s.ctx.Err(), err)
		case <-time.After(s.retryDelay):
		}
	}
}

func (s *Scheduler) execute(job Job) {
	name := job.Name()
	log := s.log.WithField("job", name)
	log.Info("Job started")

	start := time.Now()
	attempts, err := s.attempt(job)
	end := time.Now()

	result := JobResult{
		JobName:   name,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Attempts:  attempts,
		Success:   err == nil,
	}
	if err != nil {
		result.Error = err.Error()
	}

	s.observe(result)
	s.mu.Lock()
	if h, ok := s.history[name]; ok {
		h.add(result)
	}
	s.mu.Unlock()

	fields := map[string]interface{}{
		"duration": result.Duration,
		"attempts": attempts,
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Job failed after all retries")
		return
	}
	log.WithFields(fields).Info("Job completed successfully")
}

func (s *Scheduler) observe(r JobResult) {
	if s.runs == nil {
		return
	}
	status := "ok"
	if !r.Success {
		status = "failed"
	}
	s.runs.WithLabelValues(r.JobName, status).Inc()
	s.duration.WithLabelValues(r.JobName).Observe(r.Duration.Seconds())
}

// =============================================================================
// Queries
// =============================================================================

// GetJobHistory returns up to n results of a job, newest first.
func (s *Scheduler) GetJobHistory(name string, n int) ([]JobResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.history[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	return h.latest(n), nil
}

// GetAllJobs returns the scheduled job names, sorted.
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetJobStats summarizes every scheduled job.
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats, len(s.jobs))
	for name, job := range s.jobs {
		stats[name] = s.history[name].stats(name, job.Schedule())
	}
	return stats
}
