package scheduler

import (
	"context"
	"time"
)

// Job is a unit of periodic work (re-filter, prune)
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string

	// Run must return promptly once ctx is cancelled.
	Run(ctx context.Context) error

	// Schedule is a cron spec with a leading seconds field,
	// e.g. "0 */15 * * * *", or a descriptor such as "@hourly".
	Schedule() string
}

// historySize 작업별 보관 실행 결과 수
const historySize = 100

// JobResult is one execution of a job, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// JobStats summarizes the retained history of a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
}

// history is a fixed-size ring of results, oldest overwritten first.
// Callers hold the scheduler lock.
type history struct {
	buf  []JobResult
	next int
	full bool
}

func newHistory(size int) *history {
	return &history{buf: make([]JobResult, size)}
}

func (h *history) add(r JobResult) {
	h.buf[h.next] = r
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
}

func (h *history) len() int {
	if h.full {
		return len(h.buf)
	}
	return h.next
}

// latest returns up to n results, newest first.
func (h *history) latest(n int) []JobResult {
	if n > h.len() {
		n = h.len()
	}
	out := make([]JobResult, 0, n)
	for i := 1; i <= n; i++ {
		idx := (h.next - i + len(h.buf)) % len(h.buf)
		out = append(out, h.buf[idx])
	}
	return out
}

func (h *history) stats(name, schedule string) JobStats {
	st := JobStats{JobName: name, Schedule: schedule}

	// newest first, so the first hit of each kind is the latest one
	for i, r := range h.latest(h.len()) {
		start := r.StartTime
		if i == 0 {
			st.LastRun = &start
		}
		if r.Success {
			st.SuccessCount++
			if st.LastSuccess == nil {
				st.LastSuccess = &start
			}
		} else {
			st.FailureCount++
			if st.LastFailure == nil {
				st.LastFailure = &start
			}
		}
	}

	st.TotalRuns = st.SuccessCount + st.FailureCount
	if st.TotalRuns > 0 {
		st.SuccessRate = float64(st.SuccessCount) / float64(st.TotalRuns)
	}
	return st
}
