package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/arbfilter/internal/arbitrage"
	"github.com/wonny/arbfilter/internal/processor"
	"github.com/wonny/arbfilter/internal/store"
	"github.com/wonny/arbfilter/internal/units"
	"github.com/wonny/arbfilter/pkg/logger"
	"github.com/wonny/arbfilter/pkg/redis"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrInvalidRunID = errors.New("invalid run id")
)

// RunStore persists finished runs.
type RunStore interface {
	SaveRun(ctx context.Context, rec store.RunRecord, rows []processor.Row) error
	GetRun(ctx context.Context, id uuid.UUID) (*store.RunRecord, error)
}

// RunCache keeps run summaries for fast lookup across restarts.
type RunCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// Request 필터 실행 요청
type Request struct {
	Source     string // api, cli, scheduler:<job>
	Input      processor.Input
	Options    arbitrage.Options
	ConfigHash string
}

// Run 완료된 실행
// Result is nil for runs loaded from the cache or the store.
type Run struct {
	Summary store.RunRecord
	Result  *processor.Result
}

// Service 필터 실행 관리
// ⭐ SSOT: 실행 등록, 저장, 알림은 여기서만
type Service struct {
	log     *logger.Logger
	store   RunStore
	cache   RunCache
	metrics *Metrics
	maxRuns int

	mu    sync.RWMutex
	runs  map[uuid.UUID]*Run
	order []uuid.UUID // oldest first

	subMu sync.Mutex
	subs  map[chan RunEvent]struct{}
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(log *logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithStore enables write-through persistence.
func WithStore(st RunStore) Option {
	return func(s *Service) { s.store = st }
}

// WithCache enables the summary cache.
func WithCache(c RunCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMaxRuns bounds the in-memory registry. Values below 1 are ignored.
func WithMaxRuns(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRuns = n
		}
	}
}

const defaultMaxRuns = 256

// New creates a service. Without WithMetrics it registers on a private
// registry.
func New(opts ...Option) *Service {
	s := &Service{
		log:     logger.Nop(),
		maxRuns: defaultMaxRuns,
		runs:    make(map[uuid.UUID]*Run),
		subs:    make(map[chan RunEvent]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(prometheus.NewRegistry())
	}
	return s
}

// =============================================================================
// Submit
// =============================================================================

// Submit builds, filters and registers one run. Store and cache failures are
// logged and counted; the run is still returned.
func (s *Service) Submit(ctx context.Context, req Request) (*Run, error) {
	if req.Source == "" {
		req.Source = "api"
	}
	if req.Options.Kind == "" {
		req.Options.Kind = arbitrage.KindStrike
	}
	kind := string(req.Options.Kind)
	log := s.log.WithFields(map[string]interface{}{"source": req.Source, "kind": kind})

	start := time.Now()
	p, err := processor.New(req.Input, processor.WithLogger(log))
	if err != nil {
		s.metrics.runs.WithLabelValues(kind, "invalid").Inc()
		return nil, err
	}
	res, err := p.Filter(req.Options)
	if err != nil {
		s.metrics.runs.WithLabelValues(kind, "failed").Inc()
		return nil, err
	}
	s.metrics.duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	s.metrics.runs.WithLabelValues(kind, "ok").Inc()

	run := &Run{
		Summary: store.RunRecord{
			ID:         uuid.New(),
			CreatedAt:  time.Now().UTC(),
			Source:     req.Source,
			Kind:       res.Kind(),
			ConfigHash: req.ConfigHash,
			Options:    res.Options(),
			Reports:    res.Reports(),
			NumQuotes:  res.NumQuotes(),
		},
		Result: res,
	}

	changed := 0
	for _, r := range run.Summary.Reports {
		s.metrics.changed.WithLabelValues(kind, "adjusted").Add(float64(r.Adjusted))
		s.metrics.changed.WithLabelValues(kind, "discarded").Add(float64(r.Discarded))
		changed += r.Changed()
	}

	s.register(run)
	if err := s.sink(ctx, run); err != nil {
		log.WithError(err).WithField("run_id", run.Summary.ID.String()).Error("run not fully persisted")
	}

	s.publish(RunEvent{
		ID:        run.Summary.ID.String(),
		CreatedAt: run.Summary.CreatedAt,
		Source:    run.Summary.Source,
		Kind:      kind,
		Expiries:  len(run.Summary.Reports),
		Quotes:    run.Summary.NumQuotes,
		Changed:   changed,
	})
	return run, nil
}

// sink writes the run to the store and cache concurrently.
func (s *Service) sink(ctx context.Context, run *Run) error {
	g, gctx := errgroup.WithContext(ctx)

	if s.store != nil {
		g.Go(func() error {
			rows, err := run.Result.QuoteTable(units.StrikeUnitMoneyness, units.PriceUnitNormalizedCall)
			if err != nil {
				return err
			}
			if err := s.store.SaveRun(gctx, run.Summary, rows); err != nil {
				s.metrics.sinks.WithLabelValues("store").Inc()
				return fmt.Errorf("store: %w", err)
			}
			return nil
		})
	}

	if s.cache != nil {
		g.Go(func() error {
			id := run.Summary.ID.String()
			for _, key := range []string{redis.RunKey(id), redis.LatestRunKey(run.Summary.Source)} {
				if err := s.cache.Set(gctx, key, run.Summary); err != nil {
					s.metrics.sinks.WithLabelValues("cache").Inc()
					return fmt.Errorf("cache: %w", err)
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// =============================================================================
// Registry
// =============================================================================

func (s *Service) register(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.Summary.ID] = run
	s.order = append(s.order, run.Summary.ID)
	for len(s.order) > s.maxRuns {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
		s.metrics.evictions.Inc()
	}
}

func parseID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidRunID, id)
	}
	return u, nil
}

// Get returns a run held in memory. Only these runs can answer quote and
// bound queries.
func (s *Service) Get(id string) (*Run, error) {
	u, err := parseID(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[u]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

// Summary looks a run up in memory, then the cache, then the store.
func (s *Service) Summary(ctx context.Context, id string) (*store.RunRecord, error) {
	u, err := parseID(id)
	if err != nil {
		return nil, err
	}

	if run, err := s.Get(id); err == nil {
		rec := run.Summary
		return &rec, nil
	}

	if s.cache != nil {
		var rec store.RunRecord
		found, err := s.cache.Get(ctx, redis.RunKey(id), &rec)
		if err != nil {
			s.log.WithError(err).Warn("run cache lookup failed")
		}
		if found {
			return &rec, nil
		}
	}

	if s.store != nil {
		rec, err := s.store.GetRun(ctx, u)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		if err != nil {
			return nil, err
		}
		return rec, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
}

// Recent lists in-memory run summaries, newest first.
func (s *Service) Recent(limit int) []store.RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]store.RunRecord, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[s.order[i]].Summary)
	}
	return out
}
