package processor

import (
	"fmt"
	"sync"
	"time"

	"github.com/wonny/arbfilter/internal/arbitrage"
	"github.com/wonny/arbfilter/internal/quotes"
	"github.com/wonny/arbfilter/internal/units"
	"github.com/wonny/arbfilter/pkg/logger"
)

// Processor 호가 필터링 진입점
//
// A Processor owns the raw surface built from one Input. Each Filter call
// produces a new immutable Result; the latest one backs the query methods.
type Processor struct {
	raw *quotes.Surface
	log *logger.Logger

	mu     sync.RWMutex
	result *Result
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger used for per-expiry filter reports.
func WithLogger(log *logger.Logger) Option {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// New validates the input and builds the raw quote surface.
func New(in Input, opts ...Option) (*Processor, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	raw, err := quotes.Build(in.columns())
	if err != nil {
		return nil, fmt.Errorf("build surface: %w", err)
	}

	p := &Processor{raw: raw, log: logger.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Raw returns a copy of the surface in input units.
func (p *Processor) Raw() *quotes.Surface {
	return p.raw.Clone()
}

// Filter normalizes a copy of the raw surface and runs the configured filter
// on it. A zero Kind selects the strike filter.
func (p *Processor) Filter(opts arbitrage.Options) (*Result, error) {
	if opts.Kind == "" {
		opts.Kind = arbitrage.KindStrike
	}
	f, err := arbitrage.New(opts)
	if err != nil {
		return nil, err
	}

	normalized, err := normalize(p.raw)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	working := normalized.Clone()

	start := time.Now()
	if err := f.Filter(working); err != nil {
		p.log.WithError(err).WithField("kind", string(opts.Kind)).Error("filter failed")
		return nil, fmt.Errorf("filter: %w", err)
	}

	res := &Result{
		options:    opts,
		raw:        p.raw.Clone(),
		normalized: normalized,
		filtered:   working,
		filter:     f,
		reports:    f.Reports(),
	}
	p.logReports(opts.Kind, res.reports, time.Since(start))

	p.mu.Lock()
	p.result = res
	p.mu.Unlock()
	return res, nil
}

// Result returns the snapshot of the last successful Filter call.
func (p *Processor) Result() (*Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.result == nil {
		return nil, arbitrage.ErrNotFiltered
	}
	return p.result, nil
}

// LowerBound delegates to the latest Result.
func (p *Processor) LowerBound(expiry, strike float64, strikeUnit units.StrikeUnit, priceUnit units.PriceUnit) (float64, error) {
	res, err := p.Result()
	if err != nil {
		return 0, err
	}
	return res.LowerBound(expiry, strike, strikeUnit, priceUnit)
}

// UpperBound delegates to the latest Result.
func (p *Processor) UpperBound(expiry, strike float64, strikeUnit units.StrikeUnit, priceUnit units.PriceUnit) (float64, error) {
	res, err := p.Result()
	if err != nil {
		return 0, err
	}
	return res.UpperBound(expiry, strike, strikeUnit, priceUnit)
}

// Quotes delegates to the latest Result.
func (p *Processor) Quotes(expiry float64, strikeUnit units.StrikeUnit, priceUnit units.PriceUnit) ([]quotes.Quote, error) {
	res, err := p.Result()
	if err != nil {
		return nil, err
	}
	return res.Quotes(expiry, strikeUnit, priceUnit)
}

// QuoteTable delegates to the latest Result.
func (p *Processor) QuoteTable(strikeUnit units.StrikeUnit, priceUnit units.PriceUnit) ([]Row, error) {
	res, err := p.Result()
	if err != nil {
		return nil, err
	}
	return res.QuoteTable(strikeUnit, priceUnit)
}

// FilterErrors delegates to the latest Result.
func (p *Processor) FilterErrors(priceUnit units.PriceUnit) (*ErrorReport, error) {
	res, err := p.Result()
	if err != nil {
		return nil, err
	}
	return res.FilterErrors(priceUnit)
}

func (p *Processor) logReports(kind arbitrage.Kind, reports []arbitrage.SliceReport, elapsed time.Duration) {
	changed := 0
	for _, r := range reports {
		changed += r.Changed()
		entry := p.log.WithFields(map[string]interface{}{
			"expiry":    r.Expiry,
			"quotes":    r.Quotes,
			"admitted":  r.Admitted,
			"adjusted":  r.Adjusted,
			"discarded": r.Discarded,
			"attempts":  r.Attempts,
		})
		if r.Fallback != "" {
			entry.WithField("fallback", string(r.Fallback)).Warn("expiry filtered with fallback")
			continue
		}
		entry.Debug("expiry filtered")
	}
	p.log.WithFields(map[string]interface{}{
		"kind":       string(kind),
		"expiries":   len(reports),
		"changed":    changed,
		"elapsed_ms": elapsed.Milliseconds(),
	}).Info("surface filtered")
}
