package arbitrage

import (
	"math"

	"github.com/wonny/arbfilter/internal/quotes"
)

// ForwardExpiryFilter is StrikeFilter with lower bounds carried forward from
// every earlier expiry, so later expiries never imply cheaper normalized
// calls at the same moneyness.
//
// Without a RetryPolicy an empty admissible interval fails the whole run
// with an *InfeasibleError.
type ForwardExpiryFilter struct {
	*engine
}

// NewForwardExpiryFilter creates a forward expiry filter.
func NewForwardExpiryFilter(opts Options) *ForwardExpiryFilter {
	opts.Kind = KindForwardExpiry
	return &ForwardExpiryFilter{engine: &engine{kind: KindForwardExpiry, opts: opts, adjust: true, calendar: true}}
}

// resolve runs one expiry and applies the retry policy when the calendar
// constraints leave no room. Every attempt starts from a fresh set.
func (e *engine) resolve(sl *quotes.Slice, order []quotes.Quote, lambda float64, earlier []*Set, report *SliceReport) (*attempt, error) {
	policy := e.opts.Retry
	recovering := policy != nil && e.calendar && len(earlier) > 0 && len(order) > 0

	start := order
	if recovering {
		start = e.truncateTop(sl, order, lambda, earlier)
	}

	report.Attempts++
	a, d := e.run(sl, start, lambda, earlier, modeNormal)
	if d == nil {
		if len(order) > 0 && start[0].Mid() != order[0].Mid() {
			countMovedTop(a, start[0])
		}
		return a, nil
	}
	if !recovering {
		return nil, d.infeasible(sl.Expiry, report.Attempts)
	}

	// 1순위 호가를 최대 정규화 가격(1)까지 MaxAttempts 단계로 올린다
	top := start[0]
	step := math.Max(1-top.Mid(), 0) / float64(policy.MaxAttempts)
	bumped := make([]quotes.Quote, len(start))
	copy(bumped, start)

	for n := 1; n < policy.MaxAttempts; n++ {
		bumped[0] = top
		bumped[0].SetPrice(top.Mid()+float64(n)*step, quotes.SideMid)

		report.Attempts++
		if a, d = e.run(sl, bumped, lambda, earlier, modeNormal); d == nil {
			countMovedTop(a, bumped[0])
			return a, nil
		}
	}

	// fallbacks start again from the quotes as given
	switch policy.Fallback {
	case FallbackDiscard:
		report.Attempts++
		report.Fallback = FallbackDiscard
		if a, d = e.run(sl, order, lambda, earlier, modeDropCalendar); d == nil {
			return a, nil
		}
	case FallbackStrike:
		report.Attempts++
		report.Fallback = FallbackStrike
		a, _ = e.run(sl, order, lambda, earlier, modeStrikeOnly)
		return a, nil
	}
	return nil, d.infeasible(sl.Expiry, report.Attempts)
}

// truncateTop clamps the most liquid quote into [max(intrinsic, calendar
// lower bound), 1] before the first attempt. A quote already inside, or one
// whose calendar bound exceeds 1, is left for the attempts to handle.
func (e *engine) truncateTop(sl *quotes.Slice, order []quotes.Quote, lambda float64, earlier []*Set) []quotes.Quote {
	d := e.decide(NewSetFor(sl), order[0], earlier, modeNormal)
	if d.Outcome != Rejected {
		return order
	}

	out := make([]quotes.Quote, len(order))
	copy(out, order)
	out[0].SetPrice(d.Target(lambda), quotes.SideMid)
	return out
}

// countMovedTop counts a repriced top quote that was then admitted as is.
func countMovedTop(a *attempt, top quotes.Quote) {
	if a.set.Contains(top.Strike) && a.set.Value(top.Strike) == top.Mid() {
		a.adjusted++
	}
}
