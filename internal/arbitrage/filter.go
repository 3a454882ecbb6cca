package arbitrage

import (
	"fmt"
	"sort"

	"github.com/wonny/arbfilter/internal/quotes"
	"github.com/wonny/arbfilter/internal/units"
)

// Filter 무차익 필터 공통 인터페이스
//
// Filter mutates the given surface: each slice's quotes are replaced by the
// admitted set of its expiry. The surface must be in normalized call price
// and forward moneyness units.
type Filter interface {
	Kind() Kind
	Filter(surface *quotes.Surface) error
	LowerBound(expiry, k float64) (float64, error)
	UpperBound(expiry, k float64) (float64, error)
	Quotes(expiry float64) ([]quotes.Quote, error)
	Collection() (*Collection, error)
	Reports() []SliceReport
}

// New builds the filter named by opts.Kind.
func New(opts Options) (Filter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch opts.Kind {
	case KindStrike:
		return NewStrikeFilter(opts), nil
	case KindDiscard:
		return NewDiscardFilter(opts), nil
	case KindForwardExpiry:
		return NewForwardExpiryFilter(opts), nil
	}
	return nil, fmt.Errorf("%w: unknown filter kind %q", ErrInvalidOptions, opts.Kind)
}

// =============================================================================
// engine - 세 필터가 공유하는 만기별 greedy 편입 루프
// =============================================================================

// mode narrows how calendar-infeasible quotes are treated in one attempt.
type mode int

const (
	modeNormal       mode = iota
	modeDropCalendar      // calendar-infeasible quotes are dropped
	modeStrikeOnly        // calendar bounds ignored
)

type engine struct {
	kind     Kind
	opts     Options
	adjust   bool // reprice rejected quotes instead of dropping them
	calendar bool // chain lower bounds across expiries

	collection *Collection
	reports    []SliceReport
}

// attempt is the fresh state produced by one pass over an expiry.
type attempt struct {
	set       *Set
	adjusted  int
	discarded int
}

func (a *attempt) changed() int { return a.adjusted + a.discarded }

// Kind returns the filter kind.
func (e *engine) Kind() Kind { return e.kind }

// Filter runs the filter over every expiry in ascending order.
func (e *engine) Filter(surface *quotes.Surface) error {
	if surface.PriceUnit != units.PriceUnitNormalizedCall || surface.StrikeUnit != units.StrikeUnitMoneyness {
		return fmt.Errorf("%w: got %s/%s", ErrUnitMismatch, surface.PriceUnit, surface.StrikeUnit)
	}

	lambdas, err := e.opts.smoothingFor(surface.Len())
	if err != nil {
		return err
	}

	e.collection, e.reports = nil, nil
	coll := NewCollection()
	reports := make([]SliceReport, 0, surface.Len())

	for i, sl := range surface.Slices() {
		a, report, err := e.filterSlice(sl, lambdas[i], coll)
		if err != nil {
			return fmt.Errorf("expiry %v: %w", sl.Expiry, err)
		}
		if err := sl.Replace(a.set.Quotes()); err != nil {
			return err
		}
		if err := coll.Append(a.set); err != nil {
			return err
		}
		reports = append(reports, report)
	}

	coll.Freeze()
	e.collection, e.reports = coll, reports
	return nil
}

// Collection returns the frozen result of the last Filter call.
func (e *engine) Collection() (*Collection, error) {
	if e.collection == nil {
		return nil, ErrNotFiltered
	}
	return e.collection, nil
}

// Reports returns one report per expiry of the last Filter call.
func (e *engine) Reports() []SliceReport {
	out := make([]SliceReport, len(e.reports))
	copy(out, e.reports)
	return out
}

// LowerBound is the lower bound at moneyness k of a filtered expiry. For the
// forward expiry filter it includes the bounds carried from earlier expiries.
func (e *engine) LowerBound(expiry, k float64) (float64, error) {
	s, err := e.set(expiry)
	if err != nil {
		return 0, err
	}
	lower := s.LowerBound(k)
	if e.calendar {
		if cal := calendarLower(e.collection.before(expiry), s, k); cal > lower {
			lower = cal
		}
	}
	return lower, nil
}

// UpperBound is the upper bound at moneyness k of a filtered expiry.
func (e *engine) UpperBound(expiry, k float64) (float64, error) {
	s, err := e.set(expiry)
	if err != nil {
		return 0, err
	}
	return s.UpperBound(k), nil
}

// Quotes returns the admitted quotes of a filtered expiry.
func (e *engine) Quotes(expiry float64) ([]quotes.Quote, error) {
	s, err := e.set(expiry)
	if err != nil {
		return nil, err
	}
	return s.Quotes(), nil
}

func (e *engine) set(expiry float64) (*Set, error) {
	if e.collection == nil {
		return nil, ErrNotFiltered
	}
	return e.collection.Set(expiry)
}

// =============================================================================
// Per-expiry passes
// =============================================================================

// rankByLiquidity orders quotes most liquid first. Ties keep strike order.
func rankByLiquidity(qs []quotes.Quote) []quotes.Quote {
	ranked := make([]quotes.Quote, len(qs))
	copy(ranked, qs)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Liquidity > ranked[j].Liquidity })
	return ranked
}

func (e *engine) filterSlice(sl *quotes.Slice, lambda float64, earlier *Collection) (*attempt, SliceReport, error) {
	order := rankByLiquidity(sl.Quotes())
	report := SliceReport{Expiry: sl.Expiry, Lambda: lambda, Quotes: len(order)}

	var (
		a   *attempt
		err error
	)
	if e.opts.Safeguard != nil {
		a, err = e.safeguarded(sl, order, lambda, earlier.Sets(), &report)
	} else {
		a, err = e.resolve(sl, order, lambda, earlier.Sets(), &report)
	}
	if err != nil {
		return nil, report, err
	}

	report.Admitted = a.set.Len()
	report.Adjusted = a.adjusted
	report.Discarded = a.discarded
	return a, report, nil
}

// decide evaluates q against the live set and, for the forward expiry filter,
// against the bounds carried from earlier expiries.
func (e *engine) decide(set *Set, q quotes.Quote, earlier []*Set, m mode) Decision {
	if !e.calendar || m == modeStrikeOnly {
		return set.Evaluate(q)
	}

	lower, upper := set.Bounds(q.Strike)
	cal := calendarLower(earlier, set, q.Strike)
	if cal > upper+boundTolerance {
		return Decision{
			Outcome:   RequiresRetry,
			Reason:    ReasonCalendar,
			Strike:    q.Strike,
			Mid:       q.Mid(),
			Lower:     cal,
			Upper:     upper,
			Suggested: cal - upper,
		}
	}
	if cal > lower {
		lower = cal
	}
	return decide(q.Strike, q.Mid(), lower, upper)
}

// run is one pass over an expiry: admit feasible quotes in ranked order, then
// reprice (or drop) the rest against the grown set. A RequiresRetry decision
// ends the pass and is handed back to the caller.
func (e *engine) run(sl *quotes.Slice, order []quotes.Quote, lambda float64, earlier []*Set, m mode) (*attempt, *Decision) {
	a := &attempt{set: NewSetFor(sl)}
	var complement []quotes.Quote

	for _, q := range order {
		d := e.decide(a.set, q, earlier, m)
		switch d.Outcome {
		case Admitted:
			a.set.insert(q)
		case Rejected:
			complement = append(complement, q)
		case RequiresRetry:
			if m == modeDropCalendar {
				a.discarded++
				continue
			}
			return nil, &d
		}
	}

	if !e.adjust {
		a.discarded += len(complement)
		return a, nil
	}

	for _, q := range complement {
		d := e.decide(a.set, q, earlier, m)
		switch d.Outcome {
		case Admitted:
			panic(fmt.Sprintf("arbitrage: quote at strike %v became feasible after rejection (expiry %v)", q.Strike, sl.Expiry))
		case RequiresRetry:
			if m == modeDropCalendar {
				a.discarded++
				continue
			}
			return nil, &d
		}
		q.SetPrice(d.Target(lambda), quotes.SideMid)
		a.set.insert(q)
		a.adjusted++
	}

	if e.calendar && m != modeStrikeOnly {
		if d := previousPremiumCheck(earlier, a.set); d != nil {
			return nil, d
		}
	}
	return a, nil
}

// previousPremiumCheck verifies that no admitted price of an earlier expiry,
// carried to this expiry, lies above this expiry's price curve.
func previousPremiumCheck(earlier []*Set, later *Set) *Decision {
	for _, prev := range earlier {
		for _, q := range prev.Quotes() {
			carried := calendarScale(q.Mid(), prev, later)
			if v := later.Value(q.Strike); carried > v+boundTolerance {
				return &Decision{
					Outcome:   RequiresRetry,
					Reason:    ReasonPreviousPremium,
					Strike:    q.Strike,
					Mid:       carried,
					Lower:     carried,
					Upper:     v,
					Suggested: carried - v,
				}
			}
		}
	}
	return nil
}
