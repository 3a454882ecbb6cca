package arbitrage

import (
	"fmt"
	"math"

	"github.com/wonny/arbfilter/internal/quotes"
)

// =============================================================================
// Set - 만기 하나의 무차익 호가 집합
// =============================================================================

// Boundary quotes in normalized call units: the zero-strike call is worth the
// whole numeraire, the infinite-strike call nothing.
var (
	boundaryZero = quotes.NewMidQuote(1, 0, math.NaN())
	boundaryInf  = quotes.NewMidQuote(0, math.Inf(1), math.NaN())
)

// Set holds the admitted quotes of one expiry bracketed by the two boundary
// quotes. Prices are normalized calls and strikes are forward moneyness.
//
// ⭐ 경계 호가(0, +Inf)는 항상 존재하므로 좌/우 이웃이 없는 경우는 없다
type Set struct {
	Expiry         float64
	Forward        float64
	DiscountFactor float64

	quotes quotes.Sequence
	frozen bool
}

// NewSet creates a set containing only the boundary quotes.
func NewSet(expiry, forward, discountFactor float64) *Set {
	s := &Set{Expiry: expiry, Forward: forward, DiscountFactor: discountFactor}
	if err := s.quotes.Reset([]quotes.Quote{boundaryZero, boundaryInf}); err != nil {
		panic(err)
	}
	return s
}

// NewSetFor creates an empty set for the expiry of sl.
func NewSetFor(sl *quotes.Slice) *Set {
	return NewSet(sl.Expiry, sl.Forward, sl.DiscountFactor)
}

// Numeraire is D*F of this expiry.
func (s *Set) Numeraire() float64 {
	return s.DiscountFactor * s.Forward
}

// Len returns the number of admitted quotes, boundaries excluded.
func (s *Set) Len() int {
	return s.quotes.Len() - 2
}

// Quotes returns the admitted quotes in strike order, boundaries excluded.
func (s *Set) Quotes() []quotes.Quote {
	all := s.quotes.Items()
	return all[1 : len(all)-1]
}

// Contains reports whether a quote at strike k has been admitted.
func (s *Set) Contains(k float64) bool {
	i, ok := s.quotes.Index(k)
	return ok && i > 0 && i < s.quotes.Len()-1
}

// =============================================================================
// Bounds
// =============================================================================

// boundary answers queries that land on a boundary strike.
func boundary(k float64) (float64, bool) {
	switch {
	case math.IsNaN(k):
		panic("arbitrage: bound query at NaN strike")
	case k <= 0:
		return boundaryZero.Mid(), true
	case math.IsInf(k, 1):
		return boundaryInf.Mid(), true
	}
	return 0, false
}

// neighbours returns the nearest admitted quotes strictly left and right of k.
func (s *Set) neighbours(k float64) (l, r int) {
	return s.quotes.Below(k), s.quotes.Above(k)
}

func secant(a, b quotes.Quote) float64 {
	den := b.Strike - a.Strike
	if den == 0 {
		panic(fmt.Sprintf("arbitrage: zero-width secant at strike %v", a.Strike))
	}
	return (b.Mid() - a.Mid()) / den
}

func checked(v float64, what string, k float64) float64 {
	if math.IsNaN(v) {
		panic(fmt.Sprintf("arbitrage: %s is NaN at strike %v", what, k))
	}
	return v
}

// LowerBound is the convexity lower bound at moneyness k.
//
// The left candidate extends the secant through the two nearest admitted
// quotes left of k (slope -1 when only the zero-strike boundary is there) and
// is floored at 0. The right candidate extends the secant through the two
// nearest quotes right of k, and is skipped when the right neighbour is the
// infinite-strike boundary.
func (s *Set) LowerBound(k float64) float64 {
	if v, ok := boundary(k); ok {
		return v
	}

	l, r := s.neighbours(k)
	left := s.quotes.At(l)

	slope := -1.0
	if l > 0 {
		slope = secant(s.quotes.At(l-1), left)
	}
	lower := math.Max(left.Mid()+slope*(k-left.Strike), 0)

	right := s.quotes.At(r)
	if !math.IsInf(right.Strike, 1) {
		next := s.quotes.At(r + 1)
		rslope := 0.0
		if !math.IsInf(next.Strike, 1) {
			rslope = secant(right, next)
		}
		lower = math.Max(lower, right.Mid()-rslope*(right.Strike-k))
	}

	return checked(lower, "lower bound", k)
}

// UpperBound is the chord between the neighbours of k, or the left
// neighbour's price when nothing finite lies to the right.
func (s *Set) UpperBound(k float64) float64 {
	if v, ok := boundary(k); ok {
		return v
	}

	l, r := s.neighbours(k)
	left, right := s.quotes.At(l), s.quotes.At(r)
	if math.IsInf(right.Strike, 1) {
		return checked(left.Mid(), "upper bound", k)
	}

	upper := ((right.Strike-k)*left.Mid() + (k-left.Strike)*right.Mid()) / (right.Strike - left.Strike)
	return checked(upper, "upper bound", k)
}

// Bounds returns both bounds at k.
func (s *Set) Bounds(k float64) (lower, upper float64) {
	return s.LowerBound(k), s.UpperBound(k)
}

// Value is the admitted price at k, or the upper bound between admitted
// strikes. It is the piecewise-linear curve through the set.
func (s *Set) Value(k float64) float64 {
	if i, ok := s.quotes.Index(k); ok {
		return s.quotes.At(i).Mid()
	}
	return s.UpperBound(k)
}

// Evaluate judges q against the intra-expiry bounds without mutating the set.
func (s *Set) Evaluate(q quotes.Quote) Decision {
	lower, upper := s.Bounds(q.Strike)
	return decide(q.Strike, q.Mid(), lower, upper)
}

// AddQuoteIfFeasible admits q when lower <= mid <= upper, up to rounding.
func (s *Set) AddQuoteIfFeasible(q quotes.Quote) bool {
	if s.Evaluate(q).Outcome != Admitted {
		return false
	}
	s.insert(q)
	return true
}

// insert admits q unconditionally.
func (s *Set) insert(q quotes.Quote) {
	if s.frozen {
		panic(fmt.Sprintf("arbitrage: insert into frozen set (expiry %v)", s.Expiry))
	}
	if !(q.Strike > 0) || math.IsInf(q.Strike, 0) {
		panic(fmt.Sprintf("arbitrage: strike %v collides with a boundary quote", q.Strike))
	}
	if err := s.quotes.Insert(q); err != nil {
		panic(fmt.Sprintf("arbitrage: expiry %v: %v", s.Expiry, err))
	}
}

func (s *Set) freeze() {
	s.frozen = true
}
