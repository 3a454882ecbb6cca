package arbitrage

import (
	"fmt"
	"sort"

	"github.com/wonny/arbfilter/internal/units"
)

// Collection 만기별 완성된 Set 레지스트리 (만기 오름차순)
// ⭐ Freeze 이후에는 읽기 전용이며 여러 goroutine에서 동시 조회 가능
type Collection struct {
	PriceUnit  units.PriceUnit
	StrikeUnit units.StrikeUnit

	sets   []*Set
	frozen bool
}

// NewCollection creates an empty collection in filter units.
func NewCollection() *Collection {
	return &Collection{PriceUnit: units.PriceUnitNormalizedCall, StrikeUnit: units.StrikeUnitMoneyness}
}

// Append adds the next finished set. Expiries must increase strictly.
func (c *Collection) Append(s *Set) error {
	if c.frozen {
		return ErrFrozen
	}
	if n := len(c.sets); n > 0 && !(s.Expiry > c.sets[n-1].Expiry) {
		return fmt.Errorf("%w: set expiry %v after %v", ErrExpiryOrder, s.Expiry, c.sets[n-1].Expiry)
	}
	c.sets = append(c.sets, s)
	return nil
}

// Freeze makes the collection and its sets read-only.
func (c *Collection) Freeze() {
	c.frozen = true
	for _, s := range c.sets {
		s.freeze()
	}
}

// Frozen reports whether Freeze has been called.
func (c *Collection) Frozen() bool { return c.frozen }

func (c *Collection) index(expiry float64) (int, error) {
	i := sort.Search(len(c.sets), func(i int) bool { return c.sets[i].Expiry >= expiry })
	if i < len(c.sets) && c.sets[i].Expiry == expiry {
		return i, nil
	}
	return 0, fmt.Errorf("%w: %v", ErrUnknownExpiry, expiry)
}

// Set returns the set at exactly this expiry.
func (c *Collection) Set(expiry float64) (*Set, error) {
	i, err := c.index(expiry)
	if err != nil {
		return nil, err
	}
	return c.sets[i], nil
}

// Sets returns the sets in expiry order.
func (c *Collection) Sets() []*Set {
	out := make([]*Set, len(c.sets))
	copy(out, c.sets)
	return out
}

// Len returns the number of sets.
func (c *Collection) Len() int { return len(c.sets) }

// Expiries returns the expiries in ascending order.
func (c *Collection) Expiries() []float64 {
	out := make([]float64, len(c.sets))
	for i, s := range c.sets {
		out[i] = s.Expiry
	}
	return out
}

// =============================================================================
// Calendar bounds
// =============================================================================

// calendarScale carries a normalized bound of an earlier expiry to a later
// one. The premium D1*F1*b scaled by the numeraire ratio D2*F2/(D1*F1) and
// normalized by D2*F2 is b again, so normalized bounds carry over unchanged.
func calendarScale(bound float64, _, _ *Set) float64 {
	return bound
}

// calendarLower is the largest scaled lower bound at k implied by earlier.
func calendarLower(earlier []*Set, later *Set, k float64) float64 {
	lower := 0.0
	for _, prev := range earlier {
		if b := calendarScale(prev.LowerBound(k), prev, later); b > lower {
			lower = b
		}
	}
	return lower
}

// before returns the sets strictly earlier than expiry.
func (c *Collection) before(expiry float64) []*Set {
	i := sort.Search(len(c.sets), func(i int) bool { return c.sets[i].Expiry >= expiry })
	return c.sets[:i]
}
