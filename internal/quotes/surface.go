package quotes

import (
	"fmt"
	"sort"

	"github.com/wonny/arbfilter/internal/units"
)

// Surface 만기 오름차순 Slice 묶음
// ⭐ 만기당 Slice는 최대 1개
type Surface struct {
	PriceUnit  units.PriceUnit  `json:"price_unit"`
	StrikeUnit units.StrikeUnit `json:"strike_unit"`

	slices []*Slice
}

// NewSurface creates an empty surface tagged with its units.
func NewSurface(priceUnit units.PriceUnit, strikeUnit units.StrikeUnit) *Surface {
	return &Surface{PriceUnit: priceUnit, StrikeUnit: strikeUnit}
}

func (s *Surface) search(expiry float64) int {
	return sort.Search(len(s.slices), func(i int) bool { return s.slices[i].Expiry >= expiry })
}

// AddSlice inserts sl at its expiry position.
func (s *Surface) AddSlice(sl *Slice) error {
	i := s.search(sl.Expiry)
	if i < len(s.slices) && s.slices[i].Expiry == sl.Expiry {
		return fmt.Errorf("%w: %v", ErrDuplicateExpiry, sl.Expiry)
	}
	s.slices = append(s.slices, nil)
	copy(s.slices[i+1:], s.slices[i:])
	s.slices[i] = sl
	return nil
}

// Slice returns the slice at exactly this expiry.
func (s *Surface) Slice(expiry float64) (*Slice, error) {
	i := s.search(expiry)
	if i < len(s.slices) && s.slices[i].Expiry == expiry {
		return s.slices[i], nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownExpiry, expiry)
}

// Slices returns the slices in expiry order. The slices themselves are shared.
func (s *Surface) Slices() []*Slice {
	out := make([]*Slice, len(s.slices))
	copy(out, s.slices)
	return out
}

// Len returns the number of expiries.
func (s *Surface) Len() int { return len(s.slices) }

// Expiries returns the expiries in ascending order.
func (s *Surface) Expiries() []float64 {
	out := make([]float64, len(s.slices))
	for i, sl := range s.slices {
		out[i] = sl.Expiry
	}
	return out
}

// NumQuotes counts quotes across all expiries.
func (s *Surface) NumQuotes() int {
	n := 0
	for _, sl := range s.slices {
		n += sl.Len()
	}
	return n
}

// Clone returns a deep copy.
func (s *Surface) Clone() *Surface {
	c := &Surface{PriceUnit: s.PriceUnit, StrikeUnit: s.StrikeUnit, slices: make([]*Slice, len(s.slices))}
	for i, sl := range s.slices {
		c.slices[i] = sl.Clone()
	}
	return c
}
