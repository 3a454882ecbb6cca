package quotes

import (
	"fmt"

	"github.com/wonny/arbfilter/internal/units"
)

// Slice 단일 만기의 호가 집합 (행사가 오름차순)
type Slice struct {
	Expiry         float64 `json:"expiry"`
	Forward        float64 `json:"forward"`
	DiscountFactor float64 `json:"discount_factor"`

	quotes Sequence
}

// NewSlice creates an empty slice for one expiry.
func NewSlice(expiry, forward, discountFactor float64) *Slice {
	return &Slice{Expiry: expiry, Forward: forward, DiscountFactor: discountFactor}
}

// Market returns the conversion context of this expiry.
func (s *Slice) Market() units.Market {
	return units.Market{Expiry: s.Expiry, Forward: s.Forward, DiscountFactor: s.DiscountFactor}
}

// Add inserts q in strike order.
func (s *Slice) Add(q Quote) error {
	if !q.Valid() {
		return fmt.Errorf("%w: bid=%v ask=%v strike=%v", ErrInvalidQuote, q.Bid, q.Ask, q.Strike)
	}
	if err := s.quotes.Insert(q); err != nil {
		return fmt.Errorf("expiry %v: %w", s.Expiry, err)
	}
	return nil
}

// Replace swaps the whole quote sequence. Used at the end of filtering.
func (s *Slice) Replace(qs []Quote) error {
	if err := s.quotes.Reset(qs); err != nil {
		return fmt.Errorf("expiry %v: %w", s.Expiry, err)
	}
	return nil
}

// Len returns the number of quotes.
func (s *Slice) Len() int { return s.quotes.Len() }

// Quotes returns a copy of the quotes in strike order.
func (s *Slice) Quotes() []Quote { return s.quotes.Items() }

// Strikes returns the strikes in ascending order.
func (s *Slice) Strikes() []float64 {
	out := make([]float64, s.quotes.Len())
	for i := range out {
		out[i] = s.quotes.At(i).Strike
	}
	return out
}

// Quote returns the quote with strike k.
func (s *Slice) Quote(k float64) (Quote, bool) {
	i, ok := s.quotes.Index(k)
	if !ok {
		return Quote{}, false
	}
	return s.quotes.At(i), true
}

// Clone returns a deep copy.
func (s *Slice) Clone() *Slice {
	c := *s
	c.quotes = s.quotes.Clone()
	return &c
}
