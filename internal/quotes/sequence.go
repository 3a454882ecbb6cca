package quotes

import (
	"fmt"
	"sort"
)

// strikeKey is the ordering key. All ordering goes through it so equality is
// never decided by comparing whole quotes.
func strikeKey(q Quote) float64 { return q.Strike }

// Sequence is a strike-ordered run of quotes with unique strikes.
// The zero value is an empty sequence.
type Sequence struct {
	items []Quote
}

// Len returns the number of quotes.
func (s *Sequence) Len() int { return len(s.items) }

// At returns the i-th quote in strike order.
func (s *Sequence) At(i int) Quote { return s.items[i] }

// Items returns a copy of the quotes in strike order.
func (s *Sequence) Items() []Quote {
	out := make([]Quote, len(s.items))
	copy(out, s.items)
	return out
}

// search returns the first index whose strike is >= k.
func (s *Sequence) search(k float64) int {
	return sort.Search(len(s.items), func(i int) bool { return strikeKey(s.items[i]) >= k })
}

// Index returns the position of the quote with strike k.
func (s *Sequence) Index(k float64) (int, bool) {
	i := s.search(k)
	if i < len(s.items) && strikeKey(s.items[i]) == k {
		return i, true
	}
	return i, false
}

// Below returns the index of the last quote with strike strictly below k,
// or -1 when there is none.
func (s *Sequence) Below(k float64) int {
	return s.search(k) - 1
}

// Above returns the index of the first quote with strike strictly above k,
// or Len() when there is none.
func (s *Sequence) Above(k float64) int {
	return sort.Search(len(s.items), func(i int) bool { return strikeKey(s.items[i]) > k })
}

// Insert places q at its strike position. A quote whose strike is already
// present is rejected with ErrDuplicateStrike.
func (s *Sequence) Insert(q Quote) error {
	i, found := s.Index(strikeKey(q))
	if found {
		return fmt.Errorf("%w: %v", ErrDuplicateStrike, q.Strike)
	}
	s.items = append(s.items, Quote{})
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = q
	return nil
}

// Reset replaces the contents with qs, which must already be strictly
// increasing in strike.
func (s *Sequence) Reset(qs []Quote) error {
	for i := 1; i < len(qs); i++ {
		prev, cur := strikeKey(qs[i-1]), strikeKey(qs[i])
		if cur == prev {
			return fmt.Errorf("%w: %v", ErrDuplicateStrike, cur)
		}
		if cur < prev {
			return fmt.Errorf("%w: strike %v after %v", ErrStrikeOrder, cur, prev)
		}
	}
	s.items = append(s.items[:0:0], qs...)
	return nil
}

// Clone returns an independent copy.
func (s *Sequence) Clone() Sequence {
	return Sequence{items: s.Items()}
}
