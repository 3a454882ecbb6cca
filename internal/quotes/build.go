package quotes

import (
	"fmt"
	"math"

	"github.com/wonny/arbfilter/internal/units"
)

// Columns 원시 시장 데이터 (열 단위 배열)
//
// Rows must be grouped by expiry in ascending order. Forwards and
// DiscountFactors carry one entry per distinct expiry.
type Columns struct {
	PriceUnit  units.PriceUnit
	StrikeUnit units.StrikeUnit

	Bids     []float64 // or single prices when Asks is nil
	Asks     []float64 // optional
	Strikes  []float64
	Expiries []float64

	Forwards        []float64
	DiscountFactors []float64

	Liquidity []float64 // optional, higher = processed first
}

// DefaultLiquidity ranks quotes by closeness to the money: -|K/F - 1|.
func DefaultLiquidity(moneyness float64) float64 {
	return -math.Abs(moneyness - 1)
}

// Build constructs a surface from column data.
func Build(c Columns) (*Surface, error) {
	n := len(c.Bids)
	if n == 0 {
		return nil, fmt.Errorf("%w: no prices", ErrInvalidInput)
	}
	if c.Asks != nil && len(c.Asks) != n {
		return nil, fmt.Errorf("%w: %d bids vs %d asks", ErrInvalidInput, n, len(c.Asks))
	}
	if len(c.Strikes) != n || len(c.Expiries) != n {
		return nil, fmt.Errorf("%w: %d prices, %d strikes, %d expiries",
			ErrInvalidInput, n, len(c.Strikes), len(c.Expiries))
	}
	if c.Liquidity != nil && len(c.Liquidity) != n {
		return nil, fmt.Errorf("%w: %d prices vs %d liquidity values", ErrInvalidInput, n, len(c.Liquidity))
	}

	distinct, err := countExpiries(c.Expiries)
	if err != nil {
		return nil, err
	}
	if len(c.Forwards) != distinct || len(c.DiscountFactors) != distinct {
		return nil, fmt.Errorf("%w: %d expiries need %d forwards and discount factors, got %d and %d",
			ErrInvalidInput, distinct, distinct, len(c.Forwards), len(c.DiscountFactors))
	}

	surface := NewSurface(c.PriceUnit, c.StrikeUnit)
	var current *Slice
	slot := -1

	for i := 0; i < n; i++ {
		if current == nil || c.Expiries[i] != current.Expiry {
			slot++
			current = NewSlice(c.Expiries[i], c.Forwards[slot], c.DiscountFactors[slot])
			if err := current.Market().Validate(); err != nil {
				return nil, fmt.Errorf("expiry %v: %w", c.Expiries[i], err)
			}
			if err := surface.AddSlice(current); err != nil {
				return nil, err
			}
		}

		bid, ask := c.Bids[i], c.Bids[i]
		if c.Asks != nil {
			ask = c.Asks[i]
		}

		m, err := moneyness(c, current, i)
		if err != nil {
			return nil, err
		}
		liq := DefaultLiquidity(m)
		if c.Liquidity != nil {
			liq = c.Liquidity[i]
		}

		if err := current.Add(NewQuote(bid, ask, c.Strikes[i], liq)); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}

	return surface, nil
}

func countExpiries(expiries []float64) (int, error) {
	count := 0
	prev := math.Inf(-1)
	for i, e := range expiries {
		if math.IsNaN(e) {
			return 0, fmt.Errorf("%w: row %d expiry is NaN", ErrInvalidInput, i)
		}
		if e < prev {
			return 0, fmt.Errorf("%w: row %d expiry %v after %v", ErrExpiryOrder, i, e, prev)
		}
		if e > prev {
			count++
			prev = e
		}
	}
	return count, nil
}

// moneyness converts row i and rejects strikes outside (0, +Inf); those two
// points are reserved for the boundary quotes of the filter.
func moneyness(c Columns, sl *Slice, i int) (float64, error) {
	m, err := sl.Market().ConvertStrike(c.Strikes[i], c.StrikeUnit, units.StrikeUnitMoneyness)
	if err != nil {
		return 0, err
	}
	if !(m > 0) || math.IsInf(m, 0) {
		return 0, fmt.Errorf("%w: row %d strike %v", ErrInvalidQuote, i, c.Strikes[i])
	}
	return m, nil
}
