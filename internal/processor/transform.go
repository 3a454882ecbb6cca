package processor

import (
	"fmt"

	"github.com/wonny/arbfilter/internal/quotes"
	"github.com/wonny/arbfilter/internal/units"
)

// =============================================================================
// 단위 변환 - 필터는 normalized call / moneyness 공간에서만 동작
// =============================================================================

// normalize returns a copy of s in normalized call price and forward
// moneyness units. Liquidity is carried over unchanged.
func normalize(s *quotes.Surface) (*quotes.Surface, error) {
	out := quotes.NewSurface(units.PriceUnitNormalizedCall, units.StrikeUnitMoneyness)
	for _, sl := range s.Slices() {
		converted := quotes.NewSlice(sl.Expiry, sl.Forward, sl.DiscountFactor)
		m := sl.Market()
		for _, q := range sl.Quotes() {
			nq, err := convertQuote(q, m, s.StrikeUnit, s.PriceUnit, units.StrikeUnitMoneyness, units.PriceUnitNormalizedCall)
			if err != nil {
				return nil, fmt.Errorf("expiry %v strike %v: %w", sl.Expiry, q.Strike, err)
			}
			if err := converted.Add(nq); err != nil {
				return nil, fmt.Errorf("expiry %v strike %v: %w", sl.Expiry, q.Strike, err)
			}
		}
		if err := out.AddSlice(converted); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// convertQuote maps both sides, the strike and the accumulated adjustment of
// q. The adjustment is re-expressed as the difference between the converted
// current mid and the converted pre-adjustment mid.
func convertQuote(q quotes.Quote, m units.Market, fromStrike units.StrikeUnit, fromPrice units.PriceUnit,
	toStrike units.StrikeUnit, toPrice units.PriceUnit) (quotes.Quote, error) {

	price := func(v float64) (float64, error) {
		return m.ConvertPrice(v, q.Strike, fromStrike, fromPrice, toPrice)
	}

	strike, err := m.ConvertStrike(q.Strike, fromStrike, toStrike)
	if err != nil {
		return quotes.Quote{}, err
	}
	bid, err := price(q.Bid)
	if err != nil {
		return quotes.Quote{}, err
	}
	ask := bid
	if q.Ask != q.Bid {
		if ask, err = price(q.Ask); err != nil {
			return quotes.Quote{}, err
		}
	}

	out := quotes.Quote{Bid: bid, Ask: ask, Strike: strike, Liquidity: q.Liquidity}
	if q.Adjustment != 0 {
		before, err := price(q.Mid() - q.Adjustment)
		if err != nil {
			return quotes.Quote{}, err
		}
		after, err := price(q.Mid())
		if err != nil {
			return quotes.Quote{}, err
		}
		out.Adjustment = after - before
	}
	return out, nil
}

// convertSlice expresses the quotes of a normalized slice in the requested
// units.
func convertSlice(sl *quotes.Slice, strikeUnit units.StrikeUnit, priceUnit units.PriceUnit) ([]quotes.Quote, error) {
	m := sl.Market()
	qs := sl.Quotes()
	out := make([]quotes.Quote, len(qs))
	for i, q := range qs {
		cq, err := convertQuote(q, m, units.StrikeUnitMoneyness, units.PriceUnitNormalizedCall, strikeUnit, priceUnit)
		if err != nil {
			return nil, fmt.Errorf("expiry %v strike %v: %w", sl.Expiry, q.Strike, err)
		}
		out[i] = cq
	}
	return out, nil
}
