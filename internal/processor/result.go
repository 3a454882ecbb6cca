package processor

import (
	"github.com/wonny/arbfilter/internal/arbitrage"
	"github.com/wonny/arbfilter/internal/quotes"
	"github.com/wonny/arbfilter/internal/units"
)

// Result 필터 실행 결과 스냅샷
// ⭐ 생성 후 불변 - 여러 goroutine에서 동시 조회 가능
type Result struct {
	options    arbitrage.Options
	raw        *quotes.Surface // input units
	normalized *quotes.Surface // normalized units, before filtering
	filtered   *quotes.Surface // normalized units, admitted quotes
	filter     arbitrage.Filter
	reports    []arbitrage.SliceReport
}

// Row 호가 테이블 한 행
type Row struct {
	Expiry     float64 `json:"expiry"`
	Strike     float64 `json:"strike"`
	Mid        float64 `json:"mid"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	Liquidity  float64 `json:"liquidity"`
	Adjustment float64 `json:"adjustment"`
}

// Options returns the options the filter ran with.
func (r *Result) Options() arbitrage.Options { return r.options }

// Kind returns the filter kind.
func (r *Result) Kind() arbitrage.Kind { return r.filter.Kind() }

// Reports returns one report per expiry.
func (r *Result) Reports() []arbitrage.SliceReport {
	out := make([]arbitrage.SliceReport, len(r.reports))
	copy(out, r.reports)
	return out
}

// Expiries lists the filtered expiries in ascending order.
func (r *Result) Expiries() []float64 { return r.filtered.Expiries() }

// NumQuotes counts admitted quotes across all expiries.
func (r *Result) NumQuotes() int { return r.filtered.NumQuotes() }

// Raw returns a copy of the input surface.
func (r *Result) Raw() *quotes.Surface { return r.raw.Clone() }

// Filtered returns a copy of the filtered surface in normalized units.
func (r *Result) Filtered() *quotes.Surface { return r.filtered.Clone() }

func (r *Result) market(expiry float64) (units.Market, error) {
	c, err := r.filter.Collection()
	if err != nil {
		return units.Market{}, err
	}
	s, err := c.Set(expiry)
	if err != nil {
		return units.Market{}, err
	}
	return units.Market{Expiry: s.Expiry, Forward: s.Forward, DiscountFactor: s.DiscountFactor}, nil
}

// bound converts strike to moneyness, queries the filter and converts the
// normalized bound back into priceUnit.
func (r *Result) bound(query func(expiry, k float64) (float64, error),
	expiry, strike float64, strikeUnit units.StrikeUnit, priceUnit units.PriceUnit) (float64, error) {

	m, err := r.market(expiry)
	if err != nil {
		return 0, err
	}
	k, err := m.ConvertStrike(strike, strikeUnit, units.StrikeUnitMoneyness)
	if err != nil {
		return 0, err
	}
	b, err := query(expiry, k)
	if err != nil {
		return 0, err
	}
	return m.ConvertPrice(b, k, units.StrikeUnitMoneyness, units.PriceUnitNormalizedCall, priceUnit)
}

// LowerBound is the no-arbitrage lower bound at strike for an exact expiry.
func (r *Result) LowerBound(expiry, strike float64, strikeUnit units.StrikeUnit, priceUnit units.PriceUnit) (float64, error) {
	return r.bound(r.filter.LowerBound, expiry, strike, strikeUnit, priceUnit)
}

// UpperBound is the no-arbitrage upper bound at strike for an exact expiry.
func (r *Result) UpperBound(expiry, strike float64, strikeUnit units.StrikeUnit, priceUnit units.PriceUnit) (float64, error) {
	return r.bound(r.filter.UpperBound, expiry, strike, strikeUnit, priceUnit)
}

// Quotes returns the admitted quotes of one expiry in the requested units.
func (r *Result) Quotes(expiry float64, strikeUnit units.StrikeUnit, priceUnit units.PriceUnit) ([]quotes.Quote, error) {
	if _, err := r.market(expiry); err != nil {
		return nil, err
	}
	sl, err := r.filtered.Slice(expiry)
	if err != nil {
		return nil, err
	}
	return convertSlice(sl, strikeUnit, priceUnit)
}

// QuoteTable flattens every expiry into rows in the requested units.
func (r *Result) QuoteTable(strikeUnit units.StrikeUnit, priceUnit units.PriceUnit) ([]Row, error) {
	rows := make([]Row, 0, r.filtered.NumQuotes())
	for _, sl := range r.filtered.Slices() {
		qs, err := convertSlice(sl, strikeUnit, priceUnit)
		if err != nil {
			return nil, err
		}
		for _, q := range qs {
			rows = append(rows, Row{
				Expiry:     sl.Expiry,
				Strike:     q.Strike,
				Mid:        q.Mid(),
				Bid:        q.Bid,
				Ask:        q.Ask,
				Liquidity:  q.Liquidity,
				Adjustment: q.Adjustment,
			})
		}
	}
	return rows, nil
}
