package processor

import (
	"fmt"
	"math"

	"github.com/wonny/arbfilter/internal/quotes"
	"github.com/wonny/arbfilter/internal/units"
)

// Input 원시 시장 데이터 (열 단위)
//
// Prices carries single prices (bid = ask). Bids/Asks carry paired quotes.
// Exactly one of the two forms must be set. Rows are grouped by expiry in
// ascending order; Forwards and Rates carry one value per distinct expiry.
type Input struct {
	Prices []float64 `json:"prices,omitempty"`
	Bids   []float64 `json:"bids,omitempty"`
	Asks   []float64 `json:"asks,omitempty"`

	PriceUnit  units.PriceUnit  `json:"price_unit" validate:"required,oneof=vol total_var call normalized_call"`
	Strikes    []float64        `json:"strikes" validate:"required,min=1"`
	StrikeUnit units.StrikeUnit `json:"strike_unit" validate:"required,oneof=strike moneyness log_moneyness"`
	Expiries   []float64        `json:"expiries" validate:"required,min=1,dive,gt=0"`

	Forwards []float64 `json:"forwards" validate:"required,min=1,dive,gt=0"`
	// Rates are continuously compounded zero rates unless
	// RatesAreDiscountFactors is set.
	Rates                   []float64 `json:"rates" validate:"required,min=1"`
	RatesAreDiscountFactors bool      `json:"rates_are_discount_factors,omitempty"`

	Liquidity []float64 `json:"liquidity,omitempty"`
}

// Validate checks the shape of the input. Row-level consistency (strike
// order, duplicate strikes, market parameters) is checked by quotes.Build.
func (in Input) Validate() error {
	if _, err := units.ParsePriceUnit(string(in.PriceUnit)); err != nil {
		return err
	}
	if _, err := units.ParseStrikeUnit(string(in.StrikeUnit)); err != nil {
		return err
	}

	switch {
	case in.Prices != nil && (in.Bids != nil || in.Asks != nil):
		return fmt.Errorf("%w: prices and bids/asks are mutually exclusive", quotes.ErrInvalidInput)
	case in.Prices == nil && (in.Bids == nil || in.Asks == nil):
		return fmt.Errorf("%w: need prices or both bids and asks", quotes.ErrInvalidInput)
	}

	for name, col := range map[string][]float64{"prices": in.Prices, "bids": in.Bids, "asks": in.Asks} {
		for i, v := range col {
			if math.IsNaN(v) || v < 0 {
				return fmt.Errorf("%w: %s[%d]=%v", quotes.ErrInvalidInput, name, i, v)
			}
		}
	}
	for i, r := range in.Rates {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return fmt.Errorf("%w: rates[%d]=%v", quotes.ErrInvalidInput, i, r)
		}
	}
	return nil
}

// columns turns the input into quotes.Columns, converting rates into
// discount factors.
func (in Input) columns() quotes.Columns {
	bids, asks := in.Prices, []float64(nil)
	if in.Prices == nil {
		bids, asks = in.Bids, in.Asks
	}

	return quotes.Columns{
		PriceUnit:       in.PriceUnit,
		StrikeUnit:      in.StrikeUnit,
		Bids:            bids,
		Asks:            asks,
		Strikes:         in.Strikes,
		Expiries:        in.Expiries,
		Forwards:        in.Forwards,
		DiscountFactors: in.discountFactors(),
		Liquidity:       in.Liquidity,
	}
}

// discountFactors maps one rate per distinct expiry to D = exp(-rT). Count
// mismatches are left for quotes.Build, which checks expiry order first.
func (in Input) discountFactors() []float64 {
	if in.RatesAreDiscountFactors {
		return in.Rates
	}

	expiries := distinct(in.Expiries)
	dfs := make([]float64, len(in.Rates))
	for i, r := range in.Rates {
		if i >= len(expiries) {
			break
		}
		dfs[i] = math.Exp(-r * expiries[i])
	}
	return dfs
}

// distinct returns the expiry groups in input order.
func distinct(expiries []float64) []float64 {
	var out []float64
	for i, e := range expiries {
		if i == 0 || e != expiries[i-1] {
			out = append(out, e)
		}
	}
	return out
}
