package units

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	impliedVolTolerance = 1e-12
	impliedVolMaxIter   = 200
	impliedVolUpper     = 1e3 // bracket cap; prices beyond it saturate
)

// Black returns the undiscounted Black call price.
//
// Degenerate inputs follow the payoff limits: zero strike gives F, infinite
// strike gives 0, zero vol or zero expiry gives the intrinsic value and
// infinite vol gives F.
func Black(forward, strike, expiry, vol float64) float64 {
	switch {
	case strike <= 0:
		return forward
	case math.IsInf(strike, 1):
		return 0
	case vol <= 0 || expiry <= 0:
		return math.Max(forward-strike, 0)
	case math.IsInf(vol, 1):
		return forward
	}

	sd := vol * math.Sqrt(expiry)
	d1 := (math.Log(forward/strike) + 0.5*sd*sd) / sd
	d2 := d1 - sd
	return forward*distuv.UnitNormal.CDF(d1) - strike*distuv.UnitNormal.CDF(d2)
}

// ImpliedVol inverts Black for an undiscounted call price.
//
// Saturation at the no-arbitrage price bounds:
//   - price >= forward (the zero-strike value) → +Inf
//   - price <= intrinsic → 0
func ImpliedVol(price, forward, strike, expiry float64) float64 {
	intrinsic := math.Max(forward-strike, 0)
	switch {
	case math.IsNaN(price):
		return math.NaN()
	case price >= forward:
		return math.Inf(1)
	case price <= intrinsic:
		return 0
	}

	// Black is increasing in vol, so bisection on a bracket is safe.
	lo, hi := 0.0, 1.0
	for Black(forward, strike, expiry, hi) < price {
		hi *= 2
		if hi > impliedVolUpper {
			return math.Inf(1)
		}
	}

	for i := 0; i < impliedVolMaxIter; i++ {
		mid := 0.5 * (lo + hi)
		if Black(forward, strike, expiry, mid) < price {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo < impliedVolTolerance {
			break
		}
	}
	return 0.5 * (lo + hi)
}
