package units

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// =============================================================================
// Unit Tags
// =============================================================================

// StrikeUnit 행사가 표현 단위
type StrikeUnit string

const (
	StrikeUnitStrike       StrikeUnit = "strike"        // K
	StrikeUnitMoneyness    StrikeUnit = "moneyness"     // K / F
	StrikeUnitLogMoneyness StrikeUnit = "log_moneyness" // ln(K / F)
)

// PriceUnit 가격 표현 단위
type PriceUnit string

const (
	PriceUnitVol            PriceUnit = "vol"             // Black implied vol
	PriceUnitTotalVar       PriceUnit = "total_var"       // vol^2 * T
	PriceUnitCall           PriceUnit = "call"            // discounted call premium
	PriceUnitNormalizedCall PriceUnit = "normalized_call" // call / (D * F)
)

var (
	ErrUnknownUnit   = errors.New("unknown unit")
	ErrInvalidMarket = errors.New("invalid market parameters")
)

// ParseStrikeUnit 문자열 → StrikeUnit
func ParseStrikeUnit(s string) (StrikeUnit, error) {
	switch u := StrikeUnit(strings.ToLower(strings.TrimSpace(s))); u {
	case StrikeUnitStrike, StrikeUnitMoneyness, StrikeUnitLogMoneyness:
		return u, nil
	}
	return "", fmt.Errorf("%w: strike unit %q", ErrUnknownUnit, s)
}

// ParsePriceUnit 문자열 → PriceUnit
func ParsePriceUnit(s string) (PriceUnit, error) {
	switch u := PriceUnit(strings.ToLower(strings.TrimSpace(s))); u {
	case PriceUnitVol, PriceUnitTotalVar, PriceUnitCall, PriceUnitNormalizedCall:
		return u, nil
	}
	return "", fmt.Errorf("%w: price unit %q", ErrUnknownUnit, s)
}

// =============================================================================
// Market - 단위 변환 컨텍스트 (만기 하나)
// =============================================================================

// Market holds the per-expiry parameters every conversion needs.
type Market struct {
	Expiry         float64 // year fraction, > 0
	Forward        float64 // > 0
	DiscountFactor float64 // > 0
}

// Validate rejects parameters that would make conversions undefined.
func (m Market) Validate() error {
	switch {
	case !(m.Expiry > 0) || math.IsInf(m.Expiry, 0):
		return fmt.Errorf("%w: expiry %v", ErrInvalidMarket, m.Expiry)
	case !(m.Forward > 0) || math.IsInf(m.Forward, 0):
		return fmt.Errorf("%w: forward %v", ErrInvalidMarket, m.Forward)
	case !(m.DiscountFactor > 0) || math.IsInf(m.DiscountFactor, 0):
		return fmt.Errorf("%w: discount factor %v", ErrInvalidMarket, m.DiscountFactor)
	}
	return nil
}

// Numeraire is the zero-strike call value D*F. Normalized call prices are
// quoted relative to it.
func (m Market) Numeraire() float64 {
	return m.DiscountFactor * m.Forward
}

// ConvertStrike maps a strike between representations.
func (m Market) ConvertStrike(k float64, from, to StrikeUnit) (float64, error) {
	if from == to {
		return k, nil
	}

	var abs float64
	switch from {
	case StrikeUnitStrike:
		abs = k
	case StrikeUnitMoneyness:
		abs = k * m.Forward
	case StrikeUnitLogMoneyness:
		abs = math.Exp(k) * m.Forward
	default:
		return 0, fmt.Errorf("%w: strike unit %q", ErrUnknownUnit, from)
	}

	switch to {
	case StrikeUnitStrike:
		return abs, nil
	case StrikeUnitMoneyness:
		return abs / m.Forward, nil
	case StrikeUnitLogMoneyness:
		return math.Log(abs / m.Forward), nil
	}
	return 0, fmt.Errorf("%w: strike unit %q", ErrUnknownUnit, to)
}

// ConvertPrice maps a price at the given strike between representations.
// Call premium is the pivot: every input is first turned into a discounted
// call price and then into the requested unit.
func (m Market) ConvertPrice(price, strike float64, strikeUnit StrikeUnit, from, to PriceUnit) (float64, error) {
	if from == to {
		return price, nil
	}

	k, err := m.ConvertStrike(strike, strikeUnit, StrikeUnitStrike)
	if err != nil {
		return 0, err
	}

	var call float64
	switch from {
	case PriceUnitCall:
		call = price
	case PriceUnitVol:
		call = m.DiscountFactor * Black(m.Forward, k, m.Expiry, price)
	case PriceUnitTotalVar:
		call = m.DiscountFactor * Black(m.Forward, k, m.Expiry, math.Sqrt(price/m.Expiry))
	case PriceUnitNormalizedCall:
		call = price * m.Numeraire()
	default:
		return 0, fmt.Errorf("%w: price unit %q", ErrUnknownUnit, from)
	}

	switch to {
	case PriceUnitCall:
		return call, nil
	case PriceUnitNormalizedCall:
		return call / m.Numeraire(), nil
	case PriceUnitVol:
		return ImpliedVol(call/m.DiscountFactor, m.Forward, k, m.Expiry), nil
	case PriceUnitTotalVar:
		vol := ImpliedVol(call/m.DiscountFactor, m.Forward, k, m.Expiry)
		return vol * vol * m.Expiry, nil
	}
	return 0, fmt.Errorf("%w: price unit %q", ErrUnknownUnit, to)
}
