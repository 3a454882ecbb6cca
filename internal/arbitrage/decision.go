package arbitrage

import "fmt"

// Outcome 호가 판정 결과
type Outcome int

const (
	Admitted      Outcome = iota // 구간 안: 그대로 편입
	Rejected                     // 구간 밖: 보정 또는 폐기 대상
	RequiresRetry                // 구간 자체가 비어 있음: 상위에서 재시도
)

func (o Outcome) String() string {
	switch o {
	case Admitted:
		return "admitted"
	case Rejected:
		return "rejected"
	case RequiresRetry:
		return "requires_retry"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Reason explains a non-admitted outcome.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonBelowLower      Reason = "below_lower"
	ReasonAboveUpper      Reason = "above_upper"
	ReasonCalendar        Reason = "calendar_lower_above_upper"
	ReasonPreviousPremium Reason = "previous_premium_above_upper"
)

// boundTolerance absorbs rounding when an admissible interval collapses to a
// point.
const boundTolerance = 1e-12

// admitTolerance absorbs rounding in the admission test, e.g. a quote priced
// at intrinsic against a chord that rounds one ulp below it. Must stay well
// under boundTolerance: edge admissions feed the secants of later bounds.
const admitTolerance = 1e-14

// Decision is the evaluation of one quote against the live admitted set.
type Decision struct {
	Outcome   Outcome
	Reason    Reason
	Strike    float64
	Mid       float64
	Lower     float64
	Upper     float64
	Suggested float64 // RequiresRetry: how far the upper bound falls short
}

func decide(strike, mid, lower, upper float64) Decision {
	d := Decision{Outcome: Admitted, Strike: strike, Mid: mid, Lower: lower, Upper: upper}
	switch {
	case mid < lower-admitTolerance:
		d.Outcome, d.Reason = Rejected, ReasonBelowLower
	case mid > upper+admitTolerance:
		d.Outcome, d.Reason = Rejected, ReasonAboveUpper
	}
	return d
}

// Target is the repriced mid of a rejected quote: λ is the weight placed on
// moving away from the violated bound.
func (d Decision) Target(lambda float64) float64 {
	width := d.Upper - d.Lower
	if width < 0 {
		if -width > boundTolerance {
			panic(fmt.Sprintf("arbitrage: upper bound %v below lower bound %v at strike %v", d.Upper, d.Lower, d.Strike))
		}
		width = 0
	}

	switch d.Reason {
	case ReasonBelowLower:
		return d.Lower + lambda*width
	case ReasonAboveUpper:
		return d.Lower + (1-lambda)*width
	}
	panic(fmt.Sprintf("arbitrage: adjusting quote at strike %v with outcome %s", d.Strike, d.Outcome))
}

func (d Decision) infeasible(expiry float64, attempts int) *InfeasibleError {
	return &InfeasibleError{Expiry: expiry, Strike: d.Strike, Lower: d.Lower, Upper: d.Upper, Attempts: attempts}
}
