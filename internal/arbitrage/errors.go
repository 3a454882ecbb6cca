package arbitrage

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownExpiry      = errors.New("unknown expiry")
	ErrNotFiltered        = errors.New("bounds queried before filtering")
	ErrUnitMismatch       = errors.New("surface must be in normalized_call/moneyness units")
	ErrInvalidOptions     = errors.New("invalid filter options")
	ErrCalendarInfeasible = errors.New("calendar lower bound exceeds upper bound")
	ErrFrozen             = errors.New("collection is frozen")
	ErrExpiryOrder        = errors.New("sets out of expiry order")
)

// InfeasibleError reports an expiry whose calendar constraints left an empty
// admissible interval.
type InfeasibleError struct {
	Expiry   float64
	Strike   float64
	Lower    float64
	Upper    float64
	Attempts int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("expiry %v strike %v: lower %.6g > upper %.6g after %d attempt(s)",
		e.Expiry, e.Strike, e.Lower, e.Upper, e.Attempts)
}

func (e *InfeasibleError) Unwrap() error {
	return ErrCalendarInfeasible
}
