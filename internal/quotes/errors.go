package quotes

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid quote input")
	ErrInvalidQuote    = errors.New("invalid quote")
	ErrDuplicateStrike = errors.New("duplicate strike")
	ErrStrikeOrder     = errors.New("strikes out of order")
	ErrExpiryOrder     = errors.New("expiries out of ascending order")
	ErrDuplicateExpiry = errors.New("duplicate expiry")
	ErrUnknownExpiry   = errors.New("unknown expiry")
)
