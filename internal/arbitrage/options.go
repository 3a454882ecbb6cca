package arbitrage

import (
	"fmt"
	"math"
	"strings"
)

// =============================================================================
// Filter Kind
// =============================================================================

// Kind 필터 종류
type Kind string

const (
	KindStrike        Kind = "strike"         // 보정 후 편입
	KindDiscard       Kind = "discard"        // 실행 불가 호가 폐기
	KindForwardExpiry Kind = "expiry_forward" // strike + 만기 간 하한 전파
)

// ParseKind 문자열 → Kind
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindStrike, KindDiscard, KindForwardExpiry:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown filter kind %q", ErrInvalidOptions, s)
}

// =============================================================================
// Policies
// =============================================================================

// Fallback is applied once a retry policy runs out of attempts.
type Fallback string

const (
	FallbackNone    Fallback = "none"    // InfeasibleError 반환
	FallbackDiscard Fallback = "discard" // 만기 간 구간이 빈 호가 폐기
	FallbackStrike  Fallback = "strike"  // 해당 만기는 strike 필터로만 처리
)

// ParseFallback 문자열 → Fallback
func ParseFallback(s string) (Fallback, error) {
	switch f := Fallback(strings.ToLower(strings.TrimSpace(s))); f {
	case FallbackNone, FallbackDiscard, FallbackStrike:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown fallback %q", ErrInvalidOptions, s)
}

// RetryPolicy recovers a calendar-infeasible expiry. The most liquid quote is
// first clamped into [max(intrinsic, calendar lower bound), 1], then bumped
// towards the maximum normalized price over MaxAttempts steps, re-filtering
// from scratch each time.
type RetryPolicy struct {
	MaxAttempts int      `json:"max_attempts"`
	Fallback    Fallback `json:"fallback"`
}

// DefaultRetryPolicy 기본 재시도 정책
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 10, Fallback: FallbackStrike}
}

// Safeguard re-runs an expiry with the admission order reshuffled (the most
// liquid quote stays first) when too many quotes were adjusted or dropped,
// and keeps the run that changed the fewest quotes.
type Safeguard struct {
	MaxAttempts    int     `json:"max_attempts"`
	MaxAdjustedPct float64 `json:"max_adjusted_pct"` // 0-100
	Seed           int64   `json:"seed"`
}

// DefaultSafeguard 기본 safeguard 설정
func DefaultSafeguard() Safeguard {
	return Safeguard{MaxAttempts: 5, MaxAdjustedPct: 10, Seed: 2147483563}
}

// =============================================================================
// Options
// =============================================================================

// DefaultSmoothing is λ when none is given: adjusted quotes rest on the
// violated bound.
const DefaultSmoothing = 0.0

// DefaultSmoothingGrid is carried for parameter search and not read by the
// filters.
var DefaultSmoothingGrid = []float64{0, 0.25, 0.5, 0.75, 1}

// Options 필터 실행 설정
type Options struct {
	Kind Kind `json:"kind"`

	// Smoothing is λ: one value for every expiry or one per expiry.
	Smoothing     []float64 `json:"smoothing,omitempty"`
	SmoothingGrid []float64 `json:"smoothing_grid,omitempty"`

	Safeguard *Safeguard   `json:"safeguard,omitempty"`
	Retry     *RetryPolicy `json:"retry,omitempty"`
}

// DefaultOptions 기본 설정 (strike 필터, λ=0)
func DefaultOptions() Options {
	return Options{
		Kind:          KindStrike,
		Smoothing:     []float64{DefaultSmoothing},
		SmoothingGrid: append([]float64(nil), DefaultSmoothingGrid...),
	}
}

// Validate checks options independent of the surface.
func (o Options) Validate() error {
	if _, err := ParseKind(string(o.Kind)); err != nil {
		return err
	}
	for i, l := range o.Smoothing {
		if math.IsNaN(l) || l < 0 || l > 1 {
			return fmt.Errorf("%w: smoothing[%d]=%v outside [0,1]", ErrInvalidOptions, i, l)
		}
	}
	if sg := o.Safeguard; sg != nil {
		if sg.MaxAttempts < 1 {
			return fmt.Errorf("%w: safeguard max_attempts must be >= 1", ErrInvalidOptions)
		}
		if sg.MaxAdjustedPct < 0 || sg.MaxAdjustedPct > 100 {
			return fmt.Errorf("%w: safeguard max_adjusted_pct must be in [0,100]", ErrInvalidOptions)
		}
	}
	if r := o.Retry; r != nil {
		if o.Kind != KindForwardExpiry {
			return fmt.Errorf("%w: retry policy requires kind %q", ErrInvalidOptions, KindForwardExpiry)
		}
		if r.MaxAttempts < 1 {
			return fmt.Errorf("%w: retry max_attempts must be >= 1", ErrInvalidOptions)
		}
		if _, err := ParseFallback(string(r.Fallback)); err != nil {
			return err
		}
	}
	return nil
}

// smoothingFor expands Smoothing to one λ per expiry.
func (o Options) smoothingFor(n int) ([]float64, error) {
	out := make([]float64, n)
	switch len(o.Smoothing) {
	case 0:
		for i := range out {
			out[i] = DefaultSmoothing
		}
	case 1:
		for i := range out {
			out[i] = o.Smoothing[0]
		}
	case n:
		copy(out, o.Smoothing)
	default:
		return nil, fmt.Errorf("%w: %d smoothing values for %d expiries", ErrInvalidOptions, len(o.Smoothing), n)
	}
	return out, nil
}
