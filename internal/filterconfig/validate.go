package filterconfig

import (
	"fmt"
	"math"

	"github.com/wonny/arbfilter/internal/arbitrage"
	"github.com/wonny/arbfilter/internal/units"
)

// ValidationError 검증 실패 (실행 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.Name == "" {
		return ValidationError{"meta.name", "required"}
	}

	// === Filter ===
	kind, err := arbitrage.ParseKind(cfg.Filter.Kind)
	if err != nil {
		return ValidationError{"filter.kind", "must be strike, discard or expiry_forward"}
	}
	if err := validateLambda(cfg.Filter.Smoothing, "filter.smoothing"); err != nil {
		return err
	}
	for i, l := range cfg.Filter.SmoothingPerExpiry {
		if err := validateLambda(l, fmt.Sprintf("filter.smoothing_per_expiry[%d]", i)); err != nil {
			return err
		}
	}
	for i, l := range cfg.Filter.SmoothingGrid {
		if err := validateLambda(l, fmt.Sprintf("filter.smoothing_grid[%d]", i)); err != nil {
			return err
		}
	}

	// === Safeguard ===
	if cfg.Safeguard.Enable {
		if cfg.Safeguard.MaxAttempts < 1 {
			return ValidationError{"safeguard.max_attempts", "must be >= 1"}
		}
		if cfg.Safeguard.MaxAdjustedPct < 0 || cfg.Safeguard.MaxAdjustedPct > 100 {
			return ValidationError{"safeguard.max_adjusted_pct", "must be in range [0, 100]"}
		}
	}

	// === Retry ===
	if cfg.Retry.Enable {
		if kind != arbitrage.KindForwardExpiry {
			return ValidationError{"retry.enable", "only valid with filter.kind=expiry_forward"}
		}
		if cfg.Retry.MaxAttempts < 1 {
			return ValidationError{"retry.max_attempts", "must be >= 1"}
		}
		if _, err := arbitrage.ParseFallback(cfg.Retry.Fallback); err != nil {
			return ValidationError{"retry.fallback", "must be none, discard or strike"}
		}
	}

	// === Output ===
	if _, err := units.ParseStrikeUnit(cfg.Output.StrikeUnit); err != nil {
		return ValidationError{"output.strike_unit", err.Error()}
	}
	if _, err := units.ParsePriceUnit(cfg.Output.PriceUnit); err != nil {
		return ValidationError{"output.price_unit", err.Error()}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Filter.Kind == string(arbitrage.KindForwardExpiry) && !cfg.Retry.Enable {
		warnings = append(warnings, Warning{
			Code:    "NO_RETRY",
			Message: "expiry_forward without retry: 만기 간 하한 위반 시 실행 실패",
		})
	}

	if cfg.Filter.Kind == string(arbitrage.KindDiscard) && cfg.Filter.Smoothing != 0 {
		warnings = append(warnings, Warning{
			Code:    "UNUSED_SMOOTHING",
			Message: "discard 필터는 smoothing을 사용하지 않음",
		})
	}

	if cfg.Safeguard.Enable && cfg.Safeguard.MaxAdjustedPct >= 50 {
		warnings = append(warnings, Warning{
			Code:    "LOOSE_SAFEGUARD",
			Message: "max_adjusted_pct >= 50%: safeguard가 거의 동작하지 않음",
		})
	}

	return warnings
}

// validateLambda는 λ가 0~1 범위인지 검증
func validateLambda(l float64, field string) error {
	if math.IsNaN(l) || l < 0 || l > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}
