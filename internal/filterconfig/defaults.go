package filterconfig

import (
	"github.com/wonny/arbfilter/internal/arbitrage"
	"github.com/wonny/arbfilter/internal/units"
	"github.com/wonny/arbfilter/pkg/config"
)

// Default returns the configuration used when no run file is given.
func Default() *Config {
	sg := arbitrage.DefaultSafeguard()
	retry := arbitrage.DefaultRetryPolicy()
	return &Config{
		Meta: Meta{Name: "default"},
		Filter: Filter{
			Kind:          string(arbitrage.KindStrike),
			Smoothing:     arbitrage.DefaultSmoothing,
			SmoothingGrid: append([]float64(nil), arbitrage.DefaultSmoothingGrid...),
		},
		Safeguard: Safeguard{MaxAttempts: sg.MaxAttempts, MaxAdjustedPct: sg.MaxAdjustedPct, Seed: sg.Seed},
		Retry:     Retry{MaxAttempts: retry.MaxAttempts, Fallback: string(retry.Fallback)},
		Output: Output{
			StrikeUnit: string(units.StrikeUnitStrike),
			PriceUnit:  string(units.PriceUnitVol),
		},
	}
}

// ToOptions converts a validated config into filter options.
func (c *Config) ToOptions() (arbitrage.Options, error) {
	kind, err := arbitrage.ParseKind(c.Filter.Kind)
	if err != nil {
		return arbitrage.Options{}, err
	}

	opts := arbitrage.Options{
		Kind:          kind,
		Smoothing:     []float64{c.Filter.Smoothing},
		SmoothingGrid: append([]float64(nil), c.Filter.SmoothingGrid...),
	}
	if len(c.Filter.SmoothingPerExpiry) > 0 {
		opts.Smoothing = append([]float64(nil), c.Filter.SmoothingPerExpiry...)
	}

	if c.Safeguard.Enable {
		opts.Safeguard = &arbitrage.Safeguard{
			MaxAttempts:    c.Safeguard.MaxAttempts,
			MaxAdjustedPct: c.Safeguard.MaxAdjustedPct,
			Seed:           c.Safeguard.Seed,
		}
	}
	if c.Retry.Enable {
		fallback, err := arbitrage.ParseFallback(c.Retry.Fallback)
		if err != nil {
			return arbitrage.Options{}, err
		}
		opts.Retry = &arbitrage.RetryPolicy{MaxAttempts: c.Retry.MaxAttempts, Fallback: fallback}
	}

	return opts, opts.Validate()
}

// Units returns the parsed output units.
func (c *Config) Units() (units.StrikeUnit, units.PriceUnit, error) {
	su, err := units.ParseStrikeUnit(c.Output.StrikeUnit)
	if err != nil {
		return "", "", err
	}
	pu, err := units.ParsePriceUnit(c.Output.PriceUnit)
	if err != nil {
		return "", "", err
	}
	return su, pu, nil
}

// FromEnv overlays the process-wide filter defaults on Default.
func FromEnv(f config.FilterConfig) *Config {
	cfg := Default()
	cfg.Meta.Name = "env"
	if f.Kind != "" {
		cfg.Filter.Kind = f.Kind
	}
	cfg.Filter.Smoothing = f.Smoothing
	if f.StrikeUnit != "" {
		cfg.Output.StrikeUnit = f.StrikeUnit
	}
	if f.PriceUnit != "" {
		cfg.Output.PriceUnit = f.PriceUnit
	}
	return cfg
}
