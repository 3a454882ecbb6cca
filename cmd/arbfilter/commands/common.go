package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wonny/arbfilter/internal/filterconfig"
	"github.com/wonny/arbfilter/internal/marketdata"
	"github.com/wonny/arbfilter/internal/processor"
	"github.com/wonny/arbfilter/internal/units"
	"github.com/wonny/arbfilter/pkg/httputil"
	"github.com/wonny/arbfilter/pkg/logger"
)

// cliLogger writes human-readable logs to stderr, warn level unless verbose.
func cliLogger(g *globalFlags, w io.Writer) *logger.Logger {
	level := "warn"
	if g.verbose {
		level = "debug"
	}
	return logger.NewWithWriter(zerolog.ConsoleWriter{Out: w, NoColor: true}, level, "cli")
}

// =============================================================================
// Input
// =============================================================================

type inputFlags struct {
	path       string
	sheet      string
	priceUnit  string
	strikeUnit string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "input", "i", "", "quotes: .csv, .xlsx or http(s) URL (required)")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "xlsx sheet name (default first sheet)")
	cmd.Flags().StringVar(&f.priceUnit, "in-price-unit", string(units.PriceUnitVol), "input price unit: vol|total_var|call|normalized_call")
	cmd.Flags().StringVar(&f.strikeUnit, "in-strike-unit", string(units.StrikeUnitStrike), "input strike unit: strike|moneyness|log_moneyness")
	cmd.MarkFlagRequired("input")
}

func (f *inputFlags) units() (marketdata.Units, error) {
	pu, err := units.ParsePriceUnit(f.priceUnit)
	if err != nil {
		return marketdata.Units{}, err
	}
	su, err := units.ParseStrikeUnit(f.strikeUnit)
	if err != nil {
		return marketdata.Units{}, err
	}
	return marketdata.Units{Price: pu, Strike: su}, nil
}

func (f *inputFlags) load(ctx context.Context, log *logger.Logger) (processor.Input, error) {
	u, err := f.units()
	if err != nil {
		return processor.Input{}, err
	}
	if f.sheet != "" {
		return marketdata.LoadXLSX(f.path, f.sheet, u)
	}
	return marketdata.Load(ctx, httputil.New(log), f.path, u)
}

// =============================================================================
// Run config
// =============================================================================

type runFlags struct {
	configPath string
	kind       string
	smoothing  float64
	strikeUnit string
	priceUnit  string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML run config (default built-in)")
	cmd.Flags().StringVar(&f.kind, "kind", "", "filter kind override: strike|discard|expiry_forward")
	cmd.Flags().Float64Var(&f.smoothing, "smoothing", 0, "smoothing λ override in [0,1]")
	cmd.Flags().StringVar(&f.strikeUnit, "strike-unit", "", "output strike unit override")
	cmd.Flags().StringVar(&f.priceUnit, "price-unit", "", "output price unit override")
}

// resolve loads the run config and applies flag overrides. Warnings go to w.
func (f *runFlags) resolve(cmd *cobra.Command, w io.Writer) (*filterconfig.Config, error) {
	cfg := filterconfig.Default()
	if f.configPath != "" {
		loaded, _, err := filterconfig.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if f.kind != "" {
		cfg.Filter.Kind = f.kind
	}
	if cmd.Flags().Changed("smoothing") {
		cfg.Filter.Smoothing = f.smoothing
		cfg.Filter.SmoothingPerExpiry = nil
	}
	if f.strikeUnit != "" {
		cfg.Output.StrikeUnit = f.strikeUnit
	}
	if f.priceUnit != "" {
		cfg.Output.PriceUnit = f.priceUnit
	}

	if err := filterconfig.Validate(cfg); err != nil {
		return nil, err
	}
	for _, warn := range filterconfig.Warn(cfg) {
		fmt.Fprintf(w, "⚠️  [%s] %s\n", warn.Code, warn.Message)
	}
	return cfg, nil
}

// parseFloats parses "90,100,110".
func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", part)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no values in %q", s)
	}
	return out, nil
}
