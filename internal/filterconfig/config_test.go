package filterconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/arbfilter/internal/arbitrage"
	"github.com/wonny/arbfilter/internal/units"
	"github.com/wonny/arbfilter/pkg/config"
)

func TestLoad_RepositoryConfig(t *testing.T) {
	path := "../../config/filter.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, data, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, "nightly_expiry_forward", cfg.Meta.Name)

	opts, err := cfg.ToOptions()
	require.NoError(t, err)
	assert.Equal(t, arbitrage.KindForwardExpiry, opts.Kind)
	assert.Equal(t, []float64{0.25}, opts.Smoothing)
	require.NotNil(t, opts.Retry)
	assert.Equal(t, arbitrage.FallbackStrike, opts.Retry.Fallback)
	require.NotNil(t, opts.Safeguard)
	assert.Equal(t, int64(2147483563), opts.Safeguard.Seed)
}

func TestParse_DefaultsFillOmittedSections(t *testing.T) {
	cfg, err := Parse([]byte("meta:\n  name: minimal\n"))
	require.NoError(t, err)

	opts, err := cfg.ToOptions()
	require.NoError(t, err)
	assert.Equal(t, arbitrage.KindStrike, opts.Kind)
	assert.Equal(t, []float64{0}, opts.Smoothing)
	assert.Equal(t, arbitrage.DefaultSmoothingGrid, opts.SmoothingGrid)
	assert.Nil(t, opts.Safeguard)
	assert.Nil(t, opts.Retry)

	su, pu, err := cfg.Units()
	require.NoError(t, err)
	assert.Equal(t, units.StrikeUnitStrike, su)
	assert.Equal(t, units.PriceUnitVol, pu)
}

func TestParse_PerExpirySmoothing(t *testing.T) {
	cfg, err := Parse([]byte(`
meta: {name: per_expiry}
filter:
  kind: strike
  smoothing: 0.5
  smoothing_per_expiry: [0, 0.5, 1]
`))
	require.NoError(t, err)

	opts, err := cfg.ToOptions()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, opts.Smoothing)
}

func TestParse_UnknownFieldFails(t *testing.T) {
	_, err := Parse([]byte("meta: {name: x}\nfilter: {kind: strike, smothing: 0.5}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smothing")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing name", func(c *Config) { c.Meta.Name = "" }, "meta.name"},
		{"kind", func(c *Config) { c.Filter.Kind = "butterfly" }, "filter.kind"},
		{"smoothing", func(c *Config) { c.Filter.Smoothing = 1.5 }, "filter.smoothing"},
		{"per expiry", func(c *Config) { c.Filter.SmoothingPerExpiry = []float64{0, -0.1} }, "filter.smoothing_per_expiry[1]"},
		{"grid", func(c *Config) { c.Filter.SmoothingGrid = []float64{2} }, "filter.smoothing_grid[0]"},
		{"safeguard attempts", func(c *Config) { c.Safeguard.Enable = true; c.Safeguard.MaxAttempts = 0 }, "safeguard.max_attempts"},
		{"safeguard pct", func(c *Config) { c.Safeguard.Enable = true; c.Safeguard.MaxAdjustedPct = 120 }, "safeguard.max_adjusted_pct"},
		{"retry on strike", func(c *Config) { c.Retry.Enable = true }, "retry.enable"},
		{"retry attempts", func(c *Config) {
			c.Filter.Kind = "expiry_forward"
			c.Retry.Enable = true
			c.Retry.MaxAttempts = 0
		}, "retry.max_attempts"},
		{"retry fallback", func(c *Config) {
			c.Filter.Kind = "expiry_forward"
			c.Retry.Enable = true
			c.Retry.Fallback = "ignore"
		}, "retry.fallback"},
		{"strike unit", func(c *Config) { c.Output.StrikeUnit = "delta" }, "output.strike_unit"},
		{"price unit", func(c *Config) { c.Output.PriceUnit = "cents" }, "output.price_unit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			var verr ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.NoError(t, Validate(Default()))
}

func TestWarn(t *testing.T) {
	cfg := Default()
	assert.Empty(t, Warn(cfg))

	cfg.Filter.Kind = string(arbitrage.KindForwardExpiry)
	cfg.Safeguard.Enable = true
	cfg.Safeguard.MaxAdjustedPct = 60

	codes := map[string]bool{}
	for _, w := range Warn(cfg) {
		codes[w.Code] = true
	}
	assert.True(t, codes["NO_RETRY"])
	assert.True(t, codes["LOOSE_SAFEGUARD"])
}

func TestHash_Deterministic(t *testing.T) {
	a, err := Hash(Default())
	require.NoError(t, err)
	b, err := Hash(Default())
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.Equal(t, a, b)

	changed := Default()
	changed.Filter.Smoothing = 0.5
	c, err := Hash(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestNewSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("meta: {name: snap}\n"), 0o644))

	cfg, data, err := Load(path)
	require.NoError(t, err)

	snap, err := NewSnapshot(cfg, data)
	require.NoError(t, err)
	assert.Equal(t, "snap", snap.Name)
	assert.Equal(t, "meta: {name: snap}\n", snap.ConfigYAML)
	assert.Len(t, snap.ConfigHash, 64)
	assert.False(t, snap.CreatedAt.IsZero())
}

func TestFromEnv(t *testing.T) {
	cfg := FromEnv(config.FilterConfig{Kind: "discard", Smoothing: 0.5, PriceUnit: "call"})
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "env", cfg.Meta.Name)
	assert.Equal(t, "discard", cfg.Filter.Kind)
	assert.Equal(t, 0.5, cfg.Filter.Smoothing)
	assert.Equal(t, "strike", cfg.Output.StrikeUnit)
	assert.Equal(t, "call", cfg.Output.PriceUnit)

	opts, err := cfg.ToOptions()
	require.NoError(t, err)
	assert.Equal(t, arbitrage.KindDiscard, opts.Kind)
}
