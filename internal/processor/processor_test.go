package processor

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/arbfilter/internal/arbitrage"
	"github.com/wonny/arbfilter/internal/quotes"
	"github.com/wonny/arbfilter/internal/units"
	"github.com/wonny/arbfilter/pkg/logger"
)

// =============================================================================
// Fixtures
// =============================================================================

var (
	fiveStrikes = []float64{0.8, 0.91, 1.0, 1.10, 1.22}
	fiveVols    = []float64{0.40, 0.20, 0.15, 0.18, 0.30}
)

// fivePointInput quotes implied vols on absolute strikes around forward.
func fivePointInput(forward, rate float64) Input {
	in := Input{
		Prices:     append([]float64(nil), fiveVols...),
		PriceUnit:  units.PriceUnitVol,
		StrikeUnit: units.StrikeUnitStrike,
		Forwards:   []float64{forward},
		Rates:      []float64{rate},
	}
	for _, m := range fiveStrikes {
		in.Strikes = append(in.Strikes, m*forward)
		in.Expiries = append(in.Expiries, 1)
	}
	return in
}

func newProcessor(t *testing.T, in Input) *Processor {
	t.Helper()
	p, err := New(in)
	require.NoError(t, err)
	return p
}

func byStrike(qs []quotes.Quote) map[float64]quotes.Quote {
	out := make(map[float64]quotes.Quote, len(qs))
	for _, q := range qs {
		out[q.Strike] = q
	}
	return out
}

// =============================================================================
// Filtering end to end
// =============================================================================

func TestProcessor_FivePointScenario(t *testing.T) {
	p := newProcessor(t, fivePointInput(1, 0))
	_, err := p.Filter(arbitrage.Options{Kind: arbitrage.KindStrike, Smoothing: []float64{0}})
	require.NoError(t, err)

	normalized, err := p.Quotes(1, units.StrikeUnitMoneyness, units.PriceUnitNormalizedCall)
	require.NoError(t, err)
	require.Len(t, normalized, 5)
	nq := byStrike(normalized)

	assert.InDelta(t, 0.23458484912941502, nq[0.8].Mid(), 1e-9)
	assert.InDelta(t, nq[0.8].Mid()-units.Black(1, 0.8, 1, 0.40), nq[0.8].Adjustment, 1e-12)
	assert.False(t, nq[1.0].Adjusted())
	assert.InDelta(t, nq[1.10].Mid(), nq[1.22].Mid(), 1e-15)

	vols, err := p.Quotes(1, units.StrikeUnitStrike, units.PriceUnitVol)
	require.NoError(t, err)
	vq := byStrike(vols)

	assert.Greater(t, math.Abs(vq[0.8].Mid()-0.40), 1e-4, "strike 0.80 must be repriced")
	assert.InDelta(t, vq[0.8].Mid()-0.40, vq[0.8].Adjustment, 1e-8)
	assert.InDelta(t, 0.15, vq[1.0].Mid(), 1e-8)
	assert.Zero(t, vq[1.0].Adjustment)
}

func TestProcessor_BoundsInRequestedUnits(t *testing.T) {
	const (
		forward = 100.0
		rate    = 0.05
	)
	df := math.Exp(-rate)

	p := newProcessor(t, fivePointInput(forward, rate))
	_, err := p.Filter(arbitrage.Options{Kind: arbitrage.KindStrike})
	require.NoError(t, err)

	lower, err := p.LowerBound(1, 0.8, units.StrikeUnitMoneyness, units.PriceUnitNormalizedCall)
	require.NoError(t, err)
	upper, err := p.UpperBound(1, 0.8, units.StrikeUnitMoneyness, units.PriceUnitNormalizedCall)
	require.NoError(t, err)
	assert.InDelta(t, 0.21435190539227864, lower, 1e-9)
	assert.InDelta(t, 0.23458484912941502, upper, 1e-9)

	// same query by absolute strike, in discounted call premium
	callLower, err := p.LowerBound(1, 80, units.StrikeUnitStrike, units.PriceUnitCall)
	require.NoError(t, err)
	callUpper, err := p.UpperBound(1, 80, units.StrikeUnitStrike, units.PriceUnitCall)
	require.NoError(t, err)
	assert.InDelta(t, lower*df*forward, callLower, 1e-7)
	assert.InDelta(t, upper*df*forward, callUpper, 1e-7)

	// boundary strikes
	atZero, err := p.UpperBound(1, 0, units.StrikeUnitStrike, units.PriceUnitNormalizedCall)
	require.NoError(t, err)
	assert.Equal(t, 1.0, atZero)
	atInf, err := p.LowerBound(1, math.Inf(1), units.StrikeUnitStrike, units.PriceUnitNormalizedCall)
	require.NoError(t, err)
	assert.Equal(t, 0.0, atInf)
}

func TestProcessor_ScaleInvariance(t *testing.T) {
	unit := newProcessor(t, fivePointInput(1, 0))
	scaled := newProcessor(t, fivePointInput(100, 0.05))

	for _, p := range []*Processor{unit, scaled} {
		_, err := p.Filter(arbitrage.Options{Kind: arbitrage.KindStrike})
		require.NoError(t, err)
	}

	a, err := unit.Quotes(1, units.StrikeUnitMoneyness, units.PriceUnitNormalizedCall)
	require.NoError(t, err)
	b, err := scaled.Quotes(1, units.StrikeUnitMoneyness, units.PriceUnitNormalizedCall)
	require.NoError(t, err)
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].Strike, b[i].Strike)
		assert.InDelta(t, a[i].Mid(), b[i].Mid(), 1e-12)
	}
}

func TestProcessor_CleanSmileRoundTrip(t *testing.T) {
	in := Input{
		Prices:     []float64{0.2, 0.2, 0.2, 0.2, 0.2},
		PriceUnit:  units.PriceUnitVol,
		Strikes:    []float64{-0.2, -0.1, 0, 0.1, 0.2},
		StrikeUnit: units.StrikeUnitLogMoneyness,
		Expiries:   []float64{0.5, 0.5, 0.5, 0.5, 0.5},
		Forwards:   []float64{50},
		Rates:      []float64{0.98},

		RatesAreDiscountFactors: true,
	}
	p := newProcessor(t, in)
	res, err := p.Filter(arbitrage.Options{Kind: arbitrage.KindDiscard})
	require.NoError(t, err)

	for _, r := range res.Reports() {
		assert.Zero(t, r.Changed())
	}

	got, err := p.Quotes(0.5, units.StrikeUnitLogMoneyness, units.PriceUnitVol)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, q := range got {
		assert.InDelta(t, in.Strikes[i], q.Strike, 1e-12)
		assert.InDelta(t, 0.2, q.Mid(), 1e-8)
	}
}

func TestProcessor_BidAskInput(t *testing.T) {
	strikes := []float64{0.9, 1.0, 1.1}
	in := Input{
		PriceUnit:  units.PriceUnitCall,
		Strikes:    strikes,
		StrikeUnit: units.StrikeUnitMoneyness,
		Expiries:   []float64{1, 1, 1},
		Forwards:   []float64{1},
		Rates:      []float64{0},
	}
	for _, k := range strikes {
		mid := units.Black(1, k, 1, 0.2)
		in.Bids = append(in.Bids, mid-0.001)
		in.Asks = append(in.Asks, mid+0.001)
	}

	p := newProcessor(t, in)
	_, err := p.Filter(arbitrage.Options{Kind: arbitrage.KindDiscard})
	require.NoError(t, err)

	rows, err := p.QuoteTable(units.StrikeUnitMoneyness, units.PriceUnitCall)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, 1.0, row.Expiry)
		assert.Equal(t, strikes[i], row.Strike)
		assert.InDelta(t, in.Bids[i], row.Bid, 1e-15)
		assert.InDelta(t, in.Asks[i], row.Ask, 1e-15)
		assert.InDelta(t, 0.5*(row.Bid+row.Ask), row.Mid, 1e-15)
		assert.Equal(t, quotes.DefaultLiquidity(strikes[i]), row.Liquidity)
	}
}

// =============================================================================
// Snapshots and errors
// =============================================================================

func TestProcessor_QueriesBeforeFilter(t *testing.T) {
	p := newProcessor(t, fivePointInput(1, 0))

	_, err := p.Result()
	assert.ErrorIs(t, err, arbitrage.ErrNotFiltered)
	_, err = p.LowerBound(1, 1, units.StrikeUnitStrike, units.PriceUnitVol)
	assert.ErrorIs(t, err, arbitrage.ErrNotFiltered)
	_, err = p.UpperBound(1, 1, units.StrikeUnitStrike, units.PriceUnitVol)
	assert.ErrorIs(t, err, arbitrage.ErrNotFiltered)
	_, err = p.Quotes(1, units.StrikeUnitStrike, units.PriceUnitVol)
	assert.ErrorIs(t, err, arbitrage.ErrNotFiltered)
	_, err = p.QuoteTable(units.StrikeUnitStrike, units.PriceUnitVol)
	assert.ErrorIs(t, err, arbitrage.ErrNotFiltered)
	_, err = p.FilterErrors(units.PriceUnitVol)
	assert.ErrorIs(t, err, arbitrage.ErrNotFiltered)
}

func TestProcessor_UnknownExpiry(t *testing.T) {
	p := newProcessor(t, fivePointInput(1, 0))
	_, err := p.Filter(arbitrage.Options{})
	require.NoError(t, err)

	_, err = p.LowerBound(0.5, 1, units.StrikeUnitStrike, units.PriceUnitVol)
	assert.ErrorIs(t, err, arbitrage.ErrUnknownExpiry)
	_, err = p.Quotes(2, units.StrikeUnitStrike, units.PriceUnitVol)
	assert.ErrorIs(t, err, arbitrage.ErrUnknownExpiry)
}

func TestProcessor_ResultIsSnapshot(t *testing.T) {
	p := newProcessor(t, fivePointInput(1, 0))

	strike, err := p.Filter(arbitrage.Options{})
	require.NoError(t, err)
	assert.Equal(t, arbitrage.KindStrike, strike.Kind())

	discard, err := p.Filter(arbitrage.Options{Kind: arbitrage.KindDiscard})
	require.NoError(t, err)

	latest, err := p.Result()
	require.NoError(t, err)
	assert.Same(t, discard, latest)

	assert.Equal(t, 5, strike.NumQuotes())
	assert.Equal(t, 3, discard.NumQuotes())

	// the raw surface is untouched by either run
	raw := p.Raw()
	assert.Equal(t, 5, raw.NumQuotes())
	assert.Equal(t, units.PriceUnitVol, raw.PriceUnit)
}

func TestProcessor_FilterErrorPropagates(t *testing.T) {
	p := newProcessor(t, fivePointInput(1, 0))

	_, err := p.Filter(arbitrage.Options{Kind: "bogus"})
	assert.ErrorIs(t, err, arbitrage.ErrInvalidOptions)

	_, err = p.Filter(arbitrage.Options{Smoothing: []float64{0, 0.5}})
	assert.ErrorIs(t, err, arbitrage.ErrInvalidOptions)

	_, err = p.Result()
	assert.ErrorIs(t, err, arbitrage.ErrNotFiltered, "failed runs leave no snapshot")
}

func TestNew_InvalidInput(t *testing.T) {
	base := func() Input { return fivePointInput(1, 0) }

	tests := []struct {
		name    string
		mutate  func(*Input)
		wantErr error
	}{
		{"prices and bids", func(in *Input) { in.Bids = in.Prices; in.Asks = in.Prices }, quotes.ErrInvalidInput},
		{"no prices", func(in *Input) { in.Prices = nil }, quotes.ErrInvalidInput},
		{"bids without asks", func(in *Input) { in.Bids, in.Prices = in.Prices, nil }, quotes.ErrInvalidInput},
		{"NaN price", func(in *Input) { in.Prices[1] = math.NaN() }, quotes.ErrInvalidInput},
		{"negative price", func(in *Input) { in.Prices[1] = -0.1 }, quotes.ErrInvalidInput},
		{"infinite rate", func(in *Input) { in.Rates[0] = math.Inf(1) }, quotes.ErrInvalidInput},
		{"price unit", func(in *Input) { in.PriceUnit = "cents" }, units.ErrUnknownUnit},
		{"strike unit", func(in *Input) { in.StrikeUnit = "delta" }, units.ErrUnknownUnit},
		{"rate count", func(in *Input) { in.Rates = []float64{0, 0} }, quotes.ErrInvalidInput},
		{"strike count", func(in *Input) { in.Strikes = in.Strikes[:4] }, quotes.ErrInvalidInput},
		{"duplicate strike", func(in *Input) { in.Strikes[1] = in.Strikes[0] }, quotes.ErrDuplicateStrike},
		{"expiry order", func(in *Input) {
			in.Expiries = []float64{1, 1, 1, 0.5, 0.5}
			in.Forwards = []float64{1, 1}
			in.Rates = []float64{0, 0}
		}, quotes.ErrExpiryOrder},
		{"zero forward", func(in *Input) { in.Forwards[0] = 0 }, units.ErrInvalidMarket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base()
			tt.mutate(&in)
			_, err := New(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestProcessor_LogsReports(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(fivePointInput(1, 0), WithLogger(logger.NewWithWriter(&buf, "debug", "test")))
	require.NoError(t, err)

	_, err = p.Filter(arbitrage.Options{})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"message":"expiry filtered"`)
	assert.Contains(t, out, `"message":"surface filtered"`)
	assert.Contains(t, out, `"adjusted":2`)
}

// =============================================================================
// Filter errors
// =============================================================================

func TestResult_FilterErrors(t *testing.T) {
	p := newProcessor(t, fivePointInput(1, 0))

	strike, err := p.Filter(arbitrage.Options{})
	require.NoError(t, err)
	report, err := strike.FilterErrors(units.PriceUnitNormalizedCall)
	require.NoError(t, err)

	require.Len(t, report.Slices, 1)
	se := report.Slices[0]
	assert.Equal(t, 5, se.Matched)
	assert.Zero(t, se.Discarded)
	assert.Greater(t, se.MAE, 0.0)
	assert.GreaterOrEqual(t, se.RMSE, se.MAE)
	assert.GreaterOrEqual(t, se.MaxAbs, se.RMSE)
	assert.GreaterOrEqual(t, se.MaxAbs, math.Abs(0.23458484912941502-units.Black(1, 0.8, 1, 0.40))-1e-9)
	assert.Equal(t, se.MAE, report.Total.MAE)

	discard, err := p.Filter(arbitrage.Options{Kind: arbitrage.KindDiscard})
	require.NoError(t, err)
	report, err = discard.FilterErrors(units.PriceUnitVol)
	require.NoError(t, err)

	se = report.Slices[0]
	assert.Equal(t, 3, se.Matched)
	assert.Equal(t, 2, se.Discarded)
	assert.Zero(t, se.MAE)
	assert.Zero(t, se.RMSE)
	assert.Equal(t, 2, report.Total.Discarded)

	_, err = discard.FilterErrors("cents")
	assert.ErrorIs(t, err, units.ErrUnknownUnit)
}
