package arbitrage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/arbfilter/internal/quotes"
)

// calendarArbitrage prices a short expiry at 50% vol and a longer one at
// 10%, so the longer calls are cheaper at every moneyness.
func calendarArbitrage() []fixtureSlice {
	strikes := []float64{0.8, 0.9, 1.0, 1.1, 1.2}
	return []fixtureSlice{
		blackSlice(0.5, strikes, []float64{0.5, 0.5, 0.5, 0.5, 0.5}),
		blackSlice(1.0, strikes, []float64{0.1, 0.1, 0.1, 0.1, 0.1}),
	}
}

func TestForwardExpiryFilter_InfeasibleWithoutRetry(t *testing.T) {
	f := NewForwardExpiryFilter(Options{})
	err := f.Filter(surfaceOf(t, calendarArbitrage()...))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCalendarInfeasible)

	var infeasible *InfeasibleError
	require.True(t, errors.As(err, &infeasible))
	assert.Equal(t, 1.0, infeasible.Expiry)
	assert.Equal(t, 0.8, infeasible.Strike)
	assert.Equal(t, 1, infeasible.Attempts)
	assert.Greater(t, infeasible.Lower, infeasible.Upper)

	_, err = f.Collection()
	assert.ErrorIs(t, err, ErrNotFiltered)
}

func TestForwardExpiryFilter_StrikeFilterIgnoresCalendar(t *testing.T) {
	f := NewStrikeFilter(Options{})
	runFilter(t, f, surfaceOf(t, calendarArbitrage()...))
	for _, r := range f.Reports() {
		assert.Zero(t, r.Changed())
	}
}

func TestForwardExpiryFilter_RetryBumpsTopQuote(t *testing.T) {
	retry := RetryPolicy{MaxAttempts: 10, Fallback: FallbackNone}
	f := NewForwardExpiryFilter(Options{Retry: &retry})
	c := runFilter(t, f, surfaceOf(t, calendarArbitrage()...))

	reports := f.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[0].Attempts)
	assert.Zero(t, reports[0].Changed())

	// the ATM quote is first clamped up to the carried 0.5y price, which
	// saves one bump
	r := reports[1]
	assert.Equal(t, 3, r.Attempts)
	assert.Equal(t, 5, r.Admitted)
	assert.Equal(t, 5, r.Adjusted)
	assert.Equal(t, Fallback(""), r.Fallback)

	early, err := c.Set(0.5)
	require.NoError(t, err)
	late, err := c.Set(1.0)
	require.NoError(t, err)

	for _, q := range early.Quotes() {
		assert.GreaterOrEqual(t, late.Value(q.Strike), q.Mid()-1e-12, "k=%v", q.Strike)
	}
	for _, q := range late.Quotes() {
		assert.GreaterOrEqual(t, q.Mid(), calendarLower([]*Set{early}, late, q.Strike)-1e-12, "k=%v", q.Strike)
	}
}

func TestForwardExpiryFilter_StrikeFallback(t *testing.T) {
	retry := RetryPolicy{MaxAttempts: 1, Fallback: FallbackStrike}
	f := NewForwardExpiryFilter(Options{Retry: &retry})
	runFilter(t, f, surfaceOf(t, calendarArbitrage()...))

	r := f.Reports()[1]
	assert.Equal(t, FallbackStrike, r.Fallback)
	assert.Equal(t, 2, r.Attempts)
	assert.Equal(t, 5, r.Admitted)
	assert.Zero(t, r.Changed())

	got, err := f.Quotes(1.0)
	require.NoError(t, err)
	raw := calendarArbitrage()[1]
	for i, q := range got {
		assert.Equal(t, raw.mids[i], q.Mid())
	}
}

func TestForwardExpiryFilter_DiscardFallbackCanStillFail(t *testing.T) {
	retry := RetryPolicy{MaxAttempts: 1, Fallback: FallbackDiscard}
	f := NewForwardExpiryFilter(Options{Retry: &retry})
	err := f.Filter(surfaceOf(t, calendarArbitrage()...))

	var infeasible *InfeasibleError
	require.True(t, errors.As(err, &infeasible))
	assert.Equal(t, 2, infeasible.Attempts)
}

func TestForwardExpiryFilter_CalendarConsistency(t *testing.T) {
	f := NewForwardExpiryFilter(Options{})
	c := runFilter(t, f, noisySurface(t, 0.08))
	sets := c.Sets()

	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			early, late := sets[i], sets[j]
			for n := 1; n < 200; n++ {
				m := 0.5 + 0.005*float64(n)
				carried := calendarScale(early.LowerBound(m), early, late)
				own, err := f.LowerBound(late.Expiry, m)
				require.NoError(t, err)
				assert.LessOrEqual(t, carried, own, "T1=%v T2=%v m=%v", early.Expiry, late.Expiry, m)
			}
			for _, q := range late.Quotes() {
				assert.GreaterOrEqual(t, q.Mid(), calendarLower(sets[:j], late, q.Strike)-1e-12)
			}
		}
	}
}

func TestForwardExpiryFilter_MatchesStrikeFilterOnCleanData(t *testing.T) {
	forward := NewForwardExpiryFilter(Options{})
	strike := NewStrikeFilter(Options{})
	runFilter(t, forward, noisySurface(t, 0))
	runFilter(t, strike, noisySurface(t, 0))

	for _, e := range []float64{0.25, 0.5, 1.0} {
		fq, err := forward.Quotes(e)
		require.NoError(t, err)
		sq, err := strike.Quotes(e)
		require.NoError(t, err)
		assert.Equal(t, sq, fq)
	}
}

func TestForwardExpiryFilter_TruncateTop(t *testing.T) {
	early := NewSet(0.5, 1, 1)
	require.True(t, early.AddQuoteIfFeasible(quotes.NewMidQuote(0.25, 0.8, 0)))
	require.True(t, early.AddQuoteIfFeasible(quotes.NewMidQuote(0.19, 0.9, 0)))
	// carried lower bound at 1.0: 0.19 - 0.6*0.1
	carried := early.LowerBound(1.0)
	require.InDelta(t, 0.13, carried, 1e-12)

	sl, err := surfaceOf(t, fixtureSlice{expiry: 1, strikes: []float64{1.0, 1.2}, mids: []float64{0.04, 0.02}}).Slice(1)
	require.NoError(t, err)
	order := rankByLiquidity(sl.Quotes())
	require.Equal(t, 1.0, order[0].Strike)

	f := NewForwardExpiryFilter(Options{})
	tests := []struct {
		name   string
		lambda float64
		want   float64
	}{
		{"onto the carried bound", 0, carried},
		{"smoothed into the interval", 0.5, carried + 0.5*(1-carried)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.truncateTop(sl, order, tt.lambda, []*Set{early})
			assert.InDelta(t, tt.want, got[0].Mid(), 1e-12)
			assert.True(t, got[0].Adjusted())
			assert.Equal(t, order[1:], got[1:])
			assert.Equal(t, 0.04, order[0].Mid(), "input order is not modified")
		})
	}

	// a top quote already inside its interval is left alone
	inside := f.truncateTop(sl, order, 0, nil)
	assert.Equal(t, order, inside)
}
