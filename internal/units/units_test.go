package units

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	su, err := ParseStrikeUnit(" Moneyness ")
	require.NoError(t, err)
	assert.Equal(t, StrikeUnitMoneyness, su)

	pu, err := ParsePriceUnit("normalized_call")
	require.NoError(t, err)
	assert.Equal(t, PriceUnitNormalizedCall, pu)

	_, err = ParseStrikeUnit("delta")
	assert.ErrorIs(t, err, ErrUnknownUnit)

	_, err = ParsePriceUnit("put")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestMarket_Validate(t *testing.T) {
	tests := []struct {
		name    string
		market  Market
		wantErr bool
	}{
		{"valid", Market{Expiry: 1, Forward: 100, DiscountFactor: 0.98}, false},
		{"zero expiry", Market{Expiry: 0, Forward: 100, DiscountFactor: 1}, true},
		{"negative forward", Market{Expiry: 1, Forward: -1, DiscountFactor: 1}, true},
		{"nan discount", Market{Expiry: 1, Forward: 100, DiscountFactor: math.NaN()}, true},
		{"inf forward", Market{Expiry: 1, Forward: math.Inf(1), DiscountFactor: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.market.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMarket)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMarket_ConvertStrike(t *testing.T) {
	m := Market{Expiry: 0.5, Forward: 200, DiscountFactor: 0.99}

	k, err := m.ConvertStrike(220, StrikeUnitStrike, StrikeUnitMoneyness)
	require.NoError(t, err)
	assert.InDelta(t, 1.1, k, 1e-12)

	k, err = m.ConvertStrike(1.1, StrikeUnitMoneyness, StrikeUnitLogMoneyness)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(1.1), k, 1e-12)

	k, err = m.ConvertStrike(math.Log(0.9), StrikeUnitLogMoneyness, StrikeUnitStrike)
	require.NoError(t, err)
	assert.InDelta(t, 180, k, 1e-9)

	_, err = m.ConvertStrike(1, "delta", StrikeUnitStrike)
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestMarket_ConvertPrice_RoundTrip(t *testing.T) {
	m := Market{Expiry: 0.75, Forward: 105, DiscountFactor: 0.97}
	strikes := []float64{80, 95, 105, 120, 140}
	vol := 0.23

	for _, k := range strikes {
		call, err := m.ConvertPrice(vol, k, StrikeUnitStrike, PriceUnitVol, PriceUnitCall)
		require.NoError(t, err)
		assert.InDelta(t, m.DiscountFactor*Black(m.Forward, k, m.Expiry, vol), call, 1e-12)

		norm, err := m.ConvertPrice(call, k, StrikeUnitStrike, PriceUnitCall, PriceUnitNormalizedCall)
		require.NoError(t, err)
		assert.InDelta(t, call/(m.DiscountFactor*m.Forward), norm, 1e-12)

		back, err := m.ConvertPrice(norm, k/m.Forward, StrikeUnitMoneyness, PriceUnitNormalizedCall, PriceUnitVol)
		require.NoError(t, err)
		assert.InDelta(t, vol, back, 1e-8)

		w, err := m.ConvertPrice(norm, k/m.Forward, StrikeUnitMoneyness, PriceUnitNormalizedCall, PriceUnitTotalVar)
		require.NoError(t, err)
		assert.InDelta(t, vol*vol*m.Expiry, w, 1e-8)
	}
}

func TestBlack_Limits(t *testing.T) {
	assert.Equal(t, 100.0, Black(100, 0, 1, 0.2))
	assert.Equal(t, 0.0, Black(100, math.Inf(1), 1, 0.2))
	assert.Equal(t, 10.0, Black(100, 90, 1, 0))
	assert.Equal(t, 0.0, Black(100, 110, 0, 0.2))
	assert.Equal(t, 100.0, Black(100, 110, 1, math.Inf(1)))

	atm := Black(100, 100, 1, 0.2)
	assert.InDelta(t, 7.9656, atm, 1e-4)
}

func TestImpliedVol_Saturation(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		want  float64
	}{
		{"at forward", 100, math.Inf(1)},
		{"above forward", 150, math.Inf(1)},
		{"at intrinsic", 10, 0},
		{"below intrinsic", 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ImpliedVol(tt.price, 100, 90, 1))
		})
	}

	assert.True(t, math.IsNaN(ImpliedVol(math.NaN(), 100, 90, 1)))
}

func TestImpliedVol_Inverts(t *testing.T) {
	for _, vol := range []float64{0.1, 0.25, 0.6, 1.2} {
		for _, k := range []float64{0.7, 1.0, 1.4} {
			p := Black(1, k, 2, vol)
			assert.InDelta(t, vol, ImpliedVol(p, 1, k, 2), 1e-7, "vol=%v k=%v", vol, k)
		}
	}
}
