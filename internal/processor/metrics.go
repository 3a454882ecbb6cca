package processor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/arbfilter/internal/units"
)

// =============================================================================
// Filter Errors - 필터 전후 mid 차이 통계
// =============================================================================

// SliceErrors 만기별 필터 오차
type SliceErrors struct {
	Expiry    float64 `json:"expiry"`
	Matched   int     `json:"matched"`   // 필터 후에도 남은 호가
	Discarded int     `json:"discarded"` // 필터가 제거한 호가
	MAE       float64 `json:"mae"`
	RMSE      float64 `json:"rmse"`
	MaxAbs    float64 `json:"max_abs"`
}

// ErrorReport 필터 오차 요약
type ErrorReport struct {
	PriceUnit units.PriceUnit `json:"price_unit"`
	Slices    []SliceErrors   `json:"slices"`
	Total     SliceErrors     `json:"total"` // Expiry is 0
}

// FilterErrors measures how far the filter moved mids, in priceUnit. Filtered
// quotes are matched to raw ones by moneyness.
func (r *Result) FilterErrors(priceUnit units.PriceUnit) (*ErrorReport, error) {
	if _, err := units.ParsePriceUnit(string(priceUnit)); err != nil {
		return nil, err
	}

	report := &ErrorReport{PriceUnit: priceUnit}
	var all []float64
	discarded := 0

	for _, raw := range r.normalized.Slices() {
		filtered, err := r.filtered.Slice(raw.Expiry)
		if err != nil {
			return nil, err
		}
		m := raw.Market()

		var diffs []float64
		for _, q := range raw.Quotes() {
			fq, ok := filtered.Quote(q.Strike)
			if !ok {
				continue
			}
			before, err := m.ConvertPrice(q.Mid(), q.Strike, units.StrikeUnitMoneyness, units.PriceUnitNormalizedCall, priceUnit)
			if err != nil {
				return nil, err
			}
			after, err := m.ConvertPrice(fq.Mid(), q.Strike, units.StrikeUnitMoneyness, units.PriceUnitNormalizedCall, priceUnit)
			if err != nil {
				return nil, err
			}
			diffs = append(diffs, after-before)
		}

		se := summarize(raw.Expiry, diffs)
		se.Discarded = raw.Len() - se.Matched
		if err := checkFinite(se); err != nil {
			return nil, err
		}
		report.Slices = append(report.Slices, se)
		all = append(all, diffs...)
		discarded += se.Discarded
	}

	report.Total = summarize(0, all)
	report.Total.Discarded = discarded
	return report, nil
}

func summarize(expiry float64, diffs []float64) SliceErrors {
	se := SliceErrors{Expiry: expiry, Matched: len(diffs)}
	if len(diffs) == 0 {
		return se
	}

	abs := make([]float64, len(diffs))
	sq := make([]float64, len(diffs))
	for i, d := range diffs {
		abs[i] = math.Abs(d)
		sq[i] = d * d
	}
	se.MAE = stat.Mean(abs, nil)
	se.RMSE = math.Sqrt(stat.Mean(sq, nil))
	se.MaxAbs = floats.Max(abs)
	return se
}

// checkFinite flags unit conversions that saturated (e.g. implied vol of a
// price at the zero-strike value).
func checkFinite(se SliceErrors) error {
	if math.IsNaN(se.RMSE) || math.IsInf(se.RMSE, 0) {
		return fmt.Errorf("expiry %v: filter errors are not finite in this price unit", se.Expiry)
	}
	return nil
}
