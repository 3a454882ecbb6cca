package arbitrage

// SliceReport 만기별 필터 결과 요약
type SliceReport struct {
	Expiry    float64  `json:"expiry"`
	Lambda    float64  `json:"lambda"`
	Quotes    int      `json:"quotes"`    // 입력 호가 수
	Admitted  int      `json:"admitted"`  // 최종 집합 크기
	Adjusted  int      `json:"adjusted"`  // 가격 보정 후 편입
	Discarded int      `json:"discarded"` // 폐기
	Attempts  int      `json:"attempts"`  // retry + safeguard 포함 총 실행 횟수
	Fallback  Fallback `json:"fallback,omitempty"`
}

// Changed counts quotes that did not pass through untouched.
func (r SliceReport) Changed() int {
	return r.Adjusted + r.Discarded
}

// ChangedPct is Changed as a percentage of the input quotes.
func (r SliceReport) ChangedPct() float64 {
	if r.Quotes == 0 {
		return 0
	}
	return 100 * float64(r.Changed()) / float64(r.Quotes)
}
