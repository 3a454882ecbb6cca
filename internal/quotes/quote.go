package quotes

import "math"

// Side 호가 측면
type Side int

const (
	SideBid Side = iota
	SideAsk
	SideMid
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "bid"
	case SideAsk:
		return "ask"
	case SideMid:
		return "mid"
	}
	return "unknown"
}

// Quote 단일 행사가의 bid/ask 관측치
// ⭐ Liquidity는 처리 우선순위에만 사용 (가격 아님)
type Quote struct {
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	Strike     float64 `json:"strike"`
	Liquidity  float64 `json:"liquidity"`
	Adjustment float64 `json:"adjustment"` // 필터가 mid를 옮긴 누적량
}

// NewQuote builds a quote from a bid/ask pair.
func NewQuote(bid, ask, strike, liquidity float64) Quote {
	return Quote{Bid: bid, Ask: ask, Strike: strike, Liquidity: liquidity}
}

// NewMidQuote builds a quote from a single price (bid = ask = mid).
func NewMidQuote(mid, strike, liquidity float64) Quote {
	return Quote{Bid: mid, Ask: mid, Strike: strike, Liquidity: liquidity}
}

// Mid returns the bid when both sides agree, the average otherwise.
func (q Quote) Mid() float64 {
	if q.Bid == q.Ask {
		return q.Bid
	}
	return 0.5 * (q.Bid + q.Ask)
}

// Price returns the requested side.
func (q Quote) Price(side Side) float64 {
	switch side {
	case SideBid:
		return q.Bid
	case SideAsk:
		return q.Ask
	default:
		return q.Mid()
	}
}

// SetPrice rewrites one side in place. Setting the mid collapses the spread.
// The mid delta is accumulated in Adjustment.
func (q *Quote) SetPrice(price float64, side Side) {
	before := q.Mid()
	switch side {
	case SideBid:
		q.Bid = price
	case SideAsk:
		q.Ask = price
	default:
		q.Bid, q.Ask = price, price
	}
	q.Adjustment += q.Mid() - before
}

// Adjusted reports whether the filter moved this quote.
func (q Quote) Adjusted() bool {
	return q.Adjustment != 0
}

// Valid reports whether the quote can enter a slice: a finite strike and an
// uncrossed bid/ask. Strike positivity depends on the strike unit and is
// checked by the caller.
func (q Quote) Valid() bool {
	return !math.IsNaN(q.Strike) && !math.IsInf(q.Strike, 0) &&
		!math.IsNaN(q.Bid) && !math.IsNaN(q.Ask) &&
		q.Bid <= q.Ask
}
