package arbitrage

// StrikeFilter admits quotes in liquidity order and reprices every rejected
// quote into the interval left by the grown set.
type StrikeFilter struct {
	*engine
}

// NewStrikeFilter creates a strike filter. Retry options are ignored.
func NewStrikeFilter(opts Options) *StrikeFilter {
	opts.Kind = KindStrike
	return &StrikeFilter{engine: &engine{kind: KindStrike, opts: opts, adjust: true}}
}

// DiscardFilter is StrikeFilter without the repricing pass: rejected quotes
// are dropped.
type DiscardFilter struct {
	*engine
}

// NewDiscardFilter creates a discard filter.
func NewDiscardFilter(opts Options) *DiscardFilter {
	opts.Kind = KindDiscard
	return &DiscardFilter{engine: &engine{kind: KindDiscard, opts: opts}}
}

var (
	_ Filter = (*StrikeFilter)(nil)
	_ Filter = (*DiscardFilter)(nil)
	_ Filter = (*ForwardExpiryFilter)(nil)
)
