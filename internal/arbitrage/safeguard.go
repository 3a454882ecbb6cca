package arbitrage

import (
	"math/rand"

	"github.com/wonny/arbfilter/internal/quotes"
)

// safeguarded repeats an expiry with reshuffled admission orders until the
// share of changed quotes drops to the threshold, keeping the best run.
// The most liquid quote always stays first.
func (e *engine) safeguarded(sl *quotes.Slice, order []quotes.Quote, lambda float64, earlier []*Set, report *SliceReport) (*attempt, error) {
	sg := e.opts.Safeguard
	rng := rand.New(rand.NewSource(sg.Seed))

	var (
		best    *attempt
		lastErr error
	)
	current := order
	for n := 1; n <= sg.MaxAttempts; n++ {
		trial := SliceReport{}
		a, err := e.resolve(sl, current, lambda, earlier, &trial)
		report.Attempts += trial.Attempts

		switch {
		case err != nil:
			lastErr = err
		case best == nil || a.changed() < best.changed():
			best = a
			report.Fallback = trial.Fallback
		}

		if best != nil && changedPct(best, len(order)) <= sg.MaxAdjustedPct {
			break
		}
		current = reshuffle(order, rng)
	}

	if best == nil {
		return nil, lastErr
	}
	return best, nil
}

func changedPct(a *attempt, n int) float64 {
	if n == 0 {
		return 0
	}
	return 100 * float64(a.changed()) / float64(n)
}

// reshuffle returns order with everything after the first quote permuted.
func reshuffle(order []quotes.Quote, rng *rand.Rand) []quotes.Quote {
	out := make([]quotes.Quote, len(order))
	copy(out, order)
	if len(out) > 2 {
		tail := out[1:]
		rng.Shuffle(len(tail), func(i, j int) { tail[i], tail[j] = tail[j], tail[i] })
	}
	return out
}
