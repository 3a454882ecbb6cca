package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/arbfilter/internal/arbitrage"
	"github.com/wonny/arbfilter/internal/marketdata"
	"github.com/wonny/arbfilter/internal/service"
	"github.com/wonny/arbfilter/internal/units"
	"github.com/wonny/arbfilter/pkg/httputil"
	"github.com/wonny/arbfilter/pkg/logger"
)

const quotesCSV = `expiry,strike,price,forward,rate
1,0.8,0.40,1,0
1,0.91,0.20,1,0
1,1.0,0.15,1,0
1,1.10,0.18,1,0
1,1.22,0.30,1,0
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func refilterJob(t *testing.T, svc Submitter, input, config string) *RefilterJob {
	t.Helper()
	return NewRefilterJob(RefilterConfig{
		Name:       "eod",
		Schedule:   "0 */15 * * * *",
		InputPath:  input,
		ConfigPath: config,
		Units:      marketdata.Units{Price: units.PriceUnitVol, Strike: units.StrikeUnitStrike},
	}, svc, httputil.New(logger.Nop(), httputil.WithoutRetry()), logger.Nop())
}

func TestRefilterJob_SubmitsRun(t *testing.T) {
	svc := service.New()
	cfgPath := writeFile(t, "run.yaml", "meta: {name: eod}\nfilter: {kind: discard}\n")
	job := refilterJob(t, svc, writeFile(t, "quotes.csv", quotesCSV), cfgPath)

	assert.Equal(t, "eod", job.Name())
	assert.Equal(t, "0 */15 * * * *", job.Schedule())
	require.NoError(t, job.Run(context.Background()))

	recent := svc.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "scheduler:eod", recent[0].Source)
	assert.Equal(t, arbitrage.KindDiscard, recent[0].Kind)
	assert.Equal(t, 3, recent[0].NumQuotes)
	assert.Len(t, recent[0].ConfigHash, 64)
}

func TestRefilterJob_DefaultConfig(t *testing.T) {
	svc := service.New()
	job := refilterJob(t, svc, writeFile(t, "quotes.csv", quotesCSV), "")

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, arbitrage.KindStrike, svc.Recent(1)[0].Kind)
}

func TestRefilterJob_Errors(t *testing.T) {
	svc := service.New()
	good := writeFile(t, "quotes.csv", quotesCSV)

	err := refilterJob(t, svc, filepath.Join(t.TempDir(), "missing.csv"), "").Run(context.Background())
	assert.ErrorContains(t, err, "load quotes")

	err = refilterJob(t, svc, good, writeFile(t, "run.yaml", "filter: {kind: smooth}\n")).Run(context.Background())
	assert.ErrorContains(t, err, "load run config")

	assert.Empty(t, svc.Recent(0))
}

type fakePruner struct {
	cutoff time.Time
	n      int64
	err    error
}

func (f *fakePruner) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, f.err
}

func TestPruneJob(t *testing.T) {
	now := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	p := &fakePruner{n: 4}
	job := NewPruneJob(p, 48*time.Hour, "0 0 3 * * *", logger.Nop())
	job.now = func() time.Time { return now }

	assert.Equal(t, "run_prune", job.Name())
	assert.Equal(t, "0 0 3 * * *", job.Schedule())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-48*time.Hour), p.cutoff)

	p.err = errors.New("db down")
	assert.Error(t, job.Run(context.Background()))
}
