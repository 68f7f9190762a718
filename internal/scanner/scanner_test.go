package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PivotScreener/internal/collector"
	"PivotScreener/internal/metrics"
	"PivotScreener/internal/model"
	"PivotScreener/internal/strategy"
)

type staticResolver struct{ symbols []string }

func (r staticResolver) Resolve(context.Context) model.TickerUniverse {
	return model.TickerUniverse{Symbols: r.symbols, Provenance: model.ProvenanceFreshCache}
}

type captureRecorder struct {
	results []*model.ScanResult
	err     error
}

func (c *captureRecorder) RecordScan(res *model.ScanResult) error {
	c.results = append(c.results, res)
	return c.err
}
func (c *captureRecorder) Close() error { return nil }

// cancellingFetcher returns data and then cancels the scan, as a caller abandoning it would.
type cancellingFetcher struct {
	collector.MockFetcher
	cancel context.CancelFunc
}

func (f *cancellingFetcher) FetchDailyBars(ctx context.Context, symbols []string) (map[string][]model.OHLCV, error) {
	out, err := f.MockFetcher.FetchDailyBars(ctx, symbols)
	f.cancel()
	return out, err
}

// stallingFetcher serves only its first symbol and holds the rest until ctx ends, returning what
// it has without an error.
type stallingFetcher struct{ bars []model.OHLCV }

func (f stallingFetcher) Name() string { return "stalling" }

func (f stallingFetcher) FetchDailyBars(ctx context.Context, symbols []string) (map[string][]model.OHLCV, error) {
	<-ctx.Done()
	return map[string][]model.OHLCV{symbols[0]: f.bars}, nil
}

var clock = time.Date(2025, time.April, 10, 15, 45, 0, 0, time.UTC)

func quietBars(n int) []model.OHLCV {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.OHLCV, n)
	for i := range bars {
		bars[i] = model.OHLCV{Time: start.AddDate(0, 0, i), Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 1}
	}
	return bars
}

func newScanner(t *testing.T, fetcher collector.Fetcher, rec *captureRecorder, symbols ...string) *Scanner {
	t.Helper()
	eval, err := strategy.NewEvaluator(strategy.DefaultConfig(), nil)
	require.NoError(t, err)
	return New(staticResolver{symbols: symbols}, fetcher, eval, rec, Options{
		BulkTimeout: time.Minute,
		Suffix:      ".NS",
		Now:         func() time.Time { return clock },
		Metrics:     metrics.New(),
	})
}

func TestRun_ReportAndDiagnostics(t *testing.T) {
	fetcher := &collector.MockFetcher{Bars: map[string][]model.OHLCV{
		"RELIANCE.NS": quietBars(100),
		"SHORT.NS":    quietBars(10),
	}}
	rec := &captureRecorder{}
	s := newScanner(t, fetcher, rec, "RELIANCE.NS", "SHORT.NS", "MISSING.NS")

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ScanStatusOK, res.Status)
	assert.Equal(t, 3, res.Report.TotalScanned, "skipped tickers still count as scanned")
	assert.Equal(t, "2025-04-10 15:45:00", res.Report.LastUpdated)
	assert.NotEmpty(t, res.Report.RunID)
	require.Len(t, res.Report.Stocks, 1)
	assert.Equal(t, "RELIANCE", res.Report.Stocks[0].Ticker)

	assert.Equal(t, model.ProvenanceFreshCache, res.Diagnostics.Provenance)
	assert.Equal(t, map[model.OutcomeStatus]int{
		model.OutcomeMatched:             1,
		model.OutcomeInsufficientHistory: 1,
		model.OutcomeMissingData:         1,
	}, res.Diagnostics.Outcomes)

	require.Len(t, rec.results, 1)
	assert.Same(t, res, rec.results[0])
	assert.Same(t, res, s.Latest())
	assert.Same(t, res, s.LastRun())
}

func TestRun_OutageKeepsPreviousReport(t *testing.T) {
	fetcher := &collector.MockFetcher{Bars: map[string][]model.OHLCV{"RELIANCE.NS": quietBars(100)}}
	rec := &captureRecorder{}
	s := newScanner(t, fetcher, rec, "RELIANCE.NS")

	good, err := s.Run(context.Background())
	require.NoError(t, err)

	fetcher.Err = collector.ErrAllSymbolsFailed
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ScanStatusDataSourceUnavailable, res.Status)
	assert.Zero(t, res.Report.TotalScanned)
	assert.Empty(t, res.Report.Stocks)
	assert.NotNil(t, res.Report.Stocks, "empty report still encodes stocks as []")
	assert.Contains(t, res.Diagnostics.Error, "all symbols failed")

	assert.Len(t, rec.results, 1, "outage is not persisted")
	assert.Same(t, good, s.Latest())
	assert.Same(t, res, s.LastRun())
}

func TestRun_BulkTimeoutIsAnOutage(t *testing.T) {
	rec := &captureRecorder{}
	s := newScanner(t, stallingFetcher{bars: quietBars(100)}, rec, "RELIANCE.NS", "TCS.NS", "INFY.NS", "SBIN.NS")
	s.opts.BulkTimeout = 50 * time.Millisecond

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ScanStatusDataSourceUnavailable, res.Status)
	assert.Zero(t, res.Report.TotalScanned)
	assert.Empty(t, res.Report.Stocks)
	assert.Contains(t, res.Diagnostics.Error, "1 of 4 symbols")
	assert.Empty(t, res.Diagnostics.Outcomes, "no ticker is evaluated from a truncated batch")
	assert.Empty(t, rec.results, "truncated scan is not persisted")
	assert.Nil(t, s.Latest())
	assert.Same(t, res, s.LastRun())
}

func TestRun_IncompleteFetchErrorIsAnOutage(t *testing.T) {
	fetcher := &collector.MockFetcher{Bars: map[string][]model.OHLCV{"RELIANCE.NS": quietBars(100)}}
	rec := &captureRecorder{}
	s := newScanner(t, fetcher, rec, "RELIANCE.NS")
	good, err := s.Run(context.Background())
	require.NoError(t, err)

	fetcher.Err = fmt.Errorf("%w: 1 of 2 symbols fetched: %w", collector.ErrIncomplete, context.DeadlineExceeded)
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusDataSourceUnavailable, res.Status)
	assert.Len(t, rec.results, 1)
	assert.Same(t, good, s.Latest())
}

func TestRun_PersistenceFailureIsNotFatal(t *testing.T) {
	fetcher := &collector.MockFetcher{Bars: map[string][]model.OHLCV{"RELIANCE.NS": quietBars(100)}}
	rec := &captureRecorder{err: errors.New("disk full")}
	s := newScanner(t, fetcher, rec, "RELIANCE.NS")

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusOK, res.Status)
	assert.Len(t, res.Report.Stocks, 1)
}

func TestRun_CancelledBetweenTickers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := &cancellingFetcher{
		MockFetcher: collector.MockFetcher{Bars: map[string][]model.OHLCV{"RELIANCE.NS": quietBars(100)}},
		cancel:      cancel,
	}
	rec := &captureRecorder{}
	s := newScanner(t, fetcher, rec, "RELIANCE.NS", "TCS.NS")

	res, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Empty(t, rec.results)
	assert.Nil(t, s.Latest())
}

func TestSeed(t *testing.T) {
	fetcher := &collector.MockFetcher{Bars: map[string][]model.OHLCV{"RELIANCE.NS": quietBars(100)}}
	s := newScanner(t, fetcher, &captureRecorder{}, "RELIANCE.NS")

	assert.Error(t, s.Seed(nil))
	assert.Error(t, s.Seed(&model.ScanReport{LastUpdated: "yesterday"}))

	stored := &model.ScanReport{RunID: "old", LastUpdated: "2025-04-09 15:45:00", Stocks: []model.StrategyMatch{}}
	require.NoError(t, s.Seed(stored))
	require.NotNil(t, s.Latest())
	assert.Equal(t, "old", s.Latest().Report.RunID)
	assert.Equal(t, 9, s.Latest().GeneratedAt.Day())

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Same(t, res, s.Latest())

	require.NoError(t, s.Seed(stored))
	assert.Same(t, res, s.Latest(), "seeding never replaces a fresh scan")
}
