package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"PivotScreener/internal/collector"
	"PivotScreener/internal/metrics"
	"PivotScreener/internal/model"
	"PivotScreener/internal/recorder"
	"PivotScreener/internal/strategy"
	"PivotScreener/internal/universe"
)

// Resolver supplies the symbols to scan.
type Resolver interface {
	Resolve(ctx context.Context) model.TickerUniverse
}

// Options tunes a Scanner.
type Options struct {
	// BulkTimeout bounds the whole bar fetch. Zero means no extra bound.
	BulkTimeout time.Duration
	// Suffix is stripped from symbols for display, e.g. ".NS".
	Suffix  string
	Now     func() time.Time
	Metrics *metrics.Recorder
}

// Scanner drives one full screening cycle: universe, bars, rules, report, persistence.
type Scanner struct {
	resolver  Resolver
	fetcher   collector.Fetcher
	evaluator *strategy.Evaluator
	recorder  recorder.Recorder
	opts      Options

	mu      sync.RWMutex
	latest  *model.ScanResult
	lastRun *model.ScanResult
}

// New wires a scanner. A nil recorder discards results.
func New(resolver Resolver, fetcher collector.Fetcher, evaluator *strategy.Evaluator, rec recorder.Recorder, opts Options) *Scanner {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scanner{
		resolver:  resolver,
		fetcher:   fetcher,
		evaluator: evaluator,
		recorder:  rec,
		opts:      opts,
	}
}

// Run executes one cycle. The only error is cancellation of ctx, in which case nothing is
// persisted. A total data source failure, or a bulk fetch cut short by BulkTimeout, yields an
// empty report with ScanStatusDataSourceUnavailable.
func (s *Scanner) Run(ctx context.Context) (*model.ScanResult, error) {
	start := s.opts.Now()
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()

	u := s.resolver.Resolve(ctx)
	s.opts.Metrics.ObserveUniverse(u)
	logger.Info().Str("provenance", string(u.Provenance)).Int("tickers", len(u.Symbols)).Msg("universe resolved")

	diag := model.ScanDiagnostics{Provenance: u.Provenance, Universe: len(u.Symbols)}

	fetchCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.opts.BulkTimeout > 0 {
		fetchCtx, cancel = context.WithTimeout(ctx, s.opts.BulkTimeout)
	}
	bars, err := s.fetcher.FetchDailyBars(fetchCtx, u.Symbols)
	expired := fetchCtx.Err()
	cancel()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err == nil && expired != nil && len(bars) < len(u.Symbols) {
		err = fmt.Errorf("bulk fetch cut off after %s with %d of %d symbols: %w",
			s.opts.BulkTimeout, len(bars), len(u.Symbols), expired)
	}
	if err != nil {
		diag.Error = err.Error()
		diag.Duration = s.opts.Now().Sub(start)
		res := &model.ScanResult{
			Report:      model.NewScanReport(runID, start, 0, nil),
			Diagnostics: diag,
			Status:      model.ScanStatusDataSourceUnavailable,
			GeneratedAt: start,
		}
		logger.Error().Err(err).Str("source", s.fetcher.Name()).Msg("bar source unavailable, keeping previous report")
		s.finish(res, false)
		return res, nil
	}

	var matches []model.StrategyMatch
	for _, sym := range u.Symbols {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Msg("scan abandoned")
			return nil, err
		}
		ticker := universe.DisplayTicker(sym, s.opts.Suffix)
		out := s.evaluator.Evaluate(ticker, bars[sym])
		diag.Count(out.Status)
		switch out.Status {
		case model.OutcomeMatched:
			matches = append(matches, *out.Match)
		case model.OutcomeNoMatch:
		default:
			logger.Debug().Str("symbol", sym).Str("status", string(out.Status)).Str("reason", out.Reason).Msg("ticker skipped")
		}
	}

	generated := s.opts.Now()
	diag.Duration = generated.Sub(start)
	res := &model.ScanResult{
		Report:      model.NewScanReport(runID, generated, len(u.Symbols), matches),
		Diagnostics: diag,
		Status:      model.ScanStatusOK,
		GeneratedAt: generated,
	}

	if err := s.recorder.RecordScan(res); err != nil {
		logger.Warn().Err(err).Msg("persisting scan failed")
	}
	logger.Info().
		Int("scanned", res.Report.TotalScanned).
		Int("matches", len(matches)).
		Dur("duration", diag.Duration).
		Str("outcomes", diag.String()).
		Msg("scan complete")
	s.finish(res, true)
	return res, nil
}

func (s *Scanner) finish(res *model.ScanResult, ok bool) {
	s.opts.Metrics.ObserveScan(res)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = res
	if ok {
		s.latest = res
	}
}

// Latest returns the most recent successful result, or nil.
func (s *Scanner) Latest() *model.ScanResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// LastRun returns the most recent result of any status, or nil.
func (s *Scanner) LastRun() *model.ScanResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// Seed primes Latest with a previously persisted report, unless a scan already completed.
func (s *Scanner) Seed(report *model.ScanReport) error {
	if report == nil {
		return fmt.Errorf("seed: nil report")
	}
	generated, err := time.ParseInLocation(model.ReportTimeLayout, report.LastUpdated, s.opts.Now().Location())
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest != nil {
		return nil
	}
	s.latest = &model.ScanResult{Report: report, Status: model.ScanStatusOK, GeneratedAt: generated}
	return nil
}
