package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"PivotScreener/internal/model"
)

var (
	// ErrNoData is returned for a symbol the source knows nothing about.
	ErrNoData = errors.New("collector: no data")
	// ErrAllSymbolsFailed means the bulk request produced nothing usable.
	ErrAllSymbolsFailed = errors.New("collector: all symbols failed")
	// ErrIncomplete means ctx ended before every symbol was attempted or answered.
	ErrIncomplete = errors.New("collector: fetch incomplete")
)

// Fetcher retrieves daily bar history for a batch of symbols. Missing symbols are simply absent
// from the result; an error is returned only when the whole batch failed.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbols []string) (map[string][]model.OHLCV, error)
	Name() string
}

// Options configures the HTTP-backed fetchers.
type Options struct {
	BaseURL           string
	APIKey            string
	Period            string
	Interval          string
	Location          *time.Location
	Timeout           time.Duration
	RequestsPerSecond float64
	Workers           int
	Proxy             string
}

func (o Options) withDefaults() Options {
	if o.Period == "" {
		o.Period = "6mo"
	}
	if o.Interval == "" {
		o.Interval = "1d"
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return o
}

func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

type symbolFunc func(ctx context.Context, symbol string) ([]model.OHLCV, error)

// fetchAll fans symbols out over a bounded worker pool. Per-symbol failures are logged and
// dropped; ErrAllSymbolsFailed is returned when nothing came back and ErrIncomplete when ctx
// ended with symbols still outstanding.
func fetchAll(ctx context.Context, source string, symbols []string, workers int, fetch symbolFunc) (map[string][]model.OHLCV, error) {
	out := make(map[string][]model.OHLCV, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	var (
		mu      sync.Mutex
		failed  int
		lastErr error
	)
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		sym := sym
		g.Go(func() error {
			bars, err := fetch(ctx, sym)
			if err == nil && len(bars) == 0 {
				err = ErrNoData
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				lastErr = err
				log.Debug().Str("source", source).Str("symbol", sym).Err(err).Msg("symbol fetch failed")
				return nil
			}
			out[sym] = bars
			return nil
		})
	}
	_ = g.Wait()

	if len(out) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAllSymbolsFailed, err)
		}
		return nil, fmt.Errorf("%w: %d symbols, last error: %v", ErrAllSymbolsFailed, failed, lastErr)
	}
	if err := ctx.Err(); err != nil && len(out) < len(symbols) {
		return nil, fmt.Errorf("%w: %d of %d symbols fetched: %w", ErrIncomplete, len(out), len(symbols), err)
	}
	if failed > 0 {
		log.Warn().Str("source", source).Int("failed", failed).Int("fetched", len(out)).Msg("partial bar fetch")
	}
	return out, nil
}
